// Package gcal provides the thin Google Calendar client used by the sync
// engine: create, full-replace update, idempotent delete, get, and calendar
// listing, all authenticated through a single transport that silently
// refreshes the OAuth token and retries a rejected request exactly once.
package gcal
