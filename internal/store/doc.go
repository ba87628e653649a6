// Package store persists the sync engine's read-write records in an embedded
// SQLite database: per-user sync settings, the calendar mapping ledger that
// backs idempotent create/update/delete, the encrypted OAuth credential, and
// pending OAuth state nonces.
//
// The database runs in embedded mode with WAL enabled. The engine assumes a
// single active session per user, so the store keeps one writer connection.
package store
