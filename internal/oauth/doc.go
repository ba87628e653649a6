// Package oauth implements the OAuth2 credential lifecycle for the external
// calendar: authorization-code exchange with CSRF-protected state, expiry
// checking with a safety buffer, silent refresh that always carries the
// refresh token forward, and best-effort revocation on disconnect.
//
// Tokens are persisted through a TokenStore and encrypted at rest with
// AES-256-GCM (see TokenCipher).
package oauth
