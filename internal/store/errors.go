package store

import (
	"errors"
	"fmt"
)

// LedgerError indicates a persistence failure on the mapping table. The sync
// orchestrator logs it and aborts the affected item only; other items keep
// syncing.
type LedgerError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *LedgerError) Error() string {
	return fmt.Sprintf("mapping ledger %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *LedgerError) Unwrap() error {
	return e.Err
}

// IsLedgerError reports whether err is (or wraps) a LedgerError.
func IsLedgerError(err error) bool {
	var le *LedgerError
	return errors.As(err, &le)
}
