package database

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// Error kinds for data-access operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrValidation is returned before any statement is built when an
	// identifier is malformed, an insert payload is empty, a value is not a
	// scalar, or a full-table mutation is attempted without AllowAll.
	ErrValidation = errors.New("database: validation failed")

	// ErrIntegrity is returned when the backend reports a constraint
	// violation (UNIQUE, NOT NULL, FOREIGN KEY, CHECK, PRIMARY KEY).
	ErrIntegrity = errors.New("database: integrity conflict")

	// ErrQuery is returned for any other backend failure.
	ErrQuery = errors.New("database: query failed")

	// ErrConnection is returned when the backing store cannot be opened.
	ErrConnection = errors.New("database: connection failed")

	// ErrTxAborted is returned for statements issued inside a transaction
	// scope after an earlier statement in the same scope failed.
	ErrTxAborted = errors.New("database: transaction aborted")

	// ErrNestedTransaction is returned when Transaction is called while a
	// transaction is already open on the same DB.
	ErrNestedTransaction = errors.New("database: nested transactions are not supported")
)

// validationErrorf builds an ErrValidation-wrapped error.
func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// classify wraps a driver error in the matching error kind.
// The original error stays reachable through errors.As.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %w", ErrIntegrity, err)
	}
	return fmt.Errorf("%w: %w", ErrQuery, err)
}
