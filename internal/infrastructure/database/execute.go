package database

import (
	"context"
	"fmt"
)

// Execute runs raw SQL with bound params and returns any result rows.
// Statements that produce no result set return an empty slice.
//
// The SQL text is trusted; only params are bound.
func (db *DB) Execute(ctx context.Context, query string, params ...any) ([]Row, error) {
	res, err := db.Query(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}

// Query is Execute with the result's column order preserved.
func (db *DB) Query(ctx context.Context, query string, params ...any) (Result, error) {
	args := make([]any, len(params))
	for i, p := range params {
		v, err := encodeValue(p)
		if err != nil {
			return Result{}, fmt.Errorf("param %d: %w", i+1, err)
		}
		args[i] = v
	}
	return db.query(ctx, query, args...)
}

// Transaction runs fn inside BEGIN/COMMIT on this DB's connection.
//
// If fn returns an error or panics the transaction is rolled back and the
// error (or panic) propagates. When a statement inside fn fails, the
// transaction is rolled back at once and every later statement in the scope
// fails with ErrTxAborted.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - fn: Work to run; DB methods called inside use the transaction
//
// Returns:
//   - error: ErrNestedTransaction when already inside a transaction, or the
//     error from fn, or from committing
func (db *DB) Transaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if db.txActive {
		return ErrNestedTransaction
	}
	if err := db.Connect(ctx); err != nil {
		return err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: starting transaction: %w", ErrQuery, err)
	}
	db.tx, db.txActive, db.txErr = tx, true, nil

	defer func() {
		p := recover()
		if db.tx != nil && (p != nil || err != nil) {
			db.tx.Rollback() //nolint:errcheck // Rollback after failure; fn's error is reported
		}
		db.tx, db.txActive, db.txErr = nil, false, nil
		if p != nil {
			panic(p)
		}
	}()

	if err = fn(ctx); err != nil {
		return err
	}
	if db.tx == nil {
		return fmt.Errorf("%w: %w", ErrTxAborted, db.txErr)
	}
	if err = db.tx.Commit(); err != nil {
		return classify(fmt.Errorf("committing transaction: %w", err))
	}
	return nil
}

// InTransaction reports whether a Transaction scope is open.
func (db *DB) InTransaction() bool {
	return db.txActive
}
