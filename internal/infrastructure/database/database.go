package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Database configuration constants.
const (
	// dirPermissions is the permission mode for the database directory.
	dirPermissions = 0750

	// filePermissions is the permission mode for the database file.
	filePermissions = 0600

	// msPerSecond converts seconds to milliseconds.
	msPerSecond = 1000

	// connectionTimeout is the timeout for verifying database connectivity.
	connectionTimeout = 5 * time.Second

	// MemoryPath selects a private in-memory database instead of a file.
	MemoryPath = ":memory:"
)

// Logger receives debug-level statement logging.
// *logging.Logger and *slog.Logger both satisfy it.
type Logger interface {
	Debug(msg string, args ...any)
}

// Config contains database configuration options.
// These map to the database section of config.yaml.
type Config struct {
	// Path is the filesystem path to the SQLite database file, or MemoryPath.
	// The directory will be created if it doesn't exist.
	Path string

	// WALMode enables Write-Ahead Logging so independent DB instances can
	// read while another writes.
	WALMode bool

	// BusyTimeout is the maximum time to wait for a database lock (seconds).
	// Prevents "database is locked" errors under contention.
	BusyTimeout int

	// Logger, when set, receives every statement and its bound values at
	// debug level.
	Logger Logger
}

// DB is a data-access object over a single SQLite connection.
//
// The connection is opened lazily by the first operation (or explicitly by
// Connect) and held until Close. A DB is not safe for concurrent use;
// concurrent callers each create their own instance.
type DB struct {
	cfg    Config
	logger Logger

	pool *sql.DB
	conn *sql.Conn

	// Transaction state. txActive is true for the whole Transaction scope;
	// tx becomes nil once a failing statement has rolled the scope back.
	tx       *sql.Tx
	txActive bool
	txErr    error
}

// New creates a data-access object without opening a connection.
// The connection is opened on the first operation that needs it.
func New(cfg Config) *DB {
	return &DB{cfg: cfg, logger: cfg.Logger}
}

// Open creates a data-access object and connects it immediately.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - cfg: Database configuration
//
// Returns:
//   - *DB: Connected data-access object
//   - error: ErrConnection-wrapped if the store cannot be opened
func Open(ctx context.Context, cfg Config) (*DB, error) {
	db := New(cfg)
	if err := db.Connect(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// Use runs fn against a freshly connected data-access object and releases it
// on every exit path, including panics.
//
// Statements outside Transaction are committed as they execute, so a
// successful fn leaves its work persisted. A Transaction left open by a
// panicking fn is rolled back before the panic continues.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - cfg: Database configuration
//   - fn: Work to run while the connection is held
//
// Returns:
//   - error: The error from fn, or from connecting/closing
func Use(ctx context.Context, cfg Config, fn func(*DB) error) (err error) {
	db := New(cfg)
	if err := db.Connect(ctx); err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			db.Close() //nolint:errcheck // Panic path, original panic takes priority
			panic(p)
		}
		if closeErr := db.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return fn(db)
}

// SetLogger replaces the statement logger. Pass nil to disable.
func (db *DB) SetLogger(logger Logger) {
	db.logger = logger
}

// Path returns the configured database path.
func (db *DB) Path() string {
	return db.cfg.Path
}

// Connected reports whether a connection is currently open.
func (db *DB) Connected() bool {
	return db.conn != nil
}

// Connect opens the connection if none is open. Calling it again is a no-op.
//
// It performs the following setup:
//  1. Creates the database directory if it doesn't exist
//  2. Opens the database (foreign keys, busy timeout and optional WAL in the DSN)
//  3. Pins a single connection and enables PRAGMA foreign_keys on it
//  4. Verifies the connection with a ping
//  5. Sets file permissions (0600)
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: ErrConnection-wrapped if any step fails
func (db *DB) Connect(ctx context.Context) error {
	if db.conn != nil {
		return nil
	}

	if db.cfg.Path == "" {
		return fmt.Errorf("%w: database path is empty", ErrConnection)
	}

	if db.cfg.Path != MemoryPath {
		dir := filepath.Dir(db.cfg.Path)
		if err := os.MkdirAll(dir, dirPermissions); err != nil {
			return fmt.Errorf("%w: creating database directory: %w", ErrConnection, err)
		}
	}

	pool, err := sql.Open("sqlite3", dsn(db.cfg))
	if err != nil {
		return fmt.Errorf("%w: opening database: %w", ErrConnection, err)
	}

	// One connection per instance; it is pinned below for the DB's lifetime.
	pool.SetMaxOpenConns(1)
	pool.SetMaxIdleConns(1)

	connectCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	conn, err := pool.Conn(connectCtx)
	if err != nil {
		pool.Close() //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("%w: acquiring connection: %w", ErrConnection, err)
	}

	if err := conn.PingContext(connectCtx); err != nil {
		conn.Close() //nolint:errcheck // Best effort cleanup on error path
		pool.Close() //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("%w: verifying database connection: %w", ErrConnection, err)
	}

	if _, err := conn.ExecContext(connectCtx, "PRAGMA foreign_keys = ON;"); err != nil {
		conn.Close() //nolint:errcheck // Best effort cleanup on error path
		pool.Close() //nolint:errcheck // Best effort cleanup on error path
		return fmt.Errorf("%w: enabling foreign keys: %w", ErrConnection, err)
	}

	if db.cfg.Path != MemoryPath {
		_ = os.Chmod(db.cfg.Path, filePermissions) //nolint:errcheck // File may be created on first write
	}

	db.pool = pool
	db.conn = conn
	return nil
}

// Close rolls back any open transaction and releases the connection.
// It is safe to call on a DB that was never connected, and safe to call twice.
//
// Returns:
//   - error: If closing fails
func (db *DB) Close() error {
	if db.tx != nil {
		db.tx.Rollback() //nolint:errcheck // Closing discards uncommitted work
	}
	db.tx, db.txActive, db.txErr = nil, false, nil

	if db.conn == nil {
		return nil
	}

	connErr := db.conn.Close()
	poolErr := db.pool.Close()
	db.conn, db.pool = nil, nil

	if err := errors.Join(connErr, poolErr); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// HealthCheck verifies the database is accessible and functioning.
// It performs a simple query to ensure the connection is alive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (db *DB) HealthCheck(ctx context.Context) error {
	if err := db.Connect(ctx); err != nil {
		return err
	}
	var result int
	if err := db.conn.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// dsn builds the go-sqlite3 connection string.
// See: https://github.com/mattn/go-sqlite3#connection-string
func dsn(cfg Config) string {
	params := fmt.Sprintf("_busy_timeout=%d&_foreign_keys=on", cfg.BusyTimeout*msPerSecond)
	if cfg.Path == MemoryPath {
		return MemoryPath + "?" + params
	}
	connStr := fmt.Sprintf("file:%s?%s", cfg.Path, params)
	if cfg.WALMode {
		connStr += "&_journal_mode=WAL&_synchronous=NORMAL"
	}
	return connStr
}

// querier is satisfied by both *sql.Conn and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// target returns the open transaction, or the connection outside one.
func (db *DB) target(ctx context.Context) (querier, error) {
	if db.txActive {
		if db.tx == nil {
			return nil, fmt.Errorf("%w: %w", ErrTxAborted, db.txErr)
		}
		return db.tx, nil
	}
	if err := db.Connect(ctx); err != nil {
		return nil, err
	}
	return db.conn, nil
}

// fail classifies a backend error and, inside a transaction, rolls the
// transaction back so the rest of the scope sees ErrTxAborted.
func (db *DB) fail(err error) error {
	err = classify(err)
	if db.tx != nil {
		db.tx.Rollback() //nolint:errcheck // Already failing; the statement error is reported
		db.tx = nil
		db.txErr = err
	}
	return err
}

func (db *DB) logStatement(query string, args []any) {
	if db.logger != nil {
		db.logger.Debug("sql", "statement", query, "params", args)
	}
}

// exec runs a statement that produces no result set.
func (db *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	q, err := db.target(ctx)
	if err != nil {
		return nil, err
	}
	db.logStatement(query, args)
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, db.fail(err)
	}
	return res, nil
}

// query runs a statement and decodes every row it returns.
func (db *DB) query(ctx context.Context, query string, args ...any) (Result, error) {
	q, err := db.target(ctx)
	if err != nil {
		return Result{}, err
	}
	db.logStatement(query, args)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return Result{}, db.fail(err)
	}
	defer rows.Close()

	res, err := scanRows(rows)
	if err != nil {
		return Result{}, db.fail(err)
	}
	return res, nil
}
