package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// maxBoundParams caps bound variables per statement in batched inserts.
// 999 is SQLite's historical SQLITE_MAX_VARIABLE_NUMBER and is safe on every build.
const maxBoundParams = 999

// InsertOptions controls Insert and InsertMany.
type InsertOptions struct {
	// OrReplace emits INSERT OR REPLACE.
	OrReplace bool

	// OrIgnore emits INSERT OR IGNORE. It cannot be combined with OrReplace.
	OrIgnore bool

	// DiscardIDs skips collecting assigned row ids. InsertMany then uses a
	// single batched multi-row statement per chunk.
	DiscardIDs bool
}

// SelectOptions controls Select.
type SelectOptions struct {
	// Columns to project. Empty selects every column.
	Columns []string

	Where Where

	// OrderBy is a caller-trusted ORDER BY fragment, emitted verbatim.
	OrderBy string

	// Limit <= 0 means no limit. The zero value keeps that meaning, so an
	// explicit LIMIT 0 cannot be expressed; callers wanting no rows should
	// not query.
	Limit int

	// Offset <= 0 means no offset. An offset without a limit emits LIMIT -1.
	Offset int
}

// MutateOptions controls Update and Delete.
type MutateOptions struct {
	// AllowAll permits an empty filter, touching every row.
	AllowAll bool
}

func insertVerb(opts InsertOptions) (string, error) {
	switch {
	case opts.OrReplace && opts.OrIgnore:
		return "", validationErrorf("OrReplace and OrIgnore are mutually exclusive")
	case opts.OrReplace:
		return "INSERT OR REPLACE", nil
	case opts.OrIgnore:
		return "INSERT OR IGNORE", nil
	default:
		return "INSERT", nil
	}
}

// encodeRow validates column names and encodes values in sorted column order.
func encodeRow(row Row) ([]string, []any, error) {
	cols := sortedKeys(row)
	if err := validateIdents(cols); err != nil {
		return nil, nil, err
	}
	args := make([]any, len(cols))
	for i, col := range cols {
		v, err := encodeValue(row[col])
		if err != nil {
			return nil, nil, fmt.Errorf("column %q: %w", col, err)
		}
		args[i] = v
	}
	return cols, args, nil
}

// Insert adds one row and returns its rowid.
//
// With DiscardIDs the row is still inserted and 0 is returned. With OrIgnore
// a row skipped by a conflict also returns 0.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - table: Target table
//   - row: Column values; must not be empty
//   - opts: Conflict handling and id collection
//
// Returns:
//   - int64: Assigned rowid
//   - error: ErrValidation, ErrIntegrity on a constraint conflict, or ErrQuery
func (db *DB) Insert(ctx context.Context, table string, row Row, opts InsertOptions) (int64, error) {
	if err := validateIdent(table); err != nil {
		return 0, err
	}
	verb, err := insertVerb(opts)
	if err != nil {
		return 0, err
	}
	if len(row) == 0 {
		return 0, validationErrorf("insert into %q has no columns", table)
	}

	cols, args, err := encodeRow(row)
	if err != nil {
		return 0, err
	}

	stmt := fmt.Sprintf("%s INTO %s (%s) VALUES (%s);",
		verb, quoteIdent(table), quoteIdents(cols), placeholders(len(cols)))
	res, err := db.exec(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	if opts.DiscardIDs {
		return 0, nil
	}
	return insertedID(res, opts)
}

// insertedID is the rowid written by a single-row insert, or 0 when
// OR IGNORE skipped the row (LastInsertId would then be a stale id).
func insertedID(res sql.Result, opts InsertOptions) (int64, error) {
	if opts.OrIgnore {
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return 0, nil
		}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: reading rowid: %w", ErrQuery, err)
	}
	return id, nil
}

// InsertMany adds rows atomically. Every row must have the first row's columns.
//
// By default one statement runs per row and the assigned ids are returned in
// input order; a row skipped by OrIgnore reports 0, as Insert does. With
// DiscardIDs rows are written with batched multi-row
// statements and nil is returned. An empty input does nothing.
func (db *DB) InsertMany(ctx context.Context, table string, rows []Row, opts InsertOptions) ([]int64, error) {
	if err := validateIdent(table); err != nil {
		return nil, err
	}
	verb, err := insertVerb(opts)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if len(rows[0]) == 0 {
		return nil, validationErrorf("insert into %q has no columns", table)
	}

	cols, _, err := encodeRow(rows[0])
	if err != nil {
		return nil, err
	}
	batch := make([][]any, len(rows))
	for i, row := range rows {
		if err := sameColumns(cols, row); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		_, args, err := encodeRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		batch[i] = args
	}

	prefix := fmt.Sprintf("%s INTO %s (%s) VALUES ", verb, quoteIdent(table), quoteIdents(cols))
	tuple := "(" + placeholders(len(cols)) + ")"

	var ids []int64
	run := func(ctx context.Context) error {
		if opts.DiscardIDs {
			return db.execBatched(ctx, prefix, tuple, len(cols), batch)
		}
		ids = make([]int64, 0, len(batch))
		for _, args := range batch {
			res, err := db.exec(ctx, prefix+tuple+";", args...)
			if err != nil {
				return err
			}
			id, err := insertedID(res, opts)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	}

	if db.txActive {
		err = run(ctx)
	} else {
		err = db.Transaction(ctx, run)
	}
	if err != nil {
		return nil, err
	}
	if opts.DiscardIDs {
		return nil, nil
	}
	return ids, nil
}

// execBatched writes rows as multi-row VALUES lists under maxBoundParams.
func (db *DB) execBatched(ctx context.Context, prefix, tuple string, width int, batch [][]any) error {
	perStmt := max(1, maxBoundParams/width)
	for start := 0; start < len(batch); start += perStmt {
		end := min(start+perStmt, len(batch))
		chunk := batch[start:end]

		tuples := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)*width)
		for i, row := range chunk {
			tuples[i] = tuple
			args = append(args, row...)
		}
		if _, err := db.exec(ctx, prefix+strings.Join(tuples, ", ")+";", args...); err != nil {
			return err
		}
	}
	return nil
}

// sameColumns checks that row has exactly the columns in cols.
func sameColumns(cols []string, row Row) error {
	if len(row) != len(cols) {
		return validationErrorf("expected columns %v, got %v", cols, sortedKeys(row))
	}
	for _, col := range cols {
		if _, ok := row[col]; !ok {
			return validationErrorf("expected columns %v, got %v", cols, sortedKeys(row))
		}
	}
	return nil
}

// Select returns the rows of table matching opts.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - table: Source table
//   - opts: Projection, filter, ordering and paging
//
// Returns:
//   - []Row: Matching rows; empty (not nil) when nothing matches
//   - error: ErrValidation for bad identifiers, ErrQuery otherwise
func (db *DB) Select(ctx context.Context, table string, opts SelectOptions) ([]Row, error) {
	if err := validateIdent(table); err != nil {
		return nil, err
	}

	if err := validateIdents(opts.Columns); err != nil {
		return nil, err
	}
	whereSQL, args, err := buildWhere(opts.Where)
	if err != nil {
		return nil, err
	}
	projection, err := db.projection(ctx, table, opts.Columns)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", projection, quoteIdent(table))
	if whereSQL != "" {
		b.WriteString(" WHERE " + whereSQL)
	}
	if opts.OrderBy != "" {
		b.WriteString(" ORDER BY " + opts.OrderBy)
	}
	if opts.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, int64(opts.Limit))
	}
	if opts.Offset > 0 {
		if opts.Limit <= 0 {
			b.WriteString(" LIMIT -1")
		}
		b.WriteString(" OFFSET ?")
		args = append(args, int64(opts.Offset))
	}
	b.WriteString(";")

	res, err := db.query(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}

// timeDeclTypes are the declared types the sqlite3 driver parses into
// time.Time, losing the stored text.
var timeDeclTypes = map[string]bool{"date": true, "datetime": true, "timestamp": true}

// projection builds the SELECT list for cols (every column when empty).
// Columns declared DATE, DATETIME or TIMESTAMP are selected as +"col", a
// no-op expression without a declared type, so their values come back
// exactly as stored.
func (db *DB) projection(ctx context.Context, table string, cols []string) (string, error) {
	info, err := db.TableColumns(ctx, table)
	if err != nil {
		return "", err
	}
	timeCols := make(map[string]bool)
	for _, c := range info {
		if timeDeclTypes[strings.ToLower(strings.TrimSpace(c.Type))] {
			timeCols[c.Name] = true
		}
	}

	if len(timeCols) == 0 {
		if len(cols) == 0 {
			return "*", nil
		}
		return quoteIdents(cols), nil
	}

	if len(cols) == 0 {
		for _, c := range info {
			cols = append(cols, c.Name)
		}
	}
	parts := make([]string, len(cols))
	for i, col := range cols {
		q := quoteIdent(col)
		if timeCols[col] {
			q = "+" + q + " AS " + q
		}
		parts[i] = q
	}
	return strings.Join(parts, ", "), nil
}

// Update sets data on the rows matching where and returns the affected count.
//
// Empty data is a no-op returning 0. An empty filter is refused unless
// opts.AllowAll is set.
func (db *DB) Update(ctx context.Context, table string, data Row, where Where, opts MutateOptions) (int64, error) {
	if err := validateIdent(table); err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}
	if len(where) == 0 && !opts.AllowAll {
		return 0, validationErrorf("refusing to update all rows of %q without AllowAll", table)
	}

	cols, args, err := encodeRow(data)
	if err != nil {
		return 0, err
	}
	sets := make([]string, len(cols))
	for i, col := range cols {
		sets[i] = quoteIdent(col) + " = ?"
	}

	whereSQL, whereArgs, err := buildWhere(where)
	if err != nil {
		return 0, err
	}

	stmt := fmt.Sprintf("UPDATE %s SET %s", quoteIdent(table), strings.Join(sets, ", "))
	if whereSQL != "" {
		stmt += " WHERE " + whereSQL
		args = append(args, whereArgs...)
	}
	return db.affected(ctx, stmt+";", args)
}

// Delete removes the rows matching where and returns the affected count.
// An empty filter is refused unless opts.AllowAll is set.
func (db *DB) Delete(ctx context.Context, table string, where Where, opts MutateOptions) (int64, error) {
	if err := validateIdent(table); err != nil {
		return 0, err
	}
	if len(where) == 0 && !opts.AllowAll {
		return 0, validationErrorf("refusing to delete all rows of %q without AllowAll", table)
	}

	whereSQL, args, err := buildWhere(where)
	if err != nil {
		return 0, err
	}

	stmt := "DELETE FROM " + quoteIdent(table)
	if whereSQL != "" {
		stmt += " WHERE " + whereSQL
	}
	return db.affected(ctx, stmt+";", args)
}

func (db *DB) affected(ctx context.Context, stmt string, args []any) (int64, error) {
	res, err := db.exec(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: reading affected rows: %w", ErrQuery, err)
	}
	return n, nil
}

// Count returns the number of rows in table matching where.
// An empty where counts every row.
func (db *DB) Count(ctx context.Context, table string, where Where) (int64, error) {
	if err := validateIdent(table); err != nil {
		return 0, err
	}
	whereSQL, args, err := buildWhere(where)
	if err != nil {
		return 0, err
	}

	stmt := "SELECT COUNT(*) AS n FROM " + quoteIdent(table)
	if whereSQL != "" {
		stmt += " WHERE " + whereSQL
	}

	res, err := db.query(ctx, stmt+";", args...)
	if err != nil {
		return 0, err
	}
	if len(res.Rows) == 0 {
		return 0, nil
	}
	n, _ := res.Rows[0]["n"].(int64)
	return n, nil
}
