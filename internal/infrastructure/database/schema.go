package database

import (
	"context"
	"strings"
)

// Column is one column definition for CreateTable.
// Type is a caller-trusted SQL fragment such as "TEXT NOT NULL".
type Column struct {
	Name string
	Type string
}

// TableSpec describes a table for CreateTable.
type TableSpec struct {
	Name    string
	Columns []Column

	// PrimaryKey lists one column, or several for a composite key.
	PrimaryKey []string

	// Uniques lists UNIQUE constraints, each over one or more columns.
	Uniques [][]string

	// ForeignKeys are raw FOREIGN KEY clauses, emitted verbatim.
	ForeignKeys []string

	// ErrorIfExists drops IF NOT EXISTS so an existing table is an error.
	ErrorIfExists bool

	WithoutRowID bool
}

// DropOptions controls DropTable.
type DropOptions struct {
	// ErrorIfMissing drops IF EXISTS so a missing table is an error.
	ErrorIfMissing bool
}

// ColumnInfo is one row of PRAGMA table_info.
type ColumnInfo struct {
	Position   int64
	Name       string
	Type       string
	NotNull    bool
	Default    any
	PrimaryKey int64
}

// CreateTable emits CREATE TABLE from spec.
//
// Every identifier is validated before the statement is built. Column type
// fragments and foreign-key clauses are passed through verbatim.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - spec: Table definition
//
// Returns:
//   - error: ErrValidation for bad identifiers or no columns, ErrQuery otherwise
func (db *DB) CreateTable(ctx context.Context, spec TableSpec) error {
	stmt, err := createTableSQL(spec)
	if err != nil {
		return err
	}
	_, err = db.exec(ctx, stmt)
	return err
}

func createTableSQL(spec TableSpec) (string, error) {
	if err := validateIdent(spec.Name); err != nil {
		return "", err
	}
	if len(spec.Columns) == 0 {
		return "", validationErrorf("table %q has no columns", spec.Name)
	}

	parts := make([]string, 0, len(spec.Columns)+len(spec.Uniques)+len(spec.ForeignKeys)+1)
	for _, col := range spec.Columns {
		if err := validateIdent(col.Name); err != nil {
			return "", err
		}
		def := quoteIdent(col.Name)
		if t := strings.TrimSpace(col.Type); t != "" {
			def += " " + t
		}
		parts = append(parts, def)
	}

	if len(spec.PrimaryKey) > 0 {
		if err := validateIdents(spec.PrimaryKey); err != nil {
			return "", err
		}
		parts = append(parts, "PRIMARY KEY ("+quoteIdents(spec.PrimaryKey)+")")
	}

	for _, unique := range spec.Uniques {
		if len(unique) == 0 {
			continue
		}
		if err := validateIdents(unique); err != nil {
			return "", err
		}
		parts = append(parts, "UNIQUE ("+quoteIdents(unique)+")")
	}

	parts = append(parts, spec.ForeignKeys...)

	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	if !spec.ErrorIfExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(quoteIdent(spec.Name))
	b.WriteString(" (\n  ")
	b.WriteString(strings.Join(parts, ",\n  "))
	b.WriteString("\n)")
	if spec.WithoutRowID {
		b.WriteString(" WITHOUT ROWID")
	}
	b.WriteString(";")
	return b.String(), nil
}

// DropTable emits DROP TABLE, with IF EXISTS unless opts.ErrorIfMissing.
func (db *DB) DropTable(ctx context.Context, name string, opts DropOptions) error {
	if err := validateIdent(name); err != nil {
		return err
	}
	stmt := "DROP TABLE "
	if !opts.ErrorIfMissing {
		stmt += "IF EXISTS "
	}
	_, err := db.exec(ctx, stmt+quoteIdent(name)+";")
	return err
}

// TableExists reports whether a table with the given name exists.
func (db *DB) TableExists(ctx context.Context, name string) (bool, error) {
	if err := validateIdent(name); err != nil {
		return false, err
	}
	master, table := "sqlite_master", name
	if i := strings.LastIndex(name, "."); i >= 0 {
		master, table = quoteIdent(name[:i])+".sqlite_master", name[i+1:]
	}
	res, err := db.query(ctx,
		"SELECT name FROM "+master+" WHERE type = 'table' AND name = ?;", table)
	if err != nil {
		return false, err
	}
	return len(res.Rows) > 0, nil
}

// ListTables returns user table names in alphabetical order.
// SQLite's internal sqlite_* tables are excluded.
func (db *DB) ListTables(ctx context.Context) ([]string, error) {
	return db.ListSchemaTables(ctx, "")
}

// ListSchemaTables is ListTables for a named schema such as "main", "temp"
// or an attached database. An empty schema means the main database.
func (db *DB) ListSchemaTables(ctx context.Context, schema string) ([]string, error) {
	master := "sqlite_master"
	if schema != "" {
		if err := validateIdent(schema); err != nil {
			return nil, err
		}
		master = quoteIdent(schema) + ".sqlite_master"
	}
	res, err := db.query(ctx,
		"SELECT name FROM "+master+" WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name;")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		if name, ok := row["name"].(string); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// TableColumns returns the column layout of a table in declaration order.
// A missing table yields an empty slice.
func (db *DB) TableColumns(ctx context.Context, name string) ([]ColumnInfo, error) {
	if err := validateIdent(name); err != nil {
		return nil, err
	}

	stmt := "PRAGMA table_info(" + quoteIdent(name) + ");"
	if i := strings.LastIndex(name, "."); i >= 0 {
		// Schema-qualified form: PRAGMA "schema".table_info("table")
		stmt = "PRAGMA " + quoteIdent(name[:i]) + ".table_info(" + quoteIdent(name[i+1:]) + ");"
	}

	res, err := db.query(ctx, stmt)
	if err != nil {
		return nil, err
	}

	cols := make([]ColumnInfo, 0, len(res.Rows))
	for _, row := range res.Rows {
		info := ColumnInfo{Default: row["dflt_value"]}
		info.Position, _ = row["cid"].(int64)
		info.Name, _ = row["name"].(string)
		info.Type, _ = row["type"].(string)
		notNull, _ := row["notnull"].(int64)
		info.NotNull = notNull != 0
		info.PrimaryKey, _ = row["pk"].(int64)
		cols = append(cols, info)
	}
	return cols, nil
}
