// Package database provides the SQLite data-access layer for sqlgate.
//
// This package manages:
//   - A single lazily-opened connection per DB instance
//   - Schema creation and inspection (CREATE/DROP TABLE, table listing, column introspection)
//   - Row-level CRUD built from validated identifiers and bound parameters
//   - Scoped acquisition (Use) and scoped transactions (Transaction)
//   - Schema migrations embedded in the binary
//
// Security Considerations:
//   - Every table and column name is checked against a whitelist
//     ([A-Za-z0-9_$.]) and double-quoted before it is interpolated into SQL
//   - Values are never interpolated; they are always bound parameters
//   - Type fragments in CreateTable, raw FOREIGN KEY clauses and ORDER BY
//     fragments are caller-trusted and passed through verbatim
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Concurrency:
//
// A DB is not safe for concurrent use. Each caller (HTTP request, tool call,
// background writer) acquires its own instance, normally through Use:
//
//	err := database.Use(ctx, cfg, func(db *database.DB) error {
//	    id, err := db.Insert(ctx, "users", database.Row{"email": "a@x.com"}, database.InsertOptions{})
//	    if err != nil {
//	        return err
//	    }
//	    rows, err := db.Select(ctx, "users", database.SelectOptions{
//	        Where: database.Where{"id": id},
//	    })
//	    ...
//	})
//
// WAL mode and the busy timeout let independent instances share one file.
//
// Error Kinds:
//
// Failures are classified so collaborators can map them to their own surface:
//   - ErrValidation: bad identifier, empty insert, unguarded full-table mutation
//   - ErrIntegrity: UNIQUE / NOT NULL / FOREIGN KEY / CHECK violation
//   - ErrQuery: any other backend failure (syntax, missing table, ...)
//   - ErrConnection: the store could not be opened
//
// Migration Strategy:
//
// Migrations are embedded .up.sql/.down.sql pairs applied in version order,
// each in its own transaction, recorded in schema_migrations.
package database
