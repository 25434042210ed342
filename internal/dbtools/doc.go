// Package dbtools exposes a SQLite database to agents as MCP tools.
//
// Tools:
//   - list_tables: user tables in the configured schema
//   - get_table_schema: rendered CREATE TABLE plus sample rows per table
//   - sql_query_checker: the read-only gate (SELECT/WITH only, no semicolons)
//   - sql_db_query: runs a query, returning JSON rows or a Markdown table
//   - create_user, list_users, get_user, update_user: users resource CRUD
//
// Every tool call opens its own database handle through database.Use, so
// concurrent MCP sessions never share a connection. Calls are audited and,
// when configured, recorded as InfluxDB points.
//
// Security Considerations:
//   - With mcp.read_only set, sql_db_query refuses anything the checker
//     rejects. The check is lexical, so also give the server a database file
//     it may safely read.
//   - The HTTP transport is mounted behind the API's bearer authentication.
//
// Usage:
//
//	srv := dbtools.New(dbtools.Options{Database: dbCfg, MCP: cfg.MCP, Logger: log})
//	router.Mount(cfg.MCP.Path, srv.HTTPHandler())
//	// or: srv.RunStdio(ctx)
package dbtools
