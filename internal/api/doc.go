// Package api implements the sqlgate HTTP REST API.
//
// This package provides:
//   - Users and todos CRUD over the injection-safe data-access layer
//   - Audit trail and runtime metrics endpoints
//   - Bearer authentication (static token or HS256 JWT)
//   - Mounting of the MCP database tools over streamable HTTP
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - TLS support for production deployments
//
// # Architecture
//
// Each request opens its own database.DB via database.Use and closes it on
// return, so concurrent requests never share a connection. Successful writes
// are announced on MQTT and recorded in the audit trail, both best-effort.
//
// # Security
//
// Every route except /health and /api/status requires
// "Authorization: Bearer <token>". The MCP mount may use its own token.
//
// # Graceful Degradation
//
// MQTT, InfluxDB and audit are optional. A nil collaborator is skipped and
// a failing one is logged without failing the request.
package api
