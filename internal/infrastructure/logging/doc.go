// Package logging provides structured logging for sqlgate.
//
// It wraps log/slog so every entry carries the service name and version:
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Level-based filtering (debug, info, warn, error)
//
// Configuration (config.yaml):
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Debug level additionally logs every SQL statement and its bound values
// when database.log_statements is set. Never enable that in production
// against tables holding secrets.
package logging
