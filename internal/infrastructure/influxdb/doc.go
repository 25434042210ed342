// Package influxdb records sqlgate usage metrics in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched non-blocking writes and health monitoring.
//
// # Measurements
//
//   - tool_calls: one point per MCP tool call, tagged by tool and outcome
//   - http_requests: one point per API request, tagged by method, route and status
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteToolCall("list_tables", influxdb.OutcomeOK, elapsed, 3)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines. Write
// methods on a nil or closed client are no-ops, so callers may hold a nil
// *Client when InfluxDB is disabled.
//
// # Error Handling
//
// Write errors surface asynchronously through SetOnError. Connection and
// health check errors are returned directly.
package influxdb
