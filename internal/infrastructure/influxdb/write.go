package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by sqlgate.
const (
	MeasurementToolCalls = "tool_calls"
	MeasurementRequests  = "http_requests"
)

// Tool call outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// WriteToolCall records one MCP tool invocation.
//
// Parameters:
//   - tool: Tool name (e.g., "sql_db_query")
//   - outcome: OutcomeOK or OutcomeError
//   - duration: Wall time spent in the tool
//   - rows: Rows returned or affected, 0 if not applicable
func (c *Client) WriteToolCall(tool, outcome string, duration time.Duration, rows int) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementToolCalls,
		map[string]string{
			"tool":    tool,
			"outcome": outcome,
		},
		map[string]interface{}{
			"duration_ms": durationMillis(duration),
			"rows":        int64(rows),
		},
		time.Now(),
	))
}

// WriteRequest records one HTTP request served by the API.
// route is the matched route pattern, not the raw path, to keep tag
// cardinality bounded.
func (c *Client) WriteRequest(method, route string, status int, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementRequests,
		map[string]string{
			"method": method,
			"route":  route,
			"status": strconv.Itoa(status),
		},
		map[string]interface{}{
			"duration_ms": durationMillis(duration),
		},
		time.Now(),
	))
}

// WritePoint queues an arbitrary point, such as the startup marker written
// by "sqlgate serve".
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

func durationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
