package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/sqlgate/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
)

// Client records sqlgate usage metrics in InfluxDB.
//
// Points are buffered by the non-blocking write API and flushed in batches,
// so recording a metric never waits on the network. A nil or closed Client
// silently drops points, letting callers hold one unconditionally.
//
// All methods are safe for concurrent use.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	open     atomic.Bool

	errMu   sync.Mutex
	onError func(err error)
}

// Connect creates a client for the configured org and bucket and verifies
// the server answers a ping before returning.
//
// Parameters:
//   - cfg: influxdb section of config.yaml
//
// Returns:
//   - *Client: Ready for writes
//   - error: ErrDisabled when cfg.Enabled is false, ErrConnectionFailed when
//     the ping fails
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, writeOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := ping(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
	}
	c.open.Store(true)
	go c.forwardErrors(c.writeAPI.Errors())
	return c, nil
}

// writeOptions applies batch settings, substituting defaults for
// non-positive values.
func writeOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch := uint(defaultBatchSize)
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize) // #nosec G115 -- positive
	}
	interval := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		interval = time.Duration(cfg.FlushInterval) * time.Second
	}
	return influxdb2.DefaultOptions().
		SetBatchSize(batch).
		SetFlushInterval(uint(interval.Milliseconds())) // #nosec G115 -- positive
}

func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if !healthy {
		return fmt.Errorf("ping: server not healthy")
	}
	return nil
}

// forwardErrors hands asynchronous write failures to the error callback.
// It returns when the write API closes the channel.
func (c *Client) forwardErrors(errs <-chan error) {
	for err := range errs {
		c.errMu.Lock()
		callback := c.onError
		c.errMu.Unlock()
		if callback != nil {
			callback(err)
		}
	}
}

// Close flushes buffered points and releases the client. Later writes are
// dropped. Calling Close more than once is safe.
func (c *Client) Close() error {
	if c == nil || !c.open.CompareAndSwap(true, false) {
		return nil
	}
	c.writeAPI.Flush()
	c.client.Close()
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := ping(ctx, c.client); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// IsConnected reports whether the client is open. A nil client is not.
func (c *Client) IsConnected() bool {
	return c != nil && c.open.Load()
}

// SetOnError registers the callback for asynchronous write failures.
func (c *Client) SetOnError(callback func(err error)) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	c.onError = callback
}

// Flush blocks until buffered points are sent. No-op once closed.
func (c *Client) Flush() {
	if c.IsConnected() {
		c.writeAPI.Flush()
	}
}
