package mqtt

import (
	"context"
	"fmt"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/sqlgate/internal/infrastructure/config"
)

// Logger receives connection events. *logging.Logger satisfies it.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Client publishes change events and a retained status to one broker.
// Safe for concurrent use.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	topics Topics

	connected atomic.Bool
	logger    atomic.Pointer[Logger]
}

// Connect dials the broker and waits for the first connection.
//
// The client registers a Last Will that marks sqlgate offline, reconnects
// on its own after a dropped connection, and republishes the retained
// "online" status every time it (re)connects.
//
// Parameters:
//   - cfg: mqtt section of config.yaml
//
// Returns:
//   - *Client: connected client
//   - error: ErrInvalidQoS, or ErrConnectionFailed on timeout or refusal
func Connect(cfg config.MQTTConfig) (*Client, error) {
	if cfg.QoS < 0 || cfg.QoS > maxQoS {
		return nil, ErrInvalidQoS
	}

	c := &Client{cfg: cfg, topics: Topics{Prefix: cfg.TopicPrefix}}

	opts := buildClientOptions(cfg)
	configureLWT(opts, c.topics, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.onConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.onConnectionLost(err) })
	c.client = pahomqtt.NewClient(opts)

	token := c.client.Connect()
	switch {
	case !token.WaitTimeout(connectTimeout):
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	case token.Error() != nil:
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, token.Error())
	}

	// onConnect may not have run yet.
	c.connected.Store(true)
	return c, nil
}

func (c *Client) publishStatus(status, reason string) pahomqtt.Token {
	return c.client.Publish(c.topics.SystemStatus(), byte(c.cfg.QoS), true,
		statusPayload(status, c.cfg.Broker.ClientID, reason))
}

func (c *Client) onConnect() {
	c.connected.Store(true)
	c.publishStatus("online", "")
	if log := c.log(); log != nil {
		log.Info("mqtt connected", "broker", c.cfg.Broker.Host)
	}
}

func (c *Client) onConnectionLost(err error) {
	c.connected.Store(false)
	if log := c.log(); log != nil {
		log.Warn("mqtt connection lost", "error", err)
	}
}

// Close announces a graceful "offline" and disconnects.
// A nil or unconnected client is a no-op.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	if c.IsConnected() {
		c.publishStatus("offline", "graceful_shutdown").WaitTimeout(publishTimeout)
	}
	c.client.Disconnect(disconnectQuiesce)
	c.connected.Store(false)
	return nil
}

// HealthCheck returns ErrNotConnected while the broker is unreachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
// A nil client is never connected.
func (c *Client) IsConnected() bool {
	return c != nil && c.client != nil && c.connected.Load() && c.client.IsConnected()
}

// Topics returns the topic builder for this client's prefix.
func (c *Client) Topics() Topics {
	return c.topics
}

// SetLogger routes connection events to logger.
func (c *Client) SetLogger(logger Logger) {
	c.logger.Store(&logger)
}

func (c *Client) log() Logger {
	if p := c.logger.Load(); p != nil {
		return *p
	}
	return nil
}
