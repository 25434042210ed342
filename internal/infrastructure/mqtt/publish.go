package mqtt

import (
	"encoding/json"
	"fmt"
	"time"
)

// Maximum payload size for MQTT messages (1MB).
const maxPayloadSize = 1 << 20

// Change operations carried in ChangeEvent.Op.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// ChangeEvent is the payload published after a successful row mutation.
type ChangeEvent struct {
	Table     string    `json:"table"`
	Op        string    `json:"op"`
	ID        any       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publish sends a message to the specified MQTT topic.
//
// Parameters:
//   - topic: The topic to publish to (e.g., "sqlgate/changes/users")
//   - payload: The message payload (typically JSON, max 1MB)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message for new subscribers
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// PublishChange publishes a ChangeEvent to {prefix}/changes/{table} with the
// configured QoS. Change events are not retained.
func (c *Client) PublishChange(table, op string, id any) error {
	payload, err := encodeChange(table, op, id)
	if err != nil {
		return err
	}
	return c.Publish(c.topics.Changes(table), payload, byte(c.cfg.QoS), false)
}

func encodeChange(table, op string, id any) ([]byte, error) {
	payload, err := json.Marshal(ChangeEvent{
		Table:     table,
		Op:        op,
		ID:        id,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding change event: %w", ErrPublishFailed, err)
	}
	return payload, nil
}
