package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// StatusKeyIPAddress is the status key carrying the Wi-Fi IPv4 address.
const StatusKeyIPAddress = "IP_ADDRESS"

// ErrEmptyKey is returned when a status message is built without a key.
var ErrEmptyKey = errors.New("status key is empty")

// StatusMessage is a single key/value status update. On the wire it is
// nested under "status": {"status":{"IP_ADDRESS":"10.0.0.10"}}.
type StatusMessage struct {
	Key   string
	Value string
}

// NewStatusMessage validates and builds a status message.
func NewStatusMessage(key, value string) (StatusMessage, error) {
	if key == "" {
		return StatusMessage{}, ErrEmptyKey
	}
	return StatusMessage{Key: key, Value: value}, nil
}

// MarshalJSON implements json.Marshaler.
func (m StatusMessage) MarshalJSON() ([]byte, error) {
	if m.Key == "" {
		return nil, ErrEmptyKey
	}
	return json.Marshal(map[string]map[string]string{
		"status": {m.Key: m.Value},
	})
}

// UnmarshalJSON implements json.Unmarshaler. Exactly one status key is accepted.
func (m *StatusMessage) UnmarshalJSON(data []byte) error {
	var wire struct {
		Status map[string]string `json:"status"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if len(wire.Status) != 1 {
		return fmt.Errorf("status object must hold exactly one key, got %d", len(wire.Status))
	}
	for k, v := range wire.Status {
		if k == "" {
			return ErrEmptyKey
		}
		m.Key, m.Value = k, v
	}
	return nil
}

// StatusEntry stores a published status message. Node is empty for
// messages published locally and holds the sender's id for relayed ones.
type StatusEntry struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Node      string        `json:"node,omitempty"`
	Message   StatusMessage `json:"message"`
}

// Local reports whether the entry was published by this node.
func (e StatusEntry) Local() bool {
	return e.Node == ""
}
