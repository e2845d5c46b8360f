package websocket

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/frostdev-ops/pma-tvoverlay/internal/core/coordinator"
	"github.com/frostdev-ops/pma-tvoverlay/internal/core/registry"
)

// Message types for WebSocket communication
const (
	MessageTypeConnection         = "connection"
	MessageTypeHeartbeat          = "heartbeat"
	MessageTypePong               = "pong"
	MessageTypeDeviceState        = "device_state"
	MessageTypeNotificationIDs    = "notification_ids"
	MessageTypeRegistration       = "registration"
	MessageTypeSubscriptionUpdate = "subscription_update"

	// Client requests
	MessageTypePing        = "ping"
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"
)

// Message represents a WebSocket message
type Message struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// ToJSON converts the message to JSON bytes
func (m Message) ToJSON() []byte {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	data, _ := json.Marshal(m)
	return data
}

// UnmarshalJSON accepts RFC3339 timestamps as well as unix seconds or
// milliseconds, given as a number or a string. A missing timestamp becomes
// the current time.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type      string                 `json:"type"`
		Data      map[string]interface{} `json:"data"`
		Timestamp json.RawMessage        `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Type = raw.Type
	m.Data = raw.Data
	m.Timestamp = parseTimestamp(raw.Timestamp)
	return nil
}

func parseTimestamp(raw json.RawMessage) time.Time {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Now().UTC()
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		text = string(raw)
	}
	if t, err := time.Parse(time.RFC3339Nano, text); err == nil {
		return t.UTC()
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		// Values past 1e12 are milliseconds
		if n > 1e12 {
			return time.UnixMilli(n).UTC()
		}
		return time.Unix(n, 0).UTC()
	}
	return time.Now().UTC()
}

// DeviceStateMessage creates a message for a coordinator update
func DeviceStateMessage(entryID string, state coordinator.State) Message {
	return Message{
		Type: MessageTypeDeviceState,
		Data: map[string]interface{}{
			"entry_id": entryID,
			"state":    state,
		},
	}
}

// NotificationIDsMessage creates a message for a change of the visible
// fixed notification ids
func NotificationIDsMessage(entryID string, ids []string) Message {
	if ids == nil {
		ids = []string{}
	}
	return Message{
		Type: MessageTypeNotificationIDs,
		Data: map[string]interface{}{
			"entry_id":         entryID,
			"notification_ids": ids,
			"count":            len(ids),
		},
	}
}

// RegistrationMessage creates a message for an added, reconfigured or
// removed registration
func RegistrationMessage(event string, reg registry.Registration) Message {
	return Message{
		Type: MessageTypeRegistration,
		Data: map[string]interface{}{
			"entry_id":     reg.ID,
			"event":        event,
			"registration": reg,
		},
	}
}
