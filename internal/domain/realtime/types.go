// internal/domain/realtime/types.go
package realtime

import (
	"encoding/json"
	"time"
)

// ChannelType identifies a websocket subscription channel.
type ChannelType string

const (
	ChannelAttention ChannelType = "attention"
	ChannelSystem    ChannelType = "system"
)

// EventType identifies a websocket message.
type EventType string

const (
	EventTypeConnected    EventType = "connected"
	EventTypeDisconnected EventType = "disconnected"
	EventTypeSubscribe    EventType = "subscribe"
	EventTypeUnsubscribe  EventType = "unsubscribe"
	EventTypeError        EventType = "error"
	EventTypePing         EventType = "ping"
	EventTypePong         EventType = "pong"

	EventTypeAttentionSnapshot EventType = "attention_snapshot"
	EventTypeAttentionAdded    EventType = "attention_added"
	EventTypeAttentionRemoved  EventType = "attention_removed"
	EventTypeAttentionResorted EventType = "attention_resorted"
	EventTypeSystemAlert       EventType = "system_alert"
)

// WSMessage is the envelope for every websocket frame.
type WSMessage struct {
	Type      EventType       `json:"type"`
	Data      interface{}     `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Raw       json.RawMessage `json:"-"`
}

// NewMessage builds a timestamped message.
func NewMessage(eventType EventType, data interface{}) *WSMessage {
	return &WSMessage{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// ParseMessage decodes an inbound frame.
func ParseMessage(data []byte) (*WSMessage, error) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	msg.Raw = data
	return &msg, nil
}

// ToJSON encodes a message for the wire.
func (m *WSMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SubscribeRequest asks for delivery on the listed channels.
type SubscribeRequest struct {
	Channels []ChannelType `json:"channels"`
}

// UnsubscribeRequest stops delivery on the listed channels.
type UnsubscribeRequest struct {
	Channels []ChannelType `json:"channels"`
}

// ErrorData is the payload of an error frame.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// AttentionEntry is one row of a viewer's "needs attention" list.
type AttentionEntry struct {
	ProspectID    int64      `json:"prospect_id"`
	DisplayName   string     `json:"display_name"`
	Phone         string     `json:"phone"`
	ExecutiveID   *int64     `json:"executive_id,omitempty"`
	UnitID        *int64     `json:"coordination_unit_id,omitempty"`
	CoveredBackup bool       `json:"covered_backup"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}

// AttentionEvent is an incremental change to a viewer's list.
type AttentionEvent struct {
	Type  EventType       `json:"type"`
	Entry *AttentionEntry `json:"entry,omitempty"`
	// List carries the full ordered list on snapshot and resort events.
	List []AttentionEntry `json:"list,omitempty"`
}

// SystemAlertData is an operator broadcast to every connected client.
type SystemAlertData struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
}
