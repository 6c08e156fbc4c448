package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies a renderer push message.
type MessageType string

const (
	TypeStatus MessageType = "status" // Status line and turn state
	TypeAvatar MessageType = "avatar" // Viseme and blink sample
	TypeNotify MessageType = "notify" // Terminal user notification
)

// Message is the envelope for messages pushed to the renderer.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a message with the current timestamp.
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var raw json.RawMessage
	if data != nil {
		var err error
		raw, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}
	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      raw,
	}, nil
}

// ParseData unmarshals the message data into v.
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message.
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// StatusData is the session status shown to the user.
type StatusData struct {
	Status     string `json:"status"`
	State      string `json:"state"`
	Turns      int    `json:"turns"`
	ForcedEnds int    `json:"forced_ends"`
}

// AvatarData is one animation sample for the renderer.
type AvatarData struct {
	Viseme int     `json:"viseme"`
	Morph  string  `json:"morph"`
	Weight float64 `json:"weight"`
	Blink  bool    `json:"blink"`
}

// NotifyData is a terminal notification (e.g. feedback generation result).
type NotifyData struct {
	Level   string `json:"level"` // "info", "error"
	Message string `json:"message"`
}
