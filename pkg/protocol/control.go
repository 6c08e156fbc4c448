// Package protocol defines the messages exchanged with the interview backend
// over the session WebSocket, and the push messages sent to the avatar renderer.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ControlType discriminates control frames sent as WebSocket text messages.
type ControlType string

const (
	// TypeUserAudioEnd closes the user's turn.
	TypeUserAudioEnd ControlType = "USER_AUDIO_END"
)

var (
	// ErrUnknownType indicates a control frame with an unrecognized type.
	ErrUnknownType = errors.New("protocol: unknown control type")

	// ErrMalformed indicates a control frame that is not valid JSON or misses fields.
	ErrMalformed = errors.New("protocol: malformed control frame")
)

// Control is implemented by every outbound control frame.
type Control interface {
	ControlType() ControlType
}

// UserAudioEnd tells the backend the user's turn is over.
// Forced marks an end not detected by VAD (silence net, explicit finish);
// Final marks the last turn of the session.
type UserAudioEnd struct {
	Transcription string
	Forced        bool
	Final         bool
}

// ControlType implements Control.
func (UserAudioEnd) ControlType() ControlType { return TypeUserAudioEnd }

type userAudioEndWire struct {
	Type          ControlType `json:"type"`
	Transcription *string     `json:"transcription"`
	Forced        bool        `json:"forced,omitempty"`
	Final         bool        `json:"final,omitempty"`
}

// Encode marshals a control frame with its type tag.
func Encode(c Control) ([]byte, error) {
	switch m := c.(type) {
	case UserAudioEnd:
		return json.Marshal(userAudioEndWire{
			Type:          TypeUserAudioEnd,
			Transcription: &m.Transcription,
			Forced:        m.Forced,
			Final:         m.Final,
		})
	case *UserAudioEnd:
		if m == nil {
			return nil, fmt.Errorf("%w: nil message", ErrMalformed)
		}
		return Encode(*m)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, c)
	}
}

// Decode parses a control frame, validating the type tag.
func Decode(data []byte) (Control, error) {
	var head struct {
		Type ControlType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch head.Type {
	case TypeUserAudioEnd:
		var w userAudioEndWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if w.Transcription == nil {
			return nil, fmt.Errorf("%w: missing transcription", ErrMalformed)
		}
		return UserAudioEnd{Transcription: *w.Transcription, Forced: w.Forced, Final: w.Final}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, head.Type)
	}
}

// ServerEvent is an informational text frame from the backend
// (e.g. {"type":"error","message":"..."}). The pipeline only logs these.
type ServerEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// DecodeServerEvent parses an inbound text frame.
func DecodeServerEvent(data []byte) (ServerEvent, error) {
	var ev ServerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ServerEvent{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if ev.Type == "" {
		return ServerEvent{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return ev, nil
}
