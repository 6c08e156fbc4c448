package protocol

import (
	"errors"
	"testing"
)

func TestEncodeUserAudioEnd(t *testing.T) {
	tests := []struct {
		name string
		msg  UserAudioEnd
		want string
	}{
		{
			name: "natural end",
			msg:  UserAudioEnd{},
			want: `{"type":"USER_AUDIO_END","transcription":""}`,
		},
		{
			name: "forced",
			msg:  UserAudioEnd{Forced: true},
			want: `{"type":"USER_AUDIO_END","transcription":"","forced":true}`,
		},
		{
			name: "final with transcription",
			msg:  UserAudioEnd{Transcription: "done", Final: true},
			want: `{"type":"USER_AUDIO_END","transcription":"done","final":true}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.msg)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Encode() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEncode_Pointer(t *testing.T) {
	got, err := Encode(&UserAudioEnd{Forced: true})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	c, err := Decode(got)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if m := c.(UserAudioEnd); !m.Forced {
		t.Errorf("expected forced, got %+v", m)
	}

	var nilMsg *UserAudioEnd
	if _, err := Encode(nilMsg); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed for nil, got %v", err)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr error
		want    UserAudioEnd
	}{
		{"valid", `{"type":"USER_AUDIO_END","transcription":"hi","final":true}`, nil, UserAudioEnd{Transcription: "hi", Final: true}},
		{"unknown type", `{"type":"HELLO"}`, ErrUnknownType, UserAudioEnd{}},
		{"missing type", `{"transcription":""}`, ErrMalformed, UserAudioEnd{}},
		{"missing transcription", `{"type":"USER_AUDIO_END"}`, ErrMalformed, UserAudioEnd{}},
		{"not json", `USER_AUDIO_END`, ErrMalformed, UserAudioEnd{}},
		{"wrong field type", `{"type":"USER_AUDIO_END","transcription":"","forced":"yes"}`, ErrMalformed, UserAudioEnd{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Decode([]byte(tt.in))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if c.ControlType() != TypeUserAudioEnd {
				t.Errorf("type = %s", c.ControlType())
			}
			if got := c.(UserAudioEnd); got != tt.want {
				t.Errorf("Decode() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeServerEvent(t *testing.T) {
	ev, err := DecodeServerEvent([]byte(`{"type":"error","message":"session expired"}`))
	if err != nil {
		t.Fatalf("DecodeServerEvent() error = %v", err)
	}
	if ev.Type != "error" || ev.Message != "session expired" {
		t.Errorf("unexpected event %+v", ev)
	}

	if _, err := DecodeServerEvent([]byte(`{}`)); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}

func TestMessage(t *testing.T) {
	msg, err := NewMessage(TypeAvatar, AvatarData{Viseme: 10, Morph: "viseme_aa", Weight: 0.4, Blink: true})
	if err != nil {
		t.Fatalf("NewMessage() error = %v", err)
	}
	if msg.Timestamp == 0 {
		t.Error("timestamp should be set")
	}

	data, err := msg.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}

	parsed, err := ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	if parsed.Type != TypeAvatar {
		t.Errorf("type = %s, want avatar", parsed.Type)
	}

	var avatar AvatarData
	if err := parsed.ParseData(&avatar); err != nil {
		t.Fatalf("ParseData() error = %v", err)
	}
	if avatar.Morph != "viseme_aa" || !avatar.Blink {
		t.Errorf("unexpected data %+v", avatar)
	}

	empty, _ := NewMessage(TypeStatus, nil)
	if empty.Data != nil {
		t.Error("nil data should stay empty")
	}
	var s StatusData
	if err := empty.ParseData(&s); err != nil {
		t.Errorf("ParseData on empty message: %v", err)
	}

	if _, err := ParseMessage([]byte("{")); err == nil {
		t.Error("expected parse error")
	}
}
