// Package audioio is the interview client's microphone and speaker.
//
// Capture yields float32 frames for the VAD; playback takes PCM16 chunks
// decoded from the interviewer's WAV replies. Real devices go through
// PortAudio when built with the "portaudio" tag; the mock backend stands in
// everywhere else, including tests.
package audioio

import (
	"fmt"
	"time"
)

// Backend names an audio implementation.
type Backend string

const (
	BackendAuto      Backend = "auto" // portaudio when compiled in, else mock
	BackendPortAudio Backend = "portaudio"
	BackendMock      Backend = "mock"
)

// Config describes the device format. The backend expects 16 kHz mono, and
// a 30 ms frame is one of the frame sizes the WebRTC VAD accepts.
type Config struct {
	Backend        Backend       `yaml:"backend" json:"backend"`
	SampleRate     int           `yaml:"sample_rate" json:"sample_rate"`
	Channels       int           `yaml:"channels" json:"channels"`
	BufferDuration time.Duration `yaml:"buffer_duration" json:"buffer_duration"` // capture frame and playback chunk
	Device         string        `yaml:"device" json:"device"`                   // empty selects the system default
}

// DefaultConfig returns 16 kHz mono in 30 ms frames.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     16000,
		Channels:       1,
		BufferDuration: 30 * time.Millisecond,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	case c.Channels <= 0:
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	case c.BufferDuration <= 0:
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	switch c.Backend {
	case "", BackendAuto, BackendPortAudio, BackendMock:
		return nil
	default:
		return fmt.Errorf("unsupported backend: %s", c.Backend)
	}
}

// BufferSize is the number of sample frames per buffer, per channel.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}
