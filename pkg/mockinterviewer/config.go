// Package mockinterviewer is a stand-in for the interview backend. It accepts
// session sockets, counts the caller's audio and answers every
// USER_AUDIO_END with a synthesized reply split into WAV fragments.
package mockinterviewer

import (
	"fmt"
	"time"
)

// Config tunes the mock backend.
type Config struct {
	SampleRate  int           `yaml:"sample_rate" json:"sample_rate"`
	Fragments   int           `yaml:"fragments" json:"fragments"`       // fragments per reply
	ToneHz      float64       `yaml:"tone_hz" json:"tone_hz"`           // carrier of the synthesized voice
	ReplyScale  float64       `yaml:"reply_scale" json:"reply_scale"`   // reply length per second of user audio
	MinReply    time.Duration `yaml:"min_reply" json:"min_reply"`       // reply length for forced or empty turns
	MaxReply    time.Duration `yaml:"max_reply" json:"max_reply"`
	FragmentGap time.Duration `yaml:"fragment_gap" json:"fragment_gap"` // pause between fragments
	Greeting    bool          `yaml:"greeting" json:"greeting"`         // speak first on connect
}

// DefaultConfig returns the default mock settings.
func DefaultConfig() Config {
	return Config{
		SampleRate:  16000,
		Fragments:   3,
		ToneHz:      220,
		ReplyScale:  0.5,
		MinReply:    800 * time.Millisecond,
		MaxReply:    4 * time.Second,
		FragmentGap: 20 * time.Millisecond,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Fragments < 1 {
		return fmt.Errorf("fragments must be at least 1, got %d", c.Fragments)
	}
	if c.MinReply <= 0 || c.MaxReply < c.MinReply {
		return fmt.Errorf("reply range [%v, %v] is invalid", c.MinReply, c.MaxReply)
	}
	if c.ToneHz <= 0 || c.ToneHz >= float64(c.SampleRate)/2 {
		return fmt.Errorf("tone_hz must be below Nyquist, got %v", c.ToneHz)
	}
	return nil
}

// replyLength maps received PCM16 mono bytes to the reply duration.
func (c *Config) replyLength(pcmBytes int) time.Duration {
	heard := time.Duration(pcmBytes/2) * time.Second / time.Duration(c.SampleRate)
	d := time.Duration(float64(heard) * c.ReplyScale)
	if d < c.MinReply {
		return c.MinReply
	}
	if d > c.MaxReply {
		return c.MaxReply
	}
	return d
}
