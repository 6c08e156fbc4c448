// Package vad turns captured audio into speech-start, audio-chunk and
// speech-end events, and converts frames to the PCM16 the backend expects.
package vad

import "fmt"

// Engine names.
const (
	EngineAuto   = "auto"
	EngineRMS    = "rms"
	EngineWebRTC = "webrtc"
)

// Config configures detection. Frame counts are in capture frames, so with the
// default 30 ms capture a StartFrames of 3 needs ~90 ms of voice to trigger.
type Config struct {
	// Engine is "auto", "rms" or "webrtc".
	Engine string `yaml:"engine" json:"engine"`

	// Mode is the WebRTC aggressiveness, 0-3.
	Mode int `yaml:"mode" json:"mode"`

	// SpeechThreshold and SilenceThreshold are RMS levels for the energy engine.
	SpeechThreshold  float64 `yaml:"speech_threshold" json:"speech_threshold"`
	SilenceThreshold float64 `yaml:"silence_threshold" json:"silence_threshold"`

	// StartFrames is the number of consecutive voiced frames that start an utterance.
	StartFrames int `yaml:"start_frames" json:"start_frames"`

	// EndFrames is the number of consecutive unvoiced frames that end it.
	EndFrames int `yaml:"end_frames" json:"end_frames"`
}

// DefaultConfig returns defaults tuned for 16 kHz, 30 ms frames.
func DefaultConfig() Config {
	return Config{
		Engine:           EngineAuto,
		Mode:             2,
		SpeechThreshold:  0.015,
		SilenceThreshold: 0.008,
		StartFrames:      3,
		EndFrames:        25,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Engine {
	case "", EngineAuto, EngineRMS, EngineWebRTC:
	default:
		return fmt.Errorf("unknown engine %q", c.Engine)
	}
	if c.Mode < 0 || c.Mode > 3 {
		return fmt.Errorf("mode must be 0-3, got %d", c.Mode)
	}
	if c.SpeechThreshold <= 0 {
		return fmt.Errorf("speech_threshold must be positive, got %v", c.SpeechThreshold)
	}
	if c.StartFrames < 1 || c.EndFrames < 1 {
		return fmt.Errorf("start_frames and end_frames must be at least 1")
	}
	return nil
}
