//go:build cgo

package vad

import (
	"fmt"

	webrtcvad "github.com/maxhawkins/go-webrtc-vad"
)

const webrtcAvailable = true

// WebRTCEngine wraps the WebRTC voice activity detector. Frames are split into
// 10 ms blocks; a frame counts as speech when most of its blocks do.
type WebRTCEngine struct {
	vad  *webrtcvad.VAD
	mode int
}

// NewWebRTCEngine creates a detector with aggressiveness mode 0 (least) to 3 (most).
func NewWebRTCEngine(mode int) (Engine, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("vad: webrtc init: %w", err)
	}
	if err := v.SetMode(mode); err != nil {
		return nil, fmt.Errorf("vad: webrtc mode %d: %w", mode, err)
	}
	return &WebRTCEngine{vad: v, mode: mode}, nil
}

// IsSpeech implements Engine.
func (e *WebRTCEngine) IsSpeech(frame []float32, sampleRate int) (bool, error) {
	switch sampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return false, fmt.Errorf("%w: %d", ErrUnsupportedRate, sampleRate)
	}

	block := sampleRate / 100
	pcm := Float32ToPCM16LE(frame)
	var voiced, total int
	for off := 0; off+block*2 <= len(pcm); off += block * 2 {
		active, err := e.vad.Process(sampleRate, pcm[off:off+block*2])
		if err != nil {
			return false, fmt.Errorf("vad: webrtc process: %w", err)
		}
		total++
		if active {
			voiced++
		}
	}
	return total > 0 && voiced*2 > total, nil
}

// Reset implements Engine. The detector keeps no state between frames that
// the adapter depends on.
func (e *WebRTCEngine) Reset() {}

// Name implements Engine.
func (e *WebRTCEngine) Name() string { return "webrtc" }
