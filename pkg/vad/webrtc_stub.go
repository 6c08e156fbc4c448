//go:build !cgo

package vad

const webrtcAvailable = false

// NewWebRTCEngine is unavailable without cgo.
func NewWebRTCEngine(mode int) (Engine, error) {
	return nil, ErrEngineUnavailable
}
