package vad

import "errors"

var (
	// ErrEngineUnavailable indicates the engine was not compiled into this build.
	ErrEngineUnavailable = errors.New("vad: engine not available in this build")

	// ErrUnsupportedRate indicates the engine cannot process the frame's sample rate.
	ErrUnsupportedRate = errors.New("vad: unsupported sample rate")

	// ErrClosed indicates the adapter has been closed.
	ErrClosed = errors.New("vad: adapter closed")
)
