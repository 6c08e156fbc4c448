package playback

import (
	"errors"
	"fmt"
)

var (
	// ErrClipNotFound indicates a revoked or unknown clip URL.
	ErrClipNotFound = errors.New("playback: clip not found")

	// ErrBusy indicates Play was called while another clip is playing.
	ErrBusy = errors.New("playback: already playing")
)

// PlaybackError reports a clip the sink could not play.
type PlaybackError struct {
	URL string
	Op  string // "load", "decode", "start", "write"
	Err error
}

// Error implements the error interface.
func (e *PlaybackError) Error() string {
	return fmt.Sprintf("playback: %s %s: %v", e.Op, e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *PlaybackError) Unwrap() error {
	return e.Err
}

// IsPlaybackError returns true if err is or wraps a PlaybackError.
func IsPlaybackError(err error) bool {
	var pe *PlaybackError
	return errors.As(err, &pe)
}
