package wav

import (
	"errors"
	"fmt"
)

var (
	// ErrShortFragment indicates a fragment smaller than a WAV header.
	ErrShortFragment = errors.New("wav: fragment shorter than header")

	// ErrNotWAV indicates missing RIFF/WAVE/fmt/data markers.
	ErrNotWAV = errors.New("wav: not a RIFF/WAVE container")

	// ErrUnsupportedFormat indicates a non-PCM16 encoding.
	ErrUnsupportedFormat = errors.New("wav: unsupported format")
)

// DecodeError reports a malformed fragment. Index is the fragment's position
// in its batch, or -1 for a standalone buffer.
type DecodeError struct {
	Index int
	Len   int
	Err   error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("wav: decode (%d bytes): %v", e.Len, e.Err)
	}
	return fmt.Sprintf("wav: decode fragment %d (%d bytes): %v", e.Index, e.Len, e.Err)
}

// Unwrap returns the underlying cause.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError returns true if err is or wraps a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
