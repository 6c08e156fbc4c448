package transport

import (
	"errors"
	"fmt"
)

// Sentinel errors for the transport package.
var (
	// ErrNotOpen is returned when sending while the socket is not open.
	ErrNotOpen = errors.New("transport: socket not open")

	// ErrClosed is returned when using a socket after Close.
	ErrClosed = errors.New("transport: socket closed")

	// ErrReconnectsExhausted is reported when the reconnect bound is reached.
	ErrReconnectsExhausted = errors.New("transport: reconnect attempts exhausted")
)

// TransportError reports a frame that could not be sent. The frame is dropped;
// the session keeps running.
type TransportError struct {
	// Op is "send_pcm" or "send_control".
	Op string

	// State is the socket state at the time of the send.
	State State

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s dropped (state %s): %v", e.Op, e.State, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError returns true if err is or wraps a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
