package audioio

import (
	"errors"
	"fmt"
)

// Sentinel errors for the audioio package.
var (
	// ErrBackendUnavailable indicates the backend was not compiled in.
	ErrBackendUnavailable = errors.New("audioio: backend not available in this build")

	// ErrPermissionDenied indicates the OS refused access to the device.
	ErrPermissionDenied = errors.New("audioio: device permission denied")

	// ErrNoDevice indicates no matching capture or playback device exists.
	ErrNoDevice = errors.New("audioio: no such device")
)

// DeviceError reports a capture or playback device failure. These are not
// recoverable without user action (plugging in a mic, granting permission).
type DeviceError struct {
	// Backend is the backend that failed.
	Backend string

	// Op is the operation that failed ("open", "start", "read", ...).
	Op string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *DeviceError) Error() string {
	return fmt.Sprintf("audioio [%s]: %s: %v", e.Backend, e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *DeviceError) Unwrap() error {
	return e.Err
}

// NewDeviceError wraps err as a DeviceError.
func NewDeviceError(backend, op string, err error) *DeviceError {
	return &DeviceError{Backend: backend, Op: op, Err: err}
}

// IsDeviceError returns true if err is or wraps a DeviceError.
func IsDeviceError(err error) bool {
	var de *DeviceError
	return errors.As(err, &de)
}
