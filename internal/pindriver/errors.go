package pindriver

import "errors"

// Backend selection errors
var (
	ErrUnknownBackend      = errors.New("unknown pin driver backend")
	ErrHardwareUnavailable = errors.New("gpio hardware unavailable")
)

// Pin errors
var (
	ErrPinNotFound       = errors.New("failed to find pin")
	ErrLineRequestFailed = errors.New("failed to request GPIO line")
	ErrPinInUse          = errors.New("pin already opened")
)

// Write errors
var (
	ErrWriteFailed  = errors.New("failed to write pin")
	ErrWriteTimeout = errors.New("pin write timed out")
	ErrClosed       = errors.New("pin driver closed")
)
