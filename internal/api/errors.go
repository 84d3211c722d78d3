package api

import "errors"

// Configuration errors
var (
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Request errors
var (
	ErrInvalidJSON     = errors.New("invalid JSON format")
	ErrInvalidState    = errors.New("state must be 'on', 'off' or 'toggle'")
	ErrInvalidDuration = errors.New("duration must be positive")
	ErrDurationTooLong = errors.New("duration must not exceed 86400 seconds")
	ErrDurationState   = errors.New("duration is only valid with state 'on'")
	ErrContentType     = errors.New("content type must be application/json")
)

// Server operation errors
var (
	ErrServerShutdownFailed = errors.New("server shutdown failed")
)
