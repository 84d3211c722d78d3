package store

import "errors"

var (
	ErrNotFound      = errors.New("unknown switch")
	ErrHardwareFault = errors.New("hardware fault")
	ErrShutdown      = errors.New("switch store is shut down")
)
