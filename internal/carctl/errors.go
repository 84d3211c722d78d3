package carctl

import "errors"

var (
	ErrUsage          = errors.New("usage")
	ErrUnknownCommand = errors.New("unknown command")
	ErrAPI            = errors.New("API error")
)
