package registry

import (
	"errors"
	"fmt"
)

// ErrStartupConfig is wrapped by every validation failure; it is fatal.
var ErrStartupConfig = errors.New("invalid switch configuration")

// Validation errors
var (
	ErrNoSwitches   = fmt.Errorf("%w: no switches configured", ErrStartupConfig)
	ErrEmptyID      = fmt.Errorf("%w: switch id must not be empty", ErrStartupConfig)
	ErrInvalidPin   = fmt.Errorf("%w: pin number must not be negative", ErrStartupConfig)
	ErrDuplicateID  = fmt.Errorf("%w: duplicate switch id", ErrStartupConfig)
	ErrDuplicatePin = fmt.Errorf("%w: duplicate pin", ErrStartupConfig)
)

// Lookup errors
var (
	ErrUnknownSwitch = errors.New("unknown switch")
)
