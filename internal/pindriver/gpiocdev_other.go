//go:build !linux

package pindriver

import "fmt"

// GPIOCDevBackend is not available on non-Linux platforms.
type GPIOCDevBackend struct{}

// NewGPIOCDevBackend always fails on non-Linux platforms.
func NewGPIOCDevBackend(chipName string) (*GPIOCDevBackend, error) {
	return nil, fmt.Errorf("%w: %s: gpio character devices require Linux", ErrHardwareUnavailable, chipName)
}

func (b *GPIOCDevBackend) Name() string {
	return BackendGPIOCDev
}

func (b *GPIOCDevBackend) Open(pin int, _ Polarity) (Driver, error) {
	return nil, fmt.Errorf("%w: line %d", ErrHardwareUnavailable, pin)
}

func (b *GPIOCDevBackend) Close() error {
	return nil
}
