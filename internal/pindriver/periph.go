package pindriver

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

type (
	// PeriphPin drives a pin through the periph.io registry.
	PeriphPin struct {
		pin      gpio.PinIO
		polarity Polarity
		lineNum  int
		level    bool
		mutex    sync.Mutex
	}

	// PeriphBackend looks pins up by BCM name ("GPIO18").
	PeriphBackend struct{}
)

// NewPeriphBackend initializes the periph.io host drivers.
func NewPeriphBackend() (*PeriphBackend, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%w: failed to init periph: %v", ErrHardwareUnavailable, err)
	}
	return &PeriphBackend{}, nil
}

func (b *PeriphBackend) Name() string {
	return BackendPeriph
}

// Open configures the pin as an output at its off level.
func (b *PeriphBackend) Open(pin int, polarity Polarity) (Driver, error) {
	name := fmt.Sprintf("GPIO%d", pin)
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("%w %s", ErrPinNotFound, name)
	}

	pp := &PeriphPin{
		pin:      p,
		polarity: polarity,
		lineNum:  pin,
	}
	if err := p.Out(pp.gpioLevel(false)); err != nil {
		return nil, fmt.Errorf("failed to set pin %s to output mode: %w", name, err)
	}
	return pp, nil
}

func (b *PeriphBackend) Close() error {
	return nil
}

func (p *PeriphPin) Write(level bool) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if err := p.pin.Out(p.gpioLevel(level)); err != nil {
		return fmt.Errorf("%w %s: %v", ErrWriteFailed, p, err)
	}
	p.level = level
	return nil
}

// Read returns the last commanded level. periph output pins do not
// reliably read back on every platform.
func (p *PeriphPin) Read() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.level
}

func (p *PeriphPin) Pin() int {
	return p.lineNum
}

func (p *PeriphPin) Close() error {
	return nil
}

func (p *PeriphPin) String() string {
	return p.pin.Name()
}

func (p *PeriphPin) gpioLevel(level bool) gpio.Level {
	if p.polarity.electrical(level) == 1 {
		return gpio.High
	}
	return gpio.Low
}
