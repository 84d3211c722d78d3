package pindriver

import (
	"fmt"
	"log"
)

// Backend names accepted by Open.
const (
	BackendAuto      = "auto"
	BackendGPIOCDev  = "gpiocdev"
	BackendPeriph    = "periph"
	BackendSimulated = "simulated"
)

// DefaultChip is the gpiochip used when none is configured.
const DefaultChip = "gpiochip0"

// Options configures backend selection.
type Options struct {
	Chip string
}

// Open selects the backend once, at startup. "auto" tries the GPIO character
// device and falls back to simulated pins if the hardware interface is not
// present. Explicitly named hardware backends never fall back.
func Open(name string, opts Options) (Backend, error) {
	switch name {
	case BackendSimulated:
		log.Printf("using simulated pins")
		return NewSimulatedBackend(), nil
	case BackendGPIOCDev:
		b, err := NewGPIOCDevBackend(opts.Chip)
		if err != nil {
			return nil, err
		}
		return b, nil
	case BackendPeriph:
		b, err := NewPeriphBackend()
		if err != nil {
			return nil, err
		}
		return b, nil
	case BackendAuto, "":
		b, err := NewGPIOCDevBackend(opts.Chip)
		if err != nil {
			log.Printf("gpio hardware not available, using simulated pins: %v", err)
			return NewSimulatedBackend(), nil
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}
}
