// Package pindriver abstracts the digital output lines that switches are wired to.
//
// A Backend is chosen once at startup (hardware or simulation) and hands out one
// Driver per pin. Nothing above this package branches on which backend is in use.
package pindriver

type (
	// Driver drives a single digital output line.
	Driver interface {
		// Write sets the logical level of the line (true = on). It returns once
		// the write has been issued.
		Write(level bool) error
		// Read returns the last logical level written by this process.
		Read() bool
		// Pin returns the BCM line number.
		Pin() int
		Close() error
	}

	// Backend opens drivers for pins on one hardware interface.
	Backend interface {
		Name() string
		Open(pin int, polarity Polarity) (Driver, error)
		Close() error
	}
)

// Polarity represents the electrical polarity of an output line.
type Polarity int

const (
	ActiveHigh Polarity = iota
	ActiveLow
)

// String returns a string representation of the polarity
func (p Polarity) String() string {
	switch p {
	case ActiveHigh:
		return "active-high"
	case ActiveLow:
		return "active-low"
	default:
		return "unknown"
	}
}

// electrical maps a logical level to the raw line value for this polarity.
func (p Polarity) electrical(level bool) int {
	if level == (p == ActiveHigh) {
		return 1
	}
	return 0
}

// logical maps a raw line value back to a logical level.
func (p Polarity) logical(value int) bool {
	if p == ActiveHigh {
		return value != 0
	}
	return value == 0
}
