package pindriver

import (
	"fmt"
	"log"
	"sync"
)

// SimulatedPin is a no-op driver that records the last written level.
type SimulatedPin struct {
	pin    int
	level  bool
	writes int
	closed bool
	mutex  sync.RWMutex
}

// SimulatedBackend hands out SimulatedPins and remembers them for inspection.
type SimulatedBackend struct {
	pins  map[int]*SimulatedPin
	mutex sync.Mutex
}

// NewSimulatedBackend creates a backend that touches no hardware.
func NewSimulatedBackend() *SimulatedBackend {
	return &SimulatedBackend{
		pins: make(map[int]*SimulatedPin),
	}
}

func (b *SimulatedBackend) Name() string {
	return BackendSimulated
}

// Open returns a simulated driver for pin. Polarity has no meaning without
// a physical line and is ignored.
func (b *SimulatedBackend) Open(pin int, _ Polarity) (Driver, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if _, exists := b.pins[pin]; exists {
		return nil, fmt.Errorf("%w: %d", ErrPinInUse, pin)
	}

	log.Printf("simulated pin %d initialized", pin)
	p := &SimulatedPin{pin: pin}
	b.pins[pin] = p
	return p, nil
}

// Pin returns the simulated driver for a pin number, or nil if it was never opened.
func (b *SimulatedBackend) Pin(pin int) *SimulatedPin {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.pins[pin]
}

func (b *SimulatedBackend) Close() error {
	return nil
}

// Write records the level.
func (p *SimulatedPin) Write(level bool) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.closed {
		return fmt.Errorf("%w: pin %d", ErrClosed, p.pin)
	}
	p.level = level
	p.writes++
	return nil
}

func (p *SimulatedPin) Read() bool {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.level
}

func (p *SimulatedPin) Pin() int {
	return p.pin
}

// Writes returns the number of writes issued to the pin.
func (p *SimulatedPin) Writes() int {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.writes
}

func (p *SimulatedPin) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.closed = true
	return nil
}

// Closed reports whether the driver has been released.
func (p *SimulatedPin) Closed() bool {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.closed
}

func (p *SimulatedPin) String() string {
	return fmt.Sprintf("sim:%d", p.pin)
}
