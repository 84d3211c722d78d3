//go:build linux

package pindriver

import (
	"fmt"
	"log"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

type (
	// GPIOCDevLine drives one line of a GPIO character device.
	GPIOCDevLine struct {
		line     *gpiocdev.Line
		polarity Polarity
		lineNum  int
		level    bool // last commanded logical level
		mutex    sync.Mutex
	}

	// GPIOCDevBackend opens lines on a single gpiochip.
	GPIOCDevBackend struct {
		chip  *gpiocdev.Chip
		lines []*GPIOCDevLine
		mutex sync.Mutex
	}
)

// NewGPIOCDevBackend opens the named chip (typically gpiochip0 on a Raspberry Pi).
func NewGPIOCDevBackend(chipName string) (*GPIOCDevBackend, error) {
	if chipName == "" {
		chipName = DefaultChip
	}

	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrHardwareUnavailable, chipName, err)
	}

	return &GPIOCDevBackend{chip: chip}, nil
}

func (b *GPIOCDevBackend) Name() string {
	return BackendGPIOCDev
}

// Open requests the line as an output, driven to its off level.
func (b *GPIOCDevBackend) Open(pin int, polarity Polarity) (Driver, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	line, err := b.chip.RequestLine(pin, gpiocdev.AsOutput(polarity.electrical(false)))
	if err != nil {
		return nil, fmt.Errorf("%w: line %d: %v", ErrLineRequestFailed, pin, err)
	}

	l := &GPIOCDevLine{
		line:     line,
		polarity: polarity,
		lineNum:  pin,
	}
	b.lines = append(b.lines, l)
	return l, nil
}

func (b *GPIOCDevBackend) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	log.Printf("closing gpiocdev backend")
	for _, l := range b.lines {
		if err := l.Close(); err != nil {
			log.Printf("failed to close GPIO line %d: %s", l.lineNum, err)
		}
	}
	b.lines = nil

	if err := b.chip.Close(); err != nil {
		return fmt.Errorf("failed to close GPIO chip: %w", err)
	}
	return nil
}

func (l *GPIOCDevLine) Write(level bool) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.line == nil {
		return fmt.Errorf("%w: %s", ErrClosed, l)
	}
	if err := l.line.SetValue(l.polarity.electrical(level)); err != nil {
		return fmt.Errorf("%w %s: %v", ErrWriteFailed, l, err)
	}
	l.level = level
	return nil
}

// Read reads the line back from the kernel, falling back to the last
// commanded level if the read fails.
func (l *GPIOCDevLine) Read() bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.line == nil {
		return l.level
	}
	value, err := l.line.Value()
	if err != nil {
		return l.level
	}
	return l.polarity.logical(value)
}

func (l *GPIOCDevLine) Pin() int {
	return l.lineNum
}

// Close releases the line. Closing an already closed line is a no-op.
func (l *GPIOCDevLine) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.line == nil {
		return nil
	}
	err := l.line.Close()
	l.line = nil
	return err
}

func (l *GPIOCDevLine) String() string {
	return fmt.Sprintf("GPIO%d", l.lineNum)
}
