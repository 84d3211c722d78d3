package pindriver

import (
	"fmt"
	"sync"
	"time"
)

// DefaultWriteTimeout bounds a single pin write.
const DefaultWriteTimeout = 500 * time.Millisecond

// Bounded wraps a Driver so that no Write blocks longer than a deadline.
// A write that overruns is left to finish in the background; the next
// Write waits (within its own deadline) for it before issuing a new one,
// so writes to the underlying driver never overlap.
type Bounded struct {
	Driver
	timeout  time.Duration
	inflight chan struct{}
	onLate   func(level bool, err error)
	mutex    sync.Mutex
}

// NewBounded wraps d. A non-positive timeout selects DefaultWriteTimeout.
func NewBounded(d Driver, timeout time.Duration) *Bounded {
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	return &Bounded{
		Driver:  d,
		timeout: timeout,
	}
}

// OnLateWrite registers fn to be called, on its own goroutine, when a
// write that already returned ErrWriteTimeout finally completes. level is
// the level that write issued and err its result.
func (b *Bounded) OnLateWrite(fn func(level bool, err error)) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.onLate = fn
}

// Write issues the write and waits at most the configured timeout for it.
func (b *Bounded) Write(level bool) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	if b.inflight != nil {
		select {
		case <-b.inflight:
			b.inflight = nil
		case <-timer.C:
			return fmt.Errorf("%w: pin %d: previous write still pending", ErrWriteTimeout, b.Pin())
		}
	}

	var err error
	done := make(chan struct{})
	go func() {
		err = b.Driver.Write(level)
		close(done)
	}()

	select {
	case <-done:
		return err
	case <-timer.C:
		b.inflight = done
		if onLate := b.onLate; onLate != nil {
			go func() {
				<-done
				onLate(level, err)
			}()
		}
		return fmt.Errorf("%w: pin %d after %s", ErrWriteTimeout, b.Pin(), b.timeout)
	}
}

// Unwrap returns the wrapped driver.
func (b *Bounded) Unwrap() Driver {
	return b.Driver
}
