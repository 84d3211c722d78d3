// Package store owns the authoritative on/off state of every switch and is
// the only writer of pin levels.
//
// Each switch has its own mutex that serializes hardware writes, so two
// mutations of one switch never overlap while different switches proceed
// independently. Committed levels are guarded by a store-wide RWMutex; the
// Publisher is invoked inside that critical section so every observer sees
// changes in commit order.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/larsks/carcontrol/internal/metrics"
	"github.com/larsks/carcontrol/internal/pindriver"
	"github.com/larsks/carcontrol/internal/registry"
)

// Operation names used for logging and metrics.
const (
	OpToggle   = "toggle"
	OpSet      = "set"
	OpSetAll   = "all"
	OpShutdown = "shutdown"
)

type Options struct {
	// WriteTimeout bounds every pin write. Zero selects pindriver.DefaultWriteTimeout.
	WriteTimeout time.Duration
	Publisher    Publisher
}

type Store struct {
	registry  *registry.Registry
	switches  map[string]*switchEntry
	order     []*switchEntry
	publisher Publisher
	stateMu   sync.RWMutex
	closed    atomic.Bool
	now       func() time.Time
}

type switchEntry struct {
	def    registry.Definition
	driver pindriver.Driver
	mutex  sync.Mutex

	// level is read and written under Store.stateMu, and only written
	// while mutex is held.
	level bool
}

// New opens a driver for every switch and drives all of them off.
func New(reg *registry.Registry, backend pindriver.Backend, opts Options) (*Store, error) {
	s := &Store{
		registry:  reg,
		switches:  make(map[string]*switchEntry, reg.Len()),
		publisher: opts.Publisher,
		now:       time.Now,
	}
	if s.publisher == nil {
		s.publisher = nopPublisher{}
	}

	for _, def := range reg.All() {
		d, err := backend.Open(def.Pin, def.Polarity())
		if err != nil {
			s.closeDrivers()
			return nil, fmt.Errorf("failed to open pin %d for switch %s: %w", def.Pin, def.ID, err)
		}
		bounded := pindriver.NewBounded(d, opts.WriteTimeout)
		sw := &switchEntry{
			def:    def,
			driver: bounded,
		}
		bounded.OnLateWrite(func(level bool, err error) {
			s.reconcile(sw, level, err)
		})
		s.switches[def.ID] = sw
		s.order = append(s.order, sw)
	}

	for _, sw := range s.order {
		if err := s.write(sw, false); err != nil {
			s.closeDrivers()
			return nil, fmt.Errorf("failed to reset switches: %w", err)
		}
		metrics.SetSwitchLevel(sw.def.ID, false)
	}

	log.Printf("initialized %d switches using %s driver", len(s.order), backend.Name())
	return s, nil
}

// SetPublisher replaces the publisher. It must be called before the store is shared.
func (s *Store) SetPublisher(p Publisher) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if p == nil {
		p = nopPublisher{}
	}
	s.publisher = p
}

func (s *Store) lookup(id string) (*switchEntry, error) {
	def, err := s.registry.Resolve(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.switches[def.ID], nil
}

func (s *Store) write(sw *switchEntry, level bool) error {
	start := time.Now()
	err := sw.driver.Write(level)
	metrics.ObservePinWrite(sw.def.ID, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%w: switch %s: %w", ErrHardwareFault, sw.def.ID, err)
	}
	return nil
}

// reconcile runs when a write that was reported as a timeout completes
// after all. That write may have left the pin at a level that was never
// committed, so the committed level is written again.
func (s *Store) reconcile(sw *switchEntry, level bool, lateErr error) {
	sw.mutex.Lock()
	defer sw.mutex.Unlock()

	// Shutdown has already driven every pin off after this write.
	if s.closed.Load() {
		return
	}
	if lateErr == nil && level == sw.level {
		return
	}

	log.Printf("late write to switch %s completed, restoring %s", sw.def, StateString(sw.level))
	if err := s.write(sw, sw.level); err != nil {
		log.Printf("failed to restore switch %s: %v", sw.def, err)
	}
}

// Toggle flips the level of one switch.
func (s *Store) Toggle(id string) (ChangeEvent, error) {
	sw, err := s.lookup(id)
	if err != nil {
		metrics.RecordMutation(OpToggle, metrics.ResultNotFound)
		return ChangeEvent{}, err
	}

	sw.mutex.Lock()
	defer sw.mutex.Unlock()

	ev, _, err := s.setLocked(sw, !sw.level, OpToggle)
	return ev, err
}

// Set drives one switch to level. The pin is written even if the switch is
// already at that level; changed reports whether the committed level flipped,
// and an event is published only in that case.
func (s *Store) Set(id string, level bool) (ev ChangeEvent, changed bool, err error) {
	sw, err := s.lookup(id)
	if err != nil {
		metrics.RecordMutation(OpSet, metrics.ResultNotFound)
		return ChangeEvent{}, false, err
	}

	sw.mutex.Lock()
	defer sw.mutex.Unlock()

	return s.setLocked(sw, level, OpSet)
}

// setLocked must be called with sw.mutex held.
func (s *Store) setLocked(sw *switchEntry, level bool, op string) (ChangeEvent, bool, error) {
	if s.closed.Load() {
		return ChangeEvent{}, false, ErrShutdown
	}

	if err := s.write(sw, level); err != nil {
		metrics.RecordMutation(op, metrics.ResultFault)
		log.Printf("failed to turn %s switch %s: %v", StateString(level), sw.def, err)
		return ChangeEvent{}, false, err
	}
	metrics.RecordMutation(op, metrics.ResultOK)

	ev := ChangeEvent{
		SwitchID:  sw.def.ID,
		Level:     level,
		Timestamp: s.now(),
	}
	if sw.level == level {
		return ev, false, nil
	}

	s.stateMu.Lock()
	sw.level = level
	s.publisher.Publish(ev)
	s.stateMu.Unlock()

	metrics.SetSwitchLevel(sw.def.ID, level)
	log.Printf("switch %s turned %s", sw.def, StateString(level))
	return ev, true, nil
}

func (s *Store) lockAll() {
	for _, sw := range s.order {
		sw.mutex.Lock()
	}
}

func (s *Store) unlockAll() {
	for _, sw := range s.order {
		sw.mutex.Unlock()
	}
}

// SetAll drives every switch to level. Every pin is written, but the
// returned events (and the single bulk notification) only cover switches
// whose level flipped. Write failures are joined; switches that failed keep
// their previous level.
func (s *Store) SetAll(level bool) ([]ChangeEvent, error) {
	s.lockAll()
	defer s.unlockAll()

	if s.closed.Load() {
		return nil, ErrShutdown
	}
	return s.setAllLocked(level, OpSetAll)
}

func (s *Store) setAllLocked(level bool, op string) ([]ChangeEvent, error) {
	var errs []error
	var flipped []*switchEntry

	for _, sw := range s.order {
		if err := s.write(sw, level); err != nil {
			errs = append(errs, err)
			continue
		}
		if sw.level != level {
			flipped = append(flipped, sw)
		}
	}

	ts := s.now()
	changes := make([]ChangeEvent, 0, len(flipped))

	s.stateMu.Lock()
	for _, sw := range flipped {
		sw.level = level
		changes = append(changes, ChangeEvent{
			SwitchID:  sw.def.ID,
			Level:     level,
			Timestamp: ts,
		})
	}
	s.publisher.PublishBulk(BulkEvent{
		Level:     level,
		Timestamp: ts,
		Changes:   changes,
	})
	s.stateMu.Unlock()

	for _, sw := range flipped {
		metrics.SetSwitchLevel(sw.def.ID, level)
	}

	if len(errs) > 0 {
		metrics.RecordMutation(op, metrics.ResultFault)
		err := errors.Join(errs...)
		log.Printf("turned %s %d switches, %d failed: %v", StateString(level), len(changes), len(errs), err)
		return changes, err
	}

	metrics.RecordMutation(op, metrics.ResultOK)
	log.Printf("all switches turned %s (%d changed)", StateString(level), len(changes))
	return changes, nil
}

// Snapshot returns a consistent copy of every switch's state.
func (s *Store) Snapshot() Snapshot {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.snapshotLocked()
}

// Observe calls fn with a snapshot while holding the state lock, so no
// change can be published between the snapshot and fn returning. fn must
// not call back into the store's mutation methods.
func (s *Store) Observe(fn func(Snapshot)) {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	fn(s.snapshotLocked())
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Switches: make(map[string]SwitchState, len(s.order)),
		Order:    s.registry.IDs(),
	}
	for _, sw := range s.order {
		snap.Switches[sw.def.ID] = newSwitchState(sw.def, sw.level)
	}
	return snap
}

// Get returns the state of one switch.
func (s *Store) Get(id string) (SwitchState, error) {
	sw, err := s.lookup(id)
	if err != nil {
		return SwitchState{}, err
	}

	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return newSwitchState(sw.def, sw.level), nil
}

// Len returns the number of switches.
func (s *Store) Len() int {
	return len(s.order)
}

// Shutdown drives every switch off and releases the pin drivers. It gives
// up waiting when ctx expires; mutations attempted afterwards fail with
// ErrShutdown. Calling Shutdown more than once is a no-op.
func (s *Store) Shutdown(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	log.Printf("turning off all switches")
	done := make(chan error, 1)
	go func() {
		s.lockAll()
		defer s.unlockAll()

		_, err := s.setAllLocked(false, OpShutdown)
		s.closeDrivers()
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("switches not confirmed off before deadline: %w", ctx.Err())
	}
}

func (s *Store) closeDrivers() {
	for _, sw := range s.order {
		if err := sw.driver.Close(); err != nil {
			log.Printf("failed to close driver for switch %s: %v", sw.def.ID, err)
		}
	}
}
