package api

import (
	"log"
	"sync"
	"time"

	"github.com/larsks/carcontrol/internal/store"
)

// controller is the single path by which every transport (HTTP, websocket,
// MQTT) mutates switches. It owns the auto-off timers: any mutation of a
// switch cancels that switch's pending timer.
type controller struct {
	store  *store.Store
	mutex  sync.Mutex
	timers map[string]*time.Timer
}

func newController(st *store.Store) *controller {
	return &controller{
		store:  st,
		timers: make(map[string]*time.Timer),
	}
}

func (c *controller) cancelTimer(id string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if timer, ok := c.timers[id]; ok {
		timer.Stop()
		delete(c.timers, id)
	}
}

func (c *controller) Toggle(id string) (store.ChangeEvent, error) {
	c.cancelTimer(id)
	return c.store.Toggle(id)
}

// Set drives a switch to level. A positive duration with level on
// schedules the switch to turn off again.
func (c *controller) Set(id string, level bool, duration time.Duration) (store.ChangeEvent, bool, error) {
	c.cancelTimer(id)

	ev, changed, err := c.store.Set(id, level)
	if err != nil || !level || duration <= 0 {
		return ev, changed, err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	var timer *time.Timer
	timer = time.AfterFunc(duration, func() {
		c.mutex.Lock()
		defer c.mutex.Unlock()

		// Superseded by a later mutation.
		if c.timers[id] != timer {
			return
		}
		delete(c.timers, id)

		if _, _, err := c.store.Set(id, false); err != nil {
			log.Printf("failed to automatically turn off switch %s: %v", id, err)
			return
		}
		log.Printf("automatically turned off switch %s after %s", id, duration)
	})
	c.timers[id] = timer
	return ev, changed, nil
}

func (c *controller) AllOff() ([]store.ChangeEvent, error) {
	c.stopTimers()
	return c.store.SetAll(false)
}

// pending reports whether an auto-off timer is scheduled for id.
func (c *controller) pending(id string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	_, ok := c.timers[id]
	return ok
}

func (c *controller) stopTimers() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for id, timer := range c.timers {
		timer.Stop()
		delete(c.timers, id)
	}
}

// mqttControl adapts controller to mqtt.Controller.
type mqttControl struct {
	c *controller
}

func (m mqttControl) Toggle(id string) error {
	_, err := m.c.Toggle(id)
	return err
}

func (m mqttControl) Set(id string, level bool) error {
	_, _, err := m.c.Set(id, level, 0)
	return err
}

func (m mqttControl) AllOff() error {
	_, err := m.c.AllOff()
	return err
}
