package store

import (
	"time"

	"github.com/larsks/carcontrol/internal/registry"
)

type (
	// ChangeEvent records one switch's level transition.
	ChangeEvent struct {
		SwitchID  string    `json:"switchId"`
		Level     bool      `json:"state"`
		Timestamp time.Time `json:"timestamp"`
	}

	// BulkEvent is the single notification produced by SetAll. Changes lists
	// only the switches whose level actually flipped and may be empty.
	BulkEvent struct {
		Level     bool          `json:"state"`
		Timestamp time.Time     `json:"timestamp"`
		Changes   []ChangeEvent `json:"changes"`
	}

	// SwitchState is one entry of a snapshot.
	SwitchState struct {
		ID          string `json:"id"`
		Level       bool   `json:"state"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Pin         int    `json:"pin"`
	}

	// Snapshot is a consistent copy of every switch's level at one instant.
	Snapshot struct {
		Switches map[string]SwitchState `json:"switches"`
		Order    []string               `json:"order"`
	}

	// Publisher receives every committed change. Both methods are called
	// while the store holds its state lock, so they must not block.
	Publisher interface {
		Publish(ChangeEvent)
		PublishBulk(BulkEvent)
	}
)

func newSwitchState(def registry.Definition, level bool) SwitchState {
	return SwitchState{
		ID:          def.ID,
		Level:       level,
		Name:        def.Name,
		Description: def.Description,
		Pin:         def.Pin,
	}
}

// StateString returns "on" or "off".
func StateString(level bool) string {
	if level {
		return "on"
	}
	return "off"
}

type nopPublisher struct{}

func (nopPublisher) Publish(ChangeEvent)   {}
func (nopPublisher) PublishBulk(BulkEvent) {}
