// Package registry holds the static table of switches. It is validated once
// at startup and never changes afterwards, so it needs no locking.
package registry

import (
	"errors"
	"fmt"

	"github.com/larsks/carcontrol/internal/pindriver"
)

// Definition describes one switch and the output pin it is wired to.
type Definition struct {
	ID          string `mapstructure:"id" json:"id"`
	Pin         int    `mapstructure:"pin" json:"pin"`
	Name        string `mapstructure:"name" json:"name"`
	Description string `mapstructure:"description" json:"description"`
	ActiveLow   bool   `mapstructure:"active-low" json:"activeLow,omitempty"`
}

// Polarity returns the electrical polarity of the switch's pin.
func (d Definition) Polarity() pindriver.Polarity {
	if d.ActiveLow {
		return pindriver.ActiveLow
	}
	return pindriver.ActiveHigh
}

func (d Definition) String() string {
	if d.Name == "" {
		return d.ID
	}
	return fmt.Sprintf("%s (%s)", d.ID, d.Name)
}

// Registry is an ordered, immutable set of switch definitions.
type Registry struct {
	defs  []Definition
	index map[string]int
}

// Load validates defs and builds a Registry. Identifiers and pin numbers
// must be unique; every violation is reported.
func Load(defs []Definition) (*Registry, error) {
	if len(defs) == 0 {
		return nil, ErrNoSwitches
	}

	var errs []error
	index := make(map[string]int, len(defs))
	pins := make(map[int]string, len(defs))

	for i, def := range defs {
		if def.ID == "" {
			errs = append(errs, fmt.Errorf("%w (entry %d)", ErrEmptyID, i))
			continue
		}
		if def.Pin < 0 {
			errs = append(errs, fmt.Errorf("%w: %s has pin %d", ErrInvalidPin, def.ID, def.Pin))
		}
		if _, exists := index[def.ID]; exists {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateID, def.ID))
		} else {
			index[def.ID] = i
		}
		if other, exists := pins[def.Pin]; exists {
			errs = append(errs, fmt.Errorf("%w: %d used by %s and %s", ErrDuplicatePin, def.Pin, other, def.ID))
		} else {
			pins[def.Pin] = def.ID
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	r := &Registry{
		defs:  make([]Definition, len(defs)),
		index: index,
	}
	copy(r.defs, defs)
	return r, nil
}

// Resolve returns the definition for id.
func (r *Registry) Resolve(id string) (Definition, error) {
	i, ok := r.index[id]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrUnknownSwitch, id)
	}
	return r.defs[i], nil
}

// All returns every definition in configuration order.
func (r *Registry) All() []Definition {
	defs := make([]Definition, len(r.defs))
	copy(defs, r.defs)
	return defs
}

// IDs returns switch identifiers in configuration order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.defs))
	for i, def := range r.defs {
		ids[i] = def.ID
	}
	return ids
}

// Len returns the number of switches.
func (r *Registry) Len() int {
	return len(r.defs)
}
