package broadcast

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/larsks/carcontrol/internal/store"
)

// Message kinds as they appear in the "type" field on the wire.
const (
	KindInitialState = "initial-state"
	KindStateChanged = "state-changed"
	KindAllOff       = "all-off"
	KindAllOn        = "all-on"
)

// TypeMessage is the kelindar/event type id of Message. Every kind shares
// one type so each subscriber receives a single ordered stream.
const TypeMessage uint32 = 1

// Message is one notification delivered to an observer. Exactly one of
// Change, Bulk or Snapshot is meaningful, selected by Kind.
type Message struct {
	Kind     string
	Change   store.ChangeEvent
	Bulk     store.BulkEvent
	Snapshot store.Snapshot
}

// Type returns the event type identifier for Message.
func (m Message) Type() uint32 { return TypeMessage }

func StateChanged(ev store.ChangeEvent) Message {
	return Message{Kind: KindStateChanged, Change: ev}
}

func Bulk(ev store.BulkEvent) Message {
	kind := KindAllOff
	if ev.Level {
		kind = KindAllOn
	}
	return Message{Kind: kind, Bulk: ev}
}

func InitialState(snap store.Snapshot) Message {
	return Message{Kind: KindInitialState, Snapshot: snap}
}

func (m Message) MarshalJSON() ([]byte, error) {
	switch m.Kind {
	case KindStateChanged:
		return json.Marshal(struct {
			Type string `json:"type"`
			store.ChangeEvent
		}{m.Kind, m.Change})
	case KindAllOff, KindAllOn:
		return json.Marshal(struct {
			Type      string              `json:"type"`
			Timestamp time.Time           `json:"timestamp"`
			Changes   []store.ChangeEvent `json:"changes"`
		}{m.Kind, m.Bulk.Timestamp, m.Bulk.Changes})
	case KindInitialState:
		return json.Marshal(struct {
			Type string `json:"type"`
			store.Snapshot
		}{m.Kind, m.Snapshot})
	default:
		return nil, fmt.Errorf("unknown message kind %q", m.Kind)
	}
}
