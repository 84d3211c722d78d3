package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/larsks/carcontrol/internal/broadcast"
	"github.com/larsks/carcontrol/internal/store"
)

// DefaultTopicPrefix is prepended to every topic.
const DefaultTopicPrefix = "carcontrol"

// Controller carries out switch commands received from the broker.
type Controller interface {
	Toggle(id string) error
	Set(id string, level bool) error
	AllOff() error
}

// Mirror is a broadcast.Sink that republishes switch state:
//
//	<prefix>/switch/<id>/state   retained "on" or "off"
//	<prefix>/events              every notification as JSON
//
// and accepts "on", "off" or "toggle" on <prefix>/switch/<id>/set and
// "off" on <prefix>/all/set.
type Mirror struct {
	client  Client
	prefix  string
	control Controller

	mutex  sync.Mutex
	levels map[string]bool
}

func NewMirror(client Client, prefix string, control Controller) *Mirror {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return &Mirror{
		client:  client,
		prefix:  strings.TrimSuffix(prefix, "/"),
		control: control,
		levels:  make(map[string]bool),
	}
}

func (m *Mirror) StateTopic(id string) string {
	return fmt.Sprintf("%s/switch/%s/state", m.prefix, id)
}

func (m *Mirror) EventTopic() string {
	return m.prefix + "/events"
}

func (m *Mirror) commandTopic(id string) string {
	return fmt.Sprintf("%s/switch/%s/set", m.prefix, id)
}

func (m *Mirror) allTopic() string {
	return m.prefix + "/all/set"
}

// Send publishes msg. Broker failures are logged rather than returned so
// that an unreachable broker does not get the mirror evicted; the retained
// state topics are refreshed by Resync when the connection comes back.
func (m *Mirror) Send(msg broadcast.Message) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var changed []string
	switch msg.Kind {
	case broadcast.KindInitialState:
		m.levels = make(map[string]bool, len(msg.Snapshot.Switches))
		for id, st := range msg.Snapshot.Switches {
			m.levels[id] = st.Level
		}
		changed = msg.Snapshot.Order
	case broadcast.KindStateChanged:
		m.levels[msg.Change.SwitchID] = msg.Change.Level
		changed = []string{msg.Change.SwitchID}
	case broadcast.KindAllOff, broadcast.KindAllOn:
		for _, ev := range msg.Bulk.Changes {
			m.levels[ev.SwitchID] = ev.Level
			changed = append(changed, ev.SwitchID)
		}
	}

	for _, id := range changed {
		m.publish(m.StateTopic(id), true, []byte(store.StateString(m.levels[id])))
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode %s message: %w", msg.Kind, err)
	}
	m.publish(m.EventTopic(), false, payload)
	return nil
}

func (m *Mirror) publish(topic string, retained bool, payload []byte) {
	if err := m.client.Publish(topic, retained, payload); err != nil && !errors.Is(err, ErrNotConnected) {
		log.Printf("mqtt mirror: %v", err)
	}
}

// Resync republishes every known switch state and (re)subscribes to the
// command topics. It is run after every connection to the broker.
func (m *Mirror) Resync() {
	m.mutex.Lock()
	ids := make([]string, 0, len(m.levels))
	for id := range m.levels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		m.publish(m.StateTopic(id), true, []byte(store.StateString(m.levels[id])))
	}
	m.mutex.Unlock()

	if m.control == nil {
		return
	}
	if err := m.client.Subscribe(m.commandTopic("+"), m.handleCommand); err != nil {
		log.Printf("mqtt mirror: %v", err)
	}
	if err := m.client.Subscribe(m.allTopic(), m.handleCommand); err != nil {
		log.Printf("mqtt mirror: %v", err)
	}
}

func (m *Mirror) handleCommand(topic string, payload []byte) {
	command := strings.ToLower(strings.TrimSpace(string(payload)))

	if topic == m.allTopic() {
		if command != "off" {
			log.Printf("mqtt mirror: ignoring %q on %s", command, topic)
			return
		}
		if err := m.control.AllOff(); err != nil {
			log.Printf("mqtt mirror: all off failed: %v", err)
		}
		return
	}

	id, ok := m.switchFromCommandTopic(topic)
	if !ok {
		log.Printf("mqtt mirror: ignoring message on %s", topic)
		return
	}

	var err error
	switch command {
	case "on":
		err = m.control.Set(id, true)
	case "off":
		err = m.control.Set(id, false)
	case "toggle":
		err = m.control.Toggle(id)
	default:
		log.Printf("mqtt mirror: invalid command %q for switch %s", command, id)
		return
	}
	if err != nil {
		log.Printf("mqtt mirror: %s %s failed: %v", command, id, err)
	}
}

func (m *Mirror) switchFromCommandTopic(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, m.prefix+"/switch/")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/set")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
