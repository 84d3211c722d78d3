package mqtt

import "sync"

// FakeMessage is one message recorded by FakeClient.
type FakeMessage struct {
	Topic    string
	Retained bool
	Payload  string
}

// FakeClient records publishes and subscriptions for tests.
type FakeClient struct {
	mutex         sync.Mutex
	messages      []FakeMessage
	subscriptions map[string]func(topic string, payload []byte)

	// PublishError, if set, is returned by Publish.
	PublishError error
	// Connected controls the return value of IsConnected.
	Connected bool
}

func NewFakeClient() *FakeClient {
	return &FakeClient{
		subscriptions: make(map[string]func(string, []byte)),
		Connected:     true,
	}
}

func (f *FakeClient) Publish(topic string, retained bool, payload []byte) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.messages = append(f.messages, FakeMessage{Topic: topic, Retained: retained, Payload: string(payload)})
	return nil
}

func (f *FakeClient) Subscribe(topic string, handler func(topic string, payload []byte)) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.subscriptions[topic] = handler
	return nil
}

func (f *FakeClient) IsConnected() bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.Connected
}

func (f *FakeClient) Disconnect() {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.Connected = false
}

// Messages returns a copy of everything published so far.
func (f *FakeClient) Messages() []FakeMessage {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]FakeMessage(nil), f.messages...)
}

// Retained returns the last retained payload per topic.
func (f *FakeClient) Retained() map[string]string {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	retained := make(map[string]string)
	for _, m := range f.messages {
		if m.Retained {
			retained[m.Topic] = m.Payload
		}
	}
	return retained
}

// Deliver simulates a message arriving on a subscribed topic filter.
func (f *FakeClient) Deliver(filter, topic string, payload []byte) bool {
	f.mutex.Lock()
	handler, ok := f.subscriptions[filter]
	f.mutex.Unlock()
	if !ok {
		return false
	}
	handler(topic, payload)
	return true
}
