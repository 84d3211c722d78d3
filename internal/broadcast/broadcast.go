// Package broadcast fans committed switch changes out to connected observers.
//
// Delivery is built on kelindar/event: every observer is a subscriber with
// its own consumer goroutine, which preserves publish order per observer.
// The handler only enqueues into the observer's bounded backlog; a separate
// goroutine drains the backlog into the observer's Sink. An observer whose
// backlog overflows or whose Sink fails is evicted, never skipped.
package broadcast

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/kelindar/event"

	"github.com/larsks/carcontrol/internal/metrics"
	"github.com/larsks/carcontrol/internal/store"
)

// DefaultQueueSize is the per-observer backlog.
const DefaultQueueSize = 64

type (
	// Sink performs the (possibly slow) delivery of one message to a client.
	Sink interface {
		Send(Message) error
	}

	// SnapshotSource provides a snapshot that is stable while fn runs.
	SnapshotSource interface {
		Observe(fn func(store.Snapshot))
	}

	Broadcaster struct {
		dispatcher *event.Dispatcher
		queueSize  int
		nextID     atomic.Uint64

		mutex     sync.Mutex
		observers map[uint64]*Observer
	}

	// Observer is one subscribed client.
	Observer struct {
		id    uint64
		name  string
		sink  Sink
		queue chan Message
		b     *Broadcaster

		unsubscribe context.CancelFunc
		done        chan struct{}
		closeOnce   sync.Once
		err         error
	}
)

// New creates a Broadcaster. A non-positive queueSize selects DefaultQueueSize.
func New(queueSize int) *Broadcaster {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Broadcaster{
		dispatcher: event.NewDispatcher(),
		queueSize:  queueSize,
		observers:  make(map[uint64]*Observer),
	}
}

// Subscribe registers sink as an observer. The first message the sink
// receives is an initial-state snapshot; every change committed after that
// snapshot follows in order, and none committed before it.
func (b *Broadcaster) Subscribe(name string, source SnapshotSource, sink Sink) *Observer {
	o := &Observer{
		id:    b.nextID.Add(1),
		name:  name,
		sink:  sink,
		queue: make(chan Message, b.queueSize+1),
		b:     b,
		done:  make(chan struct{}),
	}

	source.Observe(func(snap store.Snapshot) {
		o.queue <- InitialState(snap)

		b.mutex.Lock()
		defer b.mutex.Unlock()
		o.unsubscribe = event.Subscribe(b.dispatcher, o.handle)
		b.observers[o.id] = o
	})

	metrics.ObserverAdded()
	log.Printf("observer %s subscribed", o)
	go o.run()
	return o
}

// Unsubscribe removes o. It is safe to call more than once.
func (b *Broadcaster) Unsubscribe(o *Observer) {
	b.mutex.Lock()
	_, ok := b.observers[o.id]
	if ok {
		delete(b.observers, o.id)
		o.unsubscribe()
	}
	b.mutex.Unlock()

	o.close(ErrObserverClosed)
	if ok {
		metrics.ObserverRemoved()
		log.Printf("observer %s unsubscribed", o)
	}
}

// Publish delivers a single change to every observer. It never blocks on
// observer I/O.
func (b *Broadcaster) Publish(ev store.ChangeEvent) {
	event.Publish(b.dispatcher, StateChanged(ev))
}

// PublishBulk delivers a SetAll result as one notification.
func (b *Broadcaster) PublishBulk(ev store.BulkEvent) {
	event.Publish(b.dispatcher, Bulk(ev))
}

// Len returns the number of subscribed observers.
func (b *Broadcaster) Len() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.observers)
}

// Close unsubscribes every observer.
func (b *Broadcaster) Close() {
	b.mutex.Lock()
	observers := make([]*Observer, 0, len(b.observers))
	for _, o := range b.observers {
		observers = append(observers, o)
	}
	b.mutex.Unlock()

	for _, o := range observers {
		b.Unsubscribe(o)
	}
}

// handle runs on the observer's kelindar consumer goroutine.
func (o *Observer) handle(m Message) {
	select {
	case <-o.done:
		return
	default:
	}

	select {
	case o.queue <- m:
	default:
		o.evict(fmt.Errorf("%w: more than %d messages pending", ErrObserverSlow, cap(o.queue)))
	}
}

func (o *Observer) run() {
	for {
		select {
		case <-o.done:
			return
		case m := <-o.queue:
			if err := o.sink.Send(m); err != nil {
				o.evict(fmt.Errorf("%w: %w", ErrSendFailed, err))
				return
			}
		}
	}
}

// evict closes the observer and removes it from the broadcaster. Removal
// happens on a separate goroutine because evict may be running on the
// observer's own consumer goroutine.
func (o *Observer) evict(err error) {
	if !o.close(err) {
		return
	}
	metrics.ObserverEvicted()
	log.Printf("evicting observer %s: %v", o, err)
	go o.b.Unsubscribe(o)
}

// close records err and closes Done. It reports whether this call closed it.
func (o *Observer) close(err error) bool {
	closed := false
	o.closeOnce.Do(func() {
		o.err = err
		close(o.done)
		closed = true
	})
	return closed
}

// Done is closed when the observer is evicted or unsubscribed. The
// transport should then drop its connection.
func (o *Observer) Done() <-chan struct{} {
	return o.done
}

// Err reports why the observer was closed, or nil while it is live.
func (o *Observer) Err() error {
	select {
	case <-o.done:
		return o.err
	default:
		return nil
	}
}

func (o *Observer) String() string {
	return fmt.Sprintf("%s#%d", o.name, o.id)
}
