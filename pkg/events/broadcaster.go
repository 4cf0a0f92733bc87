package events

import (
	"sync"
	"time"
)

// Kind classifies a broadcast event.
type Kind string

const (
	KindStatus Kind = "status"
	KindInfo   Kind = "info"
	KindData   Kind = "data"
	KindError  Kind = "error"
)

// Event is a single entry in the broadcast log.
type Event struct {
	Kind      Kind                   `json:"kind"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
}

// MaxHistory bounds the retained event log; oldest entries are evicted first.
const MaxHistory = 50

// Observer receives events. Notify is called synchronously under the
// broadcaster lock, so implementations must not block and must not call back
// into the broadcaster.
type Observer interface {
	Notify(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) Notify(e Event) { f(e) }

// Broadcaster is an in-process append-only event log with fan-out. New
// observers receive the full retained history as backfill before any live
// event, so no observer starts with zero context.
type Broadcaster struct {
	mu        sync.Mutex
	history   []Event
	observers map[int]Observer
	nextID    int
	now       func() time.Time
}

// New creates an empty Broadcaster.
func New() *Broadcaster {
	return &Broadcaster{
		observers: make(map[int]Observer),
		now:       time.Now,
	}
}

// Broadcast appends an event to the history and synchronously notifies all
// current observers.
func (b *Broadcaster) Broadcast(kind Kind, payload map[string]interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := Event{Kind: kind, Payload: payload, Timestamp: b.now()}

	b.history = append(b.history, e)
	if len(b.history) > MaxHistory {
		b.history = b.history[len(b.history)-MaxHistory:]
	}

	for _, obs := range b.observers {
		obs.Notify(e)
	}
}

// Status is shorthand for a status event carrying a message.
func (b *Broadcaster) Status(message string) {
	b.Broadcast(KindStatus, map[string]interface{}{"message": message})
}

// Info is shorthand for an info event carrying a message.
func (b *Broadcaster) Info(message string) {
	b.Broadcast(KindInfo, map[string]interface{}{"message": message})
}

// Error is shorthand for an error event carrying a message.
func (b *Broadcaster) Error(message string) {
	b.Broadcast(KindError, map[string]interface{}{"message": message})
}

// Subscribe registers an observer. The retained history is delivered to obs
// before Subscribe returns; events broadcast afterwards are delivered live.
// The returned function unsubscribes.
func (b *Broadcaster) Subscribe(obs Observer) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range b.history {
		obs.Notify(e)
	}

	id := b.nextID
	b.nextID++
	b.observers[id] = obs

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.observers, id)
	}
}

// History returns a copy of the retained event log, oldest first.
func (b *Broadcaster) History() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Event, len(b.history))
	copy(out, b.history)
	return out
}
