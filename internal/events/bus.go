// Package events provides a small in-process pub/sub bus for run lifecycle
// and optimization progress events.
package events

import (
	"sync"
	"time"
)

// EventType identifies the kind of event.
type EventType string

const (
	// RunQueued fires when a run is accepted by the API.
	RunQueued EventType = "run_queued"
	// RunStarted fires when a worker picks a run up.
	RunStarted EventType = "run_started"
	// RunIteration fires for every recorded objective evaluation.
	RunIteration EventType = "run_iteration"
	// RunCompleted fires when a run finishes successfully.
	RunCompleted EventType = "run_completed"
	// RunFailed fires when a run errors out.
	RunFailed EventType = "run_failed"
)

// Event is a single bus message. Payload is event-specific JSON-friendly
// data.
type Event struct {
	Type      EventType   `json:"type"`
	RunID     string      `json:"run_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// Bus fans events out to subscribers. Subscriber channels are buffered;
// events are dropped per-subscriber when a channel is full, so a slow
// websocket reader cannot stall the optimization loop.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]subscription
}

type subscription struct {
	ch    chan Event
	runID string // empty = all runs
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]subscription)}
}

// Subscribe registers a subscriber for one run's events (or all runs when
// runID is empty). The returned cancel function must be called to release
// the subscription.
func (b *Bus) Subscribe(runID string, buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = subscription{ch: ch, runID: runID}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub.ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the event to every matching subscriber without blocking.
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.runID != "" && sub.runID != event.RunID {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// Subscriber is not keeping up; drop rather than block.
		}
	}
}

// Subscribers returns the current subscriber count, used by the health
// endpoint.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
