package txn

import (
	"sync"

	"github.com/roach88/classver/internal/model"
)

// eventQueue is the ordered list of events notified during one transaction.
//
// Thread-safety is provided for callers that notify from helper goroutines
// while the session owner commits; in practice usage is single-threaded.
type eventQueue struct {
	mu     sync.Mutex
	events []model.Event
	closed bool
}

func newEventQueue() *eventQueue {
	return &eventQueue{events: make([]model.Event, 0, 16)}
}

// Append adds ev to the back of the queue. Appends after Close are dropped.
func (q *eventQueue) Append(ev model.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.events = append(q.events, ev)
}

// Events returns a copy of the queued events in arrival order.
func (q *eventQueue) Events() []model.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]model.Event(nil), q.events...)
}

// Close rejects further appends and releases the queued events.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.events = nil
}

// dedupByNode keeps the first event seen for each node, in first-seen order.
func dedupByNode(events []model.Event) []model.Event {
	seen := make(map[model.CategoryID]bool, len(events))
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		id := ev.Node().ID()
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, ev)
	}
	return out
}
