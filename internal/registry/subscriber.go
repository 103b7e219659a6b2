package registry

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/agent-tmux-monitor/daemon/internal/domain"
)

// SubscriberQueueCapacity is the per-subscriber bounded queue size named in
// the resource ceilings: a slow subscriber may fall behind, but it can
// never make the registry actor block.
const SubscriberQueueCapacity = 100

// Subscriber is a bounded, filtered event queue handed back from
// Registry.Subscribe. The registry actor never blocks delivering to one:
// on overflow it drops the oldest queued event and increments Dropped
// rather than waiting for the consumer to drain.
type Subscriber struct {
	ID      string // opaque identifier, for diagnostic logging only
	events  chan Event
	filter  domain.SessionId // empty means "all sessions"
	Dropped atomic.Int64
	closed  atomic.Bool
}

func newSubscriber(filter domain.SessionId) *Subscriber {
	return &Subscriber{
		ID:     uuid.NewString(),
		events: make(chan Event, SubscriberQueueCapacity),
		filter: filter,
	}
}

// Events returns the channel to range over for delivered events. It is
// closed when the subscriber is removed from the registry.
func (s *Subscriber) Events() <-chan Event {
	return s.events
}

// matches reports whether this subscriber wants the given event, applying
// the optional session-id filter before the event is ever enqueued.
func (s *Subscriber) matches(ev Event) bool {
	if s.filter == "" {
		return true
	}
	id := ev.View.ID
	if ev.Kind == EventRemoved {
		id = ev.ID
	}
	return id == s.filter
}

// deliver enqueues ev, dropping the oldest queued event first if the queue
// is full. It never blocks.
func (s *Subscriber) deliver(ev Event) {
	if !s.matches(ev) {
		return
	}
	for {
		select {
		case s.events <- ev:
			return
		default:
		}
		select {
		case <-s.events:
			s.Dropped.Add(1)
		default:
			// Another goroutine drained it between our full check and now;
			// loop back and try the send again.
		}
	}
}

// close marks the subscriber closed and closes its channel. Safe to call
// more than once.
func (s *Subscriber) close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.events)
	}
}
