// Package observer implements the synchronous change-notification primitive
// shared by all model types. Subscribers are invoked in registration order,
// on the caller's goroutine, before the mutating call returns.
package observer

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rknell/vibe-coder-sub002/internal/metrics"
)

// Kind classifies the source of a change event.
type Kind string

const (
	KindContent     Kind = "content"
	KindCollection  Kind = "collection"
	KindAgent       Kind = "agent"
	KindServer      Kind = "server"
	KindPreferences Kind = "preferences"
)

// Event describes a single model mutation. ID is a ULID, so events from one
// process sort in emission order.
type Event struct {
	ID     string    `json:"id"`
	Source string    `json:"source"` // entity id that changed
	Kind   Kind      `json:"kind"`
	At     time.Time `json:"at"`
}

type subscriber struct {
	seq int64
	fn  func(Event)
}

// Notifier fans an Event out to its subscribers. The zero value is ready to
// use and safe to embed by value.
type Notifier struct {
	mu      sync.Mutex
	nextSeq int64
	subs    []subscriber
}

// Subscribe registers fn and returns an unsubscribe function. Unsubscribing
// twice is a no-op.
func (n *Notifier) Subscribe(fn func(Event)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	seq := n.nextSeq
	n.nextSeq++
	n.subs = append(n.subs, subscriber{seq: seq, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			for i, s := range n.subs {
				if s.seq == seq {
					n.subs = append(n.subs[:i], n.subs[i+1:]...)
					break
				}
			}
		})
	}
}

// Notify delivers an event for source to every subscriber, synchronously and
// in registration order.
func (n *Notifier) Notify(source string, kind Kind) {
	ev := Event{
		ID:     ulid.Make().String(),
		Source: source,
		Kind:   kind,
		At:     time.Now().UTC(),
	}

	n.mu.Lock()
	subs := make([]subscriber, len(n.subs))
	copy(subs, n.subs)
	n.mu.Unlock()

	metrics.NotificationsTotal.WithLabelValues(string(kind)).Inc()

	for _, s := range subs {
		s.fn(ev)
	}
}

// SubscriberCount reports the number of active subscribers.
func (n *Notifier) SubscriberCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}
