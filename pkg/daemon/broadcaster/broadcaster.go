// Package broadcaster manages subscribers and distributes engine events.
package broadcaster

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/jamesainslie/declutter/pkg/declutter/types"
)

// subscriberBuffer is the per-subscriber queue length. Events beyond it are
// dropped for that subscriber.
const subscriberBuffer = 100

// Subscriber represents a client subscribed to engine events.
type Subscriber struct {
	ID string

	// Kinds restricts delivery to these event kinds. Empty means all.
	Kinds  []types.EventKind
	Events chan types.Event

	dropped int
}

// Broadcaster manages subscribers and distributes engine events.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	closed      bool
}

// New creates a new Broadcaster.
func New() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[string]*Subscriber),
	}
}

// Subscribe creates a new subscription. It returns nil once the broadcaster
// is closed.
func (b *Broadcaster) Subscribe(kinds ...types.EventKind) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	sub := &Subscriber{
		ID:     uuid.New().String(),
		Kinds:  kinds,
		Events: make(chan types.Event, subscriberBuffer),
	}

	b.subscribers[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscription.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[id]; ok {
		close(sub.Events)
		delete(b.subscribers, id)
	}
}

// Notify sends ev to all matching subscribers without blocking.
func (b *Broadcaster) Notify(ev types.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for _, sub := range b.subscribers {
		if !matches(sub, ev) {
			continue
		}
		select {
		case sub.Events <- ev:
		default:
			sub.dropped++
		}
	}
}

// Dropped returns how many events were dropped for subscriber id because
// its queue was full.
func (b *Broadcaster) Dropped(id string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if sub, ok := b.subscribers[id]; ok {
		return sub.dropped
	}
	return 0
}

func matches(sub *Subscriber, ev types.Event) bool {
	return len(sub.Kinds) == 0 || slices.Contains(sub.Kinds, ev.Kind)
}

// Close closes the broadcaster and all subscriptions.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	for _, sub := range b.subscribers {
		close(sub.Events)
	}
	b.subscribers = make(map[string]*Subscriber)
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
