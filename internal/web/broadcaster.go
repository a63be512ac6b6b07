package web

import (
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/patrol.report/internal/view"
)

// subscriberBuffer is how many frames a slow subscriber may fall behind
// before frames are dropped for it.
const subscriberBuffer = 16

// Broadcaster fans board frames out to event-stream subscribers. Publish
// never blocks playback: frames are dropped for subscribers whose buffer is
// full.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[string]chan view.Frame
	last        *view.Frame
	closed      bool
}

// NewBroadcaster creates a broadcaster with no subscribers.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subscribers: make(map[string]chan view.Frame)}
}

// Subscribe registers a new subscriber. The most recent frame, if any, is
// queued immediately.
func (b *Broadcaster) Subscribe() (string, <-chan view.Frame) {
	id := uuid.NewString()
	ch := make(chan view.Frame, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return id, ch
	}
	if b.last != nil {
		ch <- *b.last
	}
	b.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscriber.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
}

// Publish sends f to every subscriber.
func (b *Broadcaster) Publish(f view.Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.last = &f
	for _, ch := range b.subscribers {
		select {
		case ch <- f:
		default:
		}
	}
}

// Subscribers returns the number of live subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Close closes every subscriber and drops later publishes.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
