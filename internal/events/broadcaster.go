package events

import (
	"log/slog"
	"sync"

	"github.com/me/workgate/internal/logging"
)

// Broadcaster fans events out to in-process subscribers. A subscriber whose
// buffer is full misses the event; Publish never blocks.
type Broadcaster struct {
	logger *slog.Logger
	buffer int

	mu     sync.Mutex
	subs   map[chan Event]struct{}
	closed bool
}

// NewBroadcaster returns a Broadcaster whose subscriber channels hold buffer events.
func NewBroadcaster(buffer int, logger *slog.Logger) *Broadcaster {
	if buffer < 1 {
		buffer = 1
	}
	return &Broadcaster{
		logger: logging.Component(logger, "broadcaster"),
		buffer: buffer,
		subs:   make(map[chan Event]struct{}),
	}
}

// Subscribe returns a channel of events and a function that cancels the
// subscription and closes the channel.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broadcaster) Publish(ev Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("subscriber lagging, event dropped", "kind", ev.Kind)
		}
	}
	return nil
}

// Close ends every subscription.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
	b.closed = true
	return nil
}
