package application

import (
	"log/slog"
	"sync"

	"home-hub/internal/domain"
	"home-hub/internal/metrics"
)

const SubscriberMailbox = 100

type Subscription struct {
	C  <-chan domain.Event
	id uint64
}

// Broadcaster fans events out to live subscribers without ever blocking the
// producer. A subscriber whose mailbox is full is evicted and its channel
// closed.
type Broadcaster struct {
	mu       sync.Mutex
	subs     map[uint64]chan domain.Event
	nextID   uint64
	capacity int
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewBroadcaster(capacity int, m *metrics.Metrics, logger *slog.Logger) *Broadcaster {
	if capacity <= 0 {
		capacity = SubscriberMailbox
	}
	return &Broadcaster{
		subs:     make(map[uint64]chan domain.Event),
		capacity: capacity,
		metrics:  m,
		logger:   logger,
	}
}

func (b *Broadcaster) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	ch := make(chan domain.Event, b.capacity)
	b.subs[b.nextID] = ch
	b.metrics.SetSubscribers(len(b.subs))
	return &Subscription{C: ch, id: b.nextID}
}

// Unsubscribe is safe to call more than once and after eviction.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[sub.id]; ok {
		delete(b.subs, sub.id)
		close(ch)
		b.metrics.SetSubscribers(len(b.subs))
	}
}

func (b *Broadcaster) Emit(event domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.metrics.EventEmitted(string(event.Type))
	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			delete(b.subs, id)
			close(ch)
			b.metrics.SubscriberEvicted()
			b.logger.Warn("subscriber mailbox full, evicting", "subscriber", id)
		}
	}
	b.metrics.SetSubscribers(len(b.subs))
}

func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
