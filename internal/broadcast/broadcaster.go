package broadcast

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rocketscienceinc/nines-backend/internal/entity"
)

// Broadcaster fans game events out to the subscribers of each game topic.
// Delivery is best effort and at most once; late subscribers get no replay.
type Broadcaster interface {
	Publish(ctx context.Context, event *entity.Event) error
	Subscribe(ctx context.Context, code string) (*Subscription, error)
	Close() error
}

// Subscription is a bounded stream of events for one topic.
// A full buffer drops the event instead of blocking the publisher.
type Subscription struct {
	Topic string

	mu      sync.Mutex
	closed  bool
	events  chan *entity.Event
	dropped atomic.Int64

	once    sync.Once
	release func()
}

func newSubscription(topic string, buffer int, release func()) *Subscription {
	return &Subscription{
		Topic:   topic,
		events:  make(chan *entity.Event, buffer),
		release: release,
	}
}

// Events is closed once the subscription ends.
func (that *Subscription) Events() <-chan *entity.Event {
	return that.events
}

// Dropped - number of events lost because the consumer fell behind.
func (that *Subscription) Dropped() int64 {
	return that.dropped.Load()
}

func (that *Subscription) Close() {
	that.once.Do(func() {
		if that.release != nil {
			that.release()
		}

		that.mu.Lock()
		that.closed = true
		close(that.events)
		that.mu.Unlock()
	})
}

func (that *Subscription) deliver(event *entity.Event) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return false
	}

	select {
	case that.events <- event:
		return true
	default:
		that.dropped.Add(1)
		return false
	}
}
