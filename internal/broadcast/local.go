package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/nines-backend/internal/entity"
)

var ErrClosed = errors.New("broadcaster is closed")

// LocalHub is an in-process Broadcaster for a single node.
type LocalHub struct {
	logger *slog.Logger
	buffer int

	mu     sync.RWMutex
	closed bool
	topics map[string]map[*Subscription]struct{}
}

func NewLocalHub(logger *slog.Logger, buffer int) *LocalHub {
	return &LocalHub{
		logger: logger.With("component", "local_hub"),
		buffer: buffer,
		topics: make(map[string]map[*Subscription]struct{}),
	}
}

// Publish hands every subscriber its own decoded copy of the event.
func (that *LocalHub) Publish(_ context.Context, event *entity.Event) error {
	log := that.logger.With("method", "Publish")

	payload, err := Encode(event)
	if err != nil {
		return err
	}

	topic := entity.TopicName(event.Code)

	that.mu.RLock()
	defer that.mu.RUnlock()

	if that.closed {
		return ErrClosed
	}

	for sub := range that.topics[topic] {
		copied, err := Decode(payload)
		if err != nil {
			return err
		}

		if !sub.deliver(copied) {
			log.Warn("subscriber is behind, event dropped", "topic", topic, "revision", event.Revision)
		}
	}

	return nil
}

func (that *LocalHub) Subscribe(_ context.Context, code string) (*Subscription, error) {
	topic := entity.TopicName(code)

	that.mu.Lock()
	defer that.mu.Unlock()

	if that.closed {
		return nil, ErrClosed
	}

	var sub *Subscription
	sub = newSubscription(topic, that.buffer, func() {
		that.remove(topic, sub)
	})

	if that.topics[topic] == nil {
		that.topics[topic] = make(map[*Subscription]struct{})
	}
	that.topics[topic][sub] = struct{}{}

	return sub, nil
}

// Close ends every open subscription.
func (that *LocalHub) Close() error {
	that.mu.Lock()
	that.closed = true
	var subs []*Subscription
	for _, topicSubs := range that.topics {
		for sub := range topicSubs {
			subs = append(subs, sub)
		}
	}
	that.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}

	return nil
}

func (that *LocalHub) remove(topic string, sub *Subscription) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.topics[topic], sub)
	if len(that.topics[topic]) == 0 {
		delete(that.topics, topic)
	}
}

func (that *LocalHub) subscriberCount(code string) int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.topics[entity.TopicName(code)])
}
