package broadcast

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/nines-backend/internal/entity"
)

// RedisBroadcaster publishes events over Redis Pub/Sub so every node sees them.
type RedisBroadcaster struct {
	logger *slog.Logger
	client *redis.Client
	buffer int
}

func NewRedisBroadcaster(logger *slog.Logger, client *redis.Client, buffer int) *RedisBroadcaster {
	return &RedisBroadcaster{
		logger: logger.With("component", "redis_broadcaster"),
		client: client,
		buffer: buffer,
	}
}

func (that *RedisBroadcaster) Publish(ctx context.Context, event *entity.Event) error {
	payload, err := Encode(event)
	if err != nil {
		return err
	}

	if err = that.client.Publish(ctx, entity.TopicName(event.Code), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Subscribe returns once Redis has confirmed the subscription, so events published
// afterwards are not missed. The subscription ends when ctx is done or Close is called.
func (that *RedisBroadcaster) Subscribe(ctx context.Context, code string) (*Subscription, error) {
	topic := entity.TopicName(code)

	pubsub := that.client.Subscribe(ctx, topic)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := newSubscription(topic, that.buffer, cancel)

	go that.forward(subCtx, pubsub, sub)

	return sub, nil
}

// Close is a no-op: the client belongs to the storage layer.
func (that *RedisBroadcaster) Close() error {
	return nil
}

func (that *RedisBroadcaster) forward(ctx context.Context, pubsub *redis.PubSub, sub *Subscription) {
	log := that.logger.With("method", "forward", "topic", sub.Topic)

	defer sub.Close()
	defer pubsub.Close()

	messages := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}

			event, err := Decode([]byte(msg.Payload))
			if err != nil {
				log.Warn("skipping undecodable event", "error", err)
				continue
			}

			if !sub.deliver(event) {
				log.Warn("subscriber is behind, event dropped", "revision", event.Revision)
			}
		}
	}
}
