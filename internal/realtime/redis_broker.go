package realtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"huddle_backend/internal/logger"

	"github.com/redis/go-redis/v9"
)

// RedisBroker fans events out across instances through Redis pub/sub.
// Every instance publishes to prefix+topic and pattern-subscribes to prefix+"*".
type RedisBroker struct {
	client    *redis.Client
	prefix    string
	deliverer Deliverer
	ready     chan struct{}
}

func NewRedisBroker(client *redis.Client, prefix string, deliverer Deliverer) *RedisBroker {
	return &RedisBroker{
		client:    client,
		prefix:    prefix,
		deliverer: deliverer,
		ready:     make(chan struct{}),
	}
}

func (b *RedisBroker) Publish(ctx context.Context, topic Topic, ev Event) error {
	frame, err := Encode(topic, ev)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.prefix+topic.String(), frame).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", topic, err)
	}
	return nil
}

// Ready is closed once the subscription is confirmed by Redis.
func (b *RedisBroker) Ready() <-chan struct{} {
	return b.ready
}

// Run consumes the subscription until ctx is done. Frames are delivered in the order Redis sends them.
func (b *RedisBroker) Run(ctx context.Context) error {
	pubsub := b.client.PSubscribe(ctx, b.prefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis psubscribe: %w", err)
	}
	close(b.ready)
	logger.Info("realtime broker subscribed", "pattern", b.prefix+"*")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}
			b.handle(msg)
		}
	}
}

func (b *RedisBroker) handle(msg *redis.Message) {
	topic := Topic(strings.TrimPrefix(msg.Channel, b.prefix))
	frame := []byte(msg.Payload)

	frameTopic, _, err := Decode(frame)
	if err != nil {
		logger.Warn("dropping malformed realtime frame", "channel", msg.Channel, "error", err)
		return
	}
	if frameTopic != topic || !topic.Valid() {
		logger.Warn("dropping realtime frame with mismatched topic", "channel", msg.Channel, "topic", frameTopic)
		return
	}
	b.deliverer.Deliver(topic, frame)
}
