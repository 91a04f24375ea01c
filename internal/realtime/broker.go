package realtime

import (
	"context"
)

// Publisher is the fan-out port used by the chat services.
// Delivery is at-most-once: a session that is not connected misses the event.
type Publisher interface {
	Publish(ctx context.Context, topic Topic, ev Event) error
}

// Deliverer hands an encoded frame to the sessions of this process subscribed to topic.
type Deliverer interface {
	Deliver(topic Topic, frame []byte)
}

// LocalBroker delivers in the calling goroutine, for single-instance deployments and tests.
type LocalBroker struct {
	deliverer Deliverer
}

func NewLocalBroker(deliverer Deliverer) *LocalBroker {
	return &LocalBroker{deliverer: deliverer}
}

func (b *LocalBroker) Publish(ctx context.Context, topic Topic, ev Event) error {
	frame, err := Encode(topic, ev)
	if err != nil {
		return err
	}
	b.deliverer.Deliver(topic, frame)
	return nil
}

// Run blocks until ctx is done, matching RedisBroker so the app can start either.
func (b *LocalBroker) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}
