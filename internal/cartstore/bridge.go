package cartstore

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/shopmesh/shopmesh-client/pkg/logger"
	"github.com/shopmesh/shopmesh-client/pkg/redis"
)

// Bridge relays cart-change events between this process and every other
// running view through redis pub/sub. Without it, notifications stay
// process-local, which is still correct: readers that miss an event just
// render slightly stale state until their next load.
type Bridge struct {
	instanceID string
	client     *redis.Client
	notifier   *Notifier
	logger     *logger.Logger
}

func NewBridge(client *redis.Client, notifier *Notifier, logg *logger.Logger) *Bridge {
	return &Bridge{
		instanceID: uuid.NewString(),
		client:     client,
		notifier:   notifier,
		logger:     logg,
	}
}

// Start wires both directions and blocks receiving remote events until ctx
// is cancelled. Run it on its own goroutine. Publishing outward is best
// effort: a redis hiccup is logged and dropped, never surfaced to the write
// that triggered it.
func (b *Bridge) Start(ctx context.Context) error {
	unsubscribe := b.notifier.Subscribe(func(event Event) {
		if event.Origin != "" && event.Origin != b.instanceID {
			// Came in from another process; relaying it back would loop.
			return
		}
		event.Origin = b.instanceID
		payload, err := json.Marshal(event)
		if err != nil {
			return
		}
		if err := b.client.Publish(ctx, string(payload)); err != nil && b.logger != nil {
			b.logger.Warn(ctx, "dropping cart event relay: "+err.Error())
		}
	})
	defer unsubscribe()

	sub, err := b.client.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = sub.Close()
	}()

	channel := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-channel:
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				if b.logger != nil {
					b.logger.Warn(ctx, "discarding malformed cart event: "+err.Error())
				}
				continue
			}
			if event.Origin == b.instanceID {
				continue
			}
			b.notifier.Publish(event)
		}
	}
}
