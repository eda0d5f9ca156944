package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dojo-hub/ninja-dashboard/internal/domain/shared"
)

// ProgressHandler receives one decoded envelope. A non-nil decode error means
// the message on the channel was not an envelope; env is zero in that case.
type ProgressHandler func(env shared.EventEnvelope, err error)

// WatchProgress subscribes to the progress channel (name without the pubsub:
// prefix) and calls fn for every message until ctx is done.
func (c *Cache) WatchProgress(ctx context.Context, channel string, fn ProgressHandler) error {
	sub := c.Subscribe(ctx, PubSubChannel(channel))
	defer sub.Close()

	// The first reply confirms the subscription.
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("%w: subscribe %s: %v", ErrCacheConnection, channel, err)
	}

	return watchMessages(ctx, sub.Channel(), fn)
}

func watchMessages(ctx context.Context, messages <-chan *redis.Message, fn ProgressHandler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}

			var env shared.EventEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				fn(shared.EventEnvelope{}, fmt.Errorf("%w: %s: %v", ErrCacheSerialization, msg.Channel, err))
				continue
			}
			fn(env, nil)
		}
	}
}
