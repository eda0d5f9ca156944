package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dojo-hub/ninja-dashboard/internal/domain/shared"
)

func TestWatchMessages_DecodesEnvelopes(t *testing.T) {
	env, err := shared.NewEventEnvelope("evt-1", progressedEvent())
	require.NoError(t, err)
	payload, err := json.Marshal(env)
	require.NoError(t, err)

	messages := make(chan *redis.Message, 2)
	messages <- &redis.Message{Channel: "pubsub:dojo:progress", Payload: string(payload)}
	messages <- &redis.Message{Channel: "pubsub:dojo:progress", Payload: "not json"}
	close(messages)

	var (
		got  []shared.EventEnvelope
		errs []error
	)
	err = watchMessages(context.Background(), messages, func(e shared.EventEnvelope, err error) {
		if err != nil {
			errs = append(errs, err)
			return
		}
		got = append(got, e)
	})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "evt-1", got[0].ID)
	assert.Equal(t, shared.EventNinjaProgressed, got[0].Type)
	assert.Equal(t, "n-1", got[0].AggregateID)
	assert.Equal(t, "req-1", got[0].CorrelationID)

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrCacheSerialization)
}

func TestWatchMessages_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	messages := make(chan *redis.Message)

	done := make(chan error, 1)
	go func() {
		done <- watchMessages(ctx, messages, func(shared.EventEnvelope, error) {
			t.Error("handler must not be called")
		})
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestCache_InvalidArguments(t *testing.T) {
	c := &Cache{}
	ctx := context.Background()

	assert.ErrorIs(t, c.Set(ctx, "", 1, time.Minute), ErrCacheInvalidArg)
	assert.ErrorIs(t, c.Set(ctx, "k", nil, time.Minute), ErrCacheInvalidArg)
	assert.ErrorIs(t, c.Set(ctx, "k", 1, -time.Second), ErrCacheInvalidArg)
	assert.ErrorIs(t, c.Get(ctx, "", new(int)), ErrCacheInvalidArg)
	assert.ErrorIs(t, c.Publish(ctx, "", "hi"), ErrCacheInvalidArg)
	assert.NoError(t, c.Delete(ctx))
}

func TestConfig_Options(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "cache.internal"
	cfg.Password = "secret"
	cfg.DB = 3

	opts := cfg.Options()
	assert.Equal(t, "cache.internal:6379", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 3, opts.DB)
	assert.Equal(t, cfg.DialTimeout, opts.DialTimeout)
}
