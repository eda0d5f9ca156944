package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dojo-hub/ninja-dashboard/internal/domain/shared"
	"github.com/dojo-hub/ninja-dashboard/pkg/logger"
	"github.com/dojo-hub/ninja-dashboard/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS PUBLISHER
// ══════════════════════════════════════════════════════════════════════════════

// ChannelPublisher publishes a JSON message to a pub/sub channel.
// *Cache implements it.
type ChannelPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// ProgressPublisherConfig configures a ProgressPublisher.
type ProgressPublisherConfig struct {
	// Channel is the pub/sub channel name, without the pubsub: prefix.
	Channel string

	// Timeout bounds a single publish, retries included.
	Timeout time.Duration

	// Enabled reports whether forwarding is switched on. Nil means always.
	Enabled func() bool

	Logger *logger.Logger
}

// ProgressPublisher forwards progression events from the event bus to a Redis
// channel. The dashboard's live notifier subscribes to that channel.
type ProgressPublisher struct {
	publisher ChannelPublisher
	channel   string
	timeout   time.Duration
	enabled   func() bool
	retrier   *retry.Retrier
	log       *logger.Logger
}

// NewProgressPublisher creates a new ProgressPublisher.
func NewProgressPublisher(publisher ChannelPublisher, cfg ProgressPublisherConfig) *ProgressPublisher {
	if cfg.Channel == "" {
		cfg.Channel = "dojo:progress"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.Enabled == nil {
		cfg.Enabled = func() bool { return true }
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	return &ProgressPublisher{
		publisher: publisher,
		channel:   PubSubChannel(cfg.Channel),
		timeout:   cfg.Timeout,
		enabled:   cfg.Enabled,
		retrier: retry.New(
			retry.WithMaxAttempts(3),
			retry.WithInitialDelay(50*time.Millisecond),
			retry.WithMaxDelay(500*time.Millisecond),
			retry.WithRetryIf(func(err error) bool { return !errors.Is(err, ErrCacheSerialization) }),
		),
		log: cfg.Logger.With(logger.Component("progress_publisher")),
	}
}

// Channel returns the full channel name.
func (p *ProgressPublisher) Channel() string {
	return p.channel
}

// Register subscribes the publisher to progression events on the bus.
func (p *ProgressPublisher) Register(bus shared.EventSubscriber) error {
	for _, t := range []shared.EventType{
		shared.EventNinjaCreated,
		shared.EventNinjaProgressed,
		shared.EventProgressCorrected,
	} {
		if err := bus.Subscribe(t, p.Handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", t, err)
		}
	}
	return nil
}

// Handle wraps the event in an envelope and publishes it.
func (p *ProgressPublisher) Handle(event shared.Event) error {
	if !p.enabled() {
		return nil
	}

	env, err := shared.NewEventEnvelope(uuid.NewString(), event)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event.EventType(), err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	err = p.retrier.Do(ctx, func(ctx context.Context) error {
		return p.publisher.Publish(ctx, p.channel, env)
	})
	if err != nil {
		p.log.Warn("failed to forward event",
			logger.String("event_type", string(event.EventType())),
			logger.NinjaID(event.AggregateID()),
			logger.Err(err),
		)
		return err
	}

	p.log.Debug("event forwarded",
		logger.String("event_type", string(event.EventType())),
		logger.NinjaID(event.AggregateID()),
	)
	return nil
}
