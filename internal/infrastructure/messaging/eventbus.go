// Package messaging implements the in-process event bus of the ninja dashboard.
// Command handlers publish progression events here; the Redis forwarder and
// other listeners subscribe.
package messaging

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dojo-hub/ninja-dashboard/internal/domain/shared"
	"github.com/dojo-hub/ninja-dashboard/pkg/logger"
)

var (
	// ErrEventBusClosed is returned by Publish and Subscribe after Close.
	ErrEventBusClosed = errors.New("event bus is closed")

	// ErrHandlerPanic wraps a recovered handler panic.
	ErrHandlerPanic = errors.New("handler panicked")

	errNilHandler = errors.New("handler cannot be nil")
	errNilEvent   = errors.New("event cannot be nil")
)

// HandlerObserver receives the outcome of every handler run.
type HandlerObserver interface {
	ObserveEvent(eventType string, duration time.Duration, err error)
}

type nopHandlerObserver struct{}

func (nopHandlerObserver) ObserveEvent(string, time.Duration, error) {}

// InMemoryEventBusConfig configures InMemoryEventBus.
type InMemoryEventBusConfig struct {
	// AsyncMode hands deliveries to a worker pool. Otherwise Publish runs
	// every handler before it returns.
	AsyncMode bool

	// WorkerPoolSize is the number of workers in async mode.
	WorkerPoolSize int

	// QueueSize bounds pending deliveries in async mode. Publish blocks
	// while the queue is full.
	QueueSize int

	Logger   *logger.Logger
	Observer HandlerObserver
}

// DefaultInMemoryEventBusConfig: async, 4 workers, 256 queued deliveries.
func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 4,
		QueueSize:      256,
	}
}

// delivery is one (event, handler) pair waiting for a worker.
type delivery struct {
	event   shared.Event
	handler shared.EventHandler
}

// InMemoryEventBus implements shared.EventBus for a single process.
// Handler errors and panics are logged and observed, never returned to the
// publisher.
type InMemoryEventBus struct {
	mu       sync.RWMutex
	handlers map[shared.EventType][]shared.EventHandler
	global   []shared.EventHandler
	closed   bool

	queue    chan delivery // nil in sync mode
	workers  sync.WaitGroup
	inflight sync.WaitGroup // publishes past the closed check

	log      *logger.Logger
	observer HandlerObserver
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)

// NewInMemoryEventBus starts the workers when cfg.AsyncMode is set.
func NewInMemoryEventBus(cfg InMemoryEventBusConfig) *InMemoryEventBus {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Observer == nil {
		cfg.Observer = nopHandlerObserver{}
	}

	b := &InMemoryEventBus{
		handlers: make(map[shared.EventType][]shared.EventHandler),
		log:      cfg.Logger.With(logger.Component("eventbus")),
		observer: cfg.Observer,
	}

	if cfg.AsyncMode {
		def := DefaultInMemoryEventBusConfig()
		if cfg.WorkerPoolSize <= 0 {
			cfg.WorkerPoolSize = def.WorkerPoolSize
		}
		if cfg.QueueSize <= 0 {
			cfg.QueueSize = def.QueueSize
		}

		b.queue = make(chan delivery, cfg.QueueSize)
		b.workers.Add(cfg.WorkerPoolSize)
		for i := 0; i < cfg.WorkerPoolSize; i++ {
			go b.worker()
		}
	}

	return b
}

// Subscribe registers handler for one event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.subscribe(handler, func() {
		b.handlers[eventType] = append(b.handlers[eventType], handler)
	})
}

// SubscribeAll registers handler for every event type.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.subscribe(handler, func() {
		b.global = append(b.global, handler)
	})
}

func (b *InMemoryEventBus) subscribe(handler shared.EventHandler, add func()) error {
	if handler == nil {
		return errNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}
	add()
	return nil
}

// Publish delivers event to its type's handlers, then to global handlers.
// Handlers run without the bus lock held, so they may subscribe or publish.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errNilEvent
	}

	deliveries, err := b.snapshot(event)
	if err != nil || len(deliveries) == 0 {
		return err
	}
	defer b.inflight.Done()

	for _, d := range deliveries {
		if b.queue != nil {
			b.queue <- d
			continue
		}
		b.run(d)
	}
	return nil
}

// snapshot copies the handlers for event. When it returns deliveries the
// publish is counted in inflight and Close waits for it before closing the queue.
func (b *InMemoryEventBus) snapshot(event shared.Event) ([]delivery, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrEventBusClosed
	}

	typed := b.handlers[event.EventType()]
	if len(typed)+len(b.global) == 0 {
		b.log.Debug("no handlers for event", logger.String("event_type", string(event.EventType())))
		return nil, nil
	}

	out := make([]delivery, 0, len(typed)+len(b.global))
	for _, h := range typed {
		out = append(out, delivery{event: event, handler: h})
	}
	for _, h := range b.global {
		out = append(out, delivery{event: event, handler: h})
	}
	b.inflight.Add(1)
	return out, nil
}

func (b *InMemoryEventBus) worker() {
	defer b.workers.Done()
	for d := range b.queue {
		b.run(d)
	}
}

func (b *InMemoryEventBus) run(d delivery) {
	if err := b.execute(d); err != nil {
		b.log.Error("event handler failed",
			logger.String("event_type", string(d.event.EventType())),
			logger.NinjaID(d.event.AggregateID()),
			logger.Err(err),
		)
	}
}

// execute runs one handler, turning a panic into ErrHandlerPanic.
func (b *InMemoryEventBus) execute(d delivery) (err error) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, p)
		}
		b.observer.ObserveEvent(string(d.event.EventType()), time.Since(start), err)
	}()

	return d.handler(d.event)
}

// Close rejects new events and subscriptions, then waits until the workers
// have run every queued delivery. Calling it again is a no-op.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	// No publish can start once closed is set; wait for the running ones.
	b.inflight.Wait()
	if b.queue != nil {
		close(b.queue)
	}
	b.workers.Wait()
	b.log.Info("event bus closed")
	return nil
}
