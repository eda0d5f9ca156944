// Package shared содержит типы, ошибки и события, общие для всех доменных пакетов.
package shared

import (
	"encoding/json"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ТИПЫ СОБЫТИЙ
// ══════════════════════════════════════════════════════════════════════════════

// EventType - имя события на шине и в канале Redis.
type EventType string

const (
	EventNinjaCreated      EventType = "ninja.created"
	EventNinjaProgressed   EventType = "progress.advanced"
	EventProgressCorrected EventType = "progress.corrected"
)

// envelopeVersion - версия формата EventEnvelope.
const envelopeVersion = 1

// Event - доменное событие. Полезная нагрузка сериализуется целиком через
// encoding/json, поэтому у конкретных событий должны быть json-теги.
type Event interface {
	EventType() EventType
	OccurredAt() time.Time
	AggregateID() string
}

// BaseEvent встраивается во все события и реализует Event.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     envelopeVersion,
	}
}

func (e BaseEvent) EventType() EventType  { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) AggregateID() string   { return e.AggregateId }
func (e BaseEvent) Correlation() string   { return e.CorrelationID }

// WithCorrelationID возвращает копию с ID запроса, породившего событие.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ══════════════════════════════════════════════════════════════════════════════
// СОБЫТИЯ НИНДЗЯ
// ══════════════════════════════════════════════════════════════════════════════

// NinjaCreatedEvent - администратор завёл нового ниндзя.
type NinjaCreatedEvent struct {
	BaseEvent
	Username string `json:"username"`
	Path     string `json:"path"`
}

func NewNinjaCreatedEvent(ninjaID, username, path string) NinjaCreatedEvent {
	return NinjaCreatedEvent{
		BaseEvent: NewBaseEvent(EventNinjaCreated, ninjaID),
		Username:  username,
		Path:      path,
	}
}

// ProgressSnapshot - позиция на лестнице в плоском виде для транспорта.
type ProgressSnapshot struct {
	Path   string `json:"path"`
	Belt   string `json:"belt"`
	Level  int    `json:"level"`
	Lesson int    `json:"lesson"`
}

// NinjaProgressedEvent - позиция ниндзя изменилась: "Lesson Up" или правка
// администратора. Kind совпадает с видом записи в истории.
type NinjaProgressedEvent struct {
	BaseEvent
	EntryID  string           `json:"entry_id"`
	Kind     string           `json:"kind"`
	Rollover string           `json:"rollover,omitempty"`
	From     ProgressSnapshot `json:"from"`
	To       ProgressSnapshot `json:"to"`
	BuxDelta int              `json:"bux_delta"`
}

func NewNinjaProgressedEvent(ninjaID, entryID, kind, rollover string, from, to ProgressSnapshot, buxDelta int) NinjaProgressedEvent {
	return NinjaProgressedEvent{
		BaseEvent: NewBaseEvent(EventNinjaProgressed, ninjaID),
		EntryID:   entryID,
		Kind:      kind,
		Rollover:  rollover,
		From:      from,
		To:        to,
		BuxDelta:  buxDelta,
	}
}

// ProgressCorrectedEvent - запись истории исправлена задним числом.
type ProgressCorrectedEvent struct {
	BaseEvent
	EntryID  string           `json:"entry_id"`
	Previous ProgressSnapshot `json:"previous"`
	Current  ProgressSnapshot `json:"current"`
}

func NewProgressCorrectedEvent(ninjaID, entryID string, previous, current ProgressSnapshot) ProgressCorrectedEvent {
	return ProgressCorrectedEvent{
		BaseEvent: NewBaseEvent(EventProgressCorrected, ninjaID),
		EntryID:   entryID,
		Previous:  previous,
		Current:   current,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ТРАНСПОРТ
// ══════════════════════════════════════════════════════════════════════════════

// EventEnvelope - событие в том виде, в каком оно уходит в Redis.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

func NewEventEnvelope(id string, event Event) (EventEnvelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return EventEnvelope{}, err
	}

	env := EventEnvelope{
		ID:          id,
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		Timestamp:   event.OccurredAt(),
		Version:     envelopeVersion,
		Payload:     payload,
	}
	if c, ok := event.(interface{ Correlation() string }); ok {
		env.CorrelationID = c.Correlation()
	}
	return env, nil
}

// EventHandler обрабатывает одно событие. Ошибка логируется шиной и не
// возвращается издателю.
type EventHandler func(event Event) error

type EventPublisher interface {
	Publish(event Event) error
}

type EventSubscriber interface {
	Subscribe(eventType EventType, handler EventHandler) error
	SubscribeAll(handler EventHandler) error
}

type EventBus interface {
	EventPublisher
	EventSubscriber
}
