package services

import (
	"log/slog"
	"sync"
	"time"

	"shortforge/internal/core/domain"
)

type EventType string

const (
	EventUnitStarted     EventType = "unit.started"
	EventUnitCompleted   EventType = "unit.completed"
	EventUnitFailed      EventType = "unit.failed"
	EventStageStarted    EventType = "stage.started"
	EventStageCompleted  EventType = "stage.completed"
	EventAttemptRejected EventType = "attempt.rejected"
	EventAttemptError    EventType = "attempt.error"
	EventUploadCompleted EventType = "upload.completed"
	EventUploadFailed    EventType = "upload.failed"
)

// BroadcastKey subscribes to events for every unit.
const BroadcastKey = "*"

type Event struct {
	UnitID    domain.UnitID `json:"unit_id"`
	Type      EventType     `json:"type"`
	Stage     domain.Stage  `json:"stage,omitempty"`
	Attempt   int           `json:"attempt,omitempty"`
	Detail    string        `json:"detail,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// EventBus fans pipeline progress out to subscribers keyed by unit ID.
type EventBus struct {
	logger *slog.Logger
	mu     sync.RWMutex
	subs   map[string][]chan Event
}

func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{
		logger: logger,
		subs:   make(map[string][]chan Event),
	}
}

// Subscribe returns a channel receiving events for one unit, or for all
// units when key is BroadcastKey. The returned func unsubscribes.
func (b *EventBus) Subscribe(key string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 100) // buffered so publishers never block
	b.subs[key] = append(b.subs[key], ch)

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subscribers := b.subs[key]
		for i, sub := range subscribers {
			if sub == ch {
				close(ch)
				b.subs[key] = append(subscribers[:i], subscribers[i+1:]...)
				break
			}
		}
		if len(b.subs[key]) == 0 {
			delete(b.subs, key)
		}
	}

	return ch, unsub
}

// Publish sends an event to the unit's subscribers and to broadcast
// subscribers. Full channels drop the event rather than stall the pipeline.
func (b *EventBus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	targets := append([]chan Event{}, b.subs[string(e.UnitID)]...)
	targets = append(targets, b.subs[BroadcastKey]...)

	for _, ch := range targets {
		select {
		case ch <- e:
		default:
			b.logger.Warn("event bus channel full, dropping event", "unit_id", e.UnitID, "type", e.Type)
		}
	}
}
