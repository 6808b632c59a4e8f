package services

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"shortforge/internal/core/domain"
)

func TestEventBus_PubSub(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	bus := NewEventBus(logger)

	unitID := domain.UnitID("unit-123")

	ch, unsub := bus.Subscribe(string(unitID))
	defer unsub()

	event := Event{
		UnitID: unitID,
		Type:   EventStageStarted,
		Stage:  domain.StageScript,
	}
	bus.Publish(event)

	select {
	case received := <-ch:
		assert.Equal(t, event.UnitID, received.UnitID)
		assert.Equal(t, event.Type, received.Type)
		assert.Equal(t, event.Stage, received.Stage)
		assert.False(t, received.Timestamp.IsZero())
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestEventBus_Unsubscribe(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	bus := NewEventBus(logger)

	ch, unsub := bus.Subscribe("unit-456")
	unsub()

	bus.Publish(Event{UnitID: "unit-456", Type: EventUnitCompleted})

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")
}

func TestEventBus_PublishNoSubscriber(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	bus := NewEventBus(logger)

	// Must not panic or block.
	bus.Publish(Event{UnitID: "no-such-unit", Type: EventUnitFailed})
}

func TestEventBus_Broadcast(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	bus := NewEventBus(logger)

	allCh, unsubAll := bus.Subscribe(BroadcastKey)
	defer unsubAll()
	unitCh, unsubUnit := bus.Subscribe("unit-abc")
	defer unsubUnit()

	bus.Publish(Event{UnitID: "unit-abc", Type: EventAttemptRejected, Stage: domain.StageTopic, Attempt: 2})

	for _, ch := range []<-chan Event{allCh, unitCh} {
		select {
		case evt := <-ch:
			assert.Equal(t, domain.UnitID("unit-abc"), evt.UnitID)
			assert.Equal(t, EventAttemptRejected, evt.Type)
			assert.Equal(t, 2, evt.Attempt)
		case <-time.After(1 * time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestEventBus_MultipleSubscribers(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	bus := NewEventBus(logger)

	ch1, unsub1 := bus.Subscribe("unit-multi")
	defer unsub1()
	ch2, unsub2 := bus.Subscribe("unit-multi")
	defer unsub2()

	bus.Publish(Event{UnitID: "unit-multi", Type: EventUnitStarted})

	timeout := time.After(1 * time.Second)
	got1, got2 := false, false
	for i := 0; i < 2; i++ {
		select {
		case <-ch1:
			got1 = true
		case <-ch2:
			got2 = true
		case <-timeout:
			t.Fatal("timeout")
		}
	}

	assert.True(t, got1)
	assert.True(t, got2)
}
