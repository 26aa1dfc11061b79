package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chasedharmon/nurture-nest-birth/pkg/eventbus"
	"github.com/chasedharmon/nurture-nest-birth/pkg/eventbus/gochannel"
	"github.com/chasedharmon/nurture-nest-birth/pkg/events"
	"github.com/chasedharmon/nurture-nest-birth/pkg/models"
)

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() {
		_ = bus.Close()
	})

	return bus
}

func TestWatermillEventBus_RecordEventRoundTrip(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan *events.RecordCreated, 1)

	err := bus.Handle(events.RecordCreatedEvent, func(_ context.Context, event any) error {
		created, ok := event.(*events.RecordCreated)
		require.True(t, ok)
		received <- created

		return nil
	})
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(ctx))

	published := events.RecordCreated{
		BaseEvent:  events.NewBaseEvent(events.RecordCreatedEvent),
		ObjectType: models.ObjectTypeLead,
		RecordID:   "lead-1",
		Fields:     map[string]any{"status": "new", "source": "website"},
	}
	require.NoError(t, bus.Publish(ctx, "lead-1", published))

	select {
	case got := <-received:
		assert.Equal(t, "lead-1", got.RecordID)
		assert.Equal(t, models.ObjectTypeLead, got.ObjectType)
		assert.Equal(t, "new", got.Fields["status"])
	case <-ctx.Done():
		t.Fatal("timed out waiting for record event")
	}
}

func TestWatermillEventBus_RunEventRoundTrip(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan *events.RunSuspended, 1)

	err := bus.Handle(events.RunSuspendedEvent, func(_ context.Context, event any) error {
		suspended, ok := event.(*events.RunSuspended)
		require.True(t, ok)
		received <- suspended

		return nil
	})
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(ctx))

	waitUntil := time.Now().UTC().Add(72 * time.Hour)
	require.NoError(t, bus.Publish(ctx, "run-1", events.RunSuspended{
		BaseEvent:  events.NewBaseEvent(events.RunSuspendedEvent),
		RunID:      "run-1",
		WorkflowID: "wf-1",
		StepKey:    "wait",
		WaitUntil:  waitUntil,
	}))

	select {
	case got := <-received:
		assert.Equal(t, "run-1", got.RunID)
		assert.Equal(t, "wait", got.StepKey)
	case <-ctx.Done():
		t.Fatal("timed out waiting for run event")
	}
}

func TestWatermillEventBus_UnhandledEventIsDropped(t *testing.T) {
	bus := newTestBus(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	handled := make(chan struct{}, 1)

	err := bus.Handle(events.RunCompletedEvent, func(_ context.Context, _ any) error {
		handled <- struct{}{}

		return nil
	})
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered for run.failed; it must be acked, not redelivered.
	require.NoError(t, bus.Publish(ctx, "run-2", events.RunFailed{
		BaseEvent: events.NewBaseEvent(events.RunFailedEvent),
		RunID:     "run-2",
	}))
	require.NoError(t, bus.Publish(ctx, "run-2", events.RunCompleted{
		BaseEvent: events.NewBaseEvent(events.RunCompletedEvent),
		RunID:     "run-2",
	}))

	select {
	case <-handled:
	case <-ctx.Done():
		t.Fatal("timed out waiting for run.completed")
	}
}
