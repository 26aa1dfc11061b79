// Package main provides the workflow execution engine process: the trigger
// dispatcher consuming record events and the resumption scheduler sweeping
// suspended runs.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/chasedharmon/nurture-nest-birth/pkg/eventbus"
	"github.com/chasedharmon/nurture-nest-birth/pkg/events"
	"github.com/chasedharmon/nurture-nest-birth/pkg/otelhelper"
	"github.com/chasedharmon/nurture-nest-birth/pkg/workflow"
)

type EngineManager struct {
	id         string
	logger     *slog.Logger
	eventBus   eventbus.EventBus
	dispatcher *workflow.Dispatcher
	scheduler  *workflow.Scheduler
	tracer     trace.Tracer
}

func NewEngineManager(
	id string,
	eventBus eventbus.EventBus,
	dispatcher *workflow.Dispatcher,
	scheduler *workflow.Scheduler,
	logger *slog.Logger,
) *EngineManager {
	return &EngineManager{
		id:         id,
		logger:     logger,
		eventBus:   eventBus,
		dispatcher: dispatcher,
		scheduler:  scheduler,
		tracer:     noop.NewTracerProvider().Tracer("nurture-engine"),
	}
}

func (e *EngineManager) Start(ctx context.Context) error {
	e.logger.InfoContext(ctx, "Starting engine manager")

	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		tracer, err := otelhelper.NewTracer(ctx, "nurture-engine")
		if err != nil {
			return err
		}

		e.tracer = tracer
	}

	if err := e.dispatcher.RegisterHandlers(tracingSubscriber{bus: e.eventBus, tracer: e.tracer, workerID: e.id}); err != nil {
		return err
	}

	if err := e.eventBus.Subscribe(ctx); err != nil {
		e.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	if err := e.scheduler.Start(ctx); err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "Engine started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	e.logger.InfoContext(ctx, "Shutting down engine...")
	e.scheduler.Stop()

	return nil
}

// tracingSubscriber wraps handler registration so every consumed record event
// runs inside a span.
type tracingSubscriber struct {
	bus      eventbus.EventSubscriber
	tracer   trace.Tracer
	workerID string
}

func (s tracingSubscriber) Handle(eventType events.EventType, handler eventbus.EventHandler) error {
	return s.bus.Handle(eventType, func(ctx context.Context, event any) error {
		ctx, span := otelhelper.StartSpan(ctx, s.tracer, "engine.handle_event",
			attribute.String("event_type", string(eventType)),
			attribute.String(otelhelper.WorkerIDKey, s.workerID),
		)
		defer span.End()

		err := handler(ctx, event)
		if err != nil {
			otelhelper.SetError(span, err)
		}

		return err
	})
}

func (s tracingSubscriber) Subscribe(ctx context.Context) error {
	return s.bus.Subscribe(ctx)
}
