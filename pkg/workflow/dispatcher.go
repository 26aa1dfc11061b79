package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/chasedharmon/nurture-nest-birth/pkg/criteria"
	"github.com/chasedharmon/nurture-nest-birth/pkg/eventbus"
	"github.com/chasedharmon/nurture-nest-birth/pkg/events"
	"github.com/chasedharmon/nurture-nest-birth/pkg/locks"
	"github.com/chasedharmon/nurture-nest-birth/pkg/models"
	"github.com/chasedharmon/nurture-nest-birth/pkg/persistence"
)

// Dispatcher reacts to CRM record lifecycle events: for every active workflow
// targeting the event's object type it evaluates entry criteria against the
// event's field snapshot, applies the re-entry policy, and starts a run.
//
// One misconfigured workflow never blocks dispatch for the others; its error
// is logged and the loop continues.
type Dispatcher struct {
	persistence persistence.Persistence
	executor    *Executor
	evaluator   *criteria.Evaluator
	locker      locks.Locker
	logger      *slog.Logger
	now         func() time.Time
}

// NewDispatcher creates the trigger dispatcher. The locker serializes entry
// for a (workflow, record) pair across engine instances, so the re-entry
// check and the run creation happen atomically.
func NewDispatcher(p persistence.Persistence, executor *Executor, locker locks.Locker, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		persistence: p,
		executor:    executor,
		evaluator:   criteria.NewEvaluator(),
		locker:      locker,
		logger:      logger.With("module", "dispatcher"),
		now:         time.Now,
	}
}

// RegisterHandlers subscribes the dispatcher to record create and update
// events on the bus.
func (d *Dispatcher) RegisterHandlers(bus eventbus.EventSubscriber) error {
	err := bus.Handle(events.RecordCreatedEvent, func(ctx context.Context, event any) error {
		created, ok := event.(*events.RecordCreated)
		if !ok {
			return fmt.Errorf("unexpected event payload %T", event)
		}

		return d.Dispatch(ctx, created.ObjectType, created.RecordID, created.Fields)
	})
	if err != nil {
		return err
	}

	return bus.Handle(events.RecordUpdatedEvent, func(ctx context.Context, event any) error {
		updated, ok := event.(*events.RecordUpdated)
		if !ok {
			return fmt.Errorf("unexpected event payload %T", event)
		}

		return d.Dispatch(ctx, updated.ObjectType, updated.RecordID, updated.Fields)
	})
}

// Dispatch evaluates one record event against every active workflow for its
// object type. Entry criteria run against the event's snapshot, not a fresh
// read: they describe the record that fired the event.
func (d *Dispatcher) Dispatch(ctx context.Context, objectType models.ObjectType, recordID string, fields map[string]any) error {
	workflows, err := d.persistence.Workflows().ListActiveByObjectType(ctx, objectType)
	if err != nil {
		return fmt.Errorf("failed to list active workflows for %s: %w", objectType, err)
	}

	for _, workflow := range workflows {
		if err := d.dispatchOne(ctx, workflow, recordID, fields); err != nil {
			d.logger.ErrorContext(ctx, "Failed to dispatch workflow for record",
				"workflow_id", workflow.ID, "record_id", recordID, "error", err)
		}
	}

	return nil
}

func (d *Dispatcher) dispatchOne(ctx context.Context, workflow *models.WorkflowDefinition, recordID string, fields map[string]any) error {
	if !d.evaluator.Matches(workflow.EntryCriteria, fields) {
		return nil
	}

	// Concurrent events for the same record must not both pass the re-entry
	// check before either creates a run. The lock holds the gate closed from
	// check through creation.
	entryLock, err := d.locker.Acquire(ctx, "dispatch:"+workflow.ID+":"+recordID, defaultLockTTL)
	if errors.Is(err, locks.ErrNotAcquired) {
		d.logger.DebugContext(ctx, "Another worker is dispatching this record",
			"workflow_id", workflow.ID, "record_id", recordID)

		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to acquire dispatch lock: %w", err)
	}

	defer func() {
		if err := entryLock.Release(ctx); err != nil {
			d.logger.ErrorContext(ctx, "Failed to release dispatch lock",
				"workflow_id", workflow.ID, "record_id", recordID, "error", err)
		}
	}()

	allowed, err := d.reentryAllows(ctx, workflow, recordID)
	if err != nil {
		return err
	}

	if !allowed {
		d.logger.DebugContext(ctx, "Record blocked by re-entry policy",
			"workflow_id", workflow.ID, "record_id", recordID, "reentry_mode", workflow.ReentryMode)

		return nil
	}

	trigger, exists := workflow.TriggerStep()
	if !exists {
		return fmt.Errorf("workflow %s has no trigger step", workflow.ID)
	}

	now := d.now().UTC()
	run := &models.WorkflowRun{
		ID:                 uuid.New().String(),
		WorkflowID:         workflow.ID,
		ObjectType:         workflow.ObjectType,
		TargetRecordID:     recordID,
		Status:             models.RunStatusActive,
		CurrentStepKey:     trigger.StepKey,
		EnteredAt:          now,
		LastTransitionedAt: now,
		History:            []models.StepExecution{},
	}

	if err := d.persistence.Runs().Create(ctx, run); err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	d.logger.InfoContext(ctx, "Run created",
		"run_id", run.ID, "workflow_id", workflow.ID, "record_id", recordID)

	err = d.executor.Start(ctx, run)
	if errors.Is(err, locks.ErrNotAcquired) {
		// Another worker picked the run up already.
		return nil
	}

	return err
}

// reentryAllows applies the workflow's re-entry policy to prior runs of the
// same (workflow, record) pair.
func (d *Dispatcher) reentryAllows(ctx context.Context, workflow *models.WorkflowDefinition, recordID string) (bool, error) {
	if workflow.ReentryMode == models.ReentryModeAlways {
		return true, nil
	}

	prior, err := d.persistence.Runs().ListByWorkflowAndRecord(ctx, workflow.ID, recordID)
	if err != nil {
		return false, fmt.Errorf("failed to list prior runs: %w", err)
	}

	switch workflow.ReentryMode {
	case models.ReentryModeNever:
		// Any prior run, terminal or not, blocks re-entry.
		return len(prior) == 0, nil

	case models.ReentryModeAfterDays:
		cutoff := d.now().UTC().AddDate(0, 0, -workflow.ReentryWaitDays)

		for _, run := range prior {
			if run.EnteredAt.After(cutoff) {
				return false, nil
			}
		}

		return true, nil

	default:
		return false, fmt.Errorf("unknown reentry_mode %q", workflow.ReentryMode)
	}
}
