package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/chasedharmon/nurture-nest-birth/pkg/eventbus"
	"github.com/chasedharmon/nurture-nest-birth/pkg/events"
	"github.com/chasedharmon/nurture-nest-birth/pkg/locks"
	"github.com/chasedharmon/nurture-nest-birth/pkg/models"
	"github.com/chasedharmon/nurture-nest-birth/pkg/persistence"
	"github.com/chasedharmon/nurture-nest-birth/pkg/protocol"
	"github.com/chasedharmon/nurture-nest-birth/pkg/steps"
)

// RetryPolicy bounds the exponential backoff applied to transient delivery
// failures.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultRetryPolicy retries a side-effecting call three times with 1s, 2s
// backoff capped at 30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
	}
}

const defaultLockTTL = 5 * time.Minute

// Executor advances one run at a time through its workflow graph. Pass-through
// steps advance within the same invocation and persist as one batch; a
// side-effecting step persists run state right after its call; a wait step
// suspends the run until the resumption scheduler wakes it.
//
// Every advancement holds the run's advisory lock, so the dispatcher's
// creation path and the scheduler's sweep never race on the same run.
type Executor struct {
	persistence persistence.Persistence
	registry    *steps.Registry
	records     protocol.RecordStore
	locker      locks.Locker
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	retry       RetryPolicy
	lockTTL     time.Duration
	now         func() time.Time
}

// NewExecutor creates the execution engine.
func NewExecutor(
	p persistence.Persistence,
	registry *steps.Registry,
	records protocol.RecordStore,
	locker locks.Locker,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
	retry RetryPolicy,
) *Executor {
	return &Executor{
		persistence: p,
		registry:    registry,
		records:     records,
		locker:      locker,
		publisher:   publisher,
		logger:      logger.With("module", "executor"),
		retry:       retry,
		lockTTL:     defaultLockTTL,
		now:         time.Now,
	}
}

// Start advances a freshly dispatched run from its trigger step. Returns
// locks.ErrNotAcquired when another worker already holds the run.
func (e *Executor) Start(ctx context.Context, run *models.WorkflowRun) error {
	lock, err := e.locker.Acquire(ctx, run.ID, e.lockTTL)
	if err != nil {
		return err
	}

	defer func() {
		if err := lock.Release(ctx); err != nil {
			e.logger.ErrorContext(ctx, "Failed to release run lock", "run_id", run.ID, "error", err)
		}
	}()

	workflow, err := e.persistence.Workflows().GetByID(ctx, run.WorkflowID)
	if err != nil {
		return fmt.Errorf("failed to load workflow %s: %w", run.WorkflowID, err)
	}

	e.publish(ctx, run.ID, events.RunStarted{
		BaseEvent:  events.NewBaseEvent(events.RunStartedEvent),
		RunID:      run.ID,
		WorkflowID: run.WorkflowID,
		ObjectType: run.ObjectType,
		RecordID:   run.TargetRecordID,
	})

	return e.advance(ctx, workflow, run)
}

// Resume wakes a waiting run whose wait_until has passed and advances it from
// the step after the wait. A run that is no longer waiting, or not yet due, is
// left untouched; together with the per-run lock this makes each wait expiry
// resume at most once.
func (e *Executor) Resume(ctx context.Context, runID string) error {
	lock, err := e.locker.Acquire(ctx, runID, e.lockTTL)
	if err != nil {
		return err
	}

	defer func() {
		if err := lock.Release(ctx); err != nil {
			e.logger.ErrorContext(ctx, "Failed to release run lock", "run_id", runID, "error", err)
		}
	}()

	run, err := e.persistence.Runs().GetByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load run %s: %w", runID, err)
	}

	if run.Status != models.RunStatusWaiting || run.WaitUntil == nil || run.WaitUntil.After(e.now()) {
		return nil
	}

	workflow, err := e.persistence.Workflows().GetByID(ctx, run.WorkflowID)
	if err != nil {
		return fmt.Errorf("failed to load workflow %s: %w", run.WorkflowID, err)
	}

	waitStep, exists := workflow.StepByKey(run.CurrentStepKey)
	if !exists {
		return e.failRun(ctx, run, run.CurrentStepKey, fmt.Errorf("wait step %q no longer exists", run.CurrentStepKey))
	}

	next, exists := nextAfterWait(waitStep)
	if !exists {
		return e.failRun(ctx, run, waitStep.StepKey, errors.New("wait step has no successor"))
	}

	run.Status = models.RunStatusActive
	run.WaitUntil = nil
	run.CurrentStepKey = next

	e.publish(ctx, run.ID, events.RunResumed{
		BaseEvent:  events.NewBaseEvent(events.RunResumedEvent),
		RunID:      run.ID,
		WorkflowID: run.WorkflowID,
		StepKey:    next,
	})

	return e.advance(ctx, workflow, run)
}

// Cancel transitions an active or waiting run to cancelled. Side effects
// already performed are not rolled back.
func (e *Executor) Cancel(ctx context.Context, runID, reason string) error {
	lock, err := e.locker.Acquire(ctx, runID, e.lockTTL)
	if err != nil {
		return err
	}

	defer func() {
		if err := lock.Release(ctx); err != nil {
			e.logger.ErrorContext(ctx, "Failed to release run lock", "run_id", runID, "error", err)
		}
	}()

	run, err := e.persistence.Runs().GetByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load run %s: %w", runID, err)
	}

	if run.Status.IsTerminal() {
		return fmt.Errorf("run %s is already %s", runID, run.Status)
	}

	run.Status = models.RunStatusCancelled
	run.WaitUntil = nil
	run.RecordHistory(models.StepExecution{
		StepKey:   run.CurrentStepKey,
		StartedAt: e.now().UTC(),
		Outcome:   models.OutcomeCancelled,
		Error:     reason,
	})

	if err := e.persistence.Runs().Update(ctx, run); err != nil {
		return fmt.Errorf("failed to persist cancellation of run %s: %w", runID, err)
	}

	e.publish(ctx, run.ID, events.RunCancelled{
		BaseEvent:  events.NewBaseEvent(events.RunCancelledEvent),
		RunID:      run.ID,
		WorkflowID: run.WorkflowID,
		Reason:     reason,
	})

	return nil
}

// advance drives the run until it suspends, terminates, or fails. The caller
// holds the run lock.
func (e *Executor) advance(ctx context.Context, workflow *models.WorkflowDefinition, run *models.WorkflowRun) error {
	fields, err := e.fetchSnapshot(ctx, run)
	if err != nil {
		return e.failRun(ctx, run, run.CurrentStepKey, err)
	}

	for {
		step, exists := workflow.StepByKey(run.CurrentStepKey)
		if !exists {
			return e.failRun(ctx, run, run.CurrentStepKey, fmt.Errorf("step %q not found in workflow", run.CurrentStepKey))
		}

		executor, err := e.registry.ForType(step.Type)
		if err != nil {
			return e.failRun(ctx, run, step.StepKey, err)
		}

		// The history entry carries when the step began, not when it finished;
		// a slow delivery or a retry loop must not shift the recorded start.
		startedAt := e.now().UTC()

		outcome, err := e.executeWithRetry(ctx, executor, run, step, fields)
		if err != nil {
			return e.failRun(ctx, run, step.StepKey, err)
		}

		switch {
		case outcome.Completed:
			run.Status = models.RunStatusCompleted
			run.RecordHistory(models.StepExecution{StepKey: step.StepKey, StartedAt: startedAt, Outcome: outcome.Outcome})

			if err := e.persistence.Runs().Update(ctx, run); err != nil {
				return fmt.Errorf("failed to persist completion of run %s: %w", run.ID, err)
			}

			e.publish(ctx, run.ID, events.RunCompleted{
				BaseEvent:     events.NewBaseEvent(events.RunCompletedEvent),
				RunID:         run.ID,
				WorkflowID:    run.WorkflowID,
				StepsExecuted: len(run.History),
				Duration:      e.now().UTC().Sub(run.EnteredAt),
			})
			e.logger.InfoContext(ctx, "Run completed", "run_id", run.ID, "workflow_id", run.WorkflowID)

			return nil

		case outcome.WaitUntil != nil:
			run.Status = models.RunStatusWaiting
			run.WaitUntil = outcome.WaitUntil
			run.RecordHistory(models.StepExecution{StepKey: step.StepKey, StartedAt: startedAt, Outcome: outcome.Outcome})

			if err := e.persistence.Runs().Update(ctx, run); err != nil {
				return fmt.Errorf("failed to persist suspension of run %s: %w", run.ID, err)
			}

			e.publish(ctx, run.ID, events.RunSuspended{
				BaseEvent:  events.NewBaseEvent(events.RunSuspendedEvent),
				RunID:      run.ID,
				WorkflowID: run.WorkflowID,
				StepKey:    step.StepKey,
				WaitUntil:  *outcome.WaitUntil,
			})
			e.logger.InfoContext(ctx, "Run suspended",
				"run_id", run.ID, "step_key", step.StepKey, "wait_until", outcome.WaitUntil)

			return nil

		default:
			run.RecordHistory(models.StepExecution{
				StepKey:   step.StepKey,
				StartedAt: startedAt,
				Outcome:   outcome.Outcome,
				Error:     outcome.Note,
			})
			run.CurrentStepKey = outcome.NextStepKey

			// Consecutive pass-through steps batch into the next persist so no
			// intermediate state is observable; side effects persist immediately.
			if outcome.SideEffect {
				if err := e.persistence.Runs().Update(ctx, run); err != nil {
					return fmt.Errorf("failed to persist run %s after side effect: %w", run.ID, err)
				}
			}
		}
	}
}

// executeWithRetry runs one step, retrying transient delivery failures with
// bounded exponential backoff. Every failed attempt appends its own history
// entry so the audit trail shows each delivery try.
func (e *Executor) executeWithRetry(
	ctx context.Context,
	executor protocol.StepExecutor,
	run *models.WorkflowRun,
	step *models.WorkflowStep,
	fields map[string]any,
) (*protocol.StepOutcome, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.retry.InitialInterval
	policy.MaxInterval = e.retry.MaxInterval
	policy.Multiplier = e.retry.Multiplier

	var lastErr error

	for attempt := 1; attempt <= e.retry.MaxAttempts; attempt++ {
		attemptStartedAt := e.now().UTC()

		outcome, err := executor.Execute(ctx, run, step, fields)
		if err == nil {
			return outcome, nil
		}

		lastErr = err

		if protocol.IsConfiguration(err) || protocol.IsPermanent(err) {
			return nil, err
		}

		if attempt == e.retry.MaxAttempts {
			break
		}

		run.RecordHistory(models.StepExecution{
			StepKey:   step.StepKey,
			StartedAt: attemptStartedAt,
			Outcome:   models.OutcomeRetried,
			Attempt:   attempt,
			Error:     err.Error(),
		})
		e.logger.WarnContext(ctx, "Step delivery failed, retrying",
			"run_id", run.ID, "step_key", step.StepKey, "attempt", attempt, "error", err)

		wait := policy.NextBackOff()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	return nil, lastErr
}

// failRun transitions the run to failed with the error recorded in its
// history. Failure of one run never blocks others, so failRun itself returns
// nil once the state is durably recorded.
func (e *Executor) failRun(ctx context.Context, run *models.WorkflowRun, stepKey string, cause error) error {
	run.Status = models.RunStatusFailed
	run.WaitUntil = nil
	run.RecordHistory(models.StepExecution{
		StepKey:   stepKey,
		StartedAt: e.now().UTC(),
		Outcome:   models.OutcomeFailed,
		Attempt:   e.retry.MaxAttempts,
		Error:     cause.Error(),
	})

	if err := e.persistence.Runs().Update(ctx, run); err != nil {
		return fmt.Errorf("failed to persist failure of run %s: %w", run.ID, err)
	}

	e.publish(ctx, run.ID, events.RunFailed{
		BaseEvent:  events.NewBaseEvent(events.RunFailedEvent),
		RunID:      run.ID,
		WorkflowID: run.WorkflowID,
		StepKey:    stepKey,
		Error:      cause.Error(),
	})
	e.logger.ErrorContext(ctx, "Run failed", "run_id", run.ID, "step_key", stepKey, "error", cause)

	return nil
}

// fetchSnapshot loads the target record's fields, retrying transient store
// failures before giving up.
func (e *Executor) fetchSnapshot(ctx context.Context, run *models.WorkflowRun) (map[string]any, error) {
	var fields map[string]any

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.retry.InitialInterval
	policy.MaxInterval = e.retry.MaxInterval
	policy.Multiplier = e.retry.Multiplier

	operation := func() error {
		var err error

		fields, err = e.records.GetRecord(ctx, run.ObjectType, run.TargetRecordID)

		return err
	}

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(e.retry.MaxAttempts-1)), ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch record %s/%s: %w", run.ObjectType, run.TargetRecordID, err)
	}

	return fields, nil
}

func (e *Executor) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, key, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish run event",
			"event_type", event.GetType(), "key", key, "error", err)
	}
}

// nextAfterWait resolves the step a resumed run continues from.
func nextAfterWait(step *models.WorkflowStep) (string, bool) {
	if step.NextStepKey == nil || *step.NextStepKey == "" {
		return "", false
	}

	return *step.NextStepKey, true
}
