package workflow

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/chasedharmon/nurture-nest-birth/pkg/models"
)

func waitingWorkflow() *models.WorkflowDefinition {
	workflow := welcomeWorkflow()
	workflow.Steps = []*models.WorkflowStep{
		{StepKey: "trigger", Type: models.StepTypeTrigger, NextStepKey: key("pause")},
		{StepKey: "pause", Type: models.StepTypeWait, Config: map[string]any{"wait_days": float64(3)}, NextStepKey: key("done")},
		{StepKey: "done", Type: models.StepTypeEnd},
	}

	return workflow
}

func suspendRun(t *testing.T, h *harness, workflow *models.WorkflowDefinition, recordID string, waitUntil time.Time) *models.WorkflowRun {
	t.Helper()

	run := h.createRun(t, workflow, recordID)
	run.Status = models.RunStatusWaiting
	run.CurrentStepKey = "pause"
	run.WaitUntil = &waitUntil
	require.NoError(t, h.persistence.Runs().Update(context.Background(), run))

	return run
}

func TestScheduler_SweepHonorsWaitUntil(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	entered := time.Date(2026, 8, 17, 9, 0, 0, 0, time.UTC)
	waitUntil := entered.Add(72 * time.Hour)

	workflow := waitingWorkflow()
	h.saveWorkflow(t, workflow)
	run := suspendRun(t, h, workflow, "lead-1", waitUntil)

	scheduler := NewScheduler(h.persistence, h.executor, slog.Default(), SchedulerOptions{})

	// Sweep two days in: not yet due, run stays waiting.
	scheduler.now = func() time.Time { return entered.Add(48 * time.Hour) }
	scheduler.Sweep(ctx)

	stored, err := h.persistence.Runs().GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusWaiting, stored.Status)

	// Sweep at T+3d+1min: due, resumed and completed.
	h.records.On("GetRecord", mock.Anything, models.ObjectTypeLead, "lead-1").
		Return(map[string]any{}, nil)
	scheduler.now = func() time.Time { return waitUntil.Add(time.Minute) }
	h.executor.now = scheduler.now
	scheduler.Sweep(ctx)

	stored, err = h.persistence.Runs().GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, stored.Status)

	// A second sweep finds nothing to resume; the run resumed exactly once.
	historyLen := len(stored.History)
	scheduler.Sweep(ctx)

	stored, err = h.persistence.Runs().GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, stored.History, historyLen)
}

func TestScheduler_ResumesRunsIndependently(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	now := time.Now().UTC()
	past := now.Add(-time.Minute)

	workflow := waitingWorkflow()
	h.saveWorkflow(t, workflow)
	first := suspendRun(t, h, workflow, "lead-1", past)
	second := suspendRun(t, h, workflow, "lead-2", past)

	// lead-1's record is gone; its run fails, lead-2's still completes.
	h.records.On("GetRecord", mock.Anything, models.ObjectTypeLead, "lead-1").
		Return(nil, assert.AnError)
	h.records.On("GetRecord", mock.Anything, models.ObjectTypeLead, "lead-2").
		Return(map[string]any{}, nil)

	scheduler := NewScheduler(h.persistence, h.executor, slog.Default(), SchedulerOptions{Workers: 2})
	scheduler.Sweep(ctx)

	failed, err := h.persistence.Runs().GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, failed.Status)

	completed, err := h.persistence.Runs().GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, completed.Status)
}

func TestScheduler_StartStop(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := NewScheduler(h.persistence, h.executor, slog.Default(), SchedulerOptions{
		Interval: 10 * time.Millisecond,
	})
	require.NoError(t, scheduler.Start(ctx))

	time.Sleep(30 * time.Millisecond)
	scheduler.Stop()
}

func TestScheduler_RejectsBadCronExpression(t *testing.T) {
	h := newHarness(t)

	scheduler := NewScheduler(h.persistence, h.executor, slog.Default(), SchedulerOptions{
		CronExpr: "not a cron line",
	})
	assert.Error(t, scheduler.Start(context.Background()))
}
