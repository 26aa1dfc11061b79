package workflow

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/chasedharmon/nurture-nest-birth/pkg/locks"
	"github.com/chasedharmon/nurture-nest-birth/pkg/models"
)

func newDispatcher(h *harness) *Dispatcher {
	return NewDispatcher(h.persistence, h.executor, locks.NewMemoryLocker(), slog.Default())
}

func qualifiedLeadWorkflow() *models.WorkflowDefinition {
	workflow := welcomeWorkflow()
	workflow.EntryCriteria = models.EntryCriteria{
		MatchType: models.MatchAll,
		Conditions: []models.EntryCondition{
			{Field: "status", Operator: models.OperatorEquals, Value: "qualified"},
		},
	}

	return workflow
}

func TestDispatcher_CreatesRunForQualifyingRecord(t *testing.T) {
	h := newHarness(t)
	d := newDispatcher(h)
	ctx := context.Background()

	workflow := qualifiedLeadWorkflow()
	h.saveWorkflow(t, workflow)

	h.records.On("GetRecord", mock.Anything, models.ObjectTypeLead, "lead-1").
		Return(map[string]any{"status": "qualified", "email": "lead@example.com", "first_name": "Amara"}, nil)
	h.email.On("SendEmail", mock.Anything, "lead@example.com", mock.Anything, mock.Anything, "", "").
		Return(nil)

	err := d.Dispatch(ctx, models.ObjectTypeLead, "lead-1",
		map[string]any{"status": "qualified", "email": "lead@example.com"})
	require.NoError(t, err)

	runs, err := h.persistence.Runs().ListByWorkflow(ctx, workflow.ID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunStatusCompleted, runs[0].Status)
}

func TestDispatcher_SkipsNonQualifyingRecord(t *testing.T) {
	h := newHarness(t)
	d := newDispatcher(h)
	ctx := context.Background()

	workflow := qualifiedLeadWorkflow()
	h.saveWorkflow(t, workflow)

	err := d.Dispatch(ctx, models.ObjectTypeLead, "lead-1", map[string]any{"status": "new"})
	require.NoError(t, err)

	runs, err := h.persistence.Runs().ListByWorkflow(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestDispatcher_SkipsInactiveAndOtherObjectTypes(t *testing.T) {
	h := newHarness(t)
	d := newDispatcher(h)
	ctx := context.Background()

	inactive := qualifiedLeadWorkflow()
	inactive.IsActive = false
	h.saveWorkflow(t, inactive)

	invoiceFlow := qualifiedLeadWorkflow()
	invoiceFlow.ObjectType = models.ObjectTypeInvoice
	h.saveWorkflow(t, invoiceFlow)

	err := d.Dispatch(ctx, models.ObjectTypeLead, "lead-1", map[string]any{"status": "qualified"})
	require.NoError(t, err)

	for _, workflow := range []*models.WorkflowDefinition{inactive, invoiceFlow} {
		runs, err := h.persistence.Runs().ListByWorkflow(ctx, workflow.ID)
		require.NoError(t, err)
		assert.Empty(t, runs)
	}
}

func TestDispatcher_NoReentryBlocksSecondRun(t *testing.T) {
	h := newHarness(t)
	d := newDispatcher(h)
	ctx := context.Background()

	workflow := qualifiedLeadWorkflow()
	h.saveWorkflow(t, workflow)

	h.records.On("GetRecord", mock.Anything, models.ObjectTypeLead, "lead-1").
		Return(map[string]any{"status": "qualified", "email": "lead@example.com"}, nil)
	h.email.On("SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything, "", "").
		Return(nil)

	snapshot := map[string]any{"status": "qualified", "email": "lead@example.com"}
	require.NoError(t, d.Dispatch(ctx, models.ObjectTypeLead, "lead-1", snapshot))
	require.NoError(t, d.Dispatch(ctx, models.ObjectTypeLead, "lead-1", snapshot))

	runs, err := h.persistence.Runs().ListByWorkflow(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	// A different record is unaffected.
	h.records.On("GetRecord", mock.Anything, models.ObjectTypeLead, "lead-2").
		Return(map[string]any{"status": "qualified", "email": "two@example.com"}, nil)
	require.NoError(t, d.Dispatch(ctx, models.ObjectTypeLead, "lead-2", snapshot))

	runs, err = h.persistence.Runs().ListByWorkflow(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestDispatcher_ConcurrentEventsCreateOneRun(t *testing.T) {
	h := newHarness(t)
	d := newDispatcher(h)
	ctx := context.Background()

	workflow := qualifiedLeadWorkflow()
	h.saveWorkflow(t, workflow)

	h.records.On("GetRecord", mock.Anything, models.ObjectTypeLead, "lead-1").
		Return(map[string]any{"status": "qualified", "email": "lead@example.com"}, nil)
	h.email.On("SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything, "", "").
		Return(nil)

	// Create and update events for the same record often land together. The
	// dispatch lock keeps both from passing the re-entry check before either
	// has created a run.
	snapshot := map[string]any{"status": "qualified", "email": "lead@example.com"}

	var wg sync.WaitGroup

	for range 2 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			assert.NoError(t, d.Dispatch(ctx, models.ObjectTypeLead, "lead-1", snapshot))
		}()
	}

	wg.Wait()

	runs, err := h.persistence.Runs().ListByWorkflow(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestDispatcher_AlwaysReentryCreatesEachTime(t *testing.T) {
	h := newHarness(t)
	d := newDispatcher(h)
	ctx := context.Background()

	workflow := qualifiedLeadWorkflow()
	workflow.ReentryMode = models.ReentryModeAlways
	h.saveWorkflow(t, workflow)

	h.records.On("GetRecord", mock.Anything, models.ObjectTypeLead, "lead-1").
		Return(map[string]any{"status": "qualified", "email": "lead@example.com"}, nil)
	h.email.On("SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything, "", "").
		Return(nil)

	snapshot := map[string]any{"status": "qualified", "email": "lead@example.com"}
	require.NoError(t, d.Dispatch(ctx, models.ObjectTypeLead, "lead-1", snapshot))
	require.NoError(t, d.Dispatch(ctx, models.ObjectTypeLead, "lead-1", snapshot))

	runs, err := h.persistence.Runs().ListByWorkflow(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestDispatcher_ReentryAfterDaysWindow(t *testing.T) {
	h := newHarness(t)
	d := newDispatcher(h)
	ctx := context.Background()

	firstEvent := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	current := firstEvent
	d.now = func() time.Time { return current }

	workflow := qualifiedLeadWorkflow()
	workflow.ReentryMode = models.ReentryModeAfterDays
	workflow.ReentryWaitDays = 30
	h.saveWorkflow(t, workflow)

	h.records.On("GetRecord", mock.Anything, models.ObjectTypeLead, "lead-1").
		Return(map[string]any{"status": "qualified", "email": "lead@example.com"}, nil)
	h.email.On("SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything, "", "").
		Return(nil)

	snapshot := map[string]any{"status": "qualified", "email": "lead@example.com"}
	require.NoError(t, d.Dispatch(ctx, models.ObjectTypeLead, "lead-1", snapshot))

	// 10 days later: inside the 30-day window, no new run.
	current = firstEvent.AddDate(0, 0, 10)
	require.NoError(t, d.Dispatch(ctx, models.ObjectTypeLead, "lead-1", snapshot))

	runs, err := h.persistence.Runs().ListByWorkflow(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	// Day 31: outside the window, a new run is created.
	current = firstEvent.AddDate(0, 0, 31)
	require.NoError(t, d.Dispatch(ctx, models.ObjectTypeLead, "lead-1", snapshot))

	runs, err = h.persistence.Runs().ListByWorkflow(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestDispatcher_OneBrokenWorkflowDoesNotBlockOthers(t *testing.T) {
	h := newHarness(t)
	d := newDispatcher(h)
	ctx := context.Background()

	// Broken: no trigger step, dispatch for it fails internally.
	broken := qualifiedLeadWorkflow()
	broken.Steps = []*models.WorkflowStep{{StepKey: "done", Type: models.StepTypeEnd}}
	h.saveWorkflow(t, broken)

	healthy := qualifiedLeadWorkflow()
	h.saveWorkflow(t, healthy)

	h.records.On("GetRecord", mock.Anything, models.ObjectTypeLead, "lead-1").
		Return(map[string]any{"status": "qualified", "email": "lead@example.com"}, nil)
	h.email.On("SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything, "", "").
		Return(nil)

	err := d.Dispatch(ctx, models.ObjectTypeLead, "lead-1",
		map[string]any{"status": "qualified", "email": "lead@example.com"})
	require.NoError(t, err)

	runs, err := h.persistence.Runs().ListByWorkflow(ctx, healthy.ID)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
