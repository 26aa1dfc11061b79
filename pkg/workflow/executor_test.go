package workflow

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/chasedharmon/nurture-nest-birth/pkg/locks"
	"github.com/chasedharmon/nurture-nest-birth/pkg/mocks"
	"github.com/chasedharmon/nurture-nest-birth/pkg/models"
	"github.com/chasedharmon/nurture-nest-birth/pkg/persistence"
	"github.com/chasedharmon/nurture-nest-birth/pkg/persistence/file"
	"github.com/chasedharmon/nurture-nest-birth/pkg/protocol"
	"github.com/chasedharmon/nurture-nest-birth/pkg/steps"
	"github.com/chasedharmon/nurture-nest-birth/pkg/template"
)

type harness struct {
	persistence persistence.Persistence
	executor    *Executor
	records     *mocks.MockRecordStore
	email       *mocks.MockEmailSender
	sms         *mocks.MockSMSSender
	portal      *mocks.MockPortalMessenger
	webhook     *mocks.MockWebhookCaller
	tasks       *mocks.MockTaskCreator
}

func fastRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      1.5,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		persistence: file.NewPersistence(t.TempDir()),
		records:     &mocks.MockRecordStore{},
		email:       &mocks.MockEmailSender{},
		sms:         &mocks.MockSMSSender{},
		portal:      &mocks.MockPortalMessenger{},
		webhook:     &mocks.MockWebhookCaller{},
		tasks:       &mocks.MockTaskCreator{},
	}

	logger := slog.Default()
	collaborators := protocol.Collaborators{
		Records: h.records,
		Email:   h.email,
		SMS:     h.sms,
		Portal:  h.portal,
		Webhook: h.webhook,
		Tasks:   h.tasks,
	}
	resolver := template.NewResolver("Jane", "Nurture Nest Births", "https://portal.example.com")
	registry := steps.NewRegistry(collaborators, resolver, steps.Settings{
		AdminEmail: "admin@example.com",
		AdminPhone: "+15550100",
	}, logger)

	h.executor = NewExecutor(h.persistence, registry, h.records, locks.NewMemoryLocker(), nil, logger, fastRetryPolicy())

	return h
}

func (h *harness) saveWorkflow(t *testing.T, workflow *models.WorkflowDefinition) {
	t.Helper()
	require.NoError(t, h.persistence.Workflows().Save(context.Background(), workflow))
}

func (h *harness) createRun(t *testing.T, workflow *models.WorkflowDefinition, recordID string) *models.WorkflowRun {
	t.Helper()

	trigger, ok := workflow.TriggerStep()
	require.True(t, ok)

	now := time.Now().UTC()
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
	require.NoError(t, h.persistence.Runs().Create(context.Background(), run))

	return run
}

func key(s string) *string { return &s }

func welcomeWorkflow() *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		ID:             uuid.New().String(),
		OrganizationID: "org-1",
		Name:           "New Lead Welcome",
		ObjectType:     models.ObjectTypeLead,
		ReentryMode:    models.ReentryModeNever,
		IsActive:       true,
		Steps: []*models.WorkflowStep{
			{StepKey: "trigger", Type: models.StepTypeTrigger, NextStepKey: key("welcome")},
			{StepKey: "welcome", Type: models.StepTypeSendEmail, Config: map[string]any{
				"to_type": "client",
				"subject": "Welcome, {{first_name}}!",
				"body":    "Thanks for contacting {{practice_name}}.",
			}, NextStepKey: key("done")},
			{StepKey: "done", Type: models.StepTypeEnd},
		},
	}
}

func TestExecutor_LinearRunCompletes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	workflow := welcomeWorkflow()
	h.saveWorkflow(t, workflow)
	run := h.createRun(t, workflow, "lead-1")

	h.records.On("GetRecord", mock.Anything, models.ObjectTypeLead, "lead-1").
		Return(map[string]any{"first_name": "Amara", "email": "amara@example.com"}, nil)
	h.email.On("SendEmail", mock.Anything, "amara@example.com", "Welcome, Amara!",
		"Thanks for contacting Nurture Nest Births.", "", "").Return(nil)

	require.NoError(t, h.executor.Start(ctx, run))

	stored, err := h.persistence.Runs().GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, stored.Status)

	require.Len(t, stored.History, 3)
	assert.Equal(t, models.OutcomeTriggered, stored.History[0].Outcome)
	assert.Equal(t, "welcome", stored.History[1].StepKey)
	assert.Equal(t, models.OutcomeEnded, stored.History[2].Outcome)

	h.email.AssertExpectations(t)
}

func TestExecutor_WaitSuspendsRun(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	workflow := welcomeWorkflow()
	workflow.Steps = []*models.WorkflowStep{
		{StepKey: "trigger", Type: models.StepTypeTrigger, NextStepKey: key("pause")},
		{StepKey: "pause", Type: models.StepTypeWait, Config: map[string]any{"wait_days": float64(3)}, NextStepKey: key("done")},
		{StepKey: "done", Type: models.StepTypeEnd},
	}
	h.saveWorkflow(t, workflow)
	run := h.createRun(t, workflow, "lead-1")

	h.records.On("GetRecord", mock.Anything, models.ObjectTypeLead, "lead-1").
		Return(map[string]any{}, nil)

	require.NoError(t, h.executor.Start(ctx, run))

	stored, err := h.persistence.Runs().GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusWaiting, stored.Status)
	assert.Equal(t, "pause", stored.CurrentStepKey)
	require.NotNil(t, stored.WaitUntil)
	// wait executor uses the wall clock; the suspension lands 3 days out
	assert.WithinDuration(t, time.Now().UTC().Add(72*time.Hour), *stored.WaitUntil, time.Minute)
}

func TestExecutor_ResumeAdvancesPastWait(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	workflow := welcomeWorkflow()
	workflow.Steps = []*models.WorkflowStep{
		{StepKey: "trigger", Type: models.StepTypeTrigger, NextStepKey: key("pause")},
		{StepKey: "pause", Type: models.StepTypeWait, Config: map[string]any{"wait_days": float64(3)}, NextStepKey: key("done")},
		{StepKey: "done", Type: models.StepTypeEnd},
	}
	h.saveWorkflow(t, workflow)

	run := h.createRun(t, workflow, "lead-1")
	past := time.Now().UTC().Add(-time.Minute)
	run.Status = models.RunStatusWaiting
	run.CurrentStepKey = "pause"
	run.WaitUntil = &past
	require.NoError(t, h.persistence.Runs().Update(ctx, run))

	h.records.On("GetRecord", mock.Anything, models.ObjectTypeLead, "lead-1").
		Return(map[string]any{}, nil)

	require.NoError(t, h.executor.Resume(ctx, run.ID))

	stored, err := h.persistence.Runs().GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, stored.Status)
	assert.Nil(t, stored.WaitUntil)
}

func TestExecutor_ResumeLeavesUndueRunWaiting(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	workflow := welcomeWorkflow()
	h.saveWorkflow(t, workflow)

	run := h.createRun(t, workflow, "lead-1")
	future := time.Now().UTC().Add(time.Hour)
	run.Status = models.RunStatusWaiting
	run.WaitUntil = &future
	require.NoError(t, h.persistence.Runs().Update(ctx, run))

	require.NoError(t, h.executor.Resume(ctx, run.ID))

	stored, err := h.persistence.Runs().GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusWaiting, stored.Status)
}

func TestExecutor_DecisionFollowsLiveRecord(t *testing.T) {
	decisionWorkflow := func() *models.WorkflowDefinition {
		return &models.WorkflowDefinition{
			ID:             uuid.New().String(),
			OrganizationID: "org-1",
			Name:           "Client Check",
			ObjectType:     models.ObjectTypeLead,
			ReentryMode:    models.ReentryModeAlways,
			IsActive:       true,
			Steps: []*models.WorkflowStep{
				{StepKey: "trigger", Type: models.StepTypeTrigger, NextStepKey: key("check")},
				{StepKey: "check", Type: models.StepTypeDecision, Config: map[string]any{
					"condition_field": "status",
					"operator":        "equals",
					"value":           "client",
				}, Branches: &models.Branches{True: "mark", False: "done"}},
				{StepKey: "mark", Type: models.StepTypeUpdateField, Config: map[string]any{
					"field": "stage", "value": "onboarding",
				}, NextStepKey: key("done")},
				{StepKey: "done", Type: models.StepTypeEnd},
			},
		}
	}

	t.Run("true branch", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()

		workflow := decisionWorkflow()
		h.saveWorkflow(t, workflow)
		run := h.createRun(t, workflow, "lead-1")

		// Snapshot says lost; the decision re-fetches and sees client.
		h.records.On("GetRecord", mock.Anything, models.ObjectTypeLead, "lead-1").
			Return(map[string]any{"status": "lost"}, nil).Once()
		h.records.On("GetRecord", mock.Anything, models.ObjectTypeLead, "lead-1").
			Return(map[string]any{"status": "client"}, nil).Once()
		h.records.On("UpdateField", mock.Anything, models.ObjectTypeLead, "lead-1", "stage", "onboarding").
			Return(nil)

		require.NoError(t, h.executor.Start(ctx, run))

		stored, err := h.persistence.Runs().GetByID(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RunStatusCompleted, stored.Status)

		outcomes := historyOutcomes(stored)
		assert.Contains(t, outcomes, models.OutcomeBranchTrue)
		h.records.AssertExpectations(t)
	})

	t.Run("false branch", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()

		workflow := decisionWorkflow()
		h.saveWorkflow(t, workflow)
		run := h.createRun(t, workflow, "lead-2")

		h.records.On("GetRecord", mock.Anything, models.ObjectTypeLead, "lead-2").
			Return(map[string]any{"status": "lost"}, nil)

		require.NoError(t, h.executor.Start(ctx, run))

		stored, err := h.persistence.Runs().GetByID(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RunStatusCompleted, stored.Status)
		assert.Contains(t, historyOutcomes(stored), models.OutcomeBranchFalse)
		h.records.AssertNotCalled(t, "UpdateField", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestExecutor_WebhookExhaustsRetries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	workflow := &models.WorkflowDefinition{
		ID:             uuid.New().String(),
		OrganizationID: "org-1",
		Name:           "CRM Sync",
		ObjectType:     models.ObjectTypeLead,
		ReentryMode:    models.ReentryModeAlways,
		IsActive:       true,
		Steps: []*models.WorkflowStep{
			{StepKey: "trigger", Type: models.StepTypeTrigger, NextStepKey: key("sync")},
			{StepKey: "sync", Type: models.StepTypeWebhook, Config: map[string]any{
				"url":  "https://hooks.example.com/sync",
				"body": "{}",
			}, NextStepKey: key("done")},
			{StepKey: "done", Type: models.StepTypeEnd},
		},
	}
	h.saveWorkflow(t, workflow)
	run := h.createRun(t, workflow, "lead-1")

	h.records.On("GetRecord", mock.Anything, models.ObjectTypeLead, "lead-1").
		Return(map[string]any{}, nil)
	h.webhook.On("Call", mock.Anything, "https://hooks.example.com/sync", "POST", mock.Anything).
		Return(&protocol.TransientDeliveryError{Err: errors.New("connection refused")}).Times(3)

	require.NoError(t, h.executor.Start(ctx, run))

	stored, err := h.persistence.Runs().GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, stored.Status)

	// trigger + two retried attempts + the final failure = three visible tries
	attempts := 0

	for _, entry := range stored.History {
		if entry.StepKey == "sync" {
			attempts++

			assert.Contains(t, entry.Error, "connection refused")
		}
	}

	assert.Equal(t, 3, attempts)
	h.webhook.AssertExpectations(t)
}

func TestExecutor_HistoryRecordsStepStartNotCompletion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	workflow := welcomeWorkflow()
	h.saveWorkflow(t, workflow)
	run := h.createRun(t, workflow, "lead-1")

	h.records.On("GetRecord", mock.Anything, models.ObjectTypeLead, "lead-1").
		Return(map[string]any{"first_name": "Amara", "email": "amara@example.com"}, nil)

	var sendCompleted time.Time

	h.email.On("SendEmail", mock.Anything, "amara@example.com", mock.Anything, mock.Anything, "", "").
		Run(func(mock.Arguments) {
			time.Sleep(15 * time.Millisecond)

			sendCompleted = time.Now().UTC()
		}).
		Return(nil)

	require.NoError(t, h.executor.Start(ctx, run))

	stored, err := h.persistence.Runs().GetByID(ctx, run.ID)
	require.NoError(t, err)

	var welcome *models.StepExecution

	for i := range stored.History {
		if stored.History[i].StepKey == "welcome" {
			welcome = &stored.History[i]
		}
	}

	require.NotNil(t, welcome)
	assert.GreaterOrEqual(t, sendCompleted.Sub(welcome.StartedAt), 15*time.Millisecond,
		"started_at should predate the delivery, not stamp its completion")
}

func TestExecutor_CustomEmailWithoutAddressFailsBeforeSend(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	workflow := welcomeWorkflow()
	workflow.Steps[1].Config = map[string]any{
		"to_type": "custom",
		"subject": "Hello",
		"body":    "Hi there",
	}
	h.saveWorkflow(t, workflow)
	run := h.createRun(t, workflow, "lead-1")

	// The record carries its own email; a custom step missing to_email must
	// still fail instead of falling back to the client address.
	h.records.On("GetRecord", mock.Anything, models.ObjectTypeLead, "lead-1").
		Return(map[string]any{"email": "amara@example.com"}, nil)

	require.NoError(t, h.executor.Start(ctx, run))

	stored, err := h.persistence.Runs().GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, stored.Status)
	h.email.AssertNotCalled(t, "SendEmail",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExecutor_PermanentDeliveryFailureSkipsRetry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	workflow := welcomeWorkflow()
	h.saveWorkflow(t, workflow)
	run := h.createRun(t, workflow, "lead-1")

	h.records.On("GetRecord", mock.Anything, models.ObjectTypeLead, "lead-1").
		Return(map[string]any{"email": "bad@@example.com", "first_name": "Amara"}, nil)
	h.email.On("SendEmail", mock.Anything, "bad@@example.com", mock.Anything, mock.Anything, "", "").
		Return(&protocol.PermanentDeliveryError{Err: errors.New("invalid recipient")}).Once()

	require.NoError(t, h.executor.Start(ctx, run))

	stored, err := h.persistence.Runs().GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, stored.Status)
	h.email.AssertNumberOfCalls(t, "SendEmail", 1)
}

func TestExecutor_CancelActiveRun(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	workflow := welcomeWorkflow()
	h.saveWorkflow(t, workflow)
	run := h.createRun(t, workflow, "lead-1")

	require.NoError(t, h.executor.Cancel(ctx, run.ID, "client requested opt-out"))

	stored, err := h.persistence.Runs().GetByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCancelled, stored.Status)
	require.NotEmpty(t, stored.History)
	assert.Equal(t, models.OutcomeCancelled, stored.History[len(stored.History)-1].Outcome)

	// Terminal runs cannot be cancelled again.
	assert.Error(t, h.executor.Cancel(ctx, run.ID, "again"))
}

func TestExecutor_LockedRunIsSkipped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	workflow := welcomeWorkflow()
	h.saveWorkflow(t, workflow)
	run := h.createRun(t, workflow, "lead-1")

	locker := locks.NewMemoryLocker()
	h.executor.locker = locker

	held, err := locker.Acquire(ctx, run.ID, time.Minute)
	require.NoError(t, err)

	assert.ErrorIs(t, h.executor.Start(ctx, run), locks.ErrNotAcquired)
	require.NoError(t, held.Release(ctx))
}

func historyOutcomes(run *models.WorkflowRun) []string {
	outcomes := make([]string, 0, len(run.History))
	for _, entry := range run.History {
		outcomes = append(outcomes, entry.Outcome)
	}

	return outcomes
}
