package steps

import (
	"context"

	"github.com/chasedharmon/nurture-nest-birth/pkg/models"
	"github.com/chasedharmon/nurture-nest-birth/pkg/protocol"
	"github.com/chasedharmon/nurture-nest-birth/pkg/template"
)

// Task assignees.
const (
	AssigneeOwner = "owner"
	AssigneeAdmin = "admin"
)

// TaskExecutor creates an internal task for the practice.
//
// Config: title, action_type, assigned_to (owner|admin).
type TaskExecutor struct {
	tasks    protocol.TaskCreator
	resolver *template.Resolver
}

func (e *TaskExecutor) Type() models.StepType {
	return models.StepTypeCreateTask
}

func (e *TaskExecutor) Execute(ctx context.Context, _ *models.WorkflowRun, step *models.WorkflowStep, fields map[string]any) (*protocol.StepOutcome, error) {
	next, err := successor(step)
	if err != nil {
		return nil, err
	}

	title := step.ConfigString("title")
	if title == "" {
		return nil, protocol.NewConfigurationError(step.StepKey, "title", "is required")
	}

	assignedTo := step.ConfigString("assigned_to")
	if assignedTo != AssigneeOwner && assignedTo != AssigneeAdmin {
		return nil, protocol.NewConfigurationError(step.StepKey, "assigned_to", "must be owner or admin")
	}

	actionType := step.ConfigString("action_type")

	if err := e.tasks.CreateTask(ctx, e.resolver.Resolve(title, fields), actionType, assignedTo); err != nil {
		return nil, err
	}

	return &protocol.StepOutcome{NextStepKey: next, Outcome: models.OutcomeCompleted, SideEffect: true}, nil
}
