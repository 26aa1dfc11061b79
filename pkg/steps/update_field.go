package steps

import (
	"context"

	"github.com/chasedharmon/nurture-nest-birth/pkg/models"
	"github.com/chasedharmon/nurture-nest-birth/pkg/protocol"
)

// UpdateFieldExecutor writes field = value onto the target record. The record
// store rejects fields unknown to the object schema; that rejection fails the
// run.
//
// Config: field, value.
type UpdateFieldExecutor struct {
	records protocol.RecordStore
}

func (e *UpdateFieldExecutor) Type() models.StepType {
	return models.StepTypeUpdateField
}

func (e *UpdateFieldExecutor) Execute(ctx context.Context, run *models.WorkflowRun, step *models.WorkflowStep, fields map[string]any) (*protocol.StepOutcome, error) {
	next, err := successor(step)
	if err != nil {
		return nil, err
	}

	field := step.ConfigString("field")
	if field == "" {
		return nil, protocol.NewConfigurationError(step.StepKey, "field", "is required")
	}

	value, ok := step.Config["value"]
	if !ok {
		return nil, protocol.NewConfigurationError(step.StepKey, "value", "is required")
	}

	if err := e.records.UpdateField(ctx, run.ObjectType, run.TargetRecordID, field, value); err != nil {
		return nil, err
	}

	// keep the snapshot coherent for steps later in this advancement
	fields[field] = value

	return &protocol.StepOutcome{NextStepKey: next, Outcome: models.OutcomeCompleted, SideEffect: true}, nil
}
