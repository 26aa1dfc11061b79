package steps

import (
	"context"

	"github.com/chasedharmon/nurture-nest-birth/pkg/models"
	"github.com/chasedharmon/nurture-nest-birth/pkg/protocol"
)

// TriggerExecutor is the entry node of every workflow. It performs no side
// effect; a freshly dispatched run passes straight through to its successor.
type TriggerExecutor struct{}

func (e *TriggerExecutor) Type() models.StepType {
	return models.StepTypeTrigger
}

func (e *TriggerExecutor) Execute(_ context.Context, _ *models.WorkflowRun, step *models.WorkflowStep, _ map[string]any) (*protocol.StepOutcome, error) {
	next, err := successor(step)
	if err != nil {
		return nil, err
	}

	return &protocol.StepOutcome{NextStepKey: next, Outcome: models.OutcomeTriggered}, nil
}
