package steps

import (
	"context"

	"github.com/chasedharmon/nurture-nest-birth/pkg/models"
	"github.com/chasedharmon/nurture-nest-birth/pkg/protocol"
)

// EndExecutor terminates a run with status completed.
type EndExecutor struct{}

func (e *EndExecutor) Type() models.StepType {
	return models.StepTypeEnd
}

func (e *EndExecutor) Execute(_ context.Context, _ *models.WorkflowRun, _ *models.WorkflowStep, _ map[string]any) (*protocol.StepOutcome, error) {
	return &protocol.StepOutcome{Completed: true, Outcome: models.OutcomeEnded}, nil
}
