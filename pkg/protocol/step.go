package protocol

import (
	"context"
	"time"

	"github.com/chasedharmon/nurture-nest-birth/pkg/models"
)

// StepOutcome is the result of executing one workflow step.
//
// Exactly one of the following holds: NextStepKey is set (the run advances),
// WaitUntil is set (the run suspends on the step), or Completed is true (an
// end step terminated the run).
type StepOutcome struct {
	NextStepKey string
	WaitUntil   *time.Time
	Completed   bool

	// Outcome is the history label for the step (e.g. branch_true, waiting).
	Outcome string
	// SideEffect marks that an external call was performed, forcing the engine
	// to persist run state before advancing further.
	SideEffect bool
	// Note carries diagnostic detail recorded alongside the outcome, such as a
	// decision evaluated against a missing field.
	Note string
}

// StepExecutor runs one step type. Executors parse their own step_config and
// return ConfigurationError when required fields are absent; delivery failures
// surface as TransientDeliveryError or PermanentDeliveryError.
//
// The fields argument is the record snapshot fetched when the engine began
// this advancement. Decision executors ignore it and re-fetch live state.
type StepExecutor interface {
	Type() models.StepType
	Execute(ctx context.Context, run *models.WorkflowRun, step *models.WorkflowStep, fields map[string]any) (*StepOutcome, error)
}
