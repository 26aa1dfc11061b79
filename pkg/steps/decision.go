package steps

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chasedharmon/nurture-nest-birth/pkg/criteria"
	"github.com/chasedharmon/nurture-nest-birth/pkg/models"
	"github.com/chasedharmon/nurture-nest-birth/pkg/protocol"
)

// DecisionExecutor evaluates a single condition against the record and routes
// to exactly one of the two branches.
//
// The record is re-fetched at decision time rather than reusing the snapshot
// the run entered with, so a record mutated mid-workflow follows the branch
// matching its current state. A field absent at evaluation time takes the
// false branch and is logged.
//
// Config: condition_field, operator, value.
type DecisionExecutor struct {
	records   protocol.RecordStore
	evaluator *criteria.Evaluator
	logger    *slog.Logger
}

func (e *DecisionExecutor) Type() models.StepType {
	return models.StepTypeDecision
}

func (e *DecisionExecutor) Execute(ctx context.Context, run *models.WorkflowRun, step *models.WorkflowStep, _ map[string]any) (*protocol.StepOutcome, error) {
	if step.Branches == nil || step.Branches.True == "" || step.Branches.False == "" {
		return nil, protocol.NewConfigurationError(step.StepKey, "branches", "requires true and false branches")
	}

	field := step.ConfigString("condition_field")
	if field == "" {
		return nil, protocol.NewConfigurationError(step.StepKey, "condition_field", "is required")
	}

	operator := models.ConditionOperator(step.ConfigString("operator"))
	if operator == "" {
		return nil, protocol.NewConfigurationError(step.StepKey, "operator", "is required")
	}

	fields, err := e.records.GetRecord(ctx, run.ObjectType, run.TargetRecordID)
	if err != nil {
		return nil, &protocol.TransientDeliveryError{Err: fmt.Errorf("fetching record for decision: %w", err)}
	}

	// A field absent at evaluation time cannot be decided on: take the false
	// branch and record why, rather than failing the run.
	if value, present := fields[field]; !present || value == nil {
		evalErr := &protocol.EvaluationError{StepKey: step.StepKey, Field: field}
		e.logger.Warn("decision field absent on record, taking false branch",
			"run_id", run.ID,
			"step_key", step.StepKey,
			"field", field)

		return &protocol.StepOutcome{NextStepKey: step.Branches.False, Outcome: models.OutcomeBranchFalse, Note: evalErr.Error()}, nil
	}

	condition := models.EntryCondition{Field: field, Operator: operator, Value: step.Config["value"]}

	if e.evaluator.Condition(condition, fields) {
		return &protocol.StepOutcome{NextStepKey: step.Branches.True, Outcome: models.OutcomeBranchTrue}, nil
	}

	return &protocol.StepOutcome{NextStepKey: step.Branches.False, Outcome: models.OutcomeBranchFalse}, nil
}
