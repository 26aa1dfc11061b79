package steps

import (
	"context"

	"github.com/chasedharmon/nurture-nest-birth/pkg/models"
	"github.com/chasedharmon/nurture-nest-birth/pkg/protocol"
	"github.com/chasedharmon/nurture-nest-birth/pkg/template"
)

// CreateRecordExecutor creates a new CRM record, resolving variables in any
// string-valued field of the payload.
//
// Config: record_type, fields (object).
type CreateRecordExecutor struct {
	records  protocol.RecordStore
	resolver *template.Resolver
}

func (e *CreateRecordExecutor) Type() models.StepType {
	return models.StepTypeCreateRecord
}

func (e *CreateRecordExecutor) Execute(ctx context.Context, _ *models.WorkflowRun, step *models.WorkflowStep, fields map[string]any) (*protocol.StepOutcome, error) {
	next, err := successor(step)
	if err != nil {
		return nil, err
	}

	recordType := step.ConfigString("record_type")
	if recordType == "" {
		return nil, protocol.NewConfigurationError(step.StepKey, "record_type", "is required")
	}

	payload, _ := step.Config["fields"].(map[string]any)
	if len(payload) == 0 {
		return nil, protocol.NewConfigurationError(step.StepKey, "fields", "is required")
	}

	resolved := make(map[string]any, len(payload))

	for name, value := range payload {
		if text, ok := value.(string); ok {
			resolved[name] = e.resolver.Resolve(text, fields)

			continue
		}

		resolved[name] = value
	}

	if _, err := e.records.CreateRecord(ctx, models.ObjectType(recordType), resolved); err != nil {
		return nil, err
	}

	return &protocol.StepOutcome{NextStepKey: next, Outcome: models.OutcomeCompleted, SideEffect: true}, nil
}
