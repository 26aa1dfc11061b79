package steps

import (
	"context"

	"github.com/chasedharmon/nurture-nest-birth/pkg/models"
	"github.com/chasedharmon/nurture-nest-birth/pkg/protocol"
	"github.com/chasedharmon/nurture-nest-birth/pkg/template"
)

// PortalMessageExecutor posts a message to the target record's client portal
// inbox.
//
// Config: body.
type PortalMessageExecutor struct {
	portal   protocol.PortalMessenger
	resolver *template.Resolver
}

func (e *PortalMessageExecutor) Type() models.StepType {
	return models.StepTypeSendMessage
}

func (e *PortalMessageExecutor) Execute(ctx context.Context, run *models.WorkflowRun, step *models.WorkflowStep, fields map[string]any) (*protocol.StepOutcome, error) {
	next, err := successor(step)
	if err != nil {
		return nil, err
	}

	body := step.ConfigString("body")
	if body == "" {
		return nil, protocol.NewConfigurationError(step.StepKey, "body", "is required")
	}

	if err := e.portal.SendPortalMessage(ctx, run.TargetRecordID, e.resolver.Resolve(body, fields)); err != nil {
		return nil, err
	}

	return &protocol.StepOutcome{NextStepKey: next, Outcome: models.OutcomeCompleted, SideEffect: true}, nil
}
