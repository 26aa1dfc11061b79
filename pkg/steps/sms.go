package steps

import (
	"context"

	"github.com/chasedharmon/nurture-nest-birth/pkg/models"
	"github.com/chasedharmon/nurture-nest-birth/pkg/protocol"
	"github.com/chasedharmon/nurture-nest-birth/pkg/template"
)

// SMSExecutor sends one SMS with variables resolved against the record
// snapshot.
//
// Config: to_type (client|admin|custom), to_phone (custom only), body.
type SMSExecutor struct {
	sms        protocol.SMSSender
	resolver   *template.Resolver
	adminPhone string
}

func (e *SMSExecutor) Type() models.StepType {
	return models.StepTypeSendSMS
}

func (e *SMSExecutor) Execute(ctx context.Context, _ *models.WorkflowRun, step *models.WorkflowStep, fields map[string]any) (*protocol.StepOutcome, error) {
	next, err := successor(step)
	if err != nil {
		return nil, err
	}

	to, err := resolveRecipient(step, fields, "phone", "to_phone", e.adminPhone)
	if err != nil {
		return nil, err
	}

	body := step.ConfigString("body")
	if body == "" {
		return nil, protocol.NewConfigurationError(step.StepKey, "body", "is required")
	}

	if err := e.sms.SendSMS(ctx, to, e.resolver.Resolve(body, fields)); err != nil {
		return nil, err
	}

	return &protocol.StepOutcome{NextStepKey: next, Outcome: models.OutcomeCompleted, SideEffect: true}, nil
}
