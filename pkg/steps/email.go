package steps

import (
	"context"

	"github.com/chasedharmon/nurture-nest-birth/pkg/models"
	"github.com/chasedharmon/nurture-nest-birth/pkg/protocol"
	"github.com/chasedharmon/nurture-nest-birth/pkg/template"
)

// Recipient kinds shared by the email and SMS steps.
const (
	ToTypeClient = "client"
	ToTypeAdmin  = "admin"
	ToTypeCustom = "custom"
)

// EmailExecutor sends one email through the notification collaborator with
// variables resolved against the record snapshot.
//
// Config: to_type (client|admin|custom), to_email (custom only), subject,
// body or template_name, optional cta_text/cta_url. A template_name without a
// body is passed through as the body reference; the mail provider expands
// stored templates by name.
type EmailExecutor struct {
	email      protocol.EmailSender
	resolver   *template.Resolver
	adminEmail string
}

func (e *EmailExecutor) Type() models.StepType {
	return models.StepTypeSendEmail
}

func (e *EmailExecutor) Execute(ctx context.Context, _ *models.WorkflowRun, step *models.WorkflowStep, fields map[string]any) (*protocol.StepOutcome, error) {
	next, err := successor(step)
	if err != nil {
		return nil, err
	}

	to, err := resolveRecipient(step, fields, "email", "to_email", e.adminEmail)
	if err != nil {
		return nil, err
	}

	body := step.ConfigString("body")
	if body == "" {
		body = step.ConfigString("template_name")
	}

	if body == "" {
		return nil, protocol.NewConfigurationError(step.StepKey, "body", "requires body or template_name")
	}

	subject := e.resolver.Resolve(step.ConfigString("subject"), fields)
	body = e.resolver.Resolve(body, fields)
	ctaText := e.resolver.Resolve(step.ConfigString("cta_text"), fields)
	ctaURL := e.resolver.Resolve(step.ConfigString("cta_url"), fields)

	if err := e.email.SendEmail(ctx, to, subject, body, ctaText, ctaURL); err != nil {
		return nil, err
	}

	return &protocol.StepOutcome{NextStepKey: next, Outcome: models.OutcomeCompleted, SideEffect: true}, nil
}

// resolveRecipient maps to_type onto a concrete address: client reads the
// record's own contact field, admin uses the practice address, custom reads
// the configured override. A missing to_type or address is a configuration
// failure, so the run fails before any send attempt.
func resolveRecipient(step *models.WorkflowStep, fields map[string]any, recordField, customKey, adminAddress string) (string, error) {
	switch step.ConfigString("to_type") {
	case "":
		return "", protocol.NewConfigurationError(step.StepKey, "to_type", "is required")
	case ToTypeClient:
		address, _ := fields[recordField].(string)
		if address == "" {
			return "", protocol.NewConfigurationError(step.StepKey, recordField, "not present on target record")
		}

		return address, nil
	case ToTypeAdmin:
		if adminAddress == "" {
			return "", protocol.NewConfigurationError(step.StepKey, "to_type", "admin address not configured for practice")
		}

		return adminAddress, nil
	case ToTypeCustom:
		address := step.ConfigString(customKey)
		if address == "" {
			return "", protocol.NewConfigurationError(step.StepKey, customKey, "is required when to_type is custom")
		}

		return address, nil
	default:
		return "", protocol.NewConfigurationError(step.StepKey, "to_type", "must be client, admin or custom")
	}
}
