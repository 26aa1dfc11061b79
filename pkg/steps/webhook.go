package steps

import (
	"context"
	"strings"

	"github.com/chasedharmon/nurture-nest-birth/pkg/models"
	"github.com/chasedharmon/nurture-nest-birth/pkg/protocol"
	"github.com/chasedharmon/nurture-nest-birth/pkg/template"
)

// WebhookExecutor issues one outbound HTTP call with variables resolved into
// the URL and body.
//
// Config: url, method (default POST), body.
type WebhookExecutor struct {
	webhook  protocol.WebhookCaller
	resolver *template.Resolver
}

func (e *WebhookExecutor) Type() models.StepType {
	return models.StepTypeWebhook
}

func (e *WebhookExecutor) Execute(ctx context.Context, _ *models.WorkflowRun, step *models.WorkflowStep, fields map[string]any) (*protocol.StepOutcome, error) {
	next, err := successor(step)
	if err != nil {
		return nil, err
	}

	url := step.ConfigString("url")
	if url == "" {
		return nil, protocol.NewConfigurationError(step.StepKey, "url", "is required")
	}

	method := strings.ToUpper(step.ConfigString("method"))
	if method == "" {
		method = "POST"
	}

	url = e.resolver.Resolve(url, fields)
	body := e.resolver.Resolve(step.ConfigString("body"), fields)

	if err := e.webhook.Call(ctx, url, method, []byte(body)); err != nil {
		return nil, err
	}

	return &protocol.StepOutcome{NextStepKey: next, Outcome: models.OutcomeCompleted, SideEffect: true}, nil
}
