// Package steps implements one executor per workflow step type and the
// registry the execution engine dispatches through.
package steps

import (
	"fmt"
	"log/slog"

	"github.com/chasedharmon/nurture-nest-birth/pkg/criteria"
	"github.com/chasedharmon/nurture-nest-birth/pkg/models"
	"github.com/chasedharmon/nurture-nest-birth/pkg/protocol"
	"github.com/chasedharmon/nurture-nest-birth/pkg/template"
)

// Settings holds practice-level addressing used by the notification steps.
type Settings struct {
	AdminEmail string
	AdminPhone string
}

// Registry maps step types to their executors.
type Registry struct {
	executors map[models.StepType]protocol.StepExecutor
}

// NewRegistry wires every built-in step executor against the given
// collaborators.
func NewRegistry(collaborators protocol.Collaborators, resolver *template.Resolver, settings Settings, logger *slog.Logger) *Registry {
	registry := &Registry{executors: make(map[models.StepType]protocol.StepExecutor)}

	registry.Register(&TriggerExecutor{})
	registry.Register(&EmailExecutor{email: collaborators.Email, resolver: resolver, adminEmail: settings.AdminEmail})
	registry.Register(&SMSExecutor{sms: collaborators.SMS, resolver: resolver, adminPhone: settings.AdminPhone})
	registry.Register(&PortalMessageExecutor{portal: collaborators.Portal, resolver: resolver})
	registry.Register(&TaskExecutor{tasks: collaborators.Tasks, resolver: resolver})
	registry.Register(&UpdateFieldExecutor{records: collaborators.Records})
	registry.Register(&CreateRecordExecutor{records: collaborators.Records, resolver: resolver})
	registry.Register(&WebhookExecutor{webhook: collaborators.Webhook, resolver: resolver})
	registry.Register(&WaitExecutor{})
	registry.Register(&DecisionExecutor{
		records:   collaborators.Records,
		evaluator: criteria.NewEvaluator(),
		logger:    logger.With("module", "decision_step"),
	})
	registry.Register(&EndExecutor{})

	return registry
}

// Register adds or replaces the executor for its step type.
func (r *Registry) Register(executor protocol.StepExecutor) {
	r.executors[executor.Type()] = executor
}

// ForType resolves the executor for a step type.
func (r *Registry) ForType(stepType models.StepType) (protocol.StepExecutor, error) {
	executor, ok := r.executors[stepType]
	if !ok {
		return nil, fmt.Errorf("step type %q not registered", stepType)
	}

	return executor, nil
}

// successor returns the linear next step key for a non-decision step.
func successor(step *models.WorkflowStep) (string, error) {
	if step.NextStepKey == nil || *step.NextStepKey == "" {
		return "", protocol.NewConfigurationError(step.StepKey, "next_step_key", "is required")
	}

	return *step.NextStepKey, nil
}
