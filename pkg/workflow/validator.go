// Package workflow contains the runtime core: graph validation, the execution
// engine, the trigger dispatcher and the resumption scheduler.
package workflow

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"

	"github.com/chasedharmon/nurture-nest-birth/pkg/models"
)

// ValidationError reports the first well-formedness violation found in a
// workflow definition. A definition may not be activated until validation
// passes.
type ValidationError struct {
	Check   string
	StepKey string
	Message string
}

func (e *ValidationError) Error() string {
	if e.StepKey != "" {
		return fmt.Sprintf("workflow invalid (%s): step %s: %s", e.Check, e.StepKey, e.Message)
	}

	return fmt.Sprintf("workflow invalid (%s): %s", e.Check, e.Message)
}

// Validator checks a workflow definition before activation. Checks run in a
// fixed order and the first violation is reported.
type Validator struct {
	structs *validator.Validate
	schemas map[models.StepType]*gojsonschema.Schema
}

// NewValidator compiles the per-type step_config schemas.
func NewValidator() (*Validator, error) {
	schemas := make(map[models.StepType]*gojsonschema.Schema, len(stepConfigSchemas))

	for stepType, raw := range stepConfigSchemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s config schema: %w", stepType, err)
		}

		schemas[stepType] = schema
	}

	return &Validator{
		structs: validator.New(validator.WithRequiredStructEnabled()),
		schemas: schemas,
	}, nil
}

// Validate runs every check against the definition. Checks, in order: struct
// fields, entry criteria, single trigger, referenced keys exist, reachability
// and acyclicity, decision branches, linear successors, per-type step_config
// shape.
func (v *Validator) Validate(workflow *models.WorkflowDefinition) error {
	if err := v.structs.Struct(workflow); err != nil {
		return &ValidationError{Check: "definition", Message: err.Error()}
	}

	if err := v.validateCriteria(workflow); err != nil {
		return err
	}

	trigger, err := v.validateSingleTrigger(workflow)
	if err != nil {
		return err
	}

	steps, err := v.validateReferences(workflow)
	if err != nil {
		return err
	}

	if err := v.validateReachability(workflow, trigger, steps); err != nil {
		return err
	}

	if err := v.validateSuccessors(workflow); err != nil {
		return err
	}

	return v.validateStepConfigs(workflow)
}

func (v *Validator) validateCriteria(workflow *models.WorkflowDefinition) error {
	// Empty condition lists are vacuous true under all, which is the documented
	// match-everything escape hatch. Under any it would be vacuous false and
	// never match, so it is rejected instead.
	if workflow.EntryCriteria.MatchType == models.MatchAny && len(workflow.EntryCriteria.Conditions) == 0 {
		return &ValidationError{Check: "entry_criteria", Message: "match_type any requires at least one condition"}
	}

	for _, condition := range workflow.EntryCriteria.Conditions {
		if !knownOperator(condition.Operator) {
			return &ValidationError{
				Check:   "entry_criteria",
				Message: fmt.Sprintf("unknown operator %q on field %q", condition.Operator, condition.Field),
			}
		}

		if condition.Operator.RequiresValue() && condition.Value == nil {
			return &ValidationError{
				Check:   "entry_criteria",
				Message: fmt.Sprintf("operator %q on field %q requires a value", condition.Operator, condition.Field),
			}
		}
	}

	if workflow.ReentryMode == models.ReentryModeAfterDays && workflow.ReentryWaitDays < 1 {
		return &ValidationError{Check: "reentry", Message: "reentry_after_days requires reentry_wait_days >= 1"}
	}

	return nil
}

func (v *Validator) validateSingleTrigger(workflow *models.WorkflowDefinition) (*models.WorkflowStep, error) {
	var trigger *models.WorkflowStep

	for _, step := range workflow.Steps {
		if step.Type != models.StepTypeTrigger {
			continue
		}

		if trigger != nil {
			return nil, &ValidationError{Check: "trigger", StepKey: step.StepKey, Message: "definition has more than one trigger"}
		}

		trigger = step
	}

	if trigger == nil {
		return nil, &ValidationError{Check: "trigger", Message: "definition has no trigger step"}
	}

	return trigger, nil
}

func (v *Validator) validateReferences(workflow *models.WorkflowDefinition) (map[string]*models.WorkflowStep, error) {
	steps := make(map[string]*models.WorkflowStep, len(workflow.Steps))

	for _, step := range workflow.Steps {
		if _, exists := steps[step.StepKey]; exists {
			return nil, &ValidationError{Check: "references", StepKey: step.StepKey, Message: "duplicate step_key"}
		}

		steps[step.StepKey] = step
	}

	for _, step := range workflow.Steps {
		for _, key := range step.Successors() {
			if _, exists := steps[key]; !exists {
				return nil, &ValidationError{
					Check:   "references",
					StepKey: step.StepKey,
					Message: fmt.Sprintf("references unknown step_key %q", key),
				}
			}
		}
	}

	return steps, nil
}

// validateReachability walks the graph depth-first from the trigger, rejecting
// cycles and steps the trigger cannot reach.
func (v *Validator) validateReachability(workflow *models.WorkflowDefinition, trigger *models.WorkflowStep, steps map[string]*models.WorkflowStep) error {
	const (
		unvisited = iota
		visiting
		done
	)

	state := make(map[string]int, len(steps))

	var visit func(key string) error

	visit = func(key string) error {
		switch state[key] {
		case visiting:
			return &ValidationError{Check: "graph", StepKey: key, Message: "cycle detected"}
		case done:
			return nil
		}

		state[key] = visiting

		for _, next := range steps[key].Successors() {
			if err := visit(next); err != nil {
				return err
			}
		}

		state[key] = done

		return nil
	}

	if err := visit(trigger.StepKey); err != nil {
		return err
	}

	for _, step := range workflow.Steps {
		if state[step.StepKey] != done {
			return &ValidationError{Check: "graph", StepKey: step.StepKey, Message: "unreachable from trigger"}
		}
	}

	return nil
}

func (v *Validator) validateSuccessors(workflow *models.WorkflowDefinition) error {
	for _, step := range workflow.Steps {
		switch {
		case step.IsDecision():
			if step.Branches == nil || step.Branches.True == "" || step.Branches.False == "" {
				return &ValidationError{Check: "branches", StepKey: step.StepKey, Message: "decision requires both true and false branches"}
			}

			if step.NextStepKey != nil {
				return &ValidationError{Check: "branches", StepKey: step.StepKey, Message: "decision carries branches, not next_step_key"}
			}
		case step.IsEnd():
			if step.NextStepKey != nil || step.Branches != nil {
				return &ValidationError{Check: "successors", StepKey: step.StepKey, Message: "end step has no successor"}
			}
		default:
			if step.Branches != nil {
				return &ValidationError{Check: "successors", StepKey: step.StepKey, Message: "only decision steps carry branches"}
			}

			if step.NextStepKey == nil || *step.NextStepKey == "" {
				return &ValidationError{Check: "successors", StepKey: step.StepKey, Message: "next_step_key is required"}
			}
		}
	}

	return nil
}

func (v *Validator) validateStepConfigs(workflow *models.WorkflowDefinition) error {
	for _, step := range workflow.Steps {
		schema, exists := v.schemas[step.Type]
		if !exists {
			if knownStepType(step.Type) {
				continue
			}

			return &ValidationError{Check: "step_config", StepKey: step.StepKey, Message: fmt.Sprintf("unknown step_type %q", step.Type)}
		}

		config := step.Config
		if config == nil {
			config = map[string]any{}
		}

		result, err := schema.Validate(gojsonschema.NewGoLoader(config))
		if err != nil {
			return &ValidationError{Check: "step_config", StepKey: step.StepKey, Message: err.Error()}
		}

		if !result.Valid() {
			return &ValidationError{
				Check:   "step_config",
				StepKey: step.StepKey,
				Message: result.Errors()[0].String(),
			}
		}
	}

	return nil
}

func knownOperator(op models.ConditionOperator) bool {
	for _, candidate := range models.ConditionOperators {
		if op == candidate {
			return true
		}
	}

	return false
}

func knownStepType(stepType models.StepType) bool {
	for _, candidate := range models.StepTypes {
		if stepType == candidate {
			return true
		}
	}

	return false
}

// stepConfigSchemas holds the required step_config shape per step type.
// Trigger and end steps carry no config.
var stepConfigSchemas = map[models.StepType]string{
	models.StepTypeSendEmail: `{
		"type": "object",
		"required": ["to_type", "subject"],
		"properties": {
			"to_type": {"enum": ["client", "admin", "custom"]},
			"subject": {"type": "string", "minLength": 1}
		},
		"anyOf": [
			{"required": ["body"]},
			{"required": ["template_name"]}
		],
		"if": {"properties": {"to_type": {"const": "custom"}}},
		"then": {"required": ["to_email"]}
	}`,
	models.StepTypeSendSMS: `{
		"type": "object",
		"required": ["to_type", "body"],
		"properties": {
			"to_type": {"enum": ["client", "admin", "custom"]},
			"body": {"type": "string", "minLength": 1}
		},
		"if": {"properties": {"to_type": {"const": "custom"}}},
		"then": {"required": ["to_phone"]}
	}`,
	models.StepTypeSendMessage: `{
		"type": "object",
		"required": ["body"],
		"properties": {
			"body": {"type": "string", "minLength": 1}
		}
	}`,
	models.StepTypeCreateTask: `{
		"type": "object",
		"required": ["title", "assigned_to"],
		"properties": {
			"title": {"type": "string", "minLength": 1},
			"assigned_to": {"enum": ["owner", "admin"]}
		}
	}`,
	models.StepTypeUpdateField: `{
		"type": "object",
		"required": ["field", "value"],
		"properties": {
			"field": {"type": "string", "minLength": 1}
		}
	}`,
	models.StepTypeCreateRecord: `{
		"type": "object",
		"required": ["record_type"],
		"properties": {
			"record_type": {"type": "string", "minLength": 1},
			"fields": {"type": "object"}
		}
	}`,
	models.StepTypeWebhook: `{
		"type": "object",
		"required": ["url"],
		"properties": {
			"url": {"type": "string", "minLength": 1},
			"method": {"enum": ["GET", "POST", "PUT", "PATCH", "DELETE"]}
		}
	}`,
	models.StepTypeWait: `{
		"type": "object",
		"anyOf": [
			{"required": ["wait_days"]},
			{"required": ["wait_hours"]},
			{"required": ["wait_until_field"]}
		],
		"properties": {
			"wait_days": {"type": "number", "minimum": 0},
			"wait_hours": {"type": "number", "minimum": 0},
			"wait_until_field": {"type": "string", "minLength": 1}
		}
	}`,
	models.StepTypeDecision: `{
		"type": "object",
		"required": ["condition_field", "operator"],
		"properties": {
			"condition_field": {"type": "string", "minLength": 1},
			"operator": {"enum": [
				"equals", "not_equals", "contains", "greater_than", "less_than",
				"is_null", "is_not_null", "this_week", "this_month", "this_quarter"
			]}
		}
	}`,
}
