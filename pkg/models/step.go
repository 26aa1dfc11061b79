package models

// StepType is the tagged variant of a workflow step. Each type carries its own
// required step_config fields and is executed by a dedicated executor.
type StepType string

const (
	StepTypeTrigger      StepType = "trigger"
	StepTypeSendEmail    StepType = "send_email"
	StepTypeSendSMS      StepType = "send_sms"
	StepTypeSendMessage  StepType = "send_message"
	StepTypeCreateTask   StepType = "create_task"
	StepTypeUpdateField  StepType = "update_field"
	StepTypeCreateRecord StepType = "create_record"
	StepTypeWebhook      StepType = "webhook"
	StepTypeWait         StepType = "wait"
	StepTypeDecision     StepType = "decision"
	StepTypeEnd          StepType = "end"
)

// StepTypes lists all supported step types.
var StepTypes = []StepType{
	StepTypeTrigger,
	StepTypeSendEmail,
	StepTypeSendSMS,
	StepTypeSendMessage,
	StepTypeCreateTask,
	StepTypeUpdateField,
	StepTypeCreateRecord,
	StepTypeWebhook,
	StepTypeWait,
	StepTypeDecision,
	StepTypeEnd,
}

// Branches holds the two named successor edges of a decision step.
type Branches struct {
	True  string `json:"true"  validate:"required"`
	False string `json:"false" validate:"required"`
}

// WorkflowStep is a node in the workflow graph. StepKey is stable and unique
// within its definition, independent of visual position in the editor.
// Non-decision, non-end steps carry NextStepKey; decision steps carry Branches;
// end steps carry neither.
type WorkflowStep struct {
	StepKey     string         `json:"step_key"  validate:"required"`
	Name        string         `json:"name"`
	Type        StepType       `json:"step_type" validate:"required"`
	Config      map[string]any `json:"step_config,omitempty"`
	NextStepKey *string        `json:"next_step_key,omitempty"`
	Branches    *Branches      `json:"branches,omitempty"`
}

func (s *WorkflowStep) IsDecision() bool {
	return s.Type == StepTypeDecision
}

func (s *WorkflowStep) IsEnd() bool {
	return s.Type == StepTypeEnd
}

// Successors returns every step key reachable from this step in one hop.
func (s *WorkflowStep) Successors() []string {
	if s.Branches != nil {
		return []string{s.Branches.True, s.Branches.False}
	}

	if s.NextStepKey != nil && *s.NextStepKey != "" {
		return []string{*s.NextStepKey}
	}

	return nil
}

// ConfigString reads a string field from the step's config payload.
func (s *WorkflowStep) ConfigString(key string) string {
	value, _ := s.Config[key].(string)

	return value
}

// ConfigNumber reads a numeric field from the step's config payload. JSON
// decoding yields float64; stores may hand back int as well.
func (s *WorkflowStep) ConfigNumber(key string) (float64, bool) {
	switch v := s.Config[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
