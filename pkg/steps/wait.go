package steps

import (
	"context"
	"time"

	"github.com/chasedharmon/nurture-nest-birth/pkg/models"
	"github.com/chasedharmon/nurture-nest-birth/pkg/protocol"
)

// WaitExecutor suspends the run until a resume time. The time comes from a
// fixed offset (wait_days/wait_hours) or from a date field on the record
// (wait_until_field); the field wins when both are configured. The resumption
// scheduler wakes the run once the time has passed.
type WaitExecutor struct {
	// clock override for tests
	now func() time.Time
}

func (e *WaitExecutor) Type() models.StepType {
	return models.StepTypeWait
}

func (e *WaitExecutor) Execute(_ context.Context, _ *models.WorkflowRun, step *models.WorkflowStep, fields map[string]any) (*protocol.StepOutcome, error) {
	if _, err := successor(step); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if e.now != nil {
		now = e.now()
	}

	if fieldName := step.ConfigString("wait_until_field"); fieldName != "" {
		value, ok := fields[fieldName]
		if !ok || value == nil {
			return nil, protocol.NewConfigurationError(step.StepKey, "wait_until_field", "field absent on target record")
		}

		until, ok := parseWaitTime(value)
		if !ok {
			return nil, protocol.NewConfigurationError(step.StepKey, "wait_until_field", "field is not a date")
		}

		return &protocol.StepOutcome{WaitUntil: &until, Outcome: models.OutcomeWaiting}, nil
	}

	days, hasDays := step.ConfigNumber("wait_days")
	hours, hasHours := step.ConfigNumber("wait_hours")

	if !hasDays && !hasHours {
		return nil, protocol.NewConfigurationError(step.StepKey, "wait_days", "requires wait_days, wait_hours or wait_until_field")
	}

	until := now.Add(time.Duration(days)*24*time.Hour + time.Duration(hours)*time.Hour)
	if until.Before(now) {
		until = now
	}

	return &protocol.StepOutcome{WaitUntil: &until, Outcome: models.OutcomeWaiting}, nil
}

func parseWaitTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05"} {
			if at, err := time.Parse(layout, v); err == nil {
				return at, true
			}
		}
	}

	return time.Time{}, false
}
