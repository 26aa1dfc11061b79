// Package web provides HTTP request and response types for the workflow API.
package web

import "github.com/chasedharmon/nurture-nest-birth/pkg/models"

// StepRequest is the wire shape of one workflow graph node.
type StepRequest struct {
	StepKey     string           `json:"step_key"  validate:"required"`
	Name        string           `json:"name"`
	Type        models.StepType  `json:"step_type" validate:"required"`
	Config      map[string]any   `json:"step_config,omitempty"`
	NextStepKey *string          `json:"next_step_key,omitempty"`
	Branches    *models.Branches `json:"branches,omitempty"`
}

// CreateWorkflowRequest represents the request body for creating a new workflow.
// Workflows are always created inactive; activation runs graph validation.
type CreateWorkflowRequest struct {
	OrganizationID  string               `json:"organization_id"   validate:"required"`
	Name            string               `json:"name"              validate:"required,min=3"`
	ObjectType      models.ObjectType    `json:"object_type"       validate:"required"`
	EntryCriteria   models.EntryCriteria `json:"entry_criteria"`
	ReentryMode     models.ReentryMode   `json:"reentry_mode"      validate:"required,oneof=no_reentry always_reentry reentry_after_days"`
	ReentryWaitDays int                  `json:"reentry_wait_days,omitempty"`
	Steps           []StepRequest        `json:"steps"             validate:"dive"`
}

// UpdateWorkflowRequest represents the request body for updating an existing
// workflow. All fields are optional to support partial updates. Object type is
// immutable after creation.
type UpdateWorkflowRequest struct {
	Name            *string               `json:"name,omitempty" validate:"omitempty,min=3"`
	EntryCriteria   *models.EntryCriteria `json:"entry_criteria,omitempty"`
	ReentryMode     *models.ReentryMode   `json:"reentry_mode,omitempty" validate:"omitempty,oneof=no_reentry always_reentry reentry_after_days"`
	ReentryWaitDays *int                  `json:"reentry_wait_days,omitempty"`
	Steps           []StepRequest         `json:"steps,omitempty" validate:"omitempty,dive"`
}

// CancelRunRequest represents the request body for cancelling a run.
type CancelRunRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func transformSteps(steps []StepRequest) []*models.WorkflowStep {
	out := make([]*models.WorkflowStep, 0, len(steps))
	for _, step := range steps {
		out = append(out, &models.WorkflowStep{
			StepKey:     step.StepKey,
			Name:        step.Name,
			Type:        step.Type,
			Config:      step.Config,
			NextStepKey: step.NextStepKey,
			Branches:    step.Branches,
		})
	}

	return out
}
