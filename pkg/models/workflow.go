// Package models defines the core domain models for the workflow automation engine.
package models

import "time"

// ObjectType identifies the kind of CRM record a workflow is attached to.
type ObjectType string

const (
	ObjectTypeLead       ObjectType = "lead"
	ObjectTypeMeeting    ObjectType = "meeting"
	ObjectTypePayment    ObjectType = "payment"
	ObjectTypeInvoice    ObjectType = "invoice"
	ObjectTypeService    ObjectType = "service"
	ObjectTypeDocument   ObjectType = "document"
	ObjectTypeContract   ObjectType = "contract"
	ObjectTypeIntakeForm ObjectType = "intake_form"
)

// ObjectTypes lists every CRM object type a workflow may target.
var ObjectTypes = []ObjectType{
	ObjectTypeLead,
	ObjectTypeMeeting,
	ObjectTypePayment,
	ObjectTypeInvoice,
	ObjectTypeService,
	ObjectTypeDocument,
	ObjectTypeContract,
	ObjectTypeIntakeForm,
}

// ReentryMode controls whether a record that already ran a workflow may enter it again.
type ReentryMode string

const (
	ReentryModeNever     ReentryMode = "no_reentry"
	ReentryModeAlways    ReentryMode = "always_reentry"
	ReentryModeAfterDays ReentryMode = "reentry_after_days"
)

// WorkflowDefinition is a reusable automation graph scoped to one CRM object type.
// Definitions are produced by the visual editor and activated through the admin API;
// the engine only ever executes definitions that passed graph validation.
type WorkflowDefinition struct {
	ID              string          `json:"id"`
	OrganizationID  string          `json:"organization_id" validate:"required"`
	Name            string          `json:"name"            validate:"required,min=3"`
	ObjectType      ObjectType      `json:"object_type"     validate:"required"`
	EntryCriteria   EntryCriteria   `json:"entry_criteria"`
	ReentryMode     ReentryMode     `json:"reentry_mode"    validate:"required,oneof=no_reentry always_reentry reentry_after_days"`
	ReentryWaitDays int             `json:"reentry_wait_days,omitempty"`
	IsActive        bool            `json:"is_active"`
	Steps           []*WorkflowStep `json:"steps"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// StepByKey resolves a step through its stable key. Edges in the graph are
// string keys, not object references, so every traversal goes through here.
func (d *WorkflowDefinition) StepByKey(key string) (*WorkflowStep, bool) {
	for _, step := range d.Steps {
		if step.StepKey == key {
			return step, true
		}
	}

	return nil, false
}

// TriggerStep returns the workflow's trigger node. Validation guarantees an
// active definition has exactly one.
func (d *WorkflowDefinition) TriggerStep() (*WorkflowStep, bool) {
	for _, step := range d.Steps {
		if step.Type == StepTypeTrigger {
			return step, true
		}
	}

	return nil, false
}
