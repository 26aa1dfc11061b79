package models

import "time"

// RunStatus is the lifecycle state of a workflow run.
type RunStatus string

const (
	RunStatusActive    RunStatus = "active"
	RunStatusWaiting   RunStatus = "waiting"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// IsTerminal reports whether the run can never advance again.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// Step execution outcomes recorded in run history.
const (
	OutcomeTriggered   = "triggered"
	OutcomeCompleted   = "completed"
	OutcomeBranchTrue  = "branch_true"
	OutcomeBranchFalse = "branch_false"
	OutcomeWaiting     = "waiting"
	OutcomeRetried     = "retried"
	OutcomeFailed      = "failed"
	OutcomeEnded       = "ended"
	OutcomeCancelled   = "cancelled"
)

// StepExecution is one append-only history entry of a run. Retries of a
// side-effecting step each record their own entry so delivery failures stay
// visible in the audit trail.
type StepExecution struct {
	StepKey   string    `json:"step_key"`
	StartedAt time.Time `json:"started_at"`
	Outcome   string    `json:"outcome"`
	Attempt   int       `json:"attempt,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// WorkflowRun is one execution instance of a WorkflowDefinition for one target
// record. Runs are created only by the trigger dispatcher, mutated only by the
// execution engine, and never deleted: the history is an append-only audit
// trail terminating in completed, failed or cancelled.
//
// WaitUntil is non-nil iff Status is waiting. While suspended, CurrentStepKey
// is the wait step itself; resumption advances past it.
type WorkflowRun struct {
	ID                 string          `json:"id"`
	WorkflowID         string          `json:"workflow_id"`
	ObjectType         ObjectType      `json:"object_type"`
	TargetRecordID     string          `json:"target_record_id"`
	Status             RunStatus       `json:"status"`
	CurrentStepKey     string          `json:"current_step_key"`
	WaitUntil          *time.Time      `json:"wait_until,omitempty"`
	EnteredAt          time.Time       `json:"entered_at"`
	LastTransitionedAt time.Time       `json:"last_transitioned_at"`
	History            []StepExecution `json:"history"`
}

// RecordHistory appends a history entry and bumps the transition timestamp.
func (r *WorkflowRun) RecordHistory(entry StepExecution) {
	r.History = append(r.History, entry)
	r.LastTransitionedAt = entry.StartedAt
}
