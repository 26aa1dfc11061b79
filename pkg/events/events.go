// Package events defines the record and run lifecycle events flowing through
// the event bus.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/chasedharmon/nurture-nest-birth/pkg/models"
)

type EventType string

// Kafka topics.
const RecordTopic = "nurture.record.events" // CRM record mutations feeding the trigger dispatcher
const RunTopic = "nurture.run.events"       // Run lifecycle notifications emitted by the engine

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// CRM record events.
	RecordCreatedEvent EventType = "record.created"
	RecordUpdatedEvent EventType = "record.updated"

	// Run lifecycle events.
	RunStartedEvent   EventType = "run.started"
	RunSuspendedEvent EventType = "run.suspended"
	RunResumedEvent   EventType = "run.resumed"
	RunCompletedEvent EventType = "run.completed"
	RunFailedEvent    EventType = "run.failed"
	RunCancelledEvent EventType = "run.cancelled"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}

// RecordCreated signals a new CRM record. The dispatcher evaluates entry
// criteria of every active workflow targeting the record's object type.
type RecordCreated struct {
	BaseEvent

	ObjectType models.ObjectType `json:"object_type"`
	RecordID   string            `json:"record_id"`
	Fields     map[string]any    `json:"fields"`
}

func (e RecordCreated) GetType() EventType {
	return RecordCreatedEvent
}

// RecordUpdated signals a field change on an existing CRM record. Carries the
// full post-update field snapshot so criteria evaluate without a read back.
type RecordUpdated struct {
	BaseEvent

	ObjectType    models.ObjectType `json:"object_type"`
	RecordID      string            `json:"record_id"`
	Fields        map[string]any    `json:"fields"`
	ChangedFields []string          `json:"changed_fields,omitempty"`
}

func (e RecordUpdated) GetType() EventType {
	return RecordUpdatedEvent
}

// Run lifecycle events

type RunStarted struct {
	BaseEvent

	RunID      string            `json:"run_id"`
	WorkflowID string            `json:"workflow_id"`
	ObjectType models.ObjectType `json:"object_type"`
	RecordID   string            `json:"record_id"`
}

func (e RunStarted) GetType() EventType {
	return RunStartedEvent
}

type RunSuspended struct {
	BaseEvent

	RunID      string    `json:"run_id"`
	WorkflowID string    `json:"workflow_id"`
	StepKey    string    `json:"step_key"`
	WaitUntil  time.Time `json:"wait_until"`
}

func (e RunSuspended) GetType() EventType {
	return RunSuspendedEvent
}

type RunResumed struct {
	BaseEvent

	RunID      string `json:"run_id"`
	WorkflowID string `json:"workflow_id"`
	StepKey    string `json:"step_key"`
}

func (e RunResumed) GetType() EventType {
	return RunResumedEvent
}

type RunCompleted struct {
	BaseEvent

	RunID         string        `json:"run_id"`
	WorkflowID    string        `json:"workflow_id"`
	StepsExecuted int           `json:"steps_executed"`
	Duration      time.Duration `json:"duration"`
}

func (e RunCompleted) GetType() EventType {
	return RunCompletedEvent
}

type RunFailed struct {
	BaseEvent

	RunID      string `json:"run_id"`
	WorkflowID string `json:"workflow_id"`
	StepKey    string `json:"step_key"`
	Error      string `json:"error"`
}

func (e RunFailed) GetType() EventType {
	return RunFailedEvent
}

type RunCancelled struct {
	BaseEvent

	RunID      string `json:"run_id"`
	WorkflowID string `json:"workflow_id"`
	Reason     string `json:"reason,omitempty"`
}

func (e RunCancelled) GetType() EventType {
	return RunCancelledEvent
}

// TopicFor returns the bus topic an event type is published on.
func TopicFor(eventType EventType) string {
	switch eventType {
	case RecordCreatedEvent, RecordUpdatedEvent:
		return RecordTopic
	default:
		return RunTopic
	}
}
