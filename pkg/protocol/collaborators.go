// Package protocol defines the contracts between the workflow engine and its
// collaborators: the CRM record store, notification senders, the webhook
// caller and the task creator. Implementations live outside the engine.
package protocol

import (
	"context"

	"github.com/chasedharmon/nurture-nest-birth/pkg/models"
)

// RecordStore reads and writes CRM records. GetRecord returns the record's
// field snapshot at call time; decision steps rely on this being live state,
// not the snapshot the run entered with.
type RecordStore interface {
	GetRecord(ctx context.Context, objectType models.ObjectType, id string) (map[string]any, error)
	UpdateField(ctx context.Context, objectType models.ObjectType, id, field string, value any) error
	CreateRecord(ctx context.Context, objectType models.ObjectType, fields map[string]any) (string, error)
}

// EmailSender delivers a single email. CTA text and URL are optional.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body, ctaText, ctaURL string) error
}

// SMSSender delivers a single SMS.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// PortalMessenger posts a message to a client's portal inbox.
type PortalMessenger interface {
	SendPortalMessage(ctx context.Context, recordID, body string) error
}

// WebhookCaller issues one outbound HTTP call.
type WebhookCaller interface {
	Call(ctx context.Context, url, method string, body []byte) error
}

// TaskCreator creates an internal to-do for the practice.
type TaskCreator interface {
	CreateTask(ctx context.Context, title, actionType, assignedTo string) error
}

// Collaborators bundles every external dependency the step executors use.
type Collaborators struct {
	Records RecordStore
	Email   EmailSender
	SMS     SMSSender
	Portal  PortalMessenger
	Webhook WebhookCaller
	Tasks   TaskCreator
}
