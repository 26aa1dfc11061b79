// Package persistence provides the storage abstraction for workflow
// definitions and runs.
package persistence

import (
	"context"
	"time"

	"github.com/chasedharmon/nurture-nest-birth/pkg/models"
)

// Persistence is the root handle to a storage backend.
type Persistence interface {
	Workflows() WorkflowRepository
	Runs() RunRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow definitions. Step references inside a
// definition are string step_keys; the store enforces key uniqueness within a
// definition on save.
type WorkflowRepository interface {
	Save(ctx context.Context, workflow *models.WorkflowDefinition) error
	GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	List(ctx context.Context) ([]*models.WorkflowDefinition, error)
	ListActiveByObjectType(ctx context.Context, objectType models.ObjectType) ([]*models.WorkflowDefinition, error)
	Delete(ctx context.Context, id string) error
}

// RunRepository stores workflow runs. Runs are never deleted; Update replaces
// run state as the engine advances it.
type RunRepository interface {
	Create(ctx context.Context, run *models.WorkflowRun) error
	Update(ctx context.Context, run *models.WorkflowRun) error
	GetByID(ctx context.Context, id string) (*models.WorkflowRun, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowRun, error)
	ListByWorkflowAndRecord(ctx context.Context, workflowID, recordID string) ([]*models.WorkflowRun, error)
	// DueRuns returns runs with status waiting whose wait_until has passed.
	DueRuns(ctx context.Context, now time.Time) ([]*models.WorkflowRun, error)
}
