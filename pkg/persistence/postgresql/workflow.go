package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chasedharmon/nurture-nest-birth/pkg/models"
	"github.com/chasedharmon/nurture-nest-birth/pkg/persistence"
)

// WorkflowRepository handles workflow definition database operations. The step
// graph is stored as a JSONB document alongside the queryable definition
// columns.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

const workflowColumns = `
	id
  , organization_id
  , name
  , object_type
  , entry_criteria
  , reentry_mode
  , reentry_wait_days
  , is_active
  , steps
  , created_at
  , updated_at
`

// Save upserts a workflow definition, rejecting duplicate step keys.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.WorkflowDefinition) error {
	seen := make(map[string]bool, len(workflow.Steps))
	for _, step := range workflow.Steps {
		if seen[step.StepKey] {
			return persistence.NewWorkflowError("Save", workflow.ID, persistence.ErrDuplicateStepKey)
		}

		seen[step.StepKey] = true
	}

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	criteriaJSON, err := json.Marshal(workflow.EntryCriteria)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, fmt.Errorf("failed to marshal entry criteria: %w", err))
	}

	stepsJSON, err := json.Marshal(workflow.Steps)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, fmt.Errorf("failed to marshal steps: %w", err))
	}

	query := `
		INSERT INTO workflows (id, organization_id, name, object_type,
			entry_criteria, reentry_mode, reentry_wait_days, is_active, steps, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			organization_id = EXCLUDED.organization_id,
			name = EXCLUDED.name,
			object_type = EXCLUDED.object_type,
			entry_criteria = EXCLUDED.entry_criteria,
			reentry_mode = EXCLUDED.reentry_mode,
			reentry_wait_days = EXCLUDED.reentry_wait_days,
			is_active = EXCLUDED.is_active,
			steps = EXCLUDED.steps,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.OrganizationID,
		workflow.Name,
		workflow.ObjectType,
		criteriaJSON,
		workflow.ReentryMode,
		workflow.ReentryWaitDays,
		workflow.IsActive,
		stepsJSON,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

// GetByID loads one workflow definition.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = $1`

	workflow, err := r.scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return workflow, nil
}

// List returns every workflow definition.
func (r *WorkflowRepository) List(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows ORDER BY created_at DESC`

	return r.queryWorkflows(ctx, query)
}

// ListActiveByObjectType returns active definitions targeting the object type.
func (r *WorkflowRepository) ListActiveByObjectType(ctx context.Context, objectType models.ObjectType) ([]*models.WorkflowDefinition, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE object_type = $1 AND is_active ORDER BY created_at DESC`

	return r.queryWorkflows(ctx, query, objectType)
}

// Delete removes a workflow definition.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	if rowsAffected == 0 {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func (r *WorkflowRepository) queryWorkflows(ctx context.Context, query string, args ...any) ([]*models.WorkflowDefinition, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.WorkflowDefinition, 0)

	for rows.Next() {
		workflow, err := r.scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

func (r *WorkflowRepository) scanWorkflow(scanner interface {
	Scan(dest ...any) error
}) (*models.WorkflowDefinition, error) {
	var (
		workflow                models.WorkflowDefinition
		criteriaJSON, stepsJSON []byte
	)

	err := scanner.Scan(
		&workflow.ID,
		&workflow.OrganizationID,
		&workflow.Name,
		&workflow.ObjectType,
		&criteriaJSON,
		&workflow.ReentryMode,
		&workflow.ReentryWaitDays,
		&workflow.IsActive,
		&stepsJSON,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(criteriaJSON, &workflow.EntryCriteria); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry criteria: %w", err)
	}

	if err := json.Unmarshal(stepsJSON, &workflow.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
	}

	return &workflow, nil
}
