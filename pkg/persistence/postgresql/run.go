package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/chasedharmon/nurture-nest-birth/pkg/models"
	"github.com/chasedharmon/nurture-nest-birth/pkg/persistence"
)

// uniqueViolation is the PostgreSQL error code for duplicate primary keys.
const uniqueViolation = "23505"

// RunRepository handles workflow run database operations. The append-only
// history lives in a JSONB column; the run state columns stay queryable for
// the resumption sweep.
type RunRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db *sql.DB, logger *slog.Logger) *RunRepository {
	return &RunRepository{db: db, logger: logger}
}

const runColumns = `
	id
  , workflow_id
  , object_type
  , target_record_id
  , status
  , current_step_key
  , wait_until
  , entered_at
  , last_transitioned_at
  , history
`

// Create inserts a new run, rejecting duplicate ids.
func (r *RunRepository) Create(ctx context.Context, run *models.WorkflowRun) error {
	historyJSON, err := json.Marshal(run.History)
	if err != nil {
		return persistence.NewRunError("Create", run.ID, fmt.Errorf("failed to marshal history: %w", err))
	}

	query := `
		INSERT INTO workflow_runs (id, workflow_id, object_type, target_record_id,
			status, current_step_key, wait_until, entered_at, last_transitioned_at, history)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query,
		run.ID,
		run.WorkflowID,
		run.ObjectType,
		run.TargetRecordID,
		run.Status,
		run.CurrentStepKey,
		run.WaitUntil,
		run.EnteredAt,
		run.LastTransitionedAt,
		historyJSON,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return persistence.NewRunError("Create", run.ID, persistence.ErrRunAlreadyExists)
		}

		return persistence.NewRunError("Create", run.ID, err)
	}

	return nil
}

// Update replaces the stored run state.
func (r *RunRepository) Update(ctx context.Context, run *models.WorkflowRun) error {
	historyJSON, err := json.Marshal(run.History)
	if err != nil {
		return persistence.NewRunError("Update", run.ID, fmt.Errorf("failed to marshal history: %w", err))
	}

	query := `
		UPDATE workflow_runs SET
			status = $2,
			current_step_key = $3,
			wait_until = $4,
			last_transitioned_at = $5,
			history = $6
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.Status,
		run.CurrentStepKey,
		run.WaitUntil,
		run.LastTransitionedAt,
		historyJSON,
	)
	if err != nil {
		return persistence.NewRunError("Update", run.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewRunError("Update", run.ID, err)
	}

	if rowsAffected == 0 {
		return persistence.NewRunError("Update", run.ID, persistence.ErrRunNotFound)
	}

	return nil
}

// GetByID loads one run.
func (r *RunRepository) GetByID(ctx context.Context, id string) (*models.WorkflowRun, error) {
	query := `SELECT ` + runColumns + ` FROM workflow_runs WHERE id = $1`

	run, err := r.scanRun(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRunError("GetByID", id, persistence.ErrRunNotFound)
		}

		return nil, persistence.NewRunError("GetByID", id, err)
	}

	return run, nil
}

// ListByWorkflow returns every run of a workflow, newest first.
func (r *RunRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowRun, error) {
	query := `SELECT ` + runColumns + ` FROM workflow_runs WHERE workflow_id = $1 ORDER BY entered_at DESC`

	return r.queryRuns(ctx, query, workflowID)
}

// ListByWorkflowAndRecord returns the runs of a workflow for one record.
func (r *RunRepository) ListByWorkflowAndRecord(ctx context.Context, workflowID, recordID string) ([]*models.WorkflowRun, error) {
	query := `SELECT ` + runColumns + ` FROM workflow_runs
		WHERE workflow_id = $1 AND target_record_id = $2 ORDER BY entered_at DESC`

	return r.queryRuns(ctx, query, workflowID, recordID)
}

// DueRuns returns waiting runs whose wait_until has passed, oldest first so
// the longest-suspended runs resume first.
func (r *RunRepository) DueRuns(ctx context.Context, now time.Time) ([]*models.WorkflowRun, error) {
	query := `SELECT ` + runColumns + ` FROM workflow_runs
		WHERE status = 'waiting' AND wait_until <= $1 ORDER BY wait_until ASC`

	return r.queryRuns(ctx, query, now)
}

func (r *RunRepository) queryRuns(ctx context.Context, query string, args ...any) ([]*models.WorkflowRun, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	runs := make([]*models.WorkflowRun, 0)

	for rows.Next() {
		run, err := r.scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

func (r *RunRepository) scanRun(scanner interface {
	Scan(dest ...any) error
}) (*models.WorkflowRun, error) {
	var (
		run         models.WorkflowRun
		historyJSON []byte
	)

	err := scanner.Scan(
		&run.ID,
		&run.WorkflowID,
		&run.ObjectType,
		&run.TargetRecordID,
		&run.Status,
		&run.CurrentStepKey,
		&run.WaitUntil,
		&run.EnteredAt,
		&run.LastTransitionedAt,
		&historyJSON,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(historyJSON, &run.History); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history: %w", err)
	}

	return &run, nil
}
