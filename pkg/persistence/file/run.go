package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chasedharmon/nurture-nest-birth/pkg/models"
	"github.com/chasedharmon/nurture-nest-birth/pkg/persistence"
)

// RunRepository stores each run as runs/<id>.json.
type RunRepository struct {
	root string
	mu   sync.RWMutex
}

// NewRunRepository creates a run repository under root.
func NewRunRepository(root string) *RunRepository {
	return &RunRepository{root: root}
}

func (r *RunRepository) dir() string {
	return filepath.Join(r.root, "runs")
}

func (r *RunRepository) path(id string) string {
	return filepath.Join(r.dir(), id+".json")
}

// Create stores a new run, rejecting duplicate ids.
func (r *RunRepository) Create(_ context.Context, run *models.WorkflowRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := os.Stat(r.path(run.ID)); err == nil {
		return persistence.NewRunError("Create", run.ID, persistence.ErrRunAlreadyExists)
	}

	return r.write("Create", run)
}

// Update replaces the stored run state.
func (r *RunRepository) Update(_ context.Context, run *models.WorkflowRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := os.Stat(r.path(run.ID)); os.IsNotExist(err) {
		return persistence.NewRunError("Update", run.ID, persistence.ErrRunNotFound)
	}

	return r.write("Update", run)
}

func (r *RunRepository) write(op string, run *models.WorkflowRun) error {
	if err := os.MkdirAll(r.dir(), 0o755); err != nil {
		return persistence.NewRunError(op, run.ID, err)
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return persistence.NewRunError(op, run.ID, err)
	}

	if err := os.WriteFile(r.path(run.ID), data, 0o644); err != nil {
		return persistence.NewRunError(op, run.ID, err)
	}

	return nil
}

// GetByID loads one run.
func (r *RunRepository) GetByID(_ context.Context, id string) (*models.WorkflowRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.read(id)
}

func (r *RunRepository) read(id string) (*models.WorkflowRun, error) {
	data, err := os.ReadFile(r.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewRunError("GetByID", id, persistence.ErrRunNotFound)
		}

		return nil, persistence.NewRunError("GetByID", id, err)
	}

	var run models.WorkflowRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, persistence.NewRunError("GetByID", id, err)
	}

	return &run, nil
}

func (r *RunRepository) list(filter func(*models.WorkflowRun) bool) ([]*models.WorkflowRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	files, err := fs.Glob(os.DirFS(r.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list run files: %w", err)
	}

	runs := make([]*models.WorkflowRun, 0, len(files))

	for _, file := range files {
		run, err := r.read(file[:len(file)-len(".json")])
		if err != nil {
			return nil, err
		}

		if filter(run) {
			runs = append(runs, run)
		}
	}

	return runs, nil
}

// ListByWorkflow returns every run of a workflow.
func (r *RunRepository) ListByWorkflow(_ context.Context, workflowID string) ([]*models.WorkflowRun, error) {
	return r.list(func(run *models.WorkflowRun) bool {
		return run.WorkflowID == workflowID
	})
}

// ListByWorkflowAndRecord returns the runs of a workflow for one record.
func (r *RunRepository) ListByWorkflowAndRecord(_ context.Context, workflowID, recordID string) ([]*models.WorkflowRun, error) {
	return r.list(func(run *models.WorkflowRun) bool {
		return run.WorkflowID == workflowID && run.TargetRecordID == recordID
	})
}

// DueRuns returns waiting runs whose wait_until has passed.
func (r *RunRepository) DueRuns(_ context.Context, now time.Time) ([]*models.WorkflowRun, error) {
	return r.list(func(run *models.WorkflowRun) bool {
		return run.Status == models.RunStatusWaiting && run.WaitUntil != nil && !run.WaitUntil.After(now)
	})
}
