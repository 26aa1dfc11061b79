package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/chasedharmon/nurture-nest-birth/pkg/models"
	"github.com/chasedharmon/nurture-nest-birth/pkg/persistence"
)

// WorkflowRepository stores each definition as workflows/<id>.json.
type WorkflowRepository struct {
	root string
	mu   sync.RWMutex
}

// NewWorkflowRepository creates a workflow repository under root.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

func (r *WorkflowRepository) dir() string {
	return filepath.Join(r.root, "workflows")
}

func (r *WorkflowRepository) path(id string) string {
	return filepath.Join(r.dir(), id+".json")
}

// Save writes the definition, rejecting duplicate step keys.
func (r *WorkflowRepository) Save(_ context.Context, workflow *models.WorkflowDefinition) error {
	seen := make(map[string]bool, len(workflow.Steps))
	for _, step := range workflow.Steps {
		if seen[step.StepKey] {
			return persistence.NewWorkflowError("Save", workflow.ID, persistence.ErrDuplicateStepKey)
		}

		seen[step.StepKey] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.dir(), 0o755); err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	data, err := json.MarshalIndent(workflow, "", "  ")
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	if err := os.WriteFile(r.path(workflow.ID), data, 0o644); err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

// GetByID loads one definition.
func (r *WorkflowRepository) GetByID(_ context.Context, id string) (*models.WorkflowDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, err := os.ReadFile(r.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	var workflow models.WorkflowDefinition
	if err := json.Unmarshal(data, &workflow); err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return &workflow, nil
}

// List returns every stored definition.
func (r *WorkflowRepository) List(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	r.mu.RLock()
	files, err := fs.Glob(os.DirFS(r.dir()), "*.json")
	r.mu.RUnlock()

	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	workflows := make([]*models.WorkflowDefinition, 0, len(files))

	for _, file := range files {
		workflow, err := r.GetByID(ctx, file[:len(file)-len(".json")])
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

// ListActiveByObjectType returns active definitions targeting the object type.
func (r *WorkflowRepository) ListActiveByObjectType(ctx context.Context, objectType models.ObjectType) ([]*models.WorkflowDefinition, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	matching := make([]*models.WorkflowDefinition, 0)

	for _, workflow := range all {
		if workflow.IsActive && workflow.ObjectType == objectType {
			matching = append(matching, workflow)
		}
	}

	return matching, nil
}

// Delete removes a definition.
func (r *WorkflowRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path(id)); err != nil {
		if os.IsNotExist(err) {
			return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
		}

		return persistence.NewWorkflowError("Delete", id, err)
	}

	return nil
}
