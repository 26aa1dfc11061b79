// Package web provides HTTP handlers and REST API endpoints for workflow management.
package web

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/chasedharmon/nurture-nest-birth/pkg/models"
	"github.com/chasedharmon/nurture-nest-birth/pkg/persistence"
	"github.com/chasedharmon/nurture-nest-birth/pkg/workflow"
)

type APIHandlers struct {
	persistence    persistence.Persistence
	executor       *workflow.Executor
	graphValidator *workflow.Validator
	validator      *validator.Validate
	logger         *slog.Logger
}

func NewAPIHandlers(
	persistence persistence.Persistence,
	executor *workflow.Executor,
	graphValidator *workflow.Validator,
	validator *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		persistence:    persistence,
		executor:       executor,
		graphValidator: graphValidator,
		validator:      validator,
		logger:         logger.With("module", "api"),
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.persistence.Workflows().List(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":   workflows,
		"total_count": len(workflows),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow ID is required")
	}

	definition, err := h.persistence.Workflows().GetByID(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(definition)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	now := time.Now().UTC()
	definition := &models.WorkflowDefinition{
		ID:              uuid.New().String(),
		OrganizationID:  req.OrganizationID,
		Name:            req.Name,
		ObjectType:      req.ObjectType,
		EntryCriteria:   req.EntryCriteria,
		ReentryMode:     req.ReentryMode,
		ReentryWaitDays: req.ReentryWaitDays,
		IsActive:        false,
		Steps:           transformSteps(req.Steps),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := h.persistence.Workflows().Save(c.Context(), definition); err != nil {
		if errors.Is(err, persistence.ErrDuplicateStepKey) {
			return conflict(c, "step keys must be unique within a workflow")
		}

		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(definition)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow ID is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.persistence.Workflows().GetByID(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	// Edits to a live automation are not allowed; deactivate first.
	if existing.IsActive {
		return conflict(c, "workflow is active; deactivate it before editing")
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.EntryCriteria != nil {
		existing.EntryCriteria = *req.EntryCriteria
	}

	if req.ReentryMode != nil {
		existing.ReentryMode = *req.ReentryMode
	}

	if req.ReentryWaitDays != nil {
		existing.ReentryWaitDays = *req.ReentryWaitDays
	}

	if req.Steps != nil {
		existing.Steps = transformSteps(req.Steps)
	}

	existing.UpdatedAt = time.Now().UTC()

	if err := h.persistence.Workflows().Save(c.Context(), existing); err != nil {
		if errors.Is(err, persistence.ErrDuplicateStepKey) {
			return conflict(c, "step keys must be unique within a workflow")
		}

		return internalError(c, err)
	}

	return c.JSON(existing)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow ID is required")
	}

	if err := h.persistence.Workflows().Delete(c.Context(), id); err != nil {
		return handleStoreError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ActivateWorkflow turns a definition live. Graph validation runs here, not on
// save, so authors can store half-built drafts.
func (h *APIHandlers) ActivateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow ID is required")
	}

	definition, err := h.persistence.Workflows().GetByID(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	if err := h.graphValidator.Validate(definition); err != nil {
		return unprocessable(c, err.Error())
	}

	definition.IsActive = true
	definition.UpdatedAt = time.Now().UTC()

	if err := h.persistence.Workflows().Save(c.Context(), definition); err != nil {
		return internalError(c, err)
	}

	h.logger.Info("Workflow activated", "workflow_id", definition.ID, "name", definition.Name)

	return c.JSON(definition)
}

// DeactivateWorkflow stops new runs from starting. Runs already in flight keep
// advancing against the definition they entered with.
func (h *APIHandlers) DeactivateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow ID is required")
	}

	definition, err := h.persistence.Workflows().GetByID(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	definition.IsActive = false
	definition.UpdatedAt = time.Now().UTC()

	if err := h.persistence.Workflows().Save(c.Context(), definition); err != nil {
		return internalError(c, err)
	}

	h.logger.Info("Workflow deactivated", "workflow_id", definition.ID, "name", definition.Name)

	return c.JSON(definition)
}

func (h *APIHandlers) GetWorkflowRuns(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow ID is required")
	}

	if _, err := h.persistence.Workflows().GetByID(c.Context(), id); err != nil {
		return handleStoreError(c, err)
	}

	runs, err := h.persistence.Runs().ListByWorkflow(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"runs":        runs,
		"total_count": len(runs),
	})
}

func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "run ID is required")
	}

	run, err := h.persistence.Runs().GetByID(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(run)
}

func (h *APIHandlers) CancelRun(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "run ID is required")
	}

	var req CancelRunRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.executor.Cancel(c.Context(), id, req.Reason); err != nil {
		if persistence.IsRunNotFound(err) {
			return notFound(c, "workflow run not found")
		}

		return conflict(c, err.Error())
	}

	run, err := h.persistence.Runs().GetByID(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(run)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK

	repositoryCheck := "ok"
	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
		repositoryCheck = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
