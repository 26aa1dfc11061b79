// Package main provides the workflow admin API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/chasedharmon/nurture-nest-birth/pkg/cmd"
	"github.com/chasedharmon/nurture-nest-birth/pkg/eventbus"
	"github.com/chasedharmon/nurture-nest-birth/pkg/locks"
	"github.com/chasedharmon/nurture-nest-birth/pkg/persistence"
	"github.com/chasedharmon/nurture-nest-birth/pkg/web"
	"github.com/chasedharmon/nurture-nest-birth/pkg/workflow"
)

type API struct {
	logger         *slog.Logger
	persistence    persistence.Persistence
	executor       *workflow.Executor
	graphValidator *workflow.Validator
	validate       *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	p persistence.Persistence,
	eventBus eventbus.EventBus,
	locker locks.Locker,
	crmURL, crmAPIKey string,
) (*API, error) {
	graphValidator, err := workflow.NewValidator()
	if err != nil {
		return nil, err
	}

	collaborators := cmd.NewCollaborators(crmURL, crmAPIKey, logger)
	registry := cmd.NewRegistry(collaborators, logger)

	// The API only cancels runs through the executor; step execution lives in
	// the engine process.
	executor := workflow.NewExecutor(
		p, registry, collaborators.Records, locker, eventBus, logger, workflow.DefaultRetryPolicy())

	return &API{
		logger:         logger,
		persistence:    p,
		executor:       executor,
		graphValidator: graphValidator,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.persistence, a.executor, a.graphValidator, a.validate, a.logger)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Nurture Nest API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/activate", handlers.ActivateWorkflow)
	w.Post("/:id/deactivate", handlers.DeactivateWorkflow)
	w.Get("/:id/runs", handlers.GetWorkflowRuns)

	r := app.Group("/runs")
	r.Get("/:id", handlers.GetRun)
	r.Post("/:id/cancel", handlers.CancelRun)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
