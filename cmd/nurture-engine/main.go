package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/chasedharmon/nurture-nest-birth/pkg/cmd"
	"github.com/chasedharmon/nurture-nest-birth/pkg/log"
	"github.com/chasedharmon/nurture-nest-birth/pkg/workflow"
)

func main() {
	command := &cli.Command{
		Name:                  "nurture-engine",
		Usage:                 "Run the workflow execution engine",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "engine-id",
				Aliases: []string{"id"},
				Usage:   "Custom engine instance ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("ENGINE_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (postgres:// or a data directory)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for distributed run locks",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:     "crm-url",
				Usage:    "Base URL of the practice CRM API",
				Required: true,
				Sources:  cli.EnvVars("CRM_URL"),
			},
			&cli.StringFlag{
				Name:    "crm-api-key",
				Usage:   "API key for the practice CRM API",
				Sources: cli.EnvVars("CRM_API_KEY"),
			},
			&cli.DurationFlag{
				Name:    "sweep-interval",
				Usage:   "How often the resumption scheduler sweeps for due runs",
				Value:   time.Minute,
				Sources: cli.EnvVars("SWEEP_INTERVAL"),
			},
			&cli.StringFlag{
				Name:    "sweep-cron",
				Usage:   "Cron expression for sweeps (overrides sweep-interval)",
				Sources: cli.EnvVars("SWEEP_CRON"),
			},
			&cli.IntFlag{
				Name:    "sweep-workers",
				Usage:   "Number of concurrent resumptions per sweep",
				Value:   4,
				Sources: cli.EnvVars("SWEEP_WORKERS"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			engineID := command.String("engine-id")
			if engineID == "" {
				engineID = "engine-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("nurture-engine").With("engine_id", engineID)

			logger.InfoContext(ctx, "Initializing Nurture Nest engine")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "nurture-engine", logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			locker, err := cmd.NewLocker(command.String("redis-url"), logger)
			if err != nil {
				return err
			}

			collaborators := cmd.NewCollaborators(
				command.String("crm-url"), command.String("crm-api-key"), logger)
			registry := cmd.NewRegistry(collaborators, logger)

			executor := workflow.NewExecutor(
				persistence, registry, collaborators.Records, locker, eventBus, logger,
				workflow.DefaultRetryPolicy())

			dispatcher := workflow.NewDispatcher(persistence, executor, locker, logger)
			scheduler := workflow.NewScheduler(persistence, executor, logger, workflow.SchedulerOptions{
				Interval: command.Duration("sweep-interval"),
				CronExpr: command.String("sweep-cron"),
				Workers:  command.Int("sweep-workers"),
			})

			engine := NewEngineManager(engineID, eventBus, dispatcher, scheduler, logger)

			if err := engine.Start(ctx); err != nil {
				logger.ErrorContext(ctx, "Failed to start engine", "error", err)

				return err
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
