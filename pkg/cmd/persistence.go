// Package cmd provides common initialization functions for command-line
// applications.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/chasedharmon/nurture-nest-birth/pkg/persistence"
	"github.com/chasedharmon/nurture-nest-birth/pkg/persistence/file"
	"github.com/chasedharmon/nurture-nest-birth/pkg/persistence/postgresql"
)

// NewPersistence selects a storage backend from the database URL scheme.
// postgres:// URLs connect to PostgreSQL and run migrations; anything else is
// treated as a file path for local development.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	}

	return file.NewPersistence(databaseURL), nil
}
