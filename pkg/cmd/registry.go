package cmd

import (
	"log/slog"
	"os"

	"github.com/chasedharmon/nurture-nest-birth/pkg/protocol"
	"github.com/chasedharmon/nurture-nest-birth/pkg/steps"
	"github.com/chasedharmon/nurture-nest-birth/pkg/template"
)

// NewRegistry builds the step executor registry. Practice identity and admin
// contact points come from the environment, matching how the CRM provisions
// per-deployment settings.
func NewRegistry(collaborators protocol.Collaborators, logger *slog.Logger) *steps.Registry {
	resolver := template.NewResolver(
		envOr("DOULA_NAME", "Your Doula"),
		envOr("PRACTICE_NAME", "Nurture Nest Births"),
		envOr("PORTAL_URL", "http://localhost:3000/portal"),
	)

	settings := steps.Settings{
		AdminEmail: os.Getenv("ADMIN_EMAIL"),
		AdminPhone: os.Getenv("ADMIN_PHONE"),
	}

	return steps.NewRegistry(collaborators, resolver, settings, logger)
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return fallback
}
