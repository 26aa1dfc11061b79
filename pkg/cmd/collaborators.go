package cmd

import (
	"log/slog"

	"github.com/chasedharmon/nurture-nest-birth/pkg/clients"
	"github.com/chasedharmon/nurture-nest-birth/pkg/protocol"
)

// NewCollaborators wires the engine's external dependencies. Records and
// webhooks go over HTTP; the notification channels use the log notifier until
// the provider integrations land.
// TODO: swap LogNotifier for the Resend and Twilio senders once their
// credentials are provisioned per organization.
func NewCollaborators(crmURL, crmAPIKey string, logger *slog.Logger) protocol.Collaborators {
	notifier := clients.NewLogNotifier(logger)
	records := clients.NewCRMClient(crmURL, crmAPIKey)

	return protocol.Collaborators{
		Records: records,
		Email:   notifier,
		SMS:     notifier,
		Portal:  notifier,
		Webhook: clients.NewHTTPWebhookCaller(),
		Tasks:   notifier,
	}
}
