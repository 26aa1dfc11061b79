package clients

import (
	"context"
	"log/slog"
)

// LogNotifier is the development stand-in for every outbound notification
// channel. It records deliveries through the logger instead of sending them,
// which keeps local runs and demos side-effect free.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("module", "notifier")}
}

func (n *LogNotifier) SendEmail(ctx context.Context, to, subject, body, ctaText, ctaURL string) error {
	n.logger.InfoContext(ctx, "Email delivery",
		"to", to, "subject", subject, "body_length", len(body), "cta_text", ctaText, "cta_url", ctaURL)

	return nil
}

func (n *LogNotifier) SendSMS(ctx context.Context, to, body string) error {
	n.logger.InfoContext(ctx, "SMS delivery", "to", to, "body", body)

	return nil
}

func (n *LogNotifier) SendPortalMessage(ctx context.Context, recordID, body string) error {
	n.logger.InfoContext(ctx, "Portal message delivery", "record_id", recordID, "body_length", len(body))

	return nil
}

func (n *LogNotifier) CreateTask(ctx context.Context, title, actionType, assignedTo string) error {
	n.logger.InfoContext(ctx, "Task created", "title", title, "action_type", actionType, "assigned_to", assignedTo)

	return nil
}
