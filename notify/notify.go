// Package notify delivers application lifecycle notifications to users.
// Delivery is best-effort; workflow operations never fail on a
// notification error.
package notify

import (
	"context"
	"log/slog"

	"github.com/xraph/sentinel/id"
)

// Template identifies a notification message template.
type Template string

// Notification templates.
const (
	TemplateApplicationReceived  Template = "application_received"
	TemplateApplicationApproved  Template = "application_approved"
	TemplateApplicationRejected  Template = "application_rejected"
	TemplateApplicationWithdrawn Template = "application_withdrawn"
	TemplateApplicationExpired   Template = "application_expired"
	TemplateStepResolved         Template = "application_step_resolved"
)

// Message is one notification addressed to a user.
type Message struct {
	UserID   id.UserID
	Template Template
	Data     map[string]any
}

// Notifier delivers notifications. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// LogNotifier logs notifications instead of delivering them. It is the
// default when no delivery backend is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that writes to the given logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(ctx context.Context, msg Message) error {
	n.logger.InfoContext(ctx, "notification",
		slog.String("user_id", msg.UserID.String()),
		slog.String("template", string(msg.Template)),
		slog.Any("data", msg.Data),
	)
	return nil
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(context.Context, Message) error { return nil }
