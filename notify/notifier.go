// Package notify delivers run progress messages. Notification is fire and
// forget: a failed send is logged and never affects the pipeline.
package notify

import "context"

// Notifier sends a human-readable message about the run.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// NoOpNotifier is used when no notification channel is configured.
type NoOpNotifier struct{}

// NewNoOpNotifier creates a notifier that does nothing.
func NewNoOpNotifier() Notifier {
	return &NoOpNotifier{}
}

func (n *NoOpNotifier) Notify(ctx context.Context, message string) error { return nil }
