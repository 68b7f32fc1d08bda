// Package eventhandler contains domain event handlers. They are the
// reactive part of the system: side effects like notifications and cache
// updates run here, never inside the reward path itself.
package eventhandler

import "context"

// Notifier delivers user-facing notifications. Implementations live in
// infrastructure; delivery failures never fail the triggering operation.
type Notifier interface {
	Notify(ctx context.Context, userID, title, message string) error
}
