// Package service provides infrastructure implementations of
// application-level ports.
package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// IDGenerator produces transaction and multiplier source IDs.
type IDGenerator struct{}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

func (g *IDGenerator) GenerateID() string {
	return uuid.New().String()
}

// LogNotifier implements eventhandler.Notifier by writing notifications
// to the structured log. The platform delivers real notifications
// through its own channel; the worker only needs delivery to be
// observable.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{
		logger: logger,
	}
}

func (n *LogNotifier) Notify(ctx context.Context, userID, title, message string) error {
	n.logger.InfoContext(ctx, "user notification",
		"user_id", userID,
		"title", title,
		"message", message,
	)
	return nil
}
