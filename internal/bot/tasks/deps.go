// Package tasks implements scheduled tasks for the bot.
// It includes task definitions, dependencies, and registration mechanisms.
package tasks

import (
	"context"
	"log/slog"

	"github.com/edgard/medtechbot/internal/config"
	"github.com/edgard/medtechbot/internal/database"
)

// Redeliverer resends journaled requests that have not reached their destination.
type Redeliverer interface {
	Redeliver(ctx context.Context, limit int) (attempted, delivered int, err error)
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Router Redeliverer
	Config *config.Config
}
