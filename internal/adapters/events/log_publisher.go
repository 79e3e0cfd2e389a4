package events

import (
	"context"
	"field-route-service/internal/domain"
	"log/slog"
)

// LogPublisher writes a one-line summary of each run. Used when no broker
// is configured.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(ctx context.Context, run *domain.AssignmentRun) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger.InfoContext(ctx, "assignment run published",
		"run_id", run.RunID,
		"area", run.Area,
		"date", run.Date,
		"agents", len(run.Agents),
		"visits", len(run.Visits),
		"overflow", len(run.Overflow),
		"unresolved", len(run.Unresolved),
	)
	return nil
}
