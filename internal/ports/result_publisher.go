package ports

import (
	"context"
	"field-route-service/internal/domain"
)

// ResultPublisher hands a finished run to downstream consumers (history
// store, exports, dashboards).
type ResultPublisher interface {
	Publish(ctx context.Context, run *domain.AssignmentRun) error
}
