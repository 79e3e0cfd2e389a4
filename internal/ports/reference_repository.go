package ports

import (
	"context"
	"field-route-service/internal/domain"
)

// ReferenceRepository provides the inputs of an assignment run.
type ReferenceRepository interface {
	ListVisits(ctx context.Context, area string, date string) ([]domain.Visit, error)
	ListAgents(ctx context.Context) ([]domain.AgentRecord, error)
	ListWorkloadProfiles(ctx context.Context) ([]domain.WorkloadProfile, error)
	ListDropoffs(ctx context.Context) ([]domain.DropoffLocation, error)
}
