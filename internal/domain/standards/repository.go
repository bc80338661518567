package standards

import (
	"context"

	"github.com/google/uuid"
)

// FrameworkFilter narrows framework listings
type FrameworkFilter struct {
	EducationalArea string
	OnlyActive      bool
}

// FrameworkRepository defines persistence for standards frameworks
type FrameworkRepository interface {
	// FindByIDForTenant finds a framework by ID within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Framework, error)

	// FindByIDsForTenant loads the frameworks with the given IDs; missing IDs are simply absent
	FindByIDsForTenant(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*Framework, error)

	// FindAllForTenant lists a tenant's frameworks
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter FrameworkFilter) ([]*Framework, error)

	// ListTenantIDs returns every tenant that owns at least one active framework
	ListTenantIDs(ctx context.Context) ([]uuid.UUID, error)

	// Save inserts or updates a framework
	Save(ctx context.Context, framework *Framework) error
}

// ObjectiveRepository defines persistence for standard objectives
type ObjectiveRepository interface {
	// FindByFramework returns all objectives of a framework in the tenant
	FindByFramework(ctx context.Context, tenantID, frameworkID uuid.UUID) ([]*Objective, error)

	// FindByFrameworks returns the objectives of several frameworks at once
	FindByFrameworks(ctx context.Context, tenantID uuid.UUID, frameworkIDs []uuid.UUID) ([]*Objective, error)

	// CountByFramework returns the number of objectives in a framework
	CountByFramework(ctx context.Context, tenantID, frameworkID uuid.UUID) (int64, error)

	// SaveBatch inserts objectives in one transaction
	SaveBatch(ctx context.Context, objectives []*Objective) error
}
