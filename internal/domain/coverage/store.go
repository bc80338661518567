package coverage

import (
	"context"

	"github.com/curricula/backend/internal/domain/content"
	"github.com/curricula/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// ErrNotSeeded is returned by AddPair for a framework the store has not loaded
var ErrNotSeeded = shared.NewDomainError("COVERAGE_NOT_SEEDED", "Coverage counter has not been seeded")

// Seed is the persisted state a framework's counter is rebuilt from
type Seed struct {
	TenantID        uuid.UUID
	FrameworkID     uuid.UUID
	TotalObjectives int
	Keys            []content.MappingKey
}

// Store keeps coverage counters together with the (content, objective)
// membership needed to tell a new pair from a re-categorized one.
// AddPair must be atomic per framework and commutative across callers.
type Store interface {
	// Seed loads a framework's state. With replace=false it is a no-op when
	// the framework is already present; it reports whether state was written.
	Seed(ctx context.Context, seed Seed, replace bool) (bool, error)

	// Has reports whether the framework has been seeded
	Has(ctx context.Context, tenantID, frameworkID uuid.UUID) (bool, error)

	// AddPair records an accepted mapping. It returns true when the pair was
	// not yet known; an objective becomes mapped with its first pair.
	// An unseeded framework yields ErrNotSeeded.
	AddPair(ctx context.Context, tenantID, frameworkID uuid.UUID, key content.MappingKey) (bool, error)

	// Get returns the counter and whether the framework is present
	Get(ctx context.Context, tenantID, frameworkID uuid.UUID) (Counter, bool, error)
}
