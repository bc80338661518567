package categorization

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JobRepository defines persistence for categorization jobs
type JobRepository interface {
	// Create inserts a new job
	Create(ctx context.Context, job *Job) error

	// Save persists status, progress and failures of an existing job
	Save(ctx context.Context, job *Job) error

	// FindByIDForTenant finds a job by ID within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Job, error)

	// ListRecent returns the tenant's most recent jobs, newest first
	ListRecent(ctx context.Context, tenantID uuid.UUID, limit int) ([]*Job, error)

	// FindByStatuses returns jobs of every tenant in the given statuses
	FindByStatuses(ctx context.Context, statuses []JobStatus) ([]*Job, error)

	// DeleteFinishedBefore removes terminal jobs that finished before cutoff
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
