package categorization

import (
	"github.com/curricula/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// AggregateTypeJob is the aggregate type for job events
const AggregateTypeJob = "CategorizationJob"

// Event type constants for CategorizationJob
const (
	EventTypeJobCreated       = "CategorizationJobCreated"
	EventTypeJobStatusChanged = "CategorizationJobStatusChanged"
	EventTypeJobItemFailed    = "CategorizationJobItemFailed"
	EventTypeJobFinished      = "CategorizationJobFinished"
)

// ============================================================================
// CategorizationJob Events
// ============================================================================

// JobCreatedEvent is published when a job is accepted
type JobCreatedEvent struct {
	shared.BaseDomainEvent
	JobID             uuid.UUID   `json:"job_id"`
	ItemCount         int         `json:"item_count"`
	ScopeFrameworkIDs []uuid.UUID `json:"scope_framework_ids"`
}

// NewJobCreatedEvent creates a new JobCreatedEvent
func NewJobCreatedEvent(j *Job) *JobCreatedEvent {
	return &JobCreatedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeJobCreated, AggregateTypeJob, j.ID, j.TenantID),
		JobID:             j.ID,
		ItemCount:         len(j.ItemIDs),
		ScopeFrameworkIDs: j.ScopeFrameworkIDs,
	}
}

// JobStatusChangedEvent is published on every status transition
type JobStatusChangedEvent struct {
	shared.BaseDomainEvent
	JobID     uuid.UUID `json:"job_id"`
	OldStatus JobStatus `json:"old_status"`
	NewStatus JobStatus `json:"new_status"`
}

// NewJobStatusChangedEvent creates a new JobStatusChangedEvent
func NewJobStatusChangedEvent(j *Job, from, to JobStatus) *JobStatusChangedEvent {
	return &JobStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeJobStatusChanged, AggregateTypeJob, j.ID, j.TenantID),
		JobID:           j.ID,
		OldStatus:       from,
		NewStatus:       to,
	}
}

// JobItemFailedEvent is published when an item is recorded as failed
type JobItemFailedEvent struct {
	shared.BaseDomainEvent
	JobID   uuid.UUID   `json:"job_id"`
	Failure ItemFailure `json:"failure"`
}

// NewJobItemFailedEvent creates a new JobItemFailedEvent
func NewJobItemFailedEvent(j *Job, failure ItemFailure) *JobItemFailedEvent {
	return &JobItemFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeJobItemFailed, AggregateTypeJob, j.ID, j.TenantID),
		JobID:           j.ID,
		Failure:         failure,
	}
}

// JobFinishedEvent is published when a job reaches a terminal status.
// Must be built while the job lock is held.
type JobFinishedEvent struct {
	shared.BaseDomainEvent
	JobID    uuid.UUID `json:"job_id"`
	Status   JobStatus `json:"status"`
	Progress Progress  `json:"progress"`
	Reason   string    `json:"reason,omitempty"`
}

// NewJobFinishedEvent creates a new JobFinishedEvent
func NewJobFinishedEvent(j *Job) *JobFinishedEvent {
	return &JobFinishedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeJobFinished, AggregateTypeJob, j.ID, j.TenantID),
		JobID:           j.ID,
		Status:          j.status,
		Progress:        j.progress,
		Reason:          j.failureReason,
	}
}
