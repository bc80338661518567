package categorization

import (
	"fmt"
	"sync"
	"time"

	"github.com/curricula/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Progress counts items of a job. Processed == Succeeded + Failed and
// Processed <= Total hold at every observation.
type Progress struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Consistent reports whether the counter invariants hold
func (p Progress) Consistent() bool {
	return p.Processed == p.Succeeded+p.Failed && p.Processed <= p.Total &&
		p.Succeeded >= 0 && p.Failed >= 0
}

// Remaining returns the number of items not yet processed
func (p Progress) Remaining() int {
	return p.Total - p.Processed
}

// ItemFailure records why one item could not be categorized
type ItemFailure struct {
	ItemID     uuid.UUID `json:"item_id"`
	Kind       ErrorKind `json:"kind"`
	Reason     string    `json:"reason"`
	Attempts   int       `json:"attempts"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Job is one asynchronous batch categorization run.
//
// A job is mutated by a single engine run, but read concurrently by status
// queries, so all state changes and reads go through mu.
type Job struct {
	shared.TenantAggregateRoot
	ScopeFrameworkIDs []uuid.UUID
	ItemIDs           []uuid.UUID

	mu              sync.Mutex
	status          JobStatus
	progress        Progress
	failures        []ItemFailure
	recorded        map[uuid.UUID]struct{}
	cancelRequested bool
	failureReason   string
	startedAt       *time.Time
	finishedAt      *time.Time
}

// NewJob creates a pending job. Item IDs are de-duplicated in order.
func NewJob(tenantID uuid.UUID, itemIDs, scopeFrameworkIDs []uuid.UUID) (*Job, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewValidationError("Tenant ID cannot be empty")
	}
	items, err := dedupeIDs(itemIDs, "item")
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, shared.NewValidationError("At least one content item is required")
	}
	scope, err := dedupeIDs(scopeFrameworkIDs, "framework")
	if err != nil {
		return nil, err
	}
	if len(scope) == 0 {
		return nil, shared.NewValidationError("At least one framework is required in scope")
	}

	job := &Job{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ScopeFrameworkIDs:   scope,
		ItemIDs:             items,
		status:              JobStatusPending,
		progress:            Progress{Total: len(items)},
		failures:            make([]ItemFailure, 0),
		recorded:            make(map[uuid.UUID]struct{}, len(items)),
	}
	job.AddDomainEvent(NewJobCreatedEvent(job))
	return job, nil
}

func dedupeIDs(ids []uuid.UUID, what string) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			return nil, shared.NewValidationError(fmt.Sprintf("Empty %s ID", what))
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// Start moves the job from pending to running
func (j *Job) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.status.CanTransitionTo(JobStatusRunning) {
		return shared.NewDomainError(shared.CodeInvalidState, "Cannot start job from status: "+j.status.String())
	}
	now := time.Now()
	j.transition(JobStatusRunning, now)
	j.startedAt = &now
	return nil
}

// RecordSuccess counts one successfully categorized item
func (j *Job) RecordSuccess(itemID uuid.UUID) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.checkRecordable(itemID); err != nil {
		return err
	}
	j.recorded[itemID] = struct{}{}
	j.progress.Succeeded++
	j.progress.Processed++
	j.UpdatedAt = time.Now()
	return nil
}

// RecordFailure counts one failed item and keeps its failure reason
func (j *Job) RecordFailure(itemID uuid.UUID, kind ErrorKind, reason string, attempts int) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.checkRecordable(itemID); err != nil {
		return err
	}
	now := time.Now()
	failure := ItemFailure{ItemID: itemID, Kind: kind, Reason: reason, Attempts: attempts, OccurredAt: now}
	j.recorded[itemID] = struct{}{}
	j.failures = append(j.failures, failure)
	j.progress.Failed++
	j.progress.Processed++
	j.UpdatedAt = now
	j.AddDomainEvent(NewJobItemFailedEvent(j, failure))
	return nil
}

func (j *Job) checkRecordable(itemID uuid.UUID) error {
	if j.status != JobStatusRunning {
		return shared.NewDomainError(shared.CodeInvalidState, "Cannot record item outcome in status: "+j.status.String())
	}
	if _, done := j.recorded[itemID]; done {
		return shared.NewDomainError("ITEM_ALREADY_RECORDED", "Item outcome already recorded: "+itemID.String())
	}
	if j.progress.Processed >= j.progress.Total {
		return shared.NewDomainError(shared.CodeInvalidState, "All items of the job are already processed")
	}
	return nil
}

// RequestCancel stops further dispatch. A pending job is cancelled at once;
// a running job keeps running until its in-flight items are recorded and
// Finish is called. Repeated requests are no-ops.
func (j *Job) RequestCancel() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	switch {
	case j.status == JobStatusPending:
		now := time.Now()
		j.cancelRequested = true
		j.progress.Total = 0
		j.transition(JobStatusCancelled, now)
		j.finishedAt = &now
		j.AddDomainEvent(NewJobFinishedEvent(j))
		return nil
	case j.status == JobStatusRunning:
		j.cancelRequested = true
		j.UpdatedAt = time.Now()
		return nil
	default:
		return shared.NewDomainError(shared.CodeInvalidState, "Cannot cancel job in status: "+j.status.String())
	}
}

// CancelRequested reports whether dispatch must stop
func (j *Job) CancelRequested() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelRequested
}

// Fail marks a job failed because a job-level precondition did not hold.
// It is rejected once any item has been processed.
func (j *Job) Fail(reason string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.status.CanTransitionTo(JobStatusFailed) {
		return shared.NewDomainError(shared.CodeInvalidState, "Cannot fail job in status: "+j.status.String())
	}
	if j.progress.Processed > 0 {
		return shared.NewDomainError(shared.CodeInvalidState, "Cannot fail a job after items were processed")
	}
	now := time.Now()
	j.failureReason = reason
	j.transition(JobStatusFailed, now)
	j.finishedAt = &now
	j.AddDomainEvent(NewJobFinishedEvent(j))
	return nil
}

// Finish closes a running job once dispatched items have all been recorded.
// dispatched is the number of items handed to workers; after a cancellation
// it becomes the reported total.
func (j *Job) Finish(dispatched int) (JobStatus, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status != JobStatusRunning {
		return j.status, shared.NewDomainError(shared.CodeInvalidState, "Cannot finish job in status: "+j.status.String())
	}
	if dispatched != j.progress.Processed {
		return j.status, shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("Cannot finish job: %d items dispatched but %d recorded", dispatched, j.progress.Processed))
	}

	var target JobStatus
	switch {
	case j.cancelRequested && dispatched < j.progress.Total:
		j.progress.Total = dispatched
		target = JobStatusCancelled
	case j.cancelRequested:
		target = JobStatusCancelled
	case dispatched < j.progress.Total:
		return j.status, shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("Cannot finish job: only %d of %d items dispatched", dispatched, j.progress.Total))
	case j.progress.Failed == 0:
		target = JobStatusCompleted
	default:
		target = JobStatusCompletedWithErrors
	}

	now := time.Now()
	j.transition(target, now)
	j.finishedAt = &now
	j.AddDomainEvent(NewJobFinishedEvent(j))
	return target, nil
}

// Abandon closes a job whose run was lost, e.g. after a process restart.
// A pending job fails; a running job is cancelled with its total lowered to
// the items already recorded.
func (j *Job) Abandon(reason string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := time.Now()
	switch j.status {
	case JobStatusPending:
		j.progress.Total = 0
		j.transition(JobStatusFailed, now)
	case JobStatusRunning:
		j.progress.Total = j.progress.Processed
		j.cancelRequested = true
		j.transition(JobStatusCancelled, now)
	default:
		return shared.NewDomainError(shared.CodeInvalidState, "Cannot abandon job in status: "+j.status.String())
	}
	j.failureReason = reason
	j.finishedAt = &now
	j.AddDomainEvent(NewJobFinishedEvent(j))
	return nil
}

// transition must be called with mu held
func (j *Job) transition(to JobStatus, at time.Time) {
	from := j.status
	j.status = to
	j.UpdatedAt = at
	j.IncrementVersion()
	j.AddDomainEvent(NewJobStatusChangedEvent(j, from, to))
}

// Status returns the current status
func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Progress returns a consistent copy of the counters
func (j *Job) Progress() Progress {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progress
}

// Failures returns a copy of the per-item failures recorded so far
func (j *Job) Failures() []ItemFailure {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]ItemFailure, len(j.failures))
	copy(out, j.failures)
	return out
}

// PullEvents returns and clears pending domain events
func (j *Job) PullEvents() []shared.DomainEvent {
	j.mu.Lock()
	defer j.mu.Unlock()
	events := j.GetDomainEvents()
	j.ClearDomainEvents()
	return events
}

// Snapshot captures the whole job state under a single lock
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()

	failures := make([]ItemFailure, len(j.failures))
	copy(failures, j.failures)
	return JobSnapshot{
		ID:                j.ID,
		TenantID:          j.TenantID,
		Status:            j.status,
		ScopeFrameworkIDs: append([]uuid.UUID(nil), j.ScopeFrameworkIDs...),
		ItemIDs:           append([]uuid.UUID(nil), j.ItemIDs...),
		Progress:          j.progress,
		Failures:          failures,
		CancelRequested:   j.cancelRequested,
		FailureReason:     j.failureReason,
		CreatedAt:         j.CreatedAt,
		UpdatedAt:         j.UpdatedAt,
		StartedAt:         j.startedAt,
		FinishedAt:        j.finishedAt,
		Version:           j.Version,
	}
}

// JobSnapshot is an immutable copy of a job's state
type JobSnapshot struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	Status            JobStatus
	ScopeFrameworkIDs []uuid.UUID
	ItemIDs           []uuid.UUID
	Progress          Progress
	Failures          []ItemFailure
	CancelRequested   bool
	FailureReason     string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	StartedAt         *time.Time
	FinishedAt        *time.Time
	Version           int
}

// RestoreJob rebuilds a job from persisted state
func RestoreJob(s JobSnapshot) *Job {
	j := &Job{
		ScopeFrameworkIDs: s.ScopeFrameworkIDs,
		ItemIDs:           s.ItemIDs,
		status:            s.Status,
		progress:          s.Progress,
		failures:          s.Failures,
		recorded:          make(map[uuid.UUID]struct{}, len(s.ItemIDs)),
		cancelRequested:   s.CancelRequested,
		failureReason:     s.FailureReason,
		startedAt:         s.StartedAt,
		finishedAt:        s.FinishedAt,
	}
	j.ID = s.ID
	j.TenantID = s.TenantID
	j.CreatedAt = s.CreatedAt
	j.UpdatedAt = s.UpdatedAt
	j.Version = s.Version
	if j.failures == nil {
		j.failures = make([]ItemFailure, 0)
	}
	for _, f := range s.Failures {
		j.recorded[f.ItemID] = struct{}{}
	}
	return j
}
