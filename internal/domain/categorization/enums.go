package categorization

// JobStatus represents the lifecycle status of a categorization job
type JobStatus string

const (
	JobStatusPending             JobStatus = "pending"
	JobStatusRunning             JobStatus = "running"
	JobStatusCompleted           JobStatus = "completed"
	JobStatusCompletedWithErrors JobStatus = "completed_with_errors"
	JobStatusFailed              JobStatus = "failed"
	JobStatusCancelled           JobStatus = "cancelled"
)

// IsValid checks if the JobStatus is a valid value
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusCompletedWithErrors,
		JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of JobStatus
func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no further transitions are possible
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusCompletedWithErrors, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo checks if the status can transition to the target status
func (s JobStatus) CanTransitionTo(target JobStatus) bool {
	switch s {
	case JobStatusPending:
		return target == JobStatusRunning || target == JobStatusFailed || target == JobStatusCancelled
	case JobStatusRunning:
		return target == JobStatusCompleted || target == JobStatusCompletedWithErrors ||
			target == JobStatusFailed || target == JobStatusCancelled
	}
	return false
}

// ActiveStatuses are the statuses of jobs that have not finished
func ActiveStatuses() []JobStatus {
	return []JobStatus{JobStatusPending, JobStatusRunning}
}

// AllJobStatuses returns all valid JobStatus values
func AllJobStatuses() []JobStatus {
	return []JobStatus{
		JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusCompletedWithErrors,
		JobStatusFailed, JobStatusCancelled,
	}
}

// ErrorKind classifies why an item failed
type ErrorKind string

const (
	ErrorKindTransient       ErrorKind = "transient"
	ErrorKindInvalidResponse ErrorKind = "invalid_response"
	ErrorKindPermanent       ErrorKind = "permanent"
	ErrorKindPersistence     ErrorKind = "persistence"
	ErrorKindMissingContent  ErrorKind = "missing_content"
)

// Retryable reports whether an item error of this kind may be retried
func (k ErrorKind) Retryable() bool {
	return k == ErrorKindTransient || k == ErrorKindInvalidResponse || k == ErrorKindPersistence
}
