package categorization

import (
	"context"
	"errors"
	"sync"

	"github.com/curricula/backend/internal/domain/categorization"
	"github.com/google/uuid"
)

// ErrJobAlreadyRegistered is returned when the same job is launched twice
var ErrJobAlreadyRegistered = errors.New("categorization: job already registered")

// LiveJob is a job owned by this process together with its run controls
type LiveJob struct {
	Job *categorization.Job

	cancel    context.CancelFunc
	cancelled chan struct{}
	once      sync.Once
}

// Cancelled is closed once cancellation has been requested
func (l *LiveJob) Cancelled() <-chan struct{} {
	return l.cancelled
}

func (l *LiveJob) signalCancel() {
	l.once.Do(func() { close(l.cancelled) })
}

// JobRegistry tracks the jobs this process is running. Status queries read
// live progress from it; jobs absent from it are served from storage.
type JobRegistry struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*LiveJob
}

// NewJobRegistry creates an empty registry
func NewJobRegistry() *JobRegistry {
	return &JobRegistry{jobs: make(map[uuid.UUID]*LiveJob)}
}

// Register adds a job. cancel aborts the job's run context.
func (r *JobRegistry) Register(job *categorization.Job, cancel context.CancelFunc) (*LiveJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; ok {
		return nil, ErrJobAlreadyRegistered
	}
	live := &LiveJob{Job: job, cancel: cancel, cancelled: make(chan struct{})}
	r.jobs[job.ID] = live
	return live, nil
}

// Get returns a live job of the tenant
func (r *JobRegistry) Get(tenantID, jobID uuid.UUID) (*categorization.Job, bool) {
	live, ok := r.live(jobID)
	if !ok || !live.Job.BelongsTo(tenantID) {
		return nil, false
	}
	return live.Job, true
}

// Owns reports whether the job is running in this process
func (r *JobRegistry) Owns(jobID uuid.UUID) bool {
	_, ok := r.live(jobID)
	return ok
}

// RequestCancel asks a live job to stop dispatching. found is false when the
// job is not owned by this process.
func (r *JobRegistry) RequestCancel(tenantID, jobID uuid.UUID) (found bool, err error) {
	live, ok := r.live(jobID)
	if !ok || !live.Job.BelongsTo(tenantID) {
		return false, nil
	}
	if err := live.Job.RequestCancel(); err != nil {
		return true, err
	}
	live.signalCancel()
	return true, nil
}

// CancelAll requests cancellation of every live job and returns how many
// accepted it
func (r *JobRegistry) CancelAll() int {
	r.mu.RLock()
	lives := make([]*LiveJob, 0, len(r.jobs))
	for _, l := range r.jobs {
		lives = append(lives, l)
	}
	r.mu.RUnlock()

	n := 0
	for _, l := range lives {
		if err := l.Job.RequestCancel(); err == nil {
			n++
		}
		l.signalCancel()
	}
	return n
}

// AbortAll cancels the run context of every live job
func (r *JobRegistry) AbortAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.jobs {
		l.cancel()
	}
}

// Remove drops a job once its run has ended
func (r *JobRegistry) Remove(jobID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, jobID)
}

// Len returns the number of live jobs
func (r *JobRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

func (r *JobRegistry) live(jobID uuid.UUID) (*LiveJob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.jobs[jobID]
	return l, ok
}
