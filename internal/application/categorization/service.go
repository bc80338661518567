package categorization

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/curricula/backend/internal/domain/categorization"
	"github.com/curricula/backend/internal/domain/shared"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// JobLauncher starts a pending job in the background
type JobLauncher interface {
	Launch(job *categorization.Job) error
}

// JobService is the application entry point for categorization jobs.
// It never saves a job while the engine runs it; live state is read from
// the registry instead.
type JobService struct {
	jobs      categorization.JobRepository
	registry  *JobRegistry
	launcher  JobLauncher
	publisher shared.EventPublisher
	validate  *validator.Validate
	maxItems  int
	logger    *zap.Logger
}

// NewJobService creates a JobService. maxItems <= 0 disables the per-job
// item limit.
func NewJobService(
	jobs categorization.JobRepository,
	registry *JobRegistry,
	launcher JobLauncher,
	publisher shared.EventPublisher,
	maxItems int,
	logger *zap.Logger,
) *JobService {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.SetTagName("binding")
	return &JobService{
		jobs:      jobs,
		registry:  registry,
		launcher:  launcher,
		publisher: publisher,
		validate:  v,
		maxItems:  maxItems,
		logger:    logger.Named("categorization-service"),
	}
}

// SubmitJob validates the request, persists a pending job and hands it to
// the engine. The returned job is still pending or already running.
func (s *JobService) SubmitJob(ctx context.Context, tenantID uuid.UUID, req SubmitJobRequest) (*JobResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewValidationError(validationMessage(err))
	}

	job, err := categorization.NewJob(tenantID, req.ItemIDs, req.FrameworkIDs)
	if err != nil {
		return nil, err
	}
	if s.maxItems > 0 && len(job.ItemIDs) > s.maxItems {
		return nil, shared.NewValidationError(fmt.Sprintf("A job may contain at most %d content items", s.maxItems))
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, shared.NewPersistenceError("create job", err)
	}
	if err := s.publisher.Publish(ctx, job.PullEvents()...); err != nil {
		s.logger.Warn("Failed to publish job created event", zap.String("job_id", job.ID.String()), zap.Error(err))
	}

	resp := ToJobResponse(job.Snapshot())
	if err := s.launcher.Launch(job); err != nil {
		s.logger.Error("Failed to launch categorization job", zap.String("job_id", job.ID.String()), zap.Error(err))
		_ = job.RequestCancel()
		s.save(ctx, job)
		return nil, shared.NewDomainError(shared.CodeUnavailable, "Categorization is not accepting jobs")
	}

	s.logger.Info("Categorization job submitted",
		zap.String("job_id", job.ID.String()),
		zap.String("tenant_id", tenantID.String()),
		zap.Int("items", len(job.ItemIDs)),
		zap.Int("frameworks", len(job.ScopeFrameworkIDs)),
	)
	return &resp, nil
}

// GetJob returns a job with live progress when it is running in this process
func (s *JobService) GetJob(ctx context.Context, tenantID, jobID uuid.UUID) (*JobResponse, error) {
	job, err := s.load(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}
	resp := ToJobResponse(job.Snapshot())
	return &resp, nil
}

// CancelJob requests cancellation. A pending job is cancelled immediately;
// a running job stops dispatching and finishes once in-flight items are
// recorded. Cancelling a finished job is an InvalidState error.
func (s *JobService) CancelJob(ctx context.Context, tenantID, jobID uuid.UUID) (*JobResponse, error) {
	found, err := s.registry.RequestCancel(tenantID, jobID)
	if err != nil {
		return nil, err
	}
	if found {
		job, _ := s.registry.Get(tenantID, jobID)
		if job == nil {
			return s.GetJob(ctx, tenantID, jobID)
		}
		s.logger.Info("Cancellation requested", zap.String("job_id", jobID.String()))
		resp := ToJobResponse(job.Snapshot())
		return &resp, nil
	}

	job, err := s.jobs.FindByIDForTenant(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}
	if err := job.RequestCancel(); err != nil {
		return nil, err
	}
	if err := s.jobs.Save(ctx, job); err != nil {
		return nil, shared.NewPersistenceError("save job", err)
	}
	if err := s.publisher.Publish(ctx, job.PullEvents()...); err != nil {
		s.logger.Warn("Failed to publish job events", zap.String("job_id", jobID.String()), zap.Error(err))
	}
	s.logger.Info("Cancellation requested", zap.String("job_id", jobID.String()), zap.Bool("live", false))
	resp := ToJobResponse(job.Snapshot())
	return &resp, nil
}

// EffectiveListLimit applies the default and the cap to a requested list size
func EffectiveListLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}

// ListRecentJobs returns the tenant's latest jobs, newest first
func (s *JobService) ListRecentJobs(ctx context.Context, tenantID uuid.UUID, limit int) ([]JobSummaryResponse, error) {
	jobs, err := s.jobs.ListRecent(ctx, tenantID, EffectiveListLimit(limit))
	if err != nil {
		return nil, err
	}
	out := make([]JobSummaryResponse, 0, len(jobs))
	for _, job := range jobs {
		if live, ok := s.registry.Get(tenantID, job.ID); ok {
			job = live
		}
		out = append(out, ToJobSummaryResponse(job.Snapshot()))
	}
	return out, nil
}

// ListItemFailures returns the per-item failures of a job
func (s *JobService) ListItemFailures(ctx context.Context, tenantID, jobID uuid.UUID) ([]FailureResponse, error) {
	job, err := s.load(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}
	return ToFailureResponses(job.Failures()), nil
}

// CleanupFinished deletes terminal jobs that finished before olderThan
func (s *JobService) CleanupFinished(ctx context.Context, olderThan time.Time) (int64, error) {
	n, err := s.jobs.DeleteFinishedBefore(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("delete finished jobs: %w", err)
	}
	if n > 0 {
		s.logger.Info("Deleted finished categorization jobs", zap.Int64("jobs", n), zap.Time("before", olderThan))
	}
	return n, nil
}

func (s *JobService) load(ctx context.Context, tenantID, jobID uuid.UUID) (*categorization.Job, error) {
	if job, ok := s.registry.Get(tenantID, jobID); ok {
		return job, nil
	}
	return s.jobs.FindByIDForTenant(ctx, tenantID, jobID)
}

func (s *JobService) save(ctx context.Context, job *categorization.Job) {
	if err := s.jobs.Save(ctx, job); err != nil {
		s.logger.Error("Failed to save categorization job", zap.String("job_id", job.ID.String()), zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, job.PullEvents()...); err != nil {
		s.logger.Warn("Failed to publish job events", zap.String("job_id", job.ID.String()), zap.Error(err))
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
	}
	return "Invalid request: " + strings.Join(fields, "; ")
}
