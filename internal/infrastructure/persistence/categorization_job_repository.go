package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/curricula/backend/internal/domain/categorization"
	"github.com/curricula/backend/internal/domain/shared"
	"github.com/curricula/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCategorizationJobRepository implements categorization.JobRepository using GORM
type GormCategorizationJobRepository struct {
	db *gorm.DB
}

// NewGormCategorizationJobRepository creates a new GormCategorizationJobRepository
func NewGormCategorizationJobRepository(db *gorm.DB) *GormCategorizationJobRepository {
	return &GormCategorizationJobRepository{db: db}
}

// Create inserts a new job
func (r *GormCategorizationJobRepository) Create(ctx context.Context, job *categorization.Job) error {
	model, err := models.CategorizationJobModelFromDomain(job)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(model).Error
}

// Save writes the job's mutable state. A cancel flag already stored by
// another writer is never cleared.
func (r *GormCategorizationJobRepository) Save(ctx context.Context, job *categorization.Job) error {
	model, err := models.CategorizationJobModelFromDomain(job)
	if err != nil {
		return err
	}

	result := r.db.WithContext(ctx).
		Model(&models.CategorizationJobModel{}).
		Where("tenant_id = ? AND id = ?", model.TenantID, model.ID).
		Updates(map[string]any{
			"status":           model.Status,
			"total":            model.Total,
			"processed":        model.Processed,
			"succeeded":        model.Succeeded,
			"failed":           model.Failed,
			"failures":         model.Failures,
			"cancel_requested": gorm.Expr("cancel_requested OR ?", model.CancelRequested),
			"failure_reason":   model.FailureReason,
			"started_at":       model.StartedAt,
			"finished_at":      model.FinishedAt,
			"updated_at":       time.Now(),
			"version":          gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByIDForTenant finds a job by ID within a specific tenant
func (r *GormCategorizationJobRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*categorization.Job, error) {
	var model models.CategorizationJobModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// ListRecent returns the tenant's newest jobs first
func (r *GormCategorizationJobRepository) ListRecent(ctx context.Context, tenantID uuid.UUID, limit int) ([]*categorization.Job, error) {
	var jobModels []models.CategorizationJobModel
	if err := r.db.WithContext(ctx).
		Scopes(TenantScope(tenantID)).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobModels).Error; err != nil {
		return nil, err
	}
	return jobsToDomain(jobModels)
}

// FindByStatuses returns jobs of every tenant in the given statuses, oldest first
func (r *GormCategorizationJobRepository) FindByStatuses(ctx context.Context, statuses []categorization.JobStatus) ([]*categorization.Job, error) {
	if len(statuses) == 0 {
		return []*categorization.Job{}, nil
	}
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}

	var jobModels []models.CategorizationJobModel
	if err := r.db.WithContext(ctx).
		Where("status IN ?", values).
		Order("created_at ASC").
		Find(&jobModels).Error; err != nil {
		return nil, err
	}
	return jobsToDomain(jobModels)
}

// DeleteFinishedBefore removes terminal jobs finished before cutoff
func (r *GormCategorizationJobRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var terminal []string
	for _, s := range categorization.AllJobStatuses() {
		if s.IsTerminal() {
			terminal = append(terminal, string(s))
		}
	}

	result := r.db.WithContext(ctx).
		Where("status IN ? AND finished_at IS NOT NULL AND finished_at < ?", terminal, cutoff).
		Delete(&models.CategorizationJobModel{})
	return result.RowsAffected, result.Error
}

func jobsToDomain(jobModels []models.CategorizationJobModel) ([]*categorization.Job, error) {
	jobs := make([]*categorization.Job, 0, len(jobModels))
	for i := range jobModels {
		job, err := jobModels[i].ToDomain()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
