package persistence

import (
	"context"
	"errors"

	"github.com/curricula/backend/internal/domain/shared"
	"github.com/curricula/backend/internal/domain/standards"
	"github.com/curricula/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormFrameworkRepository implements standards.FrameworkRepository using GORM
type GormFrameworkRepository struct {
	db *gorm.DB
}

// NewGormFrameworkRepository creates a new GormFrameworkRepository
func NewGormFrameworkRepository(db *gorm.DB) *GormFrameworkRepository {
	return &GormFrameworkRepository{db: db}
}

// FindByIDForTenant finds a framework by ID within a specific tenant
func (r *GormFrameworkRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*standards.Framework, error) {
	var model models.StandardsFrameworkModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDsForTenant loads several frameworks of one tenant
func (r *GormFrameworkRepository) FindByIDsForTenant(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*standards.Framework, error) {
	if len(ids) == 0 {
		return []*standards.Framework{}, nil
	}
	var frameworkModels []models.StandardsFrameworkModel
	if err := r.db.WithContext(ctx).
		Scopes(TenantScope(tenantID)).
		Where("id IN ?", ids).
		Find(&frameworkModels).Error; err != nil {
		return nil, err
	}
	return frameworksToDomain(frameworkModels), nil
}

// FindAllForTenant lists a tenant's frameworks ordered by name
func (r *GormFrameworkRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter standards.FrameworkFilter) ([]*standards.Framework, error) {
	query := r.db.WithContext(ctx).Model(&models.StandardsFrameworkModel{}).Scopes(TenantScope(tenantID))
	if filter.EducationalArea != "" {
		query = query.Where("educational_area = ?", filter.EducationalArea)
	}
	if filter.OnlyActive {
		query = query.Where("is_active = ?", true)
	}

	var frameworkModels []models.StandardsFrameworkModel
	if err := query.Order("name ASC").Find(&frameworkModels).Error; err != nil {
		return nil, err
	}
	return frameworksToDomain(frameworkModels), nil
}

// ListTenantIDs returns every tenant owning an active framework
func (r *GormFrameworkRepository) ListTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.StandardsFrameworkModel{}).
		Where("is_active = ?", true).
		Distinct("tenant_id").
		Pluck("tenant_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Save creates or updates a framework
func (r *GormFrameworkRepository) Save(ctx context.Context, framework *standards.Framework) error {
	return r.db.WithContext(ctx).Save(models.StandardsFrameworkModelFromDomain(framework)).Error
}

func frameworksToDomain(frameworkModels []models.StandardsFrameworkModel) []*standards.Framework {
	frameworks := make([]*standards.Framework, len(frameworkModels))
	for i := range frameworkModels {
		frameworks[i] = frameworkModels[i].ToDomain()
	}
	return frameworks
}

// GormObjectiveRepository implements standards.ObjectiveRepository using GORM
type GormObjectiveRepository struct {
	db *gorm.DB
}

// NewGormObjectiveRepository creates a new GormObjectiveRepository
func NewGormObjectiveRepository(db *gorm.DB) *GormObjectiveRepository {
	return &GormObjectiveRepository{db: db}
}

// FindByFramework returns a framework's objectives ordered by code
func (r *GormObjectiveRepository) FindByFramework(ctx context.Context, tenantID, frameworkID uuid.UUID) ([]*standards.Objective, error) {
	return r.FindByFrameworks(ctx, tenantID, []uuid.UUID{frameworkID})
}

// FindByFrameworks returns the objectives of several frameworks ordered by framework and code
func (r *GormObjectiveRepository) FindByFrameworks(ctx context.Context, tenantID uuid.UUID, frameworkIDs []uuid.UUID) ([]*standards.Objective, error) {
	if len(frameworkIDs) == 0 {
		return []*standards.Objective{}, nil
	}
	var objectiveModels []models.StandardObjectiveModel
	if err := r.db.WithContext(ctx).
		Scopes(TenantScope(tenantID)).
		Where("framework_id IN ?", frameworkIDs).
		Order("framework_id ASC, code ASC").
		Find(&objectiveModels).Error; err != nil {
		return nil, err
	}

	objectives := make([]*standards.Objective, len(objectiveModels))
	for i := range objectiveModels {
		objectives[i] = objectiveModels[i].ToDomain()
	}
	return objectives, nil
}

// CountByFramework counts a framework's objectives
func (r *GormObjectiveRepository) CountByFramework(ctx context.Context, tenantID, frameworkID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.StandardObjectiveModel{}).
		Where("tenant_id = ? AND framework_id = ?", tenantID, frameworkID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SaveBatch inserts objectives in a single transaction
func (r *GormObjectiveRepository) SaveBatch(ctx context.Context, objectives []*standards.Objective) error {
	if len(objectives) == 0 {
		return nil
	}
	objectiveModels := make([]*models.StandardObjectiveModel, len(objectives))
	for i, o := range objectives {
		objectiveModels[i] = models.StandardObjectiveModelFromDomain(o)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(objectiveModels, 500).Error
	})
}
