package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/curricula/backend/internal/domain/content"
	"github.com/curricula/backend/internal/domain/shared"
	"github.com/curricula/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormContentItemRepository implements content.ItemRepository using GORM
type GormContentItemRepository struct {
	db *gorm.DB
}

// NewGormContentItemRepository creates a new GormContentItemRepository
func NewGormContentItemRepository(db *gorm.DB) *GormContentItemRepository {
	return &GormContentItemRepository{db: db}
}

// FindByIDsForTenant loads content items by ID within a tenant
func (r *GormContentItemRepository) FindByIDsForTenant(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*content.Item, error) {
	if len(ids) == 0 {
		return []*content.Item{}, nil
	}
	var itemModels []models.ContentItemModel
	if err := r.db.WithContext(ctx).
		Scopes(TenantScope(tenantID)).
		Where("id IN ?", ids).
		Find(&itemModels).Error; err != nil {
		return nil, err
	}

	items := make([]*content.Item, len(itemModels))
	for i := range itemModels {
		items[i] = itemModels[i].ToDomain()
	}
	return items, nil
}

// Save creates or updates a content item
func (r *GormContentItemRepository) Save(ctx context.Context, item *content.Item) error {
	return r.db.WithContext(ctx).Save(models.ContentItemModelFromDomain(item)).Error
}

var mappingPairColumns = []clause.Column{{Name: "content_id"}, {Name: "standard_objective_id"}}

// GormContentMappingRepository implements content.MappingRepository using GORM
type GormContentMappingRepository struct {
	db *gorm.DB
}

// NewGormContentMappingRepository creates a new GormContentMappingRepository
func NewGormContentMappingRepository(db *gorm.DB) *GormContentMappingRepository {
	return &GormContentMappingRepository{db: db}
}

// Upsert writes an AI mapping for its (content, objective) pair. The insert
// relies on the pair's unique index so concurrent writers agree on which one
// created the row; the loser locks the row and updates it unless it is manual.
func (r *GormContentMappingRepository) Upsert(ctx context.Context, mapping *content.Mapping) (content.UpsertOutcome, error) {
	var outcome content.UpsertOutcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := models.ContentMappingModelFromDomain(mapping)
		result := tx.Clauses(clause.OnConflict{Columns: mappingPairColumns, DoNothing: true}).Create(model)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 1 {
			outcome = content.UpsertInserted
			return nil
		}

		var existing models.ContentMappingModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tenant_id = ? AND content_id = ? AND standard_objective_id = ?",
				mapping.TenantID, mapping.ContentID, mapping.ObjectiveID).
			First(&existing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.NewDomainError(shared.CodeConflict, "Mapping pair is owned by another tenant")
			}
			return err
		}
		if !existing.IsAIGenerated {
			outcome = content.UpsertPreservedManual
			return nil
		}

		if err := tx.Model(&models.ContentMappingModel{}).
			Where("id = ?", existing.ID).
			Updates(map[string]any{
				"confidence":   mapping.Confidence,
				"reasoning":    mapping.Reasoning,
				"framework_id": mapping.FrameworkID,
				"updated_at":   time.Now(),
			}).Error; err != nil {
			return err
		}
		outcome = content.UpsertUpdated
		return nil
	})
	if err != nil {
		return 0, err
	}
	return outcome, nil
}

// FindByKey returns the mapping of a (content, objective) pair
func (r *GormContentMappingRepository) FindByKey(ctx context.Context, tenantID uuid.UUID, key content.MappingKey) (*content.Mapping, error) {
	var model models.ContentMappingModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND content_id = ? AND standard_objective_id = ?", tenantID, key.ContentID, key.ObjectiveID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByContent lists a content item's mappings, highest confidence first
func (r *GormContentMappingRepository) FindByContent(ctx context.Context, tenantID, contentID uuid.UUID) ([]*content.Mapping, error) {
	var mappingModels []models.ContentMappingModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND content_id = ?", tenantID, contentID).
		Order("confidence DESC").
		Find(&mappingModels).Error; err != nil {
		return nil, err
	}

	mappings := make([]*content.Mapping, len(mappingModels))
	for i := range mappingModels {
		mappings[i] = mappingModels[i].ToDomain()
	}
	return mappings, nil
}

// ListKeysByFramework returns every mapped pair of a framework
func (r *GormContentMappingRepository) ListKeysByFramework(ctx context.Context, tenantID, frameworkID uuid.UUID) ([]content.MappingKey, error) {
	var rows []struct {
		ContentID           uuid.UUID
		StandardObjectiveID uuid.UUID
	}
	if err := r.db.WithContext(ctx).
		Model(&models.ContentMappingModel{}).
		Select("content_id, standard_objective_id").
		Where("tenant_id = ? AND framework_id = ?", tenantID, frameworkID).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	keys := make([]content.MappingKey, len(rows))
	for i, row := range rows {
		keys[i] = content.MappingKey{ContentID: row.ContentID, ObjectiveID: row.StandardObjectiveID}
	}
	return keys, nil
}

// SaveManual stores a curator mapping, taking over the pair from any AI mapping
func (r *GormContentMappingRepository) SaveManual(ctx context.Context, mapping *content.Mapping) error {
	if mapping.IsAIGenerated {
		return shared.NewValidationError("SaveManual requires a manual mapping")
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   mappingPairColumns,
			DoUpdates: clause.AssignmentColumns([]string{"confidence", "reasoning", "framework_id", "is_ai_generated", "updated_at"}),
		}).
		Create(models.ContentMappingModelFromDomain(mapping)).Error
}
