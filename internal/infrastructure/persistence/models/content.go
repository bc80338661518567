package models

import (
	"time"

	"github.com/curricula/backend/internal/domain/content"
	"github.com/google/uuid"
)

// ContentItemModel is the persistence model for the content Item aggregate root.
type ContentItemModel struct {
	TenantAggregateModel
	Title       string `gorm:"type:varchar(500);not null"`
	Description string `gorm:"type:text"`
	Body        string `gorm:"type:text"`
	ItemType    string `gorm:"column:item_type;type:varchar(32);not null"`
}

// TableName returns the table name for GORM
func (ContentItemModel) TableName() string {
	return "content_items"
}

// ToDomain converts the persistence model to a domain Item
func (m *ContentItemModel) ToDomain() *content.Item {
	item := &content.Item{
		Title:       m.Title,
		Description: m.Description,
		Body:        m.Body,
		Type:        content.ItemType(m.ItemType),
	}
	m.toRoot(&item.TenantAggregateRoot)
	return item
}

// ContentItemModelFromDomain creates a new persistence model from a domain Item
func ContentItemModelFromDomain(item *content.Item) *ContentItemModel {
	m := &ContentItemModel{
		Title:       item.Title,
		Description: item.Description,
		Body:        item.Body,
		ItemType:    string(item.Type),
	}
	m.fromRoot(item.TenantAggregateRoot)
	return m
}

// ContentMappingModel is the persistence model for a content mapping.
// The unique index on (content_id, standard_objective_id) makes the pair the
// mapping's natural key.
type ContentMappingModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID      uuid.UUID `gorm:"type:uuid;not null;index"`
	ContentID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_content_mapping_pair,priority:1"`
	ObjectiveID   uuid.UUID `gorm:"column:standard_objective_id;type:uuid;not null;uniqueIndex:idx_content_mapping_pair,priority:2"`
	FrameworkID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Confidence    float64   `gorm:"not null"`
	Reasoning     string    `gorm:"type:text"`
	IsAIGenerated bool      `gorm:"column:is_ai_generated;not null"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ContentMappingModel) TableName() string {
	return "content_mappings"
}

// ToDomain converts the persistence model to a domain Mapping
func (m *ContentMappingModel) ToDomain() *content.Mapping {
	return &content.Mapping{
		ID:            m.ID,
		TenantID:      m.TenantID,
		ContentID:     m.ContentID,
		ObjectiveID:   m.ObjectiveID,
		FrameworkID:   m.FrameworkID,
		Confidence:    m.Confidence,
		Reasoning:     m.Reasoning,
		IsAIGenerated: m.IsAIGenerated,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// ContentMappingModelFromDomain creates a new persistence model from a domain Mapping
func ContentMappingModelFromDomain(mapping *content.Mapping) *ContentMappingModel {
	return &ContentMappingModel{
		ID:            mapping.ID,
		TenantID:      mapping.TenantID,
		ContentID:     mapping.ContentID,
		ObjectiveID:   mapping.ObjectiveID,
		FrameworkID:   mapping.FrameworkID,
		Confidence:    mapping.Confidence,
		Reasoning:     mapping.Reasoning,
		IsAIGenerated: mapping.IsAIGenerated,
		CreatedAt:     mapping.CreatedAt,
		UpdatedAt:     mapping.UpdatedAt,
	}
}
