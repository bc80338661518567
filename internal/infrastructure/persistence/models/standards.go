package models

import (
	"time"

	"github.com/curricula/backend/internal/domain/standards"
	"github.com/google/uuid"
)

// StandardsFrameworkModel is the persistence model for the Framework aggregate root.
type StandardsFrameworkModel struct {
	TenantAggregateModel
	EducationalArea string `gorm:"type:varchar(64);not null;index"`
	Name            string `gorm:"type:varchar(200);not null"`
	Description     string `gorm:"type:text"`
	IsOfficial      bool   `gorm:"not null;default:false"`
	IsActive        bool   `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StandardsFrameworkModel) TableName() string {
	return "standards_frameworks"
}

// ToDomain converts the persistence model to a domain Framework
func (m *StandardsFrameworkModel) ToDomain() *standards.Framework {
	f := &standards.Framework{
		EducationalArea: m.EducationalArea,
		Name:            m.Name,
		Description:     m.Description,
		IsOfficial:      m.IsOfficial,
		IsActive:        m.IsActive,
	}
	m.toRoot(&f.TenantAggregateRoot)
	return f
}

// FromDomain populates the persistence model from a domain Framework
func (m *StandardsFrameworkModel) FromDomain(f *standards.Framework) {
	m.fromRoot(f.TenantAggregateRoot)
	m.EducationalArea = f.EducationalArea
	m.Name = f.Name
	m.Description = f.Description
	m.IsOfficial = f.IsOfficial
	m.IsActive = f.IsActive
}

// StandardsFrameworkModelFromDomain creates a new persistence model from domain Framework
func StandardsFrameworkModelFromDomain(f *standards.Framework) *StandardsFrameworkModel {
	m := &StandardsFrameworkModel{}
	m.FromDomain(f)
	return m
}

// StandardObjectiveModel is the persistence model for a standard objective.
// Objectives are immutable once loaded, so there is no version column.
type StandardObjectiveModel struct {
	ID          uuid.UUID  `gorm:"type:uuid;primary_key"`
	TenantID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	FrameworkID uuid.UUID  `gorm:"type:uuid;not null;index;uniqueIndex:idx_objective_framework_code,priority:1"`
	Code        string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_objective_framework_code,priority:2"`
	Title       string     `gorm:"type:varchar(500);not null"`
	Description string     `gorm:"type:text"`
	ParentID    *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt   time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StandardObjectiveModel) TableName() string {
	return "standard_objectives"
}

// ToDomain converts the persistence model to a domain Objective
func (m *StandardObjectiveModel) ToDomain() *standards.Objective {
	return &standards.Objective{
		ID:          m.ID,
		TenantID:    m.TenantID,
		FrameworkID: m.FrameworkID,
		Code:        m.Code,
		Title:       m.Title,
		Description: m.Description,
		ParentID:    m.ParentID,
		CreatedAt:   m.CreatedAt,
	}
}

// StandardObjectiveModelFromDomain creates a new persistence model from a domain Objective
func StandardObjectiveModelFromDomain(o *standards.Objective) *StandardObjectiveModel {
	return &StandardObjectiveModel{
		ID:          o.ID,
		TenantID:    o.TenantID,
		FrameworkID: o.FrameworkID,
		Code:        o.Code,
		Title:       o.Title,
		Description: o.Description,
		ParentID:    o.ParentID,
		CreatedAt:   o.CreatedAt,
	}
}

