package models

import (
	"time"

	"github.com/curricula/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// TenantAggregateModel holds the columns every tenant-owned table shares.
// Version is bumped by repositories on each update for optimistic locking.
type TenantAggregateModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Version   int       `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (m *TenantAggregateModel) fromRoot(root shared.TenantAggregateRoot) {
	m.ID, m.TenantID, m.Version = root.ID, root.TenantID, root.Version
	m.CreatedAt, m.UpdatedAt = root.CreatedAt, root.UpdatedAt
}

func (m *TenantAggregateModel) toRoot(root *shared.TenantAggregateRoot) {
	root.ID, root.TenantID, root.Version = m.ID, m.TenantID, m.Version
	root.CreatedAt, root.UpdatedAt = m.CreatedAt, m.UpdatedAt
}
