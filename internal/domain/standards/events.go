package standards

import (
	"github.com/curricula/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// AggregateTypeFramework is the aggregate type for framework events
const AggregateTypeFramework = "StandardsFramework"

// Event type constants for StandardsFramework
const (
	EventTypeFrameworkCreated     = "StandardsFrameworkCreated"
	EventTypeFrameworkDeactivated = "StandardsFrameworkDeactivated"
)

// FrameworkCreatedEvent is published when a framework is created
type FrameworkCreatedEvent struct {
	shared.BaseDomainEvent
	FrameworkID     uuid.UUID `json:"framework_id"`
	Name            string    `json:"name"`
	EducationalArea string    `json:"educational_area"`
	IsOfficial      bool      `json:"is_official"`
}

// NewFrameworkCreatedEvent creates a new FrameworkCreatedEvent
func NewFrameworkCreatedEvent(f *Framework) *FrameworkCreatedEvent {
	return &FrameworkCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeFrameworkCreated, AggregateTypeFramework, f.ID, f.TenantID),
		FrameworkID:     f.ID,
		Name:            f.Name,
		EducationalArea: f.EducationalArea,
		IsOfficial:      f.IsOfficial,
	}
}

// FrameworkDeactivatedEvent is published when a framework is soft-deleted
type FrameworkDeactivatedEvent struct {
	shared.BaseDomainEvent
	FrameworkID uuid.UUID `json:"framework_id"`
}

// NewFrameworkDeactivatedEvent creates a new FrameworkDeactivatedEvent
func NewFrameworkDeactivatedEvent(f *Framework) *FrameworkDeactivatedEvent {
	return &FrameworkDeactivatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeFrameworkDeactivated, AggregateTypeFramework, f.ID, f.TenantID),
		FrameworkID:     f.ID,
	}
}
