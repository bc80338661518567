package content

import (
	"math"
	"time"

	"github.com/curricula/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// MappingKey identifies the single mapping slot of a content item and objective
type MappingKey struct {
	ContentID   uuid.UUID
	ObjectiveID uuid.UUID
}

// String renders the key as "content:objective"
func (k MappingKey) String() string {
	return k.ContentID.String() + ":" + k.ObjectiveID.String()
}

// Mapping asserts that a content item satisfies an objective with a confidence
// score. At most one mapping exists per (content, objective) pair.
type Mapping struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	ContentID     uuid.UUID
	ObjectiveID   uuid.UUID
	FrameworkID   uuid.UUID
	Confidence    float64
	Reasoning     string
	IsAIGenerated bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewAIMapping creates an AI-generated mapping
func NewAIMapping(tenantID, contentID, objectiveID, frameworkID uuid.UUID, confidence float64, reasoning string) (*Mapping, error) {
	if err := ValidateConfidence(confidence); err != nil {
		return nil, err
	}
	if contentID == uuid.Nil || objectiveID == uuid.Nil {
		return nil, shared.NewValidationError("Mapping requires content and objective IDs")
	}
	now := time.Now()
	return &Mapping{
		ID:            uuid.New(),
		TenantID:      tenantID,
		ContentID:     contentID,
		ObjectiveID:   objectiveID,
		FrameworkID:   frameworkID,
		Confidence:    confidence,
		Reasoning:     reasoning,
		IsAIGenerated: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// NewManualMapping creates a curator-authored mapping. Manual mappings are
// never overwritten by categorization.
func NewManualMapping(tenantID, contentID, objectiveID, frameworkID uuid.UUID) *Mapping {
	now := time.Now()
	return &Mapping{
		ID:          uuid.New(),
		TenantID:    tenantID,
		ContentID:   contentID,
		ObjectiveID: objectiveID,
		FrameworkID: frameworkID,
		Confidence:  1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Key returns the mapping's (content, objective) key
func (m *Mapping) Key() MappingKey {
	return MappingKey{ContentID: m.ContentID, ObjectiveID: m.ObjectiveID}
}

// ValidateConfidence rejects values outside [0, 1]
func ValidateConfidence(confidence float64) error {
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return shared.NewValidationError("Confidence must be between 0 and 1")
	}
	return nil
}
