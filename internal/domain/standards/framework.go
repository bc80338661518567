package standards

import (
	"strings"
	"time"

	"github.com/curricula/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Well-known educational areas. The set is open: frameworks may carry any
// area string and unknown areas are grouped under their raw value.
const (
	AreaMedicalSchool           = "medical_school"
	AreaNursing                 = "nursing"
	AreaK12                     = "k12"
	AreaHigherEducation         = "higher_education"
	AreaProfessionalDevelopment = "professional_development"
	AreaCorporateTraining       = "corporate_training"
)

// Framework is a named set of standard objectives scoped to an educational area
type Framework struct {
	shared.TenantAggregateRoot
	EducationalArea string
	Name            string
	Description     string
	IsOfficial      bool
	IsActive        bool
}

// NewFramework creates an active framework
func NewFramework(tenantID uuid.UUID, area, name string, official bool) (*Framework, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewValidationError("Framework name cannot be empty")
	}
	if len(name) > 200 {
		return nil, shared.NewValidationError("Framework name cannot exceed 200 characters")
	}

	f := &Framework{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		EducationalArea:     strings.TrimSpace(area),
		Name:                name,
		IsOfficial:          official,
		IsActive:            true,
	}
	f.AddDomainEvent(NewFrameworkCreatedEvent(f))
	return f, nil
}

// Deactivate soft-deletes the framework. Objectives and existing mappings
// stay in place but the framework can no longer be used as job scope.
func (f *Framework) Deactivate() error {
	if !f.IsActive {
		return shared.NewDomainError(shared.CodeInvalidState, "Framework is already inactive")
	}
	f.IsActive = false
	f.UpdatedAt = time.Now()
	f.IncrementVersion()
	f.AddDomainEvent(NewFrameworkDeactivatedEvent(f))
	return nil
}

// SetDescription updates the free-text description
func (f *Framework) SetDescription(description string) {
	f.Description = strings.TrimSpace(description)
	f.Touch()
}
