package coverage

import (
	"github.com/curricula/backend/internal/domain/coverage"
	"github.com/curricula/backend/internal/domain/standards"
	"github.com/google/uuid"
)

// CoverageResponse is a framework's coverage in API responses
type CoverageResponse struct {
	FrameworkID      uuid.UUID `json:"framework_id"`
	FrameworkName    string    `json:"framework_name"`
	EducationalArea  string    `json:"educational_area"`
	IsActive         bool      `json:"is_active"`
	TotalObjectives  int       `json:"total_objectives"`
	MappedObjectives int       `json:"mapped_objectives"`
	Percentage       int       `json:"percentage"`
}

// ToCoverageResponse combines a framework with its counter
func ToCoverageResponse(fw *standards.Framework, c coverage.Counter) CoverageResponse {
	c = c.Normalized()
	return CoverageResponse{
		FrameworkID:      fw.ID,
		FrameworkName:    fw.Name,
		EducationalArea:  fw.EducationalArea,
		IsActive:         fw.IsActive,
		TotalObjectives:  c.TotalObjectives,
		MappedObjectives: c.MappedObjectives,
		Percentage:       c.Percentage(),
	}
}
