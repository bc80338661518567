package coverage

import (
	"math"

	"github.com/google/uuid"
)

// Counter is the materialized coverage of one framework
type Counter struct {
	TenantID         uuid.UUID `json:"tenant_id"`
	FrameworkID      uuid.UUID `json:"framework_id"`
	TotalObjectives  int       `json:"total_objectives"`
	MappedObjectives int       `json:"mapped_objectives"`
}

// Percentage returns round(mapped/total*100) clamped to [0, 100]; 0 when the
// framework has no objectives.
func (c Counter) Percentage() int {
	return Percentage(c.MappedObjectives, c.TotalObjectives)
}

// Percentage computes a bounded, rounded coverage percentage
func Percentage(mapped, total int) int {
	if total <= 0 || mapped <= 0 {
		return 0
	}
	if mapped >= total {
		return 100
	}
	return int(math.Round(float64(mapped) / float64(total) * 100))
}

// Normalized returns the counter with mapped bounded by total
func (c Counter) Normalized() Counter {
	if c.MappedObjectives > c.TotalObjectives {
		c.MappedObjectives = c.TotalObjectives
	}
	if c.MappedObjectives < 0 {
		c.MappedObjectives = 0
	}
	return c
}
