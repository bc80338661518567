package standards

import (
	"strings"
	"time"

	"github.com/curricula/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Objective is a single mappable learning standard. Objectives form a tree
// within their framework through ParentID.
type Objective struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	FrameworkID uuid.UUID
	Code        string
	Title       string
	Description string
	ParentID    *uuid.UUID
	CreatedAt   time.Time
}

// NewObjective creates an objective under the given framework
func NewObjective(tenantID, frameworkID uuid.UUID, code, title string, parentID *uuid.UUID) (*Objective, error) {
	if frameworkID == uuid.Nil {
		return nil, shared.NewValidationError("Framework ID cannot be empty")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, shared.NewValidationError("Objective code cannot be empty")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, shared.NewValidationError("Objective title cannot be empty")
	}
	return &Objective{
		ID:          uuid.New(),
		TenantID:    tenantID,
		FrameworkID: frameworkID,
		Code:        code,
		Title:       title,
		ParentID:    parentID,
		CreatedAt:   time.Now(),
	}, nil
}

// IsRoot reports whether the objective has no parent
func (o *Objective) IsRoot() bool {
	return o.ParentID == nil
}
