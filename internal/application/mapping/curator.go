package mapping

import (
	"context"
	"time"

	"github.com/curricula/backend/internal/domain/content"
	"github.com/curricula/backend/internal/domain/shared"
	"github.com/curricula/backend/internal/domain/standards"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PinRequest assigns an objective to a content item by hand
type PinRequest struct {
	FrameworkID uuid.UUID `json:"framework_id" binding:"required"`
	ObjectiveID uuid.UUID `json:"objective_id" binding:"required"`
}

// MappingResponse is a stored mapping. Path lists the objective's ancestor
// codes from the root down to its direct parent.
type MappingResponse struct {
	ContentID     uuid.UUID `json:"content_id"`
	ObjectiveID   uuid.UUID `json:"objective_id"`
	FrameworkID   uuid.UUID `json:"framework_id"`
	ObjectiveCode string    `json:"objective_code"`
	Path          []string  `json:"path"`
	Confidence    float64   `json:"confidence"`
	IsAIGenerated bool      `json:"is_ai_generated"`
	NewPair       bool      `json:"new_pair"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Curator stores curator-authored mappings. They take over the pair from an
// AI mapping and are never overwritten by categorization afterwards.
type Curator struct {
	frameworks standards.FrameworkRepository
	objectives standards.ObjectiveRepository
	items      content.ItemRepository
	mappings   content.MappingRepository
	coverage   CoverageRecorder
	logger     *zap.Logger
}

// NewCurator creates a Curator
func NewCurator(
	frameworks standards.FrameworkRepository,
	objectives standards.ObjectiveRepository,
	items content.ItemRepository,
	mappings content.MappingRepository,
	coverage CoverageRecorder,
	logger *zap.Logger,
) *Curator {
	return &Curator{
		frameworks: frameworks,
		objectives: objectives,
		items:      items,
		mappings:   mappings,
		coverage:   coverage,
		logger:     logger.Named("mapping-curator"),
	}
}

// Pin maps the content item to the objective manually
func (c *Curator) Pin(ctx context.Context, tenantID, contentID uuid.UUID, req PinRequest) (*MappingResponse, error) {
	fw, err := c.frameworks.FindByIDForTenant(ctx, tenantID, req.FrameworkID)
	if err != nil {
		return nil, err
	}
	if !fw.IsActive {
		return nil, shared.NewValidationError("Framework is inactive")
	}

	items, err := c.items.FindByIDsForTenant(ctx, tenantID, []uuid.UUID{contentID})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, shared.NewNotFoundError("Content item not found")
	}

	objectives, err := c.objectives.FindByFramework(ctx, tenantID, fw.ID)
	if err != nil {
		return nil, err
	}
	tree, err := standards.BuildObjectiveTree(fw.ID, objectives)
	if err != nil {
		return nil, err
	}
	objective, ok := tree.Get(req.ObjectiveID)
	if !ok {
		return nil, shared.NewNotFoundError("Objective not found in framework")
	}

	manual := content.NewManualMapping(tenantID, contentID, objective.ID, fw.ID)
	if err := c.mappings.SaveManual(ctx, manual); err != nil {
		return nil, shared.NewPersistenceError("save manual mapping", err)
	}
	added, err := c.coverage.RecordPair(ctx, tenantID, fw.ID, manual.Key())
	if err != nil {
		return nil, shared.NewPersistenceError("record coverage", err)
	}
	stored, err := c.mappings.FindByKey(ctx, tenantID, manual.Key())
	if err != nil {
		return nil, err
	}

	c.logger.Info("Manual mapping saved",
		zap.String("tenant_id", tenantID.String()),
		zap.String("content_id", contentID.String()),
		zap.String("objective_id", objective.ID.String()),
		zap.Bool("new_pair", added),
	)
	return toMappingResponse(stored, objective, tree.Ancestors(objective.ID), added), nil
}

func toMappingResponse(m *content.Mapping, objective *standards.Objective, ancestors []*standards.Objective, added bool) *MappingResponse {
	path := make([]string, len(ancestors))
	for i, a := range ancestors {
		path[len(ancestors)-1-i] = a.Code
	}
	return &MappingResponse{
		ContentID:     m.ContentID,
		ObjectiveID:   m.ObjectiveID,
		FrameworkID:   m.FrameworkID,
		ObjectiveCode: objective.Code,
		Path:          path,
		Confidence:    m.Confidence,
		IsAIGenerated: m.IsAIGenerated,
		NewPair:       added,
		UpdatedAt:     m.UpdatedAt,
	}
}
