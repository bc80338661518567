package standards

import (
	"time"

	"github.com/curricula/backend/internal/domain/standards"
	"github.com/google/uuid"
)

// FrameworkResponse is a framework in API responses
type FrameworkResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	EducationalArea string    `json:"educational_area"`
	IsOfficial      bool      `json:"is_official"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

// AreaGroupResponse holds one educational area's frameworks
type AreaGroupResponse struct {
	Area     string              `json:"area"`
	Label    string              `json:"label"`
	Official []FrameworkResponse `json:"official"`
	Custom   []FrameworkResponse `json:"custom"`
}

// ObjectiveNode is an objective with its children, in code order
type ObjectiveNode struct {
	ID          uuid.UUID       `json:"id"`
	Code        string          `json:"code"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Children    []ObjectiveNode `json:"children"`
}

// FrameworkTreeResponse is a framework with its objective tree
type FrameworkTreeResponse struct {
	Framework      FrameworkResponse `json:"framework"`
	ObjectiveCount int               `json:"objective_count"`
	Objectives     []ObjectiveNode   `json:"objectives"`
}

// ListFrameworksQuery filters the grouped framework list
type ListFrameworksQuery struct {
	EducationalArea string `form:"area" binding:"omitempty,max=100"`
	OnlyActive      bool   `form:"active"`
	Locale          string `form:"locale" binding:"omitempty,bcp47_language_tag"`
}

// ToFrameworkResponse converts a framework
func ToFrameworkResponse(f *standards.Framework) FrameworkResponse {
	return FrameworkResponse{
		ID:              f.ID,
		Name:            f.Name,
		Description:     f.Description,
		EducationalArea: f.EducationalArea,
		IsOfficial:      f.IsOfficial,
		IsActive:        f.IsActive,
		CreatedAt:       f.CreatedAt,
	}
}

func toFrameworkResponses(list []*standards.Framework) []FrameworkResponse {
	out := make([]FrameworkResponse, len(list))
	for i, f := range list {
		out[i] = ToFrameworkResponse(f)
	}
	return out
}

// ToAreaGroupResponses converts grouped frameworks
func ToAreaGroupResponses(groups []standards.AreaGroup) []AreaGroupResponse {
	out := make([]AreaGroupResponse, len(groups))
	for i, g := range groups {
		out[i] = AreaGroupResponse{
			Area:     g.Area,
			Label:    g.Label,
			Official: toFrameworkResponses(g.Official),
			Custom:   toFrameworkResponses(g.Custom),
		}
	}
	return out
}

// ToObjectiveNodes renders the tree below the given objectives
func ToObjectiveNodes(tree *standards.ObjectiveTree, level []*standards.Objective) []ObjectiveNode {
	out := make([]ObjectiveNode, len(level))
	for i, o := range level {
		out[i] = ObjectiveNode{
			ID:          o.ID,
			Code:        o.Code,
			Title:       o.Title,
			Description: o.Description,
			Children:    ToObjectiveNodes(tree, tree.Children(o.ID)),
		}
	}
	return out
}
