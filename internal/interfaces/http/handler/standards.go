package handler

import (
	"github.com/curricula/backend/internal/application/standards"
	"github.com/gin-gonic/gin"
)

// StandardsHandler exposes curriculum frameworks and their objective trees
type StandardsHandler struct {
	BaseHandler
	standards *standards.Service
}

// NewStandardsHandler creates a StandardsHandler
func NewStandardsHandler(svc *standards.Service) *StandardsHandler {
	return &StandardsHandler{standards: svc}
}

// ListFrameworks handles GET /standards/frameworks?area=&active=&locale=
// and answers the frameworks grouped by educational area.
func (h *StandardsHandler) ListFrameworks(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}

	var q standards.ListFrameworksQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindingError(c, err)
		return
	}

	groups, err := h.standards.ListGrouped(c.Request.Context(), tenantID, q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, groups, len(groups), 0)
}

// GetTree handles GET /standards/frameworks/:id/tree
func (h *StandardsHandler) GetTree(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	frameworkID, ok := h.pathID(c)
	if !ok {
		return
	}

	tree, err := h.standards.GetTree(c.Request.Context(), tenantID, frameworkID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tree)
}

// Deactivate handles POST /standards/frameworks/:id/deactivate
func (h *StandardsHandler) Deactivate(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	frameworkID, ok := h.pathID(c)
	if !ok {
		return
	}

	fw, err := h.standards.Deactivate(c.Request.Context(), tenantID, frameworkID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, fw)
}
