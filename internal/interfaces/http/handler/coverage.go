package handler

import (
	"github.com/curricula/backend/internal/application/coverage"
	"github.com/gin-gonic/gin"
)

// CoverageHandler exposes per-framework coverage
type CoverageHandler struct {
	BaseHandler
	coverage *coverage.Service
}

// NewCoverageHandler creates a CoverageHandler
func NewCoverageHandler(svc *coverage.Service) *CoverageHandler {
	return &CoverageHandler{coverage: svc}
}

// ListCoverage handles GET /coverage
func (h *CoverageHandler) ListCoverage(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}

	list, err := h.coverage.ListCoverage(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, list, len(list), 0)
}

// GetFrameworkCoverage handles GET /coverage/frameworks/:id
func (h *CoverageHandler) GetFrameworkCoverage(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	frameworkID, ok := h.pathID(c)
	if !ok {
		return
	}

	resp, err := h.coverage.GetCoverage(c.Request.Context(), tenantID, frameworkID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
