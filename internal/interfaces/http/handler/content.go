package handler

import (
	"github.com/curricula/backend/internal/application/mapping"
	"github.com/gin-gonic/gin"
)

// ContentHandler exposes curator actions on content items
type ContentHandler struct {
	BaseHandler
	curator *mapping.Curator
}

// NewContentHandler creates a ContentHandler
func NewContentHandler(curator *mapping.Curator) *ContentHandler {
	return &ContentHandler{curator: curator}
}

// PinMapping handles POST /content/:id/mappings and maps the item to an
// objective by hand
func (h *ContentHandler) PinMapping(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	contentID, ok := h.pathID(c)
	if !ok {
		return
	}

	var req mapping.PinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	resp, err := h.curator.Pin(c.Request.Context(), tenantID, contentID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
