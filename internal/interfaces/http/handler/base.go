package handler

import (
	"errors"
	"net/http"

	"github.com/curricula/backend/internal/domain/shared"
	"github.com/curricula/backend/internal/infrastructure/logger"
	"github.com/curricula/backend/internal/interfaces/http/dto"
	"github.com/curricula/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler writes the response envelope shared by every API handler.
type BaseHandler struct{}

// getRequestID prefers the id stored by middleware.RequestID over the raw header
func getRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessList reports count items, capped at limit
func (h *BaseHandler) SuccessList(c *gin.Context, data any, count, limit int) {
	c.JSON(http.StatusOK, dto.NewListResponse(data, count, limit))
}

func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Accepted answers 202 for a job that keeps running after the response
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

func (h *BaseHandler) Error(c *gin.Context, status int, code, message string) {
	c.JSON(status, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BindingError answers a failed ShouldBind* call
func (h *BaseHandler) BindingError(c *gin.Context, err error) {
	middleware.HandleValidationError(c, err)
}

func (h *BaseHandler) tenant(c *gin.Context) (uuid.UUID, bool) {
	id, err := middleware.GetTenantUUID(c)
	if err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeTenantRequired, "X-Tenant-ID header is required")
		return uuid.Nil, false
	}
	return id, true
}

// pathID binds the :id parameter; dto.IDRequest validates it as a UUID
func (h *BaseHandler) pathID(c *gin.Context) (uuid.UUID, bool) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BindingError(c, err)
		return uuid.Nil, false
	}
	return uuid.MustParse(req.ID), true
}

// HandleError maps a shared.DomainError anywhere in err's chain onto its
// ERR_* code and status. Any other error is logged and answered with a
// generic 500 so driver messages never reach the client.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	log := logger.L(c.Request.Context())

	var de *shared.DomainError
	if !errors.As(err, &de) {
		log.Error("Unhandled request error", zap.Error(err))
		h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
		return
	}

	code := dto.NormalizeErrorCode(de.Code)
	status := dto.GetHTTPStatus(code)
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", zap.String("code", code), zap.Error(err))
	}
	h.Error(c, status, code, de.Message)
}
