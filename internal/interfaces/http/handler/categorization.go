package handler

import (
	"github.com/curricula/backend/internal/application/categorization"
	"github.com/curricula/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// CategorizationHandler exposes categorization jobs
type CategorizationHandler struct {
	BaseHandler
	jobs *categorization.JobService
}

// NewCategorizationHandler creates a CategorizationHandler
func NewCategorizationHandler(jobs *categorization.JobService) *CategorizationHandler {
	return &CategorizationHandler{jobs: jobs}
}

// SubmitJob handles POST /categorization/jobs. The job runs in the
// background; the response carries its id and initial state.
func (h *CategorizationHandler) SubmitJob(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}

	var req categorization.SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	job, err := h.jobs.SubmitJob(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, job)
}

// ListJobs handles GET /categorization/jobs?limit=
func (h *CategorizationHandler) ListJobs(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}

	var req dto.LimitRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	limit := categorization.EffectiveListLimit(req.Limit)
	jobs, err := h.jobs.ListRecentJobs(c.Request.Context(), tenantID, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, jobs, len(jobs), limit)
}

// GetJob handles GET /categorization/jobs/:id
func (h *CategorizationHandler) GetJob(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	jobID, ok := h.pathID(c)
	if !ok {
		return
	}

	job, err := h.jobs.GetJob(c.Request.Context(), tenantID, jobID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, job)
}

// ListFailures handles GET /categorization/jobs/:id/failures
func (h *CategorizationHandler) ListFailures(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	jobID, ok := h.pathID(c)
	if !ok {
		return
	}

	failures, err := h.jobs.ListItemFailures(c.Request.Context(), tenantID, jobID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessList(c, failures, len(failures), 0)
}

// CancelJob handles POST /categorization/jobs/:id/cancel. A running job
// keeps its status until in-flight items finish, hence 202.
func (h *CategorizationHandler) CancelJob(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	jobID, ok := h.pathID(c)
	if !ok {
		return
	}

	job, err := h.jobs.CancelJob(c.Request.Context(), tenantID, jobID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, job)
}
