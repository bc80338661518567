package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/curricula/backend/internal/domain/shared"
	"github.com/curricula/backend/internal/interfaces/http/dto"
	"github.com/curricula/backend/internal/interfaces/http/middleware"
	"github.com/curricula/backend/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestGetRequestID(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*gin.Context)
		expectedID string
	}{
		{
			name:       "from context",
			setup:      func(c *gin.Context) { c.Set("request_id", "ctx-request-id") },
			expectedID: "ctx-request-id",
		},
		{
			name:       "from header when context empty",
			setup:      func(c *gin.Context) { c.Request.Header.Set(middleware.RequestIDHeader, "header-request-id") },
			expectedID: "header-request-id",
		},
		{
			name:       "empty when not set",
			setup:      func(c *gin.Context) {},
			expectedID: "",
		},
		{
			name: "context takes precedence over header",
			setup: func(c *gin.Context) {
				c.Set("request_id", "ctx-id")
				c.Request.Header.Set(middleware.RequestIDHeader, "header-id")
			},
			expectedID: "ctx-id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := testutil.NewTestContext(t)
			tt.setup(tc.Context)
			assert.Equal(t, tt.expectedID, getRequestID(tc.Context))
		})
	}
}

func TestBaseHandler_SuccessResponses(t *testing.T) {
	h := &BaseHandler{}

	tests := []struct {
		name   string
		send   func(c *gin.Context)
		status int
	}{
		{"success", func(c *gin.Context) { h.Success(c, gin.H{"id": 1}) }, http.StatusOK},
		{"created", func(c *gin.Context) { h.Created(c, gin.H{"id": 1}) }, http.StatusCreated},
		{"accepted", func(c *gin.Context) { h.Accepted(c, gin.H{"id": 1}) }, http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := testutil.NewTestContext(t)
			tt.send(tc.Context)

			assert.Equal(t, tt.status, tc.ResponseCode())
			resp := testutil.DecodeJSON[dto.Response](t, tc.Recorder)
			assert.True(t, resp.Success)
			assert.Nil(t, resp.Error)
		})
	}
}

func TestBaseHandler_SuccessList(t *testing.T) {
	tc := testutil.NewTestContext(t)
	(&BaseHandler{}).SuccessList(tc.Context, []string{"a", "b"}, 2, 20)

	resp := testutil.DecodeJSON[dto.Response](t, tc.Recorder)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 2, resp.Meta.Count)
	assert.Equal(t, 20, resp.Meta.Limit)
}

func TestBaseHandler_HandleError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedCode int
		expectedErr  string
	}{
		{"not found", shared.ErrNotFound, http.StatusNotFound, dto.ErrCodeNotFound},
		{"wrapped not found", fmt.Errorf("load job: %w", shared.ErrNotFound), http.StatusNotFound, dto.ErrCodeNotFound},
		{"validation", shared.NewValidationError("bad scope"), http.StatusBadRequest, dto.ErrCodeValidation},
		{"invalid state", shared.NewDomainError(shared.CodeInvalidState, "finished"), http.StatusUnprocessableEntity, dto.ErrCodeInvalidState},
		{"tenant mismatch", shared.NewDomainError(shared.CodeTenantMismatch, "other tenant"), http.StatusNotFound, dto.ErrCodeTenantMismatch},
		{"unavailable", shared.NewDomainError(shared.CodeUnavailable, "shutting down"), http.StatusServiceUnavailable, dto.ErrCodeUnavailable},
		{"persistence", shared.NewPersistenceError("save job", errors.New("disk full")), http.StatusInternalServerError, dto.ErrCodePersistence},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := testutil.NewTestContext(t)
			tc.Context.Set("request_id", "req-1")

			(&BaseHandler{}).HandleError(tc.Context, tt.err)

			assert.Equal(t, tt.expectedCode, tc.ResponseCode())
			resp := testutil.DecodeJSON[dto.Response](t, tc.Recorder)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.expectedErr, resp.Error.Code)
			assert.Equal(t, "req-1", resp.Error.RequestID)
		})
	}
}

func TestBaseHandler_HandleErrorHidesInternalDetails(t *testing.T) {
	tc := testutil.NewTestContext(t)
	(&BaseHandler{}).HandleError(tc.Context, errors.New("pq: password authentication failed"))

	resp := testutil.DecodeJSON[dto.Response](t, tc.Recorder)
	assert.NotContains(t, resp.Error.Message, "password")
}

func TestBaseHandler_HandleErrorNil(t *testing.T) {
	tc := testutil.NewTestContext(t)
	(&BaseHandler{}).HandleError(tc.Context, nil)
	assert.Empty(t, tc.ResponseBody())
}

func TestBaseHandler_Tenant(t *testing.T) {
	h := &BaseHandler{}

	t.Run("resolved", func(t *testing.T) {
		tc := testutil.NewTestContext(t)
		tenantID := uuid.New()
		middleware.SetTenant(tc.Context, tenantID)

		got, ok := h.tenant(tc.Context)
		assert.True(t, ok)
		assert.Equal(t, tenantID, got)
	})

	t.Run("missing", func(t *testing.T) {
		tc := testutil.NewTestContext(t)

		_, ok := h.tenant(tc.Context)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, tc.ResponseCode())
		testutil.AssertErrorResponse(t, tc.Recorder, dto.ErrCodeTenantRequired)
	})
}

func TestBaseHandler_PathID(t *testing.T) {
	h := &BaseHandler{}

	t.Run("valid", func(t *testing.T) {
		tc := testutil.NewTestContext(t)
		id := uuid.New()
		tc.Context.Params = gin.Params{{Key: "id", Value: id.String()}}

		got, ok := h.pathID(tc.Context)
		assert.True(t, ok)
		assert.Equal(t, id, got)
	})

	t.Run("invalid", func(t *testing.T) {
		tc := testutil.NewTestContext(t)
		tc.Context.Params = gin.Params{{Key: "id", Value: "42"}}

		_, ok := h.pathID(tc.Context)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, tc.ResponseCode())
		testutil.AssertErrorResponse(t, tc.Recorder, dto.ErrCodeValidation)
	})
}
