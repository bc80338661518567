package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/curricula/backend/internal/infrastructure/logger"
	"github.com/curricula/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	TenantIDKey     = "tenant_id"
	TenantHeaderKey = "X-Tenant-ID"
)

// ErrTenantMissing is returned by GetTenantUUID when no tenant was resolved
var ErrTenantMissing = errors.New("tenant id not found in context")

// TenantMiddlewareConfig controls tenant resolution. Paths in SkipPaths,
// and anything below them, are served without a tenant.
type TenantMiddlewareConfig struct {
	SkipPaths []string
	Required  bool
	Logger    *zap.Logger
}

func DefaultTenantConfig() TenantMiddlewareConfig {
	return TenantMiddlewareConfig{
		SkipPaths: []string{"/health", "/healthz", "/ready"},
		Required:  true,
	}
}

func TenantMiddleware() gin.HandlerFunc {
	return TenantMiddlewareWithConfig(DefaultTenantConfig())
}

// TenantMiddlewareWithConfig parses X-Tenant-ID as a UUID. A missing header
// answers ERR_TENANT_REQUIRED when Required, a malformed one always answers
// ERR_VALIDATION_FORMAT. The resolved tenant is stored on the gin context and
// tags the request logger.
func TenantMiddlewareWithConfig(cfg TenantMiddlewareConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	skipped := func(path string) bool {
		return slices.ContainsFunc(cfg.SkipPaths, func(p string) bool {
			return path == p || strings.HasPrefix(path, p+"/")
		})
	}

	return func(c *gin.Context) {
		if skipped(c.Request.URL.Path) {
			c.Next()
			return
		}

		raw := strings.TrimSpace(c.GetHeader(TenantHeaderKey))
		if raw == "" && !cfg.Required {
			c.Next()
			return
		}
		if raw == "" {
			rejectTenant(c, dto.ErrCodeTenantRequired, "X-Tenant-ID header is required")
			return
		}

		tenantID, err := uuid.Parse(raw)
		if err != nil {
			log.Debug("Rejected malformed tenant id", zap.String("tenant_id", raw), zap.String("path", c.Request.URL.Path))
			rejectTenant(c, dto.ErrCodeValidationFormat, "X-Tenant-ID must be a UUID")
			return
		}
		SetTenant(c, tenantID)
		c.Next()
	}
}

// SetTenant records tenantID on c and tags the request logger with it
func SetTenant(c *gin.Context, tenantID uuid.UUID) {
	c.Set(TenantIDKey, tenantID)
	reqCtx := c.Request.Context()
	ctx, _ := logger.WithTenantID(reqCtx, logger.FromContext(reqCtx), tenantID.String())
	c.Request = c.Request.WithContext(ctx)
}

func rejectTenant(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// GetTenantID returns the resolved tenant as a string, empty when none
func GetTenantID(c *gin.Context) string {
	id, err := GetTenantUUID(c)
	if err != nil {
		return ""
	}
	return id.String()
}

func GetTenantUUID(c *gin.Context) (uuid.UUID, error) {
	v, ok := c.Get(TenantIDKey)
	if !ok {
		return uuid.Nil, ErrTenantMissing
	}
	id, ok := v.(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, ErrTenantMissing
	}
	return id, nil
}
