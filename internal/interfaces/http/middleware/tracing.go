// Package middleware provides the gin middleware of the curricula API.
package middleware

import (
	"net/http"
	"strings"

	"github.com/curricula/backend/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MaxRequestIDLength bounds caller-supplied request ids
const MaxRequestIDLength = 128

const jobRoute = "/categorization/jobs/:id"

// TracingConfig configures the server span middleware
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// TracingWithConfig starts a server span per request through otelgin, named
// after the route pattern ("GET /api/v1/categorization/jobs/:id"). The span
// ends when otelgin returns, so ids are attached by TracingAttributeInjector
// further down the chain.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// TracingAttributeInjector tags the current span with the request, tenant and
// job ids. It belongs after the tenant middleware.
func TracingAttributeInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		annotateSpan(c)
		c.Next()
	}
}

// SpanErrorMarker sets an error status on spans of 4xx and 5xx responses.
// It must run after TracingWithConfig.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		status := c.Writer.Status()
		if !span.IsRecording() || status < http.StatusBadRequest {
			return
		}
		span.SetStatus(codes.Error, http.StatusText(status))
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
}

func annotateSpan(c *gin.Context) {
	span := trace.SpanFromContext(c.Request.Context())
	if !span.IsRecording() {
		return
	}
	attrs := make([]attribute.KeyValue, 0, 3)
	if id := getRequestID(c); id != "" {
		attrs = append(attrs, attribute.String("request_id", id))
	}
	if tenant, err := GetTenantUUID(c); err == nil {
		attrs = append(attrs, telemetry.TenantID(tenant))
	}
	if strings.Contains(c.FullPath(), jobRoute) {
		if id, err := uuid.Parse(c.Param("id")); err == nil {
			attrs = append(attrs, telemetry.JobID(id))
		}
	}
	span.SetAttributes(attrs...)
}

// getRequestID prefers the id stored by RequestID over the raw header, which
// is truncated.
func getRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	id := c.GetHeader(RequestIDHeader)
	if len(id) > MaxRequestIDLength {
		id = id[:MaxRequestIDLength]
	}
	return id
}
