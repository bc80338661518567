package handler

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"
	"time"

	"github.com/curricula/backend/internal/infrastructure/logger"
	"github.com/curricula/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const healthPingTimeout = 2 * time.Second

// Pinger checks a backing store; *persistence.Database satisfies it
type Pinger interface {
	Ping(ctx context.Context) error
}

// poolStatser is implemented by *persistence.Database
type poolStatser interface {
	Stats() (sql.DBStats, error)
}

// JobCounter reports how many categorization jobs this process runs
type JobCounter interface {
	Len() int
}

// SystemHandler serves health and build information
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	db        Pinger
	jobs      JobCounter
	startTime time.Time
}

// NewSystemHandler creates a SystemHandler
func NewSystemHandler(name, version string, db Pinger, jobs JobCounter) *SystemHandler {
	return &SystemHandler{
		name:      name,
		version:   version,
		db:        db,
		jobs:      jobs,
		startTime: time.Now(),
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string     `json:"name"`
	Version   string     `json:"version"`
	GoVersion string     `json:"go_version"`
	Uptime    string     `json:"uptime"`
	LiveJobs  int        `json:"live_jobs"`
	DBPool    *PoolStats `json:"db_pool,omitempty"`
}

// PoolStats is the subset of sql.DBStats worth exposing
type PoolStats struct {
	MaxOpen   int    `json:"max_open"`
	Open      int    `json:"open"`
	InUse     int    `json:"in_use"`
	Idle      int    `json:"idle"`
	WaitCount int64  `json:"wait_count"`
	WaitTime  string `json:"wait_time"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Health handles GET /health. It answers 503 when the database does not
// respond within two seconds.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		logger.L(c.Request.Context()).Warn("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, dto.Response{
			Success: false,
			Data:    HealthResponse{Status: "unavailable", Database: "down"},
			Error: &dto.ErrorInfo{
				Code:      dto.ErrCodeUnavailable,
				Message:   "database unreachable",
				RequestID: getRequestID(c),
				Timestamp: time.Now(),
			},
		})
		return
	}
	h.Success(c, HealthResponse{Status: "ok", Database: "up"})
}

// GetSystemInfo handles GET /system/info
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	info := SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}
	if h.jobs != nil {
		info.LiveJobs = h.jobs.Len()
	}
	if ps, ok := h.db.(poolStatser); ok {
		if st, err := ps.Stats(); err == nil {
			info.DBPool = &PoolStats{
				MaxOpen:   st.MaxOpenConnections,
				Open:      st.OpenConnections,
				InUse:     st.InUse,
				Idle:      st.Idle,
				WaitCount: st.WaitCount,
				WaitTime:  st.WaitDuration.String(),
			}
		}
	}
	h.Success(c, info)
}
