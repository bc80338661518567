package testutil

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/curricula/backend/internal/domain/shared"
	"github.com/curricula/backend/internal/infrastructure/persistence/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSQLiteDB(t *testing.T) {
	db := NewSQLiteDB(t)

	var count int64
	require.NoError(t, db.Model(&models.CategorizationJobModel{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestNewMockDB(t *testing.T) {
	mdb := NewMockDB(t)
	mdb.Mock.ExpectQuery(`SELECT count\(\*\) FROM "categorization_jobs"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	var count int64
	require.NoError(t, mdb.DB.Model(&models.CategorizationJobModel{}).Count(&count).Error)
	assert.Equal(t, int64(4), count)
	mdb.ExpectationsWereMet(t)
}

func TestNewTestUUID(t *testing.T) {
	assert.Equal(t, NewTestUUID("a"), NewTestUUID("a"))
	assert.NotEqual(t, NewTestUUID("a"), NewTestUUID("b"))
	assert.NotEqual(t, uuid.Nil, TestTenantID())
}

func TestRecordingPublisher(t *testing.T) {
	p := NewRecordingPublisher()
	tenantID := TestTenantID()

	ev := shared.NewBaseDomainEvent("JobCreated", "CategorizationJob", uuid.New(), tenantID)
	other := shared.NewBaseDomainEvent("JobFinished", "CategorizationJob", uuid.New(), tenantID)
	require.NoError(t, p.Publish(context.Background(), &ev, &other))

	assert.Len(t, p.Events(), 2)
	assert.Len(t, p.EventsOfType("JobFinished"), 1)

	p.SetError(errors.New("bus down"))
	assert.Error(t, p.Publish(context.Background(), &ev))
	assert.Len(t, p.Events(), 2)
}

func TestPerformRequest(t *testing.T) {
	engine := gin.New()
	engine.POST("/echo", func(c *gin.Context) {
		var body map[string]string
		_ = c.ShouldBindJSON(&body)
		c.JSON(http.StatusCreated, gin.H{"success": true, "data": body, "tenant": c.GetHeader("X-Tenant-ID")})
	})

	w := PerformRequest(t, engine, http.MethodPost, "/echo", map[string]string{"k": "v"}, map[string]string{"X-Tenant-ID": "t1"})
	assert.Equal(t, http.StatusCreated, w.Code)

	resp := DecodeJSON[map[string]interface{}](t, w)
	assert.Equal(t, "t1", resp["tenant"])
	assert.Equal(t, map[string]interface{}{"k": "v"}, resp["data"])
}

func TestAssertErrorResponse(t *testing.T) {
	tc := NewTestContext(t)
	tc.Context.JSON(http.StatusNotFound, gin.H{"success": false, "error": gin.H{"code": "NOT_FOUND"}})
	assert.Equal(t, http.StatusNotFound, tc.ResponseCode())

	w := tc.Recorder
	AssertErrorResponse(t, w, "NOT_FOUND")
}

func TestRequireEventually(t *testing.T) {
	var n atomic.Int32
	go func() {
		time.Sleep(20 * time.Millisecond)
		n.Store(1)
	}()
	RequireEventually(t, func() bool { return n.Load() == 1 }, time.Second, 5*time.Millisecond)
}
