package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"testing"

	"github.com/curricula/backend/internal/interfaces/http/dto"
	"github.com/curricula/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type fixedCounter int

func (n fixedCounter) Len() int { return int(n) }

func TestSystemHandler_Health(t *testing.T) {
	t.Run("database up", func(t *testing.T) {
		h := NewSystemHandler("curricula", "test", pingerFunc(func(ctx context.Context) error {
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
			return nil
		}), nil)

		tc := testutil.NewTestContext(t)
		h.Health(tc.Context)

		require.Equal(t, http.StatusOK, tc.ResponseCode())
		resp := testutil.DecodeJSON[dto.Response](t, tc.Recorder)
		assert.True(t, resp.Success)
		assert.Equal(t, "up", resp.Data.(map[string]any)["database"])
	})

	t.Run("database down", func(t *testing.T) {
		h := NewSystemHandler("curricula", "test", pingerFunc(func(context.Context) error {
			return errors.New("connection refused")
		}), nil)

		tc := testutil.NewTestContext(t)
		h.Health(tc.Context)

		require.Equal(t, http.StatusServiceUnavailable, tc.ResponseCode())
		testutil.AssertErrorResponse(t, tc.Recorder, dto.ErrCodeUnavailable)
	})
}

func TestSystemHandler_GetSystemInfo(t *testing.T) {
	h := NewSystemHandler("curricula", "1.2.3", pingerFunc(func(context.Context) error { return nil }), fixedCounter(2))

	tc := testutil.NewTestContext(t)
	h.GetSystemInfo(tc.Context)

	require.Equal(t, http.StatusOK, tc.ResponseCode())
	data := testutil.DecodeJSON[dto.Response](t, tc.Recorder).Data.(map[string]any)
	assert.Equal(t, "curricula", data["name"])
	assert.Equal(t, "1.2.3", data["version"])
	assert.Equal(t, float64(2), data["live_jobs"])
	assert.NotEmpty(t, data["go_version"])
	assert.NotContains(t, data, "db_pool")
}

type statsPinger struct{ pingerFunc }

func (statsPinger) Stats() (sql.DBStats, error) {
	return sql.DBStats{MaxOpenConnections: 25, OpenConnections: 3, InUse: 1, Idle: 2}, nil
}

func TestSystemHandler_GetSystemInfo_PoolStats(t *testing.T) {
	h := NewSystemHandler("curricula", "1.2.3", statsPinger{}, nil)

	tc := testutil.NewTestContext(t)
	h.GetSystemInfo(tc.Context)

	data := testutil.DecodeJSON[dto.Response](t, tc.Recorder).Data.(map[string]any)
	pool, ok := data["db_pool"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(25), pool["max_open"])
	assert.Equal(t, float64(1), pool["in_use"])
}
