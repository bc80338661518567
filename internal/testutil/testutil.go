// Package testutil provides shared helpers for package-level tests: an
// in-memory SQLite database with the curricula schema, a sqlmock-backed
// Postgres connection, Gin test contexts and polling assertions.
package testutil

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/curricula/backend/internal/infrastructure/persistence/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var silent = logger.Default.LogMode(logger.Silent)

// NewSQLiteDB returns an in-memory database migrated with every curricula
// model. The pool is pinned to one connection so the database outlives
// individual queries.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: silent})
	require.NoError(t, err, "open sqlite")

	pool, err := db.DB()
	require.NoError(t, err)
	pool.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = pool.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.StandardsFrameworkModel{},
		&models.StandardObjectiveModel{},
		&models.ContentItemModel{},
		&models.ContentMappingModel{},
		&models.CategorizationJobModel{},
	), "migrate test schema")
	return db
}

// MockDB pairs a Postgres-dialect gorm.DB with the sqlmock controlling it
type MockDB struct {
	DB   *gorm.DB
	Mock sqlmock.Sqlmock
	Conn *sql.DB
}

// NewMockDB uses the default regexp query matcher
func NewMockDB(t testing.TB) *MockDB {
	t.Helper()

	conn, mock, err := sqlmock.New()
	require.NoError(t, err, "create sqlmock")
	t.Cleanup(func() { _ = conn.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: conn, DriverName: "postgres"}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 silent,
	})
	require.NoError(t, err, "open gorm over sqlmock")
	return &MockDB{DB: db, Mock: mock, Conn: conn}
}

func (m *MockDB) ExpectationsWereMet(t testing.TB) {
	t.Helper()
	require.NoError(t, m.Mock.ExpectationsWereMet(), "unmet sql expectations")
}

// TestContext is a bare gin context for calling handlers directly
type TestContext struct {
	Context  *gin.Context
	Recorder *httptest.ResponseRecorder
}

// NewTestContext starts with an empty GET / request
func NewTestContext(t testing.TB) *TestContext {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return &TestContext{Context: c, Recorder: w}
}

func (tc *TestContext) ResponseBody() []byte { return tc.Recorder.Body.Bytes() }
func (tc *TestContext) ResponseCode() int    { return tc.Recorder.Code }

var testNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// NewTestUUID derives a stable UUID from seed
func NewTestUUID(seed string) uuid.UUID {
	return uuid.NewSHA1(testNamespace, []byte(seed))
}

func TestTenantID() uuid.UUID {
	return NewTestUUID("test-tenant")
}

// RequireEventually polls condition every interval and fails the test when
// it has not held by timeout.
func RequireEventually(t testing.TB, condition func() bool, timeout, interval time.Duration, msgAndArgs ...any) {
	t.Helper()
	for deadline := time.Now().Add(timeout); time.Now().Before(deadline); time.Sleep(interval) {
		if condition() {
			return
		}
	}
	require.Fail(t, "condition not met within timeout", msgAndArgs...)
}
