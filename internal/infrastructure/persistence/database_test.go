package persistence

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type scopedRow struct {
	ID       uint
	TenantID uuid.UUID
	Title    string
}

// mockDatabase wraps a sqlmock connection; expectations are verified on cleanup
func mockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	// gorm.Open pings once
	mock.ExpectPing()

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: conn, DriverName: "postgres"}),
		&gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = conn.Close()
	})
	return &Database{DB: gormDB}, mock
}

func TestTenantScope(t *testing.T) {
	db, mock := mockDatabase(t)
	tenantID := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "scoped_rows" WHERE tenant_id = \$1 AND title = \$2`).
		WithArgs(tenantID, "Cardiac Cycle").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "title"}).
			AddRow(7, tenantID.String(), "Cardiac Cycle"))

	var rows []scopedRow
	err := db.DB.WithContext(context.Background()).
		Scopes(TenantScope(tenantID)).
		Where("title = ?", "Cardiac Cycle").
		Find(&rows).Error
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, tenantID, rows[0].TenantID)
}

func TestDatabase_PingAndStats(t *testing.T) {
	db, mock := mockDatabase(t)
	mock.ExpectPing()

	require.NoError(t, db.Ping(context.Background()))

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, stats.OpenConnections, stats.InUse+stats.Idle)
}

func TestDatabase_Close(t *testing.T) {
	db, mock := mockDatabase(t)
	mock.ExpectClose()

	assert.NoError(t, db.Close())
}

func TestDatabase_Transaction(t *testing.T) {
	t.Run("commit", func(t *testing.T) {
		db, mock := mockDatabase(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO "scoped_rows"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectCommit()

		err := db.Transaction(context.Background(), func(tx *gorm.DB) error {
			return tx.Create(&scopedRow{TenantID: uuid.New(), Title: "Systole"}).Error
		})
		assert.NoError(t, err)
	})

	t.Run("rollback", func(t *testing.T) {
		db, mock := mockDatabase(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		err := db.Transaction(context.Background(), func(*gorm.DB) error { return assert.AnError })
		assert.ErrorIs(t, err, assert.AnError)
	})
}
