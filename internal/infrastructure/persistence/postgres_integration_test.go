//go:build integration

package persistence

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/curricula/backend/internal/domain/content"
	"github.com/curricula/backend/internal/domain/standards"
	"github.com/curricula/backend/internal/infrastructure/migration"
	"github.com/curricula/backend/migrations"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newPostgresDB starts a PostgreSQL container and applies the embedded migrations
func newPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("curricula_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	sqlDB, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	m, err := migration.New(sqlDB, migrations.FS, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())
	require.NoError(t, m.Close())

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if raw, err := db.DB(); err == nil {
			_ = raw.Close()
		}
	})
	return db
}

func TestPostgres_MigrationsRoundTrip(t *testing.T) {
	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("curricula_migrations"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	sqlDB, err := sql.Open("postgres", dsn)
	require.NoError(t, err)

	m, err := migration.New(sqlDB, migrations.FS, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = m.Close() }()

	require.NoError(t, m.Up())
	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.NotZero(t, version)

	require.NoError(t, m.Down())
	version, _, err = m.Version()
	require.NoError(t, err)
	assert.Zero(t, version)

	require.NoError(t, m.Up())
}

func TestPostgres_JobRepository(t *testing.T) {
	repo := NewGormCategorizationJobRepository(newPostgresDB(t))
	ctx := context.Background()
	tenantID := uuid.New()

	job := newTestJob(t, tenantID, 2)
	require.NoError(t, repo.Create(ctx, job))
	require.NoError(t, job.Start())
	require.NoError(t, job.RecordSuccess(job.ItemIDs[0]))
	require.NoError(t, repo.Save(ctx, job))

	loaded, err := repo.FindByIDForTenant(ctx, tenantID, job.ID)
	require.NoError(t, err)
	require.NoError(t, loaded.RequestCancel())
	require.NoError(t, repo.Save(ctx, loaded))

	// the engine's copy has not seen the cancel yet
	require.NoError(t, job.RecordSuccess(job.ItemIDs[1]))
	require.NoError(t, repo.Save(ctx, job))

	found, err := repo.FindByIDForTenant(ctx, tenantID, job.ID)
	require.NoError(t, err)
	assert.True(t, found.CancelRequested())
	assert.Equal(t, 2, found.Progress().Succeeded)
	assert.Equal(t, job.ItemIDs, found.ItemIDs)
}

func TestPostgres_ConcurrentMappingUpsert(t *testing.T) {
	db := newPostgresDB(t)
	repo := NewGormContentMappingRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	fw, err := standards.NewFramework(tenantID, "Medicine", "Cardiology", true)
	require.NoError(t, err)
	require.NoError(t, NewGormFrameworkRepository(db).Save(ctx, fw))
	objective, err := standards.NewObjective(tenantID, fw.ID, "C1", "Cardiac cycle", nil)
	require.NoError(t, err)
	require.NoError(t, NewGormObjectiveRepository(db).SaveBatch(ctx, []*standards.Objective{objective}))
	item, err := content.NewItem(tenantID, "Cardiac Cycle", "", "Systole and diastole", content.ItemTypeLecture)
	require.NoError(t, err)
	require.NoError(t, NewGormContentItemRepository(db).Save(ctx, item))

	frameworkID, contentID, objectiveID := fw.ID, item.ID, objective.ID

	const writers = 8
	outcomes := make([]content.UpsertOutcome, writers)
	errs := make([]error, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := content.NewAIMapping(tenantID, contentID, objectiveID, frameworkID, 0.5+float64(i)/100, "overlap")
			if err != nil {
				errs[i] = err
				return
			}
			outcomes[i], errs[i] = repo.Upsert(ctx, m)
		}(i)
	}
	wg.Wait()

	inserted := 0
	for i := range outcomes {
		require.NoError(t, errs[i])
		if outcomes[i] == content.UpsertInserted {
			inserted++
		}
	}
	assert.Equal(t, 1, inserted, "exactly one writer creates the pair")

	mappings, err := repo.FindByContent(ctx, tenantID, contentID)
	require.NoError(t, err)
	assert.Len(t, mappings, 1)
}

func TestPostgres_StandardsRepository(t *testing.T) {
	db := newPostgresDB(t)
	frameworks := NewGormFrameworkRepository(db)
	objectives := NewGormObjectiveRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	fw, err := standards.NewFramework(tenantID, "Medicine", "Cardiology", true)
	require.NoError(t, err)
	require.NoError(t, frameworks.Save(ctx, fw))

	root, err := standards.NewObjective(tenantID, fw.ID, "C1", "Cardiac cycle", nil)
	require.NoError(t, err)
	child, err := standards.NewObjective(tenantID, fw.ID, "C1.1", "Systole", &root.ID)
	require.NoError(t, err)
	require.NoError(t, objectives.SaveBatch(ctx, []*standards.Objective{root, child}))

	count, err := objectives.CountByFramework(ctx, tenantID, fw.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	tenants, err := frameworks.ListTenantIDs(ctx)
	require.NoError(t, err)
	assert.Contains(t, tenants, tenantID)
}
