package migration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/curricula/backend/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add mappings table", "add_mappings_table"},
		{"Add-Mappings-Table", "add_mappings_table"},
		{"ADD__MAPPINGS", "add_mappings"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"_leading and trailing_", "leading_and_trailing"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()

	mf, err := CreateMigration(dir, "add job index", "Speed up job listing")
	require.NoError(t, err)

	assert.Len(t, mf.Version, 14)
	assert.Equal(t, "add_job_index", mf.Name)
	assert.Equal(t,
		strings.TrimSuffix(filepath.Base(mf.UpPath), ".up.sql"),
		strings.TrimSuffix(filepath.Base(mf.DownPath), ".down.sql"))

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "Speed up job listing")

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "Rollback")

	names, err := ListMigrations(os.DirFS(dir))
	require.NoError(t, err)
	assert.Equal(t, []string{mf.Version + "_add_job_index"}, names)
}

func TestCreateMigration_RejectsEmptyName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", "")
	assert.Error(t, err)
}

func TestListMigrations(t *testing.T) {
	t.Run("sorted and paired", func(t *testing.T) {
		fsys := fstest.MapFS{
			"2_b.up.sql":   {},
			"2_b.down.sql": {},
			"1_a.up.sql":   {},
			"1_a.down.sql": {},
			"README.md":    {},
		}
		names, err := ListMigrations(fsys)
		require.NoError(t, err)
		assert.Equal(t, []string{"1_a", "2_b"}, names)
	})

	t.Run("missing down file", func(t *testing.T) {
		_, err := ListMigrations(fstest.MapFS{"1_a.up.sql": {}})
		assert.Error(t, err)
	})

	t.Run("embedded schema is complete", func(t *testing.T) {
		names, err := ListMigrations(migrations.FS)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"20260101000001_create_standards",
			"20260101000002_create_content",
			"20260101000003_create_categorization_jobs",
		}, names)
	})
}
