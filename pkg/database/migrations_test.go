package database

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/open-audit/migrations"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(context.Background(), Config{Path: filepath.Join(t.TempDir(), "test.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestLoadMigrations_Ordering(t *testing.T) {
	fsys := fstest.MapFS{
		"010_later.sql":   {Data: []byte("SELECT 1;")},
		"002_second.sql":  {Data: []byte("SELECT 1;")},
		"001_initial.sql": {Data: []byte("SELECT 1;")},
		"README.md":       {Data: []byte("ignored")},
	}

	got, err := LoadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, 1, got[0].Version)
	assert.Equal(t, "initial", got[0].Name)
	assert.Equal(t, 2, got[1].Version)
	assert.Equal(t, 10, got[2].Version)
}

func TestLoadMigrations_InvalidAndDuplicate(t *testing.T) {
	_, err := LoadMigrations(fstest.MapFS{"schema.sql": {Data: []byte("")}})
	assert.Error(t, err)

	_, err = LoadMigrations(fstest.MapFS{
		"001_a.sql": {Data: []byte("")},
		"001_b.sql": {Data: []byte("")},
	})
	assert.ErrorContains(t, err, "duplicate migration version 1")
}

func TestMigrator_RunMigrations_Idempotent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	migrator := NewMigrator(db, zap.NewNop())

	first, err := migrator.RunMigrations(ctx, migrations.FS)
	require.NoError(t, err)
	assert.Contains(t, first, 1)

	second, err := migrator.RunMigrations(ctx, migrations.FS)
	require.NoError(t, err)
	assert.Empty(t, second)

	var count int
	require.NoError(t, db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('documents', 'tax_calculations')",
	).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestMigrator_FailedMigrationRollsBack(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	migrator := NewMigrator(db, zap.NewNop())

	fsys := fstest.MapFS{
		"001_ok.sql":     {Data: []byte("CREATE TABLE ok_table (id INTEGER);")},
		"002_broken.sql": {Data: []byte("CREATE TABLE broken (;")},
	}

	ran, err := migrator.RunMigrations(ctx, fsys)
	require.Error(t, err)
	assert.Equal(t, []int{1}, ran)

	applied, err := migrator.AppliedVersions(ctx)
	require.NoError(t, err)
	assert.True(t, applied[1])
	assert.False(t, applied[2])
}
