package graphstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreEndToEnd(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "e2e.db")
	cfg := DefaultConfig(dbPath)

	store, err := Open(cfg)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := context.Background()

	perf, err := store.CreateEntities(ctx, []Entity{
		{Name: "Go", EntityType: "language"},
		{Name: "Rust", EntityType: "language"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, perf.Counts.Succeeded)

	_, err = store.CreateRelations(ctx, []Relation{{From: "Go", To: "Rust", RelationType: "compared_to"}})
	require.NoError(t, err)

	result, _, err := store.SearchNodes(ctx, SearchRequest{Query: "Go", Mode: SearchModeExact, Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, result.Entities)

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.EntityCount)
	require.Equal(t, 1, stats.RelationCount)
}

func TestBackupAndRestore(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "orig.db")
	backupPath := filepath.Join(dir, "backup.db")

	cfg := DefaultConfig(dbPath)
	store, err := Open(cfg)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = store.CreateEntities(ctx, []Entity{{Name: "Persisted", EntityType: "thing"}})
	require.NoError(t, err)

	require.NoError(t, store.Backup(ctx, backupPath))
	require.NoError(t, store.Close())

	restoredPath := filepath.Join(dir, "restored.db")
	require.NoError(t, RestoreBackup(restoredPath, backupPath))

	restored, err := Open(DefaultConfig(restoredPath))
	require.NoError(t, err)
	defer func() { _ = restored.Close() }()

	result, _, err := restored.OpenNodes(ctx, []string{"Persisted"})
	require.NoError(t, err)
	require.Len(t, result.Entities, 1)
}
