package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"

	"github.com/OneTrueJASH/Mem100X-sub000/internal/codec"
	"github.com/OneTrueJASH/Mem100X-sub000/internal/config"
	"github.com/OneTrueJASH/Mem100X-sub000/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	cfg := config.Default(dbPath)
	store, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestStoreWithBulkThreshold(t *testing.T, threshold int) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	cfg := config.Default(dbPath)
	cfg.Performance.BulkThreshold = threshold
	store, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCreateAndSearchEntities(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	perf, err := store.CreateEntities(ctx, []types.Entity{
		{Name: "Alice", EntityType: "person", Observations: []codec.Block{{Kind: codec.KindText, Text: "loves gardening"}}},
		{Name: "Bob", EntityType: "person", Observations: []codec.Block{{Kind: codec.KindText, Text: "plays chess"}}},
	})
	require.NoError(t, err)
	require.Equal(t, 2, perf.Counts.Succeeded)

	result, _, err := store.SearchNodes(ctx, types.SearchRequest{Query: "gardening", Limit: 10})
	require.NoError(t, err)
	require.Len(t, result.Entities, 1)
	require.Equal(t, "Alice", result.Entities[0].Name)
}

func TestCreateEntitiesUpsertsOnDuplicateName(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateEntities(ctx, []types.Entity{
		{Name: "Dup", EntityType: "thing", Observations: []codec.Block{{Kind: codec.KindText, Text: "first"}}},
	})
	require.NoError(t, err)

	perf, err := store.CreateEntities(ctx, []types.Entity{
		{Name: "Dup", EntityType: "gadget", Observations: []codec.Block{{Kind: codec.KindText, Text: "second"}}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, perf.Counts.Succeeded)
	require.Equal(t, 0, perf.Counts.Skipped)

	result, _, err := store.OpenNodes(ctx, []string{"Dup"})
	require.NoError(t, err)
	require.Len(t, result.Entities, 1)
	require.Equal(t, "gadget", result.Entities[0].EntityType)
	require.Equal(t, []codec.Block{{Kind: codec.KindText, Text: "second"}}, result.Entities[0].Observations)
}

func TestRelationsAndNeighbors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateEntities(ctx, []types.Entity{
		{Name: "A", EntityType: "node"},
		{Name: "B", EntityType: "node"},
		{Name: "C", EntityType: "node"},
	})
	require.NoError(t, err)

	_, err = store.CreateRelations(ctx, []types.Relation{
		{From: "A", To: "B", RelationType: "knows"},
		{From: "B", To: "C", RelationType: "knows"},
	})
	require.NoError(t, err)

	result, _, err := store.GetNeighbors(ctx, "A", 2, types.DirectionBoth, "", true)
	require.NoError(t, err)
	names := make([]string, 0, len(result.Entities))
	for _, e := range result.Entities {
		names = append(names, e.Name)
	}
	require.ElementsMatch(t, []string{"a", "b", "c"}, lowerAll(names))
}

func TestFindShortestPath(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateEntities(ctx, []types.Entity{
		{Name: "A", EntityType: "node"},
		{Name: "B", EntityType: "node"},
		{Name: "C", EntityType: "node"},
	})
	require.NoError(t, err)
	_, err = store.CreateRelations(ctx, []types.Relation{
		{From: "A", To: "B", RelationType: "link"},
		{From: "B", To: "C", RelationType: "link"},
	})
	require.NoError(t, err)

	path, _, err := store.FindShortestPath(ctx, "A", "C", 5, "")
	require.NoError(t, err)
	require.True(t, path.Found)
	require.Equal(t, 2, path.Distance)
}

func TestDeleteEntitiesCascadesRelations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateEntities(ctx, []types.Entity{
		{Name: "X", EntityType: "node"},
		{Name: "Y", EntityType: "node"},
	})
	require.NoError(t, err)
	_, err = store.CreateRelations(ctx, []types.Relation{{From: "X", To: "Y", RelationType: "rel"}})
	require.NoError(t, err)

	_, err = store.DeleteEntities(ctx, []string{"X"})
	require.NoError(t, err)

	result, _, err := store.GetNeighbors(ctx, "Y", 1, types.DirectionBoth, "", true)
	require.NoError(t, err)
	require.Empty(t, result.Relations)
}

func TestAddAndDeleteObservationsDedup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateEntities(ctx, []types.Entity{{Name: "E", EntityType: "thing"}})
	require.NoError(t, err)

	block := codec.Block{Kind: codec.KindText, Text: "note one"}
	_, err = store.AddObservations(ctx, []types.ObservationEdit{{EntityName: "E", Observations: []codec.Block{block, block}}})
	require.NoError(t, err)

	result, _, err := store.OpenNodes(ctx, []string{"E"})
	require.NoError(t, err)
	require.Len(t, result.Entities, 1)
	require.Len(t, result.Entities[0].Observations, 1)

	_, err = store.DeleteObservations(ctx, []types.ObservationEdit{{EntityName: "E", Observations: []codec.Block{block}}})
	require.NoError(t, err)

	result, _, err = store.OpenNodes(ctx, []string{"E"})
	require.NoError(t, err)
	require.Empty(t, result.Entities[0].Observations)
}

func TestBeginCommitTransactionRejectsNesting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.BeginTransaction(ctx))
	err := store.BeginTransaction(ctx)
	require.ErrorIs(t, err, types.ErrTransactionAlreadyActive)
	require.NoError(t, store.CommitTransaction(ctx))

	err = store.CommitTransaction(ctx)
	require.ErrorIs(t, err, types.ErrNoActiveTransaction)
}

func TestManualTransactionGroupsIntermediateWrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.BeginTransaction(ctx))
	_, err := store.CreateEntities(ctx, []types.Entity{{Name: "Rolled", EntityType: "thing"}})
	require.NoError(t, err)
	_, err = store.CreateEntities(ctx, []types.Entity{
		{Name: "AlsoRolled", EntityType: "thing"},
		{Name: "RolledToo", EntityType: "thing"},
	})
	require.NoError(t, err)
	require.NoError(t, store.RollbackTransaction(ctx))

	result, _, err := store.OpenNodes(ctx, []string{"Rolled", "AlsoRolled", "RolledToo"})
	require.NoError(t, err)
	require.Empty(t, result.Entities, "rolled-back writes must not be visible")

	require.NoError(t, store.BeginTransaction(ctx))
	_, err = store.CreateEntities(ctx, []types.Entity{{Name: "Committed", EntityType: "thing"}})
	require.NoError(t, err)
	_, err = store.CreateRelations(ctx, []types.Relation{{From: "Committed", To: "Committed", RelationType: "self"}})
	require.NoError(t, err)
	require.NoError(t, store.CommitTransaction(ctx))

	result, _, err = store.OpenNodes(ctx, []string{"Committed"})
	require.NoError(t, err)
	require.Len(t, result.Entities, 1)
	require.Len(t, result.Relations, 1)
}

func TestBulkCreateAndDeleteEntitiesRebuildsSearchIndex(t *testing.T) {
	store := newTestStoreWithBulkThreshold(t, 3)
	ctx := context.Background()

	entities := make([]types.Entity, 0, 10)
	for i := 0; i < 10; i++ {
		entities = append(entities, types.Entity{
			Name:       fmt.Sprintf("bulk-entity-%02d", i),
			EntityType: "thing",
			Observations: []codec.Block{
				{Kind: codec.KindText, Text: "tagged with bulkmarker"},
			},
		})
	}

	perf, err := store.CreateEntities(ctx, entities)
	require.NoError(t, err)
	require.Equal(t, len(entities), perf.Counts.Succeeded)

	result, _, err := store.SearchNodes(ctx, types.SearchRequest{Query: "bulkmarker", Limit: 20})
	require.NoError(t, err)
	require.Len(t, result.Entities, len(entities))

	names := make([]string, 0, len(entities))
	for _, e := range entities {
		names = append(names, e.Name)
	}
	delPerf, err := store.DeleteEntities(ctx, names)
	require.NoError(t, err)
	require.Equal(t, len(entities), delPerf.Counts.Succeeded)

	result, _, err = store.SearchNodes(ctx, types.SearchRequest{Query: "bulkmarker", Limit: 20})
	require.NoError(t, err)
	require.Empty(t, result.Entities)
}

func TestBulkCircuitBreakerTripsAndRecovers(t *testing.T) {
	store := newTestStore(t)
	store.breaker = newBreaker(config.Breaker{
		FailureThreshold:  3,
		RecoveryTimeoutMS: 50,
	})

	failing := func() (interface{}, error) {
		return nil, errors.New("injected storage fault")
	}

	for i := 0; i < 3; i++ {
		_, err := store.breaker.Execute(failing)
		require.Error(t, err)
		require.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}
	require.Equal(t, gobreaker.StateOpen, store.breaker.State())

	called := false
	_, err := store.breaker.Execute(func() (interface{}, error) {
		called = true
		return nil, nil
	})
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	require.False(t, called, "breaker must reject the call without reaching storage while open")

	time.Sleep(80 * time.Millisecond)
	require.Equal(t, gobreaker.StateHalfOpen, store.breaker.State())

	_, err = store.breaker.Execute(func() (interface{}, error) {
		called = true
		return "ok", nil
	})
	require.NoError(t, err)
	require.True(t, called, "half-open state must let one probe through")
	require.Equal(t, gobreaker.StateClosed, store.breaker.State())
}

func TestSearchFallsBackToSubstringForPunctuationQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateEntities(ctx, []types.Entity{
		{
			Name:       "Weird",
			EntityType: "thing",
			Observations: []codec.Block{
				{Kind: codec.KindText, Text: "contains the marker x!y?z in the middle"},
			},
		},
	})
	require.NoError(t, err)

	result, _, err := store.SearchNodes(ctx, types.SearchRequest{Query: "x!y?z", Limit: 10})
	require.NoError(t, err)
	require.Len(t, result.Entities, 1)
	require.Equal(t, "Weird", result.Entities[0].Name)
}

func TestPoolExhaustionSurfacesTypedError(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	cfg := config.Default(dbPath)
	cfg.Performance.ReadPoolSize = 1
	cfg.Performance.ReadPoolAcquireTimeout = 50 * time.Millisecond
	store, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	_, release, err := store.pool.acquire(ctx, store.writer)
	require.NoError(t, err)
	defer release()

	_, _, err = store.OpenNodes(ctx, []string{"anything"})
	require.ErrorIs(t, err, types.ErrPoolExhausted)
}

func TestCheckIntegrityPassesOnHealthyStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateEntities(ctx, []types.Entity{
		{Name: "A", EntityType: "node"},
		{Name: "B", EntityType: "node"},
	})
	require.NoError(t, err)
	_, err = store.CreateRelations(ctx, []types.Relation{{From: "A", To: "B", RelationType: "knows"}})
	require.NoError(t, err)

	require.NoError(t, store.CheckIntegrity(ctx))
}

func TestSearchContentTypeFilterDropsNonMatching(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateEntities(ctx, []types.Entity{
		{Name: "TextOnly", EntityType: "doc", Observations: []codec.Block{
			{Kind: codec.KindText, Text: "shared keyword"},
		}},
		{Name: "WithImage", EntityType: "doc", Observations: []codec.Block{
			{Kind: codec.KindText, Text: "shared keyword"},
			{Kind: codec.KindImage, Data: "aW1n", MimeType: "image/png"},
		}},
	})
	require.NoError(t, err)

	result, _, err := store.SearchNodes(ctx, types.SearchRequest{
		Query:        "keyword",
		Limit:        10,
		ContentTypes: []codec.Kind{codec.KindImage},
	})
	require.NoError(t, err)
	require.Len(t, result.Entities, 1)
	require.Equal(t, "WithImage", result.Entities[0].Name)
	// The filter gates membership only; the survivor keeps its text block.
	require.Len(t, result.Entities[0].Observations, 2)
}

func TestSearchContextBoostRanksActiveEntityFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreateEntities(ctx, []types.Entity{
		{Name: "Plain", EntityType: "note", Observations: []codec.Block{{Kind: codec.KindText, Text: "shared topic"}}},
		{Name: "Active", EntityType: "note", Observations: []codec.Block{{Kind: codec.KindText, Text: "shared topic"}}},
	})
	require.NoError(t, err)

	result, _, err := store.SearchNodes(ctx, types.SearchRequest{
		Query:   "topic",
		Limit:   10,
		Context: &types.SearchContext{CurrentEntities: []string{"Active"}},
	})
	require.NoError(t, err)
	require.Len(t, result.Entities, 2)
	require.Equal(t, "Active", result.Entities[0].Name)
	require.Contains(t, result.Entities[0].Explanation, "active entity")
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = lowerASCII(s)
	}
	return out
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
