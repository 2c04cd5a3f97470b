// Package graphstore is the public entry point: a single-process,
// single-database embedded knowledge-graph memory store. It wraps the
// internal SQLite-backed engine behind the operation surface described
// in spec §4 (create/delete entities and relations, add/delete
// observations, search_nodes, read_graph, open_nodes, get_neighbors,
// find_shortest_path, get_stats, manual transactions, backup).
package graphstore

import (
	"context"

	"github.com/OneTrueJASH/Mem100X-sub000/internal/codec"
	"github.com/OneTrueJASH/Mem100X-sub000/internal/config"
	"github.com/OneTrueJASH/Mem100X-sub000/internal/storage/sqlite"
	"github.com/OneTrueJASH/Mem100X-sub000/internal/types"
)

// Re-exported value types, so callers never need to import the internal
// packages directly.
type (
	Entity          = types.Entity
	Relation        = types.Relation
	ObservationEdit = types.ObservationEdit
	SearchRequest   = types.SearchRequest
	SearchContext   = types.SearchContext
	SearchMode      = types.SearchMode
	Intent          = types.Intent
	Direction       = types.Direction
	GraphResult     = types.GraphResult
	RankedEntity    = types.RankedEntity
	PathResult      = types.PathResult
	Stats           = types.Stats
	Performance     = types.Performance
	Block           = codec.Block
	BlockKind       = codec.Kind
	Config          = config.Config
)

const (
	SearchModeAuto  = types.SearchModeAuto
	SearchModeExact = types.SearchModeExact
	SearchModeFuzzy = types.SearchModeFuzzy

	IntentFind    = types.IntentFind
	IntentBrowse  = types.IntentBrowse
	IntentExplore = types.IntentExplore
	IntentVerify  = types.IntentVerify

	DirectionOutgoing = types.DirectionOutgoing
	DirectionIncoming = types.DirectionIncoming
	DirectionBoth     = types.DirectionBoth
)

// Sentinel errors, re-exported so callers can errors.Is against them
// without reaching into internal/types.
var (
	ErrEntityNotFound                = types.ErrEntityNotFound
	ErrDuplicateEntity               = types.ErrDuplicateEntity
	ErrInvalidRelation               = types.ErrInvalidRelation
	ErrTransactionAlreadyActive      = types.ErrTransactionAlreadyActive
	ErrNoActiveTransaction           = types.ErrNoActiveTransaction
	ErrInvalidInput                  = types.ErrInvalidInput
	ErrInvalidConfig                 = types.ErrInvalidConfig
	ErrPoolExhausted                 = types.ErrPoolExhausted
	ErrServiceTemporarilyUnavailable = types.ErrServiceTemporarilyUnavailable
	ErrBackupFailed                  = types.ErrBackupFailed
	ErrRestoreFailed                 = types.ErrRestoreFailed
	ErrStorageCorruption             = types.ErrStorageCorruption
)

// DefaultConfig returns the documented default configuration for a store
// rooted at dbPath (spec §6).
func DefaultConfig(dbPath string) Config { return config.Default(dbPath) }

// Store is the facade over the storage engine. The create, delete,
// observation, search, read, neighbor and path operations return a
// Performance envelope alongside their result; GetStats, the transaction
// calls, Backup and the maintenance calls do not.
type Store struct {
	engine *sqlite.Store
}

// Open creates or opens the database described by cfg and returns a
// ready Store.
func Open(cfg Config) (*Store, error) {
	engine, err := sqlite.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Store{engine: engine}, nil
}

// Close releases every resource held by the store (writer handle, read
// pool, bloom sidecar flush).
func (s *Store) Close() error { return s.engine.Close() }

func (s *Store) CreateEntities(ctx context.Context, entities []Entity) (Performance, error) {
	return s.engine.CreateEntities(ctx, entities)
}

func (s *Store) CreateRelations(ctx context.Context, relations []Relation) (Performance, error) {
	return s.engine.CreateRelations(ctx, relations)
}

func (s *Store) AddObservations(ctx context.Context, edits []ObservationEdit) (Performance, error) {
	return s.engine.AddObservations(ctx, edits)
}

func (s *Store) DeleteObservations(ctx context.Context, edits []ObservationEdit) (Performance, error) {
	return s.engine.DeleteObservations(ctx, edits)
}

func (s *Store) DeleteEntities(ctx context.Context, names []string) (Performance, error) {
	return s.engine.DeleteEntities(ctx, names)
}

func (s *Store) DeleteRelations(ctx context.Context, relations []Relation) (Performance, error) {
	return s.engine.DeleteRelations(ctx, relations)
}

func (s *Store) SearchNodes(ctx context.Context, req SearchRequest) (GraphResult, Performance, error) {
	return s.engine.SearchNodes(ctx, req)
}

func (s *Store) ReadGraph(ctx context.Context, offset, limit int) (GraphResult, Performance, error) {
	return s.engine.ReadGraph(ctx, offset, limit)
}

func (s *Store) OpenNodes(ctx context.Context, names []string) (GraphResult, Performance, error) {
	return s.engine.OpenNodes(ctx, names)
}

func (s *Store) GetNeighbors(ctx context.Context, startName string, maxDepth int, dir Direction, relationType string, includeRelations bool) (GraphResult, Performance, error) {
	return s.engine.GetNeighbors(ctx, startName, maxDepth, dir, relationType, includeRelations)
}

func (s *Store) FindShortestPath(ctx context.Context, fromName, toName string, maxDepth int, relationType string) (PathResult, Performance, error) {
	return s.engine.FindShortestPath(ctx, fromName, toName, maxDepth, relationType)
}

func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	return s.engine.GetStats(ctx)
}

func (s *Store) BeginTransaction(ctx context.Context) error    { return s.engine.BeginTransaction(ctx) }
func (s *Store) CommitTransaction(ctx context.Context) error   { return s.engine.CommitTransaction(ctx) }
func (s *Store) RollbackTransaction(ctx context.Context) error { return s.engine.RollbackTransaction(ctx) }

func (s *Store) Backup(ctx context.Context, destPath string) error {
	return s.engine.Backup(ctx, destPath)
}

func (s *Store) RebuildIndex(ctx context.Context) error { return s.engine.RebuildIndex(ctx) }
func (s *Store) RebuildBloom(ctx context.Context) error { return s.engine.RebuildBloom(ctx) }

// CheckIntegrity runs a consistency scan over the tables and the term
// index, reporting any discrepancy as ErrStorageCorruption.
func (s *Store) CheckIntegrity(ctx context.Context) error { return s.engine.CheckIntegrity(ctx) }

func (s *Store) RunAgingPass(ctx context.Context) (int, error) { return s.engine.RunAgingPass(ctx) }

// RestoreBackup copies a backup produced by Store.Backup back over
// dbPath's on-disk files. The store must be closed first and reopened
// with Open afterward — restoring underneath live handles would leave
// cached state pointing at the old file.
func RestoreBackup(dbPath, backupPath string) error {
	return sqlite.Restore(dbPath, backupPath)
}
