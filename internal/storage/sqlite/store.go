// Package sqlite is the single-context storage engine: the relational
// schema and its full-text index, the in-process caches, the bulk
// ingest/delete fast paths, the write/read concurrency discipline, and
// the search pipeline. It is the core described in spec §2.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/sony/gobreaker"
	"go.uber.org/multierr"

	"github.com/OneTrueJASH/Mem100X-sub000/internal/bloomfilter"
	"github.com/OneTrueJASH/Mem100X-sub000/internal/cache"
	"github.com/OneTrueJASH/Mem100X-sub000/internal/config"
	"github.com/OneTrueJASH/Mem100X-sub000/internal/types"

	_ "modernc.org/sqlite"
)

// Store is the single-context storage engine (spec §2 "the core"). It
// exclusively owns the writer handle; the read pool and the cache+bloom
// trio are the only other process-wide structures per context (spec §9
// "Global state").
type Store struct {
	cfg config.Config

	writer *sql.DB

	pool *readPool

	entityCache cache.Cache[*types.Entity]
	searchCache cache.Cache[*types.GraphResult]

	bloom      *bloomfilter.Filter
	bloomMu    sync.Mutex // serializes bloom mutation with its own contains reads (spec §5)
	bloomPath  string

	breaker *gobreaker.CircuitBreaker

	// writeMu serializes the single writer path end to end (spec §5:
	// "at most one write transaction is in flight at any time"). SQLite's
	// own locking would serialize at the file level regardless, but an
	// explicit mutex avoids busy-retry churn under contention and gives
	// transaction-already-active detection somewhere to live.
	writeMu sync.Mutex

	txMu     sync.Mutex
	activeTx *sql.Tx

	// searchCacheClearPending marks a search-cache clear requested by the
	// single-entity fast path or the bulk path (spec §4.7); each caller
	// flushes it immediately.
	searchCacheClearMu      sync.Mutex
	searchCacheClearPending bool

	closed bool
	mu     sync.RWMutex
}

// New opens (creating if absent) the database at cfg.Storage.DBPath,
// applies the schema and any pending migrations, loads or rebuilds the
// bloom sidecar, and returns a ready Store.
func New(cfg config.Config) (*Store, error) {
	if cfg.Storage.DBPath == "" {
		return nil, types.NewValidationError("dbPath", "must not be empty")
	}

	writer, err := sql.Open("sqlite", writerDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open writer handle: %w", err)
	}
	writer.SetMaxOpenConns(1) // single writer (spec §5)

	if err := applyPragmas(writer, cfg); err != nil {
		_ = writer.Close()
		return nil, err
	}

	if err := ensureSchema(writer); err != nil {
		_ = writer.Close()
		return nil, err
	}
	if err := runMigrations(writer); err != nil {
		_ = writer.Close()
		return nil, err
	}

	pool, err := newReadPool(cfg)
	if err != nil {
		_ = writer.Close()
		return nil, err
	}

	strategy := cache.Strategy(cfg.Performance.CacheStrategy)
	s := &Store{
		cfg:         cfg,
		writer:      writer,
		pool:        pool,
		entityCache: cache.New[*types.Entity](strategy, cfg.Performance.EntityCacheSize),
		searchCache: cache.New[*types.GraphResult](strategy, cfg.Performance.SearchCacheSize),
		bloomPath:   bloomfilter.SidecarPath(cfg.Storage.DBPath),
	}

	if err := s.loadOrRebuildBloom(context.Background()); err != nil {
		_ = writer.Close()
		pool.close()
		return nil, err
	}

	s.breaker = newBreaker(cfg.Breaker)

	return s, nil
}

func writerDSN(cfg config.Config) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(ON)",
		cfg.Storage.DBPath, cfg.Storage.BusyTimeoutMS)
}

func applyPragmas(db *sql.DB, cfg config.Config) error {
	stmts := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA cache_size=-%d", cfg.Storage.PageCacheMB*1024),
		fmt.Sprintf("PRAGMA mmap_size=%d", cfg.Storage.MmapMB*1024*1024),
		fmt.Sprintf("PRAGMA page_size=%d", cfg.Storage.PageSizeKB*1024),
		"PRAGMA foreign_keys=ON",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("sqlite: apply pragma %q: %w", stmt, err)
		}
	}
	return nil
}

// Close flushes the bloom sidecar, closes the read pool, and closes the
// writer handle. Safe to call once; a second call is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	// None of these three failures should stop the others from running:
	// a failed sidecar save just means a slower cold start next time
	// (spec §4.1), and the writer handle must still be closed even if
	// the read pool failed to close cleanly. multierr collects whichever
	// of the three go wrong instead of masking all but the first.
	var err error
	if saveErr := s.bloom.Save(s.bloomPath); saveErr != nil {
		err = multierr.Append(err, fmt.Errorf("save bloom sidecar: %w", saveErr))
	}
	if poolErr := s.pool.close(); poolErr != nil {
		err = multierr.Append(err, fmt.Errorf("close read pool: %w", poolErr))
	}
	if writerErr := s.writer.Close(); writerErr != nil {
		err = multierr.Append(err, fmt.Errorf("close writer: %w", writerErr))
	}
	return err
}
