package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/OneTrueJASH/Mem100X-sub000/internal/config"
	"github.com/OneTrueJASH/Mem100X-sub000/internal/types"
)

// readPool bounds concurrent read-only access to the database separately
// from the single writer connection (spec §4.5 "read pool"). Readers open
// the database in SQLite's WAL read-only mode, which lets them run free of
// the writer's own transaction; the semaphore caps how many of them may be
// in flight at once, independent of how many goroutines are calling in.
//
// When the pool is disabled (cfg.Performance.ReadPoolEnabled == false)
// every read borrows the writer handle directly. Reads do not take
// writeMu; the writer's single open connection is what serializes them
// with writes — this is the degraded-but-correct mode for
// single-threaded callers that don't need read concurrency.
type readPool struct {
	enabled bool
	db      *sql.DB
	sem     *semaphore.Weighted
	timeout time.Duration
}

func newReadPool(cfg config.Config) (*readPool, error) {
	if !cfg.Performance.ReadPoolEnabled || cfg.Performance.ReadPoolSize <= 0 {
		return &readPool{enabled: false}, nil
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(%d)&_pragma=query_only(1)",
		cfg.Storage.DBPath, cfg.Storage.BusyTimeoutMS)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open read pool: %w", err)
	}
	db.SetMaxOpenConns(cfg.Performance.ReadPoolSize)
	db.SetMaxIdleConns(cfg.Performance.ReadPoolSize)
	db.SetConnMaxIdleTime(cfg.Performance.ReadPoolIdleTimeout)

	return &readPool{
		enabled: true,
		db:      db,
		sem:     semaphore.NewWeighted(int64(cfg.Performance.ReadPoolSize)),
		timeout: cfg.Performance.ReadPoolAcquireTimeout,
	}, nil
}

// acquire reserves a slot in the pool and returns the handle to query
// against along with a release func the caller must invoke exactly once.
// When the pool is disabled it returns the writer handle and a no-op
// release, so call sites don't need to branch on pool availability.
func (p *readPool) acquire(ctx context.Context, writer *sql.DB) (*sql.DB, func(), error) {
	if !p.enabled {
		return writer, func() {}, nil
	}

	acquireCtx := ctx
	var cancel context.CancelFunc
	if p.timeout > 0 {
		acquireCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if err := p.sem.Acquire(acquireCtx, 1); err != nil {
		if ctx.Err() != nil {
			// The caller's own context ended; report that, not exhaustion.
			return nil, nil, fmt.Errorf("sqlite: acquire read pool slot: %w", ctx.Err())
		}
		return nil, nil, fmt.Errorf("sqlite: acquire read pool slot: %w", types.ErrPoolExhausted)
	}
	return p.db, func() { p.sem.Release(1) }, nil
}

func (p *readPool) close() error {
	if !p.enabled {
		return nil
	}
	return p.db.Close()
}
