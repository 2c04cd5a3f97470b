package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/multierr"

	"github.com/OneTrueJASH/Mem100X-sub000/internal/codec"
	"github.com/OneTrueJASH/Mem100X-sub000/internal/types"
)

// estimatedEntityBytes is a rough per-row memory estimate used for
// dynamic sub-batch sizing (spec §4.7 "target batch memory"). It doesn't
// need to be precise, only proportionate across entities of different
// observation-list sizes.
func estimatedEntityBytes(e types.Entity) int {
	n := len(e.Name) + len(e.EntityType) + 64
	for _, b := range e.Observations {
		n += len(b.Text) + len(b.Data) + len(b.URI) + len(b.Title) + len(b.Description) + 16
	}
	return n
}

// batchSize picks the sub-batch size (rows per sub-batch transaction) for
// the bulk path: either the fixed cfg.Performance.MaxBatchSize (default
// 5,000), or, when DynamicBatchSizing is on, a size derived
// from TargetBatchMemoryMB divided by the average estimated row size,
// clamped to [BatchSize, MaxBatchSize]. BatchSize itself stays reserved
// for the unrelated one-by-one-vs-batch cutover in observations.go — the
// bulk sub-batch size is a different knob even though dynamic sizing
// uses BatchSize as its floor.
func (s *Store) batchSize(entities []types.Entity) int {
	cfg := s.cfg.Performance
	if !cfg.DynamicBatchSizing || len(entities) == 0 {
		if cfg.MaxBatchSize > 0 {
			return cfg.MaxBatchSize
		}
		return 5000
	}

	var total int
	sample := entities
	if len(sample) > 500 {
		sample = sample[:500]
	}
	for _, e := range sample {
		total += estimatedEntityBytes(e)
	}
	avg := total / len(sample)
	if avg < 1 {
		avg = 1
	}

	target := cfg.TargetBatchMemoryMB * 1024 * 1024
	size := target / avg
	if size < cfg.BatchSize {
		size = cfg.BatchSize
	}
	if cfg.MaxBatchSize > 0 && size > cfg.MaxBatchSize {
		size = cfg.MaxBatchSize
	}
	if size < 1 {
		size = 1
	}
	return size
}

// createEntitiesBulk runs the bulk ingest path (spec §4.7): it drops the
// FTS sync triggers, inserts in sub-batches through the circuit breaker,
// then recreates the triggers and rebuilds the FTS index once against the
// fully-populated table rather than incrementally per row. The breaker
// guards only the bulk paths (this one and deleteEntitiesBulk) — the
// small-N paths touch the database too lightly to need it (spec §4.8).
func (s *Store) createEntitiesBulk(ctx context.Context, entities []types.Entity) (succeeded, skipped int, err error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.dropFTSTriggers(ctx); err != nil {
		return 0, 0, err
	}
	defer func() {
		if rebuildErr := s.recreateFTSTriggersAndRebuild(context.Background()); rebuildErr != nil {
			err = multierr.Append(err, rebuildErr)
		}
	}()

	size := s.batchSize(entities)
	now := time.Now().UTC()

	// rowFailures aggregates per-row encode errors across every batch: a
	// single row that fails to encode its observations is dropped from
	// that batch (not worth aborting the whole batch's transaction over),
	// but the failure is still surfaced to the caller at the end. The
	// caller derives its own failed count from len(entities)-succeeded-
	// skipped, so these rows just need to stay out of both those tallies.
	var rowFailures error

	for start := 0; start < len(entities); start += size {
		end := start + size
		if end > len(entities) {
			end = len(entities)
		}
		batch := entities[start:end]

		_, breakerErr := s.breaker.Execute(func() (interface{}, error) {
			var tx *sql.Tx
			if beginErr := s.withBusyRetry(ctx, func() error {
				var txErr error
				tx, txErr = s.writer.BeginTx(ctx, nil)
				return txErr
			}); beginErr != nil {
				return nil, beginErr
			}
			stmt, prepErr := tx.PrepareContext(ctx, `
				INSERT INTO entities (name, entity_type, observations_blob, observations_text, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT(name) DO NOTHING
			`)
			if prepErr != nil {
				_ = tx.Rollback()
				return nil, prepErr
			}

			var batchSucceeded, batchSkipped int
			for _, e := range batch {
				blob, encErr := codec.Encode(e.Observations, s.cfg.Performance.CompressionEnabled)
				if encErr != nil {
					rowFailures = multierr.Append(rowFailures, fmt.Errorf("encode %q: %w", e.Name, encErr))
					continue
				}
				res, execErr := stmt.ExecContext(ctx, e.Name, e.EntityType, blob, observationsText(e.Observations), now, now)
				if execErr != nil {
					_ = stmt.Close()
					_ = tx.Rollback()
					return nil, execErr
				}
				n, _ := res.RowsAffected()
				if n == 0 {
					batchSkipped++
				} else {
					batchSucceeded++
					s.bloomMu.Lock()
					s.bloom.Add(e.Name)
					s.bloomMu.Unlock()
				}
			}
			_ = stmt.Close()
			if commitErr := s.withBusyRetry(ctx, tx.Commit); commitErr != nil {
				return nil, commitErr
			}
			succeeded += batchSucceeded
			skipped += batchSkipped
			return nil, nil
		})
		if breakerErr != nil {
			if breakerErr == gobreaker.ErrOpenState || breakerErr == gobreaker.ErrTooManyRequests {
				return succeeded, skipped, multierr.Append(rowFailures, types.ErrServiceTemporarilyUnavailable)
			}
			return succeeded, skipped, multierr.Append(rowFailures, wrapDBError("create_entities_bulk", breakerErr))
		}
	}

	s.clearSearchCacheDeferred()
	s.flushDeferredSearchCacheClear()
	s.entityCache.Clear()
	return succeeded, skipped, rowFailures
}

// deleteEntitiesBulk mirrors createEntitiesBulk for the delete side (spec
// §4.7 "Bulk path mirrors bulk insert"): drop the FTS sync triggers,
// delete names in sub-batches through the circuit breaker, recreate the
// triggers and rebuild the term index once, then reconcile bloom and
// caches. Relation cascade is handled by the entities table's own FK
// constraint, so only the entities table itself needs sub-batching here.
func (s *Store) deleteEntitiesBulk(ctx context.Context, names []string) (succeeded, skipped int, err error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.dropFTSTriggers(ctx); err != nil {
		return 0, 0, err
	}
	defer func() {
		if rebuildErr := s.recreateFTSTriggersAndRebuild(context.Background()); rebuildErr != nil {
			err = multierr.Append(err, rebuildErr)
		}
	}()

	size := s.cfg.Performance.MaxBatchSize
	if size <= 0 {
		size = 5000
	}

	for start := 0; start < len(names); start += size {
		end := start + size
		if end > len(names) {
			end = len(names)
		}
		batch := names[start:end]

		_, breakerErr := s.breaker.Execute(func() (interface{}, error) {
			var tx *sql.Tx
			if beginErr := s.withBusyRetry(ctx, func() error {
				var txErr error
				tx, txErr = s.writer.BeginTx(ctx, nil)
				return txErr
			}); beginErr != nil {
				return nil, beginErr
			}
			stmt, prepErr := tx.PrepareContext(ctx, `DELETE FROM entities WHERE name = ?`)
			if prepErr != nil {
				_ = tx.Rollback()
				return nil, prepErr
			}

			var batchSucceeded, batchSkipped int
			for _, name := range batch {
				res, execErr := stmt.ExecContext(ctx, name)
				if execErr != nil {
					_ = stmt.Close()
					_ = tx.Rollback()
					return nil, execErr
				}
				n, _ := res.RowsAffected()
				if n == 0 {
					batchSkipped++
				} else {
					batchSucceeded++
					s.bloomMu.Lock()
					s.bloom.Remove(name)
					s.bloomMu.Unlock()
				}
			}
			_ = stmt.Close()
			if commitErr := s.withBusyRetry(ctx, tx.Commit); commitErr != nil {
				return nil, commitErr
			}
			succeeded += batchSucceeded
			skipped += batchSkipped
			return nil, nil
		})
		if breakerErr != nil {
			if breakerErr == gobreaker.ErrOpenState || breakerErr == gobreaker.ErrTooManyRequests {
				return succeeded, skipped, types.ErrServiceTemporarilyUnavailable
			}
			return succeeded, skipped, wrapDBError("delete_entities_bulk", breakerErr)
		}
	}

	for _, name := range names {
		s.entityCache.Delete(strings.ToLower(name))
	}
	s.searchCache.Clear()
	return succeeded, skipped, nil
}

func (s *Store) dropFTSTriggers(ctx context.Context) error {
	for _, name := range []string{"entities_ai", "entities_ad", "entities_au"} {
		if _, err := s.writer.ExecContext(ctx, fmt.Sprintf("DROP TRIGGER IF EXISTS %s", name)); err != nil {
			return fmt.Errorf("sqlite: drop fts trigger %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) recreateFTSTriggersAndRebuild(ctx context.Context) error {
	if _, err := s.writer.ExecContext(ctx, ftsDDL); err != nil {
		return fmt.Errorf("sqlite: recreate fts triggers: %w", err)
	}
	if _, err := s.writer.ExecContext(ctx, `INSERT INTO entities_fts(entities_fts) VALUES('rebuild')`); err != nil {
		return fmt.Errorf("sqlite: rebuild fts index: %w", err)
	}
	return nil
}
