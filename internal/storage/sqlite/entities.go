package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/OneTrueJASH/Mem100X-sub000/internal/codec"
	"github.com/OneTrueJASH/Mem100X-sub000/internal/types"
)

// CreateEntities inserts new entities and upserts (whole-list replace)
// any name that already exists, rather than erroring (spec §3
// "Lifecycle"). Routing between the three ingest paths is purely a
// function of len(entities) against cfg.Performance.BulkThreshold (spec
// §4.7):
//
//   - 1 entity: the single-row fast path, no explicit transaction.
//   - 2..threshold-1: one transaction, row-by-row upsert.
//   - >=threshold (when bulk ops are enabled): the sub-batched bulk path
//     in bulk.go, which is insert-or-ignore rather than upsert (spec
//     §4.7 step 3) and drops/rebuilds the FTS triggers around the batch
//     run.
func (s *Store) CreateEntities(ctx context.Context, entities []types.Entity) (types.Performance, error) {
	start := time.Now()
	if len(entities) == 0 {
		return perfFor(start, 0, 0, 0, 0), nil
	}
	for i := range entities {
		if strings.TrimSpace(entities[i].Name) == "" {
			return types.Performance{}, types.NewValidationError("name", "must not be empty")
		}
		if entities[i].EntityType == "" {
			return types.Performance{}, types.NewValidationError("entityType", "must not be empty")
		}
		entities[i].Observations = codec.Dedup(entities[i].Observations)
	}

	// The bulk path drops triggers and runs its own sub-batch
	// transactions, so it can't join a caller's manual transaction; a
	// bulk-sized input arriving mid-transaction takes the row-by-row
	// transactional path instead.
	threshold := s.cfg.Performance.BulkThreshold
	if s.cfg.Performance.BulkOpsEnabled && threshold > 0 && len(entities) >= threshold && s.manualTx() == nil {
		succeeded, skipped, err := s.createEntitiesBulk(ctx, entities)
		return perfFor(start, len(entities), succeeded, skipped, len(entities)-succeeded-skipped), err
	}
	if len(entities) == 1 {
		succeeded, skipped, err := s.createEntitySingle(ctx, entities[0])
		return perfFor(start, 1, succeeded, skipped, 0), err
	}

	succeeded, skipped, err := s.createEntitiesTx(ctx, entities)
	return perfFor(start, len(entities), succeeded, skipped, len(entities)-succeeded-skipped), err
}

// createEntitySingle is the size==1 fast path (spec §4.7). An entity
// name that already exists is upserted (whole-list replace, per spec §3
// lifecycle), not skipped. A name the bloom filter reports present
// (including a false positive) goes straight to the upsert; a name it
// reports absent gets a plain insert, and only if that insert hits a
// unique-constraint collision (the filter was missing an existing name)
// does it fall back to the upsert.
func (s *Store) createEntitySingle(ctx context.Context, e types.Entity) (succeeded, skipped int, err error) {
	now := time.Now().UTC()
	blob, err := codec.Encode(e.Observations, s.cfg.Performance.CompressionEnabled)
	if err != nil {
		return 0, 0, err
	}
	text := observationsText(e.Observations)

	s.bloomMu.Lock()
	present := s.bloom.Contains(e.Name)
	s.bloomMu.Unlock()

	needsUpsert := present
	if !present {
		_, insErr := s.execWrite(ctx, `
			INSERT INTO entities (name, entity_type, observations_blob, observations_text, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, e.Name, e.EntityType, blob, text, now, now)
		switch {
		case insErr == nil:
			s.entityCache.Set(strings.ToLower(e.Name), &e)
			s.bloomMu.Lock()
			s.bloom.Add(e.Name)
			s.bloomMu.Unlock()
			return 1, 0, nil
		case isUniqueConstraintErr(insErr):
			// The filter reported absent, but the name exists after all.
			// Fall through to the upsert branch below.
			needsUpsert = true
		default:
			return 0, 0, wrapDBError("create_entities", insErr)
		}
	}

	if needsUpsert {
		if upsertErr := s.upsertEntity(ctx, e, blob, text, now); upsertErr != nil {
			return 0, 0, upsertErr
		}
		s.entityCache.Set(strings.ToLower(e.Name), &e)
		s.bloomMu.Lock()
		s.bloom.Add(e.Name)
		s.bloomMu.Unlock()
		s.clearSearchCacheDeferred()
		s.flushDeferredSearchCacheClear()
	}
	return 1, 0, nil
}

// upsertEntity performs the whole-list-replace upsert used by the fast
// path's collision branch and by the non-bulk transactional path.
func (s *Store) upsertEntity(ctx context.Context, e types.Entity, blob []byte, text string, now time.Time) error {
	_, err := s.execWrite(ctx, `
		INSERT INTO entities (name, entity_type, observations_blob, observations_text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			entity_type = excluded.entity_type,
			observations_blob = excluded.observations_blob,
			observations_text = excluded.observations_text,
			updated_at = excluded.updated_at
	`, e.Name, e.EntityType, blob, text, now, now)
	if err != nil {
		return wrapDBError("create_entities", err)
	}
	return nil
}

// createEntitiesTx is the 2..threshold-1 transactional path (spec
// §4.7): one upsert per row, whole-list replace on collision, bloom and
// cache updated inside the transaction boundary.
func (s *Store) createEntitiesTx(ctx context.Context, entities []types.Entity) (succeeded, skipped int, err error) {
	now := time.Now().UTC()
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO entities (name, entity_type, observations_blob, observations_text, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				entity_type = excluded.entity_type,
				observations_blob = excluded.observations_blob,
				observations_text = excluded.observations_text,
				updated_at = excluded.updated_at
		`)
		if err != nil {
			return wrapDBError("create_entities", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, e := range entities {
			blob, encErr := codec.Encode(e.Observations, s.cfg.Performance.CompressionEnabled)
			if encErr != nil {
				return encErr
			}
			if _, execErr := stmt.ExecContext(ctx, e.Name, e.EntityType, blob, observationsText(e.Observations), now, now); execErr != nil {
				return wrapDBError("create_entities", execErr)
			}
			succeeded++
			entity := e
			s.entityCache.Set(strings.ToLower(e.Name), &entity)
			s.bloomMu.Lock()
			s.bloom.Add(e.Name)
			s.bloomMu.Unlock()
		}
		return nil
	})
	if err == nil {
		s.searchCache.Clear()
	}
	return succeeded, skipped, err
}

// observationsText renders an observation list to the flat text stored
// in observations_text, stemmed for FTS5 (spec §4.4).
func observationsText(blocks []codec.Block) string {
	var sb strings.Builder
	for i, b := range blocks {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(b.SearchableText())
	}
	return stemText(sb.String())
}

// perfFor assembles the Performance envelope for an operation that
// started at start and touched requested items with the given outcome
// split (spec §6 "performance record").
func perfFor(start time.Time, requested, succeeded, skipped, failed int) types.Performance {
	elapsed := time.Since(start)
	ms := float64(elapsed) / float64(time.Millisecond)
	perf := types.Performance{
		DurationMS: ms,
		Counts: types.Counts{
			Requested: requested,
			Succeeded: succeeded,
			Skipped:   skipped,
			Failed:    failed,
		},
	}
	if elapsed > 0 && requested > 0 {
		rate := float64(requested) / elapsed.Seconds()
		perf.RatePerSec = &rate
	}
	return perf
}
