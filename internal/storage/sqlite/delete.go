package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/OneTrueJASH/Mem100X-sub000/internal/types"
)

// DeleteEntities removes entities by name, cascading to their relations
// via the foreign key ON DELETE CASCADE (spec §4.5). A name that doesn't
// exist is skipped, not an error. Bloom filter entries are removed
// best-effort: the filter tolerates over-reporting presence (spec
// invariant P3), so a missed Remove just costs a future false positive,
// never a false negative. Sets at or above cfg.Performance.BulkThreshold
// route through the bulk path in bulk.go (spec §4.7 "Bulk path mirrors
// bulk insert"), which drops and rebuilds the FTS triggers around the
// batch run instead of taking the per-row trigger hit.
func (s *Store) DeleteEntities(ctx context.Context, names []string) (types.Performance, error) {
	start := time.Now()
	if len(names) == 0 {
		return perfFor(start, 0, 0, 0, 0), nil
	}

	threshold := s.cfg.Performance.BulkThreshold
	if s.cfg.Performance.BulkOpsEnabled && threshold > 0 && len(names) >= threshold && s.manualTx() == nil {
		succeeded, skipped, err := s.deleteEntitiesBulk(ctx, names)
		return perfFor(start, len(names), succeeded, skipped, len(names)-succeeded-skipped), err
	}

	var succeeded, skipped int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `DELETE FROM entities WHERE name = ?`)
		if err != nil {
			return wrapDBError("delete_entities", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, name := range names {
			res, execErr := stmt.ExecContext(ctx, name)
			if execErr != nil {
				return wrapDBError("delete_entities", execErr)
			}
			n, _ := res.RowsAffected()
			if n == 0 {
				skipped++
				continue
			}
			succeeded++
			s.entityCache.Delete(strings.ToLower(name))
			s.bloomMu.Lock()
			s.bloom.Remove(name)
			s.bloomMu.Unlock()
		}
		return nil
	})
	if err == nil {
		s.searchCache.Clear()
	}
	return perfFor(start, len(names), succeeded, skipped, 0), err
}
