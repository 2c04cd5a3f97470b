package sqlite

import (
	"context"
	"fmt"
	"math"
	"time"
)

// RebuildIndex drops and rebuilds the FTS5 term index against the
// current entities table, for operators recovering from suspected index
// drift (e.g. after an out-of-band restore that skipped the triggers).
func (s *Store) RebuildIndex(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.writer.ExecContext(ctx, `INSERT INTO entities_fts(entities_fts) VALUES('rebuild')`); err != nil {
		return fmt.Errorf("sqlite: rebuild index: %w", err)
	}
	return nil
}

// RebuildBloom discards and rebuilds the bloom filter from the entities
// table, exposed as a standalone maintenance operation distinct from the
// automatic cold-start path in bloom.go.
func (s *Store) RebuildBloom(ctx context.Context) error {
	return s.rebuildBloom(ctx)
}

// RunAgingPass applies prominence decay to every entity and relation not
// accessed within the last hour (spec §3 "optional aging attributes", C10
// maintenance). Each row's prominence decays toward zero at the
// configured preset's half-life. The pass applies no access boost
// (touchAccess does that on reads), and the entity and relation updates
// are two separate statements, not one transaction. The returned count is
// the number of entity rows updated.
func (s *Store) RunAgingPass(ctx context.Context) (touched int, err error) {
	if !s.cfg.Aging.Enabled {
		return 0, nil
	}
	factors := s.cfg.Aging.Resolve()
	if factors.HalfLifeHrs <= 0 {
		return 0, nil
	}
	lambda := math.Ln2 / factors.HalfLifeHrs

	now := time.Now().UTC()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, execErr := s.writer.ExecContext(ctx, `
		UPDATE entities
		SET prominence = prominence * EXP(-? * (JULIANDAY(?) - JULIANDAY(COALESCE(last_accessed, created_at))) * 24.0)
		WHERE last_accessed IS NULL OR last_accessed < ?
	`, lambda, now, now.Add(-time.Hour))
	if execErr != nil {
		return 0, fmt.Errorf("sqlite: aging pass entities: %w", execErr)
	}
	n, _ := res.RowsAffected()
	touched += int(n)

	if _, execErr := s.writer.ExecContext(ctx, `
		UPDATE relations
		SET prominence = prominence * EXP(-? * (JULIANDAY(?) - JULIANDAY(COALESCE(last_accessed, created_at))) * 24.0)
		WHERE last_accessed IS NULL OR last_accessed < ?
	`, lambda, now, now.Add(-time.Hour)); execErr != nil {
		return touched, fmt.Errorf("sqlite: aging pass relations: %w", execErr)
	}

	s.entityCache.Clear()
	return touched, nil
}

// touchAccess bumps an entity's access_count/last_accessed/prominence on
// a successful read, used by the hydrate path when aging is enabled so
// prominence reflects actual usage rather than only decay.
func (s *Store) touchAccess(ctx context.Context, name string) error {
	if !s.cfg.Aging.Enabled {
		return nil
	}
	factors := s.cfg.Aging.Resolve()
	_, err := s.execWrite(ctx, `
		UPDATE entities
		SET access_count = access_count + 1, last_accessed = ?, prominence = prominence + ?
		WHERE name = ?
	`, time.Now().UTC(), factors.AccessBoost, name)
	if err != nil {
		return fmt.Errorf("sqlite: touch access: %w", err)
	}
	return nil
}
