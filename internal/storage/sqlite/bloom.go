package sqlite

import (
	"context"
	"fmt"

	"github.com/OneTrueJASH/Mem100X-sub000/internal/bloomfilter"
)

// loadOrRebuildBloom loads the counting bloom filter sidecar for the
// database, or rebuilds it from the entities table when the sidecar is
// missing, truncated, or of an unsupported version (spec §4.1, §6). The
// sidecar is never load-bearing for correctness — Contains is only ever
// used to short-circuit a definite miss — so a rebuild is always a safe
// fallback, just a slower cold start.
func (s *Store) loadOrRebuildBloom(ctx context.Context) error {
	if f, err := bloomfilter.Load(s.bloomPath); err == nil {
		s.bloom = f
		return nil
	}
	return s.rebuildBloomFromTable(ctx)
}

// rebuildBloomFromTable discards the current filter and repopulates a
// fresh one from the entities table, the source of truth for the superset
// invariant (P3).
func (s *Store) rebuildBloomFromTable(ctx context.Context) error {
	f := bloomfilter.New(s.cfg.Bloom.ExpectedItems, s.cfg.Bloom.FalsePositiveRate)
	rows, err := s.writer.QueryContext(ctx, `SELECT name FROM entities`)
	if err != nil {
		return fmt.Errorf("sqlite: rebuild bloom filter: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("sqlite: rebuild bloom filter: %w", err)
		}
		f.Add(name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: rebuild bloom filter: %w", err)
	}

	s.bloomMu.Lock()
	s.bloom = f
	s.bloomMu.Unlock()
	return nil
}

// rebuildBloom is the maintenance entry point (C10) for operators who
// suspect sidecar drift after an out-of-band restore. Unlike the cold
// start path it never consults the sidecar — the whole point is that the
// sidecar may be lying.
func (s *Store) rebuildBloom(ctx context.Context) error {
	return s.rebuildBloomFromTable(ctx)
}
