package sqlite

import (
	"context"
	"fmt"
	"os"

	"github.com/sony/gobreaker"

	"github.com/OneTrueJASH/Mem100X-sub000/internal/types"
)

// GetStats assembles the engine-wide snapshot returned by get_stats
// (spec §4.9): row counts, both cache's hit/miss/eviction counters, bloom
// filter occupancy, circuit breaker state, and on-disk size.
func (s *Store) GetStats(ctx context.Context) (types.Stats, error) {
	var stats types.Stats

	if err := s.writer.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities`).Scan(&stats.EntityCount); err != nil {
		return types.Stats{}, wrapDBError("get_stats", err)
	}
	if err := s.writer.QueryRowContext(ctx, `SELECT COUNT(*) FROM relations`).Scan(&stats.RelationCount); err != nil {
		return types.Stats{}, wrapDBError("get_stats", err)
	}

	ec := s.entityCache.Stats()
	stats.EntityCache = types.CacheStats{Hits: ec.Hits, Misses: ec.Misses, Evictions: ec.Evictions}
	sc := s.searchCache.Stats()
	stats.SearchCache = types.CacheStats{Hits: sc.Hits, Misses: sc.Misses, Evictions: sc.Evictions}

	s.bloomMu.Lock()
	bs := s.bloom.Stats()
	s.bloomMu.Unlock()
	stats.Bloom = types.BloomStats{
		Size:            bs.Size,
		NumHashes:       bs.NumHashes,
		NonZeroCounters: bs.NonZeroCounters,
		SaturatedSlots:  bs.SaturatedSlots,
		Load:            bs.Load,
	}

	counts := s.breaker.Counts()
	stats.Breaker = types.BreakerStats{
		State:               breakerStateName(s.breaker.State()),
		Counts:              fmt.Sprintf("requests=%d successes=%d failures=%d", counts.Requests, counts.TotalSuccesses, counts.TotalFailures),
		ConsecutiveFailures: counts.ConsecutiveFailures,
	}

	if info, err := os.Stat(s.cfg.Storage.DBPath); err == nil {
		stats.DBSizeBytes = info.Size()
	}

	return stats, nil
}

func breakerStateName(state gobreaker.State) string {
	switch state {
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}
