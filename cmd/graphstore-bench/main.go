// Command graphstore-bench drives a synthetic create/search workload
// against a scratch database and reports throughput and the final stats
// (it performs no deletes), mirroring
// the teacher's own bench harness convention of a small cobra CLI around
// the library rather than a shell script.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	graphstore "github.com/OneTrueJASH/Mem100X-sub000"
	"github.com/OneTrueJASH/Mem100X-sub000/internal/codec"
	"github.com/OneTrueJASH/Mem100X-sub000/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		dbPath string
		count  int
		cache  string
	)

	cmd := &cobra.Command{
		Use:   "graphstore-bench",
		Short: "Benchmark entity ingest and search against a scratch graphstore database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd.Context(), dbPath, count, cache)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "bench.db", "path to the scratch database file")
	cmd.Flags().IntVar(&count, "count", 10000, "number of synthetic entities to create")
	cmd.Flags().StringVar(&cache, "cache", "lru", "cache eviction strategy: lru, 2q, arc, radix")

	return cmd
}

func runBench(ctx context.Context, dbPath string, count int, cacheStrategy string) error {
	_ = os.Remove(dbPath)
	_ = os.Remove(dbPath + ".cbloom")

	cfg := graphstore.DefaultConfig(dbPath)
	cfg.Performance.CacheStrategy = cacheStrategyFromFlag(cacheStrategy)

	store, err := graphstore.Open(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = store.Close() }()

	entities := make([]graphstore.Entity, count)
	for i := range entities {
		entities[i] = graphstore.Entity{
			Name:       fmt.Sprintf("bench-entity-%d", i),
			EntityType: "benchmark",
			Observations: []codec.Block{
				{Kind: codec.KindText, Text: fmt.Sprintf("synthetic observation for entity %d", i)},
			},
		}
	}

	start := time.Now()
	perf, err := store.CreateEntities(ctx, entities)
	if err != nil {
		return fmt.Errorf("create_entities: %w", err)
	}
	elapsed := time.Since(start)

	fmt.Printf("created %s entities in %s\n", humanize.Comma(int64(perf.Counts.Succeeded)), elapsed)
	if perf.RatePerSec != nil {
		fmt.Printf("ingest rate: %s entities/sec\n", humanize.Comma(int64(*perf.RatePerSec)))
	}

	searchStart := time.Now()
	result, searchPerf, err := store.SearchNodes(ctx, graphstore.SearchRequest{Query: "synthetic", Limit: 20})
	if err != nil {
		return fmt.Errorf("search_nodes: %w", err)
	}
	fmt.Printf("search_nodes returned %d entities in %s (reported %.2fms)\n",
		len(result.Entities), time.Since(searchStart), searchPerf.DurationMS)

	stats, err := store.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("get_stats: %w", err)
	}
	fmt.Printf("entities=%s relations=%s db_size=%s bloom_load=%.4f\n",
		humanize.Comma(int64(stats.EntityCount)),
		humanize.Comma(int64(stats.RelationCount)),
		humanize.Bytes(uint64(stats.DBSizeBytes)),
		stats.Bloom.Load)

	return nil
}

func cacheStrategyFromFlag(v string) config.CacheStrategy {
	switch v {
	case "2q":
		return config.Cache2Q
	case "arc":
		return config.CacheARC
	case "radix":
		return config.CacheRadix
	default:
		return config.CacheLRU
	}
}
