package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default("/tmp/test.db")
	require.Equal(t, "/tmp/test.db", cfg.Storage.DBPath)
	require.True(t, cfg.Performance.ReadPoolEnabled)
	require.Equal(t, CacheLRU, cfg.Performance.CacheStrategy)
	require.Equal(t, 200, cfg.Performance.BulkThreshold)
}

func TestAgingResolvePresets(t *testing.T) {
	cases := []struct {
		preset      AgingPreset
		halfLifeHrs float64
	}{
		{AgingBalanced, 24 * 7},
		{AgingConservative, 24 * 30},
		{AgingAggressive, 24},
		{AgingWork, 24 * 5},
		{AgingPersonal, 24 * 14},
	}
	for _, tc := range cases {
		a := Aging{Preset: tc.preset}
		require.Equal(t, tc.halfLifeHrs, a.Resolve().HalfLifeHrs, tc.preset)
	}
}

func TestAgingResolveCustom(t *testing.T) {
	a := Aging{Preset: AgingCustom, DecayRate: 0.5, HalfLifeHrs: 12, AccessBoost: 0.2}
	factors := a.Resolve()
	require.Equal(t, 0.5, factors.DecayRate)
	require.Equal(t, 12.0, factors.HalfLifeHrs)
	require.Equal(t, 0.2, factors.AccessBoost)
}
