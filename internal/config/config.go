// Package config defines the storage engine's configuration surface
// (spec §6) as a plain Go struct with documented defaults, independent of
// any CLI or file-format binding — callers (the out-of-scope request
// router) own parsing flags/env/files into this struct.
package config

import "time"

// CacheStrategy selects the bounded-cache eviction policy.
type CacheStrategy string

const (
	CacheLRU   CacheStrategy = "lru"
	Cache2Q    CacheStrategy = "2q"
	CacheARC   CacheStrategy = "arc"
	CacheRadix CacheStrategy = "radix"
)

// AgingPreset names a documented decay/half-life/boost configuration for
// prominence scoring (C10 maintenance hook).
type AgingPreset string

const (
	AgingBalanced     AgingPreset = "balanced"
	AgingConservative AgingPreset = "conservative"
	AgingAggressive   AgingPreset = "aggressive"
	AgingWork         AgingPreset = "work"
	AgingPersonal     AgingPreset = "personal"
	AgingCustom       AgingPreset = "custom"
)

// Storage groups the on-disk/pragma-level knobs (spec §6 "Storage").
type Storage struct {
	DBPath            string
	PageCacheMB       int
	MmapMB            int
	PageSizeKB        int
	BusyTimeoutMS     int
	CheckpointInterval int
}

// Performance groups cache/pool/batch knobs (spec §6 "Performance").
type Performance struct {
	EntityCacheSize         int
	SearchCacheSize         int
	RelationQueryThreshold  int
	CompressionEnabled      bool
	CacheStrategy           CacheStrategy
	ReadPoolEnabled         bool
	ReadPoolSize            int
	ReadPoolAcquireTimeout  time.Duration
	ReadPoolIdleTimeout     time.Duration
	BatchSize               int
	MaxBatchSize            int
	TargetBatchMemoryMB     int
	BulkOpsEnabled          bool
	DynamicBatchSizing      bool
	BulkThreshold           int
}

// Bloom groups the counting-bloom-filter sizing knobs (spec §6 "Bloom").
type Bloom struct {
	ExpectedItems     int
	FalsePositiveRate float64
}

// Aging groups the prominence-decay knobs (spec §6 "Aging").
type Aging struct {
	Enabled    bool
	Preset     AgingPreset
	DecayRate  float64 // per-day multiplicative decay, used when Preset == AgingCustom
	HalfLifeHrs float64
	AccessBoost float64
}

// Breaker groups the circuit-breaker knobs (spec §6 "Breaker").
type Breaker struct {
	FailureThreshold  uint32
	RecoveryTimeoutMS int
}

// Config is the full configuration surface consumed by the storage
// engine at construction.
type Config struct {
	Storage     Storage
	Performance Performance
	Bloom       Bloom
	Aging       Aging
	Breaker     Breaker
}

// Default returns a Config populated with the defaults documented in
// spec §4.7 (batch thresholds), §4.5 (pool sizing) and §6 generally.
func Default(dbPath string) Config {
	return Config{
		Storage: Storage{
			DBPath:             dbPath,
			PageCacheMB:        64,
			MmapMB:             256,
			PageSizeKB:         4,
			BusyTimeoutMS:      30000,
			CheckpointInterval: 1000,
		},
		Performance: Performance{
			EntityCacheSize:        10000,
			SearchCacheSize:        2000,
			RelationQueryThreshold: 50,
			CompressionEnabled:     true,
			CacheStrategy:          CacheLRU,
			ReadPoolEnabled:        true,
			ReadPoolSize:           4,
			ReadPoolAcquireTimeout: 5 * time.Second,
			ReadPoolIdleTimeout:    5 * time.Minute,
			BatchSize:              10,
			MaxBatchSize:           5000,
			TargetBatchMemoryMB:    32,
			BulkOpsEnabled:         true,
			DynamicBatchSizing:     false,
			BulkThreshold:          200,
		},
		Bloom: Bloom{
			ExpectedItems:     100000,
			FalsePositiveRate: 0.01,
		},
		Aging: Aging{
			Enabled: false,
			Preset:  AgingBalanced,
		},
		Breaker: Breaker{
			FailureThreshold:  3,
			RecoveryTimeoutMS: 30000,
		},
	}
}

// AgingFactors is the resolved (decayRate, halfLifeHrs, accessBoost) for a
// preset, documented here so operators can see what each preset means.
type AgingFactors struct {
	DecayRate   float64 // multiplicative decay applied per day of inactivity
	HalfLifeHrs float64 // hours until an unaccessed entity's prominence halves
	AccessBoost float64 // prominence increment applied per access
}

// Resolve returns the effective aging factors: the named preset's
// factors, or the Config's own fields when Preset == AgingCustom.
func (a Aging) Resolve() AgingFactors {
	switch a.Preset {
	case AgingConservative:
		return AgingFactors{DecayRate: 0.995, HalfLifeHrs: 24 * 30, AccessBoost: 0.02}
	case AgingAggressive:
		return AgingFactors{DecayRate: 0.9, HalfLifeHrs: 24, AccessBoost: 0.1}
	case AgingWork:
		return AgingFactors{DecayRate: 0.97, HalfLifeHrs: 24 * 5, AccessBoost: 0.05}
	case AgingPersonal:
		return AgingFactors{DecayRate: 0.98, HalfLifeHrs: 24 * 14, AccessBoost: 0.03}
	case AgingCustom:
		return AgingFactors{DecayRate: a.DecayRate, HalfLifeHrs: a.HalfLifeHrs, AccessBoost: a.AccessBoost}
	default: // balanced
		return AgingFactors{DecayRate: 0.98, HalfLifeHrs: 24 * 7, AccessBoost: 0.05}
	}
}
