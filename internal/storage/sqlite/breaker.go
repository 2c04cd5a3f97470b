package sqlite

import (
	"time"

	"github.com/sony/gobreaker"

	"github.com/OneTrueJASH/Mem100X-sub000/internal/config"
)

// newBreaker builds the circuit breaker guarding the bulk create and bulk
// delete paths (spec §4.7 "bulk circuit breaker"): repeated batch failures trip
// it open so a misbehaving caller stops hammering a database that's
// already failing, and it half-opens after RecoveryTimeoutMS to probe
// whether the underlying fault cleared.
func newBreaker(cfg config.Breaker) *gobreaker.CircuitBreaker {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 3
	}
	timeout := time.Duration(cfg.RecoveryTimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "bulk-ingest",
		Timeout: timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	})
}
