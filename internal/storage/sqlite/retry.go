package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// isBusyErr reports whether err is SQLite's SQLITE_BUSY/"database is
// locked" condition — the one transient error busy_timeout doesn't fully
// absorb on its own, since the pragma only bounds a single statement's
// wait inside the driver, not a retry across separate calls on the
// writer handle (e.g. BeginTx racing a checkpoint, or Commit racing
// another process holding the file lock).
func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// withBusyRetry runs fn, retrying with exponential backoff while it keeps
// failing with SQLITE_BUSY, bounded by cfg.Storage.BusyTimeoutMS so a
// genuinely stuck writer fails the call instead of retrying forever (spec
// §2 ambient stack: "busy-retry around SQLITE_BUSY on the writer
// handle"). Any other error is not retried.
func (s *Store) withBusyRetry(ctx context.Context, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Millisecond
	bo.MaxInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = time.Duration(s.cfg.Storage.BusyTimeoutMS) * time.Millisecond

	return backoff.Retry(func() error {
		if err := fn(); err != nil {
			if isBusyErr(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(bo, ctx))
}
