package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/OneTrueJASH/Mem100X-sub000/internal/types"
)

// manualTx returns the manual transaction started by BeginTransaction,
// or nil when none is active. Write paths consult it so statements issued
// between begin and commit actually join the caller's transaction instead
// of running autocommit on the writer handle (and instead of deadlocking
// on writeMu, which BeginTransaction holds for the transaction's whole
// lifetime).
func (s *Store) manualTx() *sql.Tx {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.activeTx
}

// execWrite runs a single write statement: on the active manual
// transaction when one is open, otherwise on the writer handle under
// writeMu with busy retry.
func (s *Store) execWrite(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if tx := s.manualTx(); tx != nil {
		return tx.ExecContext(ctx, query, args...)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	var res sql.Result
	err := s.withBusyRetry(ctx, func() error {
		var execErr error
		res, execErr = s.writer.ExecContext(ctx, query, args...)
		return execErr
	})
	return res, err
}

// withTx runs fn inside a single write transaction and commits on
// success or rolls back on any error, including a panic recovered and
// re-raised after rollback. Writes are serialized by writeMu, matching
// spec §5 ("at most one write transaction is in flight at any time").
//
// When a manual transaction is active, fn joins it instead: no commit,
// no rollback — the atomic unit is the caller's, ended by
// CommitTransaction or RollbackTransaction. Cache entries written inside
// a joined closure may briefly reflect uncommitted state; rollback clears
// both caches wholesale, which is what makes that safe (spec §9).
//
// This is the closure-scoped transaction path (spec §9 Open Questions):
// it does NOT clear caches on commit, because the closure knows exactly
// which keys it touched and is expected to invalidate them itself before
// returning. Contrast with BeginTransaction/Commit/Rollback below, which
// clear both caches wholesale because the caller's intervening statements
// are opaque to the engine.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	if tx := s.manualTx(); tx != nil {
		return fn(tx)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var tx *sql.Tx
	if beginErr := s.withBusyRetry(ctx, func() error {
		var txErr error
		tx, txErr = s.writer.BeginTx(ctx, nil)
		return txErr
	}); beginErr != nil {
		return fmt.Errorf("sqlite: begin transaction: %w", beginErr)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if commitErr := s.withBusyRetry(ctx, tx.Commit); commitErr != nil {
		return fmt.Errorf("sqlite: commit transaction: %w", commitErr)
	}
	return nil
}

// BeginTransaction starts a manual transaction exposed through the core
// facade (spec §4.9). Nesting is rejected with
// types.ErrTransactionAlreadyActive (spec §4.8).
func (s *Store) BeginTransaction(ctx context.Context) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if s.activeTx != nil {
		return types.ErrTransactionAlreadyActive
	}

	s.writeMu.Lock()
	var tx *sql.Tx
	err := s.withBusyRetry(ctx, func() error {
		var txErr error
		tx, txErr = s.writer.BeginTx(ctx, nil)
		return txErr
	})
	if err != nil {
		s.writeMu.Unlock()
		return fmt.Errorf("sqlite: begin manual transaction: %w", err)
	}
	s.activeTx = tx
	return nil
}

// CommitTransaction commits the manual transaction started by
// BeginTransaction. Per spec §9, manual transactions clear both caches
// wholesale on commit: the statements that ran inside are opaque to the
// engine, so surgical invalidation isn't possible the way it is for the
// closure-scoped path.
func (s *Store) CommitTransaction(ctx context.Context) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if s.activeTx == nil {
		return types.ErrNoActiveTransaction
	}

	err := s.withBusyRetry(ctx, s.activeTx.Commit)
	s.activeTx = nil
	s.writeMu.Unlock()

	s.entityCache.Clear()
	s.searchCache.Clear()

	if err != nil {
		return fmt.Errorf("sqlite: commit manual transaction: %w", err)
	}
	return nil
}

// RollbackTransaction aborts the manual transaction started by
// BeginTransaction, also clearing both caches wholesale (spec §9).
func (s *Store) RollbackTransaction(_ context.Context) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if s.activeTx == nil {
		return types.ErrNoActiveTransaction
	}

	err := s.activeTx.Rollback()
	s.activeTx = nil
	s.writeMu.Unlock()

	s.entityCache.Clear()
	s.searchCache.Clear()

	if err != nil {
		return fmt.Errorf("sqlite: rollback manual transaction: %w", err)
	}
	return nil
}

// clearSearchCacheDeferred marks the search cache for clearing (spec
// §4.7). flushDeferredSearchCacheClear performs the actual clear. Every
// caller flushes right after marking, so the clear happens within the
// same call; nothing is coalesced across calls.
func (s *Store) clearSearchCacheDeferred() {
	s.searchCacheClearMu.Lock()
	s.searchCacheClearPending = true
	s.searchCacheClearMu.Unlock()
}

func (s *Store) flushDeferredSearchCacheClear() {
	s.searchCacheClearMu.Lock()
	pending := s.searchCacheClearPending
	s.searchCacheClearPending = false
	s.searchCacheClearMu.Unlock()

	if pending {
		s.searchCache.Clear()
	}
}
