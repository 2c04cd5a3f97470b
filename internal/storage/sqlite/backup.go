package sqlite

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/OneTrueJASH/Mem100X-sub000/internal/types"
)

// Backup checkpoints the WAL into the main database file and then copies
// both the database file and its bloom sidecar to destPath/destPath+
// ".cbloom" (spec §4.8 "backup"). The checkpoint ensures the copy sees a
// consistent, fully-merged database rather than a stale base file plus a
// WAL the copy doesn't include.
func (s *Store) Backup(ctx context.Context, destPath string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.writer.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return fmt.Errorf("%w: checkpoint before backup: %v", types.ErrBackupFailed, err)
	}

	// Snapshot the live filter to its sidecar first so the copy reflects
	// the checkpointed database, not whatever was on disk at the last
	// close (spec §4.1: written on close and after successful backups).
	if err := s.bloom.Save(s.bloomPath); err != nil {
		return fmt.Errorf("%w: save bloom sidecar: %v", types.ErrBackupFailed, err)
	}

	token := uuid.NewString()
	if err := copyFile(s.cfg.Storage.DBPath, destPath, token); err != nil {
		return fmt.Errorf("%w: %v", types.ErrBackupFailed, err)
	}
	if err := copyFile(s.bloomPath, destPath+".cbloom", token); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", types.ErrBackupFailed, err)
	}
	return nil
}

// Restore is the inverse of Backup: it copies the backup's database file
// and bloom sidecar over dbPath's. It touches no open Store; the caller
// must close any Store on dbPath first and call New again afterward —
// restoring underneath live handles would leave cached state pointing at
// the old file.
func Restore(dbPath, srcPath string) error {
	token := uuid.NewString()
	if err := copyFile(srcPath, dbPath, token); err != nil {
		return fmt.Errorf("%w: %v", types.ErrRestoreFailed, err)
	}
	if err := copyFile(srcPath+".cbloom", dbPath+".cbloom", token); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", types.ErrRestoreFailed, err)
	}
	return nil
}

// copyFile copies src to a uuid-suffixed temp file alongside dst and
// renames it into place, so a crash mid-copy never leaves a half-written
// destination visible (same atomic-write idiom as
// bloomfilter.Filter.Save) and concurrent backups never collide on the
// same temp path.
func copyFile(src, dst, token string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	tmp := dst + "." + token + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
