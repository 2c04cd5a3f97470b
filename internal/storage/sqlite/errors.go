package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/OneTrueJASH/Mem100X-sub000/internal/types"
)

// wrapDBError wraps a database error with operation context, converting
// sql.ErrNoRows to types.ErrEntityNotFound for consistent error handling
// across the package (teacher idiom: internal/storage/sqlite/errors.go).
func wrapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, types.ErrEntityNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isUniqueConstraintErr reports whether err is a SQLite UNIQUE constraint
// violation, used to decide whether the single-entity fast path should
// restart under an upsert (spec §4.7).
func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	// modernc.org/sqlite surfaces constraint violations as a plain string
	// error rather than a typed sentinel; matching on the SQLite message
	// is the idiom the driver itself recommends.
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed: UNIQUE")
}
