package sqlite

import (
	"database/sql"

	"github.com/OneTrueJASH/Mem100X-sub000/internal/storage/sqlite/migrations"
)

func runMigrations(db *sql.DB) error {
	return migrations.Run(db)
}
