package migrations

import (
	"database/sql"
	_ "embed"

	"github.com/goran-ethernal/NFTIndexor/internal/db"
	"github.com/goran-ethernal/NFTIndexor/internal/logger"
)

//go:embed 001_sync_state.sql
var mig001 string

// RunMigrations applies the checkpoint database migrations.
func RunMigrations(log *logger.Logger, database *sql.DB) error {
	migrations := []db.Migration{
		{
			ID:  "001_sync_state.sql",
			SQL: mig001,
		},
	}

	return db.RunMigrationsDB(log, database, migrations)
}
