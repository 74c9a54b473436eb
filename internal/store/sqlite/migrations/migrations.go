package migrations

import (
	"database/sql"
	_ "embed"

	"github.com/goran-ethernal/NFTIndexor/internal/db"
	"github.com/goran-ethernal/NFTIndexor/internal/logger"
)

//go:embed 001_entities.sql
var mig001 string

// All returns the entity store migrations in order.
func All() []db.Migration {
	return []db.Migration{
		{
			ID:  "001_entities.sql",
			SQL: mig001,
		},
	}
}

// RunMigrations applies the entity store migrations on an open database.
func RunMigrations(log *logger.Logger, database *sql.DB) error {
	return db.RunMigrationsDB(log, database, All())
}
