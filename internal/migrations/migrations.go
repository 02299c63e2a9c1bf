package migrations

import (
	"embed"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
)

//go:embed sqlite/*.sql postgres/*.sql
var migrationsFS embed.FS

// Performs all migrations for the database's dialect.
func Run(dbx *sqlx.DB) error {
	var (
		dir        string
		driverName string
		driver     database.Driver
		err        error
	)
	switch dbx.DriverName() {
	case "pgx", "postgres":
		dir, driverName = "postgres", "pgx5"
		driver, err = pgxmigrate.WithInstance(dbx.DB, &pgxmigrate.Config{})
	default:
		dir, driverName = "sqlite", "sqlite3"
		driver, err = sqlite.WithInstance(dbx.DB, &sqlite.Config{})
	}
	if err != nil {
		return fmt.Errorf("error creating %s instance for migration: %s", driverName, err)
	}

	d, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("error creating migrations source: %s", err)
	}
	migrator, err := migrate.NewWithInstance("iofs", d, driverName, driver)
	if err != nil {
		return fmt.Errorf("error creating migrator: %s", err)
	}
	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("error migrating: %s", err)
	}
	slog.Info("migrated", "dialect", dir)

	return nil
}
