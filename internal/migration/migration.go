package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	addondomain "github.com/smallbiznis/entitlements/internal/addon/domain"
	catalogrepo "github.com/smallbiznis/entitlements/internal/catalog/repository"
	overridedomain "github.com/smallbiznis/entitlements/internal/override/domain"
	snapshotdomain "github.com/smallbiznis/entitlements/internal/snapshot/domain"
	teamdomain "github.com/smallbiznis/entitlements/internal/team/domain"
	usagedomain "github.com/smallbiznis/entitlements/internal/usage/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// RunMigrations applies the embedded postgres schema. Tables are created
// automatically on startup so a fresh database is usable immediately.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// Models lists every persisted type, in dependency order.
func Models() []any {
	return []any{
		&catalogrepo.PlanRecord{},
		&teamdomain.Team{},
		&teamdomain.TeamSubscription{},
		&snapshotdomain.TeamFeatureEntitlement{},
		&snapshotdomain.TeamLimitEntitlement{},
		&overridedomain.Override{},
		&addondomain.TeamAddon{},
		&usagedomain.TeamUsage{},
	}
}

// AutoMigrate builds the schema from the gorm models. Used for sqlite and
// mysql, where the embedded postgres SQL does not apply.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
