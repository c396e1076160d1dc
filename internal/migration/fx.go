package migration

import (
	"context"
	"strings"

	"github.com/smallbiznis/entitlements/internal/catalog"
	"github.com/smallbiznis/entitlements/internal/config"
	"github.com/smallbiznis/entitlements/internal/seed"
	dbpkg "github.com/smallbiznis/entitlements/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, cat *catalog.Catalog, log *zap.Logger) error {
		if cfg.DBAutoMigrate {
			if err := applySchema(conn, cfg); err != nil {
				return err
			}
		}
		return seed.EnsurePlans(context.Background(), conn, cat, log)
	}),
)

// applySchema runs the embedded SQL on postgres and gorm AutoMigrate elsewhere.
func applySchema(conn *gorm.DB, cfg config.Config) error {
	if strings.EqualFold(strings.TrimSpace(cfg.DBType), dbpkg.TypePostgres) {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}
	return AutoMigrate(conn)
}
