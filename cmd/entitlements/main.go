package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlements/internal/addon"
	"github.com/smallbiznis/entitlements/internal/cache"
	"github.com/smallbiznis/entitlements/internal/catalog"
	"github.com/smallbiznis/entitlements/internal/clock"
	"github.com/smallbiznis/entitlements/internal/config"
	"github.com/smallbiznis/entitlements/internal/entitlement"
	"github.com/smallbiznis/entitlements/internal/migration"
	"github.com/smallbiznis/entitlements/internal/observability"
	"github.com/smallbiznis/entitlements/internal/override"
	"github.com/smallbiznis/entitlements/internal/scheduler"
	"github.com/smallbiznis/entitlements/internal/server"
	"github.com/smallbiznis/entitlements/internal/snapshot"
	"github.com/smallbiznis/entitlements/internal/team"
	"github.com/smallbiznis/entitlements/internal/teamlock"
	"github.com/smallbiznis/entitlements/internal/usage"
	"github.com/smallbiznis/entitlements/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		catalog.Module,
		cache.Module,
		teamlock.Module,
		migration.Module,

		// Functional Domains
		team.Module,
		snapshot.Module,
		override.Module,
		addon.Module,
		usage.Module,
		entitlement.Module,

		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
