package cache

import (
	"github.com/smallbiznis/entitlements/internal/catalog"
	"github.com/smallbiznis/entitlements/internal/clock"
	"github.com/smallbiznis/entitlements/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config  config.Config
	Catalog *catalog.Catalog
	Clock   clock.Clock
	Log     *zap.Logger
}

func ProvideResolutionCache(p Params) ResolutionCache {
	if !p.Config.Cache.Enabled {
		p.Log.Named("cache").Info("resolution cache disabled")
		return NewNopResolutionCache()
	}
	return NewResolutionCache(p.Catalog.Version(), p.Config.Cache.TTL, p.Clock)
}

var Module = fx.Module("cache", fx.Provide(ProvideResolutionCache))
