package teamlock

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/entitlements/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
}

// Provide picks the Redis locker when REDIS_ADDR is set and the in-process
// locker otherwise.
func Provide(p Params) Locker {
	cfg := Config{
		TTL:  p.Config.Snapshot.LockTTL,
		Wait: p.Config.Snapshot.LockWait,
	}
	log := p.Log.Named("teamlock")

	if !p.Config.Redis.Enabled() {
		log.Info("using in-process team lock")
		return NewLocalLocker(cfg)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     p.Config.Redis.Addr,
		Password: p.Config.Redis.Password,
		DB:       p.Config.Redis.DB,
	})
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	log.Info("using redis team lock", zap.String("addr", p.Config.Redis.Addr))
	return NewRedisLocker(client, cfg, p.Log)
}

var Module = fx.Module("teamlock", fx.Provide(Provide))
