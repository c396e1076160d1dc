package teamlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const keyPrefix = "entitlements:snapshot:team:"

// RedisLocker holds team locks in Redis so snapshot jobs running in several
// processes never interleave for the same team.
type RedisLocker struct {
	client *redis.Client
	script *redis.Script
	cfg    Config
	log    *zap.Logger
}

func NewRedisLocker(client *redis.Client, cfg Config, log *zap.Logger) *RedisLocker {
	if client == nil {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisLocker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
		cfg:    cfg.withDefaults(),
		log:    log.Named("teamlock"),
	}
}

func lockKey(teamID snowflake.ID) string {
	return keyPrefix + teamID.String()
}

// TryLock makes a single SET NX attempt and returns the ownership token.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("lock client not configured")
	}
	if key == "" {
		return "", false, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Release deletes key only if it still holds token.
func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}

func (l *RedisLocker) Lock(ctx context.Context, teamID snowflake.ID) (func(), error) {
	key := lockKey(teamID)

	waitCtx, cancel := context.WithTimeout(ctx, l.cfg.Wait)
	defer cancel()

	ticker := time.NewTicker(l.cfg.RetryInterval)
	defer ticker.Stop()

	for {
		token, ok, err := l.TryLock(waitCtx, key, l.cfg.TTL)
		if err != nil && waitCtx.Err() == nil {
			return nil, fmt.Errorf("acquire team lock: %w", err)
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() {
					releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer cancel()
					if err := l.Release(releaseCtx, key, token); err != nil {
						l.log.Warn("failed to release team lock", zap.Error(err), zap.String("team_id", teamID.String()))
					}
				})
			}, nil
		}

		select {
		case <-waitCtx.Done():
			return nil, fmt.Errorf("%w: team %s: %v", ErrLockTimeout, teamID, waitCtx.Err())
		case <-ticker.C:
		}
	}
}
