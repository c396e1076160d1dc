package cache

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlements/internal/catalog"
	"github.com/smallbiznis/entitlements/internal/clock"
)

const defaultResolutionTTL = 5 * time.Second

// ResolutionCache stores resolved feature and limit answers for the hot
// read path. Entries are keyed by the team's invalidation generation and the
// catalog version, so any write that bumps the generation makes every earlier
// answer for that team unreachable.
//
// Callers read Generation before resolving and pass it to Set*: an answer
// computed across an invalidation is stored under the old generation and is
// never served.
type ResolutionCache interface {
	Generation(teamID snowflake.ID) uint64
	GetFeature(teamID snowflake.ID, key catalog.FeatureKey) (bool, bool)
	// SetFeature stores an answer for at most ttl; ttl <= 0 uses the default.
	SetFeature(teamID snowflake.ID, gen uint64, key catalog.FeatureKey, granted bool, ttl time.Duration)
	GetLimit(teamID snowflake.ID, key catalog.LimitKey) (int64, bool)
	SetLimit(teamID snowflake.ID, gen uint64, key catalog.LimitKey, value int64, ttl time.Duration)
	InvalidateTeam(teamID snowflake.ID)
}

type resolutionCache struct {
	features Cache[string, bool]
	limits   Cache[string, int64]
	ttl      time.Duration
	version  string

	mu          sync.RWMutex
	generations map[snowflake.ID]uint64
}

// NewResolutionCache returns an in-memory cache scoped to one catalog version.
func NewResolutionCache(catalogVersion string, ttl time.Duration, clk clock.Clock) ResolutionCache {
	if ttl <= 0 {
		ttl = defaultResolutionTTL
	}
	return &resolutionCache{
		features:    NewTTLCacheWithClock[string, bool](clk),
		limits:      NewTTLCacheWithClock[string, int64](clk),
		ttl:         ttl,
		version:     catalogVersion,
		generations: make(map[snowflake.ID]uint64),
	}
}

func (c *resolutionCache) Generation(teamID snowflake.ID) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generations[teamID]
}

func (c *resolutionCache) GetFeature(teamID snowflake.ID, key catalog.FeatureKey) (bool, bool) {
	return c.features.Get(c.key(teamID, c.Generation(teamID), "feature", string(key)))
}

func (c *resolutionCache) SetFeature(teamID snowflake.ID, gen uint64, key catalog.FeatureKey, granted bool, ttl time.Duration) {
	c.features.Set(c.key(teamID, gen, "feature", string(key)), granted, c.boundTTL(ttl))
}

func (c *resolutionCache) GetLimit(teamID snowflake.ID, key catalog.LimitKey) (int64, bool) {
	return c.limits.Get(c.key(teamID, c.Generation(teamID), "limit", string(key)))
}

func (c *resolutionCache) SetLimit(teamID snowflake.ID, gen uint64, key catalog.LimitKey, value int64, ttl time.Duration) {
	c.limits.Set(c.key(teamID, gen, "limit", string(key)), value, c.boundTTL(ttl))
}

func (c *resolutionCache) InvalidateTeam(teamID snowflake.ID) {
	c.mu.Lock()
	c.generations[teamID]++
	c.mu.Unlock()
}

func (c *resolutionCache) boundTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > c.ttl {
		return c.ttl
	}
	return ttl
}

func (c *resolutionCache) key(teamID snowflake.ID, gen uint64, kind, name string) string {
	return cacheKey(teamID.String(), strconv.FormatUint(gen, 10), kind, name, c.version)
}

type nopResolutionCache struct{}

// NewNopResolutionCache returns a cache that never stores anything.
func NewNopResolutionCache() ResolutionCache { return nopResolutionCache{} }

func (nopResolutionCache) Generation(snowflake.ID) uint64 { return 0 }
func (nopResolutionCache) GetFeature(snowflake.ID, catalog.FeatureKey) (bool, bool) {
	return false, false
}
func (nopResolutionCache) SetFeature(snowflake.ID, uint64, catalog.FeatureKey, bool, time.Duration) {}
func (nopResolutionCache) GetLimit(snowflake.ID, catalog.LimitKey) (int64, bool)                    { return 0, false }
func (nopResolutionCache) SetLimit(snowflake.ID, uint64, catalog.LimitKey, int64, time.Duration)    {}
func (nopResolutionCache) InvalidateTeam(snowflake.ID)                                              {}

func cacheKey(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, strings.ToLower(trimmed))
	}
	return strings.Join(values, "|")
}
