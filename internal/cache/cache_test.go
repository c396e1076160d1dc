package cache

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlements/internal/catalog"
	"github.com/smallbiznis/entitlements/internal/clock"
	"github.com/stretchr/testify/assert"
)

func TestTTLCacheExpiry(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	c := NewTTLCacheWithClock[string, int](clk)

	c.Set("a", 1, time.Second)
	c.Set("b", 2, 0)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	_, ok = c.Get("b")
	assert.False(t, ok, "zero ttl must not store")

	clk.Advance(time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok, "entry expires at exactly ttl")
	assert.Equal(t, 0, c.Len())
}

func TestResolutionCacheInvalidateTeam(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	c := NewResolutionCache("v1", 5*time.Second, clk)
	team := snowflake.ID(10)
	other := snowflake.ID(11)

	c.SetFeature(team, 0, catalog.FeatureHostCompetitions, true, 0)
	c.SetLimit(team, 0, catalog.LimitMaxAdmins, 5, 0)
	c.SetLimit(other, 0, catalog.LimitMaxAdmins, 1, 0)

	granted, ok := c.GetFeature(team, catalog.FeatureHostCompetitions)
	assert.True(t, ok)
	assert.True(t, granted)

	c.InvalidateTeam(team)

	_, ok = c.GetFeature(team, catalog.FeatureHostCompetitions)
	assert.False(t, ok)
	_, ok = c.GetLimit(team, catalog.LimitMaxAdmins)
	assert.False(t, ok)

	v, ok := c.GetLimit(other, catalog.LimitMaxAdmins)
	assert.True(t, ok, "other teams keep their entries")
	assert.Equal(t, int64(1), v)
}

func TestResolutionCacheDropsAnswersFromBeforeInvalidation(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	c := NewResolutionCache("v1", 5*time.Second, clk)
	team := snowflake.ID(12)

	gen := c.Generation(team)
	c.InvalidateTeam(team)
	c.SetLimit(team, gen, catalog.LimitMaxAdmins, 5, 0)

	_, ok := c.GetLimit(team, catalog.LimitMaxAdmins)
	assert.False(t, ok, "an answer resolved before a write is never served after it")

	c.SetLimit(team, c.Generation(team), catalog.LimitMaxAdmins, 7, 0)
	v, ok := c.GetLimit(team, catalog.LimitMaxAdmins)
	assert.True(t, ok)
	assert.Equal(t, int64(7), v)
}

func TestResolutionCacheTTLBound(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	c := NewResolutionCache("v1", 5*time.Second, clk)
	team := snowflake.ID(10)

	c.SetLimit(team, 0, catalog.LimitMaxAdmins, 3, time.Second)
	c.SetLimit(team, 0, catalog.LimitMaxTeams, 1, time.Hour)

	clk.Advance(2 * time.Second)
	_, ok := c.GetLimit(team, catalog.LimitMaxAdmins)
	assert.False(t, ok, "short ttl from an expiring override is honored")
	_, ok = c.GetLimit(team, catalog.LimitMaxTeams)
	assert.True(t, ok)

	clk.Advance(4 * time.Second)
	_, ok = c.GetLimit(team, catalog.LimitMaxTeams)
	assert.False(t, ok, "ttl never exceeds the configured ceiling")
}

func TestResolutionCacheVersionIsolation(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	shared := NewTTLCacheWithClock[string, bool](clk)
	a := &resolutionCache{features: shared, limits: NewTTLCacheWithClock[string, int64](clk), ttl: time.Minute, version: "a", generations: map[snowflake.ID]uint64{}}
	b := &resolutionCache{features: shared, limits: NewTTLCacheWithClock[string, int64](clk), ttl: time.Minute, version: "b", generations: map[snowflake.ID]uint64{}}

	a.SetFeature(1, 0, catalog.FeatureProgramCalendar, true, 0)
	_, ok := b.GetFeature(1, catalog.FeatureProgramCalendar)
	assert.False(t, ok, "a catalog change must not reuse earlier answers")
}

func TestNopResolutionCache(t *testing.T) {
	c := NewNopResolutionCache()
	c.SetFeature(1, 0, catalog.FeatureProgramCalendar, true, time.Minute)
	_, ok := c.GetFeature(1, catalog.FeatureProgramCalendar)
	assert.False(t, ok)
}
