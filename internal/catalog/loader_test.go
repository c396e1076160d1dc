package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalogYAML = `
catalog:
  features:
    - key: programming_tracks
      name: Programming tracks
    - key: host_competitions
      name: Host competitions
  limits:
    - key: max_members_per_team
      name: Members
      reset_period: never
    - key: ai_messages_per_month
      name: AI messages
      reset_period: monthly
  plans:
    - id: free
      name: Free
      features: [programming_tracks]
      limits:
        max_members_per_team: 5
        ai_messages_per_month: 0
    - id: club
      name: Club
      price_cents: 2500
      interval: month
      features: [programming_tracks, host_competitions]
      limits:
        max_members_per_team: -1
        ai_messages_per_month: 100
  addons:
    - id: ai_boost
      name: AI boost
      limits:
        ai_messages_per_month: 250
`

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yml")
	require.NoError(t, os.WriteFile(path, []byte(testCatalogYAML), 0o600))

	c, err := Load(path)
	require.NoError(t, err)

	club, err := c.GetPlan("club")
	require.NoError(t, err)
	assert.Equal(t, int64(2500), club.PriceCents)
	assert.Equal(t, IntervalMonth, club.Interval)
	assert.True(t, club.HasFeature(FeatureHostCompetitions))
	assert.True(t, IsUnlimited(club.Limits[LimitMaxMembersPerTeam]))
	assert.Equal(t, ResetMonthly, c.GetLimit(LimitAIMessagesPerMonth).ResetPeriod)

	boost, err := c.GetAddon(AddonAIBoost)
	require.NoError(t, err)
	assert.Equal(t, int64(250), boost.Limits[LimitAIMessagesPerMonth])

	assert.NotEqual(t, Default().Version(), c.Version())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}

func TestLoadFallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Version(), c.Version())
}
