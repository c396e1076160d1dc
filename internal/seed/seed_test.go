package seed_test

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/entitlements/internal/catalog"
	catalogrepo "github.com/smallbiznis/entitlements/internal/catalog/repository"
	"github.com/smallbiznis/entitlements/internal/dbtest"
	"github.com/smallbiznis/entitlements/internal/seed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncPlans_RetiresRemovedPlans(t *testing.T) {
	db := dbtest.Open(t)
	repo := catalogrepo.Provide()
	ctx := context.Background()
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	def := catalog.DefaultDefinition()
	def.Plans = append(def.Plans, catalog.Plan{
		ID:       "legacy_gold",
		Name:     "Legacy Gold",
		Interval: catalog.IntervalMonth,
		Features: []catalog.FeatureKey{catalog.FeatureProgrammingTracks},
		Limits:   map[catalog.LimitKey]int64{catalog.LimitMaxMembersPerTeam: 30},
	})
	withLegacy, err := catalog.New(def)
	require.NoError(t, err)

	res, err := seed.SyncPlans(ctx, db, repo, withLegacy, now)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Upserted)
	assert.Zero(t, res.Retired)

	later := now.Add(24 * time.Hour)
	res, err = seed.SyncPlans(ctx, db, repo, catalog.Default(), later)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Upserted)
	assert.Equal(t, int64(1), res.Retired)

	legacy, err := repo.FindByID(ctx, db, "legacy_gold")
	require.NoError(t, err)
	require.NotNil(t, legacy, "retired plans are kept")
	require.NotNil(t, legacy.RetiredAt)
	assert.True(t, legacy.RetiredAt.Equal(later))
	assert.Equal(t, int64(30), legacy.Limits.Data()[string(catalog.LimitMaxMembersPerTeam)])

	pro, err := repo.FindByID(ctx, db, string(catalog.PlanPro))
	require.NoError(t, err)
	require.NotNil(t, pro)
	assert.Nil(t, pro.RetiredAt)
	assert.Equal(t, catalog.Default().Version(), pro.CatalogVersion)

	// Re-adding a retired plan revives it.
	_, err = seed.SyncPlans(ctx, db, repo, withLegacy, later.Add(time.Hour))
	require.NoError(t, err)
	legacy, err = repo.FindByID(ctx, db, "legacy_gold")
	require.NoError(t, err)
	assert.Nil(t, legacy.RetiredAt)

	all, err := repo.List(ctx, db)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}
