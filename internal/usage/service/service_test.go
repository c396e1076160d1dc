package service

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlements/internal/catalog"
	"github.com/smallbiznis/entitlements/internal/clock"
	"github.com/smallbiznis/entitlements/internal/dbtest"
	usagedomain "github.com/smallbiznis/entitlements/internal/usage/domain"
	"github.com/smallbiznis/entitlements/internal/usage/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (usagedomain.Service, *clock.FakeClock) {
	t.Helper()
	node, err := snowflake.NewNode(4)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC))
	return NewService(ServiceParam{
		DB:      dbtest.Open(t),
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clk,
		Catalog: catalog.Default(),
		Repo:    repository.Provide(),
	}), clk
}

func consume(teamID snowflake.ID, key catalog.LimitKey, amount, limit int64, now time.Time) usagedomain.ConsumeRequest {
	return usagedomain.ConsumeRequest{TeamID: teamID, LimitKey: key, Amount: amount, Limit: limit, Now: now}
}

func TestGetOrCreateUsagePeriod(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()
	teamID := snowflake.ID(500)

	first, err := svc.GetOrCreateUsagePeriod(ctx, teamID, catalog.LimitAIMessagesPerMonth, clk.Now())
	require.NoError(t, err)
	assert.Zero(t, first.CurrentValue)
	assert.Equal(t, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), first.PeriodStart.UTC())
	require.NotNil(t, first.PeriodEnd)

	again, err := svc.GetOrCreateUsagePeriod(ctx, teamID, catalog.LimitAIMessagesPerMonth, clk.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	never, err := svc.GetOrCreateUsagePeriod(ctx, teamID, catalog.LimitMaxMembersPerTeam, clk.Now())
	require.NoError(t, err)
	assert.Nil(t, never.PeriodEnd)
	assert.Equal(t, usagedomain.NeverResetStart, never.PeriodStart.UTC())
}

func TestConsume_StopsAtLimit(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()
	teamID := snowflake.ID(501)

	for i := int64(1); i <= 5; i++ {
		res, err := svc.Consume(ctx, consume(teamID, catalog.LimitMaxMembersPerTeam, 1, 5, clk.Now()))
		require.NoError(t, err)
		assert.True(t, res.OK)
		assert.Equal(t, i, res.NewValue)
		assert.Equal(t, int64(5), res.Limit)
	}

	res, err := svc.Consume(ctx, consume(teamID, catalog.LimitMaxMembersPerTeam, 1, 5, clk.Now()))
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, int64(5), res.NewValue)

	used, err := svc.CurrentUsage(ctx, teamID, catalog.LimitMaxMembersPerTeam, clk.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(5), used)
}

func TestConsume_ZeroLimit(t *testing.T) {
	svc, clk := newTestService(t)

	res, err := svc.Consume(context.Background(), consume(502, catalog.LimitMaxCompetitionsPerYear, 1, 0, clk.Now()))
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Zero(t, res.NewValue)
}

func TestConsume_Unlimited(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	res, err := svc.Consume(ctx, consume(503, catalog.LimitMaxProgrammingTracks, 1000, catalog.Unlimited, clk.Now()))
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, int64(1000), res.NewValue)
	assert.Equal(t, catalog.Unlimited, res.Limit)
}

func TestConsume_MultiUnitDoesNotOvershoot(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	res, err := svc.Consume(ctx, consume(504, catalog.LimitAIMessagesPerMonth, 150, 200, clk.Now()))
	require.NoError(t, err)
	require.True(t, res.OK)

	res, err = svc.Consume(ctx, consume(504, catalog.LimitAIMessagesPerMonth, 60, 200, clk.Now()))
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, int64(150), res.NewValue)

	res, err = svc.Consume(ctx, consume(504, catalog.LimitAIMessagesPerMonth, 50, 200, clk.Now()))
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, int64(200), res.NewValue)
}

func TestConsume_HugeAmountIsRejectedNotConflict(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()
	teamID := snowflake.ID(510)

	res, err := svc.Consume(ctx, consume(teamID, catalog.LimitMaxAdmins, 1, 10, clk.Now()))
	require.NoError(t, err)
	require.True(t, res.OK)

	res, err = svc.Consume(ctx, consume(teamID, catalog.LimitMaxAdmins, math.MaxInt64, 10, clk.Now()))
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, int64(1), res.NewValue)
}

func TestConsume_RollsOverElapsedWindow(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()
	teamID := snowflake.ID(505)

	res, err := svc.Consume(ctx, consume(teamID, catalog.LimitAIMessagesPerMonth, 200, 200, clk.Now()))
	require.NoError(t, err)
	require.True(t, res.OK)

	res, err = svc.Consume(ctx, consume(teamID, catalog.LimitAIMessagesPerMonth, 1, 200, clk.Now()))
	require.NoError(t, err)
	assert.False(t, res.OK)

	nextMonth := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	res, err = svc.Consume(ctx, consume(teamID, catalog.LimitAIMessagesPerMonth, 1, 200, nextMonth))
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, int64(1), res.NewValue)

	history, err := svc.ListUsage(ctx, teamID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(1), history[0].CurrentValue)
	assert.Equal(t, int64(200), history[1].CurrentValue)
}

func TestConsume_ConcurrentBoundary(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()
	teamID := snowflake.ID(506)

	res, err := svc.Consume(ctx, consume(teamID, catalog.LimitMaxMembersPerTeam, 9, 10, clk.Now()))
	require.NoError(t, err)
	require.True(t, res.OK)

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
		denied  int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Consume(ctx, consume(teamID, catalog.LimitMaxMembersPerTeam, 1, 10, clk.Now()))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if res.OK {
				granted++
			} else {
				denied++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, granted)
	assert.Equal(t, callers-1, denied)

	used, err := svc.CurrentUsage(ctx, teamID, catalog.LimitMaxMembersPerTeam, clk.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(10), used)
}

func TestConsume_Validation(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	_, err := svc.Consume(ctx, consume(507, catalog.LimitMaxAdmins, 0, 5, clk.Now()))
	assert.ErrorIs(t, err, usagedomain.ErrInvalidAmount)

	_, err = svc.Consume(ctx, consume(507, catalog.LimitMaxAdmins, -3, 5, clk.Now()))
	assert.ErrorIs(t, err, usagedomain.ErrInvalidAmount)

	_, err = svc.Consume(ctx, consume(0, catalog.LimitMaxAdmins, 1, 5, clk.Now()))
	assert.ErrorIs(t, err, usagedomain.ErrInvalidTeam)

	_, err = svc.Consume(ctx, consume(507, catalog.LimitMaxAdmins, 1, -7, clk.Now()))
	assert.ErrorIs(t, err, usagedomain.ErrInvalidLimit)

	assert.Panics(t, func() {
		_, _ = svc.Consume(ctx, consume(507, "max_spaceships", 1, 5, clk.Now()))
	})
}

func TestRelease(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()
	teamID := snowflake.ID(508)

	_, err := svc.Consume(ctx, consume(teamID, catalog.LimitMaxAdmins, 3, 5, clk.Now()))
	require.NoError(t, err)

	usage, err := svc.Release(ctx, usagedomain.ReleaseRequest{TeamID: teamID, LimitKey: catalog.LimitMaxAdmins, Amount: 2, Now: clk.Now()})
	require.NoError(t, err)
	assert.Equal(t, int64(1), usage.CurrentValue)

	usage, err = svc.Release(ctx, usagedomain.ReleaseRequest{TeamID: teamID, LimitKey: catalog.LimitMaxAdmins, Amount: 10, Now: clk.Now()})
	require.NoError(t, err)
	assert.Zero(t, usage.CurrentValue)
}

func TestCurrentUsageDoesNotCreateRows(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	used, err := svc.CurrentUsage(ctx, 509, catalog.LimitAIMessagesPerMonth, clk.Now())
	require.NoError(t, err)
	assert.Zero(t, used)

	history, err := svc.ListUsage(ctx, 509)
	require.NoError(t, err)
	assert.Empty(t, history)
}
