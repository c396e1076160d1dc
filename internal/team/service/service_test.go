package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlements/internal/catalog"
	"github.com/smallbiznis/entitlements/internal/clock"
	"github.com/smallbiznis/entitlements/internal/dbtest"
	snapshotdomain "github.com/smallbiznis/entitlements/internal/snapshot/domain"
	teamdomain "github.com/smallbiznis/entitlements/internal/team/domain"
	"github.com/smallbiznis/entitlements/internal/team/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type snapshotCall struct {
	teamID snowflake.ID
	planID catalog.PlanID
}

type recordingSnapshots struct {
	calls []snapshotCall
	err   error
}

func (r *recordingSnapshots) SnapshotPlanToTeam(ctx context.Context, teamID snowflake.ID, planID catalog.PlanID) (*snapshotdomain.Result, error) {
	r.calls = append(r.calls, snapshotCall{teamID: teamID, planID: planID})
	if r.err != nil {
		return nil, r.err
	}
	return &snapshotdomain.Result{TeamID: teamID, PlanID: planID}, nil
}

func (r *recordingSnapshots) ResnapshotTeam(ctx context.Context, teamID snowflake.ID) (*snapshotdomain.Result, error) {
	return nil, errors.New("not used")
}

func (r *recordingSnapshots) SnapshotAllTeams(ctx context.Context) (*snapshotdomain.Report, error) {
	return nil, errors.New("not used")
}

func (r *recordingSnapshots) GetSnapshot(ctx context.Context, teamID snowflake.ID) (*snapshotdomain.Snapshot, error) {
	return nil, errors.New("not used")
}

type teamFixture struct {
	db        *gorm.DB
	clock     *clock.FakeClock
	repo      teamdomain.Repository
	snapshots *recordingSnapshots
	svc       teamdomain.Service
}

func newTeamFixture(t *testing.T) *teamFixture {
	t.Helper()
	db := dbtest.Open(t)
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	f := &teamFixture{
		db:        db,
		clock:     clock.NewFakeClock(time.Date(2025, 2, 10, 8, 0, 0, 0, time.UTC)),
		repo:      repository.Provide(),
		snapshots: &recordingSnapshots{},
	}
	f.svc = NewService(ServiceParam{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     f.clock,
		Catalog:   catalog.Default(),
		Repo:      f.repo,
		Snapshots: f.snapshots,
	})
	return f
}

func TestCreate_DefaultsToFreeAndSnapshots(t *testing.T) {
	f := newTeamFixture(t)
	ctx := context.Background()

	team, err := f.svc.Create(ctx, teamdomain.CreateRequest{Name: "  CrossFit Ubud "})
	require.NoError(t, err)
	assert.Equal(t, "CrossFit Ubud", team.Name)
	assert.Equal(t, catalog.PlanFree, team.PlanID())

	require.Len(t, f.snapshots.calls, 1)
	assert.Equal(t, snapshotCall{teamID: team.ID, planID: catalog.PlanFree}, f.snapshots.calls[0])

	sub, err := f.repo.FindOpenSubscription(ctx, f.db, team.ID)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "free", sub.PlanID)
	assert.Nil(t, sub.CurrentPeriodEnd, "free plans never renew")
}

func TestCreate_Validation(t *testing.T) {
	f := newTeamFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, teamdomain.CreateRequest{Name: " "})
	assert.ErrorIs(t, err, teamdomain.ErrInvalidName)

	_, err = f.svc.Create(ctx, teamdomain.CreateRequest{Name: "Box", PlanID: "platinum"})
	assert.ErrorIs(t, err, catalog.ErrPlanNotFound)
	assert.Empty(t, f.snapshots.calls)
}

func TestSubscribe_ReplacesOpenSubscription(t *testing.T) {
	f := newTeamFixture(t)
	ctx := context.Background()

	team, err := f.svc.Create(ctx, teamdomain.CreateRequest{Name: "Box"})
	require.NoError(t, err)
	first, err := f.repo.FindOpenSubscription(ctx, f.db, team.ID)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	sub, err := f.svc.Subscribe(ctx, teamdomain.SubscribeRequest{TeamID: team.ID, PlanID: catalog.PlanPro, ExternalRef: "sub_123"})
	require.NoError(t, err)
	assert.Equal(t, "pro", sub.PlanID)
	require.NotNil(t, sub.ExternalRef)
	assert.Equal(t, "sub_123", *sub.ExternalRef)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.True(t, sub.CurrentPeriodEnd.Equal(f.clock.Now().AddDate(0, 1, 0)))

	open, err := f.repo.FindOpenSubscription(ctx, f.db, team.ID)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, sub.ID, open.ID)
	assert.NotEqual(t, first.ID, open.ID)

	got, err := f.svc.Get(ctx, team.ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.PlanPro, got.PlanID())

	require.Len(t, f.snapshots.calls, 2)
	assert.Equal(t, catalog.PlanPro, f.snapshots.calls[1].planID)
}

func TestSubscribe_SnapshotFailureKeepsSubscription(t *testing.T) {
	f := newTeamFixture(t)
	ctx := context.Background()

	team, err := f.svc.Create(ctx, teamdomain.CreateRequest{Name: "Box"})
	require.NoError(t, err)

	f.snapshots.err = errors.New("lock busy")
	sub, err := f.svc.Subscribe(ctx, teamdomain.SubscribeRequest{TeamID: team.ID, PlanID: catalog.PlanEnterprise})
	require.Error(t, err)
	require.NotNil(t, sub)

	got, err := f.svc.Get(ctx, team.ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.PlanEnterprise, got.PlanID())
}

func TestSubscribe_UnknownTeam(t *testing.T) {
	f := newTeamFixture(t)

	_, err := f.svc.Subscribe(context.Background(), teamdomain.SubscribeRequest{TeamID: 99, PlanID: catalog.PlanPro})
	assert.ErrorIs(t, err, teamdomain.ErrTeamNotFound)
	assert.Empty(t, f.snapshots.calls)
}

func TestCancel_DowngradesToDefaultPlan(t *testing.T) {
	f := newTeamFixture(t)
	ctx := context.Background()

	team, err := f.svc.Create(ctx, teamdomain.CreateRequest{Name: "Box", PlanID: "pro"})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, team.ID)
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, team.ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.DefaultPlanID, got.PlanID())
}

func TestList_Paginates(t *testing.T) {
	f := newTeamFixture(t)
	ctx := context.Background()

	var ids []snowflake.ID
	for _, name := range []string{"A", "B", "C"} {
		team, err := f.svc.Create(ctx, teamdomain.CreateRequest{Name: name})
		require.NoError(t, err)
		ids = append(ids, team.ID)
	}

	page, err := f.svc.List(ctx, teamdomain.ListRequest{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page.Teams, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, ids[0], page.Teams[0].ID)

	page, err = f.svc.List(ctx, teamdomain.ListRequest{PageSize: 2, PageToken: page.NextPageToken})
	require.NoError(t, err)
	require.Len(t, page.Teams, 1)
	assert.False(t, page.HasMore)
	assert.Equal(t, ids[2], page.Teams[0].ID)

	_, err = f.svc.List(ctx, teamdomain.ListRequest{PageToken: "%%%"})
	assert.ErrorIs(t, err, teamdomain.ErrInvalidPageToken)
}

func TestPlanSource(t *testing.T) {
	f := newTeamFixture(t)
	ctx := context.Background()
	src := NewPlanSource(f.db, f.repo)

	now := f.clock.Now()
	bare := &teamdomain.Team{ID: 5, Name: "No plan", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, f.repo.Insert(ctx, f.db, bare))

	plan, err := src.CurrentPlan(ctx, bare.ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.DefaultPlanID, plan, "unset plan falls back to free")

	_, err = src.CurrentPlan(ctx, 6)
	assert.ErrorIs(t, err, teamdomain.ErrTeamNotFound)
}
