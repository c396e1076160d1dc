package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlements/internal/cache"
	"github.com/smallbiznis/entitlements/internal/catalog"
	"github.com/smallbiznis/entitlements/internal/clock"
	"github.com/smallbiznis/entitlements/internal/config"
	obsmetrics "github.com/smallbiznis/entitlements/internal/observability/metrics"
	snapshotdomain "github.com/smallbiznis/entitlements/internal/snapshot/domain"
	teamdomain "github.com/smallbiznis/entitlements/internal/team/domain"
	"github.com/smallbiznis/entitlements/internal/teamlock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Config  config.Config
	Catalog *catalog.Catalog
	Repo    snapshotdomain.Repository
	Teams   teamdomain.Repository
	Plans   teamdomain.PlanSource
	Locker  teamlock.Locker

	Cache   cache.ResolutionCache       `optional:"true"`
	Metrics *obsmetrics.SnapshotMetrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	catalog *catalog.Catalog

	repo   snapshotdomain.Repository
	teams  teamdomain.Repository
	plans  teamdomain.PlanSource
	locker teamlock.Locker

	cache   cache.ResolutionCache
	metrics *obsmetrics.SnapshotMetrics

	workers  int
	pageSize int
}

func NewService(p ServiceParam) snapshotdomain.Service {
	resolutionCache := p.Cache
	if resolutionCache == nil {
		resolutionCache = cache.NewNopResolutionCache()
	}
	workers := p.Config.Snapshot.Workers
	if workers <= 0 {
		workers = 4
	}
	pageSize := p.Config.Snapshot.PageSize
	if pageSize <= 0 {
		pageSize = 200
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("snapshot.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		catalog: p.Catalog,

		repo:   p.Repo,
		teams:  p.Teams,
		plans:  p.Plans,
		locker: p.Locker,

		cache:   resolutionCache,
		metrics: p.Metrics,

		workers:  workers,
		pageSize: pageSize,
	}
}

func (s *Service) SnapshotPlanToTeam(ctx context.Context, teamID snowflake.ID, planID catalog.PlanID) (*snapshotdomain.Result, error) {
	start := time.Now()
	result, err := s.snapshotPlanToTeam(ctx, teamID, planID)
	s.metrics.ObserveRun(obsmetrics.SnapshotModeTeam, time.Since(start), err)
	if err != nil {
		s.log.Warn("snapshot failed",
			zap.Error(err),
			zap.String("team_id", teamID.String()),
			zap.String("plan_id", string(planID)),
		)
		return nil, err
	}
	s.log.Info("snapshot applied",
		zap.String("team_id", teamID.String()),
		zap.String("plan_id", string(planID)),
		zap.Int("features", result.Features),
		zap.Int("limits", result.Limits),
	)
	return result, nil
}

func (s *Service) snapshotPlanToTeam(ctx context.Context, teamID snowflake.ID, planID catalog.PlanID) (*snapshotdomain.Result, error) {
	if teamID == 0 {
		return nil, teamdomain.ErrInvalidTeam
	}
	plan, err := s.catalog.GetPlan(planID)
	if err != nil {
		return nil, err
	}

	waitStart := time.Now()
	unlock, err := s.locker.Lock(ctx, teamID)
	s.metrics.ObserveLockWait(time.Since(waitStart))
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.clock.Now()
	features, limits := s.buildRows(teamID, plan, now)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		team, err := s.teams.FindByID(ctx, tx, teamID)
		if err != nil {
			return err
		}
		if team == nil {
			return teamdomain.ErrTeamNotFound
		}
		if err := s.repo.DeleteByTeam(ctx, tx, teamID); err != nil {
			return err
		}
		if err := s.repo.InsertFeatures(ctx, tx, features); err != nil {
			return err
		}
		return s.repo.InsertLimits(ctx, tx, limits)
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidateTeam(teamID)

	return &snapshotdomain.Result{
		TeamID:     teamID,
		PlanID:     plan.ID,
		Features:   len(features),
		Limits:     len(limits),
		SnapshotAt: now,
	}, nil
}

// buildRows copies the plan's features and limits into team rows. Limits are
// emitted in key order so repeated runs insert identical rows.
func (s *Service) buildRows(teamID snowflake.ID, plan catalog.Plan, now time.Time) ([]snapshotdomain.TeamFeatureEntitlement, []snapshotdomain.TeamLimitEntitlement) {
	planID := string(plan.ID)

	features := make([]snapshotdomain.TeamFeatureEntitlement, 0, len(plan.Features))
	for _, key := range plan.Features {
		features = append(features, snapshotdomain.TeamFeatureEntitlement{
			ID:           s.genID.Generate(),
			TeamID:       teamID,
			FeatureKey:   string(key),
			Source:       snapshotdomain.SourcePlan,
			SourcePlanID: &planID,
			CreatedAt:    now,
		})
	}

	keys := make([]string, 0, len(plan.Limits))
	for key := range plan.Limits {
		keys = append(keys, string(key))
	}
	sort.Strings(keys)

	limits := make([]snapshotdomain.TeamLimitEntitlement, 0, len(keys))
	for _, key := range keys {
		limits = append(limits, snapshotdomain.TeamLimitEntitlement{
			ID:           s.genID.Generate(),
			TeamID:       teamID,
			LimitKey:     key,
			Value:        plan.Limits[catalog.LimitKey(key)],
			Source:       snapshotdomain.SourcePlan,
			SourcePlanID: &planID,
			CreatedAt:    now,
		})
	}
	return features, limits
}

func (s *Service) ResnapshotTeam(ctx context.Context, teamID snowflake.ID) (*snapshotdomain.Result, error) {
	if teamID == 0 {
		return nil, teamdomain.ErrInvalidTeam
	}
	planID, err := s.plans.CurrentPlan(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return s.SnapshotPlanToTeam(ctx, teamID, planID)
}

func (s *Service) GetSnapshot(ctx context.Context, teamID snowflake.ID) (*snapshotdomain.Snapshot, error) {
	if teamID == 0 {
		return nil, teamdomain.ErrInvalidTeam
	}
	team, err := s.teams.FindByID(ctx, s.db, teamID)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, teamdomain.ErrTeamNotFound
	}
	features, err := s.repo.ListFeatures(ctx, s.db, teamID)
	if err != nil {
		return nil, fmt.Errorf("list features: %w", err)
	}
	limits, err := s.repo.ListLimits(ctx, s.db, teamID)
	if err != nil {
		return nil, fmt.Errorf("list limits: %w", err)
	}
	return &snapshotdomain.Snapshot{TeamID: teamID, Features: features, Limits: limits}, nil
}

// recoverPanic turns a panic inside one team's job into that team's error.
func (s *Service) recoverPanic(teamID snowflake.ID, errp *error) {
	if r := recover(); r != nil {
		s.metrics.IncPanic()
		s.log.Error("snapshot panicked",
			zap.String("team_id", teamID.String()),
			zap.Any("panic", r),
		)
		*errp = fmt.Errorf("%w: %v", snapshotdomain.ErrSnapshotPanic, r)
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
