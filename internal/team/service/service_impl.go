package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlements/internal/catalog"
	"github.com/smallbiznis/entitlements/internal/clock"
	snapshotdomain "github.com/smallbiznis/entitlements/internal/snapshot/domain"
	teamdomain "github.com/smallbiznis/entitlements/internal/team/domain"
	"github.com/smallbiznis/entitlements/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Catalog   *catalog.Catalog
	Repo      teamdomain.Repository
	Snapshots snapshotdomain.Service
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	catalog   *catalog.Catalog
	repo      teamdomain.Repository
	snapshots snapshotdomain.Service
}

func NewService(p ServiceParam) teamdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("team.service"),
		genID: p.GenID,
		clock: p.Clock,

		catalog:   p.Catalog,
		repo:      p.Repo,
		snapshots: p.Snapshots,
	}
}

func (s *Service) Create(ctx context.Context, req teamdomain.CreateRequest) (*teamdomain.Team, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, teamdomain.ErrInvalidName
	}
	planID := catalog.PlanID(strings.TrimSpace(req.PlanID))
	if planID == "" {
		planID = catalog.DefaultPlanID
	}
	plan, err := s.catalog.GetPlan(planID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	planIDStr := string(plan.ID)
	team := &teamdomain.Team{
		ID:            s.genID.Generate(),
		Name:          name,
		CurrentPlanID: &planIDStr,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, team); err != nil {
			return err
		}
		_, err := s.recordSubscription(ctx, tx, team.ID, plan, "")
		return err
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.snapshots.SnapshotPlanToTeam(ctx, team.ID, plan.ID); err != nil {
		s.log.Error("snapshot after team creation failed",
			zap.Error(err),
			zap.String("team_id", team.ID.String()),
			zap.String("plan_id", string(plan.ID)),
		)
		return team, fmt.Errorf("snapshot plan %s: %w", plan.ID, err)
	}

	s.log.Info("team created", zap.String("team_id", team.ID.String()), zap.String("plan_id", string(plan.ID)))
	return team, nil
}

func (s *Service) Get(ctx context.Context, teamID snowflake.ID) (*teamdomain.Team, error) {
	if teamID == 0 {
		return nil, teamdomain.ErrInvalidTeam
	}
	team, err := s.repo.FindByID(ctx, s.db, teamID)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, teamdomain.ErrTeamNotFound
	}
	return team, nil
}

func (s *Service) List(ctx context.Context, req teamdomain.ListRequest) (teamdomain.ListResponse, error) {
	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}.Normalize()

	var afterID snowflake.ID
	if token := strings.TrimSpace(page.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return teamdomain.ListResponse{}, teamdomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return teamdomain.ListResponse{}, teamdomain.ErrInvalidPageToken
		}
		afterID = id
	}

	items, err := s.repo.ListAfter(ctx, s.db, afterID, page.PageSize+1)
	if err != nil {
		return teamdomain.ListResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, page.PageSize, func(team *teamdomain.Team) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: team.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})

	return teamdomain.ListResponse{PageInfo: *pageInfo, Teams: items}, nil
}

func (s *Service) Subscribe(ctx context.Context, req teamdomain.SubscribeRequest) (*teamdomain.TeamSubscription, error) {
	if req.TeamID == 0 {
		return nil, teamdomain.ErrInvalidTeam
	}
	plan, err := s.catalog.GetPlan(req.PlanID)
	if err != nil {
		return nil, err
	}

	var sub *teamdomain.TeamSubscription
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		team, err := s.repo.FindByID(ctx, tx, req.TeamID)
		if err != nil {
			return err
		}
		if team == nil {
			return teamdomain.ErrTeamNotFound
		}
		sub, err = s.recordSubscription(ctx, tx, team.ID, plan, req.ExternalRef)
		return err
	})
	if err != nil {
		return nil, err
	}

	// The subscription is committed even if the snapshot fails; the next
	// batch run reconciles the team from current_plan_id.
	if _, err := s.snapshots.SnapshotPlanToTeam(ctx, req.TeamID, plan.ID); err != nil {
		s.log.Error("snapshot after subscription change failed",
			zap.Error(err),
			zap.String("team_id", req.TeamID.String()),
			zap.String("plan_id", string(plan.ID)),
		)
		return sub, fmt.Errorf("snapshot plan %s: %w", plan.ID, err)
	}

	s.log.Info("team subscribed",
		zap.String("team_id", req.TeamID.String()),
		zap.String("plan_id", string(plan.ID)),
	)
	return sub, nil
}

// Cancel downgrades the team to the default plan.
func (s *Service) Cancel(ctx context.Context, teamID snowflake.ID) (*teamdomain.TeamSubscription, error) {
	return s.Subscribe(ctx, teamdomain.SubscribeRequest{TeamID: teamID, PlanID: catalog.DefaultPlanID})
}

func (s *Service) recordSubscription(ctx context.Context, tx *gorm.DB, teamID snowflake.ID, plan catalog.Plan, externalRef string) (*teamdomain.TeamSubscription, error) {
	now := s.clock.Now()

	if _, err := s.repo.CancelOpenSubscriptions(ctx, tx, teamID, now); err != nil {
		return nil, err
	}

	sub := &teamdomain.TeamSubscription{
		ID:                 s.genID.Generate(),
		TeamID:             teamID,
		PlanID:             string(plan.ID),
		Status:             teamdomain.SubscriptionStatusActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   teamdomain.PeriodEnd(plan.Interval, now),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if ref := strings.TrimSpace(externalRef); ref != "" {
		sub.ExternalRef = &ref
	}
	if err := s.repo.InsertSubscription(ctx, tx, sub); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateCurrentPlan(ctx, tx, teamID, string(plan.ID), now); err != nil {
		return nil, err
	}
	return sub, nil
}
