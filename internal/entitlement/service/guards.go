package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlements/internal/catalog"
	entitlementdomain "github.com/smallbiznis/entitlements/internal/entitlement/domain"
	"go.uber.org/zap"
)

func (s *Service) RequireFeature(ctx context.Context, teamID snowflake.ID, key catalog.FeatureKey) error {
	granted, err := s.HasFeature(ctx, teamID, key, s.clock.Now())
	if err != nil {
		return err
	}
	if granted {
		return nil
	}
	return &entitlementdomain.NotEntitledError{
		TeamID:     teamID,
		FeatureKey: key,
		PlanName:   s.teamPlanName(ctx, teamID),
	}
}

func (s *Service) RequireLimit(ctx context.Context, teamID snowflake.ID, key catalog.LimitKey) error {
	check, err := s.CheckLimit(ctx, teamID, key, s.clock.Now())
	if err != nil {
		return err
	}
	if check.Allowed {
		return nil
	}
	return &entitlementdomain.LimitExceededError{
		TeamID:    teamID,
		LimitKey:  key,
		PlanName:  s.teamPlanName(ctx, teamID),
		Limit:     check.Limit,
		Remaining: 0,
	}
}

// teamPlanName is best effort: the guard error still carries the key when the
// team row cannot be read.
func (s *Service) teamPlanName(ctx context.Context, teamID snowflake.ID) string {
	team, err := s.teams.FindByID(ctx, s.db, teamID)
	if err != nil {
		s.log.Warn("plan lookup for guard failed", zap.Error(err), zap.String("team_id", teamID.String()))
		return ""
	}
	if team == nil {
		return ""
	}
	return s.planName(team.PlanID())
}

func (s *Service) planName(planID catalog.PlanID) string {
	plan, err := s.catalog.GetPlan(planID)
	if err != nil {
		return string(planID)
	}
	return plan.Name
}
