package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlements/internal/catalog"
	teamdomain "github.com/smallbiznis/entitlements/internal/team/domain"
	"gorm.io/gorm"
)

type planSource struct {
	db   *gorm.DB
	repo teamdomain.Repository
}

// NewPlanSource reads the current plan from the team table.
func NewPlanSource(db *gorm.DB, repo teamdomain.Repository) teamdomain.PlanSource {
	return &planSource{db: db, repo: repo}
}

func (p *planSource) CurrentPlan(ctx context.Context, teamID snowflake.ID) (catalog.PlanID, error) {
	team, err := p.repo.FindByID(ctx, p.db, teamID)
	if err != nil {
		return "", err
	}
	if team == nil {
		return "", teamdomain.ErrTeamNotFound
	}
	return team.PlanID(), nil
}
