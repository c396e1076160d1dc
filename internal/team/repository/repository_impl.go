package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	teamdomain "github.com/smallbiznis/entitlements/internal/team/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() teamdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, team *teamdomain.Team) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO team (id, name, current_plan_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		team.ID,
		team.Name,
		team.CurrentPlanID,
		team.CreatedAt,
		team.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*teamdomain.Team, error) {
	var team teamdomain.Team
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, current_plan_id, created_at, updated_at
		 FROM team
		 WHERE id = ?`,
		id,
	).Scan(&team).Error
	if err != nil {
		return nil, err
	}
	if team.ID == 0 {
		return nil, nil
	}
	return &team, nil
}

func (r *repo) ListAfter(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]*teamdomain.Team, error) {
	if limit <= 0 {
		limit = 100
	}
	var teams []*teamdomain.Team
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, current_plan_id, created_at, updated_at
		 FROM team
		 WHERE id > ?
		 ORDER BY id ASC
		 LIMIT ?`,
		afterID,
		limit,
	).Scan(&teams).Error
	if err != nil {
		return nil, err
	}
	return teams, nil
}

func (r *repo) UpdateCurrentPlan(ctx context.Context, db *gorm.DB, teamID snowflake.ID, planID string, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE team SET current_plan_id = ?, updated_at = ? WHERE id = ?`,
		planID,
		now,
		teamID,
	).Error
}

func (r *repo) InsertSubscription(ctx context.Context, db *gorm.DB, sub *teamdomain.TeamSubscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO team_subscription (
			id, team_id, plan_id, status, external_ref,
			current_period_start, current_period_end, canceled_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID,
		sub.TeamID,
		sub.PlanID,
		sub.Status,
		sub.ExternalRef,
		sub.CurrentPeriodStart,
		sub.CurrentPeriodEnd,
		sub.CanceledAt,
		sub.CreatedAt,
		sub.UpdatedAt,
	).Error
}

func (r *repo) CancelOpenSubscriptions(ctx context.Context, db *gorm.DB, teamID snowflake.ID, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE team_subscription
		 SET status = ?, canceled_at = ?, updated_at = ?
		 WHERE team_id = ? AND status <> ?`,
		teamdomain.SubscriptionStatusCanceled,
		now,
		now,
		teamID,
		teamdomain.SubscriptionStatusCanceled,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) FindOpenSubscription(ctx context.Context, db *gorm.DB, teamID snowflake.ID) (*teamdomain.TeamSubscription, error) {
	var sub teamdomain.TeamSubscription
	err := db.WithContext(ctx).Raw(
		`SELECT id, team_id, plan_id, status, external_ref,
		        current_period_start, current_period_end, canceled_at, created_at, updated_at
		 FROM team_subscription
		 WHERE team_id = ? AND status <> ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		teamID,
		teamdomain.SubscriptionStatusCanceled,
	).Scan(&sub).Error
	if err != nil {
		return nil, err
	}
	if sub.ID == 0 {
		return nil, nil
	}
	return &sub, nil
}
