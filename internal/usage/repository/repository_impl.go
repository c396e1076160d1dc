package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	usagedomain "github.com/smallbiznis/entitlements/internal/usage/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() usagedomain.Repository {
	return &repo{}
}

func (r *repo) FindByPeriod(ctx context.Context, db *gorm.DB, teamID snowflake.ID, limitKey string, periodStart time.Time) (*usagedomain.TeamUsage, error) {
	var usage usagedomain.TeamUsage
	err := db.WithContext(ctx).Raw(
		`SELECT id, team_id, limit_key, current_value, period_start, period_end, created_at, updated_at
		 FROM team_usage
		 WHERE team_id = ? AND limit_key = ? AND period_start = ?`,
		teamID,
		limitKey,
		periodStart,
	).Scan(&usage).Error
	if err != nil {
		return nil, err
	}
	if usage.ID == 0 {
		return nil, nil
	}
	return &usage, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*usagedomain.TeamUsage, error) {
	var usage usagedomain.TeamUsage
	err := db.WithContext(ctx).Raw(
		`SELECT id, team_id, limit_key, current_value, period_start, period_end, created_at, updated_at
		 FROM team_usage
		 WHERE id = ?`,
		id,
	).Scan(&usage).Error
	if err != nil {
		return nil, err
	}
	if usage.ID == 0 {
		return nil, nil
	}
	return &usage, nil
}

func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, usage *usagedomain.TeamUsage) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "team_id"}, {Name: "limit_key"}, {Name: "period_start"}},
			DoNothing: true,
		}).
		Create(usage).Error
}

func (r *repo) IncrementWithin(ctx context.Context, db *gorm.DB, id snowflake.ID, amount, limit int64, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE team_usage
		 SET current_value = current_value + ?, updated_at = ?
		 WHERE id = ? AND current_value <= ?`,
		amount,
		now,
		id,
		limit-amount,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) Increment(ctx context.Context, db *gorm.DB, id snowflake.ID, amount int64, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE team_usage
		 SET current_value = current_value + ?, updated_at = ?
		 WHERE id = ?`,
		amount,
		now,
		id,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) Decrement(ctx context.Context, db *gorm.DB, id snowflake.ID, amount int64, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE team_usage
		 SET current_value = CASE WHEN current_value >= ? THEN current_value - ? ELSE 0 END,
		     updated_at = ?
		 WHERE id = ?`,
		amount,
		amount,
		now,
		id,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) ListByTeam(ctx context.Context, db *gorm.DB, teamID snowflake.ID) ([]usagedomain.TeamUsage, error) {
	var items []usagedomain.TeamUsage
	err := db.WithContext(ctx).Raw(
		`SELECT id, team_id, limit_key, current_value, period_start, period_end, created_at, updated_at
		 FROM team_usage
		 WHERE team_id = ?
		 ORDER BY limit_key ASC, period_start DESC`,
		teamID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
