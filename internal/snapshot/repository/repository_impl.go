package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	snapshotdomain "github.com/smallbiznis/entitlements/internal/snapshot/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() snapshotdomain.Repository {
	return &repo{}
}

func (r *repo) DeleteByTeam(ctx context.Context, db *gorm.DB, teamID snowflake.ID) error {
	if err := db.WithContext(ctx).Exec(
		`DELETE FROM team_feature_entitlement WHERE team_id = ?`,
		teamID,
	).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(
		`DELETE FROM team_limit_entitlement WHERE team_id = ?`,
		teamID,
	).Error
}

func (r *repo) InsertFeatures(ctx context.Context, db *gorm.DB, rows []snapshotdomain.TeamFeatureEntitlement) error {
	if len(rows) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&rows).Error
}

func (r *repo) InsertLimits(ctx context.Context, db *gorm.DB, rows []snapshotdomain.TeamLimitEntitlement) error {
	if len(rows) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&rows).Error
}

func (r *repo) ListFeatures(ctx context.Context, db *gorm.DB, teamID snowflake.ID) ([]snapshotdomain.TeamFeatureEntitlement, error) {
	var rows []snapshotdomain.TeamFeatureEntitlement
	err := db.WithContext(ctx).Raw(
		`SELECT id, team_id, feature_key, source, source_plan_id, source_addon_id, created_at
		 FROM team_feature_entitlement
		 WHERE team_id = ?
		 ORDER BY feature_key ASC`,
		teamID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) ListLimits(ctx context.Context, db *gorm.DB, teamID snowflake.ID) ([]snapshotdomain.TeamLimitEntitlement, error) {
	var rows []snapshotdomain.TeamLimitEntitlement
	err := db.WithContext(ctx).Raw(
		`SELECT id, team_id, limit_key, value, source, source_plan_id, created_at
		 FROM team_limit_entitlement
		 WHERE team_id = ?
		 ORDER BY limit_key ASC`,
		teamID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) FindFeature(ctx context.Context, db *gorm.DB, teamID snowflake.ID, featureKey string) (*snapshotdomain.TeamFeatureEntitlement, error) {
	var row snapshotdomain.TeamFeatureEntitlement
	err := db.WithContext(ctx).Raw(
		`SELECT id, team_id, feature_key, source, source_plan_id, source_addon_id, created_at
		 FROM team_feature_entitlement
		 WHERE team_id = ? AND feature_key = ?`,
		teamID,
		featureKey,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *repo) FindLimit(ctx context.Context, db *gorm.DB, teamID snowflake.ID, limitKey string) (*snapshotdomain.TeamLimitEntitlement, error) {
	var row snapshotdomain.TeamLimitEntitlement
	err := db.WithContext(ctx).Raw(
		`SELECT id, team_id, limit_key, value, source, source_plan_id, created_at
		 FROM team_limit_entitlement
		 WHERE team_id = ? AND limit_key = ?`,
		teamID,
		limitKey,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}
