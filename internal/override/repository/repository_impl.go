package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	overridedomain "github.com/smallbiznis/entitlements/internal/override/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() overridedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, o *overridedomain.Override) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO team_entitlement_override (
			id, team_id, type, entitlement_key, value, reason,
			expires_at, superseded_at, created_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID,
		o.TeamID,
		o.Type,
		o.Key,
		o.Value,
		o.Reason,
		o.ExpiresAt,
		o.SupersededAt,
		o.CreatedBy,
		o.CreatedAt,
	).Error
}

func (r *repo) SupersedeActive(ctx context.Context, db *gorm.DB, teamID snowflake.ID, typ overridedomain.Type, key string, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE team_entitlement_override
		 SET superseded_at = ?
		 WHERE team_id = ? AND type = ? AND entitlement_key = ? AND superseded_at IS NULL`,
		now,
		teamID,
		typ,
		key,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) FindActive(ctx context.Context, db *gorm.DB, teamID snowflake.ID, typ overridedomain.Type, key string, now time.Time) (*overridedomain.Override, error) {
	var o overridedomain.Override
	err := db.WithContext(ctx).Raw(
		`SELECT id, team_id, type, entitlement_key, value, reason,
		        expires_at, superseded_at, created_by, created_at
		 FROM team_entitlement_override
		 WHERE team_id = ? AND type = ? AND entitlement_key = ?
		   AND superseded_at IS NULL
		   AND (expires_at IS NULL OR expires_at > ?)
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		teamID,
		typ,
		key,
		now,
	).Scan(&o).Error
	if err != nil {
		return nil, err
	}
	if o.ID == 0 {
		return nil, nil
	}
	return &o, nil
}

func (r *repo) ListByTeam(ctx context.Context, db *gorm.DB, teamID snowflake.ID) ([]overridedomain.Override, error) {
	var items []overridedomain.Override
	err := db.WithContext(ctx).Raw(
		`SELECT id, team_id, type, entitlement_key, value, reason,
		        expires_at, superseded_at, created_by, created_at
		 FROM team_entitlement_override
		 WHERE team_id = ?
		 ORDER BY created_at DESC, id DESC`,
		teamID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
