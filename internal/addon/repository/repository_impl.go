package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	addondomain "github.com/smallbiznis/entitlements/internal/addon/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() addondomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, addon *addondomain.TeamAddon) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO team_addon (
			id, team_id, addon_id, quantity, status, expires_at, canceled_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		addon.ID,
		addon.TeamID,
		addon.AddonID,
		addon.Quantity,
		addon.Status,
		addon.ExpiresAt,
		addon.CanceledAt,
		addon.CreatedAt,
		addon.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, teamID, id snowflake.ID) (*addondomain.TeamAddon, error) {
	var addon addondomain.TeamAddon
	err := db.WithContext(ctx).Raw(
		`SELECT id, team_id, addon_id, quantity, status, expires_at, canceled_at, created_at, updated_at
		 FROM team_addon
		 WHERE team_id = ? AND id = ?`,
		teamID,
		id,
	).Scan(&addon).Error
	if err != nil {
		return nil, err
	}
	if addon.ID == 0 {
		return nil, nil
	}
	return &addon, nil
}

func (r *repo) Cancel(ctx context.Context, db *gorm.DB, teamID, id snowflake.ID, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE team_addon
		 SET status = ?, canceled_at = ?, updated_at = ?
		 WHERE team_id = ? AND id = ? AND status = ?`,
		addondomain.StatusCanceled,
		now,
		now,
		teamID,
		id,
		addondomain.StatusActive,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) ListActive(ctx context.Context, db *gorm.DB, teamID snowflake.ID, now time.Time) ([]addondomain.TeamAddon, error) {
	var items []addondomain.TeamAddon
	err := db.WithContext(ctx).Raw(
		`SELECT id, team_id, addon_id, quantity, status, expires_at, canceled_at, created_at, updated_at
		 FROM team_addon
		 WHERE team_id = ? AND status = ?
		   AND (expires_at IS NULL OR expires_at > ?)
		 ORDER BY created_at ASC, id ASC`,
		teamID,
		addondomain.StatusActive,
		now,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListByTeam(ctx context.Context, db *gorm.DB, teamID snowflake.ID) ([]addondomain.TeamAddon, error) {
	var items []addondomain.TeamAddon
	err := db.WithContext(ctx).Raw(
		`SELECT id, team_id, addon_id, quantity, status, expires_at, canceled_at, created_at, updated_at
		 FROM team_addon
		 WHERE team_id = ?
		 ORDER BY created_at DESC, id DESC`,
		teamID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
