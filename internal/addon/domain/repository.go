package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, addon *TeamAddon) error
	FindByID(ctx context.Context, db *gorm.DB, teamID, id snowflake.ID) (*TeamAddon, error)
	Cancel(ctx context.Context, db *gorm.DB, teamID, id snowflake.ID, now time.Time) (int64, error)
	ListActive(ctx context.Context, db *gorm.DB, teamID snowflake.ID, now time.Time) ([]TeamAddon, error)
	ListByTeam(ctx context.Context, db *gorm.DB, teamID snowflake.ID) ([]TeamAddon, error)
}
