package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, o *Override) error
	// SupersedeActive marks every unsuperseded row for (team, type, key)
	// superseded at now.
	SupersedeActive(ctx context.Context, db *gorm.DB, teamID snowflake.ID, typ Type, key string, now time.Time) (int64, error)
	FindActive(ctx context.Context, db *gorm.DB, teamID snowflake.ID, typ Type, key string, now time.Time) (*Override, error)
	ListByTeam(ctx context.Context, db *gorm.DB, teamID snowflake.ID) ([]Override, error)
}
