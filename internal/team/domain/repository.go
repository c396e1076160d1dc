package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, team *Team) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Team, error)
	// ListAfter returns up to limit teams with id > afterID in id order.
	ListAfter(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]*Team, error)
	UpdateCurrentPlan(ctx context.Context, db *gorm.DB, teamID snowflake.ID, planID string, now time.Time) error

	InsertSubscription(ctx context.Context, db *gorm.DB, sub *TeamSubscription) error
	CancelOpenSubscriptions(ctx context.Context, db *gorm.DB, teamID snowflake.ID, now time.Time) (int64, error)
	FindOpenSubscription(ctx context.Context, db *gorm.DB, teamID snowflake.ID) (*TeamSubscription, error)
}
