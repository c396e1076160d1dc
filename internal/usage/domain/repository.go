package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByPeriod(ctx context.Context, db *gorm.DB, teamID snowflake.ID, limitKey string, periodStart time.Time) (*TeamUsage, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*TeamUsage, error)
	// InsertIfAbsent inserts the row unless (team, limit, period_start)
	// already exists.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, usage *TeamUsage) error
	// IncrementWithin adds amount only if the result stays <= limit. Callers
	// pass limit >= 0 and amount > 0 so limit-amount cannot overflow. It
	// returns the number of rows changed (0 or 1).
	IncrementWithin(ctx context.Context, db *gorm.DB, id snowflake.ID, amount, limit int64, now time.Time) (int64, error)
	Increment(ctx context.Context, db *gorm.DB, id snowflake.ID, amount int64, now time.Time) (int64, error)
	// Decrement subtracts amount, flooring at zero.
	Decrement(ctx context.Context, db *gorm.DB, id snowflake.ID, amount int64, now time.Time) (int64, error)
	ListByTeam(ctx context.Context, db *gorm.DB, teamID snowflake.ID) ([]TeamUsage, error)
}
