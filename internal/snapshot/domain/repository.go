package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	DeleteByTeam(ctx context.Context, db *gorm.DB, teamID snowflake.ID) error
	InsertFeatures(ctx context.Context, db *gorm.DB, rows []TeamFeatureEntitlement) error
	InsertLimits(ctx context.Context, db *gorm.DB, rows []TeamLimitEntitlement) error
	ListFeatures(ctx context.Context, db *gorm.DB, teamID snowflake.ID) ([]TeamFeatureEntitlement, error)
	ListLimits(ctx context.Context, db *gorm.DB, teamID snowflake.ID) ([]TeamLimitEntitlement, error)
	FindFeature(ctx context.Context, db *gorm.DB, teamID snowflake.ID, featureKey string) (*TeamFeatureEntitlement, error)
	FindLimit(ctx context.Context, db *gorm.DB, teamID snowflake.ID, limitKey string) (*TeamLimitEntitlement, error)
}
