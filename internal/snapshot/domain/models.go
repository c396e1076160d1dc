// Package domain contains the per-team entitlement snapshot models.
//
// A snapshot is the team's own copy of a plan's features and limits taken at
// subscription time. Later catalog edits never change existing rows; only a
// new snapshot run does.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Source records where a snapshot row came from.
type Source string

const (
	SourcePlan   Source = "plan"
	SourceAddon  Source = "addon"
	SourceManual Source = "manual"
)

// TeamFeatureEntitlement grants a feature by existing. One row per
// (team_id, feature_key).
type TeamFeatureEntitlement struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	TeamID        snowflake.ID `gorm:"not null;uniqueIndex:ux_team_feature_entitlement,priority:1"`
	FeatureKey    string       `gorm:"type:varchar(64);not null;uniqueIndex:ux_team_feature_entitlement,priority:2"`
	Source        Source       `gorm:"type:varchar(16);not null"`
	SourcePlanID  *string      `gorm:"type:varchar(64)"`
	SourceAddonID *string      `gorm:"type:varchar(64)"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (TeamFeatureEntitlement) TableName() string { return "team_feature_entitlement" }

// TeamLimitEntitlement holds a limit value; -1 means unlimited. One row per
// (team_id, limit_key).
type TeamLimitEntitlement struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	TeamID       snowflake.ID `gorm:"not null;uniqueIndex:ux_team_limit_entitlement,priority:1"`
	LimitKey     string       `gorm:"type:varchar(64);not null;uniqueIndex:ux_team_limit_entitlement,priority:2"`
	Value        int64        `gorm:"not null"`
	Source       Source       `gorm:"type:varchar(16);not null"`
	SourcePlanID *string      `gorm:"type:varchar(64)"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (TeamLimitEntitlement) TableName() string { return "team_limit_entitlement" }
