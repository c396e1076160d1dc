// Package domain contains per-period usage counters for quota limits.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// TeamUsage counts consumption of one limit in one reset window. A window
// that has ended is never written again; the next increment opens a new row.
type TeamUsage struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id,string"`
	TeamID       snowflake.ID `gorm:"not null;uniqueIndex:ux_team_usage_period,priority:1" json:"team_id,string"`
	LimitKey     string       `gorm:"type:varchar(64);not null;uniqueIndex:ux_team_usage_period,priority:2" json:"limit_key"`
	CurrentValue int64        `gorm:"not null;default:0" json:"current_value"`
	PeriodStart  time.Time    `gorm:"not null;uniqueIndex:ux_team_usage_period,priority:3" json:"period_start"`
	// PeriodEnd is nil for limits that never reset.
	PeriodEnd *time.Time `json:"period_end,omitempty"`
	CreatedAt time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (TeamUsage) TableName() string { return "team_usage" }

// Contains reports whether now falls in [PeriodStart, PeriodEnd).
func (u TeamUsage) Contains(now time.Time) bool {
	if now.Before(u.PeriodStart) {
		return false
	}
	return u.PeriodEnd == nil || now.Before(*u.PeriodEnd)
}
