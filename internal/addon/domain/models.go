// Package domain contains purchased add-ons attached to a team.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusCanceled Status = "canceled"
)

// TeamAddon grants the catalog add-on's features and Quantity times its
// limit boosts while active and unexpired.
type TeamAddon struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id,string"`
	TeamID     snowflake.ID `gorm:"not null;index:idx_team_addon_team_status,priority:1" json:"team_id,string"`
	AddonID    string       `gorm:"type:varchar(64);not null" json:"addon_id"`
	Quantity   int64        `gorm:"not null;default:1" json:"quantity"`
	Status     Status       `gorm:"type:varchar(16);not null;index:idx_team_addon_team_status,priority:2" json:"status"`
	ExpiresAt  *time.Time   `json:"expires_at,omitempty"`
	CanceledAt *time.Time   `json:"canceled_at,omitempty"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (TeamAddon) TableName() string { return "team_addon" }

func (a TeamAddon) ActiveAt(now time.Time) bool {
	if a.Status != StatusActive {
		return false
	}
	return a.ExpiresAt == nil || a.ExpiresAt.After(now)
}
