// Package domain contains manual per-team entitlement overrides.
//
// Overrides are append-only: a new override for the same (team, type, key)
// supersedes the earlier row instead of updating it, so the table doubles
// as the audit trail.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Type string

const (
	TypeFeature Type = "feature"
	TypeLimit   Type = "limit"
)

func (t Type) Valid() bool {
	return t == TypeFeature || t == TypeLimit
}

type Override struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id,string"`
	TeamID       snowflake.ID `gorm:"not null;index:idx_team_override_lookup,priority:1" json:"team_id,string"`
	Type         Type         `gorm:"type:varchar(16);not null;index:idx_team_override_lookup,priority:2" json:"type"`
	Key          string       `gorm:"column:entitlement_key;type:varchar(64);not null;index:idx_team_override_lookup,priority:3" json:"key"`
	Value        Value        `gorm:"type:text;not null" json:"value"`
	Reason       string       `gorm:"type:text;not null" json:"reason"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty"`
	SupersededAt *time.Time   `json:"superseded_at,omitempty"`
	CreatedBy    string       `gorm:"type:varchar(128);not null" json:"created_by"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Override) TableName() string { return "team_entitlement_override" }

// ActiveAt reports whether the override applies at now.
func (o Override) ActiveAt(now time.Time) bool {
	if o.SupersededAt != nil {
		return false
	}
	return o.ExpiresAt == nil || o.ExpiresAt.After(now)
}
