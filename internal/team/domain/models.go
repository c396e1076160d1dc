// Package domain contains team and subscription persistence models.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlements/internal/catalog"
)

type Team struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	Name          string       `gorm:"type:text;not null"`
	CurrentPlanID *string      `gorm:"type:varchar(64)"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Team) TableName() string { return "team" }

// PlanID returns the team's recorded plan, or the default plan when unset.
func (t Team) PlanID() catalog.PlanID {
	if t.CurrentPlanID == nil || strings.TrimSpace(*t.CurrentPlanID) == "" {
		return catalog.DefaultPlanID
	}
	return catalog.PlanID(strings.TrimSpace(*t.CurrentPlanID))
}

type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// TeamSubscription records each plan a team has been subscribed to. At most
// one row per team is in a non-canceled status.
type TeamSubscription struct {
	ID                 snowflake.ID       `gorm:"primaryKey"`
	TeamID             snowflake.ID       `gorm:"not null;index"`
	PlanID             string             `gorm:"type:varchar(64);not null"`
	Status             SubscriptionStatus `gorm:"type:varchar(16);not null"`
	ExternalRef        *string            `gorm:"type:text"`
	CurrentPeriodStart time.Time          `gorm:"not null"`
	CurrentPeriodEnd   *time.Time
	CanceledAt         *time.Time
	CreatedAt          time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (TeamSubscription) TableName() string { return "team_subscription" }

// PeriodEnd returns the end of the first billing period starting at start.
func PeriodEnd(interval catalog.Interval, start time.Time) *time.Time {
	var end time.Time
	switch interval {
	case catalog.IntervalMonth:
		end = start.AddDate(0, 1, 0)
	case catalog.IntervalYear:
		end = start.AddDate(1, 0, 0)
	default:
		return nil
	}
	return &end
}
