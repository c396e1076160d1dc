package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlements/internal/catalog"
	usagedomain "github.com/smallbiznis/entitlements/internal/usage/domain"
)

// Source names the tier that decided a resolution.
type Source string

const (
	SourceOverride Source = "override"
	SourceSnapshot Source = "snapshot"
	SourceAddon    Source = "addon"
	SourceNone     Source = "none"
)

type LimitCheck struct {
	Allowed bool `json:"allowed"`
	// Remaining is -1 when IsUnlimited.
	Remaining   int64 `json:"remaining"`
	IsUnlimited bool  `json:"is_unlimited"`
	Limit       int64 `json:"limit"`
	Used        int64 `json:"used"`
}

type FeatureGrant struct {
	Key     catalog.FeatureKey `json:"key"`
	Granted bool               `json:"granted"`
	Source  Source             `json:"source"`
}

type LimitGrant struct {
	Key         catalog.LimitKey    `json:"key"`
	ResetPeriod catalog.ResetPeriod `json:"reset_period"`
	Source      Source              `json:"source"`
	LimitCheck
}

// Summary is every catalog feature and limit resolved for one team.
type Summary struct {
	TeamID   snowflake.ID   `json:"team_id,string"`
	PlanID   catalog.PlanID `json:"plan_id"`
	PlanName string         `json:"plan_name"`
	Features []FeatureGrant `json:"features"`
	Limits   []LimitGrant   `json:"limits"`
	At       time.Time      `json:"at"`
}

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks
type Service interface {
	// HasFeature resolves override, then snapshot or active add-on. A team
	// with no grant gets false, never an error.
	HasFeature(ctx context.Context, teamID snowflake.ID, key catalog.FeatureKey, now time.Time) (bool, error)
	// GetLimitValue returns the effective ceiling; catalog.Unlimited means no
	// ceiling and 0 means no quota.
	GetLimitValue(ctx context.Context, teamID snowflake.ID, key catalog.LimitKey, now time.Time) (int64, error)
	CheckLimit(ctx context.Context, teamID snowflake.ID, key catalog.LimitKey, now time.Time) (LimitCheck, error)
	// TryIncrement consumes amount against the effective limit atomically.
	TryIncrement(ctx context.Context, teamID snowflake.ID, key catalog.LimitKey, amount int64, now time.Time) (usagedomain.IncrementResult, error)
	// RequireFeature returns a *NotEntitledError when the feature is missing.
	RequireFeature(ctx context.Context, teamID snowflake.ID, key catalog.FeatureKey) error
	// RequireLimit returns a *LimitExceededError when no quota remains.
	RequireLimit(ctx context.Context, teamID snowflake.ID, key catalog.LimitKey) error
	Summary(ctx context.Context, teamID snowflake.ID, now time.Time) (*Summary, error)
}
