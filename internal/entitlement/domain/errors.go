package domain

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlements/internal/catalog"
)

var (
	ErrNotEntitled   = errors.New("not_entitled")
	ErrLimitExceeded = errors.New("limit_exceeded")
	ErrInvalidTeam   = errors.New("invalid_team")
)

// NotEntitledError is raised by RequireFeature. Callers surface it as a
// forbidden response with Error() as the upgrade prompt.
type NotEntitledError struct {
	TeamID     snowflake.ID
	FeatureKey catalog.FeatureKey
	PlanName   string
}

func (e *NotEntitledError) Error() string {
	return fmt.Sprintf("%s is not included in your %s plan. Upgrade to unlock it.", e.FeatureKey, planLabel(e.PlanName))
}

func (e *NotEntitledError) Unwrap() error { return ErrNotEntitled }

// LimitExceededError is raised by RequireLimit. Remaining is always 0.
type LimitExceededError struct {
	TeamID    snowflake.ID
	LimitKey  catalog.LimitKey
	PlanName  string
	Limit     int64
	Remaining int64
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("%s limit of %d reached on your %s plan. Upgrade for a higher limit.", e.LimitKey, e.Limit, planLabel(e.PlanName))
}

func (e *LimitExceededError) Unwrap() error { return ErrLimitExceeded }

func planLabel(name string) string {
	if name == "" {
		return "current"
	}
	return name
}
