package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlements/internal/catalog"
)

// ConsumeRequest adds Amount to the current window, bounded by Limit. The
// caller resolves Limit; catalog.Unlimited skips the bound.
type ConsumeRequest struct {
	TeamID   snowflake.ID
	LimitKey catalog.LimitKey
	Amount   int64
	Limit    int64
	Now      time.Time
}

type IncrementResult struct {
	OK       bool  `json:"ok"`
	NewValue int64 `json:"new_value"`
	Limit    int64 `json:"limit"`
}

type ReleaseRequest struct {
	TeamID   snowflake.ID
	LimitKey catalog.LimitKey
	Amount   int64
	Now      time.Time
}

type Service interface {
	// GetOrCreateUsagePeriod returns the row for the window containing now,
	// creating it with a zero count when missing.
	GetOrCreateUsagePeriod(ctx context.Context, teamID snowflake.ID, limitKey catalog.LimitKey, now time.Time) (*TeamUsage, error)
	// CurrentUsage reads the count for the window containing now without
	// creating a row.
	CurrentUsage(ctx context.Context, teamID snowflake.ID, limitKey catalog.LimitKey, now time.Time) (int64, error)
	Consume(ctx context.Context, req ConsumeRequest) (IncrementResult, error)
	// Release gives back previously consumed quota, for countable resources
	// such as seats. The count never drops below zero.
	Release(ctx context.Context, req ReleaseRequest) (*TeamUsage, error)
	ListUsage(ctx context.Context, teamID snowflake.ID) ([]TeamUsage, error)
}

var (
	ErrInvalidTeam   = errors.New("invalid_team")
	ErrInvalidAmount = errors.New("invalid_amount")
	ErrInvalidLimit  = errors.New("invalid_limit")
	// ErrStorageConflict means the conditional update did not apply for a
	// reason other than quota. Callers may retry.
	ErrStorageConflict = errors.New("storage_conflict")
)
