package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type SetRequest struct {
	TeamID    snowflake.ID
	Type      Type
	Key       string
	Value     Value
	Reason    string
	ExpiresAt *time.Time
	CreatedBy string
}

type ClearRequest struct {
	TeamID    snowflake.ID
	Type      Type
	Key       string
	ClearedBy string
}

type Service interface {
	// SetOverride appends a new override and supersedes the active one for
	// the same (team, type, key). The key must exist in the catalog.
	SetOverride(ctx context.Context, req SetRequest) (*Override, error)
	// GetActiveOverride returns nil when no override applies at now.
	GetActiveOverride(ctx context.Context, teamID snowflake.ID, typ Type, key string, now time.Time) (*Override, error)
	ClearOverride(ctx context.Context, req ClearRequest) (int64, error)
	ListOverrides(ctx context.Context, teamID snowflake.ID) ([]Override, error)
}

var (
	ErrInvalidTeam   = errors.New("invalid_team")
	ErrInvalidType   = errors.New("invalid_override_type")
	ErrInvalidValue  = errors.New("invalid_override_value")
	ErrInvalidReason = errors.New("invalid_reason")
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidExpiry = errors.New("invalid_expiry")
	ErrInvalidKey    = errors.New("invalid_key")
)
