package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type GrantRequest struct {
	TeamID    snowflake.ID
	AddonID   string
	Quantity  int64
	ExpiresAt *time.Time
}

type Service interface {
	Grant(ctx context.Context, req GrantRequest) (*TeamAddon, error)
	Cancel(ctx context.Context, teamID, id snowflake.ID) (*TeamAddon, error)
	ListActive(ctx context.Context, teamID snowflake.ID, now time.Time) ([]TeamAddon, error)
	List(ctx context.Context, teamID snowflake.ID) ([]TeamAddon, error)
}

var (
	ErrInvalidTeam     = errors.New("invalid_team")
	ErrInvalidQuantity = errors.New("invalid_quantity")
	ErrInvalidExpiry   = errors.New("invalid_expiry")
	ErrAddonNotFound   = errors.New("team_addon_not_found")
)
