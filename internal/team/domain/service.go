package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlements/internal/catalog"
	"github.com/smallbiznis/entitlements/pkg/db/pagination"
)

type CreateRequest struct {
	Name   string `json:"name"`
	PlanID string `json:"plan_id"`
}

type SubscribeRequest struct {
	TeamID      snowflake.ID
	PlanID      catalog.PlanID
	ExternalRef string
}

type ListRequest struct {
	PageToken string
	PageSize  int
}

type ListResponse struct {
	pagination.PageInfo
	Teams []*Team `json:"teams"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Team, error)
	Get(ctx context.Context, teamID snowflake.ID) (*Team, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	// Subscribe records the new plan on the team and snapshots it.
	Subscribe(ctx context.Context, req SubscribeRequest) (*TeamSubscription, error)
	// Cancel ends the open subscription and moves the team to the default plan.
	Cancel(ctx context.Context, teamID snowflake.ID) (*TeamSubscription, error)
}

// PlanSource answers which plan a team currently pays for. The database
// implementation reads team.current_plan_id; a billing provider can supply
// its own.
type PlanSource interface {
	CurrentPlan(ctx context.Context, teamID snowflake.ID) (catalog.PlanID, error)
}

var (
	ErrInvalidTeam      = errors.New("invalid_team")
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrTeamNotFound     = errors.New("team_not_found")
)
