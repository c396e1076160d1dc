package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	addondomain "github.com/smallbiznis/entitlements/internal/addon/domain"
	"github.com/smallbiznis/entitlements/internal/catalog"
	teamdomain "github.com/smallbiznis/entitlements/internal/team/domain"
)

type subscribeTeamRequest struct {
	PlanID      string `json:"plan_id"`
	ExternalRef string `json:"external_ref"`
}

type grantAddonRequest struct {
	AddonID   string     `json:"addon_id"`
	Quantity  int64      `json:"quantity"`
	ExpiresAt *time.Time `json:"expires_at"`
}

func (s *Server) CreateTeam(c *gin.Context) {
	var req teamdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	team, err := s.teamSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": team})
}

func (s *Server) ListTeams(c *gin.Context) {
	pageSize, err := queryPositiveInt(c, "page_size")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	req := teamdomain.ListRequest{PageToken: strings.TrimSpace(c.Query("page_token"))}
	if pageSize != nil {
		req.PageSize = *pageSize
	}

	resp, err := s.teamSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Teams, "page_info": resp.PageInfo})
}

func (s *Server) GetTeam(c *gin.Context) {
	team, err := s.teamSvc.Get(c.Request.Context(), teamIDFromContext(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": team})
}

// SubscribeTeam records a plan change and snapshots it in the same request.
func (s *Server) SubscribeTeam(c *gin.Context) {
	var req subscribeTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	planID := catalog.PlanID(strings.TrimSpace(req.PlanID))
	if planID == "" {
		AbortWithError(c, newValidationError("plan_id", "required", "plan_id is required"))
		return
	}

	sub, err := s.teamSvc.Subscribe(c.Request.Context(), teamdomain.SubscribeRequest{
		TeamID:      teamIDFromContext(c),
		PlanID:      planID,
		ExternalRef: req.ExternalRef,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sub})
}

func (s *Server) CancelSubscription(c *gin.Context) {
	sub, err := s.teamSvc.Cancel(c.Request.Context(), teamIDFromContext(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sub})
}

func (s *Server) ListAddons(c *gin.Context) {
	activeOnly, err := queryBool(c, "active")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	teamID := teamIDFromContext(c)

	var addons []addondomain.TeamAddon
	if activeOnly != nil && *activeOnly {
		now, err := s.now(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		addons, err = s.addonSvc.ListActive(ctx, teamID, now)
		if err != nil {
			AbortWithError(c, err)
			return
		}
	} else {
		addons, err = s.addonSvc.List(ctx, teamID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": addons})
}

func (s *Server) GrantAddon(c *gin.Context) {
	var req grantAddonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	addon, err := s.addonSvc.Grant(c.Request.Context(), addondomain.GrantRequest{
		TeamID:    teamIDFromContext(c),
		AddonID:   strings.TrimSpace(req.AddonID),
		Quantity:  req.Quantity,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": addon})
}

func (s *Server) CancelAddon(c *gin.Context) {
	id, err := pathID(c, "addon_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	addon, err := s.addonSvc.Cancel(c.Request.Context(), teamIDFromContext(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": addon})
}
