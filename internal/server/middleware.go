package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/entitlements/internal/catalog"
)

const (
	HeaderActor      = "X-Actor"
	contextTeamIDKey = "team_id"
	contextActorKey  = "actor"
)

// TeamContext parses :team_id once for every handler under the group.
func (s *Server) TeamContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		teamID, err := pathID(c, "team_id")
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.Set(contextTeamIDKey, teamID)
		c.Next()
	}
}

func teamIDFromContext(c *gin.Context) snowflake.ID {
	if v, ok := c.Get(contextTeamIDKey); ok {
		if id, ok := v.(snowflake.ID); ok {
			return id
		}
	}
	return 0
}

// RequireActor rejects operator writes that do not name who made them.
func (s *Server) RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := strings.TrimSpace(c.GetHeader(HeaderActor))
		if actor == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Set(contextActorKey, actor)
		c.Next()
	}
}

func actorFromContext(c *gin.Context) string {
	return c.GetString(contextActorKey)
}

// RequireFeature gates a route on the team holding key. Routes owned by
// other services mount it behind TeamContext.
func (s *Server) RequireFeature(key catalog.FeatureKey) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.entitlementSvc.RequireFeature(c.Request.Context(), teamIDFromContext(c), key); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// RequireLimit gates a route on the team having quota left for key.
func (s *Server) RequireLimit(key catalog.LimitKey) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.entitlementSvc.RequireLimit(c.Request.Context(), teamIDFromContext(c), key); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}
