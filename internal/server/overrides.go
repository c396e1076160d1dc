package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/entitlements/internal/catalog"
	overridedomain "github.com/smallbiznis/entitlements/internal/override/domain"
)

type setOverrideRequest struct {
	Type      string               `json:"type"`
	Key       string               `json:"key"`
	Value     overridedomain.Value `json:"value"`
	Reason    string               `json:"reason"`
	ExpiresAt *time.Time           `json:"expires_at"`
}

// knownOverrideKey reports whether key exists for the override type. Unknown
// types pass through so the service reports them as invalid.
func (s *Server) knownOverrideKey(typ overridedomain.Type, key string) bool {
	switch typ {
	case overridedomain.TypeFeature:
		return s.catalog.HasFeature(catalog.FeatureKey(key))
	case overridedomain.TypeLimit:
		return s.catalog.HasLimit(catalog.LimitKey(key))
	default:
		return true
	}
}

func (s *Server) SetOverride(c *gin.Context) {
	var req setOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	typ := overridedomain.Type(strings.ToLower(strings.TrimSpace(req.Type)))
	key := strings.TrimSpace(req.Key)
	if !s.knownOverrideKey(typ, key) {
		AbortWithError(c, catalog.ErrUnknownCatalogKey)
		return
	}

	override, err := s.overrideSvc.SetOverride(c.Request.Context(), overridedomain.SetRequest{
		TeamID:    teamIDFromContext(c),
		Type:      typ,
		Key:       key,
		Value:     req.Value,
		Reason:    req.Reason,
		ExpiresAt: req.ExpiresAt,
		CreatedBy: actorFromContext(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": override})
}

func (s *Server) ListOverrides(c *gin.Context) {
	overrides, err := s.overrideSvc.ListOverrides(c.Request.Context(), teamIDFromContext(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": overrides})
}

func (s *Server) ClearOverride(c *gin.Context) {
	typ := overridedomain.Type(strings.ToLower(strings.TrimSpace(c.Param("type"))))
	key := strings.TrimSpace(c.Param("key"))
	if !s.knownOverrideKey(typ, key) {
		AbortWithError(c, catalog.ErrUnknownCatalogKey)
		return
	}

	cleared, err := s.overrideSvc.ClearOverride(c.Request.Context(), overridedomain.ClearRequest{
		TeamID:    teamIDFromContext(c),
		Type:      typ,
		Key:       key,
		ClearedBy: actorFromContext(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"cleared": cleared}})
}
