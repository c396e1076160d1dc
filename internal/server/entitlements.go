package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/entitlements/internal/catalog"
	entitlementdomain "github.com/smallbiznis/entitlements/internal/entitlement/domain"
	usagedomain "github.com/smallbiznis/entitlements/internal/usage/domain"
)

type featureCheckResponse struct {
	FeatureKey catalog.FeatureKey `json:"feature_key"`
	Granted    bool               `json:"granted"`
}

type limitCheckResponse struct {
	LimitKey catalog.LimitKey `json:"limit_key"`
	entitlementdomain.LimitCheck
}

type consumeLimitRequest struct {
	Amount *int64 `json:"amount"`
}

type consumeLimitResponse struct {
	LimitKey catalog.LimitKey `json:"limit_key"`
	OK       bool             `json:"ok"`
	NewValue int64            `json:"new_value"`
	Limit    int64            `json:"limit"`
}

// featureKeyParam rejects keys the catalog does not know before they reach
// the engine, which treats unknown keys as programming errors.
func (s *Server) featureKeyParam(c *gin.Context) (catalog.FeatureKey, bool) {
	key := catalog.FeatureKey(strings.TrimSpace(c.Param("key")))
	if !s.catalog.HasFeature(key) {
		AbortWithError(c, catalog.ErrUnknownCatalogKey)
		return "", false
	}
	return key, true
}

func (s *Server) limitKeyParam(c *gin.Context) (catalog.LimitKey, bool) {
	key := catalog.LimitKey(strings.TrimSpace(c.Param("key")))
	if !s.catalog.HasLimit(key) {
		AbortWithError(c, catalog.ErrUnknownCatalogKey)
		return "", false
	}
	return key, true
}

func (s *Server) CheckFeature(c *gin.Context) {
	key, ok := s.featureKeyParam(c)
	if !ok {
		return
	}
	now, err := s.now(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	granted, err := s.entitlementSvc.HasFeature(c.Request.Context(), teamIDFromContext(c), key, now)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": featureCheckResponse{FeatureKey: key, Granted: granted}})
}

func (s *Server) CheckLimit(c *gin.Context) {
	key, ok := s.limitKeyParam(c)
	if !ok {
		return
	}
	now, err := s.now(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	check, err := s.entitlementSvc.CheckLimit(c.Request.Context(), teamIDFromContext(c), key, now)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": limitCheckResponse{LimitKey: key, LimitCheck: check}})
}

// ConsumeLimit answers 200 whether or not quota was granted; callers branch
// on ok. Only a refused consume is reported with the upgrade prompt.
func (s *Server) ConsumeLimit(c *gin.Context) {
	key, ok := s.limitKeyParam(c)
	if !ok {
		return
	}
	amount, ok := bindAmount(c)
	if !ok {
		return
	}
	now, err := s.now(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	res, err := s.entitlementSvc.TryIncrement(c.Request.Context(), teamIDFromContext(c), key, amount, now)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": consumeLimitResponse{
		LimitKey: key,
		OK:       res.OK,
		NewValue: res.NewValue,
		Limit:    res.Limit,
	}})
}

func (s *Server) ReleaseLimit(c *gin.Context) {
	key, ok := s.limitKeyParam(c)
	if !ok {
		return
	}
	amount, ok := bindAmount(c)
	if !ok {
		return
	}
	now, err := s.now(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	row, err := s.usageSvc.Release(c.Request.Context(), usagedomain.ReleaseRequest{
		TeamID:   teamIDFromContext(c),
		LimitKey: key,
		Amount:   amount,
		Now:      now,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": row})
}

// bindAmount reads an optional {"amount": n} body; an empty body means 1.
func bindAmount(c *gin.Context) (int64, bool) {
	var req consumeLimitRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return 0, false
		}
	}
	if req.Amount == nil {
		return 1, true
	}
	if *req.Amount <= 0 {
		AbortWithError(c, usagedomain.ErrInvalidAmount)
		return 0, false
	}
	return *req.Amount, true
}

func (s *Server) GetEntitlementSummary(c *gin.Context) {
	now, err := s.now(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	summary, err := s.entitlementSvc.Summary(c.Request.Context(), teamIDFromContext(c), now)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

func (s *Server) ListUsage(c *gin.Context) {
	rows, err := s.usageSvc.ListUsage(c.Request.Context(), teamIDFromContext(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rows})
}
