package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlements/internal/cache"
	"github.com/smallbiznis/entitlements/internal/catalog"
	"github.com/smallbiznis/entitlements/internal/clock"
	obsmetrics "github.com/smallbiznis/entitlements/internal/observability/metrics"
	overridedomain "github.com/smallbiznis/entitlements/internal/override/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Catalog *catalog.Catalog
	Repo    overridedomain.Repository

	Cache   cache.ResolutionCache `optional:"true"`
	Metrics *obsmetrics.Metrics   `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	catalog *catalog.Catalog
	repo    overridedomain.Repository

	cache   cache.ResolutionCache
	metrics *obsmetrics.Metrics
}

func NewService(p ServiceParam) overridedomain.Service {
	resolutionCache := p.Cache
	if resolutionCache == nil {
		resolutionCache = cache.NewNopResolutionCache()
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("override.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		catalog: p.Catalog,
		repo:    p.Repo,

		cache:   resolutionCache,
		metrics: p.Metrics,
	}
}

func (s *Service) SetOverride(ctx context.Context, req overridedomain.SetRequest) (*overridedomain.Override, error) {
	now := s.clock.Now()
	key, err := s.validateSet(req, now)
	if err != nil {
		return nil, err
	}

	override := &overridedomain.Override{
		ID:        s.genID.Generate(),
		TeamID:    req.TeamID,
		Type:      req.Type,
		Key:       key,
		Value:     req.Value,
		Reason:    strings.TrimSpace(req.Reason),
		CreatedBy: strings.TrimSpace(req.CreatedBy),
		CreatedAt: now,
	}
	if req.ExpiresAt != nil {
		expiresAt := req.ExpiresAt.UTC()
		override.ExpiresAt = &expiresAt
	}

	// Rows are append-only: expiry and recency decide which one is active,
	// so an older permanent override resurfaces once a newer one expires.
	if err := s.repo.Insert(ctx, s.db, override); err != nil {
		return nil, err
	}

	s.cache.InvalidateTeam(req.TeamID)
	s.metrics.RecordOverrideWrite(ctx, string(req.Type), "set")
	s.log.Info("override set",
		zap.String("team_id", req.TeamID.String()),
		zap.String("type", string(req.Type)),
		zap.String("key", key),
		zap.String("value", req.Value.String()),
		zap.String("created_by", override.CreatedBy),
	)
	return override, nil
}

// validateSet returns the normalized key. An unknown key panics through the
// catalog: callers at the API edge check HasFeature/HasLimit first.
func (s *Service) validateSet(req overridedomain.SetRequest, now time.Time) (string, error) {
	if req.TeamID == 0 {
		return "", overridedomain.ErrInvalidTeam
	}
	key := strings.TrimSpace(req.Key)
	if key == "" {
		return "", overridedomain.ErrInvalidKey
	}
	switch req.Type {
	case overridedomain.TypeFeature:
		s.catalog.GetFeature(catalog.FeatureKey(key))
		if _, ok := req.Value.Bool(); !ok {
			return "", overridedomain.ErrInvalidValue
		}
	case overridedomain.TypeLimit:
		s.catalog.GetLimit(catalog.LimitKey(key))
		v, ok := req.Value.Int()
		if !ok || v < catalog.Unlimited {
			return "", overridedomain.ErrInvalidValue
		}
	default:
		return "", overridedomain.ErrInvalidType
	}
	if strings.TrimSpace(req.Reason) == "" {
		return "", overridedomain.ErrInvalidReason
	}
	if strings.TrimSpace(req.CreatedBy) == "" {
		return "", overridedomain.ErrInvalidActor
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return "", overridedomain.ErrInvalidExpiry
	}
	return key, nil
}

func (s *Service) GetActiveOverride(ctx context.Context, teamID snowflake.ID, typ overridedomain.Type, key string, now time.Time) (*overridedomain.Override, error) {
	if teamID == 0 {
		return nil, overridedomain.ErrInvalidTeam
	}
	if !typ.Valid() {
		return nil, overridedomain.ErrInvalidType
	}
	return s.repo.FindActive(ctx, s.db, teamID, typ, strings.TrimSpace(key), now.UTC())
}

func (s *Service) ClearOverride(ctx context.Context, req overridedomain.ClearRequest) (int64, error) {
	if req.TeamID == 0 {
		return 0, overridedomain.ErrInvalidTeam
	}
	if !req.Type.Valid() {
		return 0, overridedomain.ErrInvalidType
	}
	key := strings.TrimSpace(req.Key)
	if key == "" {
		return 0, overridedomain.ErrInvalidKey
	}
	actor := strings.TrimSpace(req.ClearedBy)
	if actor == "" {
		return 0, overridedomain.ErrInvalidActor
	}

	n, err := s.repo.SupersedeActive(ctx, s.db, req.TeamID, req.Type, key, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.cache.InvalidateTeam(req.TeamID)
		s.metrics.RecordOverrideWrite(ctx, string(req.Type), "clear")
	}
	s.log.Info("override cleared",
		zap.String("team_id", req.TeamID.String()),
		zap.String("type", string(req.Type)),
		zap.String("key", key),
		zap.String("cleared_by", actor),
		zap.Int64("superseded", n),
	)
	return n, nil
}

func (s *Service) ListOverrides(ctx context.Context, teamID snowflake.ID) ([]overridedomain.Override, error) {
	if teamID == 0 {
		return nil, overridedomain.ErrInvalidTeam
	}
	return s.repo.ListByTeam(ctx, s.db, teamID)
}
