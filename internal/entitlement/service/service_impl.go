package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	addondomain "github.com/smallbiznis/entitlements/internal/addon/domain"
	"github.com/smallbiznis/entitlements/internal/cache"
	"github.com/smallbiznis/entitlements/internal/catalog"
	"github.com/smallbiznis/entitlements/internal/clock"
	entitlementdomain "github.com/smallbiznis/entitlements/internal/entitlement/domain"
	obsmetrics "github.com/smallbiznis/entitlements/internal/observability/metrics"
	"github.com/smallbiznis/entitlements/internal/observability/tracing"
	overridedomain "github.com/smallbiznis/entitlements/internal/override/domain"
	snapshotdomain "github.com/smallbiznis/entitlements/internal/snapshot/domain"
	teamdomain "github.com/smallbiznis/entitlements/internal/team/domain"
	usagedomain "github.com/smallbiznis/entitlements/internal/usage/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// cacheSkew is how far a caller's now may drift from the clock before the
// resolution cache is bypassed. Answers for other instants are always
// resolved from storage.
const cacheSkew = time.Second

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Catalog   *catalog.Catalog
	Snapshots snapshotdomain.Repository
	Teams     teamdomain.Repository
	Overrides overridedomain.Service
	Addons    addondomain.Service
	Usage     usagedomain.Service

	Cache   cache.ResolutionCache `optional:"true"`
	Metrics *obsmetrics.Metrics   `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	catalog *catalog.Catalog
	tracer  trace.Tracer

	snapshots snapshotdomain.Repository
	teams     teamdomain.Repository
	overrides overridedomain.Service
	addons    addondomain.Service
	usage     usagedomain.Service

	cache   cache.ResolutionCache
	metrics *obsmetrics.Metrics
}

func NewService(p ServiceParam) entitlementdomain.Service {
	resolutionCache := p.Cache
	if resolutionCache == nil {
		resolutionCache = cache.NewNopResolutionCache()
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("entitlement.service"),
		clock:   p.Clock,
		catalog: p.Catalog,
		tracer:  otel.Tracer("entitlements/entitlement"),

		snapshots: p.Snapshots,
		teams:     p.Teams,
		overrides: p.Overrides,
		addons:    p.Addons,
		usage:     p.Usage,

		cache:   resolutionCache,
		metrics: p.Metrics,
	}
}

func (s *Service) HasFeature(ctx context.Context, teamID snowflake.ID, key catalog.FeatureKey, now time.Time) (granted bool, err error) {
	if teamID == 0 {
		return false, entitlementdomain.ErrInvalidTeam
	}
	s.catalog.GetFeature(key)

	ctx, span := s.startSpan(ctx, "entitlement.HasFeature", teamID, attribute.String("feature_key", string(key)))
	defer func() { endSpan(span, err) }()

	useCache := s.cacheable(now)
	if useCache {
		if cached, ok := s.cache.GetFeature(teamID, key); ok {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			s.metrics.RecordFeatureCheck(ctx, string(key), cached, "cache")
			return cached, nil
		}
	}

	gen := s.cache.Generation(teamID)
	res, err := s.resolveFeature(ctx, teamID, key, now)
	if err != nil {
		return false, err
	}
	if useCache {
		s.cache.SetFeature(teamID, gen, key, res.granted, res.ttl)
	}

	span.SetAttributes(attribute.String("source", string(res.source)))
	s.metrics.RecordFeatureCheck(ctx, string(key), res.granted, string(res.source))
	return res.granted, nil
}

func (s *Service) GetLimitValue(ctx context.Context, teamID snowflake.ID, key catalog.LimitKey, now time.Time) (value int64, err error) {
	if teamID == 0 {
		return 0, entitlementdomain.ErrInvalidTeam
	}
	s.catalog.GetLimit(key)

	ctx, span := s.startSpan(ctx, "entitlement.GetLimitValue", teamID, attribute.String("limit_key", string(key)))
	defer func() { endSpan(span, err) }()

	res, err := s.limitValue(ctx, teamID, key, now)
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int64("limit", res.value))
	return res.value, nil
}

// limitValue serves GetLimitValue through the cache when now is current.
func (s *Service) limitValue(ctx context.Context, teamID snowflake.ID, key catalog.LimitKey, now time.Time) (limitResolution, error) {
	useCache := s.cacheable(now)
	if useCache {
		if cached, ok := s.cache.GetLimit(teamID, key); ok {
			return limitResolution{value: cached, source: "cache"}, nil
		}
	}

	gen := s.cache.Generation(teamID)
	res, err := s.resolveLimit(ctx, teamID, key, now)
	if err != nil {
		return limitResolution{}, err
	}
	if useCache {
		s.cache.SetLimit(teamID, gen, key, res.value, res.ttl)
	}
	return res, nil
}

func (s *Service) CheckLimit(ctx context.Context, teamID snowflake.ID, key catalog.LimitKey, now time.Time) (check entitlementdomain.LimitCheck, err error) {
	if teamID == 0 {
		return entitlementdomain.LimitCheck{}, entitlementdomain.ErrInvalidTeam
	}
	s.catalog.GetLimit(key)

	ctx, span := s.startSpan(ctx, "entitlement.CheckLimit", teamID, attribute.String("limit_key", string(key)))
	defer func() { endSpan(span, err) }()

	res, err := s.limitValue(ctx, teamID, key, now)
	if err != nil {
		return entitlementdomain.LimitCheck{}, err
	}
	check, err = s.check(ctx, teamID, key, res.value, now)
	if err != nil {
		return entitlementdomain.LimitCheck{}, err
	}

	span.SetAttributes(
		attribute.Bool("allowed", check.Allowed),
		attribute.Bool("unlimited", check.IsUnlimited),
	)
	s.metrics.RecordLimitCheck(ctx, string(key), limitCheckResult(check))
	return check, nil
}

// check applies the usage counter to a resolved limit. Unlimited never reads
// usage.
func (s *Service) check(ctx context.Context, teamID snowflake.ID, key catalog.LimitKey, limit int64, now time.Time) (entitlementdomain.LimitCheck, error) {
	if catalog.IsUnlimited(limit) {
		return entitlementdomain.LimitCheck{
			Allowed:     true,
			Remaining:   catalog.Unlimited,
			IsUnlimited: true,
			Limit:       catalog.Unlimited,
		}, nil
	}

	used, err := s.usage.CurrentUsage(ctx, teamID, key, now)
	if err != nil {
		return entitlementdomain.LimitCheck{}, err
	}
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return entitlementdomain.LimitCheck{
		Allowed:   used < limit,
		Remaining: remaining,
		Limit:     limit,
		Used:      used,
	}, nil
}

func (s *Service) TryIncrement(ctx context.Context, teamID snowflake.ID, key catalog.LimitKey, amount int64, now time.Time) (result usagedomain.IncrementResult, err error) {
	if teamID == 0 {
		return usagedomain.IncrementResult{}, entitlementdomain.ErrInvalidTeam
	}
	s.catalog.GetLimit(key)

	ctx, span := s.startSpan(ctx, "entitlement.TryIncrement", teamID,
		attribute.String("limit_key", string(key)),
		attribute.Int64("amount", amount),
	)
	defer func() { endSpan(span, err) }()

	// The ceiling is read from storage, not the cache, so a consume never
	// acts on an answer older than the last committed override.
	res, err := s.resolveLimit(ctx, teamID, key, now)
	if err != nil {
		return usagedomain.IncrementResult{}, err
	}

	result, err = s.usage.Consume(ctx, usagedomain.ConsumeRequest{
		TeamID:   teamID,
		LimitKey: key,
		Amount:   amount,
		Limit:    res.value,
		Now:      now,
	})
	if err != nil {
		return usagedomain.IncrementResult{}, err
	}

	span.SetAttributes(attribute.Bool("ok", result.OK), attribute.Int64("new_value", result.NewValue))
	if !result.OK {
		s.log.Debug("usage increment denied",
			zap.String("team_id", teamID.String()),
			zap.String("limit_key", string(key)),
			zap.Int64("limit", result.Limit),
			zap.Int64("current_value", result.NewValue),
			zap.Int64("amount", amount),
		)
	}
	return result, nil
}

func (s *Service) Summary(ctx context.Context, teamID snowflake.ID, now time.Time) (*entitlementdomain.Summary, error) {
	if teamID == 0 {
		return nil, entitlementdomain.ErrInvalidTeam
	}
	team, err := s.teams.FindByID(ctx, s.db, teamID)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, teamdomain.ErrTeamNotFound
	}

	summary := &entitlementdomain.Summary{
		TeamID:   teamID,
		PlanID:   team.PlanID(),
		PlanName: s.planName(team.PlanID()),
		At:       now,
	}
	for _, feature := range s.catalog.Features() {
		res, err := s.resolveFeature(ctx, teamID, feature.Key, now)
		if err != nil {
			return nil, err
		}
		summary.Features = append(summary.Features, entitlementdomain.FeatureGrant{
			Key:     feature.Key,
			Granted: res.granted,
			Source:  res.source,
		})
	}
	for _, limit := range s.catalog.Limits() {
		res, err := s.resolveLimit(ctx, teamID, limit.Key, now)
		if err != nil {
			return nil, err
		}
		check, err := s.check(ctx, teamID, limit.Key, res.value, now)
		if err != nil {
			return nil, err
		}
		summary.Limits = append(summary.Limits, entitlementdomain.LimitGrant{
			Key:         limit.Key,
			ResetPeriod: limit.ResetPeriod,
			Source:      res.source,
			LimitCheck:  check,
		})
	}
	return summary, nil
}

func (s *Service) cacheable(now time.Time) bool {
	d := s.clock.Now().Sub(now)
	if d < 0 {
		d = -d
	}
	return d <= cacheSkew
}

func (s *Service) startSpan(ctx context.Context, name string, teamID snowflake.ID, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("team_id", teamID.String()))
	return s.tracer.Start(ctx, name, trace.WithAttributes(tracing.SafeAttributes(attrs...)...))
}

func endSpan(span trace.Span, err error) {
	if safe := tracing.SafeError(err); safe != nil {
		span.RecordError(safe)
		span.SetStatus(codes.Error, safe.Error())
	}
	span.End()
}

func limitCheckResult(check entitlementdomain.LimitCheck) string {
	switch {
	case check.IsUnlimited:
		return "unlimited"
	case check.Allowed:
		return "allowed"
	default:
		return "exceeded"
	}
}
