package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	addondomain "github.com/smallbiznis/entitlements/internal/addon/domain"
	"github.com/smallbiznis/entitlements/internal/catalog"
	entitlementdomain "github.com/smallbiznis/entitlements/internal/entitlement/domain"
	overridedomain "github.com/smallbiznis/entitlements/internal/override/domain"
	"go.uber.org/zap"
)

type featureResolution struct {
	granted bool
	source  entitlementdomain.Source
	// ttl caps how long the answer may be cached; 0 means no cap.
	ttl time.Duration
}

type limitResolution struct {
	value  int64
	source entitlementdomain.Source
	ttl    time.Duration
}

// resolveFeature applies the precedence override > snapshot or add-on >
// false. An override granting false revokes the feature even when the plan
// includes it.
func (s *Service) resolveFeature(ctx context.Context, teamID snowflake.ID, key catalog.FeatureKey, now time.Time) (featureResolution, error) {
	override, err := s.overrides.GetActiveOverride(ctx, teamID, overridedomain.TypeFeature, string(key), now)
	if err != nil {
		return featureResolution{}, err
	}
	if override != nil {
		granted, ok := override.Value.Bool()
		if !ok {
			s.log.Warn("feature override holds a non-boolean value",
				zap.String("team_id", teamID.String()),
				zap.String("feature_key", string(key)),
				zap.String("override_id", override.ID.String()),
			)
		}
		return featureResolution{
			granted: ok && granted,
			source:  entitlementdomain.SourceOverride,
			ttl:     ttlUntil(override.ExpiresAt, now),
		}, nil
	}

	row, err := s.snapshots.FindFeature(ctx, s.db, teamID, string(key))
	if err != nil {
		return featureResolution{}, err
	}
	if row != nil {
		return featureResolution{granted: true, source: entitlementdomain.SourceSnapshot}, nil
	}

	addons, err := s.addons.ListActive(ctx, teamID, now)
	if err != nil {
		return featureResolution{}, err
	}
	for _, a := range addons {
		def, ok := s.catalogAddon(teamID, a)
		if !ok {
			continue
		}
		for _, f := range def.Features {
			if f == key {
				return featureResolution{
					granted: true,
					source:  entitlementdomain.SourceAddon,
					ttl:     ttlUntil(a.ExpiresAt, now),
				}, nil
			}
		}
	}

	return featureResolution{granted: false, source: entitlementdomain.SourceNone, ttl: addonTTL(addons, now)}, nil
}

// resolveLimit applies override > snapshot value plus add-on boosts > 0.
// Unlimited absorbs any boost, and an add-on may itself grant unlimited.
func (s *Service) resolveLimit(ctx context.Context, teamID snowflake.ID, key catalog.LimitKey, now time.Time) (limitResolution, error) {
	override, err := s.overrides.GetActiveOverride(ctx, teamID, overridedomain.TypeLimit, string(key), now)
	if err != nil {
		return limitResolution{}, err
	}
	if override != nil {
		value, ok := override.Value.Int()
		if !ok || value < catalog.Unlimited {
			s.log.Warn("limit override holds an invalid value",
				zap.String("team_id", teamID.String()),
				zap.String("limit_key", string(key)),
				zap.String("override_id", override.ID.String()),
			)
			value = 0
		}
		return limitResolution{
			value:  value,
			source: entitlementdomain.SourceOverride,
			ttl:    ttlUntil(override.ExpiresAt, now),
		}, nil
	}

	res := limitResolution{source: entitlementdomain.SourceNone}
	row, err := s.snapshots.FindLimit(ctx, s.db, teamID, string(key))
	if err != nil {
		return limitResolution{}, err
	}
	if row != nil {
		res.value = row.Value
		res.source = entitlementdomain.SourceSnapshot
	}

	addons, err := s.addons.ListActive(ctx, teamID, now)
	if err != nil {
		return limitResolution{}, err
	}
	for _, a := range addons {
		def, ok := s.catalogAddon(teamID, a)
		if !ok {
			continue
		}
		boost, ok := def.Limits[key]
		if !ok {
			continue
		}
		if res.source == entitlementdomain.SourceNone {
			res.source = entitlementdomain.SourceAddon
		}
		if catalog.IsUnlimited(boost) {
			res.value = catalog.Unlimited
			continue
		}
		if catalog.IsUnlimited(res.value) {
			continue
		}
		res.value += boost * a.Quantity
	}
	res.ttl = addonTTL(addons, now)
	return res, nil
}

func (s *Service) catalogAddon(teamID snowflake.ID, a addondomain.TeamAddon) (catalog.Addon, bool) {
	def, err := s.catalog.GetAddon(catalog.AddonID(a.AddonID))
	if err != nil {
		s.log.Warn("team addon missing from catalog",
			zap.String("team_id", teamID.String()),
			zap.String("addon_id", a.AddonID),
		)
		return catalog.Addon{}, false
	}
	return def, true
}

func ttlUntil(expiresAt *time.Time, now time.Time) time.Duration {
	if expiresAt == nil {
		return 0
	}
	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		return time.Nanosecond
	}
	return ttl
}

// addonTTL is the time until the earliest active add-on expires.
func addonTTL(addons []addondomain.TeamAddon, now time.Time) time.Duration {
	var ttl time.Duration
	for _, a := range addons {
		t := ttlUntil(a.ExpiresAt, now)
		if t > 0 && (ttl == 0 || t < ttl) {
			ttl = t
		}
	}
	return ttl
}
