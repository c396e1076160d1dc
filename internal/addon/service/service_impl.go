package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	addondomain "github.com/smallbiznis/entitlements/internal/addon/domain"
	"github.com/smallbiznis/entitlements/internal/cache"
	"github.com/smallbiznis/entitlements/internal/catalog"
	"github.com/smallbiznis/entitlements/internal/clock"
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
	Repo    addondomain.Repository

	Cache cache.ResolutionCache `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	catalog *catalog.Catalog
	repo    addondomain.Repository
	cache   cache.ResolutionCache
}

func NewService(p ServiceParam) addondomain.Service {
	resolutionCache := p.Cache
	if resolutionCache == nil {
		resolutionCache = cache.NewNopResolutionCache()
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("addon.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		catalog: p.Catalog,
		repo:    p.Repo,
		cache:   resolutionCache,
	}
}

func (s *Service) Grant(ctx context.Context, req addondomain.GrantRequest) (*addondomain.TeamAddon, error) {
	if req.TeamID == 0 {
		return nil, addondomain.ErrInvalidTeam
	}
	addonID := catalog.AddonID(strings.TrimSpace(req.AddonID))
	if _, err := s.catalog.GetAddon(addonID); err != nil {
		return nil, err
	}
	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 {
		return nil, addondomain.ErrInvalidQuantity
	}

	now := s.clock.Now()
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return nil, addondomain.ErrInvalidExpiry
	}

	addon := &addondomain.TeamAddon{
		ID:        s.genID.Generate(),
		TeamID:    req.TeamID,
		AddonID:   string(addonID),
		Quantity:  quantity,
		Status:    addondomain.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.ExpiresAt != nil {
		expiresAt := req.ExpiresAt.UTC()
		addon.ExpiresAt = &expiresAt
	}

	if err := s.repo.Insert(ctx, s.db, addon); err != nil {
		return nil, err
	}
	s.cache.InvalidateTeam(req.TeamID)

	s.log.Info("addon granted",
		zap.String("team_id", req.TeamID.String()),
		zap.String("addon_id", addon.AddonID),
		zap.Int64("quantity", quantity),
	)
	return addon, nil
}

func (s *Service) Cancel(ctx context.Context, teamID, id snowflake.ID) (*addondomain.TeamAddon, error) {
	if teamID == 0 {
		return nil, addondomain.ErrInvalidTeam
	}

	var addon *addondomain.TeamAddon
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.repo.Cancel(ctx, tx, teamID, id, s.clock.Now()); err != nil {
			return err
		}
		found, err := s.repo.FindByID(ctx, tx, teamID, id)
		if err != nil {
			return err
		}
		if found == nil {
			return addondomain.ErrAddonNotFound
		}
		addon = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateTeam(teamID)

	s.log.Info("addon canceled",
		zap.String("team_id", teamID.String()),
		zap.String("team_addon_id", id.String()),
		zap.String("addon_id", addon.AddonID),
	)
	return addon, nil
}

func (s *Service) ListActive(ctx context.Context, teamID snowflake.ID, now time.Time) ([]addondomain.TeamAddon, error) {
	if teamID == 0 {
		return nil, addondomain.ErrInvalidTeam
	}
	return s.repo.ListActive(ctx, s.db, teamID, now.UTC())
}

func (s *Service) List(ctx context.Context, teamID snowflake.ID) ([]addondomain.TeamAddon, error) {
	if teamID == 0 {
		return nil, addondomain.ErrInvalidTeam
	}
	return s.repo.ListByTeam(ctx, s.db, teamID)
}
