package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlements/internal/catalog"
	"github.com/smallbiznis/entitlements/internal/clock"
	obsmetrics "github.com/smallbiznis/entitlements/internal/observability/metrics"
	usagedomain "github.com/smallbiznis/entitlements/internal/usage/domain"
	"github.com/smallbiznis/entitlements/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// consumeAttempts bounds how often Consume re-reads the window after an
// update that matched no row for a reason other than quota.
const consumeAttempts = 2

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Catalog *catalog.Catalog
	Repo    usagedomain.Repository

	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	catalog *catalog.Catalog
	repo    usagedomain.Repository
	metrics *obsmetrics.Metrics
}

func NewService(p ServiceParam) usagedomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("usage.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		catalog: p.Catalog,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

func (s *Service) GetOrCreateUsagePeriod(ctx context.Context, teamID snowflake.ID, limitKey catalog.LimitKey, now time.Time) (*usagedomain.TeamUsage, error) {
	if teamID == 0 {
		return nil, usagedomain.ErrInvalidTeam
	}
	return s.getOrCreate(ctx, s.db, teamID, limitKey, now)
}

func (s *Service) getOrCreate(ctx context.Context, tx *gorm.DB, teamID snowflake.ID, limitKey catalog.LimitKey, now time.Time) (*usagedomain.TeamUsage, error) {
	limit := s.catalog.GetLimit(limitKey)
	start, end := usagedomain.PeriodFor(limit.ResetPeriod, now)

	usage, err := s.repo.FindByPeriod(ctx, tx, teamID, string(limitKey), start)
	if err != nil {
		return nil, err
	}
	if usage != nil {
		return usage, nil
	}

	ts := s.clock.Now()
	if err := s.repo.InsertIfAbsent(ctx, tx, &usagedomain.TeamUsage{
		ID:          s.genID.Generate(),
		TeamID:      teamID,
		LimitKey:    string(limitKey),
		PeriodStart: start,
		PeriodEnd:   end,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}); err != nil {
		return nil, err
	}

	// Another writer may have won the insert; either way the row now exists.
	usage, err = s.repo.FindByPeriod(ctx, tx, teamID, string(limitKey), start)
	if err != nil {
		return nil, err
	}
	if usage == nil {
		return nil, fmt.Errorf("%w: usage window for %s vanished after insert", usagedomain.ErrStorageConflict, limitKey)
	}
	return usage, nil
}

func (s *Service) CurrentUsage(ctx context.Context, teamID snowflake.ID, limitKey catalog.LimitKey, now time.Time) (int64, error) {
	if teamID == 0 {
		return 0, usagedomain.ErrInvalidTeam
	}
	limit := s.catalog.GetLimit(limitKey)
	start, _ := usagedomain.PeriodFor(limit.ResetPeriod, now)

	usage, err := s.repo.FindByPeriod(ctx, s.db, teamID, string(limitKey), start)
	if err != nil {
		return 0, err
	}
	if usage == nil {
		return 0, nil
	}
	return usage.CurrentValue, nil
}

func (s *Service) Consume(ctx context.Context, req usagedomain.ConsumeRequest) (usagedomain.IncrementResult, error) {
	if req.TeamID == 0 {
		return usagedomain.IncrementResult{}, usagedomain.ErrInvalidTeam
	}
	if req.Amount <= 0 {
		return usagedomain.IncrementResult{}, usagedomain.ErrInvalidAmount
	}
	if req.Limit < catalog.Unlimited {
		return usagedomain.IncrementResult{}, usagedomain.ErrInvalidLimit
	}
	now := req.Now
	if now.IsZero() {
		now = s.clock.Now()
	}

	var lastErr error
	for attempt := 1; attempt <= consumeAttempts; attempt++ {
		result, retry, err := s.tryConsume(ctx, req, now)
		if err == nil && !retry {
			s.metrics.RecordUsageIncrement(ctx, string(req.LimitKey), incrementResult(result))
			return result, nil
		}
		if err != nil && !db.IsConflictErr(err) && !errors.Is(err, usagedomain.ErrStorageConflict) {
			return usagedomain.IncrementResult{}, err
		}
		lastErr = err
		s.log.Debug("usage increment retry",
			zap.String("team_id", req.TeamID.String()),
			zap.String("limit_key", string(req.LimitKey)),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	s.metrics.RecordUsageIncrement(ctx, string(req.LimitKey), "conflict")
	s.log.Warn("usage increment conflict",
		zap.String("team_id", req.TeamID.String()),
		zap.String("limit_key", string(req.LimitKey)),
		zap.Error(lastErr),
	)
	if lastErr != nil && !errors.Is(lastErr, usagedomain.ErrStorageConflict) {
		return usagedomain.IncrementResult{}, fmt.Errorf("%w: %v", usagedomain.ErrStorageConflict, lastErr)
	}
	return usagedomain.IncrementResult{}, usagedomain.ErrStorageConflict
}

// tryConsume runs one conditional increment. retry is true when the update
// matched nothing yet the window still has room, which means the row moved
// underneath us.
func (s *Service) tryConsume(ctx context.Context, req usagedomain.ConsumeRequest, now time.Time) (result usagedomain.IncrementResult, retry bool, err error) {
	result.Limit = req.Limit
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		usage, err := s.getOrCreate(ctx, tx, req.TeamID, req.LimitKey, now)
		if err != nil {
			return err
		}

		var affected int64
		if catalog.IsUnlimited(req.Limit) {
			affected, err = s.repo.Increment(ctx, tx, usage.ID, req.Amount, s.clock.Now())
		} else {
			affected, err = s.repo.IncrementWithin(ctx, tx, usage.ID, req.Amount, req.Limit, s.clock.Now())
		}
		if err != nil {
			return err
		}

		current, err := s.repo.FindByID(ctx, tx, usage.ID)
		if err != nil {
			return err
		}
		if current == nil || !current.Contains(now) {
			retry = true
			return nil
		}
		result.NewValue = current.CurrentValue
		if affected == 1 {
			result.OK = true
			return nil
		}
		if !catalog.IsUnlimited(req.Limit) && req.Amount > req.Limit-current.CurrentValue {
			return nil
		}
		retry = true
		return nil
	})
	return result, retry, err
}

func incrementResult(r usagedomain.IncrementResult) string {
	if r.OK {
		return "ok"
	}
	return "exceeded"
}

func (s *Service) Release(ctx context.Context, req usagedomain.ReleaseRequest) (*usagedomain.TeamUsage, error) {
	if req.TeamID == 0 {
		return nil, usagedomain.ErrInvalidTeam
	}
	if req.Amount <= 0 {
		return nil, usagedomain.ErrInvalidAmount
	}
	now := req.Now
	if now.IsZero() {
		now = s.clock.Now()
	}

	var usage *usagedomain.TeamUsage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.getOrCreate(ctx, tx, req.TeamID, req.LimitKey, now)
		if err != nil {
			return err
		}
		if _, err := s.repo.Decrement(ctx, tx, row.ID, req.Amount, s.clock.Now()); err != nil {
			return err
		}
		usage, err = s.repo.FindByID(ctx, tx, row.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if usage == nil {
		return nil, usagedomain.ErrStorageConflict
	}

	s.log.Info("usage released",
		zap.String("team_id", req.TeamID.String()),
		zap.String("limit_key", string(req.LimitKey)),
		zap.Int64("amount", req.Amount),
		zap.Int64("current_value", usage.CurrentValue),
	)
	return usage, nil
}

func (s *Service) ListUsage(ctx context.Context, teamID snowflake.ID) ([]usagedomain.TeamUsage, error) {
	if teamID == 0 {
		return nil, usagedomain.ErrInvalidTeam
	}
	return s.repo.ListByTeam(ctx, s.db, teamID)
}
