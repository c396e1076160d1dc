// Package scheduler re-applies every team's current plan on a fixed interval
// so catalog edits reach teams without an operator running the snapshot tool.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/entitlements/internal/clock"
	snapshotdomain "github.com/smallbiznis/entitlements/internal/snapshot/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const JobResnapshot = "resnapshot_all_teams"

var (
	ErrInvalidConfig = errors.New("invalid_scheduler_config")
	// ErrBatchFailures is returned when a resnapshot run finished but at
	// least one team failed.
	ErrBatchFailures = errors.New("snapshot_batch_failures")
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Clock     clock.Clock
	Snapshots snapshotdomain.Service
	Config    Config `optional:"true"`
}

type Scheduler struct {
	log       *zap.Logger
	cfg       Config
	clock     clock.Clock
	snapshots snapshotdomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Clock == nil || p.Snapshots == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:       p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:       p.Config.withDefaults(),
		clock:     p.Clock,
		snapshots: p.Snapshots,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	log := s.log.With(zap.String("job", name))
	log.Info("job started")

	err := fn(ctx)
	if err == nil {
		log.Info("job finished", zap.Duration("duration", s.clock.Now().Sub(start)))
		return nil
	}

	// deadline is a soft timeout, the next tick picks the work up again
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	log.Error("job failed", zap.Error(err))
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	return s.runJob(parent, JobResnapshot, s.cfg.JobTimeout, s.ResnapshotJob)
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ResnapshotJob runs SnapshotAllTeams. Per-team failures are logged from the
// report and surface as ErrBatchFailures; they never stop the batch.
func (s *Scheduler) ResnapshotJob(ctx context.Context) error {
	report, err := s.snapshots.SnapshotAllTeams(ctx)
	if err != nil {
		return err
	}
	if report == nil {
		return nil
	}

	for _, failure := range report.Errors {
		s.log.Warn("team resnapshot failed",
			zap.String("team_id", failure.TeamID.String()),
			zap.String("plan_id", string(failure.PlanID)),
			zap.Error(failure.Err),
		)
	}
	s.log.Info("resnapshot report",
		zap.Int("total", report.Total()),
		zap.Int("success", report.SuccessCount),
		zap.Int("failure", report.FailureCount),
	)
	if report.FailureCount > 0 {
		return fmt.Errorf("%w: %d of %d teams", ErrBatchFailures, report.FailureCount, report.Total())
	}
	return nil
}
