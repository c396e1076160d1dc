package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlements/internal/catalog"
	snapshotdomain "github.com/smallbiznis/entitlements/internal/snapshot/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SnapshotAllTeams pages through every team and re-snapshots it onto its
// current plan using a bounded pool of workers.
func (s *Service) SnapshotAllTeams(ctx context.Context) (*snapshotdomain.Report, error) {
	report := &snapshotdomain.Report{StartedAt: s.clock.Now()}
	start := time.Now()

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.workers)

	record := func(teamID snowflake.ID, planID catalog.PlanID, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err == nil {
			report.SuccessCount++
			return
		}
		report.FailureCount++
		report.Errors = append(report.Errors, snapshotdomain.TeamError{TeamID: teamID, PlanID: planID, Err: err})
	}

	var (
		afterID snowflake.ID
		listErr error
	)
pages:
	for {
		if err := ctx.Err(); err != nil {
			listErr = err
			break
		}
		teams, err := s.teams.ListAfter(ctx, s.db, afterID, s.pageSize)
		if err != nil {
			listErr = err
			break
		}
		for _, team := range teams {
			if err := ctx.Err(); err != nil {
				listErr = err
				break pages
			}
			teamID := team.ID
			g.Go(func() error {
				planID, err := s.runTeam(ctx, teamID)
				record(teamID, planID, err)
				return nil
			})
		}
		if len(teams) < s.pageSize {
			break
		}
		afterID = teams[len(teams)-1].ID
	}
	_ = g.Wait()

	sort.Slice(report.Errors, func(i, j int) bool {
		return report.Errors[i].TeamID < report.Errors[j].TeamID
	})
	report.FinishedAt = s.clock.Now()
	s.metrics.ObserveBatch(report.SuccessCount, report.FailureCount, time.Since(start), report.FinishedAt)

	fields := []zap.Field{
		zap.Int("succeeded", report.SuccessCount),
		zap.Int("failed", report.FailureCount),
		zap.Duration("duration", time.Since(start)),
	}
	if listErr != nil {
		s.log.Error("snapshot batch aborted", append(fields, zap.Error(listErr))...)
		return report, listErr
	}
	if report.FailureCount > 0 {
		s.log.Warn("snapshot batch completed with failures", fields...)
	} else {
		s.log.Info("snapshot batch completed", fields...)
	}
	return report, nil
}

func (s *Service) runTeam(ctx context.Context, teamID snowflake.ID) (planID catalog.PlanID, err error) {
	defer s.recoverPanic(teamID, &err)

	planID, err = s.plans.CurrentPlan(ctx, teamID)
	if err != nil {
		return "", err
	}
	_, err = s.SnapshotPlanToTeam(ctx, teamID, planID)
	if err != nil && isContextErr(err) {
		s.log.Debug("snapshot interrupted", zap.String("team_id", teamID.String()))
	}
	return planID, err
}
