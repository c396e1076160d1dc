package domain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlements/internal/catalog"
)

type Result struct {
	TeamID     snowflake.ID   `json:"team_id,string"`
	PlanID     catalog.PlanID `json:"plan_id"`
	Features   int            `json:"features"`
	Limits     int            `json:"limits"`
	SnapshotAt time.Time      `json:"snapshot_at"`
}

type Snapshot struct {
	TeamID   snowflake.ID             `json:"team_id,string"`
	Features []TeamFeatureEntitlement `json:"features"`
	Limits   []TeamLimitEntitlement   `json:"limits"`
}

// TeamError is one team's failure inside a batch run.
type TeamError struct {
	TeamID snowflake.ID
	PlanID catalog.PlanID
	Err    error
}

func (e TeamError) Error() string {
	return fmt.Sprintf("team %s (plan %s): %v", e.TeamID, e.PlanID, e.Err)
}

func (e TeamError) Unwrap() error { return e.Err }

// Report summarizes a SnapshotAllTeams run. One team's failure never stops
// the others; it lands in Errors instead.
type Report struct {
	StartedAt    time.Time
	FinishedAt   time.Time
	SuccessCount int
	FailureCount int
	Errors       []TeamError
}

func (r *Report) Total() int { return r.SuccessCount + r.FailureCount }

// Print writes the operator-facing summary.
func (r *Report) Print(w io.Writer) error {
	status := "OK"
	if r.FailureCount > 0 {
		status = "COMPLETED WITH FAILURES"
	}
	if _, err := fmt.Fprintf(w,
		"snapshot run %s\n  started:   %s\n  duration:  %s\n  teams:     %d\n  succeeded: %d\n  failed:    %d\n",
		status,
		r.StartedAt.Format(time.RFC3339),
		r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
		r.Total(),
		r.SuccessCount,
		r.FailureCount,
	); err != nil {
		return err
	}
	if len(r.Errors) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "  failures:"); err != nil {
		return err
	}
	for _, e := range r.Errors {
		if _, err := fmt.Fprintf(w, "    - %s\n", e.Error()); err != nil {
			return err
		}
	}
	return nil
}

type Service interface {
	// SnapshotPlanToTeam replaces the team's snapshot with planID's current
	// catalog definition. Running it twice yields the same rows.
	SnapshotPlanToTeam(ctx context.Context, teamID snowflake.ID, planID catalog.PlanID) (*Result, error)
	// ResnapshotTeam snapshots the team's current plan.
	ResnapshotTeam(ctx context.Context, teamID snowflake.ID) (*Result, error)
	// SnapshotAllTeams re-snapshots every team onto its current plan. The
	// error is non-nil only when teams could not be enumerated or ctx ended.
	SnapshotAllTeams(ctx context.Context) (*Report, error)
	GetSnapshot(ctx context.Context, teamID snowflake.ID) (*Snapshot, error)
}

var ErrSnapshotPanic = errors.New("snapshot_panic")
