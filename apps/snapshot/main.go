package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/entitlements/internal/catalog"
	"github.com/smallbiznis/entitlements/internal/clock"
	"github.com/smallbiznis/entitlements/internal/config"
	"github.com/smallbiznis/entitlements/internal/migration"
	"github.com/smallbiznis/entitlements/internal/observability"
	"github.com/smallbiznis/entitlements/internal/snapshot"
	snapshotdomain "github.com/smallbiznis/entitlements/internal/snapshot/domain"
	"github.com/smallbiznis/entitlements/internal/team"
	"github.com/smallbiznis/entitlements/internal/teamlock"
	"github.com/smallbiznis/entitlements/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

// Version is set at build time with -ldflags.
var Version = "dev"

var errFailures = errors.New("snapshot run completed with failures")

var rootCmd = &cobra.Command{
	Use:           "snapshot",
	Short:         "Copy catalog plans into team entitlement rows",
	Long:          `Operator tool for re-snapshotting teams after a catalog change. It prints a report and exits non-zero when any team failed.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Re-snapshot every team onto its current plan",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSnapshots(cmd.Context(), func(ctx context.Context, svc snapshotdomain.Service) error {
			report, err := svc.SnapshotAllTeams(ctx)
			if report != nil {
				if printErr := report.Print(cmd.OutOrStdout()); printErr != nil {
					return printErr
				}
			}
			if err != nil {
				return err
			}
			if report.FailureCount > 0 {
				return errFailures
			}
			return nil
		})
	},
}

var teamPlan string

var teamCmd = &cobra.Command{
	Use:   "team <team-id>",
	Short: "Snapshot a single team",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		teamID, err := snowflake.ParseString(strings.TrimSpace(args[0]))
		if err != nil || teamID == 0 {
			return fmt.Errorf("invalid team id %q", args[0])
		}
		return withSnapshots(cmd.Context(), func(ctx context.Context, svc snapshotdomain.Service) error {
			var res *snapshotdomain.Result
			if plan := strings.TrimSpace(teamPlan); plan != "" {
				res, err = svc.SnapshotPlanToTeam(ctx, teamID, catalog.PlanID(plan))
			} else {
				res, err = svc.ResnapshotTeam(ctx, teamID)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "team %s snapshotted onto plan %s (%d features, %d limits)\n",
				res.TeamID, res.PlanID, res.Features, res.Limits)
			return err
		})
	},
}

func init() {
	teamCmd.Flags().StringVar(&teamPlan, "plan", "", "plan id to copy; defaults to the team's current plan")
	rootCmd.AddCommand(allCmd, teamCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// withSnapshots starts the storage graph without the HTTP server, runs fn
// and shuts everything down again.
func withSnapshots(ctx context.Context, fn func(context.Context, snapshotdomain.Service) error) error {
	var svc snapshotdomain.Service
	app := fx.New(
		config.Module,
		observability.Module,
		fx.NopLogger,
		fx.Provide(func(cfg config.Config) (*snowflake.Node, error) {
			return snowflake.NewNode(cfg.SnowflakeNode)
		}),
		db.Module,
		clock.Module,
		catalog.Module,
		teamlock.Module,
		migration.Module,
		team.Module,
		snapshot.Module,
		fx.Populate(&svc),
	)

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = app.Stop(stopCtx)
	}()

	return fn(ctx, svc)
}
