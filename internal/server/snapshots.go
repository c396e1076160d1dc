package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/entitlements/internal/catalog"
	snapshotdomain "github.com/smallbiznis/entitlements/internal/snapshot/domain"
	"go.uber.org/zap"
)

type snapshotTeamRequest struct {
	PlanID string `json:"plan_id"`
}

type snapshotReportResponse struct {
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
	Total        int             `json:"total"`
	SuccessCount int             `json:"success_count"`
	FailureCount int             `json:"failure_count"`
	Errors       []snapshotError `json:"errors"`
}

type snapshotError struct {
	TeamID string `json:"team_id"`
	PlanID string `json:"plan_id"`
	Error  string `json:"error"`
}

func (s *Server) GetSnapshot(c *gin.Context) {
	snapshot, err := s.snapshotSvc.GetSnapshot(c.Request.Context(), teamIDFromContext(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": snapshot})
}

// SnapshotTeam copies plan_id onto the team, or re-copies the team's current
// plan when the body names none.
func (s *Server) SnapshotTeam(c *gin.Context) {
	var req snapshotTeamRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	ctx := c.Request.Context()
	teamID := teamIDFromContext(c)
	planID := catalog.PlanID(strings.TrimSpace(req.PlanID))

	var (
		result *snapshotdomain.Result
		err    error
	)
	if planID == "" {
		result, err = s.snapshotSvc.ResnapshotTeam(ctx, teamID)
	} else {
		result, err = s.snapshotSvc.SnapshotPlanToTeam(ctx, teamID, planID)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// SnapshotAllTeams runs the batch inline and answers with its report.
// Per-team failures are part of a 200 response.
func (s *Server) SnapshotAllTeams(c *gin.Context) {
	report, err := s.snapshotSvc.SnapshotAllTeams(c.Request.Context())
	if err != nil && report == nil {
		AbortWithError(c, err)
		return
	}
	if err != nil {
		s.log.Warn("snapshot batch ended early", zap.Error(err))
	}

	resp := snapshotReportResponse{
		StartedAt:    report.StartedAt,
		FinishedAt:   report.FinishedAt,
		Total:        report.Total(),
		SuccessCount: report.SuccessCount,
		FailureCount: report.FailureCount,
		Errors:       make([]snapshotError, 0, len(report.Errors)),
	}
	for _, e := range report.Errors {
		msg := ""
		if e.Err != nil {
			msg = e.Err.Error()
		}
		resp.Errors = append(resp.Errors, snapshotError{
			TeamID: e.TeamID.String(),
			PlanID: string(e.PlanID),
			Error:  msg,
		})
	}

	status := http.StatusOK
	if err != nil {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"data": resp})
}
