package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/smallbiznis/entitlements/internal/catalog"
	"github.com/smallbiznis/entitlements/internal/clock"
	"github.com/smallbiznis/entitlements/internal/config"
	entitlementdomain "github.com/smallbiznis/entitlements/internal/entitlement/domain"
	"github.com/smallbiznis/entitlements/internal/entitlement/domain/mocks"
	overridedomain "github.com/smallbiznis/entitlements/internal/override/domain"
	snapshotdomain "github.com/smallbiznis/entitlements/internal/snapshot/domain"
	usagedomain "github.com/smallbiznis/entitlements/internal/usage/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testTeamID = snowflake.ID(1742)

type fakeOverrideService struct {
	lastSet   *overridedomain.SetRequest
	lastClear *overridedomain.ClearRequest
}

func (f *fakeOverrideService) SetOverride(ctx context.Context, req overridedomain.SetRequest) (*overridedomain.Override, error) {
	f.lastSet = &req
	return &overridedomain.Override{
		ID:        1,
		TeamID:    req.TeamID,
		Type:      req.Type,
		Key:       req.Key,
		Value:     req.Value,
		Reason:    req.Reason,
		CreatedBy: req.CreatedBy,
	}, nil
}

func (f *fakeOverrideService) GetActiveOverride(ctx context.Context, teamID snowflake.ID, typ overridedomain.Type, key string, now time.Time) (*overridedomain.Override, error) {
	return nil, nil
}

func (f *fakeOverrideService) ClearOverride(ctx context.Context, req overridedomain.ClearRequest) (int64, error) {
	f.lastClear = &req
	return 1, nil
}

func (f *fakeOverrideService) ListOverrides(ctx context.Context, teamID snowflake.ID) ([]overridedomain.Override, error) {
	return nil, nil
}

type fakeSnapshotService struct {
	report    *snapshotdomain.Report
	reportErr error
	lastPlan  catalog.PlanID
}

func (f *fakeSnapshotService) SnapshotPlanToTeam(ctx context.Context, teamID snowflake.ID, planID catalog.PlanID) (*snapshotdomain.Result, error) {
	f.lastPlan = planID
	return &snapshotdomain.Result{TeamID: teamID, PlanID: planID}, nil
}

func (f *fakeSnapshotService) ResnapshotTeam(ctx context.Context, teamID snowflake.ID) (*snapshotdomain.Result, error) {
	f.lastPlan = catalog.DefaultPlanID
	return &snapshotdomain.Result{TeamID: teamID, PlanID: catalog.DefaultPlanID}, nil
}

func (f *fakeSnapshotService) SnapshotAllTeams(ctx context.Context) (*snapshotdomain.Report, error) {
	return f.report, f.reportErr
}

func (f *fakeSnapshotService) GetSnapshot(ctx context.Context, teamID snowflake.ID) (*snapshotdomain.Snapshot, error) {
	return &snapshotdomain.Snapshot{TeamID: teamID}, nil
}

type testServer struct {
	srv         *Server
	clock       *clock.FakeClock
	entitlement *mocks.MockService
	overrides   *fakeOverrideService
	snapshots   *fakeSnapshotService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctrl := gomock.NewController(t)
	ts := &testServer{
		clock:       clock.NewFakeClock(time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)),
		entitlement: mocks.NewMockService(ctrl),
		overrides:   &fakeOverrideService{},
		snapshots:   &fakeSnapshotService{},
	}

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	ts.srv = NewServer(ServerParams{
		Gin:            router,
		Cfg:            config.Config{Environment: "test"},
		Log:            zap.NewNop(),
		Clock:          ts.clock,
		Catalog:        catalog.Default(),
		EntitlementSvc: ts.entitlement,
		SnapshotSvc:    ts.snapshots,
		OverrideSvc:    ts.overrides,
	})
	return ts
}

func (ts *testServer) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(resp, req)
	return resp
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return body.Error
}

func TestCheckFeature(t *testing.T) {
	ts := newTestServer(t)
	ts.entitlement.EXPECT().
		HasFeature(gomock.Any(), testTeamID, catalog.FeatureHostCompetitions, ts.clock.Now()).
		Return(true, nil)

	resp := ts.do(http.MethodGet, "/api/teams/1742/features/host_competitions", "", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var body struct {
		Data featureCheckResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.True(t, body.Data.Granted)
	assert.Equal(t, catalog.FeatureHostCompetitions, body.Data.FeatureKey)
}

func TestCheckFeature_AtQueryOverridesClock(t *testing.T) {
	ts := newTestServer(t)
	at := time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC)
	ts.entitlement.EXPECT().
		HasFeature(gomock.Any(), testTeamID, catalog.FeatureProgramCalendar, at).
		Return(false, nil)

	resp := ts.do(http.MethodGet, "/api/teams/1742/features/program_calendar?at=2025-12-31T23:00:00Z", "", nil)
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = ts.do(http.MethodGet, "/api/teams/1742/features/program_calendar?at=yesterday", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "invalid_at", decodeError(t, resp).Errors[0].Code)
}

func TestCheckFeature_DateOnlyAtIsMidnightUTC(t *testing.T) {
	ts := newTestServer(t)
	ts.entitlement.EXPECT().
		HasFeature(gomock.Any(), testTeamID, catalog.FeatureProgramCalendar, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)).
		Return(true, nil)

	resp := ts.do(http.MethodGet, "/api/teams/1742/features/program_calendar?at=2026-01-01", "", nil)
	assert.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
}

func TestUnknownCatalogKeyIsNotFound(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodGet, "/api/teams/1742/features/teleportation", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.do(http.MethodPost, "/api/teams/1742/limits/max_spaceships/consume", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestInvalidTeamID(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodGet, "/api/teams/not-a-number/features/host_competitions", "", nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	payload := decodeError(t, resp)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_team_id", payload.Errors[0].Code)
}

func TestCheckLimit(t *testing.T) {
	ts := newTestServer(t)
	ts.entitlement.EXPECT().
		CheckLimit(gomock.Any(), testTeamID, catalog.LimitMaxMembersPerTeam, ts.clock.Now()).
		Return(entitlementdomain.LimitCheck{Allowed: true, Remaining: 3, Limit: 10, Used: 7}, nil)

	resp := ts.do(http.MethodGet, "/api/teams/1742/limits/max_members_per_team", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t,
		`{"data":{"limit_key":"max_members_per_team","allowed":true,"remaining":3,"is_unlimited":false,"limit":10,"used":7}}`,
		resp.Body.String())
}

func TestConsumeLimit(t *testing.T) {
	ts := newTestServer(t)
	gomock.InOrder(
		ts.entitlement.EXPECT().
			TryIncrement(gomock.Any(), testTeamID, catalog.LimitAIMessagesPerMonth, int64(1), ts.clock.Now()).
			Return(usagedomain.IncrementResult{OK: true, NewValue: 1, Limit: 200}, nil),
		ts.entitlement.EXPECT().
			TryIncrement(gomock.Any(), testTeamID, catalog.LimitAIMessagesPerMonth, int64(250), ts.clock.Now()).
			Return(usagedomain.IncrementResult{OK: false, NewValue: 1, Limit: 200}, nil),
	)

	resp := ts.do(http.MethodPost, "/api/teams/1742/limits/ai_messages_per_month/consume", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"data":{"limit_key":"ai_messages_per_month","ok":true,"new_value":1,"limit":200}}`, resp.Body.String())

	resp = ts.do(http.MethodPost, "/api/teams/1742/limits/ai_messages_per_month/consume", `{"amount":250}`, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"data":{"limit_key":"ai_messages_per_month","ok":false,"new_value":1,"limit":200}}`, resp.Body.String())
}

func TestConsumeLimit_RejectsNonPositiveAmount(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPost, "/api/teams/1742/limits/ai_messages_per_month/consume", `{"amount":0}`, nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "invalid_amount", decodeError(t, resp).Errors[0].Code)
}

func TestRequireFeatureMiddleware(t *testing.T) {
	ts := newTestServer(t)
	ts.entitlement.EXPECT().
		RequireFeature(gomock.Any(), testTeamID, catalog.FeatureHostCompetitions).
		Return(&entitlementdomain.NotEntitledError{TeamID: testTeamID, FeatureKey: catalog.FeatureHostCompetitions, PlanName: "Free"})

	handlerCalled := false
	ts.srv.Engine().POST("/api/teams/:team_id/competitions",
		ts.srv.TeamContext(),
		ts.srv.RequireFeature(catalog.FeatureHostCompetitions),
		func(c *gin.Context) {
			handlerCalled = true
			c.Status(http.StatusCreated)
		},
	)

	resp := ts.do(http.MethodPost, "/api/teams/1742/competitions", "", nil)
	require.Equal(t, http.StatusForbidden, resp.Code)
	assert.False(t, handlerCalled)

	payload := decodeError(t, resp)
	assert.Equal(t, "not_entitled", payload.Type)
	assert.Equal(t, "host_competitions is not included in your Free plan. Upgrade to unlock it.", payload.Message)
	assert.Equal(t, "Free", payload.Details["plan_name"])
}

func TestRequireLimitMiddleware(t *testing.T) {
	ts := newTestServer(t)
	gomock.InOrder(
		ts.entitlement.EXPECT().
			RequireLimit(gomock.Any(), testTeamID, catalog.LimitMaxProgrammingTracks).
			Return(nil),
		ts.entitlement.EXPECT().
			RequireLimit(gomock.Any(), testTeamID, catalog.LimitMaxProgrammingTracks).
			Return(&entitlementdomain.LimitExceededError{TeamID: testTeamID, LimitKey: catalog.LimitMaxProgrammingTracks, PlanName: "Pro", Limit: 5}),
	)

	ts.srv.Engine().POST("/api/teams/:team_id/tracks",
		ts.srv.TeamContext(),
		ts.srv.RequireLimit(catalog.LimitMaxProgrammingTracks),
		func(c *gin.Context) { c.Status(http.StatusCreated) },
	)

	resp := ts.do(http.MethodPost, "/api/teams/1742/tracks", "", nil)
	assert.Equal(t, http.StatusCreated, resp.Code)

	resp = ts.do(http.MethodPost, "/api/teams/1742/tracks", "", nil)
	require.Equal(t, http.StatusForbidden, resp.Code)
	payload := decodeError(t, resp)
	assert.Equal(t, "limit_exceeded", payload.Type)
	assert.EqualValues(t, 5, payload.Details["limit"])
	assert.EqualValues(t, 0, payload.Details["remaining"])
}

func TestSetOverride(t *testing.T) {
	ts := newTestServer(t)
	body := `{"type":"limit","key":"max_members_per_team","value":10,"reason":"pilot gym"}`

	resp := ts.do(http.MethodPost, "/admin/teams/1742/overrides", body, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code, "writes need an actor")
	assert.Nil(t, ts.overrides.lastSet)

	resp = ts.do(http.MethodPost, "/admin/teams/1742/overrides", body, map[string]string{HeaderActor: "ops@example.com"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	require.NotNil(t, ts.overrides.lastSet)
	assert.Equal(t, testTeamID, ts.overrides.lastSet.TeamID)
	assert.Equal(t, overridedomain.TypeLimit, ts.overrides.lastSet.Type)
	assert.Equal(t, "ops@example.com", ts.overrides.lastSet.CreatedBy)
	v, ok := ts.overrides.lastSet.Value.Int()
	assert.True(t, ok)
	assert.Equal(t, int64(10), v)
}

func TestSetOverride_UnknownKey(t *testing.T) {
	ts := newTestServer(t)
	body := `{"type":"feature","key":"teleportation","value":true,"reason":"x"}`

	resp := ts.do(http.MethodPost, "/admin/teams/1742/overrides", body, map[string]string{HeaderActor: "ops@example.com"})
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Nil(t, ts.overrides.lastSet)
}

func TestClearOverride(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodDelete, "/admin/teams/1742/overrides/feature/program_analytics", "", map[string]string{HeaderActor: "ops@example.com"})
	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, ts.overrides.lastClear)
	assert.Equal(t, "program_analytics", ts.overrides.lastClear.Key)
	assert.JSONEq(t, `{"data":{"cleared":1}}`, resp.Body.String())
}

func TestSnapshotTeam(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodPost, "/admin/teams/1742/snapshot", `{"plan_id":"pro"}`, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, catalog.PlanPro, ts.snapshots.lastPlan)

	resp = ts.do(http.MethodPost, "/admin/teams/1742/snapshot", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, catalog.DefaultPlanID, ts.snapshots.lastPlan)
}

func TestSnapshotAllTeams(t *testing.T) {
	ts := newTestServer(t)
	started := ts.clock.Now()
	ts.snapshots.report = &snapshotdomain.Report{
		StartedAt:    started,
		FinishedAt:   started.Add(2 * time.Second),
		SuccessCount: 9,
		FailureCount: 1,
		Errors: []snapshotdomain.TeamError{
			{TeamID: 77, PlanID: "legacy_gold", Err: catalog.ErrPlanNotFound},
		},
	}

	resp := ts.do(http.MethodPost, "/admin/snapshots", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Data snapshotReportResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, 10, body.Data.Total)
	assert.Equal(t, 1, body.Data.FailureCount)
	require.Len(t, body.Data.Errors, 1)
	assert.Equal(t, "77", body.Data.Errors[0].TeamID)
	assert.Equal(t, "plan_not_found", body.Data.Errors[0].Error)
}

func TestGetCatalog(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(http.MethodGet, "/api/catalog", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Data struct {
			Version string         `json:"version"`
			Plans   []catalog.Plan `json:"plans"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, catalog.Default().Version(), body.Data.Version)
	assert.Len(t, body.Data.Plans, 3)
}

func TestNoRoute(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{"plan not found", &catalog.PlanNotFoundError{PlanID: "gold"}, http.StatusNotFound, "not_found"},
		{"storage conflict", usagedomain.ErrStorageConflict, http.StatusConflict, "conflict"},
		{"override validation", overridedomain.ErrInvalidReason, http.StatusBadRequest, "validation_error"},
		{"limit exceeded", &entitlementdomain.LimitExceededError{LimitKey: "max_admins", Limit: 1}, http.StatusForbidden, "limit_exceeded"},
		{"deadline", context.DeadlineExceeded, http.StatusServiceUnavailable, "service_unavailable"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, payload := mapError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.typ, payload.Type)
		})
	}
}

func TestClassifyErrorForLog(t *testing.T) {
	typ, code := classifyErrorForLog(overridedomain.ErrInvalidReason)
	assert.Equal(t, "validation_error", typ)
	assert.Equal(t, "invalid_reason", code)

	typ, code = classifyErrorForLog(&entitlementdomain.NotEntitledError{FeatureKey: "host_competitions"})
	assert.Equal(t, "not_entitled", typ)
	assert.Equal(t, "not_entitled", code)
}
