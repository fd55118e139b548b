package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"caretransport/dispatch/internal/api"
	"caretransport/dispatch/internal/clock"
	"caretransport/dispatch/internal/config"
	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/db/dbtest"
	"caretransport/dispatch/internal/jobs"
	"caretransport/dispatch/internal/metrics"
	"caretransport/dispatch/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

type server struct {
	handler http.Handler
	gdb     *gorm.DB
	company models.CompanyID
	vehicle models.VehicleID
}

func newServer(t *testing.T) *server {
	t.Helper()
	gdb := dbtest.Open(t)
	reg := prometheus.NewRegistry()

	cfg := &config.Config{
		CacheBackend:         "memory",
		AvailabilityCacheTTL: time.Minute,
		OrderSpacing:         10,
		MinOrderGap:          1,
		ExecutionTolerance:   5 * time.Minute,
		DelayThreshold:       10 * time.Minute,
		MaterializeHorizon:   14,
		OutboxRetention:      7 * 24 * time.Hour,
	}
	deps, err := api.InitDependencies(api.Infra{
		Config:  cfg,
		DB:      gdb,
		Metrics: metrics.NewMetricsRegistry(reg),
		Clock:   clock.NewMockClock(time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)

	company := dbtest.Company(t, gdb)
	return &server{
		handler: RegisterRoutes(deps, reg, time.Now()),
		gdb:     gdb,
		company: company,
		vehicle: dbtest.Vehicle(t, gdb, company, "Van 1"),
	}
}

func (s *server) do(t *testing.T, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(constants.HeaderCompanyID, string(s.company))
	req.Header.Set(constants.HeaderUserID, "dispatcher-1")

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

type routeDetail struct {
	Route struct {
		ID     models.RouteID        `json:"id"`
		Status constants.RouteStatus `json:"status"`
	} `json:"route"`
	Stops []struct {
		ID        models.StopID      `json:"id"`
		StopType  constants.StopType `json:"stop_type"`
		StopOrder int                `json:"stop_order"`
	} `json:"stops"`
}

func (s *server) createRoute(t *testing.T) routeDetail {
	t.Helper()
	driver := dbtest.Driver(t, s.gdb, s.company, "Anna")
	status, env := s.do(t, http.MethodPost, "/api/v1/routes", map[string]any{
		"date":       "2026-03-03",
		"driver_id":  driver,
		"vehicle_id": s.vehicle,
		"name":       "Morning run",
		"route_type": constants.RouteTypeMorning,
		"schedule_ids": []models.ScheduleID{
			dbtest.Schedule(t, s.gdb, s.company, "07:00", "07:40").ID,
			dbtest.Schedule(t, s.gdb, s.company, "07:10", "07:50").ID,
		},
	})
	require.Equal(t, http.StatusCreated, status, env.Message)

	var detail routeDetail
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	return detail
}

func TestAPI_RequiresCompanyHeader(t *testing.T) {
	s := newServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/routes", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, constants.ErrCodeMissingCompany, env.Code)
}

func TestAPI_CreateAndFetchRoute(t *testing.T) {
	s := newServer(t)
	created := s.createRoute(t)
	assert.Equal(t, constants.RouteStatusPlanned, created.Route.Status)
	require.Len(t, created.Stops, 4)

	status, env := s.do(t, http.MethodGet, "/api/v1/routes/"+string(created.Route.ID), nil)
	require.Equal(t, http.StatusOK, status)
	var fetched routeDetail
	require.NoError(t, json.Unmarshal(env.Data, &fetched))
	assert.Equal(t, created.Route.ID, fetched.Route.ID)
	assert.Len(t, fetched.Stops, 4)

	status, env = s.do(t, http.MethodGet, "/api/v1/routes?from=2026-03-01&to=2026-03-31", nil)
	require.Equal(t, http.StatusOK, status)
	var items []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &items))
	assert.Len(t, items, 1)
}

func TestAPI_ErrorMapping(t *testing.T) {
	s := newServer(t)
	created := s.createRoute(t)

	status, env := s.do(t, http.MethodGet, "/api/v1/routes/missing", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, constants.ErrCodeRouteNotFound, env.Code)

	status, env = s.do(t, http.MethodPost, "/api/v1/routes/"+string(created.Route.ID)+"/complete", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, constants.ErrCodeInvalidTransition, env.Code)

	status, env = s.do(t, http.MethodGet, "/api/v1/days/2026-13-40/summary", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, constants.ErrCodeInvalidDateRange, env.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/routes", bytes.NewBufferString("{not json"))
	req.Header.Set(constants.HeaderCompanyID, string(s.company))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), constants.ErrCodeInvalidBody)
}

func TestAPI_RouteLifecycleAndExecution(t *testing.T) {
	s := newServer(t)
	created := s.createRoute(t)
	routePath := "/api/v1/routes/" + string(created.Route.ID)

	status, env := s.do(t, http.MethodPost, routePath+"/start", map[string]any{"at": "2026-03-03T06:55:00Z"})
	require.Equal(t, http.StatusOK, status, env.Message)
	var detail routeDetail
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Equal(t, constants.RouteStatusInProgress, detail.Route.Status)

	first := created.Stops[0]
	status, env = s.do(t, http.MethodPost, "/api/v1/stops/"+string(first.ID)+"/execute", map[string]any{
		"outcome":     constants.StopOutcomeOnTime,
		"actual_time": "2026-03-03T07:02:00Z",
	})
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = s.do(t, http.MethodPost, "/api/v1/stops/"+string(first.ID)+"/execute", map[string]any{
		"outcome": constants.StopOutcomeOnTime,
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, constants.ErrCodeStopAlreadyExecuted, env.Code)
}

func TestAPI_Jobs(t *testing.T) {
	s := newServer(t)

	status, env := s.do(t, http.MethodGet, "/api/v1/jobs", nil)
	require.Equal(t, http.StatusOK, status)
	var listed struct {
		Jobs []string `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	assert.ElementsMatch(t, []string{
		jobs.RebalanceJobName,
		jobs.DelayDetectionJobName,
		jobs.MaterializationJobName,
		jobs.OutboxCleanupJobName,
	}, listed.Jobs)

	status, env = s.do(t, http.MethodPost, "/api/v1/jobs/nope/run", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, constants.ErrCodeUnknownJob, env.Code)

	status, env = s.do(t, http.MethodPost, "/api/v1/jobs/"+jobs.RebalanceJobName+"/run", nil)
	require.Equal(t, http.StatusOK, status, env.Message)
	assert.Contains(t, string(env.Data), string(s.company))
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)
	s.createRoute(t)

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthCheck", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dispatch_http_requests_total")
	assert.Contains(t, rec.Body.String(), `endpoint="/api/v1/routes`)
}
