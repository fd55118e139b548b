package services

import (
	"context"
	"testing"
	"time"

	"caretransport/dispatch/internal/clock"
	"caretransport/dispatch/internal/common"
	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/db/dbtest"
	"caretransport/dispatch/internal/db/repositories"
	"caretransport/dispatch/internal/metrics"
	"caretransport/dispatch/internal/models"
	gormModels "caretransport/dispatch/internal/models/gorm"
	"caretransport/dispatch/internal/routing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	gdb          *gorm.DB
	store        *repositories.Store
	clock        *clock.MockClock
	metrics      *metrics.MetricsRegistry
	availability *AbsenceAvailabilityChecker

	routes *RouteService
	stops  *RouteStopService
	sync   *AbsenceSyncService
	series *RouteSeriesService

	company models.CompanyID
	vehicle models.VehicleID
}

// newFixture wires the services on a fresh database. Orders are spaced by
// one so sequences read 1, 2, 3...
func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := dbtest.Open(t)
	store := repositories.NewStore(gdb)
	clk := clock.NewMockClock(time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC))
	m := metrics.NewMetricsRegistry(prometheus.NewRegistry())
	policy := routing.OrderPolicy{Spacing: 1, MinGap: 1}

	availability := NewAbsenceAvailabilityChecker(store.Absences, common.NewCacheService(time.Minute, time.Minute), time.Minute, m)
	routes := NewRouteService(store, nil, availability, m, clk, policy)
	stops := NewRouteStopService(store, m, clk, policy, routing.DefaultExecutionTolerance)
	company := dbtest.Company(t, gdb)

	return &fixture{
		gdb:          gdb,
		store:        store,
		clock:        clk,
		metrics:      m,
		availability: availability,
		routes:       routes,
		stops:        stops,
		sync:         NewAbsenceSyncService(store, stops, availability, m),
		series:       NewRouteSeriesService(store, routes, stops, availability, m, clk),
		company:      company,
		vehicle:      dbtest.Vehicle(t, gdb, company, "Van 1"),
	}
}

func (f *fixture) driver(t *testing.T, name string) models.DriverID {
	return dbtest.Driver(t, f.gdb, f.company, name)
}

func (f *fixture) schedule(t *testing.T, pickup, dropoff models.TimeOfDay) *gormModels.ChildSchedule {
	return dbtest.Schedule(t, f.gdb, f.company, pickup, dropoff)
}

// route creates a route on day carrying schedules, sequenced by time
func (f *fixture) route(t *testing.T, day string, driver *models.DriverID, schedules ...*gormModels.ChildSchedule) *RouteDetail {
	t.Helper()
	ids := make([]models.ScheduleID, 0, len(schedules))
	for _, s := range schedules {
		ids = append(ids, s.ID)
	}
	detail, err := f.routes.CreateRoute(context.Background(), CreateRouteInput{
		CompanyID:   f.company,
		Date:        models.MustDay(day),
		DriverID:    driver,
		VehicleID:   f.vehicle,
		Name:        "Route " + day,
		RouteType:   constants.RouteTypeMorning,
		ScheduleIDs: ids,
	})
	require.NoError(t, err)
	return detail
}

// plannedRoute creates a PLANNED route driven by a fresh driver
func (f *fixture) plannedRoute(t *testing.T, day string, schedules ...*gormModels.ChildSchedule) *RouteDetail {
	t.Helper()
	return f.route(t, day, models.DriverPtr(f.driver(t, dbtest.ID("driver"))), schedules...)
}

func (f *fixture) reload(t *testing.T, id models.RouteID) *RouteDetail {
	t.Helper()
	detail, err := f.routes.GetRoute(context.Background(), f.company, id)
	require.NoError(t, err)
	return detail
}

// ordersBySchedule maps "<schedule>/<type>" to the stop order of each
// active stop
func ordersBySchedule(stops []*gormModels.RouteStop) map[string]int {
	out := map[string]int{}
	for _, s := range stops {
		if s.IsCancelled {
			continue
		}
		out[string(s.ScheduleID)+"/"+string(s.StopType)] = s.StopOrder
	}
	return out
}

func key(s *gormModels.ChildSchedule, stopType constants.StopType) string {
	return string(s.ID) + "/" + string(stopType)
}

func activeCount(stops []*gormModels.RouteStop) int {
	return len(routing.ActiveStops(stops))
}

func (f *fixture) eventTypes(t *testing.T, aggregateType, aggregateID string) []string {
	t.Helper()
	rows, err := f.store.Outbox.ListByAggregate(context.Background(), aggregateType, aggregateID)
	require.NoError(t, err)
	types := make([]string, 0, len(rows))
	for _, r := range rows {
		types = append(types, r.EventType)
	}
	return types
}
