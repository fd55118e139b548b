package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/db/dbtest"
	"caretransport/dispatch/internal/db/repositories"
	"caretransport/dispatch/internal/models"
	"caretransport/dispatch/internal/routing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRoute_SequencesSchedulesByTime(t *testing.T) {
	f := newFixture(t)
	driver := f.driver(t, "Anna")
	a := f.schedule(t, "07:00", "08:00")
	b := f.schedule(t, "07:10", "08:10")

	detail := f.route(t, "2026-03-03", models.DriverPtr(driver), b, a)

	assert.Equal(t, constants.RouteStatusPlanned, detail.Route.Status)
	require.Len(t, detail.Stops, 4)
	orders := ordersBySchedule(detail.Stops)
	assert.Equal(t, 1, orders[key(a, constants.StopTypePickup)])
	assert.Equal(t, 2, orders[key(b, constants.StopTypePickup)])
	assert.Equal(t, 3, orders[key(a, constants.StopTypeDropoff)])
	assert.Equal(t, 4, orders[key(b, constants.StopTypeDropoff)])

	assert.NotEmpty(t, detail.Route.Geometry)
	require.NotNil(t, detail.Route.EstimatedStart)
	assert.True(t, time.Date(2026, 3, 3, 7, 0, 0, 0, time.UTC).Equal(*detail.Route.EstimatedStart))
	require.NotNil(t, detail.Route.EstimatedEnd)
	assert.True(t, time.Date(2026, 3, 3, 8, 10, 0, 0, time.UTC).Equal(*detail.Route.EstimatedEnd))
	assert.Equal(t, []string{constants.EventRouteCreated}, f.eventTypes(t, constants.AggregateRoute, string(detail.Route.ID)))

	// Creation writes no assignment row
	history, err := f.routes.DriverHistory(context.Background(), f.company, detail.Route.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestCreateRoute_WithoutDriverIsDriverMissing(t *testing.T) {
	f := newFixture(t)

	detail := f.route(t, "2026-03-03", nil, f.schedule(t, "07:00", "08:00"))

	assert.Equal(t, constants.RouteStatusDriverMissing, detail.Route.Status)
	assert.Nil(t, detail.Route.DriverID)
}

func TestCreateRoute_RejectsUnavailableDriver(t *testing.T) {
	f := newFixture(t)
	driver := f.driver(t, "Anna")
	dbtest.DriverAbsence(t, f.gdb, f.company, driver, models.MustDay("2026-03-02"), models.MustDay("2026-03-04"))

	_, err := f.routes.CreateRoute(context.Background(), CreateRouteInput{
		CompanyID: f.company,
		Date:      models.MustDay("2026-03-03"),
		DriverID:  models.DriverPtr(driver),
		VehicleID: f.vehicle,
	})
	assert.True(t, routing.IsValidation(err))
	assert.True(t, errors.Is(err, routing.Validation(constants.ErrCodeDriverUnavailable, "")))

	routes, err := f.store.Routes.List(context.Background(), f.company, repositories.RouteFilter{})
	require.NoError(t, err)
	assert.Empty(t, routes)
}

func TestCreateRoute_References(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.routes.CreateRoute(ctx, CreateRouteInput{CompanyID: f.company, Date: models.MustDay("2026-03-03"), VehicleID: "missing"})
	assert.True(t, routing.IsNotFound(err))

	_, err = f.routes.CreateRoute(ctx, CreateRouteInput{CompanyID: f.company, Date: models.MustDay("2026-03-03")})
	assert.True(t, errors.Is(err, routing.Validation(constants.ErrCodeVehicleRequired, "")))

	_, err = f.routes.CreateRoute(ctx, CreateRouteInput{
		CompanyID:   f.company,
		Date:        models.MustDay("2026-03-03"),
		VehicleID:   f.vehicle,
		ScheduleIDs: []models.ScheduleID{"missing"},
	})
	assert.True(t, routing.IsNotFound(err))

	// Nothing half-written survives the failed transaction
	routes, err := f.store.Routes.List(ctx, f.company, repositories.RouteFilter{})
	require.NoError(t, err)
	assert.Empty(t, routes)
}

func TestCreateRoute_ExplicitStopsMustPair(t *testing.T) {
	f := newFixture(t)
	s := f.schedule(t, "07:00", "08:00")

	_, err := f.routes.CreateRoute(context.Background(), CreateRouteInput{
		CompanyID: f.company,
		Date:      models.MustDay("2026-03-03"),
		VehicleID: f.vehicle,
		Stops: []StopInput{
			{ScheduleID: s.ID, StopType: constants.StopTypeDropoff, EstimatedTime: "07:30"},
			{ScheduleID: s.ID, StopType: constants.StopTypePickup, EstimatedTime: "07:40"},
		},
	})
	assert.True(t, errors.Is(err, routing.Validation(constants.ErrCodeInvalidPairing, "")))
}

func TestRouteLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	detail := f.route(t, "2026-03-02", models.DriverPtr(f.driver(t, "Anna")), f.schedule(t, "07:00", "08:00"))
	id := detail.Route.ID

	_, err := f.routes.CompleteRoute(ctx, f.company, id, nil, "")
	assert.True(t, routing.IsInvalidState(err))

	started, err := f.routes.StartRoute(ctx, f.company, id, nil, "user-1")
	require.NoError(t, err)
	assert.Equal(t, constants.RouteStatusInProgress, started.Status)
	require.NotNil(t, started.ActualStart)
	assert.True(t, started.ActualStart.Equal(f.clock.Now()))

	end := f.clock.Now().Add(2 * time.Hour)
	completed, err := f.routes.CompleteRoute(ctx, f.company, id, &end, "user-1")
	require.NoError(t, err)
	assert.Equal(t, constants.RouteStatusCompleted, completed.Status)

	_, err = f.routes.CancelRoute(ctx, f.company, id, "too late", "user-1")
	assert.True(t, routing.IsInvalidState(err))

	assert.Equal(t, []string{
		constants.EventRouteCreated,
		constants.EventRouteStarted,
		constants.EventRouteCompleted,
	}, f.eventTypes(t, constants.AggregateRoute, string(id)))
}

func TestStartRoute_NeedsDriver(t *testing.T) {
	f := newFixture(t)
	detail := f.route(t, "2026-03-02", nil)

	_, err := f.routes.StartRoute(context.Background(), f.company, detail.Route.ID, nil, "")
	assert.True(t, routing.IsInvalidState(err))
}

func TestCancelRoute_KeepsStops(t *testing.T) {
	f := newFixture(t)
	detail := f.route(t, "2026-03-03", nil, f.schedule(t, "07:00", "08:00"))

	cancelled, err := f.routes.CancelRoute(context.Background(), f.company, detail.Route.ID, "school closed", "user-1")
	require.NoError(t, err)
	assert.Equal(t, constants.RouteStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancellationReason)
	assert.Equal(t, "school closed", *cancelled.CancellationReason)

	reloaded := f.reload(t, detail.Route.ID)
	assert.Equal(t, 2, activeCount(reloaded.Stops))
}

func TestAssignDriver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	anna := f.driver(t, "Anna")
	detail := f.route(t, "2026-03-03", nil)

	route, err := f.routes.AssignDriver(ctx, f.company, detail.Route.ID, anna, "user-1", "covering")
	require.NoError(t, err)
	assert.Equal(t, constants.RouteStatusPlanned, route.Status)
	assert.Equal(t, anna, *route.DriverID)

	// Same driver again is a no-op
	_, err = f.routes.AssignDriver(ctx, f.company, detail.Route.ID, anna, "user-1", "")
	require.NoError(t, err)

	history, err := f.routes.DriverHistory(ctx, f.company, detail.Route.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].PreviousDriverID)
	assert.Equal(t, anna, *history[0].NewDriverID)
	assert.Equal(t, "covering", history[0].Reason)

	_, err = f.routes.AssignDriver(ctx, f.company, detail.Route.ID, "ghost", "user-1", "")
	assert.True(t, routing.IsNotFound(err))
}

func TestAssignDriver_RejectsUnavailableDriver(t *testing.T) {
	f := newFixture(t)
	ben := f.driver(t, "Ben")
	detail := f.route(t, "2026-03-03", nil)
	dbtest.DriverAbsence(t, f.gdb, f.company, ben, models.MustDay("2026-03-03"), models.MustDay("2026-03-03"))

	_, err := f.routes.AssignDriver(context.Background(), f.company, detail.Route.ID, ben, "user-1", "")
	assert.True(t, errors.Is(err, routing.Validation(constants.ErrCodeDriverUnavailable, "")))
}

func TestMarkDriverMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	anna := f.driver(t, "Anna")
	detail := f.route(t, "2026-03-03", models.DriverPtr(anna))

	route, changed, err := f.routes.MarkDriverMissing(ctx, f.company, detail.Route.ID, nil, "user-1", "sick")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, constants.RouteStatusDriverMissing, route.Status)
	assert.Nil(t, route.DriverID)
	assert.Equal(t, anna, *route.PreviousDriverID)

	_, changed, err = f.routes.MarkDriverMissing(ctx, f.company, detail.Route.ID, nil, "user-1", "sick")
	require.NoError(t, err)
	assert.False(t, changed)

	history, err := f.routes.DriverHistory(ctx, f.company, detail.Route.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, anna, *history[0].PreviousDriverID)
	assert.Nil(t, history[0].NewDriverID)
}

func TestListRoutes_Enriched(t *testing.T) {
	f := newFixture(t)
	anna := f.driver(t, "Anna")
	f.route(t, "2026-03-03", models.DriverPtr(anna), f.schedule(t, "07:00", "08:00"))
	f.route(t, "2026-03-04", nil)

	day := models.MustDay("2026-03-03")
	items, err := f.routes.ListRoutes(context.Background(), f.company, repositories.RouteFilter{From: &day, To: &day})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Driver)
	assert.Equal(t, "Anna", items[0].Driver.Name)
	require.NotNil(t, items[0].Vehicle)
	assert.Equal(t, "Van 1", items[0].Vehicle.Name)
	assert.EqualValues(t, 2, items[0].ActiveStops)

	all, err := f.routes.ListRoutes(context.Background(), f.company, repositories.RouteFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGetRoute_OtherCompanyIsNotFound(t *testing.T) {
	f := newFixture(t)
	detail := f.route(t, "2026-03-03", nil)

	_, err := f.routes.GetRoute(context.Background(), "other-company", detail.Route.ID)
	assert.True(t, routing.IsNotFound(err))
}

func TestDaySummary_RequiresSummaries(t *testing.T) {
	f := newFixture(t)

	_, err := f.routes.DaySummary(context.Background(), f.company, models.MustDay("2026-03-03"))
	assert.Error(t, err)
}
