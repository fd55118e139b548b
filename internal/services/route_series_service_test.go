package services

import (
	"context"
	"testing"
	"time"

	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/db/dbtest"
	"caretransport/dispatch/internal/models"
	gormModels "caretransport/dispatch/internal/models/gorm"
	"caretransport/dispatch/internal/routing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) newSeries(t *testing.T, start string, interval int, driver *models.DriverID, schedules ...*gormModels.ChildSchedule) *gormModels.RouteSeries {
	t.Helper()
	ids := make([]models.ScheduleID, 0, len(schedules))
	for _, s := range schedules {
		ids = append(ids, s.ID)
	}
	series, err := f.series.CreateSeries(context.Background(), CreateSeriesInput{
		CompanyID:     f.company,
		Name:          "School run",
		IntervalWeeks: interval,
		StartDate:     models.MustDay(start),
		DriverID:      driver,
		VehicleID:     f.vehicle,
		RouteType:     constants.RouteTypeMorning,
		ScheduleIDs:   ids,
	})
	require.NoError(t, err)
	return series
}

// materialize runs [from, to] and returns the created routes keyed by day
func (f *fixture) materialize(t *testing.T, series *gormModels.RouteSeries, from, to string) map[string]*RouteDetail {
	t.Helper()
	result, err := f.series.Materialize(context.Background(), f.company, series.ID, models.MustDay(from), models.MustDay(to))
	require.NoError(t, err)
	require.Empty(t, result.Errors)
	out := map[string]*RouteDetail{}
	for _, id := range result.AffectedRouteIDs {
		detail := f.reload(t, id)
		out[models.FormatDay(detail.Route.Date)] = detail
	}
	return out
}

func TestCreateSeries_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.series.CreateSeries(ctx, CreateSeriesInput{CompanyID: f.company, IntervalWeeks: 0, StartDate: models.MustDay("2026-03-03"), VehicleID: f.vehicle})
	assert.True(t, routing.IsValidation(err))

	end := models.MustDay("2026-03-01")
	_, err = f.series.CreateSeries(ctx, CreateSeriesInput{CompanyID: f.company, IntervalWeeks: 1, StartDate: models.MustDay("2026-03-03"), EndDate: &end, VehicleID: f.vehicle})
	assert.True(t, routing.IsValidation(err))

	_, err = f.series.CreateSeries(ctx, CreateSeriesInput{CompanyID: f.company, IntervalWeeks: 1, StartDate: models.MustDay("2026-03-03"), VehicleID: "missing"})
	assert.True(t, routing.IsNotFound(err))
}

func TestMaterialize_CreatesOccurrencesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d := f.driver(t, "Dana")
	s := f.schedule(t, "07:00", "08:00")
	series := f.newSeries(t, "2026-03-03", 2, models.DriverPtr(d), s)

	routes := f.materialize(t, series, "2026-03-01", "2026-03-31")
	require.Len(t, routes, 3)
	for _, day := range []string{"2026-03-03", "2026-03-17", "2026-03-31"} {
		require.Contains(t, routes, day)
		route := routes[day]
		assert.Equal(t, constants.RouteStatusPlanned, route.Route.Status)
		assert.Equal(t, series.ID, *route.Route.SeriesID)
		assert.Equal(t, 2, activeCount(route.Stops))
	}

	again, err := f.series.Materialize(ctx, f.company, series.ID, models.MustDay("2026-03-01"), models.MustDay("2026-03-31"))
	require.NoError(t, err)
	assert.Zero(t, again.RoutesUpdated)
	assert.Equal(t, 3, again.RoutesUnchanged)
}

func TestMaterialize_UnavailableDriverCreatesDriverMissing(t *testing.T) {
	f := newFixture(t)
	d := f.driver(t, "Dana")
	series := f.newSeries(t, "2026-03-03", 1, models.DriverPtr(d))
	dbtest.DriverAbsence(t, f.gdb, f.company, d, models.MustDay("2026-03-10"), models.MustDay("2026-03-10"))

	routes := f.materialize(t, series, "2026-03-03", "2026-03-10")
	require.Len(t, routes, 2)
	assert.Equal(t, constants.RouteStatusPlanned, routes["2026-03-03"].Route.Status)
	assert.Equal(t, constants.RouteStatusDriverMissing, routes["2026-03-10"].Route.Status)
}

func TestReassignDriver_UpdatesFutureRoutesOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d1 := f.driver(t, "Dana")
	d2 := f.driver(t, "Eli")
	s := f.schedule(t, "07:00", "08:00")
	series := f.newSeries(t, "2025-07-29", 1, models.DriverPtr(d1), s)

	routes := f.materialize(t, series, "2025-07-29", "2025-08-05")
	require.Len(t, routes, 2)
	past, future := routes["2025-07-29"], routes["2025-08-05"]

	start := time.Date(2025, 7, 29, 7, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)
	_, err := f.routes.StartRoute(ctx, f.company, past.Route.ID, &start, "")
	require.NoError(t, err)
	_, err = f.routes.CompleteRoute(ctx, f.company, past.Route.ID, &end, "")
	require.NoError(t, err)

	result, err := f.series.ReassignDriver(ctx, f.company, series.ID, d2, models.MustDay("2025-08-01"), "user-1", "rota change")
	require.NoError(t, err)
	assert.Equal(t, 1, result.RoutesUpdated)
	assert.Equal(t, []models.RouteID{future.Route.ID}, result.AffectedRouteIDs)

	updated := f.reload(t, future.Route.ID).Route
	assert.Equal(t, constants.RouteStatusPlanned, updated.Status)
	assert.Equal(t, d2, *updated.DriverID)
	history, err := f.store.Assignments.ListByRoute(ctx, future.Route.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, d1, *history[0].PreviousDriverID)
	assert.Equal(t, d2, *history[0].NewDriverID)
	assert.Equal(t, "rota change", history[0].Reason)

	untouched := f.reload(t, past.Route.ID).Route
	assert.Equal(t, constants.RouteStatusCompleted, untouched.Status)
	assert.Equal(t, d1, *untouched.DriverID)
	history, err = f.store.Assignments.ListByRoute(ctx, past.Route.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	stored, err := f.store.Series.GetByID(ctx, f.company, series.ID)
	require.NoError(t, err)
	assert.Equal(t, d2, *stored.DriverID)
	assert.Contains(t, f.eventTypes(t, constants.AggregateSeries, string(series.ID)), constants.EventSeriesDriverReassigned)
}

func TestReassignDriver_RestoresDriverMissingAndSkipsAbsentDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d2 := f.driver(t, "Eli")
	series := f.newSeries(t, "2026-03-03", 1, nil)
	routes := f.materialize(t, series, "2026-03-03", "2026-03-10")
	require.Len(t, routes, 2)
	dbtest.DriverAbsence(t, f.gdb, f.company, d2, models.MustDay("2026-03-10"), models.MustDay("2026-03-10"))

	result, err := f.series.ReassignDriver(ctx, f.company, series.ID, d2, models.MustDay("2026-03-03"), "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, 1, result.RoutesUpdated)
	assert.Equal(t, 1, result.RoutesUnchanged)

	assert.Equal(t, constants.RouteStatusPlanned, f.reload(t, routes["2026-03-03"].Route.ID).Route.Status)
	assert.Equal(t, constants.RouteStatusDriverMissing, f.reload(t, routes["2026-03-10"].Route.ID).Route.Status)
}

func TestAddChild_AddsPairToPlannedOccurrences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.schedule(t, "07:00", "08:00")
	b := f.schedule(t, "07:10", "08:10")
	series := f.newSeries(t, "2026-03-03", 1, models.DriverPtr(f.driver(t, "Dana")), a)
	routes := f.materialize(t, series, "2026-03-03", "2026-03-17")
	require.Len(t, routes, 3)

	result, err := f.series.AddChild(ctx, f.company, series.ID, b.ID, models.MustDay("2026-03-10"), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.RoutesUpdated)

	assert.Equal(t, 2, activeCount(f.reload(t, routes["2026-03-03"].Route.ID).Stops))
	orders := ordersBySchedule(f.reload(t, routes["2026-03-17"].Route.ID).Stops)
	assert.Equal(t, map[string]int{
		key(a, constants.StopTypePickup):  1,
		key(b, constants.StopTypePickup):  2,
		key(a, constants.StopTypeDropoff): 3,
		key(b, constants.StopTypeDropoff): 4,
	}, orders)

	again, err := f.series.AddChild(ctx, f.company, series.ID, b.ID, models.MustDay("2026-03-10"), "user-1")
	require.NoError(t, err)
	assert.Zero(t, again.RoutesUpdated)
	assert.Equal(t, 2, again.RoutesUnchanged)

	windows, err := f.store.Memberships.ListBySchedule(ctx, series.ID, b.ID)
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, "2026-03-10", models.FormatDay(windows[0].ValidFrom))
	assert.Nil(t, windows[0].ValidTo)
}

func TestRemoveChild_CancelsAndRenumbers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.schedule(t, "07:00", "08:00")
	b := f.schedule(t, "07:10", "08:10")
	series := f.newSeries(t, "2026-03-03", 1, models.DriverPtr(f.driver(t, "Dana")), a, b)
	routes := f.materialize(t, series, "2026-03-03", "2026-03-10")

	result, err := f.series.RemoveChild(ctx, f.company, series.ID, a.ID, models.MustDay("2026-03-10"), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.RoutesUpdated)
	assert.Equal(t, 2, result.StopsCancelled)

	kept := f.reload(t, routes["2026-03-03"].Route.ID)
	assert.Equal(t, 4, activeCount(kept.Stops))

	changed := f.reload(t, routes["2026-03-10"].Route.ID)
	assert.Len(t, changed.Stops, 4)
	assert.Equal(t, map[string]int{
		key(b, constants.StopTypePickup):  1,
		key(b, constants.StopTypeDropoff): 2,
	}, ordersBySchedule(changed.Stops))

	windows, err := f.store.Memberships.ListBySchedule(ctx, series.ID, a.ID)
	require.NoError(t, err)
	require.Len(t, windows, 1)
	require.NotNil(t, windows[0].ValidTo)
	assert.Equal(t, "2026-03-09", models.FormatDay(*windows[0].ValidTo))

	// New occurrences no longer carry the removed child
	next := f.materialize(t, series, "2026-03-17", "2026-03-17")
	assert.Equal(t, map[string]int{
		key(b, constants.StopTypePickup):  1,
		key(b, constants.StopTypeDropoff): 2,
	}, ordersBySchedule(next["2026-03-17"].Stops))
}

func TestMembership_GapFillFoldsWindows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.schedule(t, "07:00", "08:00")
	series := f.newSeries(t, "2026-03-03", 1, models.DriverPtr(f.driver(t, "Dana")), s)

	_, err := f.series.RemoveChild(ctx, f.company, series.ID, s.ID, models.MustDay("2026-03-10"), "user-1")
	require.NoError(t, err)
	_, err = f.series.AddChild(ctx, f.company, series.ID, s.ID, models.MustDay("2026-03-24"), "user-1")
	require.NoError(t, err)

	windows, err := f.store.Memberships.ListBySchedule(ctx, series.ID, s.ID)
	require.NoError(t, err)
	require.Len(t, windows, 2)

	_, err = f.series.AddChild(ctx, f.company, series.ID, s.ID, models.MustDay("2026-03-10"), "user-1")
	require.NoError(t, err)

	windows, err = f.store.Memberships.ListBySchedule(ctx, series.ID, s.ID)
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, "2026-03-03", models.FormatDay(windows[0].ValidFrom))
	assert.Nil(t, windows[0].ValidTo)

	routes := f.materialize(t, series, "2026-03-01", "2026-04-07")
	require.Len(t, routes, 6)
	for day, route := range routes {
		assert.Equal(t, 2, activeCount(route.Stops), day)
	}
}

func TestMaterialize_OverlappingWindowsAddScheduleOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.schedule(t, "07:00", "08:00")
	series := f.newSeries(t, "2026-03-03", 1, models.DriverPtr(f.driver(t, "Dana")), s)
	require.NoError(t, f.store.Memberships.Create(ctx, &gormModels.RouteSeriesSchedule{
		CompanyID:  f.company,
		SeriesID:   series.ID,
		ScheduleID: s.ID,
		ChildID:    s.ChildID,
		ValidFrom:  models.MustDay("2026-03-10"),
	}))

	routes := f.materialize(t, series, "2026-03-03", "2026-03-17")
	require.Len(t, routes, 3)
	assert.Equal(t, 2, activeCount(routes["2026-03-17"].Stops))
}

func TestRemoveChild_WindowStartingLaterIsDropped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.schedule(t, "07:00", "08:00")
	b := f.schedule(t, "07:10", "08:10")
	series := f.newSeries(t, "2026-03-03", 1, models.DriverPtr(f.driver(t, "Dana")), a)

	_, err := f.series.AddChild(ctx, f.company, series.ID, b.ID, models.MustDay("2026-03-17"), "user-1")
	require.NoError(t, err)
	_, err = f.series.RemoveChild(ctx, f.company, series.ID, b.ID, models.MustDay("2026-03-10"), "user-1")
	require.NoError(t, err)

	windows, err := f.store.Memberships.ListBySchedule(ctx, series.ID, b.ID)
	require.NoError(t, err)
	assert.Empty(t, windows)

	all, err := f.store.Memberships.ListBySeries(ctx, series.ID)
	require.NoError(t, err)
	for _, w := range all {
		if w.ValidTo != nil {
			assert.False(t, w.ValidTo.Before(w.ValidFrom), "window %s is inverted", w.ID)
		}
	}

	routes := f.materialize(t, series, "2026-03-17", "2026-03-17")
	assert.Equal(t, map[string]int{
		key(a, constants.StopTypePickup):  1,
		key(a, constants.StopTypeDropoff): 2,
	}, ordersBySchedule(routes["2026-03-17"].Stops))
}

func TestRemoveChild_CancelsPairOnDriverMissingOccurrence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.schedule(t, "07:00", "08:00")
	b := f.schedule(t, "07:10", "08:10")
	series := f.newSeries(t, "2026-03-03", 1, nil, a, b)
	routes := f.materialize(t, series, "2026-03-03", "2026-03-03")
	occurrence := routes["2026-03-03"]
	require.Equal(t, constants.RouteStatusDriverMissing, occurrence.Route.Status)
	require.Equal(t, 4, activeCount(occurrence.Stops))

	result, err := f.series.RemoveChild(ctx, f.company, series.ID, b.ID, models.MustDay("2026-03-03"), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.RoutesUpdated)
	assert.Equal(t, 2, result.StopsCancelled)

	_, err = f.series.ReassignDriver(ctx, f.company, series.ID, f.driver(t, "Eli"), models.MustDay("2026-03-03"), "user-1", "")
	require.NoError(t, err)

	restored := f.reload(t, occurrence.Route.ID)
	assert.Equal(t, constants.RouteStatusPlanned, restored.Route.Status)
	assert.Equal(t, map[string]int{
		key(a, constants.StopTypePickup):  1,
		key(a, constants.StopTypeDropoff): 2,
	}, ordersBySchedule(restored.Stops))
}

func TestAddChild_DriverMissingOccurrenceGetsPairOnAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.schedule(t, "07:00", "08:00")
	b := f.schedule(t, "07:10", "08:10")
	series := f.newSeries(t, "2026-03-03", 1, nil, a)
	routes := f.materialize(t, series, "2026-03-03", "2026-03-03")
	occurrence := routes["2026-03-03"]
	require.Equal(t, constants.RouteStatusDriverMissing, occurrence.Route.Status)

	result, err := f.series.AddChild(ctx, f.company, series.ID, b.ID, models.MustDay("2026-03-03"), "user-1")
	require.NoError(t, err)
	assert.Zero(t, result.RoutesUpdated)
	assert.Equal(t, 1, result.RoutesUnchanged)
	assert.NotEmpty(t, result.Details)
	assert.Equal(t, 2, activeCount(f.reload(t, occurrence.Route.ID).Stops))

	_, err = f.series.ReassignDriver(ctx, f.company, series.ID, f.driver(t, "Eli"), models.MustDay("2026-03-03"), "user-1", "")
	require.NoError(t, err)

	restored := f.reload(t, occurrence.Route.ID)
	assert.Equal(t, constants.RouteStatusPlanned, restored.Route.Status)
	assert.Equal(t, map[string]int{
		key(a, constants.StopTypePickup):  1,
		key(b, constants.StopTypePickup):  2,
		key(a, constants.StopTypeDropoff): 3,
		key(b, constants.StopTypeDropoff): 4,
	}, ordersBySchedule(restored.Stops))
	assert.Contains(t, f.eventTypes(t, constants.AggregateRoute, string(occurrence.Route.ID)), constants.EventScheduleAddedToRoute)
}

func TestPauseResumeSeries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	series := f.newSeries(t, "2026-03-03", 1, nil)

	paused, err := f.series.PauseSeries(ctx, f.company, series.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.SeriesStatusPaused, paused.Status)

	_, err = f.series.Materialize(ctx, f.company, series.ID, models.MustDay("2026-03-03"), models.MustDay("2026-03-10"))
	assert.True(t, routing.IsInvalidState(err))
	_, err = f.series.PauseSeries(ctx, f.company, series.ID)
	assert.True(t, routing.IsInvalidState(err))

	resumed, err := f.series.ResumeSeries(ctx, f.company, series.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.SeriesStatusActive, resumed.Status)
	assert.Len(t, f.materialize(t, series, "2026-03-03", "2026-03-10"), 2)
}

func TestCancelSeries_CancelsFutureRoutes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	series := f.newSeries(t, "2026-02-24", 1, models.DriverPtr(f.driver(t, "Dana")))
	routes := f.materialize(t, series, "2026-02-24", "2026-03-10")
	require.Len(t, routes, 3)

	result, err := f.series.CancelSeries(ctx, f.company, series.ID, true, "user-1", "")
	require.NoError(t, err)
	assert.Equal(t, 2, result.RoutesUpdated)

	// Today is 2026-03-02, so the 2026-02-24 occurrence stays as it was
	assert.Equal(t, constants.RouteStatusPlanned, f.reload(t, routes["2026-02-24"].Route.ID).Route.Status)
	assert.Equal(t, constants.RouteStatusCancelled, f.reload(t, routes["2026-03-03"].Route.ID).Route.Status)
	assert.Equal(t, constants.RouteStatusCancelled, f.reload(t, routes["2026-03-10"].Route.ID).Route.Status)

	_, err = f.series.AddChild(ctx, f.company, series.ID, f.schedule(t, "07:00", "08:00").ID, models.MustDay("2026-03-10"), "")
	assert.True(t, routing.IsInvalidState(err))
}
