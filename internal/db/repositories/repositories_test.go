package repositories

import (
	"context"
	"testing"
	"time"

	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/db"
	"caretransport/dispatch/internal/db/dbtest"
	"caretransport/dispatch/internal/models"
	gormModels "caretransport/dispatch/internal/models/gorm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store   *Store
	company models.CompanyID
	driver  models.DriverID
	vehicle models.VehicleID
}

func setup(t *testing.T) *fixture {
	gdb := dbtest.Open(t)
	company := dbtest.Company(t, gdb)
	return &fixture{
		store:   NewStore(gdb),
		company: company,
		driver:  dbtest.Driver(t, gdb, company, "Anna"),
		vehicle: dbtest.Vehicle(t, gdb, company, "Van 1"),
	}
}

func (f *fixture) route(t *testing.T, day string) *gormModels.Route {
	r := &gormModels.Route{
		CompanyID: f.company,
		Date:      models.MustDay(day),
		DriverID:  models.DriverPtr(f.driver),
		VehicleID: f.vehicle,
		Name:      "Route " + day,
		Status:    constants.RouteStatusPlanned,
	}
	require.NoError(t, f.store.Routes.Create(context.Background(), r))
	return r
}

func (f *fixture) stops(t *testing.T, route *gormModels.Route, child models.ChildID, orders ...int) []*gormModels.RouteStop {
	var stops []*gormModels.RouteStop
	for i, o := range orders {
		stopType := constants.StopTypePickup
		if i%2 == 1 {
			stopType = constants.StopTypeDropoff
		}
		stops = append(stops, &gormModels.RouteStop{
			CompanyID:  f.company,
			RouteID:    route.ID,
			StopOrder:  o,
			StopType:   stopType,
			ChildID:    child,
			ScheduleID: models.ScheduleID(dbtest.ID("schedule")),
		})
	}
	require.NoError(t, f.store.Stops.CreateBatch(context.Background(), stops))
	return stops
}

func TestRouteRepo_GetByIDScopedToCompany(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	r := f.route(t, "2025-06-10")

	got, err := f.store.Routes.GetByID(ctx, f.company, r.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.MustDay("2025-06-10"), got.Date.UTC())

	other, err := f.store.Routes.GetByID(ctx, "other-company", r.ID)
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestRouteRepo_ListFilters(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.route(t, "2025-06-09")
	r2 := f.route(t, "2025-06-10")
	r3 := f.route(t, "2025-06-11")
	r3.Status = constants.RouteStatusCancelled
	require.NoError(t, f.store.Routes.Save(ctx, r3))

	from, to := models.MustDay("2025-06-10"), models.MustDay("2025-06-11")
	routes, err := f.store.Routes.List(ctx, f.company, RouteFilter{
		From:     &from,
		To:       &to,
		Statuses: []constants.RouteStatus{constants.RouteStatusPlanned, constants.RouteStatusDriverMissing},
		DriverID: models.DriverPtr(f.driver),
	})
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, r2.ID, routes[0].ID)
}

func TestRouteStopRepo_ShiftOrdersFromSkipsCancelled(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	r := f.route(t, "2025-06-10")
	stops := f.stops(t, r, "child-1", 1, 2, 3, 4)
	stops[2].IsCancelled = true
	require.NoError(t, f.store.Stops.Save(ctx, stops[2]))

	n, err := f.store.Stops.ShiftOrdersFrom(ctx, r.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := f.store.Stops.ListByRoute(ctx, r.ID)
	require.NoError(t, err)
	orders := map[models.StopID]int{}
	for _, s := range got {
		orders[s.ID] = s.StopOrder
	}
	assert.Equal(t, 1, orders[stops[0].ID])
	assert.Equal(t, 3, orders[stops[1].ID])
	assert.Equal(t, 3, orders[stops[2].ID], "cancelled stop keeps its value")
	assert.Equal(t, 5, orders[stops[3].ID])
}

func TestRouteStopRepo_ListActiveForChild(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	in := f.route(t, "2025-06-10")
	out := f.route(t, "2025-06-20")
	mine := f.stops(t, in, "child-1", 1, 2)
	f.stops(t, out, "child-1", 1, 2)
	f.stops(t, in, "child-2", 3, 4)

	got, err := f.store.Stops.ListActiveForChild(ctx, f.company, "child-1", nil,
		models.MustDay("2025-06-09"), models.MustDay("2025-06-12"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, mine[0].ID, got[0].ID)

	schedule := mine[1].ScheduleID
	got, err = f.store.Stops.ListActiveForChild(ctx, f.company, "child-1", &schedule,
		models.MustDay("2025-06-09"), models.MustDay("2025-06-12"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, mine[1].ID, got[0].ID)
}

func TestRouteStopRepo_CountActiveByRoutes(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	r := f.route(t, "2025-06-10")
	stops := f.stops(t, r, "child-1", 1, 2, 3)
	stops[0].IsCancelled = true
	require.NoError(t, f.store.Stops.Save(ctx, stops[0]))

	counts, err := f.store.Stops.CountActiveByRoutes(ctx, []models.RouteID{r.ID, "missing"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[r.ID])
	assert.Zero(t, counts["missing"])
}

func TestRouteRepo_SeriesDates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	series := &gormModels.RouteSeries{
		CompanyID:     f.company,
		Name:          "Mornings",
		IntervalWeeks: 1,
		StartDate:     models.MustDay("2025-06-02"),
		Status:        constants.SeriesStatusActive,
	}
	require.NoError(t, f.store.Series.Create(ctx, series))

	r := f.route(t, "2025-06-09")
	r.SeriesID = &series.ID
	require.NoError(t, f.store.Routes.Save(ctx, r))

	dates, err := f.store.Routes.SeriesDates(ctx, f.company, series.ID, models.MustDay("2025-06-01"), models.MustDay("2025-06-30"))
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"2025-06-09": true}, dates)

	found, err := f.store.Routes.FindBySeriesAndDate(ctx, f.company, series.ID, models.MustDay("2025-06-09"))
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, r.ID, found.ID)
}

func TestAbsenceRepo_ListActiveDriverAbsences(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	dbtest.DriverAbsence(t, f.store.DB(), f.company, f.driver, models.MustDay("2025-06-10"), models.MustDay("2025-06-12"))

	hit, err := f.store.Absences.ListActiveDriverAbsences(ctx, f.company, f.driver, models.MustDay("2025-06-12"), models.MustDay("2025-06-12"))
	require.NoError(t, err)
	assert.Len(t, hit, 1)

	miss, err := f.store.Absences.ListActiveDriverAbsences(ctx, f.company, f.driver, models.MustDay("2025-06-13"), models.MustDay("2025-06-20"))
	require.NoError(t, err)
	assert.Empty(t, miss)
}

func TestDirectoryRepo_DeletedScheduleIsNotFound(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s := dbtest.Schedule(t, f.store.DB(), f.company, "07:30", "08:10")

	got, err := f.store.Directory.GetSchedule(ctx, f.company, s.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	require.NoError(t, f.store.DB().Delete(&gormModels.ChildSchedule{}, "id = ?", s.ID).Error)
	got, err = f.store.Directory.GetSchedule(ctx, f.company, s.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestOutboxRepo_Lifecycle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, f.store.Outbox.Append(ctx, &gormModels.OutboxEvent{
			CompanyID:     f.company,
			AggregateType: constants.AggregateRoute,
			AggregateID:   "route-1",
			EventType:     constants.EventRouteCreated,
			Payload:       `{}`,
			CreatedAt:     time.Date(2025, 6, 10, 7, i, 0, 0, time.UTC),
		}))
	}

	pending, err := f.store.Outbox.ListUnpublished(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	publishedAt := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	require.NoError(t, f.store.Outbox.MarkPublished(ctx, []string{pending[0].ID, pending[1].ID}, publishedAt))

	pending, err = f.store.Outbox.ListUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	deleted, err := f.store.Outbox.DeletePublishedBefore(ctx, f.company, publishedAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
}

func TestStore_TransactionRollsBack(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	var created models.RouteID
	err := f.store.Transaction(ctx, func(tx *Store) error {
		r := &gormModels.Route{
			CompanyID: f.company,
			Date:      models.MustDay("2025-06-10"),
			VehicleID: f.vehicle,
			Status:    constants.RouteStatusDriverMissing,
		}
		if err := tx.Routes.Create(ctx, r); err != nil {
			return err
		}
		created = r.ID
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	got, err := f.store.Routes.GetByID(ctx, f.company, created)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRouteSummaryRepo_ForDay(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	r := f.route(t, "2025-06-10")
	stops := f.stops(t, r, "child-1", 1, 2, 3, 4)
	stops[3].IsCancelled = true
	require.NoError(t, f.store.Stops.Save(ctx, stops[3]))
	f.route(t, "2025-06-11")

	sqlxDB, err := db.NewSQLX(f.store.DB())
	require.NoError(t, err)
	repo := NewRouteSummaryRepo(sqlxDB)

	rows, err := repo.ForDay(ctx, f.company, models.MustDay("2025-06-10"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, string(r.ID), rows[0].RouteID)
	assert.Equal(t, int64(3), rows[0].ActiveStops)
	assert.Equal(t, int64(1), rows[0].CancelledStops)
	assert.Equal(t, constants.RouteStatusPlanned, rows[0].Status)
}
