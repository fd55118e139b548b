package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"caretransport/dispatch/internal/clock"
	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/db/repositories"
	"caretransport/dispatch/internal/events"
	"caretransport/dispatch/internal/logging"
	"caretransport/dispatch/internal/metrics"
	"caretransport/dispatch/internal/models"
	gormModels "caretransport/dispatch/internal/models/gorm"
	"caretransport/dispatch/internal/routing"

	"golang.org/x/sync/errgroup"
)

// RouteService owns route creation, lifecycle transitions and driver changes
type RouteService struct {
	store        *repositories.Store
	summaries    *repositories.RouteSummaryRepo
	availability DriverAvailabilityChecker
	metrics      *metrics.MetricsRegistry
	clock        clock.Clock
	policy       routing.OrderPolicy
}

// NewRouteService creates a new route service. summaries may be nil when the
// day board is not served.
func NewRouteService(
	store *repositories.Store,
	summaries *repositories.RouteSummaryRepo,
	availability DriverAvailabilityChecker,
	m *metrics.MetricsRegistry,
	clk clock.Clock,
	policy routing.OrderPolicy,
) *RouteService {
	return &RouteService{
		store:        store,
		summaries:    summaries,
		availability: availability,
		metrics:      m,
		clock:        clk,
		policy:       policy,
	}
}

// StopInput is one explicitly placed stop of a new route
type StopInput struct {
	ScheduleID    models.ScheduleID
	StopType      constants.StopType
	EstimatedTime models.TimeOfDay
	// Lat and Lng override the schedule's address position when both are set
	Lat *float64
	Lng *float64
}

// CreateRouteInput describes a new route. Either Stops (explicit sequence,
// each schedule appearing as a pickup followed by a dropoff) or ScheduleIDs
// (sequence derived from schedule times) may be given.
type CreateRouteInput struct {
	CompanyID   models.CompanyID
	Date        time.Time
	DriverID    *models.DriverID
	VehicleID   models.VehicleID
	Name        string
	RouteType   constants.RouteType
	SeriesID    *models.SeriesID
	ScheduleIDs []models.ScheduleID
	Stops       []StopInput
	ActorID     models.UserID
}

// RouteDetail is a route with all of its stops, cancelled ones included
type RouteDetail struct {
	Route *gormModels.Route       `json:"route"`
	Stops []*gormModels.RouteStop `json:"stops"`
}

// RouteListItem is a route enriched for listings
type RouteListItem struct {
	Route       gormModels.Route    `json:"route"`
	Driver      *gormModels.Driver  `json:"driver,omitempty"`
	Vehicle     *gormModels.Vehicle `json:"vehicle,omitempty"`
	ActiveStops int64               `json:"active_stops"`
}

// DaySummary is the dispatcher's view of one day
type DaySummary struct {
	Date     string                          `json:"date"`
	Routes   []repositories.RouteSummary     `json:"routes"`
	ByStatus map[constants.RouteStatus]int64 `json:"by_status"`
}

// CreateRoute validates references and availability, then persists the
// route and its stops in one transaction
func (s *RouteService) CreateRoute(ctx context.Context, in CreateRouteInput) (*RouteDetail, error) {
	if in.VehicleID == "" {
		return nil, routing.Validation(constants.ErrCodeVehicleRequired, "")
	}
	if in.Date.IsZero() {
		return nil, routing.Validation(constants.ErrCodeInvalidDateRange, "route date is required")
	}

	vehicle, err := s.store.Directory.GetVehicle(ctx, in.CompanyID, in.VehicleID)
	if err != nil {
		return nil, err
	}
	if vehicle == nil {
		return nil, routing.NotFound(constants.ErrCodeVehicleNotFound, string(in.VehicleID))
	}
	if in.DriverID != nil {
		if err := s.checkDriver(ctx, in.CompanyID, *in.DriverID, in.Date); err != nil {
			return nil, err
		}
	}

	var detail *RouteDetail
	err = s.store.Transaction(ctx, func(tx *repositories.Store) error {
		var txErr error
		detail, txErr = s.createRouteTx(ctx, tx, in)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	logging.Info("Route created",
		"company_id", in.CompanyID,
		"route_id", detail.Route.ID,
		"date", models.FormatDay(detail.Route.Date),
		"stops", len(detail.Stops))
	return detail, nil
}

// checkDriver verifies the driver exists and is free on date
func (s *RouteService) checkDriver(ctx context.Context, companyID models.CompanyID, driverID models.DriverID, date time.Time) error {
	if err := ensureDriver(ctx, s.store, companyID, driverID); err != nil {
		return err
	}
	if s.availability == nil {
		return nil
	}
	availability, err := s.availability.Check(ctx, companyID, driverID, date)
	if err != nil {
		return fmt.Errorf("failed to check driver availability: %w", err)
	}
	if !availability.Available {
		return routing.Validation(constants.ErrCodeDriverUnavailable,
			fmt.Sprintf("driver %s on %s: %s", driverID, models.FormatDay(date), availability.Reason))
	}
	return nil
}

// createRouteTx persists a route and its stops on tx. References are assumed
// checked by the caller.
func (s *RouteService) createRouteTx(ctx context.Context, tx *repositories.Store, in CreateRouteInput) (*RouteDetail, error) {
	route := &gormModels.Route{
		CompanyID: in.CompanyID,
		Date:      models.Day(in.Date),
		DriverID:  in.DriverID,
		VehicleID: in.VehicleID,
		Name:      in.Name,
		RouteType: in.RouteType,
		SeriesID:  in.SeriesID,
		Status:    routing.InitialStatus(in.DriverID),
	}
	if route.RouteType == "" {
		route.RouteType = constants.RouteTypeOther
	}
	if err := tx.Routes.Create(ctx, route); err != nil {
		return nil, err
	}

	var (
		stops []*gormModels.RouteStop
		err   error
	)
	if len(in.Stops) > 0 {
		stops, err = s.explicitStops(ctx, tx, route, in.Stops)
	} else {
		stops, err = s.stopsFromSchedules(ctx, tx, route, in.ScheduleIDs)
	}
	if err != nil {
		return nil, err
	}
	if err := routing.ValidatePairing(stops); err != nil {
		return nil, routing.Validation(constants.ErrCodeInvalidPairing, err.Error())
	}
	if err := tx.Stops.CreateBatch(ctx, stops); err != nil {
		return nil, err
	}

	refreshDerived(route, stops)
	if err := tx.Routes.Save(ctx, route); err != nil {
		return nil, err
	}
	err = recordRouteEvent(ctx, tx, route, constants.EventRouteCreated, events.RouteStatusChanged{
		RouteID: route.ID,
		Date:    models.FormatDay(route.Date),
		To:      string(route.Status),
		ActorID: in.ActorID,
	})
	if err != nil {
		return nil, err
	}
	return &RouteDetail{Route: route, Stops: stops}, nil
}

// explicitStops keeps the caller's sequence, spaced by the order policy
func (s *RouteService) explicitStops(ctx context.Context, tx *repositories.Store, route *gormModels.Route, inputs []StopInput) ([]*gormModels.RouteStop, error) {
	schedules := map[models.ScheduleID]*gormModels.ChildSchedule{}
	stops := make([]*gormModels.RouteStop, 0, len(inputs))

	for i, in := range inputs {
		schedule, ok := schedules[in.ScheduleID]
		if !ok {
			var err error
			if schedule, err = loadSchedule(ctx, tx, route.CompanyID, in.ScheduleID); err != nil {
				return nil, err
			}
			schedules[in.ScheduleID] = schedule
		}
		pickup, dropoff, err := newStopPair(route, schedule, in.EstimatedTime, in.EstimatedTime)
		if err != nil {
			return nil, err
		}
		stop := pickup
		switch in.StopType {
		case constants.StopTypePickup:
		case constants.StopTypeDropoff:
			stop = dropoff
		default:
			return nil, routing.Validation(constants.ErrCodeInvalidPairing, fmt.Sprintf("unknown stop type %q", in.StopType))
		}
		if in.Lat != nil && in.Lng != nil {
			stop.Address.Lat, stop.Address.Lng = *in.Lat, *in.Lng
		}
		stop.StopOrder = (i + 1) * s.spacing()
		stops = append(stops, stop)
	}
	return stops, nil
}

// stopsFromSchedules builds a pickup/dropoff pair per schedule sequenced by
// estimated time, pickups first on equal times
func (s *RouteService) stopsFromSchedules(ctx context.Context, tx *repositories.Store, route *gormModels.Route, ids []models.ScheduleID) ([]*gormModels.RouteStop, error) {
	seen := map[models.ScheduleID]bool{}
	stops := make([]*gormModels.RouteStop, 0, 2*len(ids))

	for _, id := range ids {
		if seen[id] {
			return nil, routing.Validation(constants.ErrCodeScheduleAlreadyOnRoute, string(id))
		}
		seen[id] = true

		schedule, err := loadSchedule(ctx, tx, route.CompanyID, id)
		if err != nil {
			return nil, err
		}
		pickup, dropoff, err := newStopPair(route, schedule, "", "")
		if err != nil {
			return nil, err
		}
		stops = append(stops, pickup, dropoff)
	}

	sort.SliceStable(stops, func(i, j int) bool {
		a, _ := stops[i].EstimatedTime.Minutes()
		b, _ := stops[j].EstimatedTime.Minutes()
		if a != b {
			return a < b
		}
		return stops[i].StopType == constants.StopTypePickup && stops[j].StopType != constants.StopTypePickup
	})
	for i, stop := range stops {
		stop.StopOrder = (i + 1) * s.spacing()
	}
	return stops, nil
}

func (s *RouteService) spacing() int {
	if s.policy.Spacing < 1 {
		return 1
	}
	return s.policy.Spacing
}

// GetRoute returns the route with every stop
func (s *RouteService) GetRoute(ctx context.Context, companyID models.CompanyID, routeID models.RouteID) (*RouteDetail, error) {
	route, err := loadRoute(ctx, s.store, companyID, routeID)
	if err != nil {
		return nil, err
	}
	stops, err := s.store.Stops.ListByRoute(ctx, route.ID)
	if err != nil {
		return nil, err
	}
	return &RouteDetail{Route: route, Stops: stops}, nil
}

// ListRoutes lists routes with their driver, vehicle and active stop count,
// loaded concurrently
func (s *RouteService) ListRoutes(ctx context.Context, companyID models.CompanyID, filter repositories.RouteFilter) ([]RouteListItem, error) {
	routes, err := s.store.Routes.List(ctx, companyID, filter)
	if err != nil {
		return nil, err
	}
	if len(routes) == 0 {
		return []RouteListItem{}, nil
	}

	var (
		driverIDs  []models.DriverID
		vehicleIDs []models.VehicleID
		routeIDs   = make([]models.RouteID, 0, len(routes))
	)
	for _, r := range routes {
		routeIDs = append(routeIDs, r.ID)
		vehicleIDs = append(vehicleIDs, r.VehicleID)
		if r.DriverID != nil {
			driverIDs = append(driverIDs, *r.DriverID)
		}
	}

	var (
		drivers  map[models.DriverID]gormModels.Driver
		vehicles map[models.VehicleID]gormModels.Vehicle
		counts   map[models.RouteID]int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		drivers, err = s.store.Directory.GetDrivers(gctx, companyID, driverIDs)
		return err
	})
	g.Go(func() error {
		var err error
		vehicles, err = s.store.Directory.GetVehicles(gctx, companyID, vehicleIDs)
		return err
	})
	g.Go(func() error {
		var err error
		counts, err = s.store.Stops.CountActiveByRoutes(gctx, routeIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	items := make([]RouteListItem, 0, len(routes))
	for _, r := range routes {
		item := RouteListItem{Route: r, ActiveStops: counts[r.ID]}
		if r.DriverID != nil {
			if d, ok := drivers[*r.DriverID]; ok {
				item.Driver = &d
			}
		}
		if v, ok := vehicles[r.VehicleID]; ok {
			item.Vehicle = &v
		}
		items = append(items, item)
	}
	return items, nil
}

// transitionRoute applies fn to the route inside a transaction and records
// the status change
func (s *RouteService) transitionRoute(
	ctx context.Context,
	companyID models.CompanyID,
	routeID models.RouteID,
	eventType string,
	actorID models.UserID,
	reason string,
	fn func(route *gormModels.Route) error,
) (*gormModels.Route, error) {
	var (
		route *gormModels.Route
		from  constants.RouteStatus
	)
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		var err error
		if route, err = loadRoute(ctx, tx, companyID, routeID); err != nil {
			return err
		}
		from = route.Status
		if err := fn(route); err != nil {
			return err
		}
		if err := tx.Routes.Save(ctx, route); err != nil {
			return err
		}
		return recordRouteEvent(ctx, tx, route, eventType, events.RouteStatusChanged{
			RouteID: route.ID,
			Date:    models.FormatDay(route.Date),
			From:    string(from),
			To:      string(route.Status),
			ActorID: actorID,
			Reason:  reason,
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveTransition(string(from), string(route.Status))
	return route, nil
}

// StartRoute moves a PLANNED route to IN_PROGRESS. at defaults to now.
func (s *RouteService) StartRoute(ctx context.Context, companyID models.CompanyID, routeID models.RouteID, at *time.Time, actorID models.UserID) (*gormModels.Route, error) {
	start := s.clock.Now()
	if at != nil {
		start = *at
	}
	return s.transitionRoute(ctx, companyID, routeID, constants.EventRouteStarted, actorID, "", func(route *gormModels.Route) error {
		return routing.Start(route, start)
	})
}

// CompleteRoute moves an IN_PROGRESS route to COMPLETED. at defaults to now.
func (s *RouteService) CompleteRoute(ctx context.Context, companyID models.CompanyID, routeID models.RouteID, at *time.Time, actorID models.UserID) (*gormModels.Route, error) {
	end := s.clock.Now()
	if at != nil {
		end = *at
	}
	return s.transitionRoute(ctx, companyID, routeID, constants.EventRouteCompleted, actorID, "", func(route *gormModels.Route) error {
		return routing.Complete(route, end)
	})
}

// CancelRoute cancels a non-terminal route. Its stops are left as they are.
func (s *RouteService) CancelRoute(ctx context.Context, companyID models.CompanyID, routeID models.RouteID, reason string, actorID models.UserID) (*gormModels.Route, error) {
	return s.transitionRoute(ctx, companyID, routeID, constants.EventRouteCancelled, actorID, reason, func(route *gormModels.Route) error {
		return routing.Cancel(route, reason)
	})
}

// AssignDriver sets the driver of a PLANNED or DRIVER_MISSING route after
// checking the driver exists and is available on the route date
func (s *RouteService) AssignDriver(ctx context.Context, companyID models.CompanyID, routeID models.RouteID, driverID models.DriverID, actorID models.UserID, reason string) (*gormModels.Route, error) {
	if driverID == "" {
		return nil, routing.Validation(constants.ErrCodeDriverRequired, "")
	}
	current, err := loadRoute(ctx, s.store, companyID, routeID)
	if err != nil {
		return nil, err
	}
	if err := s.checkDriver(ctx, companyID, driverID, current.Date); err != nil {
		return nil, err
	}

	var (
		route *gormModels.Route
		from  constants.RouteStatus
	)
	err = s.store.Transaction(ctx, func(tx *repositories.Store) error {
		var err error
		if route, err = loadRoute(ctx, tx, companyID, routeID); err != nil {
			return err
		}
		from = route.Status
		if from == constants.RouteStatusPlanned && route.DriverID != nil && *route.DriverID == driverID {
			return nil
		}
		_, err = assignDriverTx(ctx, tx, route, driverID, actorID, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	if from != route.Status {
		s.metrics.ObserveTransition(string(from), string(route.Status))
	}
	return route, nil
}

// assignDriverTx changes the driver of route on tx, appending the assignment
// row and the event. A series occurrence leaving DRIVER_MISSING gets the
// pairs of children added to the series meanwhile. Returns the previous driver.
func assignDriverTx(ctx context.Context, tx *repositories.Store, route *gormModels.Route, driverID models.DriverID, actorID models.UserID, reason string) (*models.DriverID, error) {
	wasMissing := route.Status == constants.RouteStatusDriverMissing
	previous, err := routing.AssignDriver(route, driverID)
	if err != nil {
		return nil, err
	}
	if err := tx.Routes.Save(ctx, route); err != nil {
		return nil, err
	}
	routeID := route.ID
	err = tx.Assignments.Create(ctx, &gormModels.RouteDriverAssignment{
		CompanyID:        route.CompanyID,
		RouteID:          &routeID,
		PreviousDriverID: previous,
		NewDriverID:      route.DriverID,
		ActorID:          actorID,
		Reason:           reason,
	})
	if err != nil {
		return nil, err
	}
	err = recordRouteEvent(ctx, tx, route, constants.EventRouteDriverAssigned, events.DriverChanged{
		RouteID:          route.ID,
		PreviousDriverID: previous,
		NewDriverID:      route.DriverID,
		ActorID:          actorID,
		Reason:           reason,
	})
	if err != nil || !wasMissing {
		return previous, err
	}
	_, err = restoreSeriesMembersTx(ctx, tx, route)
	return previous, err
}

// MarkDriverMissing clears the driver of a PLANNED route. Reports false when
// the route was already DRIVER_MISSING.
func (s *RouteService) MarkDriverMissing(ctx context.Context, companyID models.CompanyID, routeID models.RouteID, absenceID *models.AbsenceID, actorID models.UserID, reason string) (*gormModels.Route, bool, error) {
	var (
		route   *gormModels.Route
		changed bool
	)
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		var err error
		if route, err = loadRoute(ctx, tx, companyID, routeID); err != nil {
			return err
		}
		changed, err = markDriverMissingTx(ctx, tx, route, absenceID, actorID, reason)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		s.metrics.ObserveTransition(string(constants.RouteStatusPlanned), string(constants.RouteStatusDriverMissing))
	}
	return route, changed, nil
}

func markDriverMissingTx(ctx context.Context, tx *repositories.Store, route *gormModels.Route, absenceID *models.AbsenceID, actorID models.UserID, reason string) (bool, error) {
	changed, err := routing.MarkDriverMissing(route, absenceID)
	if err != nil || !changed {
		return false, err
	}
	if err := tx.Routes.Save(ctx, route); err != nil {
		return false, err
	}
	routeID := route.ID
	err = tx.Assignments.Create(ctx, &gormModels.RouteDriverAssignment{
		CompanyID:        route.CompanyID,
		RouteID:          &routeID,
		PreviousDriverID: route.PreviousDriverID,
		ActorID:          actorID,
		Reason:           reason,
	})
	if err != nil {
		return false, err
	}
	err = recordRouteEvent(ctx, tx, route, constants.EventRouteDriverMissing, events.DriverChanged{
		RouteID:          route.ID,
		SeriesID:         seriesOf(route),
		PreviousDriverID: route.PreviousDriverID,
		AbsenceID:        absenceID,
		ActorID:          actorID,
		Reason:           reason,
	})
	return err == nil, err
}

func seriesOf(route *gormModels.Route) models.SeriesID {
	if route.SeriesID == nil {
		return ""
	}
	return *route.SeriesID
}

// DriverHistory returns the assignment audit of a route, oldest first
func (s *RouteService) DriverHistory(ctx context.Context, companyID models.CompanyID, routeID models.RouteID) ([]gormModels.RouteDriverAssignment, error) {
	if _, err := loadRoute(ctx, s.store, companyID, routeID); err != nil {
		return nil, err
	}
	return s.store.Assignments.ListByRoute(ctx, routeID)
}

// DaySummary returns the per-route board and status counts of a day
func (s *RouteService) DaySummary(ctx context.Context, companyID models.CompanyID, day time.Time) (*DaySummary, error) {
	if s.summaries == nil {
		return nil, fmt.Errorf("route summaries are not configured")
	}
	rows, err := s.summaries.ForDay(ctx, companyID, day)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.Routes.CountByStatus(ctx, companyID, day)
	if err != nil {
		return nil, err
	}
	return &DaySummary{Date: models.FormatDay(day), Routes: rows, ByStatus: counts}, nil
}
