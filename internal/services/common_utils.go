package services

import (
	"context"
	"fmt"
	"time"

	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/db/repositories"
	"caretransport/dispatch/internal/events"
	"caretransport/dispatch/internal/models"
	gormModels "caretransport/dispatch/internal/models/gorm"
	"caretransport/dispatch/internal/routing"
)

// recordEvent appends an outbox event on the given (transaction) store
func recordEvent(ctx context.Context, tx *repositories.Store, companyID models.CompanyID, aggregateType, aggregateID, eventType string, payload interface{}) error {
	ev, err := events.New(companyID, aggregateType, aggregateID, eventType, payload)
	if err != nil {
		return err
	}
	return tx.Outbox.Append(ctx, ev)
}

func recordRouteEvent(ctx context.Context, tx *repositories.Store, route *gormModels.Route, eventType string, payload interface{}) error {
	return recordEvent(ctx, tx, route.CompanyID, constants.AggregateRoute, string(route.ID), eventType, payload)
}

func loadRoute(ctx context.Context, store *repositories.Store, companyID models.CompanyID, id models.RouteID) (*gormModels.Route, error) {
	route, err := store.Routes.GetByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if route == nil {
		return nil, routing.NotFound(constants.ErrCodeRouteNotFound, string(id))
	}
	return route, nil
}

func loadStop(ctx context.Context, store *repositories.Store, companyID models.CompanyID, id models.StopID) (*gormModels.RouteStop, error) {
	stop, err := store.Stops.GetByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if stop == nil {
		return nil, routing.NotFound(constants.ErrCodeStopNotFound, string(id))
	}
	return stop, nil
}

func loadSchedule(ctx context.Context, store *repositories.Store, companyID models.CompanyID, id models.ScheduleID) (*gormModels.ChildSchedule, error) {
	schedule, err := store.Directory.GetSchedule(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		return nil, routing.NotFound(constants.ErrCodeScheduleNotFound, string(id))
	}
	return schedule, nil
}

func loadSeries(ctx context.Context, store *repositories.Store, companyID models.CompanyID, id models.SeriesID) (*gormModels.RouteSeries, error) {
	series, err := store.Series.GetByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if series == nil {
		return nil, routing.NotFound(constants.ErrCodeSeriesNotFound, string(id))
	}
	return series, nil
}

// ensureDriver checks the driver exists in the company
func ensureDriver(ctx context.Context, store *repositories.Store, companyID models.CompanyID, id models.DriverID) error {
	driver, err := store.Directory.GetDriver(ctx, companyID, id)
	if err != nil {
		return err
	}
	if driver == nil {
		return routing.NotFound(constants.ErrCodeDriverNotFound, string(id))
	}
	return nil
}

// refreshDerived recomputes the route fields that follow from its active
// stops: estimated start/end and the encoded path
func refreshDerived(route *gormModels.Route, active []*gormModels.RouteStop) {
	route.Geometry = routing.EncodePath(active)
	route.EstimatedStart, route.EstimatedEnd = nil, nil
	for _, s := range active {
		at, err := s.EstimatedTime.On(route.Date)
		if err != nil {
			continue
		}
		if route.EstimatedStart == nil || at.Before(*route.EstimatedStart) {
			start := at
			route.EstimatedStart = &start
		}
		if route.EstimatedEnd == nil || at.After(*route.EstimatedEnd) {
			end := at
			route.EstimatedEnd = &end
		}
	}
}

// newStopPair builds the unsaved pickup and dropoff of a schedule for route.
// Empty times fall back to the schedule's own.
func newStopPair(route *gormModels.Route, schedule *gormModels.ChildSchedule, pickupTime, dropoffTime models.TimeOfDay) (*gormModels.RouteStop, *gormModels.RouteStop, error) {
	if pickupTime == "" {
		pickupTime = schedule.PickupTime
	}
	if dropoffTime == "" {
		dropoffTime = schedule.DropoffTime
	}
	for _, t := range []models.TimeOfDay{pickupTime, dropoffTime} {
		if _, err := models.ParseTimeOfDay(string(t)); err != nil {
			return nil, nil, routing.Validation(constants.ErrCodeInvalidTimeOfDay, string(t))
		}
	}

	pickup := &gormModels.RouteStop{
		CompanyID:     route.CompanyID,
		RouteID:       route.ID,
		StopType:      constants.StopTypePickup,
		ChildID:       schedule.ChildID,
		ScheduleID:    schedule.ID,
		EstimatedTime: pickupTime,
		Address:       schedule.PickupAddress,
	}
	dropoff := &gormModels.RouteStop{
		CompanyID:     route.CompanyID,
		RouteID:       route.ID,
		StopType:      constants.StopTypeDropoff,
		ChildID:       schedule.ChildID,
		ScheduleID:    schedule.ID,
		EstimatedTime: dropoffTime,
		Address:       schedule.DropoffAddress,
	}
	return pickup, dropoff, nil
}

// cancelStop sets the cancellation fields. Returns false when the stop was
// already cancelled or has been executed.
func cancelStop(stop *gormModels.RouteStop, reason string, absenceID *models.AbsenceID, at time.Time) bool {
	if stop.IsCancelled || stop.IsExecuted() {
		return false
	}
	stop.IsCancelled = true
	stop.CancellationReason = &reason
	stop.CancelledByAbsenceID = absenceID
	stop.CancelledAt = &at
	return true
}

func stopIDs(stops []*gormModels.RouteStop) []models.StopID {
	ids := make([]models.StopID, len(stops))
	for i, s := range stops {
		ids[i] = s.ID
	}
	return ids
}

func absenceReason(kind string, id models.AbsenceID) string {
	return fmt.Sprintf("%s absence %s", kind, id)
}
