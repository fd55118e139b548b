package services

import (
	"context"
	"fmt"
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
)

// RouteStopService mutates the stops of existing routes
type RouteStopService struct {
	store     *repositories.Store
	metrics   *metrics.MetricsRegistry
	clock     clock.Clock
	policy    routing.OrderPolicy
	tolerance time.Duration
}

// NewRouteStopService creates a new stop service
func NewRouteStopService(store *repositories.Store, m *metrics.MetricsRegistry, clk clock.Clock, policy routing.OrderPolicy, tolerance time.Duration) *RouteStopService {
	return &RouteStopService{
		store:     store,
		metrics:   m,
		clock:     clk,
		policy:    policy,
		tolerance: tolerance,
	}
}

// AddScheduleInput places a schedule's pickup/dropoff pair on a route. Nil
// orders are derived from the estimated times.
type AddScheduleInput struct {
	CompanyID    models.CompanyID
	RouteID      models.RouteID
	ScheduleID   models.ScheduleID
	PickupOrder  *int
	DropoffOrder *int
	PickupTime   models.TimeOfDay
	DropoffTime  models.TimeOfDay
	ActorID      models.UserID
}

// StopDetailUpdate carries the editable fields of a stop. Nil fields are
// left unchanged.
type StopDetailUpdate struct {
	EstimatedTime *models.TimeOfDay
	Notes         *string
	Address       *gormModels.Address
	ActorID       models.UserID
}

// AddScheduleToRoute inserts the pair, shifting colliding stops up
func (s *RouteStopService) AddScheduleToRoute(ctx context.Context, in AddScheduleInput) ([]*gormModels.RouteStop, error) {
	var added []*gormModels.RouteStop
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		route, err := loadRoute(ctx, tx, in.CompanyID, in.RouteID)
		if err != nil {
			return err
		}
		schedule, err := loadSchedule(ctx, tx, in.CompanyID, in.ScheduleID)
		if err != nil {
			return err
		}
		added, err = addSchedulePairTx(ctx, tx, route, schedule, pairPlacement{
			pickupOrder:  in.PickupOrder,
			dropoffOrder: in.DropoffOrder,
			pickupTime:   in.PickupTime,
			dropoffTime:  in.DropoffTime,
		})
		if err != nil {
			return err
		}
		return recordRouteEvent(ctx, tx, route, constants.EventScheduleAddedToRoute, events.StopsChanged{
			RouteID:    route.ID,
			ScheduleID: schedule.ID,
			ChildID:    schedule.ChildID,
			StopIDs:    stopIDs(added),
		})
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

type pairPlacement struct {
	pickupOrder  *int
	dropoffOrder *int
	pickupTime   models.TimeOfDay
	dropoffTime  models.TimeOfDay
}

// addSchedulePairTx inserts a schedule's pair on a PLANNED route. Colliding
// orders shift every later active stop in one statement per insert.
func addSchedulePairTx(ctx context.Context, tx *repositories.Store, route *gormModels.Route, schedule *gormModels.ChildSchedule, at pairPlacement) ([]*gormModels.RouteStop, error) {
	if err := routing.EnsureStopsMutable(route); err != nil {
		return nil, err
	}
	existing, err := tx.Stops.ListByRouteAndSchedule(ctx, route.ID, schedule.ID)
	if err != nil {
		return nil, err
	}
	if len(routing.ActiveStops(existing)) > 0 {
		return nil, routing.Validation(constants.ErrCodeScheduleAlreadyOnRoute, string(schedule.ID))
	}

	pickup, dropoff, err := newStopPair(route, schedule, at.pickupTime, at.dropoffTime)
	if err != nil {
		return nil, err
	}
	all, err := tx.Stops.ListByRoute(ctx, route.ID)
	if err != nil {
		return nil, err
	}
	active := routing.ActiveStops(all)

	pickupOrder := routing.OrderForTime(active, pickup.EstimatedTime, 0)
	if at.pickupOrder != nil {
		pickupOrder = *at.pickupOrder
	}
	active, err = insertStop(ctx, tx, route.ID, active, pickupOrder, pickup)
	if err != nil {
		return nil, err
	}

	dropoffOrder := routing.OrderForTime(active, dropoff.EstimatedTime, pickup.StopOrder)
	if at.dropoffOrder != nil {
		dropoffOrder = *at.dropoffOrder
	}
	if dropoffOrder <= pickup.StopOrder {
		return nil, routing.Validation(constants.ErrCodeInvalidPairing,
			fmt.Sprintf("dropoff order %d must follow pickup order %d", dropoffOrder, pickup.StopOrder))
	}
	active, err = insertStop(ctx, tx, route.ID, active, dropoffOrder, dropoff)
	if err != nil {
		return nil, err
	}

	added := []*gormModels.RouteStop{pickup, dropoff}
	if err := tx.Stops.CreateBatch(ctx, added); err != nil {
		return nil, err
	}
	refreshDerived(route, active)
	if err := tx.Routes.Save(ctx, route); err != nil {
		return nil, err
	}
	return added, nil
}

// insertStop places stop in the in-memory active list and applies the same
// shift to the stored rows. stop itself is persisted by the caller.
func insertStop(ctx context.Context, tx *repositories.Store, routeID models.RouteID, active []*gormModels.RouteStop, order int, stop *gormModels.RouteStop) ([]*gormModels.RouteStop, error) {
	shifted, result, err := routing.InsertAt(active, order, stop)
	if err != nil {
		return nil, err
	}
	if len(shifted) > 0 {
		if _, err := tx.Stops.ShiftOrdersFrom(ctx, routeID, order); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// DeleteScheduleFromRoute removes both stops of a schedule from a PLANNED
// route. Remaining orders keep their gaps.
func (s *RouteStopService) DeleteScheduleFromRoute(ctx context.Context, companyID models.CompanyID, routeID models.RouteID, scheduleID models.ScheduleID, actorID models.UserID) error {
	return s.store.Transaction(ctx, func(tx *repositories.Store) error {
		route, err := loadRoute(ctx, tx, companyID, routeID)
		if err != nil {
			return err
		}
		if err := routing.EnsureStopsMutable(route); err != nil {
			return err
		}
		stops, err := tx.Stops.ListByRouteAndSchedule(ctx, route.ID, scheduleID)
		if err != nil {
			return err
		}
		if len(stops) == 0 {
			return routing.NotFound(constants.ErrCodeStopNotFound, fmt.Sprintf("schedule %s on route %s", scheduleID, routeID))
		}
		for _, stop := range stops {
			if stop.IsExecuted() {
				return routing.InvalidState(constants.ErrCodeStopImmutable, string(stop.ID))
			}
		}
		if _, err := tx.Stops.DeleteByIDs(ctx, stopIDs(stops)); err != nil {
			return err
		}
		if err := s.refreshRoute(ctx, tx, route); err != nil {
			return err
		}
		return recordRouteEvent(ctx, tx, route, constants.EventScheduleDeletedFromRoute, events.StopsChanged{
			RouteID:    route.ID,
			ScheduleID: scheduleID,
			ChildID:    stops[0].ChildID,
			StopIDs:    stopIDs(stops),
		})
	})
}

// CancelScheduleOnRoute cancels both stops of a schedule, keeping them on the
// route for the record. Executed stops are left alone.
func (s *RouteStopService) CancelScheduleOnRoute(ctx context.Context, companyID models.CompanyID, routeID models.RouteID, scheduleID models.ScheduleID, reason string, actorID models.UserID) ([]*gormModels.RouteStop, error) {
	var cancelled []*gormModels.RouteStop
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		route, err := loadRoute(ctx, tx, companyID, routeID)
		if err != nil {
			return err
		}
		if err := routing.EnsureStopCancellable(route); err != nil {
			return err
		}
		stops, err := tx.Stops.ListByRouteAndSchedule(ctx, route.ID, scheduleID)
		if err != nil {
			return err
		}
		if len(stops) == 0 {
			return routing.NotFound(constants.ErrCodeStopNotFound, fmt.Sprintf("schedule %s on route %s", scheduleID, routeID))
		}
		cancelled, err = s.cancelStopsTx(ctx, tx, route, stops, reason, nil)
		if err != nil || len(cancelled) == 0 {
			return err
		}
		return recordRouteEvent(ctx, tx, route, constants.EventScheduleCancelledOnRoute, events.StopsChanged{
			RouteID:    route.ID,
			ScheduleID: scheduleID,
			ChildID:    stops[0].ChildID,
			StopIDs:    stopIDs(cancelled),
			Reason:     reason,
		})
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// CancelStop cancels a stop and its pair partner. An executed partner stays
// as recorded.
func (s *RouteStopService) CancelStop(ctx context.Context, companyID models.CompanyID, stopID models.StopID, reason string, actorID models.UserID) ([]*gormModels.RouteStop, error) {
	var cancelled []*gormModels.RouteStop
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		stop, err := loadStop(ctx, tx, companyID, stopID)
		if err != nil {
			return err
		}
		route, err := loadRoute(ctx, tx, companyID, stop.RouteID)
		if err != nil {
			return err
		}
		if err := routing.EnsureStopCancellable(route); err != nil {
			return err
		}
		if stop.IsExecuted() {
			return routing.InvalidState(constants.ErrCodeStopImmutable, string(stop.ID))
		}
		if stop.IsCancelled {
			return nil
		}
		pair, err := tx.Stops.ListByRouteAndSchedule(ctx, route.ID, stop.ScheduleID)
		if err != nil {
			return err
		}
		cancelled, err = s.cancelStopsTx(ctx, tx, route, pair, reason, nil)
		if err != nil {
			return err
		}
		return recordRouteEvent(ctx, tx, route, constants.EventStopCancelled, events.StopsChanged{
			RouteID:    route.ID,
			ScheduleID: stop.ScheduleID,
			ChildID:    stop.ChildID,
			StopIDs:    stopIDs(cancelled),
			Reason:     reason,
		})
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// cancelStopsTx cancels every cancellable stop of stops and refreshes the
// route's derived fields
func (s *RouteStopService) cancelStopsTx(ctx context.Context, tx *repositories.Store, route *gormModels.Route, stops []*gormModels.RouteStop, reason string, absenceID *models.AbsenceID) ([]*gormModels.RouteStop, error) {
	now := s.clock.Now()
	var cancelled []*gormModels.RouteStop
	for _, stop := range stops {
		if !cancelStop(stop, reason, absenceID, now) {
			continue
		}
		if err := tx.Stops.Save(ctx, stop); err != nil {
			return nil, err
		}
		cancelled = append(cancelled, stop)
	}
	if len(cancelled) == 0 {
		return nil, nil
	}
	return cancelled, s.refreshRoute(ctx, tx, route)
}

// refreshRoute reloads the active stops and saves the derived fields
func (s *RouteStopService) refreshRoute(ctx context.Context, tx *repositories.Store, route *gormModels.Route) error {
	all, err := tx.Stops.ListByRoute(ctx, route.ID)
	if err != nil {
		return err
	}
	refreshDerived(route, routing.ActiveStops(all))
	return tx.Routes.Save(ctx, route)
}

// ReorderStops assigns dense orders following stopIDs, which must name
// exactly the route's active stops. A dropoff may not precede its pickup.
func (s *RouteStopService) ReorderStops(ctx context.Context, companyID models.CompanyID, routeID models.RouteID, ids []models.StopID, actorID models.UserID) ([]*gormModels.RouteStop, error) {
	var active []*gormModels.RouteStop
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		route, err := loadRoute(ctx, tx, companyID, routeID)
		if err != nil {
			return err
		}
		if err := routing.EnsureStopsMutable(route); err != nil {
			return err
		}
		all, err := tx.Stops.ListByRoute(ctx, route.ID)
		if err != nil {
			return err
		}
		active = routing.ActiveStops(all)
		changed, err := routing.Reorder(active, ids)
		if err != nil {
			return err
		}
		routing.SortByOrder(active)
		if err := routing.ValidatePairing(active); err != nil {
			return routing.Validation(constants.ErrCodeInvalidPairing, err.Error())
		}
		if err := tx.Stops.UpdateOrders(ctx, changed); err != nil {
			return err
		}
		refreshDerived(route, active)
		if err := tx.Routes.Save(ctx, route); err != nil {
			return err
		}
		return recordRouteEvent(ctx, tx, route, constants.EventStopsReordered, events.StopsChanged{
			RouteID: route.ID,
			StopIDs: ids,
		})
	})
	if err != nil {
		return nil, err
	}
	return active, nil
}

// UpdateStopDetail edits the estimated time, notes or address of a stop that
// is neither executed nor cancelled
func (s *RouteStopService) UpdateStopDetail(ctx context.Context, companyID models.CompanyID, stopID models.StopID, in StopDetailUpdate) (*gormModels.RouteStop, error) {
	if in.EstimatedTime != nil {
		if _, err := models.ParseTimeOfDay(string(*in.EstimatedTime)); err != nil {
			return nil, routing.Validation(constants.ErrCodeInvalidTimeOfDay, string(*in.EstimatedTime))
		}
	}

	var stop *gormModels.RouteStop
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		var err error
		if stop, err = loadStop(ctx, tx, companyID, stopID); err != nil {
			return err
		}
		route, err := loadRoute(ctx, tx, companyID, stop.RouteID)
		if err != nil {
			return err
		}
		if err := routing.EnsureStopDetailEditable(route); err != nil {
			return err
		}
		if stop.IsExecuted() || stop.IsCancelled {
			return routing.InvalidState(constants.ErrCodeStopImmutable, string(stop.ID))
		}

		if in.EstimatedTime != nil {
			stop.EstimatedTime = *in.EstimatedTime
		}
		if in.Notes != nil {
			stop.Notes = *in.Notes
		}
		if in.Address != nil {
			stop.Address = *in.Address
		}
		if err := tx.Stops.Save(ctx, stop); err != nil {
			return err
		}
		if err := s.refreshRoute(ctx, tx, route); err != nil {
			return err
		}
		return recordRouteEvent(ctx, tx, route, constants.EventStopUpdated, events.StopsChanged{
			RouteID:    route.ID,
			ScheduleID: stop.ScheduleID,
			ChildID:    stop.ChildID,
			StopIDs:    []models.StopID{stop.ID},
		})
	})
	if err != nil {
		return nil, err
	}
	return stop, nil
}

// ExecuteStop records the outcome of a stop on an IN_PROGRESS route
func (s *RouteStopService) ExecuteStop(ctx context.Context, companyID models.CompanyID, stopID models.StopID, in routing.Execution) (*gormModels.RouteStop, error) {
	if in.ActualTime.IsZero() {
		in.ActualTime = s.clock.Now()
	}

	var stop *gormModels.RouteStop
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		var err error
		if stop, err = loadStop(ctx, tx, companyID, stopID); err != nil {
			return err
		}
		route, err := loadRoute(ctx, tx, companyID, stop.RouteID)
		if err != nil {
			return err
		}
		if err := routing.ExecuteStop(route, stop, in, s.tolerance); err != nil {
			return err
		}
		if err := tx.Stops.Save(ctx, stop); err != nil {
			return err
		}
		return recordRouteEvent(ctx, tx, route, constants.EventStopExecuted, events.StopExecuted{
			RouteID:    route.ID,
			StopID:     stop.ID,
			Outcome:    string(*stop.Outcome),
			ActualTime: *stop.ActualTime,
			ExecutedBy: in.ExecutedBy,
		})
	})
	if err != nil {
		return nil, err
	}
	return stop, nil
}

// RebalanceRoute respaces the active stops of a PLANNED route. When onlyIfNeeded
// is set, routes whose gaps are still wide enough are left untouched. Returns
// the number of stops moved.
func (s *RouteStopService) RebalanceRoute(ctx context.Context, companyID models.CompanyID, routeID models.RouteID, onlyIfNeeded bool) (int, error) {
	moved := 0
	err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
		route, err := loadRoute(ctx, tx, companyID, routeID)
		if err != nil {
			return err
		}
		if err := routing.EnsureStopsMutable(route); err != nil {
			return err
		}
		all, err := tx.Stops.ListByRoute(ctx, route.ID)
		if err != nil {
			return err
		}
		active := routing.ActiveStops(all)
		if onlyIfNeeded && !s.policy.NeedsRebalancing(active) {
			return nil
		}
		changed := s.policy.Rebalance(active)
		if len(changed) == 0 {
			return nil
		}
		if err := tx.Stops.UpdateOrders(ctx, changed); err != nil {
			return err
		}
		moved = len(changed)
		return recordRouteEvent(ctx, tx, route, constants.EventStopsRebalanced, events.StopsChanged{
			RouteID: route.ID,
			StopIDs: stopIDs(changed),
		})
	})
	if err != nil {
		return 0, err
	}
	if moved > 0 {
		logging.Debug("Route stops rebalanced", "company_id", companyID, "route_id", routeID, "moved", moved)
	}
	return moved, nil
}
