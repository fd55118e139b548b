package routing

import (
	"fmt"
	"time"

	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/models"
	gormModels "caretransport/dispatch/internal/models/gorm"
)

var transitions = map[constants.RouteStatus][]constants.RouteStatus{
	constants.RouteStatusPlanned: {
		constants.RouteStatusInProgress,
		constants.RouteStatusCancelled,
		constants.RouteStatusDriverMissing,
	},
	constants.RouteStatusDriverMissing: {
		constants.RouteStatusPlanned,
		constants.RouteStatusCancelled,
	},
	constants.RouteStatusInProgress: {
		constants.RouteStatusCompleted,
		constants.RouteStatusCancelled,
	},
}

// CanTransition reports whether from -> to is a legal route transition
func CanTransition(from, to constants.RouteStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func transitionError(route *gormModels.Route, to constants.RouteStatus) error {
	return InvalidState(constants.ErrCodeInvalidTransition,
		fmt.Sprintf("route %s: %s -> %s", route.ID, route.Status, to))
}

func transition(route *gormModels.Route, to constants.RouteStatus) error {
	if !CanTransition(route.Status, to) {
		return transitionError(route, to)
	}
	route.Status = to
	return nil
}

// InitialStatus is PLANNED, or DRIVER_MISSING for routes created without a driver
func InitialStatus(driver *models.DriverID) constants.RouteStatus {
	if driver == nil {
		return constants.RouteStatusDriverMissing
	}
	return constants.RouteStatusPlanned
}

// Start moves a PLANNED route to IN_PROGRESS
func Start(route *gormModels.Route, actualStart time.Time) error {
	if route.Status != constants.RouteStatusPlanned {
		return transitionError(route, constants.RouteStatusInProgress)
	}
	if actualStart.IsZero() {
		return Validation(constants.ErrCodeInvalidTransition, "actual start time is required")
	}
	if err := transition(route, constants.RouteStatusInProgress); err != nil {
		return err
	}
	route.ActualStart = &actualStart
	return nil
}

// Complete moves an IN_PROGRESS route to COMPLETED
func Complete(route *gormModels.Route, actualEnd time.Time) error {
	if route.Status != constants.RouteStatusInProgress {
		return transitionError(route, constants.RouteStatusCompleted)
	}
	if actualEnd.IsZero() {
		return Validation(constants.ErrCodeInvalidTransition, "actual end time is required")
	}
	if route.ActualStart != nil && actualEnd.Before(*route.ActualStart) {
		return Validation(constants.ErrCodeInvalidDateRange, "actual end is before actual start")
	}
	if err := transition(route, constants.RouteStatusCompleted); err != nil {
		return err
	}
	route.ActualEnd = &actualEnd
	return nil
}

// Cancel moves a non-terminal route to CANCELLED
func Cancel(route *gormModels.Route, reason string) error {
	if err := transition(route, constants.RouteStatusCancelled); err != nil {
		return err
	}
	if reason != "" {
		route.CancellationReason = &reason
	}
	return nil
}

// MarkDriverMissing clears the driver of a PLANNED route. A route already in
// DRIVER_MISSING is left untouched and reported as unchanged.
func MarkDriverMissing(route *gormModels.Route, absenceID *models.AbsenceID) (bool, error) {
	if route.Status == constants.RouteStatusDriverMissing {
		return false, nil
	}
	if err := transition(route, constants.RouteStatusDriverMissing); err != nil {
		return false, err
	}
	route.PreviousDriverID = route.DriverID
	route.DriverID = nil
	route.DriverMissingAbsenceID = absenceID
	return true, nil
}

// AssignDriver sets the route's driver. DRIVER_MISSING routes return to
// PLANNED. Returns the previous driver.
func AssignDriver(route *gormModels.Route, driver models.DriverID) (*models.DriverID, error) {
	if driver == "" {
		return nil, Validation(constants.ErrCodeDriverRequired, "")
	}
	switch route.Status {
	case constants.RouteStatusPlanned:
	case constants.RouteStatusDriverMissing:
		if err := transition(route, constants.RouteStatusPlanned); err != nil {
			return nil, err
		}
		route.DriverMissingAbsenceID = nil
	default:
		return nil, InvalidState(constants.ErrCodeInvalidTransition,
			fmt.Sprintf("route %s: cannot assign driver while %s", route.ID, route.Status))
	}
	previous := route.DriverID
	route.DriverID = models.DriverPtr(driver)
	return previous, nil
}

func stopGuard(route *gormModels.Route, allowed ...constants.RouteStatus) error {
	for _, s := range allowed {
		if route.Status == s {
			return nil
		}
	}
	return InvalidState(constants.ErrCodeStopsNotMutable,
		fmt.Sprintf("route %s is %s", route.ID, route.Status))
}

// EnsureStopsMutable guards add/remove/reorder/rebalance
func EnsureStopsMutable(route *gormModels.Route) error {
	return stopGuard(route, constants.RouteStatusPlanned)
}

// EnsureStopDetailEditable guards estimated time / notes / address edits
func EnsureStopDetailEditable(route *gormModels.Route) error {
	return stopGuard(route, constants.RouteStatusPlanned, constants.RouteStatusInProgress)
}

// EnsureStopCancellable guards stop cancellation
func EnsureStopCancellable(route *gormModels.Route) error {
	return stopGuard(route,
		constants.RouteStatusPlanned,
		constants.RouteStatusInProgress,
		constants.RouteStatusDriverMissing,
	)
}

// EnsureStopsExecutable guards stop execution
func EnsureStopsExecutable(route *gormModels.Route) error {
	return stopGuard(route, constants.RouteStatusInProgress)
}
