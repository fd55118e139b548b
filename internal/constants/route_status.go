package constants

import (
	"database/sql/driver"
	"fmt"
)

// RouteStatus mirrors the route_status column
type RouteStatus string

const (
	RouteStatusPlanned       RouteStatus = "PLANNED"
	RouteStatusInProgress    RouteStatus = "IN_PROGRESS"
	RouteStatusCompleted     RouteStatus = "COMPLETED"
	RouteStatusCancelled     RouteStatus = "CANCELLED"
	RouteStatusDriverMissing RouteStatus = "DRIVER_MISSING"
)

func (s RouteStatus) String() string { return string(s) }

// IsTerminal reports whether no further transition is possible
func (s RouteStatus) IsTerminal() bool {
	return s == RouteStatusCompleted || s == RouteStatusCancelled
}

// Scan implements the sql.Scanner interface
func (s *RouteStatus) Scan(src interface{}) error {
	if src == nil {
		*s = ""
		return nil
	}
	switch v := src.(type) {
	case string:
		*s = RouteStatus(v)
	case []byte:
		*s = RouteStatus(v)
	default:
		return fmt.Errorf("RouteStatus: cannot scan type %T", src)
	}
	return nil
}

// Value implements the driver.Valuer interface
func (s RouteStatus) Value() (driver.Value, error) { return string(s), nil }

// StopType distinguishes the two halves of a pickup/dropoff pair
type StopType string

const (
	StopTypePickup  StopType = "PICKUP"
	StopTypeDropoff StopType = "DROPOFF"
)

// StopOutcome is the recorded result of executing a stop
type StopOutcome string

const (
	StopOutcomeOnTime  StopOutcome = "ON_TIME"
	StopOutcomeLate    StopOutcome = "LATE"
	StopOutcomeEarly   StopOutcome = "EARLY"
	StopOutcomeSkipped StopOutcome = "SKIPPED"
	StopOutcomeNoShow  StopOutcome = "NO_SHOW"
)

// IsValid reports whether o is one of the known outcomes
func (o StopOutcome) IsValid() bool {
	switch o {
	case StopOutcomeOnTime, StopOutcomeLate, StopOutcomeEarly, StopOutcomeSkipped, StopOutcomeNoShow:
		return true
	}
	return false
}

// RouteType tags the part of the day a route serves
type RouteType string

const (
	RouteTypeMorning   RouteType = "MORNING"
	RouteTypeAfternoon RouteType = "AFTERNOON"
	RouteTypeOther     RouteType = "OTHER"
)

// SeriesStatus mirrors the route_series.status column
type SeriesStatus string

const (
	SeriesStatusActive    SeriesStatus = "ACTIVE"
	SeriesStatusPaused    SeriesStatus = "PAUSED"
	SeriesStatusCancelled SeriesStatus = "CANCELLED"
)

// AbsenceStatus is shared by driver and child absences
type AbsenceStatus string

const (
	AbsenceStatusActive    AbsenceStatus = "ACTIVE"
	AbsenceStatusCancelled AbsenceStatus = "CANCELLED"
)

// ChildAbsenceType selects which stops a child absence covers
type ChildAbsenceType string

const (
	ChildAbsenceFullDay          ChildAbsenceType = "FULL_DAY"
	ChildAbsenceSpecificSchedule ChildAbsenceType = "SPECIFIC_SCHEDULE"
)

// OptimizationStatus tracks an optimization task through the provider
type OptimizationStatus string

const (
	OptimizationStatusPending   OptimizationStatus = "PENDING"
	OptimizationStatusCompleted OptimizationStatus = "COMPLETED"
	OptimizationStatusFailed    OptimizationStatus = "FAILED"
	OptimizationStatusApplied   OptimizationStatus = "APPLIED"
)
