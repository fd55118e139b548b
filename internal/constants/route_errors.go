package constants

// Route engine error codes
const (
	ErrCodeRouteNotFound    = "ROUTE_NOT_FOUND"
	ErrCodeStopNotFound     = "STOP_NOT_FOUND"
	ErrCodeSeriesNotFound   = "SERIES_NOT_FOUND"
	ErrCodeScheduleNotFound = "SCHEDULE_NOT_FOUND"
	ErrCodeAbsenceNotFound  = "ABSENCE_NOT_FOUND"
	ErrCodeTaskNotFound     = "OPTIMIZATION_TASK_NOT_FOUND"
	ErrCodeDriverNotFound   = "DRIVER_NOT_FOUND"
	ErrCodeVehicleNotFound  = "VEHICLE_NOT_FOUND"

	ErrCodeInvalidTransition          = "INVALID_STATE_TRANSITION"
	ErrCodeStopsNotMutable            = "STOPS_NOT_MUTABLE"
	ErrCodeCannotExecuteCancelledStop = "CANNOT_EXECUTE_CANCELLED_STOP"
	ErrCodeStopAlreadyExecuted        = "STOP_ALREADY_EXECUTED"
	ErrCodeStopImmutable              = "STOP_IMMUTABLE"
	ErrCodeSeriesNotActive            = "SERIES_NOT_ACTIVE"
	ErrCodeTaskNotReady               = "OPTIMIZATION_TASK_NOT_READY"

	ErrCodeInvalidDateRange       = "INVALID_DATE_RANGE"
	ErrCodeInvalidTimeOfDay       = "INVALID_TIME_OF_DAY"
	ErrCodeReorderSetMismatch     = "REORDER_SET_MISMATCH"
	ErrCodeStopRouteMismatch      = "STOP_ROUTE_MISMATCH"
	ErrCodeScheduleAlreadyOnRoute = "SCHEDULE_ALREADY_ON_ROUTE"
	ErrCodeDriverUnavailable      = "DRIVER_UNAVAILABLE"
	ErrCodeDriverRequired         = "DRIVER_REQUIRED"
	ErrCodeInvalidStopOrder       = "INVALID_STOP_ORDER"
	ErrCodeInvalidOutcome         = "INVALID_OUTCOME"
	ErrCodeInvalidInterval        = "INVALID_RECURRENCE_INTERVAL"
	ErrCodeInvalidPairing         = "INVALID_STOP_PAIRING"
	ErrCodeVehicleRequired        = "VEHICLE_REQUIRED"
	ErrCodeInvalidProviderResult  = "INVALID_OPTIMIZATION_RESULT"

	// Transport
	ErrCodeMissingCompany = "MISSING_COMPANY"
	ErrCodeInvalidBody    = "INVALID_REQUEST_BODY"
	ErrCodeUnknownJob     = "UNKNOWN_JOB"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

var RouteErrorMessages = map[string]string{
	ErrCodeRouteNotFound:    "Route not found for this company",
	ErrCodeStopNotFound:     "Stop not found on this route",
	ErrCodeSeriesNotFound:   "Route series not found for this company",
	ErrCodeScheduleNotFound: "Child schedule not found for this company",
	ErrCodeAbsenceNotFound:  "Absence not found for this company",
	ErrCodeTaskNotFound:     "Optimization task not found for this company",
	ErrCodeDriverNotFound:   "Driver not found for this company",
	ErrCodeVehicleNotFound:  "Vehicle not found for this company",

	ErrCodeInvalidTransition:          "The route cannot make this transition from its current status",
	ErrCodeStopsNotMutable:            "Stops cannot be changed while the route is in its current status",
	ErrCodeCannotExecuteCancelledStop: "A cancelled stop cannot be executed",
	ErrCodeStopAlreadyExecuted:        "The stop has already been executed",
	ErrCodeStopImmutable:              "Executed or cancelled stops cannot be modified",
	ErrCodeSeriesNotActive:            "The series is not active",
	ErrCodeTaskNotReady:               "The optimization task has no completed result yet",

	ErrCodeInvalidDateRange:       "The end date is before the start date",
	ErrCodeInvalidTimeOfDay:       "Time of day must be formatted as HH:MM",
	ErrCodeReorderSetMismatch:     "The supplied stops do not match the route's active stops",
	ErrCodeStopRouteMismatch:      "The stop does not belong to this route",
	ErrCodeScheduleAlreadyOnRoute: "The schedule already has stops on this route",
	ErrCodeDriverUnavailable:      "The driver is not available on this date",
	ErrCodeDriverRequired:         "A driver is required",
	ErrCodeInvalidStopOrder:       "Stop order must be a positive integer",
	ErrCodeInvalidOutcome:         "Unknown stop outcome",
	ErrCodeInvalidInterval:        "Recurrence interval must be at least one week",
	ErrCodeInvalidPairing:         "Every schedule needs one pickup followed by one dropoff",
	ErrCodeVehicleRequired:        "A vehicle is required",
	ErrCodeInvalidProviderResult:  "The optimization result could not be decoded",

	ErrCodeMissingCompany: "X-Company-Id header is required",
	ErrCodeInvalidBody:    "The request body could not be parsed",
	ErrCodeUnknownJob:     "No job is registered under this name",
	ErrCodeRateLimited:    "Too many requests",
	ErrCodeInternal:       "An unexpected error occurred",
}

// GetRouteErrorMessage returns the human-readable message for a route error code
func GetRouteErrorMessage(code string) string {
	if msg, ok := RouteErrorMessages[code]; ok {
		return msg
	}
	return "Unknown error"
}
