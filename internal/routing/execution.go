package routing

import (
	"time"

	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/models"
	gormModels "caretransport/dispatch/internal/models/gorm"
)

// DefaultExecutionTolerance is how far from the estimate a stop may be
// executed and still count as on time
const DefaultExecutionTolerance = 5 * time.Minute

// Execution describes what happened at a stop
type Execution struct {
	Outcome    constants.StopOutcome
	ActualTime time.Time
	ExecutedBy models.UserID
	Notes      string
}

// ExecuteStop records the outcome of stop on route. It never touches
// stop_order.
func ExecuteStop(route *gormModels.Route, stop *gormModels.RouteStop, in Execution, tolerance time.Duration) error {
	if stop.RouteID != route.ID {
		return Validation(constants.ErrCodeStopRouteMismatch, string(stop.ID))
	}
	if err := EnsureStopsExecutable(route); err != nil {
		return err
	}
	if stop.IsCancelled {
		return ErrCannotExecuteCancelledStop
	}
	if stop.IsExecuted() {
		return ErrStopAlreadyExecuted
	}
	if in.ActualTime.IsZero() {
		return Validation(constants.ErrCodeInvalidOutcome, "actual time is required")
	}
	outcome := in.Outcome
	if outcome == "" {
		outcome = DeriveOutcome(route.Date, stop.EstimatedTime, in.ActualTime, tolerance)
	}
	if !outcome.IsValid() {
		return Validation(constants.ErrCodeInvalidOutcome, string(outcome))
	}

	actual := in.ActualTime
	stop.ActualTime = &actual
	stop.Outcome = &outcome
	if in.ExecutedBy != "" {
		executor := in.ExecutedBy
		stop.ExecutedBy = &executor
	}
	if in.Notes != "" {
		stop.Notes = in.Notes
	}
	return nil
}

// DeriveOutcome compares the actual time with the estimate on the route's day
func DeriveOutcome(day time.Time, estimated models.TimeOfDay, actual time.Time, tolerance time.Duration) constants.StopOutcome {
	planned, err := estimated.On(day)
	if err != nil {
		return constants.StopOutcomeOnTime
	}
	diff := actual.UTC().Sub(planned)
	switch {
	case diff > tolerance:
		return constants.StopOutcomeLate
	case diff < -tolerance:
		return constants.StopOutcomeEarly
	}
	return constants.StopOutcomeOnTime
}

// Delay returns how late the most recently executed stop ran, or false when
// nothing has been executed yet
func Delay(route *gormModels.Route, stops []*gormModels.RouteStop) (time.Duration, *gormModels.RouteStop, bool) {
	var last *gormModels.RouteStop
	for _, s := range stops {
		if s.IsCancelled || !s.IsExecuted() || s.ActualTime == nil {
			continue
		}
		if *s.Outcome == constants.StopOutcomeSkipped || *s.Outcome == constants.StopOutcomeNoShow {
			continue
		}
		if last == nil || s.ActualTime.After(*last.ActualTime) {
			last = s
		}
	}
	if last == nil {
		return 0, nil, false
	}
	planned, err := last.EstimatedTime.On(route.Date)
	if err != nil {
		return 0, nil, false
	}
	return last.ActualTime.UTC().Sub(planned), last, true
}
