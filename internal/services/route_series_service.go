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

// RouteSeriesService manages recurring route templates and keeps their
// materialized routes in step with template edits
type RouteSeriesService struct {
	store        *repositories.Store
	routes       *RouteService
	stops        *RouteStopService
	availability DriverAvailabilityChecker
	metrics      *metrics.MetricsRegistry
	clock        clock.Clock
}

// NewRouteSeriesService creates a new series service
func NewRouteSeriesService(
	store *repositories.Store,
	routes *RouteService,
	stops *RouteStopService,
	availability DriverAvailabilityChecker,
	m *metrics.MetricsRegistry,
	clk clock.Clock,
) *RouteSeriesService {
	return &RouteSeriesService{
		store:        store,
		routes:       routes,
		stops:        stops,
		availability: availability,
		metrics:      m,
		clock:        clk,
	}
}

// CreateSeriesInput describes a new series
type CreateSeriesInput struct {
	CompanyID     models.CompanyID
	Name          string
	IntervalWeeks int
	StartDate     time.Time
	EndDate       *time.Time
	DriverID      *models.DriverID
	VehicleID     models.VehicleID
	RouteType     constants.RouteType
	ScheduleIDs   []models.ScheduleID
	ActorID       models.UserID
}

// CreateSeries stores the template and one membership per schedule starting
// on the series start date. Routes are created by Materialize.
func (s *RouteSeriesService) CreateSeries(ctx context.Context, in CreateSeriesInput) (*gormModels.RouteSeries, error) {
	if in.IntervalWeeks < 1 {
		return nil, routing.Validation(constants.ErrCodeInvalidInterval, fmt.Sprintf("got %d", in.IntervalWeeks))
	}
	if in.StartDate.IsZero() {
		return nil, routing.Validation(constants.ErrCodeInvalidDateRange, "start date is required")
	}
	if in.EndDate != nil && models.Day(*in.EndDate).Before(models.Day(in.StartDate)) {
		return nil, routing.Validation(constants.ErrCodeInvalidDateRange, "")
	}
	if in.VehicleID == "" {
		return nil, routing.Validation(constants.ErrCodeVehicleRequired, "")
	}
	vehicle, err := s.store.Directory.GetVehicle(ctx, in.CompanyID, in.VehicleID)
	if err != nil {
		return nil, err
	}
	if vehicle == nil {
		return nil, routing.NotFound(constants.ErrCodeVehicleNotFound, string(in.VehicleID))
	}
	if in.DriverID != nil {
		if err := ensureDriver(ctx, s.store, in.CompanyID, *in.DriverID); err != nil {
			return nil, err
		}
	}

	series := &gormModels.RouteSeries{
		CompanyID:     in.CompanyID,
		Name:          in.Name,
		IntervalWeeks: in.IntervalWeeks,
		StartDate:     models.Day(in.StartDate),
		DriverID:      in.DriverID,
		VehicleID:     in.VehicleID,
		RouteType:     in.RouteType,
		Status:        constants.SeriesStatusActive,
	}
	if in.EndDate != nil {
		end := models.Day(*in.EndDate)
		series.EndDate = &end
	}

	err = s.store.Transaction(ctx, func(tx *repositories.Store) error {
		if err := tx.Series.Create(ctx, series); err != nil {
			return err
		}
		for _, id := range in.ScheduleIDs {
			schedule, err := loadSchedule(ctx, tx, in.CompanyID, id)
			if err != nil {
				return err
			}
			err = tx.Memberships.Create(ctx, &gormModels.RouteSeriesSchedule{
				CompanyID:  in.CompanyID,
				SeriesID:   series.ID,
				ScheduleID: schedule.ID,
				ChildID:    schedule.ChildID,
				ValidFrom:  series.StartDate,
			})
			if err != nil {
				return err
			}
		}
		return recordEvent(ctx, tx, in.CompanyID, constants.AggregateSeries, string(series.ID), constants.EventSeriesCreated, events.SeriesChanged{
			SeriesID:      series.ID,
			EffectiveFrom: models.FormatDay(series.StartDate),
		})
	})
	if err != nil {
		return nil, err
	}
	return series, nil
}

func (s *RouteSeriesService) loadOpenSeries(ctx context.Context, companyID models.CompanyID, seriesID models.SeriesID) (*gormModels.RouteSeries, error) {
	series, err := loadSeries(ctx, s.store, companyID, seriesID)
	if err != nil {
		return nil, err
	}
	if series.Status == constants.SeriesStatusCancelled {
		return nil, routing.InvalidState(constants.ErrCodeSeriesNotActive, string(series.ID))
	}
	return series, nil
}

// plannedRoutesFrom lists the materialized routes of a series on or after day
func (s *RouteSeriesService) plannedRoutesFrom(ctx context.Context, series *gormModels.RouteSeries, day time.Time, statuses ...constants.RouteStatus) ([]gormModels.Route, error) {
	from := models.Day(day)
	seriesID := series.ID
	return s.store.Routes.List(ctx, series.CompanyID, repositories.RouteFilter{
		From:     &from,
		Statuses: statuses,
		SeriesID: &seriesID,
	})
}

// AddChild starts or extends the schedule's membership from effectiveFrom
// and adds its pair to every PLANNED occurrence already materialized. Routes
// that already carry the schedule are left alone. DRIVER_MISSING occurrences
// get the pair once a driver is assigned (restoreSeriesMembersTx).
func (s *RouteSeriesService) AddChild(ctx context.Context, companyID models.CompanyID, seriesID models.SeriesID, scheduleID models.ScheduleID, effectiveFrom time.Time, actorID models.UserID) (*RouteSyncResult, error) {
	series, err := s.loadOpenSeries(ctx, companyID, seriesID)
	if err != nil {
		return nil, err
	}
	schedule, err := loadSchedule(ctx, s.store, companyID, scheduleID)
	if err != nil {
		return nil, err
	}
	effectiveFrom = models.Day(effectiveFrom)

	err = s.store.Transaction(ctx, func(tx *repositories.Store) error {
		if err := extendMembership(ctx, tx, series, schedule, effectiveFrom); err != nil {
			return err
		}
		return recordEvent(ctx, tx, companyID, constants.AggregateSeries, string(series.ID), constants.EventSeriesChildAdded, events.SeriesChanged{
			SeriesID:      series.ID,
			ScheduleID:    schedule.ID,
			EffectiveFrom: models.FormatDay(effectiveFrom),
		})
	})
	if err != nil {
		return nil, err
	}

	routes, err := s.plannedRoutesFrom(ctx, series, effectiveFrom,
		constants.RouteStatusPlanned, constants.RouteStatusDriverMissing)
	if err != nil {
		return nil, err
	}
	result := newSyncResult()
	for _, r := range routes {
		if r.Status == constants.RouteStatusDriverMissing {
			result.RoutesUnchanged++
			result.Details = append(result.Details, fmt.Sprintf("route %s on %s waits for a driver, pair added on assignment", r.ID, models.FormatDay(r.Date)))
			continue
		}
		var added []*gormModels.RouteStop
		err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
			route, err := loadRoute(ctx, tx, companyID, r.ID)
			if err != nil {
				return err
			}
			existing, err := tx.Stops.ListByRouteAndSchedule(ctx, route.ID, schedule.ID)
			if err != nil || len(existing) > 0 {
				return err
			}
			if added, err = addSchedulePairTx(ctx, tx, route, schedule, pairPlacement{}); err != nil {
				return err
			}
			return recordRouteEvent(ctx, tx, route, constants.EventScheduleAddedToRoute, events.StopsChanged{
				RouteID:    route.ID,
				ScheduleID: schedule.ID,
				ChildID:    schedule.ChildID,
				StopIDs:    stopIDs(added),
				Reason:     "series " + string(series.ID),
			})
		})
		if err != nil {
			result.fail(companyID, r.ID, err)
			continue
		}
		if len(added) == 0 {
			result.RoutesUnchanged++
			continue
		}
		result.RoutesUpdated++
		result.AffectedRouteIDs = append(result.AffectedRouteIDs, r.ID)
	}
	s.metrics.ObserveCascade("series_add_child", "updated", result.RoutesUpdated)
	s.metrics.ObserveCascade("series_add_child", "failed", result.RoutesFailed)
	return result, nil
}

// extendMembership makes the schedule a member of the series from
// effectiveFrom onward. Every window that overlaps or touches
// [effectiveFrom, open) is folded into a single open window.
func extendMembership(ctx context.Context, tx *repositories.Store, series *gormModels.RouteSeries, schedule *gormModels.ChildSchedule, effectiveFrom time.Time) error {
	windows, err := tx.Memberships.ListBySchedule(ctx, series.ID, schedule.ID)
	if err != nil {
		return err
	}
	dayBefore := effectiveFrom.AddDate(0, 0, -1)

	var kept *gormModels.RouteSeriesSchedule
	for i := range windows {
		w := &windows[i]
		if w.ValidTo != nil && models.Day(*w.ValidTo).Before(dayBefore) {
			continue
		}
		if kept == nil {
			kept = w
			continue
		}
		if err := tx.Memberships.Delete(ctx, w); err != nil {
			return err
		}
	}

	if kept == nil {
		return tx.Memberships.Create(ctx, &gormModels.RouteSeriesSchedule{
			CompanyID:  series.CompanyID,
			SeriesID:   series.ID,
			ScheduleID: schedule.ID,
			ChildID:    schedule.ChildID,
			ValidFrom:  effectiveFrom,
		})
	}
	if kept.ValidTo == nil && !models.Day(kept.ValidFrom).After(effectiveFrom) {
		return nil
	}
	if models.Day(kept.ValidFrom).After(effectiveFrom) {
		kept.ValidFrom = effectiveFrom
	}
	kept.ValidTo = nil
	return tx.Memberships.Save(ctx, kept)
}

// RemoveChild ends the schedule's membership the day before effectiveFrom,
// cancels its pair on PLANNED and DRIVER_MISSING occurrences from then on
// and renumbers the remaining stops
func (s *RouteSeriesService) RemoveChild(ctx context.Context, companyID models.CompanyID, seriesID models.SeriesID, scheduleID models.ScheduleID, effectiveFrom time.Time, actorID models.UserID) (*RouteSyncResult, error) {
	series, err := s.loadOpenSeries(ctx, companyID, seriesID)
	if err != nil {
		return nil, err
	}
	effectiveFrom = models.Day(effectiveFrom)
	validTo := effectiveFrom.AddDate(0, 0, -1)

	err = s.store.Transaction(ctx, func(tx *repositories.Store) error {
		windows, err := tx.Memberships.ListBySchedule(ctx, series.ID, scheduleID)
		if err != nil {
			return err
		}
		if len(windows) == 0 {
			return routing.NotFound(constants.ErrCodeScheduleNotFound, fmt.Sprintf("schedule %s is not a member of series %s", scheduleID, series.ID))
		}
		for i := range windows {
			w := &windows[i]
			if w.ValidTo != nil && models.Day(*w.ValidTo).Before(effectiveFrom) {
				continue
			}
			// A window starting on or after effectiveFrom has no days left
			if !models.Day(w.ValidFrom).Before(effectiveFrom) {
				if err := tx.Memberships.Delete(ctx, w); err != nil {
					return err
				}
				continue
			}
			end := validTo
			w.ValidTo = &end
			if err := tx.Memberships.Save(ctx, w); err != nil {
				return err
			}
		}
		return recordEvent(ctx, tx, companyID, constants.AggregateSeries, string(series.ID), constants.EventSeriesChildRemoved, events.SeriesChanged{
			SeriesID:      series.ID,
			ScheduleID:    scheduleID,
			EffectiveFrom: models.FormatDay(effectiveFrom),
		})
	})
	if err != nil {
		return nil, err
	}

	routes, err := s.plannedRoutesFrom(ctx, series, effectiveFrom,
		constants.RouteStatusPlanned, constants.RouteStatusDriverMissing)
	if err != nil {
		return nil, err
	}
	reason := "removed from series " + string(series.ID)
	result := newSyncResult()
	for _, r := range routes {
		var cancelled []*gormModels.RouteStop
		err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
			route, err := loadRoute(ctx, tx, companyID, r.ID)
			if err != nil {
				return err
			}
			if err := routing.EnsureStopCancellable(route); err != nil {
				return err
			}
			pair, err := tx.Stops.ListByRouteAndSchedule(ctx, route.ID, scheduleID)
			if err != nil {
				return err
			}
			cancelled, err = s.stops.cancelStopsTx(ctx, tx, route, pair, reason, nil)
			if err != nil || len(cancelled) == 0 {
				return err
			}
			all, err := tx.Stops.ListByRoute(ctx, route.ID)
			if err != nil {
				return err
			}
			if err := tx.Stops.UpdateOrders(ctx, routing.Renumber(routing.ActiveStops(all))); err != nil {
				return err
			}
			return recordRouteEvent(ctx, tx, route, constants.EventScheduleCancelledOnRoute, events.StopsChanged{
				RouteID:    route.ID,
				ScheduleID: scheduleID,
				ChildID:    cancelled[0].ChildID,
				StopIDs:    stopIDs(cancelled),
				Reason:     reason,
			})
		})
		if err != nil {
			result.fail(companyID, r.ID, err)
			continue
		}
		if len(cancelled) == 0 {
			result.RoutesUnchanged++
			continue
		}
		result.RoutesUpdated++
		result.StopsCancelled += len(cancelled)
		result.AffectedRouteIDs = append(result.AffectedRouteIDs, r.ID)
	}
	s.metrics.ObserveCascade("series_remove_child", "updated", result.RoutesUpdated)
	s.metrics.ObserveCascade("series_remove_child", "failed", result.RoutesFailed)
	return result, nil
}

// restoreSeriesMembersTx adds the pair of every live member schedule whose
// window covers the route's day and which has no stops on the route at all.
// Cancelled stops count as present so child absences stay applied.
func restoreSeriesMembersTx(ctx context.Context, tx *repositories.Store, route *gormModels.Route) ([]*gormModels.RouteStop, error) {
	if route.SeriesID == nil || route.Status != constants.RouteStatusPlanned {
		return nil, nil
	}
	memberships, err := tx.Memberships.ListBySeries(ctx, *route.SeriesID)
	if err != nil {
		return nil, err
	}
	seen := map[models.ScheduleID]bool{}
	var restored []*gormModels.RouteStop
	for _, m := range memberships {
		if seen[m.ScheduleID] || !m.ActiveOn(route.Date) {
			continue
		}
		seen[m.ScheduleID] = true

		existing, err := tx.Stops.ListByRouteAndSchedule(ctx, route.ID, m.ScheduleID)
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			continue
		}
		schedule, err := tx.Directory.GetSchedule(ctx, route.CompanyID, m.ScheduleID)
		if err != nil {
			return nil, err
		}
		if schedule == nil || !schedule.IsActive {
			continue
		}
		added, err := addSchedulePairTx(ctx, tx, route, schedule, pairPlacement{})
		if err != nil {
			return nil, err
		}
		err = recordRouteEvent(ctx, tx, route, constants.EventScheduleAddedToRoute, events.StopsChanged{
			RouteID:    route.ID,
			ScheduleID: schedule.ID,
			ChildID:    schedule.ChildID,
			StopIDs:    stopIDs(added),
			Reason:     "series " + string(*route.SeriesID),
		})
		if err != nil {
			return nil, err
		}
		restored = append(restored, added...)
	}
	return restored, nil
}

// ReassignDriver changes the series driver and every PLANNED or
// DRIVER_MISSING occurrence from effectiveFrom, one transaction per route.
// Dates on which the driver is unavailable are skipped and reported.
func (s *RouteSeriesService) ReassignDriver(ctx context.Context, companyID models.CompanyID, seriesID models.SeriesID, driverID models.DriverID, effectiveFrom time.Time, actorID models.UserID, reason string) (*RouteSyncResult, error) {
	if driverID == "" {
		return nil, routing.Validation(constants.ErrCodeDriverRequired, "")
	}
	series, err := s.loadOpenSeries(ctx, companyID, seriesID)
	if err != nil {
		return nil, err
	}
	if err := ensureDriver(ctx, s.store, companyID, driverID); err != nil {
		return nil, err
	}
	effectiveFrom = models.Day(effectiveFrom)

	routes, err := s.plannedRoutesFrom(ctx, series, effectiveFrom,
		constants.RouteStatusPlanned, constants.RouteStatusDriverMissing)
	if err != nil {
		return nil, err
	}

	result := newSyncResult()
	for _, r := range routes {
		if s.availability != nil {
			availability, err := s.availability.Check(ctx, companyID, driverID, r.Date)
			if err != nil {
				result.fail(companyID, r.ID, err)
				continue
			}
			if !availability.Available {
				result.RoutesUnchanged++
				result.Details = append(result.Details, fmt.Sprintf("route %s on %s skipped: %s", r.ID, models.FormatDay(r.Date), availability.Reason))
				continue
			}
		}

		var changed bool
		var from constants.RouteStatus
		err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
			route, err := loadRoute(ctx, tx, companyID, r.ID)
			if err != nil {
				return err
			}
			from = route.Status
			if from == constants.RouteStatusPlanned && route.DriverID != nil && *route.DriverID == driverID {
				return nil
			}
			if _, err := assignDriverTx(ctx, tx, route, driverID, actorID, reason); err != nil {
				return err
			}
			changed = true
			return nil
		})
		if err != nil {
			result.fail(companyID, r.ID, err)
			continue
		}
		if !changed {
			result.RoutesUnchanged++
			continue
		}
		if from != constants.RouteStatusPlanned {
			s.metrics.ObserveTransition(string(from), string(constants.RouteStatusPlanned))
		}
		result.RoutesUpdated++
		result.AffectedRouteIDs = append(result.AffectedRouteIDs, r.ID)
	}

	err = s.store.Transaction(ctx, func(tx *repositories.Store) error {
		previous := series.DriverID
		series.DriverID = models.DriverPtr(driverID)
		series.DetachedByAbsenceID = nil
		if err := tx.Series.Save(ctx, series); err != nil {
			return err
		}
		return recordEvent(ctx, tx, companyID, constants.AggregateSeries, string(series.ID), constants.EventSeriesDriverReassigned, events.DriverChanged{
			SeriesID:         series.ID,
			PreviousDriverID: previous,
			NewDriverID:      series.DriverID,
			ActorID:          actorID,
			Reason:           reason,
		})
	})
	if err != nil {
		return nil, err
	}
	result.SeriesUpdated = 1
	result.AffectedSeriesIDs = []models.SeriesID{series.ID}

	s.metrics.ObserveCascade("series_reassign_driver", "updated", result.RoutesUpdated)
	s.metrics.ObserveCascade("series_reassign_driver", "skipped", result.RoutesUnchanged)
	s.metrics.ObserveCascade("series_reassign_driver", "failed", result.RoutesFailed)
	logging.Info("Series driver reassigned",
		"company_id", companyID,
		"series_id", series.ID,
		"driver_id", driverID,
		"routes_updated", result.RoutesUpdated,
		"routes_skipped", result.RoutesUnchanged)
	return result, nil
}

// CancelSeries stops the series. With cancelFutureRoutes, every PLANNED or
// DRIVER_MISSING occurrence from today on is cancelled too.
func (s *RouteSeriesService) CancelSeries(ctx context.Context, companyID models.CompanyID, seriesID models.SeriesID, cancelFutureRoutes bool, actorID models.UserID, reason string) (*RouteSyncResult, error) {
	series, err := s.loadOpenSeries(ctx, companyID, seriesID)
	if err != nil {
		return nil, err
	}
	if err := s.setStatus(ctx, series, constants.SeriesStatusCancelled, constants.EventSeriesCancelled, reason); err != nil {
		return nil, err
	}

	result := newSyncResult()
	result.SeriesUpdated = 1
	if !cancelFutureRoutes {
		return result, nil
	}

	routes, err := s.plannedRoutesFrom(ctx, series, clock.Today(s.clock),
		constants.RouteStatusPlanned, constants.RouteStatusDriverMissing)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "series " + string(series.ID) + " cancelled"
	}
	for _, r := range routes {
		if _, err := s.routes.CancelRoute(ctx, companyID, r.ID, reason, actorID); err != nil {
			result.fail(companyID, r.ID, err)
			continue
		}
		result.RoutesUpdated++
		result.AffectedRouteIDs = append(result.AffectedRouteIDs, r.ID)
	}
	s.metrics.ObserveCascade("series_cancel", "updated", result.RoutesUpdated)
	s.metrics.ObserveCascade("series_cancel", "failed", result.RoutesFailed)
	return result, nil
}

// PauseSeries stops materialization of an ACTIVE series
func (s *RouteSeriesService) PauseSeries(ctx context.Context, companyID models.CompanyID, seriesID models.SeriesID) (*gormModels.RouteSeries, error) {
	series, err := loadSeries(ctx, s.store, companyID, seriesID)
	if err != nil {
		return nil, err
	}
	if series.Status != constants.SeriesStatusActive {
		return nil, routing.InvalidState(constants.ErrCodeSeriesNotActive, string(series.Status))
	}
	return series, s.setStatus(ctx, series, constants.SeriesStatusPaused, constants.EventSeriesPaused, "")
}

// ResumeSeries reactivates a PAUSED series
func (s *RouteSeriesService) ResumeSeries(ctx context.Context, companyID models.CompanyID, seriesID models.SeriesID) (*gormModels.RouteSeries, error) {
	series, err := loadSeries(ctx, s.store, companyID, seriesID)
	if err != nil {
		return nil, err
	}
	if series.Status != constants.SeriesStatusPaused {
		return nil, routing.InvalidState(constants.ErrCodeSeriesNotActive, string(series.Status))
	}
	return series, s.setStatus(ctx, series, constants.SeriesStatusActive, constants.EventSeriesResumed, "")
}

func (s *RouteSeriesService) setStatus(ctx context.Context, series *gormModels.RouteSeries, status constants.SeriesStatus, eventType string, reason string) error {
	return s.store.Transaction(ctx, func(tx *repositories.Store) error {
		series.Status = status
		if err := tx.Series.Save(ctx, series); err != nil {
			return err
		}
		return recordEvent(ctx, tx, series.CompanyID, constants.AggregateSeries, string(series.ID), eventType, events.SeriesChanged{
			SeriesID: series.ID,
			Reason:   reason,
		})
	})
}

// Materialize creates one route per occurrence in [from, to] that has none
// yet, carrying the schedules whose membership covers that day. When the
// series driver is unavailable the route starts DRIVER_MISSING.
func (s *RouteSeriesService) Materialize(ctx context.Context, companyID models.CompanyID, seriesID models.SeriesID, from, to time.Time) (*RouteSyncResult, error) {
	series, err := loadSeries(ctx, s.store, companyID, seriesID)
	if err != nil {
		return nil, err
	}
	if series.Status != constants.SeriesStatusActive {
		return nil, routing.InvalidState(constants.ErrCodeSeriesNotActive, string(series.Status))
	}
	if models.Day(to).Before(models.Day(from)) {
		return nil, routing.Validation(constants.ErrCodeInvalidDateRange, "")
	}

	dates := routing.Occurrences(series.StartDate, series.EndDate, series.IntervalWeeks, from, to)
	existing, err := s.store.Routes.SeriesDates(ctx, companyID, series.ID, from, to)
	if err != nil {
		return nil, err
	}
	memberships, err := s.store.Memberships.ListBySeries(ctx, series.ID)
	if err != nil {
		return nil, err
	}
	live := map[models.ScheduleID]bool{}
	for _, m := range memberships {
		if live[m.ScheduleID] {
			continue
		}
		schedule, err := s.store.Directory.GetSchedule(ctx, companyID, m.ScheduleID)
		if err != nil {
			return nil, err
		}
		live[m.ScheduleID] = schedule != nil && schedule.IsActive
	}

	result := newSyncResult()
	for _, day := range dates {
		if existing[models.FormatDay(day)] {
			result.RoutesUnchanged++
			continue
		}

		var scheduleIDs []models.ScheduleID
		picked := map[models.ScheduleID]bool{}
		for _, m := range memberships {
			if picked[m.ScheduleID] || !m.ActiveOn(day) || !live[m.ScheduleID] {
				continue
			}
			picked[m.ScheduleID] = true
			scheduleIDs = append(scheduleIDs, m.ScheduleID)
		}
		driverID := series.DriverID
		if driverID != nil && s.availability != nil {
			availability, err := s.availability.Check(ctx, companyID, *driverID, day)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", models.FormatDay(day), err))
				result.RoutesFailed++
				continue
			}
			if !availability.Available {
				driverID = nil
				result.Details = append(result.Details, fmt.Sprintf("%s: driver unavailable, created without driver", models.FormatDay(day)))
			}
		}

		seriesRef := series.ID
		var detail *RouteDetail
		err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
			var err error
			detail, err = s.routes.createRouteTx(ctx, tx, CreateRouteInput{
				CompanyID:   companyID,
				Date:        day,
				DriverID:    driverID,
				VehicleID:   series.VehicleID,
				Name:        fmt.Sprintf("%s %s", series.Name, models.FormatDay(day)),
				RouteType:   series.RouteType,
				SeriesID:    &seriesRef,
				ScheduleIDs: scheduleIDs,
			})
			return err
		})
		if err != nil {
			result.RoutesFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", models.FormatDay(day), err))
			logging.Error("Failed to materialize series occurrence",
				"company_id", companyID, "series_id", series.ID, "date", models.FormatDay(day), "error", err)
			continue
		}
		result.RoutesUpdated++
		result.AffectedRouteIDs = append(result.AffectedRouteIDs, detail.Route.ID)
	}
	s.metrics.ObserveCascade("materialize", "created", result.RoutesUpdated)
	s.metrics.ObserveCascade("materialize", "failed", result.RoutesFailed)
	return result, nil
}

// MaterializeActive materializes every ACTIVE series of the company over
// [from, to]. Each series is independent.
func (s *RouteSeriesService) MaterializeActive(ctx context.Context, companyID models.CompanyID, from, to time.Time) (*RouteSyncResult, error) {
	seriesList, err := s.store.Series.ListByStatus(ctx, companyID, constants.SeriesStatusActive)
	if err != nil {
		return nil, err
	}
	total := newSyncResult()
	for _, series := range seriesList {
		res, err := s.Materialize(ctx, companyID, series.ID, from, to)
		if err != nil {
			total.Errors = append(total.Errors, fmt.Sprintf("series %s: %v", series.ID, err))
			continue
		}
		total.SeriesUpdated++
		total.RoutesUpdated += res.RoutesUpdated
		total.RoutesUnchanged += res.RoutesUnchanged
		total.RoutesFailed += res.RoutesFailed
		total.AffectedRouteIDs = append(total.AffectedRouteIDs, res.AffectedRouteIDs...)
		total.Errors = append(total.Errors, res.Errors...)
	}
	return total, nil
}
