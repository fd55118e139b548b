package services

import (
	"context"
	"fmt"

	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/db/repositories"
	"caretransport/dispatch/internal/events"
	"caretransport/dispatch/internal/logging"
	"caretransport/dispatch/internal/metrics"
	"caretransport/dispatch/internal/models"
	gormModels "caretransport/dispatch/internal/models/gorm"
	"caretransport/dispatch/internal/routing"
)

// RouteSyncResult reports what an absence cascade did. Failures of single
// routes are collected, never fatal to the whole cascade.
type RouteSyncResult struct {
	RoutesUpdated   int      `json:"routes_updated"`
	RoutesUnchanged int      `json:"routes_unchanged"`
	RoutesFailed    int      `json:"routes_failed"`
	SeriesUpdated   int      `json:"series_updated"`
	StopsCancelled  int      `json:"stops_cancelled"`
	Details         []string `json:"details"`
	Errors          []string `json:"errors"`

	AffectedRouteIDs  []models.RouteID  `json:"affected_route_ids,omitempty"`
	AffectedSeriesIDs []models.SeriesID `json:"affected_series_ids,omitempty"`
	AffectedStopIDs   []models.StopID   `json:"affected_stop_ids,omitempty"`
}

func newSyncResult() *RouteSyncResult {
	return &RouteSyncResult{Details: []string{}, Errors: []string{}}
}

func (r *RouteSyncResult) fail(companyID models.CompanyID, routeID models.RouteID, err error) {
	r.RoutesFailed++
	r.Errors = append(r.Errors, fmt.Sprintf("route %s: %v", routeID, err))
	logging.Error("Absence sync failed for route", "company_id", companyID, "route_id", routeID, "error", err)
}

// AbsenceSyncService keeps routes consistent with driver and child absences.
// It never restores anything when an absence is cancelled; it reports what the
// absence had touched so dispatchers can act.
type AbsenceSyncService struct {
	store        *repositories.Store
	stops        *RouteStopService
	availability DriverAvailabilityChecker
	metrics      *metrics.MetricsRegistry
}

// NewAbsenceSyncService creates a new absence sync service
func NewAbsenceSyncService(store *repositories.Store, stops *RouteStopService, availability DriverAvailabilityChecker, m *metrics.MetricsRegistry) *AbsenceSyncService {
	return &AbsenceSyncService{store: store, stops: stops, availability: availability, metrics: m}
}

func (s *AbsenceSyncService) loadDriverAbsence(ctx context.Context, companyID models.CompanyID, id models.AbsenceID) (*gormModels.DriverAbsence, error) {
	absence, err := s.store.Absences.GetDriverAbsence(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if absence == nil {
		return nil, routing.NotFound(constants.ErrCodeAbsenceNotFound, string(id))
	}
	return absence, nil
}

func (s *AbsenceSyncService) loadChildAbsence(ctx context.Context, companyID models.CompanyID, id models.AbsenceID) (*gormModels.ChildAbsence, error) {
	absence, err := s.store.Absences.GetChildAbsence(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if absence == nil {
		return nil, routing.NotFound(constants.ErrCodeAbsenceNotFound, string(id))
	}
	return absence, nil
}

func (s *AbsenceSyncService) invalidate(ctx context.Context, absence *gormModels.DriverAbsence) {
	if inv, ok := s.availability.(availabilityInvalidator); ok {
		inv.Invalidate(ctx, absence.CompanyID, absence.DriverID, absence.StartDate, absence.EndDate)
	}
}

// HandleDriverAbsenceCreated moves the driver's PLANNED routes inside the
// absence window to DRIVER_MISSING, one transaction per route, and detaches
// the driver from active series still pointing at them
func (s *AbsenceSyncService) HandleDriverAbsenceCreated(ctx context.Context, companyID models.CompanyID, absenceID models.AbsenceID) (*RouteSyncResult, error) {
	absence, err := s.loadDriverAbsence(ctx, companyID, absenceID)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, absence)

	result := newSyncResult()
	if absence.Status != constants.AbsenceStatusActive {
		result.Details = append(result.Details, fmt.Sprintf("absence %s is %s, nothing to do", absence.ID, absence.Status))
		return result, nil
	}

	from, to := models.Day(absence.StartDate), models.Day(absence.EndDate)
	driverID := absence.DriverID
	planned, err := s.store.Routes.List(ctx, companyID, repositories.RouteFilter{
		From:     &from,
		To:       &to,
		Statuses: []constants.RouteStatus{constants.RouteStatusPlanned},
		DriverID: &driverID,
	})
	if err != nil {
		return nil, err
	}
	// Routes cleared by an earlier run of this absence
	missing, err := s.store.Routes.ListByDriverMissingAbsence(ctx, companyID, absence.ID)
	if err != nil {
		return nil, err
	}

	reason := absenceReason("driver", absence.ID)
	seriesIDs := map[models.SeriesID]bool{}
	for _, r := range missing {
		result.RoutesUnchanged++
		result.Details = append(result.Details, fmt.Sprintf("route %s on %s already DRIVER_MISSING", r.ID, models.FormatDay(r.Date)))
		if r.SeriesID != nil {
			seriesIDs[*r.SeriesID] = true
		}
	}

	for i := range planned {
		r := planned[i]
		if r.SeriesID != nil {
			seriesIDs[*r.SeriesID] = true
		}
		var changed bool
		err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
			route, err := loadRoute(ctx, tx, companyID, r.ID)
			if err != nil {
				return err
			}
			changed, err = markDriverMissingTx(ctx, tx, route, &absence.ID, "", reason)
			return err
		})
		if err != nil {
			result.fail(companyID, r.ID, err)
			continue
		}
		if !changed {
			result.RoutesUnchanged++
			continue
		}
		result.RoutesUpdated++
		result.AffectedRouteIDs = append(result.AffectedRouteIDs, r.ID)
		result.Details = append(result.Details, fmt.Sprintf("route %s on %s: PLANNED -> DRIVER_MISSING", r.ID, models.FormatDay(r.Date)))
		s.metrics.ObserveTransition(string(constants.RouteStatusPlanned), string(constants.RouteStatusDriverMissing))
	}

	if err := s.detachSeries(ctx, companyID, absence, seriesIDs, result); err != nil {
		return nil, err
	}

	s.metrics.ObserveCascade("driver_absence", "updated", result.RoutesUpdated)
	s.metrics.ObserveCascade("driver_absence", "unchanged", result.RoutesUnchanged)
	s.metrics.ObserveCascade("driver_absence", "failed", result.RoutesFailed)
	logging.Info("Driver absence synced",
		"company_id", companyID,
		"absence_id", absence.ID,
		"routes_updated", result.RoutesUpdated,
		"routes_unchanged", result.RoutesUnchanged,
		"routes_failed", result.RoutesFailed,
		"series_updated", result.SeriesUpdated)
	return result, nil
}

// detachSeries clears the driver of ACTIVE series that still use the absent
// driver
func (s *AbsenceSyncService) detachSeries(ctx context.Context, companyID models.CompanyID, absence *gormModels.DriverAbsence, ids map[models.SeriesID]bool, result *RouteSyncResult) error {
	if len(ids) == 0 {
		return nil
	}
	list := make([]models.SeriesID, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}
	seriesList, err := s.store.Series.GetByIDs(ctx, companyID, list)
	if err != nil {
		return err
	}

	for i := range seriesList {
		series := seriesList[i]
		if series.Status != constants.SeriesStatusActive || series.DriverID == nil || *series.DriverID != absence.DriverID {
			continue
		}
		err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
			previous := series.DriverID
			series.DriverID = nil
			series.DetachedByAbsenceID = &absence.ID
			if err := tx.Series.Save(ctx, &series); err != nil {
				return err
			}
			return recordEvent(ctx, tx, companyID, constants.AggregateSeries, string(series.ID), constants.EventSeriesDriverDetached, events.DriverChanged{
				SeriesID:         series.ID,
				PreviousDriverID: previous,
				AbsenceID:        &absence.ID,
				Reason:           absenceReason("driver", absence.ID),
			})
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("series %s: %v", series.ID, err))
			logging.Error("Failed to detach series driver", "company_id", companyID, "series_id", series.ID, "error", err)
			continue
		}
		result.SeriesUpdated++
		result.AffectedSeriesIDs = append(result.AffectedSeriesIDs, series.ID)
		result.Details = append(result.Details, fmt.Sprintf("series %s: driver detached", series.ID))
	}
	return nil
}

// HandleDriverAbsenceCancelled reports the routes and series the absence had
// cleared. Nothing is restored.
func (s *AbsenceSyncService) HandleDriverAbsenceCancelled(ctx context.Context, companyID models.CompanyID, absenceID models.AbsenceID) (*RouteSyncResult, error) {
	absence, err := s.loadDriverAbsence(ctx, companyID, absenceID)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, absence)

	routes, err := s.store.Routes.ListByDriverMissingAbsence(ctx, companyID, absenceID)
	if err != nil {
		return nil, err
	}
	series, err := s.store.Series.ListByDetachedAbsence(ctx, companyID, absenceID)
	if err != nil {
		return nil, err
	}

	result := newSyncResult()
	for _, r := range routes {
		result.RoutesUnchanged++
		result.AffectedRouteIDs = append(result.AffectedRouteIDs, r.ID)
		result.Details = append(result.Details, fmt.Sprintf("route %s on %s needs a driver (%s)", r.ID, models.FormatDay(r.Date), r.Status))
	}
	for _, sr := range series {
		result.AffectedSeriesIDs = append(result.AffectedSeriesIDs, sr.ID)
		result.Details = append(result.Details, fmt.Sprintf("series %s needs a driver", sr.ID))
	}
	logging.Info("Driver absence cancelled",
		"company_id", companyID,
		"absence_id", absenceID,
		"routes", len(routes),
		"series", len(series))
	return result, nil
}

// HandleChildAbsenceCreated cancels the child's active stops inside the
// absence window, one transaction per route. FULL_DAY covers every schedule.
func (s *AbsenceSyncService) HandleChildAbsenceCreated(ctx context.Context, companyID models.CompanyID, absenceID models.AbsenceID) (*RouteSyncResult, error) {
	absence, err := s.loadChildAbsence(ctx, companyID, absenceID)
	if err != nil {
		return nil, err
	}
	result := newSyncResult()
	if absence.Status != constants.AbsenceStatusActive {
		result.Details = append(result.Details, fmt.Sprintf("absence %s is %s, nothing to do", absence.ID, absence.Status))
		return result, nil
	}

	var scheduleID *models.ScheduleID
	if absence.Type == constants.ChildAbsenceSpecificSchedule {
		if absence.ScheduleID == nil {
			return nil, routing.Validation(constants.ErrCodeScheduleNotFound, "specific schedule absence without schedule")
		}
		scheduleID = absence.ScheduleID
	}
	stops, err := s.store.Stops.ListActiveForChild(ctx, companyID, absence.ChildID, scheduleID, absence.StartDate, absence.EndDate)
	if err != nil {
		return nil, err
	}

	byRoute := map[models.RouteID]map[models.StopID]bool{}
	var order []models.RouteID
	for _, stop := range stops {
		if byRoute[stop.RouteID] == nil {
			byRoute[stop.RouteID] = map[models.StopID]bool{}
			order = append(order, stop.RouteID)
		}
		byRoute[stop.RouteID][stop.ID] = true
	}

	reason := absenceReason("child", absence.ID)
	for _, routeID := range order {
		wanted := byRoute[routeID]
		var cancelled []*gormModels.RouteStop
		err := s.store.Transaction(ctx, func(tx *repositories.Store) error {
			route, err := loadRoute(ctx, tx, companyID, routeID)
			if err != nil {
				return err
			}
			if routing.EnsureStopCancellable(route) != nil {
				return nil
			}
			all, err := tx.Stops.ListByRoute(ctx, route.ID)
			if err != nil {
				return err
			}
			var targets []*gormModels.RouteStop
			for _, stop := range all {
				if wanted[stop.ID] {
					targets = append(targets, stop)
				}
			}
			cancelled, err = s.stops.cancelStopsTx(ctx, tx, route, targets, reason, &absence.ID)
			if err != nil || len(cancelled) == 0 {
				return err
			}
			return recordRouteEvent(ctx, tx, route, constants.EventStopCancelled, events.StopsChanged{
				RouteID:   route.ID,
				ChildID:   absence.ChildID,
				StopIDs:   stopIDs(cancelled),
				AbsenceID: &absence.ID,
				Reason:    reason,
			})
		})
		if err != nil {
			result.fail(companyID, routeID, err)
			continue
		}
		if len(cancelled) == 0 {
			result.RoutesUnchanged++
			continue
		}
		result.RoutesUpdated++
		result.StopsCancelled += len(cancelled)
		result.AffectedRouteIDs = append(result.AffectedRouteIDs, routeID)
		result.AffectedStopIDs = append(result.AffectedStopIDs, stopIDs(cancelled)...)
		result.Details = append(result.Details, fmt.Sprintf("route %s: %d stops cancelled", routeID, len(cancelled)))
	}

	s.metrics.ObserveCascade("child_absence", "updated", result.RoutesUpdated)
	s.metrics.ObserveCascade("child_absence", "unchanged", result.RoutesUnchanged)
	s.metrics.ObserveCascade("child_absence", "failed", result.RoutesFailed)
	logging.Info("Child absence synced",
		"company_id", companyID,
		"absence_id", absence.ID,
		"routes_updated", result.RoutesUpdated,
		"stops_cancelled", result.StopsCancelled,
		"routes_failed", result.RoutesFailed)
	return result, nil
}

// HandleChildAbsenceCancelled reports the stops the absence had cancelled.
// Nothing is restored.
func (s *AbsenceSyncService) HandleChildAbsenceCancelled(ctx context.Context, companyID models.CompanyID, absenceID models.AbsenceID) (*RouteSyncResult, error) {
	if _, err := s.loadChildAbsence(ctx, companyID, absenceID); err != nil {
		return nil, err
	}
	stops, err := s.store.Stops.ListByCancelledAbsence(ctx, companyID, absenceID)
	if err != nil {
		return nil, err
	}

	result := newSyncResult()
	routes := map[models.RouteID]bool{}
	for _, stop := range stops {
		result.AffectedStopIDs = append(result.AffectedStopIDs, stop.ID)
		if !routes[stop.RouteID] {
			routes[stop.RouteID] = true
			result.AffectedRouteIDs = append(result.AffectedRouteIDs, stop.RouteID)
		}
	}
	result.RoutesUnchanged = len(routes)
	result.Details = append(result.Details, fmt.Sprintf("%d stops on %d routes were cancelled by absence %s", len(stops), len(routes), absenceID))
	return result, nil
}
