package repositories

import (
	"context"
	"errors"
	"fmt"

	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/models"
	gormModels "caretransport/dispatch/internal/models/gorm"

	gormlib "gorm.io/gorm"
)

// RouteSeriesRepo handles route_series table operations
type RouteSeriesRepo struct {
	db *gormlib.DB
}

// NewRouteSeriesRepo creates a new route series repository
func NewRouteSeriesRepo(db *gormlib.DB) *RouteSeriesRepo {
	return &RouteSeriesRepo{db: db}
}

func (r *RouteSeriesRepo) Create(ctx context.Context, series *gormModels.RouteSeries) error {
	if err := r.db.WithContext(ctx).Create(series).Error; err != nil {
		return fmt.Errorf("failed to create series: %w", err)
	}
	return nil
}

func (r *RouteSeriesRepo) Save(ctx context.Context, series *gormModels.RouteSeries) error {
	if err := r.db.WithContext(ctx).Save(series).Error; err != nil {
		return fmt.Errorf("failed to save series %s: %w", series.ID, err)
	}
	return nil
}

// GetByID returns nil, nil when the series does not exist in the company
func (r *RouteSeriesRepo) GetByID(ctx context.Context, companyID models.CompanyID, id models.SeriesID) (*gormModels.RouteSeries, error) {
	var series gormModels.RouteSeries

	err := r.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		First(&series).Error

	if err != nil {
		if errors.Is(err, gormlib.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch series: %w", err)
	}
	return &series, nil
}

// ListByStatus returns the company's series in status
func (r *RouteSeriesRepo) ListByStatus(ctx context.Context, companyID models.CompanyID, status constants.SeriesStatus) ([]gormModels.RouteSeries, error) {
	var series []gormModels.RouteSeries

	err := r.db.WithContext(ctx).
		Where("company_id = ? AND status = ?", companyID, status).
		Order("name ASC").
		Find(&series).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list series: %w", err)
	}
	return series, nil
}

// GetByIDs loads several series of one company at once
func (r *RouteSeriesRepo) GetByIDs(ctx context.Context, companyID models.CompanyID, ids []models.SeriesID) ([]gormModels.RouteSeries, error) {
	var series []gormModels.RouteSeries
	if len(ids) == 0 {
		return series, nil
	}

	err := r.db.WithContext(ctx).
		Where("company_id = ? AND id IN ?", companyID, ids).
		Find(&series).Error

	if err != nil {
		return nil, fmt.Errorf("failed to fetch series: %w", err)
	}
	return series, nil
}

// ListByDetachedAbsence returns series whose driver was detached because of absenceID
func (r *RouteSeriesRepo) ListByDetachedAbsence(ctx context.Context, companyID models.CompanyID, absenceID models.AbsenceID) ([]gormModels.RouteSeries, error) {
	var series []gormModels.RouteSeries

	err := r.db.WithContext(ctx).
		Where("company_id = ? AND detached_by_absence_id = ?", companyID, absenceID).
		Find(&series).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list series for absence %s: %w", absenceID, err)
	}
	return series, nil
}

// SeriesMembershipRepo handles route_series_schedules table operations
type SeriesMembershipRepo struct {
	db *gormlib.DB
}

// NewSeriesMembershipRepo creates a new series membership repository
func NewSeriesMembershipRepo(db *gormlib.DB) *SeriesMembershipRepo {
	return &SeriesMembershipRepo{db: db}
}

func (r *SeriesMembershipRepo) Create(ctx context.Context, m *gormModels.RouteSeriesSchedule) error {
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to create series membership: %w", err)
	}
	return nil
}

func (r *SeriesMembershipRepo) Save(ctx context.Context, m *gormModels.RouteSeriesSchedule) error {
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return fmt.Errorf("failed to save series membership %s: %w", m.ID, err)
	}
	return nil
}

// Delete removes a membership window that no longer covers any day
func (r *SeriesMembershipRepo) Delete(ctx context.Context, m *gormModels.RouteSeriesSchedule) error {
	if err := r.db.WithContext(ctx).Delete(m).Error; err != nil {
		return fmt.Errorf("failed to delete series membership %s: %w", m.ID, err)
	}
	return nil
}

// ListBySeries returns every membership window of a series, oldest first
func (r *SeriesMembershipRepo) ListBySeries(ctx context.Context, seriesID models.SeriesID) ([]gormModels.RouteSeriesSchedule, error) {
	var members []gormModels.RouteSeriesSchedule

	err := r.db.WithContext(ctx).
		Where("series_id = ?", seriesID).
		Order("valid_from ASC, created_at ASC").
		Find(&members).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list memberships of series %s: %w", seriesID, err)
	}
	return members, nil
}

// ListBySchedule returns the membership windows of one schedule in a series
func (r *SeriesMembershipRepo) ListBySchedule(ctx context.Context, seriesID models.SeriesID, scheduleID models.ScheduleID) ([]gormModels.RouteSeriesSchedule, error) {
	var members []gormModels.RouteSeriesSchedule

	err := r.db.WithContext(ctx).
		Where("series_id = ? AND schedule_id = ?", seriesID, scheduleID).
		Order("valid_from ASC").
		Find(&members).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list memberships of schedule %s: %w", scheduleID, err)
	}
	return members, nil
}

// DriverAssignmentRepo handles the append-only route_driver_assignments table
type DriverAssignmentRepo struct {
	db *gormlib.DB
}

// NewDriverAssignmentRepo creates a new driver assignment repository
func NewDriverAssignmentRepo(db *gormlib.DB) *DriverAssignmentRepo {
	return &DriverAssignmentRepo{db: db}
}

func (r *DriverAssignmentRepo) Create(ctx context.Context, a *gormModels.RouteDriverAssignment) error {
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("failed to record driver assignment: %w", err)
	}
	return nil
}

// ListByRoute returns the driver history of a route, oldest first
func (r *DriverAssignmentRepo) ListByRoute(ctx context.Context, routeID models.RouteID) ([]gormModels.RouteDriverAssignment, error) {
	var rows []gormModels.RouteDriverAssignment

	err := r.db.WithContext(ctx).
		Where("route_id = ?", routeID).
		Order("created_at ASC").
		Find(&rows).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list assignments of route %s: %w", routeID, err)
	}
	return rows, nil
}

// ListBySeries returns the series-level driver history, oldest first
func (r *DriverAssignmentRepo) ListBySeries(ctx context.Context, seriesID models.SeriesID) ([]gormModels.RouteDriverAssignment, error) {
	var rows []gormModels.RouteDriverAssignment

	err := r.db.WithContext(ctx).
		Where("series_id = ?", seriesID).
		Order("created_at ASC").
		Find(&rows).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list assignments of series %s: %w", seriesID, err)
	}
	return rows, nil
}
