package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/models"
	gormModels "caretransport/dispatch/internal/models/gorm"

	gormlib "gorm.io/gorm"
)

// RouteRepo handles routes table operations
type RouteRepo struct {
	db *gormlib.DB
}

// NewRouteRepo creates a new route repository
func NewRouteRepo(db *gormlib.DB) *RouteRepo {
	return &RouteRepo{db: db}
}

// RouteFilter narrows route listings. Zero values are ignored.
type RouteFilter struct {
	From     *time.Time
	To       *time.Time
	Statuses []constants.RouteStatus
	DriverID *models.DriverID
	SeriesID *models.SeriesID
	Limit    int
}

func (r *RouteRepo) Create(ctx context.Context, route *gormModels.Route) error {
	if err := r.db.WithContext(ctx).Create(route).Error; err != nil {
		return fmt.Errorf("failed to create route: %w", err)
	}
	return nil
}

// Save writes every column of route
func (r *RouteRepo) Save(ctx context.Context, route *gormModels.Route) error {
	if err := r.db.WithContext(ctx).Save(route).Error; err != nil {
		return fmt.Errorf("failed to save route %s: %w", route.ID, err)
	}
	return nil
}

// GetByID returns nil, nil when the route does not exist in the company
func (r *RouteRepo) GetByID(ctx context.Context, companyID models.CompanyID, id models.RouteID) (*gormModels.Route, error) {
	var route gormModels.Route

	err := r.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		First(&route).Error

	if err != nil {
		if errors.Is(err, gormlib.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch route: %w", err)
	}
	return &route, nil
}

// List returns the company's routes matching filter ordered by date and name
func (r *RouteRepo) List(ctx context.Context, companyID models.CompanyID, filter RouteFilter) ([]gormModels.Route, error) {
	var routes []gormModels.Route

	q := r.db.WithContext(ctx).Where("company_id = ?", companyID)
	if filter.From != nil {
		q = q.Where("date >= ?", models.Day(*filter.From))
	}
	if filter.To != nil {
		q = q.Where("date <= ?", models.Day(*filter.To))
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if filter.DriverID != nil {
		q = q.Where("driver_id = ?", *filter.DriverID)
	}
	if filter.SeriesID != nil {
		q = q.Where("series_id = ?", *filter.SeriesID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	if err := q.Order("date ASC, name ASC, id ASC").Find(&routes).Error; err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}
	return routes, nil
}

// ListByDriverMissingAbsence returns routes whose driver was cleared because
// of absenceID
func (r *RouteRepo) ListByDriverMissingAbsence(ctx context.Context, companyID models.CompanyID, absenceID models.AbsenceID) ([]gormModels.Route, error) {
	var routes []gormModels.Route

	err := r.db.WithContext(ctx).
		Where("company_id = ? AND driver_missing_absence_id = ?", companyID, absenceID).
		Order("date ASC").
		Find(&routes).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list routes for absence %s: %w", absenceID, err)
	}
	return routes, nil
}

// FindBySeriesAndDate returns the materialized occurrence of a series on day,
// or nil, nil
func (r *RouteRepo) FindBySeriesAndDate(ctx context.Context, companyID models.CompanyID, seriesID models.SeriesID, day time.Time) (*gormModels.Route, error) {
	var route gormModels.Route

	err := r.db.WithContext(ctx).
		Where("company_id = ? AND series_id = ? AND date = ?", companyID, seriesID, models.Day(day)).
		First(&route).Error

	if err != nil {
		if errors.Is(err, gormlib.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch series occurrence: %w", err)
	}
	return &route, nil
}

// SeriesDates returns the dates already materialized for a series in [from, to]
func (r *RouteRepo) SeriesDates(ctx context.Context, companyID models.CompanyID, seriesID models.SeriesID, from, to time.Time) (map[string]bool, error) {
	var dates []time.Time

	err := r.db.WithContext(ctx).
		Model(&gormModels.Route{}).
		Where("company_id = ? AND series_id = ? AND date >= ? AND date <= ?", companyID, seriesID, models.Day(from), models.Day(to)).
		Pluck("date", &dates).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list series dates: %w", err)
	}

	out := make(map[string]bool, len(dates))
	for _, d := range dates {
		out[models.FormatDay(d)] = true
	}
	return out, nil
}

// CountByStatus returns route counts per status for a day
func (r *RouteRepo) CountByStatus(ctx context.Context, companyID models.CompanyID, day time.Time) (map[constants.RouteStatus]int64, error) {
	var rows []struct {
		Status constants.RouteStatus
		Count  int64
	}

	err := r.db.WithContext(ctx).
		Model(&gormModels.Route{}).
		Select("status, COUNT(*) AS count").
		Where("company_id = ? AND date = ?", companyID, models.Day(day)).
		Group("status").
		Scan(&rows).Error

	if err != nil {
		return nil, fmt.Errorf("failed to count routes: %w", err)
	}

	out := make(map[constants.RouteStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}
