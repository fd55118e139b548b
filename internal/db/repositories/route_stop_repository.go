package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"caretransport/dispatch/internal/models"
	gormModels "caretransport/dispatch/internal/models/gorm"

	gormlib "gorm.io/gorm"
)

// RouteStopRepo handles route_stops table operations
type RouteStopRepo struct {
	db *gormlib.DB
}

// NewRouteStopRepo creates a new route stop repository
func NewRouteStopRepo(db *gormlib.DB) *RouteStopRepo {
	return &RouteStopRepo{db: db}
}

// CreateBatch inserts stops in one statement
func (r *RouteStopRepo) CreateBatch(ctx context.Context, stops []*gormModels.RouteStop) error {
	if len(stops) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(stops).Error; err != nil {
		return fmt.Errorf("failed to create stops: %w", err)
	}
	return nil
}

// Save writes every column of stop
func (r *RouteStopRepo) Save(ctx context.Context, stop *gormModels.RouteStop) error {
	if err := r.db.WithContext(ctx).Save(stop).Error; err != nil {
		return fmt.Errorf("failed to save stop %s: %w", stop.ID, err)
	}
	return nil
}

// GetByID returns nil, nil when the stop does not exist in the company
func (r *RouteStopRepo) GetByID(ctx context.Context, companyID models.CompanyID, id models.StopID) (*gormModels.RouteStop, error) {
	var stop gormModels.RouteStop

	err := r.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		First(&stop).Error

	if err != nil {
		if errors.Is(err, gormlib.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch stop: %w", err)
	}
	return &stop, nil
}

// ListByRoute returns every stop of a route, cancelled ones included, by order
func (r *RouteStopRepo) ListByRoute(ctx context.Context, routeID models.RouteID) ([]*gormModels.RouteStop, error) {
	var stops []*gormModels.RouteStop

	err := r.db.WithContext(ctx).
		Where("route_id = ?", routeID).
		Order("stop_order ASC, created_at ASC, id ASC").
		Find(&stops).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list stops for route %s: %w", routeID, err)
	}
	return stops, nil
}

// ListByRouteAndSchedule returns the stops of one (child, schedule) pair on a route
func (r *RouteStopRepo) ListByRouteAndSchedule(ctx context.Context, routeID models.RouteID, scheduleID models.ScheduleID) ([]*gormModels.RouteStop, error) {
	var stops []*gormModels.RouteStop

	err := r.db.WithContext(ctx).
		Where("route_id = ? AND schedule_id = ?", routeID, scheduleID).
		Order("stop_order ASC").
		Find(&stops).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list stops for schedule %s: %w", scheduleID, err)
	}
	return stops, nil
}

// ShiftOrdersFrom moves every active stop with stop_order >= order up by one
// in a single statement
func (r *RouteStopRepo) ShiftOrdersFrom(ctx context.Context, routeID models.RouteID, order int) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&gormModels.RouteStop{}).
		Where("route_id = ? AND is_cancelled = ? AND stop_order >= ?", routeID, false, order).
		UpdateColumn("stop_order", gormlib.Expr("stop_order + ?", 1))

	if res.Error != nil {
		return 0, fmt.Errorf("failed to shift stops on route %s: %w", routeID, res.Error)
	}
	return res.RowsAffected, nil
}

// UpdateOrders persists the stop_order of each stop and nothing else
func (r *RouteStopRepo) UpdateOrders(ctx context.Context, stops []*gormModels.RouteStop) error {
	for _, s := range stops {
		err := r.db.WithContext(ctx).
			Model(&gormModels.RouteStop{}).
			Where("id = ?", s.ID).
			UpdateColumn("stop_order", s.StopOrder).Error
		if err != nil {
			return fmt.Errorf("failed to update order of stop %s: %w", s.ID, err)
		}
	}
	return nil
}

// ListActiveForChild returns the non-cancelled stops of a child on routes
// dated within [from, to], optionally restricted to one schedule
func (r *RouteStopRepo) ListActiveForChild(ctx context.Context, companyID models.CompanyID, childID models.ChildID, scheduleID *models.ScheduleID, from, to time.Time) ([]*gormModels.RouteStop, error) {
	var stops []*gormModels.RouteStop

	q := r.db.WithContext(ctx).
		Select("route_stops.*").
		Joins("JOIN routes ON routes.id = route_stops.route_id").
		Where("route_stops.company_id = ? AND route_stops.child_id = ? AND route_stops.is_cancelled = ?", companyID, childID, false).
		Where("routes.date >= ? AND routes.date <= ?", models.Day(from), models.Day(to))
	if scheduleID != nil {
		q = q.Where("route_stops.schedule_id = ?", *scheduleID)
	}

	if err := q.Order("routes.date ASC, route_stops.stop_order ASC").Find(&stops).Error; err != nil {
		return nil, fmt.Errorf("failed to list stops for child %s: %w", childID, err)
	}
	return stops, nil
}

// ListByCancelledAbsence returns stops cancelled because of absenceID
func (r *RouteStopRepo) ListByCancelledAbsence(ctx context.Context, companyID models.CompanyID, absenceID models.AbsenceID) ([]*gormModels.RouteStop, error) {
	var stops []*gormModels.RouteStop

	err := r.db.WithContext(ctx).
		Where("company_id = ? AND cancelled_by_absence_id = ?", companyID, absenceID).
		Order("route_id ASC, stop_order ASC").
		Find(&stops).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list stops for absence %s: %w", absenceID, err)
	}
	return stops, nil
}

// CountActiveByRoutes returns the number of non-cancelled stops per route
func (r *RouteStopRepo) CountActiveByRoutes(ctx context.Context, routeIDs []models.RouteID) (map[models.RouteID]int64, error) {
	out := make(map[models.RouteID]int64, len(routeIDs))
	if len(routeIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		RouteID models.RouteID
		Count   int64
	}
	err := r.db.WithContext(ctx).
		Model(&gormModels.RouteStop{}).
		Select("route_id, COUNT(*) AS count").
		Where("route_id IN ? AND is_cancelled = ?", routeIDs, false).
		Group("route_id").
		Scan(&rows).Error

	if err != nil {
		return nil, fmt.Errorf("failed to count stops: %w", err)
	}
	for _, row := range rows {
		out[row.RouteID] = row.Count
	}
	return out, nil
}

// DeleteByIDs hard deletes stops. Used when a schedule is removed from a
// route rather than cancelled on it.
func (r *RouteStopRepo) DeleteByIDs(ctx context.Context, ids []models.StopID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&gormModels.RouteStop{})

	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete stops: %w", res.Error)
	}
	return res.RowsAffected, nil
}
