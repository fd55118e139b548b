package repositories

import (
	"context"
	"fmt"
	"time"

	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/models"

	"github.com/jmoiron/sqlx"
)

// RouteSummary is one row of the dispatcher's day board
type RouteSummary struct {
	RouteID        string                `db:"id" json:"route_id"`
	Name           string                `db:"name" json:"name"`
	Status         constants.RouteStatus `db:"status" json:"status"`
	DriverID       *string               `db:"driver_id" json:"driver_id,omitempty"`
	VehicleID      string                `db:"vehicle_id" json:"vehicle_id"`
	ActiveStops    int64                 `db:"active_stops" json:"active_stops"`
	ExecutedStops  int64                 `db:"executed_stops" json:"executed_stops"`
	CancelledStops int64                 `db:"cancelled_stops" json:"cancelled_stops"`
}

const routeSummaryQuery = `
SELECT r.id, r.name, r.status, r.driver_id, r.vehicle_id,
       COALESCE(SUM(CASE WHEN s.id IS NOT NULL AND s.is_cancelled = ? THEN 1 ELSE 0 END), 0) AS active_stops,
       COALESCE(SUM(CASE WHEN s.outcome IS NOT NULL THEN 1 ELSE 0 END), 0) AS executed_stops,
       COALESCE(SUM(CASE WHEN s.is_cancelled = ? THEN 1 ELSE 0 END), 0) AS cancelled_stops
FROM routes r
LEFT JOIN route_stops s ON s.route_id = r.id
WHERE r.company_id = ? AND r.date = ?
GROUP BY r.id, r.name, r.status, r.driver_id, r.vehicle_id
ORDER BY r.name ASC, r.id ASC`

// RouteSummaryRepo serves read-only aggregate queries with sqlx
type RouteSummaryRepo struct {
	db *sqlx.DB
}

// NewRouteSummaryRepo creates a new summary repository
func NewRouteSummaryRepo(db *sqlx.DB) *RouteSummaryRepo {
	return &RouteSummaryRepo{db: db}
}

// ForDay returns one summary row per route of the company on day
func (r *RouteSummaryRepo) ForDay(ctx context.Context, companyID models.CompanyID, day time.Time) ([]RouteSummary, error) {
	rows := []RouteSummary{}
	query := r.db.Rebind(routeSummaryQuery)

	if err := r.db.SelectContext(ctx, &rows, query, false, true, string(companyID), models.Day(day)); err != nil {
		return nil, fmt.Errorf("failed to load route summary: %w", err)
	}
	return rows, nil
}

// Ping checks the connection
func (r *RouteSummaryRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
