package jobs

import (
	"context"

	"caretransport/dispatch/internal/clock"
	"caretransport/dispatch/internal/db/repositories"
	"caretransport/dispatch/internal/metrics"
	"caretransport/dispatch/internal/models"
	"caretransport/dispatch/internal/services"
)

const MaterializationJobName = "series_materialization"

// MaterializationJob keeps the routes of every active series created ahead
// of time for the configured horizon
type MaterializationJob struct {
	store   *repositories.Store
	series  *services.RouteSeriesService
	metrics *metrics.MetricsRegistry
	clock   clock.Clock
	horizon int
}

// NewMaterializationJob creates a job materializing horizonDays from today
func NewMaterializationJob(store *repositories.Store, series *services.RouteSeriesService, m *metrics.MetricsRegistry, clk clock.Clock, horizonDays int) *MaterializationJob {
	return &MaterializationJob{store: store, series: series, metrics: m, clock: clk, horizon: horizonDays}
}

func (j *MaterializationJob) Name() string { return MaterializationJobName }

func (j *MaterializationJob) Run(ctx context.Context) ([]TenantResult, error) {
	return runPerTenant(ctx, j.Name(), j.store, j.metrics, j.clock, j.MaterializeCompany)
}

// MaterializeCompany returns the number of routes created
func (j *MaterializationJob) MaterializeCompany(ctx context.Context, companyID models.CompanyID) (int, int, error) {
	from := models.Day(j.clock.Now())
	to := from.AddDate(0, 0, j.horizon-1)

	result, err := j.series.MaterializeActive(ctx, companyID, from, to)
	if err != nil {
		return 0, 0, err
	}
	return result.RoutesUpdated, result.RoutesFailed, nil
}
