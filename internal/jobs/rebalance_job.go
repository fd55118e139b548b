package jobs

import (
	"context"

	"caretransport/dispatch/internal/clock"
	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/db/repositories"
	"caretransport/dispatch/internal/logging"
	"caretransport/dispatch/internal/metrics"
	"caretransport/dispatch/internal/models"
	"caretransport/dispatch/internal/services"
)

const RebalanceJobName = "stop_rebalance"

// RebalanceJob respaces stop orders of upcoming PLANNED routes whose gaps
// have been used up by insertions
type RebalanceJob struct {
	store   *repositories.Store
	stops   *services.RouteStopService
	metrics *metrics.MetricsRegistry
	clock   clock.Clock
}

// NewRebalanceJob creates a new rebalance job instance
func NewRebalanceJob(store *repositories.Store, stops *services.RouteStopService, m *metrics.MetricsRegistry, clk clock.Clock) *RebalanceJob {
	return &RebalanceJob{store: store, stops: stops, metrics: m, clock: clk}
}

func (j *RebalanceJob) Name() string { return RebalanceJobName }

// Run rebalances every company, one transaction per route
func (j *RebalanceJob) Run(ctx context.Context) ([]TenantResult, error) {
	return runPerTenant(ctx, j.Name(), j.store, j.metrics, j.clock, j.RebalanceCompany)
}

// RebalanceCompany returns the number of routes whose stops moved
func (j *RebalanceJob) RebalanceCompany(ctx context.Context, companyID models.CompanyID) (int, int, error) {
	today := models.Day(j.clock.Now())
	routes, err := j.store.Routes.List(ctx, companyID, repositories.RouteFilter{
		From:     &today,
		Statuses: []constants.RouteStatus{constants.RouteStatusPlanned},
	})
	if err != nil {
		return 0, 0, err
	}

	processed, failed := 0, 0
	for _, route := range routes {
		moved, err := j.stops.RebalanceRoute(ctx, companyID, route.ID, true)
		if err != nil {
			failed++
			logging.Error("Failed to rebalance route", "job", j.Name(), "company_id", companyID, "route_id", route.ID, "error", err)
			continue
		}
		if moved > 0 {
			processed++
		}
	}
	return processed, failed, nil
}
