package jobs

import (
	"context"
	"time"

	"caretransport/dispatch/internal/clock"
	"caretransport/dispatch/internal/common"
	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/db/repositories"
	"caretransport/dispatch/internal/events"
	"caretransport/dispatch/internal/logging"
	"caretransport/dispatch/internal/metrics"
	"caretransport/dispatch/internal/models"
	gormModels "caretransport/dispatch/internal/models/gorm"
	"caretransport/dispatch/internal/routing"
)

const DelayDetectionJobName = "delay_detection"

// DelayDetectionJob watches today's running routes and predicts arrival
// times for the remaining stops once the last executed stop ran late
type DelayDetectionJob struct {
	store     *repositories.Store
	cache     common.CacheInterface
	metrics   *metrics.MetricsRegistry
	clock     clock.Clock
	threshold time.Duration
}

// NewDelayDetectionJob creates a new delay detection job instance
func NewDelayDetectionJob(store *repositories.Store, cache common.CacheInterface, m *metrics.MetricsRegistry, clk clock.Clock, threshold time.Duration) *DelayDetectionJob {
	return &DelayDetectionJob{store: store, cache: cache, metrics: m, clock: clk, threshold: threshold}
}

func (j *DelayDetectionJob) Name() string { return DelayDetectionJobName }

func (j *DelayDetectionJob) Run(ctx context.Context) ([]TenantResult, error) {
	return runPerTenant(ctx, j.Name(), j.store, j.metrics, j.clock, j.DetectCompany)
}

// DetectCompany returns the number of delay events emitted
func (j *DelayDetectionJob) DetectCompany(ctx context.Context, companyID models.CompanyID) (int, int, error) {
	today := models.Day(j.clock.Now())
	routes, err := j.store.Routes.List(ctx, companyID, repositories.RouteFilter{
		From:     &today,
		To:       &today,
		Statuses: []constants.RouteStatus{constants.RouteStatusInProgress},
	})
	if err != nil {
		return 0, 0, err
	}

	emitted, failed := 0, 0
	for i := range routes {
		ok, err := j.detectRoute(ctx, &routes[i])
		if err != nil {
			failed++
			logging.Error("Failed to predict route delay", "job", j.Name(), "company_id", companyID, "route_id", routes[i].ID, "error", err)
			continue
		}
		if ok {
			emitted++
		}
	}
	return emitted, failed, nil
}

// emittedKey remembers the stop a prediction was last based on, so one late
// stop yields one event
func emittedKey(routeID models.RouteID) string {
	return "delay:" + string(routeID)
}

func (j *DelayDetectionJob) detectRoute(ctx context.Context, route *gormModels.Route) (bool, error) {
	stops, err := j.store.Stops.ListByRoute(ctx, route.ID)
	if err != nil {
		return false, err
	}
	delay, basedOn, ok := routing.Delay(route, stops)
	if !ok || delay <= j.threshold {
		return false, nil
	}
	if last, found := j.cache.Get(ctx, emittedKey(route.ID)); found && last == string(basedOn.ID) {
		return false, nil
	}

	payload := events.DelayPredicted{
		RouteID:      route.ID,
		DelayMinutes: int(delay / time.Minute),
		BasedOnStop:  basedOn.ID,
		Remaining:    []events.PredictedStop{},
	}
	for _, s := range routing.ActiveStops(stops) {
		if s.IsExecuted() {
			continue
		}
		mins, err := s.EstimatedTime.Minutes()
		if err != nil {
			continue
		}
		payload.Remaining = append(payload.Remaining, events.PredictedStop{
			StopID:        s.ID,
			EstimatedTime: s.EstimatedTime,
			PredictedTime: models.TimeOfDayFromMinutes(mins + payload.DelayMinutes),
		})
	}

	event, err := events.New(route.CompanyID, constants.AggregateRoute, string(route.ID), constants.EventRouteDelayPredicted, payload)
	if err != nil {
		return false, err
	}
	if err := j.store.Outbox.Append(ctx, event); err != nil {
		return false, err
	}

	j.cache.Set(ctx, emittedKey(route.ID), string(basedOn.ID), 24*time.Hour)
	j.metrics.ObserveDelay(delay)
	logging.Info("Route delay predicted",
		"job", j.Name(),
		"company_id", route.CompanyID,
		"route_id", route.ID,
		"delay_minutes", payload.DelayMinutes,
		"remaining_stops", len(payload.Remaining))
	return true, nil
}
