package api

import (
	"caretransport/dispatch/internal/clock"
	"caretransport/dispatch/internal/common"
	"caretransport/dispatch/internal/config"
	"caretransport/dispatch/internal/db/repositories"
	"caretransport/dispatch/internal/jobs"
	"caretransport/dispatch/internal/metrics"
	"caretransport/dispatch/internal/providers"
	"caretransport/dispatch/internal/routing"
	"caretransport/dispatch/internal/services"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Repositories struct {
	Store     *repositories.Store
	Summaries *repositories.RouteSummaryRepo
}

type Services struct {
	Cache        common.CacheInterface
	Queue        *common.RedisQueueService
	Availability *services.AbsenceAvailabilityChecker
	Routes       *services.RouteService
	Stops        *services.RouteStopService
	Sync         *services.AbsenceSyncService
	Series       *services.RouteSeriesService
	Optimization *services.OptimizationService
}

type Dependencies struct {
	Config   *config.Config
	Repo     *Repositories
	Services *Services
	Jobs     *jobs.Runner
	Metrics  *metrics.MetricsRegistry
	Clock    clock.Clock
	SQL      *sqlx.DB
	Redis    *redis.Client
}

// Infra is what InitDependencies builds on. Redis and Optimizer may be nil.
type Infra struct {
	Config    *config.Config
	DB        *gorm.DB
	SQL       *sqlx.DB
	Redis     *redis.Client
	Metrics   *metrics.MetricsRegistry
	Clock     clock.Clock
	Optimizer providers.OptimizationProvider
}

// InitDependencies wires repositories, services and jobs
func InitDependencies(in Infra) (*Dependencies, error) {
	cfg := in.Config
	clk := in.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}

	repos := &Repositories{Store: repositories.NewStore(in.DB)}
	if in.SQL != nil {
		repos.Summaries = repositories.NewRouteSummaryRepo(in.SQL)
	}

	cache := common.NewCache(cfg, in.Redis)
	var queue *common.RedisQueueService
	if in.Redis != nil {
		queue = common.NewRedisQueueService(in.Redis)
	}

	optimizer := in.Optimizer
	if optimizer == nil {
		optimizer = providers.NewHTTPOptimizationProvider(cfg.OptimizerBaseURL, cfg.OptimizerAPIKey, cfg.OptimizerRPS, cfg.OptimizerBurst, cfg.OptimizerTimeout)
	}

	policy := routing.OrderPolicy{Spacing: cfg.OrderSpacing, MinGap: cfg.MinOrderGap}
	availability := services.NewAbsenceAvailabilityChecker(repos.Store.Absences, cache, cfg.AvailabilityCacheTTL, in.Metrics)
	routeSvc := services.NewRouteService(repos.Store, repos.Summaries, availability, in.Metrics, clk, policy)
	stopSvc := services.NewRouteStopService(repos.Store, in.Metrics, clk, policy, cfg.ExecutionTolerance)
	seriesSvc := services.NewRouteSeriesService(repos.Store, routeSvc, stopSvc, availability, in.Metrics, clk)

	svcs := &Services{
		Cache:        cache,
		Queue:        queue,
		Availability: availability,
		Routes:       routeSvc,
		Stops:        stopSvc,
		Sync:         services.NewAbsenceSyncService(repos.Store, stopSvc, availability, in.Metrics),
		Series:       seriesSvc,
		Optimization: services.NewOptimizationService(repos.Store, routeSvc, optimizer, availability, in.Metrics, clk),
	}

	runner := jobs.NewRunner(
		jobs.Scheduled{Job: jobs.NewRebalanceJob(repos.Store, stopSvc, in.Metrics, clk), Interval: cfg.RebalanceInterval},
		jobs.Scheduled{Job: jobs.NewDelayDetectionJob(repos.Store, cache, in.Metrics, clk, cfg.DelayThreshold), Interval: cfg.DelayDetectionInterval},
		jobs.Scheduled{Job: jobs.NewMaterializationJob(repos.Store, seriesSvc, in.Metrics, clk, cfg.MaterializeHorizon), Interval: cfg.MaterializationInterval},
		jobs.Scheduled{Job: jobs.NewOutboxCleanupJob(repos.Store, queue, in.Metrics, clk, cfg.OutboxRetention, cfg.StreamMaxLen), Interval: cfg.OutboxCleanupInterval},
	)

	return &Dependencies{
		Config:   cfg,
		Repo:     repos,
		Services: svcs,
		Jobs:     runner,
		Metrics:  in.Metrics,
		Clock:    clk,
		SQL:      in.SQL,
		Redis:    in.Redis,
	}, nil
}
