package jobs

import (
	"context"
	"time"

	"caretransport/dispatch/internal/clock"
	"caretransport/dispatch/internal/common"
	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/db/repositories"
	"caretransport/dispatch/internal/logging"
	"caretransport/dispatch/internal/metrics"
	"caretransport/dispatch/internal/models"
)

const OutboxCleanupJobName = "outbox_cleanup"

// OutboxCleanupJob drops relayed outbox rows past retention and trims the
// route event stream
type OutboxCleanupJob struct {
	store     *repositories.Store
	queue     *common.RedisQueueService
	metrics   *metrics.MetricsRegistry
	clock     clock.Clock
	retention time.Duration
	maxLen    int64
}

// NewOutboxCleanupJob creates a cleanup job. queue may be nil when no event
// stream is configured.
func NewOutboxCleanupJob(store *repositories.Store, queue *common.RedisQueueService, m *metrics.MetricsRegistry, clk clock.Clock, retention time.Duration, maxLen int64) *OutboxCleanupJob {
	return &OutboxCleanupJob{store: store, queue: queue, metrics: m, clock: clk, retention: retention, maxLen: maxLen}
}

func (j *OutboxCleanupJob) Name() string { return OutboxCleanupJobName }

func (j *OutboxCleanupJob) Run(ctx context.Context) ([]TenantResult, error) {
	results, err := runPerTenant(ctx, j.Name(), j.store, j.metrics, j.clock, j.CleanupCompany)
	if err != nil {
		return results, err
	}
	if j.queue != nil && j.maxLen > 0 {
		if err := j.queue.TrimStream(ctx, constants.RouteEventsStream, j.maxLen); err != nil {
			logging.Warn("Failed to trim route event stream", "job", j.Name(), "error", err)
		}
	}
	return results, nil
}

// CleanupCompany returns the number of rows deleted
func (j *OutboxCleanupJob) CleanupCompany(ctx context.Context, companyID models.CompanyID) (int, int, error) {
	deleted, err := j.store.Outbox.DeletePublishedBefore(ctx, companyID, j.clock.Now().Add(-j.retention))
	if err != nil {
		return 0, 0, err
	}
	return int(deleted), 0, nil
}
