package workers

import (
	"context"
	"os"
	"time"

	"caretransport/dispatch/internal/clock"
	"caretransport/dispatch/internal/common"
	"caretransport/dispatch/internal/db/repositories"
	"caretransport/dispatch/internal/logging"
	"caretransport/dispatch/internal/metrics"
)

type WorkersContainer struct {
	Relay   *OutboxRelay
	Audit   *AuditConsumer
	Monitor *StreamMonitor
}

// InitWorkers starts the outbox relay, the audit consumer and the stream
// monitor. Without a queue nothing is started and nil is returned; events
// then stay in the outbox until a relay runs.
func InitWorkers(
	ctx context.Context,
	store *repositories.Store,
	queue *common.RedisQueueService,
	m *metrics.MetricsRegistry,
	c clock.Clock,
	relayInterval time.Duration,
	maxLen int64,
) *WorkersContainer {
	if queue == nil {
		logging.Warn("No Redis queue configured, outbox relay and audit consumer disabled")
		return nil
	}

	consumer, err := os.Hostname()
	if err != nil || consumer == "" {
		consumer = "dispatch"
	}

	w := &WorkersContainer{
		Relay:   NewOutboxRelay(store, queue, m, c, maxLen),
		Audit:   NewAuditConsumer(consumer, queue, m),
		Monitor: NewStreamMonitor(queue, m, 1000, maxLen),
	}

	go w.Relay.Start(ctx, relayInterval)
	go w.Audit.Start(ctx)
	go w.Monitor.Start(ctx, 30*time.Second)

	return w
}
