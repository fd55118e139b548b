package workers

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
)

const defaultRelayBatch = 200

// OutboxRelay publishes committed outbox events to the route event stream.
// Delivery is at least once: a crash between XADD and marking the rows
// published re-sends them on the next pass.
type OutboxRelay struct {
	store   *repositories.Store
	queue   *common.RedisQueueService
	metrics *metrics.MetricsRegistry
	clock   clock.Clock
	stream  string
	batch   int
	maxLen  int64
}

// NewOutboxRelay creates a relay writing to constants.RouteEventsStream
func NewOutboxRelay(store *repositories.Store, queue *common.RedisQueueService, m *metrics.MetricsRegistry, c clock.Clock, maxLen int64) *OutboxRelay {
	return &OutboxRelay{
		store:   store,
		queue:   queue,
		metrics: m,
		clock:   c,
		stream:  constants.RouteEventsStream,
		batch:   defaultRelayBatch,
		maxLen:  maxLen,
	}
}

// RelayOnce publishes one batch of unpublished events and returns how many
// were sent. Events that cannot be encoded are stamped published without
// being sent so they stop blocking the head of the outbox.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	pending, err := r.store.Outbox.ListUnpublished(ctx, r.batch)
	if err != nil {
		r.metrics.ObserveRelay(0, 0, true)
		return 0, err
	}
	if len(pending) == 0 {
		r.metrics.ObserveRelay(0, 0, false)
		return 0, nil
	}

	payloads := make([]string, 0, len(pending))
	ids := make([]string, 0, len(pending))
	var dropped []string
	for _, e := range pending {
		data, err := events.Wrap(e)
		if err != nil {
			logging.Error("Dropping malformed outbox event", "event_id", e.ID, "event_type", e.EventType, "error", err.Error())
			dropped = append(dropped, e.ID)
			continue
		}
		payloads = append(payloads, string(data))
		ids = append(ids, e.ID)
	}

	if len(payloads) > 0 {
		if _, err := r.queue.PublishBatch(ctx, r.stream, constants.RouteEventsPayloadKey, payloads, r.maxLen); err != nil {
			r.metrics.ObserveRelay(0, len(pending), true)
			return 0, err
		}
	}
	if err := r.store.Outbox.MarkPublished(ctx, append(ids, dropped...), r.clock.Now()); err != nil {
		r.metrics.ObserveRelay(len(ids), len(pending), true)
		return len(ids), err
	}

	r.metrics.ObserveRelay(len(ids), len(pending), len(dropped) > 0)
	return len(ids), nil
}

// Start relays until ctx is cancelled. A full batch is followed immediately
// by the next one.
func (r *OutboxRelay) Start(ctx context.Context, interval time.Duration) {
	logging.Info("Outbox relay started", "stream", r.stream, "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := r.RelayOnce(ctx)
		if err != nil {
			logging.Error("Outbox relay failed", "error", err.Error())
		}
		if err == nil && n > 0 && n >= r.batch {
			continue
		}

		select {
		case <-ctx.Done():
			logging.Info("Outbox relay stopped")
			return
		case <-ticker.C:
		}
	}
}
