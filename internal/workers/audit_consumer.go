package workers

import (
	"context"
	"time"

	"caretransport/dispatch/internal/common"
	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/events"
	"caretransport/dispatch/internal/logging"
	"caretransport/dispatch/internal/metrics"
)

// AuditConsumer reads the route event stream in the audit consumer group and
// writes every event to the structured log
type AuditConsumer struct {
	consumerName string
	queue        *common.RedisQueueService
	metrics      *metrics.MetricsRegistry
	stream       string
	group        string
}

// NewAuditConsumer creates an audit consumer named consumerName
func NewAuditConsumer(consumerName string, queue *common.RedisQueueService, m *metrics.MetricsRegistry) *AuditConsumer {
	return &AuditConsumer{
		consumerName: consumerName,
		queue:        queue,
		metrics:      m,
		stream:       constants.RouteEventsStream,
		group:        constants.AuditConsumerGroup,
	}
}

// Setup creates the consumer group when missing
func (c *AuditConsumer) Setup(ctx context.Context) error {
	return c.queue.CreateConsumerGroup(ctx, c.stream, c.group)
}

// ProcessOnce handles up to count messages, waiting at most block for them
func (c *AuditConsumer) ProcessOnce(ctx context.Context, count int64, block time.Duration) (int, error) {
	msgs, err := c.queue.Read(ctx, c.stream, c.group, c.consumerName, constants.RouteEventsPayloadKey, count, block)
	if err != nil {
		return 0, err
	}
	return c.handle(ctx, msgs), nil
}

func (c *AuditConsumer) handle(ctx context.Context, msgs []common.QueueMessage) int {
	handled := 0
	for _, msg := range msgs {
		env, err := events.Unwrap(msg.Data)
		if err != nil {
			// Unreadable entries are acked so they do not stay pending forever
			logging.Warn("Dropping unreadable route event", "message_id", msg.ID, "error", err.Error())
		} else {
			logging.Info("Route event",
				"event_id", env.ID,
				"event_type", env.EventType,
				"company_id", string(env.CompanyID),
				"aggregate_type", env.AggregateType,
				"aggregate_id", env.AggregateID,
				"occurred_at", env.OccurredAt,
				"payload", string(env.Payload),
			)
			c.metrics.ObserveAudit(env.EventType)
			handled++
		}

		if err := c.queue.Ack(ctx, c.stream, c.group, msg.ID); err != nil {
			logging.Error("Failed to ack route event", "message_id", msg.ID, "error", err.Error())
		}
	}
	return handled
}

// ClaimStale re-processes messages left pending by a dead consumer
func (c *AuditConsumer) ClaimStale(ctx context.Context, minIdle time.Duration) (int, error) {
	msgs, err := c.queue.ClaimStale(ctx, c.stream, c.group, c.consumerName, constants.RouteEventsPayloadKey, minIdle)
	if err != nil {
		return 0, err
	}
	return c.handle(ctx, msgs), nil
}

// Start consumes until ctx is cancelled
func (c *AuditConsumer) Start(ctx context.Context) {
	if err := c.Setup(ctx); err != nil {
		logging.Warn("Failed to create audit consumer group", "error", err.Error())
	}
	logging.Info("Audit consumer started", "consumer", c.consumerName, "stream", c.stream)

	lastClaim := time.Now()
	for {
		select {
		case <-ctx.Done():
			logging.Info("Audit consumer stopped", "consumer", c.consumerName)
			return
		default:
		}

		if _, err := c.ProcessOnce(ctx, 50, 5*time.Second); err != nil {
			if ctx.Err() != nil {
				continue
			}
			logging.Error("Audit consumer read failed", "error", err.Error())
			time.Sleep(time.Second)
		}

		if time.Since(lastClaim) > time.Minute {
			if _, err := c.ClaimStale(ctx, 5*time.Minute); err != nil {
				logging.Warn("Failed to claim stale route events", "error", err.Error())
			}
			lastClaim = time.Now()
		}
	}
}
