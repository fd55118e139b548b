package workers

import (
	"context"
	"fmt"
	"time"

	"caretransport/dispatch/internal/common"
	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/logging"
	"caretransport/dispatch/internal/metrics"
)

// StreamStats is one measurement of a stream and its consumer group
type StreamStats struct {
	Stream       string    `json:"stream"`
	Group        string    `json:"group"`
	Length       int64     `json:"length"`
	PendingCount int64     `json:"pending_count"`
	Status       string    `json:"status"`
	LastChecked  time.Time `json:"last_checked"`
}

// StreamMonitor watches the route event stream and the audit group lag
type StreamMonitor struct {
	queue   *common.RedisQueueService
	metrics *metrics.MetricsRegistry

	maxPending int64
	maxLength  int64
}

// NewStreamMonitor creates a monitor that warns past maxPending unacked
// entries or maxLength stream entries
func NewStreamMonitor(queue *common.RedisQueueService, m *metrics.MetricsRegistry, maxPending, maxLength int64) *StreamMonitor {
	return &StreamMonitor{
		queue:      queue,
		metrics:    m,
		maxPending: maxPending,
		maxLength:  maxLength,
	}
}

// Start checks the stream every interval until ctx is done
func (m *StreamMonitor) Start(ctx context.Context, interval time.Duration) {
	logging.Info("Stream monitor started", "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.check(ctx)

	for {
		select {
		case <-ctx.Done():
			logging.Info("Stream monitor shutting down")
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *StreamMonitor) check(ctx context.Context) {
	stats, err := m.Stats(ctx)
	if err != nil {
		logging.Warn("Stream monitor check failed", "error", err.Error())
		return
	}

	if stats.Status != "OK" {
		logging.Warn("Event stream needs attention",
			"stream", stats.Stream,
			"length", stats.Length,
			"pending", stats.PendingCount,
			"status", stats.Status,
		)
		return
	}
	logging.Debug("Event stream healthy", "stream", stats.Stream, "length", stats.Length, "pending", stats.PendingCount)
}

// Stats measures the route event stream
func (m *StreamMonitor) Stats(ctx context.Context) (*StreamStats, error) {
	stream, group := constants.RouteEventsStream, constants.AuditConsumerGroup

	length, err := m.queue.GetQueueLength(ctx, stream)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream length: %w", err)
	}

	// no group yet means nothing is pending
	pending, err := m.queue.GetPendingCount(ctx, stream, group)
	if err != nil {
		pending = 0
	}

	status := "OK"
	switch {
	case m.maxPending > 0 && pending > m.maxPending:
		status = "HIGH PENDING"
	case m.maxLength > 0 && length > m.maxLength:
		status = "HIGH LENGTH"
	}

	m.metrics.ObserveStream(stream, group, length, pending)

	return &StreamStats{
		Stream:       stream,
		Group:        group,
		Length:       length,
		PendingCount: pending,
		Status:       status,
		LastChecked:  time.Now(),
	}, nil
}
