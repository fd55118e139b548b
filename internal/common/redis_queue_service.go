package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueueService provides queue functionality using Redis Streams
type RedisQueueService struct {
	client *redis.Client
}

// NewRedisQueueService creates a new Redis queue service
func NewRedisQueueService(client *redis.Client) *RedisQueueService {
	return &RedisQueueService{
		client: client,
	}
}

// QueueMessage is one stream entry carrying a serialized payload
type QueueMessage struct {
	ID   string
	Data string
}

// PublishBatch appends payloads to the stream in one pipeline, capping the
// stream near maxLen when maxLen > 0. Returns the stream ids in order.
func (s *RedisQueueService) PublishBatch(ctx context.Context, streamName string, field string, payloads []string, maxLen int64) ([]string, error) {
	if len(payloads) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(payloads))
	for i, data := range payloads {
		args := &redis.XAddArgs{
			Stream: streamName,
			Values: map[string]interface{}{field: data},
		}
		if maxLen > 0 {
			args.MaxLen = maxLen
			args.Approx = true
		}
		cmds[i] = pipe.XAdd(ctx, args)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to execute batch: %w", err)
	}

	ids := make([]string, len(cmds))
	for i, cmd := range cmds {
		ids[i] = cmd.Val()
	}
	return ids, nil
}

// Read fetches new messages for a consumer of a group. Returns no messages
// and no error when the block time elapses.
func (s *RedisQueueService) Read(ctx context.Context, streamName, groupName, consumerName, field string, count int64, blockTime time.Duration) ([]QueueMessage, error) {
	// XREADGROUP GROUP group consumer BLOCK milliseconds COUNT n STREAMS stream >
	args := &redis.XReadGroupArgs{
		Group:    groupName,
		Consumer: consumerName,
		Streams:  []string{streamName, ">"},
		Count:    count,
		Block:    blockTime,
	}

	streams, err := s.client.XReadGroup(ctx, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	var out []QueueMessage
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			out = append(out, toQueueMessage(msg, field))
		}
	}
	return out, nil
}

func toQueueMessage(msg redis.XMessage, field string) QueueMessage {
	data, _ := msg.Values[field].(string)
	return QueueMessage{ID: msg.ID, Data: data}
}

// Ack acknowledges successful processing of messages
func (s *RedisQueueService) Ack(ctx context.Context, streamName, groupName string, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	return s.client.XAck(ctx, streamName, groupName, messageIDs...).Err()
}

// CreateConsumerGroup creates a consumer group for the stream if it doesn't exist
func (s *RedisQueueService) CreateConsumerGroup(ctx context.Context, streamName, groupName string) error {
	// XGROUP CREATE stream group 0 MKSTREAM
	err := s.client.XGroupCreateMkStream(ctx, streamName, groupName, "0").Err()
	if err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

// GetQueueLength returns the number of entries in the stream
func (s *RedisQueueService) GetQueueLength(ctx context.Context, streamName string) (int64, error) {
	length, err := s.client.XLen(ctx, streamName).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return length, nil
}

// GetPendingCount returns the number of unacknowledged messages of a group
func (s *RedisQueueService) GetPendingCount(ctx context.Context, streamName, groupName string) (int64, error) {
	pending, err := s.client.XPending(ctx, streamName, groupName).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get pending count: %w", err)
	}
	return pending.Count, nil
}

// TrimStream keeps only the most recent maxLen messages
func (s *RedisQueueService) TrimStream(ctx context.Context, streamName string, maxLen int64) error {
	return s.client.XTrimMaxLen(ctx, streamName, maxLen).Err()
}

// ClaimStale takes over messages pending longer than minIdleTime, typically
// left behind by a consumer that died
func (s *RedisQueueService) ClaimStale(ctx context.Context, streamName, groupName, consumerName, field string, minIdleTime time.Duration) ([]QueueMessage, error) {
	pending, err := s.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: streamName,
		Group:  groupName,
		Start:  "-",
		End:    "+",
		Count:  100,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get pending messages: %w", err)
	}

	var staleIDs []string
	for _, p := range pending {
		if p.Idle >= minIdleTime {
			staleIDs = append(staleIDs, p.ID)
		}
	}
	if len(staleIDs) == 0 {
		return nil, nil
	}

	messages, err := s.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   streamName,
		Group:    groupName,
		Consumer: consumerName,
		MinIdle:  minIdleTime,
		Messages: staleIDs,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim stale messages: %w", err)
	}

	out := make([]QueueMessage, 0, len(messages))
	for _, msg := range messages {
		out = append(out, toQueueMessage(msg, field))
	}
	return out, nil
}
