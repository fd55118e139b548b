package repositories

import (
	"context"
	"fmt"
	"time"

	"caretransport/dispatch/internal/models"
	gormModels "caretransport/dispatch/internal/models/gorm"

	gormlib "gorm.io/gorm"
)

// OutboxRepo handles outbox_events table operations
type OutboxRepo struct {
	db *gormlib.DB
}

// NewOutboxRepo creates a new outbox repository
func NewOutboxRepo(db *gormlib.DB) *OutboxRepo {
	return &OutboxRepo{db: db}
}

// Append stores an event. Call it on a transaction-bound store so the event
// commits with the change it describes.
func (r *OutboxRepo) Append(ctx context.Context, event *gormModels.OutboxEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to append %s event: %w", event.EventType, err)
	}
	return nil
}

// ListUnpublished returns the oldest events not yet relayed
func (r *OutboxRepo) ListUnpublished(ctx context.Context, limit int) ([]gormModels.OutboxEvent, error) {
	var events []gormModels.OutboxEvent

	err := r.db.WithContext(ctx).
		Where("published_at IS NULL").
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&events).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list unpublished events: %w", err)
	}
	return events, nil
}

// MarkPublished stamps events as relayed
func (r *OutboxRepo) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Model(&gormModels.OutboxEvent{}).
		Where("id IN ?", ids).
		UpdateColumn("published_at", at).Error

	if err != nil {
		return fmt.Errorf("failed to mark events published: %w", err)
	}
	return nil
}

// DeletePublishedBefore removes the company's relayed events older than cutoff
func (r *OutboxRepo) DeletePublishedBefore(ctx context.Context, companyID models.CompanyID, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("company_id = ? AND published_at IS NOT NULL AND published_at < ?", companyID, cutoff).
		Delete(&gormModels.OutboxEvent{})

	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete published events: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ListByAggregate returns the events of one aggregate, oldest first
func (r *OutboxRepo) ListByAggregate(ctx context.Context, aggregateType string, aggregateID string) ([]gormModels.OutboxEvent, error) {
	var events []gormModels.OutboxEvent

	err := r.db.WithContext(ctx).
		Where("aggregate_type = ? AND aggregate_id = ?", aggregateType, aggregateID).
		Order("created_at ASC, id ASC").
		Find(&events).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}
