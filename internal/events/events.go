// Package events builds the domain events appended to the outbox and the
// envelope they travel in on the route event stream.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"caretransport/dispatch/internal/models"
	gormModels "caretransport/dispatch/internal/models/gorm"
)

// Envelope is the JSON document published for every outbox event
type Envelope struct {
	ID            string           `json:"id"`
	CompanyID     models.CompanyID `json:"company_id"`
	AggregateType string           `json:"aggregate_type"`
	AggregateID   string           `json:"aggregate_id"`
	EventType     string           `json:"event_type"`
	Payload       json.RawMessage  `json:"payload"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

// New builds an outbox row for eventType with payload serialized as JSON
func New(companyID models.CompanyID, aggregateType string, aggregateID string, eventType string, payload interface{}) (*gormModels.OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &gormModels.OutboxEvent{
		CompanyID:     companyID,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       string(data),
	}, nil
}

// Wrap turns a stored outbox row into its published form
func Wrap(e gormModels.OutboxEvent) ([]byte, error) {
	payload := json.RawMessage(e.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return json.Marshal(Envelope{
		ID:            e.ID,
		CompanyID:     e.CompanyID,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		EventType:     e.EventType,
		Payload:       payload,
		OccurredAt:    e.CreatedAt.UTC(),
	})
}

// Unwrap parses a published envelope
func Unwrap(data string) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event envelope: %w", err)
	}
	return &env, nil
}

// Payloads shared by more than one producer

type RouteStatusChanged struct {
	RouteID models.RouteID `json:"route_id"`
	Date    string         `json:"date"`
	From    string         `json:"from"`
	To      string         `json:"to"`
	ActorID models.UserID  `json:"actor_id,omitempty"`
	Reason  string         `json:"reason,omitempty"`
}

type DriverChanged struct {
	RouteID          models.RouteID    `json:"route_id,omitempty"`
	SeriesID         models.SeriesID   `json:"series_id,omitempty"`
	PreviousDriverID *models.DriverID  `json:"previous_driver_id,omitempty"`
	NewDriverID      *models.DriverID  `json:"new_driver_id,omitempty"`
	AbsenceID        *models.AbsenceID `json:"absence_id,omitempty"`
	ActorID          models.UserID     `json:"actor_id,omitempty"`
	Reason           string            `json:"reason,omitempty"`
}

type StopsChanged struct {
	RouteID    models.RouteID    `json:"route_id"`
	ScheduleID models.ScheduleID `json:"schedule_id,omitempty"`
	ChildID    models.ChildID    `json:"child_id,omitempty"`
	StopIDs    []models.StopID   `json:"stop_ids"`
	AbsenceID  *models.AbsenceID `json:"absence_id,omitempty"`
	Reason     string            `json:"reason,omitempty"`
}

type StopExecuted struct {
	RouteID    models.RouteID `json:"route_id"`
	StopID     models.StopID  `json:"stop_id"`
	Outcome    string         `json:"outcome"`
	ActualTime time.Time      `json:"actual_time"`
	ExecutedBy models.UserID  `json:"executed_by,omitempty"`
}

type PredictedStop struct {
	StopID        models.StopID    `json:"stop_id"`
	EstimatedTime models.TimeOfDay `json:"estimated_time"`
	PredictedTime models.TimeOfDay `json:"predicted_time"`
}

type DelayPredicted struct {
	RouteID      models.RouteID  `json:"route_id"`
	DelayMinutes int             `json:"delay_minutes"`
	BasedOnStop  models.StopID   `json:"based_on_stop"`
	Remaining    []PredictedStop `json:"remaining"`
}

type SeriesChanged struct {
	SeriesID      models.SeriesID   `json:"series_id"`
	ScheduleID    models.ScheduleID `json:"schedule_id,omitempty"`
	EffectiveFrom string            `json:"effective_from,omitempty"`
	RoutesTouched int               `json:"routes_touched"`
	Reason        string            `json:"reason,omitempty"`
}
