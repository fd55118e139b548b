package gorm

import (
	"time"

	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/models"

	"github.com/google/uuid"
	gormlib "gorm.io/gorm"
)

// OutboxEvent is a domain event appended in the same transaction as the state
// change it describes. PublishedAt is set once the relay has pushed it to the
// event stream.
type OutboxEvent struct {
	ID            string           `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	CompanyID     models.CompanyID `gorm:"column:company_id;type:uuid;not null" json:"company_id"`
	AggregateType string           `gorm:"column:aggregate_type;type:varchar(20);not null" json:"aggregate_type"`
	AggregateID   string           `gorm:"column:aggregate_id;type:uuid;not null" json:"aggregate_id"`
	EventType     string           `gorm:"column:event_type;type:varchar(50);not null" json:"event_type"`
	Payload       string           `gorm:"column:payload;type:text" json:"payload"`
	CreatedAt     time.Time        `gorm:"column:created_at;not null;index" json:"created_at"`
	PublishedAt   *time.Time       `gorm:"column:published_at;index" json:"published_at,omitempty"`
}

// TableName specifies the table name for GORM
func (OutboxEvent) TableName() string {
	return "outbox_events"
}

// BeforeCreate assigns a UUID when none was set
func (e *OutboxEvent) BeforeCreate(tx *gormlib.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return nil
}

// OptimizationTask tracks one request to the external route optimizer. The
// IDMapping translates provider-local shipment/agent ids back to domain ids;
// Response holds the provider's opaque result.
type OptimizationTask struct {
	ID             models.OptimizationTaskID    `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	CompanyID      models.CompanyID             `gorm:"column:company_id;type:uuid;not null;index" json:"company_id"`
	Date           time.Time                    `gorm:"column:date;type:date;not null" json:"date"`
	StartTime      models.TimeOfDay             `gorm:"column:start_time;type:varchar(5)" json:"start_time"`
	EndTime        models.TimeOfDay             `gorm:"column:end_time;type:varchar(5)" json:"end_time"`
	RouteType      constants.RouteType          `gorm:"column:route_type;type:varchar(20)" json:"route_type"`
	ProviderTaskID string                       `gorm:"column:provider_task_id;type:varchar(100)" json:"provider_task_id"`
	Status         constants.OptimizationStatus `gorm:"column:status;type:varchar(20);not null" json:"status"`
	IDMapping      string                       `gorm:"column:id_mapping;type:text" json:"id_mapping"`
	Response       string                       `gorm:"column:response;type:text" json:"response"`
	ErrorMessage   string                       `gorm:"column:error_message;type:text" json:"error_message"`
	AppliedAt      *time.Time                   `gorm:"column:applied_at" json:"applied_at,omitempty"`
	CreatedAt      time.Time                    `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time                    `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (OptimizationTask) TableName() string {
	return "optimization_tasks"
}

// BeforeCreate assigns a UUID when none was set
func (t *OptimizationTask) BeforeCreate(tx *gormlib.DB) error {
	if t.ID == "" {
		t.ID = models.OptimizationTaskID(uuid.NewString())
	}
	return nil
}

// AllModels lists every table the route engine migrates
func AllModels() []interface{} {
	return []interface{}{
		&Company{},
		&Driver{},
		&Vehicle{},
		&ChildSchedule{},
		&DriverAbsence{},
		&ChildAbsence{},
		&Route{},
		&RouteStop{},
		&RouteSeries{},
		&RouteSeriesSchedule{},
		&RouteDriverAssignment{},
		&OutboxEvent{},
		&OptimizationTask{},
	}
}
