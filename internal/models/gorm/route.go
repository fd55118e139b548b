package gorm

import (
	"time"

	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/models"

	"github.com/google/uuid"
	gormlib "gorm.io/gorm"
)

// Route is one vehicle/driver's ordered set of stops for a single date
type Route struct {
	ID                     models.RouteID        `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	CompanyID              models.CompanyID      `gorm:"column:company_id;type:uuid;not null;index:idx_routes_company_date" json:"company_id"`
	Date                   time.Time             `gorm:"column:date;type:date;not null;index:idx_routes_company_date" json:"date"`
	DriverID               *models.DriverID      `gorm:"column:driver_id;type:uuid;index" json:"driver_id,omitempty"`
	VehicleID              models.VehicleID      `gorm:"column:vehicle_id;type:uuid" json:"vehicle_id"`
	Name                   string                `gorm:"column:name;type:varchar(120)" json:"name"`
	Status                 constants.RouteStatus `gorm:"column:status;type:varchar(20);not null" json:"status"`
	RouteType              constants.RouteType   `gorm:"column:route_type;type:varchar(20)" json:"route_type"`
	EstimatedStart         *time.Time            `gorm:"column:estimated_start" json:"estimated_start,omitempty"`
	EstimatedEnd           *time.Time            `gorm:"column:estimated_end" json:"estimated_end,omitempty"`
	ActualStart            *time.Time            `gorm:"column:actual_start" json:"actual_start,omitempty"`
	ActualEnd              *time.Time            `gorm:"column:actual_end" json:"actual_end,omitempty"`
	SeriesID               *models.SeriesID      `gorm:"column:series_id;type:uuid;index" json:"series_id,omitempty"`
	PreviousDriverID       *models.DriverID      `gorm:"column:previous_driver_id;type:uuid" json:"previous_driver_id,omitempty"`
	DriverMissingAbsenceID *models.AbsenceID     `gorm:"column:driver_missing_absence_id;type:uuid;index" json:"driver_missing_absence_id,omitempty"`
	CancellationReason     *string               `gorm:"column:cancellation_reason;type:text" json:"cancellation_reason,omitempty"`
	Geometry               string                `gorm:"column:geometry;type:text" json:"geometry"`
	PlannedDistanceMeters  *float64              `gorm:"column:planned_distance_meters" json:"planned_distance_meters,omitempty"`
	PlannedDurationSecs    *int                  `gorm:"column:planned_duration_secs" json:"planned_duration_secs,omitempty"`
	CreatedAt              time.Time             `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time             `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Route) TableName() string {
	return "routes"
}

// BeforeCreate assigns a UUID when none was set
func (r *Route) BeforeCreate(tx *gormlib.DB) error {
	if r.ID == "" {
		r.ID = models.RouteID(uuid.NewString())
	}
	return nil
}

// Address is a snapshot copied onto a stop at creation time
type Address struct {
	Label      string  `gorm:"column:label;type:varchar(120)" json:"label"`
	Street     string  `gorm:"column:street;type:varchar(200)" json:"street"`
	City       string  `gorm:"column:city;type:varchar(100)" json:"city"`
	PostalCode string  `gorm:"column:postal_code;type:varchar(20)" json:"postal_code"`
	Lat        float64 `gorm:"column:lat" json:"lat"`
	Lng        float64 `gorm:"column:lng" json:"lng"`
}

// RouteStop is a pickup or dropoff of one child on one route
type RouteStop struct {
	ID                   models.StopID          `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	CompanyID            models.CompanyID       `gorm:"column:company_id;type:uuid;not null" json:"company_id"`
	RouteID              models.RouteID         `gorm:"column:route_id;type:uuid;not null;index" json:"route_id"`
	StopOrder            int                    `gorm:"column:stop_order;not null" json:"stop_order"`
	StopType             constants.StopType     `gorm:"column:stop_type;type:varchar(10);not null" json:"stop_type"`
	ChildID              models.ChildID         `gorm:"column:child_id;type:uuid;not null;index" json:"child_id"`
	ScheduleID           models.ScheduleID      `gorm:"column:schedule_id;type:uuid;not null" json:"schedule_id"`
	EstimatedTime        models.TimeOfDay       `gorm:"column:estimated_time;type:varchar(5)" json:"estimated_time"`
	Address              Address                `gorm:"embedded;embeddedPrefix:address_" json:"address"`
	ActualTime           *time.Time             `gorm:"column:actual_time" json:"actual_time,omitempty"`
	Outcome              *constants.StopOutcome `gorm:"column:outcome;type:varchar(20)" json:"outcome,omitempty"`
	ExecutedBy           *models.UserID         `gorm:"column:executed_by;type:uuid" json:"executed_by,omitempty"`
	Notes                string                 `gorm:"column:notes;type:text" json:"notes"`
	IsCancelled          bool                   `gorm:"column:is_cancelled;not null;default:false" json:"is_cancelled"`
	CancellationReason   *string                `gorm:"column:cancellation_reason;type:text" json:"cancellation_reason,omitempty"`
	CancelledByAbsenceID *models.AbsenceID      `gorm:"column:cancelled_by_absence_id;type:uuid;index" json:"cancelled_by_absence_id,omitempty"`
	CancelledAt          *time.Time             `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt            time.Time              `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time              `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (RouteStop) TableName() string {
	return "route_stops"
}

// BeforeCreate assigns a UUID when none was set
func (s *RouteStop) BeforeCreate(tx *gormlib.DB) error {
	if s.ID == "" {
		s.ID = models.StopID(uuid.NewString())
	}
	return nil
}

// IsExecuted reports whether an outcome has been recorded
func (s *RouteStop) IsExecuted() bool {
	return s.Outcome != nil
}

// RouteDriverAssignment is an append-only audit row for driver changes on a
// route or a series. Exactly one of RouteID / SeriesID is set.
type RouteDriverAssignment struct {
	ID               string           `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	CompanyID        models.CompanyID `gorm:"column:company_id;type:uuid;not null" json:"company_id"`
	RouteID          *models.RouteID  `gorm:"column:route_id;type:uuid;index" json:"route_id,omitempty"`
	SeriesID         *models.SeriesID `gorm:"column:series_id;type:uuid;index" json:"series_id,omitempty"`
	PreviousDriverID *models.DriverID `gorm:"column:previous_driver_id;type:uuid" json:"previous_driver_id,omitempty"`
	NewDriverID      *models.DriverID `gorm:"column:new_driver_id;type:uuid" json:"new_driver_id,omitempty"`
	ActorID          models.UserID    `gorm:"column:actor_id;type:uuid" json:"actor_id"`
	Reason           string           `gorm:"column:reason;type:text" json:"reason"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for GORM
func (RouteDriverAssignment) TableName() string {
	return "route_driver_assignments"
}

// BeforeCreate assigns a UUID when none was set
func (a *RouteDriverAssignment) BeforeCreate(tx *gormlib.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
