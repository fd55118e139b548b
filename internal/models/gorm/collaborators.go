package gorm

import (
	"time"

	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/models"

	gormlib "gorm.io/gorm"
)

// Records below are owned by neighbouring subsystems. The route engine only
// reads them.

// Company is a tenant
type Company struct {
	ID        models.CompanyID `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	Name      string           `gorm:"column:name;type:varchar(120)" json:"name"`
	IsActive  bool             `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for GORM
func (Company) TableName() string {
	return "companies"
}

type Driver struct {
	ID        models.DriverID  `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	CompanyID models.CompanyID `gorm:"column:company_id;type:uuid;not null;index" json:"company_id"`
	Name      string           `gorm:"column:name;type:varchar(120)" json:"name"`
	IsActive  bool             `gorm:"column:is_active;default:true" json:"is_active"`
}

// TableName specifies the table name for GORM
func (Driver) TableName() string {
	return "drivers"
}

type Vehicle struct {
	ID        models.VehicleID `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	CompanyID models.CompanyID `gorm:"column:company_id;type:uuid;not null;index" json:"company_id"`
	Name      string           `gorm:"column:name;type:varchar(120)" json:"name"`
	Plate     string           `gorm:"column:plate;type:varchar(20)" json:"plate"`
	Capacity  int              `gorm:"column:capacity" json:"capacity"`
	IsActive  bool             `gorm:"column:is_active;default:true" json:"is_active"`
}

// TableName specifies the table name for GORM
func (Vehicle) TableName() string {
	return "vehicles"
}

// ChildSchedule is a child's standing transport need, e.g. home to school
// on weekday mornings. Soft deleted.
type ChildSchedule struct {
	ID             models.ScheduleID   `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	CompanyID      models.CompanyID    `gorm:"column:company_id;type:uuid;not null;index" json:"company_id"`
	ChildID        models.ChildID      `gorm:"column:child_id;type:uuid;not null;index" json:"child_id"`
	Name           string              `gorm:"column:name;type:varchar(120)" json:"name"`
	RouteType      constants.RouteType `gorm:"column:route_type;type:varchar(20)" json:"route_type"`
	PickupAddress  Address             `gorm:"embedded;embeddedPrefix:pickup_" json:"pickup_address"`
	DropoffAddress Address             `gorm:"embedded;embeddedPrefix:dropoff_" json:"dropoff_address"`
	PickupTime     models.TimeOfDay    `gorm:"column:pickup_time;type:varchar(5)" json:"pickup_time"`
	DropoffTime    models.TimeOfDay    `gorm:"column:dropoff_time;type:varchar(5)" json:"dropoff_time"`
	IsActive       bool                `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	DeletedAt      gormlib.DeletedAt   `gorm:"column:deleted_at;index" json:"-"`
}

// TableName specifies the table name for GORM
func (ChildSchedule) TableName() string {
	return "child_schedules"
}

type DriverAbsence struct {
	ID        models.AbsenceID        `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	CompanyID models.CompanyID        `gorm:"column:company_id;type:uuid;not null" json:"company_id"`
	DriverID  models.DriverID         `gorm:"column:driver_id;type:uuid;not null;index" json:"driver_id"`
	StartDate time.Time               `gorm:"column:start_date;type:date;not null" json:"start_date"`
	EndDate   time.Time               `gorm:"column:end_date;type:date;not null" json:"end_date"`
	Type      string                  `gorm:"column:type;type:varchar(30)" json:"type"`
	Status    constants.AbsenceStatus `gorm:"column:status;type:varchar(20);not null" json:"status"`
	Reason    string                  `gorm:"column:reason;type:text" json:"reason"`
}

// TableName specifies the table name for GORM
func (DriverAbsence) TableName() string {
	return "driver_absences"
}

type ChildAbsence struct {
	ID         models.AbsenceID           `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	CompanyID  models.CompanyID           `gorm:"column:company_id;type:uuid;not null" json:"company_id"`
	ChildID    models.ChildID             `gorm:"column:child_id;type:uuid;not null;index" json:"child_id"`
	ScheduleID *models.ScheduleID         `gorm:"column:schedule_id;type:uuid" json:"schedule_id,omitempty"`
	StartDate  time.Time                  `gorm:"column:start_date;type:date;not null" json:"start_date"`
	EndDate    time.Time                  `gorm:"column:end_date;type:date;not null" json:"end_date"`
	Type       constants.ChildAbsenceType `gorm:"column:type;type:varchar(30);not null" json:"type"`
	Status     constants.AbsenceStatus    `gorm:"column:status;type:varchar(20);not null" json:"status"`
	Reason     string                     `gorm:"column:reason;type:text" json:"reason"`
}

// TableName specifies the table name for GORM
func (ChildAbsence) TableName() string {
	return "child_absences"
}
