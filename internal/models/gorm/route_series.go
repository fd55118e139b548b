package gorm

import (
	"time"

	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/models"

	"github.com/google/uuid"
	gormlib "gorm.io/gorm"
)

// RouteSeries is a recurring route template
type RouteSeries struct {
	ID                  models.SeriesID        `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	CompanyID           models.CompanyID       `gorm:"column:company_id;type:uuid;not null;index" json:"company_id"`
	Name                string                 `gorm:"column:name;type:varchar(120)" json:"name"`
	IntervalWeeks       int                    `gorm:"column:interval_weeks;not null;default:1" json:"interval_weeks"`
	StartDate           time.Time              `gorm:"column:start_date;type:date;not null" json:"start_date"`
	EndDate             *time.Time             `gorm:"column:end_date;type:date" json:"end_date,omitempty"`
	DriverID            *models.DriverID       `gorm:"column:driver_id;type:uuid;index" json:"driver_id,omitempty"`
	VehicleID           models.VehicleID       `gorm:"column:vehicle_id;type:uuid" json:"vehicle_id"`
	RouteType           constants.RouteType    `gorm:"column:route_type;type:varchar(20)" json:"route_type"`
	Status              constants.SeriesStatus `gorm:"column:status;type:varchar(20);not null" json:"status"`
	DetachedByAbsenceID *models.AbsenceID      `gorm:"column:detached_by_absence_id;type:uuid;index" json:"detached_by_absence_id,omitempty"`
	CreatedAt           time.Time              `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time              `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (RouteSeries) TableName() string {
	return "route_series"
}

// BeforeCreate assigns a UUID when none was set
func (s *RouteSeries) BeforeCreate(tx *gormlib.DB) error {
	if s.ID == "" {
		s.ID = models.SeriesID(uuid.NewString())
	}
	return nil
}

// RouteSeriesSchedule is a time-bounded membership of a child schedule in a
// series. ValidTo is the last day included; nil means open-ended.
type RouteSeriesSchedule struct {
	ID         string            `gorm:"column:id;primaryKey;type:uuid" json:"id"`
	CompanyID  models.CompanyID  `gorm:"column:company_id;type:uuid;not null" json:"company_id"`
	SeriesID   models.SeriesID   `gorm:"column:series_id;type:uuid;not null;index" json:"series_id"`
	ScheduleID models.ScheduleID `gorm:"column:schedule_id;type:uuid;not null" json:"schedule_id"`
	ChildID    models.ChildID    `gorm:"column:child_id;type:uuid;not null" json:"child_id"`
	ValidFrom  time.Time         `gorm:"column:valid_from;type:date;not null" json:"valid_from"`
	ValidTo    *time.Time        `gorm:"column:valid_to;type:date" json:"valid_to,omitempty"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (RouteSeriesSchedule) TableName() string {
	return "route_series_schedules"
}

// BeforeCreate assigns a UUID when none was set
func (m *RouteSeriesSchedule) BeforeCreate(tx *gormlib.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// ActiveOn reports whether the membership covers day
func (m *RouteSeriesSchedule) ActiveOn(day time.Time) bool {
	day = models.Day(day)
	if day.Before(models.Day(m.ValidFrom)) {
		return false
	}
	return m.ValidTo == nil || !day.After(models.Day(*m.ValidTo))
}
