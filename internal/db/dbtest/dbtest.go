// Package dbtest opens throwaway SQLite databases with the route engine
// schema and seeds the collaborator records tests need.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/db"
	"caretransport/dispatch/internal/models"
	gormModels "caretransport/dispatch/internal/models/gorm"

	"gorm.io/gorm"
)

var seq int64

// Open returns a migrated in-memory database private to the test
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	gdb, err := db.OpenSQLite(":memory:", nil)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

// ID returns a unique readable id with prefix
func ID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, atomic.AddInt64(&seq, 1))
}

func mustCreate(t testing.TB, gdb *gorm.DB, value interface{}) {
	t.Helper()
	if err := gdb.Create(value).Error; err != nil {
		t.Fatalf("failed to seed %T: %v", value, err)
	}
}

func Company(t testing.TB, gdb *gorm.DB) models.CompanyID {
	t.Helper()
	c := &gormModels.Company{ID: models.CompanyID(ID("company")), Name: "Test Transport", IsActive: true}
	mustCreate(t, gdb, c)
	return c.ID
}

func Driver(t testing.TB, gdb *gorm.DB, company models.CompanyID, name string) models.DriverID {
	t.Helper()
	d := &gormModels.Driver{ID: models.DriverID(ID("driver")), CompanyID: company, Name: name, IsActive: true}
	mustCreate(t, gdb, d)
	return d.ID
}

func Vehicle(t testing.TB, gdb *gorm.DB, company models.CompanyID, name string) models.VehicleID {
	t.Helper()
	v := &gormModels.Vehicle{ID: models.VehicleID(ID("vehicle")), CompanyID: company, Name: name, Capacity: 8, IsActive: true}
	mustCreate(t, gdb, v)
	return v.ID
}

// Schedule seeds a child schedule picking up at pickup and dropping off at dropoff
func Schedule(t testing.TB, gdb *gorm.DB, company models.CompanyID, pickup, dropoff models.TimeOfDay) *gormModels.ChildSchedule {
	t.Helper()
	s := &gormModels.ChildSchedule{
		ID:          models.ScheduleID(ID("schedule")),
		CompanyID:   company,
		ChildID:     models.ChildID(ID("child")),
		Name:        "Home to school",
		RouteType:   constants.RouteTypeMorning,
		PickupTime:  pickup,
		DropoffTime: dropoff,
		IsActive:    true,
		PickupAddress: gormModels.Address{
			Label: "Home", Street: "Main St 1", City: "Utrecht", Lat: 52.09, Lng: 5.12,
		},
		DropoffAddress: gormModels.Address{
			Label: "School", Street: "School Ln 2", City: "Utrecht", Lat: 52.10, Lng: 5.13,
		},
	}
	mustCreate(t, gdb, s)
	return s
}

// DriverAbsence seeds an active absence covering [start, end]
func DriverAbsence(t testing.TB, gdb *gorm.DB, company models.CompanyID, driver models.DriverID, start, end time.Time) *gormModels.DriverAbsence {
	t.Helper()
	a := &gormModels.DriverAbsence{
		ID:        models.AbsenceID(ID("absence")),
		CompanyID: company,
		DriverID:  driver,
		StartDate: models.Day(start),
		EndDate:   models.Day(end),
		Type:      "SICK",
		Status:    constants.AbsenceStatusActive,
	}
	mustCreate(t, gdb, a)
	return a
}

// ChildAbsence seeds an active absence; schedule nil means FULL_DAY
func ChildAbsence(t testing.TB, gdb *gorm.DB, company models.CompanyID, child models.ChildID, schedule *models.ScheduleID, start, end time.Time) *gormModels.ChildAbsence {
	t.Helper()
	a := &gormModels.ChildAbsence{
		ID:         models.AbsenceID(ID("absence")),
		CompanyID:  company,
		ChildID:    child,
		ScheduleID: schedule,
		StartDate:  models.Day(start),
		EndDate:    models.Day(end),
		Type:       constants.ChildAbsenceFullDay,
		Status:     constants.AbsenceStatusActive,
	}
	if schedule != nil {
		a.Type = constants.ChildAbsenceSpecificSchedule
	}
	mustCreate(t, gdb, a)
	return a
}
