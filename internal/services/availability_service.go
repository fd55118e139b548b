package services

import (
	"context"
	"fmt"
	"time"

	"caretransport/dispatch/internal/common"
	"caretransport/dispatch/internal/db/repositories"
	"caretransport/dispatch/internal/metrics"
	"caretransport/dispatch/internal/models"
)

// Availability is the answer of a DriverAvailabilityChecker
type Availability struct {
	Available bool              `json:"available"`
	Reason    string            `json:"reason,omitempty"`
	AbsenceID *models.AbsenceID `json:"absence_id,omitempty"`
}

// DriverAvailabilityChecker tells whether a driver can be planned on a date
type DriverAvailabilityChecker interface {
	Check(ctx context.Context, companyID models.CompanyID, driverID models.DriverID, date time.Time) (Availability, error)
}

// AbsenceAvailabilityChecker derives availability from active driver
// absences and caches the answer per driver and day
type AbsenceAvailabilityChecker struct {
	absences *repositories.AbsenceRepo
	cache    common.CacheInterface
	ttl      time.Duration
	metrics  *metrics.MetricsRegistry
}

// NewAbsenceAvailabilityChecker creates a checker. cache may be nil.
func NewAbsenceAvailabilityChecker(absences *repositories.AbsenceRepo, cache common.CacheInterface, ttl time.Duration, m *metrics.MetricsRegistry) *AbsenceAvailabilityChecker {
	return &AbsenceAvailabilityChecker{absences: absences, cache: cache, ttl: ttl, metrics: m}
}

func availabilityKey(companyID models.CompanyID, driverID models.DriverID, day time.Time) string {
	return fmt.Sprintf("availability:%s:%s:%s", companyID, driverID, models.FormatDay(day))
}

// Check returns unavailable when an active absence covers date. Cached
// values are the covering absence id, or "" when the driver is free.
func (c *AbsenceAvailabilityChecker) Check(ctx context.Context, companyID models.CompanyID, driverID models.DriverID, date time.Time) (Availability, error) {
	day := models.Day(date)
	load := func(ctx context.Context) (string, error) {
		absences, err := c.absences.ListActiveDriverAbsences(ctx, companyID, driverID, day, day)
		if err != nil || len(absences) == 0 {
			return "", err
		}
		return string(absences[0].ID), nil
	}

	if c.cache == nil {
		absence, err := load(ctx)
		if err != nil {
			return Availability{}, err
		}
		return toAvailability(absence), nil
	}

	absence, hit, err := c.cache.GetOrLoad(ctx, availabilityKey(companyID, driverID, day), c.ttl, load)
	if err != nil {
		return Availability{}, err
	}
	c.metrics.ObserveCache("availability", hit)
	return toAvailability(absence), nil
}

func toAvailability(absence string) Availability {
	if absence == "" {
		return Availability{Available: true}
	}
	id := models.AbsenceID(absence)
	return Availability{Available: false, Reason: "driver absence " + absence, AbsenceID: &id}
}

// Invalidate drops cached answers for the driver on every day of [from, to]
func (c *AbsenceAvailabilityChecker) Invalidate(ctx context.Context, companyID models.CompanyID, driverID models.DriverID, from, to time.Time) {
	if c.cache == nil {
		return
	}
	days := models.DaysBetween(from, to)
	keys := make([]string, 0, len(days))
	for _, day := range days {
		keys = append(keys, availabilityKey(companyID, driverID, day))
	}
	c.cache.Delete(ctx, keys...)
}

// availabilityInvalidator is implemented by checkers that cache
type availabilityInvalidator interface {
	Invalidate(ctx context.Context, companyID models.CompanyID, driverID models.DriverID, from, to time.Time)
}
