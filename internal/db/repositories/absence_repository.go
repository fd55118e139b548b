package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/models"
	gormModels "caretransport/dispatch/internal/models/gorm"

	gormlib "gorm.io/gorm"
)

// AbsenceRepo reads driver and child absences. The absence records belong to
// the absence subsystem; the route engine never writes them.
type AbsenceRepo struct {
	db *gormlib.DB
}

// NewAbsenceRepo creates a new absence repository
func NewAbsenceRepo(db *gormlib.DB) *AbsenceRepo {
	return &AbsenceRepo{db: db}
}

// GetDriverAbsence returns nil, nil when the absence does not exist
func (r *AbsenceRepo) GetDriverAbsence(ctx context.Context, companyID models.CompanyID, id models.AbsenceID) (*gormModels.DriverAbsence, error) {
	var absence gormModels.DriverAbsence

	err := r.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		First(&absence).Error

	if err != nil {
		if errors.Is(err, gormlib.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch driver absence: %w", err)
	}
	return &absence, nil
}

// GetChildAbsence returns nil, nil when the absence does not exist
func (r *AbsenceRepo) GetChildAbsence(ctx context.Context, companyID models.CompanyID, id models.AbsenceID) (*gormModels.ChildAbsence, error) {
	var absence gormModels.ChildAbsence

	err := r.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		First(&absence).Error

	if err != nil {
		if errors.Is(err, gormlib.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch child absence: %w", err)
	}
	return &absence, nil
}

// ListActiveDriverAbsences returns the driver's active absences overlapping [from, to]
func (r *AbsenceRepo) ListActiveDriverAbsences(ctx context.Context, companyID models.CompanyID, driverID models.DriverID, from, to time.Time) ([]gormModels.DriverAbsence, error) {
	var absences []gormModels.DriverAbsence

	err := r.db.WithContext(ctx).
		Where("company_id = ? AND driver_id = ? AND status = ?", companyID, driverID, constants.AbsenceStatusActive).
		Where("start_date <= ? AND end_date >= ?", models.Day(to), models.Day(from)).
		Order("start_date ASC").
		Find(&absences).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list absences of driver %s: %w", driverID, err)
	}
	return absences, nil
}
