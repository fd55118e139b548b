package repositories

import (
	"context"
	"errors"
	"fmt"

	"caretransport/dispatch/internal/constants"
	"caretransport/dispatch/internal/models"
	gormModels "caretransport/dispatch/internal/models/gorm"

	gormlib "gorm.io/gorm"
)

// DirectoryRepo reads companies, drivers, vehicles and child schedules
type DirectoryRepo struct {
	db *gormlib.DB
}

// NewDirectoryRepo creates a new directory repository
func NewDirectoryRepo(db *gormlib.DB) *DirectoryRepo {
	return &DirectoryRepo{db: db}
}

// ListActiveCompanyIDs returns the tenants background jobs iterate over
func (r *DirectoryRepo) ListActiveCompanyIDs(ctx context.Context) ([]models.CompanyID, error) {
	var ids []models.CompanyID

	err := r.db.WithContext(ctx).
		Model(&gormModels.Company{}).
		Where("is_active = ?", true).
		Order("id ASC").
		Pluck("id", &ids).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	return ids, nil
}

// GetDriver returns nil, nil when the driver does not exist in the company
func (r *DirectoryRepo) GetDriver(ctx context.Context, companyID models.CompanyID, id models.DriverID) (*gormModels.Driver, error) {
	var driver gormModels.Driver

	err := r.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		First(&driver).Error

	if err != nil {
		if errors.Is(err, gormlib.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch driver: %w", err)
	}
	return &driver, nil
}

// GetDrivers loads drivers by id, keyed by id
func (r *DirectoryRepo) GetDrivers(ctx context.Context, companyID models.CompanyID, ids []models.DriverID) (map[models.DriverID]gormModels.Driver, error) {
	out := make(map[models.DriverID]gormModels.Driver, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var drivers []gormModels.Driver
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND id IN ?", companyID, ids).
		Find(&drivers).Error

	if err != nil {
		return nil, fmt.Errorf("failed to fetch drivers: %w", err)
	}
	for _, d := range drivers {
		out[d.ID] = d
	}
	return out, nil
}

// ListActiveDrivers returns the company's active drivers by name
func (r *DirectoryRepo) ListActiveDrivers(ctx context.Context, companyID models.CompanyID) ([]gormModels.Driver, error) {
	var drivers []gormModels.Driver

	err := r.db.WithContext(ctx).
		Where("company_id = ? AND is_active = ?", companyID, true).
		Order("name ASC, id ASC").
		Find(&drivers).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list drivers: %w", err)
	}
	return drivers, nil
}

// GetVehicle returns nil, nil when the vehicle does not exist in the company
func (r *DirectoryRepo) GetVehicle(ctx context.Context, companyID models.CompanyID, id models.VehicleID) (*gormModels.Vehicle, error) {
	var vehicle gormModels.Vehicle

	err := r.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		First(&vehicle).Error

	if err != nil {
		if errors.Is(err, gormlib.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch vehicle: %w", err)
	}
	return &vehicle, nil
}

// GetVehicles loads vehicles by id, keyed by id
func (r *DirectoryRepo) GetVehicles(ctx context.Context, companyID models.CompanyID, ids []models.VehicleID) (map[models.VehicleID]gormModels.Vehicle, error) {
	out := make(map[models.VehicleID]gormModels.Vehicle, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var vehicles []gormModels.Vehicle
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND id IN ?", companyID, ids).
		Find(&vehicles).Error

	if err != nil {
		return nil, fmt.Errorf("failed to fetch vehicles: %w", err)
	}
	for _, v := range vehicles {
		out[v.ID] = v
	}
	return out, nil
}

// ListActiveVehicles returns the company's active vehicles by name
func (r *DirectoryRepo) ListActiveVehicles(ctx context.Context, companyID models.CompanyID) ([]gormModels.Vehicle, error) {
	var vehicles []gormModels.Vehicle

	err := r.db.WithContext(ctx).
		Where("company_id = ? AND is_active = ?", companyID, true).
		Order("name ASC, id ASC").
		Find(&vehicles).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	return vehicles, nil
}

// GetSchedule returns nil, nil when the schedule does not exist or was deleted
func (r *DirectoryRepo) GetSchedule(ctx context.Context, companyID models.CompanyID, id models.ScheduleID) (*gormModels.ChildSchedule, error) {
	var schedule gormModels.ChildSchedule

	err := r.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		First(&schedule).Error

	if err != nil {
		if errors.Is(err, gormlib.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch schedule: %w", err)
	}
	return &schedule, nil
}

// ListActiveSchedules returns active schedules, optionally of one route type
func (r *DirectoryRepo) ListActiveSchedules(ctx context.Context, companyID models.CompanyID, routeType constants.RouteType) ([]gormModels.ChildSchedule, error) {
	var schedules []gormModels.ChildSchedule

	q := r.db.WithContext(ctx).Where("company_id = ? AND is_active = ?", companyID, true)
	if routeType != "" {
		q = q.Where("route_type = ?", routeType)
	}

	if err := q.Order("pickup_time ASC, id ASC").Find(&schedules).Error; err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	return schedules, nil
}
