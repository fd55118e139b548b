package repositories

import (
	"context"
	"errors"
	"fmt"

	"caretransport/dispatch/internal/models"
	gormModels "caretransport/dispatch/internal/models/gorm"

	gormlib "gorm.io/gorm"
)

// OptimizationTaskRepo handles optimization_tasks table operations
type OptimizationTaskRepo struct {
	db *gormlib.DB
}

// NewOptimizationTaskRepo creates a new optimization task repository
func NewOptimizationTaskRepo(db *gormlib.DB) *OptimizationTaskRepo {
	return &OptimizationTaskRepo{db: db}
}

func (r *OptimizationTaskRepo) Create(ctx context.Context, task *gormModels.OptimizationTask) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("failed to create optimization task: %w", err)
	}
	return nil
}

func (r *OptimizationTaskRepo) Save(ctx context.Context, task *gormModels.OptimizationTask) error {
	if err := r.db.WithContext(ctx).Save(task).Error; err != nil {
		return fmt.Errorf("failed to save optimization task %s: %w", task.ID, err)
	}
	return nil
}

// GetByID returns nil, nil when the task does not exist in the company
func (r *OptimizationTaskRepo) GetByID(ctx context.Context, companyID models.CompanyID, id models.OptimizationTaskID) (*gormModels.OptimizationTask, error) {
	var task gormModels.OptimizationTask

	err := r.db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		First(&task).Error

	if err != nil {
		if errors.Is(err, gormlib.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch optimization task: %w", err)
	}
	return &task, nil
}
