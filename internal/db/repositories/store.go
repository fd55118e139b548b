package repositories

import (
	"context"

	gormlib "gorm.io/gorm"
)

// Store groups the route engine repositories over one connection or one
// transaction
type Store struct {
	db *gormlib.DB

	Routes      *RouteRepo
	Stops       *RouteStopRepo
	Series      *RouteSeriesRepo
	Memberships *SeriesMembershipRepo
	Assignments *DriverAssignmentRepo
	Absences    *AbsenceRepo
	Directory   *DirectoryRepo
	Outbox      *OutboxRepo
	Tasks       *OptimizationTaskRepo
}

// NewStore creates a store whose repositories share db
func NewStore(db *gormlib.DB) *Store {
	return &Store{
		db:          db,
		Routes:      NewRouteRepo(db),
		Stops:       NewRouteStopRepo(db),
		Series:      NewRouteSeriesRepo(db),
		Memberships: NewSeriesMembershipRepo(db),
		Assignments: NewDriverAssignmentRepo(db),
		Absences:    NewAbsenceRepo(db),
		Directory:   NewDirectoryRepo(db),
		Outbox:      NewOutboxRepo(db),
		Tasks:       NewOptimizationTaskRepo(db),
	}
}

// DB exposes the underlying handle
func (s *Store) DB() *gormlib.DB {
	return s.db
}

// Transaction runs fn with a store bound to a single transaction. The
// transaction commits when fn returns nil.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gormlib.DB) error {
		return fn(NewStore(tx))
	})
}
