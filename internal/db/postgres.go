package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"gorm.io/gorm"
)

// NewSQLX wraps the pool already opened by GORM so raw read queries and the
// health check share its connections
func NewSQLX(gormDB *gorm.DB) (*sqlx.DB, error) {
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql handle: %w", err)
	}
	return sqlx.NewDb(sqlDB, driverName(gormDB)), nil
}

func driverName(gormDB *gorm.DB) string {
	switch gormDB.Dialector.Name() {
	case "sqlite":
		return "sqlite3"
	default:
		return "postgres"
	}
}

// WaitForDB pings until the database answers or attempts run out
func WaitForDB(ctx context.Context, db *sqlx.DB, attempts int) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return err
}
