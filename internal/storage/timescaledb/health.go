package timescaledb

import (
	"context"

	"github.com/chrissnell/inform/internal/storage"
)

// CheckHealth pings the database and runs a trivial query.
func (t *Storage) CheckHealth(ctx context.Context) *storage.Health {
	if t.TimescaleDBConn == nil {
		return storage.NewHealth(storage.StatusUnhealthy, "No database connection", nil)
	}

	sqlDB, err := t.TimescaleDBConn.DB()
	if err != nil {
		return storage.NewHealth(storage.StatusUnhealthy, "Failed to get underlying database connection", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return storage.NewHealth(storage.StatusUnhealthy, "Database ping failed", err)
	}

	var result int
	if err := t.TimescaleDBConn.WithContext(ctx).Raw("SELECT 1").Scan(&result).Error; err != nil {
		return storage.NewHealth(storage.StatusUnhealthy, "Database query failed", err)
	}
	return storage.NewHealth(storage.StatusHealthy, "TimescaleDB connection active", nil)
}
