package app

import (
	"context"

	"go.uber.org/zap"

	"github.com/chrissnell/inform/internal/storage"
	"github.com/chrissnell/inform/internal/storage/sqlite"
	"github.com/chrissnell/inform/internal/storage/timescaledb"
	"github.com/chrissnell/inform/pkg/config"
)

// Backend names used for health reporting.
const (
	BackendSQLite      = "sqlite"
	BackendTimescaleDB = "timescaledb"
)

// OpenStore opens the configured results store. TimescaleDB wins when both
// backends are configured. It returns a nil store when none is.
func OpenStore(ctx context.Context, sd config.StorageData, logger *zap.SugaredLogger) (storage.Store, string, error) {
	switch {
	case sd.TimescaleDB != nil:
		s, err := timescaledb.New(ctx, sd.TimescaleDB.ConnectionString)
		if err != nil {
			return nil, "", err
		}
		return s, BackendTimescaleDB, nil
	case sd.SQLite != nil:
		s, err := sqlite.New(ctx, sd.SQLite.Path, logger)
		if err != nil {
			return nil, "", err
		}
		return s, BackendSQLite, nil
	}
	return nil, "", nil
}
