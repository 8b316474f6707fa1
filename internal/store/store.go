// Package store opens the configured repository backend.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/baharkarakas/circulation-backend/internal/config"
	"github.com/baharkarakas/circulation-backend/internal/db"
	repo "github.com/baharkarakas/circulation-backend/internal/repository"
	"github.com/baharkarakas/circulation-backend/internal/repository/postgres"
	"github.com/baharkarakas/circulation-backend/internal/repository/sqlite"
)

// Open connects to the backend named by cfg.Driver and applies migrations when cfg.Migrate is set.
func Open(ctx context.Context, cfg config.StoreConfig, log *slog.Logger) (repo.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Migrate {
			if err := db.RunMigrations(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("migrate postgres: %w", err)
			}
		}
		log.Info("store ready", "driver", cfg.Driver)
		return postgres.NewStore(pool), nil

	case config.DriverSQLite:
		dbx, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if cfg.Migrate {
			if err := db.RunSQLiteMigrations(ctx, dbx); err != nil {
				dbx.Close()
				return nil, fmt.Errorf("migrate sqlite: %w", err)
			}
		}
		log.Info("store ready", "driver", cfg.Driver, "path", cfg.SQLitePath)
		return sqlite.NewStore(dbx), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}
