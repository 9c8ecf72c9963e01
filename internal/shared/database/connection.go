package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"

	"holdings-server/internal/shared/config"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DB struct {
	*sql.DB
	Driver string
}

type Executor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Placeholder returns the n-th (1-based) bind parameter in the driver's syntax
func (db *DB) Placeholder(n int) string {
	if db.Driver == DriverSQLite {
		return "?"
	}
	return "$" + strconv.Itoa(n)
}

func Connect() (*DB, error) {
	cfg := config.GlobalConfig
	logger := slog.With("component", "database", "operation", "connect")
	logger.Debug("Initializing database connection")

	if !cfg.StaticDataConfigured() {
		logger.Info("Static data store disabled, type and location data will come from ESI only")
		return nil, nil
	}

	logger.Info("Connecting to static data store",
		"driver", cfg.Database.Driver,
		"host", cfg.Database.Host,
		"database", cfg.Database.Name,
		"path", cfg.Database.Path,
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	db, err := Open(cfg.Database.Driver, cfg.ConnectionString())
	if err != nil {
		logger.Error("Failed to open static data store", "error", err, "driver", cfg.Database.Driver)
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	logger.Info("Static data store connection established successfully", "driver", cfg.Database.Driver)
	return db, nil
}

// Open opens and pings a database using one of the supported drivers
func Open(driver, dsn string) (*DB, error) {
	logger := slog.With("component", "database", "operation", "open", "driver", driver)

	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	logger.Debug("Testing database connection with ping")
	if err := sqlDB.Ping(); err != nil {
		if closeErr := sqlDB.Close(); closeErr != nil {
			logger.Error("Failed to close database after ping failure", "close_error", closeErr, "ping_error", err)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: sqlDB, Driver: driver}, nil
}
