// Package datastore opens and migrates the gorm databases backing the
// source and target stores.
package datastore

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/invsync/internal/datastore/entities"
	"github.com/tphakala/invsync/internal/errors"
	"github.com/tphakala/invsync/internal/logger"
)

// Supported drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// slowQueryThreshold is passed to the gorm logger adapter.
const slowQueryThreshold = 500 * time.Millisecond

// Manager defines the interface for database lifecycle operations.
type Manager interface {
	// Initialize creates or updates the schema.
	Initialize() error
	// DB returns the underlying GORM database.
	DB() *gorm.DB
	// Path returns the database location (file path for SQLite, host/db for MySQL).
	Path() string
	// Close closes the database connection.
	Close() error
	// IsMySQL returns true if this is a MySQL manager.
	IsMySQL() bool
}

// Config holds database configuration for a store.
type Config struct {
	// Driver is "sqlite" (default) or "mysql".
	Driver string
	// Name is the project identifier. SQLite stores live at DataDir/<Name>.db;
	// MySQL uses it as the database name when MySQL.Database is empty.
	Name string
	// DataDir is the directory containing SQLite files.
	DataDir string
	// MySQL holds MySQL connection settings.
	MySQL MySQLConfig
	// Logger receives gorm logs. SQL statements are logged at trace level.
	Logger logger.Logger
}

// AllModels lists every table the sync stores use.
func AllModels() []any {
	return []any{
		&entities.DocumentRow{},
		&entities.SourceEntityRow{},
		&entities.SequenceRow{},
		&entities.SequenceAssignment{},
		&entities.SyncRun{},
	}
}

// Open returns a manager for cfg.Driver.
func Open(cfg *Config) (Manager, error) {
	if cfg == nil {
		return nil, errors.ValidationError("datastore config is required")
	}
	if cfg.Name == "" {
		return nil, errors.ValidationError("datastore name (project identifier) is required")
	}

	switch cfg.Driver {
	case "", DriverSQLite:
		return NewSQLiteManager(cfg)
	case DriverMySQL:
		return NewMySQLManager(cfg)
	default:
		return nil, errors.Newf("unsupported datastore driver %q", cfg.Driver).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

func gormConfig(cfg *Config) *gorm.Config {
	log := cfg.Logger
	if log == nil {
		log = logger.Global().Module("datastore")
	}
	return &gorm.Config{
		Logger:         logger.NewGormLoggerAdapter(log, slowQueryThreshold),
		TranslateError: true,
	}
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return errors.New(fmt.Errorf("failed to migrate schema: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return nil
}
