package datastore

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// MySQLConfig holds MySQL connection settings.
type MySQLConfig struct {
	Host        string `mapstructure:"host"`
	Port        string `mapstructure:"port"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	Database    string `mapstructure:"database"`
	TablePrefix string `mapstructure:"table_prefix"`
	// DSN overrides the individual fields when set.
	DSN string `mapstructure:"dsn"`
}

// MySQLManager handles a store kept in a MySQL database.
// TablePrefix lets source and target stores share one database.
type MySQLManager struct {
	db       *gorm.DB
	location string
}

// NewMySQLManager opens the MySQL database described by cfg.MySQL.
func NewMySQLManager(cfg *Config) (*MySQLManager, error) {
	mc := cfg.MySQL
	if mc.Database == "" {
		mc.Database = cfg.Name
	}
	dsn, err := BuildMySQLDSN(&mc)
	if err != nil {
		return nil, err
	}

	gcfg := gormConfig(cfg)
	gcfg.NamingStrategy = schema.NamingStrategy{TablePrefix: mc.TablePrefix}

	db, err := gorm.Open(mysql.Open(dsn), gcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database %s: %w", SanitizeDSN(dsn), err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying database: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &MySQLManager{db: db, location: Location(dsn)}, nil
}

// Initialize creates the schema.
func (m *MySQLManager) Initialize() error {
	return migrate(m.db)
}

// DB returns the underlying GORM database.
func (m *MySQLManager) DB() *gorm.DB {
	return m.db
}

// Path returns host:port/database for display.
func (m *MySQLManager) Path() string {
	return m.location
}

// Close closes the database connection.
func (m *MySQLManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}

// IsMySQL returns true for MySQL manager.
func (m *MySQLManager) IsMySQL() bool {
	return true
}
