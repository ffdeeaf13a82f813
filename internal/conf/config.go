// Package conf loads invsync settings from YAML, defaults and environment
// variables.
package conf

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/invsync/internal/datastore"
	"github.com/tphakala/invsync/internal/errors"
	"github.com/tphakala/invsync/internal/logger"
	"github.com/tphakala/invsync/internal/migration"
)

// StoreSettings locates one store database.
type StoreSettings struct {
	Project string                `mapstructure:"project"`
	Driver  string                `mapstructure:"driver"`   // sqlite or mysql
	DataDir string                `mapstructure:"data_dir"` // directory of SQLite files
	MySQL   datastore.MySQLConfig `mapstructure:"mysql"`
}

// SourceSettings configures the flat source store.
type SourceSettings struct {
	StoreSettings `mapstructure:",squash"`
	PageSize      int `mapstructure:"page_size"`
}

// TargetSettings configures the hierarchical target store.
type TargetSettings struct {
	StoreSettings  `mapstructure:",squash"`
	BasePath       string `mapstructure:"base_path"`        // defaults to projects/<project>
	LegacyBasePath string `mapstructure:"legacy_base_path"` // defaults to legacy/<project>
}

// SyncSettings configures passes.
type SyncSettings struct {
	Workers        int           `mapstructure:"workers"`
	MaxWrites      int           `mapstructure:"max_writes"`
	QuiesceTimeout time.Duration `mapstructure:"quiesce_timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"` // work items per second, 0 disables
	Strategy       string        `mapstructure:"strategy"`
	SkipDelete     bool          `mapstructure:"skip_delete"`
	Kinds          []string      `mapstructure:"kinds"`      // empty syncs every kind
	KindsFile      string        `mapstructure:"kinds_file"` // YAML kind overrides
}

// TelemetrySettings configures error reporting and metrics.
type TelemetrySettings struct {
	SentryDSN     string `mapstructure:"sentry_dsn"`
	MetricsListen string `mapstructure:"metrics_listen"`
}

// Settings is the complete invsync configuration.
type Settings struct {
	Debug     bool                 `mapstructure:"debug"`
	Source    SourceSettings       `mapstructure:"source"`
	Target    TargetSettings       `mapstructure:"target"`
	Sync      SyncSettings         `mapstructure:"sync"`
	Logging   logger.LoggingConfig `mapstructure:"logging"`
	Telemetry TelemetrySettings    `mapstructure:"telemetry"`

	// ConfigFile is the file the settings were read from, empty when only
	// defaults and environment were used.
	ConfigFile string `mapstructure:"-"`
}

// Load reads configFile, or config.yaml from the default search paths when
// configFile is empty, applies defaults and environment overrides, and
// validates the result.
func Load(configFile string) (*Settings, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaultConfig(v)

	if err := bindEnvVars(v); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "bind_env").
			Build()
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		paths, err := GetDefaultConfigPaths()
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errors.New(fmt.Errorf("error reading config file: %w", err)).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Context("config_file", configFile).
				Build()
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling config into struct: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	settings.ConfigFile = v.ConfigFileUsed()

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// MigrationConfig returns the engine configuration.
func (s *Settings) MigrationConfig() migration.Config {
	base := s.Target.BasePath
	if base == "" {
		base = "projects/" + s.Target.Project
	}
	legacy := s.Target.LegacyBasePath
	if legacy == "" {
		legacy = "legacy/" + s.Target.Project
	}
	return migration.Config{
		SourceProject:  s.Source.Project,
		TargetProject:  s.Target.Project,
		BasePath:       base,
		LegacyBasePath: legacy,
		Workers:        s.Sync.Workers,
		MaxWrites:      s.Sync.MaxWrites,
		QuiesceTimeout: s.Sync.QuiesceTimeout,
		RateLimit:      s.Sync.RateLimit,
		Strategy:       migration.Strategy(s.Sync.Strategy),
	}
}

// DatastoreConfig returns the database configuration of a store.
func (s *StoreSettings) DatastoreConfig(log logger.Logger) *datastore.Config {
	return &datastore.Config{
		Driver:  s.Driver,
		Name:    s.Project,
		DataDir: s.DataDir,
		MySQL:   s.MySQL,
		Logger:  log,
	}
}
