package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/invsync/internal/datastore"
	"github.com/tphakala/invsync/internal/migration"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "INVSYNC_"

// envBinding maps a config key to an environment variable
type envBinding struct {
	ConfigKey string
	EnvVar    string
	Validate  func(string) error
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", EnvPrefix + "DEBUG", validateEnvBool},

		// Stores
		{"source.project", EnvPrefix + "SOURCE_PROJECT", nil},
		{"source.driver", EnvPrefix + "SOURCE_DRIVER", validateEnvDriver},
		{"source.data_dir", EnvPrefix + "SOURCE_DATA_DIR", nil},
		{"source.mysql.dsn", EnvPrefix + "SOURCE_DSN", nil},
		{"source.page_size", EnvPrefix + "SOURCE_PAGE_SIZE", validateEnvPositiveInt},
		{"target.project", EnvPrefix + "TARGET_PROJECT", nil},
		{"target.driver", EnvPrefix + "TARGET_DRIVER", validateEnvDriver},
		{"target.data_dir", EnvPrefix + "TARGET_DATA_DIR", nil},
		{"target.mysql.dsn", EnvPrefix + "TARGET_DSN", nil},
		{"target.base_path", EnvPrefix + "TARGET_BASE_PATH", nil},

		// Sync
		{"sync.workers", EnvPrefix + "WORKERS", validateEnvPositiveInt},
		{"sync.max_writes", EnvPrefix + "MAX_WRITES", validateEnvMaxWrites},
		{"sync.quiesce_timeout", EnvPrefix + "QUIESCE_TIMEOUT", validateEnvDuration},
		{"sync.rate_limit", EnvPrefix + "RATE_LIMIT", validateEnvRate},
		{"sync.strategy", EnvPrefix + "STRATEGY", validateEnvStrategy},
		{"sync.skip_delete", EnvPrefix + "SKIP_DELETE", validateEnvBool},

		// Telemetry
		{"telemetry.sentry_dsn", EnvPrefix + "SENTRY_DSN", nil},
		{"telemetry.metrics_listen", EnvPrefix + "METRICS_LISTEN", nil},
		{"logging.default_level", EnvPrefix + "LOG_LEVEL", nil},
	}
}

// bindEnvVars binds every environment variable and validates values that
// are set.
func bindEnvVars(v *viper.Viper) error {
	var warnings []string
	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}
		if binding.Validate == nil {
			continue
		}
		if value := os.Getenv(binding.EnvVar); value != "" {
			if err := binding.Validate(value); err != nil {
				warnings = append(warnings, fmt.Sprintf("invalid %s value '%s': %v", binding.EnvVar, value, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("must be true or false")
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("must be an integer")
	}
	if n <= 0 {
		return fmt.Errorf("must be positive, got %d", n)
	}
	return nil
}

func validateEnvMaxWrites(value string) error {
	if err := validateEnvPositiveInt(value); err != nil {
		return err
	}
	if n, _ := strconv.Atoi(strings.TrimSpace(value)); n > MaxBatchWrites {
		return fmt.Errorf("must be at most %d, got %d", MaxBatchWrites, n)
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("must be a duration such as 90s or 2m")
	}
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func validateEnvRate(value string) error {
	r, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if r < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func validateEnvStrategy(value string) error {
	switch migration.Strategy(strings.TrimSpace(value)) {
	case migration.StrategyParallel, migration.StrategyLinear:
		return nil
	}
	return fmt.Errorf("must be %q or %q", migration.StrategyParallel, migration.StrategyLinear)
}

func validateEnvDriver(value string) error {
	switch strings.TrimSpace(value) {
	case datastore.DriverSQLite, datastore.DriverMySQL:
		return nil
	}
	return fmt.Errorf("must be %q or %q", datastore.DriverSQLite, datastore.DriverMySQL)
}
