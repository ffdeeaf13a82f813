package conf

import (
	"github.com/spf13/viper"

	"github.com/tphakala/invsync/internal/datastore"
	"github.com/tphakala/invsync/internal/logger"
	"github.com/tphakala/invsync/internal/migration"
	"github.com/tphakala/invsync/internal/source"
)

// MaxBatchWrites is the largest accepted sync.max_writes.
const MaxBatchWrites = 500

// setDefaultConfig sets default values for every configuration key.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	for _, store := range []string{"source", "target"} {
		v.SetDefault(store+".project", "")
		v.SetDefault(store+".driver", datastore.DriverSQLite)
		v.SetDefault(store+".data_dir", "data")
		v.SetDefault(store+".mysql.host", "")
		v.SetDefault(store+".mysql.port", "3306")
		v.SetDefault(store+".mysql.username", "")
		v.SetDefault(store+".mysql.password", "")
		v.SetDefault(store+".mysql.database", "")
		v.SetDefault(store+".mysql.table_prefix", store+"_")
		v.SetDefault(store+".mysql.dsn", "")
	}
	v.SetDefault("source.page_size", source.DefaultPageSize)
	v.SetDefault("target.base_path", "")
	v.SetDefault("target.legacy_base_path", "")

	v.SetDefault("sync.workers", migration.DefaultWorkers)
	v.SetDefault("sync.max_writes", migration.DefaultMaxWrites)
	v.SetDefault("sync.quiesce_timeout", migration.DefaultQuiesceTimeout)
	v.SetDefault("sync.rate_limit", 0.0)
	v.SetDefault("sync.strategy", string(migration.StrategyParallel))
	v.SetDefault("sync.skip_delete", false)
	v.SetDefault("sync.kinds", []string{})
	v.SetDefault("sync.kinds_file", "")

	v.SetDefault("logging.default_level", logger.DefaultLogLevel)
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", logger.DefaultLogLevel)
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", logger.DefaultLogPath)
	v.SetDefault("logging.file_output.level", logger.DefaultLogLevel)
	v.SetDefault("logging.file_output.max_size", logger.DefaultMaxSize)
	v.SetDefault("logging.file_output.max_age", logger.DefaultMaxAge)
	v.SetDefault("logging.file_output.max_rotated_files", logger.DefaultMaxRotatedFiles)
	v.SetDefault("logging.file_output.compress", true)

	v.SetDefault("telemetry.sentry_dsn", "")
	v.SetDefault("telemetry.metrics_listen", "")
}
