package conf

import (
	"fmt"
	"strings"

	"github.com/tphakala/invsync/internal/datastore"
	"github.com/tphakala/invsync/internal/errors"
	"github.com/tphakala/invsync/internal/migration"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

// Validate checks the settings. All problems are reported together.
func (s *Settings) Validate() error {
	ve := ValidationError{}

	ve.Errors = append(ve.Errors, validateStore("source", &s.Source.StoreSettings)...)
	ve.Errors = append(ve.Errors, validateStore("target", &s.Target.StoreSettings)...)
	if s.Source.PageSize <= 0 {
		ve.Errors = append(ve.Errors, "source.page_size must be positive")
	}
	ve.Errors = append(ve.Errors, validateSync(&s.Sync)...)

	// the derived engine config catches malformed base paths
	if len(ve.Errors) == 0 {
		cfg := s.MigrationConfig()
		if err := cfg.Validate(); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return errors.New(ve).
			Component("conf").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

func validateStore(name string, s *StoreSettings) []string {
	var errs []string
	if s.Project == "" {
		errs = append(errs, name+".project is required")
	}
	switch s.Driver {
	case datastore.DriverSQLite:
		if s.DataDir == "" {
			errs = append(errs, name+".data_dir is required for sqlite")
		}
	case datastore.DriverMySQL:
		if s.MySQL.DSN == "" && (s.MySQL.Host == "" || s.MySQL.Database == "") {
			errs = append(errs, name+".mysql needs a dsn or host and database")
		}
	default:
		errs = append(errs, fmt.Sprintf("%s.driver %q is not supported", name, s.Driver))
	}
	return errs
}

func validateSync(s *SyncSettings) []string {
	var errs []string
	if s.Workers <= 0 {
		errs = append(errs, "sync.workers must be positive")
	}
	if s.MaxWrites <= 0 || s.MaxWrites > MaxBatchWrites {
		errs = append(errs, fmt.Sprintf("sync.max_writes must be between 1 and %d", MaxBatchWrites))
	}
	if s.QuiesceTimeout <= 0 {
		errs = append(errs, "sync.quiesce_timeout must be positive")
	}
	if s.RateLimit < 0 {
		errs = append(errs, "sync.rate_limit must not be negative")
	}
	switch migration.Strategy(s.Strategy) {
	case migration.StrategyParallel, migration.StrategyLinear:
	default:
		errs = append(errs, fmt.Sprintf("sync.strategy %q must be parallel or linear", s.Strategy))
	}
	return errs
}
