// Package migration re-derives the hierarchical target store from the flat
// source store. Each kind runs a pass: pull, transform, delete the existing
// subtree, and load the transformed documents through one shared batch.
package migration

import (
	"fmt"
	"time"

	"github.com/tphakala/invsync/internal/docstore"
	"github.com/tphakala/invsync/internal/errors"
)

// Defaults for Config.
const (
	DefaultWorkers        = 30
	DefaultMaxWrites      = 400
	DefaultQuiesceTimeout = 2 * time.Minute
)

// Strategy selects how a pass dispatches delete and load work.
type Strategy string

const (
	StrategyParallel Strategy = "parallel"
	StrategyLinear   Strategy = "linear"
)

// Config is the migration configuration passed to the engine.
type Config struct {
	SourceProject string
	TargetProject string
	// BasePath is the document under which converted kinds are stored,
	// e.g. "projects/<target>". Empty stores collections at the top level.
	BasePath string
	// LegacyBasePath is the document used by kinds with the legacy strategy.
	LegacyBasePath string
	// Workers is the worker pool width.
	Workers int
	// MaxWrites is the batch window size.
	MaxWrites int
	// QuiesceTimeout bounds how long an operation waits for an in-flight commit.
	QuiesceTimeout time.Duration
	// RateLimit caps dispatched work items per second. Zero disables it.
	RateLimit float64
	Strategy  Strategy
}

// DefaultConfig returns a Config with default pool and batch settings.
func DefaultConfig() Config {
	return Config{
		Workers:        DefaultWorkers,
		MaxWrites:      DefaultMaxWrites,
		QuiesceTimeout: DefaultQuiesceTimeout,
		Strategy:       StrategyParallel,
	}
}

// withDefaults fills zero values.
func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.MaxWrites <= 0 {
		c.MaxWrites = DefaultMaxWrites
	}
	if c.QuiesceTimeout <= 0 {
		c.QuiesceTimeout = DefaultQuiesceTimeout
	}
	if c.Strategy == "" {
		c.Strategy = StrategyParallel
	}
	return c
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	for name, p := range map[string]string{"base path": c.BasePath, "legacy base path": c.LegacyBasePath} {
		if p != "" && !docstore.IsDocumentPath(p) {
			errs = append(errs, fmt.Errorf("%s %q must address a document", name, p))
		}
	}
	switch c.Strategy {
	case "", StrategyParallel, StrategyLinear:
	default:
		errs = append(errs, fmt.Errorf("unknown strategy %q", c.Strategy))
	}
	if c.RateLimit < 0 {
		errs = append(errs, errors.NewStd("rate limit must not be negative"))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.New(errors.Join(errs...)).
		Component("migration").
		Category(errors.CategoryConfiguration).
		Build()
}

// basePath returns the document path used by strategy.
func (c *Config) basePath(s BasePathStrategy) string {
	if s == BasePathLegacy {
		return c.LegacyBasePath
	}
	return c.BasePath
}
