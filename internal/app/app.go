// Package app wires the stores, telemetry and migration engine used by the
// invsync commands.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tphakala/invsync/internal/conf"
	"github.com/tphakala/invsync/internal/datastore"
	"github.com/tphakala/invsync/internal/docstore"
	"github.com/tphakala/invsync/internal/errors"
	"github.com/tphakala/invsync/internal/kinds"
	"github.com/tphakala/invsync/internal/logger"
	"github.com/tphakala/invsync/internal/migration"
	"github.com/tphakala/invsync/internal/observability"
	"github.com/tphakala/invsync/internal/observability/metrics"
	"github.com/tphakala/invsync/internal/runlog"
	"github.com/tphakala/invsync/internal/sequence"
	"github.com/tphakala/invsync/internal/source"
)

// sentryFlushTimeout bounds delivery of buffered error reports on Close.
const sentryFlushTimeout = 2 * time.Second

// BuildInfo carries version metadata injected at link time.
type BuildInfo struct {
	Version   string
	BuildDate string
}

// App holds everything a command needs. Fields are populated by Open.
type App struct {
	Settings *conf.Settings
	Log      logger.Logger

	Source   *source.SQLSource
	Store    *docstore.Client
	Counter  *sequence.SQLCounter
	Runs     *runlog.Store
	Registry *migration.Registry
	Engine   *migration.Engine
	Metrics  *prometheus.Registry

	central  *logger.CentralLogger
	managers []datastore.Manager
	sentry   bool
}

// InitLogging installs the central logger described by settings and
// returns it. Debug forces the default level to debug.
func InitLogging(settings *conf.Settings) (*logger.CentralLogger, error) {
	cfg := settings.Logging
	if settings.Debug {
		cfg.DefaultLevel = "debug"
		if cfg.Console != nil {
			console := *cfg.Console
			console.Level = "debug"
			cfg.Console = &console
		}
	}
	cl, err := logger.NewCentralLogger(&cfg)
	if err != nil {
		return nil, errors.New(err).
			Component("app").
			Category(errors.CategoryConfiguration).
			Context("operation", "init_logging").
			Build()
	}
	logger.SetGlobal(cl)
	return cl, nil
}

// Open opens both stores, creates their schema and builds the engine.
// The caller must Close the returned App.
func Open(settings *conf.Settings, build BuildInfo) (a *App, err error) {
	cl, err := InitLogging(settings)
	if err != nil {
		return nil, err
	}
	a = &App{
		Settings: settings,
		Log:      cl.Module("app"),
		central:  cl,
		Metrics:  prometheus.NewRegistry(),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
			a = nil
		}
	}()

	if settings.Telemetry.SentryDSN != "" {
		if err := errors.InitSentry(settings.Telemetry.SentryDSN, build.Version); err != nil {
			a.Log.Warn("error reporting disabled", logger.Error(err))
		} else {
			a.sentry = true
		}
	}

	srcDB, err := a.openStore(&settings.Source.StoreSettings, "source")
	if err != nil {
		return a, err
	}
	dstDB, err := a.openStore(&settings.Target.StoreSettings, "target")
	if err != nil {
		return a, err
	}

	a.Source = source.NewSQLSource(srcDB.DB(), settings.Source.PageSize, cl.Module("source"))
	a.Store = docstore.NewClient(docstore.NewSQLBackend(dstDB.DB()))
	a.Counter = sequence.NewSQLCounter(dstDB.DB())
	a.Runs = runlog.NewStore(dstDB.DB(), cl.Module("runlog"))

	a.Registry = kinds.Default()
	if err := settings.ApplyKindsFile(a.Registry); err != nil {
		return a, err
	}

	syncMetrics, err := metrics.NewSyncMetrics(a.Metrics)
	if err != nil {
		return a, errors.New(err).
			Component("app").
			Category(errors.CategoryGeneric).
			Context("operation", "register_metrics").
			Build()
	}

	a.Engine, err = migration.NewEngine(migration.EngineOptions{
		Config:   settings.MigrationConfig(),
		Registry: a.Registry,
		Source:   a.Source,
		Store:    a.Store,
		Counter:  a.Counter,
		Metrics:  syncMetrics,
		Runs:     a.Runs,
		Logger:   cl.Module("migration"),
	})
	if err != nil {
		return a, err
	}
	return a, nil
}

func (a *App) openStore(s *conf.StoreSettings, role string) (datastore.Manager, error) {
	m, err := datastore.Open(s.DatastoreConfig(a.central.Module("datastore")))
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", role, err)
	}
	a.managers = append(a.managers, m)
	if err := m.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize %s store: %w", role, err)
	}
	a.Log.Debug("store opened",
		logger.String("role", role),
		logger.String("location", m.Path()))
	return m, nil
}

// ServeMetrics starts the metrics endpoint when one is configured. The
// returned channel is closed once the server stops after ctx ends; it is
// nil when no endpoint is configured.
func (a *App) ServeMetrics(ctx context.Context) (<-chan struct{}, error) {
	listen := a.Settings.Telemetry.MetricsListen
	if listen == "" {
		return nil, nil
	}
	done, err := observability.NewEndpoint(listen, a.Metrics, a.central.Module("observability")).Start(ctx)
	if err != nil {
		return nil, errors.New(err).
			Component("app").
			Category(errors.CategoryNetwork).
			Context("listen", listen).
			Build()
	}
	return done, nil
}

// Close releases the stores and flushes telemetry and logs.
func (a *App) Close() error {
	var errs []error
	for _, m := range a.managers {
		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.managers = nil
	if a.sentry {
		errors.FlushSentry(sentryFlushTimeout)
	}
	if a.central != nil {
		if err := a.central.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
