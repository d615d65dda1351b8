package app

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/RaffaelBild/gta-benchmark/internal/anonymizer"
	"github.com/RaffaelBild/gta-benchmark/internal/anonymizer/bridge"
	"github.com/RaffaelBild/gta-benchmark/internal/anonymizer/cache"
	"github.com/RaffaelBild/gta-benchmark/internal/benchmark"
	"github.com/RaffaelBild/gta-benchmark/internal/config"
	"github.com/RaffaelBild/gta-benchmark/internal/experiment"
	"github.com/RaffaelBild/gta-benchmark/internal/observability/health"
	"github.com/RaffaelBild/gta-benchmark/internal/observability/metrics"
	"github.com/RaffaelBild/gta-benchmark/internal/storage"
	"github.com/RaffaelBild/gta-benchmark/internal/storage/interfaces"
)

// flushTimeout bounds the final metrics flush, which also runs after the
// sweep context was cancelled.
const flushTimeout = 30 * time.Second

// SweepFunc runs one experiment with the wired collaborators
type SweepFunc func(ctx context.Context, opts experiment.Options) (*experiment.Table, error)

// App holds everything a sweep needs
type App struct {
	config  *config.Config
	logger  *logrus.Logger
	runID   string
	metrics *metrics.PrometheusMetrics
	engine  anonymizer.Engine
	cache   *cache.Engine
	sinks   []interfaces.ResultSink
}

// Option customizes an App
type Option func(*App)

// WithEngine replaces the subprocess engine. The result cache, if enabled,
// still wraps it.
func WithEngine(engine anonymizer.Engine) Option {
	return func(a *App) { a.engine = engine }
}

// SetupLogger creates the process logger
func SetupLogger(level, format string) *logrus.Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

// New validates the configuration, runs the preflight checks and connects
// the engine, cache, sinks and metrics. Whatever was connected is closed
// again if a later step fails.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = SetupLogger(cfg.Log.Level, cfg.Log.Format)
	}

	a := &App{
		config: cfg,
		logger: logger,
		runID:  uuid.NewString(),
	}
	for _, opt := range opts {
		opt(a)
	}

	m, err := metrics.NewPrometheusMetrics(&cfg.Metrics, logger)
	if err != nil {
		return nil, err
	}
	a.metrics = m

	checker := health.NewChecker(0, logger)
	checker.RegisterCheck(health.DirectoryCheck("data", cfg.Paths.Data, true))
	checker.RegisterCheck(health.DirectoryCheck("hierarchies", cfg.Paths.Hierarchies, true))
	checker.RegisterCheck(health.WritableDirectoryCheck("results", cfg.Paths.Results, true))
	if cfg.Metrics.TextfilePath != "" {
		checker.RegisterCheck(health.WritableDirectoryCheck("metrics textfile", filepath.Dir(cfg.Metrics.TextfilePath), false))
	}

	if a.engine == nil {
		engine, err := bridge.NewEngine(&cfg.Engine, logger)
		if err != nil {
			return nil, err
		}
		a.engine = engine
		checker.RegisterCheck(health.CommandCheck("engine", cfg.Engine.Command, true))
	}

	if err := checker.Run(ctx).Err(); err != nil {
		return nil, err
	}

	if cfg.CacheEnabled() {
		c, err := cache.NewCache(&cfg.Cache.Redis.Config, a.engine, logger)
		if err != nil {
			return nil, err
		}
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
		a.cache = c
		a.engine = c
	}

	sinks, err := storage.NewFactory(logger).CreateSinks(ctx, cfg.StorageConfig())
	if err != nil {
		a.Close()
		return nil, err
	}
	a.sinks = sinks

	if err := a.metrics.Start(ctx); err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

// RunID identifies this invocation in logs
func (a *App) RunID() string {
	return a.runID
}

// Options returns the experiment options wired to this App
func (a *App) Options() experiment.Options {
	sinks := make([]experiment.Sink, len(a.sinks))
	for i, s := range a.sinks {
		sinks[i] = s
	}
	return experiment.Options{
		Engine:      a.engine,
		Setup:       benchmark.NewSetup(a.config.Paths.Data, a.config.Paths.Hierarchies, a.logger),
		Sinks:       sinks,
		Metrics:     a.metrics,
		Logger:      a.logger,
		Repetitions: a.config.Benchmark.Repetitions,
	}
}

// Run executes a sweep and flushes metrics afterwards, also when the sweep
// failed or was cancelled.
func (a *App) Run(ctx context.Context, name string, sweep SweepFunc) error {
	logger := a.logger.WithFields(logrus.Fields{
		"run_id":     a.runID,
		"experiment": name,
	})
	logger.Info("Starting sweep")

	start := time.Now()
	table, err := sweep(ctx, a.Options())

	flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if ferr := a.metrics.Flush(flushCtx); ferr != nil {
		logger.WithError(ferr).Warn("Failed to flush metrics")
	}

	if err != nil {
		logger.WithError(err).WithField("duration", time.Since(start)).Error("Sweep failed")
		return err
	}

	logger.WithFields(logrus.Fields{
		"table":    table.Name(),
		"rows":     table.Rows(),
		"duration": time.Since(start),
	}).Info("Sweep completed")

	return nil
}

// Close releases sinks, the cache connection and the metrics server
func (a *App) Close() error {
	storage.CloseAll(a.sinks, a.logger)
	a.sinks = nil

	if a.cache != nil {
		hits, misses := a.cache.Stats()
		a.logger.WithFields(logrus.Fields{
			"hits":   hits,
			"misses": misses,
		}).Debug("Result cache statistics")
		if err := a.cache.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close result cache")
		}
	}

	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.metrics.Stop(ctx)
	}
	return nil
}
