package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/sirupsen/logrus"

	"github.com/RaffaelBild/gta-benchmark/pkg/constants"
)

// Run outcomes used as the status label.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// PrometheusConfig configures run metrics
type PrometheusConfig struct {
	Namespace    string            `json:"namespace" mapstructure:"namespace"`
	ListenAddr   string            `json:"listen_addr" mapstructure:"listen_addr"`
	Path         string            `json:"path" mapstructure:"path"`
	TextfilePath string            `json:"textfile_path" mapstructure:"textfile_path"`
	PushGateway  string            `json:"push_gateway" mapstructure:"push_gateway"`
	PushJob      string            `json:"push_job" mapstructure:"push_job"`
	Labels       map[string]string `json:"labels" mapstructure:"labels"`
}

// PrometheusMetrics records benchmark progress in a private registry
type PrometheusMetrics struct {
	logger   *logrus.Logger
	registry *prometheus.Registry
	server   *http.Server
	config   *PrometheusConfig
	mu       sync.Mutex

	runsTotal      *prometheus.CounterVec
	engineDuration *prometheus.HistogramVec
	resultRows     *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a new Prometheus metrics instance
func NewPrometheusMetrics(config *PrometheusConfig, logger *logrus.Logger) (*PrometheusMetrics, error) {
	if config == nil {
		config = getDefaultPrometheusConfig()
	}
	if config.Namespace == "" {
		config.Namespace = constants.MetricsNamespace
	}
	if config.Path == "" {
		config.Path = "/metrics"
	}
	if config.PushJob == "" {
		config.PushJob = constants.DefaultPushJob
	}

	if logger == nil {
		logger = logrus.New()
	}

	pm := &PrometheusMetrics{
		logger:   logger,
		registry: prometheus.NewRegistry(),
		config:   config,
	}

	pm.initializeMetrics()

	if err := pm.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return pm, nil
}

// initializeMetrics initializes all Prometheus metrics
func (pm *PrometheusMetrics) initializeMetrics() {
	namespace := pm.config.Namespace
	constLabels := prometheus.Labels(pm.config.Labels)

	pm.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "runs_total",
			Help:        "Total number of engine invocations",
			ConstLabels: constLabels,
		},
		[]string{"experiment", "status"},
	)

	pm.engineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "engine_duration_seconds",
			Help:        "Duration of a single anonymization in seconds",
			Buckets:     prometheus.ExponentialBuckets(0.1, 2, 14),
			ConstLabels: constLabels,
		},
		[]string{"experiment", "privacy_model"},
	)

	pm.resultRows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "result_rows",
			Help:        "Number of rows in the result table",
			ConstLabels: constLabels,
		},
		[]string{"experiment"},
	)
}

// registerMetrics registers all metrics with the Prometheus registry
func (pm *PrometheusMetrics) registerMetrics() error {
	metrics := []prometheus.Collector{
		pm.runsTotal,
		pm.engineDuration,
		pm.resultRows,
	}

	for _, metric := range metrics {
		if err := pm.registry.Register(metric); err != nil {
			return fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return nil
}

// RecordRun records one engine invocation
func (pm *PrometheusMetrics) RecordRun(experiment, privacyModel string, duration time.Duration, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
	}
	pm.runsTotal.WithLabelValues(experiment, status).Inc()
	pm.engineDuration.WithLabelValues(experiment, privacyModel).Observe(duration.Seconds())
}

// SetResultRows sets the current size of the result table
func (pm *PrometheusMetrics) SetResultRows(experiment string, rows int) {
	pm.resultRows.WithLabelValues(experiment).Set(float64(rows))
}

// Start serves the registry over HTTP when a listen address is configured
func (pm *PrometheusMetrics) Start(ctx context.Context) error {
	if pm.config.ListenAddr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(pm.config.Path, promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	pm.mu.Lock()
	pm.server = &http.Server{
		Addr:              pm.config.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := pm.server
	pm.mu.Unlock()

	pm.logger.WithFields(logrus.Fields{
		"addr": pm.config.ListenAddr,
		"path": pm.config.Path,
	}).Info("Starting Prometheus metrics server")

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			pm.logger.WithError(err).Error("Metrics server failed")
		}
	}()

	return nil
}

// Stop shuts the metrics server down
func (pm *PrometheusMetrics) Stop(ctx context.Context) error {
	pm.mu.Lock()
	server := pm.server
	pm.server = nil
	pm.mu.Unlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// Flush writes the registry to the textfile and pushes it to the gateway,
// whichever are configured. Both are attempted even if the first fails.
func (pm *PrometheusMetrics) Flush(ctx context.Context) error {
	var errs []error

	if pm.config.TextfilePath != "" {
		if err := prometheus.WriteToTextfile(pm.config.TextfilePath, pm.registry); err != nil {
			errs = append(errs, fmt.Errorf("failed to write metrics textfile: %w", err))
		} else {
			pm.logger.WithField("path", pm.config.TextfilePath).Debug("Wrote metrics textfile")
		}
	}

	if pm.config.PushGateway != "" {
		pusher := push.New(pm.config.PushGateway, pm.config.PushJob).Gatherer(pm.registry)
		if err := pusher.PushContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to push metrics: %w", err))
		} else {
			pm.logger.WithField("gateway", pm.config.PushGateway).Debug("Pushed metrics")
		}
	}

	return errors.Join(errs...)
}

// GetRegistry returns the Prometheus registry
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}

// GetConfig returns the configuration
func (pm *PrometheusMetrics) GetConfig() *PrometheusConfig {
	return pm.config
}

func getDefaultPrometheusConfig() *PrometheusConfig {
	return &PrometheusConfig{
		Namespace: constants.MetricsNamespace,
		Path:      "/metrics",
		PushJob:   constants.DefaultPushJob,
		Labels:    make(map[string]string),
	}
}
