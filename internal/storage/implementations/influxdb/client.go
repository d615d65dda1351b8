package influxdb

import (
	"context"
	"math"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sirupsen/logrus"

	"github.com/RaffaelBild/gta-benchmark/internal/experiment"
	"github.com/RaffaelBild/gta-benchmark/pkg/constants"
	"github.com/RaffaelBild/gta-benchmark/pkg/errors"
)

// InfluxDBConfig contains configuration for InfluxDB storage
type InfluxDBConfig struct {
	URL          string        `json:"url" mapstructure:"url"`
	Token        string        `json:"token" mapstructure:"token"`
	Organization string        `json:"organization" mapstructure:"organization"`
	Bucket       string        `json:"bucket" mapstructure:"bucket"`
	Measurement  string        `json:"measurement" mapstructure:"measurement"`
	Timeout      time.Duration `json:"timeout" mapstructure:"timeout"`
	UseGZip      bool          `json:"use_gzip" mapstructure:"use_gzip"`
}

// InfluxDBStorage writes one point per result row. Points are keyed by the
// row's labels and completion time, so rewriting a table overwrites them.
type InfluxDBStorage struct {
	config    *InfluxDBConfig
	client    influxdb2.Client
	writeAPI  api.WriteAPIBlocking
	logger    *logrus.Logger
	connected bool
}

// NewInfluxDBStorage creates a new InfluxDB storage instance
func NewInfluxDBStorage(config *InfluxDBConfig, logger *logrus.Logger) (*InfluxDBStorage, error) {
	if config == nil {
		return nil, errors.NewConfigurationError(errors.CodeInvalidConfig, "InfluxDB config cannot be nil")
	}

	if config.URL == "" || config.Bucket == "" {
		return nil, errors.NewConfigurationError(errors.CodeInvalidConfig, "InfluxDB url and bucket are required")
	}

	if logger == nil {
		logger = logrus.New()
	}

	// Set defaults
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Measurement == "" {
		config.Measurement = constants.DefaultInfluxMeasurement
	}

	return &InfluxDBStorage{
		config: config,
		logger: logger,
	}, nil
}

// Connect establishes connection to InfluxDB
func (s *InfluxDBStorage) Connect(ctx context.Context) error {
	if s.connected {
		return nil
	}

	options := influxdb2.DefaultOptions()
	options.SetUseGZip(s.config.UseGZip)
	options.SetPrecision(time.Nanosecond)
	options.SetHTTPRequestTimeout(uint(s.config.Timeout.Seconds()))

	client := influxdb2.NewClientWithOptions(s.config.URL, s.config.Token, options)

	ok, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return errors.WrapError(err, errors.ErrorTypeIO, errors.CodeNotConnected, "failed to connect to InfluxDB")
	}
	if !ok {
		client.Close()
		return errors.NewIOError(errors.CodeNotConnected, "InfluxDB ping failed")
	}

	s.client = client
	s.writeAPI = client.WriteAPIBlocking(s.config.Organization, s.config.Bucket)
	s.connected = true

	s.logger.WithFields(logrus.Fields{
		"url":          s.config.URL,
		"organization": s.config.Organization,
		"bucket":       s.config.Bucket,
	}).Info("Connected to InfluxDB")

	return nil
}

// Name identifies the sink
func (s *InfluxDBStorage) Name() string { return "influxdb" }

// Write writes every row of the snapshot
func (s *InfluxDBStorage) Write(ctx context.Context, snapshot *experiment.Snapshot) error {
	if !s.connected {
		return errors.ErrNotConnected.WithDetails("InfluxDB")
	}

	points := s.points(snapshot)
	if len(points) == 0 {
		return nil
	}

	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return errors.WrapError(err, errors.ErrorTypeIO, errors.CodeWriteFailed, "failed to write to InfluxDB")
	}

	s.logger.WithFields(logrus.Fields{
		"experiment": snapshot.Name,
		"points":     len(points),
	}).Debug("Wrote results to InfluxDB")

	return nil
}

// Close closes the connection to InfluxDB
func (s *InfluxDBStorage) Close() error {
	if !s.connected {
		return nil
	}

	s.client.Close()
	s.connected = false
	s.logger.Info("Disconnected from InfluxDB")

	return nil
}

func (s *InfluxDBStorage) points(snapshot *experiment.Snapshot) []*write.Point {
	points := make([]*write.Point, 0, len(snapshot.Rows))
	for _, r := range snapshot.Rows {
		p := influxdb2.NewPointWithMeasurement(s.config.Measurement).
			AddTag("experiment", snapshot.Name).
			SetTime(r.UpdatedAt)
		for i, l := range r.Labels {
			p.AddTag(fieldKey(snapshot.RunColumns[i]), l)
		}
		fields := 0
		for i, v := range r.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			p.AddField(fieldKey(snapshot.ValueColumns[i]), v)
			fields++
		}
		// A point needs at least one field
		if fields > 0 {
			points = append(points, p.SortTags().SortFields())
		}
	}
	return points
}

var keyReplacer = strings.NewReplacer(
	" ", "_", "(", "", ")", "", "[", "", "]", "", "%", "pct", ".", "", "/", "_", "=", "_",
)

// fieldKey turns a column name like "Quality (50% avg. risk)" into
// "quality_50pct_avg_risk".
func fieldKey(column string) string {
	key := strings.ToLower(keyReplacer.Replace(column))
	for strings.Contains(key, "__") {
		key = strings.ReplaceAll(key, "__", "_")
	}
	return strings.Trim(key, "_")
}
