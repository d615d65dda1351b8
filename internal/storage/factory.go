package storage

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/RaffaelBild/gta-benchmark/internal/storage/implementations/file"
	"github.com/RaffaelBild/gta-benchmark/internal/storage/implementations/influxdb"
	"github.com/RaffaelBild/gta-benchmark/internal/storage/implementations/postgres"
	"github.com/RaffaelBild/gta-benchmark/internal/storage/implementations/s3"
	"github.com/RaffaelBild/gta-benchmark/internal/storage/interfaces"
)

// Config selects the result sinks. The file sink is always created; the
// others only when their section is set.
type Config struct {
	File     file.FileStorageConfig
	S3       *s3.S3Config
	Postgres *postgres.PostgresConfig
	InfluxDB *influxdb.InfluxDBConfig
}

// Factory creates and connects result sinks
type Factory struct {
	logger *logrus.Logger
}

// NewFactory creates a new storage factory
func NewFactory(logger *logrus.Logger) *Factory {
	if logger == nil {
		logger = logrus.New()
	}
	return &Factory{logger: logger}
}

// CreateSinks creates every configured sink and connects it. On failure the
// sinks created so far are closed.
func (f *Factory) CreateSinks(ctx context.Context, config Config) ([]interfaces.ResultSink, error) {
	var sinks []interfaces.ResultSink

	fail := func(name string, err error) ([]interfaces.ResultSink, error) {
		CloseAll(sinks, f.logger)
		return nil, fmt.Errorf("failed to create %s sink: %w", name, err)
	}

	fileConfig := config.File
	fileSink, err := file.NewFileStorage(&fileConfig, f.logger)
	if err != nil {
		return fail("file", err)
	}
	sinks = append(sinks, fileSink)

	if config.S3 != nil {
		sink, err := s3.NewS3Storage(config.S3, f.logger)
		if err != nil {
			return fail("s3", err)
		}
		if err := sink.Connect(ctx); err != nil {
			return fail("s3", err)
		}
		sinks = append(sinks, sink)
	}

	if config.Postgres != nil {
		sink, err := postgres.NewPostgresStorage(config.Postgres, f.logger)
		if err != nil {
			return fail("postgres", err)
		}
		if err := sink.Connect(ctx); err != nil {
			return fail("postgres", err)
		}
		sinks = append(sinks, sink)
	}

	if config.InfluxDB != nil {
		sink, err := influxdb.NewInfluxDBStorage(config.InfluxDB, f.logger)
		if err != nil {
			return fail("influxdb", err)
		}
		if err := sink.Connect(ctx); err != nil {
			return fail("influxdb", err)
		}
		sinks = append(sinks, sink)
	}

	names := make([]string, len(sinks))
	for i, s := range sinks {
		names[i] = s.Name()
	}
	f.logger.WithField("sinks", names).Info("Created result sinks")

	return sinks, nil
}

// CloseAll closes every sink, logging failures.
func CloseAll(sinks []interfaces.ResultSink, logger *logrus.Logger) {
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			logger.WithError(err).WithField("sink", s.Name()).Warn("Failed to close sink")
		}
	}
}
