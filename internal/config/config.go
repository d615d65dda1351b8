package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/RaffaelBild/gta-benchmark/internal/anonymizer/bridge"
	"github.com/RaffaelBild/gta-benchmark/internal/anonymizer/cache"
	"github.com/RaffaelBild/gta-benchmark/internal/observability/metrics"
	"github.com/RaffaelBild/gta-benchmark/internal/storage"
	"github.com/RaffaelBild/gta-benchmark/internal/storage/implementations/file"
	"github.com/RaffaelBild/gta-benchmark/internal/storage/implementations/influxdb"
	"github.com/RaffaelBild/gta-benchmark/internal/storage/implementations/postgres"
	"github.com/RaffaelBild/gta-benchmark/internal/storage/implementations/s3"
	"github.com/RaffaelBild/gta-benchmark/pkg/constants"
	"github.com/RaffaelBild/gta-benchmark/pkg/errors"
)

// Config is the benchmark driver configuration
type Config struct {
	Paths     PathsConfig              `mapstructure:"paths"`
	Engine    bridge.Config            `mapstructure:"engine"`
	Cache     CacheConfig              `mapstructure:"cache"`
	Sinks     SinksConfig              `mapstructure:"sinks"`
	Metrics   metrics.PrometheusConfig `mapstructure:"metrics"`
	Log       LogConfig                `mapstructure:"log"`
	Benchmark BenchmarkConfig          `mapstructure:"benchmark"`
}

// PathsConfig locates inputs and the local result directory
type PathsConfig struct {
	Data        string `mapstructure:"data"`
	Hierarchies string `mapstructure:"hierarchies"`
	Results     string `mapstructure:"results"`
	SyncWrites  bool   `mapstructure:"sync_writes"`
}

// CacheConfig contains result cache settings
type CacheConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	cache.Config `mapstructure:",squash"`
}

// SinksConfig contains the optional result sinks. The file sink under
// paths.results is always on.
type SinksConfig struct {
	S3       S3SinkConfig       `mapstructure:"s3"`
	Postgres PostgresSinkConfig `mapstructure:"postgres"`
	InfluxDB InfluxDBSinkConfig `mapstructure:"influxdb"`
}

type S3SinkConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	s3.S3Config `mapstructure:",squash"`
}

type PostgresSinkConfig struct {
	Enabled                 bool `mapstructure:"enabled"`
	postgres.PostgresConfig `mapstructure:",squash"`
}

type InfluxDBSinkConfig struct {
	Enabled                 bool `mapstructure:"enabled"`
	influxdb.InfluxDBConfig `mapstructure:",squash"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// BenchmarkConfig contains sweep settings
type BenchmarkConfig struct {
	// Repetitions per run: 0 or 1 runs once, -1 uses the dataset's default,
	// n > 1 reports mean and standard deviation over n runs.
	Repetitions int `mapstructure:"repetitions"`
}

// flagKeys maps command line flags to configuration keys
var flagKeys = map[string]string{
	"log-level":      "log.level",
	"log-format":     "log.format",
	"repetitions":    "benchmark.repetitions",
	"data-dir":       "paths.data",
	"hierarchy-dir":  "paths.hierarchies",
	"results-dir":    "paths.results",
	"engine-command": "engine.command",
}

// Load reads configuration from defaults, the config file, GTA_BENCH_*
// environment variables and flags, in increasing precedence. An empty path
// looks for gta-bench.yaml in the working directory and tolerates its
// absence; an explicit path must exist.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(constants.DefaultConfigName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, errors.WrapError(err, errors.ErrorTypeConfiguration, errors.CodeInvalidConfig, "error reading config file")
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("error binding flag %s: %w", name, err)
				}
			}
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeConfiguration, errors.CodeInvalidConfig, "error unmarshaling config")
	}

	return config, nil
}

// setDefaults registers every key so that environment variables can
// override keys the config file does not mention.
func setDefaults(v *viper.Viper) {
	v.SetDefault("paths.data", constants.DefaultDataDir)
	v.SetDefault("paths.hierarchies", constants.DefaultHierarchyDir)
	v.SetDefault("paths.results", constants.DefaultResultsDir)
	v.SetDefault("paths.sync_writes", false)

	v.SetDefault("engine.command", "")
	v.SetDefault("engine.args", []string{})
	v.SetDefault("engine.env", map[string]string{})
	v.SetDefault("engine.work_dir", "")

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.dial_timeout", 5*time.Second)
	v.SetDefault("cache.redis.ttl", 0)
	v.SetDefault("cache.redis.key_prefix", constants.DefaultCacheKeyPrefix)

	v.SetDefault("sinks.s3.enabled", false)
	v.SetDefault("sinks.s3.region", "us-east-1")
	v.SetDefault("sinks.s3.bucket", "")
	v.SetDefault("sinks.s3.access_key_id", "")
	v.SetDefault("sinks.s3.secret_access_key", "")
	v.SetDefault("sinks.s3.session_token", "")
	v.SetDefault("sinks.s3.endpoint", "")
	v.SetDefault("sinks.s3.force_path_style", false)
	v.SetDefault("sinks.s3.disable_ssl", false)
	v.SetDefault("sinks.s3.prefix", "")
	v.SetDefault("sinks.s3.max_retries", 3)
	v.SetDefault("sinks.s3.storage_class", "")

	v.SetDefault("sinks.postgres.enabled", false)
	v.SetDefault("sinks.postgres.host", "localhost")
	v.SetDefault("sinks.postgres.port", 5432)
	v.SetDefault("sinks.postgres.database", "")
	v.SetDefault("sinks.postgres.username", "")
	v.SetDefault("sinks.postgres.password", "")
	v.SetDefault("sinks.postgres.ssl_mode", "disable")
	v.SetDefault("sinks.postgres.table", constants.DefaultPostgresTable)
	v.SetDefault("sinks.postgres.connect_timeout", 10*time.Second)

	v.SetDefault("sinks.influxdb.enabled", false)
	v.SetDefault("sinks.influxdb.url", "http://localhost:8086")
	v.SetDefault("sinks.influxdb.token", "")
	v.SetDefault("sinks.influxdb.organization", "")
	v.SetDefault("sinks.influxdb.bucket", "")
	v.SetDefault("sinks.influxdb.measurement", constants.DefaultInfluxMeasurement)
	v.SetDefault("sinks.influxdb.timeout", 30*time.Second)
	v.SetDefault("sinks.influxdb.use_gzip", false)

	v.SetDefault("metrics.namespace", constants.MetricsNamespace)
	v.SetDefault("metrics.listen_addr", "")
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.textfile_path", "")
	v.SetDefault("metrics.push_gateway", "")
	v.SetDefault("metrics.push_job", constants.DefaultPushJob)
	v.SetDefault("metrics.labels", map[string]string{})

	v.SetDefault("log.level", constants.DefaultLogLevel)
	v.SetDefault("log.format", constants.DefaultLogFormat)

	v.SetDefault("benchmark.repetitions", 0)
}

// Validate checks the configuration and reports every problem at once
func (c *Config) Validate() error {
	ve := errors.NewValidationErrors()

	if c.Paths.Data == "" {
		ve.Add("paths.data", "is required", c.Paths.Data)
	}
	if c.Paths.Hierarchies == "" {
		ve.Add("paths.hierarchies", "is required", c.Paths.Hierarchies)
	}
	if c.Paths.Results == "" {
		ve.Add("paths.results", "is required", c.Paths.Results)
	}

	if c.Engine.Command == "" {
		ve.Add("engine.command", "is required", c.Engine.Command)
	}

	if c.Cache.Redis.Enabled {
		if c.Cache.Redis.Addr == "" {
			ve.Add("cache.redis.addr", "is required when the cache is enabled", c.Cache.Redis.Addr)
		}
		if c.Cache.Redis.TTL < 0 {
			ve.Add("cache.redis.ttl", "must not be negative", c.Cache.Redis.TTL)
		}
	}

	if c.Sinks.S3.Enabled && c.Sinks.S3.Bucket == "" {
		ve.Add("sinks.s3.bucket", "is required when the sink is enabled", c.Sinks.S3.Bucket)
	}
	if c.Sinks.Postgres.Enabled {
		if c.Sinks.Postgres.Database == "" {
			ve.Add("sinks.postgres.database", "is required when the sink is enabled", c.Sinks.Postgres.Database)
		}
		if c.Sinks.Postgres.Port < 1 || c.Sinks.Postgres.Port > 65535 {
			ve.Add("sinks.postgres.port", "is not a valid port", c.Sinks.Postgres.Port)
		}
	}
	if c.Sinks.InfluxDB.Enabled {
		if c.Sinks.InfluxDB.URL == "" {
			ve.Add("sinks.influxdb.url", "is required when the sink is enabled", c.Sinks.InfluxDB.URL)
		}
		if c.Sinks.InfluxDB.Bucket == "" {
			ve.Add("sinks.influxdb.bucket", "is required when the sink is enabled", c.Sinks.InfluxDB.Bucket)
		}
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		ve.Add("log.level", "is not a valid level", c.Log.Level)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		ve.Add("log.format", "must be json or text", c.Log.Format)
	}

	if c.Benchmark.Repetitions < -1 {
		ve.Add("benchmark.repetitions", "must be -1 or greater", c.Benchmark.Repetitions)
	}

	if ve.HasErrors() {
		return ve
	}
	return nil
}

// StorageConfig selects the result sinks
func (c *Config) StorageConfig() storage.Config {
	sc := storage.Config{
		File: file.FileStorageConfig{
			BasePath:   c.Paths.Results,
			SyncWrites: c.Paths.SyncWrites,
		},
	}
	if c.Sinks.S3.Enabled {
		s3Config := c.Sinks.S3.S3Config
		sc.S3 = &s3Config
	}
	if c.Sinks.Postgres.Enabled {
		pgConfig := c.Sinks.Postgres.PostgresConfig
		sc.Postgres = &pgConfig
	}
	if c.Sinks.InfluxDB.Enabled {
		influxConfig := c.Sinks.InfluxDB.InfluxDBConfig
		sc.InfluxDB = &influxConfig
	}
	return sc
}

// CacheEnabled reports whether engine results go through Redis
func (c *Config) CacheEnabled() bool {
	return c.Cache.Redis.Enabled
}
