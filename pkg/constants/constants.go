package constants

// Application constants
const (
	// Application metadata
	AppName        = "gta-bench"
	AppDescription = "Game-theoretic anonymization benchmark driver"
	AppVersion     = "0.1.0"

	// Environment and config file
	EnvPrefix         = "GTA_BENCH"
	DefaultConfigName = "gta-bench"

	// Default locations, relative to the working directory
	DefaultDataDir        = "data"
	DefaultHierarchyDir   = "hierarchies"
	DefaultResultsDir     = "results"
	DefaultFieldDelimiter = ';'

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	// Experiment tags, used in result file names
	ExperimentGainLoss = "experiment3"
	ExperimentSafepub  = "experiment-sdgs"

	// Result file extension
	ResultFileExt = ".csv"

	// Metrics
	MetricsNamespace = "gta_bench"
	DefaultPushJob   = "gta_bench"

	// Sinks
	DefaultInfluxMeasurement = "gta_benchmark"
	DefaultPostgresTable     = "benchmark_results"
	DefaultCacheKeyPrefix    = "gta-bench:result"
)
