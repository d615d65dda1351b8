package app

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaffaelBild/gta-benchmark/internal/anonymizer"
	"github.com/RaffaelBild/gta-benchmark/internal/config"
	"github.com/RaffaelBild/gta-benchmark/internal/experiment"
	"github.com/RaffaelBild/gta-benchmark/pkg/errors"
)

type stubEngine struct {
	calls int
}

func (s *stubEngine) Anonymize(_ context.Context, _ *anonymizer.Data, config anonymizer.Config) (*anonymizer.Result, error) {
	s.calls++
	return &anonymizer.Result{Optimum: &anonymizer.Transformation{
		Levels: anonymizer.GeneralizationScheme{},
		Score: anonymizer.Score{
			RelativeQuality: 0.5,
			Metadata: []anonymizer.QualityMetadata{
				{Parameter: anonymizer.PayoutParameter, Value: config.CostBenefit.PublisherBenefit},
			},
		},
	}}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	testdata, err := filepath.Abs(filepath.Join("..", "experiment", "testdata"))
	require.NoError(t, err)

	// Run in an empty directory so no gta-bench.yaml is picked up
	dir := t.TempDir()
	chdir(t, dir)
	cfg, err := config.Load("", nil)
	require.NoError(t, err)

	cfg.Engine.Command = "unused"
	cfg.Paths.Data = filepath.Join(testdata, "data")
	cfg.Paths.Hierarchies = filepath.Join(testdata, "hierarchies")
	cfg.Paths.Results = filepath.Join(dir, "results")
	cfg.Metrics.TextfilePath = filepath.Join(dir, "gta.prom")
	return cfg
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return logger
}

func TestSetupLogger(t *testing.T) {
	logger := SetupLogger("debug", "json")
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	logger = SetupLogger("nonsense", "text")
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}

func TestNewInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.Command = ""

	_, err := New(context.Background(), cfg, testLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestNewCacheUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Redis.Enabled = true
	cfg.Cache.Redis.Addr = "127.0.0.1:1"

	_, err := New(context.Background(), cfg, testLogger(), WithEngine(&stubEngine{}))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotConnected)
}

func TestRunSafepub(t *testing.T) {
	cfg := testConfig(t)
	engine := &stubEngine{}

	a, err := New(context.Background(), cfg, testLogger(), WithEngine(engine))
	require.NoError(t, err)
	defer a.Close()
	assert.NotEmpty(t, a.RunID())

	require.NoError(t, a.Run(context.Background(), "safepub", experiment.RunSafepub))
	assert.Equal(t, 42, engine.calls)

	lines := readLines(t, filepath.Join(cfg.Paths.Results, "adult-experiment-sdgs.csv"))
	assert.Len(t, lines, 43)
	assert.Equal(t, "adversary gain = publisher loss;privacy model;Payout", lines[0])

	prom, err := os.ReadFile(cfg.Metrics.TextfilePath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `gta_bench_runs_total{experiment="experiment-sdgs",status="success"} 42`)
	assert.Contains(t, string(prom), `gta_bench_result_rows{experiment="experiment-sdgs"} 42`)
}

func TestRunFailureStillFlushes(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, testLogger(), WithEngine(&stubEngine{}))
	require.NoError(t, err)
	defer a.Close()

	sweepErr := fmt.Errorf("sweep broke")
	err = a.Run(context.Background(), "broken", func(ctx context.Context, opts experiment.Options) (*experiment.Table, error) {
		opts.Metrics.RecordRun("broken", "KAnonymity(5)", 0, sweepErr)
		return nil, sweepErr
	})
	assert.ErrorIs(t, err, sweepErr)

	prom, err := os.ReadFile(cfg.Metrics.TextfilePath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `gta_bench_runs_total{experiment="broken",status="failure"} 1`)
}

func TestOptions(t *testing.T) {
	cfg := testConfig(t)
	cfg.Benchmark.Repetitions = -1
	engine := &stubEngine{}

	a, err := New(context.Background(), cfg, testLogger(), WithEngine(engine))
	require.NoError(t, err)
	defer a.Close()

	opts := a.Options()
	assert.Same(t, engine, opts.Engine)
	assert.Len(t, opts.Sinks, 1)
	assert.Equal(t, -1, opts.Repetitions)
	assert.Equal(t, cfg.Paths.Data, opts.Setup.DataDir)
	assert.NotNil(t, opts.Metrics)
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestNewPreflightFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Paths.Hierarchies = filepath.Join(t.TempDir(), "missing")

	_, err := New(context.Background(), cfg, testLogger(), WithEngine(&stubEngine{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "preflight checks failed")
	assert.Contains(t, err.Error(), "hierarchies")
}

func TestNewEngineCommandMissing(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.Command = "gta-bench-no-such-engine"

	_, err := New(context.Background(), cfg, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine:")
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
