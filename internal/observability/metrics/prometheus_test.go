package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPrometheusMetricsDefaults(t *testing.T) {
	pm, err := NewPrometheusMetrics(nil, nil)
	require.NoError(t, err)
	require.NotNil(t, pm)

	assert.Equal(t, "gta_bench", pm.GetConfig().Namespace)
	assert.Equal(t, "/metrics", pm.GetConfig().Path)
	assert.Equal(t, "gta_bench", pm.GetConfig().PushJob)
	assert.NotNil(t, pm.GetRegistry())
}

func TestRecordRun(t *testing.T) {
	pm, err := NewPrometheusMetrics(nil, logrus.New())
	require.NoError(t, err)

	pm.RecordRun("experiment3", "ProfitabilityProsecutor", 2*time.Second, nil)
	pm.RecordRun("experiment3", "ProfitabilityProsecutor", time.Second, nil)
	pm.RecordRun("experiment3", "KAnonymity(5)", time.Second, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(pm.runsTotal.WithLabelValues("experiment3", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.runsTotal.WithLabelValues("experiment3", StatusFailure)))
	assert.Equal(t, 2, testutil.CollectAndCount(pm.engineDuration))

	pm.SetResultRows("experiment3", 21)
	assert.Equal(t, 21.0, testutil.ToFloat64(pm.resultRows.WithLabelValues("experiment3")))
}

func TestConstLabels(t *testing.T) {
	pm, err := NewPrometheusMetrics(&PrometheusConfig{Labels: map[string]string{"dataset": "adult"}}, logrus.New())
	require.NoError(t, err)

	pm.SetResultRows("experiment-sdgs", 3)

	expected := `
# HELP gta_bench_result_rows Number of rows in the result table
# TYPE gta_bench_result_rows gauge
gta_bench_result_rows{dataset="adult",experiment="experiment-sdgs"} 3
`
	assert.NoError(t, testutil.CollectAndCompare(pm.resultRows, strings.NewReader(expected)))
}

func TestFlushTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gta_bench.prom")
	pm, err := NewPrometheusMetrics(&PrometheusConfig{TextfilePath: path}, logrus.New())
	require.NoError(t, err)

	pm.RecordRun("experiment3", "ProfitabilityProsecutor", time.Second, nil)
	require.NoError(t, pm.Flush(context.Background()))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `gta_bench_runs_total{experiment="experiment3",status="success"} 1`)
}

func TestFlushPushGateway(t *testing.T) {
	var gotPath, gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	pm, err := NewPrometheusMetrics(&PrometheusConfig{PushGateway: server.URL}, logrus.New())
	require.NoError(t, err)

	pm.SetResultRows("experiment3", 1)
	require.NoError(t, pm.Flush(context.Background()))

	assert.Equal(t, "/metrics/job/gta_bench", gotPath)
	assert.Equal(t, http.MethodPut, gotMethod)
}

func TestFlushPushGatewayFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "gta_bench.prom")
	pm, err := NewPrometheusMetrics(&PrometheusConfig{PushGateway: server.URL, TextfilePath: path}, logrus.New())
	require.NoError(t, err)

	err = pm.Flush(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to push metrics")

	// The textfile is still written
	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}

func TestStartWithoutListenAddr(t *testing.T) {
	pm, err := NewPrometheusMetrics(nil, logrus.New())
	require.NoError(t, err)

	require.NoError(t, pm.Start(context.Background()))
	assert.Nil(t, pm.server)
	assert.NoError(t, pm.Stop(context.Background()))
}
