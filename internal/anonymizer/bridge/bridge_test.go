package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaffaelBild/gta-benchmark/internal/anonymizer"
	"github.com/RaffaelBild/gta-benchmark/pkg/errors"
)

// TestHelperProcess is not a real test. It is started by the engine under
// test and plays the external anonymizer.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	mode := os.Args[len(os.Args)-1]

	var req anonymizer.Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		fmt.Fprintf(os.Stderr, "bad request: %v", err)
		os.Exit(3)
	}

	switch mode {
	case "ok":
		levels := anonymizer.GeneralizationScheme{}
		for _, a := range req.Data.Attributes {
			levels[a.Name] = a.MinGeneralization
		}
		resp := anonymizer.Response{
			ID: req.ID,
			Optimum: &anonymizer.Transformation{
				Levels: levels,
				Score: anonymizer.Score{
					RelativeQuality: 0.9,
					Metadata: []anonymizer.QualityMetadata{
						{Parameter: anonymizer.PayoutParameter, Value: req.Config.CostBenefit.PublisherBenefit},
					},
				},
			},
		}
		json.NewEncoder(os.Stdout).Encode(resp)
	case "engine-error":
		json.NewEncoder(os.Stdout).Encode(anonymizer.Response{ID: req.ID, Error: "no solution"})
	case "wrong-id":
		json.NewEncoder(os.Stdout).Encode(anonymizer.Response{ID: "other"})
	case "garbage":
		fmt.Fprint(os.Stdout, "not json")
	case "crash":
		fmt.Fprint(os.Stderr, "java.lang.OutOfMemoryError: Java heap space")
		os.Exit(1)
	}
}

func helperEngine(t *testing.T, mode string) *Engine {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	engine, err := NewEngine(&Config{
		Command: os.Args[0],
		Args:    []string{"-test.run=TestHelperProcess", "--", mode},
		Env:     map[string]string{"GO_WANT_HELPER_PROCESS": "1"},
	}, logger)
	require.NoError(t, err)
	return engine
}

func testInputs(t *testing.T) (*anonymizer.Data, anonymizer.Config) {
	t.Helper()
	data, err := anonymizer.LoadData(filepath.Join("..", "testdata", "data.csv"), ';')
	require.NoError(t, err)
	h, err := anonymizer.LoadHierarchy(filepath.Join("..", "testdata", "hierarchy_age.csv"), ';')
	require.NoError(t, err)
	require.NoError(t, data.Definition().SetQuasiIdentifying("age", h))
	require.NoError(t, data.Definition().SetMinimumGeneralization("age", 1))

	config := anonymizer.Config{
		CostBenefit:   anonymizer.CostBenefit{AdversaryCost: 4, AdversaryGain: 300, PublisherLoss: 300, PublisherBenefit: 1200},
		QualityModel:  anonymizer.PublisherPayoutMetric(false),
		MaxOutliers:   1.0,
		PrivacyModels: []anonymizer.PrivacyModel{anonymizer.KAnonymity{K: 5}},
	}
	return data, config
}

func TestNewEngine(t *testing.T) {
	// Test nil config
	_, err := NewEngine(nil, logrus.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config cannot be nil")

	// Test empty command
	_, err = NewEngine(&Config{}, logrus.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine command is required")

	engine, err := NewEngine(&Config{Command: "arx-bridge"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, engine.logger)
}

func TestAnonymize(t *testing.T) {
	data, config := testInputs(t)

	result, err := helperEngine(t, "ok").Anonymize(context.Background(), data, config)
	require.NoError(t, err)

	optimum, err := result.GlobalOptimum()
	require.NoError(t, err)
	assert.Equal(t, anonymizer.GeneralizationScheme{"age": 1}, optimum.Levels)
	assert.Equal(t, 0.9, optimum.HighestScore().RelativeQuality)

	payout, err := optimum.HighestScore().MetadataAt(0)
	require.NoError(t, err)
	assert.Equal(t, 1200.0, payout)
}

func TestAnonymizeFailures(t *testing.T) {
	data, config := testInputs(t)

	tests := []struct {
		mode     string
		errType  errors.ErrorType
		contains string
	}{
		{"engine-error", errors.ErrorTypeEngine, "no solution"},
		{"wrong-id", errors.ErrorTypeEngine, "does not match request"},
		{"garbage", errors.ErrorTypeEngine, "failed to decode engine response"},
		{"crash", errors.ErrorTypeEngine, "OutOfMemoryError"},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			_, err := helperEngine(t, tt.mode).Anonymize(context.Background(), data, config)
			require.Error(t, err)
			assert.Equal(t, tt.errType, errors.TypeOf(err))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestAnonymizeInvalidConfig(t *testing.T) {
	data, config := testInputs(t)
	config.PrivacyModels = []anonymizer.PrivacyModel{anonymizer.EDDifferentialPrivacy{Epsilon: -1, Delta: 1e-5, Scheme: anonymizer.GeneralizationScheme{"age": 1}}}

	_, err := helperEngine(t, "ok").Anonymize(context.Background(), data, config)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidArgument(err))
	assert.Contains(t, err.Error(), "invalid epsilon")
}

func TestAnonymizeCancelled(t *testing.T) {
	data, config := testInputs(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := helperEngine(t, "ok").Anonymize(ctx, data, config)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTail(t *testing.T) {
	assert.Equal(t, "short", tail("  short\n", 10))
	assert.Equal(t, "...6789", tail("0123456789", 4))
}
