package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaffaelBild/gta-benchmark/internal/anonymizer"
	"github.com/RaffaelBild/gta-benchmark/pkg/errors"
)

type memoryStore struct {
	entries map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
	setErr  error
	closed  bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) get(_ context.Context, key string) ([]byte, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	b, ok := m.entries[key]
	return b, ok, nil
}

func (m *memoryStore) set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.entries[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memoryStore) close() error {
	m.closed = true
	return nil
}

type countingEngine struct {
	calls int
	err   error
}

func (c *countingEngine) Anonymize(_ context.Context, _ *anonymizer.Data, config anonymizer.Config) (*anonymizer.Result, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &anonymizer.Result{Optimum: &anonymizer.Transformation{
		Levels: anonymizer.GeneralizationScheme{"age": 2},
		Score: anonymizer.Score{
			RelativeQuality: 0.75,
			Metadata: []anonymizer.QualityMetadata{
				{Parameter: anonymizer.PayoutParameter, Value: config.CostBenefit.PublisherBenefit / 2},
			},
		},
	}}, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func connectedCache(t *testing.T, inner anonymizer.Engine) (*Engine, *memoryStore) {
	t.Helper()
	engine, err := NewCache(&Config{Addr: "localhost:6379", TTL: time.Hour}, inner, testLogger())
	require.NoError(t, err)
	store := newMemoryStore()
	engine.store = store
	return engine, store
}

func testInputs(t *testing.T) (*anonymizer.Data, anonymizer.Config) {
	t.Helper()
	data, err := anonymizer.LoadData(filepath.Join("..", "testdata", "data.csv"), ';')
	require.NoError(t, err)
	h, err := anonymizer.LoadHierarchy(filepath.Join("..", "testdata", "hierarchy_age.csv"), ';')
	require.NoError(t, err)
	require.NoError(t, data.Definition().SetQuasiIdentifying("age", h))

	return data, anonymizer.Config{
		CostBenefit:   anonymizer.CostBenefit{AdversaryCost: 4, AdversaryGain: 300, PublisherLoss: 300, PublisherBenefit: 1200},
		QualityModel:  anonymizer.PrecomputedLossMetric(1.0),
		MaxOutliers:   1.0,
		PrivacyModels: []anonymizer.PrivacyModel{anonymizer.Profitability{}},
	}
}

func TestNewCache(t *testing.T) {
	inner := &countingEngine{}

	// Test nil config
	_, err := NewCache(nil, inner, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config cannot be nil")

	// Test missing address
	_, err = NewCache(&Config{}, inner, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address is required")

	// Test missing engine
	_, err = NewCache(&Config{Addr: "localhost:6379"}, nil, testLogger())
	require.Error(t, err)

	engine, err := NewCache(&Config{Addr: "localhost:6379"}, inner, nil)
	require.NoError(t, err)
	assert.Equal(t, "gta-bench:result", engine.config.KeyPrefix)
	assert.Equal(t, 5*time.Second, engine.config.DialTimeout)
}

func TestGenerateKey(t *testing.T) {
	engine, err := NewCache(&Config{Addr: "localhost:6379", KeyPrefix: "bench"}, &countingEngine{}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "bench:abc123", engine.generateKey("abc123"))
}

func TestAnonymizeNotConnected(t *testing.T) {
	engine, err := NewCache(&Config{Addr: "localhost:6379"}, &countingEngine{}, testLogger())
	require.NoError(t, err)

	data, config := testInputs(t)
	_, err = engine.Anonymize(context.Background(), data, config)
	assert.ErrorIs(t, err, errors.ErrNotConnected)
}

func TestAnonymizeCaches(t *testing.T) {
	inner := &countingEngine{}
	engine, store := connectedCache(t, inner)
	data, config := testInputs(t)

	first, err := engine.Anonymize(context.Background(), data, config)
	require.NoError(t, err)
	second, err := engine.Anonymize(context.Background(), data, config)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, first, second)
	require.Len(t, store.entries, 1)
	for key, ttl := range store.ttls {
		assert.True(t, strings.HasPrefix(key, "gta-bench:result:"))
		assert.Equal(t, time.Hour, ttl)
	}

	hits, misses := engine.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)

	// A different game is a different key
	config.CostBenefit.AdversaryGain = 10
	_, err = engine.Anonymize(context.Background(), data, config)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
	assert.Len(t, store.entries, 2)
}

func TestAnonymizeStoreFailures(t *testing.T) {
	inner := &countingEngine{}
	engine, store := connectedCache(t, inner)
	store.getErr = fmt.Errorf("connection reset")
	store.setErr = fmt.Errorf("connection reset")
	data, config := testInputs(t)

	result, err := engine.Anonymize(context.Background(), data, config)
	require.NoError(t, err)
	assert.Equal(t, 0.75, result.Optimum.Score.RelativeQuality)
	assert.Equal(t, 1, inner.calls)
}

func TestAnonymizeCorruptEntry(t *testing.T) {
	inner := &countingEngine{}
	engine, store := connectedCache(t, inner)
	data, config := testInputs(t)

	_, err := engine.Anonymize(context.Background(), data, config)
	require.NoError(t, err)
	for key := range store.entries {
		store.entries[key] = []byte("{")
	}

	_, err = engine.Anonymize(context.Background(), data, config)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestAnonymizeEngineError(t *testing.T) {
	inner := &countingEngine{err: errors.ErrEngineFailed.WithDetails("boom")}
	engine, store := connectedCache(t, inner)
	data, config := testInputs(t)

	_, err := engine.Anonymize(context.Background(), data, config)
	assert.ErrorIs(t, err, errors.ErrEngineFailed)
	assert.Empty(t, store.entries)
}

func TestAnonymizeInvalidConfig(t *testing.T) {
	inner := &countingEngine{}
	engine, _ := connectedCache(t, inner)
	data, config := testInputs(t)
	config.PrivacyModels = nil

	_, err := engine.Anonymize(context.Background(), data, config)
	assert.True(t, errors.IsInvalidArgument(err))
	assert.Zero(t, inner.calls)
}

func TestClose(t *testing.T) {
	engine, store := connectedCache(t, &countingEngine{})
	require.NoError(t, engine.Close())
	assert.True(t, store.closed)
	assert.NoError(t, engine.Close())
}
