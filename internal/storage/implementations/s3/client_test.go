package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaffaelBild/gta-benchmark/internal/experiment"
	"github.com/RaffaelBild/gta-benchmark/pkg/errors"
)

func TestNewS3Storage(t *testing.T) {
	config := &S3Config{
		Region: "us-east-1",
		Bucket: "test-bucket",
	}

	logger := logrus.New()
	storage, err := NewS3Storage(config, logger)

	require.NoError(t, err)
	require.NotNil(t, storage)
	assert.Equal(t, config, storage.config)
	assert.Equal(t, logger, storage.logger)
	assert.Equal(t, "s3", storage.Name())
}

func TestNewS3StorageInvalidConfig(t *testing.T) {
	// Test nil config
	_, err := NewS3Storage(nil, logrus.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3 config cannot be nil")

	// Test empty bucket
	config := &S3Config{Region: "us-east-1"}
	_, err = NewS3Storage(config, logrus.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3 bucket is required")
}

func TestS3StorageGenerateKey(t *testing.T) {
	storage, err := NewS3Storage(&S3Config{
		Region: "us-east-1",
		Bucket: "test-bucket",
		Prefix: "benchmarks/run-1",
	}, logrus.New())
	require.NoError(t, err)

	assert.Equal(t, "benchmarks/run-1/adult-experiment3.csv", storage.generateKey("adult-experiment3"))
}

func TestS3StorageGenerateKeyNoPrefix(t *testing.T) {
	storage, err := NewS3Storage(&S3Config{
		Region: "us-east-1",
		Bucket: "test-bucket",
	}, logrus.New())
	require.NoError(t, err)

	assert.Equal(t, "adult-experiment-sdgs.csv", storage.generateKey("adult-experiment-sdgs"))
}

func TestS3StorageWriteNotConnected(t *testing.T) {
	storage, err := NewS3Storage(&S3Config{Region: "us-east-1", Bucket: "test-bucket"}, logrus.New())
	require.NoError(t, err)

	err = storage.Write(context.Background(), &experiment.Snapshot{Name: "adult-experiment3"})
	assert.ErrorIs(t, err, errors.ErrNotConnected)
}

func TestS3StorageWrite(t *testing.T) {
	var mu sync.Mutex
	uploads := make(map[string]string)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			uploads[r.URL.Path] = string(body)
			mu.Unlock()
			w.Header().Set("ETag", `"etag"`)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	defer server.Close()

	storage, err := NewS3Storage(&S3Config{
		Region:          "us-east-1",
		Bucket:          "test-bucket",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Endpoint:        server.URL,
		ForcePathStyle:  true,
		DisableSSL:      true,
		Prefix:          "results",
	}, logrus.New())
	require.NoError(t, err)
	require.NoError(t, storage.Connect(context.Background()))
	defer storage.Close()

	table := experiment.NewTable("adult-experiment3", []string{"gain"}, []string{"Payout"})
	require.NoError(t, table.AddRun(10.0))
	require.NoError(t, table.AddValue("Payout", 0.5))

	require.NoError(t, storage.Write(context.Background(), table.Snapshot()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "gain;Payout\n10;0.5\n", uploads["/test-bucket/results/adult-experiment3.csv"])
}
