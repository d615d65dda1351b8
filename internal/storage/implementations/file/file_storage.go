package file

import (
	"context"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/RaffaelBild/gta-benchmark/internal/experiment"
	"github.com/RaffaelBild/gta-benchmark/pkg/constants"
	"github.com/RaffaelBild/gta-benchmark/pkg/errors"
)

// FileStorageConfig contains configuration for the result file sink
type FileStorageConfig struct {
	BasePath   string `json:"base_path" mapstructure:"base_path"`
	SyncWrites bool   `json:"sync_writes" mapstructure:"sync_writes"` // fsync before rename
}

// FileStorage writes each result table to <base>/<name>.csv, replacing the
// previous version atomically.
type FileStorage struct {
	config *FileStorageConfig
	logger *logrus.Logger
}

// NewFileStorage creates a new file storage instance
func NewFileStorage(config *FileStorageConfig, logger *logrus.Logger) (*FileStorage, error) {
	if config == nil {
		return nil, errors.NewConfigurationError(errors.CodeInvalidConfig, "file storage config cannot be nil")
	}

	if config.BasePath == "" {
		return nil, errors.NewConfigurationError(errors.CodeInvalidConfig, "base path is required")
	}

	if logger == nil {
		logger = logrus.New()
	}

	return &FileStorage{
		config: config,
		logger: logger,
	}, nil
}

// Name identifies the sink
func (fs *FileStorage) Name() string { return "file" }

// Path returns the file a snapshot with the given name is written to
func (fs *FileStorage) Path(name string) string {
	return filepath.Join(fs.config.BasePath, name+constants.ResultFileExt)
}

// Write replaces the result file with the snapshot
func (fs *FileStorage) Write(ctx context.Context, snapshot *experiment.Snapshot) error {
	if err := os.MkdirAll(fs.config.BasePath, 0755); err != nil {
		return errors.WrapError(err, errors.ErrorTypeIO, errors.CodeWriteFailed, "failed to create results directory")
	}

	path := fs.Path(snapshot.Name)
	tmp, err := os.CreateTemp(fs.config.BasePath, "."+snapshot.Name+"-*.tmp")
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeIO, errors.CodeWriteFailed, "failed to create temporary file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := snapshot.WriteCSV(tmp); err != nil {
		tmp.Close()
		return errors.WrapError(err, errors.ErrorTypeIO, errors.CodeWriteFailed, "failed to write results")
	}
	if fs.config.SyncWrites {
		if err := tmp.Sync(); err != nil {
			tmp.Close()
			return errors.WrapError(err, errors.ErrorTypeIO, errors.CodeWriteFailed, "failed to sync results")
		}
	}
	if err := tmp.Close(); err != nil {
		return errors.WrapError(err, errors.ErrorTypeIO, errors.CodeWriteFailed, "failed to close results")
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return errors.WrapError(err, errors.ErrorTypeIO, errors.CodeWriteFailed, "failed to set result file mode")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.WrapError(err, errors.ErrorTypeIO, errors.CodeWriteFailed, "failed to replace result file")
	}

	fs.logger.WithFields(logrus.Fields{
		"path": path,
		"rows": len(snapshot.Rows),
	}).Debug("Wrote result file")

	return nil
}

// Close is a no-op; files are closed after every write
func (fs *FileStorage) Close() error {
	return nil
}
