package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/RaffaelBild/gta-benchmark/internal/experiment"
	"github.com/RaffaelBild/gta-benchmark/pkg/constants"
	"github.com/RaffaelBild/gta-benchmark/pkg/errors"
)

// PostgresConfig configures the result table sink
type PostgresConfig struct {
	Host           string        `json:"host" mapstructure:"host"`
	Port           int           `json:"port" mapstructure:"port"`
	Database       string        `json:"database" mapstructure:"database"`
	Username       string        `json:"username" mapstructure:"username"`
	Password       string        `json:"password" mapstructure:"password"`
	SSLMode        string        `json:"ssl_mode" mapstructure:"ssl_mode"`
	Table          string        `json:"table" mapstructure:"table"`
	ConnectTimeout time.Duration `json:"connect_timeout" mapstructure:"connect_timeout"`
}

// PostgresStorage mirrors result tables into one database table, keyed by
// table name and row index
type PostgresStorage struct {
	config *PostgresConfig
	db     *sql.DB
	logger *logrus.Logger
	mu     sync.Mutex
}

// NewPostgresStorage creates a new PostgreSQL storage instance
func NewPostgresStorage(config *PostgresConfig, logger *logrus.Logger) (*PostgresStorage, error) {
	if config == nil {
		return nil, errors.NewConfigurationError(errors.CodeInvalidConfig, "PostgreSQL config cannot be nil")
	}

	if config.Host == "" || config.Database == "" {
		return nil, errors.NewConfigurationError(errors.CodeInvalidConfig, "PostgreSQL host and database are required")
	}

	if config.Port == 0 {
		config.Port = 5432
	}
	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}
	if config.Table == "" {
		config.Table = constants.DefaultPostgresTable
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 10 * time.Second
	}

	if logger == nil {
		logger = logrus.New()
	}

	return &PostgresStorage{
		config: config,
		logger: logger,
	}, nil
}

// Connect opens the database and creates the results table
func (ps *PostgresStorage) Connect(ctx context.Context) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.db != nil {
		return nil
	}

	db, err := sql.Open("postgres", ps.connString())
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeIO, errors.CodeNotConnected, "failed to open database connection")
	}

	ctx, cancel := context.WithTimeout(ctx, ps.config.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return errors.WrapError(err, errors.ErrorTypeIO, errors.CodeNotConnected, "failed to ping database")
	}

	if _, err := db.ExecContext(ctx, ps.schemaStatement()); err != nil {
		db.Close()
		return errors.WrapError(err, errors.ErrorTypeIO, errors.CodeWriteFailed, "failed to initialize schema")
	}

	ps.db = db

	ps.logger.WithFields(logrus.Fields{
		"host":     ps.config.Host,
		"port":     ps.config.Port,
		"database": ps.config.Database,
		"table":    ps.config.Table,
	}).Info("Connected to PostgreSQL")

	return nil
}

// Name identifies the sink
func (ps *PostgresStorage) Name() string { return "postgres" }

// Write replaces all rows stored for the snapshot in one transaction
func (ps *PostgresStorage) Write(ctx context.Context, snapshot *experiment.Snapshot) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.db == nil {
		return errors.ErrNotConnected.WithDetails("PostgreSQL")
	}

	rows, err := encodeRows(snapshot)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeIO, errors.CodeWriteFailed, "failed to encode results")
	}

	tx, err := ps.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeIO, errors.CodeWriteFailed, "failed to begin transaction")
	}
	defer tx.Rollback()

	table := pq.QuoteIdentifier(ps.config.Table)
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE experiment = $1", table), snapshot.Name); err != nil {
		return errors.WrapError(err, errors.ErrorTypeIO, errors.CodeWriteFailed, "failed to delete previous results")
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(ps.config.Table, "experiment", "run_index", "labels", "measures", "updated_at"))
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeIO, errors.CodeWriteFailed, "failed to prepare copy")
	}
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, snapshot.Name, r.index, r.labels, r.measures, r.updatedAt); err != nil {
			stmt.Close()
			return errors.WrapError(err, errors.ErrorTypeIO, errors.CodeWriteFailed, "failed to copy results")
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return errors.WrapError(err, errors.ErrorTypeIO, errors.CodeWriteFailed, "failed to flush copy")
	}
	if err := stmt.Close(); err != nil {
		return errors.WrapError(err, errors.ErrorTypeIO, errors.CodeWriteFailed, "failed to close copy")
	}

	if err := tx.Commit(); err != nil {
		return errors.WrapError(err, errors.ErrorTypeIO, errors.CodeWriteFailed, "failed to commit results")
	}

	ps.logger.WithFields(logrus.Fields{
		"experiment": snapshot.Name,
		"rows":       len(rows),
	}).Debug("Wrote results to PostgreSQL")

	return nil
}

// Close closes the database connection
func (ps *PostgresStorage) Close() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.db == nil {
		return nil
	}
	err := ps.db.Close()
	ps.db = nil
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeIO, errors.CodeWriteFailed, "failed to close database connection")
	}
	return nil
}

func (ps *PostgresStorage) connString() string {
	parts := []string{
		"host=" + quoteConnValue(ps.config.Host),
		fmt.Sprintf("port=%d", ps.config.Port),
		"dbname=" + quoteConnValue(ps.config.Database),
		"sslmode=" + quoteConnValue(ps.config.SSLMode),
	}
	if ps.config.Username != "" {
		parts = append(parts, "user="+quoteConnValue(ps.config.Username))
	}
	if ps.config.Password != "" {
		parts = append(parts, "password="+quoteConnValue(ps.config.Password))
	}
	return strings.Join(parts, " ")
}

func (ps *PostgresStorage) schemaStatement() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	experiment TEXT NOT NULL,
	run_index INTEGER NOT NULL,
	labels JSONB NOT NULL,
	measures JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (experiment, run_index)
)`, pq.QuoteIdentifier(ps.config.Table))
}

// quoteConnValue quotes a keyword/value connection string value.
func quoteConnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

type encodedRow struct {
	index     int
	labels    string
	measures  string
	updatedAt time.Time
}

// encodeRows turns snapshot rows into JSON objects keyed by column name.
// Missing values are left out.
func encodeRows(snapshot *experiment.Snapshot) ([]encodedRow, error) {
	out := make([]encodedRow, len(snapshot.Rows))
	for i, r := range snapshot.Rows {
		labels := make(map[string]string, len(r.Labels))
		for j, l := range r.Labels {
			labels[snapshot.RunColumns[j]] = l
		}
		measures := make(map[string]float64, len(r.Values))
		for j, v := range r.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			measures[snapshot.ValueColumns[j]] = v
		}

		lb, err := json.Marshal(labels)
		if err != nil {
			return nil, err
		}
		mb, err := json.Marshal(measures)
		if err != nil {
			return nil, err
		}
		out[i] = encodedRow{index: i, labels: string(lb), measures: string(mb), updatedAt: r.UpdatedAt}
	}
	return out, nil
}
