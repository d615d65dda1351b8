package experiment

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/RaffaelBild/gta-benchmark/pkg/errors"
)

// Analyzer reduces the samples recorded for one measure in one run.
type Analyzer string

const (
	AnalyzerValue Analyzer = "value"
	AnalyzerMean  Analyzer = "mean"
	AnalyzerStd   Analyzer = "std"
)

func (a Analyzer) apply(samples []float64) float64 {
	switch a {
	case AnalyzerMean:
		return stat.Mean(samples, nil)
	case AnalyzerStd:
		if len(samples) < 2 {
			return 0
		}
		return stat.StdDev(samples, nil)
	default:
		return samples[len(samples)-1]
	}
}

type row struct {
	labels    []string
	samples   map[string][]float64
	updatedAt time.Time
}

// Table accumulates benchmark results. Rows are kept in the order they were
// added and are never removed.
type Table struct {
	name       string
	runColumns []string
	measures   []string
	declared   map[string]bool
	analyzers  []Analyzer
	rows       []*row
	now        func() time.Time
}

// NewTable declares the schema of a result table. Without analyzers every
// measure is reported as a single value.
func NewTable(name string, runColumns, measures []string, analyzers ...Analyzer) *Table {
	if len(analyzers) == 0 {
		analyzers = []Analyzer{AnalyzerValue}
	}
	declared := make(map[string]bool, len(measures))
	for _, m := range measures {
		declared[m] = true
	}
	return &Table{
		name:       name,
		runColumns: append([]string(nil), runColumns...),
		measures:   append([]string(nil), measures...),
		declared:   declared,
		analyzers:  analyzers,
		now:        time.Now,
	}
}

// Name returns the table name, used as the result file stem.
func (t *Table) Name() string { return t.name }

// Rows returns the number of runs added so far.
func (t *Table) Rows() int { return len(t.rows) }

// AddRun starts a new row with one label per run column.
func (t *Table) AddRun(labels ...interface{}) error {
	if len(labels) != len(t.runColumns) {
		return errors.NewInvalidArgumentError(errors.CodeInvalidConfig, "run label count does not match run columns").
			WithDetails(fmt.Sprintf("got %d labels, want %d", len(labels), len(t.runColumns)))
	}
	r := &row{
		labels:    make([]string, len(labels)),
		samples:   make(map[string][]float64, len(t.measures)),
		updatedAt: t.now(),
	}
	for i, l := range labels {
		r.labels[i] = formatLabel(l)
	}
	t.rows = append(t.rows, r)
	return nil
}

// AddValue records a sample for measure in the current row.
func (t *Table) AddValue(measure string, value float64) error {
	if !t.declared[measure] {
		return errors.ErrUndeclaredMeasure.WithDetails(measure)
	}
	if len(t.rows) == 0 {
		return errors.ErrNoActiveRun
	}
	r := t.rows[len(t.rows)-1]
	r.samples[measure] = append(r.samples[measure], value)
	r.updatedAt = t.now()
	return nil
}

// Header returns the column names of the table.
func (t *Table) Header() []string {
	header := append([]string(nil), t.runColumns...)
	return append(header, t.valueColumns()...)
}

func (t *Table) valueColumns() []string {
	cols := make([]string, 0, len(t.measures)*len(t.analyzers))
	for _, m := range t.measures {
		for _, a := range t.analyzers {
			if len(t.analyzers) == 1 {
				cols = append(cols, m)
			} else {
				cols = append(cols, fmt.Sprintf("%s [%s]", m, a))
			}
		}
	}
	return cols
}

// Snapshot captures the table as it is now.
func (t *Table) Snapshot() *Snapshot {
	s := &Snapshot{
		Name:         t.name,
		RunColumns:   append([]string(nil), t.runColumns...),
		ValueColumns: t.valueColumns(),
		Rows:         make([]SnapshotRow, len(t.rows)),
	}
	for i, r := range t.rows {
		values := make([]float64, 0, len(s.ValueColumns))
		for _, m := range t.measures {
			samples := r.samples[m]
			for _, a := range t.analyzers {
				if len(samples) == 0 {
					values = append(values, math.NaN())
					continue
				}
				values = append(values, a.apply(samples))
			}
		}
		s.Rows[i] = SnapshotRow{
			Labels:    append([]string(nil), r.labels...),
			Values:    values,
			UpdatedAt: r.updatedAt,
		}
	}
	return s
}

// SnapshotRow is one row of a Snapshot. Missing values are NaN.
type SnapshotRow struct {
	Labels    []string
	Values    []float64
	UpdatedAt time.Time
}

// Snapshot is an immutable copy of a Table.
type Snapshot struct {
	Name         string
	RunColumns   []string
	ValueColumns []string
	Rows         []SnapshotRow
}

// Header returns the column names.
func (s *Snapshot) Header() []string {
	header := append([]string(nil), s.RunColumns...)
	return append(header, s.ValueColumns...)
}

// WriteCSV writes the header and all rows. Missing values are empty cells.
func (s *Snapshot) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	if err := cw.Write(s.Header()); err != nil {
		return err
	}
	record := make([]string, 0, len(s.RunColumns)+len(s.ValueColumns))
	for _, r := range s.Rows {
		record = append(record[:0], r.Labels...)
		for _, v := range r.Values {
			record = append(record, formatValue(v))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSV returns the snapshot encoded by WriteCSV.
func (s *Snapshot) CSV() ([]byte, error) {
	var buf bytes.Buffer
	if err := s.WriteCSV(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatLabel(l interface{}) string {
	switch v := l.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
