package anonymizer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/RaffaelBild/gta-benchmark/pkg/errors"
)

// Hierarchy is a generalization hierarchy for one attribute. Column 0 holds
// the original values, column i the values at generalization level i.
type Hierarchy struct {
	path   string
	levels [][]string
}

// NewHierarchy creates a hierarchy from in-memory rows.
func NewHierarchy(rows [][]string) *Hierarchy {
	return &Hierarchy{levels: rows}
}

// LoadHierarchy reads a hierarchy from a delimited file.
func LoadHierarchy(path string, delimiter rune) (*Hierarchy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeIO, errors.CodeReadFailed,
			fmt.Sprintf("failed to open hierarchy %q", path))
	}
	defer f.Close()

	r := newReader(f, delimiter)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeIO, errors.CodeReadFailed,
			fmt.Sprintf("failed to read hierarchy %q", path))
	}
	if len(rows) == 0 {
		return nil, errors.NewIOError(errors.CodeReadFailed, "hierarchy is empty").WithDetails(path)
	}

	return &Hierarchy{path: path, levels: rows}, nil
}

// Path returns the file the hierarchy was read from, empty for in-memory ones.
func (h *Hierarchy) Path() string {
	return h.path
}

// Height returns the number of generalization levels, including level 0.
func (h *Hierarchy) Height() int {
	if len(h.levels) == 0 {
		return 0
	}
	return len(h.levels[0])
}

// Rows returns the hierarchy rows.
func (h *Hierarchy) Rows() [][]string {
	return h.levels
}

// AttributeKind is the role an attribute plays during anonymization.
type AttributeKind string

const (
	AttributeInsensitive      AttributeKind = "insensitive"
	AttributeQuasiIdentifying AttributeKind = "quasi_identifying"
)

type attribute struct {
	kind      AttributeKind
	hierarchy *Hierarchy
	min       int
	max       int
}

// Definition holds attribute types and generalization bounds for a Data.
type Definition struct {
	header     map[string]bool
	attributes map[string]*attribute
	qis        []string
}

func newDefinition(header []string) *Definition {
	d := &Definition{
		header:     make(map[string]bool, len(header)),
		attributes: make(map[string]*attribute),
	}
	for _, h := range header {
		d.header[h] = true
	}
	return d
}

// SetQuasiIdentifying marks attr as quasi-identifying, generalized with h.
// Bounds reset to the full hierarchy.
func (d *Definition) SetQuasiIdentifying(attr string, h *Hierarchy) error {
	if !d.header[attr] {
		return errors.NewInvalidArgumentError(errors.CodeInvalidConfig, "attribute not in data").WithDetails(attr)
	}
	if h == nil || h.Height() == 0 {
		return errors.NewInvalidArgumentError(errors.CodeInvalidConfig, "empty hierarchy").WithDetails(attr)
	}
	if _, ok := d.attributes[attr]; !ok {
		d.qis = append(d.qis, attr)
	}
	d.attributes[attr] = &attribute{
		kind:      AttributeQuasiIdentifying,
		hierarchy: h,
		min:       0,
		max:       h.Height() - 1,
	}
	return nil
}

// QuasiIdentifyingAttributes returns QIs in the order they were set.
func (d *Definition) QuasiIdentifyingAttributes() []string {
	out := make([]string, len(d.qis))
	copy(out, d.qis)
	return out
}

// AttributeKind returns the kind of attr. Attributes without a type are
// insensitive.
func (d *Definition) AttributeKind(attr string) AttributeKind {
	if a, ok := d.attributes[attr]; ok {
		return a.kind
	}
	return AttributeInsensitive
}

// Hierarchy returns the hierarchy attached to attr, or nil.
func (d *Definition) Hierarchy(attr string) *Hierarchy {
	if a, ok := d.attributes[attr]; ok {
		return a.hierarchy
	}
	return nil
}

// MinimumGeneralization returns the lowest level the engine may choose.
func (d *Definition) MinimumGeneralization(attr string) int {
	if a, ok := d.attributes[attr]; ok {
		return a.min
	}
	return 0
}

// MaximumGeneralization returns the highest level the engine may choose.
func (d *Definition) MaximumGeneralization(attr string) int {
	if a, ok := d.attributes[attr]; ok {
		return a.max
	}
	return 0
}

// SetMinimumGeneralization pins the lower bound for attr.
func (d *Definition) SetMinimumGeneralization(attr string, level int) error {
	a, err := d.boundedAttribute(attr, level)
	if err != nil {
		return err
	}
	a.min = level
	return nil
}

// SetMaximumGeneralization pins the upper bound for attr.
func (d *Definition) SetMaximumGeneralization(attr string, level int) error {
	a, err := d.boundedAttribute(attr, level)
	if err != nil {
		return err
	}
	a.max = level
	return nil
}

func (d *Definition) boundedAttribute(attr string, level int) (*attribute, error) {
	a, ok := d.attributes[attr]
	if !ok || a.kind != AttributeQuasiIdentifying {
		return nil, errors.NewInvalidArgumentError(errors.CodeInvalidConfig, "not a quasi-identifier").WithDetails(attr)
	}
	if level < 0 || level >= a.hierarchy.Height() {
		return nil, errors.ErrLevelOutOfBounds.WithDetails(fmt.Sprintf("%s: level %d, height %d", attr, level, a.hierarchy.Height()))
	}
	return a, nil
}

// Data describes one record file. Records stay on disk; the engine reads them
// itself, so only the header and the record count are kept.
type Data struct {
	path       string
	delimiter  rune
	header     []string
	numRows    int
	definition *Definition
	handle     *Handle
}

// LoadData reads the header and counts the records of a delimited file.
func LoadData(path string, delimiter rune) (*Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeIO, errors.CodeReadFailed,
			fmt.Sprintf("failed to open data %q", path))
	}
	defer f.Close()

	r := newReader(f, delimiter)
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeIO, errors.CodeReadFailed,
			fmt.Sprintf("failed to read header of %q", path))
	}
	header = append([]string(nil), header...)

	rows := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeIO, errors.CodeReadFailed,
				fmt.Sprintf("failed to read %q", path))
		}
		if len(rec) != len(header) {
			return nil, errors.NewIOError(errors.CodeReadFailed, "record width does not match header").
				WithDetails(fmt.Sprintf("%s: record %d has %d fields, header %d", path, rows+1, len(rec), len(header)))
		}
		rows++
	}

	return NewData(path, delimiter, header, rows), nil
}

// NewData creates a Data from its parts.
func NewData(path string, delimiter rune, header []string, numRows int) *Data {
	return &Data{
		path:       path,
		delimiter:  delimiter,
		header:     header,
		numRows:    numRows,
		definition: newDefinition(header),
	}
}

// Path returns the record file.
func (d *Data) Path() string { return d.path }

// Delimiter returns the field delimiter of the record file.
func (d *Data) Delimiter() rune { return d.delimiter }

// Header returns the column names.
func (d *Data) Header() []string { return d.header }

// Definition returns the mutable attribute definition.
func (d *Data) Definition() *Definition { return d.definition }

// Handle returns the current handle, opening a new one if the previous one
// was released.
func (d *Data) Handle() *Handle {
	if d.handle == nil || d.handle.released {
		d.handle = &Handle{data: d}
	}
	return d.handle
}

// Handle gives access to a loaded dataset. It must be released exactly once.
type Handle struct {
	data     *Data
	released bool
}

// NumRows returns the number of records.
func (h *Handle) NumRows() int {
	return h.data.numRows
}

// Released reports whether Release was called.
func (h *Handle) Released() bool {
	return h.released
}

// Release frees the handle. A second call fails with ErrHandleReleased.
func (h *Handle) Release() error {
	if h.released {
		return errors.ErrHandleReleased
	}
	h.released = true
	return nil
}

func newReader(r io.Reader, delimiter rune) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr
}
