package benchmark

import (
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/RaffaelBild/gta-benchmark/internal/anonymizer"
	"github.com/RaffaelBild/gta-benchmark/pkg/constants"
	"github.com/RaffaelBild/gta-benchmark/pkg/errors"
)

// Setup resolves and loads dataset files.
type Setup struct {
	DataDir      string
	HierarchyDir string
	Delimiter    rune
	Logger       *logrus.Logger
}

// NewSetup creates a Setup reading from the given directories. Empty values
// fall back to the defaults.
func NewSetup(dataDir, hierarchyDir string, logger *logrus.Logger) *Setup {
	if dataDir == "" {
		dataDir = constants.DefaultDataDir
	}
	if hierarchyDir == "" {
		hierarchyDir = constants.DefaultHierarchyDir
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Setup{
		DataDir:      dataDir,
		HierarchyDir: hierarchyDir,
		Delimiter:    constants.DefaultFieldDelimiter,
		Logger:       logger,
	}
}

// DataPath returns the record file of d.
func (s *Setup) DataPath(d Dataset) string {
	return filepath.Join(s.DataDir, d.info().dataStem+".csv")
}

// HierarchyPath returns the hierarchy file for one attribute of d.
func (s *Setup) HierarchyPath(d Dataset, attribute string) string {
	return filepath.Join(s.HierarchyDir, fmt.Sprintf("%s_hierarchy_%s.csv", d.info().hierarchyStem, attribute))
}

// LoadHierarchy loads the hierarchy for one attribute of d.
func (s *Setup) LoadHierarchy(d Dataset, attribute string) (*anonymizer.Hierarchy, error) {
	return anonymizer.LoadHierarchy(s.HierarchyPath(d, attribute), s.Delimiter)
}

// LoadData loads d and attaches a hierarchy to every quasi-identifier. The
// safe harbor variant is pinned to full generalization.
func (s *Setup) LoadData(d Dataset) (*anonymizer.Data, error) {
	data, err := anonymizer.LoadData(s.DataPath(d), s.Delimiter)
	if err != nil {
		return nil, err
	}

	def := data.Definition()
	for _, qi := range QuasiIdentifiers(d) {
		h, err := s.LoadHierarchy(d, qi)
		if err != nil {
			return nil, err
		}
		if err := def.SetQuasiIdentifying(qi, h); err != nil {
			return nil, fmt.Errorf("dataset %s: %w", d, err)
		}
		if d == AdultTNSafeHarbor {
			top := h.Height() - 1
			if err := def.SetMinimumGeneralization(qi, top); err != nil {
				return nil, err
			}
			if err := def.SetMaximumGeneralization(qi, top); err != nil {
				return nil, err
			}
		}
	}

	s.Logger.WithFields(logrus.Fields{
		"dataset": d.String(),
		"records": data.Handle().NumRows(),
		"path":    data.Path(),
	}).Debug("Loaded dataset")

	return data, nil
}

// NumRecords returns the number of records of d.
func (s *Setup) NumRecords(d Dataset) (int, error) {
	data, err := s.LoadData(d)
	if err != nil {
		return 0, err
	}
	handle := data.Handle()
	n := handle.NumRows()
	if err := handle.Release(); err != nil {
		return 0, err
	}
	return n, nil
}

// Scheme builds the generalization scheme for degree over the
// quasi-identifiers of data.
func Scheme(data *anonymizer.Data, degree Degree) (anonymizer.GeneralizationScheme, error) {
	def := data.Definition()
	scheme := make(anonymizer.GeneralizationScheme)
	for _, qi := range def.QuasiIdentifyingAttributes() {
		height := def.Hierarchy(qi).Height()
		level, err := GeneralizationLevel(height, degree)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", qi, err)
		}
		if level > height-1 {
			return nil, errors.ErrLevelOutOfBounds.WithDetails(fmt.Sprintf("%s: level %d, height %d", qi, level, height))
		}
		scheme[qi] = level
	}
	return scheme, nil
}
