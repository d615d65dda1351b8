package benchmark

import (
	"fmt"

	"github.com/RaffaelBild/gta-benchmark/pkg/errors"
)

// Dataset identifies one of the benchmark datasets.
type Dataset int

const (
	Adult Dataset = iota
	AdultNC
	AdultTN
	AdultTNSafeHarbor
	Cup
	Fars
	Atus
	Ihis
)

type datasetInfo struct {
	name          string
	dataStem      string
	hierarchyStem string
	qis           []string
	delta         float64
	repetitions   int
}

var adultTNQIs = []string{"sex", "age", "zip", "race"}

var datasets = [...]datasetInfo{
	Adult: {
		name:          "adult",
		dataStem:      "adult",
		hierarchyStem: "adult",
		qis: []string{
			"age", "education", "marital-status", "native-country", "race",
			"salary-class", "sex", "workclass", "occupation",
		},
		delta:       1e-5,
		repetitions: 10,
	},
	AdultNC: {
		name:          "adult-nc",
		dataStem:      "adult_nc",
		hierarchyStem: "adult_nc",
		qis:           adultTNQIs,
		repetitions:   100,
	},
	AdultTN: {
		name:          "adult-tn",
		dataStem:      "adult_tn",
		hierarchyStem: "adult_tn",
		qis:           adultTNQIs,
		repetitions:   100,
	},
	AdultTNSafeHarbor: {
		name:          "adult-tn-safe-harbor",
		dataStem:      "adult_tn",
		hierarchyStem: "adult_tn_safe_harbor",
		qis:           adultTNQIs,
		repetitions:   10,
	},
	Cup: {
		name:          "cup",
		dataStem:      "cup",
		hierarchyStem: "cup",
		qis:           []string{"AGE", "GENDER", "INCOME", "MINRAMNT", "NGIFTALL", "STATE", "ZIP", "RAMNTALL"},
		repetitions:   10,
	},
	Fars: {
		name:          "fars",
		dataStem:      "fars",
		hierarchyStem: "fars",
		qis:           []string{"iage", "ideathday", "ideathmon", "ihispanic", "iinjury", "irace", "isex", "istatenum"},
		delta:         1e-6,
		repetitions:   10,
	},
	Atus: {
		name:          "atus",
		dataStem:      "atus",
		hierarchyStem: "atus",
		qis: []string{
			"Age", "Birthplace", "Citizenship status", "Labor force status", "Marital status",
			"Race", "Region", "Sex", "Highest level of school completed",
		},
		delta:       1e-6,
		repetitions: 10,
	},
	Ihis: {
		name:          "ihis",
		dataStem:      "ihis",
		hierarchyStem: "ihis",
		qis:           []string{"AGE", "MARSTAT", "PERNUM", "QUARTER", "RACEA", "REGION", "SEX", "YEAR", "EDUC"},
		delta:         1e-7,
		repetitions:   10,
	},
}

func (d Dataset) valid() bool {
	return d >= 0 && int(d) < len(datasets)
}

func (d Dataset) info() datasetInfo {
	if !d.valid() {
		panic(fmt.Sprintf("benchmark: invalid dataset %d", int(d)))
	}
	return datasets[d]
}

// String returns the display name, which is also the result file stem.
func (d Dataset) String() string {
	if !d.valid() {
		return fmt.Sprintf("Dataset(%d)", int(d))
	}
	return datasets[d].name
}

// Datasets returns all datasets in declaration order.
func Datasets() []Dataset {
	out := make([]Dataset, len(datasets))
	for i := range datasets {
		out[i] = Dataset(i)
	}
	return out
}

// DatasetNames returns the display names of all datasets.
func DatasetNames() []string {
	names := make([]string, len(datasets))
	for i, info := range datasets {
		names[i] = info.name
	}
	return names
}

// DatasetByName resolves a display name.
func DatasetByName(name string) (Dataset, error) {
	for i, info := range datasets {
		if info.name == name {
			return Dataset(i), nil
		}
	}
	return 0, errors.ErrUnknownDataset.WithDetails(name)
}

// QuasiIdentifiers returns the quasi-identifying attributes of d.
func QuasiIdentifiers(d Dataset) []string {
	qis := d.info().qis
	out := make([]string, len(qis))
	copy(out, qis)
	return out
}

// Delta returns the delta used for (epsilon, delta)-differential privacy on d.
func Delta(d Dataset) (float64, error) {
	if !d.valid() || datasets[d].delta == 0 {
		return 0, errors.ErrDeltaUndefined.WithDetails(d.String())
	}
	return datasets[d].delta, nil
}

// Repetitions returns how often a run on d is repeated when repetition is
// enabled.
func Repetitions(d Dataset) int {
	return d.info().repetitions
}
