package experiment

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/RaffaelBild/gta-benchmark/internal/anonymizer"
	"github.com/RaffaelBild/gta-benchmark/internal/benchmark"
	"github.com/RaffaelBild/gta-benchmark/pkg/constants"
)

// Layout of the privacy model sweep.
const (
	ColumnPrivacyModel = "privacy model"
	MeasurePayout      = "Payout"

	SafepubEpsilon = 1.0
)

// SafepubDataset is the dataset the privacy model sweep runs on.
const SafepubDataset = benchmark.Adult

// PrivacyCandidate is one privacy model compared by RunSafepub. The model
// may depend on the loaded data.
type PrivacyCandidate struct {
	Name  string
	Build func(data *anonymizer.Data) (anonymizer.PrivacyModel, error)
}

// PrivacyCandidates returns the differential privacy tiers followed by the
// k-anonymity thresholds for dataset.
func PrivacyCandidates(dataset benchmark.Dataset) []PrivacyCandidate {
	var out []PrivacyCandidate
	for _, tier := range []struct {
		name   string
		degree benchmark.Degree
	}{
		{"SDGS-Low", benchmark.Low},
		{"SDGS-LowMiddle", benchmark.LowMiddle},
		{"SDGS-MiddleHigh", benchmark.MiddleHigh},
	} {
		degree := tier.degree
		out = append(out, PrivacyCandidate{
			Name: tier.name,
			Build: func(data *anonymizer.Data) (anonymizer.PrivacyModel, error) {
				delta, err := benchmark.Delta(dataset)
				if err != nil {
					return nil, err
				}
				scheme, err := benchmark.Scheme(data, degree)
				if err != nil {
					return nil, err
				}
				return anonymizer.EDDifferentialPrivacy{
					Epsilon:       SafepubEpsilon,
					Delta:         delta,
					Scheme:        scheme,
					Deterministic: true,
				}, nil
			},
		})
	}
	for _, k := range []int{5, 10, 15} {
		model := anonymizer.KAnonymity{K: k}
		out = append(out, PrivacyCandidate{
			Name: model.String(),
			Build: func(*anonymizer.Data) (anonymizer.PrivacyModel, error) {
				return model, nil
			},
		})
	}
	return out
}

// RunSafepub sweeps adversary gain and publisher loss together and compares
// the publisher payout of differential privacy against k-anonymity.
func RunSafepub(ctx context.Context, opts Options) (*Table, error) {
	dataset := SafepubDataset
	r, err := newRunner(opts, constants.ExperimentSafepub, dataset,
		[]string{ColumnGainLoss, ColumnPrivacyModel}, []string{MeasurePayout})
	if err != nil {
		return nil, err
	}

	costBenefit := benchmark.DefaultCostBenefit()
	parameters := benchmark.GainLossValues()
	candidates := PrivacyCandidates(dataset)

	for _, parameter := range parameters {
		costBenefit.AdversaryGain = parameter
		costBenefit.PublisherLoss = parameter
		r.logger.WithFields(logrus.Fields{
			"value":      parameter,
			"parameters": parameters,
		}).Info("Adversary gain = publisher loss")

		for i, candidate := range candidates {
			cb := costBenefit
			err := r.run(ctx, []interface{}{parameter, candidate.Name}, func(data *anonymizer.Data) error {
				model, err := candidate.Build(data)
				if err != nil {
					return err
				}
				config := anonymizer.Config{
					CostBenefit:   cb,
					QualityModel:  anonymizer.PublisherPayoutMetric(false),
					MaxOutliers:   1.0,
					PrivacyModels: []anonymizer.PrivacyModel{model},
				}
				return r.record(ctx, MeasurePayout, data, config, normalizedPayout(cb.PublisherBenefit))
			})
			if err != nil {
				return r.table, err
			}
			r.logger.WithField("step", fmt.Sprintf("%d/%d", i+1, len(candidates))).Info("Finished")
		}
	}

	return r.table, nil
}
