package experiment

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/RaffaelBild/gta-benchmark/internal/anonymizer"
	"github.com/RaffaelBild/gta-benchmark/internal/benchmark"
	"github.com/RaffaelBild/gta-benchmark/pkg/constants"
)

// Measures of the quality model sweep.
const (
	MeasureQualityCostBenefit = "Quality (cost/benefit)"
	MeasureQuality50AvgRisk   = "Quality (50% avg. risk)"
	MeasureQuality33AvgRisk   = "Quality (33% avg. risk)"
	MeasureQuality20AvgRisk   = "Quality (20% avg. risk)"
	MeasureQuality50IndRisk   = "Quality (50% ind. risk)"
	MeasureQuality33IndRisk   = "Quality (33% ind. risk)"
	MeasureQuality20IndRisk   = "Quality (20% ind. risk)"
	MeasurePayoutCostBenefit  = "Payout (cost/benefit)"
	MeasurePayoutOptimal      = "Payout (optimal)"
)

// Run columns of the quality model sweep.
const (
	ColumnQualityModel = "quality model"
	ColumnGainLoss     = "adversary gain = publisher loss"
)

var gainLossMeasures = []string{
	MeasureQualityCostBenefit,
	MeasureQuality50AvgRisk,
	MeasureQuality33AvgRisk,
	MeasureQuality20AvgRisk,
	MeasureQuality50IndRisk,
	MeasureQuality33IndRisk,
	MeasureQuality20IndRisk,
	MeasurePayoutCostBenefit,
	MeasurePayoutOptimal,
}

// GainLossMeasures returns the measures recorded by RunGainLoss, in column
// order.
func GainLossMeasures() []string {
	return append([]string(nil), gainLossMeasures...)
}

// QualityModels returns the quality models RunGainLoss compares.
func QualityModels() []anonymizer.QualityModel {
	return []anonymizer.QualityModel{
		anonymizer.PrecomputedLossMetric(1.0),
		anonymizer.PrecomputedNormalizedEntropyMetric(1.0),
		anonymizer.KLDivergenceMetric(),
	}
}

type riskMeasure struct {
	measure string
	model   anonymizer.AverageReidentificationRisk
}

var riskMeasures = []riskMeasure{
	{MeasureQuality50AvgRisk, anonymizer.AverageReidentificationRisk{AverageRisk: 0.5}},
	{MeasureQuality33AvgRisk, anonymizer.AverageReidentificationRisk{AverageRisk: 0.33}},
	{MeasureQuality20AvgRisk, anonymizer.AverageReidentificationRisk{AverageRisk: 0.2}},
	{MeasureQuality50IndRisk, anonymizer.AverageReidentificationRisk{HighestRisk: 0.5}},
	{MeasureQuality33IndRisk, anonymizer.AverageReidentificationRisk{HighestRisk: 0.33}},
	{MeasureQuality20IndRisk, anonymizer.AverageReidentificationRisk{HighestRisk: 0.2}},
}

// RunGainLoss sweeps adversary gain and publisher loss together and compares
// quality models under cost/benefit and risk-based privacy models. The table
// is returned even when the sweep fails part way.
func RunGainLoss(ctx context.Context, opts Options, dataset benchmark.Dataset) (*Table, error) {
	r, err := newRunner(opts, constants.ExperimentGainLoss, dataset,
		[]string{ColumnQualityModel, ColumnGainLoss}, gainLossMeasures)
	if err != nil {
		return nil, err
	}

	costBenefit := benchmark.DefaultCostBenefit()
	parameters := benchmark.GainLossValues()
	models := QualityModels()

	for _, parameter := range parameters {
		costBenefit.AdversaryGain = parameter
		costBenefit.PublisherLoss = parameter
		r.logger.WithFields(logrus.Fields{
			"value":      parameter,
			"parameters": parameters,
		}).Info("Adversary gain = publisher loss")

		for i, model := range models {
			r.logger.WithFields(logrus.Fields{
				"step":          fmt.Sprintf("%d/%d", i+1, len(models)),
				"quality_model": model.Name,
			}).Info("Running")

			cb := costBenefit
			err := r.run(ctx, []interface{}{model.Name, parameter}, func(data *anonymizer.Data) error {
				return r.analyzeGainLoss(ctx, data, cb, model)
			})
			if err != nil {
				return r.table, err
			}
		}
	}

	return r.table, nil
}

func (r *runner) analyzeGainLoss(ctx context.Context, data *anonymizer.Data, cb anonymizer.CostBenefit, model anonymizer.QualityModel) error {
	config := func(quality anonymizer.QualityModel, privacy anonymizer.PrivacyModel) anonymizer.Config {
		return anonymizer.Config{
			CostBenefit:   cb,
			QualityModel:  quality,
			MaxOutliers:   1.0,
			PrivacyModels: []anonymizer.PrivacyModel{privacy},
		}
	}
	profitability := anonymizer.Profitability{}

	if err := r.record(ctx, MeasureQualityCostBenefit, data, config(model, profitability), relativeQuality); err != nil {
		return err
	}
	for _, rm := range riskMeasures {
		if err := r.record(ctx, rm.measure, data, config(model, rm.model), relativeQuality); err != nil {
			return err
		}
	}
	payout := normalizedPayout(cb.PublisherBenefit)
	if err := r.record(ctx, MeasurePayoutCostBenefit, data, config(model, profitability), payout); err != nil {
		return err
	}
	return r.record(ctx, MeasurePayoutOptimal, data, config(anonymizer.DefaultQualityModel(), profitability), payout)
}
