package benchmark

import "github.com/RaffaelBild/gta-benchmark/internal/anonymizer"

// Default cost/benefit parameters.
const (
	DefaultAdversaryCost    = 4.0
	DefaultAdversaryGain    = 300.0
	DefaultPublisherBenefit = 1200.0
	DefaultPublisherLoss    = 300.0
)

var adversaryValues = []float64{
	1, 1.01, 1.1, 2, 4, 6, 8, 10, 12, 14, 16, 18, 20, 50, 100, 150, 200,
	250, 300, 350, 400, 450, 500, 750, 1000, 1250, 1500, 1750, 2000,
}

var gainLossValues = []float64{0, 10, 100, 1000, 10000, 100000, 1000000}

var publisherBenefitValues = []float64{250, 500, 750, 1000, 1250, 1500, 1750, 2000}

var publisherLossValues = []float64{0, 250, 500, 750, 1000, 1250, 1500, 1750, 2000}

func clone(v []float64) []float64 {
	return append([]float64(nil), v...)
}

// AdversaryCosts returns the adversary cost sweep.
func AdversaryCosts() []float64 { return clone(adversaryValues) }

// AdversaryGains returns the adversary gain sweep.
func AdversaryGains() []float64 { return clone(adversaryValues) }

// GainLossValues returns the sweep for adversary gain and publisher loss
// varied together.
func GainLossValues() []float64 { return clone(gainLossValues) }

// PublisherBenefits returns the publisher benefit sweep.
func PublisherBenefits() []float64 { return clone(publisherBenefitValues) }

// PublisherLosses returns the publisher loss sweep.
func PublisherLosses() []float64 { return clone(publisherLossValues) }

// DefaultCostBenefit returns the cost/benefit configuration sweeps start from.
func DefaultCostBenefit() anonymizer.CostBenefit {
	return anonymizer.CostBenefit{
		AdversaryCost:    DefaultAdversaryCost,
		AdversaryGain:    DefaultAdversaryGain,
		PublisherLoss:    DefaultPublisherLoss,
		PublisherBenefit: DefaultPublisherBenefit,
	}
}
