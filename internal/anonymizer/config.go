package anonymizer

import (
	"fmt"
	"strings"

	"github.com/google/differential-privacy/go/v2/checks"

	"github.com/RaffaelBild/gta-benchmark/pkg/errors"
)

// CostBenefit holds the economic parameters of the re-identification game.
type CostBenefit struct {
	AdversaryCost    float64 `json:"adversary_cost"`
	AdversaryGain    float64 `json:"adversary_gain"`
	PublisherLoss    float64 `json:"publisher_loss"`
	PublisherBenefit float64 `json:"publisher_benefit"`
}

// QualityKind identifies a quality model implemented by the engine.
type QualityKind string

const (
	QualityLoss              QualityKind = "loss"
	QualityNormalizedEntropy QualityKind = "normalized_entropy"
	QualityKLDivergence      QualityKind = "kl_divergence"
	QualityPublisherPayout   QualityKind = "publisher_payout"
)

// QualityModel selects how the engine scores transformations.
type QualityModel struct {
	Name       string      `json:"name"`
	Kind       QualityKind `json:"kind"`
	Threshold  float64     `json:"threshold,omitempty"`
	Journalist bool        `json:"journalist,omitempty"`
}

// PrecomputedLossMetric is the loss metric with precomputation enabled up to
// the given threshold.
func PrecomputedLossMetric(threshold float64) QualityModel {
	return QualityModel{Name: "Loss", Kind: QualityLoss, Threshold: threshold}
}

// PrecomputedNormalizedEntropyMetric is the normalized non-uniform entropy
// with precomputation enabled up to the given threshold.
func PrecomputedNormalizedEntropyMetric(threshold float64) QualityModel {
	return QualityModel{Name: "Normalized non-uniform entropy", Kind: QualityNormalizedEntropy, Threshold: threshold}
}

// KLDivergenceMetric is the Kullback-Leibler divergence.
func KLDivergenceMetric() QualityModel {
	return QualityModel{Name: "KL-Divergence", Kind: QualityKLDivergence}
}

// PublisherPayoutMetric scores transformations by the publisher's payout
// under a prosecutor or journalist attacker.
func PublisherPayoutMetric(journalist bool) QualityModel {
	attacker := "prosecutor"
	if journalist {
		attacker = "journalist"
	}
	return QualityModel{
		Name:       fmt.Sprintf("Publisher payout (%s)", attacker),
		Kind:       QualityPublisherPayout,
		Journalist: journalist,
	}
}

// DefaultQualityModel is used when a measure does not name one.
func DefaultQualityModel() QualityModel {
	return PublisherPayoutMetric(false)
}

// GeneralizationScheme maps quasi-identifiers to generalization levels.
type GeneralizationScheme map[string]int

// PrivacyModelSpec is the wire form of a privacy model.
type PrivacyModelSpec struct {
	Type          string               `json:"type"`
	K             int                  `json:"k,omitempty"`
	Epsilon       float64              `json:"epsilon,omitempty"`
	Delta         float64              `json:"delta,omitempty"`
	Scheme        GeneralizationScheme `json:"scheme,omitempty"`
	Deterministic bool                 `json:"deterministic,omitempty"`
	AverageRisk   float64              `json:"average_risk,omitempty"`
	HighestRisk   float64              `json:"highest_risk,omitempty"`
	Journalist    bool                 `json:"journalist,omitempty"`
}

// PrivacyModel is a constraint the anonymized output must satisfy.
type PrivacyModel interface {
	Spec() PrivacyModelSpec
	Validate() error
	String() string
}

// KAnonymity requires every equivalence class to hold at least K records.
type KAnonymity struct {
	K int
}

func (m KAnonymity) Spec() PrivacyModelSpec {
	return PrivacyModelSpec{Type: "k_anonymity", K: m.K}
}

func (m KAnonymity) Validate() error {
	if m.K < 2 {
		return errors.NewInvalidArgumentError(errors.CodeInvalidConfig, "k must be at least 2").
			WithContext("k", m.K)
	}
	return nil
}

func (m KAnonymity) String() string {
	return fmt.Sprintf("KAnonymity(%d)", m.K)
}

// EDDifferentialPrivacy is (epsilon, delta)-differential privacy through
// random sampling and a fixed generalization scheme.
type EDDifferentialPrivacy struct {
	Epsilon       float64
	Delta         float64
	Scheme        GeneralizationScheme
	Deterministic bool
}

func (m EDDifferentialPrivacy) Spec() PrivacyModelSpec {
	return PrivacyModelSpec{
		Type:          "ed_differential_privacy",
		Epsilon:       m.Epsilon,
		Delta:         m.Delta,
		Scheme:        m.Scheme,
		Deterministic: m.Deterministic,
	}
}

func (m EDDifferentialPrivacy) Validate() error {
	if err := checks.CheckEpsilonStrict(m.Epsilon); err != nil {
		return errors.WrapError(err, errors.ErrorTypeInvalidArgument, errors.CodeInvalidConfig, "invalid epsilon")
	}
	if err := checks.CheckDeltaStrict(m.Delta); err != nil {
		return errors.WrapError(err, errors.ErrorTypeInvalidArgument, errors.CodeInvalidConfig, "invalid delta")
	}
	if len(m.Scheme) == 0 {
		return errors.NewInvalidArgumentError(errors.CodeInvalidConfig, "differential privacy requires a generalization scheme")
	}
	return nil
}

func (m EDDifferentialPrivacy) String() string {
	return fmt.Sprintf("(%g, %g)-DP", m.Epsilon, m.Delta)
}

// AverageReidentificationRisk bounds the average and the highest individual
// re-identification risk. A zero bound is not enforced.
type AverageReidentificationRisk struct {
	AverageRisk float64
	HighestRisk float64
}

func (m AverageReidentificationRisk) Spec() PrivacyModelSpec {
	return PrivacyModelSpec{
		Type:        "average_reidentification_risk",
		AverageRisk: m.AverageRisk,
		HighestRisk: m.HighestRisk,
	}
}

func (m AverageReidentificationRisk) Validate() error {
	for _, r := range []float64{m.AverageRisk, m.HighestRisk} {
		if r < 0 || r > 1 {
			return errors.NewInvalidArgumentError(errors.CodeInvalidConfig, "risk threshold must be in [0, 1]").
				WithContext("threshold", r)
		}
	}
	if m.AverageRisk == 0 && m.HighestRisk == 0 {
		return errors.NewInvalidArgumentError(errors.CodeInvalidConfig, "no risk threshold set")
	}
	return nil
}

func (m AverageReidentificationRisk) String() string {
	return fmt.Sprintf("AverageReidentificationRisk(avg=%g, max=%g)", m.AverageRisk, m.HighestRisk)
}

// Profitability is the game-theoretic model: a record is protected when
// attacking it does not pay off for the adversary.
type Profitability struct {
	Journalist bool
}

func (m Profitability) Spec() PrivacyModelSpec {
	return PrivacyModelSpec{Type: "profitability", Journalist: m.Journalist}
}

func (m Profitability) Validate() error { return nil }

func (m Profitability) String() string {
	if m.Journalist {
		return "ProfitabilityJournalist"
	}
	return "ProfitabilityProsecutor"
}

// Config is one anonymization request.
type Config struct {
	CostBenefit   CostBenefit
	QualityModel  QualityModel
	MaxOutliers   float64
	PrivacyModels []PrivacyModel
}

// Validate checks the configuration before it is handed to an engine.
func (c Config) Validate() error {
	if len(c.PrivacyModels) == 0 {
		return errors.NewInvalidArgumentError(errors.CodeInvalidConfig, "at least one privacy model is required")
	}
	if c.MaxOutliers < 0 || c.MaxOutliers > 1 {
		return errors.NewInvalidArgumentError(errors.CodeInvalidConfig, "max outliers must be in [0, 1]").
			WithContext("max_outliers", c.MaxOutliers)
	}
	if c.QualityModel.Kind == "" {
		return errors.NewInvalidArgumentError(errors.CodeInvalidConfig, "quality model is required")
	}
	for _, m := range c.PrivacyModels {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// PrivacyModelNames joins the privacy model names, for logs and metric labels.
func (c Config) PrivacyModelNames() string {
	names := make([]string, len(c.PrivacyModels))
	for i, m := range c.PrivacyModels {
		names[i] = m.String()
	}
	return strings.Join(names, "+")
}
