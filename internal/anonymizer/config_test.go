package anonymizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaffaelBild/gta-benchmark/pkg/errors"
)

func TestQualityModels(t *testing.T) {
	tests := []struct {
		model QualityModel
		name  string
		kind  QualityKind
	}{
		{PrecomputedLossMetric(1.0), "Loss", QualityLoss},
		{PrecomputedNormalizedEntropyMetric(1.0), "Normalized non-uniform entropy", QualityNormalizedEntropy},
		{KLDivergenceMetric(), "KL-Divergence", QualityKLDivergence},
		{PublisherPayoutMetric(false), "Publisher payout (prosecutor)", QualityPublisherPayout},
		{PublisherPayoutMetric(true), "Publisher payout (journalist)", QualityPublisherPayout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.model.Name)
			assert.Equal(t, tt.kind, tt.model.Kind)
		})
	}

	assert.Equal(t, PublisherPayoutMetric(false), DefaultQualityModel())
}

func TestPrivacyModelValidate(t *testing.T) {
	scheme := GeneralizationScheme{"age": 1}

	tests := []struct {
		name    string
		model   PrivacyModel
		wantErr bool
	}{
		{"k=5", KAnonymity{K: 5}, false},
		{"k=1", KAnonymity{K: 1}, true},
		{"dp", EDDifferentialPrivacy{Epsilon: 1, Delta: 1e-5, Scheme: scheme}, false},
		{"dp zero epsilon", EDDifferentialPrivacy{Epsilon: 0, Delta: 1e-5, Scheme: scheme}, true},
		{"dp delta one", EDDifferentialPrivacy{Epsilon: 1, Delta: 1, Scheme: scheme}, true},
		{"dp no scheme", EDDifferentialPrivacy{Epsilon: 1, Delta: 1e-5}, true},
		{"avg risk", AverageReidentificationRisk{AverageRisk: 0.5}, false},
		{"ind risk", AverageReidentificationRisk{HighestRisk: 0.2}, false},
		{"no risk", AverageReidentificationRisk{}, true},
		{"risk above one", AverageReidentificationRisk{AverageRisk: 1.5}, true},
		{"profitability", Profitability{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.model.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsInvalidArgument(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPrivacyModelNames(t *testing.T) {
	assert.Equal(t, "KAnonymity(10)", KAnonymity{K: 10}.String())
	assert.Equal(t, "(1, 1e-05)-DP", EDDifferentialPrivacy{Epsilon: 1, Delta: 1e-5}.String())
	assert.Equal(t, "ProfitabilityProsecutor", Profitability{}.String())
	assert.Equal(t, "ProfitabilityJournalist", Profitability{Journalist: true}.String())

	config := Config{PrivacyModels: []PrivacyModel{Profitability{}, KAnonymity{K: 5}}}
	assert.Equal(t, "ProfitabilityProsecutor+KAnonymity(5)", config.PrivacyModelNames())
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		QualityModel:  DefaultQualityModel(),
		MaxOutliers:   1.0,
		PrivacyModels: []PrivacyModel{Profitability{}},
	}
	assert.NoError(t, valid.Validate())

	noModels := valid
	noModels.PrivacyModels = nil
	assert.Error(t, noModels.Validate())

	outliers := valid
	outliers.MaxOutliers = 1.5
	assert.Error(t, outliers.Validate())

	noQuality := valid
	noQuality.QualityModel = QualityModel{}
	assert.Error(t, noQuality.Validate())

	badModel := valid
	badModel.PrivacyModels = []PrivacyModel{KAnonymity{K: 0}}
	assert.Error(t, badModel.Validate())
}
