package anonymizer

import (
	"context"
	"fmt"

	"github.com/RaffaelBild/gta-benchmark/pkg/errors"
)

// Engine anonymizes a dataset under a configuration. Implementations may run
// for minutes; they are called synchronously.
type Engine interface {
	Anonymize(ctx context.Context, data *Data, config Config) (*Result, error)
}

// QualityMetadata is one named entry of a score breakdown.
type QualityMetadata struct {
	Parameter string  `json:"parameter"`
	Value     float64 `json:"value"`
}

// Score is the quality of a transformation as reported by the engine.
type Score struct {
	Value           float64           `json:"value"`
	RelativeQuality float64           `json:"relative_quality"`
	Metadata        []QualityMetadata `json:"metadata"`
}

// MetadataAt returns the value of the i-th breakdown entry.
func (s Score) MetadataAt(i int) (float64, error) {
	if i < 0 || i >= len(s.Metadata) {
		return 0, errors.NewEngineError(errors.CodeMalformedResult, "score metadata index out of range").
			WithDetails(fmt.Sprintf("index %d, %d entries", i, len(s.Metadata)))
	}
	return s.Metadata[i].Value, nil
}

// MetadataValue returns the value of the named breakdown entry.
func (s Score) MetadataValue(parameter string) (float64, error) {
	for _, m := range s.Metadata {
		if m.Parameter == parameter {
			return m.Value, nil
		}
	}
	return 0, errors.NewEngineError(errors.CodeMalformedResult, "score metadata entry missing").WithDetails(parameter)
}

// Transformation is one node of the generalization lattice.
type Transformation struct {
	Levels GeneralizationScheme `json:"levels"`
	Score  Score                `json:"highest_score"`
}

// HighestScore returns the best score found for the transformation.
func (t *Transformation) HighestScore() Score {
	return t.Score
}

// Result is the outcome of one anonymization.
type Result struct {
	Optimum *Transformation `json:"global_optimum"`
}

// GlobalOptimum returns the optimal transformation, or an error when the
// engine found no transformation satisfying the privacy models.
func (r *Result) GlobalOptimum() (*Transformation, error) {
	if r == nil || r.Optimum == nil {
		return nil, errors.NewEngineError(errors.CodeMalformedResult, "no global optimum found")
	}
	return r.Optimum, nil
}

// PayoutParameter names the payout entry in a score breakdown.
const PayoutParameter = "Payout"
