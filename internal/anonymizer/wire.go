package anonymizer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Request is the JSON document sent to an out-of-process engine.
type Request struct {
	ID     string     `json:"id"`
	Data   DataSpec   `json:"data"`
	Config ConfigSpec `json:"config"`
}

// DataSpec describes the record file and its attribute definition.
type DataSpec struct {
	Path       string          `json:"path"`
	Delimiter  string          `json:"delimiter"`
	Attributes []AttributeSpec `json:"attributes"`
}

// AttributeSpec is the definition of one quasi-identifier.
type AttributeSpec struct {
	Name              string        `json:"name"`
	Type              AttributeKind `json:"type"`
	Hierarchy         string        `json:"hierarchy"`
	MinGeneralization int           `json:"min_generalization"`
	MaxGeneralization int           `json:"max_generalization"`
}

// ConfigSpec is the wire form of Config.
type ConfigSpec struct {
	CostBenefit   CostBenefit        `json:"cost_benefit"`
	QualityModel  QualityModel       `json:"quality_model"`
	MaxOutliers   float64            `json:"max_outliers"`
	PrivacyModels []PrivacyModelSpec `json:"privacy_models"`
}

// Response is the JSON document an out-of-process engine answers with.
type Response struct {
	ID      string          `json:"id"`
	Optimum *Transformation `json:"global_optimum,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Result converts the response into an engine result.
func (r *Response) Result() *Result {
	return &Result{Optimum: r.Optimum}
}

// NewRequest builds the wire request for data and config. Hierarchies must
// have been loaded from files; in-memory hierarchies cannot be shipped.
func NewRequest(id string, data *Data, config Config) (*Request, error) {
	def := data.Definition()
	attrs := make([]AttributeSpec, 0, len(def.qis))
	for _, qi := range def.QuasiIdentifyingAttributes() {
		h := def.Hierarchy(qi)
		if h.Path() == "" {
			return nil, fmt.Errorf("hierarchy for %q has no backing file", qi)
		}
		attrs = append(attrs, AttributeSpec{
			Name:              qi,
			Type:              def.AttributeKind(qi),
			Hierarchy:         h.Path(),
			MinGeneralization: def.MinimumGeneralization(qi),
			MaxGeneralization: def.MaximumGeneralization(qi),
		})
	}

	models := make([]PrivacyModelSpec, len(config.PrivacyModels))
	for i, m := range config.PrivacyModels {
		models[i] = m.Spec()
	}

	return &Request{
		ID: id,
		Data: DataSpec{
			Path:       data.Path(),
			Delimiter:  string(data.Delimiter()),
			Attributes: attrs,
		},
		Config: ConfigSpec{
			CostBenefit:   config.CostBenefit,
			QualityModel:  config.QualityModel,
			MaxOutliers:   config.MaxOutliers,
			PrivacyModels: models,
		},
	}, nil
}

// Fingerprint hashes everything in the request except its id, so equal
// anonymization problems map to the same key.
func (r *Request) Fingerprint() (string, error) {
	c := *r
	c.ID = ""
	b, err := json.Marshal(&c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
