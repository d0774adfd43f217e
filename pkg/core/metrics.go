package core

// Metrics carries the six raw measurement fields an Evaluator must return,
// plus free-form metadata. Raw fields are not yet normalized; the fitness
// calculator maps them onto [0,1] axes.
type Metrics struct {
	Performance         float64 `json:"performance"`
	Variance            float64 `json:"variance"`
	MaxDegradation      float64 `json:"max_degradation"`
	Efficiency          float64 `json:"efficiency"`
	BaselineCorrelation float64 `json:"baseline_correlation"`
	TailRisk            float64 `json:"tail_risk"`

	Metadata map[string]any `json:"metadata,omitempty"`
}
