// Package risk maps classifier probability vectors to a bronchitis risk
// probability and a categorical risk tier.
//
// The risk rule is label-dependent and intentionally asymmetric: the
// "healthy_voice" branch reads the bronchitis-class probability directly
// instead of deriving risk from the predicted class's confidence. The
// asymmetry was validated against ground truth together with the model
// artifact and must not be collapsed into a single formula without
// retraining.
package risk

import (
	"fmt"
	"math"

	"github.com/medwave/breathscan/pkg/classify"
)

// Class names the scoring rule branches on. They must appear verbatim in
// the deployed taxonomy.
const (
	LabelBronchitis    = "bronchitis"
	LabelHealthyBreath = "healthy_breath"
	LabelHealthyVoice  = "healthy_voice"
)

// Tier thresholds. Boundary values belong to the lower tier.
const (
	lowMax    = 0.4
	mediumMax = 0.7
)

// Tier is the categorical bucketing of the continuous risk probability.
type Tier int

const (
	TierLow Tier = iota
	TierMedium
	TierHigh
)

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case TierLow:
		return "low"
	case TierMedium:
		return "medium"
	case TierHigh:
		return "high"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// MarshalJSON encodes the tier as its lowercase name.
func (t Tier) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// TierFor buckets a risk probability: Low for risk <= 0.4, Medium for
// 0.4 < risk <= 0.7, High above.
func TierFor(risk float64) Tier {
	switch {
	case risk <= lowMax:
		return TierLow
	case risk <= mediumMax:
		return TierMedium
	default:
		return TierHigh
	}
}

// Assessment is the scored outcome of one inference call. Constructed
// fresh per call; never persisted.
type Assessment struct {
	// Label is the predicted class name (argmax over the taxonomy).
	Label string `json:"label"`
	// Confidence is the probability assigned to the predicted class.
	Confidence float64 `json:"confidence"`
	// Risk is the bronchitis risk probability in [0, 1].
	Risk float64 `json:"risk"`
	// Tier buckets Risk into low/medium/high.
	Tier Tier `json:"tier"`
}

// Score derives an Assessment from a probability vector in taxonomy
// order. Deterministic: identical inputs always yield identical output.
func Score(probs []float32, taxonomy *classify.Taxonomy) (*Assessment, error) {
	if taxonomy == nil {
		return nil, fmt.Errorf("risk: nil taxonomy")
	}
	if len(probs) == 0 {
		return nil, fmt.Errorf("risk: empty probability vector")
	}
	if len(probs) != taxonomy.Len() {
		return nil, fmt.Errorf("risk: %d probabilities for %d classes", len(probs), taxonomy.Len())
	}

	// Argmax; ties break to the lowest taxonomy index.
	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}
	label, err := taxonomy.Label(best)
	if err != nil {
		return nil, err
	}
	confidence := float64(probs[best])
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return nil, fmt.Errorf("risk: confidence %f outside [0,1]", confidence)
	}

	var riskProb float64
	switch label {
	case LabelBronchitis:
		riskProb = confidence
	case LabelHealthyBreath:
		riskProb = 1 - confidence
	case LabelHealthyVoice:
		riskProb = bronchitisProb(probs, taxonomy)
	default:
		// Extended taxonomies have no dedicated rule; the bronchitis
		// class probability is the conservative reading (0 when the
		// class is absent entirely).
		riskProb = bronchitisProb(probs, taxonomy)
	}

	return &Assessment{
		Label:      label,
		Confidence: confidence,
		Risk:       riskProb,
		Tier:       TierFor(riskProb),
	}, nil
}

func bronchitisProb(probs []float32, taxonomy *classify.Taxonomy) float64 {
	if i, ok := taxonomy.Index(LabelBronchitis); ok {
		return float64(probs[i])
	}
	return 0
}
