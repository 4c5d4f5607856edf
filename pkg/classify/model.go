package classify

import (
	"errors"

	"github.com/medwave/breathscan/pkg/mfcc"
)

// ErrModelNotLoaded is returned when inference is requested but no model
// artifact was loaded at startup. The pipeline stays usable in a
// degraded, analysis-disabled mode; every predict call must surface this
// error rather than panic.
var ErrModelNotLoaded = errors.New("classify: model not loaded")

// Model runs the frozen classifier's forward pass over an MFCC feature
// matrix and returns class probabilities in taxonomy order.
//
// The input matrix values are used as-is; implementations only reshape
// to the model's expected rank (batch and channel axes). The forward
// pass is deterministic and inference-only: no training, no gradients,
// no parameter mutation.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Multiple goroutines
// may call Predict simultaneously against the same loaded artifact.
type Model interface {
	// Predict returns a probability vector over the taxonomy: one value
	// per class in [0, 1], summing to ~1 for softmax-output models.
	Predict(features mfcc.Matrix) ([]float32, error)

	// Close releases resources held by the model (e.g. the inference
	// session).
	Close() error
}
