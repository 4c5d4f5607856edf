// Package predict wires the audio decoding, feature extraction,
// classification and risk scoring stages into a single synchronous
// pipeline behind one service object.
package predict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/medwave/breathscan/pkg/audio/decode"
	"github.com/medwave/breathscan/pkg/classify"
	"github.com/medwave/breathscan/pkg/mfcc"
	"github.com/medwave/breathscan/pkg/risk"
)

// Result is the outcome of one pipeline run.
type Result struct {
	// Label is the predicted class, or a human-readable "Error: ..."
	// string when produced by ResultFromError.
	Label string `json:"label"`
	// Confidence is the probability of the predicted class.
	Confidence float64 `json:"confidence"`
	// Risk is the bronchitis risk probability in [0, 1].
	Risk float64 `json:"risk"`
	// Tier buckets Risk into low/medium/high.
	Tier risk.Tier `json:"tier"`
	// Probabilities maps every taxonomy label to its probability.
	Probabilities map[string]float64 `json:"probabilities,omitempty"`
	// Elapsed is the total pipeline wall time.
	Elapsed time.Duration `json:"-"`
}

// Predictor runs the full inference pipeline. Construct once at startup
// with New; safe for concurrent use. All fields are read-only after
// construction.
type Predictor struct {
	model     classify.Model
	taxonomy  *classify.Taxonomy
	extractor *mfcc.Extractor
	decodeOpt decode.Options
	log       *slog.Logger
}

// Option configures a Predictor.
type Option func(*Predictor)

// WithDecodeOptions overrides the audio decoding policy. The default is
// decode.DefaultOptions (22050 Hz, 3 s cap).
func WithDecodeOptions(opts decode.Options) Option {
	return func(p *Predictor) { p.decodeOpt = opts }
}

// WithLogger sets the pipeline logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(p *Predictor) { p.log = log }
}

// New builds a Predictor. model may be nil: the predictor then starts
// degraded and Predict fails with classify.ErrModelNotLoaded, but the
// process can still serve health checks and taxonomy queries.
func New(model classify.Model, taxonomy *classify.Taxonomy, extractor *mfcc.Extractor, opts ...Option) (*Predictor, error) {
	if taxonomy == nil {
		return nil, fmt.Errorf("predict: nil taxonomy")
	}
	if extractor == nil {
		return nil, fmt.Errorf("predict: nil extractor")
	}
	p := &Predictor{
		model:     model,
		taxonomy:  taxonomy,
		extractor: extractor,
		decodeOpt: decode.DefaultOptions(),
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Degraded reports whether the predictor is running without a loaded
// model. Surfaced by health checks.
func (p *Predictor) Degraded() bool {
	return p.model == nil
}

// Taxonomy returns the label taxonomy the predictor scores against.
func (p *Predictor) Taxonomy() *classify.Taxonomy {
	return p.taxonomy
}

// Predict runs the pipeline over a raw audio byte buffer. ctx bounds the
// decode stage (which may shell out to ffmpeg) and is checked between
// stages.
func (p *Predictor) Predict(ctx context.Context, data []byte) (*Result, error) {
	if p.model == nil {
		return nil, classify.ErrModelNotLoaded
	}
	clip, err := decode.Bytes(ctx, data, p.decodeOpt)
	if err != nil {
		return nil, fmt.Errorf("predict: decode: %w", err)
	}
	return p.predictClip(ctx, clip)
}

// PredictFile runs the pipeline over an audio file on disk.
func (p *Predictor) PredictFile(ctx context.Context, path string) (*Result, error) {
	if p.model == nil {
		return nil, classify.ErrModelNotLoaded
	}
	clip, err := decode.File(ctx, path, p.decodeOpt)
	if err != nil {
		return nil, fmt.Errorf("predict: decode %s: %w", path, err)
	}
	return p.predictClip(ctx, clip)
}

func (p *Predictor) predictClip(ctx context.Context, clip *decode.Clip) (*Result, error) {
	start := time.Now()

	features, err := p.extractor.ExtractFromInt16(clip.Samples)
	if err != nil {
		return nil, fmt.Errorf("predict: features: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	probs, err := p.model.Predict(features)
	if err != nil {
		return nil, fmt.Errorf("predict: inference: %w", err)
	}
	assessment, err := risk.Score(probs, p.taxonomy)
	if err != nil {
		return nil, fmt.Errorf("predict: score: %w", err)
	}

	byLabel := make(map[string]float64, len(probs))
	for i, prob := range probs {
		label, err := p.taxonomy.Label(i)
		if err != nil {
			return nil, err
		}
		byLabel[label] = float64(prob)
	}
	res := &Result{
		Label:         assessment.Label,
		Confidence:    assessment.Confidence,
		Risk:          assessment.Risk,
		Tier:          assessment.Tier,
		Probabilities: byLabel,
		Elapsed:       time.Since(start),
	}
	p.log.DebugContext(ctx, "pipeline complete",
		"label", res.Label,
		"risk", res.Risk,
		"tier", res.Tier.String(),
		"clip_seconds", clip.Duration(),
		"elapsed", res.Elapsed,
	)
	return res, nil
}

// ResultFromError converts a pipeline failure into the sentinel result
// the boundaries render: an "Error: ..." label with zero risk. The
// sentinel never enters the pipeline itself.
func ResultFromError(err error) *Result {
	msg := "unknown failure"
	if err != nil {
		msg = err.Error()
	}
	return &Result{
		Label: "Error: " + msg,
		Risk:  0,
		Tier:  risk.TierLow,
	}
}

// IsBadInput reports whether err stems from the caller's audio rather
// than the service, so HTTP boundaries can pick a 4xx status.
func IsBadInput(err error) bool {
	var de *decode.DecodeError
	return errors.As(err, &de) || errors.Is(err, decode.ErrEmptyAudio) || errors.Is(err, decode.ErrUnsupportedFormat)
}
