// Package resample converts mono PCM16 buffers between sample rates.
//
// The conversion is backed by the soxr port in
// github.com/tphakala/go-audio-resampling at its high-quality preset.
// Unlike a streaming resampler, this package works on complete clips: the
// pipeline loads a whole recording before feature extraction, so one-shot
// conversion keeps the call site simple.
package resample

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Mono resamples mono int16 samples from srcRate to dstRate.
// It returns the input slice unchanged when the rates already match.
func Mono(samples []int16, srcRate, dstRate int) ([]int16, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("resample: invalid rates %d -> %d", srcRate, dstRate)
	}
	if srcRate == dstRate || len(samples) == 0 {
		return samples, nil
	}

	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("resample: create resampler: %w", err)
	}

	input := make([]float64, len(samples))
	for i, s := range samples {
		input[i] = float64(s) / 32768.0
	}

	output, err := rs.Process(input)
	if err != nil {
		return nil, fmt.Errorf("resample: %w", err)
	}

	out := make([]int16, len(output))
	for i, v := range output {
		switch {
		case v > 1.0:
			out[i] = 32767
		case v < -1.0:
			out[i] = -32768
		default:
			out[i] = int16(v * 32767.0)
		}
	}
	return out, nil
}
