// Package mfcc computes fixed-shape Mel-Frequency Cepstral Coefficient
// matrices from mono PCM audio.
//
// The analysis chain matches the front end the bronchitis classifier was
// trained with: centered STFT frames (reflect padding), periodic Hann
// window, power spectrum, Slaney-style area-normalized mel filterbank,
// power-to-dB conversion with an 80 dB dynamic-range clamp, and an
// orthonormal DCT-II over the mel axis. Changing any of these parameters
// produces shape-compatible but numerically wrong features, so they are
// all pinned in Config with defaults that must not drift from the
// deployed model artifact.
//
// Default parameters:
//
//	SampleRate: 22050
//	NumCoeffs:  40
//	NumMels:    128
//	FFTSize:    2048
//	HopSize:    512
//	MaxFrames:  174
//
// The output frame axis is always exactly MaxFrames columns: short clips
// are zero-padded on the right, long clips keep only the first MaxFrames
// frames.
package mfcc

import (
	"errors"
	"fmt"
	"math"
)

// ErrEmptyInput is returned when there are no samples to analyze.
var ErrEmptyInput = errors.New("mfcc: empty sample buffer")

// Config controls MFCC extraction parameters.
type Config struct {
	SampleRate int     // audio sample rate in Hz (default 22050)
	NumCoeffs  int     // cepstral coefficients per frame (default 40)
	NumMels    int     // mel filterbank channels (default 128)
	FFTSize    int     // FFT/window size in samples (default 2048)
	HopSize    int     // hop between frames in samples (default 512)
	MaxFrames  int     // fixed output frame count (default 174)
	FMin       float64 // lowest filterbank frequency in Hz (default 0)
	FMax       float64 // highest filterbank frequency in Hz (default SampleRate/2)
	TopDB      float64 // dynamic range clamp in dB (default 80)
}

// DefaultConfig returns the parameters the deployed classifier was
// trained against.
func DefaultConfig() Config {
	return Config{
		SampleRate: 22050,
		NumCoeffs:  40,
		NumMels:    128,
		FFTSize:    2048,
		HopSize:    512,
		MaxFrames:  174,
		TopDB:      80,
	}
}

// Matrix is an MFCC feature matrix indexed [coefficient][frame].
// Extractor output always has NumCoeffs rows and MaxFrames columns.
type Matrix [][]float32

// NumCoeffs returns the coefficient (row) count.
func (m Matrix) NumCoeffs() int { return len(m) }

// NumFrames returns the frame (column) count.
func (m Matrix) NumFrames() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// Flatten returns the row-major flat buffer used to build the model
// input tensor.
func (m Matrix) Flatten() []float32 {
	if len(m) == 0 {
		return nil
	}
	cols := len(m[0])
	flat := make([]float32, len(m)*cols)
	for i, row := range m {
		copy(flat[i*cols:], row)
	}
	return flat
}

// Extractor computes MFCC matrices. The window, filterbank, and DCT
// basis are precomputed once; an Extractor is safe for concurrent use.
type Extractor struct {
	cfg     Config
	window  []float64
	melBank [][]float64 // [NumMels][FFTSize/2+1]
	dct     [][]float64 // [NumCoeffs][NumMels]
}

// New creates an Extractor with the given config. Zero-value fields fall
// back to their defaults.
func New(cfg Config) (*Extractor, error) {
	def := DefaultConfig()
	if cfg.SampleRate == 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.NumCoeffs == 0 {
		cfg.NumCoeffs = def.NumCoeffs
	}
	if cfg.NumMels == 0 {
		cfg.NumMels = def.NumMels
	}
	if cfg.FFTSize == 0 {
		cfg.FFTSize = def.FFTSize
	}
	if cfg.HopSize == 0 {
		cfg.HopSize = def.HopSize
	}
	if cfg.MaxFrames == 0 {
		cfg.MaxFrames = def.MaxFrames
	}
	if cfg.TopDB == 0 {
		cfg.TopDB = def.TopDB
	}
	if cfg.FMax == 0 {
		cfg.FMax = float64(cfg.SampleRate) / 2
	}

	if cfg.FFTSize&(cfg.FFTSize-1) != 0 {
		return nil, fmt.Errorf("mfcc: FFT size %d is not a power of 2", cfg.FFTSize)
	}
	if cfg.NumCoeffs > cfg.NumMels {
		return nil, fmt.Errorf("mfcc: %d coefficients exceed %d mel channels", cfg.NumCoeffs, cfg.NumMels)
	}
	if cfg.HopSize <= 0 || cfg.MaxFrames <= 0 || cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("mfcc: invalid config %+v", cfg)
	}

	return &Extractor{
		cfg:     cfg,
		window:  hannWindow(cfg.FFTSize),
		melBank: melFilterBank(cfg.NumMels, cfg.FFTSize, cfg.SampleRate, cfg.FMin, cfg.FMax),
		dct:     dctBasis(cfg.NumCoeffs, cfg.NumMels),
	}, nil
}

// Config returns the extractor's effective configuration.
func (e *Extractor) Config() Config { return e.cfg }

// Extract computes the MFCC matrix for normalized float64 samples in
// [-1, 1]. The result shape is always NumCoeffs × MaxFrames.
func (e *Extractor) Extract(samples []float64) (Matrix, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyInput
	}
	for i, s := range samples {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, fmt.Errorf("mfcc: non-finite sample at index %d", i)
		}
	}

	cfg := e.cfg
	half := cfg.FFTSize/2 + 1

	// Centered analysis: pad FFTSize/2 reflected samples on both ends so
	// frame t is centered on sample t*HopSize.
	padded := reflectPad(samples, cfg.FFTSize/2)
	numFrames := 1 + len(samples)/cfg.HopSize

	// Log mel spectrogram, mel-major.
	melSpec := make([][]float64, cfg.NumMels)
	for m := range melSpec {
		melSpec[m] = make([]float64, numFrames)
	}

	re := make([]float64, cfg.FFTSize)
	im := make([]float64, cfg.FFTSize)
	power := make([]float64, half)

	maxDB := math.Inf(-1)
	for t := 0; t < numFrames; t++ {
		start := t * cfg.HopSize
		for i := 0; i < cfg.FFTSize; i++ {
			re[i] = padded[start+i] * e.window[i]
			im[i] = 0
		}
		fft(re, im)
		for k := 0; k < half; k++ {
			power[k] = re[k]*re[k] + im[k]*im[k]
		}

		for m := 0; m < cfg.NumMels; m++ {
			var energy float64
			for k, w := range e.melBank[m] {
				if w != 0 {
					energy += w * power[k]
				}
			}
			db := powerToDB(energy)
			melSpec[m][t] = db
			if db > maxDB {
				maxDB = db
			}
		}
	}

	// Clamp the dynamic range relative to the loudest bin.
	if cfg.TopDB > 0 {
		floor := maxDB - cfg.TopDB
		for m := range melSpec {
			for t := range melSpec[m] {
				if melSpec[m][t] < floor {
					melSpec[m][t] = floor
				}
			}
		}
	}

	// DCT-II over the mel axis, then pad or truncate the frame axis to
	// exactly MaxFrames columns.
	out := make(Matrix, cfg.NumCoeffs)
	frames := numFrames
	if frames > cfg.MaxFrames {
		frames = cfg.MaxFrames
	}
	for c := 0; c < cfg.NumCoeffs; c++ {
		row := make([]float32, cfg.MaxFrames)
		basis := e.dct[c]
		for t := 0; t < frames; t++ {
			var acc float64
			for m := 0; m < cfg.NumMels; m++ {
				acc += basis[m] * melSpec[m][t]
			}
			row[t] = float32(acc)
		}
		out[c] = row
	}
	return out, nil
}

// ExtractFromInt16 converts PCM16 samples to normalized floats and
// extracts features.
func (e *Extractor) ExtractFromInt16(pcm []int16) (Matrix, error) {
	if len(pcm) == 0 {
		return nil, ErrEmptyInput
	}
	samples := make([]float64, len(pcm))
	for i, s := range pcm {
		samples[i] = float64(s) / 32768.0
	}
	return e.Extract(samples)
}

// powerToDB converts a power value to decibels with a 1e-10 floor.
func powerToDB(p float64) float64 {
	if p < 1e-10 {
		p = 1e-10
	}
	return 10 * math.Log10(p)
}

// hannWindow computes a periodic Hann window of length n.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// reflectPad pads both ends of x with pad reflected samples
// (x[pad], ..., x[1], x[0], x[1], ..., matching numpy's reflect mode).
func reflectPad(x []float64, pad int) []float64 {
	n := len(x)
	out := make([]float64, n+2*pad)
	copy(out[pad:], x)
	for i := 0; i < pad; i++ {
		out[pad-1-i] = x[reflectIndex(i+1, n)]
		out[pad+n+i] = x[reflectIndex(n-2-i, n)]
	}
	return out
}

// reflectIndex maps an out-of-range index into [0, n) by reflecting at
// the boundaries. Degenerates to 0 for single-sample input.
func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i
	}
	return i
}
