package mfcc

import (
	"math"
	"testing"
)

func makeSine(freq float64, n, rate int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return out
}

func TestShapeInvariance(t *testing.T) {
	ext, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}

	// Shape must be exactly 40×174 regardless of clip duration.
	durations := []float64{0.01, 0.5, 1.0, 3.0, 7.5}
	for _, d := range durations {
		n := int(d * 22050)
		m, err := ext.Extract(makeSine(440, n, 22050))
		if err != nil {
			t.Fatalf("%.2fs: extract: %v", d, err)
		}
		if m.NumCoeffs() != 40 {
			t.Errorf("%.2fs: coeffs = %d, want 40", d, m.NumCoeffs())
		}
		if m.NumFrames() != 174 {
			t.Errorf("%.2fs: frames = %d, want 174", d, m.NumFrames())
		}
	}
}

func TestShortInputZeroPadding(t *testing.T) {
	ext, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}

	// One second at 22050 Hz with hop 512 yields 1 + 22050/512 = 44
	// frames; columns 44..173 must be exactly zero.
	n := 22050
	m, err := ext.Extract(makeSine(440, n, 22050))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	realFrames := 1 + n/512
	for c := 0; c < m.NumCoeffs(); c++ {
		for f := realFrames; f < m.NumFrames(); f++ {
			if m[c][f] != 0 {
				t.Fatalf("m[%d][%d] = %f, want exactly 0", c, f, m[c][f])
			}
		}
	}

	// The analyzed region must not be silent.
	var nonZero bool
	for c := 0; c < m.NumCoeffs() && !nonZero; c++ {
		for f := 0; f < realFrames; f++ {
			if m[c][f] != 0 {
				nonZero = true
				break
			}
		}
	}
	if !nonZero {
		t.Error("analyzed region is all zeros")
	}
}

func TestLongInputPrefixEquality(t *testing.T) {
	// A 7s clip yields more than 174 frames. The truncated output must
	// equal the prefix of the same analysis with a larger frame budget.
	samples := makeSine(440, 7*22050, 22050)

	ext, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}
	wide := DefaultConfig()
	wide.MaxFrames = 400
	extWide, err := New(wide)
	if err != nil {
		t.Fatalf("new wide extractor: %v", err)
	}

	m, err := ext.Extract(samples)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	full, err := extWide.Extract(samples)
	if err != nil {
		t.Fatalf("extract wide: %v", err)
	}

	for c := 0; c < 40; c++ {
		for f := 0; f < 174; f++ {
			if m[c][f] != full[c][f] {
				t.Fatalf("m[%d][%d] = %f, full = %f", c, f, m[c][f], full[c][f])
			}
		}
	}
}

func TestExtractDeterministic(t *testing.T) {
	ext, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}
	samples := makeSine(440, 22050, 22050)

	a, err := ext.Extract(samples)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	b, err := ext.Extract(samples)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	for c := range a {
		for f := range a[c] {
			if a[c][f] != b[c][f] {
				t.Fatalf("non-deterministic at [%d][%d]", c, f)
			}
		}
	}
}

func TestExtractFinite(t *testing.T) {
	ext, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}

	// Silence hits the power floor everywhere and must stay finite.
	silence := make([]float64, 22050)
	m, err := ext.Extract(silence)
	if err != nil {
		t.Fatalf("extract silence: %v", err)
	}
	for c := range m {
		for f := range m[c] {
			v := float64(m[c][f])
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("m[%d][%d] = %f (not finite)", c, f, v)
			}
		}
	}
}

func TestExtractErrors(t *testing.T) {
	ext, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}

	if _, err := ext.Extract(nil); err == nil {
		t.Error("expected error for empty input")
	}
	if _, err := ext.Extract([]float64{0.1, math.NaN(), 0.2}); err == nil {
		t.Error("expected error for NaN sample")
	}
	if _, err := ext.ExtractFromInt16(nil); err == nil {
		t.Error("expected error for empty PCM input")
	}
}

func TestNewConfigValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FFTSize = 1000 // not a power of 2
	if _, err := New(cfg); err == nil {
		t.Error("expected error for non-power-of-2 FFT size")
	}

	cfg = DefaultConfig()
	cfg.NumCoeffs = 200 // more than NumMels
	if _, err := New(cfg); err == nil {
		t.Error("expected error for coeffs > mels")
	}
}

func TestFlatten(t *testing.T) {
	m := Matrix{{1, 2, 3}, {4, 5, 6}}
	flat := m.Flatten()
	want := []float32{1, 2, 3, 4, 5, 6}
	if len(flat) != len(want) {
		t.Fatalf("len = %d, want %d", len(flat), len(want))
	}
	for i := range want {
		if flat[i] != want[i] {
			t.Errorf("flat[%d] = %f, want %f", i, flat[i], want[i])
		}
	}
}

func TestMelConversion(t *testing.T) {
	// Slaney scale: linear below 1 kHz (f / 66.667), log above.
	if mel := hzToMel(500); math.Abs(mel-7.5) > 1e-9 {
		t.Errorf("hzToMel(500) = %f, want 7.5", mel)
	}
	if mel := hzToMel(1000); math.Abs(mel-15.0) > 1e-9 {
		t.Errorf("hzToMel(1000) = %f, want 15.0", mel)
	}
	// Round-trips across both regimes.
	for _, hz := range []float64{100, 999, 1000, 4000, 11025} {
		got := melToHz(hzToMel(hz))
		if math.Abs(got-hz) > 1e-6 {
			t.Errorf("melToHz(hzToMel(%f)) = %f", hz, got)
		}
	}
}

func TestMelFilterBankCoverage(t *testing.T) {
	bank := melFilterBank(128, 2048, 22050, 0, 11025)
	if len(bank) != 128 {
		t.Fatalf("filters = %d, want 128", len(bank))
	}
	half := 2048/2 + 1
	for m, f := range bank {
		if len(f) != half {
			t.Fatalf("filter %d: bins = %d, want %d", m, len(f), half)
		}
		var sum float64
		for _, w := range f {
			if w < 0 {
				t.Fatalf("filter %d has negative weight", m)
			}
			sum += w
		}
		if sum == 0 {
			t.Errorf("filter %d is all zeros", m)
		}
	}
}

func TestDCTBasisOrthonormal(t *testing.T) {
	n := 16
	basis := dctBasis(n, n)
	for a := 0; a < n; a++ {
		for b := 0; b < n; b++ {
			var dot float64
			for m := 0; m < n; m++ {
				dot += basis[a][m] * basis[b][m]
			}
			want := 0.0
			if a == b {
				want = 1.0
			}
			if math.Abs(dot-want) > 1e-9 {
				t.Fatalf("basis[%d]·basis[%d] = %f, want %f", a, b, dot, want)
			}
		}
	}
}

func TestFFT(t *testing.T) {
	// DC + first harmonic in an 8-sample window.
	n := 8
	re := make([]float64, n)
	im := make([]float64, n)
	for i := range re {
		re[i] = 1.0 + math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	fft(re, im)

	if math.Abs(re[0]-float64(n)) > 1e-9 {
		t.Errorf("DC = %f, want %d", re[0], n)
	}
	if math.Abs(re[1]-float64(n)/2) > 1e-9 {
		t.Errorf("H1 = %f, want %f", re[1], float64(n)/2)
	}
}

func TestReflectPad(t *testing.T) {
	x := []float64{1, 2, 3, 4}
	out := reflectPad(x, 2)
	want := []float64{3, 2, 1, 2, 3, 4, 3, 2}
	if len(out) != len(want) {
		t.Fatalf("len = %d, want %d", len(out), len(want))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %f, want %f", i, out[i], want[i])
		}
	}

	// Single-sample input must not panic.
	out = reflectPad([]float64{5}, 3)
	for i, v := range out {
		if v != 5 {
			t.Errorf("out[%d] = %f, want 5", i, v)
		}
	}
}
