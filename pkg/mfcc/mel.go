package mfcc

import "math"

// Slaney mel scale constants: linear below 1 kHz, logarithmic above.
const (
	melLinearStep = 200.0 / 3.0
	melBreakHz    = 1000.0
	melBreak      = melBreakHz / melLinearStep
)

var melLogStep = math.Log(6.4) / 27.0

// hzToMel converts frequency in Hz to the Slaney mel scale.
func hzToMel(hz float64) float64 {
	if hz < melBreakHz {
		return hz / melLinearStep
	}
	return melBreak + math.Log(hz/melBreakHz)/melLogStep
}

// melToHz converts a Slaney mel value back to Hz.
func melToHz(mel float64) float64 {
	if mel < melBreak {
		return mel * melLinearStep
	}
	return melBreakHz * math.Exp(melLogStep*(mel-melBreak))
}

// melFilterBank builds area-normalized triangular mel filters evaluated
// at exact FFT bin frequencies. Returns [numMels][fftSize/2+1] weights.
func melFilterBank(numMels, fftSize, sampleRate int, fMin, fMax float64) [][]float64 {
	half := fftSize/2 + 1

	// numMels+2 mel points, evenly spaced, converted back to Hz.
	lowMel := hzToMel(fMin)
	highMel := hzToMel(fMax)
	hzPoints := make([]float64, numMels+2)
	for i := range hzPoints {
		mel := lowMel + float64(i)*(highMel-lowMel)/float64(numMels+1)
		hzPoints[i] = melToHz(mel)
	}

	// FFT bin center frequencies.
	binHz := make([]float64, half)
	for i := range binHz {
		binHz[i] = float64(i) * float64(sampleRate) / float64(fftSize)
	}

	bank := make([][]float64, numMels)
	for m := 0; m < numMels; m++ {
		filter := make([]float64, half)
		left := hzPoints[m]
		center := hzPoints[m+1]
		right := hzPoints[m+2]

		// Area normalization keeps per-filter energy comparable across
		// the frequency axis.
		enorm := 2.0 / (right - left)

		for k, f := range binHz {
			var w float64
			switch {
			case f <= left || f >= right:
				w = 0
			case f <= center:
				w = (f - left) / (center - left)
			default:
				w = (right - f) / (right - center)
			}
			filter[k] = w * enorm
		}
		bank[m] = filter
	}
	return bank
}
