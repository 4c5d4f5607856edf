package mfcc

import "math"

// dctBasis precomputes the orthonormal DCT-II basis used to project log
// mel energies onto cepstral coefficients.
// Returns [numCoeffs][numMels] where
//
//	basis[c][m] = s(c) * cos(pi * c * (2m + 1) / (2 * numMels))
//
// with s(0) = sqrt(1/numMels) and s(c>0) = sqrt(2/numMels).
func dctBasis(numCoeffs, numMels int) [][]float64 {
	basis := make([][]float64, numCoeffs)
	n := float64(numMels)
	for c := 0; c < numCoeffs; c++ {
		scale := math.Sqrt(2.0 / n)
		if c == 0 {
			scale = math.Sqrt(1.0 / n)
		}
		row := make([]float64, numMels)
		for m := 0; m < numMels; m++ {
			row[m] = scale * math.Cos(math.Pi*float64(c)*(2*float64(m)+1)/(2*n))
		}
		basis[c] = row
	}
	return basis
}
