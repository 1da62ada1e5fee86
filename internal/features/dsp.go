package features

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// hannFrame copies samples[start:start+size] into dst and tapers it.
func hannFrame(dst, samples []float64, start int) []float64 {
	copy(dst, samples[start:start+len(dst)])
	return window.Hann(dst)
}

// magnitudes returns |X[k]| for the real FFT of frame.
func magnitudes(fft *fourier.FFT, coeffs []complex128, frame []float64, dst []float64) ([]complex128, []float64) {
	coeffs = fft.Coefficients(coeffs, frame)
	if cap(dst) < len(coeffs) {
		dst = make([]float64, len(coeffs))
	}
	dst = dst[:len(coeffs)]
	for i, c := range coeffs {
		dst[i] = cmplx.Abs(c)
	}
	return coeffs, dst
}

// parabolicPeak refines an integer peak index using its neighbours.
func parabolicPeak(values []float64, i int) float64 {
	if i <= 0 || i >= len(values)-1 {
		return float64(i)
	}
	a, b, c := values[i-1], values[i], values[i+1]
	denom := a - 2*b + c
	if denom == 0 {
		return float64(i)
	}
	offset := 0.5 * (a - c) / denom
	if math.Abs(offset) > 1 {
		return float64(i)
	}
	return float64(i) + offset
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
