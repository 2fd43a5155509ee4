// SPDX-License-Identifier: EPL-2.0

package dsp

import "math"

// BandSplitter splits a signal into high and low bands around a crossover
// frequency. The low band is produced by a cascaded one-pole pair and the
// high band by subtracting it from an all-passed copy of the input, so the
// two bands sum back to an all-pass response rather than a comb.
type BandSplitter struct {
	coeff float32
	lpZ1  float32
	lpZ2  float32
	hpZ1  float32
}

// SetFrequency configures the crossover at f0norm (frequency / sample rate)
// and clears the filter history.
func (s *BandSplitter) SetFrequency(f0norm float32) {
	w := 2.0 * math.Pi * float64(f0norm)
	cw := float32(math.Cos(w))
	if cw > 1e-7 || cw < -1e-7 {
		s.coeff = (float32(math.Sin(w)) - 1.0) / cw
	} else {
		s.coeff = cw * -0.5
	}
	s.Clear()
}

// Clear resets the filter history.
func (s *BandSplitter) Clear() {
	s.lpZ1, s.lpZ2, s.hpZ1 = 0, 0, 0
}

// Process splits input into hpOut and lpOut. Neither output may alias the
// input.
func (s *BandSplitter) Process(hpOut, lpOut, input []float32) {
	apCoeff := s.coeff
	lpCoeff := s.coeff*0.5 + 0.5
	lpZ1, lpZ2, hpZ1 := s.lpZ1, s.lpZ2, s.hpZ1

	for i, in := range input {
		d := (in - lpZ1) * lpCoeff
		lpY := lpZ1 + d
		lpZ1 = lpY + d

		d = (lpY - lpZ2) * lpCoeff
		lpY = lpZ2 + d
		lpZ2 = lpY + d

		lpOut[i] = lpY

		hpY := apCoeff*in + hpZ1
		hpZ1 = in - apCoeff*hpY

		hpOut[i] = hpY - lpY
	}

	s.lpZ1, s.lpZ2, s.hpZ1 = lpZ1, lpZ2, hpZ1
}

// SplitterAllPass applies the phase response of a BandSplitter without
// splitting, so unsplit channels stay aligned with split ones.
type SplitterAllPass struct {
	coeff float32
	z1    float32
}

// SetFrequency configures the all-pass to match a BandSplitter at the same
// f0norm.
func (a *SplitterAllPass) SetFrequency(f0norm float32) {
	w := 2.0 * math.Pi * float64(f0norm)
	cw := float32(math.Cos(w))
	if cw > 1e-7 || cw < -1e-7 {
		a.coeff = (float32(math.Sin(w)) - 1.0) / cw
	} else {
		a.coeff = cw * -0.5
	}
	a.z1 = 0
}

// Process filters samples in place.
func (a *SplitterAllPass) Process(samples []float32) {
	coeff, z1 := a.coeff, a.z1
	for i, in := range samples {
		out := coeff*in + z1
		z1 = in - coeff*out
		samples[i] = out
	}
	a.z1 = z1
}
