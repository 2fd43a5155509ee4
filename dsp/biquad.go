// SPDX-License-Identifier: EPL-2.0

package dsp

import "math"

// BiquadType selects the response of a BiquadFilter. The implementation
// follows the "Cookbook formulae for audio EQ biquad filter coefficients"
// by Robert Bristow-Johnson.
//
// For the shelf filters the specified gain applies at the reference
// frequency, the centerpoint of the transition band; the shelf itself gets
// the square of that gain.
type BiquadType int

const (
	// BiquadHighShelf is an EFX-style low-pass filter, specifying a gain
	// and reference frequency.
	BiquadHighShelf BiquadType = iota
	// BiquadLowShelf is an EFX-style high-pass filter, specifying a gain
	// and reference frequency.
	BiquadLowShelf
	// BiquadPeaking boosts or cuts around a reference frequency.
	BiquadPeaking

	// BiquadLowPass cuts above a cutoff frequency.
	BiquadLowPass
	// BiquadHighPass cuts below a cutoff frequency.
	BiquadHighPass
	// BiquadBandPass passes around a center frequency.
	BiquadBandPass
)

// BiquadFilter is a transposed direct-form-II second-order section.
type BiquadFilter struct {
	z1, z2 float32

	b0, b1, b2 float32
	a1, a2     float32
}

// Clear resets the filter history, keeping the parameters.
func (f *BiquadFilter) Clear() {
	f.z1, f.z2 = 0, 0
}

// SetParams configures the filter.
//
// gain is the response at the reference frequency, used by the shelf and
// peaking types only. f0norm is the reference (or cutoff) frequency divided
// by the sample rate. rcpQ is 1/Q for the transition band, from
// RcpQFromSlope or RcpQFromBandwidth.
func (f *BiquadFilter) SetParams(filterType BiquadType, gain, f0norm, rcpQ float32) {
	w0 := 2.0 * math.Pi * float64(f0norm)
	sin, cos := float32(math.Sin(w0)), float32(math.Cos(w0))
	alpha := sin / 2.0 * rcpQ

	var b [3]float32
	var a [3]float32
	switch filterType {
	case BiquadHighShelf:
		beta := 2.0 * float32(math.Sqrt(float64(gain))) * alpha
		b[0] = gain * ((gain + 1) + (gain-1)*cos + beta)
		b[1] = -2.0 * gain * ((gain - 1) + (gain+1)*cos)
		b[2] = gain * ((gain + 1) + (gain-1)*cos - beta)
		a[0] = (gain + 1) - (gain-1)*cos + beta
		a[1] = 2.0 * ((gain - 1) - (gain+1)*cos)
		a[2] = (gain + 1) - (gain-1)*cos - beta
	case BiquadLowShelf:
		beta := 2.0 * float32(math.Sqrt(float64(gain))) * alpha
		b[0] = gain * ((gain + 1) - (gain-1)*cos + beta)
		b[1] = 2.0 * gain * ((gain - 1) - (gain+1)*cos)
		b[2] = gain * ((gain + 1) - (gain-1)*cos - beta)
		a[0] = (gain + 1) + (gain-1)*cos + beta
		a[1] = -2.0 * ((gain - 1) + (gain+1)*cos)
		a[2] = (gain + 1) + (gain-1)*cos - beta
	case BiquadPeaking:
		b[0] = 1.0 + alpha*gain
		b[1] = -2.0 * cos
		b[2] = 1.0 - alpha*gain
		a[0] = 1.0 + alpha/gain
		a[1] = -2.0 * cos
		a[2] = 1.0 - alpha/gain
	case BiquadLowPass:
		b[0] = (1.0 - cos) / 2.0
		b[1] = 1.0 - cos
		b[2] = (1.0 - cos) / 2.0
		a[0] = 1.0 + alpha
		a[1] = -2.0 * cos
		a[2] = 1.0 - alpha
	case BiquadHighPass:
		b[0] = (1.0 + cos) / 2.0
		b[1] = -(1.0 + cos)
		b[2] = (1.0 + cos) / 2.0
		a[0] = 1.0 + alpha
		a[1] = -2.0 * cos
		a[2] = 1.0 - alpha
	case BiquadBandPass:
		b[0] = alpha
		b[1] = 0.0
		b[2] = -alpha
		a[0] = 1.0 + alpha
		a[1] = -2.0 * cos
		a[2] = 1.0 - alpha
	}

	f.a1 = a[1] / a[0]
	f.a2 = a[2] / a[0]
	f.b0 = b[0] / a[0]
	f.b1 = b[1] / a[0]
	f.b2 = b[2] / a[0]
}

// CopyParamsFrom copies the coefficients of other without touching the
// filter history.
func (f *BiquadFilter) CopyParamsFrom(other *BiquadFilter) {
	f.b0 = other.b0
	f.b1 = other.b1
	f.b2 = other.b2
	f.a1 = other.a1
	f.a2 = other.a2
}

// ProcessOne filters a single sample against external history components.
func (f *BiquadFilter) ProcessOne(in float32, z1, z2 *float32) float32 {
	out := in*f.b0 + *z1
	*z1 = in*f.b1 - out*f.a1 + *z2
	*z2 = in*f.b2 - out*f.a2
	return out
}

// Process filters src into dst. dst and src may alias.
func (f *BiquadFilter) Process(dst, src []float32) {
	z1, z2 := f.z1, f.z2
	for i, in := range src {
		out := in*f.b0 + z1
		z1 = in*f.b1 - out*f.a1 + z2
		z2 = in*f.b2 - out*f.a2
		dst[i] = out
	}
	f.z1, f.z2 = z1, z2
}

// Passthru steps the history as if numSamples passed through unfiltered.
func (f *BiquadFilter) Passthru(numSamples int) {
	if numSamples >= 2 {
		f.z1 = 0
		f.z2 = 0
	} else if numSamples == 1 {
		f.z1 = f.z2
		f.z2 = 0
	}
}

// RcpQFromSlope computes 1/Q for shelving filters from the reference gain
// (> 0) and shelf slope (0 < slope <= 1).
func RcpQFromSlope(gain, slope float32) float32 {
	return float32(math.Sqrt(float64((gain+1.0/gain)*(1.0/slope-1.0) + 2.0)))
}

// RcpQFromBandwidth computes 1/Q from the normalized reference frequency
// (0 < f0norm < 0.5) and bandwidth in octaves.
func RcpQFromBandwidth(f0norm, bandwidth float32) float32 {
	w0 := 2.0 * math.Pi * float64(f0norm)
	return float32(2.0 * math.Sinh(math.Ln2/2.0*float64(bandwidth)*w0/math.Sin(w0)))
}
