// SPDX-License-Identifier: EPL-2.0

// Package dsp provides the signal-processing primitives used by the mixing
// engine: small fixed-size vector/matrix math, ambisonic coefficient
// computation, biquad filters, a two-band crossover, the mix-time resampler
// bank, near-field-control filters, and the output look-ahead limiter.
//
// Everything in this package is allocation-free once constructed, so it is
// safe to run from the mixer goroutine.
//
// # Ambisonic Coefficients
//
// CalcAmbiCoeffs produces third-order ACN/N3D spherical-harmonic gains for a
// unit direction vector, with an optional spread angle that widens the source
// over the sphere:
//
//	var coeffs [dsp.MaxAmbiCoeffs]float32
//	dsp.CalcAngleCoeffs(azimuth, elevation, spread, &coeffs)
//
// # Filters
//
// BiquadFilter implements the usual transposed direct-form-II sections with
// the EFX-style shelf types. BandSplitter and SplitterAllPass are the 2-band
// crossover pair used by the ambisonic up-sampler, the UHJ encoder and the
// front stabilizer.
//
// # Resamplers
//
// The resampler bank operates in fixed point with FractionBits of sub-sample
// phase. Four kinds are available: point, linear, cubic, and bandlimited
// sinc at two quality levels (12 and 24 points).
package dsp
