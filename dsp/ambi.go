// SPDX-License-Identifier: EPL-2.0

package dsp

import "math"

// AmbiLayout selects the channel ordering of ambisonic buffers.
type AmbiLayout int

const (
	// AmbiLayoutACN orders channels by Ambisonic Channel Number.
	AmbiLayoutACN AmbiLayout = iota
	// AmbiLayoutFuMa orders channels the Furse-Malham way
	// (W | XYZ | RSTUV | KLMNOPQ).
	AmbiLayoutFuMa
)

// AmbiNorm selects the normalization of ambisonic buffers.
type AmbiNorm int

const (
	AmbiNormN3D AmbiNorm = iota
	AmbiNormSN3D
	AmbiNormFuMa
)

// AmbiOrderFromChannels maps an ambisonic channel count to its order, or -1
// for counts that do not correspond to a full 3D order.
func AmbiOrderFromChannels(chans int) int {
	for order := 0; order <= MaxAmbiOrder; order++ {
		if (order+1)*(order+1) == chans {
			return order
		}
	}
	return -1
}

// ChannelsFromAmbiOrder returns the full-3D channel count of an order.
func ChannelsFromAmbiOrder(order int) int {
	return (order + 1) * (order + 1)
}

// AmbiOrderFromIndex returns the ambisonic order a given ACN index belongs
// to.
func AmbiOrderFromIndex(acn int) int {
	return int(math.Sqrt(float64(acn)))
}

// N3DScale holds the SN3D-to-N3D scale per ACN index.
var N3DScale = [MaxAmbiCoeffs]float32{
	1.000000000, // ACN  0 (W)
	1.732050808, // ACN  1 (Y)
	1.732050808, // ACN  2 (Z)
	1.732050808, // ACN  3 (X)
	2.236067978, // ACN  4 (V)
	2.236067978, // ACN  5 (T)
	2.236067978, // ACN  6 (R)
	2.236067978, // ACN  7 (S)
	2.236067978, // ACN  8 (U)
	2.645751311, // ACN  9 (Q)
	2.645751311, // ACN 10 (O)
	2.645751311, // ACN 11 (M)
	2.645751311, // ACN 12 (K)
	2.645751311, // ACN 13 (L)
	2.645751311, // ACN 14 (N)
	2.645751311, // ACN 15 (P)
}

// FuMa2N3DScale converts FuMa-normalized (maxN) components to N3D, indexed
// by ACN.
var FuMa2N3DScale = [MaxAmbiCoeffs]float32{
	1.414213562, // ACN  0 (W), sqrt(2)
	1.732050808, // ACN  1 (Y), sqrt(3)
	1.732050808, // ACN  2 (Z), sqrt(3)
	1.732050808, // ACN  3 (X), sqrt(3)
	1.936491673, // ACN  4 (V), sqrt(15)/2
	1.936491673, // ACN  5 (T), sqrt(15)/2
	2.236067978, // ACN  6 (R), sqrt(5)
	1.936491673, // ACN  7 (S), sqrt(15)/2
	1.936491673, // ACN  8 (U), sqrt(15)/2
	2.091650066, // ACN  9 (Q), sqrt(35/8)
	1.972026594, // ACN 10 (O), sqrt(35)/3
	2.231093404, // ACN 11 (M), sqrt(224/45)
	2.645751311, // ACN 12 (K), sqrt(7)
	2.231093404, // ACN 13 (L), sqrt(224/45)
	1.972026594, // ACN 14 (N), sqrt(35)/3
	2.091650066, // ACN 15 (P), sqrt(35/8)
}

// FuMa2ACN maps FuMa channel positions to ACN indices.
var FuMa2ACN = [MaxAmbiCoeffs]int{
	0,  // W
	3,  // X
	1,  // Y
	2,  // Z
	6,  // R
	7,  // S
	5,  // T
	8,  // U
	4,  // V
	12, // K
	13, // L
	11, // M
	14, // N
	10, // O
	15, // P
	9,  // Q
}

// CalcAmbiCoeffs computes third-order ACN/N3D spherical-harmonic panning
// coefficients for a unit direction given on the ambisonic axes: x points
// front, y left, z up.
//
// spread (radians, 0..2pi) widens the source over a spherical cap. The
// per-order zonal-harmonic weights follow the solid-angle integral of the
// cap, and the total gain is raised by up to +3dB at full spread so loudness
// does not depend on the spread.
func CalcAmbiCoeffs(x, y, z, spread float32, coeffs *[MaxAmbiCoeffs]float32) {
	coeffs[0] = 1.0
	coeffs[1] = 1.732050808 * y
	coeffs[2] = 1.732050808 * z
	coeffs[3] = 1.732050808 * x
	coeffs[4] = 3.872983346 * x * y
	coeffs[5] = 3.872983346 * y * z
	coeffs[6] = 1.118033989 * (z*z*3.0 - 1.0)
	coeffs[7] = 3.872983346 * x * z
	coeffs[8] = 1.936491673 * (x*x - y*y)
	coeffs[9] = 2.091650066 * y * (x*x*3.0 - y*y)
	coeffs[10] = 10.246950766 * z * x * y
	coeffs[11] = 1.620185175 * y * (z*z*5.0 - 1.0)
	coeffs[12] = 1.322875656 * z * (z*z*5.0 - 3.0)
	coeffs[13] = 1.620185175 * x * (z*z*5.0 - 1.0)
	coeffs[14] = 5.123475383 * z * (x*x - y*y)
	coeffs[15] = 2.091650066 * x * (x*x - y*y*3.0)

	if spread > 0 {
		ca := float32(math.Cos(float64(spread) * 0.5))
		scale := float32(math.Sqrt(1.0 + float64(spread)/(2.0*math.Pi)))

		zh0Norm := scale
		zh1Norm := 0.5 * (ca + 1.0) * scale
		zh2Norm := 0.5 * (ca + 1.0) * ca * scale
		zh3Norm := 0.125 * (ca + 1.0) * (5.0*ca*ca - 1.0) * scale

		coeffs[0] *= zh0Norm
		for i := 1; i < 4; i++ {
			coeffs[i] *= zh1Norm
		}
		for i := 4; i < 9; i++ {
			coeffs[i] *= zh2Norm
		}
		for i := 9; i < 16; i++ {
			coeffs[i] *= zh3Norm
		}
	}
}

// CalcAngleCoeffs computes ambisonic coefficients for listener-relative
// angles (radians): azimuth 0 dead ahead and positive to the right,
// elevation positive upward.
func CalcAngleCoeffs(azimuth, elevation, spread float32, coeffs *[MaxAmbiCoeffs]float32) {
	x := float32(math.Cos(float64(azimuth)) * math.Cos(float64(elevation)))
	y := float32(-math.Sin(float64(azimuth)) * math.Cos(float64(elevation)))
	z := float32(math.Sin(float64(elevation)))
	CalcAmbiCoeffs(x, y, z, spread, coeffs)
}

// ScaleAzimuthFront reshapes a front azimuth (|az| <= pi/2) outward by
// scale, saturating at +-pi/2. Rear azimuths pass unchanged. Used to widen
// sources between the narrow span of a stereo speaker pair.
func ScaleAzimuthFront(azimuth, scale float32) float32 {
	const halfPi = math.Pi / 2
	abs := azimuth
	sign := float32(1.0)
	if abs < 0 {
		abs = -abs
		sign = -1.0
	}
	if abs > halfPi {
		return azimuth
	}
	return min(abs*scale, halfPi) * sign
}
