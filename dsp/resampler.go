// SPDX-License-Identifier: EPL-2.0

package dsp

import "github.com/ik5/audmix3d/utils"

// ResamplerType selects the mix-time resampler of a voice.
type ResamplerType int

const (
	ResamplePoint ResamplerType = iota
	ResampleLinear
	ResampleCubic
	ResampleBSinc12
	ResampleBSinc24
)

// ResampleDefault is used when a voice does not request a specific kind.
const ResampleDefault = ResampleLinear

// MaxResamplePadding is the most history/lookahead frames any resampler
// reads around the current position. Callers keep this many frames of
// context on both sides of the source window.
const MaxResamplePadding = 24

// InterpState carries per-voice resampler state between blocks.
type InterpState struct {
	Bsinc BsincState
}

// ResamplerFunc reads pitched samples from src into dst.
//
// src must start MaxResamplePadding frames before the current sample
// position and contain MaxResamplePadding frames beyond the last position
// read. frac is the initial sub-sample phase (0 <= frac < FractionOne) and
// increment the fixed-point step per output frame.
type ResamplerFunc func(state *InterpState, src []float32, frac, increment int, dst []float32)

// SelectResampler returns the resampling function for the given kind,
// preparing any state that depends on the increment.
func SelectResampler(kind ResamplerType, increment int, state *InterpState) ResamplerFunc {
	switch kind {
	case ResamplePoint:
		return resamplePoint
	case ResampleLinear:
		return resampleLinear
	case ResampleCubic:
		return resampleCubic
	case ResampleBSinc12:
		bsincPrepare(increment, &state.Bsinc, bsinc12Table())
		return resampleBSinc
	case ResampleBSinc24:
		bsincPrepare(increment, &state.Bsinc, bsinc24Table())
		return resampleBSinc
	}
	return resampleLinear
}

func resamplePoint(_ *InterpState, src []float32, frac, increment int, dst []float32) {
	pos := MaxResamplePadding
	for i := range dst {
		dst[i] = src[pos]
		frac += increment
		pos += frac >> FractionBits
		frac &= FractionMask
	}
}

func resampleLinear(_ *InterpState, src []float32, frac, increment int, dst []float32) {
	pos := MaxResamplePadding
	for i := range dst {
		mu := float32(frac) * (1.0 / FractionOne)
		dst[i] = utils.Lerp(src[pos], src[pos+1], mu)
		frac += increment
		pos += frac >> FractionBits
		frac &= FractionMask
	}
}

func resampleCubic(_ *InterpState, src []float32, frac, increment int, dst []float32) {
	pos := MaxResamplePadding
	for i := range dst {
		mu := float32(frac) * (1.0 / FractionOne)
		dst[i] = utils.CubicInterpolate(src[pos-1], src[pos], src[pos+1], src[pos+2], mu)
		frac += increment
		pos += frac >> FractionBits
		frac &= FractionMask
	}
}

func resampleBSinc(state *InterpState, src []float32, frac, increment int, dst []float32) {
	const fracPhaseBitDiff = FractionBits - bsincPhaseBits
	const fracPhaseDiffOne = 1 << fracPhaseBitDiff

	bs := &state.Bsinc
	m := bs.m
	l := bs.l
	sf := bs.sf
	pos := MaxResamplePadding

	for i := range dst {
		pi := frac >> fracPhaseBitDiff
		pf := float32(frac&(fracPhaseDiffOne-1)) * (1.0 / fracPhaseDiffOne)

		base := pi * m * 4
		fil := bs.filter[base : base+m]
		scd := bs.filter[base+m : base+2*m]
		phd := bs.filter[base+2*m : base+3*m]
		spd := bs.filter[base+3*m : base+4*m]

		var r float32
		for j := 0; j < m; j++ {
			c := fil[j] + sf*scd[j] + pf*phd[j] + sf*pf*spd[j]
			r += c * src[pos-l+j]
		}
		dst[i] = r

		frac += increment
		pos += frac >> FractionBits
		frac &= FractionMask
	}
}
