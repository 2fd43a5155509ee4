// SPDX-License-Identifier: EPL-2.0

package dsp

// Near-field control filters correct the bass rise of ambisonic components
// when a source sits closer to the listener than the playback speaker
// radius. Each ambisonic order above zero gets its own filter section, built
// from the Bessel-polynomial coefficients of the order's spherical-wave
// response: a bass boost at the source distance frequency w0 paired with a
// bass cut at the speaker distance frequency w1.
//
// Adjusting to w0 = 0 makes the boost side exact pass-through while keeping
// the history, so a voice can move in and out of the near field without
// clicks.

var nfcBessel = [4][3]float32{
	{},
	{1.0},
	{3.0, 3.0},
	{3.6778, 6.4595, 2.3222},
}

type nfcFilter1 struct {
	baseGain, gain float32
	b1, a1         float32
	z              [1]float32
}

type nfcFilter2 struct {
	baseGain, gain float32
	b1, b2, a1, a2 float32
	z              [2]float32
}

type nfcFilter3 struct {
	baseGain, gain float32
	b1, b2, a1, a2 float32
	b3, a3         float32
	z              [3]float32
}

// NFCFilter holds the per-order sections for one ambisonic channel group.
type NFCFilter struct {
	first  nfcFilter1
	second nfcFilter2
	third  nfcFilter3
}

func (f *nfcFilter1) init(w0, w1 float32) {
	f.baseGain, f.gain = 1.0, 1.0

	r := 0.5 * w0
	b00 := nfcBessel[1][0] * r
	g0 := 1.0 + b00
	f.gain *= g0
	f.b1 = 2.0 * b00 / g0

	r = 0.5 * w1
	b00 = nfcBessel[1][0] * r
	g0 = 1.0 + b00
	f.baseGain /= g0
	f.gain /= g0
	f.a1 = 2.0 * b00 / g0
}

func (f *nfcFilter1) adjust(w0 float32) {
	r := 0.5 * w0
	b00 := nfcBessel[1][0] * r
	g0 := 1.0 + b00
	f.gain = f.baseGain * g0
	f.b1 = 2.0 * b00 / g0
}

func (f *nfcFilter2) init(w0, w1 float32) {
	f.baseGain, f.gain = 1.0, 1.0

	r := 0.5 * w0
	b10 := nfcBessel[2][0] * r
	b11 := nfcBessel[2][1] * r * r
	g1 := 1.0 + b10 + b11
	f.gain *= g1
	f.b1 = (2.0*b10 + 4.0*b11) / g1
	f.b2 = 4.0 * b11 / g1

	r = 0.5 * w1
	b10 = nfcBessel[2][0] * r
	b11 = nfcBessel[2][1] * r * r
	g1 = 1.0 + b10 + b11
	f.baseGain /= g1
	f.gain /= g1
	f.a1 = (2.0*b10 + 4.0*b11) / g1
	f.a2 = 4.0 * b11 / g1
}

func (f *nfcFilter2) adjust(w0 float32) {
	r := 0.5 * w0
	b10 := nfcBessel[2][0] * r
	b11 := nfcBessel[2][1] * r * r
	g1 := 1.0 + b10 + b11
	f.gain = f.baseGain * g1
	f.b1 = (2.0*b10 + 4.0*b11) / g1
	f.b2 = 4.0 * b11 / g1
}

func (f *nfcFilter3) init(w0, w1 float32) {
	f.baseGain, f.gain = 1.0, 1.0

	r := 0.5 * w0
	b10 := nfcBessel[3][0] * r
	b11 := nfcBessel[3][1] * r * r
	b00 := nfcBessel[3][2] * r
	g1 := 1.0 + b10 + b11
	g0 := 1.0 + b00
	f.gain *= g1 * g0
	f.b1 = (2.0*b10 + 4.0*b11) / g1
	f.b2 = 4.0 * b11 / g1
	f.b3 = 2.0 * b00 / g0

	r = 0.5 * w1
	b10 = nfcBessel[3][0] * r
	b11 = nfcBessel[3][1] * r * r
	b00 = nfcBessel[3][2] * r
	g1 = 1.0 + b10 + b11
	g0 = 1.0 + b00
	f.baseGain /= g1 * g0
	f.gain /= g1 * g0
	f.a1 = (2.0*b10 + 4.0*b11) / g1
	f.a2 = 4.0 * b11 / g1
	f.a3 = 2.0 * b00 / g0
}

func (f *nfcFilter3) adjust(w0 float32) {
	r := 0.5 * w0
	b10 := nfcBessel[3][0] * r
	b11 := nfcBessel[3][1] * r * r
	b00 := nfcBessel[3][2] * r
	g1 := 1.0 + b10 + b11
	g0 := 1.0 + b00
	f.gain = f.baseGain * g1 * g0
	f.b1 = (2.0*b10 + 4.0*b11) / g1
	f.b2 = 4.0 * b11 / g1
	f.b3 = 2.0 * b00 / g0
}

// Init configures all sections for the source frequency w0 and control
// (speaker) frequency w1, both in radians per sample, clearing history.
func (f *NFCFilter) Init(w0, w1 float32) {
	f.first.init(w0, w1)
	f.second.init(w0, w1)
	f.third.init(w0, w1)
	f.first.z = [1]float32{}
	f.second.z = [2]float32{}
	f.third.z = [3]float32{}
}

// Adjust retunes the boost side to a new source frequency, keeping history.
func (f *NFCFilter) Adjust(w0 float32) {
	f.first.adjust(w0)
	f.second.adjust(w0)
	f.third.adjust(w0)
}

// Process1 filters first-order ambisonic components.
func (f *NFCFilter) Process1(dst, src []float32) {
	gain, b1, a1 := f.first.gain, f.first.b1, f.first.a1
	z1 := f.first.z[0]
	for i, in := range src {
		y := in*gain - a1*z1
		out := y + b1*z1
		z1 += y
		dst[i] = out
	}
	f.first.z[0] = z1
}

// Process2 filters second-order ambisonic components.
func (f *NFCFilter) Process2(dst, src []float32) {
	gain := f.second.gain
	b1, b2, a1, a2 := f.second.b1, f.second.b2, f.second.a1, f.second.a2
	z1, z2 := f.second.z[0], f.second.z[1]
	for i, in := range src {
		y := in*gain - a1*z1 - a2*z2
		out := y + b1*z1 + b2*z2
		z2 += z1
		z1 += y
		dst[i] = out
	}
	f.second.z[0], f.second.z[1] = z1, z2
}

// Process3 filters third-order ambisonic components.
func (f *NFCFilter) Process3(dst, src []float32) {
	gain := f.third.gain
	b1, b2, a1, a2 := f.third.b1, f.third.b2, f.third.a1, f.third.a2
	b3, a3 := f.third.b3, f.third.a3
	z1, z2, z3 := f.third.z[0], f.third.z[1], f.third.z[2]
	for i, in := range src {
		y := in*gain - a1*z1 - a2*z2
		out := y + b1*z1 + b2*z2
		z2 += z1
		z1 += y

		y = out - a3*z3
		out = y + b3*z3
		z3 += y
		dst[i] = out
	}
	f.third.z[0], f.third.z[1], f.third.z[2] = z1, z2, z3
}
