// SPDX-License-Identifier: EPL-2.0

package render

import "math"

// Crossfeed levels for the bs2b filter, ordered from subtle to strong.
const (
	CrossfeedNone = iota
	CrossfeedLow
	CrossfeedMiddle
	CrossfeedHigh
	CrossfeedLowEasy
	CrossfeedMiddleEasy
	CrossfeedHighEasy
)

// Bs2b is the Bauer stereophonic-to-binaural crossfeed filter. Each ear
// receives a low-passed, attenuated copy of the opposite channel plus a
// high-boost-compensated copy of its own, approximating speaker listening
// on headphones.
type Bs2b struct {
	a0Lo, b1Lo       float32
	a0Hi, a1Hi, b1Hi float32

	lastLo   [2]float32
	lastHi   [2]float32
	lastAsis [2]float32
}

// NewBs2b builds a crossfeed filter for one of the Crossfeed* levels at the
// given sample rate.
func NewBs2b(level, sampleRate int) *Bs2b {
	var fcLo, fcHi, gLo, gHi float64
	switch level {
	case CrossfeedLow:
		fcLo, fcHi = 360.0, 501.0
		gLo, gHi = 0.398107170553497, 0.205671765275719
	case CrossfeedMiddle:
		fcLo, fcHi = 500.0, 711.0
		gLo, gHi = 0.459726988530872, 0.228208484414988
	case CrossfeedHigh:
		fcLo, fcHi = 700.0, 1021.0
		gLo, gHi = 0.530884444230988, 0.250105790667544
	case CrossfeedLowEasy:
		fcLo, fcHi = 360.0, 494.0
		gLo, gHi = 0.316227766016838, 0.168236228897329
	case CrossfeedMiddleEasy:
		fcLo, fcHi = 500.0, 689.0
		gLo, gHi = 0.354813389233575, 0.187169483835901
	default:
		fcLo, fcHi = 700.0, 975.0
		gLo, gHi = 0.398107170553497, 0.205671765275719
	}

	g := 1.0 / (1.0 - gHi + gLo)

	b := &Bs2b{}
	x := math.Exp(-2.0 * math.Pi * fcLo / float64(sampleRate))
	b.b1Lo = float32(x)
	b.a0Lo = float32(gLo * (1.0 - x) * g)

	x = math.Exp(-2.0 * math.Pi * fcHi / float64(sampleRate))
	b.b1Hi = float32(x)
	b.a0Hi = float32((1.0 - gHi*(1.0-x)) * g)
	b.a1Hi = float32(-x * g)
	return b
}

// Clear resets the filter history.
func (b *Bs2b) Clear() {
	b.lastLo = [2]float32{}
	b.lastHi = [2]float32{}
	b.lastAsis = [2]float32{}
}

// Process crossfeeds the stereo pair in place.
func (b *Bs2b) Process(left, right []float32, samplesToDo int) {
	for i := 0; i < samplesToDo; i++ {
		l, r := left[i], right[i]

		b.lastLo[0] = b.a0Lo*l + b.b1Lo*b.lastLo[0]
		b.lastHi[0] = b.a0Hi*l + b.a1Hi*b.lastAsis[0] + b.b1Hi*b.lastHi[0]
		b.lastAsis[0] = l

		b.lastLo[1] = b.a0Lo*r + b.b1Lo*b.lastLo[1]
		b.lastHi[1] = b.a0Hi*r + b.a1Hi*b.lastAsis[1] + b.b1Hi*b.lastHi[1]
		b.lastAsis[1] = r

		left[i] = b.lastHi[0] + b.lastLo[1]
		right[i] = b.lastHi[1] + b.lastLo[0]
	}
}
