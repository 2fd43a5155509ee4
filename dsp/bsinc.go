// SPDX-License-Identifier: EPL-2.0

package dsp

import (
	"math"
	"sync"
)

// The bandlimited sinc tables are built once at first use. Each table holds,
// per sub-sample phase, four coefficient rows (base filter, scale delta,
// phase delta, scale-phase delta) so the resampler can bilinearly
// interpolate between tabulated phases and cutoff scales.

const (
	bsincPhaseBits  = 4
	bsincPhaseCount = 1 << bsincPhaseBits
	bsincScaleBits  = 4
	bsincScaleCount = 1 << bsincScaleBits
	bsincScaleBase  = 0.5
)

// BsincState is prepared per voice from the playback increment.
type BsincState struct {
	sf     float32
	m      int
	l      int
	filter []float32
}

type bsincTable struct {
	points int
	tab    []float32
}

var (
	bsinc12Table = sync.OnceValue(func() *bsincTable { return buildBsincTable(12, 5.653260) })
	bsinc24Table = sync.OnceValue(func() *bsincTable { return buildBsincTable(24, 8.617193) })
)

func bsincPrepare(increment int, state *BsincState, table *bsincTable) {
	sf := float32(0.0)
	si := bsincScaleCount - 1

	if increment > FractionOne {
		sf = float32(FractionOne) / float32(increment)
		sf = max(0.0, (bsincScaleCount-1)*(sf-bsincScaleBase)*(1.0/(1.0-bsincScaleBase)))
		si = int(sf)
		// Fit the interpolation factor to a diagonally-symmetric curve to
		// reduce transition ripple between tabulated scales.
		sf = 1.0 - float32(math.Cos(math.Asin(float64(sf-float32(si)))))
	}

	state.sf = sf
	state.m = table.points
	state.l = table.points/2 - 1
	state.filter = table.tab[si*bsincPhaseCount*table.points*4:]
}

func kaiser(x, beta float64) float64 {
	if x < -1 || x > 1 {
		return 0
	}
	return besselI0(beta*math.Sqrt(1-x*x)) / besselI0(beta)
}

func besselI0(x float64) float64 {
	term, sum := 1.0, 1.0
	x2 := x / 2
	for k := 1; k < 50; k++ {
		term *= (x2 / float64(k)) * (x2 / float64(k))
		sum += term
		if term < sum*1e-21 {
			break
		}
	}
	return sum
}

// bsincFilter evaluates one normalized filter of m points for the given
// cutoff scale and sub-sample phase in [0,1].
func bsincFilter(m int, beta, scale, phase float64, out []float64) {
	l := m/2 - 1
	// Leave headroom below Nyquist for the transition band.
	cutoff := scale * 0.95
	sum := 0.0
	for j := 0; j < m; j++ {
		x := float64(j-l) - phase
		w := kaiser(x/float64(m/2), beta)
		var s float64
		if x == 0 {
			s = cutoff
		} else {
			s = cutoff * math.Sin(math.Pi*cutoff*x) / (math.Pi * cutoff * x)
		}
		out[j] = s * w
		sum += out[j]
	}
	for j := 0; j < m; j++ {
		out[j] /= sum
	}
}

func buildBsincTable(points int, beta float64) *bsincTable {
	m := points
	tab := make([]float32, bsincScaleCount*bsincPhaseCount*m*4)

	// Dense grid of filters: one extra phase (phase=1) and one extra scale
	// row (clamped at the top) to form the interpolation deltas.
	grid := make([][][]float64, bsincScaleCount+1)
	for si := 0; si <= bsincScaleCount; si++ {
		scale := bsincScaleBase + (1.0-bsincScaleBase)*float64(min(si+1, bsincScaleCount))/bsincScaleCount
		grid[si] = make([][]float64, bsincPhaseCount+1)
		for pi := 0; pi <= bsincPhaseCount; pi++ {
			f := make([]float64, m)
			bsincFilter(m, beta, scale, float64(pi)/bsincPhaseCount, f)
			grid[si][pi] = f
		}
	}

	for si := 0; si < bsincScaleCount; si++ {
		for pi := 0; pi < bsincPhaseCount; pi++ {
			base := (si*bsincPhaseCount + pi) * m * 4
			fil := tab[base : base+m]
			scd := tab[base+m : base+2*m]
			phd := tab[base+2*m : base+3*m]
			spd := tab[base+3*m : base+4*m]
			for j := 0; j < m; j++ {
				f00 := grid[si][pi][j]
				f10 := grid[si+1][pi][j]
				f01 := grid[si][pi+1][j]
				f11 := grid[si+1][pi+1][j]
				fil[j] = float32(f00)
				scd[j] = float32(f10 - f00)
				phd[j] = float32(f01 - f00)
				spd[j] = float32(f11 - f10 - f01 + f00)
			}
		}
	}

	return &bsincTable{points: m, tab: tab}
}
