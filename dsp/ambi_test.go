// SPDX-License-Identifier: EPL-2.0

package dsp

import (
	"math"
	"testing"
)

func TestAmbiOrderFromChannels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		chans int
		want  int
	}{
		{chans: 1, want: 0},
		{chans: 4, want: 1},
		{chans: 9, want: 2},
		{chans: 16, want: 3},
		{chans: 2, want: -1},
		{chans: 3, want: -1},
		{chans: 5, want: -1},
		{chans: 25, want: -1}, // above MaxAmbiOrder
	}

	for _, tt := range tests {
		if got := AmbiOrderFromChannels(tt.chans); got != tt.want {
			t.Errorf("AmbiOrderFromChannels(%d) = %d, want %d", tt.chans, got, tt.want)
		}
	}
}

func TestChannelsFromAmbiOrder(t *testing.T) {
	t.Parallel()

	for order, want := range map[int]int{0: 1, 1: 4, 2: 9, 3: 16} {
		if got := ChannelsFromAmbiOrder(order); got != want {
			t.Errorf("ChannelsFromAmbiOrder(%d) = %d, want %d", order, got, want)
		}
	}
}

func TestAmbiOrderFromIndex(t *testing.T) {
	t.Parallel()

	wantPerACN := []int{0, 1, 1, 1, 2, 2, 2, 2, 2, 3, 3, 3, 3, 3, 3, 3}
	for acn, want := range wantPerACN {
		if got := AmbiOrderFromIndex(acn); got != want {
			t.Errorf("AmbiOrderFromIndex(%d) = %d, want %d", acn, got, want)
		}
	}
}

func TestFuMa2ACN_IsPermutation(t *testing.T) {
	t.Parallel()

	var seen [MaxAmbiCoeffs]bool
	for fuma, acn := range FuMa2ACN {
		if acn < 0 || acn >= MaxAmbiCoeffs {
			t.Fatalf("FuMa2ACN[%d] = %d, out of range", fuma, acn)
		}
		if seen[acn] {
			t.Fatalf("FuMa2ACN maps two channels to ACN %d", acn)
		}
		seen[acn] = true
	}
}

func TestCalcAmbiCoeffs_CardinalDirections(t *testing.T) {
	t.Parallel()

	const sqrt3 = 1.732050808

	tests := []struct {
		name    string
		x, y, z float32
		acn     int
		want    float32
	}{
		{name: "front drives X", x: 1, acn: 3, want: sqrt3},
		{name: "left drives Y", y: 1, acn: 1, want: sqrt3},
		{name: "up drives Z", z: 1, acn: 2, want: sqrt3},
		{name: "back negates X", x: -1, acn: 3, want: -sqrt3},
		{name: "right negates Y", y: -1, acn: 1, want: -sqrt3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var coeffs [MaxAmbiCoeffs]float32
			CalcAmbiCoeffs(tt.x, tt.y, tt.z, 0, &coeffs)

			if coeffs[0] != 1.0 {
				t.Errorf("W = %v, want 1", coeffs[0])
			}
			if diff := math.Abs(float64(coeffs[tt.acn] - tt.want)); diff > 1e-6 {
				t.Errorf("coeffs[%d] = %v, want %v", tt.acn, coeffs[tt.acn], tt.want)
			}
			// The other first-order components should be zero.
			for acn := 1; acn < 4; acn++ {
				if acn == tt.acn {
					continue
				}
				if coeffs[acn] != 0 {
					t.Errorf("coeffs[%d] = %v, want 0", acn, coeffs[acn])
				}
			}
		})
	}
}

func TestCalcAmbiCoeffs_FullSpread(t *testing.T) {
	t.Parallel()

	var coeffs [MaxAmbiCoeffs]float32
	CalcAmbiCoeffs(1, 0, 0, 2*math.Pi, &coeffs)

	// At full spread the source covers the whole sphere: only the
	// omnidirectional component remains, raised 3dB.
	if diff := math.Abs(float64(coeffs[0]) - math.Sqrt2); diff > 1e-6 {
		t.Errorf("W = %v, want sqrt(2)", coeffs[0])
	}
	for acn := 1; acn < 4; acn++ {
		if math.Abs(float64(coeffs[acn])) > 1e-6 {
			t.Errorf("coeffs[%d] = %v, want 0 at full spread", acn, coeffs[acn])
		}
	}
}

func TestCalcAmbiCoeffs_SpreadKeepsDirection(t *testing.T) {
	t.Parallel()

	var tight, wide [MaxAmbiCoeffs]float32
	CalcAmbiCoeffs(0, 1, 0, 0, &tight)
	CalcAmbiCoeffs(0, 1, 0, math.Pi/2, &wide)

	// Widening reduces the directional components relative to W but must
	// not flip their sign.
	if wide[1] <= 0 {
		t.Fatalf("wide Y = %v, want positive", wide[1])
	}
	tightRatio := tight[1] / tight[0]
	wideRatio := wide[1] / wide[0]
	if wideRatio >= tightRatio {
		t.Errorf("directivity ratio grew with spread: tight %v, wide %v",
			tightRatio, wideRatio)
	}
}

func TestCalcAngleCoeffs(t *testing.T) {
	t.Parallel()

	const sqrt3 = 1.732050808

	tests := []struct {
		name      string
		azimuth   float32
		elevation float32
		acn       int
		want      float32
	}{
		{name: "ahead", azimuth: 0, acn: 3, want: sqrt3},
		{name: "right", azimuth: math.Pi / 2, acn: 1, want: -sqrt3},
		{name: "left", azimuth: -math.Pi / 2, acn: 1, want: sqrt3},
		{name: "above", elevation: math.Pi / 2, acn: 2, want: sqrt3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var coeffs [MaxAmbiCoeffs]float32
			CalcAngleCoeffs(tt.azimuth, tt.elevation, 0, &coeffs)

			if diff := math.Abs(float64(coeffs[tt.acn] - tt.want)); diff > 1e-6 {
				t.Errorf("coeffs[%d] = %v, want %v", tt.acn, coeffs[tt.acn], tt.want)
			}
		})
	}
}

func TestScaleAzimuthFront(t *testing.T) {
	t.Parallel()

	const halfPi = math.Pi / 2

	tests := []struct {
		name    string
		azimuth float32
		scale   float32
		want    float32
	}{
		{name: "widens front", azimuth: 0.3, scale: 1.5, want: 0.45},
		{name: "keeps sign", azimuth: -0.3, scale: 1.5, want: -0.45},
		{name: "saturates at the side", azimuth: 1.2, scale: 1.5, want: halfPi},
		{name: "rear unchanged", azimuth: 2.0, scale: 1.5, want: 2.0},
		{name: "rear unchanged negative", azimuth: -2.5, scale: 1.5, want: -2.5},
		{name: "zero stays centered", azimuth: 0, scale: 3.0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := ScaleAzimuthFront(tt.azimuth, tt.scale)
			if diff := math.Abs(float64(got - tt.want)); diff > 1e-6 {
				t.Errorf("ScaleAzimuthFront(%v, %v) = %v, want %v",
					tt.azimuth, tt.scale, got, tt.want)
			}
		})
	}
}
