// SPDX-License-Identifier: EPL-2.0

package render

import (
	"math"
	"testing"
)

func TestFrontStablizer_SilenceStaysSilent(t *testing.T) {
	t.Parallel()

	s := NewFrontStablizer(3, 48000)
	bufs := [][]float32{
		make([]float32, 256),
		make([]float32, 256),
		make([]float32, 256),
	}
	s.Process(256, bufs, 0, 1, 2)

	for c, buf := range bufs {
		for i, v := range buf {
			if v != 0 {
				t.Fatalf("channel %d frame %d = %v, want 0", c, i, v)
			}
		}
	}
}

func TestFrontStablizer_CenteredSignalFeedsCenter(t *testing.T) {
	t.Parallel()

	s := NewFrontStablizer(3, 48000)

	const frames = 512
	left := make([]float32, frames)
	right := make([]float32, frames)
	center := make([]float32, frames)
	for i := range left {
		v := float32(math.Sin(2 * math.Pi * 300 * float64(i) / 48000))
		left[i] = v
		right[i] = v
	}

	s.Process(frames, [][]float32{left, right, center}, 0, 1, 2)

	// Identical front channels have no side component, so the pair stays
	// matched while the derived center appears.
	var centerEnergy float64
	for i := 0; i < frames; i++ {
		if diff := math.Abs(float64(left[i] - right[i])); diff > 1e-5 {
			t.Fatalf("frame %d: left %v != right %v for centered input", i, left[i], right[i])
		}
		centerEnergy += float64(center[i]) * float64(center[i])
	}
	if centerEnergy < 1 {
		t.Fatalf("center energy = %v, want a solid derived center", centerEnergy)
	}

	// The mid fold-down keeps the front pair below the raw input level.
	var leftEnergy float64
	for i := 64; i < frames; i++ {
		leftEnergy += float64(left[i]) * float64(left[i])
	}
	rawEnergy := float64(frames-64) / 2
	if leftEnergy >= rawEnergy {
		t.Errorf("front pair energy %v not reduced from %v", leftEnergy, rawEnergy)
	}
}

func TestFrontStablizer_HardLeftKeepsSide(t *testing.T) {
	t.Parallel()

	s := NewFrontStablizer(3, 48000)

	const frames = 512
	left := make([]float32, frames)
	right := make([]float32, frames)
	center := make([]float32, frames)
	for i := range left {
		left[i] = float32(math.Sin(2 * math.Pi * 300 * float64(i) / 48000))
	}

	s.Process(frames, [][]float32{left, right, center}, 0, 1, 2)

	var el, er float64
	for i := 64; i < frames; i++ {
		el += float64(left[i]) * float64(left[i])
		er += float64(right[i]) * float64(right[i])
	}
	if el <= 10*er {
		t.Fatalf("hard-left image collapsed: left %v, right %v", el, er)
	}
}

func TestFrontStablizer_OtherChannelsAllPassed(t *testing.T) {
	t.Parallel()

	s := NewFrontStablizer(4, 48000)

	const frames = 512
	bufs := make([][]float32, 4)
	for c := range bufs {
		bufs[c] = make([]float32, frames)
	}
	rear := bufs[3]
	orig := make([]float32, frames)
	for i := range rear {
		rear[i] = float32(math.Sin(2 * math.Pi * 200 * float64(i) / 48000))
		orig[i] = rear[i]
	}

	s.Process(frames, bufs, 0, 1, 2)

	// The rear channel gets the phase-matching all-pass: same energy,
	// different waveform.
	var diff, eOrig, eOut float64
	for i := range rear {
		diff += math.Abs(float64(rear[i] - orig[i]))
		eOrig += float64(orig[i]) * float64(orig[i])
		eOut += float64(rear[i]) * float64(rear[i])
	}
	if diff < 1e-3 {
		t.Fatal("rear channel untouched, expected all-pass phase rotation")
	}
	if eOut < eOrig*0.5 || eOut > eOrig*1.5 {
		t.Fatalf("all-pass energy %v strayed from input %v", eOut, eOrig)
	}
}
