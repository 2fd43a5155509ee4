// SPDX-License-Identifier: EPL-2.0

package dsp

import (
	"math"
	"testing"
)

func TestNFCFilter_MatchedFrequenciesAreTransparent(t *testing.T) {
	t.Parallel()

	// With the source at the speaker radius the boost and cut sides cancel
	// and every order passes unchanged.
	var f NFCFilter
	f.Init(0.02, 0.02)

	in := make([]float32, 128)
	for i := range in {
		in[i] = float32(math.Sin(float64(i) * 0.4))
	}

	for order, process := range map[int]func(dst, src []float32){
		1: f.Process1,
		2: f.Process2,
		3: f.Process3,
	} {
		out := make([]float32, len(in))
		process(out, in)
		for i := range in {
			if diff := math.Abs(float64(out[i] - in[i])); diff > 1e-5 {
				t.Errorf("order %d: out[%d] = %v, want %v", order, i, out[i], in[i])
				break
			}
		}
	}
}

func TestNFCFilter_NearFieldBassRise(t *testing.T) {
	t.Parallel()

	// A source at half the speaker distance doubles w0; the DC gain of an
	// order-n section is (w0/w1)^n.
	const w0, w1 = 0.02, 0.01

	var f NFCFilter
	f.Init(w0, w1)

	in := make([]float32, 4096)
	for i := range in {
		in[i] = 1.0
	}

	tests := []struct {
		order   int
		process func(dst, src []float32)
		want    float64
	}{
		{order: 1, process: f.Process1, want: 2.0},
		{order: 2, process: f.Process2, want: 4.0},
		{order: 3, process: f.Process3, want: 8.0},
	}

	for _, tt := range tests {
		out := make([]float32, len(in))
		tt.process(out, in)
		got := float64(out[len(out)-1])
		if diff := math.Abs(got - tt.want); diff > tt.want*0.02 {
			t.Errorf("order %d DC gain = %v, want ≈%v", tt.order, got, tt.want)
		}
	}
}

func TestNFCFilter_AdjustMatchesInit(t *testing.T) {
	t.Parallel()

	const w1 = 0.015

	in := make([]float32, 256)
	for i := range in {
		in[i] = float32(math.Sin(float64(i) * 0.23))
	}

	// Filtering with a retuned w0 from the start...
	var direct NFCFilter
	direct.Init(0.03, w1)
	wantOut := make([]float32, len(in))
	direct.Process1(wantOut, in)

	// ...must match Init at the same w0 followed by a redundant Adjust.
	var adjusted NFCFilter
	adjusted.Init(0.03, w1)
	adjusted.Adjust(0.03)
	gotOut := make([]float32, len(in))
	adjusted.Process1(gotOut, in)

	for i := range in {
		if gotOut[i] != wantOut[i] {
			t.Fatalf("Adjust to the same w0 changed output at %d: %v vs %v",
				i, gotOut[i], wantOut[i])
		}
	}
}

func TestNFCFilter_AdjustKeepsHistory(t *testing.T) {
	t.Parallel()

	const w1 = 0.015

	in := make([]float32, 512)
	for i := range in {
		in[i] = float32(math.Sin(float64(i) * 0.11))
	}

	var whole NFCFilter
	whole.Init(0.03, w1)
	wantOut := make([]float32, len(in))
	whole.Process2(wantOut, in)

	var split NFCFilter
	split.Init(0.03, w1)
	gotOut := make([]float32, len(in))
	split.Process2(gotOut[:256], in[:256])
	split.Adjust(0.03)
	split.Process2(gotOut[256:], in[256:])

	for i := range in {
		if gotOut[i] != wantOut[i] {
			t.Fatalf("block-split output differs at %d: %v vs %v", i, gotOut[i], wantOut[i])
		}
	}
}
