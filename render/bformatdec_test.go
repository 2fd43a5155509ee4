// SPDX-License-Identifier: EPL-2.0

package render

import (
	"math"
	"testing"

	"github.com/ik5/audmix3d/dsp"
)

func TestBFormatDec_SingleBandMatrix(t *testing.T) {
	t.Parallel()

	matrix := [][]float32{
		{0.7071, 0.5, 0.25},
		{0.7071, -0.5, 0},
	}
	dec := NewBFormatDec(matrix)

	const frames = 64
	in := make([][]float32, 3)
	for c := range in {
		in[c] = make([]float32, frames)
		for i := range in[c] {
			in[c][i] = float32(math.Sin(float64(i)*0.1 + float64(c)))
		}
	}
	out := [][]float32{make([]float32, frames), make([]float32, frames)}

	dec.Process(frames, out, in)

	for o := range out {
		for i := 0; i < frames; i++ {
			var want float32
			for c := range in {
				if matrix[o][c] == 0 {
					continue
				}
				want += matrix[o][c] * in[c][i]
			}
			if out[o][i] != want {
				t.Fatalf("out[%d][%d] = %v, want %v", o, i, out[o][i], want)
			}
		}
	}
}

func TestBFormatDec_Accumulates(t *testing.T) {
	t.Parallel()

	dec := NewBFormatDec([][]float32{{2.0}})
	in := [][]float32{{0.25, 0.5}}
	out := [][]float32{{1.0, 1.0}}

	dec.Process(2, out, in)
	if out[0][0] != 1.5 || out[0][1] != 2.0 {
		t.Fatalf("out = %v, want [1.5 2]", out[0])
	}
}

func TestBFormatDecDual_EqualMatricesActAllPass(t *testing.T) {
	t.Parallel()

	// When both band matrices agree the dual-band decode must collapse to
	// the matrix applied to the all-passed input.
	matrix := [][]float32{{0.8}, {-0.6}}
	dec := NewBFormatDecDual(matrix, matrix, 48000)

	const frames = 256
	in := make([]float32, frames)
	for i := range in {
		in[i] = float32(math.Sin(2*math.Pi*150*float64(i)/48000)) +
			0.5*float32(math.Sin(2*math.Pi*3000*float64(i)/48000))
	}

	ref := make([]float32, frames)
	var ap dsp.SplitterAllPass
	ap.SetFrequency(bandXOverFreq / 48000.0)
	copy(ref, in)
	ap.Process(ref)

	out := [][]float32{make([]float32, frames), make([]float32, frames)}
	dec.Process(frames, out, [][]float32{in})

	for o := range out {
		for i := 0; i < frames; i++ {
			want := matrix[o][0] * ref[i]
			if diff := math.Abs(float64(out[o][i] - want)); diff > 1e-4 {
				t.Fatalf("out[%d][%d] = %v, want %v", o, i, out[o][i], want)
			}
		}
	}
}

func TestBFormatDecDual_BandsSplitAtCrossover(t *testing.T) {
	t.Parallel()

	// LF-only output matrix: DC passes at the LF gain, HF content is cut.
	hf := [][]float32{{0}}
	lf := [][]float32{{0.9}}
	dec := NewBFormatDecDual(hf, lf, 48000)

	const frames = 512
	in := make([]float32, frames)
	for i := range in {
		in[i] = 1.0
	}
	out := [][]float32{make([]float32, frames)}
	dec.Process(frames, out, [][]float32{in})

	if diff := math.Abs(float64(out[0][frames-1]) - 0.9); diff > 0.02 {
		t.Fatalf("settled LF decode = %v, want ~0.9", out[0][frames-1])
	}
}

func TestBFormatDec_UpSample(t *testing.T) {
	t.Parallel()

	dec := NewBFormatDec(nil)
	dec.InitUpsampler(48000, 4)

	const frames = 512
	in := make([][]float32, 2)
	for c := range in {
		in[c] = make([]float32, frames)
		for i := range in[c] {
			in[c][i] = 1.0
		}
	}
	out := make([][]float32, 6)
	for c := range out {
		out[c] = make([]float32, frames)
	}

	dec.UpSample(out, in, frames)

	// At DC the fold-in is unity per channel regardless of the HF order
	// gain, and channels beyond the input stay clear.
	for c := 0; c < 2; c++ {
		if diff := math.Abs(float64(out[c][frames-1]) - 1.0); diff > 0.02 {
			t.Errorf("out[%d] settled at %v, want ~1", c, out[c][frames-1])
		}
	}
	for c := 2; c < 6; c++ {
		for i := 0; i < frames; i++ {
			if out[c][i] != 0 {
				t.Fatalf("out[%d][%d] = %v, want untouched 0", c, i, out[c][i])
			}
		}
	}
}

func ambiEncodeRow(dir [3]float32) []float32 {
	return []float32{
		1.0,
		1.732050808 * dir[1],
		1.732050808 * dir[2],
		1.732050808 * dir[0],
	}
}

func TestAmbiUpsampler_CubeRoundTrip(t *testing.T) {
	t.Parallel()

	up := NewAmbiUpsampler(48000, 4, ambiEncodeRow)

	// Decoding the cube corners and re-encoding first order is a
	// round-trip: the LF gain matrix is the identity and the HF matrix
	// carries only the per-order scales on its diagonal.
	for in := 0; in < 4; in++ {
		for o := 0; o < 4; o++ {
			wantLF := float32(0)
			if in == o {
				wantLF = 1
			}
			if diff := math.Abs(float64(up.gains[in][1][o] - wantLF)); diff > 1e-5 {
				t.Errorf("LF gain [%d][%d] = %v, want %v", in, o, up.gains[in][1][o], wantLF)
			}
			wantHF := wantLF * ambiHFOrderScales[in]
			if diff := math.Abs(float64(up.gains[in][0][o] - wantHF)); diff > 1e-5 {
				t.Errorf("HF gain [%d][%d] = %v, want %v", in, o, up.gains[in][0][o], wantHF)
			}
		}
	}
}

func TestAmbiUpsampler_ProcessKeepsChannelsSeparate(t *testing.T) {
	t.Parallel()

	up := NewAmbiUpsampler(48000, 4, ambiEncodeRow)

	const frames = 512
	in := make([][]float32, 4)
	for c := range in {
		in[c] = make([]float32, frames)
	}
	for i := range in[1] {
		in[1][i] = 1.0
	}
	out := make([][]float32, 4)
	for c := range out {
		out[c] = make([]float32, frames)
	}

	up.Process(frames, out, in)

	if diff := math.Abs(float64(out[1][frames-1]) - 1.0); diff > 0.02 {
		t.Errorf("out[1] settled at %v, want ~1", out[1][frames-1])
	}
	for _, o := range []int{0, 2, 3} {
		if diff := math.Abs(float64(out[o][frames-1])); diff > 1e-4 {
			t.Errorf("out[%d] = %v, want no cross-channel leak", o, out[o][frames-1])
		}
	}
}
