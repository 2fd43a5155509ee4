// SPDX-License-Identifier: EPL-2.0

package utils

import (
	"math"
	"testing"
)

func TestFloat32ToInt16(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input float32
		want  int16
	}{
		{name: "zero", input: 0, want: 0},
		{name: "full scale positive", input: 1, want: 32767},
		{name: "full scale negative", input: -1, want: -32767},
		{name: "half positive", input: 0.5, want: 16383},
		{name: "half negative", input: -0.5, want: -16383},
		{name: "quarter", input: 0.25, want: 8191},
		{name: "near silence", input: 0.001, want: 32},
		{name: "clamps above one", input: 1.5, want: 32767},
		{name: "clamps below minus one", input: -1.5, want: -32767},
		{name: "clamps far out of range", input: 100, want: 32767},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Float32ToInt16(tt.input)
			// Truncation may land one step below the nominal value.
			if diff := int32(got) - int32(tt.want); diff > 1 || diff < -1 {
				t.Errorf("Float32ToInt16(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// TestFloat32ToInt16Sweep walks the full input range and checks the output
// stays valid, proportional, and never steps backwards.
func TestFloat32ToInt16Sweep(t *testing.T) {
	t.Parallel()

	prev := Float32ToInt16(-1.0)

	for f := -0.99; f <= 1.0; f += 0.01 {
		got := Float32ToInt16(float32(f))

		expected := int32(f * 32767.0)
		if diff := int32(got) - expected; diff > 1 || diff < -1 {
			t.Errorf("Float32ToInt16(%v) = %v, want ≈%v", f, got, expected)
		}
		if got < prev {
			t.Errorf("Float32ToInt16 not monotonic at %v: %v after %v", f, got, prev)
		}
		prev = got
	}
}

// TestFloat32ToInt16Symmetry checks positive and negative inputs map to
// mirrored outputs.
func TestFloat32ToInt16Symmetry(t *testing.T) {
	t.Parallel()

	for _, val := range []float32{0.1, 0.25, 0.5, 0.75, 0.9, 0.99, 1.0} {
		pos := Float32ToInt16(val)
		neg := Float32ToInt16(-val)

		if math.Abs(float64(int32(pos)+int32(neg))) > 1 {
			t.Errorf("asymmetric conversion: +%v=%v, -%v=%v", val, pos, val, neg)
		}
	}
}

func TestFloat32ToInt16_ZeroAllocs(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping allocation test in short mode")
	}

	allocs := testing.AllocsPerRun(1000, func() {
		_ = Float32ToInt16(0.5)
	})

	if allocs > 0 {
		t.Errorf("Float32ToInt16 allocated %v times, want 0", allocs)
	}
}

// BenchmarkFloat32ToInt16Batch measures converting a mixer-sized block.
func BenchmarkFloat32ToInt16Batch(b *testing.B) {
	floatBuf := make([]float32, 1024)
	int16Buf := make([]int16, 1024)
	for i := range floatBuf {
		floatBuf[i] = float32(math.Sin(float64(i) * 0.1))
	}

	b.ReportAllocs()

	for b.Loop() {
		for i := range floatBuf {
			int16Buf[i] = Float32ToInt16(floatBuf[i])
		}
	}
}
