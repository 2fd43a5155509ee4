package audio

import (
	"errors"
	"io"
	"math"
	"testing"
)

// failingSource reports a stream error on every read.
type failingSource struct {
	err error
}

func (f *failingSource) SampleRate() int                    { return 48000 }
func (f *failingSource) Channels() int                      { return 1 }
func (f *failingSource) BufSize() int                       { return 4096 }
func (f *failingSource) Close() error                       { return nil }
func (f *failingSource) ReadSamples([]float32) (int, error) { return 0, f.err }

// tinyBufSource forces a BufSize smaller than one frame.
type tinyBufSource struct {
	*mockSource
}

func (t tinyBufSource) BufSize() int { return 3 }

func TestResampler_Metadata(t *testing.T) {
	t.Parallel()

	src := newSilentSource(44100, 2, 1000)
	resampler := NewResampler(src, 8000)

	if resampler.SampleRate() != 8000 {
		t.Errorf("Resampler.SampleRate() = %d, want 8000", resampler.SampleRate())
	}

	if resampler.Channels() != 2 {
		t.Errorf("Resampler.Channels() = %d, want 2", resampler.Channels())
	}
}

func TestResampler_BufSize(t *testing.T) {
	t.Parallel()

	// The preferred read size rounds down to whole frames.
	six := NewResampler(newSilentSource(48000, 6, 100), 8000)
	if got := six.BufSize(); got != 4092 {
		t.Errorf("BufSize() with 6 channels = %d, want 4092", got)
	}

	stereo := NewResampler(newSilentSource(48000, 2, 100), 8000)
	if got := stereo.BufSize(); got != 4096 {
		t.Errorf("BufSize() with 2 channels = %d, want 4096", got)
	}

	// A source preferring less than one frame still yields a full frame.
	tiny := NewResampler(tinyBufSource{newSilentSource(48000, 6, 100)}, 8000)
	if got := tiny.BufSize(); got != 6 {
		t.Errorf("BufSize() below one frame = %d, want 6", got)
	}
}

func TestResampler_SameRate(t *testing.T) {
	t.Parallel()

	// Equal rates leave the values untouched.
	src := newConstantSource(8000, 1, 100, 0.5)
	resampler := NewResampler(src, 8000)

	buf := make([]float32, 100)
	n, err := resampler.ReadSamples(buf)
	if err != nil && err != io.EOF {
		t.Fatalf("ReadSamples() error = %v", err)
	}
	if n == 0 {
		t.Fatal("ReadSamples() returned 0 samples")
	}

	for i := range n {
		if buf[i] != 0.5 {
			t.Errorf("buf[%d] = %v, want 0.5", i, buf[i])
		}
	}
}

func TestResampler_OutputCount(t *testing.T) {
	t.Parallel()

	// Output runs until the interpolation window loses its trailing
	// frame, so a stream of n frames yields ceil((n-1) * dst / src).
	tests := []struct {
		name      string
		srcRate   int
		dstRate   int
		srcFrames int
		want      int
	}{
		{name: "cd to wideband", srcRate: 44100, dstRate: 16000, srcFrames: 44100, want: 16000},
		{name: "studio to narrowband", srcRate: 48000, dstRate: 8000, srcFrames: 48000, want: 8000},
		{name: "same rate", srcRate: 8000, dstRate: 8000, srcFrames: 100, want: 99},
		{name: "narrowband to cd", srcRate: 8000, dstRate: 44100, srcFrames: 8000, want: 44095},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := newSineSource(tt.srcRate, 1, tt.srcFrames, 440.0)
			resampler := NewResampler(src, tt.dstRate)

			buf := make([]float32, 1024)
			total := 0
			for {
				n, err := resampler.ReadSamples(buf)
				total += n
				if err == io.EOF {
					break
				}
				if err != nil {
					t.Fatalf("ReadSamples() error = %v", err)
				}
			}

			if total != tt.want {
				t.Errorf("produced %d samples, want %d", total, tt.want)
			}
		})
	}
}

func TestResampler_Downsampling(t *testing.T) {
	t.Parallel()

	// One second at 44.1kHz down to 8kHz.
	src := newSineSource(44100, 1, 44100, 440.0)
	resampler := NewResampler(src, 8000)

	buf := make([]float32, 1024)
	var samples []float32
	for {
		n, err := resampler.ReadSamples(buf)
		if n > 0 {
			samples = append(samples, buf[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadSamples() error = %v", err)
		}
	}

	expected := 8000
	tolerance := 100
	if len(samples) < expected-tolerance || len(samples) > expected+tolerance {
		t.Errorf("resampled %d samples, want ≈%d (±%d)", len(samples), expected, tolerance)
	}

	for i, s := range samples {
		if s < -1.5 || s > 1.5 {
			t.Errorf("samples[%d] = %v, outside reasonable range", i, s)
		}
	}
}

func TestResampler_Upsampling(t *testing.T) {
	t.Parallel()

	// One second at 8kHz up to 44.1kHz.
	src := newSineSource(8000, 1, 8000, 440.0)
	resampler := NewResampler(src, 44100)

	buf := make([]float32, 1024)
	var samples []float32
	for {
		n, err := resampler.ReadSamples(buf)
		if n > 0 {
			samples = append(samples, buf[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadSamples() error = %v", err)
		}
	}

	expected := 44100
	tolerance := 500
	if len(samples) < expected-tolerance || len(samples) > expected+tolerance {
		t.Errorf("resampled %d samples, want ≈%d (±%d)", len(samples), expected, tolerance)
	}

	for i, s := range samples {
		if s < -1.5 || s > 1.5 {
			t.Errorf("samples[%d] = %v, outside reasonable range", i, s)
		}
	}
}

// TestResampler_RampKnots upsamples a linear ramp by an exact factor of
// four and checks every fourth output lands back on a source frame, which
// pins the stream to start at the first frame with no offset.
func TestResampler_RampKnots(t *testing.T) {
	t.Parallel()

	const step = float32(0.001)
	src := newRampSource(8000, 1, 200, step)
	resampler := NewResampler(src, 32000)

	buf := make([]float32, 512)
	var samples []float32
	for {
		n, err := resampler.ReadSamples(buf)
		if n > 0 {
			samples = append(samples, buf[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadSamples() error = %v", err)
		}
	}

	if samples[0] != 0 {
		t.Errorf("samples[0] = %v, want 0", samples[0])
	}
	for m := 1; 4*m < len(samples); m++ {
		want := float32(m) * step
		if got := samples[4*m]; got != want {
			t.Errorf("samples[%d] = %v, want %v", 4*m, got, want)
			break
		}
	}
}

func TestResampler_StereoPreserved(t *testing.T) {
	t.Parallel()

	// Constant per-channel values survive downsampling, including the
	// very first frame: the anti-alias filter seeds from the stream
	// rather than from zero.
	src := newMockSource(44100, 2, 1000, func(frame, channel int) float32 {
		if channel == 0 {
			return 0.3
		}
		return 0.7
	})

	resampler := NewResampler(src, 8000)

	if resampler.Channels() != 2 {
		t.Fatalf("Resampler.Channels() = %d, want 2", resampler.Channels())
	}

	buf := make([]float32, 20)
	n, err := resampler.ReadSamples(buf)
	if n == 0 {
		t.Fatal("ReadSamples() returned 0 samples")
	}
	if err != nil && err != io.EOF {
		t.Fatalf("ReadSamples() error = %v", err)
	}

	frames := n / 2
	for f := range frames {
		left := buf[f*2]
		right := buf[f*2+1]

		if math.Abs(float64(left-0.3)) > 0.01 {
			t.Errorf("frame[%d] left = %v, want ≈0.3", f, left)
		}
		if math.Abs(float64(right-0.7)) > 0.01 {
			t.Errorf("frame[%d] right = %v, want ≈0.7", f, right)
		}
	}
}

func TestResampler_EOF(t *testing.T) {
	t.Parallel()

	src := newSilentSource(44100, 1, 100)
	resampler := NewResampler(src, 8000)

	buf := make([]float32, 1024)
	var totalRead int
	for {
		n, err := resampler.ReadSamples(buf)
		totalRead += n
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadSamples() error = %v", err)
		}
	}

	if totalRead == 0 {
		t.Error("no samples read before EOF")
	}

	// EOF repeats on further reads.
	n, err := resampler.ReadSamples(buf)
	if err != io.EOF {
		t.Errorf("after EOF, ReadSamples() error = %v, want io.EOF", err)
	}
	if n != 0 {
		t.Errorf("after EOF, ReadSamples() n = %d, want 0", n)
	}
}

func TestResampler_SourceError(t *testing.T) {
	t.Parallel()

	errBroken := errors.New("stream truncated")
	resampler := NewResampler(&failingSource{err: errBroken}, 8000)

	buf := make([]float32, 64)
	n, err := resampler.ReadSamples(buf)
	if n != 0 {
		t.Errorf("ReadSamples() n = %d, want 0", n)
	}
	if !errors.Is(err, errBroken) {
		t.Errorf("ReadSamples() error = %v, want wrapped %v", err, errBroken)
	}
}

func TestResampler_InvalidDstSize(t *testing.T) {
	t.Parallel()

	src := newSilentSource(44100, 2, 1000)
	resampler := NewResampler(src, 8000)

	// Buffer length not a multiple of the channel count.
	buf := make([]float32, 7)
	_, err := resampler.ReadSamples(buf)

	if err != ErrInvalidDstSize {
		t.Errorf("ReadSamples() with invalid size error = %v, want ErrInvalidDstSize", err)
	}
}

func TestResampler_VeryShortSource(t *testing.T) {
	t.Parallel()

	src := newSilentSource(44100, 1, 2)
	resampler := NewResampler(src, 8000)

	buf := make([]float32, 10)
	n, err := resampler.ReadSamples(buf)

	if err != io.EOF && err != nil {
		t.Fatalf("ReadSamples() error = %v", err)
	}
	if n < 0 {
		t.Errorf("ReadSamples() n = %d, want non-negative", n)
	}
}

func TestResampler_SmallBuffer(t *testing.T) {
	t.Parallel()

	src := newSineSource(44100, 2, 44100, 440.0)
	resampler := NewResampler(src, 8000)

	// Room for a single stereo frame.
	buf := make([]float32, 2)
	n, err := resampler.ReadSamples(buf)

	if err != nil && err != io.EOF {
		t.Fatalf("ReadSamples() error = %v", err)
	}
	if n != 2 && n != 0 {
		t.Errorf("ReadSamples() n = %d, want 2 or 0", n)
	}
}

func TestResampler_MultiChannelPreservation(t *testing.T) {
	t.Parallel()

	// 5.1 surround stays six interleaved channels.
	src := newMockSource(44100, 6, 1000, func(frame, channel int) float32 {
		return float32(channel) * 0.1
	})

	resampler := NewResampler(src, 8000)

	if resampler.Channels() != 6 {
		t.Errorf("Resampler.Channels() = %d, want 6", resampler.Channels())
	}

	buf := make([]float32, 60)
	n, err := resampler.ReadSamples(buf)

	if err != nil && err != io.EOF {
		t.Fatalf("ReadSamples() error = %v", err)
	}
	if n%6 != 0 {
		t.Errorf("ReadSamples() n = %d, not a whole number of frames", n)
	}
}

func TestResampler_Close(t *testing.T) {
	t.Parallel()

	src := newSilentSource(44100, 2, 1000)
	resampler := NewResampler(src, 8000)

	if err := resampler.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}

func TestResampler_ConsecutiveReads(t *testing.T) {
	t.Parallel()

	src := newConstantSource(44100, 1, 44100, 0.5)
	resampler := NewResampler(src, 8000)

	buf1 := make([]float32, 100)
	buf2 := make([]float32, 100)

	n1, err1 := resampler.ReadSamples(buf1)
	if err1 != nil && err1 != io.EOF {
		t.Fatalf("first ReadSamples() error = %v", err1)
	}
	n2, err2 := resampler.ReadSamples(buf2)
	if err2 != nil && err2 != io.EOF {
		t.Fatalf("second ReadSamples() error = %v", err2)
	}

	if n1 == 0 && err1 != io.EOF {
		t.Error("first read returned 0 samples without EOF")
	}
	if n2 == 0 && err2 != io.EOF && err1 != io.EOF {
		t.Error("second read returned 0 samples without EOF")
	}
}

// TestResampler_SteadyStateAllocs checks ReadSamples does not allocate once
// the window buffers exist.
func TestResampler_SteadyStateAllocs(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping allocation test in short mode")
	}

	src := newSineSource(44100, 2, 10000000, 440.0)
	resampler := NewResampler(src, 8000)
	buf := make([]float32, 4096)

	resampler.ReadSamples(buf)

	allocs := testing.AllocsPerRun(100, func() {
		_, _ = resampler.ReadSamples(buf)
	})

	if allocs > 0 {
		t.Errorf("ReadSamples() allocated %v times in steady state, want 0", allocs)
	}
}

// BenchmarkResampler_Downsample measures 44.1kHz -> 8kHz stereo.
func BenchmarkResampler_Downsample(b *testing.B) {
	src := newSineSource(44100, 2, 100000, 440.0)
	buf := make([]float32, 4096)

	b.ReportAllocs()

	for b.Loop() {
		src.rewind()
		resampler := NewResampler(src, 8000)
		for {
			_, err := resampler.ReadSamples(buf)
			if err == io.EOF {
				break
			}
		}
	}
}

// BenchmarkResampler_Upsample measures 8kHz -> 44.1kHz stereo.
func BenchmarkResampler_Upsample(b *testing.B) {
	src := newSineSource(8000, 2, 20000, 440.0)
	buf := make([]float32, 4096)

	b.ReportAllocs()

	for b.Loop() {
		src.rewind()
		resampler := NewResampler(src, 44100)
		for {
			_, err := resampler.ReadSamples(buf)
			if err == io.EOF {
				break
			}
		}
	}
}
