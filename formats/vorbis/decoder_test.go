// SPDX-License-Identifier: EPL-2.0

package vorbis

import (
	"bytes"
	"io"
	"testing"
)

// mockOggVorbisReader simulates oggvorbis.Reader. Like the real reader,
// Read returns the number of float32 values delivered, always a whole
// number of frames.
type mockOggVorbisReader struct {
	sampleRate   int
	channels     int
	samples      []float32
	offset       int
	returnErrors bool
}

func (m *mockOggVorbisReader) SampleRate() int { return m.sampleRate }
func (m *mockOggVorbisReader) Channels() int   { return m.channels }

func (m *mockOggVorbisReader) Read(buf []float32) (int, error) {
	if m.returnErrors {
		return 0, io.ErrUnexpectedEOF
	}
	if m.offset >= len(m.samples) {
		return 0, io.EOF
	}

	n := min(len(buf)/m.channels*m.channels, len(m.samples)-m.offset)
	copy(buf, m.samples[m.offset:m.offset+n])
	m.offset += n

	if m.offset >= len(m.samples) {
		return n, io.EOF
	}
	return n, nil
}

func newMockVorbisSource(sampleRate, channels int, samples []float32) *source {
	return &source{
		dec: &mockOggVorbisReader{
			sampleRate: sampleRate,
			channels:   channels,
			samples:    samples,
		},
		sampleRate: sampleRate,
		channels:   channels,
		frameBuf:   make([]float32, 4096),
	}
}

func TestDecoder_InvalidInput(t *testing.T) {
	t.Parallel()

	decoder := Decoder{}
	_, err := decoder.Decode(bytes.NewReader([]byte("This is not an Ogg stream")))
	if err == nil {
		t.Error("Decode() error = nil, want error for invalid data")
	}
}

func TestDecoder_EmptyInput(t *testing.T) {
	t.Parallel()

	decoder := Decoder{}
	_, err := decoder.Decode(bytes.NewReader([]byte{}))
	if err == nil {
		t.Error("Decode() error = nil, want error for empty input")
	}
}

func TestSource_Metadata(t *testing.T) {
	t.Parallel()

	src := newMockVorbisSource(44100, 2, make([]float32, 100))

	if src.SampleRate() != 44100 {
		t.Errorf("SampleRate() = %d, want 44100", src.SampleRate())
	}
	if src.Channels() != 2 {
		t.Errorf("Channels() = %d, want 2", src.Channels())
	}
	if err := src.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}

func TestSource_ReadSamples(t *testing.T) {
	t.Parallel()

	testSamples := []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8}
	src := newMockVorbisSource(8000, 2, testSamples)

	dst := make([]float32, 8)
	n, err := src.ReadSamples(dst)
	if err != nil && err != io.EOF {
		t.Fatalf("ReadSamples() error = %v", err)
	}
	if n != 8 {
		t.Errorf("ReadSamples() n = %d, want 8", n)
	}
	for i := 0; i < n; i++ {
		if dst[i] != testSamples[i] {
			t.Errorf("dst[%d] = %v, want %v", i, dst[i], testSamples[i])
		}
	}
}

func TestSource_ReadSamples_EmptyBuffer(t *testing.T) {
	t.Parallel()

	src := newMockVorbisSource(8000, 2, make([]float32, 10))
	n, err := src.ReadSamples(nil)
	if err != nil {
		t.Errorf("ReadSamples(nil) error = %v, want nil", err)
	}
	if n != 0 {
		t.Errorf("ReadSamples(nil) n = %d, want 0", n)
	}
}

func TestSource_ReadSamples_OddBufferRoundsDown(t *testing.T) {
	t.Parallel()

	testSamples := []float32{0.1, 0.2, 0.3, 0.4}
	src := newMockVorbisSource(8000, 2, testSamples)

	// Room for 2.5 stereo frames; only whole frames come back.
	dst := make([]float32, 5)
	n, err := src.ReadSamples(dst)
	if err != nil && err != io.EOF {
		t.Fatalf("ReadSamples() error = %v", err)
	}
	if n != 4 {
		t.Errorf("ReadSamples() n = %d, want 4", n)
	}
}

func TestSource_ReadSamples_EOF(t *testing.T) {
	t.Parallel()

	src := newMockVorbisSource(8000, 1, []float32{0.5, -0.5})

	dst := make([]float32, 8)
	n1, err1 := src.ReadSamples(dst)
	if err1 != io.EOF {
		t.Errorf("First ReadSamples() error = %v, want io.EOF", err1)
	}
	if n1 != 2 {
		t.Errorf("First ReadSamples() n = %d, want 2", n1)
	}

	n2, err2 := src.ReadSamples(dst)
	if err2 != io.EOF {
		t.Errorf("Second ReadSamples() error = %v, want io.EOF", err2)
	}
	if n2 != 0 {
		t.Errorf("Second ReadSamples() n = %d, want 0", n2)
	}
}

func TestSource_ReadSamples_MultipleChannels(t *testing.T) {
	t.Parallel()

	// Quad: one frame carries 4 values.
	testSamples := []float32{
		0.1, 0.2, 0.3, 0.4,
		0.5, 0.6, 0.7, 0.8,
	}
	src := newMockVorbisSource(48000, 4, testSamples)

	dst := make([]float32, 8)
	n, err := src.ReadSamples(dst)
	if err != nil && err != io.EOF {
		t.Fatalf("ReadSamples() error = %v", err)
	}
	if n != 8 {
		t.Errorf("ReadSamples() n = %d, want 8", n)
	}
	for i := 0; i < n; i++ {
		if dst[i] != testSamples[i] {
			t.Errorf("dst[%d] = %v, want %v", i, dst[i], testSamples[i])
		}
	}
}

func TestSource_ReadSamples_Error(t *testing.T) {
	t.Parallel()

	src := &source{
		dec: &mockOggVorbisReader{
			sampleRate:   8000,
			channels:     1,
			samples:      []float32{0.1},
			returnErrors: true,
		},
		sampleRate: 8000,
		channels:   1,
		frameBuf:   make([]float32, 4096),
	}

	dst := make([]float32, 8)
	if _, err := src.ReadSamples(dst); err == nil {
		t.Error("ReadSamples() error = nil, want error")
	}
}

func TestSource_DrainLongStream(t *testing.T) {
	t.Parallel()

	samples := make([]float32, 10000)
	for i := range samples {
		samples[i] = float32(i%100) / 100.0
	}
	src := newMockVorbisSource(44100, 2, samples)

	dst := make([]float32, 512)
	var total int
	for {
		n, err := src.ReadSamples(dst)
		total += n
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadSamples() error = %v", err)
		}
	}
	if total != len(samples) {
		t.Errorf("drained %d samples, want %d", total, len(samples))
	}
}

func BenchmarkSource_ReadSamples(b *testing.B) {
	samples := make([]float32, 44100)
	src := newMockVorbisSource(44100, 2, samples)
	dst := make([]float32, 4096)

	b.ResetTimer()
	b.ReportAllocs()

	for b.Loop() {
		src.dec.(*mockOggVorbisReader).offset = 0
		for {
			n, err := src.ReadSamples(dst)
			if err == io.EOF || n == 0 {
				break
			}
		}
	}
}
