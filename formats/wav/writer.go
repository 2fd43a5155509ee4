// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Format tags and the WAVE_FORMAT_EXTENSIBLE subformat GUIDs.
const (
	formatPCM        = 0x0001
	formatFloat      = 0x0003
	formatExtensible = 0xFFFE
)

var (
	subformatPCM = [16]byte{
		0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00,
		0x80, 0x00, 0x00, 0xaa, 0x00, 0x38, 0x9b, 0x71,
	}
	subformatFloat = [16]byte{
		0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00,
		0x80, 0x00, 0x00, 0xaa, 0x00, 0x38, 0x9b, 0x71,
	}
	subformatBFormatPCM = [16]byte{
		0x01, 0x00, 0x00, 0x00, 0x21, 0x07, 0xd3, 0x11,
		0x86, 0x44, 0xc8, 0xc1, 0xca, 0x00, 0x00, 0x00,
	}
	subformatBFormatFloat = [16]byte{
		0x03, 0x00, 0x00, 0x00, 0x21, 0x07, 0xd3, 0x11,
		0x86, 0x44, 0xc8, 0xc1, 0xca, 0x00, 0x00, 0x00,
	}
)

// Spec describes the stream a Writer produces.
type Spec struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	Float         bool
	// ChannelMask holds the speaker position bits. A non-zero mask (or
	// more than two channels) selects a WAVE_FORMAT_EXTENSIBLE header.
	ChannelMask uint32
	// Ambisonic tags the data as B-Format rather than speaker feeds.
	// The channels carry no positions, so ChannelMask should be zero.
	// Readers of .amb files expect FuMa ordering and normalization.
	Ambisonic bool
}

// Writer streams interleaved PCM into a RIFF/WAVE container. The chunk
// sizes are back-patched on Close, so the underlying writer must support
// seeking. Multi-channel and float output use the extensible header with
// the channel mask.
type Writer struct {
	ws      io.WriteSeeker
	spec    Spec
	written int64
	closed  bool
}

// NewWriter writes the WAV header for spec and returns a Writer ready to
// accept sample data.
func NewWriter(ws io.WriteSeeker, spec Spec) (*Writer, error) {
	if spec.SampleRate <= 0 || spec.Channels <= 0 {
		return nil, ErrUnsupportedWavLayout
	}
	switch spec.BitsPerSample {
	case 8, 16, 32:
	default:
		return nil, ErrUnsupportedBitDepth
	}
	if spec.Float && spec.BitsPerSample != 32 {
		return nil, ErrUnsupportedBitDepth
	}

	w := &Writer{ws: ws, spec: spec}
	if err := w.writeHeader(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) extensible() bool {
	return w.spec.ChannelMask != 0 || w.spec.Channels > 2 || w.spec.Ambisonic
}

func (w *Writer) writeHeader() error {
	spec := w.spec
	bytesPerSample := spec.BitsPerSample / 8
	blockAlign := spec.Channels * bytesPerSample
	byteRate := spec.SampleRate * blockAlign

	var buf []byte
	put16 := func(v uint16) {
		buf = binary.LittleEndian.AppendUint16(buf, v)
	}
	put32 := func(v uint32) {
		buf = binary.LittleEndian.AppendUint32(buf, v)
	}

	buf = append(buf, "RIFF"...)
	put32(0xFFFFFFFF) // patched on Close
	buf = append(buf, "WAVE"...)

	buf = append(buf, "fmt "...)
	if w.extensible() {
		put32(40)
		put16(formatExtensible)
	} else {
		put32(16)
		if spec.Float {
			put16(formatFloat)
		} else {
			put16(formatPCM)
		}
	}
	put16(uint16(spec.Channels))
	put32(uint32(spec.SampleRate))
	put32(uint32(byteRate))
	put16(uint16(blockAlign))
	put16(uint16(spec.BitsPerSample))
	if w.extensible() {
		put16(22) // cbSize
		put16(uint16(spec.BitsPerSample))
		put32(spec.ChannelMask)
		switch {
		case spec.Ambisonic && spec.Float:
			buf = append(buf, subformatBFormatFloat[:]...)
		case spec.Ambisonic:
			buf = append(buf, subformatBFormatPCM[:]...)
		case spec.Float:
			buf = append(buf, subformatFloat[:]...)
		default:
			buf = append(buf, subformatPCM[:]...)
		}
	}

	buf = append(buf, "data"...)
	put32(0xFFFFFFFF) // patched on Close

	if _, err := w.ws.Write(buf); err != nil {
		return fmt.Errorf("writing wav header: %w", err)
	}
	return nil
}

// Write appends raw little-endian sample data to the data chunk.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrWriterClosed
	}
	n, err := w.ws.Write(p)
	w.written += int64(n)
	if err != nil {
		return n, fmt.Errorf("%w", err)
	}
	return n, nil
}

// Frames returns the number of sample frames written so far.
func (w *Writer) Frames() int64 {
	blockAlign := int64(w.spec.Channels * w.spec.BitsPerSample / 8)
	return w.written / blockAlign
}

// Close patches the RIFF and data chunk sizes. The underlying writer is
// not closed.
func (w *Writer) Close() error {
	if w.closed {
		return ErrWriterClosed
	}
	w.closed = true

	end, err := w.ws.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("%w", err)
	}

	dataOfs := end - w.written - 4
	var sz [4]byte

	binary.LittleEndian.PutUint32(sz[:], uint32(end-8))
	if _, err := w.ws.Seek(4, io.SeekStart); err != nil {
		return fmt.Errorf("%w", err)
	}
	if _, err := w.ws.Write(sz[:]); err != nil {
		return fmt.Errorf("%w", err)
	}

	binary.LittleEndian.PutUint32(sz[:], uint32(w.written))
	if _, err := w.ws.Seek(dataOfs, io.SeekStart); err != nil {
		return fmt.Errorf("%w", err)
	}
	if _, err := w.ws.Write(sz[:]); err != nil {
		return fmt.Errorf("%w", err)
	}

	if _, err := w.ws.Seek(end, io.SeekStart); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

// WriteWAV16 writes a complete mono-or-multichannel 16-bit PCM WAV in one
// shot. samples are interleaved int16 PCM.
func WriteWAV16(w io.Writer, sampleRate, channels int, samples []int16) error {
	if channels <= 0 {
		channels = 1
	}
	blockAlign := channels * 2
	byteRate := sampleRate * blockAlign
	dataSize := uint32(len(samples) * 2)

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], 36+dataSize)
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], formatPCM)
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], 16)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], dataSize)

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("%w", err)
	}

	const chunkFrames = 4096
	buf := make([]byte, 0, chunkFrames*2)
	for i := 0; i < len(samples); i += chunkFrames {
		end := min(i+chunkFrames, len(samples))
		buf = buf[:0]
		for _, s := range samples[i:end] {
			buf = binary.LittleEndian.AppendUint16(buf, uint16(s))
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("%w", err)
		}
	}
	return nil
}
