// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"fmt"
	"io"

	"github.com/ik5/audmix3d/utils"
)

// Resampler streams from src to a target sample rate using cubic
// interpolation over a four-frame window. Works on interleaved samples and
// preserves the channel count. A one-pole low-pass is applied ahead of the
// interpolator when downsampling to knock down aliasing.
//
// This is the load-time converter: buffers are brought to the device rate
// once, so the mixer's per-voice resampler only has to track pitch and
// Doppler shifts.
type Resampler struct {
	src      Source
	srcRate  float64
	dstRate  float64
	ratio    float64 // source frames advanced per output frame
	channels int

	// window[0..3] hold frames t-1, t0, t+1, t+2; interpolation happens
	// between window[1] and window[2].
	window [4][]float32
	filled [4]bool
	primed bool

	// pos is the fractional read position in [0, 1) between window[1]
	// and window[2].
	pos float64

	frameBuf []float32
	eof      bool

	lowpass     bool
	filterCoeff float32
	filterState []float32
}

func NewResampler(src Source, dstRate int) *Resampler {
	channels := src.Channels()
	ratio := float64(src.SampleRate()) / float64(dstRate)

	r := &Resampler{
		src:         src,
		srcRate:     float64(src.SampleRate()),
		dstRate:     float64(dstRate),
		ratio:       ratio,
		channels:    channels,
		frameBuf:    make([]float32, channels),
		lowpass:     ratio > 1.0,
		filterState: make([]float32, channels),
	}
	if r.lowpass {
		// One-pole smoothing sized to the rate ratio. A proper FIR would
		// do better; this keeps the worst of the fold-back out.
		r.filterCoeff = utils.Clamp(float32(1.0/ratio), 0.25, 0.75)
	}
	for i := range r.window {
		r.window[i] = make([]float32, channels)
	}
	return r
}

func (r *Resampler) SampleRate() int { return int(r.dstRate) }
func (r *Resampler) Channels() int   { return r.channels }

// BufSize reports the source's preferred read size rounded down to a whole
// number of frames, since ReadSamples rejects partial frames.
func (r *Resampler) BufSize() int {
	n := r.src.BufSize()
	if n < r.channels {
		return r.channels
	}
	return n - n%r.channels
}

func (r *Resampler) Close() error {
	err := r.src.Close()
	if err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

// readFrame reads one source frame into dst, applying the anti-alias
// filter. Returns false at end of stream.
func (r *Resampler) readFrame(dst []float32) (bool, error) {
	if r.eof {
		return false, nil
	}
	n, err := r.src.ReadSamples(r.frameBuf)
	if n > 0 {
		copy(dst, r.frameBuf[:n])
		if r.lowpass {
			for c := 0; c < r.channels; c++ {
				dst[c] = r.filterCoeff*dst[c] + (1-r.filterCoeff)*r.filterState[c]
				r.filterState[c] = dst[c]
			}
		}
	}
	if err == io.EOF {
		r.eof = true
		return n > 0, nil
	}
	if err != nil {
		return n > 0, fmt.Errorf("%w", err)
	}
	return n > 0, nil
}

// advance shifts the window forward by one source frame.
func (r *Resampler) advance() error {
	copy(r.window[0], r.window[1])
	copy(r.window[1], r.window[2])
	copy(r.window[2], r.window[3])
	r.filled[0] = r.filled[1]
	r.filled[1] = r.filled[2]
	r.filled[2] = r.filled[3]

	ok, err := r.readFrame(r.window[3])
	r.filled[3] = ok
	return err
}

// prime fills the initial window. The first frame is read unfiltered and
// seeds the anti-alias state, so a downsampled stream does not open with a
// warm-up transient. The leading slot repeats the first frame so
// interpolation starts from a stable edge.
func (r *Resampler) prime() error {
	n, err := r.src.ReadSamples(r.frameBuf)
	if n > 0 {
		copy(r.window[1], r.frameBuf[:n])
	}
	if err == io.EOF {
		r.eof = true
	} else if err != nil {
		return fmt.Errorf("%w", err)
	}
	if n == 0 {
		return io.EOF
	}
	copy(r.window[0], r.window[1])
	if r.lowpass {
		copy(r.filterState, r.window[1])
	}
	r.filled[0] = true
	r.filled[1] = true

	for i := 2; i < 4; i++ {
		ok, err := r.readFrame(r.window[i])
		if err != nil {
			return err
		}
		if !ok {
			copy(r.window[i], r.window[i-1])
		}
		r.filled[i] = ok
	}
	r.primed = true
	return nil
}

// ReadSamples produces dst samples at the target rate.
// len(dst) must be a multiple of the channel count.
func (r *Resampler) ReadSamples(dst []float32) (int, error) {
	if len(dst)%r.channels != 0 {
		return 0, ErrInvalidDstSize
	}

	if !r.primed {
		if err := r.prime(); err != nil {
			return 0, err
		}
	}

	written := 0
	framesNeeded := len(dst) / r.channels

	for written < framesNeeded {
		for r.pos >= 1.0 {
			r.pos -= 1.0
			if err := r.advance(); err != nil {
				return written * r.channels, err
			}
		}

		if !r.filled[1] || !r.filled[2] {
			if written == 0 {
				return 0, io.EOF
			}
			return written * r.channels, io.EOF
		}

		mu := float32(r.pos)
		for c := 0; c < r.channels; c++ {
			y0 := r.window[0][c]
			y1 := r.window[1][c]
			y2 := r.window[2][c]
			y3 := r.window[2][c]
			if r.filled[3] {
				y3 = r.window[3][c]
			}
			dst[written*r.channels+c] = utils.CubicInterpolate(y0, y1, y2, y3, mu)
		}

		written++
		r.pos += r.ratio
	}

	return written * r.channels, nil
}
