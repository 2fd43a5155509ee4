// SPDX-License-Identifier: EPL-2.0

package dsp

import "math"

// Compressor is the device output look-ahead limiter. All channels share a
// single gain envelope (linked peak detection), so the stereo or surround
// image does not shift when one channel clips. The audio path is delayed by
// the look-ahead window, letting the gain envelope reach its target before
// the peak arrives.
type Compressor struct {
	numChans  int
	lookAhead int

	threshold float32
	attack    float32
	release   float32

	delay    [][]float32
	peaks    []float32
	delayPos int
	envelope float32

	scratch [BufferSize]float32
}

// NewCompressor creates a limiter for numChans channels at sampleRate with
// the given look-ahead window in seconds. Attack matches the look-ahead;
// release is fixed at 200ms.
func NewCompressor(numChans, sampleRate int, lookAheadSec float32) *Compressor {
	lookAhead := int(lookAheadSec*float32(sampleRate) + 0.5)
	if lookAhead < 1 {
		lookAhead = 1
	}

	c := &Compressor{
		numChans:  numChans,
		lookAhead: lookAhead,
		threshold: 1.0,
		attack:    1.0 - float32(math.Exp(-1.0/float64(lookAhead))),
		release:   1.0 - float32(math.Exp(-1.0/(0.200*float64(sampleRate)))),
		delay:     make([][]float32, numChans),
		peaks:     make([]float32, lookAhead),
		envelope:  1.0,
	}
	for i := range c.delay {
		c.delay[i] = make([]float32, lookAhead)
	}
	return c
}

// LookAhead returns the limiter delay in frames.
func (c *Compressor) LookAhead() int { return c.lookAhead }

// Process limits samplesToDo frames across the buffers in place. It does not
// allocate.
func (c *Compressor) Process(samplesToDo int, buffers [][]float32) {
	la := c.lookAhead
	env := c.envelope
	pos := c.delayPos

	for i := 0; i < samplesToDo; i++ {
		// Linked peak of the incoming frame, entering the look-ahead
		// window as the oldest delayed frame leaves it.
		var peak float32
		for ch := 0; ch < c.numChans; ch++ {
			v := buffers[ch][i]
			if v < 0 {
				v = -v
			}
			if v > peak {
				peak = v
			}
		}
		c.peaks[pos] = peak

		// Highest peak still inside the window decides the target gain.
		var windowPeak float32
		for _, p := range c.peaks {
			if p > windowPeak {
				windowPeak = p
			}
		}
		target := float32(1.0)
		if windowPeak > c.threshold {
			target = c.threshold / windowPeak
		}

		if target < env {
			env += (target - env) * c.attack
		} else {
			env += (target - env) * c.release
		}
		c.scratch[i] = env

		pos++
		if pos == la {
			pos = 0
		}
	}

	// Swap each channel through its delay line, then apply the envelope.
	for ch := 0; ch < c.numChans; ch++ {
		buf := buffers[ch]
		dline := c.delay[ch]
		dpos := c.delayPos
		for i := 0; i < samplesToDo; i++ {
			buf[i], dline[dpos] = dline[dpos], buf[i]
			buf[i] *= c.scratch[i]
			dpos++
			if dpos == la {
				dpos = 0
			}
		}
	}

	c.delayPos = (c.delayPos + samplesToDo) % la
	c.envelope = env
}
