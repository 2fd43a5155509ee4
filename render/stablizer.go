// SPDX-License-Identifier: EPL-2.0

package render

import (
	"math"

	"github.com/ik5/audmix3d/dsp"
)

// FrontStablizer solidifies the front image of surround layouts that carry a
// discrete center channel. The front pair is band-split and folded into
// mid/side form with band-dependent rotation, deriving a center component
// that is added to the physical center channel; every other channel gets the
// matching all-pass so the phase stays aligned.
type FrontStablizer struct {
	allPass []dsp.SplitterAllPass
	lFilter dsp.BandSplitter
	rFilter dsp.BandSplitter

	lSplit [2][dsp.BufferSize]float32
	rSplit [2][dsp.BufferSize]float32
}

// NewFrontStablizer builds a stabilizer for numChans real output channels
// with the crossover tuned for the device sample rate.
func NewFrontStablizer(numChans, sampleRate int) *FrontStablizer {
	s := &FrontStablizer{
		allPass: make([]dsp.SplitterAllPass, numChans),
	}
	f0norm := bandXOverFreq / float32(sampleRate)
	for i := range s.allPass {
		s.allPass[i].SetFrequency(f0norm)
	}
	s.lFilter.SetFrequency(f0norm)
	s.rFilter.SetFrequency(f0norm)
	return s
}

// Process rewrites the front-left, front-right and center channels of the
// real output in place. lidx, ridx and cidx are channel indices into
// buffers.
func (s *FrontStablizer) Process(samplesToDo int, buffers [][]float32, lidx, ridx, cidx int) {
	cosPi6 := float32(math.Cos(math.Pi / 6))
	sinPi6 := float32(math.Sin(math.Pi / 6))
	cosPi8 := float32(math.Cos(math.Pi / 8))
	sinPi8 := float32(math.Sin(math.Pi / 8))

	for i, buf := range buffers {
		if i == lidx || i == ridx {
			continue
		}
		s.allPass[i].Process(buf[:samplesToDo])
	}

	s.lFilter.Process(s.lSplit[1][:samplesToDo], s.lSplit[0][:samplesToDo], buffers[lidx][:samplesToDo])
	s.rFilter.Process(s.rSplit[1][:samplesToDo], s.rSplit[0][:samplesToDo], buffers[ridx][:samplesToDo])

	for i := 0; i < samplesToDo; i++ {
		lf := s.lSplit[0][i] + s.rSplit[0][i]
		hf := s.lSplit[1][i] + s.rSplit[1][i]
		m := lf*cosPi6 + hf*cosPi8
		c := lf*sinPi6 + hf*sinPi8
		side := s.lSplit[0][i] + s.lSplit[1][i] - s.rSplit[0][i] - s.rSplit[1][i]

		buffers[lidx][i] = (m + side) * 0.5
		buffers[ridx][i] = (m - side) * 0.5
		buffers[cidx][i] += c * 0.5
	}
}
