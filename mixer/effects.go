// SPDX-License-Identifier: EPL-2.0

package mixer

import (
	"math"

	"github.com/ik5/audmix3d/dsp"
	"github.com/ik5/audmix3d/utils"
)

// Built-in effect states. Each reads the slot's first-order wet bus and
// accumulates into the output bus through its own pan gains, so slots can
// chain into each other or into the device dry mix.

// NullState consumes its input and produces nothing; it stands in for an
// empty slot so the mixing graph never special-cases a missing effect.
type NullState struct{}

func (*NullState) DeviceUpdate(*Device) error                { return nil }
func (*NullState) Update(*Device, *EffectSlot, *EffectProps) {}
func (*NullState) Process(int, [][]float32, *MixParams)      {}

// echoMaxDelay and echoMaxLRDelay bound the two tap delays, in seconds.
const (
	echoMaxDelay   = 0.207
	echoMaxLRDelay = 0.404
)

// EchoState is a two-tap stereo echo: the first tap repeats the input after
// Delay, the second after a further LRDelay, panned to opposite sides by
// Spread, with damped feedback.
type EchoState struct {
	line []float32
	mask int
	pos  int

	tap1 int
	tap2 int

	feedback float32
	// One-pole damping on the feedback path.
	dampCoeff float32
	dampZ     float32

	gain1 [dsp.MaxOutputChannels]float32
	gain2 [dsp.MaxOutputChannels]float32
}

func NewEchoState() *EchoState { return &EchoState{} }

func (e *EchoState) DeviceUpdate(d *Device) error {
	need := int(float64(echoMaxDelay+echoMaxLRDelay)*float64(d.SampleRate)) + 1
	size := 1
	for size < need {
		size <<= 1
	}
	if len(e.line) != size {
		e.line = make([]float32, size)
		e.mask = size - 1
	} else {
		clear(e.line)
	}
	e.pos = 0
	e.dampZ = 0
	return nil
}

func (e *EchoState) Update(d *Device, slot *EffectSlot, props *EffectProps) {
	srate := float32(d.SampleRate)
	delay := utils.Clamp(props.EchoDelay, 0, echoMaxDelay)
	lrDelay := utils.Clamp(props.EchoLRDelay, 0, echoMaxLRDelay)
	e.tap1 = max(int(delay*srate+0.5), 1)
	e.tap2 = e.tap1 + max(int(lrDelay*srate+0.5), 1)
	e.feedback = props.EchoFeedback
	e.dampCoeff = min(max(props.EchoDamping, 0), 0.99)

	// Taps pan to opposite sides, collapsing to center at zero spread.
	angle := float32(math.Pi/2.0) * props.EchoSpread
	var coeffs [dsp.MaxAmbiCoeffs]float32
	gain := slot.Params.Gain
	out := &d.Dry
	if slot.Params.Target != nil {
		out = &slot.Params.Target.Wet
	}
	dsp.CalcAngleCoeffs(-angle, 0, 0, &coeffs)
	ComputePanGainsBF(out.AmbiMap, &coeffs, gain, e.gain1[:out.NumChannels()])
	dsp.CalcAngleCoeffs(angle, 0, 0, &coeffs)
	ComputePanGainsBF(out.AmbiMap, &coeffs, gain, e.gain2[:out.NumChannels()])
}

func (e *EchoState) Process(samplesToDo int, in [][]float32, out *MixParams) {
	mask := e.mask
	pos := e.pos
	for i := 0; i < samplesToDo; i++ {
		// The W channel carries the mono sum of the sends.
		input := in[0][i]

		tap1Out := e.line[(pos-e.tap1)&mask]
		tap2Out := e.line[(pos-e.tap2)&mask]

		// Damped feedback from the second tap.
		e.dampZ = tap2Out + (e.dampZ-tap2Out)*e.dampCoeff
		e.line[pos&mask] = input + e.dampZ*e.feedback
		pos++

		for c := range out.Buffer {
			out.Buffer[c][i] += tap1Out*e.gain1[c] + tap2Out*e.gain2[c]
		}
	}
	e.pos = pos & mask
}

// reverbLineCount is the feedback delay network width.
const reverbLineCount = 4

// reverbDelayTimes seed the late network with mutually prime line lengths,
// in seconds at unit density.
var reverbDelayTimes = [reverbLineCount]float32{0.0211, 0.0311, 0.0461, 0.0680}

// ReverbState is a feedback-delay-network reverb: a pre-delay feeding four
// damped delay lines mixed through a Householder matrix, with separate
// early reflection taps. Decay time and its low/high ratios set the
// per-line gain and damping.
type ReverbState struct {
	sampleRate int

	early struct {
		line []float32
		mask int
		pos  int
		taps [reverbLineCount]int
		gain float32
	}

	late struct {
		lines [reverbLineCount][]float32
		mask  [reverbLineCount]int
		lens  [reverbLineCount]int
		pos   int
		gains [reverbLineCount]float32

		// Per-line HF damping one-poles.
		dampCoeff [reverbLineCount]float32
		dampZ     [reverbLineCount]float32

		gain float32
	}

	preDelay struct {
		line []float32
		mask int
		pos  int
		len  int
	}

	// Output pan rows: W plus decorrelated XY for each line.
	outGains [reverbLineCount][dsp.MaxOutputChannels]float32
}

func NewReverbState() *ReverbState { return &ReverbState{} }

func powerOfTwo(need int) int {
	size := 1
	for size < need {
		size <<= 1
	}
	return size
}

func (r *ReverbState) DeviceUpdate(d *Device) error {
	r.sampleRate = d.SampleRate
	srate := float64(d.SampleRate)

	size := powerOfTwo(int(0.1*srate) + 1)
	r.early.line = make([]float32, size)
	r.early.mask = size - 1
	r.early.pos = 0

	for i := range r.late.lines {
		// Density scaling happens in Update; size for the largest.
		size := powerOfTwo(int(float64(reverbDelayTimes[i])*2.0*srate) + 1)
		r.late.lines[i] = make([]float32, size)
		r.late.mask[i] = size - 1
	}
	r.late.pos = 0

	size = powerOfTwo(int(0.3*srate) + 1)
	r.preDelay.line = make([]float32, size)
	r.preDelay.mask = size - 1
	r.preDelay.pos = 0
	return nil
}

func (r *ReverbState) Update(d *Device, slot *EffectSlot, props *EffectProps) {
	srate := float32(r.sampleRate)

	r.preDelay.len = max(int(props.LateReverbDelay*srate+0.5), 1)
	r.early.gain = props.Gain * props.ReflectionsGain
	r.late.gain = props.Gain * props.LateReverbGain

	earlyBase := max(int(props.ReflectionsDelay*srate+0.5), 1)
	for i := range r.early.taps {
		r.early.taps[i] = earlyBase + int(reverbDelayTimes[i]*0.5*srate)
	}

	// Density stretches the network's line lengths; decay time sets each
	// line's feedback gain for a -60dB tail.
	density := utils.Clamp(props.Density, 0.1, 1.0)
	decay := max(props.DecayTime, 0.1)
	for i := range r.late.lines {
		length := reverbDelayTimes[i] * (1.0 + density)
		samples := max(int(length*srate+0.5), 1)
		if samples > r.late.mask[i] {
			samples = r.late.mask[i]
		}
		r.late.lens[i] = samples

		r.late.gains[i] = float32(math.Pow(dsp.ReverbDecayGain, float64(length/decay)))

		// HF ratio shortens the high band's decay via the damping pole.
		hfDecay := decay * utils.Clamp(props.DecayHFRatio, 0.1, 2.0)
		hfGain := float32(math.Pow(dsp.ReverbDecayGain, float64(length/hfDecay)))
		if hfGain < r.late.gains[i] {
			r.late.dampCoeff[i] = 1.0 - hfGain/r.late.gains[i]
		} else {
			r.late.dampCoeff[i] = 0
		}
	}

	gain := slot.Params.Gain
	out := &d.Dry
	if slot.Params.Target != nil {
		out = &slot.Params.Target.Wet
	}
	// Each line leaves at a different azimuth so the tail decorrelates
	// across the bus.
	var coeffs [dsp.MaxAmbiCoeffs]float32
	for i := range r.outGains {
		az := float32(math.Pi) * (float32(i)/reverbLineCount*2.0 - 1.0)
		dsp.CalcAngleCoeffs(az, 0, math.Pi, &coeffs)
		ComputePanGainsBF(out.AmbiMap, &coeffs, gain, r.outGains[i][:out.NumChannels()])
	}
}

func (r *ReverbState) Process(samplesToDo int, in [][]float32, out *MixParams) {
	for i := 0; i < samplesToDo; i++ {
		input := in[0][i]

		// Early reflections from the mono input.
		r.early.line[r.early.pos&r.early.mask] = input
		var earlyOut [reverbLineCount]float32
		for j, tap := range r.early.taps {
			earlyOut[j] = r.early.line[(r.early.pos-tap)&r.early.mask] * r.early.gain
		}
		r.early.pos++

		// Pre-delay into the late network.
		r.preDelay.line[r.preDelay.pos&r.preDelay.mask] = input
		lateIn := r.preDelay.line[(r.preDelay.pos-r.preDelay.len)&r.preDelay.mask]
		r.preDelay.pos++

		// Read the damped, decayed line outputs.
		var lineOut [reverbLineCount]float32
		var sum float32
		for j := range r.late.lines {
			v := r.late.lines[j][(r.late.pos-r.late.lens[j])&r.late.mask[j]]
			r.late.dampZ[j] = v + (r.late.dampZ[j]-v)*r.late.dampCoeff[j]
			lineOut[j] = r.late.dampZ[j] * r.late.gains[j]
			sum += lineOut[j]
		}

		// Householder feedback: reflect about the mean, plus the input.
		half := sum * 0.5
		for j := range r.late.lines {
			r.late.lines[j][r.late.pos&r.late.mask[j]] = lateIn + lineOut[j] - half
		}
		r.late.pos++

		for j := range lineOut {
			v := earlyOut[j] + lineOut[j]*r.late.gain
			for c := range out.Buffer {
				out.Buffer[c][i] += v * r.outGains[j][c]
			}
		}
	}
}
