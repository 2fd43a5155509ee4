// SPDX-License-Identifier: EPL-2.0

package mixer

import (
	"math"

	"github.com/ik5/audmix3d/dsp"
	"github.com/ik5/audmix3d/utils"
)

// This file derives the mixer-side parameters of the listener and every
// voice: listener-space transforms, distance/cone/air attenuation, Doppler
// pitch, and the per-channel pan gains, filters and HRTF/NFC state the mix
// loop consumes.

func deg2rad(deg float32) float32 {
	return deg * (math.Pi / 180.0)
}

// floatEpsilon is the smallest float32 step above 1.0; distances at or
// below it count as colocated with the listener.
const floatEpsilon = 1.1920929e-7

// inputChanDesc positions one channel of a multi-channel source around the
// listener.
type inputChanDesc struct {
	name      Channel
	angle     float32
	elevation float32
}

var monoMap = []inputChanDesc{
	{FrontCenter, 0, 0},
}

var rearMap = []inputChanDesc{
	{BackLeft, deg2rad(-150), 0},
	{BackRight, deg2rad(150), 0},
}

var quadInMap = []inputChanDesc{
	{FrontLeft, deg2rad(-45), 0},
	{FrontRight, deg2rad(45), 0},
	{BackLeft, deg2rad(-135), 0},
	{BackRight, deg2rad(135), 0},
}

var x51InMap = []inputChanDesc{
	{FrontLeft, deg2rad(-30), 0},
	{FrontRight, deg2rad(30), 0},
	{FrontCenter, 0, 0},
	{LFE, 0, 0},
	{SideLeft, deg2rad(-110), 0},
	{SideRight, deg2rad(110), 0},
}

var x61InMap = []inputChanDesc{
	{FrontLeft, deg2rad(-30), 0},
	{FrontRight, deg2rad(30), 0},
	{FrontCenter, 0, 0},
	{LFE, 0, 0},
	{BackCenter, deg2rad(180), 0},
	{SideLeft, deg2rad(-90), 0},
	{SideRight, deg2rad(90), 0},
}

var x71InMap = []inputChanDesc{
	{FrontLeft, deg2rad(-30), 0},
	{FrontRight, deg2rad(30), 0},
	{FrontCenter, 0, 0},
	{LFE, 0, 0},
	{BackLeft, deg2rad(-150), 0},
	{BackRight, deg2rad(150), 0},
	{SideLeft, deg2rad(-90), 0},
	{SideRight, deg2rad(90), 0},
}

// inputChannelMap returns the placement of a source format's channels.
// Stereo honors the per-source pan angles, converted counter-clockwise to
// clockwise into the caller's scratch pair.
func inputChannelMap(fmt BufferChannels, stereoPan [2]float32, stereo *[2]inputChanDesc) []inputChanDesc {
	switch fmt {
	case FmtMono:
		return monoMap
	case FmtStereo:
		stereo[0] = inputChanDesc{FrontLeft, -stereoPan[0], 0}
		stereo[1] = inputChanDesc{FrontRight, -stereoPan[1], 0}
		return stereo[:]
	case FmtRear:
		return rearMap
	case FmtQuad:
		return quadInMap
	case FmtX51:
		return x51InMap
	case FmtX61:
		return x61InMap
	case FmtX71:
		return x71InMap
	}
	return nil
}

// calcContextParams folds a pending context snapshot into the listener
// parameters. Mixer goroutine only.
func (c *Context) calcContextParams() bool {
	props := c.update.Swap(nil)
	if props == nil {
		return false
	}
	lp := &c.Listener.Params
	lp.DopplerFactor = props.DopplerFactor
	lp.SpeedOfSound = props.SpeedOfSound * props.DopplerVelocity
	lp.SourceDistanceModel = props.SourceDistanceModel
	lp.Model = props.Model
	if reverbIgnoresSoundSpeed() {
		lp.ReverbSpeedOfSound = dsp.SpeedOfSoundMetresPerSec
	} else {
		lp.ReverbSpeedOfSound = lp.SpeedOfSound * lp.MetersPerUnit
	}
	c.contextFree.put(props)
	return true
}

// calcListenerParams folds a pending listener snapshot into the world-to-
// listener transform. Mixer goroutine only.
func (c *Context) calcListenerParams() bool {
	props := c.Listener.update.Swap(nil)
	if props == nil {
		return false
	}
	lp := &c.Listener.Params

	// AT then UP.
	at := props.OrientAt
	at.Normalize()
	up := props.OrientUp
	up.Normalize()
	right := at.Cross(up)
	right.Normalize()

	lp.Matrix = dsp.ListenerMatrix(at, right, up, props.Position)

	vel := props.Velocity
	vel.W = 0
	lp.Velocity = lp.Matrix.Transform(vel)

	lp.Gain = props.Gain
	lp.MetersPerUnit = props.MetersPerUnit
	if reverbIgnoresSoundSpeed() {
		lp.ReverbSpeedOfSound = dsp.SpeedOfSoundMetresPerSec
	} else {
		lp.ReverbSpeedOfSound = lp.SpeedOfSound * lp.MetersPerUnit
	}
	c.listenerFree.put(props)
	return true
}

// calcSourceParams refreshes a voice's mixing parameters, picking up a
// pending property snapshot first. force recalculates even without one
// (after listener or context changes).
func (v *Voice) calcSourceParams(c *Context, force bool) {
	updated := v.updateFromProps(c)
	if !updated && !force {
		return
	}

	props := &v.Props
	if props.Spatialize == SpatializeOn ||
		(props.Spatialize == SpatializeAuto && v.FmtChannels == FmtMono) {
		v.calcAttnSourceParams(c)
	} else {
		v.calcNonAttnSourceParams(c)
	}
}

// setStep converts a pitch ratio to the fixed-point resampler increment and
// selects the resampling function.
func (v *Voice) setStep(pitch float32) {
	if pitch > dsp.MaxPitch {
		v.Step = dsp.MaxPitch << dsp.FractionBits
	} else {
		v.Step = min(max(int(pitch*dsp.FractionOne+0.5), 1), dsp.MaxPitch<<dsp.FractionBits)
	}
	v.Resampler = dsp.SelectResampler(v.Props.Resampler, v.Step, &v.ResampleState)
}

// calcNonAttnSourceParams handles voices without 3D attenuation: multi-
// channel content, direct-channel and B-Format sources.
func (v *Voice) calcNonAttnSourceParams(c *Context) {
	props := &v.Props
	listener := &c.Listener.Params
	dev := c.Device

	pitch := float32(v.SampleRate) / float32(dev.SampleRate) * props.Pitch
	v.setStep(pitch)

	dry := gainTriplet{
		gain:   utils.Clamp(props.Gain, props.MinGain, props.MaxGain),
		gainHF: props.Direct.GainHF,
		gainLF: props.Direct.GainLF,
	}
	dry.gain = min(dry.gain*props.Direct.Gain*listener.Gain, dsp.GainMixMax)
	var wet [dsp.MaxSends]gainTriplet
	for i := 0; i < dev.NumAuxSends; i++ {
		wet[i] = gainTriplet{
			gain:   utils.Clamp(props.Gain, props.MinGain, props.MaxGain),
			gainHF: props.Sends[i].GainHF,
			gainLF: props.Sends[i].GainLF,
		}
		wet[i].gain = min(wet[i].gain*props.Sends[i].Gain*listener.Gain, dsp.GainMixMax)
	}

	v.calcPanningAndFilters(c, 0, 0, 0, 0, dry, &wet)
}

type gainTriplet struct {
	gain, gainHF, gainLF float32
}

// calcAttnSourceParams runs the full 3D pipeline for a spatialized voice.
func (v *Voice) calcAttnSourceParams(c *Context) {
	props := &v.Props
	listener := &c.Listener.Params
	dev := c.Device

	// Per-send room rolloff and the distances at which each effect's
	// decay reaches -60dB.
	var roomRolloff [dsp.MaxSends]float32
	var decayDist, decayHFDist, decayLFDist [dsp.MaxSends]float32
	for i := 0; i < dev.NumAuxSends; i++ {
		slot := props.Sends[i].Slot
		switch {
		case slot == nil:
		case slot.Params.AuxSendAuto:
			roomRolloff[i] = slot.Params.RoomRolloff + props.RoomRolloffFactor
			decayDist[i] = slot.Params.DecayTime * listener.ReverbSpeedOfSound
			decayLFDist[i] = decayDist[i] * slot.Params.DecayLFRatio
			decayHFDist[i] = decayDist[i] * slot.Params.DecayHFRatio
			if slot.Params.DecayHFLimit {
				if airAbsorb := slot.Params.AirAbsorptionGainHF; airAbsorb < 1.0 {
					// Cap the HF decay distance so it doesn't take any
					// longer to decay than the air would allow.
					absorbDist := float32(math.Log10(dsp.ReverbDecayGain)) /
						float32(math.Log10(float64(airAbsorb)))
					decayHFDist[i] = min(absorbDist, decayHFDist[i])
				}
			}
		default:
			// Without auto-send the wet path attenuates like the dry one,
			// sans filter effects.
			roomRolloff[i] = props.RolloffFactor
		}
	}

	// Transform the source vectors to listener space. Head-relative
	// sources are already there, with the velocity offset to be relative
	// of the listener velocity.
	position := props.Position
	velocity := props.Velocity
	direction := props.Direction
	if !props.HeadRelative {
		position.W = 1
		position = listener.Matrix.Transform(position)
		velocity.W = 0
		velocity = listener.Matrix.Transform(velocity)
		direction.W = 0
		direction = listener.Matrix.Transform(direction)
	} else {
		velocity = velocity.Add(listener.Velocity)
	}

	directional := direction.Normalize() > 0
	toListener := dsp.Vector{X: -position.X, Y: -position.Y, Z: -position.Z}
	distance := toListener.Normalize()

	dry := gainTriplet{gain: props.Gain, gainHF: 1, gainLF: 1}
	var wet [dsp.MaxSends]gainTriplet
	for i := 0; i < dev.NumAuxSends; i++ {
		wet[i] = gainTriplet{gain: props.Gain, gainHF: 1, gainLF: 1}
	}

	model := listener.Model
	if listener.SourceDistanceModel {
		model = props.Model
	}

	// Distance attenuation. The clamped distance feeds the absorption
	// and decay stage below.
	clampedDist := distance
	switch model {
	case DistanceModelInverseClamped:
		clampedDist = utils.Clamp(clampedDist, props.RefDistance, props.MaxDistance)
		if props.MaxDistance < props.RefDistance {
			break
		}
		fallthrough
	case DistanceModelInverse:
		if !(props.RefDistance > 0) {
			clampedDist = props.RefDistance
		} else {
			if dist := utils.Lerp(props.RefDistance, clampedDist, props.RolloffFactor); dist > 0 {
				dry.gain *= props.RefDistance / dist
			}
			for i := 0; i < dev.NumAuxSends; i++ {
				if dist := utils.Lerp(props.RefDistance, clampedDist, roomRolloff[i]); dist > 0 {
					wet[i].gain *= props.RefDistance / dist
				}
			}
		}

	case DistanceModelLinearClamped:
		clampedDist = utils.Clamp(clampedDist, props.RefDistance, props.MaxDistance)
		if props.MaxDistance < props.RefDistance {
			break
		}
		fallthrough
	case DistanceModelLinear:
		if !(props.MaxDistance != props.RefDistance) {
			clampedDist = props.RefDistance
		} else {
			attn := props.RolloffFactor * (clampedDist - props.RefDistance) /
				(props.MaxDistance - props.RefDistance)
			dry.gain *= max(1.0-attn, 0.0)
			for i := 0; i < dev.NumAuxSends; i++ {
				attn = roomRolloff[i] * (clampedDist - props.RefDistance) /
					(props.MaxDistance - props.RefDistance)
				wet[i].gain *= max(1.0-attn, 0.0)
			}
		}

	case DistanceModelExponentClamped:
		clampedDist = utils.Clamp(clampedDist, props.RefDistance, props.MaxDistance)
		if props.MaxDistance < props.RefDistance {
			break
		}
		fallthrough
	case DistanceModelExponent:
		if !(clampedDist > 0 && props.RefDistance > 0) {
			clampedDist = props.RefDistance
		} else {
			dry.gain *= float32(math.Pow(float64(clampedDist/props.RefDistance),
				float64(-props.RolloffFactor)))
			for i := 0; i < dev.NumAuxSends; i++ {
				wet[i].gain *= float32(math.Pow(float64(clampedDist/props.RefDistance),
					float64(-roomRolloff[i])))
			}
		}

	case DistanceModelNone:
		clampedDist = props.RefDistance
	}

	// Directional sound cones.
	if directional && props.InnerAngle < 360 {
		coneScale := float32(1.0)
		if halfAngleCones() {
			coneScale = 0.5
		}
		angle := float32(math.Acos(float64(direction.Dot(toListener)))) *
			coneScale * 2.0 * (180.0 / math.Pi)

		coneVolume, coneHF := float32(1.0), float32(1.0)
		switch {
		case !(angle > props.InnerAngle):
			// Inside the inner cone.
		case angle < props.OuterAngle:
			scale := (angle - props.InnerAngle) / (props.OuterAngle - props.InnerAngle)
			coneVolume = utils.Lerp(1.0, props.OuterGain, scale)
			coneHF = utils.Lerp(1.0, props.OuterGainHF, scale)
		default:
			coneVolume = props.OuterGain
			coneHF = props.OuterGainHF
		}

		dry.gain *= coneVolume
		if props.DryGainHFAuto {
			dry.gainHF *= coneHF
		}
		if props.WetGainAuto {
			for i := 0; i < dev.NumAuxSends; i++ {
				wet[i].gain *= coneVolume
			}
		}
		if props.WetGainHFAuto {
			for i := 0; i < dev.NumAuxSends; i++ {
				wet[i].gainHF *= coneHF
			}
		}
	}

	// Apply gain and frequency filters.
	dry.gain = utils.Clamp(dry.gain, props.MinGain, props.MaxGain)
	dry.gain = min(dry.gain*props.Direct.Gain*listener.Gain, dsp.GainMixMax)
	dry.gainHF *= props.Direct.GainHF
	dry.gainLF *= props.Direct.GainLF
	for i := 0; i < dev.NumAuxSends; i++ {
		wet[i].gain = utils.Clamp(wet[i].gain, props.MinGain, props.MaxGain)
		wet[i].gain = min(wet[i].gain*props.Sends[i].Gain*listener.Gain, dsp.GainMixMax)
		wet[i].gainHF *= props.Sends[i].GainHF
		wet[i].gainLF *= props.Sends[i].GainLF
	}

	// Distance-based air absorption and initial send decay.
	if clampedDist > props.RefDistance && props.RolloffFactor > 0 {
		metersBase := (clampedDist - props.RefDistance) * props.RolloffFactor *
			listener.MetersPerUnit
		if props.AirAbsorptionFactor > 0 {
			hfattn := float32(math.Pow(dsp.AirAbsorbGainHF,
				float64(metersBase*props.AirAbsorptionFactor)))
			dry.gainHF *= hfattn
			for i := 0; i < dev.NumAuxSends; i++ {
				wet[i].gainHF *= hfattn
			}
		}

		if props.WetGainAuto {
			// The initial decay of each reverb effect over the source
			// distance. The wet path's air absorption rides along here,
			// with WetGainAuto rather than WetGainHFAuto.
			for i := 0; i < dev.NumAuxSends; i++ {
				if !(decayDist[i] > 0) {
					continue
				}
				gain := float32(math.Pow(dsp.ReverbDecayGain, float64(metersBase/decayDist[i])))
				wet[i].gain *= gain
				if gain > 0 {
					gainHF := float32(math.Pow(dsp.ReverbDecayGain,
						float64(metersBase/decayHFDist[i])))
					wet[i].gainHF *= min(gainHF/gain, 1.0)
					gainLF := float32(math.Pow(dsp.ReverbDecayGain,
						float64(metersBase/decayLFDist[i])))
					wet[i].gainLF *= min(gainLF/gain, 1.0)
				}
			}
		}
	}

	// Velocity-based Doppler shift.
	pitch := props.Pitch
	if dopplerFactor := props.DopplerFactor * listener.DopplerFactor; dopplerFactor > 0 {
		sos := listener.SpeedOfSound
		vss := velocity.Dot(toListener) * dopplerFactor
		vls := listener.Velocity.Dot(toListener) * dopplerFactor

		switch {
		case !(vls < sos):
			// Listener moving away at the speed of sound; the waves never
			// catch it.
			pitch = 0
		case !(vss < sos):
			// Source coming in at the speed of sound; the waves bunch up
			// to extreme frequencies.
			pitch = float32(math.Inf(1))
		default:
			pitch *= (sos - vls) / (sos - vss)
		}
	}
	v.setStep(pitch * float32(v.SampleRate) / float32(dev.SampleRate))

	var ev, az float32
	if distance > 0 {
		zScale := float32(1.0)
		if reverseZ() {
			zScale = -1.0
		}
		// Clamp Y in case rounding put it outside -1..+1. The Z negations
		// cancel: once for source-to-listener becoming listener-to-source,
		// once for right-handed coords with -Z in front.
		ev = float32(math.Asin(float64(utils.Clamp(-toListener.Y, -1, 1))))
		az = float32(math.Atan2(float64(-toListener.X), float64(toListener.Z*zScale)))
	}

	spread := float32(0)
	if props.Radius > distance {
		spread = 2.0*math.Pi - distance/props.Radius*math.Pi
	} else if distance > 0 {
		spread = float32(math.Asin(float64(props.Radius/distance))) * 2.0
	}

	v.calcPanningAndFilters(c, az, ev, distance, spread, dry, &wet)
}

// calcPanningAndFilters derives per-channel target gains, HRTF parameters,
// NFC tuning and the direct/send filters for a voice, across the device's
// render paths. distance is in source units; the panning paths convert to
// meters where the filters need it.
func (v *Voice) calcPanningAndFilters(c *Context, az, ev, distance, spread float32,
	dry gainTriplet, wet *[dsp.MaxSends]gainTriplet) {
	props := &v.Props
	dev := c.Device
	srate := float32(dev.SampleRate)

	for i := 0; i < dev.NumAuxSends; i++ {
		slot := props.Sends[i].Slot
		v.sendSlots[i] = slot
		if slot != nil {
			v.wetBuffer[i] = slot.Wet.Buffer
		} else {
			v.wetBuffer[i] = nil
		}
	}

	directChannels := props.DirectChannels
	isBFormat := false
	downmix := float32(1.0)
	switch v.FmtChannels {
	case FmtMono:
		// Mono buffers are never played direct.
		directChannels = false
	case FmtStereo, FmtRear:
		downmix = 1.0 / 2.0
	case FmtQuad:
		downmix = 1.0 / 4.0
	case FmtX51:
		downmix = 1.0 / 5.0 // excludes LFE
	case FmtX61:
		downmix = 1.0 / 6.0
	case FmtX71:
		downmix = 1.0 / 7.0
	case FmtBFormat2D, FmtBFormat3D:
		isBFormat = true
		directChannels = false
	}
	var stereoPair [2]inputChanDesc
	chanMap := inputChannelMap(v.FmtChannels, props.StereoPan, &stereoPair)

	for ch := range v.chans {
		cd := &v.chans[ch]
		clear(cd.Dry.Hrtf.Target.Coeffs)
		cd.Dry.Hrtf.Target.Delay = [2]int{}
		cd.Dry.Hrtf.Target.Gain = 0
		clear(cd.Dry.TargetGains[:])
		for s := range cd.Wet {
			clear(cd.Wet[s].TargetGains[:])
		}
	}
	v.useNfc = false
	v.useHrtf = false

	switch {
	case isBFormat:
		v.panBFormat(c, az, ev, distance, spread, dry, wet)

	case directChannels:
		v.panDirectChannels(c, chanMap, dry, wet)

	case dev.RenderMode == HrtfRender:
		v.panHrtf(c, chanMap, az, ev, distance, spread, downmix, dry, wet)

	default:
		v.panNormal(c, chanMap, az, ev, distance, spread, downmix, dry, wet)
	}

	// Direct and send filters: channel 0 computes the coefficients, the
	// rest copy them.
	hfNorm := min(props.Direct.HFRef/srate, 0.49)
	lfNorm := min(props.Direct.LFRef/srate, 0.49)
	gainHF := max(dry.gainHF, 0.001) // -60dB limit
	gainLF := max(dry.gainLF, 0.001)
	v.chans[0].Dry.LowPass.SetParams(dsp.BiquadHighShelf, gainHF, hfNorm,
		dsp.RcpQFromSlope(gainHF, 1.0))
	v.chans[0].Dry.HighPass.SetParams(dsp.BiquadLowShelf, gainLF, lfNorm,
		dsp.RcpQFromSlope(gainLF, 1.0))
	for ch := 1; ch < len(v.chans); ch++ {
		v.chans[ch].Dry.LowPass.CopyParamsFrom(&v.chans[0].Dry.LowPass)
		v.chans[ch].Dry.HighPass.CopyParamsFrom(&v.chans[0].Dry.HighPass)
	}

	for i := 0; i < dev.NumAuxSends; i++ {
		hfNorm := min(props.Sends[i].HFRef/srate, 0.49)
		lfNorm := min(props.Sends[i].LFRef/srate, 0.49)
		gainHF := max(wet[i].gainHF, 0.001)
		gainLF := max(wet[i].gainLF, 0.001)
		v.chans[0].Wet[i].LowPass.SetParams(dsp.BiquadHighShelf, gainHF, hfNorm,
			dsp.RcpQFromSlope(gainHF, 1.0))
		v.chans[0].Wet[i].HighPass.SetParams(dsp.BiquadLowShelf, gainLF, lfNorm,
			dsp.RcpQFromSlope(gainLF, 1.0))
		for ch := 1; ch < len(v.chans); ch++ {
			v.chans[ch].Wet[i].LowPass.CopyParamsFrom(&v.chans[0].Wet[i].LowPass)
			v.chans[ch].Wet[i].HighPass.CopyParamsFrom(&v.chans[0].Wet[i].HighPass)
		}
	}
}

// sameBus reports whether two buses share backing storage.
func sameBus(a, b [][]float32) bool {
	return len(a) > 0 && len(b) > 0 && &a[0][0] == &b[0][0]
}

// panBFormat handles ambisonic buffer content. Sources panned away from
// the listener collapse to their W channel, played as a point source; local
// sources rotate into the device's first-order bus by their orientation.
func (v *Voice) panBFormat(c *Context, az, ev, distance, spread float32,
	dry gainTriplet, wet *[dsp.MaxSends]gainTriplet) {
	props := &v.Props
	listener := &c.Listener.Params
	dev := c.Device

	// B-Format always renders to the first-order output, so switching
	// between panned and unpanned stays smooth.
	v.directBuffer = dev.FOAOut.Buffer

	if distance > floatEpsilon {
		if dev.AvgSpeakerDist > 0 {
			// Clamp the distance for really close sources, to keep the
			// bass boost in check.
			mdist := max(distance*listener.MetersPerUnit, dev.AvgSpeakerDist/4.0)
			w0 := dsp.SpeedOfSoundMetresPerSec / (mdist * float32(dev.SampleRate))
			// Only W carries content here.
			v.chans[0].Dry.NFC.Adjust(w0)
			v.chansPerOrder = dev.NumChannelsPerOrder
			v.useNfc = true
		}

		// Pan W like a mono sound; the other channels stay silent. The
		// 1.5 scalar on plain stereo moves +-60 degrees to +-90 for
		// direct left and right speaker responses.
		panAz := az
		if dev.RenderMode == StereoPair {
			panAz = dsp.ScaleAzimuthFront(az, 1.5)
		}
		var coeffs [dsp.MaxAmbiCoeffs]float32
		dsp.CalcAngleCoeffs(panAz, ev, spread, &coeffs)

		// W picks up the FuMa normalization scale.
		scale0 := dsp.FuMa2N3DScale[0]
		gains := v.chans[0].Dry.TargetGains[:dev.FOAOut.NumChannels()]
		ComputePanGainsBF(dev.FOAOut.AmbiMap, &coeffs, dry.gain*scale0, gains)
		for i := 0; i < dev.NumAuxSends; i++ {
			if v.sendSlots[i] == nil {
				continue
			}
			wg := v.chans[0].Wet[i].TargetGains[:slotWetChannels]
			ComputePanGainsBF(v.sendSlots[i].Wet.AmbiMap, &coeffs, wet[i].gain*scale0, wg)
		}
		return
	}

	if dev.AvgSpeakerDist > 0 {
		// The filters carry a w0 of 0 from voice setup, which suits
		// first-order input; W may have been re-adjusted while panned.
		v.chans[0].Dry.NFC.Adjust(0)
		v.chansPerOrder = [dsp.MaxAmbiOrder + 1]int{}
		v.chansPerOrder[0] = 1
		v.chansPerOrder[1] = min(len(v.directBuffer)-1, 3)
		v.useNfc = true
	}

	// Rotate the XYZ channels by the source orientation: AT, then UP,
	// with the right vector derived from both.
	n := props.OrientAt
	n.Normalize()
	vv := props.OrientUp
	vv.Normalize()
	if !props.HeadRelative {
		n.W = 0
		n = listener.Matrix.Transform(n)
		vv.W = 0
		vv = listener.Matrix.Transform(vv)
	}
	u := n.Cross(vv)
	u.Normalize()

	// Rotation plus FuMa-to-ACN/N3D conversion, transposed so inputs
	// align on rows and outputs on columns.
	const s = 1.732050808
	rot := [4][dsp.MaxAmbiCoeffs]float32{}
	rot[0][0] = dsp.FuMa2N3DScale[0]
	rot[1][1], rot[1][2], rot[1][3] = -n.X*s, n.Y*s, -n.Z*s
	rot[2][1], rot[2][2], rot[2][3] = u.X*s, -u.Y*s, u.Z*s
	rot[3][1], rot[3][2], rot[3][3] = -vv.X*s, vv.Y*s, -vv.Z*s

	for ch := range v.chans {
		gains := v.chans[ch].Dry.TargetGains[:dev.FOAOut.NumChannels()]
		ComputePanGainsBF(dev.FOAOut.AmbiMap, &rot[ch], dry.gain, gains)
	}
	for i := 0; i < dev.NumAuxSends; i++ {
		if v.sendSlots[i] == nil {
			continue
		}
		for ch := range v.chans {
			gains := v.chans[ch].Wet[i].TargetGains[:slotWetChannels]
			ComputePanGainsBF(v.sendSlots[i].Wet.AmbiMap, &rot[ch], wet[i].gain, gains)
		}
	}
}

// panDirectChannels maps input channels straight onto same-named real
// outputs, skipping spatialization.
func (v *Voice) panDirectChannels(c *Context, chanMap []inputChanDesc,
	dry gainTriplet, wet *[dsp.MaxSends]gainTriplet) {
	dev := c.Device

	v.directBuffer = dev.RealOut.Buffer
	for ch := range v.chans {
		if ch >= len(chanMap) {
			break
		}
		idx := dev.RealOut.ChannelIndex(chanMap[ch].name)
		if idx >= 0 {
			v.chans[ch].Dry.TargetGains[idx] = dry.gain
		}
	}

	// Sends mix to B-Format, which can't channel-match, so they keep
	// normal panning at the nominal positions.
	for ch := range v.chans {
		if ch >= len(chanMap) {
			break
		}
		var coeffs [dsp.MaxAmbiCoeffs]float32
		dsp.CalcAngleCoeffs(chanMap[ch].angle, chanMap[ch].elevation, 0, &coeffs)
		for i := 0; i < dev.NumAuxSends; i++ {
			if v.sendSlots[i] == nil {
				continue
			}
			gains := v.chans[ch].Wet[i].TargetGains[:slotWetChannels]
			ComputePanGainsBF(v.sendSlots[i].Wet.AmbiMap, &coeffs, wet[i].gain, gains)
		}
	}
}

// panHrtf picks HRIRs for each channel: one blended response shared by all
// channels when the source has a distance, per-channel responses at the
// format's nominal angles otherwise.
func (v *Voice) panHrtf(c *Context, chanMap []inputChanDesc, az, ev, distance, spread, downmix float32,
	dry gainTriplet, wet *[dsp.MaxSends]gainTriplet) {
	dev := c.Device

	v.directBuffer = dev.RealOut.Buffer
	v.useHrtf = true

	if distance > floatEpsilon {
		// One lookup for the source direction serves every channel.
		ch0 := &v.chans[0].Dry.Hrtf.Target
		dev.Hrtf.GetCoeffs(ev, az, spread, ch0)
		ch0.Gain = dry.gain * downmix

		for ch := 1; ch < len(v.chans); ch++ {
			if ch < len(chanMap) && chanMap[ch].name == LFE {
				continue
			}
			t := &v.chans[ch].Dry.Hrtf.Target
			copy(t.Coeffs, ch0.Coeffs)
			t.Delay = ch0.Delay
			t.Gain = ch0.Gain
		}

		// Directional coefficients apply to all input channels of the
		// sends.
		var coeffs [dsp.MaxAmbiCoeffs]float32
		dsp.CalcAngleCoeffs(az, ev, spread, &coeffs)
		for i := 0; i < dev.NumAuxSends; i++ {
			if v.sendSlots[i] == nil {
				continue
			}
			for ch := range v.chans {
				if ch < len(chanMap) && chanMap[ch].name == LFE {
					continue
				}
				gains := v.chans[ch].Wet[i].TargetGains[:slotWetChannels]
				ComputePanGainsBF(v.sendSlots[i].Wet.AmbiMap, &coeffs, wet[i].gain*downmix, gains)
			}
		}
		return
	}

	// Local sources play each channel panned at its relative location,
	// as "virtual speaker" responses.
	for ch := range v.chans {
		if ch >= len(chanMap) {
			break
		}
		if chanMap[ch].name == LFE {
			// Unpositioned bass has no head-related response.
			continue
		}
		h := &v.chans[ch].Dry.Hrtf.Target
		dev.Hrtf.GetCoeffs(chanMap[ch].elevation, chanMap[ch].angle, spread, h)
		h.Gain = dry.gain
	}
	v.panSendsByAngle(c, chanMap, spread, wet)
}

// panNormal computes ambisonic pan gains for the dry bus and the sends.
func (v *Voice) panNormal(c *Context, chanMap []inputChanDesc, az, ev, distance, spread, downmix float32,
	dry gainTriplet, wet *[dsp.MaxSends]gainTriplet) {
	listener := &c.Listener.Params
	dev := c.Device

	v.directBuffer = dev.Dry.Buffer

	if distance > floatEpsilon {
		if dev.AvgSpeakerDist > 0 {
			// Clamp the distance for really close sources, to keep the
			// bass boost in check.
			mdist := max(distance*listener.MetersPerUnit, dev.AvgSpeakerDist/4.0)
			w0 := dsp.SpeedOfSoundMetresPerSec / (mdist * float32(dev.SampleRate))
			for ch := range v.chans {
				v.chans[ch].Dry.NFC.Adjust(w0)
			}
			v.chansPerOrder = dev.NumChannelsPerOrder
			v.useNfc = true
		}

		// One set of directional coefficients covers all input channels.
		panAz := az
		if dev.RenderMode == StereoPair {
			panAz = dsp.ScaleAzimuthFront(az, 1.5)
		}
		var coeffs [dsp.MaxAmbiCoeffs]float32
		dsp.CalcAngleCoeffs(panAz, ev, spread, &coeffs)

		for ch := range v.chans {
			if ch < len(chanMap) && chanMap[ch].name == LFE {
				v.panLFEDirect(dev, ch, dry.gain)
				continue
			}
			gains := v.chans[ch].Dry.TargetGains[:dev.Dry.NumChannels()]
			ComputePanGainsBF(dev.Dry.AmbiMap, &coeffs, dry.gain*downmix, gains)
		}

		for i := 0; i < dev.NumAuxSends; i++ {
			if v.sendSlots[i] == nil {
				continue
			}
			for ch := range v.chans {
				if ch < len(chanMap) && chanMap[ch].name == LFE {
					continue
				}
				gains := v.chans[ch].Wet[i].TargetGains[:slotWetChannels]
				ComputePanGainsBF(v.sendSlots[i].Wet.AmbiMap, &coeffs, wet[i].gain*downmix, gains)
			}
		}
		return
	}

	if dev.AvgSpeakerDist > 0 {
		// With no distance, w0 equals w1 and the filters pass through.
		// They still run, keeping history for when the source moves away.
		w0 := dsp.SpeedOfSoundMetresPerSec / (dev.AvgSpeakerDist * float32(dev.SampleRate))
		for ch := range v.chans {
			v.chans[ch].Dry.NFC.Adjust(w0)
		}
		v.chansPerOrder = dev.NumChannelsPerOrder
		v.useNfc = true
	}

	// Multi-channel content pans each input channel at its nominal angle.
	azScale := float32(1.0)
	if dev.RenderMode == StereoPair {
		azScale = 3.0
	}
	for ch := range v.chans {
		if ch >= len(chanMap) {
			break
		}
		if chanMap[ch].name == LFE {
			v.panLFEDirect(dev, ch, dry.gain)
			continue
		}
		var coeffs [dsp.MaxAmbiCoeffs]float32
		dsp.CalcAngleCoeffs(dsp.ScaleAzimuthFront(chanMap[ch].angle, azScale),
			chanMap[ch].elevation, spread, &coeffs)
		gains := v.chans[ch].Dry.TargetGains[:dev.Dry.NumChannels()]
		ComputePanGainsBF(dev.Dry.AmbiMap, &coeffs, dry.gain, gains)
	}
	v.panSendsByAngle(c, chanMap, spread, wet)
}

// panLFEDirect routes an LFE channel straight to its real output, which is
// only possible when the dry bus is the real output.
func (v *Voice) panLFEDirect(dev *Device, ch int, gain float32) {
	if !sameBus(dev.Dry.Buffer, dev.RealOut.Buffer) {
		return
	}
	if idx := dev.RealOut.ChannelIndex(LFE); idx >= 0 {
		v.chans[ch].Dry.TargetGains[idx] = gain
	}
}

// panSendsByAngle feeds the auxiliary sends with first-order coefficients
// at each non-LFE channel's nominal direction.
func (v *Voice) panSendsByAngle(c *Context, chanMap []inputChanDesc, spread float32, wet *[dsp.MaxSends]gainTriplet) {
	dev := c.Device
	for ch := range v.chans {
		if ch >= len(chanMap) {
			break
		}
		if chanMap[ch].name == LFE {
			continue
		}
		var coeffs [dsp.MaxAmbiCoeffs]float32
		dsp.CalcAngleCoeffs(chanMap[ch].angle, chanMap[ch].elevation, spread, &coeffs)
		for i := 0; i < dev.NumAuxSends; i++ {
			if v.sendSlots[i] == nil {
				continue
			}
			gains := v.chans[ch].Wet[i].TargetGains[:slotWetChannels]
			ComputePanGainsBF(v.sendSlots[i].Wet.AmbiMap, &coeffs, wet[i].gain, gains)
		}
	}
}
