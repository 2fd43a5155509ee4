// SPDX-License-Identifier: EPL-2.0

package mixer

import (
	"github.com/ik5/audmix3d/dsp"
	"github.com/ik5/audmix3d/render"
)

// The dry bus always holds ambisonic components; speaker layouts carry a
// 2D-packed subset (ACN 0, 1,3, 4,8, 9,15) that a BFormatDec turns into
// real output feeds each block. The decoder coefficient rows below are the
// built-in presets, indexed by packed-2D position.

// ambiFrom2D maps packed 2D positions to ACN indices.
var ambiFrom2D = [7]int{0, 1, 3, 4, 8, 9, 15}

// orderFrom2D is the ambisonic order of each packed 2D position.
var orderFrom2D = [7]int{0, 1, 1, 2, 2, 3, 3}

type channelMap struct {
	name   Channel
	config [7]float32
}

var monoCfg = []channelMap{
	{FrontCenter, [7]float32{1.0}},
}

var stereoCfg = []channelMap{
	{FrontLeft, [7]float32{5.00000000e-1, 2.88675135e-1, 5.52305643e-2}},
	{FrontRight, [7]float32{5.00000000e-1, -2.88675135e-1, 5.52305643e-2}},
}

var quadCfg = []channelMap{
	{BackLeft, [7]float32{3.53553391e-1, 2.04124145e-1, -2.04124145e-1}},
	{FrontLeft, [7]float32{3.53553391e-1, 2.04124145e-1, 2.04124145e-1}},
	{FrontRight, [7]float32{3.53553391e-1, -2.04124145e-1, 2.04124145e-1}},
	{BackRight, [7]float32{3.53553391e-1, -2.04124145e-1, -2.04124145e-1}},
}

var x51SideCfg = []channelMap{
	{SideLeft, [7]float32{3.33000782e-1, 1.89084803e-1, -2.00042375e-1, -2.12307769e-2, -1.14579885e-2}},
	{FrontLeft, [7]float32{1.88542860e-1, 1.27709292e-1, 1.66295695e-1, 7.30571517e-2, 2.10901184e-2}},
	{FrontRight, [7]float32{1.88542860e-1, -1.27709292e-1, 1.66295695e-1, -7.30571517e-2, 2.10901184e-2}},
	{SideRight, [7]float32{3.33000782e-1, -1.89084803e-1, -2.00042375e-1, 2.12307769e-2, -1.14579885e-2}},
}

var x51RearCfg = []channelMap{
	{BackLeft, [7]float32{3.33000782e-1, 1.89084803e-1, -2.00042375e-1, -2.12307769e-2, -1.14579885e-2}},
	{FrontLeft, [7]float32{1.88542860e-1, 1.27709292e-1, 1.66295695e-1, 7.30571517e-2, 2.10901184e-2}},
	{FrontRight, [7]float32{1.88542860e-1, -1.27709292e-1, 1.66295695e-1, -7.30571517e-2, 2.10901184e-2}},
	{BackRight, [7]float32{3.33000782e-1, -1.89084803e-1, -2.00042375e-1, 2.12307769e-2, -1.14579885e-2}},
}

var x61Cfg = []channelMap{
	{SideLeft, [7]float32{2.04460341e-1, 2.17177926e-1, -4.39996780e-2, -2.60790269e-2, -6.87239792e-2}},
	{FrontLeft, [7]float32{1.58923161e-1, 9.21772680e-2, 1.59658796e-1, 6.66278083e-2, 3.84686854e-2}},
	{FrontRight, [7]float32{1.58923161e-1, -9.21772680e-2, 1.59658796e-1, -6.66278083e-2, 3.84686854e-2}},
	{SideRight, [7]float32{2.04460341e-1, -2.17177926e-1, -4.39996780e-2, 2.60790269e-2, -6.87239792e-2}},
	{BackCenter, [7]float32{2.50001688e-1, 0.0, -2.50000094e-1, 0.0, 6.05133395e-2}},
}

var x71Cfg = []channelMap{
	{BackLeft, [7]float32{2.04124145e-1, 1.08880247e-1, -1.88586120e-1, -1.29099444e-1, 7.45355993e-2, 3.73460789e-2, 0.0}},
	{SideLeft, [7]float32{2.04124145e-1, 2.17760495e-1, 0.0, 0.0, -1.49071198e-1, -3.73460789e-2, 0.0}},
	{FrontLeft, [7]float32{2.04124145e-1, 1.08880247e-1, 1.88586120e-1, 1.29099444e-1, 7.45355993e-2, 3.73460789e-2, 0.0}},
	{FrontRight, [7]float32{2.04124145e-1, -1.08880247e-1, 1.88586120e-1, -1.29099444e-1, 7.45355993e-2, -3.73460789e-2, 0.0}},
	{SideRight, [7]float32{2.04124145e-1, -2.17760495e-1, 0.0, 0.0, -1.49071198e-1, 3.73460789e-2, 0.0}},
	{BackRight, [7]float32{2.04124145e-1, -1.08880247e-1, -1.88586120e-1, 1.29099444e-1, 7.45355993e-2, -3.73460789e-2, 0.0}},
}

// hqHFOrderScales boosts high-band decode per packed-2D order in HQ mode.
var hqHFOrderScales = [4]float32{2.0, 1.15470054, 1.0, 1.0}

func ambiScales(norm dsp.AmbiNorm) [dsp.MaxAmbiCoeffs]float32 {
	switch norm {
	case dsp.AmbiNormSN3D:
		var s [dsp.MaxAmbiCoeffs]float32
		copy(s[:], dsp.N3DScale[:])
		return s
	case dsp.AmbiNormFuMa:
		var s [dsp.MaxAmbiCoeffs]float32
		copy(s[:], dsp.FuMa2N3DScale[:])
		return s
	}
	var s [dsp.MaxAmbiCoeffs]float32
	for i := range s {
		s[i] = 1.0
	}
	return s
}

// ComputePanGainsBF accumulates the per-channel gains of an ambisonic bus
// for the given N3D coefficient set.
func ComputePanGainsBF(ambimap []BFChannelConfig, coeffs *[dsp.MaxAmbiCoeffs]float32, inGain float32, gains []float32) {
	for i := range gains {
		gains[i] = 0
	}
	for i, m := range ambimap {
		gains[i] = m.Scale * coeffs[m.Index] * inGain
	}
}

// initRenderer decides the device's renderer: channel layout, HRTF or UHJ
// or crossfeed stereo processing, decoder construction, near-field control
// and distance compensation.
func (d *Device) initRenderer(cfg DeviceConfig) error {
	d.RealOut.ChannelNames = d.FmtChans.Names(d.AmbiOrder)

	if d.FmtChans == DevAmbi3D {
		return d.initAmbiPanning(cfg)
	}

	if d.FmtChans == DevStereo {
		hrtfWanted := cfg.HrtfMode == HrtfEnable ||
			(cfg.HrtfMode == HrtfAuto && cfg.StereoMode == StereoHeadphones)
		if hrtfWanted {
			return d.initHrtfPanning(cfg)
		}
		if cfg.StereoEncoding == EncodeUHJ {
			return d.initUhjPanning(cfg)
		}
	}

	return d.initSpeakerPanning(cfg)
}

func (d *Device) initSpeakerPanning(cfg DeviceConfig) error {
	var chanmap []channelMap
	var coeffCount int
	switch d.FmtChans {
	case DevMono:
		chanmap, coeffCount = monoCfg, 1
	case DevStereo:
		chanmap, coeffCount = stereoCfg, 3
		d.RenderMode = StereoPair
	case DevQuad:
		chanmap, coeffCount = quadCfg, 3
	case DevX51:
		chanmap, coeffCount = x51SideCfg, 5
	case DevX51Rear:
		chanmap, coeffCount = x51RearCfg, 5
	case DevX61:
		chanmap, coeffCount = x61Cfg, 5
	case DevX71:
		chanmap, coeffCount = x71Cfg, 7
	default:
		return ErrInvalidLayout
	}

	d.Dry.AmbiMap = make([]BFChannelConfig, coeffCount)
	d.Dry.ChannelNames = make([]Channel, coeffCount)
	for i := 0; i < coeffCount; i++ {
		d.Dry.AmbiMap[i] = BFChannelConfig{Scale: 1.0, Index: ambiFrom2D[i]}
		d.Dry.ChannelNames[i] = Aux0 + Channel(i)
	}
	d.Dry.Buffer = newBusBuffers(coeffCount)

	numReal := d.FmtChans.ChannelCount(0)
	d.RealOut.Buffer = newBusBuffers(numReal)

	// Decoder matrix rows per real output channel.
	matrix := make([][]float32, numReal)
	for i := range matrix {
		matrix[i] = make([]float32, coeffCount)
	}
	for _, cm := range chanmap {
		idx := d.RealOut.ChannelIndex(cm.name)
		if idx < 0 {
			continue
		}
		copy(matrix[idx], cm.config[:coeffCount])
	}

	if cfg.HQMode {
		hf := make([][]float32, numReal)
		lf := make([][]float32, numReal)
		for i := range matrix {
			hf[i] = make([]float32, coeffCount)
			lf[i] = make([]float32, coeffCount)
			for j := range matrix[i] {
				hf[i][j] = matrix[i][j] * hqHFOrderScales[orderFrom2D[j]]
				lf[i][j] = matrix[i][j]
			}
		}
		d.AmbiDecoder = render.NewBFormatDecDual(hf, lf, d.SampleRate)
	} else {
		d.AmbiDecoder = render.NewBFormatDec(matrix)
	}
	d.postProcess = (*Device).processAmbiDec

	if coeffCount <= 3 {
		d.FOAOut.AmbiMap = d.Dry.AmbiMap
		d.FOAOut.Buffer = d.Dry.Buffer
	} else {
		// Higher-order decodes keep first-order content on its own bus and
		// fold it in ahead of the decode, so it picks up the full layout
		// instead of only the first-order components.
		d.FOAOut.AmbiMap = []BFChannelConfig{
			{Scale: 1.0, Index: 0},
			{Scale: 1.0, Index: 1},
			{Scale: 1.0, Index: 3},
		}
		d.FOAOut.Buffer = newBusBuffers(3)
		d.AmbiDecoder.InitUpsampler(d.SampleRate, 3)
	}

	if d.FmtChans == DevStereo && cfg.CrossfeedLevel > render.CrossfeedNone {
		d.Crossfeed = render.NewBs2b(cfg.CrossfeedLevel, d.SampleRate)
	}

	d.initNearFieldCtrl(cfg, chanmap)
	d.initDistanceComp(cfg, chanmap)

	if cfg.FrontStablizer && d.RealOut.ChannelIndex(FrontCenter) >= 0 {
		d.Stablizer = render.NewFrontStablizer(numReal, d.SampleRate)
	}
	return nil
}

func (d *Device) initAmbiPanning(cfg DeviceConfig) error {
	count := dsp.ChannelsFromAmbiOrder(d.AmbiOrder)
	scales := ambiScales(d.AmbiScale)

	d.Dry.AmbiMap = make([]BFChannelConfig, count)
	d.Dry.ChannelNames = d.RealOut.ChannelNames
	for i := 0; i < count; i++ {
		acn := i
		if d.AmbiLayout == dsp.AmbiLayoutFuMa {
			acn = dsp.FuMa2ACN[i]
		}
		d.Dry.AmbiMap[i] = BFChannelConfig{Scale: 1.0 / scales[acn], Index: acn}
	}
	d.Dry.Buffer = newBusBuffers(count)
	d.RealOut.Buffer = d.Dry.Buffer

	if d.AmbiOrder >= 2 {
		// B-Format sources and first-order content feed a separate FOA bus
		// that is up-sampled into the higher-order mix.
		d.FOAOut.AmbiMap = make([]BFChannelConfig, 4)
		for i := 0; i < 4; i++ {
			d.FOAOut.AmbiMap[i] = BFChannelConfig{Scale: 1.0, Index: i}
		}
		d.FOAOut.Buffer = newBusBuffers(4)
		d.AmbiUp = render.NewAmbiUpsampler(d.SampleRate, count, func(dir [3]float32) []float32 {
			var coeffs [dsp.MaxAmbiCoeffs]float32
			dsp.CalcAmbiCoeffs(dir[0], dir[1], dir[2], 0, &coeffs)
			gains := make([]float32, count)
			ComputePanGainsBF(d.Dry.AmbiMap, &coeffs, 1.0, gains)
			return gains
		})
		d.postProcess = (*Device).processAmbiUp
	} else {
		d.FOAOut.AmbiMap = d.Dry.AmbiMap
		d.FOAOut.Buffer = d.Dry.Buffer
		d.postProcess = nil
	}

	if cfg.NFCEnable && cfg.NFCRefDelay > 0 {
		refDelay := min(max(cfg.NFCRefDelay, 0.001), 1000.0)
		chansPerOrder := [dsp.MaxAmbiOrder + 1]int{1, 3, 5, 7}
		d.setNearFieldCtrl(refDelay*dsp.SpeedOfSoundMetresPerSec, d.AmbiOrder, chansPerOrder)
	}
	return nil
}

func (d *Device) initHrtfPanning(cfg DeviceConfig) error {
	hrtf := cfg.Hrtf
	if hrtf == nil {
		hrtf = render.NewSphericalHrtf(d.SampleRate)
	}
	if hrtf.SampleRate != d.SampleRate || hrtf.IrSize > render.HrirLength {
		return ErrNoHrtf
	}
	hrtf.Ref()
	d.Hrtf = hrtf
	d.RenderMode = HrtfRender

	d.Dry.AmbiMap = make([]BFChannelConfig, 4)
	d.Dry.ChannelNames = make([]Channel, 4)
	for i := 0; i < 4; i++ {
		d.Dry.AmbiMap[i] = BFChannelConfig{Scale: 1.0, Index: i}
		d.Dry.ChannelNames[i] = Aux0 + Channel(i)
	}
	d.Dry.Buffer = newBusBuffers(4)
	d.FOAOut.AmbiMap = d.Dry.AmbiMap
	d.FOAOut.Buffer = d.Dry.Buffer
	d.RealOut.Buffer = newBusBuffers(2)

	d.HrtfState = render.BuildBFormatHrtf(hrtf, 4)
	d.postProcess = (*Device).processHrtf

	// Datasets measured at a known distance drive near-field control for
	// the first-order content; synthesized sets leave it off.
	d.setNearFieldCtrl(hrtf.Distance, 1, [dsp.MaxAmbiOrder + 1]int{1, 3, 5, 0})
	return nil
}

func (d *Device) initUhjPanning(cfg DeviceConfig) error {
	_ = cfg
	d.Dry.AmbiMap = []BFChannelConfig{
		{Scale: 1.0 / dsp.FuMa2N3DScale[0], Index: 0},
		{Scale: 1.0 / dsp.FuMa2N3DScale[1], Index: 3},
		{Scale: 1.0 / dsp.FuMa2N3DScale[2], Index: 1},
	}
	d.Dry.ChannelNames = []Channel{Aux0, Aux1, Aux2}
	d.Dry.Buffer = newBusBuffers(3)
	d.FOAOut.AmbiMap = d.Dry.AmbiMap
	d.FOAOut.Buffer = d.Dry.Buffer
	d.RealOut.Buffer = newBusBuffers(2)

	d.Uhj = &render.UhjEncoder{}
	d.postProcess = (*Device).processUhj
	return nil
}

// initNearFieldCtrl enables NFC on speaker layouts when the configuration
// provides speaker distances.
func (d *Device) initNearFieldCtrl(cfg DeviceConfig, chanmap []channelMap) {
	if !cfg.NFCEnable || len(cfg.SpeakerDistances) == 0 {
		return
	}
	var sum float32
	for _, dist := range cfg.SpeakerDistances {
		sum += dist
	}
	ctrlDist := sum / float32(len(cfg.SpeakerDistances))

	order := orderFrom2D[len(d.Dry.AmbiMap)-1]
	var chansPerOrder [dsp.MaxAmbiOrder + 1]int
	for _, m := range d.Dry.AmbiMap {
		chansPerOrder[dsp.AmbiOrderFromIndex(m.Index)]++
	}
	d.setNearFieldCtrl(ctrlDist, order, chansPerOrder)
}

func (d *Device) setNearFieldCtrl(ctrlDist float32, order int, chansPerOrder [dsp.MaxAmbiOrder + 1]int) {
	if !(ctrlDist > 0) {
		return
	}
	d.AvgSpeakerDist = min(ctrlDist, 10.0)
	for i := range d.NumChannelsPerOrder {
		if i <= order {
			d.NumChannelsPerOrder[i] = chansPerOrder[i]
		} else {
			d.NumChannelsPerOrder[i] = 0
		}
	}
}

const maxDelayLength = 1024

// initDistanceComp sets up the per-channel delay/gain table from the
// configured speaker distances.
func (d *Device) initDistanceComp(cfg DeviceConfig, chanmap []channelMap) {
	if !cfg.DistanceComp || len(cfg.SpeakerDistances) == 0 {
		return
	}
	var maxDist float32
	for _, dist := range cfg.SpeakerDistances {
		maxDist = max(maxDist, dist)
	}
	if maxDist <= 0 {
		return
	}

	srate := float32(d.SampleRate)
	d.ChannelDelay = make([]DistanceComp, d.RealOut.NumChannels())
	for i, cm := range chanmap {
		if i >= len(cfg.SpeakerDistances) {
			break
		}
		idx := d.RealOut.ChannelIndex(cm.name)
		if idx < 0 {
			continue
		}
		dist := cfg.SpeakerDistances[i]
		// Delays fall to the nearest sample; at 48kHz a step is roughly
		// 7 millimeters of distance.
		delay := float32(int((maxDist-dist)/dsp.SpeedOfSoundMetresPerSec*srate + 0.5))
		length := int(min(max(delay, 0), maxDelayLength-1))
		d.ChannelDelay[idx].Length = length
		d.ChannelDelay[idx].Gain = dist / maxDist
		if length > 0 {
			d.ChannelDelay[idx].Buffer = make([]float32, length)
		}
	}
}
