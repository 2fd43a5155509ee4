// SPDX-License-Identifier: EPL-2.0

package mixer

import (
	"sync"
	"sync/atomic"

	"github.com/ik5/audmix3d/dsp"
	"github.com/ik5/audmix3d/render"
)

// RenderMode tweaks the panning math for the output target.
type RenderMode int

const (
	// NormalRender pans sources with the plain ambisonic coefficients.
	NormalRender RenderMode = iota
	// StereoPair widens front azimuths to compensate for the narrow span
	// of two speakers.
	StereoPair
	// HrtfRender sends sources through per-channel HRIR convolution.
	HrtfRender
)

// StereoMode is the configured intent for stereo output devices.
type StereoMode int

const (
	StereoAuto StereoMode = iota
	StereoSpeakers
	StereoHeadphones
)

// StereoEncoding selects how a stereo device encodes the mix.
type StereoEncoding int

const (
	EncodePanPot StereoEncoding = iota
	EncodeUHJ
)

// HrtfRequest enables or disables HRTF rendering on stereo devices.
type HrtfRequest int

const (
	HrtfAuto HrtfRequest = iota
	HrtfEnable
	HrtfDisable
)

// BFChannelConfig maps one ambisonic bus channel to its ACN index and
// normalization scale.
type BFChannelConfig struct {
	Scale float32
	Index int
}

// MixParams is one logical mix bus: a set of float channel buffers plus the
// description panning needs to target them. Ambisonic buses carry an
// AmbiMap; the real output bus carries speaker names instead.
type MixParams struct {
	AmbiMap []BFChannelConfig

	Buffer       [][]float32
	ChannelNames []Channel
}

// NumChannels returns the bus channel count.
func (m *MixParams) NumChannels() int { return len(m.Buffer) }

// ChannelIndex finds a named channel on the bus, or -1.
func (m *MixParams) ChannelIndex(name Channel) int {
	for i, n := range m.ChannelNames {
		if n == name {
			return i
		}
	}
	return -1
}

// DistanceComp is one real output channel's distance compensation: a FIFO
// delay of Length samples followed by a gain.
type DistanceComp struct {
	Gain   float32
	Length int
	Buffer []float32
}

// DeviceConfig carries everything the outer configuration loader decides
// about a device before the mixing core initializes it.
type DeviceConfig struct {
	SampleRate  int
	Channels    DevFmtChannels
	SampleType  SampleType
	UpdateSize  int // frames per update block
	NumUpdates  int
	NumAuxSends int

	// Ambisonic output parameters, used when Channels == DevAmbi3D.
	AmbiOrder  int
	AmbiLayout dsp.AmbiLayout
	AmbiScale  dsp.AmbiNorm

	StereoMode     StereoMode
	StereoEncoding StereoEncoding
	HrtfMode       HrtfRequest
	Hrtf           *render.Hrtf // optional dataset; synthesized if nil
	CrossfeedLevel int          // render.Crossfeed* levels, 0 disables

	// HQMode enables the dual-band ambisonic decoder on speaker layouts.
	HQMode bool

	NFCEnable   bool
	NFCRefDelay float32 // seconds of speaker-distance delay for NFC
	// SpeakerDistances overrides the per-speaker distance (meters) used by
	// distance compensation and NFC. Empty means uniform distances.
	SpeakerDistances []float32
	DistanceComp     bool
	FrontStablizer   bool

	DitherDepth   int // output dither bits, 0 disables
	LimiterEnable bool
}

// Device is a process-wide audio output endpoint with its mix buses and the
// post-process chain selected at initialization.
type Device struct {
	SampleRate  int
	FmtChans    DevFmtChannels
	FmtType     SampleType
	UpdateSize  int
	NumUpdates  int
	NumAuxSends int

	AmbiOrder  int
	AmbiLayout dsp.AmbiLayout
	AmbiScale  dsp.AmbiNorm

	Dry     MixParams
	FOAOut  MixParams
	RealOut MixParams

	RenderMode RenderMode

	// Post-process state; at most one of these drives postProcess.
	Hrtf        *render.Hrtf
	HrtfState   *render.DirectHrtfState
	AmbiDecoder *render.BFormatDec
	AmbiUp      *render.AmbiUpsampler
	Uhj         *render.UhjEncoder
	Crossfeed   *render.Bs2b

	Stablizer *render.FrontStablizer
	Limiter   *dsp.Compressor

	ChannelDelay []DistanceComp

	DitherDepth float32
	ditherSeed  uint32

	// Near-field control.
	AvgSpeakerDist      float32
	NumChannelsPerOrder [dsp.MaxAmbiOrder + 1]int

	// SamplesDone is written by the mixer goroutine only; readers pair it
	// with the MixCount protocol for a consistent snapshot.
	SamplesDone  atomic.Uint64
	FixedLatency int // frames of post-process delay (limiter look-ahead)

	MixCount  atomic.Uint32
	Connected atomic.Bool

	contexts   atomic.Pointer[[]*Context]
	contextsMu sync.Mutex

	postProcess func(d *Device, samplesToDo int)

	// Mixer goroutine scratch, sized at reset.
	sourceData   [dsp.BufferSize + 2*dsp.MaxResamplePadding]float32
	resampled    [dsp.BufferSize]float32
	filtered     [dsp.BufferSize]float32
	distCompTemp [dsp.BufferSize]float32
	wetScratch   [dsp.BufferSize]float32
}

// NewDevice builds a device and runs the renderer initialization (panning
// layout, HRTF selection, decoder, limiter, distance compensation).
func NewDevice(cfg DeviceConfig) (*Device, error) {
	if cfg.SampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	if cfg.Channels < DevMono || cfg.Channels > DevAmbi3D {
		return nil, ErrInvalidLayout
	}
	if cfg.SampleType < SampleInt8 || cfg.SampleType > SampleFloat32 {
		return nil, ErrInvalidSampleType
	}
	if cfg.NumAuxSends > dsp.MaxSends {
		return nil, ErrTooManySends
	}
	if cfg.UpdateSize <= 0 || cfg.UpdateSize > dsp.BufferSize {
		cfg.UpdateSize = dsp.BufferSize
	}
	if cfg.NumUpdates <= 0 {
		cfg.NumUpdates = 3
	}
	if cfg.Channels == DevAmbi3D {
		if cfg.AmbiOrder < 1 {
			cfg.AmbiOrder = 1
		} else if cfg.AmbiOrder > dsp.MaxAmbiOrder {
			cfg.AmbiOrder = dsp.MaxAmbiOrder
		}
	}

	d := &Device{
		SampleRate:  cfg.SampleRate,
		FmtChans:    cfg.Channels,
		FmtType:     cfg.SampleType,
		UpdateSize:  cfg.UpdateSize,
		NumUpdates:  cfg.NumUpdates,
		NumAuxSends: cfg.NumAuxSends,
		AmbiOrder:   cfg.AmbiOrder,
		AmbiLayout:  cfg.AmbiLayout,
		AmbiScale:   cfg.AmbiScale,
	}
	d.Connected.Store(true)
	empty := []*Context{}
	d.contexts.Store(&empty)

	if err := d.initRenderer(cfg); err != nil {
		return nil, err
	}

	if cfg.DitherDepth > 0 {
		d.DitherDepth = float32(uint(1) << (uint(cfg.DitherDepth) - 1))
		d.ditherSeed = 22222
	}
	if cfg.LimiterEnable {
		d.Limiter = dsp.NewCompressor(d.RealOut.NumChannels(), d.SampleRate, 0.002)
		d.FixedLatency = d.Limiter.LookAhead()
	}

	return d, nil
}

// FrameSize returns the byte size of one interleaved output frame.
func (d *Device) FrameSize() int {
	return d.RealOut.NumChannels() * d.FmtType.Size()
}

// Contexts returns the contexts bound to the device. The returned slice is
// immutable.
func (d *Device) Contexts() []*Context {
	return *d.contexts.Load()
}

func (d *Device) addContext(ctx *Context) {
	d.contextsMu.Lock()
	defer d.contextsMu.Unlock()
	old := *d.contexts.Load()
	cur := make([]*Context, len(old)+1)
	copy(cur, old)
	cur[len(old)] = ctx
	d.contexts.Store(&cur)
}

// RemoveContext unbinds a context from the device.
func (d *Device) RemoveContext(ctx *Context) {
	d.contextsMu.Lock()
	defer d.contextsMu.Unlock()
	old := *d.contexts.Load()
	cur := make([]*Context, 0, len(old))
	for _, c := range old {
		if c != ctx {
			cur = append(cur, c)
		}
	}
	d.contexts.Store(&cur)
}

// newBusBuffers allocates numChans block-sized channel buffers.
func newBusBuffers(numChans int) [][]float32 {
	buf := make([][]float32, numChans)
	for i := range buf {
		buf[i] = make([]float32, dsp.BufferSize)
	}
	return buf
}
