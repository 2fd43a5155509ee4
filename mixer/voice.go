// SPDX-License-Identifier: EPL-2.0

package mixer

import (
	"math"
	"sync/atomic"

	"github.com/ik5/audmix3d/dsp"
	"github.com/ik5/audmix3d/render"
)

// VoiceState is a voice's play-state machine, driven with atomic swaps so
// the control and mixer goroutines never lock.
type VoiceState int32

const (
	VoiceStopped VoiceState = iota
	VoicePending
	VoicePlaying
	VoiceStopping
)

// SpatializeMode decides whether a voice is panned by its 3D properties.
type SpatializeMode int

const (
	// SpatializeAuto spatializes mono voices and pans multi-channel ones
	// statically.
	SpatializeAuto SpatializeMode = iota
	SpatializeOff
	SpatializeOn
)

// Buffer is a block of source sample frames. Data is interleaved float32;
// decoding and sample-type conversion happen upstream of the mixer.
type Buffer struct {
	Data       []float32
	Frames     int
	Channels   BufferChannels
	SampleRate int

	// Loop points in frames, honored when the queue loops.
	LoopStart int
	LoopEnd   int
}

// BufferQueueItem links queued buffers. The mixer walks next without locks;
// the control side only appends behind the tail it owns.
type BufferQueueItem struct {
	Buffer *Buffer
	next   atomic.Pointer[BufferQueueItem]
}

// Next returns the following queue entry, or nil.
func (q *BufferQueueItem) Next() *BufferQueueItem { return q.next.Load() }

// FilterParams is one direct or send path's filter setting.
type FilterParams struct {
	Gain   float32
	GainHF float32
	HFRef  float32
	GainLF float32
	LFRef  float32
}

// SendParams routes a voice into an effect slot.
type SendParams struct {
	Slot *EffectSlot
	FilterParams
}

// VoiceProps is the control side's full snapshot of a source's mixing
// properties, published through the voice's atomic mailbox.
type VoiceProps struct {
	Pitch   float32
	Gain    float32
	MinGain float32
	MaxGain float32

	OuterGain   float32
	OuterGainHF float32

	InnerAngle float32
	OuterAngle float32

	Position  dsp.Vector
	Velocity  dsp.Vector
	Direction dsp.Vector
	// OrientAt/OrientUp rotate B-Format buffer content.
	OrientAt dsp.Vector
	OrientUp dsp.Vector

	RefDistance         float32
	MaxDistance         float32
	RolloffFactor       float32
	RoomRolloffFactor   float32
	DopplerFactor       float32
	AirAbsorptionFactor float32
	Radius              float32

	HeadRelative   bool
	Looping        bool
	DryGainHFAuto  bool
	WetGainAuto    bool
	WetGainHFAuto  bool
	DirectChannels bool

	Model      DistanceModel // per-source model when the context allows it
	Spatialize SpatializeMode
	Resampler  dsp.ResamplerType

	// StereoPan holds the panning angles (radians) of stereo content,
	// front-left and front-right by default.
	StereoPan [2]float32

	Direct FilterParams
	Sends  [dsp.MaxSends]SendParams

	next *VoiceProps
}

// DefaultVoiceProps returns the neutral property set a fresh voice starts
// with. Callers adjust fields on the result and publish it with Update
// rather than building a VoiceProps from zero.
func DefaultVoiceProps() VoiceProps { return defaultVoiceProps() }

// defaultVoiceProps fills the neutral property set.
func defaultVoiceProps() VoiceProps {
	p := VoiceProps{
		Pitch:   1.0,
		Gain:    1.0,
		MaxGain: 1.0,

		OuterGain:   0.0,
		OuterGainHF: 1.0,
		InnerAngle:  360.0,
		OuterAngle:  360.0,

		RefDistance:   1.0,
		MaxDistance:   math.MaxFloat32,
		RolloffFactor: 1.0,
		DopplerFactor: 1.0,

		DryGainHFAuto: true,
		WetGainAuto:   true,
		WetGainHFAuto: true,

		Model:      DistanceModelInverseClamped,
		Spatialize: SpatializeAuto,
		Resampler:  dsp.ResampleDefault,
		StereoPan:  [2]float32{0.524, -0.524}, // +-30 degrees
		Direct:     FilterParams{Gain: 1, GainHF: 1, HFRef: 5000, GainLF: 1, LFRef: 250},
	}
	for i := range p.Sends {
		p.Sends[i].FilterParams = p.Direct
	}
	return p
}

// hrtfChannelState is one channel's HRTF mixing state: the ramped current
// and target IRs plus the input history the delayed taps read across block
// edges.
type hrtfChannelState struct {
	Current render.HrtfParams
	Target  render.HrtfParams
	History [render.HrtfHistoryLength]float32
}

// directChannelParams is one voice channel's dry-path state.
type directChannelParams struct {
	LowPass  dsp.BiquadFilter
	HighPass dsp.BiquadFilter

	Hrtf hrtfChannelState

	NFC dsp.NFCFilter

	CurrentGains [dsp.MaxOutputChannels]float32
	TargetGains  [dsp.MaxOutputChannels]float32
}

// sendChannelParams is one voice channel's state for one auxiliary send.
type sendChannelParams struct {
	LowPass  dsp.BiquadFilter
	HighPass dsp.BiquadFilter

	CurrentGains [dsp.MaxOutputChannels]float32
	TargetGains  [dsp.MaxOutputChannels]float32
}

// voiceChannelData is everything the mixer tracks per input channel.
type voiceChannelData struct {
	// prevSamples carries resampler history across blocks.
	prevSamples [2 * dsp.MaxResamplePadding]float32

	Dry directChannelParams
	Wet [dsp.MaxSends]sendChannelParams
}

// Voice renders one source: it owns the queue position, resampler state and
// per-channel panning state that only the mixer goroutine touches.
type Voice struct {
	ID uint

	PlayState atomic.Int32

	update atomic.Pointer[VoiceProps]
	// Props is the mixer's active copy.
	Props VoiceProps

	// Queue head and play cursor. currentBuffer/position are atomics so
	// the control side can observe playback progress.
	queue         *BufferQueueItem
	queueTail     *BufferQueueItem
	currentBuffer atomic.Pointer[BufferQueueItem]
	position      atomic.Uint32
	positionFrac  atomic.Uint32

	NumChannels int
	FmtChannels BufferChannels
	SampleRate  int

	Step          int // fixed-point resampling increment
	Resampler     dsp.ResamplerFunc
	ResampleState dsp.InterpState

	// Fading forces a gain ramp on the next mix after (re)start or a
	// parameter change.
	Fading bool

	// Mixing targets chosen by the parameter calculation: the dry path
	// goes to the device's Dry bus, the real output (direct channels,
	// HRTF) or nowhere; sends go to their slot's wet bus.
	directBuffer [][]float32
	wetBuffer    [dsp.MaxSends][][]float32
	sendSlots    [dsp.MaxSends]*EffectSlot
	useNfc       bool
	useHrtf      bool

	// chansPerOrder is the ambisonic channel count per order the NFC
	// stages run over, snapshotted when the panning engages them.
	chansPerOrder [dsp.MaxAmbiOrder + 1]int

	chans []voiceChannelData

	dev *Device
	ctx *Context
}

func newVoice(id uint) *Voice {
	v := &Voice{ID: id}
	v.PlayState.Store(int32(VoiceStopped))
	return v
}

// reset prepares a claimed voice for a new source.
func (v *Voice) reset(numChannels int, d *Device) {
	v.Props = defaultVoiceProps()
	v.update.Store(nil)
	v.queue = nil
	v.queueTail = nil
	v.currentBuffer.Store(nil)
	v.position.Store(0)
	v.positionFrac.Store(0)
	v.NumChannels = numChannels
	v.FmtChannels = FmtMono
	v.SampleRate = d.SampleRate
	v.Step = dsp.FractionOne
	v.Resampler = dsp.SelectResampler(dsp.ResampleDefault, dsp.FractionOne, &v.ResampleState)
	v.Fading = false
	v.useNfc = false
	v.useHrtf = false
	v.chansPerOrder = [dsp.MaxAmbiOrder + 1]int{}
	v.dev = d
	if cap(v.chans) < numChannels {
		v.chans = make([]voiceChannelData, numChannels)
	} else {
		v.chans = v.chans[:numChannels]
		for i := range v.chans {
			v.chans[i] = voiceChannelData{}
		}
	}
	v.initChanState()
}

// initChanState allocates the HRTF target storage and seeds the near-field
// filters with the device's speaker distance.
func (v *Voice) initChanState() {
	var w1 float32
	if v.dev.AvgSpeakerDist > 0 {
		w1 = dsp.SpeedOfSoundMetresPerSec / (v.dev.AvgSpeakerDist * float32(v.dev.SampleRate))
	}
	for i := range v.chans {
		v.chans[i].Dry.Hrtf.Current.Coeffs = make([][2]float32, render.HrirLength)
		v.chans[i].Dry.Hrtf.Target.Coeffs = make([][2]float32, render.HrirLength)
		if w1 > 0 {
			v.chans[i].Dry.NFC.Init(0, w1)
		}
	}
}

// Queue appends a buffer to the voice's play queue. The first queued buffer
// fixes the voice's channel count and source rate.
func (v *Voice) Queue(buf *Buffer) error {
	if VoiceState(v.PlayState.Load()) == VoicePlaying && v.queue == nil {
		return ErrVoiceActive
	}
	item := &BufferQueueItem{Buffer: buf}
	if v.queueTail == nil {
		v.queue = item
		v.queueTail = item
		v.currentBuffer.Store(item)
		v.NumChannels = buf.Channels.Count()
		v.FmtChannels = buf.Channels
		v.SampleRate = buf.SampleRate
		if len(v.chans) != v.NumChannels {
			v.chans = make([]voiceChannelData, v.NumChannels)
			v.initChanState()
		}
	} else {
		v.queueTail.next.Store(item)
		v.queueTail = item
	}
	return nil
}

// Update publishes a property snapshot for the mixer.
func (v *Voice) Update(c *Context, props VoiceProps) {
	v.ctx = c
	p := c.allocVoiceProps()
	*p = props
	p.next = nil
	if old := v.update.Swap(p); old != nil {
		c.freeVoiceProps(old)
	}
}

// Position reports the play cursor as (buffer frames, fraction).
func (v *Voice) Position() (frames int, frac int) {
	return int(v.position.Load()), int(v.positionFrac.Load())
}

// State returns the voice's play state.
func (v *Voice) State() VoiceState {
	return VoiceState(v.PlayState.Load())
}

// updateFromProps applies a pending property snapshot on the mixer
// goroutine; it reports whether anything was picked up.
func (v *Voice) updateFromProps(c *Context) bool {
	props := v.update.Swap(nil)
	if props == nil {
		return false
	}
	next := props.next
	props.next = nil
	v.Props = *props
	c.freeVoiceProps(props)
	for next != nil {
		n := next.next
		next.next = nil
		c.freeVoiceProps(next)
		next = n
	}
	return true
}
