// SPDX-License-Identifier: EPL-2.0

package mixer

import "sync/atomic"

// EffectState is one effect implementation's processing state. The mixer
// goroutine calls Process; DeviceUpdate and Update run on the control side
// before the state is published, so implementations never need locks.
type EffectState interface {
	// DeviceUpdate re-sizes internal lines for a device's rate and layout.
	DeviceUpdate(d *Device) error
	// Update derives the run-time coefficients from the slot's properties.
	Update(d *Device, slot *EffectSlot, props *EffectProps)
	// Process reads samplesToDo frames from the slot's wet bus and
	// accumulates into the output bus.
	Process(samplesToDo int, in [][]float32, out *MixParams)
}

// EffectStateRef counts the holders of an effect state: the slot that
// created it plus the mixer while it is published. When the mixer drops its
// hold and only the creation reference remains, the state is handed to the
// event consumer for teardown off the mixing path.
type EffectStateRef struct {
	State EffectState
	count atomic.Int32
}

func NewEffectStateRef(state EffectState) *EffectStateRef {
	r := &EffectStateRef{State: state}
	r.count.Store(1)
	return r
}

func (r *EffectStateRef) incref() { r.count.Add(1) }

// decref drops one hold, reporting true when only the creation reference is
// left and the state should be released.
func (r *EffectStateRef) decref() bool {
	return r.count.Add(-1) == 1
}

// EffectProps carries the tunable parameters of every built-in effect; each
// state reads the fields it cares about.
type EffectProps struct {
	// Reverb.
	Density             float32
	Diffusion           float32
	Gain                float32
	GainHF              float32
	GainLF              float32
	DecayTime           float32
	DecayHFRatio        float32
	DecayLFRatio        float32
	ReflectionsGain     float32
	ReflectionsDelay    float32
	LateReverbGain      float32
	LateReverbDelay     float32
	AirAbsorptionGainHF float32
	RoomRolloffFactor   float32
	DecayHFLimit        bool

	// Echo.
	EchoDelay    float32
	EchoLRDelay  float32
	EchoDamping  float32
	EchoFeedback float32
	EchoSpread   float32
}

// EffectSlotProps is the control side's snapshot of a slot, published
// through the slot's atomic mailbox for the mixer to pick up.
type EffectSlotProps struct {
	Gain        float32
	AuxSendAuto bool
	Target      *EffectSlot

	Props EffectProps
	State *EffectStateRef

	next *EffectSlotProps
}

// slotParams is the mixer goroutine's active copy of a slot's parameters,
// including the decay figures distance attenuation reads when shaping
// send gains.
type slotParams struct {
	Gain        float32
	AuxSendAuto bool
	Target      *EffectSlot

	RoomRolloff         float32
	DecayTime           float32
	DecayLFRatio        float32
	DecayHFRatio        float32
	DecayHFLimit        bool
	AirAbsorptionGainHF float32

	state *EffectStateRef
}

// EffectSlot is an auxiliary effect slot: voices feed its wet bus, the
// effect state processes the bus into the device mix or into a target
// slot's bus.
type EffectSlot struct {
	ctx *Context

	// update is the single-slot mailbox from the control side; the mixer
	// swaps it empty each block.
	update atomic.Pointer[EffectSlotProps]

	// Params is only touched on the mixer goroutine after creation.
	Params slotParams

	// Wet is the slot's first-order input bus.
	Wet MixParams

	// HoldUpdates pauses parameter pickup while the control side edits
	// several properties.
	HoldUpdates atomic.Bool
}

// slotWetChannels is the slot bus width: first-order ambisonic.
const slotWetChannels = 4

// NewEffectSlot creates a slot bound to the context with the given initial
// state. The state's DeviceUpdate has already been called by the caller.
func (c *Context) NewEffectSlot(state EffectState) (*EffectSlot, error) {
	if err := state.DeviceUpdate(c.Device); err != nil {
		return nil, err
	}
	slot := &EffectSlot{ctx: c}
	slot.Wet.AmbiMap = make([]BFChannelConfig, slotWetChannels)
	for i := range slot.Wet.AmbiMap {
		slot.Wet.AmbiMap[i] = BFChannelConfig{Scale: 1.0, Index: i}
	}
	slot.Wet.Buffer = newBusBuffers(slotWetChannels)

	ref := NewEffectStateRef(state)
	ref.incref() // mixer hold, taken over by the first update pickup
	slot.Params = slotParams{
		Gain:                1.0,
		AuxSendAuto:         true,
		DecayTime:           0,
		AirAbsorptionGainHF: 1.0,
		state:               ref,
	}
	c.addEffectSlot(slot)
	return slot, nil
}

// Update publishes new slot properties for the mixer to pick up at the next
// block boundary.
func (s *EffectSlot) Update(props EffectSlotProps) {
	p := s.ctx.allocSlotProps()
	*p = props
	p.next = nil
	if p.State != nil {
		p.State.incref()
	}
	old := s.update.Swap(p)
	if old != nil {
		// The mixer never saw the previous update; return its state hold
		// and recycle the props.
		if old.State != nil && old.State.decref() {
			s.ctx.sendReleaseEvent(old.State.State)
		}
		s.ctx.freeSlotProps(old)
	}
}

// updateFromProps is called on the mixer goroutine to apply a pending
// update, if any. It reports whether the slot's sorting dependencies may
// have changed.
func (s *EffectSlot) updateFromProps() bool {
	props := s.update.Swap(nil)
	if props == nil {
		return false
	}

	oldState := s.Params.state
	target := props.Target
	s.Params = slotParams{
		Gain:                props.Gain,
		AuxSendAuto:         props.AuxSendAuto,
		Target:              target,
		RoomRolloff:         props.Props.RoomRolloffFactor,
		DecayTime:           props.Props.DecayTime,
		DecayLFRatio:        props.Props.DecayLFRatio,
		DecayHFRatio:        props.Props.DecayHFRatio,
		DecayHFLimit:        props.Props.DecayHFLimit,
		AirAbsorptionGainHF: props.Props.AirAbsorptionGainHF,
		state:               oldState,
	}
	if props.State != nil && props.State != oldState {
		s.Params.state = props.State
		if oldState != nil && oldState.decref() {
			if !s.ctx.sendReleaseEvent(oldState.State) {
				// Event ring full: put the old state back in the mailbox
				// so the release retries next block.
				oldState.incref()
				retry := s.ctx.allocSlotProps()
				*retry = *props
				retry.State = oldState
				retry.next = nil
				if stale := s.update.Swap(retry); stale != nil {
					s.ctx.freeSlotProps(stale)
				}
			}
		}
	} else if props.State != nil {
		// Same state republished; drop the extra hold.
		props.State.decref()
	}

	if s.Params.state != nil {
		s.Params.state.State.Update(s.ctx.Device, s, &props.Props)
	}
	s.ctx.freeSlotProps(props)
	return true
}

// process runs the slot's effect for one block.
func (s *EffectSlot) process(samplesToDo int) {
	if s.Params.state == nil {
		return
	}
	out := &s.ctx.Device.Dry
	if s.Params.Target != nil {
		out = &s.Params.Target.Wet
	}
	s.Params.state.State.Process(samplesToDo, s.Wet.Buffer, out)
}

// clearWet zeroes the slot input bus for the next block.
func (s *EffectSlot) clearWet(samplesToDo int) {
	for _, buf := range s.Wet.Buffer {
		clear(buf[:samplesToDo])
	}
}
