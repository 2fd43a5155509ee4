// SPDX-License-Identifier: EPL-2.0

package mixer

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/ik5/audmix3d/dsp"
)

// DistanceModel selects the distance attenuation curve applied to sources.
type DistanceModel int

const (
	DistanceModelInverseClamped DistanceModel = iota
	DistanceModelLinearClamped
	DistanceModelExponentClamped
	DistanceModelInverse
	DistanceModelLinear
	DistanceModelExponent
	DistanceModelNone
)

func envTrue(name string) bool {
	switch os.Getenv(name) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Compatibility toggles, read once from the environment.
var (
	halfAngleCones          = sync.OnceValue(func() bool { return envTrue("AUDMIX_HALF_ANGLE_CONES") })
	reverseZ                = sync.OnceValue(func() bool { return envTrue("AUDMIX_REVERSE_Z") })
	reverbIgnoresSoundSpeed = sync.OnceValue(func() bool { return envTrue("AUDMIX_REVERB_IGNORES_SOUND_SPEED") })
)

// ListenerProps is the control side's listener snapshot.
type ListenerProps struct {
	Position dsp.Vector
	Velocity dsp.Vector
	OrientAt dsp.Vector
	OrientUp dsp.Vector

	Gain          float32
	MetersPerUnit float32

	next *ListenerProps
}

// listenerParams is the mixer's derived listener state: everything source
// parameter calculation needs, in listener space.
type listenerParams struct {
	Matrix   dsp.Matrix
	Velocity dsp.Vector

	Gain          float32
	MetersPerUnit float32

	DopplerFactor       float32
	SpeedOfSound        float32 // world units per second, Doppler-scaled
	ReverbSpeedOfSound  float32 // meters per second for decay distances
	SourceDistanceModel bool
	Model               DistanceModel
}

// Listener is a context's listener: an atomic property mailbox plus the
// mixer-owned derived parameters.
type Listener struct {
	update atomic.Pointer[ListenerProps]
	Params listenerParams
}

// ContextProps is the control side's snapshot of context-wide parameters.
type ContextProps struct {
	DopplerFactor       float32
	DopplerVelocity     float32
	SpeedOfSound        float32
	SourceDistanceModel bool
	Model               DistanceModel

	next *ContextProps
}

// Intrusive lock-free free lists let the mixer goroutine return consumed
// property structs without allocating or locking; the control side pops with
// a CAS loop and only allocates when the list runs dry.

type listenerPropsFreeList struct{ head atomic.Pointer[ListenerProps] }

func (l *listenerPropsFreeList) get() *ListenerProps {
	for {
		p := l.head.Load()
		if p == nil {
			return &ListenerProps{}
		}
		if l.head.CompareAndSwap(p, p.next) {
			*p = ListenerProps{}
			return p
		}
	}
}

func (l *listenerPropsFreeList) put(p *ListenerProps) {
	for {
		head := l.head.Load()
		p.next = head
		if l.head.CompareAndSwap(head, p) {
			return
		}
	}
}

type contextPropsFreeList struct{ head atomic.Pointer[ContextProps] }

func (l *contextPropsFreeList) get() *ContextProps {
	for {
		p := l.head.Load()
		if p == nil {
			return &ContextProps{}
		}
		if l.head.CompareAndSwap(p, p.next) {
			*p = ContextProps{}
			return p
		}
	}
}

func (l *contextPropsFreeList) put(p *ContextProps) {
	for {
		head := l.head.Load()
		p.next = head
		if l.head.CompareAndSwap(head, p) {
			return
		}
	}
}

type slotPropsFreeList struct{ head atomic.Pointer[EffectSlotProps] }

func (l *slotPropsFreeList) get() *EffectSlotProps {
	for {
		p := l.head.Load()
		if p == nil {
			return &EffectSlotProps{}
		}
		if l.head.CompareAndSwap(p, p.next) {
			*p = EffectSlotProps{}
			return p
		}
	}
}

func (l *slotPropsFreeList) put(p *EffectSlotProps) {
	for {
		head := l.head.Load()
		p.next = head
		if l.head.CompareAndSwap(head, p) {
			return
		}
	}
}

type voicePropsFreeList struct{ head atomic.Pointer[VoiceProps] }

func (l *voicePropsFreeList) get() *VoiceProps {
	for {
		p := l.head.Load()
		if p == nil {
			return &VoiceProps{}
		}
		if l.head.CompareAndSwap(p, p.next) {
			*p = VoiceProps{}
			return p
		}
	}
}

func (l *voicePropsFreeList) put(p *VoiceProps) {
	for {
		head := l.head.Load()
		p.next = head
		if l.head.CompareAndSwap(head, p) {
			return
		}
	}
}

// Context groups a listener, a fixed voice pool and the effect slots that
// mix into one device. All control-side mutation goes through atomic
// mailboxes that the mixer drains at block boundaries.
type Context struct {
	Device *Device

	Listener Listener
	update   atomic.Pointer[ContextProps]

	// HoldUpdates defers property pickup; UpdateCount is odd while the
	// control side is batching changes, so the mixer can skip the batch.
	HoldUpdates atomic.Bool
	UpdateCount atomic.Uint32

	voices []*Voice

	slots   atomic.Pointer[[]*EffectSlot]
	slotsMu sync.Mutex

	// sortedSlots is mixer-goroutine scratch for the dependency ordering.
	sortedSlots []*EffectSlot

	events   *eventRing
	eventSem semaphore

	listenerFree listenerPropsFreeList
	contextFree  contextPropsFreeList
	slotFree     slotPropsFreeList
	voiceFree    voicePropsFreeList
}

// NewContext creates a context with a pool of maxVoices voices and binds it
// to the device.
func (d *Device) NewContext(maxVoices int) *Context {
	if maxVoices <= 0 {
		maxVoices = 64
	}
	c := &Context{
		Device:   d,
		events:   newEventRing(256),
		eventSem: newSemaphore(),
	}
	c.Listener.Params = listenerParams{
		Matrix:             dsp.IdentityMatrix(),
		Gain:               1.0,
		MetersPerUnit:      1.0,
		DopplerFactor:      1.0,
		SpeedOfSound:       dsp.SpeedOfSoundMetresPerSec,
		ReverbSpeedOfSound: dsp.SpeedOfSoundMetresPerSec,
		Model:              DistanceModelInverseClamped,
	}
	c.voices = make([]*Voice, maxVoices)
	for i := range c.voices {
		c.voices[i] = newVoice(uint(i + 1))
	}
	empty := []*EffectSlot{}
	c.slots.Store(&empty)
	d.addContext(c)
	return c
}

// UpdateListener publishes new listener properties.
func (c *Context) UpdateListener(props ListenerProps) {
	p := c.listenerFree.get()
	*p = props
	p.next = nil
	if old := c.Listener.update.Swap(p); old != nil {
		c.listenerFree.put(old)
	}
}

// UpdateProps publishes new context-wide parameters.
func (c *Context) UpdateProps(props ContextProps) {
	p := c.contextFree.get()
	*p = props
	p.next = nil
	if old := c.update.Swap(p); old != nil {
		c.contextFree.put(old)
	}
}

// DeferUpdates makes the mixer hold all pending property pickups until
// ProcessUpdates, so a batch of changes lands atomically.
func (c *Context) DeferUpdates() {
	c.UpdateCount.Add(1) // odd: batch open
	c.HoldUpdates.Store(true)
}

// ProcessUpdates releases a DeferUpdates batch.
func (c *Context) ProcessUpdates() {
	c.HoldUpdates.Store(false)
	c.UpdateCount.Add(1) // even: batch closed
}

func (c *Context) allocSlotProps() *EffectSlotProps { return c.slotFree.get() }
func (c *Context) freeSlotProps(p *EffectSlotProps) { c.slotFree.put(p) }
func (c *Context) allocVoiceProps() *VoiceProps     { return c.voiceFree.get() }
func (c *Context) freeVoiceProps(p *VoiceProps)     { c.voiceFree.put(p) }

// sendReleaseEvent queues an effect state for off-thread teardown.
func (c *Context) sendReleaseEvent(state EffectState) bool {
	ok := c.events.write(AsyncEvent{Type: EventReleaseEffectState, State: state})
	if ok {
		c.eventSem.post()
	}
	return ok
}

func (c *Context) sendEvent(ev AsyncEvent) bool {
	ok := c.events.write(ev)
	if ok {
		c.eventSem.post()
	}
	return ok
}

// DrainEvents hands every queued async event to handle without blocking and
// returns the number consumed.
func (c *Context) DrainEvents(handle func(AsyncEvent)) int {
	n := 0
	for {
		ev, ok := c.events.read()
		if !ok {
			return n
		}
		handle(ev)
		n++
	}
}

// WaitEvents blocks until the mixer posts at least one event, then drains.
func (c *Context) WaitEvents(handle func(AsyncEvent)) int {
	c.eventSem.wait()
	return c.DrainEvents(handle)
}

func (c *Context) addEffectSlot(slot *EffectSlot) {
	c.slotsMu.Lock()
	defer c.slotsMu.Unlock()
	old := *c.slots.Load()
	cur := make([]*EffectSlot, len(old)+1)
	copy(cur, old)
	cur[len(old)] = slot
	c.slots.Store(&cur)
}

// RemoveEffectSlot unbinds a slot. The caller must first stop every voice
// sending to it.
func (c *Context) RemoveEffectSlot(slot *EffectSlot) {
	c.slotsMu.Lock()
	defer c.slotsMu.Unlock()
	old := *c.slots.Load()
	cur := make([]*EffectSlot, 0, len(old))
	for _, s := range old {
		if s != slot {
			cur = append(cur, s)
		}
	}
	c.slots.Store(&cur)
}

// EffectSlots returns the bound slots; the returned slice is immutable.
func (c *Context) EffectSlots() []*EffectSlot {
	return *c.slots.Load()
}

// NewVoice claims a free voice from the pool, configured for numChannels
// input channels.
func (c *Context) NewVoice(numChannels int) (*Voice, error) {
	for _, v := range c.voices {
		if v.PlayState.CompareAndSwap(int32(VoiceStopped), int32(VoicePending)) {
			v.reset(numChannels, c.Device)
			return v, nil
		}
	}
	return nil, ErrVoicePoolFull
}

// PlayVoice starts a claimed voice at the next block boundary.
func (c *Context) PlayVoice(v *Voice) {
	v.PlayState.Store(int32(VoicePlaying))
}

// StopVoice asks the mixer to stop a voice; the stop lands at the next
// block boundary and is confirmed with an EventSourceStopped.
func (c *Context) StopVoice(v *Voice) {
	v.PlayState.CompareAndSwap(int32(VoicePlaying), int32(VoiceStopping))
	v.PlayState.CompareAndSwap(int32(VoicePending), int32(VoiceStopped))
}

// Voices returns the context's voice pool.
func (c *Context) Voices() []*Voice { return c.voices }
