// SPDX-License-Identifier: EPL-2.0

package mixer

import (
	"errors"
	"testing"
)

// recordingState is an EffectState that only records how it was driven.
type recordingState struct {
	deviceUpdates int
	deviceErr     error
	updates       int
	lastProps     EffectProps
	processed     int
	lastIn        [][]float32
	lastOut       *MixParams
}

func (r *recordingState) DeviceUpdate(*Device) error {
	r.deviceUpdates++
	return r.deviceErr
}

func (r *recordingState) Update(_ *Device, _ *EffectSlot, props *EffectProps) {
	r.updates++
	r.lastProps = *props
}

func (r *recordingState) Process(samplesToDo int, in [][]float32, out *MixParams) {
	r.processed += samplesToDo
	r.lastIn = in
	r.lastOut = out
}

func TestEffectStateRef_CountsHolders(t *testing.T) {
	t.Parallel()

	ref := NewEffectStateRef(&recordingState{})
	ref.incref()
	// Two holders: dropping one leaves only the creation reference, which
	// is the signal to tear the state down.
	if !ref.decref() {
		t.Error("decref from two holders should report releasable")
	}
	if ref.decref() {
		t.Error("decref of the creation reference should not report again")
	}
}

func TestContext_NewEffectSlot(t *testing.T) {
	t.Parallel()

	d := newTestDevice(t, DeviceConfig{})
	c := d.NewContext(4)

	state := &recordingState{}
	slot, err := c.NewEffectSlot(state)
	if err != nil {
		t.Fatal(err)
	}
	if state.deviceUpdates != 1 {
		t.Errorf("DeviceUpdate ran %d times, want 1", state.deviceUpdates)
	}
	if slot.Params.Gain != 1.0 || !slot.Params.AuxSendAuto {
		t.Errorf("initial params = %+v", slot.Params)
	}
	if got := slot.Params.state.count.Load(); got != 2 {
		t.Errorf("state holders = %d, want slot plus mixer", got)
	}
	if len(slot.Wet.Buffer) != slotWetChannels {
		t.Fatalf("wet bus has %d channels, want %d", len(slot.Wet.Buffer), slotWetChannels)
	}
	for i, bf := range slot.Wet.AmbiMap {
		if bf.Index != i || bf.Scale != 1.0 {
			t.Errorf("wet map[%d] = %+v", i, bf)
		}
	}
	found := false
	for _, s := range c.EffectSlots() {
		found = found || s == slot
	}
	if !found {
		t.Error("slot not registered with the context")
	}
}

func TestContext_NewEffectSlotPropagatesDeviceError(t *testing.T) {
	t.Parallel()

	d := newTestDevice(t, DeviceConfig{})
	c := d.NewContext(4)

	wantErr := errors.New("line allocation failed")
	slot, err := c.NewEffectSlot(&recordingState{deviceErr: wantErr})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if slot != nil {
		t.Error("failed slot was returned")
	}
	if len(c.EffectSlots()) != 0 {
		t.Error("failed slot was registered")
	}
}

func TestEffectSlot_UpdateRepublishKeepsState(t *testing.T) {
	t.Parallel()

	d := newTestDevice(t, DeviceConfig{})
	c := d.NewContext(4)
	state := &recordingState{}
	slot, err := c.NewEffectSlot(state)
	if err != nil {
		t.Fatal(err)
	}
	ref := slot.Params.state

	slot.Update(EffectSlotProps{
		Gain:        0.25,
		AuxSendAuto: true,
		State:       ref,
		Props:       EffectProps{DecayTime: 1.5},
	})
	if !slot.updateFromProps() {
		t.Fatal("pending update was not applied")
	}
	if slot.updateFromProps() {
		t.Error("second pickup applied a stale update")
	}

	if slot.Params.Gain != 0.25 {
		t.Errorf("Gain = %v, want 0.25", slot.Params.Gain)
	}
	if slot.Params.DecayTime != 1.5 {
		t.Errorf("DecayTime = %v, want 1.5", slot.Params.DecayTime)
	}
	if state.updates != 1 || state.lastProps.DecayTime != 1.5 {
		t.Errorf("state saw %d updates, last %+v", state.updates, state.lastProps)
	}
	// Republishing the live state must not change its holder count or
	// trigger a release.
	if got := ref.count.Load(); got != 2 {
		t.Errorf("state holders = %d, want 2", got)
	}
	if evs := drainAll(c); len(evs) != 0 {
		t.Errorf("unexpected events %+v", evs)
	}
}

func TestEffectSlot_UpdateSwapsStateAndReleasesOld(t *testing.T) {
	t.Parallel()

	d := newTestDevice(t, DeviceConfig{})
	c := d.NewContext(4)
	oldState := &recordingState{}
	slot, err := c.NewEffectSlot(oldState)
	if err != nil {
		t.Fatal(err)
	}
	oldRef := slot.Params.state

	newState := &recordingState{}
	newRef := NewEffectStateRef(newState)
	slot.Update(EffectSlotProps{Gain: 1, State: newRef})
	slot.updateFromProps()

	if slot.Params.state != newRef {
		t.Fatal("state was not swapped")
	}
	if got := newRef.count.Load(); got != 2 {
		t.Errorf("new state holders = %d, want 2", got)
	}
	if got := oldRef.count.Load(); got != 1 {
		t.Errorf("old state holders = %d, want creation only", got)
	}
	if newState.updates != 1 {
		t.Errorf("new state saw %d updates, want 1", newState.updates)
	}

	evs := drainAll(c)
	if len(evs) != 1 || evs[0].Type != EventReleaseEffectState {
		t.Fatalf("events = %+v, want one release", evs)
	}
	if evs[0].State != oldState {
		t.Error("release event carries the wrong state")
	}
}

func TestEffectSlot_OverwrittenUpdateReturnsHold(t *testing.T) {
	t.Parallel()

	d := newTestDevice(t, DeviceConfig{})
	c := d.NewContext(4)
	slot, err := c.NewEffectSlot(&recordingState{})
	if err != nil {
		t.Fatal(err)
	}

	replaced := &recordingState{}
	replacedRef := NewEffectStateRef(replaced)
	slot.Update(EffectSlotProps{Gain: 0.5, State: replacedRef})
	// The mixer never picks the first update up; the second one overwrites
	// it and the orphaned state goes straight to the release queue.
	slot.Update(EffectSlotProps{Gain: 0.75})

	if got := replacedRef.count.Load(); got != 1 {
		t.Errorf("orphaned state holders = %d, want 1", got)
	}
	evs := drainAll(c)
	if len(evs) != 1 || evs[0].Type != EventReleaseEffectState || evs[0].State != replaced {
		t.Fatalf("events = %+v, want a release of the orphaned state", evs)
	}

	slot.updateFromProps()
	if slot.Params.Gain != 0.75 {
		t.Errorf("Gain = %v, want the second update's 0.75", slot.Params.Gain)
	}
}

func TestEffectSlot_ProcessRouting(t *testing.T) {
	t.Parallel()

	d := newTestDevice(t, DeviceConfig{})
	c := d.NewContext(4)
	state := &recordingState{}
	slot, err := c.NewEffectSlot(state)
	if err != nil {
		t.Fatal(err)
	}
	target, err := c.NewEffectSlot(&recordingState{})
	if err != nil {
		t.Fatal(err)
	}

	slot.process(64)
	if state.processed != 64 {
		t.Fatalf("state processed %d frames, want 64", state.processed)
	}
	if state.lastOut != &d.Dry {
		t.Error("untargeted slot should feed the device dry bus")
	}
	if len(state.lastIn) != slotWetChannels {
		t.Errorf("input bus has %d channels, want %d", len(state.lastIn), slotWetChannels)
	}

	slot.Params.Target = target
	slot.process(32)
	if state.lastOut != &target.Wet {
		t.Error("targeted slot should feed the target's wet bus")
	}
}

func TestContext_SortSlots(t *testing.T) {
	t.Parallel()

	d := newTestDevice(t, DeviceConfig{})
	c := d.NewContext(4)
	mk := func() *EffectSlot {
		s, err := c.NewEffectSlot(&recordingState{})
		if err != nil {
			t.Fatal(err)
		}
		return s
	}
	a, b, chain := mk(), mk(), mk()

	// a feeds b, chain feeds a: processing order must be chain, a, b no
	// matter how the slots were registered.
	a.Params.Target = b
	chain.Params.Target = a

	order := func(slots []*EffectSlot) map[*EffectSlot]int {
		got := c.sortSlots(slots)
		if len(got) != len(slots) {
			t.Fatalf("sorted %d slots, want %d", len(got), len(slots))
		}
		idx := make(map[*EffectSlot]int, len(got))
		for i, s := range got {
			idx[s] = i
		}
		return idx
	}

	for _, perm := range [][]*EffectSlot{
		{a, b, chain},
		{b, chain, a},
		{chain, b, a},
	} {
		idx := order(perm)
		if idx[chain] > idx[a] || idx[a] > idx[b] {
			t.Errorf("order %v violates the feed chain", idx)
		}
	}
}

func TestContext_RemoveEffectSlot(t *testing.T) {
	t.Parallel()

	d := newTestDevice(t, DeviceConfig{})
	c := d.NewContext(4)
	s1, err := c.NewEffectSlot(&recordingState{})
	if err != nil {
		t.Fatal(err)
	}
	s2, err := c.NewEffectSlot(&recordingState{})
	if err != nil {
		t.Fatal(err)
	}

	c.RemoveEffectSlot(s1)
	slots := c.EffectSlots()
	if len(slots) != 1 || slots[0] != s2 {
		t.Errorf("slots after removal = %v", slots)
	}
}

func TestContext_DeferUpdatesHoldsSlotChanges(t *testing.T) {
	t.Parallel()

	d := newTestDevice(t, DeviceConfig{})
	c := d.NewContext(4)
	slot, err := c.NewEffectSlot(&recordingState{})
	if err != nil {
		t.Fatal(err)
	}

	c.DeferUpdates()
	slot.Update(EffectSlotProps{Gain: 0.5, State: slot.Params.state})
	d.MixData(nil, 64)
	if slot.Params.Gain != 1.0 {
		t.Fatalf("deferred update leaked into the mixer: gain %v", slot.Params.Gain)
	}

	c.ProcessUpdates()
	d.MixData(nil, 64)
	if slot.Params.Gain != 0.5 {
		t.Errorf("gain = %v after the batch closed, want 0.5", slot.Params.Gain)
	}
}
