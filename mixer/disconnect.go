// SPDX-License-Identifier: EPL-2.0

package mixer

// Disconnect marks the device as no longer producing output. The call is
// idempotent; the first one wins, stops every playing voice and notifies
// each context's event consumer. A disconnected device keeps accepting
// MixData calls and renders silence.
func (d *Device) Disconnect() {
	if !d.Connected.CompareAndSwap(true, false) {
		return
	}
	for _, ctx := range *d.contexts.Load() {
		ctx.sendEvent(AsyncEvent{Type: EventDisconnected})
		for _, v := range ctx.voices {
			st := VoiceState(v.PlayState.Load())
			if st == VoicePlaying || st == VoiceStopping || st == VoicePending {
				v.PlayState.Store(int32(VoiceStopped))
				ctx.sendEvent(AsyncEvent{Type: EventSourceStopped, VoiceID: v.ID})
			}
		}
	}
}
