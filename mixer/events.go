// SPDX-License-Identifier: EPL-2.0

package mixer

import "sync/atomic"

// EventType tags an AsyncEvent.
type EventType int

const (
	// EventSourceStopped reports a voice that reached the end of its queue
	// or was stopped by the mixer.
	EventSourceStopped EventType = iota
	// EventBufferCompleted reports buffers the mixer finished reading.
	EventBufferCompleted
	// EventReleaseEffectState carries an effect state whose last reference
	// was dropped on the mixer goroutine, handing it to the consumer for
	// teardown off the real-time path.
	EventReleaseEffectState
	// EventDisconnected reports that the device stopped producing output.
	EventDisconnected
)

// AsyncEvent is one message from the mixer goroutine to a context's event
// consumer. Only the fields relevant to the Type are set.
type AsyncEvent struct {
	Type EventType

	// Voice identification for stopped/completed events.
	VoiceID uint
	// Count of buffers completed in this event.
	BufferCount int
	// State to release for EventReleaseEffectState.
	State EffectState
}

// eventRing is a single-producer single-consumer ring of AsyncEvents. The
// mixer goroutine writes, the consumer goroutine reads; the power-of-two
// size lets the indices wrap with a mask and never block either side.
type eventRing struct {
	buffer []AsyncEvent
	mask   uint32

	readIdx  atomic.Uint32
	writeIdx atomic.Uint32
}

func newEventRing(minSize int) *eventRing {
	size := 1
	for size < minSize {
		size <<= 1
	}
	return &eventRing{
		buffer: make([]AsyncEvent, size),
		mask:   uint32(size - 1),
	}
}

// writeSpace returns the number of events that can be written without
// overtaking the reader.
func (r *eventRing) writeSpace() int {
	w := r.writeIdx.Load()
	rd := r.readIdx.Load()
	return len(r.buffer) - 1 - int((w-rd)&r.mask)
}

// write publishes an event; it reports false when the ring is full, leaving
// the event for the producer to retry or drop.
func (r *eventRing) write(ev AsyncEvent) bool {
	w := r.writeIdx.Load()
	rd := r.readIdx.Load()
	if (w-rd)&r.mask == r.mask {
		return false
	}
	r.buffer[w&r.mask] = ev
	r.writeIdx.Store(w + 1)
	return true
}

// read pops the oldest event, reporting false when the ring is empty.
func (r *eventRing) read() (AsyncEvent, bool) {
	rd := r.readIdx.Load()
	if rd == r.writeIdx.Load() {
		return AsyncEvent{}, false
	}
	ev := r.buffer[rd&r.mask]
	r.readIdx.Store(rd + 1)
	return ev, true
}

// semaphore wakes the event consumer without the mixer ever blocking: post
// is a non-blocking channel send that coalesces when a wakeup is already
// pending.
type semaphore struct {
	ch chan struct{}
}

func newSemaphore() semaphore {
	return semaphore{ch: make(chan struct{}, 1)}
}

func (s semaphore) post() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

func (s semaphore) wait() {
	<-s.ch
}
