// SPDX-License-Identifier: EPL-2.0

package backends

import (
	"sync"
	"time"

	"github.com/ik5/audmix3d/mixer"
)

// NullBackend runs the mixer at the device rate and discards the result.
// Useful for muted outputs and for tests that need the engine's clocks
// and events to advance without a sink.
type NullBackend struct {
	dev      *mixer.Device
	realtime bool

	mu      sync.Mutex
	done    chan struct{}
	wg      sync.WaitGroup
	started bool
}

// NewNullBackend binds a discard sink to the device. With realtime unset
// the loop free-runs, which renders as fast as the host allows.
func NewNullBackend(d *mixer.Device, realtime bool) *NullBackend {
	return &NullBackend{dev: d, realtime: realtime}
}

func (b *NullBackend) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return ErrAlreadyStarted
	}
	b.started = true
	b.done = make(chan struct{})

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		mixLoop(b.dev, b.done, b.realtime, func(frames int) {
			// nil output: buses and clocks advance, samples are dropped.
			b.dev.MixData(nil, frames)
		})
	}()
	return nil
}

func (b *NullBackend) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return ErrNotStarted
	}
	close(b.done)
	b.wg.Wait()
	b.started = false
	return nil
}

func (b *NullBackend) ClockLatency() (time.Duration, time.Duration) {
	clock := b.dev.ClockTime()
	latency := time.Duration(b.dev.UpdateSize) * time.Second /
		time.Duration(b.dev.SampleRate)
	return clock, latency + b.dev.Latency()
}
