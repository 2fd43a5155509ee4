// SPDX-License-Identifier: EPL-2.0

package backends

import (
	"errors"
	"time"

	"github.com/ik5/audmix3d/mixer"
)

var (
	ErrAlreadyStarted  = errors.New("backend already started")
	ErrNotStarted      = errors.New("backend not started")
	ErrUnsupportedType = errors.New("sample type not supported by backend")
)

// Backend drives a device's mixer loop and delivers the rendered frames
// somewhere: a sound card, a file, or nowhere at all. All backends pull
// audio by calling MixData from their own goroutine.
type Backend interface {
	// Start begins pulling mixed audio from the device.
	Start() error
	// Stop halts the mixer loop and flushes the sink. A stopped backend
	// can be started again.
	Stop() error
	// ClockLatency reports the device clock and the sink's current
	// latency, read consistently against the mixer.
	ClockLatency() (time.Duration, time.Duration)
}

// mixLoop is the shared pacing loop for clocked file/null sinks: it calls
// render with UpdateSize frame blocks at the device rate until done is
// closed, sleeping to track real time.
func mixLoop(d *mixer.Device, done <-chan struct{}, realtime bool, render func(frames int)) {
	frames := d.UpdateSize
	interval := time.Duration(frames) * time.Second / time.Duration(d.SampleRate)

	start := time.Now()
	var rendered time.Duration
	for {
		select {
		case <-done:
			return
		default:
		}

		render(frames)
		rendered += interval

		if realtime {
			if ahead := rendered - time.Since(start); ahead > 0 {
				select {
				case <-done:
					return
				case <-time.After(ahead):
				}
			}
		}
	}
}
