// SPDX-License-Identifier: EPL-2.0

package backends

import (
	"errors"
	"testing"
	"time"

	"github.com/ik5/audmix3d/mixer"
)

func newTestDevice(t *testing.T, cfg mixer.DeviceConfig) *mixer.Device {
	t.Helper()
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 48000
	}
	if cfg.Channels == mixer.DevMono {
		cfg.Channels = mixer.DevStereo
	}
	if cfg.SampleType == mixer.SampleInt8 {
		cfg.SampleType = mixer.SampleFloat32
	}
	if cfg.UpdateSize == 0 {
		cfg.UpdateSize = 64
	}
	d, err := mixer.NewDevice(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestNullBackend_StartStopLifecycle(t *testing.T) {
	t.Parallel()

	b := NewNullBackend(newTestDevice(t, mixer.DeviceConfig{}), false)
	if err := b.Start(); err != nil {
		t.Fatal(err)
	}
	if err := b.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start = %v, want ErrAlreadyStarted", err)
	}
	if err := b.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := b.Stop(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("second Stop = %v, want ErrNotStarted", err)
	}
	// A stopped backend restarts cleanly.
	if err := b.Start(); err != nil {
		t.Fatal(err)
	}
	if err := b.Stop(); err != nil {
		t.Fatal(err)
	}
}

func TestNullBackend_DeliversEventsWhileRunning(t *testing.T) {
	t.Parallel()

	d := newTestDevice(t, mixer.DeviceConfig{})
	c := d.NewContext(4)

	v, err := c.NewVoice(1)
	if err != nil {
		t.Fatal(err)
	}
	samples := make([]float32, 100)
	if err := v.Queue(&mixer.Buffer{
		Data:       samples,
		Frames:     len(samples),
		Channels:   mixer.FmtMono,
		SampleRate: d.SampleRate,
	}); err != nil {
		t.Fatal(err)
	}
	v.Update(c, mixer.DefaultVoiceProps())
	c.PlayVoice(v)

	b := NewNullBackend(d, false)
	if err := b.Start(); err != nil {
		t.Fatal(err)
	}

	// The free-running loop plays the buffer out almost immediately; the
	// stop event arrives through the context's wait side.
	sawStop := false
	for !sawStop {
		c.WaitEvents(func(ev mixer.AsyncEvent) {
			if ev.Type == mixer.EventSourceStopped && ev.VoiceID == v.ID {
				sawStop = true
			}
		})
	}
	if err := b.Stop(); err != nil {
		t.Fatal(err)
	}

	if st := v.State(); st != mixer.VoiceStopped {
		t.Errorf("voice state = %d after its stop event", st)
	}
	if clock, _ := b.ClockLatency(); clock <= 0 {
		t.Error("device clock did not advance")
	}
}

func TestNullBackend_ClockLatency(t *testing.T) {
	t.Parallel()

	d := newTestDevice(t, mixer.DeviceConfig{})
	b := NewNullBackend(d, false)
	_, lat := b.ClockLatency()
	want := time.Duration(d.UpdateSize) * time.Second / time.Duration(d.SampleRate)
	if lat != want {
		t.Errorf("latency = %v, want one update block %v", lat, want)
	}

	// A limiter adds its look-ahead on top.
	dl := newTestDevice(t, mixer.DeviceConfig{LimiterEnable: true})
	bl := NewNullBackend(dl, false)
	_, lat = bl.ClockLatency()
	if lat != want+dl.Latency() {
		t.Errorf("latency = %v, want %v", lat, want+dl.Latency())
	}
}
