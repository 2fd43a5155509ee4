// SPDX-License-Identifier: EPL-2.0

package backends

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/ik5/audmix3d/mixer"
)

// deviceReader adapts the device's pull mixer to the io.Reader the oto
// player consumes. Reads are served in whole frames; a carry buffer
// bridges unaligned read sizes.
type deviceReader struct {
	dev   *mixer.Device
	carry []byte
	left  []byte
}

func (r *deviceReader) Read(p []byte) (int, error) {
	total := 0
	if len(r.left) > 0 {
		n := copy(p, r.left)
		r.left = r.left[n:]
		p = p[n:]
		total += n
	}

	frameSize := r.dev.FrameSize()
	if frames := len(p) / frameSize; frames > 0 {
		n := r.dev.MixData(p[:frames*frameSize], frames)
		total += n * frameSize
		p = p[n*frameSize:]
	}

	if len(p) > 0 {
		if r.carry == nil {
			r.carry = make([]byte, frameSize)
		}
		r.dev.MixData(r.carry, 1)
		n := copy(p, r.carry)
		r.left = r.carry[n:]
		total += n
	}
	return total, nil
}

// otoFormat maps the device sample type onto oto's supported formats.
func otoFormat(t mixer.SampleType) (oto.Format, error) {
	switch t {
	case mixer.SampleUInt8:
		return oto.FormatUnsignedInt8, nil
	case mixer.SampleInt16:
		return oto.FormatSignedInt16LE, nil
	case mixer.SampleFloat32:
		return oto.FormatFloat32LE, nil
	}
	return 0, ErrUnsupportedType
}

// OtoBackend plays the device through the operating system's audio output
// using github.com/ebitengine/oto. The oto context is process-global, so
// only one OtoBackend can exist per process.
type OtoBackend struct {
	dev    *mixer.Device
	player *oto.Player

	mu      sync.Mutex
	started bool
}

// NewOtoBackend opens the system audio output for the device's format.
// The call blocks until the platform audio layer is ready.
func NewOtoBackend(d *mixer.Device) (*OtoBackend, error) {
	format, err := otoFormat(d.FmtType)
	if err != nil {
		return nil, err
	}

	bufferDur := time.Duration(d.UpdateSize*d.NumUpdates) * time.Second /
		time.Duration(d.SampleRate)
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   d.SampleRate,
		ChannelCount: d.RealOut.NumChannels(),
		Format:       format,
		BufferSize:   bufferDur,
	})
	if err != nil {
		return nil, fmt.Errorf("opening audio output: %w", err)
	}
	<-ready

	return &OtoBackend{
		dev:    d,
		player: ctx.NewPlayer(&deviceReader{dev: d}),
	}, nil
}

func (b *OtoBackend) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return ErrAlreadyStarted
	}
	b.started = true
	b.player.Play()
	return nil
}

func (b *OtoBackend) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return ErrNotStarted
	}
	b.player.Pause()
	b.started = false
	return nil
}

// Close releases the player. The process-global audio context stays open.
func (b *OtoBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = false
	return b.player.Close()
}

func (b *OtoBackend) ClockLatency() (time.Duration, time.Duration) {
	clock := b.dev.ClockTime()

	// Frames queued in the player plus the post-process delay.
	buffered := time.Duration(b.player.BufferedSize()/b.dev.FrameSize()) *
		time.Second / time.Duration(b.dev.SampleRate)
	return clock, buffered + b.dev.Latency()
}
