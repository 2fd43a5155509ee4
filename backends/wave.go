// SPDX-License-Identifier: EPL-2.0

package backends

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ik5/audmix3d/formats/wav"
	"github.com/ik5/audmix3d/mixer"
)

// Speaker position bits for the WAVE_FORMAT_EXTENSIBLE channel mask.
const (
	speakerFrontLeft    = 0x001
	speakerFrontRight   = 0x002
	speakerFrontCenter  = 0x004
	speakerLowFrequency = 0x008
	speakerBackLeft     = 0x010
	speakerBackRight    = 0x020
	speakerBackCenter   = 0x100
	speakerSideLeft     = 0x200
	speakerSideRight    = 0x400
)

// waveChannelMask returns the speaker mask for a device layout. Ambisonic
// output carries no positions; the mask stays zero.
func waveChannelMask(chans mixer.DevFmtChannels) uint32 {
	switch chans {
	case mixer.DevMono:
		return speakerFrontCenter
	case mixer.DevStereo:
		return speakerFrontLeft | speakerFrontRight
	case mixer.DevQuad:
		return speakerFrontLeft | speakerFrontRight | speakerBackLeft | speakerBackRight
	case mixer.DevX51:
		return speakerFrontLeft | speakerFrontRight | speakerFrontCenter |
			speakerLowFrequency | speakerSideLeft | speakerSideRight
	case mixer.DevX51Rear:
		return speakerFrontLeft | speakerFrontRight | speakerFrontCenter |
			speakerLowFrequency | speakerBackLeft | speakerBackRight
	case mixer.DevX61:
		return speakerFrontLeft | speakerFrontRight | speakerFrontCenter |
			speakerLowFrequency | speakerBackCenter | speakerSideLeft | speakerSideRight
	case mixer.DevX71:
		return speakerFrontLeft | speakerFrontRight | speakerFrontCenter |
			speakerLowFrequency | speakerBackLeft | speakerBackRight |
			speakerSideLeft | speakerSideRight
	}
	return 0
}

// waveSpec maps the device output format onto a WAV spec. WAV carries
// unsigned 8-bit, signed 16/32-bit and 32-bit float; the other device
// types have no container representation. Ambisonic devices are tagged as
// B-Format; configure the device for FuMa ordering and normalization when
// the file needs to read as .amb.
func waveSpec(d *mixer.Device) (wav.Spec, error) {
	spec := wav.Spec{
		SampleRate:  d.SampleRate,
		Channels:    d.RealOut.NumChannels(),
		ChannelMask: waveChannelMask(d.FmtChans),
		Ambisonic:   d.FmtChans == mixer.DevAmbi3D,
	}
	switch d.FmtType {
	case mixer.SampleUInt8:
		spec.BitsPerSample = 8
	case mixer.SampleInt16:
		spec.BitsPerSample = 16
	case mixer.SampleInt32:
		spec.BitsPerSample = 32
	case mixer.SampleFloat32:
		spec.BitsPerSample = 32
		spec.Float = true
	default:
		return wav.Spec{}, ErrUnsupportedType
	}
	return spec, nil
}

// WaveBackend renders the device into a RIFF/WAVE stream. With Realtime
// set it paces the mixer against the wall clock, which keeps event
// delivery and source timing behaving like a live output; otherwise it
// renders as fast as the sink accepts data.
type WaveBackend struct {
	dev      *mixer.Device
	writer   *wav.Writer
	realtime bool

	mu      sync.Mutex
	done    chan struct{}
	wg      sync.WaitGroup
	started bool

	buf []byte
}

// NewWaveBackend writes the WAV header for the device format and returns
// a backend ready to start.
func NewWaveBackend(d *mixer.Device, ws io.WriteSeeker, realtime bool) (*WaveBackend, error) {
	spec, err := waveSpec(d)
	if err != nil {
		return nil, err
	}
	w, err := wav.NewWriter(ws, spec)
	if err != nil {
		return nil, fmt.Errorf("opening wave sink: %w", err)
	}
	return &WaveBackend{
		dev:      d,
		writer:   w,
		realtime: realtime,
		buf:      make([]byte, d.UpdateSize*d.FrameSize()),
	}, nil
}

func (b *WaveBackend) Start() error {
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
			b.dev.MixData(b.buf, frames)
			if _, err := b.writer.Write(b.buf[:frames*b.dev.FrameSize()]); err != nil {
				b.dev.Disconnect()
			}
		})
	}()
	return nil
}

func (b *WaveBackend) Stop() error {
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

// Close stops the loop if needed and patches the container sizes.
func (b *WaveBackend) Close() error {
	b.mu.Lock()
	if b.started {
		close(b.done)
		b.wg.Wait()
		b.started = false
	}
	b.mu.Unlock()
	return b.writer.Close()
}

// Frames reports the number of sample frames written to the container.
func (b *WaveBackend) Frames() int64 { return b.writer.Frames() }

func (b *WaveBackend) ClockLatency() (time.Duration, time.Duration) {
	clock := b.dev.ClockTime()
	latency := time.Duration(b.dev.UpdateSize) * time.Second /
		time.Duration(b.dev.SampleRate)
	return clock, latency + b.dev.Latency()
}
