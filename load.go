// SPDX-License-Identifier: EPL-2.0

package audmix3d

import (
	"errors"
	"fmt"

	"github.com/ik5/audmix3d/audio"
	"github.com/ik5/audmix3d/mixer"
)

var (
	// ErrUnsupportedChannels reports a source channel count with no matching
	// buffer layout. Three- and five-channel material has no standard
	// speaker assignment; split or remix it before loading.
	ErrUnsupportedChannels = errors.New("no buffer layout for source channel count")

	// ErrChannelMismatch reports a source whose channel count does not
	// match the layout requested from LoadBufferAs.
	ErrChannelMismatch = errors.New("source channel count does not match requested layout")
)

// bufferChannelsFor maps an interleaved channel count to the buffer layout
// the mixer assumes for it. B-Format is never guessed: four channels mean
// quad speakers unless the caller says otherwise via LoadBufferAs.
func bufferChannelsFor(channels int) (mixer.BufferChannels, bool) {
	switch channels {
	case 1:
		return mixer.FmtMono, true
	case 2:
		return mixer.FmtStereo, true
	case 4:
		return mixer.FmtQuad, true
	case 6:
		return mixer.FmtX51, true
	case 7:
		return mixer.FmtX61, true
	case 8:
		return mixer.FmtX71, true
	}
	return 0, false
}

// LoadBuffer decodes an entire Source into a buffer the mixer can queue on
// a voice. The source's channel count picks the layout (mono, stereo, quad,
// 5.1, 6.1 or 7.1); use LoadBufferAs for rear stereo or B-Format material.
//
// When targetRate is positive and differs from the source rate, the samples
// are resampled while loading. Bringing buffers to the device rate up front
// keeps the per-voice resampler at a unit step, so it only has to track
// pitch and Doppler shifts during playback.
//
// The source is read to the end but not closed.
func LoadBuffer(src audio.Source, targetRate int) (*mixer.Buffer, error) {
	layout, ok := bufferChannelsFor(src.Channels())
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedChannels, src.Channels())
	}
	return loadBuffer(src, layout, targetRate)
}

// LoadBufferAs is LoadBuffer with an explicit layout. It is the only way to
// load ambisonic material: a four-channel source becomes W/X/Y/Z when loaded
// as FmtBFormat3D, and three channels become W/X/Y as FmtBFormat2D. The
// source channel count must match the layout.
func LoadBufferAs(src audio.Source, layout mixer.BufferChannels, targetRate int) (*mixer.Buffer, error) {
	if src.Channels() != layout.Count() {
		return nil, fmt.Errorf("%w: source has %d, layout needs %d",
			ErrChannelMismatch, src.Channels(), layout.Count())
	}
	return loadBuffer(src, layout, targetRate)
}

func loadBuffer(src audio.Source, layout mixer.BufferChannels, targetRate int) (*mixer.Buffer, error) {
	rate := src.SampleRate()
	stream := src
	if targetRate > 0 && targetRate != rate {
		stream = audio.NewResampler(src, targetRate)
		rate = targetRate
	}

	data, err := audio.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}

	channels := layout.Count()
	frames := len(data) / channels
	return &mixer.Buffer{
		Data:       data[:frames*channels],
		Frames:     frames,
		Channels:   layout,
		SampleRate: rate,
	}, nil
}

// Play claims a voice from the context, queues buf on it and starts it at
// the next mix boundary. A nil props plays with the defaults: unit gain at
// the listener origin. The voice is returned for later Update, StopVoice or
// queueing calls.
func Play(c *mixer.Context, buf *mixer.Buffer, props *mixer.VoiceProps) (*mixer.Voice, error) {
	v, err := c.NewVoice(buf.Channels.Count())
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}
	if err := v.Queue(buf); err != nil {
		c.StopVoice(v)
		return nil, fmt.Errorf("%w", err)
	}
	if props == nil {
		p := mixer.DefaultVoiceProps()
		props = &p
	}
	v.Update(c, *props)
	c.PlayVoice(v)
	return v, nil
}

// RenderBlocks runs the device for a whole number of update blocks and
// returns the rendered bytes in the device's output format. It is the
// offline counterpart to feeding MixData from a playback callback.
func RenderBlocks(d *mixer.Device, blocks int) []byte {
	frames := blocks * d.UpdateSize
	out := make([]byte, frames*d.FrameSize())
	d.MixData(out, frames)
	return out
}
