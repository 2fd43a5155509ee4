// SPDX-License-Identifier: EPL-2.0

// Package mixer is the core of the spatial audio engine: it owns the device
// mix buses, the per-context voice and effect-slot state, the lock-free
// parameter propagation between the control goroutines and the mixer
// goroutine, and the block mixing loop itself.
//
// # Threads
//
// Three kinds of goroutines touch a device:
//
//   - The mixer goroutine, owned by a backend, calls Device.MixData whenever
//     it needs frames. MixData never allocates, locks or blocks.
//   - Control goroutines create voices and effect slots and publish
//     parameter updates through single-slot atomic mailboxes.
//   - An event consumer per context drains the async event ring fed by the
//     mixer (source stopped, effect state released, disconnected).
//
// # Mixing cycle
//
// One MixData call produces up to N frames in blocks of at most
// dsp.BufferSize. Per block: pending property updates are applied (unless
// the context holds them), every playing voice is resampled, filtered and
// accumulated into the dry and send buses, effect slots run in dependency
// order, the post-process stage decodes the ambisonic mix to real output
// channels, and the conditioning chain (stabilizer, limiter, distance
// compensation, dither, format conversion) writes interleaved samples to the
// caller's buffer.
//
// # Quick Start
//
//	dev, err := mixer.NewDevice(mixer.DeviceConfig{
//		SampleRate: 44100,
//		Channels:   mixer.DevStereo,
//		SampleType: mixer.SampleFloat32,
//	})
//	ctx := dev.NewContext(64)
//	voice, _ := ctx.NewVoice(1)
//	voice.Queue(buffer)
//	ctx.PlayVoice(voice)
//
//	out := make([]byte, 1024*dev.FrameSize())
//	dev.MixData(out, 1024)
package mixer
