// SPDX-License-Identifier: EPL-2.0

// Package audio provides the decode-side audio primitives: a streaming
// Source interface, sample rate conversion, channel downmixing and a
// decoder registry. The mixing engine consumes whole buffers of float32
// PCM; this package is how compressed or mismatched assets become those
// buffers.
//
// # Source Interface
//
// The Source interface is the foundation of the decode pipeline:
//
//	type Source interface {
//	    SampleRate() int
//	    Channels() int
//	    ReadSamples(dst []float32) (int, error)
//	    BufSize() int
//	    Close() error
//	}
//
// All format decoders and conditioning stages implement this interface,
// allowing them to be chained together.
//
// # Resampling
//
// The Resampler converts a stream to the output device's sample rate
// using cubic interpolation, so every buffer handed to the mixer plays
// without per-voice rate conversion drift at load time:
//
//	resampler := audio.NewResampler(source, device.SampleRate)
//	buf := make([]float32, 4096)
//	n, err := resampler.ReadSamples(buf)
//
// Resampling works for both upsampling and downsampling.
//
// # Channel Downmixing
//
// The Downmixer converts multi-channel audio to mono by averaging:
//
//	mono := audio.NewDownmixer(source)
//	buf := make([]float32, 4096)
//	n, err := mono.ReadSamples(buf)
//
// Mono input is what point sources feed the spatializer; multi-channel
// buffers bypass it and pan each channel to its native direction.
//
// # Format Registry
//
// The registry allows dynamic decoder registration:
//
//	registry := audio.NewRegistry()
//	registry.Register("wav", wav.Decoder{})
//	decoder, _ := registry.Get("wav")
//
// The root package assembles a registry with every built-in format.
//
// # Sample Format
//
// Audio samples are represented as float32 in the range [-1.0, 1.0]:
//   - 0.0 represents silence
//   - 1.0 represents maximum positive amplitude
//   - -1.0 represents maximum negative amplitude
//
// The mixer works in the same normalized format, so decoded data flows
// through spatialization and effects without intermediate conversion or
// clipping.
//
// # Error Handling
//
// Sources return io.EOF when no more data is available. Other errors
// indicate problems with the underlying reader or decoder:
//
//	for {
//	    n, err := source.ReadSamples(buf)
//	    if err == io.EOF {
//	        break // Normal end of stream
//	    }
//	    if err != nil {
//	        return err // Processing error
//	    }
//	    // Process n samples from buf
//	}
package audio
