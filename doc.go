// SPDX-License-Identifier: EPL-2.0

// Package audmix3d is a software 3D audio mixing engine for Go applications.
//
// It positions sound sources and a listener in 3D space and renders them to
// a conventional output: distance attenuation, cone directivity, Doppler
// shift, air absorption and auxiliary effect sends are computed per source,
// everything is mixed on an ambisonic bus and decoded to the device layout
// (mono through 7.1, headphone HRTF, or UHJ-encoded stereo). Decoders for
// common file formats and load-time sample-rate conversion are included, so
// a file can go from disk to a positioned voice in a few calls.
//
// # Architecture
//
// The engine splits into layers, each usable on its own:
//
//   - mixer: devices, contexts, voices, effect slots and the block mixer.
//     This is where sources get positions and the listener moves.
//   - render: ambisonic decoders, HRTF, UHJ encoding, crossfeed and the
//     front stabilizer - everything between the ambisonic bus and speakers.
//   - dsp: resamplers, biquads, band splitters, near-field filters and the
//     output limiter.
//   - audio: the streaming Source interface plus load-time resampling and
//     downmixing.
//   - formats: file decoders, one subpackage per container.
//   - backends: ways to get mixed samples out (WAV capture, oto playback,
//     loopback for tests).
//
// A Device owns the output format and runs the mix; a Context owns a voice
// pool and a listener; a Voice plays queued Buffers. All three are driven
// from MixData, which a playback backend calls with the frames it needs.
//
// # Supported Formats
//
// The package decodes the following audio formats:
//   - WAV (PCM 16-bit) via formats/wav
//   - MP3 via formats/mp3
//   - Ogg Vorbis via formats/vorbis
//   - AIFF (PCM 16-bit) via formats/aiff
//
// # Quick Start
//
// Loading a file and playing it from a position in space:
//
//	// Decode an audio file
//	decoder := wav.Decoder{}
//	file, _ := os.Open("step.wav")
//	src, _ := decoder.Decode(file)
//
//	// A stereo device and a context with a small voice pool
//	dev, _ := mixer.NewDevice(mixer.DeviceConfig{
//		SampleRate: 48000,
//		Channels:   mixer.DevStereo,
//		SampleType: mixer.SampleInt16,
//	})
//	ctx := dev.NewContext(16)
//
//	// Bring the samples to the device rate and start a voice to the left
//	buf, _ := audmix3d.LoadBuffer(src, dev.SampleRate)
//	props := mixer.DefaultVoiceProps()
//	props.Position = [3]float32{-2, 0, -1}
//	audmix3d.Play(ctx, buf, &props)
//
//	// Render; normally a backend pulls this from its callback
//	pcm := audmix3d.RenderBlocks(dev, 8)
//
// # Audio Processing Pipeline
//
// The load-time converters compose as streaming sources:
//
//	// Create a resampler
//	resampler := audio.NewResampler(source, 16000)
//
//	// Convert to mono
//	mono := audio.NewDownmixer(resampler)
//
//	// Read samples
//	buf := make([]float32, 4096)
//	n, err := mono.ReadSamples(buf)
//
// ResampleToMono16 wraps this pipeline for the common telephony case and
// returns 16-bit PCM directly.
//
// # Format Decoders
//
// Each format has its own decoder:
//
//	// WAV
//	wavDecoder := wav.Decoder{}
//	src, _ := wavDecoder.Decode(reader)
//
//	// MP3
//	mp3Decoder := mp3.Decoder{}
//	src, _ := mp3Decoder.Decode(reader)
//
//	// Vorbis
//	vorbisDecoder := vorbis.Decoder{}
//	src, _ := vorbisDecoder.Decode(reader)
//
//	// AIFF
//	aiffDecoder := aiff.Decoder{}
//	src, _ := aiffDecoder.Decode(reader)
//
// All decoders return an audio.Source interface which can be used with
// LoadBuffer and the audio processing functions.
//
// # Writing WAV Files
//
// Rendered or processed PCM can be written back out:
//
//	samples := []int16{100, -100, 200, -200}
//	file, _ := os.Create("output.wav")
//	wav.WriteWAV16(file, 8000, 1, samples)
//
// # Performance
//
// The mixer is built for a real-time callback path:
//   - Voice and effect parameters cross to the mixer through lock-free
//     mailboxes; MixData never takes the control-side locks
//   - Per-voice resampling uses fixed-point stepping with selectable
//     quality (point, linear, cubic, band-limited sinc)
//   - Buffer reuse and batch conversions keep allocations out of the
//     mix loop
//
// See the individual subpackages for more detailed documentation.
package audmix3d
