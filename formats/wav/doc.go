// SPDX-License-Identifier: EPL-2.0

// Package wav provides WAV decoding and encoding.
//
// Decoding is built on github.com/go-audio/wav and supports 8/16/24/32-bit
// PCM at any rate and channel count. Encoding covers two cases: the
// streaming Writer that the wave output backend renders into, and the
// one-shot WriteWAV16 convenience.
//
// # Decoding WAV Files
//
// Use the Decoder to read WAV files:
//
//	decoder := wav.Decoder{}
//	file, _ := os.Open("audio.wav")
//	source, err := decoder.Decode(file)
//	if err != nil {
//	    // Handle error
//	}
//
//	// Read samples
//	buf := make([]float32, 4096)
//	n, err := source.ReadSamples(buf)
//
// The decoder returns an audio.Source that provides samples as float32
// values in the range [-1.0, 1.0]. Decode prefers an io.ReadSeeker; plain
// readers are buffered into memory first.
//
// # Streaming Writer
//
// The Writer produces a RIFF/WAVE container incrementally and back-patches
// the chunk sizes on Close. Layouts beyond stereo, or any non-zero channel
// mask, get a WAVE_FORMAT_EXTENSIBLE header carrying the speaker
// positions:
//
//	w, _ := wav.NewWriter(file, wav.Spec{
//	    SampleRate:    48000,
//	    Channels:      6,
//	    BitsPerSample: 32,
//	    Float:         true,
//	    ChannelMask:   0x60F, // 5.1
//	})
//	w.Write(pcmBytes)
//	w.Close()
//
// # One-Shot Writing
//
// Use WriteWAV16 when the whole signal is already in memory:
//
//	samples := []int16{100, -100, 200, -200}
//	file, _ := os.Create("output.wav")
//	err := wav.WriteWAV16(file, 8000, 1, samples)
//
// # Error Handling
//
// The package defines several error types:
//   - ErrNotWavFile: the input is not a valid WAV file
//   - ErrUnsupportedBitDepth: PCM depth outside 8/16/24/32
//   - ErrUnsupportedWavLayout: unsupported WAV file structure
//   - ErrWriterClosed: the streaming writer was used after Close
package wav
