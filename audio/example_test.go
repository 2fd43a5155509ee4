// SPDX-License-Identifier: EPL-2.0

package audio_test

import (
	"fmt"
	"io"
	"sort"

	"github.com/ik5/audmix3d/audio"
	"github.com/ik5/audmix3d/internal/audiotest"
)

// Example_resampler converts a stream to a new sample rate.
func Example_resampler() {
	// One second of a 440Hz tone at 44.1kHz.
	source := audiotest.NewSineSource(44100, 1, 44100, 440.0)

	resampler := audio.NewResampler(source, 16000)

	fmt.Printf("Output sample rate: %d Hz\n", resampler.SampleRate())
	fmt.Printf("Channels: %d\n", resampler.Channels())

	buf := make([]float32, 4096)
	totalSamples := 0
	for {
		n, err := resampler.ReadSamples(buf)
		totalSamples += n
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
	}

	fmt.Printf("Total samples read: %d\n", totalSamples)
	// Output:
	// Output sample rate: 16000 Hz
	// Channels: 1
	// Total samples read: 16000
}

// Example_downmixer folds stereo material to mono before spatialization.
func Example_downmixer() {
	// Left channel at 0.25, right at 0.75.
	source := audiotest.NewMockSource(16000, 2, 16000, func(frame, channel int) float32 {
		if channel == 0 {
			return 0.25
		}
		return 0.75
	})

	mono := audio.NewDownmixer(source)

	fmt.Printf("Input channels: %d\n", source.Channels())
	fmt.Printf("Output channels: %d\n", mono.Channels())

	buf := make([]float32, 4)
	n, _ := mono.ReadSamples(buf)
	if n > 0 {
		fmt.Printf("Mixed sample: %.1f\n", buf[0])
	}
	// Output:
	// Input channels: 2
	// Output channels: 1
	// Mixed sample: 0.5
}

// Example_conversionPipeline conditions a decoded stream to the layout a
// sample buffer needs: one call sets up the downmix and rate change.
func Example_conversionPipeline() {
	// One second of stereo at 44.1kHz.
	source := audiotest.NewSineSource(44100, 2, 44100, 440.0)

	out, err := audio.Convert(source, 8000, 1)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	samples, err := audio.ReadAll(out)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("Sample rate: %d Hz\n", out.SampleRate())
	fmt.Printf("Channels: %d\n", out.Channels())
	fmt.Printf("Samples: %d\n", len(samples))
	fmt.Printf("Duration: %.2f seconds\n", float64(len(samples))/float64(out.SampleRate()))
	// Output:
	// Sample rate: 8000 Hz
	// Channels: 1
	// Samples: 8000
	// Duration: 1.00 seconds
}

// sineDecoder stands in for a real format decoder.
type sineDecoder struct{}

func (sineDecoder) Decode(r io.Reader) (audio.Source, error) {
	return audiotest.NewSineSource(16000, 1, 1000, 440.0), nil
}

// Example_registry wires decoders to format keys.
func Example_registry() {
	registry := audio.NewRegistry()

	registry.Register("wav", sineDecoder{})
	registry.Register("ogg", sineDecoder{})

	decoder, ok := registry.Get("wav")
	if !ok {
		fmt.Println("Decoder not found")
		return
	}
	fmt.Printf("Retrieved decoder: %T\n", decoder)

	if _, ok = registry.Get("flac"); !ok {
		fmt.Println("No decoder for flac")
	}

	formats := registry.Formats()
	sort.Strings(formats)
	fmt.Printf("Formats: %v\n", formats)
	// Output:
	// Retrieved decoder: audio_test.sineDecoder
	// No decoder for flac
	// Formats: [ogg wav]
}
