// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"fmt"
	"io"
)

// ReadAll drains src and returns every interleaved sample. The channel
// count and rate are unchanged; use Convert to condition the stream first.
func ReadAll(src Source) ([]float32, error) {
	bufSize := src.BufSize()
	if bufSize <= 0 {
		bufSize = 4096
	}
	buf := make([]float32, bufSize)

	var all []float32
	for {
		n, err := src.ReadSamples(buf)
		if n > 0 {
			all = append(all, buf[:n]...)
		}
		if err == io.EOF {
			return all, nil
		}
		if err != nil {
			return all, fmt.Errorf("%w", err)
		}
	}
}

// Convert wraps src so it streams at targetRate with targetChannels
// channels. Only a rate change and a fold to mono are supported; any other
// channel conversion returns ErrChannelConvert. Passing zero for either
// target keeps the source value.
func Convert(src Source, targetRate, targetChannels int) (Source, error) {
	out := src
	if targetChannels != 0 && targetChannels != src.Channels() {
		if targetChannels != 1 {
			return nil, ErrChannelConvert
		}
		out = NewDownmixer(out)
	}
	if targetRate != 0 && targetRate != src.SampleRate() {
		out = NewResampler(out, targetRate)
	}
	return out, nil
}

// ConvertAll conditions src to targetRate and targetChannels and collects
// the whole stream. This is the load path for fire-and-forget sample
// buffers: decode once, convert once, mix many times.
func ConvertAll(src Source, targetRate, targetChannels int) ([]float32, error) {
	out, err := Convert(src, targetRate, targetChannels)
	if err != nil {
		return nil, err
	}
	return ReadAll(out)
}
