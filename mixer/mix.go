// SPDX-License-Identifier: EPL-2.0

package mixer

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/ik5/audmix3d/dsp"
	"github.com/ik5/audmix3d/utils"
)

// MixData renders frames sample frames of interleaved output into out. When
// out is nil the mix still runs (buses, clocks and events advance) and the
// result is discarded, which backends use to keep time while muted. The
// number of frames rendered is returned.
//
// MixData must only be called from one goroutine at a time, normally the
// backend's mixer goroutine.
func (d *Device) MixData(out []byte, frames int) int {
	if !d.Connected.Load() {
		d.writeSilence(out, frames)
		return frames
	}

	frameSize := d.FrameSize()
	done := 0
	for done < frames {
		todo := min(frames-done, d.UpdateSize, dsp.BufferSize)

		// Odd MixCount marks a mix in flight so clock readers retry.
		d.MixCount.Add(1)

		d.clearBuses(todo)

		contexts := *d.contexts.Load()
		for _, ctx := range contexts {
			d.processContext(ctx, todo)
		}

		if d.postProcess != nil {
			d.postProcess(d, todo)
		}
		d.postMix(todo)

		if out != nil {
			d.writeSamples(out[done*frameSize:], todo)
		}

		d.SamplesDone.Add(uint64(todo))
		d.MixCount.Add(1)
		done += todo
	}
	return done
}

// ClockTime returns the device time from rendered samples, consistent even
// against a concurrent mix.
func (d *Device) ClockTime() time.Duration {
	for {
		c1 := d.MixCount.Load()
		if c1&1 != 0 {
			continue
		}
		samples := d.SamplesDone.Load()
		if d.MixCount.Load() == c1 {
			return time.Duration(samples * uint64(time.Second) / uint64(d.SampleRate))
		}
	}
}

// Latency reports the fixed post-process latency (limiter look-ahead).
func (d *Device) Latency() time.Duration {
	return time.Duration(uint64(d.FixedLatency) * uint64(time.Second) / uint64(d.SampleRate))
}

func (d *Device) clearBuses(todo int) {
	for _, buf := range d.Dry.Buffer {
		clear(buf[:todo])
	}
	if len(d.FOAOut.Buffer) > 0 && &d.FOAOut.Buffer[0][0] != &d.Dry.Buffer[0][0] {
		for _, buf := range d.FOAOut.Buffer {
			clear(buf[:todo])
		}
	}
	if len(d.RealOut.Buffer) > 0 && &d.RealOut.Buffer[0][0] != &d.Dry.Buffer[0][0] {
		for _, buf := range d.RealOut.Buffer {
			clear(buf[:todo])
		}
	}
	for _, ctx := range *d.contexts.Load() {
		for _, slot := range ctx.EffectSlots() {
			slot.clearWet(todo)
		}
	}
}

// processContext applies pending updates, mixes the context's voices and
// runs its effect slots for one block.
func (d *Device) processContext(ctx *Context, todo int) {
	slots := ctx.EffectSlots()

	if !ctx.HoldUpdates.Load() {
		force := ctx.calcContextParams()
		if ctx.calcListenerParams() {
			force = true
		}
		for _, slot := range slots {
			slot.updateFromProps()
		}
		for _, v := range ctx.voices {
			st := VoiceState(v.PlayState.Load())
			if st == VoicePlaying || st == VoiceStopping {
				v.calcSourceParams(ctx, force)
			}
		}
	}

	for _, v := range ctx.voices {
		st := VoiceState(v.PlayState.Load())
		if st == VoicePlaying || st == VoiceStopping {
			v.mix(ctx, todo)
		}
	}

	for _, slot := range ctx.sortSlots(slots) {
		slot.process(todo)
	}
}

// sortSlots orders slots so every slot runs before the slot it feeds into,
// letting chained effects accumulate in one pass.
func (c *Context) sortSlots(slots []*EffectSlot) []*EffectSlot {
	sorted := c.sortedSlots[:0]
	for _, slot := range slots {
		// Insert before the first slot found along our target chain.
		pos := len(sorted)
		for t := slot.Params.Target; t != nil; t = t.Params.Target {
			for i, s := range sorted {
				if s == t && i < pos {
					pos = i
					break
				}
			}
		}
		sorted = append(sorted, nil)
		copy(sorted[pos+1:], sorted[pos:])
		sorted[pos] = slot
	}
	c.sortedSlots = sorted
	return sorted
}

// postMix runs the output conditioning chain: front stabilizer, limiter,
// per-speaker distance compensation and dither.
func (d *Device) postMix(todo int) {
	if d.Stablizer != nil {
		lidx := d.RealOut.ChannelIndex(FrontLeft)
		ridx := d.RealOut.ChannelIndex(FrontRight)
		cidx := d.RealOut.ChannelIndex(FrontCenter)
		if lidx >= 0 && ridx >= 0 && cidx >= 0 {
			d.Stablizer.Process(todo, d.RealOut.Buffer, lidx, ridx, cidx)
		}
	}

	if d.Limiter != nil {
		d.Limiter.Process(todo, d.RealOut.Buffer)
	}

	if len(d.ChannelDelay) > 0 {
		for c := range d.RealOut.Buffer {
			if c >= len(d.ChannelDelay) {
				break
			}
			dc := &d.ChannelDelay[c]
			if dc.Gain > 0 {
				applyDistanceComp(d.RealOut.Buffer[c], todo, dc, d.distCompTemp[:])
			}
		}
	}

	if d.DitherDepth > 0 {
		d.applyDither(todo)
	}
}

// applyDistanceComp delays one channel through its FIFO line and applies
// the distance gain.
func applyDistanceComp(chanBuf []float32, todo int, dc *DistanceComp, scratch []float32) {
	gain := dc.Gain
	n := dc.Length
	if n == 0 {
		for i := 0; i < todo; i++ {
			chanBuf[i] *= gain
		}
		return
	}

	if n >= todo {
		copy(scratch[:todo], chanBuf[:todo])
		for i := 0; i < todo; i++ {
			chanBuf[i] = dc.Buffer[i] * gain
		}
		copy(dc.Buffer, dc.Buffer[todo:n])
		copy(dc.Buffer[n-todo:], scratch[:todo])
		return
	}

	copy(scratch[:n], chanBuf[todo-n:todo])
	copy(chanBuf[n:todo], chanBuf[:todo-n])
	for i := 0; i < n; i++ {
		chanBuf[i] = dc.Buffer[i] * gain
	}
	for i := n; i < todo; i++ {
		chanBuf[i] *= gain
	}
	copy(dc.Buffer[:n], scratch[:n])
}

func ditherRNG(seed *uint32) uint32 {
	*seed = *seed*96314165 + 907633515
	return *seed
}

// applyDither adds triangular-PDF dither at the quantization depth and
// rounds the mix to that grid, decorrelating the truncation error of the
// integer output formats.
func (d *Device) applyDither(todo int) {
	depth := d.DitherDepth
	invDepth := 1.0 / depth
	seed := d.ditherSeed
	const invUint = 1.0 / float32(math.MaxUint32)
	for _, buf := range d.RealOut.Buffer {
		for i := 0; i < todo; i++ {
			val := buf[i] * depth
			r0 := float32(ditherRNG(&seed)) * invUint
			r1 := float32(ditherRNG(&seed)) * invUint
			val += r0 - r1
			buf[i] = float32(math.Round(float64(val))) * invDepth
		}
	}
	d.ditherSeed = seed
}

// writeSilence fills out with the format's zero level.
func (d *Device) writeSilence(out []byte, frames int) {
	if out == nil {
		return
	}
	n := frames * d.FrameSize()
	switch d.FmtType {
	case SampleUInt8:
		for i := 0; i < n; i++ {
			out[i] = 0x80
		}
	case SampleUInt16:
		for i := 0; i+1 < n; i += 2 {
			binary.LittleEndian.PutUint16(out[i:], 0x8000)
		}
	case SampleUInt32:
		for i := 0; i+3 < n; i += 4 {
			binary.LittleEndian.PutUint32(out[i:], 0x80000000)
		}
	default:
		clear(out[:n])
	}
}

// writeSamples interleaves and converts the real output bus into the
// device's sample format.
func (d *Device) writeSamples(out []byte, todo int) {
	numChans := d.RealOut.NumChannels()
	switch d.FmtType {
	case SampleFloat32:
		for i := 0; i < todo; i++ {
			for c := 0; c < numChans; c++ {
				bits := math.Float32bits(d.RealOut.Buffer[c][i])
				binary.LittleEndian.PutUint32(out[(i*numChans+c)*4:], bits)
			}
		}
	case SampleInt16:
		for i := 0; i < todo; i++ {
			for c := 0; c < numChans; c++ {
				binary.LittleEndian.PutUint16(out[(i*numChans+c)*2:], uint16(floatToInt16(d.RealOut.Buffer[c][i])))
			}
		}
	case SampleUInt16:
		for i := 0; i < todo; i++ {
			for c := 0; c < numChans; c++ {
				v := uint16(int32(floatToInt16(d.RealOut.Buffer[c][i])) + 32768)
				binary.LittleEndian.PutUint16(out[(i*numChans+c)*2:], v)
			}
		}
	case SampleInt8:
		for i := 0; i < todo; i++ {
			for c := 0; c < numChans; c++ {
				out[i*numChans+c] = byte(floatToInt8(d.RealOut.Buffer[c][i]))
			}
		}
	case SampleUInt8:
		for i := 0; i < todo; i++ {
			for c := 0; c < numChans; c++ {
				out[i*numChans+c] = byte(int16(floatToInt8(d.RealOut.Buffer[c][i])) + 128)
			}
		}
	case SampleInt32:
		for i := 0; i < todo; i++ {
			for c := 0; c < numChans; c++ {
				binary.LittleEndian.PutUint32(out[(i*numChans+c)*4:], uint32(floatToInt32(d.RealOut.Buffer[c][i])))
			}
		}
	case SampleUInt32:
		for i := 0; i < todo; i++ {
			for c := 0; c < numChans; c++ {
				v := uint32(int64(floatToInt32(d.RealOut.Buffer[c][i])) + 2147483648)
				binary.LittleEndian.PutUint32(out[(i*numChans+c)*4:], v)
			}
		}
	}
}

func floatToInt16(s float32) int16 {
	return int16(utils.Clamp(s*32768.0, -32768.0, 32767.0))
}

func floatToInt8(s float32) int8 {
	return int8(utils.Clamp(s*128.0, -128.0, 127.0))
}

// floatToInt32 quantizes to 24 significant bits and shifts into the high
// bytes, keeping the float mantissa exact through the conversion.
func floatToInt32(s float32) int32 {
	return int32(utils.Clamp(s*16777216.0, -16777216.0, 16777215.0)) << 7
}

// Post-process stages, one of which is bound at device initialization.

func (d *Device) processAmbiDec(samplesToDo int) {
	if len(d.FOAOut.Buffer) > 0 && &d.FOAOut.Buffer[0][0] != &d.Dry.Buffer[0][0] {
		d.AmbiDecoder.UpSample(d.Dry.Buffer, d.FOAOut.Buffer, samplesToDo)
	}
	d.AmbiDecoder.Process(samplesToDo, d.RealOut.Buffer, d.Dry.Buffer)
	if d.Crossfeed != nil {
		d.Crossfeed.Process(d.RealOut.Buffer[0], d.RealOut.Buffer[1], samplesToDo)
	}
}

func (d *Device) processAmbiUp(samplesToDo int) {
	d.AmbiUp.Process(samplesToDo, d.Dry.Buffer, d.FOAOut.Buffer)
}

func (d *Device) processHrtf(samplesToDo int) {
	d.HrtfState.Process(samplesToDo, d.RealOut.Buffer[0], d.RealOut.Buffer[1], d.Dry.Buffer)
}

func (d *Device) processUhj(samplesToDo int) {
	// Dry holds FuMa-ordered W, X, Y at indices 0, 1, 2.
	d.Uhj.Encode(d.RealOut.Buffer[0], d.RealOut.Buffer[1], d.Dry.Buffer, samplesToDo)
}
