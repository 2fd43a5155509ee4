// SPDX-License-Identifier: EPL-2.0

package mixer

import (
	"math"

	"github.com/ik5/audmix3d/dsp"
	"github.com/ik5/audmix3d/render"
)

// fadeSamples is the gain ramp length after a parameter change, matching
// the shortest block the mixer produces.
const fadeSamples = 64

// mixGains accumulates src into the output channels with a linear ramp from
// current to target gains over counter frames. current is updated in place.
func mixGains(dst [][]float32, outPos int, src []float32, current, target []float32, counter, dstCount int) {
	for c := range dst {
		out := dst[c][outPos : outPos+dstCount]
		cur := current[c]
		tgt := target[c]

		pos := 0
		if counter > 0 && cur != tgt {
			step := (tgt - cur) / float32(counter)
			n := min(counter, dstCount)
			g := cur
			for i := 0; i < n; i++ {
				out[i] += src[i] * g
				g += step
			}
			if n == counter {
				g = tgt
			}
			current[c] = g
			pos = n
		} else {
			current[c] = tgt
		}

		if float32(math.Abs(float64(tgt))) > dsp.GainSilenceThreshold {
			for i := pos; i < dstCount; i++ {
				out[i] += src[i] * tgt
			}
		}
	}
}

// loadSamples deinterleaves one channel of queued source data into dst,
// starting pos frames into item, honoring the loop points. Frames past the
// end of the queue are silence.
func (v *Voice) loadSamples(dst []float32, ch, pos int, item *BufferQueueItem, looping bool) {
	filled := 0
	cur := item
	p := pos
	for filled < len(dst) && cur != nil {
		buf := cur.Buffer
		if buf == nil || buf.Frames <= 0 {
			break
		}
		end := buf.Frames
		loopSelf := looping && cur == v.queue && cur.Next() == nil &&
			buf.LoopEnd > buf.LoopStart && buf.LoopEnd <= buf.Frames
		if loopSelf {
			end = buf.LoopEnd
		}

		if p < end {
			n := min(len(dst)-filled, end-p)
			nch := buf.Channels.Count()
			if ch < nch {
				data := buf.Data
				for k := 0; k < n; k++ {
					dst[filled+k] = data[(p+k)*nch+ch]
				}
			} else {
				clear(dst[filled : filled+n])
			}
			filled += n
			p += n
		}
		if filled == len(dst) {
			break
		}

		if loopSelf {
			p = buf.LoopStart
			continue
		}
		next := cur.Next()
		if next == nil {
			if looping {
				cur = v.queue
				p = 0
				continue
			}
			break
		}
		cur = next
		p = 0
	}
	clear(dst[filled:])
}

// advanceCursor moves the play cursor advance frames forward through the
// queue, returning the new current item and offset, the number of buffers
// completed, and whether playback ran off the end.
func (v *Voice) advanceCursor(item *BufferQueueItem, pos, advance int, looping bool) (*BufferQueueItem, int, int, bool) {
	done := 0
	pos += advance
	for item != nil {
		buf := item.Buffer
		if buf == nil || buf.Frames <= 0 {
			return item, 0, done, true
		}
		end := buf.Frames
		loopSelf := looping && item == v.queue && item.Next() == nil &&
			buf.LoopEnd > buf.LoopStart && buf.LoopEnd <= buf.Frames
		if loopSelf {
			end = buf.LoopEnd
		}
		if pos < end {
			return item, pos, done, false
		}
		if loopSelf {
			span := buf.LoopEnd - buf.LoopStart
			pos = buf.LoopStart + (pos-buf.LoopStart)%span
			return item, pos, done, false
		}

		pos -= end
		next := item.Next()
		if next == nil {
			if looping {
				done++
				item = v.queue
				continue
			}
			done++
			return item, buf.Frames, done, true
		}
		done++
		item = next
	}
	return item, 0, done, true
}

// stop finishes a voice on the mixer goroutine and reports it.
func (v *Voice) stop(c *Context, buffersDone int) {
	v.PlayState.Store(int32(VoiceStopped))
	if c == nil {
		return
	}
	if buffersDone > 0 {
		c.sendEvent(AsyncEvent{Type: EventBufferCompleted, VoiceID: v.ID, BufferCount: buffersDone})
	}
	c.sendEvent(AsyncEvent{Type: EventSourceStopped, VoiceID: v.ID})
}

// mix renders up to samplesToDo frames of the voice into its direct and
// send targets. It reports whether the voice keeps playing.
func (v *Voice) mix(c *Context, samplesToDo int) bool {
	dev := c.Device
	state := VoiceState(v.PlayState.Load())

	item := v.currentBuffer.Load()
	if item == nil || v.directBuffer == nil {
		v.stop(c, 0)
		return false
	}
	pos := int(v.position.Load())
	frac := int(v.positionFrac.Load())
	looping := v.Props.Looping

	counter := fadeSamples
	if !v.Fading {
		// Fresh start: snap to the target parameters instead of ramping
		// from silence-era state.
		for ch := range v.chans {
			cd := &v.chans[ch]
			copy(cd.Dry.CurrentGains[:], cd.Dry.TargetGains[:])
			for s := range cd.Wet {
				copy(cd.Wet[s].CurrentGains[:], cd.Wet[s].TargetGains[:])
			}
			copyHrtfParams(&cd.Dry.Hrtf.Current, &cd.Dry.Hrtf.Target)
		}
		counter = 0
		v.Fading = true
	}
	if state == VoiceStopping {
		for ch := range v.chans {
			cd := &v.chans[ch]
			clear(cd.Dry.TargetGains[:])
			for s := range cd.Wet {
				clear(cd.Wet[s].TargetGains[:])
			}
			cd.Dry.Hrtf.Target.Gain = 0
		}
		counter = min(samplesToDo, fadeSamples)
	}

	buffersDone := 0
	ended := false
	outPos := 0
	for outPos < samplesToDo && !ended {
		dstCount := samplesToDo - outPos

		// Bound the block so the source window (with padding) fits the
		// scratch buffer even at extreme pitches.
		maxLoad := len(dev.sourceData) - dsp.MaxResamplePadding
		if maxSrc := ((maxLoad - dsp.MaxResamplePadding - 1) << dsp.FractionBits) - frac; maxSrc > 0 {
			dstCount = min(dstCount, maxSrc/v.Step)
		}
		if dstCount <= 0 {
			break
		}
		loadCount := ((frac + dstCount*v.Step) >> dsp.FractionBits) + dsp.MaxResamplePadding + 1
		advance := (frac + dstCount*v.Step) >> dsp.FractionBits
		newFrac := (frac + dstCount*v.Step) & dsp.FractionMask

		for ch := range v.chans {
			cd := &v.chans[ch]
			ext := dev.sourceData[:dsp.MaxResamplePadding+loadCount]
			copy(ext[:dsp.MaxResamplePadding], cd.prevSamples[:dsp.MaxResamplePadding])
			v.loadSamples(ext[dsp.MaxResamplePadding:], ch, pos, item, looping)

			resampled := dev.resampled[:dstCount]
			v.Resampler(&v.ResampleState, ext, frac, v.Step, resampled)

			// Next block's history.
			copy(cd.prevSamples[:dsp.MaxResamplePadding], ext[advance:advance+dsp.MaxResamplePadding])

			// Dry path: filter, then HRTF, NFC or plain panned mix.
			filtered := dev.filtered[:dstCount]
			cd.Dry.LowPass.Process(filtered, resampled)
			cd.Dry.HighPass.Process(filtered, filtered)

			switch {
			case v.useHrtf:
				v.mixHrtfChannel(dev, cd, filtered, outPos, dstCount, counter)
			case v.useNfc:
				v.mixNfcChannel(cd, filtered, outPos, dstCount, counter)
			default:
				n := len(v.directBuffer)
				mixGains(v.directBuffer, outPos, filtered,
					cd.Dry.CurrentGains[:n], cd.Dry.TargetGains[:n], counter, dstCount)
			}

			// Sends.
			for s := 0; s < dev.NumAuxSends; s++ {
				if v.wetBuffer[s] == nil {
					continue
				}
				wetFiltered := dev.wetScratch[:dstCount]
				cd.Wet[s].LowPass.Process(wetFiltered, resampled)
				cd.Wet[s].HighPass.Process(wetFiltered, wetFiltered)
				n := len(v.wetBuffer[s])
				mixGains(v.wetBuffer[s], outPos, wetFiltered,
					cd.Wet[s].CurrentGains[:n], cd.Wet[s].TargetGains[:n], counter, dstCount)
			}
		}

		outPos += dstCount
		counter = max(counter-dstCount, 0)
		frac = newFrac
		var doneNow int
		item, pos, doneNow, ended = v.advanceCursor(item, pos, advance, looping)
		buffersDone += doneNow
	}

	v.currentBuffer.Store(item)
	v.position.Store(uint32(pos))
	v.positionFrac.Store(uint32(frac))

	if buffersDone > 0 && !ended && state != VoiceStopping {
		c.sendEvent(AsyncEvent{Type: EventBufferCompleted, VoiceID: v.ID, BufferCount: buffersDone})
		buffersDone = 0
	}
	if ended || state == VoiceStopping {
		v.stop(c, buffersDone)
		return false
	}
	return true
}

func copyHrtfParams(dst, src *render.HrtfParams) {
	copy(dst.Coeffs, src.Coeffs)
	dst.Delay = src.Delay
	dst.Gain = src.Gain
}

// mixHrtfChannel convolves one channel into the stereo real output,
// crossfading from the previous response when it changed.
func (v *Voice) mixHrtfChannel(dev *Device, cd *voiceChannelData, samples []float32, outPos, dstCount, counter int) {
	h := &cd.Dry.Hrtf
	left := v.directBuffer[0][outPos:]
	right := v.directBuffer[1][outPos:]

	// Contiguous [history|block] input window for the delayed taps.
	const histLen = render.HrtfHistoryLength
	var ext [dsp.BufferSize + histLen]float32
	copy(ext[:histLen], h.History[:])
	copy(ext[histLen:], samples[:dstCount])
	in := ext[:histLen+dstCount]

	irSize := dev.Hrtf.IrSize
	if counter > 0 {
		// Fade the old response out and the new one in.
		fade := min(counter, dstCount)
		fstep := 1.0 / float32(counter)
		render.MixHrtf(left, right, in, histLen, fade, irSize,
			h.Current.Coeffs, h.Current.Delay, h.Current.Gain, -h.Current.Gain*fstep)
		render.MixHrtf(left, right, in, histLen, fade, irSize,
			h.Target.Coeffs, h.Target.Delay, 0, h.Target.Gain*fstep)
		if dstCount > fade {
			render.MixHrtf(left[fade:], right[fade:], in[fade:], histLen,
				dstCount-fade, irSize, h.Target.Coeffs, h.Target.Delay, h.Target.Gain, 0)
		}
		copyHrtfParams(&h.Current, &h.Target)
	} else {
		render.MixHrtf(left, right, in, histLen, dstCount, irSize,
			h.Current.Coeffs, h.Current.Delay, h.Current.Gain, 0)
	}

	copy(h.History[:], ext[dstCount:dstCount+histLen])
}

// mixNfcChannel mixes one channel into its ambisonic target bus, applying
// the near-field filter sections per output order group. The zeroth order
// passes unfiltered; anything past the voice's per-order counts is left
// untouched.
func (v *Voice) mixNfcChannel(cd *voiceChannelData, samples []float32, outPos, dstCount, counter int) {
	chanIdx := 0
	mixOrder := func(numChans int, filtered []float32) {
		if numChans <= 0 || chanIdx >= len(v.directBuffer) {
			return
		}
		numChans = min(numChans, len(v.directBuffer)-chanIdx)
		mixGains(v.directBuffer[chanIdx:chanIdx+numChans], outPos, filtered,
			cd.Dry.CurrentGains[chanIdx:chanIdx+numChans],
			cd.Dry.TargetGains[chanIdx:chanIdx+numChans], counter, dstCount)
		chanIdx += numChans
	}

	mixOrder(v.chansPerOrder[0], samples)

	var nfcBuf [dsp.BufferSize]float32
	if n := v.chansPerOrder[1]; n > 0 {
		cd.Dry.NFC.Process1(nfcBuf[:dstCount], samples)
		mixOrder(n, nfcBuf[:dstCount])
	}
	if n := v.chansPerOrder[2]; n > 0 {
		cd.Dry.NFC.Process2(nfcBuf[:dstCount], samples)
		mixOrder(n, nfcBuf[:dstCount])
	}
	if n := v.chansPerOrder[3]; n > 0 {
		cd.Dry.NFC.Process3(nfcBuf[:dstCount], samples)
		mixOrder(n, nfcBuf[:dstCount])
	}
}
