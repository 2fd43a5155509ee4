// SPDX-License-Identifier: EPL-2.0

package render

import "github.com/ik5/audmix3d/dsp"

// bandXOverNorm is the crossover point of the dual-band stages, 400Hz at
// normalized frequency for the configured device rate.
const bandXOverFreq = 400.0

// BFormatDec decodes an ambisonic mix into speaker feeds. In dual-band mode
// each input channel is split at 400Hz and the two bands run through
// separate coefficient matrices, which trades a little CPU for a flatter
// perceived response; single-band mode applies one matrix.
type BFormatDec struct {
	dualBand bool
	splitter []dsp.BandSplitter

	// matrix[out][in]; for dual band, hfMatrix and lfMatrix.
	matrix   [][]float32
	hfMatrix [][]float32
	lfMatrix [][]float32

	upsampler []upsamplerChan

	hfSamples [dsp.BufferSize]float32
	lfSamples [dsp.BufferSize]float32
}

// upsamplerChan carries one first-order channel's crossover state and band
// gains for folding into the higher-order stream.
type upsamplerChan struct {
	xover dsp.BandSplitter
	gains [2]float32 // HF, LF
}

// NewBFormatDec builds a single-band decoder. matrix is indexed
// [output][input ambisonic channel].
func NewBFormatDec(matrix [][]float32) *BFormatDec {
	return &BFormatDec{matrix: matrix}
}

// NewBFormatDecDual builds a dual-band decoder with separate high- and
// low-frequency matrices, crossing over at 400Hz.
func NewBFormatDecDual(hfMatrix, lfMatrix [][]float32, sampleRate int) *BFormatDec {
	numIn := 0
	if len(hfMatrix) > 0 {
		numIn = len(hfMatrix[0])
	}
	dec := &BFormatDec{
		dualBand: true,
		splitter: make([]dsp.BandSplitter, numIn),
		hfMatrix: hfMatrix,
		lfMatrix: lfMatrix,
	}
	for i := range dec.splitter {
		dec.splitter[i].SetFrequency(bandXOverFreq / float32(sampleRate))
	}
	return dec
}

// InitUpsampler prepares the first-order fold-in stage for decoders whose
// input runs above first order. numIn is the number of first-order channels
// that will feed UpSample.
func (d *BFormatDec) InitUpsampler(sampleRate, numIn int) {
	d.upsampler = make([]upsamplerChan, numIn)
	for i := range d.upsampler {
		d.upsampler[i].xover.SetFrequency(bandXOverFreq / float32(sampleRate))
		d.upsampler[i].gains[0] = ambiHFOrderScales[i]
		d.upsampler[i].gains[1] = 1.0
	}
}

// UpSample folds a first-order bus into the leading channels of the
// higher-order bus, band-split so the high band carries the stronger
// directivity the full decode supports. Each input channel accumulates
// into the output channel of the same index.
func (d *BFormatDec) UpSample(out, in [][]float32, samplesToDo int) {
	for i := range d.upsampler {
		if i >= len(in) || i >= len(out) {
			break
		}
		up := &d.upsampler[i]
		up.xover.Process(d.hfSamples[:samplesToDo], d.lfSamples[:samplesToDo], in[i][:samplesToDo])
		dst := out[i]
		for s := 0; s < samplesToDo; s++ {
			dst[s] += up.gains[0]*d.hfSamples[s] + up.gains[1]*d.lfSamples[s]
		}
	}
}

// Process accumulates the decode of in (ambisonic channels) into out
// (speaker feeds) for samplesToDo frames.
func (d *BFormatDec) Process(samplesToDo int, out, in [][]float32) {
	if d.dualBand {
		for c := range in {
			d.splitter[c].Process(d.hfSamples[:samplesToDo], d.lfSamples[:samplesToDo], in[c][:samplesToDo])
			for o := range out {
				hfGain := d.hfMatrix[o][c]
				lfGain := d.lfMatrix[o][c]
				if hfGain == 0 && lfGain == 0 {
					continue
				}
				dst := out[o]
				for i := 0; i < samplesToDo; i++ {
					dst[i] += hfGain*d.hfSamples[i] + lfGain*d.lfSamples[i]
				}
			}
		}
		return
	}

	for c := range in {
		src := in[c]
		for o := range out {
			gain := d.matrix[o][c]
			if gain == 0 {
				continue
			}
			dst := out[o]
			for i := 0; i < samplesToDo; i++ {
				dst[i] += gain * src[i]
			}
		}
	}
}

// AmbiUpsampler folds a first-order ambisonic mix into a higher-order
// target. The first-order input is decoded to eight virtual speakers at the
// cube corners and re-encoded at the target order, band-split so the
// high-frequency portion can carry the stronger directivity the target
// order supports.
type AmbiUpsampler struct {
	splitter [4]dsp.BandSplitter

	// gains[in][band][out]
	gains [4][2][]float32

	hfSamples [dsp.BufferSize]float32
	lfSamples [dsp.BufferSize]float32
}

// ambiUpsampleDirs are the cube-corner virtual speaker directions, on the
// ambisonic axes (x front, y left, z up).
var ambiUpsampleDirs = [8][3]float32{
	{-0.577350269, 0.577350269, -0.577350269},
	{0.577350269, 0.577350269, -0.577350269},
	{-0.577350269, 0.577350269, 0.577350269},
	{0.577350269, 0.577350269, 0.577350269},
	{-0.577350269, -0.577350269, -0.577350269},
	{0.577350269, -0.577350269, -0.577350269},
	{-0.577350269, -0.577350269, 0.577350269},
	{0.577350269, -0.577350269, 0.577350269},
}

// ambiHFOrderScales is the high-frequency gain per first-order input
// channel (W, then the three directional components) when folding into a
// higher-order stream. The low band stays at unity.
var ambiHFOrderScales = [4]float32{2.0, 1.15470054, 1.15470054, 1.15470054}

// NewAmbiUpsampler builds an up-sampler. encode is called once per virtual
// speaker direction and must return that direction's gain row for the
// target bus (one gain per output channel).
func NewAmbiUpsampler(sampleRate int, numOut int, encode func(dir [3]float32) []float32) *AmbiUpsampler {
	up := &AmbiUpsampler{}
	for i := range up.splitter {
		up.splitter[i].SetFrequency(bandXOverFreq / float32(sampleRate))
	}

	for in := 0; in < 4; in++ {
		up.gains[in][0] = make([]float32, numOut)
		up.gains[in][1] = make([]float32, numOut)
	}
	for _, dir := range ambiUpsampleDirs {
		encRow := encode(dir)
		// First-order N3D decode of a cube corner collapses to +-1 signs.
		dec := [4]float32{
			0.125,
			0.125 * 1.732050808 * dir[1],
			0.125 * 1.732050808 * dir[2],
			0.125 * 1.732050808 * dir[0],
		}
		for in := 0; in < 4; in++ {
			for o, g := range encRow {
				if o >= len(up.gains[in][0]) {
					break
				}
				up.gains[in][0][o] += dec[in] * g * ambiHFOrderScales[in]
				up.gains[in][1][o] += dec[in] * g
			}
		}
	}
	return up
}

// Process accumulates the up-sampled first-order input into out.
func (u *AmbiUpsampler) Process(samplesToDo int, out, in [][]float32) {
	for c := 0; c < 4 && c < len(in); c++ {
		u.splitter[c].Process(u.hfSamples[:samplesToDo], u.lfSamples[:samplesToDo], in[c][:samplesToDo])
		for o := range out {
			hfGain := u.gains[c][0][o]
			lfGain := u.gains[c][1][o]
			if hfGain == 0 && lfGain == 0 {
				continue
			}
			dst := out[o]
			for i := 0; i < samplesToDo; i++ {
				dst[i] += hfGain*u.hfSamples[i] + lfGain*u.lfSamples[i]
			}
		}
	}
}
