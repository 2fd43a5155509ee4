// SPDX-License-Identifier: EPL-2.0

package render

import (
	"math"
	"sync/atomic"

	"github.com/ik5/audmix3d/dsp"
)

const (
	// HrirDelayMax bounds the per-ear onset delay stored in a dataset, in
	// samples.
	HrirDelayMax = 63

	// HrirLength bounds a dataset's impulse response length, in samples.
	HrirLength = 64

	// hrtfPassthruCoeff spreads a fully diffuse source equally to both
	// ears (cos(pi/4)).
	hrtfPassthruCoeff = 0.707106781187

	// HrtfHistoryLength is the input history MixHrtf callers must keep per
	// channel: enough for the largest onset delay plus IR length.
	HrtfHistoryLength = 128
)

// Hrtf is an in-memory head-related transfer function dataset: a grid of
// stereo impulse responses indexed by elevation row and azimuth within the
// row. Datasets are refcounted because devices on the mixer thread and the
// selection logic on the control thread share them; loading from data files
// is the business of an outer collaborator.
type Hrtf struct {
	refCount atomic.Int32

	SampleRate int
	IrSize     int

	// Distance is the measurement distance of the dataset in meters, or 0
	// when unknown; it drives the near-field control reference.
	Distance float32

	// EvCount elevation rows span -90 to +90 degrees. AzCount holds the
	// azimuth steps per row; EvOffset the IR index of each row's first
	// azimuth.
	EvCount  int
	AzCount  []int
	EvOffset []int

	// Coeffs is indexed [ir*IrSize+tap][ear]; Delays [ir][ear].
	Coeffs [][2]float32
	Delays [][2]uint8
}

// Ref increments the dataset refcount.
func (h *Hrtf) Ref() { h.refCount.Add(1) }

// Unref decrements the dataset refcount, returning the new count.
func (h *Hrtf) Unref() int32 { return h.refCount.Add(-1) }

// HrtfParams is one voice channel's target HRIR.
type HrtfParams struct {
	Coeffs [][2]float32
	Delay  [2]int
	Gain   float32
}

// GetCoeffs looks up the blended HRIR for the given listener-relative
// elevation and azimuth (radians). spread widens the source toward a
// diffuse response, shrinking the interaural delay and blending the
// coefficients toward an equal-power passthrough.
func (h *Hrtf) GetCoeffs(elevation, azimuth, spread float32, params *HrtfParams) {
	dirfact := 1.0 - spread/(2.0*math.Pi)

	// Elevation row pair and blend factor.
	evf := (float64(elevation) + math.Pi/2) * float64(h.EvCount-1) / math.Pi
	ev0 := int(evf)
	if ev0 > h.EvCount-2 {
		ev0 = h.EvCount - 2
	}
	if ev0 < 0 {
		ev0 = 0
	}
	evmu := float32(evf - float64(ev0))
	if evmu < 0 {
		evmu = 0
	} else if evmu > 1 {
		evmu = 1
	}

	var irIdx [4]int
	var blend [4]float32
	for r := 0; r < 2; r++ {
		ev := ev0 + r
		azCount := h.AzCount[ev]
		azf := float64(azimuth) / (2.0 * math.Pi) * float64(azCount)
		az0 := ((int(math.Floor(azf)) % azCount) + azCount) % azCount
		azmu := float32(azf - math.Floor(azf))

		rowBlend := evmu
		if r == 0 {
			rowBlend = 1 - evmu
		}
		irIdx[r*2] = h.EvOffset[ev] + az0
		irIdx[r*2+1] = h.EvOffset[ev] + (az0+1)%azCount
		blend[r*2] = rowBlend * (1 - azmu)
		blend[r*2+1] = rowBlend * azmu
	}

	var delay [2]float32
	for c := 0; c < 4; c++ {
		delay[0] += float32(h.Delays[irIdx[c]][0]) * blend[c]
		delay[1] += float32(h.Delays[irIdx[c]][1]) * blend[c]
	}
	params.Delay[0] = int(min(delay[0]*dirfact+0.5, HrirDelayMax))
	params.Delay[1] = int(min(delay[1]*dirfact+0.5, HrirDelayMax))

	params.Coeffs[0][0] = hrtfPassthruCoeff * (1 - dirfact)
	params.Coeffs[0][1] = hrtfPassthruCoeff * (1 - dirfact)
	for i := 1; i < h.IrSize; i++ {
		params.Coeffs[i][0] = 0
		params.Coeffs[i][1] = 0
	}
	for c := 0; c < 4; c++ {
		base := irIdx[c] * h.IrSize
		bf := blend[c] * dirfact
		for i := 0; i < h.IrSize; i++ {
			params.Coeffs[i][0] += h.Coeffs[base+i][0] * bf
			params.Coeffs[i][1] += h.Coeffs[base+i][1] * bf
		}
	}
}

// nearestIr returns the IR index closest to the given direction.
func (h *Hrtf) nearestIr(elevation, azimuth float32) int {
	evf := (float64(elevation) + math.Pi/2) * float64(h.EvCount-1) / math.Pi
	ev := int(evf + 0.5)
	if ev < 0 {
		ev = 0
	} else if ev >= h.EvCount {
		ev = h.EvCount - 1
	}
	azCount := h.AzCount[ev]
	azw := math.Mod(float64(azimuth), 2.0*math.Pi)
	if azw < 0 {
		azw += 2.0 * math.Pi
	}
	az := int(azw/(2.0*math.Pi)*float64(azCount)+0.5) % azCount
	return h.EvOffset[ev] + az
}

// MixHrtf convolves one voice channel through an HRIR into the left/right
// staging buffers. input must start histLen frames into a buffer whose
// preceding frames hold the previous block's tail, so delayed taps stay
// valid at the block edge. gain ramps by gainStep per output frame.
func MixHrtf(left, right, input []float32, histLen, samplesToDo, irSize int,
	coeffs [][2]float32, delay [2]int, gain, gainStep float32) {
	g := gain
	for i := 0; i < samplesToDo; i++ {
		var l, r float32
		for j := 0; j < irSize; j++ {
			l += coeffs[j][0] * input[histLen+i-delay[0]-j]
			r += coeffs[j][1] * input[histLen+i-delay[1]-j]
		}
		left[i] += l * g
		right[i] += r * g
		g += gainStep
	}
}

// DirectHrtfState convolves the device's ambisonic dry mix straight into the
// stereo real output through per-ambi-channel IRs built by
// BuildBFormatHrtf.
type DirectHrtfState struct {
	IrSize int
	// Coeffs[chan][tap][ear]
	Coeffs  [][][2]float32
	history [][]float32
}

// hrtfAmbiPoints is the 20-point spherical design whose HRIRs get baked
// into the ambisonic-to-ears decode, as {elevation, azimuth} degrees with
// azimuth clockwise from front.
var hrtfAmbiPoints = [20][2]float32{
	{35.264390, -45.000000},
	{35.264390, 45.000000},
	{35.264390, 135.000000},
	{35.264390, -135.000000},
	{-35.264390, -45.000000},
	{-35.264390, 45.000000},
	{-35.264390, 135.000000},
	{-35.264390, -135.000000},
	{0.000000, -20.905157},
	{0.000000, 20.905157},
	{0.000000, 159.094843},
	{0.000000, -159.094843},
	{20.905157, -90.000000},
	{-20.905157, -90.000000},
	{-20.905157, 90.000000},
	{20.905157, 90.000000},
	{69.094843, 0.000000},
	{-69.094843, 0.000000},
	{-69.094843, 180.000000},
	{69.094843, 180.000000},
}

// hrtfAmbiMatrix holds each point's first-order decode row in ACN order
// with the N3D scaling folded in.
var hrtfAmbiMatrix = [20][4]float32{
	{5.00000000e-02, 5.00000000e-02, 5.00000000e-02, 5.00000000e-02},
	{5.00000000e-02, -5.00000000e-02, 5.00000000e-02, 5.00000000e-02},
	{5.00000000e-02, -5.00000000e-02, 5.00000000e-02, -5.00000000e-02},
	{5.00000000e-02, 5.00000000e-02, 5.00000000e-02, -5.00000000e-02},
	{5.00000000e-02, 5.00000000e-02, -5.00000000e-02, 5.00000000e-02},
	{5.00000000e-02, -5.00000000e-02, -5.00000000e-02, 5.00000000e-02},
	{5.00000000e-02, -5.00000000e-02, -5.00000000e-02, -5.00000000e-02},
	{5.00000000e-02, 5.00000000e-02, -5.00000000e-02, -5.00000000e-02},
	{5.00000000e-02, 3.09016994e-02, 0.00000000e+00, 8.09016994e-02},
	{5.00000000e-02, -3.09016994e-02, 0.00000000e+00, 8.09016994e-02},
	{5.00000000e-02, -3.09016994e-02, 0.00000000e+00, -8.09016994e-02},
	{5.00000000e-02, 3.09016994e-02, 0.00000000e+00, -8.09016994e-02},
	{5.00000000e-02, 8.09016994e-02, 3.09016994e-02, 0.00000000e+00},
	{5.00000000e-02, 8.09016994e-02, -3.09016994e-02, 0.00000000e+00},
	{5.00000000e-02, -8.09016994e-02, -3.09016994e-02, 0.00000000e+00},
	{5.00000000e-02, -8.09016994e-02, 3.09016994e-02, 0.00000000e+00},
	{5.00000000e-02, 0.00000000e+00, 8.09016994e-02, 3.09016994e-02},
	{5.00000000e-02, 0.00000000e+00, -8.09016994e-02, 3.09016994e-02},
	{5.00000000e-02, 0.00000000e+00, -8.09016994e-02, -3.09016994e-02},
	{5.00000000e-02, 0.00000000e+00, 8.09016994e-02, -3.09016994e-02},
}

// hrtfOrderHFGain compensates the high-band energy of a truncated
// first-order decode, per ambisonic order.
var hrtfOrderHFGain = [2]float32{3.16227766, 1.82574186}

// BuildBFormatHrtf bakes numChans ambisonic channels' worth of stereo IRs
// from the dataset: each virtual speaker direction contributes its nearest
// HRIR weighted by the direction's decode coefficient. The baked responses
// are band-split so the high band carries the per-order compensation gain,
// and the smallest onset delay across the used HRIRs is trimmed off.
func BuildBFormatHrtf(hrtf *Hrtf, numChans int) *DirectHrtfState {
	const deg2rad = math.Pi / 180.0

	minDelay, maxDelay := HrirDelayMax, 0
	var irIdx [len(hrtfAmbiPoints)]int
	for i, pt := range hrtfAmbiPoints {
		ev := pt[0] * deg2rad
		az := pt[1] * deg2rad
		ir := hrtf.nearestIr(ev, az)
		irIdx[i] = ir
		minDelay = min(minDelay, int(min(hrtf.Delays[ir][0], hrtf.Delays[ir][1])))
		maxDelay = max(maxDelay, int(max(hrtf.Delays[ir][0], hrtf.Delays[ir][1])))
	}

	irTotal := min(hrtf.IrSize+maxDelay-minDelay, HrtfHistoryLength)
	st := &DirectHrtfState{
		IrSize:  irTotal,
		Coeffs:  make([][][2]float32, numChans),
		history: make([][]float32, numChans),
	}
	for c := range st.Coeffs {
		st.Coeffs[c] = make([][2]float32, irTotal)
		st.history[c] = make([]float32, irTotal)
	}

	for i, ir := range irIdx {
		base := ir * hrtf.IrSize
		ldelay := int(hrtf.Delays[ir][0]) - minDelay
		rdelay := int(hrtf.Delays[ir][1]) - minDelay
		for c := 0; c < numChans && c < 4; c++ {
			w := hrtfAmbiMatrix[i][c]
			for j := 0; j < hrtf.IrSize; j++ {
				if j+ldelay < irTotal {
					st.Coeffs[c][j+ldelay][0] += hrtf.Coeffs[base+j][0] * w
				}
				if j+rdelay < irTotal {
					st.Coeffs[c][j+rdelay][1] += hrtf.Coeffs[base+j][1] * w
				}
			}
		}
	}

	// Scale the high band of each baked response by the order gain. The
	// same splitter response is applied to every channel, so the bands
	// stay phase-coherent when they sum at the ears.
	var hf, lf, in [HrtfHistoryLength]float32
	for c := range st.Coeffs {
		order := 0
		if c > 0 {
			order = 1
		}
		for ear := 0; ear < 2; ear++ {
			var split dsp.BandSplitter
			split.SetFrequency(bandXOverFreq / float32(hrtf.SampleRate))
			for j := 0; j < irTotal; j++ {
				in[j] = st.Coeffs[c][j][ear]
			}
			split.Process(hf[:irTotal], lf[:irTotal], in[:irTotal])
			for j := 0; j < irTotal; j++ {
				st.Coeffs[c][j][ear] = hf[j]*hrtfOrderHFGain[order] + lf[j]
			}
		}
	}
	return st
}

// Process convolves samplesToDo frames of the ambisonic input channels into
// the left and right output buffers.
func (st *DirectHrtfState) Process(samplesToDo int, left, right []float32, in [][]float32) {
	hist := st.IrSize
	for c := range st.Coeffs {
		if c >= len(in) {
			break
		}
		// Contiguous [history|block] window for the convolution taps.
		var ext [dsp.BufferSize + 128]float32
		copy(ext[:hist], st.history[c])
		copy(ext[hist:], in[c][:samplesToDo])

		coeffs := st.Coeffs[c]
		for i := 0; i < samplesToDo; i++ {
			var l, r float32
			for j := 0; j < st.IrSize; j++ {
				s := ext[hist+i-j]
				l += coeffs[j][0] * s
				r += coeffs[j][1] * s
			}
			left[i] += l
			right[i] += r
		}

		copy(st.history[c], ext[samplesToDo:hist+samplesToDo])
	}
}

// NewSphericalHrtf synthesizes a deterministic dataset from a rigid
// spherical-head model: interaural delays follow the extra path length
// around a 8.75cm-radius sphere and the far ear gets a one-pole head-shadow
// roll-off. It stands in when no measured dataset is supplied.
func NewSphericalHrtf(sampleRate int) *Hrtf {
	const irSize = 32
	const headRadius = 0.0875

	azCounts := []int{1, 8, 12, 16, 12, 8, 1}
	evCount := len(azCounts)

	h := &Hrtf{
		SampleRate: sampleRate,
		IrSize:     irSize,
		EvCount:    evCount,
		AzCount:    azCounts,
		EvOffset:   make([]int, evCount),
	}
	total := 0
	for i, n := range azCounts {
		h.EvOffset[i] = total
		total += n
	}
	h.Coeffs = make([][2]float32, total*irSize)
	h.Delays = make([][2]uint8, total)

	maxDelaySec := 2.0 * headRadius / 343.3
	for ev := 0; ev < evCount; ev++ {
		elevation := -math.Pi/2 + math.Pi*float64(ev)/float64(evCount-1)
		for az := 0; az < azCounts[ev]; az++ {
			azimuth := 2.0 * math.Pi * float64(az) / float64(azCounts[ev])
			x := -math.Sin(azimuth) * math.Cos(elevation)

			ir := h.EvOffset[ev] + az
			for ear := 0; ear < 2; ear++ {
				// Ear axis: left ear at +x, right at -x.
				earX := float64(1 - 2*ear)
				cosGamma := x * earX

				delaySec := maxDelaySec * 0.5 * (1.0 - cosGamma)
				delay := min(int(delaySec*float64(sampleRate)+0.5), HrirDelayMax)
				h.Delays[ir][ear] = uint8(delay)

				shadow := 0.25 + 0.75*0.5*(1.0+cosGamma)
				pole := 0.1 + 0.55*0.5*(1.0-cosGamma)
				// One-pole impulse response, scaled to the shadowed
				// broadband gain.
				amp := shadow * (1.0 - pole)
				for j := 0; j < irSize; j++ {
					h.Coeffs[ir*irSize+j][ear] = float32(amp)
					amp *= pole
				}
			}
		}
	}
	return h
}
