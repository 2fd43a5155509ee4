// SPDX-License-Identifier: EPL-2.0

package render

// UhjEncoder produces a stereo-compatible UHJ encoding of a first-order
// horizontal B-Format mix (W, X, Y). The phase-quadrature terms are
// approximated with two 4-stage all-pass cascades whose combined response
// differs by 90 degrees across the band; the cascade output needs a one
// sample delay against the quadrature branch, carried between blocks.
//
// References disagree on whether W takes an extra sqrt(2) input scaling; the
// encoder uses the unscaled 1985 Gerzon form.
type UhjEncoder struct {
	filter1WX [4]allPassState
	filter2WX [4]allPassState
	filter1Y  [4]allPassState

	lastY  float32
	lastWX float32
}

type allPassState struct {
	z [2]float32
}

const uhjUpdateSamples = 128

var uhjFilter1CoeffSqr = [4]float32{
	0.479400865589, 0.876218493539, 0.976597589508, 0.997499255936,
}
var uhjFilter2CoeffSqr = [4]float32{
	0.161758498368, 0.733028932341, 0.945349700329, 0.990599156685,
}

func (s *allPassState) process(dst, src []float32, aa float32) {
	z1, z2 := s.z[0], s.z[1]
	for i, in := range src {
		out := in*aa + z1
		z1 = z2
		z2 = out*aa - in
		dst[i] = out
	}
	s.z[0], s.z[1] = z1, z2
}

// Encode accumulates the UHJ left/right signals for samplesToDo frames of
// the wxy buffers (W, X, Y order) into leftOut and rightOut.
func (e *UhjEncoder) Encode(leftOut, rightOut []float32, wxy [][]float32, samplesToDo int) {
	var d, s [uhjUpdateSamples]float32
	var temp [2][uhjUpdateSamples]float32

	w, x, y := wxy[0], wxy[1], wxy[2]

	for base := 0; base < samplesToDo; {
		todo := min(samplesToDo-base, uhjUpdateSamples)

		// D = allpass1(0.6554516*Y), one sample late.
		for i := 0; i < todo; i++ {
			temp[0][i] = 0.6554516 * y[base+i]
		}
		e.filter1Y[0].process(temp[1][:todo], temp[0][:todo], uhjFilter1CoeffSqr[0])
		e.filter1Y[1].process(temp[0][:todo], temp[1][:todo], uhjFilter1CoeffSqr[1])
		e.filter1Y[2].process(temp[1][:todo], temp[0][:todo], uhjFilter1CoeffSqr[2])
		e.filter1Y[3].process(temp[0][:todo], temp[1][:todo], uhjFilter1CoeffSqr[3])
		d[0] = e.lastY
		for i := 1; i < todo; i++ {
			d[i] = temp[0][i-1]
		}
		e.lastY = temp[0][todo-1]

		// D += j(-0.3420201*W + 0.5098604*X)
		for i := 0; i < todo; i++ {
			temp[0][i] = -0.3420201*w[base+i] + 0.5098604*x[base+i]
		}
		e.filter2WX[0].process(temp[1][:todo], temp[0][:todo], uhjFilter2CoeffSqr[0])
		e.filter2WX[1].process(temp[0][:todo], temp[1][:todo], uhjFilter2CoeffSqr[1])
		e.filter2WX[2].process(temp[1][:todo], temp[0][:todo], uhjFilter2CoeffSqr[2])
		e.filter2WX[3].process(temp[0][:todo], temp[1][:todo], uhjFilter2CoeffSqr[3])
		for i := 0; i < todo; i++ {
			d[i] += temp[0][i]
		}

		// S = allpass1(0.9396926*W + 0.1855740*X), one sample late.
		for i := 0; i < todo; i++ {
			temp[0][i] = 0.9396926*w[base+i] + 0.1855740*x[base+i]
		}
		e.filter1WX[0].process(temp[1][:todo], temp[0][:todo], uhjFilter1CoeffSqr[0])
		e.filter1WX[1].process(temp[0][:todo], temp[1][:todo], uhjFilter1CoeffSqr[1])
		e.filter1WX[2].process(temp[1][:todo], temp[0][:todo], uhjFilter1CoeffSqr[2])
		e.filter1WX[3].process(temp[0][:todo], temp[1][:todo], uhjFilter1CoeffSqr[3])
		s[0] = e.lastWX
		for i := 1; i < todo; i++ {
			s[i] = temp[0][i-1]
		}
		e.lastWX = temp[0][todo-1]

		for i := 0; i < todo; i++ {
			leftOut[base+i] += (s[i] + d[i]) * 0.5
			rightOut[base+i] += (s[i] - d[i]) * 0.5
		}

		base += todo
	}
}
