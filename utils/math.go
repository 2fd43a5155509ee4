// SPDX-License-Identifier: EPL-2.0

package utils

// Clamp limits val to the [low, high] range.
func Clamp(val, low, high float32) float32 {
	return min(max(val, low), high)
}

// Lerp linearly interpolates between val1 and val2 by mu (0 <= mu <= 1).
func Lerp(val1, val2, mu float32) float32 {
	return val1 + (val2-val1)*mu
}

// CubicInterpolate evaluates a Catmull-Rom spline through four consecutive
// samples at fractional position x between y1 and y2 (0 <= x <= 1). At x=0
// the result is exactly y1 and at x=1 exactly y2, so successive windows
// join without steps.
func CubicInterpolate(y0, y1, y2, y3, x float32) float32 {
	a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
	a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
	a2 := -0.5*y0 + 0.5*y2
	a3 := y1

	return a0*x*x*x + a1*x*x + a2*x + a3
}
