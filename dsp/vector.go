// SPDX-License-Identifier: EPL-2.0

package dsp

import "math"

// Vector is a 3-component direction or position with a w component kept for
// matrix transforms.
type Vector struct {
	X, Y, Z, W float32
}

// Dot returns the 3-component dot product.
func (v Vector) Dot(o Vector) float32 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Cross returns the 3-component cross product.
func (v Vector) Cross(o Vector) Vector {
	return Vector{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

// Normalize scales v to unit length in place and returns the original
// length. A zero vector stays zero and returns 0.
func (v *Vector) Normalize() float32 {
	length := float32(math.Sqrt(float64(v.Dot(*v))))
	if length > 0 {
		inv := 1.0 / length
		v.X *= inv
		v.Y *= inv
		v.Z *= inv
	} else {
		v.X, v.Y, v.Z = 0, 0, 0
	}
	return length
}

// Scale returns v with the 3 spatial components multiplied by s.
func (v Vector) Scale(s float32) Vector {
	return Vector{X: v.X * s, Y: v.Y * s, Z: v.Z * s, W: v.W}
}

// Add returns the component-wise sum of the 3 spatial components.
func (v Vector) Add(o Vector) Vector {
	return Vector{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z, W: v.W}
}
