// SPDX-License-Identifier: EPL-2.0

package dsp

// Matrix is a row-major 4x4 transform.
type Matrix [4][4]float32

// IdentityMatrix returns the identity transform.
func IdentityMatrix() Matrix {
	return Matrix{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

// ListenerMatrix builds the world-to-listener transform from the
// orthonormalized at/up/right basis and the listener position. The position
// ends up negated in the translation row so that transforming a world-space
// point yields listener-relative coordinates.
func ListenerMatrix(at, right, up, pos Vector) Matrix {
	return Matrix{
		{right.X, up.X, -at.X, 0},
		{right.Y, up.Y, -at.Y, 0},
		{right.Z, up.Z, -at.Z, 0},
		{-pos.Dot(right), -pos.Dot(up), pos.Dot(at), 1},
	}
}

// Transform applies m to v, using v.W to select between point (1) and
// direction (0) semantics.
func (m *Matrix) Transform(v Vector) Vector {
	return Vector{
		X: v.X*m[0][0] + v.Y*m[1][0] + v.Z*m[2][0] + v.W*m[3][0],
		Y: v.X*m[0][1] + v.Y*m[1][1] + v.Z*m[2][1] + v.W*m[3][1],
		Z: v.X*m[0][2] + v.Y*m[1][2] + v.Z*m[2][2] + v.W*m[3][2],
		W: v.W,
	}
}
