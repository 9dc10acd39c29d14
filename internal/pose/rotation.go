package pose

import (
	"math"

	"github.com/golang/geo/r3"
)

// Mat3 is a row-major 3x3 matrix.
type Mat3 [3][3]float64

// Identity returns the 3x3 identity matrix.
func Identity() Mat3 {
	return Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// MulVec returns m * v.
func (m Mat3) MulVec(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// Mul returns m * o.
func (m Mat3) Mul(o Mat3) Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				out[i][j] += m[i][k] * o[k][j]
			}
		}
	}
	return out
}

// Transpose returns the transpose of m.
func (m Mat3) Transpose() Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m[j][i]
		}
	}
	return out
}

// Det returns the determinant of m.
func (m Mat3) Det() float64 {
	return m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
}

// Inverse returns the inverse of m. ok is false when m is singular.
func (m Mat3) Inverse() (inv Mat3, ok bool) {
	det := m.Det()
	if math.Abs(det) < 1e-12 || math.IsNaN(det) {
		return Mat3{}, false
	}
	inv[0][0] = (m[1][1]*m[2][2] - m[1][2]*m[2][1]) / det
	inv[0][1] = (m[0][2]*m[2][1] - m[0][1]*m[2][2]) / det
	inv[0][2] = (m[0][1]*m[1][2] - m[0][2]*m[1][1]) / det
	inv[1][0] = (m[1][2]*m[2][0] - m[1][0]*m[2][2]) / det
	inv[1][1] = (m[0][0]*m[2][2] - m[0][2]*m[2][0]) / det
	inv[1][2] = (m[0][2]*m[1][0] - m[0][0]*m[1][2]) / det
	inv[2][0] = (m[1][0]*m[2][1] - m[1][1]*m[2][0]) / det
	inv[2][1] = (m[0][1]*m[2][0] - m[0][0]*m[2][1]) / det
	inv[2][2] = (m[0][0]*m[1][1] - m[0][1]*m[1][0]) / det
	return inv, true
}

// Rodrigues converts an axis-angle rotation vector into a rotation matrix.
func Rodrigues(rvec r3.Vector) Mat3 {
	theta := rvec.Norm()
	if theta < 1e-12 {
		return Identity()
	}
	k := rvec.Mul(1 / theta)
	c, s := math.Cos(theta), math.Sin(theta)
	v := 1 - c

	return Mat3{
		{c + k.X*k.X*v, k.X*k.Y*v - k.Z*s, k.X*k.Z*v + k.Y*s},
		{k.Y*k.X*v + k.Z*s, c + k.Y*k.Y*v, k.Y*k.Z*v - k.X*s},
		{k.Z*k.X*v - k.Y*s, k.Z*k.Y*v + k.X*s, c + k.Z*k.Z*v},
	}
}

// canonicalRotation rewrites rvec so that its angle lies in [0, pi].
func canonicalRotation(rvec r3.Vector) r3.Vector {
	theta := rvec.Norm()
	if theta <= math.Pi {
		return rvec
	}
	turns := math.Floor(theta / (2 * math.Pi))
	theta -= turns * 2 * math.Pi
	axis := rvec.Mul(1 / rvec.Norm())
	if theta > math.Pi {
		return axis.Mul(theta - 2*math.Pi)
	}
	return axis.Mul(theta)
}

// EulerAngles holds head orientation in degrees.
type EulerAngles struct {
	Pitch float64 // rotation about the camera X axis
	Yaw   float64 // rotation about the camera Y axis
	Roll  float64 // rotation about the camera Z axis
}

// Euler decomposes R into pitch, yaw and roll using the ZYX convention.
func Euler(R Mat3) EulerAngles {
	sy := math.Hypot(R[0][0], R[1][0])
	var x, y, z float64
	if sy > 1e-6 {
		x = math.Atan2(R[2][1], R[2][2])
		y = math.Atan2(-R[2][0], sy)
		z = math.Atan2(R[1][0], R[0][0])
	} else {
		x = math.Atan2(-R[1][2], R[1][1])
		y = math.Atan2(-R[2][0], sy)
		z = 0
	}
	deg := 180 / math.Pi
	return EulerAngles{Pitch: x * deg, Yaw: y * deg, Roll: z * deg}
}
