// Package pose estimates head pose from facial landmarks and maps points
// between image space and 3D camera space.
package pose

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

// Initial pose guess commonly used with the generic face model. The
// translation places the model about two metres from the camera.
var (
	InitialRotation    = r3.Vector{X: 0.01891013, Y: 0.08560084, Z: -3.14392813}
	InitialTranslation = r3.Vector{X: -14.97821226, Y: -10.62040383, Z: -2053.03596872}
)

// CameraSpecs holds pinhole intrinsics and the initial extrinsic guess for
// one capture session. Lens distortion is assumed to be zero.
type CameraSpecs struct {
	Width, Height int
	Focal         float64
	Center        r2.Point

	InitialRotation    r3.Vector
	InitialTranslation r3.Vector
}

// NewCameraSpecs derives intrinsics from the frame size: focal length equals
// the frame width and the principal point is the frame centre.
func NewCameraSpecs(width, height int) CameraSpecs {
	return CameraSpecs{
		Width:              width,
		Height:             height,
		Focal:              float64(width),
		Center:             r2.Point{X: float64(width) / 2, Y: float64(height) / 2},
		InitialRotation:    InitialRotation,
		InitialTranslation: InitialTranslation,
	}
}

// Matrix returns the camera intrinsic matrix K.
func (c CameraSpecs) Matrix() Mat3 {
	return Mat3{
		{c.Focal, 0, c.Center.X},
		{0, c.Focal, c.Center.Y},
		{0, 0, 1},
	}
}

// Project maps a camera-space point to pixel coordinates. ok is false for
// points on or behind the camera plane.
func (c CameraSpecs) Project(p r3.Vector) (r2.Point, bool) {
	if p.Z <= 0 {
		return r2.Point{}, false
	}
	return r2.Point{
		X: c.Focal*p.X/p.Z + c.Center.X,
		Y: c.Focal*p.Y/p.Z + c.Center.Y,
	}, true
}

// Model is a set of 3D reference points, in millimetres, that correspond to
// the pose landmarks in landmarks.Layout.Pose order.
type Model [6]r3.Vector

// GenericModel returns an anthropometric face with the nose tip at the origin,
// Y pointing up and Z pointing out of the face.
func GenericModel() Model {
	return Model{
		{X: 0, Y: 0, Z: 0},          // nose tip
		{X: 0, Y: -330, Z: -65},     // chin
		{X: -225, Y: 170, Z: -135},  // left eye left corner
		{X: 225, Y: 170, Z: -135},   // right eye right corner
		{X: -150, Y: -150, Z: -125}, // left mouth corner
		{X: 150, Y: -150, Z: -125},  // right mouth corner
	}
}
