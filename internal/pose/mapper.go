package pose

import (
	"errors"
	"image"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

var (
	// ErrDegenerateCamera is returned when the intrinsic matrix cannot be inverted.
	ErrDegenerateCamera = errors.New("pose: camera matrix is singular")
	// ErrDegenerateDepth is returned when the reference plane is parallel to the viewing ray.
	ErrDegenerateDepth = errors.New("pose: reference depth is undefined")
)

// Vector is a 3D segment from the nose tip to a feature point.
type Vector struct {
	Start    r3.Vector
	End      r3.Vector
	Distance float64
}

// Mapper converts between image points and 3D points for one frame's pose.
//
// To3D places image points on a plane whose depth comes from the camera's
// initial extrinsic guess rather than from a measurement. The resulting 3D
// positions are a scaled copy of the image geometry: distances between them
// are proportional to pixel distances, not to metric depth.
type Mapper struct {
	camera   CameraSpecs
	pose     Solution
	rotation Mat3
	rotInv   Mat3
	camInv   Mat3
	scale    float64
	noseTip  r3.Vector
}

// NewMapper precomputes the inverse rotation and camera matrices for sol and
// anchors feature vectors at noseTip, given in image coordinates.
func NewMapper(camera CameraSpecs, sol Solution, noseTip r2.Point) (*Mapper, error) {
	camInv, ok := camera.Matrix().Inverse()
	if !ok {
		return nil, ErrDegenerateCamera
	}

	// Scale constant: depth of the model origin plane seen through the
	// principal point, under the initial guess.
	guessInv := Rodrigues(camera.InitialRotation).Transpose()
	ref := guessInv.MulVec(camInv.MulVec(r3.Vector{X: camera.Center.X, Y: camera.Center.Y, Z: 1}))
	if math.Abs(ref.Z) < 1e-12 {
		return nil, ErrDegenerateDepth
	}
	right := guessInv.MulVec(camera.InitialTranslation)

	rotation := sol.RotationMatrix()
	m := &Mapper{
		camera:   camera,
		pose:     sol,
		rotation: rotation,
		rotInv:   rotation.Transpose(),
		camInv:   camInv,
		scale:    right.Z / ref.Z,
	}
	m.noseTip = m.To3D(noseTip)
	return m, nil
}

// Scale returns the depth scale constant applied to un-projected rays.
func (m *Mapper) Scale() float64 {
	return m.scale
}

// To3D un-projects an image point into model space at the reference depth.
func (m *Mapper) To3D(p r2.Point) r3.Vector {
	ray := m.camInv.MulVec(r3.Vector{X: p.X, Y: p.Y, Z: 1}).Mul(m.scale)
	return m.rotInv.MulVec(ray.Sub(m.pose.Translation))
}

// To2D projects model-space points into the image with the frame's pose.
// Points that cannot be projected come back as NaN.
func (m *Mapper) To2D(points ...r3.Vector) []r2.Point {
	out := make([]r2.Point, len(points))
	for i, p := range points {
		out[i] = m.project(p)
	}
	return out
}

// project applies the pinhole model. The reference plane may sit behind the
// camera, so unlike CameraSpecs.Project it accepts any non-zero depth.
func (m *Mapper) project(p r3.Vector) r2.Point {
	c := m.rotation.MulVec(p).Add(m.pose.Translation)
	if math.Abs(c.Z) < 1e-12 {
		return r2.Point{X: math.NaN(), Y: math.NaN()}
	}
	return r2.Point{
		X: m.camera.Focal*c.X/c.Z + m.camera.Center.X,
		Y: m.camera.Focal*c.Y/c.Z + m.camera.Center.Y,
	}
}

// To2DPixels projects points and truncates them to pixel coordinates.
func (m *Mapper) To2DPixels(points ...r3.Vector) []image.Point {
	out := make([]image.Point, len(points))
	for i, p := range m.To2D(points...) {
		out[i] = image.Pt(int(p.X), int(p.Y))
	}
	return out
}

// FindVector returns the 3D segment from the nose tip to p and its length.
func (m *Mapper) FindVector(p r2.Point) Vector {
	end := m.To3D(p)
	return Vector{
		Start:    m.noseTip,
		End:      end,
		Distance: m.noseTip.Distance(end),
	}
}

// AnnotationBox returns the 2D polyline of a box anchored on the model
// origin: a closed rear square (points 0-4) then a closed front square
// (points 5-9). Edges 1-6, 2-7 and 3-8 join the two squares.
func (m *Mapper) AnnotationBox() []image.Point {
	const (
		rearSize   = 75
		rearDepth  = 0
		frontSize  = 100
		frontDepth = 100
	)
	box := []r3.Vector{
		{X: -rearSize, Y: -rearSize, Z: rearDepth},
		{X: -rearSize, Y: rearSize, Z: rearDepth},
		{X: rearSize, Y: rearSize, Z: rearDepth},
		{X: rearSize, Y: -rearSize, Z: rearDepth},
		{X: -rearSize, Y: -rearSize, Z: rearDepth},
		{X: -frontSize, Y: -frontSize, Z: frontDepth},
		{X: -frontSize, Y: frontSize, Z: frontDepth},
		{X: frontSize, Y: frontSize, Z: frontDepth},
		{X: frontSize, Y: -frontSize, Z: frontDepth},
		{X: -frontSize, Y: -frontSize, Z: frontDepth},
	}
	return m.To2DPixels(box...)
}
