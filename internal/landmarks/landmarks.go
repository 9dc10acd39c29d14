// Package landmarks provides the 68-point facial landmark model and the index
// layout used by the feature analyzers.
package landmarks

import (
	"image"
	"math"

	"github.com/golang/geo/r2"
)

// Facial landmark indices following the 68-point Multi-PIE convention used by dlib.
const (
	JawStart         = 0
	Chin             = 8
	JawEnd           = 16
	LeftBrowStart    = 17
	RightBrowStart   = 22
	NoseBridge       = 27
	NoseTip          = 33
	LeftEyeOuter     = 36
	LeftEyeInner     = 39
	RightEyeInner    = 42
	RightEyeOuter    = 45
	MouthLeft        = 48
	MouthRight       = 54
	InnerMouthLeft   = 60
	InnerMouthRight  = 64
	NumLandmarks     = 68
	EyeContourPoints = 6
	BrowPoints       = 5
	LipLinePoints    = 5
	PosePoints       = 6
)

// Side selects the left (0) or right (1) instance of a paired feature.
type Side int

const (
	Left  Side = 0
	Right Side = 1
)

// String returns "left" or "right".
func (s Side) String() string {
	switch s {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

// Valid reports whether s is Left or Right.
func (s Side) Valid() bool {
	return s == Left || s == Right
}

// Set holds the 68 landmark points of one detected face in frame pixel coordinates.
// A Set is never mutated once it has been handed to an analyzer.
type Set struct {
	Points [NumLandmarks]image.Point `json:"points"`
}

// NewSet builds a Set from a slice of points. It returns nil when the slice does
// not contain exactly NumLandmarks points.
func NewSet(points []image.Point) *Set {
	if len(points) != NumLandmarks {
		return nil
	}
	s := &Set{}
	copy(s.Points[:], points)
	return s
}

// At returns the point at index i.
func (s *Set) At(i int) image.Point {
	return s.Points[i]
}

// Vec returns the point at index i as a float vector.
func (s *Set) Vec(i int) r2.Point {
	p := s.Points[i]
	return r2.Point{X: float64(p.X), Y: float64(p.Y)}
}

// Select returns the points at the given indices, in order.
func (s *Set) Select(indices []int) []image.Point {
	out := make([]image.Point, len(indices))
	for i, idx := range indices {
		out[i] = s.Points[idx]
	}
	return out
}

// Shape returns a copy of all points, for dot overlays.
func (s *Set) Shape() []image.Point {
	if s == nil {
		return nil
	}
	out := make([]image.Point, NumLandmarks)
	copy(out, s.Points[:])
	return out
}

// Distance returns the Euclidean distance between two float points.
func Distance(a, b r2.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b r2.Point) r2.Point {
	return r2.Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

// Round converts a float point to the nearest pixel.
func Round(p r2.Point) image.Point {
	return image.Point{X: int(math.Round(p.X)), Y: int(math.Round(p.Y))}
}

// Layout maps facial features to landmark indices. It is immutable
// configuration passed to analyzers at construction.
type Layout struct {
	LeftEye       [EyeContourPoints]int
	RightEye      [EyeContourPoints]int
	LeftBrow      [BrowPoints]int
	RightBrow     [BrowPoints]int
	LeftBrowRef   int // top-eyelid point the left brow is measured against
	RightBrowRef  int
	UpperInnerLip [LipLinePoints]int
	LowerInnerLip [LipLinePoints]int
	NoseTip       int
	// Pose holds nose tip, chin, left eye outer corner, right eye outer corner,
	// left mouth corner and right mouth corner, in that order.
	Pose [PosePoints]int
}

// DefaultLayout returns the dlib 68-point layout.
func DefaultLayout() Layout {
	return Layout{
		LeftEye:       [EyeContourPoints]int{36, 37, 38, 39, 40, 41},
		RightEye:      [EyeContourPoints]int{42, 43, 44, 45, 46, 47},
		LeftBrow:      [BrowPoints]int{17, 18, 19, 20, 21},
		RightBrow:     [BrowPoints]int{22, 23, 24, 25, 26},
		LeftBrowRef:   37,
		RightBrowRef:  44,
		UpperInnerLip: [LipLinePoints]int{60, 61, 62, 63, 64},
		LowerInnerLip: [LipLinePoints]int{60, 67, 66, 65, 64},
		NoseTip:       NoseTip,
		Pose:          [PosePoints]int{NoseTip, Chin, LeftEyeOuter, RightEyeOuter, MouthLeft, MouthRight},
	}
}

// Eye returns the six eye-contour indices for side: outer corner, two upper
// lid points, inner corner, two lower lid points.
func (l Layout) Eye(side Side) []int {
	if side == Right {
		return l.RightEye[:]
	}
	return l.LeftEye[:]
}

// Brow returns the five brow indices and the reference index for side.
func (l Layout) Brow(side Side) ([]int, int) {
	if side == Right {
		return l.RightBrow[:], l.RightBrowRef
	}
	return l.LeftBrow[:], l.LeftBrowRef
}
