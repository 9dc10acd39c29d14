package face

import (
	"errors"
	"image"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/ayusman/mukha/internal/eye"
	"github.com/ayusman/mukha/internal/feature"
	"github.com/ayusman/mukha/internal/landmarks"
	"github.com/ayusman/mukha/internal/pose"
)

// Gaze thresholds on the mean horizontal pupil ratio.
const (
	LookingRightRatio = 0.35
	LookingLeftRatio  = 0.65
)

// Face holds every signal derived from one frame. It is built by
// Analyzer.Analyze and never changes afterwards.
type Face struct {
	// ID identifies the frame's analysis in logs.
	ID string

	layout    landmarks.Layout
	landmarks *landmarks.Set

	eyes  [2]*eye.Eye
	brows [2]*feature.Brow
	mouth *feature.Mouth

	pose   pose.Solution
	poseOK bool
	mapper *pose.Mapper

	vectors    [NumFeatures]pose.Vector
	indicators [NumFeatures]pose.Segment
	hasVector  [NumFeatures]bool
}

// HasLandmarks reports whether a landmark set was supplied.
func (f *Face) HasLandmarks() bool {
	return f.landmarks != nil
}

// Detected reports whether the head pose was solved.
func (f *Face) Detected() bool {
	return f.poseOK
}

// Landmarks returns the landmark set the face was built from, or nil.
func (f *Face) Landmarks() *landmarks.Set {
	return f.landmarks
}

// Shape returns all landmark points, or nil when there is no face.
func (f *Face) Shape() []image.Point {
	return f.landmarks.Shape()
}

// Eye returns the eye on side. It is never nil for a valid side.
func (f *Face) Eye(side landmarks.Side) *eye.Eye {
	if !side.Valid() {
		return &eye.Eye{Side: side}
	}
	return f.eyes[side]
}

// Brow returns the brow on side. It is never nil for a valid side.
func (f *Face) Brow(side landmarks.Side) *feature.Brow {
	if !side.Valid() {
		return &feature.Brow{Side: side}
	}
	return f.brows[side]
}

// Mouth returns the mouth analysis. It is never nil.
func (f *Face) Mouth() *feature.Mouth {
	return f.mouth
}

// Pose returns the head pose solution.
func (f *Face) Pose() (pose.Solution, bool) {
	return f.pose, f.poseOK
}

// RotationVector returns the head rotation as an axis-angle vector.
func (f *Face) RotationVector() (r3.Vector, bool) {
	return f.pose.Rotation, f.poseOK
}

// TranslationVector returns the head translation in model units.
func (f *Face) TranslationVector() (r3.Vector, bool) {
	return f.pose.Translation, f.poseOK
}

// Euler returns the head orientation in degrees.
func (f *Face) Euler() (pose.EulerAngles, bool) {
	if !f.poseOK {
		return pose.EulerAngles{}, false
	}
	return f.pose.Euler(), true
}

// Mapper returns the coordinate mapper for this frame's pose.
func (f *Face) Mapper() (*pose.Mapper, bool) {
	return f.mapper, f.mapper != nil
}

// PoseBox returns the projected annotation box polyline.
func (f *Face) PoseBox() ([]image.Point, bool) {
	if f.mapper == nil {
		return nil, false
	}
	return f.mapper.AnnotationBox(), true
}

// referencePoint returns the image point a feature's vector ends at.
func (f *Face) referencePoint(feat Feature) (r2.Point, bool) {
	toVec := func(p image.Point) r2.Point { return r2.Point{X: float64(p.X), Y: float64(p.Y)} }
	switch feat {
	case LeftEye, RightEye:
		p, ok := f.eyes[sideOf(feat)].PupilCoords()
		return toVec(p), ok
	case LeftBrow, RightBrow:
		p, ok := f.brows[sideOf(feat)].Position()
		return toVec(p), ok
	case Mouth:
		return f.mouth.Center()
	default:
		return r2.Point{}, false
	}
}

func sideOf(feat Feature) landmarks.Side {
	if feat == RightEye || feat == RightBrow {
		return landmarks.Right
	}
	return landmarks.Left
}

// Vector returns the 3D vector from the nose tip to a feature.
func (f *Face) Vector(feat Feature) (pose.Vector, bool) {
	if feat < 0 || feat >= NumFeatures || !f.hasVector[feat] {
		return pose.Vector{}, false
	}
	return f.vectors[feat], true
}

// Indicator returns the flat 2D line that visualises a feature's vector.
func (f *Face) Indicator(feat Feature) (pose.Segment, bool) {
	if feat < 0 || feat >= NumFeatures || !f.hasVector[feat] {
		return pose.Segment{}, false
	}
	return f.indicators[feat], true
}

// PupilsLocated reports whether both pupils were located.
func (f *Face) PupilsLocated() bool {
	return f.eyes[landmarks.Left].PupilLocated() && f.eyes[landmarks.Right].PupilLocated()
}

// HorizontalRatio returns the mean horizontal pupil position of both eyes,
// 0.0 at the extreme right and 1.0 at the extreme left.
func (f *Face) HorizontalRatio() (float64, bool) {
	return f.meanRatio((*eye.Eye).HorizontalRatio)
}

// VerticalRatio returns the mean vertical pupil position of both eyes, 0.0
// at the top and 1.0 at the bottom.
func (f *Face) VerticalRatio() (float64, bool) {
	return f.meanRatio((*eye.Eye).VerticalRatio)
}

func (f *Face) meanRatio(ratio func(*eye.Eye) (float64, bool)) (float64, bool) {
	if !f.PupilsLocated() {
		return 0, false
	}
	l, okL := ratio(f.eyes[landmarks.Left])
	r, okR := ratio(f.eyes[landmarks.Right])
	if !okL || !okR {
		return 0, false
	}
	return (l + r) / 2, true
}

// IsLookingRight reports a gaze to the subject's right.
func (f *Face) IsLookingRight() bool {
	h, ok := f.HorizontalRatio()
	return ok && h <= LookingRightRatio
}

// IsLookingLeft reports a gaze to the subject's left.
func (f *Face) IsLookingLeft() bool {
	h, ok := f.HorizontalRatio()
	return ok && h >= LookingLeftRatio
}

// IsLookingCenter reports a located gaze that is neither left nor right.
func (f *Face) IsLookingCenter() bool {
	_, ok := f.HorizontalRatio()
	return ok && !f.IsLookingRight() && !f.IsLookingLeft()
}

// IsBlinking reports closed eyes: the mean blink ratio of both eyes is above
// eye.BlinkThreshold. Both pupils must be located.
func (f *Face) IsBlinking() bool {
	if !f.PupilsLocated() {
		return false
	}
	l, okL := f.eyes[landmarks.Left].BlinkRatio()
	r, okR := f.eyes[landmarks.Right].BlinkRatio()
	return okL && okR && (l+r)/2 > eye.BlinkThreshold
}

// Close releases the eye crops. Signals stay readable.
func (f *Face) Close() error {
	var errs []error
	for _, e := range f.eyes {
		if e == nil {
			continue
		}
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
