package eye

import (
	"image"
	"image/color"

	"github.com/golang/geo/r2"
	"gocv.io/x/gocv"

	"github.com/ayusman/mukha/internal/landmarks"
)

// Eye analysis constants.
const (
	// RegionMargin is added around the eye polygon's bounding box.
	RegionMargin = 5
	// BlinkThreshold is the width/height ratio above which an eye is closed.
	BlinkThreshold = 3.8
	// gazeMargin is subtracted from the crop size when normalising the pupil.
	gazeMargin = 10
)

// Region is an eye cropped from a grayscale frame. Pixels outside the eye
// polygon are white.
type Region struct {
	Frame  gocv.Mat
	Origin image.Point
}

// Size returns the crop width and height.
func (r *Region) Size() (int, int) {
	return r.Frame.Cols(), r.Frame.Rows()
}

// Close releases the crop.
func (r *Region) Close() error {
	return r.Frame.Close()
}

// Isolate crops the polygon through points out of a grayscale frame. The crop
// is the polygon's bounding box grown by RegionMargin and clamped to the
// frame. ok is false when the clamped box is empty.
func Isolate(gray gocv.Mat, points []image.Point) (*Region, bool) {
	if gray.Empty() || len(points) < 3 {
		return nil, false
	}

	bounds := image.Rectangle{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		bounds.Min.X = min(bounds.Min.X, p.X)
		bounds.Min.Y = min(bounds.Min.Y, p.Y)
		bounds.Max.X = max(bounds.Max.X, p.X)
		bounds.Max.Y = max(bounds.Max.Y, p.Y)
	}
	rect := bounds.Inset(-RegionMargin).Intersect(image.Rect(0, 0, gray.Cols(), gray.Rows()))
	if rect.Empty() {
		return nil, false
	}

	local := make([]image.Point, len(points))
	for i, p := range points {
		local[i] = p.Sub(rect.Min)
	}
	pv := gocv.NewPointsVectorFromPoints([][]image.Point{local})
	defer pv.Close()

	mask := gocv.NewMatWithSize(rect.Dy(), rect.Dx(), gocv.MatTypeCV8U)
	defer mask.Close()
	gocv.FillPoly(&mask, pv, color.RGBA{R: 255, G: 255, B: 255})

	roi := gray.Region(rect)
	defer roi.Close()

	crop := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), rect.Dy(), rect.Dx(), gocv.MatTypeCV8U)
	roi.CopyToWithMask(&crop, mask)

	return &Region{Frame: crop, Origin: rect.Min}, true
}

// BlinkRatio returns eye width over eye height for a six-point eye contour:
// outer corner, two upper lid points, inner corner, two lower lid points.
// ok is false when the height is zero.
func BlinkRatio(points []image.Point) (float64, bool) {
	if len(points) != landmarks.EyeContourPoints {
		return 0, false
	}
	vec := func(i int) r2.Point { return r2.Point{X: float64(points[i].X), Y: float64(points[i].Y)} }

	width := landmarks.Distance(vec(0), vec(3))
	top := landmarks.Midpoint(vec(1), vec(2))
	bottom := landmarks.Midpoint(vec(5), vec(4))
	height := landmarks.Distance(top, bottom)
	if height == 0 {
		return 0, false
	}
	return width / height, true
}

// Eye is the analysis of one eye in one frame. The zero value describes an
// eye that was not found.
type Eye struct {
	Side landmarks.Side

	region    *Region
	origin    image.Point
	size      image.Point
	isolated  bool
	contour   []image.Point
	pupil     Pupil
	located   bool
	blink     float64
	hasBlink  bool
	threshold int
}

// Analyze isolates the eye on side, updates cal with it while calibration is
// running and locates the pupil with the calibrated threshold. A nil set
// yields an eye with nothing located.
func Analyze(gray gocv.Mat, lm *landmarks.Set, layout landmarks.Layout, side landmarks.Side, cal *Calibration) *Eye {
	e := &Eye{Side: side}
	if lm == nil || !side.Valid() {
		return e
	}

	e.contour = lm.Select(layout.Eye(side))
	e.blink, e.hasBlink = BlinkRatio(e.contour)

	region, ok := Isolate(gray, e.contour)
	if !ok {
		return e
	}
	e.region = region
	e.origin, e.isolated = region.Origin, true
	e.size.X, e.size.Y = region.Size()

	if cal != nil && !cal.IsComplete() {
		cal.Evaluate(region.Frame, side)
	}
	e.threshold = DefaultThreshold
	if cal != nil {
		e.threshold = cal.Threshold(side)
	}

	e.pupil, e.located = DetectPupil(region.Frame, e.threshold)
	return e
}

// PupilLocated reports whether a pupil was found this frame.
func (e *Eye) PupilLocated() bool {
	return e.located
}

// Pupil returns the pupil relative to the region origin.
func (e *Eye) Pupil() (Pupil, bool) {
	return e.pupil, e.located
}

// PupilCoords returns the pupil in frame coordinates.
func (e *Eye) PupilCoords() (image.Point, bool) {
	if !e.located {
		return image.Point{}, false
	}
	return e.origin.Add(e.pupil.Point()), true
}

// Origin returns the top-left corner of the eye crop in frame coordinates.
func (e *Eye) Origin() (image.Point, bool) {
	return e.origin, e.isolated
}

// Region returns the isolated eye crop, or nil once closed or when nothing
// was isolated. The Eye keeps ownership.
func (e *Eye) Region() *Region {
	return e.region
}

// Contour returns the six eye landmarks, or nil when no face was given.
func (e *Eye) Contour() []image.Point {
	return e.contour
}

// Threshold returns the binarization threshold used this frame.
func (e *Eye) Threshold() int {
	return e.threshold
}

// BlinkRatio returns eye width over height.
func (e *Eye) BlinkRatio() (float64, bool) {
	return e.blink, e.hasBlink
}

// IsBlinking reports whether the eye is closed. It is only true when a pupil
// was located this frame.
func (e *Eye) IsBlinking() bool {
	return e.located && e.hasBlink && e.blink > BlinkThreshold
}

// HorizontalRatio returns the pupil's horizontal position in the crop, about
// 0.0 at the right extreme of the eye and 1.0 at the left.
func (e *Eye) HorizontalRatio() (float64, bool) {
	if !e.located {
		return 0, false
	}
	return gazeRatio(e.pupil.X, e.size.X)
}

// VerticalRatio returns the pupil's vertical position in the crop, about 0.0
// at the top and 1.0 at the bottom.
func (e *Eye) VerticalRatio() (float64, bool) {
	if !e.located {
		return 0, false
	}
	return gazeRatio(e.pupil.Y, e.size.Y)
}

func gazeRatio(pos float64, size int) (float64, bool) {
	span := size - gazeMargin
	if span <= 0 {
		return 0, false
	}
	return pos / float64(span), true
}

// Close releases the eye crop. Computed signals stay readable.
func (e *Eye) Close() error {
	if e.region == nil {
		return nil
	}
	err := e.region.Close()
	e.region = nil
	return err
}
