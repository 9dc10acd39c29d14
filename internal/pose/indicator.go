package pose

import (
	"image"
	"math"
)

// DefaultIndicatorScale converts a 3D feature distance into indicator pixels.
const DefaultIndicatorScale = 0.3

// Indicator draws a feature's 3D distance as a flat 2D line. The direction is
// a fixed per-feature convention; no projection onto a common plane is done,
// so only the length carries information.
type Indicator struct {
	Origin image.Point
	Scale  float64
	// Sloped selects a direction with the given slope (dy/dx). When false the
	// line points straight down.
	Sloped bool
	Slope  float64
	// XSign is +1 or -1 and picks which way a sloped line runs horizontally.
	XSign float64
}

// Segment is a 2D line in image coordinates.
type Segment struct {
	Start image.Point
	End   image.Point
}

// Project returns the indicator line for distance.
func (in Indicator) Project(distance float64) Segment {
	scale := in.Scale
	if scale == 0 {
		scale = DefaultIndicatorScale
	}
	hypot := scale * distance

	start := in.Origin
	x0, y0 := float64(start.X), float64(start.Y)
	var x1, y1 float64
	if !in.Sloped {
		x1, y1 = x0, y0+hypot
	} else {
		sign := in.XSign
		if sign == 0 {
			sign = 1
		}
		dx := math.Sqrt(hypot*hypot/(1+in.Slope*in.Slope)) * sign
		x1, y1 = x0+dx, y0+dx*in.Slope
	}

	return Segment{Start: start, End: image.Pt(int(x1), int(y1))}
}
