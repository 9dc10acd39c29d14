package face

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/mukha/internal/landmarks"
)

var (
	colorGreen = color.RGBA{G: 255}
	colorBlue  = color.RGBA{B: 255}
	colorRed   = color.RGBA{R: 255}
)

const (
	browMarkHalf = 10
	eyeMarkHalf  = 5
	shapeDot     = 2
	lineWidth    = 2
)

// Annotate draws the face's signals onto img: the pose box, the landmark
// dots, a horizontal mark on each brow, a cross on each pupil, the mouth gap
// rectangle and the feature indicators. It draws nothing when no landmarks
// were supplied.
func (f *Face) Annotate(img *gocv.Mat) {
	if img == nil || img.Empty() || !f.HasLandmarks() {
		return
	}

	if box, ok := f.PoseBox(); ok {
		pv := gocv.NewPointsVectorFromPoints([][]image.Point{box})
		gocv.Polylines(img, pv, true, colorGreen, lineWidth)
		pv.Close()
		for _, e := range [][2]int{{1, 6}, {2, 7}, {3, 8}} {
			gocv.Line(img, box[e[0]], box[e[1]], colorGreen, lineWidth)
		}
	}

	for _, p := range f.Shape() {
		gocv.Circle(img, p, shapeDot, colorGreen, -1)
	}

	for _, side := range []landmarks.Side{landmarks.Left, landmarks.Right} {
		if p, ok := f.brows[side].Position(); ok {
			gocv.Line(img, image.Pt(p.X-browMarkHalf, p.Y), image.Pt(p.X+browMarkHalf, p.Y), colorBlue, 1)
		}
		if p, ok := f.eyes[side].PupilCoords(); ok {
			gocv.Line(img, image.Pt(p.X-eyeMarkHalf, p.Y), image.Pt(p.X+eyeMarkHalf, p.Y), colorGreen, 1)
			gocv.Line(img, image.Pt(p.X, p.Y-eyeMarkHalf), image.Pt(p.X, p.Y+eyeMarkHalf), colorGreen, 1)
		}
	}

	if r, ok := f.mouth.Rect(); ok {
		gocv.Rectangle(img, r, colorRed, 1)
	}

	for feat := Feature(0); feat < NumFeatures; feat++ {
		if seg, ok := f.Indicator(feat); ok {
			gocv.Line(img, seg.Start, seg.End, colorGreen, lineWidth)
		}
	}
}
