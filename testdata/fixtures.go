// Package testdata draws synthetic frames that match landmark fixtures, so
// that tests do not depend on recorded footage.
package testdata

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/mukha/internal/landmarks"
)

// Frame geometry of the synthetic camera.
const (
	Width  = 640
	Height = 480

	Background = 120
	IrisRadius = 5
)

func gray(v uint8) color.RGBA {
	return color.RGBA{R: v, G: v, B: v, A: 0}
}

// IrisCenter returns where FaceFrame draws the iris for side: halfway between
// the eye corners.
func IrisCenter(lm *landmarks.Set, side landmarks.Side) image.Point {
	eye := landmarks.DefaultLayout().Eye(side)
	a, b := lm.At(eye[0]), lm.At(eye[3])
	return image.Pt((a.X+b.X)/2, (a.Y+b.Y)/2)
}

// FaceFrame draws a grayscale frame for lm: a mid-gray background, white eye
// polygons and a black iris disc in each eye. A nil set gives a blank frame.
// The caller owns the returned Mat.
func FaceFrame(lm *landmarks.Set) gocv.Mat {
	frame := gocv.NewMatWithSize(Height, Width, gocv.MatTypeCV8U)
	frame.SetTo(gocv.NewScalar(Background, Background, Background, 0))
	if lm == nil {
		return frame
	}

	layout := landmarks.DefaultLayout()
	for _, side := range []landmarks.Side{landmarks.Left, landmarks.Right} {
		pv := gocv.NewPointsVectorFromPoints([][]image.Point{lm.Select(layout.Eye(side))})
		gocv.FillPoly(&frame, pv, gray(255))
		pv.Close()
		gocv.Circle(&frame, IrisCenter(lm, side), IrisRadius, gray(0), -1)
	}
	return frame
}

// FaceFrameBGR is FaceFrame converted to three channels, as a camera would
// deliver it. The caller owns the returned Mat.
func FaceFrameBGR(lm *landmarks.Set) gocv.Mat {
	g := FaceFrame(lm)
	defer g.Close()

	bgr := gocv.NewMat()
	gocv.CvtColor(g, &bgr, gocv.ColorGrayToBGR)
	return bgr
}

// FaceSequence returns n BGR frames of the frontal face drifting right by
// step pixels per frame. The caller closes every frame.
func FaceSequence(n, step int) ([]*gocv.Mat, []*landmarks.Set) {
	frames := make([]*gocv.Mat, n)
	sets := make([]*landmarks.Set, n)
	base := landmarks.FrontalFace()
	for i := 0; i < n; i++ {
		sets[i] = base.Translate(image.Pt(i*step, 0))
		frame := FaceFrameBGR(sets[i])
		frames[i] = &frame
	}
	return frames, sets
}

// EyeCrop draws a white width x height eye crop with a black iris disc at
// center, the shape Isolate produces for an open eye.
func EyeCrop(width, height int, center image.Point, radius int) gocv.Mat {
	crop := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), height, width, gocv.MatTypeCV8U)
	if radius > 0 {
		gocv.Circle(&crop, center, radius, gray(0), -1)
	}
	return crop
}
