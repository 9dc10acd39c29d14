// Package eye isolates eye regions from a frame, locates the pupil inside
// them and calibrates the binarization threshold used to find it.
package eye

import (
	"image"
	"sort"

	"gocv.io/x/gocv"
)

// Image processing parameters applied before thresholding.
const (
	bilateralDiameter  = 10
	bilateralSigma     = 15
	erodeIterations    = 3
	binaryMaxValue     = 255
	structuringElement = 3
)

// Pupil is a pupil centroid relative to its eye region origin.
type Pupil struct {
	X, Y float64
}

// Point returns the centroid truncated to pixel coordinates.
func (p Pupil) Point() image.Point {
	return image.Pt(int(p.X), int(p.Y))
}

// ProcessEye filters, erodes and binarizes a grayscale eye image so that the
// iris becomes a dark blob. The caller owns the returned Mat.
func ProcessEye(eye gocv.Mat, threshold int) gocv.Mat {
	filtered := gocv.NewMat()
	defer filtered.Close()
	gocv.BilateralFilter(eye, &filtered, bilateralDiameter, bilateralSigma, bilateralSigma)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(structuringElement, structuringElement))
	defer kernel.Close()

	eroded := gocv.NewMat()
	defer eroded.Close()
	gocv.Erode(filtered, &eroded, kernel)
	for i := 1; i < erodeIterations; i++ {
		gocv.Erode(eroded, &eroded, kernel)
	}

	binary := gocv.NewMat()
	gocv.Threshold(eroded, &binary, float32(threshold), binaryMaxValue, gocv.ThresholdBinary)
	return binary
}

// DetectPupil returns the centroid of the iris blob in eye. The largest
// contour of a masked eye crop is its white outer border, so the iris is the
// second largest. ok is false when no such contour exists or it has no area.
func DetectPupil(eye gocv.Mat, threshold int) (Pupil, bool) {
	if eye.Empty() {
		return Pupil{}, false
	}

	binary := ProcessEye(eye, threshold)
	defer binary.Close()

	contours := gocv.FindContours(binary, gocv.RetrievalTree, gocv.ChainApproxNone)
	defer contours.Close()
	if contours.Size() < 2 {
		return Pupil{}, false
	}

	type candidate struct {
		points []image.Point
		area   float64
	}
	candidates := make([]candidate, contours.Size())
	for i := range candidates {
		c := contours.At(i)
		candidates[i] = candidate{points: c.ToPoints(), area: gocv.ContourArea(c)}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].area > candidates[j].area
	})

	cx, cy, ok := centroid(candidates[1].points)
	if !ok {
		return Pupil{}, false
	}
	return Pupil{X: cx, Y: cy}, true
}

// centroid returns the area centroid of a closed polygon from its first
// order moments. ok is false for polygons with zero area.
func centroid(points []image.Point) (x, y float64, ok bool) {
	if len(points) < 3 {
		return 0, 0, false
	}
	var a, cx, cy float64
	for i := range points {
		p, q := points[i], points[(i+1)%len(points)]
		cross := float64(p.X*q.Y - q.X*p.Y)
		a += cross
		cx += float64(p.X+q.X) * cross
		cy += float64(p.Y+q.Y) * cross
	}
	if a == 0 {
		return 0, 0, false
	}
	return cx / (3 * a), cy / (3 * a), true
}
