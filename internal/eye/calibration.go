package eye

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/ayusman/mukha/internal/landmarks"
	"github.com/ayusman/mukha/internal/log"
)

// Calibration defaults.
const (
	// CalibrationFrames is the number of trials recorded per eye before its
	// threshold is frozen.
	CalibrationFrames = 20
	// TargetIrisRatio is the fraction of an eye crop the iris usually covers.
	TargetIrisRatio = 0.48
	// DefaultThreshold is returned for an eye with no trials yet.
	DefaultThreshold = 50

	minThreshold  = 5
	maxThreshold  = 95
	thresholdStep = 5
	irisMargin    = 5
)

type trial struct {
	threshold int
	deviation float64
}

// Calibration finds, per eye, the binarization threshold whose iris ratio is
// closest to TargetIrisRatio across a window of frames. It is owned by a
// single analysis loop and is not safe for concurrent use.
type Calibration struct {
	trials [2][]trial
	best   [2]int
}

// NewCalibration creates an empty Calibration.
func NewCalibration() *Calibration {
	return &Calibration{best: [2]int{-1, -1}}
}

// IsComplete reports whether both eyes have been calibrated.
func (c *Calibration) IsComplete() bool {
	return c.sideComplete(landmarks.Left) && c.sideComplete(landmarks.Right)
}

func (c *Calibration) sideComplete(side landmarks.Side) bool {
	return len(c.trials[side]) >= CalibrationFrames
}

// Trials returns the number of trials recorded for side.
func (c *Calibration) Trials(side landmarks.Side) int {
	if !side.Valid() {
		return 0
	}
	return len(c.trials[side])
}

// Threshold returns the best threshold found so far for side, or
// DefaultThreshold before any trial.
func (c *Calibration) Threshold(side landmarks.Side) int {
	if !side.Valid() || c.best[side] < 0 {
		return DefaultThreshold
	}
	return c.trials[side][c.best[side]].threshold
}

// Evaluate records one trial for side from an isolated eye frame. It is a
// no-op once that side is complete.
func (c *Calibration) Evaluate(eye gocv.Mat, side landmarks.Side) {
	if !side.Valid() || c.sideComplete(side) || eye.Empty() {
		return
	}

	threshold, ratio, ok := FindBestThreshold(eye)
	if !ok {
		return
	}
	t := trial{threshold: threshold, deviation: math.Abs(ratio - TargetIrisRatio)}
	c.trials[side] = append(c.trials[side], t)

	// Earliest trial wins ties.
	if c.best[side] < 0 || t.deviation < c.trials[side][c.best[side]].deviation {
		c.best[side] = len(c.trials[side]) - 1
	}

	if c.sideComplete(side) {
		log.Debug(log.Fields{
			"side":      side.String(),
			"threshold": c.Threshold(side),
		}, "eye calibration complete")
	}
}

// IrisSize returns the fraction of dark pixels in a binarized eye frame,
// ignoring a margin on each side. ok is false when the trimmed frame is empty.
func IrisSize(binary gocv.Mat) (float64, bool) {
	rows, cols := binary.Rows()-2*irisMargin, binary.Cols()-2*irisMargin
	if rows <= 0 || cols <= 0 {
		return 0, false
	}
	inner := binary.Region(image.Rect(irisMargin, irisMargin, irisMargin+cols, irisMargin+rows))
	defer inner.Close()

	total := rows * cols
	dark := total - gocv.CountNonZero(inner)
	return float64(dark) / float64(total), true
}

// FindBestThreshold scans the candidate thresholds on one eye frame and
// returns the one whose iris ratio is closest to TargetIrisRatio, together
// with that ratio. The lowest threshold wins ties. ok is false when the frame
// is too small to measure.
func FindBestThreshold(eye gocv.Mat) (threshold int, ratio float64, ok bool) {
	threshold = DefaultThreshold
	bestDeviation := math.Inf(1)
	for t := minThreshold; t <= maxThreshold; t += thresholdStep {
		binary := ProcessEye(eye, t)
		r, measured := IrisSize(binary)
		binary.Close()
		if !measured {
			continue
		}
		if d := math.Abs(r - TargetIrisRatio); d < bestDeviation {
			threshold, ratio, bestDeviation, ok = t, r, d, true
		}
	}
	return threshold, ratio, ok
}
