// Package face combines the per-feature analyzers into one per-frame result.
package face

import (
	"image"

	"github.com/golang/geo/r2"
	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/ayusman/mukha/internal/eye"
	"github.com/ayusman/mukha/internal/feature"
	"github.com/ayusman/mukha/internal/landmarks"
	"github.com/ayusman/mukha/internal/log"
	"github.com/ayusman/mukha/internal/pose"
)

// Feature names a facial feature that carries an indicator vector.
type Feature int

const (
	LeftEye Feature = iota
	RightEye
	LeftBrow
	RightBrow
	Mouth
	NumFeatures
)

func (f Feature) String() string {
	switch f {
	case LeftEye:
		return "left eye"
	case RightEye:
		return "right eye"
	case LeftBrow:
		return "left brow"
	case RightBrow:
		return "right brow"
	case Mouth:
		return "mouth"
	default:
		return "unknown"
	}
}

// DisplayOrigin is where indicator lines start by default.
var DisplayOrigin = image.Pt(100, 300)

// Config holds the fixed data an Analyzer works with.
type Config struct {
	Layout landmarks.Layout
	Model  pose.Model
	// MaxReprojectionError bounds the pose fit in pixels. Zero uses the
	// solver default.
	MaxReprojectionError float64
	// Indicators holds the drawing convention for each feature's vector.
	Indicators [NumFeatures]pose.Indicator
}

// DefaultConfig returns the dlib layout, the generic face model and one
// indicator direction per feature, all starting at DisplayOrigin.
func DefaultConfig() Config {
	ind := func(sloped bool, slope, sign float64) pose.Indicator {
		return pose.Indicator{
			Origin: DisplayOrigin,
			Scale:  pose.DefaultIndicatorScale,
			Sloped: sloped,
			Slope:  slope,
			XSign:  sign,
		}
	}
	return Config{
		Layout: landmarks.DefaultLayout(),
		Model:  pose.GenericModel(),
		Indicators: [NumFeatures]pose.Indicator{
			LeftEye:   ind(true, 1, -1),
			RightEye:  ind(true, -1, 1),
			LeftBrow:  ind(true, 3, -1),
			RightBrow: ind(true, -3, 1),
			Mouth:     ind(false, 0, 0),
		},
	}
}

// Analyzer turns frames and landmarks into Face results for one camera. It
// owns the pupil calibration, which carries over between frames. An
// Analyzer is not safe for concurrent use.
type Analyzer struct {
	config      Config
	camera      pose.CameraSpecs
	solver      *pose.Solver
	calibration *eye.Calibration
}

// NewAnalyzer creates an Analyzer for frames of the given size.
func NewAnalyzer(width, height int, config Config) *Analyzer {
	camera := pose.NewCameraSpecs(width, height)
	solver := pose.NewSolver(camera, config.Model)
	solver.SetMaxReprojectionError(config.MaxReprojectionError)

	return &Analyzer{
		config:      config,
		camera:      camera,
		solver:      solver,
		calibration: eye.NewCalibration(),
	}
}

// Camera returns the camera model used for pose solving.
func (a *Analyzer) Camera() pose.CameraSpecs {
	return a.camera
}

// Calibration returns the shared pupil calibration.
func (a *Analyzer) Calibration() *eye.Calibration {
	return a.calibration
}

// ResetCalibration discards the pupil calibration, e.g. after the lighting
// or the subject changes.
func (a *Analyzer) ResetCalibration() {
	a.calibration = eye.NewCalibration()
}

// Analyze builds the Face for one frame. frame may be BGR or grayscale; a nil
// set means no face was found and yields a Face with every signal absent.
// The caller must Close the returned Face.
func (a *Analyzer) Analyze(frame gocv.Mat, lm *landmarks.Set) *Face {
	f := &Face{
		ID:        uuid.New().String(),
		layout:    a.config.Layout,
		landmarks: lm,
	}
	layout := a.config.Layout

	f.brows[landmarks.Left] = feature.AnalyzeBrow(lm, layout, landmarks.Left)
	f.brows[landmarks.Right] = feature.AnalyzeBrow(lm, layout, landmarks.Right)
	f.mouth = feature.AnalyzeMouth(lm, layout)

	f.eyes[landmarks.Left] = &eye.Eye{Side: landmarks.Left}
	f.eyes[landmarks.Right] = &eye.Eye{Side: landmarks.Right}
	if lm == nil {
		return f
	}

	if !frame.Empty() {
		gray := grayscale(frame)
		f.eyes[landmarks.Left] = eye.Analyze(gray, lm, layout, landmarks.Left, a.calibration)
		f.eyes[landmarks.Right] = eye.Analyze(gray, lm, layout, landmarks.Right, a.calibration)
		gray.Close()
	}

	a.solvePose(f, lm)
	return f
}

func grayscale(frame gocv.Mat) gocv.Mat {
	if frame.Channels() == 1 {
		return frame.Clone()
	}
	gray := gocv.NewMat()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	return gray
}

func (a *Analyzer) solvePose(f *Face, lm *landmarks.Set) {
	layout := a.config.Layout

	var observed [landmarks.PosePoints]r2.Point
	for i, idx := range layout.Pose {
		observed[i] = lm.Vec(idx)
	}

	sol, ok := a.solver.Solve(observed)
	if !ok {
		log.Debug(log.Fields{"face": f.ID, "rms": sol.RMSError}, "head pose not solved")
		return
	}
	f.pose, f.poseOK = sol, true

	mapper, err := pose.NewMapper(a.camera, sol, lm.Vec(layout.NoseTip))
	if err != nil {
		log.Debug(log.Fields{"face": f.ID, "err": err}, "coordinate mapper unavailable")
		return
	}
	f.mapper = mapper

	for feat := Feature(0); feat < NumFeatures; feat++ {
		p, ok := f.referencePoint(feat)
		if !ok {
			continue
		}
		v := mapper.FindVector(p)
		f.vectors[feat] = v
		f.indicators[feat] = a.config.Indicators[feat].Project(v.Distance)
		f.hasVector[feat] = true
	}
}
