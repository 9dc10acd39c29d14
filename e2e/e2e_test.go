package e2e

import (
	"image"
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/mukha/internal/app"
	"github.com/ayusman/mukha/internal/capture"
	"github.com/ayusman/mukha/internal/detector"
	"github.com/ayusman/mukha/internal/eye"
	"github.com/ayusman/mukha/internal/face"
	"github.com/ayusman/mukha/internal/landmarks"
	"github.com/ayusman/mukha/testdata"
)

// pipeline runs frames through the full app with a scripted detector.
type pipeline struct {
	app      *app.App
	detector *detector.MockDetector
	faces    []snapshot
}

// snapshot copies what the handler saw, since a Face is only valid inside
// the handler.
type snapshot struct {
	hasLandmarks  bool
	detected      bool
	pupilsLocated bool
	blinking      bool
	browRaised    [2]bool
	browNeutral   [2]bool
	browFurrowed  [2]bool
	browDistance  [2]float64
	mouthLocated  bool
	unmodified    bool
}

func newPipeline(t *testing.T, frames []*gocv.Mat) *pipeline {
	t.Helper()

	cfg := app.DefaultConfig()
	cfg.MotionThresh = 0
	cfg.Smoothing = false

	p := &pipeline{
		app:      app.New(cfg),
		detector: detector.NewMockDetector(),
	}
	p.app.SetCamera(capture.NewMockCamera(frames, false))
	p.app.SetDetector(p.detector)
	p.app.OnFrame(func(frame *gocv.Mat, f *face.Face) {
		p.faces = append(p.faces, snap(frame, f))
	})

	if err := p.app.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(p.app.Stop)
	return p
}

func snap(frame *gocv.Mat, f *face.Face) snapshot {
	s := snapshot{
		hasLandmarks:  f.HasLandmarks(),
		detected:      f.Detected(),
		pupilsLocated: f.PupilsLocated(),
		blinking:      f.IsBlinking(),
		mouthLocated:  f.Mouth().Located(),
	}
	for _, side := range []landmarks.Side{landmarks.Left, landmarks.Right} {
		b := f.Brow(side)
		s.browRaised[side] = b.IsRaised()
		s.browNeutral[side] = b.IsNeutral()
		s.browFurrowed[side] = b.IsFurrowed()
		s.browDistance[side], _ = b.Distance()
	}

	annotated := frame.Clone()
	defer annotated.Close()
	f.Annotate(&annotated)
	s.unmodified = sameImage(*frame, annotated)
	return s
}

func sameImage(a, b gocv.Mat) bool {
	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(a, b, &diff)

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(diff, &gray, gocv.ColorBGRToGray)
	return gocv.CountNonZero(gray) == 0
}

func (p *pipeline) step(t *testing.T, set *landmarks.Set) snapshot {
	t.Helper()
	p.detector.SetLandmarks(set)
	if _, err := p.app.Step(); err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	return p.faces[len(p.faces)-1]
}

func TestE2E_NoFace(t *testing.T) {
	blank := testdata.FaceFrameBGR(nil)
	defer blank.Close()

	p := newPipeline(t, []*gocv.Mat{&blank})
	got := p.step(t, nil)

	if got.hasLandmarks || got.detected || got.pupilsLocated || got.mouthLocated {
		t.Errorf("no landmarks should leave everything absent: %+v", got)
	}
	for side := range got.browRaised {
		if got.browRaised[side] || got.browNeutral[side] || got.browFurrowed[side] {
			t.Errorf("brow %d has a posture without landmarks", side)
		}
	}
	if !got.unmodified {
		t.Error("Annotate changed a frame without a face")
	}
}

func TestE2E_FrontalFaceOpenEyes(t *testing.T) {
	frames, sets := testdata.FaceSequence(1, 0)
	defer frames[0].Close()

	p := newPipeline(t, frames)
	got := p.step(t, sets[0])

	if !got.detected {
		t.Error("frontal face pose should be solved")
	}
	if !got.pupilsLocated {
		t.Error("pupils should be located in open eyes")
	}
	if got.blinking {
		t.Error("open eyes are not blinking")
	}
	if got.unmodified {
		t.Error("Annotate should draw on a frame with a face")
	}
}

func TestE2E_RaisedBrow(t *testing.T) {
	lm := landmarks.FrontalFace()
	layout := landmarks.DefaultLayout()
	ref := lm.At(layout.LeftBrowRef)
	lm.Points[19] = image.Pt(ref.X, ref.Y-40)

	frame := testdata.FaceFrameBGR(lm)
	defer frame.Close()

	p := newPipeline(t, []*gocv.Mat{&frame})
	got := p.step(t, lm)

	left := landmarks.Left
	if got.browDistance[left] != 40 {
		t.Errorf("brow distance = %f, want 40", got.browDistance[left])
	}
	if !got.browRaised[left] || got.browNeutral[left] || got.browFurrowed[left] {
		t.Errorf("left brow raised/neutral/furrowed = %v/%v/%v, want true/false/false",
			got.browRaised[left], got.browNeutral[left], got.browFurrowed[left])
	}
}

func TestE2E_CalibrationFreezes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e calibration run")
	}

	n := eye.CalibrationFrames + 5
	frames, sets := testdata.FaceSequence(n, 1)
	defer func() {
		for _, f := range frames {
			f.Close()
		}
	}()

	p := newPipeline(t, frames)
	cal := func() *eye.Calibration { return p.app.Analyzer().Calibration() }

	var frozen [2]int
	for i := 0; i < n; i++ {
		got := p.step(t, sets[i])
		if !got.pupilsLocated {
			t.Fatalf("frame %d: pupils not located", i)
		}
		if i == eye.CalibrationFrames-1 {
			if !cal().IsComplete() {
				t.Fatalf("calibration incomplete after %d frames", eye.CalibrationFrames)
			}
			frozen = [2]int{cal().Threshold(landmarks.Left), cal().Threshold(landmarks.Right)}
		}
	}

	for _, side := range []landmarks.Side{landmarks.Left, landmarks.Right} {
		if got := cal().Threshold(side); got != frozen[side] {
			t.Errorf("%s threshold moved after completion: %d -> %d", side, frozen[side], got)
		}
		if got := cal().Trials(side); got != eye.CalibrationFrames {
			t.Errorf("%s trials = %d, want %d", side, got, eye.CalibrationFrames)
		}
	}
}
