package eye

import (
	"image"
	"image/color"
	"math"
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/mukha/internal/landmarks"
	"github.com/ayusman/mukha/testdata"
)

func TestBlinkRatio(t *testing.T) {
	tests := []struct {
		name   string
		points []image.Point
		want   float64
		wantOK bool
	}{
		{
			name:   "open eye",
			points: []image.Point{{0, 10}, {10, 3}, {30, 3}, {40, 10}, {30, 17}, {10, 17}},
			want:   40.0 / 14.0,
			wantOK: true,
		},
		{
			name:   "nearly closed",
			points: []image.Point{{0, 10}, {10, 9}, {30, 9}, {40, 10}, {30, 11}, {10, 11}},
			want:   20,
			wantOK: true,
		},
		{
			name:   "zero height",
			points: []image.Point{{0, 10}, {10, 10}, {30, 10}, {40, 10}, {30, 10}, {10, 10}},
			wantOK: false,
		},
		{
			name:   "wrong point count",
			points: []image.Point{{0, 0}, {1, 1}},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := BlinkRatio(tt.points)
			if ok != tt.wantOK {
				t.Fatalf("BlinkRatio() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("BlinkRatio() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestIsolate(t *testing.T) {
	lm := landmarks.FrontalFace()
	frame := testdata.FaceFrame(lm)
	defer frame.Close()

	t.Run("left eye", func(t *testing.T) {
		region, ok := Isolate(frame, lm.Select(landmarks.DefaultLayout().Eye(landmarks.Left)))
		if !ok {
			t.Fatal("Isolate() failed")
		}
		defer region.Close()

		if region.Origin != image.Pt(248, 192) {
			t.Errorf("Origin = %v, want (248, 192)", region.Origin)
		}
		if w, h := region.Size(); w != 50 || h != 24 {
			t.Errorf("Size() = %dx%d, want 50x24", w, h)
		}
		// Background outside the polygon is masked white.
		if v := region.Frame.GetUCharAt(0, 0); v != 255 {
			t.Errorf("corner pixel = %d, want 255", v)
		}
		// Iris centre in crop coordinates.
		if v := region.Frame.GetUCharAt(12, 25); v != 0 {
			t.Errorf("iris pixel = %d, want 0", v)
		}
	})

	t.Run("clamped to frame", func(t *testing.T) {
		points := []image.Point{{1, 4}, {6, 1}, {14, 1}, {20, 4}, {14, 7}, {6, 7}}
		region, ok := Isolate(frame, points)
		if !ok {
			t.Fatal("Isolate() failed")
		}
		defer region.Close()

		if region.Origin != image.Pt(0, 0) {
			t.Errorf("Origin = %v, want (0, 0)", region.Origin)
		}
		if w, h := region.Size(); w != 25 || h != 12 {
			t.Errorf("Size() = %dx%d, want 25x12", w, h)
		}
	})

	t.Run("outside frame", func(t *testing.T) {
		points := []image.Point{{-100, -100}, {-90, -100}, {-90, -90}}
		if _, ok := Isolate(frame, points); ok {
			t.Error("expected no region outside the frame")
		}
	})

	t.Run("empty frame", func(t *testing.T) {
		empty := gocv.NewMat()
		defer empty.Close()
		layout := landmarks.DefaultLayout()
		if _, ok := Isolate(empty, lm.Select(layout.LeftEye[:])); ok {
			t.Error("expected no region for an empty frame")
		}
	})
}

func TestCentroid(t *testing.T) {
	tests := []struct {
		name   string
		points []image.Point
		wantX  float64
		wantY  float64
		wantOK bool
	}{
		{
			name:   "square",
			points: []image.Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}},
			wantX:  5, wantY: 5, wantOK: true,
		},
		{
			name:   "clockwise triangle",
			points: []image.Point{{0, 0}, {0, 6}, {6, 0}},
			wantX:  2, wantY: 2, wantOK: true,
		},
		{
			name:   "degenerate line",
			points: []image.Point{{0, 0}, {5, 5}, {10, 10}},
			wantOK: false,
		},
		{
			name:   "too few points",
			points: []image.Point{{0, 0}, {5, 5}},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y, ok := centroid(tt.points)
			if ok != tt.wantOK {
				t.Fatalf("centroid() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && (math.Abs(x-tt.wantX) > 1e-9 || math.Abs(y-tt.wantY) > 1e-9) {
				t.Errorf("centroid() = (%f, %f), want (%f, %f)", x, y, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestDetectPupil(t *testing.T) {
	t.Run("iris disc", func(t *testing.T) {
		crop := testdata.EyeCrop(50, 24, image.Pt(25, 12), 5)
		defer crop.Close()

		p, ok := DetectPupil(crop, DefaultThreshold)
		if !ok {
			t.Fatal("pupil not located")
		}
		if math.Abs(p.X-25) > 1.5 || math.Abs(p.Y-12) > 1.5 {
			t.Errorf("pupil = (%f, %f), want about (25, 12)", p.X, p.Y)
		}
	})

	t.Run("off-centre iris", func(t *testing.T) {
		crop := testdata.EyeCrop(50, 24, image.Pt(15, 11), 4)
		defer crop.Close()

		p, ok := DetectPupil(crop, DefaultThreshold)
		if !ok {
			t.Fatal("pupil not located")
		}
		if math.Abs(p.X-15) > 1.5 || math.Abs(p.Y-11) > 1.5 {
			t.Errorf("pupil = (%f, %f), want about (15, 11)", p.X, p.Y)
		}
	})

	t.Run("no iris", func(t *testing.T) {
		crop := testdata.EyeCrop(50, 24, image.Point{}, 0)
		defer crop.Close()

		if _, ok := DetectPupil(crop, DefaultThreshold); ok {
			t.Error("expected no pupil in a white crop")
		}
	})

	t.Run("all dark", func(t *testing.T) {
		crop := gocv.NewMatWithSize(24, 50, gocv.MatTypeCV8U)
		defer crop.Close()

		if _, ok := DetectPupil(crop, DefaultThreshold); ok {
			t.Error("expected no pupil in a black crop")
		}
	})

	t.Run("empty", func(t *testing.T) {
		empty := gocv.NewMat()
		defer empty.Close()
		if _, ok := DetectPupil(empty, DefaultThreshold); ok {
			t.Error("expected no pupil in an empty Mat")
		}
	})
}

func TestIrisSize(t *testing.T) {
	white := color.RGBA{R: 255, G: 255, B: 255}

	t.Run("all dark", func(t *testing.T) {
		m := gocv.NewMatWithSize(20, 20, gocv.MatTypeCV8U)
		defer m.Close()
		if got, ok := IrisSize(m); !ok || got != 1 {
			t.Errorf("IrisSize() = %f, %v, want 1, true", got, ok)
		}
	})

	t.Run("half dark", func(t *testing.T) {
		m := gocv.NewMatWithSize(20, 20, gocv.MatTypeCV8U)
		defer m.Close()
		gocv.Rectangle(&m, image.Rect(0, 0, 10, 20), white, -1)
		if got, ok := IrisSize(m); !ok || got != 0.5 {
			t.Errorf("IrisSize() = %f, %v, want 0.5, true", got, ok)
		}
	})

	t.Run("margin ignored", func(t *testing.T) {
		m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), 20, 20, gocv.MatTypeCV8U)
		defer m.Close()
		// Dark border only.
		gocv.Rectangle(&m, image.Rect(0, 0, 20, 20), color.RGBA{}, 3)
		if got, ok := IrisSize(m); !ok || got != 0 {
			t.Errorf("IrisSize() = %f, %v, want 0, true", got, ok)
		}
	})

	t.Run("too small", func(t *testing.T) {
		m := gocv.NewMatWithSize(8, 8, gocv.MatTypeCV8U)
		defer m.Close()
		if _, ok := IrisSize(m); ok {
			t.Error("expected no measurement for an 8x8 frame")
		}
	})
}

func TestFindBestThreshold(t *testing.T) {
	crop := testdata.EyeCrop(50, 24, image.Pt(25, 12), 5)
	defer crop.Close()

	threshold, ratio, ok := FindBestThreshold(crop)
	if !ok {
		t.Fatal("FindBestThreshold() failed")
	}
	if threshold < minThreshold || threshold > maxThreshold || threshold%thresholdStep != 0 {
		t.Errorf("threshold = %d, not a candidate", threshold)
	}
	if ratio <= 0 || ratio >= 1 {
		t.Errorf("ratio = %f, want within (0, 1)", ratio)
	}

	small := gocv.NewMatWithSize(6, 6, gocv.MatTypeCV8U)
	defer small.Close()
	if _, _, ok := FindBestThreshold(small); ok {
		t.Error("expected failure for a frame smaller than the margin")
	}
}

func TestCalibration(t *testing.T) {
	crop := testdata.EyeCrop(50, 24, image.Pt(25, 12), 5)
	defer crop.Close()

	want, _, _ := FindBestThreshold(crop)

	t.Run("default before any trial", func(t *testing.T) {
		c := NewCalibration()
		if got := c.Threshold(landmarks.Left); got != DefaultThreshold {
			t.Errorf("Threshold() = %d, want %d", got, DefaultThreshold)
		}
		if c.IsComplete() {
			t.Error("new calibration should not be complete")
		}
	})

	t.Run("completes after enough frames", func(t *testing.T) {
		c := NewCalibration()
		for i := 0; i < CalibrationFrames; i++ {
			c.Evaluate(crop, landmarks.Left)
			if got := c.Threshold(landmarks.Left); got != want {
				t.Fatalf("trial %d: Threshold() = %d, want %d", i, got, want)
			}
		}
		if c.IsComplete() {
			t.Error("calibration needs both eyes")
		}
		if c.Trials(landmarks.Left) != CalibrationFrames {
			t.Errorf("Trials() = %d, want %d", c.Trials(landmarks.Left), CalibrationFrames)
		}

		for i := 0; i < CalibrationFrames; i++ {
			c.Evaluate(crop, landmarks.Right)
		}
		if !c.IsComplete() {
			t.Error("calibration should be complete")
		}
	})

	t.Run("frozen once complete", func(t *testing.T) {
		c := NewCalibration()
		for i := 0; i < CalibrationFrames; i++ {
			c.Evaluate(crop, landmarks.Left)
			c.Evaluate(crop, landmarks.Right)
		}
		left, right := c.Threshold(landmarks.Left), c.Threshold(landmarks.Right)

		other := testdata.EyeCrop(50, 24, image.Pt(25, 12), 9)
		defer other.Close()
		for i := 0; i < 5; i++ {
			c.Evaluate(other, landmarks.Left)
			c.Evaluate(other, landmarks.Right)
		}

		if c.Threshold(landmarks.Left) != left || c.Threshold(landmarks.Right) != right {
			t.Error("thresholds changed after calibration completed")
		}
		if c.Trials(landmarks.Left) != CalibrationFrames {
			t.Errorf("Trials() = %d, want %d", c.Trials(landmarks.Left), CalibrationFrames)
		}
	})

	t.Run("invalid side", func(t *testing.T) {
		c := NewCalibration()
		c.Evaluate(crop, landmarks.Side(7))
		if c.Threshold(landmarks.Side(7)) != DefaultThreshold || c.Trials(landmarks.Side(7)) != 0 {
			t.Error("invalid side should be ignored")
		}
	})
}

func TestAnalyze(t *testing.T) {
	lm := landmarks.FrontalFace()
	frame := testdata.FaceFrame(lm)
	defer frame.Close()
	layout := landmarks.DefaultLayout()

	t.Run("open eyes", func(t *testing.T) {
		cal := NewCalibration()
		for _, side := range []landmarks.Side{landmarks.Left, landmarks.Right} {
			e := Analyze(frame, lm, layout, side, cal)

			if !e.PupilLocated() {
				t.Fatalf("%s pupil not located", side)
			}
			got, _ := e.PupilCoords()
			want := testdata.IrisCenter(lm, side)
			if d := got.Sub(want); d.X*d.X+d.Y*d.Y > 4 {
				t.Errorf("%s PupilCoords() = %v, want about %v", side, got, want)
			}

			ratio, ok := e.BlinkRatio()
			if !ok || math.Abs(ratio-40.0/14.0) > 1e-9 {
				t.Errorf("%s BlinkRatio() = %f, %v, want %f", side, ratio, ok, 40.0/14.0)
			}
			if e.IsBlinking() {
				t.Errorf("%s eye should not be blinking", side)
			}

			h, ok := e.HorizontalRatio()
			if !ok || h < 0.4 || h > 0.7 {
				t.Errorf("%s HorizontalRatio() = %f, %v, want centred", side, h, ok)
			}

			e.Close()
			if e.Region() != nil {
				t.Error("Region() should be nil after Close")
			}
			if !e.PupilLocated() {
				t.Error("signals should survive Close")
			}
		}
		if cal.Trials(landmarks.Left) != 1 || cal.Trials(landmarks.Right) != 1 {
			t.Errorf("each eye should record one trial, got %d and %d",
				cal.Trials(landmarks.Left), cal.Trials(landmarks.Right))
		}
	})

	t.Run("no landmarks", func(t *testing.T) {
		e := Analyze(frame, nil, layout, landmarks.Left, NewCalibration())
		defer e.Close()

		if e.PupilLocated() {
			t.Error("pupil should not be located")
		}
		if _, ok := e.PupilCoords(); ok {
			t.Error("PupilCoords() should be absent")
		}
		if _, ok := e.BlinkRatio(); ok {
			t.Error("BlinkRatio() should be absent")
		}
		if _, ok := e.HorizontalRatio(); ok {
			t.Error("HorizontalRatio() should be absent")
		}
		if e.IsBlinking() {
			t.Error("IsBlinking() should be false")
		}
	})

	t.Run("closed eye", func(t *testing.T) {
		closed := *lm
		closed.Points[37].Y, closed.Points[38].Y = 203, 203
		closed.Points[40].Y, closed.Points[41].Y = 205, 205

		e := Analyze(frame, &closed, layout, landmarks.Left, nil)
		defer e.Close()

		ratio, ok := e.BlinkRatio()
		if !ok || ratio != 20 {
			t.Errorf("BlinkRatio() = %f, %v, want 20", ratio, ok)
		}
		if e.PupilLocated() && !e.IsBlinking() {
			t.Error("a located eye with ratio 20 should be blinking")
		}
		if !e.PupilLocated() && e.IsBlinking() {
			t.Error("blinking requires a located pupil")
		}
	})
}

func TestGazeRatio(t *testing.T) {
	tests := []struct {
		pos  float64
		size int
		want float64
		ok   bool
	}{
		{pos: 20, size: 50, want: 0.5, ok: true},
		{pos: 20.5, size: 51, want: 0.5, ok: true},
		{pos: 0, size: 30, want: 0, ok: true},
		{pos: 3, size: 10, ok: false},
	}
	for _, tt := range tests {
		got, ok := gazeRatio(tt.pos, tt.size)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("gazeRatio(%f, %d) = %f, %v, want %f, %v", tt.pos, tt.size, got, ok, tt.want, tt.ok)
		}
	}
}
