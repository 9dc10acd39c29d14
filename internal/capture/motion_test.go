package capture

import (
	"testing"
	"time"

	"gocv.io/x/gocv"
)

func blackAndWhite(t *testing.T) (black, white gocv.Mat) {
	t.Helper()
	black = gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	white = gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	white.SetTo(gocv.NewScalar(255, 255, 255, 0))
	t.Cleanup(func() {
		black.Close()
		white.Close()
	})
	return black, white
}

func TestMotionDetector_NoMotion(t *testing.T) {
	md := NewMotionDetector(1.0)
	defer md.Close()

	black, _ := blackAndWhite(t)

	detected, changePercent := md.Detect(&black)
	if detected || changePercent != 0 {
		t.Errorf("first frame = %v, %f, want baseline only", detected, changePercent)
	}

	detected, changePercent = md.Detect(&black)
	if detected {
		t.Errorf("identical frames should not detect motion, changePercent = %f", changePercent)
	}
}

func TestMotionDetector_WithMotion(t *testing.T) {
	md := NewMotionDetector(1.0)
	defer md.Close()

	black, white := blackAndWhite(t)

	md.Detect(&black)
	detected, changePercent := md.Detect(&white)
	if !detected {
		t.Errorf("black to white should detect motion, changePercent = %f", changePercent)
	}
	if changePercent < 50.0 {
		t.Errorf("changePercent = %f, expected > 50%% for black to white transition", changePercent)
	}

	// The white frame is now the baseline.
	if detected, _ := md.Detect(&white); detected {
		t.Error("baseline should follow the last frame")
	}
}

func TestMotionDetector_Reset(t *testing.T) {
	md := NewMotionDetector(1.0)
	defer md.Close()

	black, white := blackAndWhite(t)

	md.Detect(&black)
	if !md.hasPrev {
		t.Error("detector should hold a baseline after first Detect")
	}

	md.Reset()
	if md.hasPrev || !md.prev.Empty() {
		t.Error("Reset should drop the baseline")
	}

	if detected, _ := md.Detect(&white); detected {
		t.Error("first frame after Reset only sets the baseline")
	}
}

func TestMotionDetector_SizeChange(t *testing.T) {
	md := NewMotionDetector(1.0)
	defer md.Close()

	black, _ := blackAndWhite(t)
	small := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer small.Close()

	md.Detect(&black)
	if detected, pct := md.Detect(&small); detected || pct != 0 {
		t.Errorf("a new frame size restarts the baseline, got %v, %f", detected, pct)
	}
}

func TestMotionDetector_SetThreshold(t *testing.T) {
	md := NewMotionDetector(1.0)
	defer md.Close()

	tests := []struct {
		set  float64
		want float64
	}{
		{5.0, 5.0},
		{0.5, 0.5},
		{0, 0.5},
		{-1.0, 0.5},
	}
	for _, tt := range tests {
		md.SetThreshold(tt.set)
		if md.threshold != tt.want {
			t.Errorf("SetThreshold(%f): threshold = %f, want %f", tt.set, md.threshold, tt.want)
		}
	}
}

func TestMotionDetector_NilFrame(t *testing.T) {
	md := NewMotionDetector(1.0)
	defer md.Close()

	if detected, pct := md.Detect(nil); detected || pct != 0 {
		t.Errorf("Detect(nil) = %v, %f", detected, pct)
	}
}

func TestMotionDetector_Close_Multiple(t *testing.T) {
	md := NewMotionDetector(1.0)
	md.Close()
	md.Close()
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestGate(t *testing.T) {
	black, white := blackAndWhite(t)
	clock := &fakeClock{t: time.Unix(1000, 0)}

	g := NewGate(NewMotionDetector(1.0), DefaultIdleTimeout)
	g.now = clock.now
	defer g.Close()

	steps := []struct {
		name     string
		frame    *gocv.Mat
		advance  time.Duration
		want     Mode
		switched bool
	}{
		{"baseline", &black, 0, Idle, false},
		{"still", &black, 200 * time.Millisecond, Idle, false},
		{"motion wakes", &white, 200 * time.Millisecond, Active, true},
		{"within timeout", &white, time.Second, Active, false},
		{"motion extends", &black, 1500 * time.Millisecond, Active, false},
		{"still before timeout", &black, 1900 * time.Millisecond, Active, false},
		{"timeout", &black, 200 * time.Millisecond, Idle, true},
		{"stays idle", &black, 5 * time.Second, Idle, false},
	}

	for _, s := range steps {
		clock.advance(s.advance)
		mode, switched := g.Update(s.frame)
		if mode != s.want || switched != s.switched {
			t.Fatalf("%s: Update() = %v, %v, want %v, %v", s.name, mode, switched, s.want, s.switched)
		}
	}
	if g.Mode() != Idle {
		t.Errorf("Mode() = %v, want idle", g.Mode())
	}
}

func TestGate_NoMotionDetector(t *testing.T) {
	g := NewGate(nil, DefaultIdleTimeout)
	defer g.Close()

	if g.Mode() != Active {
		t.Fatal("a gate without motion detection is always active")
	}
	if mode, switched := g.Update(nil); mode != Active || switched {
		t.Errorf("Update() = %v, %v", mode, switched)
	}
}

func TestMode_String(t *testing.T) {
	if Idle.String() != "idle" || Active.String() != "active" {
		t.Errorf("got %q and %q", Idle, Active)
	}
}
