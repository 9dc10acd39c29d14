package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/mukha/internal/log"
)

// Motion detection constants
const (
	// GaussianBlurSize is the kernel size for Gaussian blur (21x21)
	GaussianBlurSize = 21
	// DiffThreshold is the binary threshold for difference detection
	DiffThreshold = 25
)

// MotionDetector reports the share of pixels that changed between
// consecutive frames, after blurring away sensor noise.
type MotionDetector struct {
	threshold float64
	prev      gocv.Mat
	hasPrev   bool
	mu        sync.Mutex
}

// NewMotionDetector creates a MotionDetector. threshold is the percentage of
// pixels that must change, so 1.0 means 1%.
func NewMotionDetector(threshold float64) *MotionDetector {
	return &MotionDetector{
		threshold: threshold,
		prev:      gocv.NewMat(),
	}
}

// Detect compares frame with the previous one. It returns whether the change
// exceeds the threshold and the changed percentage. The first frame after
// creation or Reset only becomes the baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	gocv.GaussianBlur(gray, &blurred, image.Pt(GaussianBlurSize, GaussianBlurSize), 0, 0, gocv.BorderDefault)

	if !m.hasPrev || m.prev.Rows() != blurred.Rows() || m.prev.Cols() != blurred.Cols() {
		m.replacePrev(blurred)
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prev, &diff)
	gocv.Threshold(diff, &diff, DiffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(diff)) / float64(diff.Rows()*diff.Cols()) * 100
	m.replacePrev(blurred)

	return changed > m.threshold, changed
}

// replacePrev takes ownership of next as the new baseline.
func (m *MotionDetector) replacePrev(next gocv.Mat) {
	m.prev.Close()
	m.prev = next
	m.hasPrev = true
}

// Reset drops the baseline; the next frame starts a new comparison.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.prev.Close()
	m.prev = gocv.NewMat()
	m.hasPrev = false
}

// Close releases the baseline frame. The detector stays usable.
func (m *MotionDetector) Close() {
	m.Reset()
}

// SetThreshold sets the motion threshold in percent. Values less than or
// equal to 0 are ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.threshold = threshold
}

// Mode is the pipeline's processing mode.
type Mode int

const (
	Idle Mode = iota
	Active
)

func (m Mode) String() string {
	if m == Active {
		return "active"
	}
	return "idle"
}

// Gate switches between idle and active mode: motion makes it active, and
// it falls back to idle after IdleTimeout without motion. Only active
// frames are worth sending to the landmark detector.
type Gate struct {
	motion      *MotionDetector
	idleTimeout time.Duration
	mode        Mode
	lastMotion  time.Time
	now         func() time.Time
}

// DefaultIdleTimeout is how long the gate stays active after the last motion.
const DefaultIdleTimeout = 2 * time.Second

// NewGate creates a Gate. A nil motion detector keeps the gate permanently
// active.
func NewGate(motion *MotionDetector, idleTimeout time.Duration) *Gate {
	g := &Gate{
		motion:      motion,
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
	if motion == nil {
		g.mode = Active
	}
	return g
}

// Update feeds frame through the motion detector and returns the mode for
// this frame and whether it changed.
func (g *Gate) Update(frame *gocv.Mat) (Mode, bool) {
	if g.motion == nil {
		return Active, false
	}

	moved, pct := g.motion.Detect(frame)
	now := g.now()
	prev := g.mode

	switch {
	case moved:
		g.lastMotion = now
		g.mode = Active
	case g.mode == Active && now.Sub(g.lastMotion) > g.idleTimeout:
		g.mode = Idle
	}

	if g.mode != prev {
		log.Info(log.Fields{"mode": g.mode, "change": pct}, "capture mode changed")
		return g.mode, true
	}
	return g.mode, false
}

// Mode returns the current mode.
func (g *Gate) Mode() Mode {
	return g.mode
}

// Close releases the motion detector.
func (g *Gate) Close() {
	if g.motion != nil {
		g.motion.Close()
	}
}
