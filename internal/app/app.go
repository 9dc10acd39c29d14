// Package app runs the capture loop: frames from the camera pass a motion
// gate, go to the landmark detector and come out as analyzed faces.
package app

import (
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/mukha/internal/capture"
	"github.com/ayusman/mukha/internal/detector"
	"github.com/ayusman/mukha/internal/face"
	"github.com/ayusman/mukha/internal/landmarks"
	"github.com/ayusman/mukha/internal/log"
)

// Pipeline timing constants.
const (
	// IdleFPS is the frame rate when no motion is detected.
	IdleFPS = 5
	// ActiveFPS is the frame rate while a face may be moving.
	ActiveFPS = 15
	// IdleTimeout is how long without motion before returning to idle mode.
	IdleTimeout = 2 * time.Second
)

// Config holds configuration options for the application.
type Config struct {
	CameraID int
	// MotionThresh is the percentage of changed pixels that wakes the
	// pipeline. Zero or less disables the motion gate.
	MotionThresh float64
	// Smoothing averages landmarks with the previous frame's.
	Smoothing  bool
	HoldFrames int
	Detector   detector.Config
	Face       face.Config
}

// DefaultConfig returns the settings cmd/mukha starts from.
func DefaultConfig() Config {
	return Config{
		MotionThresh: 1.0,
		Smoothing:    true,
		HoldFrames:   landmarks.DefaultHoldFrames,
		Detector:     detector.DefaultConfig(),
		Face:         face.DefaultConfig(),
	}
}

// FrameHandler receives every processed frame with its analysis. Both are
// only valid for the duration of the call; the handler may draw on frame.
type FrameHandler func(frame *gocv.Mat, f *face.Face)

// App wires the camera, motion gate, landmark detector and face analyzer.
type App struct {
	config   Config
	camera   capture.Camera
	gate     *capture.Gate
	detector detector.Detector
	smoother *landmarks.Smoother
	analyzer *face.Analyzer
	handlers []FrameHandler
	enabled  bool
	mu       sync.RWMutex
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	var motion *capture.MotionDetector
	if config.MotionThresh > 0 {
		motion = capture.NewMotionDetector(config.MotionThresh)
	}

	a := &App{
		config:  config,
		camera:  capture.NewCamera(config.CameraID),
		gate:    capture.NewGate(motion, IdleTimeout),
		enabled: true,
	}
	if config.Smoothing {
		a.smoother = landmarks.NewSmoother(config.HoldFrames)
	}

	// Try the dlib service first, fall back to a detector that finds nothing.
	if d, err := detector.NewDlibDetector(config.Detector); err == nil {
		a.detector = d
		log.Info(nil, "using dlib landmark detection")
	} else {
		log.Warn(log.Fields{"err": err}, "dlib landmark service not available, using mock detector")
		a.detector = detector.NewMockDetector()
	}

	return a
}

// SetCamera replaces the frame source. Call before Start or Step.
func (a *App) SetCamera(c capture.Camera) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.camera = c
	a.analyzer = nil
}

// SetDetector sets the landmark detector implementation to use.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
}

// SetEnabled pauses or resumes analysis. Frames are still read and passed to
// handlers while paused, with an empty face.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether analysis is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// OnFrame registers a handler for processed frames.
func (a *App) OnFrame(h FrameHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers = append(a.handlers, h)
}

// Open opens the camera and sizes the analyzer to its frames.
func (a *App) Open() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.openLocked()
}

func (a *App) openLocked() error {
	if !a.camera.IsOpen() {
		if err := a.camera.Open(); err != nil {
			return err
		}
		a.camera.SetFPS(IdleFPS)
	}
	if a.analyzer == nil {
		w, h := a.camera.Size()
		a.analyzer = face.NewAnalyzer(w, h, a.config.Face)
	}
	return nil
}

// Start runs the pipeline in a goroutine until Stop.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}
	if err := a.openLocked(); err != nil {
		return err
	}

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.runPipeline(a.stopCh, a.doneCh)

	log.Info(nil, "pipeline started")
	return nil
}

// Stop halts the pipeline and releases the camera, gate and detector.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, doneCh := a.stopCh, a.doneCh
	a.stopCh, a.doneCh = nil, nil
	a.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-doneCh
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.camera.Close(); err != nil {
		log.Error(log.Fields{"err": err}, "closing camera")
	}
	a.gate.Close()
	if a.detector != nil {
		if err := a.detector.Close(); err != nil {
			log.Error(log.Fields{"err": err}, "closing detector")
		}
	}

	log.Info(nil, "pipeline stopped")
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.camera
}

// Detector returns the landmark detector.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}

// Analyzer returns the face analyzer, nil before Open.
func (a *App) Analyzer() *face.Analyzer {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.analyzer
}

// ResetCalibration restarts the pupil threshold search, e.g. after the
// lighting changes.
func (a *App) ResetCalibration() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.analyzer != nil {
		a.analyzer.ResetCalibration()
	}
}

// Mode returns the gate's current mode.
func (a *App) Mode() capture.Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.gate.Mode()
}
