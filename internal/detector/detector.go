// Package detector provides facial landmark detection for video frames.
package detector

import (
	"errors"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/mukha/internal/landmarks"
)

// ErrScriptNotFound is returned when the landmark service script cannot be
// located.
var ErrScriptNotFound = errors.New("landmark_service.py not found")

// Detector defines the interface for landmark provider implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the landmarks of the first
	// face found. It returns nil and no error when there is no face.
	Detect(frame *gocv.Mat) (*landmarks.Set, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for landmark detection.
type Config struct {
	// Model is the dlib 68-point shape predictor file passed to the service.
	Model string

	// Script overrides the service script lookup when set.
	Script string

	// Python is the interpreter used to run the script. Empty means a
	// virtual environment interpreter if one is found, else python3.
	Python string

	// IdleTimeout stops the service after this long without a request.
	IdleTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Model:       "shape_predictor_68_face_landmarks.dat",
		IdleTimeout: 30 * time.Second,
	}
}
