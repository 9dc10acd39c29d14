// Package config loads runtime settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Environment keys.
const (
	EnvCameraID        = "MUKHA_CAMERA_ID"
	EnvLogLevel        = "MUKHA_LOG_LEVEL"
	EnvLogFile         = "MUKHA_LOG_FILE"
	EnvLandmarkModel   = "MUKHA_LANDMARK_MODEL"
	EnvLandmarkScript  = "MUKHA_LANDMARK_SCRIPT"
	EnvPython          = "MUKHA_PYTHON"
	EnvMotionThreshold = "MUKHA_MOTION_THRESHOLD"
	EnvSmoothing       = "MUKHA_SMOOTHING"
	EnvHoldFrames      = "MUKHA_HOLD_FRAMES"
	EnvShowWindow      = "MUKHA_SHOW_WINDOW"
	EnvTray            = "MUKHA_TRAY"
)

// Config holds everything cmd/mukha needs to start.
type Config struct {
	CameraID int    `validate:"gte=0"`
	LogLevel string `validate:"oneof=trace debug info warn warning error"`
	LogFile  string

	// LandmarkModel is the dlib 68-point shape predictor file.
	LandmarkModel string `validate:"required"`
	// LandmarkScript overrides the landmark service script lookup.
	LandmarkScript string
	Python         string `validate:"required"`

	// MotionThreshold is the percentage of changed pixels that wakes the
	// pipeline. Zero disables the motion gate.
	MotionThreshold float64 `validate:"gte=0,lte=100"`
	Smoothing       bool
	HoldFrames      int `validate:"gte=0,lte=30"`
	ShowWindow      bool
	// Tray shows a system tray menu when running without a window.
	Tray bool
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		LogLevel:        "info",
		LandmarkModel:   "shape_predictor_68_face_landmarks.dat",
		Python:          "python3",
		MotionThreshold: 1.0,
		Smoothing:       true,
		HoldFrames:      3,
		ShowWindow:      true,
	}
}

var validate = validator.New()

// Load reads the given .env files (".env" when none are named), overlays
// the MUKHA_* environment on the defaults and validates the result.
// Missing .env files are not an error; variables already set in the
// environment win over file values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (Config, error) {
	cfg := Default()

	var err error
	if cfg.CameraID, err = envInt(EnvCameraID, cfg.CameraID); err != nil {
		return Config{}, err
	}
	if cfg.MotionThreshold, err = envFloat(EnvMotionThreshold, cfg.MotionThreshold); err != nil {
		return Config{}, err
	}
	if cfg.Smoothing, err = envBool(EnvSmoothing, cfg.Smoothing); err != nil {
		return Config{}, err
	}
	if cfg.HoldFrames, err = envInt(EnvHoldFrames, cfg.HoldFrames); err != nil {
		return Config{}, err
	}
	if cfg.ShowWindow, err = envBool(EnvShowWindow, cfg.ShowWindow); err != nil {
		return Config{}, err
	}
	if cfg.Tray, err = envBool(EnvTray, cfg.Tray); err != nil {
		return Config{}, err
	}
	cfg.LogLevel = envString(EnvLogLevel, cfg.LogLevel)
	cfg.LogFile = envString(EnvLogFile, cfg.LogFile)
	cfg.LandmarkModel = envString(EnvLandmarkModel, cfg.LandmarkModel)
	cfg.LandmarkScript = envString(EnvLandmarkScript, cfg.LandmarkScript)
	cfg.Python = envString(EnvPython, cfg.Python)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func envBool(key string, def bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
