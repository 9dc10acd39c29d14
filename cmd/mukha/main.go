package main

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"gocv.io/x/gocv"

	"github.com/ayusman/mukha/internal/app"
	"github.com/ayusman/mukha/internal/capture"
	"github.com/ayusman/mukha/internal/config"
	"github.com/ayusman/mukha/internal/face"
	"github.com/ayusman/mukha/internal/landmarks"
	"github.com/ayusman/mukha/internal/log"
	"github.com/ayusman/mukha/internal/tray"
)

const keyEscape = 27

var textColor = color.RGBA{R: 31, G: 58, B: 147}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := log.Init(log.Options{Level: cfg.LogLevel, File: cfg.LogFile}); err != nil {
		fmt.Fprintf(os.Stderr, "log: %v\n", err)
		os.Exit(1)
	}

	appCfg := app.DefaultConfig()
	appCfg.CameraID = cfg.CameraID
	appCfg.MotionThresh = cfg.MotionThreshold
	appCfg.Smoothing = cfg.Smoothing
	appCfg.HoldFrames = cfg.HoldFrames
	appCfg.Detector.Model = cfg.LandmarkModel
	appCfg.Detector.Script = cfg.LandmarkScript
	appCfg.Detector.Python = cfg.Python

	a := app.New(appCfg)
	defer a.Stop()

	if err := a.Open(); err != nil {
		log.L().Fatalf("opening camera %d: %v", cfg.CameraID, err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if !cfg.ShowWindow {
		a.OnFrame(logSignals)
		if err := a.Start(); err != nil {
			log.L().Fatalf("starting pipeline: %v", err)
		}
		if cfg.Tray {
			runTray(a, sigChan)
			return
		}
		<-sigChan
		return
	}

	// Windows must be driven from the main goroutine, so the loop calls Step
	// directly instead of Start.
	window := gocv.NewWindow("mukha")
	defer window.Close()

	var quit atomic.Bool
	go func() {
		<-sigChan
		quit.Store(true)
	}()

	a.OnFrame(func(frame *gocv.Mat, f *face.Face) {
		f.Annotate(frame)
		drawStatus(frame, f)
		window.IMShow(*frame)
		if window.WaitKey(1) == keyEscape {
			quit.Store(true)
		}
	})

	for !quit.Load() {
		if _, err := a.Step(); err != nil {
			if errors.Is(err, capture.ErrCameraNotOpen) {
				return
			}
			log.Warn(log.Fields{"err": err}, "reading frame")
		}
	}
}

// gazeText describes the face's gaze the way the overlay shows it.
func gazeText(f *face.Face) string {
	switch {
	case f.IsBlinking():
		return "Blinking"
	case f.IsLookingRight():
		return "Looking right"
	case f.IsLookingLeft():
		return "Looking left"
	case f.IsLookingCenter():
		return "Looking center"
	default:
		return ""
	}
}

func pupilText(f *face.Face, side landmarks.Side) string {
	p, ok := f.Eye(side).PupilCoords()
	if !ok {
		return "None"
	}
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}

func drawStatus(frame *gocv.Mat, f *face.Face) {
	gocv.PutText(frame, gazeText(f), image.Pt(90, 60), gocv.FontHersheyDuplex, 1.6, textColor, 2)
	gocv.PutText(frame, "Left pupil:  "+pupilText(f, landmarks.Left), image.Pt(90, 130), gocv.FontHersheyDuplex, 0.9, textColor, 1)
	gocv.PutText(frame, "Right pupil: "+pupilText(f, landmarks.Right), image.Pt(90, 165), gocv.FontHersheyDuplex, 0.9, textColor, 1)
	if m := f.Mouth(); m.Located() {
		state, _ := m.State()
		gocv.PutText(frame, "Mouth: "+state.String(), image.Pt(90, 200), gocv.FontHersheyDuplex, 0.9, textColor, 1)
	}
}

// runTray blocks in the system tray until Quit or a signal.
func runTray(a *app.App, sigChan <-chan os.Signal) {
	t := tray.New()
	t.OnToggle(a.SetEnabled)
	t.OnRecalibrate(a.ResetCalibration)
	t.OnQuit(func() { log.Info(nil, "quit from tray") })
	a.OnFrame(func(_ *gocv.Mat, f *face.Face) {
		t.SetGaze(gazeText(f))
	})

	go func() {
		<-sigChan
		t.Quit()
	}()
	t.Run()
}

func logSignals(_ *gocv.Mat, f *face.Face) {
	if !f.HasLandmarks() {
		return
	}
	fields := log.Fields{
		"face":  f.ID,
		"gaze":  gazeText(f),
		"left":  pupilText(f, landmarks.Left),
		"right": pupilText(f, landmarks.Right),
	}
	if e, ok := f.Euler(); ok {
		fields["yaw"], fields["pitch"], fields["roll"] = e.Yaw, e.Pitch, e.Roll
	}
	if state, ok := f.Mouth().State(); ok {
		fields["mouth"] = state.String()
	}
	for _, side := range []landmarks.Side{landmarks.Left, landmarks.Right} {
		if posture, ok := f.Brow(side).Posture(); ok {
			fields[side.String()+"_brow"] = posture.String()
		}
	}
	log.Info(fields, "face")
}
