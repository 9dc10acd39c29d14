package app

import (
	"errors"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/mukha/internal/capture"
	"github.com/ayusman/mukha/internal/face"
	"github.com/ayusman/mukha/internal/landmarks"
	"github.com/ayusman/mukha/internal/log"
)

// ErrNotOpen is returned by Step before Open.
var ErrNotOpen = errors.New("app is not open")

// Step reads one frame and processes it:
//  1. motion gate decides idle or active, adjusting the camera FPS
//  2. active frames go to the landmark detector; detector errors count as
//     no face
//  3. landmarks pass the smoother when enabled
//  4. the analyzer builds the Face, which handlers receive with the frame
//
// Step returns the mode the frame was processed in. Errors come only from
// the camera.
func (a *App) Step() (capture.Mode, error) {
	frame, f, mode, err := a.process()
	if err != nil {
		return mode, err
	}
	defer frame.Close()
	defer f.Close()

	a.mu.RLock()
	handlers := append([]FrameHandler(nil), a.handlers...)
	a.mu.RUnlock()

	for _, h := range handlers {
		h(frame, f)
	}
	return mode, nil
}

func (a *App) process() (*gocv.Mat, *face.Face, capture.Mode, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.analyzer == nil {
		return nil, nil, capture.Idle, ErrNotOpen
	}

	frame, err := a.camera.ReadFrame()
	if err != nil {
		return nil, nil, capture.Idle, err
	}

	mode, switched := a.gate.Update(frame)
	if switched {
		if mode == capture.Active {
			a.camera.SetFPS(ActiveFPS)
		} else {
			a.camera.SetFPS(IdleFPS)
			if a.smoother != nil {
				a.smoother.Reset()
			}
		}
	}

	var lm *landmarks.Set
	if a.enabled && mode == capture.Active && a.detector != nil {
		lm, err = a.detector.Detect(frame)
		if err != nil {
			log.Warn(log.Fields{"err": err}, "landmark detection failed")
			lm = nil
		}
		if a.smoother != nil {
			lm = a.smoother.Apply(lm)
		}
	}

	f := a.analyzer.Analyze(*frame, lm)
	if f.Detected() {
		e, _ := f.Euler()
		log.Debug(log.Fields{
			"face":     f.ID,
			"pitch":    e.Pitch,
			"yaw":      e.Yaw,
			"roll":     e.Roll,
			"blinking": f.IsBlinking(),
		}, "face analyzed")
	}
	return frame, f, mode, nil
}

// runPipeline calls Step at the camera's frame rate until stopCh closes.
func (a *App) runPipeline(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	fps := IdleFPS
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if _, err := a.Step(); err != nil {
				log.Error(log.Fields{"err": err}, "reading frame")
				if errors.Is(err, capture.ErrEndOfFrames) {
					return
				}
				continue
			}

			if current := a.Camera().FPS(); current != fps && current > 0 {
				fps = current
				ticker.Reset(time.Second / time.Duration(fps))
			}
		}
	}
}
