// Package tray provides a system tray menu for headless runs: pause analysis,
// restart pupil calibration and see the latest gaze reading.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

const (
	titleEnabled  = "● Analyzing"
	titleDisabled = "○ Paused"
	statusNone    = "Gaze: none"
)

// Tray is the system tray menu. Callbacks run outside the tray's lock.
type Tray struct {
	onToggle      func(enabled bool)
	onRecalibrate func()
	onQuit        func()
	enabled       bool
	status        string
	mu            sync.RWMutex

	menuToggle *systray.MenuItem
	menuStatus *systray.MenuItem
}

// New creates a Tray with analysis enabled.
func New() *Tray {
	return &Tray{
		enabled: true,
		status:  statusNone,
	}
}

// OnToggle sets the callback for pausing and resuming analysis.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnRecalibrate sets the callback for discarding the pupil calibration.
func (t *Tray) OnRecalibrate(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRecalibrate = fn
}

// OnQuit sets the callback run before the tray exits.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run shows the tray and blocks until Quit. It must run on the main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit closes the tray, making Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("mukha")
	systray.SetTooltip("mukha face signals")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Pause or resume face analysis")
	systray.AddSeparator()
	t.menuStatus = systray.AddMenuItem(t.status, "Latest gaze reading")
	t.menuStatus.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuRecalibrate := systray.AddMenuItem("Recalibrate pupils", "Restart the pupil threshold search")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit mukha")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuRecalibrate.ClickedCh:
				t.handleRecalibrate()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				systray.Quit()
				return
			}
		}
	}()
}

func toggleTitle(enabled bool) string {
	if enabled {
		return titleEnabled
	}
	return titleDisabled
}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleRecalibrate() {
	t.mu.RLock()
	callback := t.onRecalibrate
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// SetGaze updates the status line. An empty reading shows "none".
func (t *Tray) SetGaze(reading string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if reading == "" {
		t.status = statusNone
	} else {
		t.status = "Gaze: " + reading
	}
	if t.menuStatus != nil {
		t.menuStatus.SetTitle(t.status)
	}
}

// Status returns the current status line.
func (t *Tray) Status() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// IsEnabled returns whether analysis is enabled.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}
