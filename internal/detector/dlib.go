package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/mukha/internal/landmarks"
	"github.com/ayusman/mukha/internal/log"
)

const scriptName = "landmark_service.py"

// execCommand builds the service command; tests replace it.
var execCommand = func(python, script, model string) *exec.Cmd {
	return exec.Command(python, script, model)
}

// DlibDetector implements Detector using a Python dlib subprocess. Frames
// go to the service as a 4-byte big-endian length followed by JPEG bytes;
// each request is answered by one JSON line.
type DlibDetector struct {
	config    Config
	script    string
	python    string
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	idleTimer *time.Timer
}

// NewDlibDetector creates a new dlib detector.
// The Python process is started lazily on first detection.
func NewDlibDetector(config Config) (*DlibDetector, error) {
	script := config.Script
	if script == "" {
		script = findScript()
	}
	if script == "" {
		return nil, ErrScriptNotFound
	}
	if _, err := os.Stat(script); err != nil {
		return nil, fmt.Errorf("landmark script: %w", err)
	}

	python := config.Python
	if python == "" {
		python = findVenvPython()
	}
	if python == "" {
		python = "python3"
	}

	return &DlibDetector{
		config: config,
		script: script,
		python: python,
	}, nil
}

// Detect analyzes a frame and returns the landmarks of the first face.
func (d *DlibDetector) Detect(frame *gocv.Mat) (*landmarks.Set, error) {
	if frame == nil || frame.Empty() {
		return nil, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	if err := writeRequest(d.stdin, buf.GetBytes()); err != nil {
		d.kill()
		return nil, err
	}

	line, err := d.stdout.ReadBytes('\n')
	if err != nil {
		d.kill()
		return nil, fmt.Errorf("read response: %w", err)
	}

	set, err := parseResponse(line)
	if err != nil {
		return nil, err
	}

	d.resetIdleTimer()
	return set, nil
}

// Close shuts down the Python process.
func (d *DlibDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *DlibDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	d.cmd = execCommand(d.python, d.script, d.config.Model)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start landmark service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true

	log.Info(log.Fields{"python": d.python, "script": d.script}, "landmark service started")
	return nil
}

func (d *DlibDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	log.Info(nil, "landmark service stopped")
	return err
}

// kill tears down a service whose pipe broke, so the next Detect restarts it.
func (d *DlibDetector) kill() {
	if d.cmd != nil && d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}
	if err := d.shutdown(); err != nil {
		log.Warn(log.Fields{"err": err}, "landmark service exited")
	}
}

func (d *DlibDetector) resetIdleTimer() {
	if d.config.IdleTimeout <= 0 {
		return
	}
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(d.config.IdleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.shutdown()
	})
}

func writeRequest(w io.Writer, data []byte) error {
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := w.Write(length); err != nil {
		return fmt.Errorf("write length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	return nil
}

// jsonResponse represents the JSON structure from the Python service.
type jsonResponse struct {
	Faces []jsonFace `json:"faces"`
	Error string     `json:"error,omitempty"`
}

type jsonFace struct {
	Points [][2]float64 `json:"points"`
}

func parseResponse(line []byte) (*landmarks.Set, error) {
	var resp jsonResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("landmark service: %s", resp.Error)
	}
	if len(resp.Faces) == 0 {
		return nil, nil
	}

	face := resp.Faces[0]
	if len(face.Points) != landmarks.NumLandmarks {
		return nil, fmt.Errorf("parse response: got %d points, want %d", len(face.Points), landmarks.NumLandmarks)
	}
	points := make([]image.Point, len(face.Points))
	for i, p := range face.Points {
		points[i] = image.Pt(int(p[0]), int(p[1]))
	}
	return landmarks.NewSet(points), nil
}

var errNoExecutable = errors.New("executable path unavailable")

func executableDir() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		return "", errNoExecutable
	}
	return filepath.Dir(execPath), nil
}

func findScript() string {
	execDir, _ := executableDir()

	candidates := []string{
		"scripts/" + scriptName,
		"../scripts/" + scriptName,
		filepath.Join(execDir, "scripts", scriptName),
		filepath.Join(os.Getenv("HOME"), ".mukha", "scripts", scriptName),
	}
	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
// It checks for venv/bin/python relative to the project directory.
func findVenvPython() string {
	execDir, err := executableDir()
	if err != nil {
		return ""
	}

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		"../../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".mukha/venv/bin/python"),
	}
	return firstExisting(candidates)
}

func firstExisting(paths []string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}
