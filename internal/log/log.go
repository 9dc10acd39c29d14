// Package log provides the process-wide structured logger.
package log

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"
	"sync"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger *logrus.Logger
	mu     sync.RWMutex
)

// Fields is a set of structured log fields.
type Fields = logrus.Fields

// Options configures the logger.
type Options struct {
	// Level is a logrus level name ("debug", "info", ...). Empty means info.
	Level string
	// File, when set, adds a rotated log file next to stderr.
	File string
	// Output overrides stderr. Used by tests.
	Output io.Writer
}

func init() {
	logger = newLogger()
}

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	l.SetOutput(os.Stderr)
	l.SetFormatter(&formatter.Formatter{
		NoColors:        false,
		TimestampFormat: "02 Jan 06 - 15:04:05",
		HideKeys:        false,
		CallerFirst:     true,
		CustomCallerFormatter: func(f *runtime.Frame) string {
			s := strings.Split(f.Function, ".")
			funcName := s[len(s)-1]
			return fmt.Sprintf(" \x1b[%dm[%s:%d][%s()]", 34, path.Base(f.File), f.Line, funcName)
		},
	})
	l.SetReportCaller(true)
	return l
}

// Init reconfigures the process-wide logger.
func Init(opts Options) error {
	level := logrus.InfoLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return fmt.Errorf("parse log level: %w", err)
		}
		level = parsed
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	writers := []io.Writer{out}
	if opts.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			LocalTime:  true,
			Compress:   true,
			MaxSize:    50,
			MaxAge:     7,
			MaxBackups: 3,
		})
	}

	l := newLogger()
	l.SetLevel(level)
	l.SetOutput(io.MultiWriter(writers...))
	if opts.Output != nil {
		l.SetFormatter(&formatter.Formatter{NoColors: true, HideKeys: false})
		l.SetReportCaller(false)
	}

	mu.Lock()
	logger = l
	mu.Unlock()
	return nil
}

// L returns the process-wide logger.
func L() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// With returns an entry carrying fields.
func With(fields Fields) *logrus.Entry {
	if fields == nil {
		fields = Fields{}
	}
	return L().WithFields(fields)
}

func Debug(fields Fields, msg string) {
	With(fields).Debug(msg)
}

func Info(fields Fields, msg string) {
	With(fields).Info(msg)
}

func Warn(fields Fields, msg string) {
	With(fields).Warn(msg)
}

func Error(fields Fields, msg string) {
	With(fields).Error(msg)
}
