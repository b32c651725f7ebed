package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

var (
	currentLevel = LevelInfo
	mu           sync.Mutex
	std          = newLogrus(os.Stderr)
)

func newLogrus(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return l
}

// SetLevel sets the global log level.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	currentLevel = l
}

// ParseLevel maps a level name (error, warn, info, debug) to a Level.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "error":
		return LevelError, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "", "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// Setup redirects log output to w.
func Setup(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	std.SetOutput(w)
}

func enabled(l Level) bool {
	mu.Lock()
	defer mu.Unlock()
	return currentLevel >= l
}

// Debug logs verbose tracing of actions.
func Debug(format string, v ...interface{}) {
	if enabled(LevelDebug) {
		std.Debugf(format, v...)
	}
}

// Info logs informative messages if the level allows.
func Info(format string, v ...interface{}) {
	if enabled(LevelInfo) {
		std.Infof(format, v...)
	}
}

// Warn logs conditions that are tolerated but worth noticing.
func Warn(format string, v ...interface{}) {
	if enabled(LevelWarn) {
		std.Warnf(format, v...)
	}
}

// Error logs error messages.
func Error(format string, v ...interface{}) {
	if enabled(LevelError) {
		std.Errorf(format, v...)
	}
}

// Fatal logs independent of error level and exits.
func Fatal(format string, v ...interface{}) {
	std.Errorf("FATAL: "+format, v...)
	os.Exit(1)
}
