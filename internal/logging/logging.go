package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
)

const prefix = "Array"

// Settings selects the log destination and verbosity.
type Settings struct {
	// Debug routes everything down to debug level into File.
	Debug bool
	// File is the debug log path. Empty means array.log in the working
	// directory.
	File string
}

// SettingsFromEnv reads DEBUG and ARRAY_LOG_FILE.
func SettingsFromEnv() Settings {
	return Settings{
		Debug: os.Getenv("DEBUG") != "",
		File:  os.Getenv("ARRAY_LOG_FILE"),
	}
}

// AppLogger wraps a charmbracelet logger. Debug-only helpers are no-ops
// unless the logger was built in debug mode.
type AppLogger struct {
	logger *log.Logger
	debug  bool
}

var (
	defaultLogger *AppLogger
	once          sync.Once
)

// GetDefault returns the process logger, built from the environment on
// first use.
func GetDefault() *AppLogger {
	once.Do(func() {
		defaultLogger = NewAppLogger()
	})
	return defaultLogger
}

func Info(msg string, keyvals ...interface{})  { GetDefault().Info(msg, keyvals...) }
func Warn(msg string, keyvals ...interface{})  { GetDefault().Warn(msg, keyvals...) }
func Error(msg string, keyvals ...interface{}) { GetDefault().Error(msg, keyvals...) }
func Debug(msg string, keyvals ...interface{}) { GetDefault().Debug(msg, keyvals...) }

// NewAppLogger builds a logger from the environment. When the debug log file
// cannot be opened it logs to stderr at debug level instead.
func NewAppLogger() *AppLogger {
	s := SettingsFromEnv()
	al, err := New(s)
	if err != nil {
		al = newStderrLogger(log.DebugLevel, s.Debug)
		al.Warn("Debug log file unavailable, logging to stderr", "error", err)
	}
	return al
}

// New builds a logger for s.
//
// In debug mode the log file is truncated and receives every level with
// caller information. Otherwise only warnings and errors reach stderr, so
// stdout stays free for command output and the MCP stdio transport.
func New(s Settings) (*AppLogger, error) {
	if !s.Debug {
		return newStderrLogger(log.WarnLevel, false), nil
	}

	path := s.File
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("cannot locate working directory for debug log: %w", err)
		}
		path = filepath.Join(cwd, "array.log")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cannot open debug log %s: %w", path, err)
	}

	l := log.NewWithOptions(f, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          prefix,
	})
	l.SetLevel(log.DebugLevel)

	al := &AppLogger{logger: l, debug: true}
	al.Info("Debug logging enabled", "log_file", path)
	return al, nil
}

func newStderrLogger(level log.Level, debug bool) *AppLogger {
	l := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          prefix,
	})
	l.SetLevel(level)
	return &AppLogger{logger: l, debug: debug}
}

// With returns a child logger that prefixes every entry with keyvals.
func (al *AppLogger) With(keyvals ...interface{}) *AppLogger {
	return &AppLogger{logger: al.logger.With(keyvals...), debug: al.debug}
}

func (al *AppLogger) Info(msg string, keyvals ...interface{})  { al.logger.Info(msg, keyvals...) }
func (al *AppLogger) Warn(msg string, keyvals ...interface{})  { al.logger.Warn(msg, keyvals...) }
func (al *AppLogger) Error(msg string, keyvals ...interface{}) { al.logger.Error(msg, keyvals...) }

func (al *AppLogger) Debug(msg string, keyvals ...interface{}) {
	if al.debug {
		al.logger.Debug(msg, keyvals...)
	}
}

// LogMessage records a bubbletea message reaching Update.
func (al *AppLogger) LogMessage(msg tea.Msg) {
	if !al.debug {
		return
	}
	al.logger.Debug("Message received", "type", fmt.Sprintf("%T", msg), "content", fmt.Sprintf("%+v", msg))
}

// LogPerformance records how long operation has taken since start.
func (al *AppLogger) LogPerformance(operation string, start time.Time) {
	al.Debug("Performance", "operation", operation, "duration", time.Since(start))
}

// LogStateTransition records a component moving between named states.
func (al *AppLogger) LogStateTransition(component, from, to string) {
	al.Debug("State transition", "component", component, "from", from, "to", to)
}

// LogUserAction records an answer given in a prompt.
func (al *AppLogger) LogUserAction(action, choice string) {
	al.Debug("User action", "action", action, "choice", choice)
}

// NewTestLogger returns a debug logger writing to a buffer. Writes are
// serialized so clone goroutines can share it.
func NewTestLogger() (*AppLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := log.NewWithOptions(&lockedWriter{w: &buf}, log.Options{Prefix: "Test"})
	l.SetLevel(log.DebugLevel)
	return &AppLogger{logger: l, debug: true}, &buf
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}
