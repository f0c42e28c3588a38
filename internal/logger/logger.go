package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// Per-level log files inside the log directory.
const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled logging (info/warning/error) to one file per level
// and to stdout/stderr.
type Logger struct {
	log    *logrus.Logger
	logDir string
	files  []*os.File
	mu     sync.Mutex
}

// NewLogger creates a Logger writing into logDir, creating it when absent.
func NewLogger(logDir string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &Logger{logDir: logDir}
	base := newBase()

	routes := []struct {
		file    string
		console io.Writer
		levels  []logrus.Level
	}{
		{InfoFile, os.Stdout, []logrus.Level{logrus.InfoLevel, logrus.DebugLevel}},
		{WarningFile, os.Stdout, []logrus.Level{logrus.WarnLevel}},
		{ErrorFile, os.Stderr, []logrus.Level{logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel}},
	}
	for _, route := range routes {
		file, err := l.openLogFile(filepath.Join(logDir, route.file))
		if err != nil {
			l.Close()
			return nil, err
		}
		base.AddHook(&levelHook{
			writer:    io.MultiWriter(route.console, file),
			levels:    route.levels,
			formatter: base.Formatter,
		})
	}

	l.log = base
	return l, nil
}

// NewDiscard returns a Logger that drops everything. Used in tests.
func NewDiscard() *Logger {
	return &Logger{log: newBase()}
}

func newBase() *logrus.Logger {
	base := logrus.New()
	base.SetOutput(io.Discard)
	base.SetLevel(logrus.InfoLevel)
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		DisableColors: true,
	})
	return base
}

// openLogFile opens or creates a log file for appending.
func (l *Logger) openLogFile(filename string) (*os.File, error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", filename, err)
	}
	l.files = append(l.files, file)
	return file, nil
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.log.Infof(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.log.Warnf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.log.Errorf(format, v...)
}

// Dir returns the log directory, empty for a discard logger.
func (l *Logger) Dir() string {
	return l.logDir
}

// CleanLogs truncates the named log file.
func (l *Logger) CleanLogs(fileName string) error {
	if l.logDir == "" {
		return nil
	}
	switch fileName {
	case InfoFile, WarningFile, ErrorFile:
	default:
		return fmt.Errorf("unknown log file %q", fileName)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.Truncate(filepath.Join(l.logDir, fileName), 0); err != nil {
		return fmt.Errorf("failed to truncate %s: %w", fileName, err)
	}
	return nil
}

// Close releases the log files.
func (l *Logger) Close() error {
	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.files = nil
	return firstErr
}

// levelHook writes entries of the given levels to writer.
type levelHook struct {
	writer    io.Writer
	levels    []logrus.Level
	formatter logrus.Formatter
	mu        sync.Mutex
}

func (h *levelHook) Levels() []logrus.Level {
	return h.levels
}

func (h *levelHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.writer.Write(line)
	return err
}
