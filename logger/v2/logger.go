package v2

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// loggerImpl implements Logger on top of logrus without leaking logrus types
type loggerImpl struct {
	logrus *logrus.Logger
	files  []*os.File
	fields []Field
}

// New creates a logger from cfg
func New(cfg Config) (Logger, error) {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	l.SetLevel(level)

	formatter, err := newFormatter(cfg.Format)
	if err != nil {
		return nil, err
	}
	l.SetFormatter(formatter)
	l.SetReportCaller(true)

	var files []*os.File
	primary, f, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}
	if f != nil {
		files = append(files, f)
	}

	writer := primary
	if cfg.FilePath != "" && cfg.FilePath != cfg.Output {
		_, mirror, err := openOutput(cfg.FilePath)
		if err != nil {
			closeAll(files)
			return nil, err
		}
		files = append(files, mirror)
		writer = io.MultiWriter(primary, mirror)
	}
	l.SetOutput(writer)

	return &loggerImpl{logrus: l, files: files}, nil
}

// NewWithWriter creates a json logger writing to w. Tests use it to inspect entries.
func NewWithWriter(w io.Writer, level string) Logger {
	l := logrus.New()
	if lvl, err := logrus.ParseLevel(level); err == nil {
		l.SetLevel(lvl)
	}
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	l.SetOutput(w)
	return &loggerImpl{logrus: l}
}

// NewDefault creates a logger with DefaultConfig, falling back to a no-op logger
func NewDefault() Logger {
	logger, err := New(DefaultConfig())
	if err != nil {
		return NewNoop()
	}
	return logger
}

// NewNoop creates a logger that discards everything
func NewNoop() Logger {
	return &noopLogger{}
}

type noopLogger struct{}

func (n *noopLogger) Debug(msg string, fields ...Field)            {}
func (n *noopLogger) Info(msg string, fields ...Field)             {}
func (n *noopLogger) Warn(msg string, fields ...Field)             {}
func (n *noopLogger) Error(msg string, err error, fields ...Field) {}
func (n *noopLogger) Fatal(msg string, err error, fields ...Field) {}
func (n *noopLogger) With(fields ...Field) Logger                  { return n }
func (n *noopLogger) Close() error                                 { return nil }

func newFormatter(format string) (logrus.Formatter, error) {
	pretty := func(f *runtime.Frame) (string, string) {
		return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
	}
	switch strings.ToLower(format) {
	case "json":
		return &logrus.JSONFormatter{TimestampFormat: time.RFC3339, CallerPrettyfier: pretty}, nil
	case "text", "":
		return &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339, CallerPrettyfier: pretty}, nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
}

// openOutput resolves stdout/stderr or opens path for appending.
// The returned file is nil for the standard streams.
func openOutput(output string) (io.Writer, *os.File, error) {
	switch strings.ToLower(output) {
	case "", "stderr":
		return os.Stderr, nil, nil
	case "stdout":
		return os.Stdout, nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	//nolint:gosec // G304: path comes from configuration
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, f, nil
}

func closeAll(files []*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

func (l *loggerImpl) entry(fields []Field) *logrus.Entry {
	all := make(logrus.Fields, len(l.fields)+len(fields))
	for _, f := range l.fields {
		all[f.Key] = f.Value
	}
	for _, f := range fields {
		all[f.Key] = f.Value
	}
	return l.logrus.WithFields(all)
}

func (l *loggerImpl) Debug(msg string, fields ...Field) { l.entry(fields).Debug(msg) }
func (l *loggerImpl) Info(msg string, fields ...Field)  { l.entry(fields).Info(msg) }
func (l *loggerImpl) Warn(msg string, fields ...Field)  { l.entry(fields).Warn(msg) }

func (l *loggerImpl) Error(msg string, err error, fields ...Field) {
	e := l.entry(fields)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(msg)
}

func (l *loggerImpl) Fatal(msg string, err error, fields ...Field) {
	e := l.entry(fields)
	if err != nil {
		e = e.WithError(err)
	}
	e.Fatal(msg)
}

// With returns a child logger. The child shares the backend but never owns its files.
func (l *loggerImpl) With(fields ...Field) Logger {
	preset := make([]Field, 0, len(l.fields)+len(fields))
	preset = append(preset, l.fields...)
	preset = append(preset, fields...)
	return &loggerImpl{logrus: l.logrus, fields: preset}
}

func (l *loggerImpl) Close() error {
	var first error
	for _, f := range l.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	l.files = nil
	return first
}
