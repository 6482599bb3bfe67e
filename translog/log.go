package translog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	loggerv2 "jarvis/logger/v2"
)

// ErrNoLog is returned by readers when nothing has been logged yet.
var ErrNoLog = errors.New("transaction log does not exist")

const maxLineBytes = 4 * 1024 * 1024

// Log appends records under an in-process mutex and a cross-process file
// lock, so the CLI and the server can share one file.
type Log struct {
	path      string
	mu        sync.Mutex
	lock      *flock.Flock
	logger    loggerv2.Logger
	observers []func(Record)
	now       func() time.Time
}

type Option func(*Log)

func WithLogger(l loggerv2.Logger) Option {
	return func(t *Log) { t.logger = l }
}

// WithClock overrides time.Now for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Log) { t.now = now }
}

// Open prepares a log at path. The file itself is created on first append.
func Open(path string, opts ...Option) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create transaction log directory: %w", err)
	}
	l := &Log{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: loggerv2.NewNoop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *Log) Path() string { return l.path }

// OnAppend registers fn to run after each successful append.
func (l *Log) OnAppend(fn func(Record)) {
	l.mu.Lock()
	l.observers = append(l.observers, fn)
	l.mu.Unlock()
}

// Append writes rec as one JSON line. A zero timestamp is filled in.
func (l *Log) Append(rec Record) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = l.now().UTC()
	}
	if rec.Parameters == nil {
		rec.Parameters = map[string]any{}
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode transaction record: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	err = l.write(line)
	observers := append([]func(Record){}, l.observers...)
	l.mu.Unlock()

	if err != nil {
		l.logger.Error("Failed to write transaction log", err, loggerv2.String("tool", rec.ToolName))
		return err
	}
	for _, fn := range observers {
		fn(rec)
	}
	return nil
}

func (l *Log) write(line []byte) error {
	if err := l.lock.Lock(); err != nil {
		return fmt.Errorf("lock transaction log: %w", err)
	}
	defer func() { _ = l.lock.Unlock() }()

	//nolint:gosec // G304: path comes from configuration
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open transaction log: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("append transaction log: %w", err)
	}
	return f.Close()
}

// Scan calls fn for each readable record in file order until fn returns
// false. Corrupt lines are skipped.
func (l *Log) Scan(fn func(Record) bool) error {
	//nolint:gosec // G304: path comes from configuration
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNoLog
		}
		return fmt.Errorf("open transaction log: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	skipped := 0
	for sc.Scan() {
		var rec Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			skipped++
			continue
		}
		if !fn(rec) {
			break
		}
	}
	if skipped > 0 {
		l.logger.Debug("Skipped corrupt transaction log lines", loggerv2.Int("count", skipped))
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read transaction log: %w", err)
	}
	return nil
}

// All returns every readable record in file order.
func (l *Log) All() ([]Record, error) {
	var out []Record
	err := l.Scan(func(r Record) bool {
		out = append(out, r)
		return true
	})
	return out, err
}

// Recent returns up to n records, newest first. An empty tool matches all.
func (l *Log) Recent(tool string, n int) ([]Record, error) {
	if n <= 0 {
		return nil, nil
	}
	ring := make([]Record, 0, n)
	next := 0
	err := l.Scan(func(r Record) bool {
		if tool != "" && r.ToolName != tool {
			return true
		}
		if len(ring) < n {
			ring = append(ring, r)
		} else {
			ring[next] = r
		}
		next = (next + 1) % n
		return true
	})
	if err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(ring))
	// next points one past the newest element.
	for i := 0; i < len(ring); i++ {
		idx := (next - 1 - i + len(ring)) % len(ring)
		out = append(out, ring[idx])
	}
	return out, nil
}
