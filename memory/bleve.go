package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/gofrs/flock"
	"github.com/google/uuid"

	loggerv2 "jarvis/logger/v2"
)

const (
	memoriesIndex    = "agent_memories.bleve"
	preferencesIndex = "user_profile.bleve"
	maxPreferences   = 1000
	lockFile         = ".lock"
	lockWait         = time.Second
)

// ErrLocked is returned when another process has the store open.
var ErrLocked = errors.New("memory store is in use by another jarvis process")

// BleveStore keeps memories and preferences in two bleve indexes.
type BleveStore struct {
	mu          sync.RWMutex
	memories    bleve.Index
	preferences bleve.Index
	logger      loggerv2.Logger
	now         func() time.Time
	lock        *flock.Flock
}

type Option func(*BleveStore)

func WithLogger(l loggerv2.Logger) Option {
	return func(s *BleveStore) { s.logger = l }
}

// OpenBleve opens or creates the indexes under dir.
func OpenBleve(dir string, opts ...Option) (*BleveStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create memory directory: %w", err)
	}
	lock := flock.New(filepath.Join(dir, lockFile))
	ctx, cancel := context.WithTimeout(context.Background(), lockWait)
	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	cancel()
	if !locked {
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("lock memory directory: %w", err)
		}
		return nil, fmt.Errorf("%w: %s", ErrLocked, dir)
	}

	mem, err := openOrCreate(filepath.Join(dir, memoriesIndex))
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	prefs, err := openOrCreate(filepath.Join(dir, preferencesIndex))
	if err != nil {
		_ = mem.Close()
		_ = lock.Unlock()
		return nil, err
	}
	s := newStore(mem, prefs, opts...)
	s.lock = lock
	return s, nil
}

// NewInMemory creates a store that lives only as long as the process.
func NewInMemory(opts ...Option) (*BleveStore, error) {
	mem, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create memory index: %w", err)
	}
	prefs, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		_ = mem.Close()
		return nil, fmt.Errorf("create preference index: %w", err)
	}
	return newStore(mem, prefs, opts...), nil
}

func newStore(mem, prefs bleve.Index, opts ...Option) *BleveStore {
	s := &BleveStore{memories: mem, preferences: prefs, logger: loggerv2.NewNoop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func openOrCreate(path string) (bleve.Index, error) {
	if _, err := os.Stat(path); err == nil {
		// bolt waits forever for its own lock unless told otherwise.
		idx, err := bleve.OpenUsing(path, map[string]interface{}{"bolt_timeout": lockWait.String()})
		if err != nil {
			return nil, fmt.Errorf("open index %s: %w", path, err)
		}
		return idx, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat index %s: %w", path, err)
	}
	idx, err := bleve.New(path, bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index %s: %w", path, err)
	}
	return idx, nil
}

func (s *BleveStore) Add(ctx context.Context, summary string, toolsUsed []string, finalResult string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	rec := Record{
		ID:          uuid.NewString(),
		TaskSummary: summary,
		ToolsUsed:   DedupTools(toolsUsed),
		FinalResult: finalResult,
		CreatedAt:   s.now().UTC(),
	}
	doc := map[string]interface{}{
		"type":         "memory",
		"summary":      rec.TaskSummary,
		"tools_used":   strings.Join(rec.ToolsUsed, ", "),
		"final_result": rec.FinalResult,
		"document":     rec.Document(),
		"created_at":   rec.CreatedAt.Format(time.RFC3339),
	}

	s.mu.Lock()
	err := s.memories.Index(rec.ID, doc)
	s.mu.Unlock()
	if err != nil {
		return Record{}, fmt.Errorf("index memory: %w", err)
	}
	s.logger.Info("Added memory", loggerv2.String("id", rec.ID), loggerv2.Strings("tools_used", rec.ToolsUsed))
	return rec, nil
}

func (s *BleveStore) Query(ctx context.Context, text string, n int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = DefaultQueryResults
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	req := bleve.NewSearchRequest(bleve.NewMatchQuery(text))
	req.Size = n
	req.Fields = []string{"document"}

	s.mu.RLock()
	res, err := s.memories.Search(req)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}
	out := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if doc, ok := hit.Fields["document"].(string); ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *BleveStore) SavePreference(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("preference key is required")
	}
	s.mu.Lock()
	err := s.preferences.Index(key, map[string]interface{}{"key": key, "value": value, "type": "user_preference"})
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("save preference: %w", err)
	}
	s.logger.Info("Saved user preference", loggerv2.String("key", key))
	return nil
}

func (s *BleveStore) Preferences(ctx context.Context) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = maxPreferences
	req.Fields = []string{"value"}

	s.mu.RLock()
	res, err := s.preferences.Search(req)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	out := make(map[string]string, len(res.Hits))
	for _, hit := range res.Hits {
		v, _ := hit.Fields["value"].(string)
		out[hit.ID] = v
	}
	return out, nil
}

func (s *BleveStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := errors.Join(s.memories.Close(), s.preferences.Close())
	if s.lock != nil {
		err = errors.Join(err, s.lock.Unlock())
	}
	return err
}

var _ Store = (*BleveStore)(nil)
