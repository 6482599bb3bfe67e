package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	loggerv2 "jarvis/logger/v2"
	"jarvis/translog"
)

const (
	DefaultAnalyzerInterval = 15 * time.Minute
	DefaultSuggestCooldown  = time.Hour

	// minPairOccurrences is how often a command pair must repeat before a tool is suggested.
	minPairOccurrences = 3
	topPairs           = 3
	shellTool          = "execute_shell_command"
)

// RecordReader is the read side of the transaction log.
type RecordReader interface {
	All() ([]translog.Record, error)
}

// Suggestion proposes turning a repeated command sequence into a tool.
type Suggestion struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Text      string    `json:"text"`
	Commands  []string  `json:"commands"`
	Count     int       `json:"count"`
	CreatedAt time.Time `json:"created_at"`
}

// Analyzer looks for pairs of shell commands the agent keeps running back
// to back.
type Analyzer struct {
	log      RecordReader
	logger   loggerv2.Logger
	cooldown time.Duration
	now      func() time.Time

	suggestions *noticeList[Suggestion]
	histMu      sync.Mutex
	history     map[string]time.Time
	runner      periodic
}

type AnalyzerOption func(*Analyzer)

func WithAnalyzerLogger(l loggerv2.Logger) AnalyzerOption {
	return func(a *Analyzer) { a.logger = l }
}

func WithAnalyzerInterval(d time.Duration) AnalyzerOption {
	return func(a *Analyzer) {
		if d > 0 {
			a.runner.interval = d
		}
	}
}

func WithCooldown(d time.Duration) AnalyzerOption {
	return func(a *Analyzer) { a.cooldown = d }
}

func WithAnalyzerClock(now func() time.Time) AnalyzerOption {
	return func(a *Analyzer) { a.now = now }
}

func NewAnalyzer(log RecordReader, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		log:         log,
		logger:      loggerv2.NewNoop(),
		cooldown:    DefaultSuggestCooldown,
		now:         time.Now,
		suggestions: newNoticeList[Suggestion](0, func(s Suggestion) string { return s.ID }),
		history:     map[string]time.Time{},
	}
	a.runner = periodic{interval: DefaultAnalyzerInterval, fn: func(context.Context) { a.Analyze() }}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Analyzer) Start(ctx context.Context) error {
	a.logger.Info("Pattern analyzer started", loggerv2.Duration("interval", a.runner.interval))
	return a.runner.start(ctx)
}

func (a *Analyzer) Stop() { a.runner.stop() }

// Analyze runs one pass over the log and returns the suggestions it added.
func (a *Analyzer) Analyze() []Suggestion {
	records, err := a.log.All()
	if err != nil {
		if !errors.Is(err, translog.ErrNoLog) {
			a.logger.Error("Reading transaction log for analysis failed", err)
		}
		return nil
	}

	var added []Suggestion
	for _, p := range commandPairs(records) {
		if p.count < minPairOccurrences {
			continue
		}
		id := "new_tool_" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(p.first+"\x00"+p.second)).String()
		now := a.now()

		a.histMu.Lock()
		last, seen := a.history[id]
		cooling := seen && now.Sub(last) < a.cooldown
		a.histMu.Unlock()
		if cooling || a.suggestions.has(id) {
			continue
		}

		s := Suggestion{
			ID:        id,
			Type:      "improvement",
			Text:      fmt.Sprintf("Create a new tool for the repeated command sequence: `%s` -> `%s`?", p.first, p.second),
			Commands:  []string{p.first, p.second},
			Count:     p.count,
			CreatedAt: now,
		}
		a.suggestions.add(s)
		a.histMu.Lock()
		a.history[id] = now
		a.histMu.Unlock()
		a.logger.Info("New tool suggested", loggerv2.String("first", p.first), loggerv2.String("second", p.second), loggerv2.Int("count", p.count))
		added = append(added, s)
	}
	return added
}

func (a *Analyzer) Suggestions() []Suggestion { return a.suggestions.list() }

// Dismiss removes a suggestion. Its cooldown still applies.
func (a *Analyzer) Dismiss(id string) error {
	if _, ok := a.suggestions.take(id); !ok {
		return ErrUnknownID
	}
	return nil
}

type pairCount struct {
	first, second string
	count         int
}

// commandPairs counts consecutive pairs of successful shell commands and
// returns the most common ones, ties broken by first appearance.
func commandPairs(records []translog.Record) []pairCount {
	var commands []string
	for _, r := range records {
		if r.ToolName != shellTool || !r.Success {
			continue
		}
		if cmd, ok := r.Parameters["command"].(string); ok && cmd != "" {
			commands = append(commands, cmd)
		}
	}

	byPair := map[[2]string]*pairCount{}
	var pairs []*pairCount
	for i := 1; i < len(commands); i++ {
		key := [2]string{commands[i-1], commands[i]}
		p, ok := byPair[key]
		if !ok {
			p = &pairCount{first: key[0], second: key[1]}
			byPair[key] = p
			pairs = append(pairs, p)
		}
		p.count++
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].count > pairs[j].count })
	if len(pairs) > topPairs {
		pairs = pairs[:topPairs]
	}
	out := make([]pairCount, len(pairs))
	for i, p := range pairs {
		out[i] = *p
	}
	return out
}
