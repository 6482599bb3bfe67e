package confidence

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	loggerv2 "jarvis/logger/v2"
	"jarvis/translog"
)

const (
	// DefaultHistoricalConfidence is used for tools with no history.
	DefaultHistoricalConfidence = 0.8
	// UnreadableHistoricalConfidence is used when the log cannot be read.
	UnreadableHistoricalConfidence = 0.7
	// DefaultHistoryRecords is how many recent executions are considered.
	DefaultHistoryRecords = 50

	historianCacheSize = 256
	historianCacheTTL  = 5 * time.Minute
)

// RecordSource is the read side of the transaction log.
type RecordSource interface {
	Recent(tool string, n int) ([]translog.Record, error)
}

// Historian turns recent success rates into a conservative confidence.
// Results are cached per tool; Invalidate drops a tool's entry and is
// hooked to transaction log appends.
type Historian struct {
	source  RecordSource
	records int
	cache   *expirable.LRU[string, float64]
	logger  loggerv2.Logger

	// generation counts invalidations per tool, so a value computed across
	// an Invalidate is not cached.
	mu         sync.Mutex
	generation map[string]uint64
}

func NewHistorian(source RecordSource, records int, logger loggerv2.Logger) *Historian {
	if records <= 0 {
		records = DefaultHistoryRecords
	}
	if logger == nil {
		logger = loggerv2.NewNoop()
	}
	return &Historian{
		source:     source,
		records:    records,
		cache:      expirable.NewLRU[string, float64](historianCacheSize, nil, historianCacheTTL),
		logger:     logger,
		generation: map[string]uint64{},
	}
}

// Confidence returns rate^1.5 over the last N executions of tool. The
// exponent pulls mediocre rates down: 50% success gives about 0.35.
func (h *Historian) Confidence(tool string) float64 {
	if v, ok := h.cache.Get(tool); ok {
		return v
	}
	h.mu.Lock()
	gen := h.generation[tool]
	h.mu.Unlock()

	v := h.compute(tool)

	h.mu.Lock()
	if h.generation[tool] == gen {
		h.cache.Add(tool, v)
	}
	h.mu.Unlock()
	return v
}

func (h *Historian) compute(tool string) float64 {
	if h.source == nil {
		return DefaultHistoricalConfidence
	}
	recs, err := h.source.Recent(tool, h.records)
	if err != nil {
		if errors.Is(err, translog.ErrNoLog) {
			return DefaultHistoricalConfidence
		}
		h.logger.Warn("Transaction log unreadable", loggerv2.Error(err))
		return UnreadableHistoricalConfidence
	}
	if len(recs) == 0 {
		return DefaultHistoricalConfidence
	}
	ok := 0
	for _, r := range recs {
		if r.Success {
			ok++
		}
	}
	rate := float64(ok) / float64(len(recs))
	return clamp(math.Pow(rate, 1.5))
}

// PlanConfidence is the lowest historical confidence across tools.
func (h *Historian) PlanConfidence(tools []string) float64 {
	if len(tools) == 0 {
		return DefaultHistoricalConfidence
	}
	low := 1.0
	for _, t := range tools {
		low = math.Min(low, h.Confidence(t))
	}
	return low
}

// Invalidate forgets the cached value for tool.
func (h *Historian) Invalidate(tool string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.generation[tool]++
	h.cache.Remove(tool)
}
