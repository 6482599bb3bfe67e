// Package observability turns agent events and tool executions into
// prometheus metrics and structured log lines.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jarvis/events"
	"jarvis/tools"
)

// Metrics owns a private registry so tests and multiple agents do not
// collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	Episodes      *prometheus.CounterVec
	EpisodeTurns  prometheus.Histogram
	Decisions     *prometheus.CounterVec
	Rejections    prometheus.Counter
	ToolCalls     *prometheus.CounterVec
	ToolDuration  *prometheus.HistogramVec
	LLMErrors     *prometheus.CounterVec
	LLMDuration   prometheus.Histogram
	Throttles     prometheus.Counter
	MemoriesSaved prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Episodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jarvis_episodes_total",
			Help: "Completed episodes by outcome.",
		}, []string{"outcome"}), // answered | aborted
		EpisodeTurns: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "jarvis_episode_turns",
			Help:    "Turns used per episode.",
			Buckets: prometheus.LinearBuckets(1, 2, 8),
		}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jarvis_gate_decisions_total",
			Help: "Gating decisions by outcome.",
		}, []string{"decision"}), // GO | ASK | STOP
		Rejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jarvis_plan_rejections_total",
			Help: "Model outputs that could not be used as a plan.",
		}),
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jarvis_tool_calls_total",
			Help: "Tool executions by tool and status.",
		}, []string{"tool", "status"}),
		ToolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jarvis_tool_duration_seconds",
			Help:    "Tool execution time.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
		LLMErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jarvis_llm_errors_total",
			Help: "Model call failures by kind.",
		}, []string{"kind"}),
		LLMDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "jarvis_llm_duration_seconds",
			Help:    "Model call latency.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
		Throttles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jarvis_llm_throttles_total",
			Help: "Rate limited model calls.",
		}),
		MemoriesSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jarvis_memories_saved_total",
			Help: "Task summaries written to long-term memory.",
		}),
	}
	m.registry.MustRegister(
		m.Episodes, m.EpisodeTurns, m.Decisions, m.Rejections,
		m.ToolCalls, m.ToolDuration, m.LLMErrors, m.LLMDuration,
		m.Throttles, m.MemoriesSaved,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the metrics in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// OnEvent implements events.EventObserver.
func (m *Metrics) OnEvent(ev *events.Event) {
	switch d := ev.Data.(type) {
	case *events.EpisodeEndEvent:
		m.Episodes.WithLabelValues("answered").Inc()
		m.EpisodeTurns.Observe(float64(d.Turns))
	case *events.EpisodeAbortEvent:
		m.Episodes.WithLabelValues("aborted").Inc()
		m.EpisodeTurns.Observe(float64(d.Turns))
	case *events.DecisionEvent:
		m.Decisions.WithLabelValues(d.Decision).Inc()
	case *events.PlanRejectedEvent:
		m.Rejections.Inc()
	case *events.LLMGenerationEndEvent:
		m.LLMDuration.Observe(d.Duration.Seconds())
	case *events.LLMGenerationErrorEvent:
		m.LLMErrors.WithLabelValues(d.Kind).Inc()
	case *events.ThrottlingEvent:
		m.Throttles.Inc()
	case *events.MemoryStoredEvent:
		m.MemoriesSaved.Inc()
	}
}

// ObserveTool is a tools.Observer; every execution path (agent, HTTP,
// MCP, watchers) goes through the executor, so tool metrics live here
// rather than on agent events.
func (m *Metrics) ObserveTool(tool string, res tools.Result, took time.Duration) {
	m.ToolCalls.WithLabelValues(tool, string(res.Status)).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(took.Seconds())
}

var _ events.EventObserver = (*Metrics)(nil)
