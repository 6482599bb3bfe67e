package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"jarvis/llm"
	loggerv2 "jarvis/logger/v2"
	"jarvis/tools/builtin"
)

const (
	DefaultHealthInterval = 5 * time.Minute
	DefaultMaxAlerts      = 20
	healthProcessLimit    = 15
)

const healthPrompt = `Analyze the following system health data and identify any potential issues.
Focus on:
1. High RAM usage (above 85%%).
2. A single non-system process consuming high CPU (> 50%%).
3. Any unusual process names that might indicate malware or are unexpected.
4. Any errors reported in the data gathering itself.

If there are no significant issues, respond ONLY with "OK".
If you find a potential issue, describe it concisely in one sentence.
Example: "High memory usage detected (92%%) primarily by 'chrome'."

--- SYSTEM INFORMATION ---
%s

--- TOP %d PROCESSES (by Memory) ---
%s

ANALYSIS:`

// Alert is a health problem reported by the model.
type Alert struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Probe gathers the raw system data shown to the model.
type Probe func(ctx context.Context) (system string, processes string)

// HealthMonitor periodically asks the model whether the machine looks healthy.
type HealthMonitor struct {
	model  llm.Client
	probe  Probe
	logger loggerv2.Logger
	now    func() time.Time
	alerts *noticeList[Alert]
	runner periodic
}

type HealthOption func(*HealthMonitor)

func WithHealthLogger(l loggerv2.Logger) HealthOption {
	return func(h *HealthMonitor) { h.logger = l }
}

func WithHealthInterval(d time.Duration) HealthOption {
	return func(h *HealthMonitor) {
		if d > 0 {
			h.runner.interval = d
		}
	}
}

func WithProbe(p Probe) HealthOption {
	return func(h *HealthMonitor) { h.probe = p }
}

func WithMaxAlerts(n int) HealthOption {
	return func(h *HealthMonitor) { h.alerts.max = n }
}

func NewHealthMonitor(model llm.Client, opts ...HealthOption) *HealthMonitor {
	h := &HealthMonitor{
		model:  model,
		probe:  systemProbe,
		logger: loggerv2.NewNoop(),
		now:    time.Now,
		alerts: newNoticeList[Alert](DefaultMaxAlerts, func(a Alert) string { return a.ID }),
	}
	h.runner = periodic{interval: DefaultHealthInterval, fn: func(ctx context.Context) {
		if _, err := h.Check(ctx); err != nil {
			h.logger.Error("Health check failed", err)
		}
	}}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HealthMonitor) Start(ctx context.Context) error {
	h.logger.Info("Health monitor started", loggerv2.Duration("interval", h.runner.interval))
	return h.runner.start(ctx)
}

func (h *HealthMonitor) Stop() { h.runner.stop() }

// Check runs one health check. It returns the new alert, or nil when the
// model answered OK.
func (h *HealthMonitor) Check(ctx context.Context) (*Alert, error) {
	system, procs := h.probe(ctx)
	analysis, err := h.model.Generate(ctx, fmt.Sprintf(healthPrompt, system, healthProcessLimit, procs))
	if err != nil {
		return nil, fmt.Errorf("health analysis: %w", err)
	}
	analysis = strings.TrimSpace(analysis)
	h.logger.Debug("Health analysis", loggerv2.String("analysis", analysis))
	if analysis == "" || strings.HasPrefix(strings.ToUpper(analysis), "OK") {
		return nil, nil
	}

	now := h.now()
	alert := Alert{
		ID:        uuid.NewString(),
		Text:      fmt.Sprintf("Health Alert at %s: %s", now.Format("2006-01-02 15:04:05"), analysis),
		CreatedAt: now,
	}
	h.alerts.add(alert)
	h.logger.Warn("Health alert raised", loggerv2.String("analysis", analysis))
	return &alert, nil
}

func (h *HealthMonitor) Alerts() []Alert { return h.alerts.list() }

func (h *HealthMonitor) Dismiss(id string) error {
	if _, ok := h.alerts.take(id); !ok {
		return ErrUnknownID
	}
	return nil
}

// systemProbe reports machine facts and the top processes by memory.
// Gathering errors are reported inline so the model can see them.
func systemProbe(ctx context.Context) (string, string) {
	system := toJSON(builtin.SystemInfo())
	procs, err := builtin.ProcessList(ctx, healthProcessLimit)
	if err != nil {
		return system, toJSON(map[string]string{"error": err.Error()})
	}
	return system, toJSON(procs)
}

func toJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
