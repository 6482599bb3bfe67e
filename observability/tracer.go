package observability

import (
	"jarvis/events"
	loggerv2 "jarvis/logger/v2"
)

// LogTracer writes every agent event as a structured log line. Tool and
// decision events are logged at info, the rest at debug.
type LogTracer struct {
	logger loggerv2.Logger
}

func NewLogTracer(logger loggerv2.Logger) *LogTracer {
	if logger == nil {
		logger = loggerv2.NewNoop()
	}
	return &LogTracer{logger: logger}
}

func (t *LogTracer) OnEvent(ev *events.Event) {
	fields := []loggerv2.Field{
		loggerv2.String("event", string(ev.Type)),
		loggerv2.String("episode_id", ev.EpisodeID),
		loggerv2.String("component", ev.Component),
	}
	switch d := ev.Data.(type) {
	case *events.DecisionEvent:
		t.logger.Info("Plan gated", append(fields,
			loggerv2.String("decision", d.Decision),
			loggerv2.Float64("confidence", d.Confidence),
			loggerv2.Bool("destructive", d.Destructive))...)
	case *events.ToolCallEndEvent:
		t.logger.Info("Tool call finished", append(fields,
			loggerv2.String("tool", d.ToolName),
			loggerv2.Duration("took", d.Duration))...)
	case *events.ToolCallErrorEvent:
		t.logger.Warn("Tool call failed", append(fields,
			loggerv2.String("tool", d.ToolName),
			loggerv2.String("code", d.ErrorCode))...)
	case *events.EpisodeAbortEvent:
		t.logger.Warn("Episode aborted", append(fields,
			loggerv2.String("reason", d.Reason),
			loggerv2.Int("turns", d.Turns))...)
	case *events.EpisodeEndEvent:
		t.logger.Info("Episode finished", append(fields,
			loggerv2.Int("turns", d.Turns),
			loggerv2.Strings("tools_used", d.ToolsUsed))...)
	default:
		t.logger.Debug("Agent event", fields...)
	}
}

var _ events.EventObserver = (*LogTracer)(nil)
