package translog

import (
	"context"

	loggerv2 "jarvis/logger/v2"
	"jarvis/tools"
)

// Sources of a tool execution.
const (
	SourceAgent     = "agent"
	SourceHTTP      = "http"
	SourceMCP       = "mcp"
	SourceDownloads = "downloads"
)

// Attribution says who ran a tool call and, for planned calls, how
// confident the gate was.
type Attribution struct {
	Source     string
	EpisodeID  string
	Confidence *Confidence
}

type attributionKey struct{}

// WithAttribution tags the tool calls made with ctx.
func WithAttribution(ctx context.Context, a Attribution) context.Context {
	return context.WithValue(ctx, attributionKey{}, a)
}

func AttributionFrom(ctx context.Context) (Attribution, bool) {
	a, ok := ctx.Value(attributionKey{}).(Attribution)
	return a, ok
}

// Hook records every call an executor makes, whoever the caller is.
// Install it with tools.WithCallHook.
func (l *Log) Hook() tools.CallHook {
	return func(ctx context.Context, tool string, args map[string]any, res tools.Result) {
		a, _ := AttributionFrom(ctx)
		rec := Record{
			EpisodeID:  a.EpisodeID,
			Source:     a.Source,
			ToolName:   tool,
			Parameters: args,
			Confidence: a.Confidence,
			Success:    res.IsOK(),
			Result:     res.Summary(),
		}
		if !res.IsOK() {
			rec.ErrorFeedback = res.Text()
		}
		if err := l.Append(rec); err != nil {
			l.logger.Warn("Tool call not recorded", loggerv2.String("tool", tool), loggerv2.Error(err))
		}
	}
}
