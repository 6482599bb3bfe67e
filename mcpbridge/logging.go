package mcpbridge

import (
	"log"
	"strings"

	loggerv2 "jarvis/logger/v2"
)

// logWriter routes the stdio transport's *log.Logger output into the
// structured logger, since stdout belongs to the protocol.
type logWriter struct {
	logger loggerv2.Logger
}

func (w logWriter) Write(p []byte) (int, error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		w.logger.Warn("MCP transport", loggerv2.String("detail", msg))
	}
	return len(p), nil
}

func newErrorLogger(l loggerv2.Logger) *log.Logger {
	return log.New(logWriter{logger: l}, "", 0)
}
