// Package mcpbridge serves the tool registry as an MCP stdio server, so
// other MCP clients can call Jarvis tools. Calls go through the same
// executor as the planning loop and return the result envelope as JSON.
// Destructive tools are not published: there is no one on stdio to confirm
// them, so they stay reachable only through jarvis_think.
package mcpbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"jarvis/confidence"
	loggerv2 "jarvis/logger/v2"
	"jarvis/tools"
	"jarvis/translog"
)

const (
	serverName    = "jarvis"
	serverVersion = "1.0.0"
	thinkTool     = "jarvis_think"
)

// Thinker runs an episode for the jarvis_think tool.
type Thinker interface {
	Think(ctx context.Context, goal string) (string, error)
}

// Bridge keeps an MCP server in step with a tool registry.
type Bridge struct {
	server   *server.MCPServer
	registry *tools.Registry
	executor *tools.Executor
	agent    Thinker
	logger   loggerv2.Logger

	mu    sync.Mutex
	added map[string]struct{}
}

type Option func(*Bridge)

func WithLogger(l loggerv2.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// WithAgent also exposes a jarvis_think tool that runs a full episode.
func WithAgent(a Thinker) Option {
	return func(b *Bridge) { b.agent = a }
}

func New(reg *tools.Registry, exec *tools.Executor, opts ...Option) *Bridge {
	b := &Bridge{
		server:   server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(true)),
		registry: reg,
		executor: exec,
		logger:   loggerv2.NewNoop(),
		added:    map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.executor == nil {
		b.executor = tools.NewExecutor(tools.WithExecutorLogger(b.logger))
	}
	if b.agent != nil {
		schema := tools.NewSchema(tools.Required("goal", tools.TypeString, "What you want Jarvis to accomplish."))
		b.addTool(thinkTool, "Runs a full Jarvis episode for a natural-language goal and returns the final answer.", schema, b.think)
	}
	b.Sync()
	return b
}

// Server is the underlying MCP server.
func (b *Bridge) Server() *server.MCPServer { return b.server }

// Sync publishes registry tools not yet exposed, such as dynamic tools
// created since the last call. It returns how many were added.
func (b *Bridge) Sync() int {
	n := 0
	for _, def := range b.registry.Definitions() {
		if confidence.IsDestructive(def.Name) {
			continue
		}
		if b.addTool(def.Name, def.Description, def.Schema, b.callTool(def.Name)) {
			n++
		}
	}
	return n
}

func (b *Bridge) addTool(name, description string, schema tools.Schema, handler server.ToolHandlerFunc) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.added[name]; ok {
		return false
	}
	raw, err := json.Marshal(schema.JSONSchema())
	if err != nil {
		b.logger.Warn("Skipping tool with unencodable schema", loggerv2.String("tool", name), loggerv2.Error(err))
		return false
	}
	b.server.AddTool(mcp.NewToolWithRawSchema(name, description, raw), handler)
	b.added[name] = struct{}{}
	return true
}

func (b *Bridge) callTool(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if confidence.IsDestructive(name) {
			b.logger.Warn("Refusing destructive MCP tool call", loggerv2.String("tool", name))
			return mcp.NewToolResultError(fmt.Sprintf("%s needs confirmation; ask %s instead", name, thinkTool)), nil
		}
		ctx = translog.WithAttribution(ctx, translog.Attribution{Source: translog.SourceMCP})
		res := b.executor.Call(ctx, b.registry, name, req.GetArguments())
		b.logger.Info("MCP tool call", loggerv2.String("tool", name), loggerv2.String("status", string(res.Status)))
		// create_new_tool may have added tools.
		if added := b.Sync(); added > 0 {
			b.logger.Info("Published new tools", loggerv2.Int("count", added))
		}
		if !res.IsOK() {
			return mcp.NewToolResultError(res.Text()), nil
		}
		return mcp.NewToolResultText(res.Text()), nil
	}
}

func (b *Bridge) think(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	goal, _ := req.GetArguments()["goal"].(string)
	if goal == "" {
		return mcp.NewToolResultError("goal is required"), nil
	}
	answer, err := b.agent.Think(ctx, goal)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%s (%v)", answer, err)), nil
	}
	return mcp.NewToolResultText(answer), nil
}

// ServeStdio serves MCP over stdin and stdout until ctx is done or stdin
// closes.
func (b *Bridge) ServeStdio(ctx context.Context) error {
	b.mu.Lock()
	n := len(b.added)
	b.mu.Unlock()
	b.logger.Info("MCP bridge serving on stdio", loggerv2.Int("tools", n))

	stdio := server.NewStdioServer(b.server)
	stdio.SetErrorLogger(newErrorLogger(b.logger))
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}
