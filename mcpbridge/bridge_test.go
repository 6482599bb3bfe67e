package mcpbridge

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	loggerv2 "jarvis/logger/v2"
	"jarvis/tools"
	"jarvis/translog"
)

type fixedAgent struct{ goals []string }

func (f *fixedAgent) Think(_ context.Context, goal string) (string, error) {
	f.goals = append(f.goals, goal)
	return "done: " + goal, nil
}

func newRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	reg.MustRegister(tools.Definition{
		Name:   "echo",
		Schema: tools.NewSchema(tools.Required("text", tools.TypeString, "")),
		Func: func(_ context.Context, a tools.Args) (any, error) {
			return a.String("text"), nil
		},
	})
	return reg
}

func request(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestCallToolReturnsEnvelope(t *testing.T) {
	b := New(newRegistry(t), nil)

	res, err := b.callTool("echo")(context.Background(), request("echo", map[string]any{"text": "hi"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	var env tools.Result
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &env))
	assert.Equal(t, tools.StatusOK, env.Status)
	assert.Equal(t, "hi", env.Data)

	res, err = b.callTool("echo")(context.Background(), request("echo", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "validation_error")
}

func TestCallToolIsRecordedAsMCP(t *testing.T) {
	log, err := translog.Open(filepath.Join(t.TempDir(), "transaction_log.jsonl"))
	require.NoError(t, err)
	b := New(newRegistry(t), tools.NewExecutor(tools.WithCallHook(log.Hook())))

	_, err = b.callTool("echo")(context.Background(), request("echo", map[string]any{"text": "hi"}))
	require.NoError(t, err)

	records, err := log.All()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "echo", records[0].ToolName)
	assert.Equal(t, translog.SourceMCP, records[0].Source)
	assert.True(t, records[0].Success)
}

func TestDestructiveToolsAreNotServed(t *testing.T) {
	reg := newRegistry(t)
	ran := 0
	reg.MustRegister(tools.Definition{
		Name: "execute_shell_command",
		Func: func(context.Context, tools.Args) (any, error) {
			ran++
			return "ran", nil
		},
	})
	b := New(reg, nil)

	b.mu.Lock()
	_, published := b.added["execute_shell_command"]
	_, echo := b.added["echo"]
	b.mu.Unlock()
	assert.False(t, published)
	assert.True(t, echo)

	res, err := b.callTool("execute_shell_command")(context.Background(), request("execute_shell_command", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), thinkTool)
	assert.Zero(t, ran)
}

func TestSyncPublishesNewTools(t *testing.T) {
	reg := newRegistry(t)
	b := New(reg, nil)
	assert.Equal(t, 0, b.Sync())

	require.NoError(t, reg.RegisterDynamic(tools.Definition{
		Name: "word_count",
		Func: func(context.Context, tools.Args) (any, error) { return 0, nil },
	}))
	assert.Equal(t, 1, b.Sync())
	assert.Equal(t, 0, b.Sync())
}

func TestThinkTool(t *testing.T) {
	agent := &fixedAgent{}
	b := New(newRegistry(t), nil, WithAgent(agent))

	res, err := b.think(context.Background(), request(thinkTool, map[string]any{"goal": "tidy downloads"}))
	require.NoError(t, err)
	assert.Equal(t, "done: tidy downloads", text(t, res))
	assert.Equal(t, []string{"tidy downloads"}, agent.goals)

	res, err = b.think(context.Background(), request(thinkTool, map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

type captureLogger struct {
	loggerv2.Logger
	warnings []string
}

func (c *captureLogger) Warn(msg string, fields ...loggerv2.Field) {
	for _, f := range fields {
		if s, ok := f.Value.(string); ok {
			msg += " " + s
		}
	}
	c.warnings = append(c.warnings, msg)
}

func TestErrorLoggerRoutesToStructuredLogger(t *testing.T) {
	l := &captureLogger{Logger: loggerv2.NewNoop()}
	newErrorLogger(l).Printf("read error: %s", "EOF")
	require.Len(t, l.warnings, 1)
	assert.Equal(t, "MCP transport read error: EOF", l.warnings[0])
}
