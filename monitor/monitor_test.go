package monitor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarvis/llm/llmtest"
	"jarvis/tools"
	"jarvis/tools/builtin"
	"jarvis/translog"
)

type staticRecords struct {
	records []translog.Record
	err     error
}

func (s *staticRecords) All() ([]translog.Record, error) { return s.records, s.err }

func shell(cmd string, ok bool) translog.Record {
	return translog.Record{ToolName: "execute_shell_command", Parameters: map[string]any{"command": cmd}, Success: ok}
}

func TestAnalyzerSuggestsRepeatedPairs(t *testing.T) {
	var recs []translog.Record
	for i := 0; i < 3; i++ {
		recs = append(recs, shell("git pull", true), shell("make test", true))
	}
	recs = append(recs, shell("rm x", false), translog.Record{ToolName: "move_file", Success: true})

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	a := NewAnalyzer(&staticRecords{records: recs}, WithAnalyzerClock(func() time.Time { return now }))

	added := a.Analyze()
	// "git pull" -> "make test" occurs 3 times; the reverse pair only twice.
	require.Len(t, added, 1)
	assert.Equal(t, []string{"git pull", "make test"}, added[0].Commands)
	assert.Equal(t, 3, added[0].Count)
	assert.Contains(t, added[0].Text, "`git pull` -> `make test`")

	assert.Empty(t, a.Analyze(), "pending suggestion is not repeated")

	require.NoError(t, a.Dismiss(added[0].ID))
	assert.Empty(t, a.Suggestions())
	assert.Empty(t, a.Analyze(), "cooldown holds after dismissal")

	now = now.Add(DefaultSuggestCooldown + time.Minute)
	again := a.Analyze()
	require.Len(t, again, 1)
	assert.Equal(t, added[0].ID, again[0].ID)

	assert.ErrorIs(t, a.Dismiss("nope"), ErrUnknownID)
}

func TestAnalyzerWithoutLog(t *testing.T) {
	a := NewAnalyzer(&staticRecords{err: translog.ErrNoLog})
	assert.Empty(t, a.Analyze())
}

func TestCommandPairsTopThree(t *testing.T) {
	var recs []translog.Record
	for _, c := range []string{"a", "b", "c", "d", "e", "a", "b"} {
		recs = append(recs, shell(c, true))
	}
	pairs := commandPairs(recs)
	require.Len(t, pairs, 3)
	assert.Equal(t, pairCount{first: "a", second: "b", count: 2}, pairs[0])
	assert.Equal(t, "b", pairs[1].first)
	assert.Equal(t, "c", pairs[2].first)
}

func fixedProbe(context.Context) (string, string) { return `{"memory_percent": 95}`, `[]` }

func TestHealthMonitor(t *testing.T) {
	model := llmtest.New(
		llmtest.Reply("OK"),
		llmtest.Reply("High memory usage detected (95%)."),
	)
	h := NewHealthMonitor(model, WithProbe(fixedProbe))

	alert, err := h.Check(context.Background())
	require.NoError(t, err)
	assert.Nil(t, alert)

	alert, err = h.Check(context.Background())
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Contains(t, alert.Text, "High memory usage detected (95%).")
	assert.Contains(t, model.Prompts()[0], `{"memory_percent": 95}`)
	assert.Contains(t, model.Prompts()[0], "High RAM usage (above 85%).")

	require.Len(t, h.Alerts(), 1)
	require.NoError(t, h.Dismiss(alert.ID))
	assert.Empty(t, h.Alerts())
}

func TestHealthMonitorKeepsLastAlerts(t *testing.T) {
	model := llmtest.New()
	model.Fallback = &llmtest.Step{Text: "Disk almost full."}
	h := NewHealthMonitor(model, WithProbe(fixedProbe), WithMaxAlerts(2))
	for i := 0; i < 5; i++ {
		_, err := h.Check(context.Background())
		require.NoError(t, err)
	}
	assert.Len(t, h.Alerts(), 2)
}

func TestHealthMonitorModelError(t *testing.T) {
	h := NewHealthMonitor(llmtest.New(llmtest.Fail(errors.New("down"))), WithProbe(fixedProbe))
	_, err := h.Check(context.Background())
	assert.Error(t, err)
}

func TestHealthMonitorStartStop(t *testing.T) {
	model := llmtest.New()
	model.Fallback = &llmtest.Step{Text: "OK"}
	h := NewHealthMonitor(model, WithProbe(fixedProbe), WithHealthInterval(time.Hour))
	require.NoError(t, h.Start(context.Background()))
	assert.ErrorIs(t, h.Start(context.Background()), ErrAlreadyRunning)
	assert.Eventually(t, func() bool { return model.Calls() >= 1 }, time.Second, 10*time.Millisecond)
	h.Stop()
	h.Stop()
}

func newFileRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	require.NoError(t, builtin.RegisterAll(reg, builtin.Deps{HomeDir: t.TempDir()}))
	return reg
}

func TestDownloadsProposeAndApprove(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "invoice.pdf")
	require.NoError(t, os.WriteFile(file, []byte("pdf"), 0o644))
	dest := filepath.Join(dir, "Invoices")

	model := llmtest.New(llmtest.Reply("```json\n{\"tool_name\": \"move_file\", \"args\": {\"source_path\": \"/elsewhere\", \"destination_folder\": \"" + dest + "\"}}\n```"))
	log, err := translog.Open(filepath.Join(t.TempDir(), "transaction_log.jsonl"))
	require.NoError(t, err)
	w := NewDownloadsWatcher(dir, model, newFileRegistry(t), tools.NewExecutor(tools.WithCallHook(log.Hook())))

	action, err := w.Propose(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, "move_file", action.ToolName)
	assert.Equal(t, file, action.Args["source_path"], "action is pinned to the new file")
	assert.Contains(t, model.Prompts()[0], "- move_file(")
	require.Len(t, w.Actions(), 1)

	res, err := w.Approve(context.Background(), action.ID)
	require.NoError(t, err)
	assert.True(t, res.IsOK(), res.ErrorText())
	assert.FileExists(t, filepath.Join(dest, "invoice.pdf"))
	assert.Empty(t, w.Actions())

	records, err := log.All()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "move_file", records[0].ToolName)
	assert.Equal(t, translog.SourceDownloads, records[0].Source)

	_, err = w.Approve(context.Background(), action.ID)
	assert.ErrorIs(t, err, ErrUnknownID)
}

func TestDownloadsRejectsOtherTools(t *testing.T) {
	model := llmtest.New(
		llmtest.Reply("```json\n{\"tool_name\": \"execute_shell_command\", \"args\": {\"command\": \"rm -rf /\"}}\n```"),
		llmtest.Reply("no json"),
	)
	w := NewDownloadsWatcher(t.TempDir(), model, newFileRegistry(t), nil)
	_, err := w.Propose(context.Background(), "/tmp/x.bin")
	assert.Error(t, err)
	_, err = w.Propose(context.Background(), "/tmp/x.bin")
	assert.Error(t, err)
	assert.Empty(t, w.Actions())
}

func TestDownloadsWatcherSeesNewFiles(t *testing.T) {
	dir := t.TempDir()
	model := llmtest.New()
	model.Fallback = &llmtest.Step{Text: "```json\n{\"tool_name\": \"delete_junk_file\", \"args\": {\"reason\": \"partial download\"}}\n```"}
	w := NewDownloadsWatcher(dir, model, newFileRegistry(t), nil, WithSettleDelay(0))
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "tmp123.part"), []byte("x"), 0o644))
	require.Eventually(t, func() bool { return len(w.Actions()) == 1 }, 5*time.Second, 20*time.Millisecond)

	action := w.Actions()[0]
	assert.Equal(t, "delete_junk_file", action.ToolName)
	assert.Equal(t, filepath.Join(dir, "tmp123.part"), action.Args["file_path"])
	require.NoError(t, w.Dismiss(action.ID))
}
