package agent

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarvis/confidence"
	"jarvis/confirm"
	"jarvis/events"
	"jarvis/llm"
	"jarvis/llm/llmtest"
	"jarvis/memory"
	"jarvis/tools"
	"jarvis/translog"
)

type fakeMemory struct {
	mu      sync.Mutex
	records []memory.Record
	prefs   map[string]string
	recall  []string
}

func (m *fakeMemory) Add(_ context.Context, summary string, toolsUsed []string, final string) (memory.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := memory.Record{ID: "m1", TaskSummary: summary, ToolsUsed: toolsUsed, FinalResult: final}
	m.records = append(m.records, rec)
	return rec, nil
}

func (m *fakeMemory) Query(context.Context, string, int) ([]string, error) { return m.recall, nil }

func (m *fakeMemory) SavePreference(_ context.Context, key, value string) error {
	m.prefs[key] = value
	return nil
}

func (m *fakeMemory) Preferences(context.Context) (map[string]string, error) { return m.prefs, nil }

func (m *fakeMemory) Close() error { return nil }

// recordingConfirmer answers every request with a fixed outcome.
type recordingConfirmer struct {
	outcome  confirm.Outcome
	requests []confirm.Request
}

func (c *recordingConfirmer) Confirm(_ context.Context, req confirm.Request) confirm.Outcome {
	c.requests = append(c.requests, req)
	return c.outcome
}

type harness struct {
	reg   *tools.Registry
	calls map[string]int
	mu    sync.Mutex
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{reg: tools.NewRegistry(), calls: map[string]int{}}
	counted := func(name string, fn tools.Func) tools.Func {
		return func(ctx context.Context, args tools.Args) (any, error) {
			h.mu.Lock()
			h.calls[name]++
			h.mu.Unlock()
			return fn(ctx, args)
		}
	}
	h.reg.MustRegister(
		tools.Definition{
			Name:        "rename_file",
			Description: "Renames a file.",
			Category:    confidence.CategoryFileOps,
			Schema: tools.NewSchema(
				tools.Required("current_path", tools.TypeString, "file to rename"),
				tools.Required("new_name", tools.TypeString, "new file name"),
			),
			Func: counted("rename_file", func(_ context.Context, a tools.Args) (any, error) {
				return "renamed to " + a.String("new_name"), nil
			}),
		},
		tools.Definition{
			Name:     "echo",
			Category: confidence.CategoryTaskSpecific,
			Schema:   tools.NewSchema(tools.Required("text", tools.TypeString, "")),
			Func: counted("echo", func(_ context.Context, a tools.Args) (any, error) {
				return a.String("text"), nil
			}),
		},
		tools.Definition{
			Name:     "fail",
			Category: confidence.CategoryTaskSpecific,
			Func: counted("fail", func(context.Context, tools.Args) (any, error) {
				return nil, tools.Errorf("boom", "it broke")
			}),
		},
		tools.Definition{
			Name:     "execute_shell_command",
			Category: confidence.CategoryExecution,
			Schema:   tools.NewSchema(tools.Required("command", tools.TypeString, "")),
			Func: counted("execute_shell_command", func(context.Context, tools.Args) (any, error) {
				return "ran", nil
			}),
		},
	)
	return h
}

func (h *harness) count(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[name]
}

func plan(confidence int, calls string) string {
	return "Here is my plan.\n```json\n{\"thought\": \"t\", \"confidence\": " +
		itoa(confidence) + ", \"rationale\": \"r\", \"tool_calls\": [" + calls + "]}\n```"
}

func itoa(n int) string {
	if n == 10 {
		return "10"
	}
	return string(rune('0' + n))
}

const (
	renameCall = `{"tool_name": "rename_file", "args": {"current_path": "/tmp/report.txt", "new_name": "final.txt"}}`
	echoCall   = `{"tool_name": "echo", "args": {"text": "hi"}}`
	failCall   = `{"tool_name": "fail", "args": {}}`
	shellCall  = `{"tool_name": "execute_shell_command", "args": {"command": "ls"}}`
)

func TestRenameScenarioRemembersTask(t *testing.T) {
	h := newHarness(t)
	model := llmtest.New(
		llmtest.Reply(plan(9, renameCall)),
		llmtest.Reply("Final Answer: The file was renamed to final.txt."),
		llmtest.Reply("Renamed report.txt to final.txt."),
	)
	mem := &fakeMemory{prefs: map[string]string{}}
	log, err := translog.Open(filepath.Join(t.TempDir(), "tx.jsonl"))
	require.NoError(t, err)
	rec := events.NewRecorder(100)
	emitter := events.NewEventEmitter()
	emitter.AddObserver(rec)

	a := New(model, h.reg, WithMemory(mem), WithTransactionLog(log), WithEmitter(emitter))
	answer, err := a.Think(context.Background(), "Rename /tmp/report.txt to final.txt")
	require.NoError(t, err)

	assert.Equal(t, "The file was renamed to final.txt.", answer)
	assert.Equal(t, 1, h.count("rename_file"))
	assert.Equal(t, 3, model.Calls())

	require.Len(t, mem.records, 1)
	assert.Equal(t, []string{"rename_file"}, mem.records[0].ToolsUsed)
	assert.Equal(t, "Renamed report.txt to final.txt.", mem.records[0].TaskSummary)

	records, err := log.All()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Success)
	assert.Equal(t, "rename_file", records[0].ToolName)
	require.NotNil(t, records[0].Confidence)
	assert.Equal(t, "GO", records[0].Confidence.Decision)
	assert.InDelta(t, 0.9, records[0].Confidence.AdjustedScore, 1e-9)

	second := model.Prompts()[1]
	assert.Contains(t, second, "TOOL_RESULTS:\n--- Output from rename_file ---")
	assert.Contains(t, second, "renamed to final.txt")
	assert.Contains(t, model.Prompts()[2], "Original Goal: Rename /tmp/report.txt to final.txt.")

	var types []events.EventType
	for _, ev := range rec.Events() {
		types = append(types, ev.Type)
	}
	assert.Equal(t, events.EpisodeStart, types[0])
	assert.Equal(t, events.EpisodeEnd, types[len(types)-1])
	assert.Contains(t, types, events.DecisionMade)
	assert.Contains(t, types, events.ToolCallEnd)
	assert.Contains(t, types, events.MemoryStored)
}

func TestNoMemoryWithoutTools(t *testing.T) {
	h := newHarness(t)
	model := llmtest.New(llmtest.Reply("Final Answer: 4"))
	mem := &fakeMemory{prefs: map[string]string{"units": "metric"}, recall: []string{"Task Summary: old"}}

	answer, err := New(model, h.reg, WithMemory(mem)).Think(context.Background(), "what is 2+2")
	require.NoError(t, err)
	assert.Equal(t, "4", answer)
	assert.Empty(t, mem.records)
	assert.Equal(t, 1, model.Calls())

	p := model.Prompts()[0]
	assert.Contains(t, p, "- Task Summary: old")
	assert.Contains(t, p, "- units: metric")
	assert.Contains(t, p, "USER_GOAL: what is 2+2")
}

func TestUnparsableResponsesAbort(t *testing.T) {
	h := newHarness(t)
	model := llmtest.New(
		llmtest.Reply("I will just talk."),
		llmtest.Reply("still no json"),
	)
	answer, err := New(model, h.reg).Think(context.Background(), "do something")
	require.NoError(t, err)
	assert.Equal(t, MsgFormatFailure, answer)
	assert.Equal(t, 2, model.Calls())
	assert.Contains(t, model.Prompts()[1], "SYSTEM_FEEDBACK: Your last response could not be parsed.")
}

func TestEmptyResponsesAbort(t *testing.T) {
	h := newHarness(t)
	model := llmtest.New(
		llmtest.Reply("  "),
		llmtest.Fail(llm.ErrEmptyResponse),
	)
	answer, err := New(model, h.reg).Think(context.Background(), "do something")
	require.NoError(t, err)
	assert.Equal(t, MsgStuck, answer)
	assert.Contains(t, model.Prompts()[1], "AI_RESPONSE:\n(EMPTY)\nSYSTEM_FEEDBACK: Your response was empty.")
}

func TestPlanWithoutToolCalls(t *testing.T) {
	h := newHarness(t)
	model := llmtest.New(
		llmtest.Reply("```json\n{\"thought\": \"The answer is 42\", \"confidence\": 9, \"tool_calls\": []}\n```"),
		llmtest.Reply("```json\n{\"thought\": \"hmm\", \"confidence\": 9}\n```"),
	)
	answer, err := New(model, h.reg).Think(context.Background(), "meaning of life")
	require.NoError(t, err)
	assert.Equal(t, MsgCouldNotDecide, answer)
	assert.Contains(t, model.Prompts()[1], "did not use the required 'Final Answer:' prefix")
}

func TestValidPlanResetsConsecutiveErrors(t *testing.T) {
	h := newHarness(t)
	model := llmtest.New(
		llmtest.Reply("garbage"),
		llmtest.Reply(plan(9, echoCall)),
		llmtest.Reply("garbage"),
		llmtest.Reply("Final Answer: done"),
		llmtest.Reply("Echoed hi."),
	)
	answer, err := New(model, h.reg).Think(context.Background(), "echo hi")
	require.NoError(t, err)
	assert.Equal(t, "done", answer)
	assert.Equal(t, 1, h.count("echo"))
}

func TestTurnBudget(t *testing.T) {
	h := newHarness(t)
	model := llmtest.New()
	model.Fallback = &llmtest.Step{Text: plan(9, echoCall)}

	answer, err := New(model, h.reg, WithMaxTurns(3)).Think(context.Background(), "echo forever")
	require.NoError(t, err)
	assert.Equal(t, MsgTurnBudgetExhausted, answer)
	assert.Equal(t, 3, model.Calls())
	assert.Equal(t, 3, h.count("echo"))
	// The third identical call trips the loop detector.
	assert.NotContains(t, model.Prompts()[2], "You are looping")
}

func TestLoopFeedbackReachesModel(t *testing.T) {
	h := newHarness(t)
	model := llmtest.New()
	model.Fallback = &llmtest.Step{Text: plan(9, echoCall)}

	_, err := New(model, h.reg, WithMaxTurns(4)).Think(context.Background(), "echo forever")
	require.NoError(t, err)
	assert.Contains(t, model.Prompts()[3], "You are looping the same tool and response.")
}

func TestFailFastWithinPlan(t *testing.T) {
	h := newHarness(t)
	model := llmtest.New(
		llmtest.Reply(plan(9, echoCall+", "+failCall+", "+renameCall)),
		llmtest.Reply("Final Answer: gave up"),
		llmtest.Reply("Tried and failed."),
	)
	answer, err := New(model, h.reg).Think(context.Background(), "chain")
	require.NoError(t, err)
	assert.Equal(t, "gave up", answer)
	assert.Equal(t, 1, h.count("echo"))
	assert.Equal(t, 1, h.count("fail"))
	assert.Equal(t, 0, h.count("rename_file"))

	second := model.Prompts()[1]
	assert.Contains(t, second, "--- Output from echo ---")
	assert.Contains(t, second, "--- Output from fail ---")
	assert.Contains(t, second, `"error_code": "boom"`)
	assert.NotContains(t, second, "--- Output from rename_file ---")
}

func TestUnknownToolIsReported(t *testing.T) {
	h := newHarness(t)
	model := llmtest.New(
		llmtest.Reply(plan(9, `{"tool_name": "teleport", "args": {}}`)),
		llmtest.Reply("Final Answer: no teleport"),
		llmtest.Reply("Could not teleport."),
	)
	_, err := New(model, h.reg).Think(context.Background(), "teleport me")
	require.NoError(t, err)
	assert.Contains(t, model.Prompts()[1], `"error_code": "tool_not_found"`)
}

func TestGating(t *testing.T) {
	cases := []struct {
		name       string
		conf       int
		call       string
		outcome    confirm.Outcome
		wantAsked  bool
		wantRun    string
		wantRuns   int
		wantInNext string
	}{
		{"confident runs without asking", 8, echoCall, confirm.Declined, false, "echo", 1, "--- Output from echo ---"},
		{"middling asks and runs when confirmed", 5, echoCall, confirm.Confirmed, true, "echo", 1, "--- Output from echo ---"},
		{"middling declined", 5, echoCall, confirm.Declined, true, "echo", 0, "User cancelled the action plan."},
		{"timeout counts as declined", 5, echoCall, confirm.TimedOut, true, "echo", 0, "User cancelled the action plan."},
		{"low confidence stops", 2, echoCall, confirm.Confirmed, false, "echo", 0, "propose a safer, more confident plan"},
		{"destructive always asks", 10, shellCall, confirm.Confirmed, true, "execute_shell_command", 1, "--- Output from execute_shell_command ---"},
		{"destructive below ask threshold stops", 3, shellCall, confirm.Confirmed, false, "execute_shell_command", 0, "propose a safer, more confident plan"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			model := llmtest.New(
				llmtest.Reply(plan(tc.conf, tc.call)),
				llmtest.Reply("Final Answer: ok"),
				llmtest.Reply("Summary."),
			)
			c := &recordingConfirmer{outcome: tc.outcome}
			_, err := New(model, h.reg, WithConfirmer(c)).Think(context.Background(), "gate me")
			require.NoError(t, err)

			assert.Equal(t, tc.wantAsked, len(c.requests) == 1)
			assert.Equal(t, tc.wantRuns, h.count(tc.wantRun))
			assert.Contains(t, model.Prompts()[1], tc.wantInNext)
			if tc.wantAsked {
				assert.Equal(t, "Confirm Action Plan", c.requests[0].Title)
				assert.Equal(t, "r", c.requests[0].Rationale)
				assert.True(t, strings.HasPrefix(c.requests[0].Plan, "1. "+tc.wantRun))
				assert.NotEmpty(t, c.requests[0].Notes)
			}
		})
	}
}

func TestRateLimitDoesNotConsumeTurns(t *testing.T) {
	h := newHarness(t)
	model := llmtest.New(
		llmtest.Fail(&llm.Error{Kind: llm.KindRateLimited, RetryAfter: 7 * time.Second, Err: errors.New("429")}),
		llmtest.Fail(&llm.Error{Kind: llm.KindRateLimited, Err: errors.New("429")}),
		llmtest.Reply("Final Answer: eventually"),
	)
	var waits []time.Duration
	sleep := func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	answer, err := New(model, h.reg, WithMaxTurns(1), WithSleep(sleep)).Think(context.Background(), "hurry")
	require.NoError(t, err)
	assert.Equal(t, "eventually", answer)
	assert.Equal(t, []time.Duration{7 * time.Second, DefaultRateLimitBackoff}, waits)
}

func TestRateLimitRetriesAreBounded(t *testing.T) {
	h := newHarness(t)
	model := llmtest.New()
	model.Fallback = &llmtest.Step{Err: &llm.Error{Kind: llm.KindRateLimited, Err: errors.New("429")}}
	sleep := func(context.Context, time.Duration) error { return nil }

	answer, err := New(model, h.reg, WithMaxRateLimitRetries(2), WithSleep(sleep)).Think(context.Background(), "hurry")
	require.Error(t, err)
	assert.Equal(t, MsgRateLimited, answer)
	assert.Equal(t, 3, model.Calls())
}

func TestServerErrorsAbortAfterBudget(t *testing.T) {
	h := newHarness(t)
	model := llmtest.New(
		llmtest.Fail(&llm.Error{Kind: llm.KindServerError, Err: errors.New("500")}),
		llmtest.Fail(&llm.Error{Kind: llm.KindTimeout, Err: errors.New("deadline")}),
	)
	answer, err := New(model, h.reg).Think(context.Background(), "try")
	require.NoError(t, err)
	assert.Equal(t, MsgRepeatedAPIErrors, answer)
	assert.Contains(t, model.Prompts()[1], "SYSTEM_ERROR:\nSYSTEM_FEEDBACK: The API call failed with a server error.")
}

func TestFatalModelError(t *testing.T) {
	h := newHarness(t)
	boom := &llm.Error{Kind: llm.KindSafetyBlocked, Err: errors.New("blocked")}
	model := llmtest.New(llmtest.Fail(boom))

	answer, err := New(model, h.reg).Think(context.Background(), "try")
	require.ErrorIs(t, err, boom)
	assert.True(t, strings.HasPrefix(answer, "Sorry, a critical error occurred while communicating with the AI: "))
}

func TestHistoryLowersBlendedConfidence(t *testing.T) {
	h := newHarness(t)
	log, err := translog.Open(filepath.Join(t.TempDir(), "tx.jsonl"))
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		require.NoError(t, log.Append(translog.Record{ToolName: "echo", Success: false}))
	}
	model := llmtest.New(
		llmtest.Reply(plan(9, echoCall)),
		llmtest.Reply("Final Answer: ok"),
		llmtest.Reply("Summary."),
	)
	c := &recordingConfirmer{outcome: confirm.Declined}
	weights := confidence.Weights{Model: 1, Historical: 1}

	_, err = New(model, h.reg, WithTransactionLog(log), WithWeights(weights), WithConfirmer(c)).
		Think(context.Background(), "echo")
	require.NoError(t, err)
	// (0.9 + 0) / 2 falls into the ASK band.
	assert.Len(t, c.requests, 1)
	assert.Equal(t, 0, h.count("echo"))
}
