package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFinal(t *testing.T) {
	answer, ok := ParseFinal("Thought: done.\nFinal Answer:  All files moved. \n")
	require.True(t, ok)
	assert.Equal(t, "All files moved.", answer)

	_, ok = ParseFinal("```json\n{}\n```")
	assert.False(t, ok)
}

func TestParsePlan(t *testing.T) {
	text := "Sure.\n```json\n" + `{
  "thought": "Move it.",
  "confidence": 8,
  "rationale": "Simple file op.",
  "tool_calls": [
    {"tool_name": "move_file", "args": {"source_path": "/a", "destination_folder": "/b", "dry_run": true}},
    {"tool_name": "get_process_list", "args": {"limit": 5}}
  ]
}` + "\n```"
	p, err := ParsePlan(text)
	require.NoError(t, err)
	assert.Equal(t, "Move it.", p.Thought)
	assert.Equal(t, 8.0, p.Confidence)
	assert.Equal(t, "Simple file op.", p.Rationale)
	assert.Equal(t, []string{"move_file", "get_process_list"}, p.ToolNames())
	assert.Equal(t, true, p.ToolCalls[0].Args["dry_run"])
	assert.Equal(t, 5.0, p.ToolCalls[1].Args["limit"])
}

func TestParsePlanDefaultsAndShapes(t *testing.T) {
	p, err := ParsePlan("```\n[{\"tool_calls\": [{\"tool_name\": \"echo\"}]}, {\"ignored\": true}]\n```")
	require.NoError(t, err)
	assert.Equal(t, defaultThought, p.Thought)
	assert.Equal(t, defaultRationale, p.Rationale)
	assert.Equal(t, 5.0, p.Confidence)
	require.Len(t, p.ToolCalls, 1)
	assert.Empty(t, p.ToolCalls[0].Args)

	p, err = ParsePlan("```json\n{\"thought\": \"nothing to do\", \"confidence\": 7}\n```")
	require.NoError(t, err)
	assert.Empty(t, p.ToolCalls)
}

func TestParsePlanLenientConfidence(t *testing.T) {
	for raw, want := range map[string]float64{`7.5`: 7.5, `"8"`: 8, `" 9.5 "`: 9.5, `0`: 0, `10`: 10} {
		p, err := ParsePlan("```json\n{\"confidence\": " + raw + "}\n```")
		require.NoError(t, err, raw)
		assert.Equal(t, want, p.Confidence, raw)
	}
	for _, raw := range []string{`"NaN"`, `"high"`, `true`, `10.5`} {
		_, err := ParsePlan("```json\n{\"confidence\": " + raw + "}\n```")
		assert.Error(t, err, raw)
	}
}

func TestParsePlanErrors(t *testing.T) {
	cases := map[string]string{
		"no block":         `{"thought": "x"}`,
		"two blocks":       "```json\n{}\n```\nand\n```json\n{}\n```",
		"bad json":         "```json\n{\"thought\": \n```",
		"not an object":    "```json\n\"just text\"\n```",
		"empty list":       "```json\n[]\n```",
		"confidence range": "```json\n{\"confidence\": 11, \"tool_calls\": [{\"tool_name\": \"a\"}]}\n```",
		"negative":         "```json\n{\"confidence\": -1, \"tool_calls\": [{\"tool_name\": \"a\"}]}\n```",
		"nameless call":    "```json\n{\"tool_calls\": [{\"args\": {}}]}\n```",
		"args not object":  "```json\n{\"tool_calls\": [{\"tool_name\": \"a\", \"args\": [1]}]}\n```",
		"calls not a list": "```json\n{\"tool_calls\": {\"tool_name\": \"a\"}}\n```",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePlan(text)
			assert.Error(t, err)
		})
	}

	_, err := ParsePlan("no fences here")
	assert.ErrorIs(t, err, ErrNoJSONBlock)
	_, err = ParsePlan("```json\n{}\n``` ```json\n{}\n```")
	assert.ErrorIs(t, err, ErrMultipleJSONBlocks)
}

func TestScratchpadRendering(t *testing.T) {
	var pad Scratchpad
	pad.Add(Turn{Index: 1, Feedback: feedbackServerError, SystemError: true})
	pad.Add(Turn{Index: 2, Raw: "bad", Feedback: "SYSTEM_FEEDBACK: fix it"})
	assert.Equal(t, 2, pad.Len())
	assert.Equal(t,
		"\nSYSTEM_ERROR:\n"+feedbackServerError+"\nAI_RESPONSE:\nbad\nSYSTEM_FEEDBACK: fix it",
		pad.String())
}
