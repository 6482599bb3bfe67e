package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"jarvis/tools"
)

func TestBuildTurnSections(t *testing.T) {
	defs := []*tools.Definition{{
		Name:        "rename_file",
		Description: "Renames a file.",
		Schema: tools.NewSchema(
			tools.Required("current_path", tools.TypeString, ""),
		),
	}}
	p := BuildTurn(Turn{
		Tools:       defs,
		Memories:    []string{"Task Summary: renamed a report"},
		Preferences: map[string]string{"style": "terse"},
		Goal:        "Rename report.txt",
		Scratchpad:  "\nAI_RESPONSE:\n{{GOAL}}",
	})

	assert.True(t, strings.HasPrefix(p, "You are an expert autonomous agent named JARVIS."))
	assert.Contains(t, p, "AVAILABLE TOOLS:\n- Tool: rename_file\n  Description: Renames a file.\n  Arguments Schema: {\"current_path\":{\"type\":\"string\"}}")
	assert.Contains(t, p, "**RELEVANT PAST TASKS (for context):**\n- Task Summary: renamed a report")
	assert.Contains(t, p, "**USER PREFERENCES (adhere to these):**\n- style: terse")
	assert.Contains(t, p, "USER_GOAL: Rename report.txt")
	assert.True(t, strings.HasSuffix(p, "INTERNAL SCRATCHPAD (Previous Steps):\n\nAI_RESPONSE:\n{{GOAL}}"))
}

func TestMemorySectionEmpty(t *testing.T) {
	assert.Equal(t, "", MemorySection(nil, nil))
}

func TestSummary(t *testing.T) {
	assert.Equal(t,
		"Based on the original goal and the final answer, create a one-sentence summary of what was accomplished. Original Goal: g. Final Answer: a",
		Summary("g", "a"))
}
