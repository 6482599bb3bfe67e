// builder.go
//
// Prompt assembly for the planning loop. Every model call gets a complete,
// freshly built prompt; nothing is carried in provider-side chat state.
//
// Exported:
//   - Turn, BuildTurn
//   - ToolCatalogue, MemorySection, Summary
package prompt

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"jarvis/tools"
)

// Turn is everything one turn's prompt is assembled from.
type Turn struct {
	System      string
	Tools       []*tools.Definition
	Memories    []string
	Preferences map[string]string
	Goal        string
	Scratchpad  string
}

// BuildTurn renders the full prompt for one model call.
func BuildTurn(t Turn) string {
	system := t.System
	if system == "" {
		system = SystemPrompt
	}
	p := TurnTemplate
	p = strings.ReplaceAll(p, SystemPlaceholder, system)
	p = strings.ReplaceAll(p, ToolsPlaceholder, ToolCatalogue(t.Tools))
	p = strings.ReplaceAll(p, MemoryPlaceholder, MemorySection(t.Memories, t.Preferences))
	p = strings.ReplaceAll(p, GoalPlaceholder, t.Goal)
	// Scratchpad last: it may contain text that looks like a placeholder.
	return strings.Replace(p, ScratchpadPlaceholder, t.Scratchpad, 1)
}

// ToolCatalogue lists each tool with its description and argument schema.
func ToolCatalogue(defs []*tools.Definition) string {
	lines := make([]string, 0, len(defs))
	for _, def := range defs {
		props := def.Schema.JSONSchema()["properties"]
		schema, err := json.Marshal(props)
		if err != nil {
			schema = []byte("{}")
		}
		desc := def.Description
		if desc == "" {
			desc = "No description available."
		}
		lines = append(lines, fmt.Sprintf("- Tool: %s\n  Description: %s\n  Arguments Schema: %s", def.Name, desc, schema))
	}
	return strings.Join(lines, "\n")
}

// MemorySection renders relevant past tasks and user preferences. Either
// part is omitted when empty.
func MemorySection(memories []string, prefs map[string]string) string {
	var b strings.Builder
	if len(memories) > 0 {
		b.WriteString(pastTasksHeader)
		for i, m := range memories {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString("- " + m)
		}
	}
	if len(prefs) > 0 {
		keys := make([]string, 0, len(prefs))
		for k := range prefs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(preferencesHeader)
		for i, k := range keys {
			if i > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "- %s: %s", k, prefs[k])
		}
	}
	return b.String()
}

// Summary is the stateless prompt for the episode's memory summary.
func Summary(goal, answer string) string {
	p := strings.ReplaceAll(SummaryTemplate, GoalPlaceholder, goal)
	return strings.Replace(p, AnswerPlaceholder, answer, 1)
}
