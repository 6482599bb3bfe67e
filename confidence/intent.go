// Package confidence holds the signals the planning loop uses to decide
// whether a plan runs (GO), needs the user's consent (ASK) or is refused
// (STOP): intent classification for tool pruning, a static verifier, the
// historian over the transaction log, blending, and the gating policy.
package confidence

import "strings"

// Tool categories.
const (
	CategoryFileOps      = "File Ops"
	CategorySystemInfo   = "System Info"
	CategoryWebSearch    = "Web Search"
	CategoryComm         = "Communication"
	CategoryMultimedia   = "Multimedia Analysis"
	CategoryWeather      = "Weather"
	CategoryTaskSpecific = "Task-Specific"
	CategoryClipboard    = "Clipboard"
	CategoryExecution    = "System Info & Execution"
)

type categoryKeywords struct {
	category string
	keywords []string
}

// intentTable is ordered so results are deterministic.
var intentTable = []categoryKeywords{
	{CategoryFileOps, []string{"file", "folder", "directory", "move", "rename", "delete", "organize", "backup", "copy", "save"}},
	{CategorySystemInfo, []string{"system", "os", "process", "cpu", "ram", "info", "hardware", "memory", "preference"}},
	{CategoryWebSearch, []string{"search", "browse", "web", "google", "look up", "find", "research", "what is", "who is"}},
	{CategoryComm, []string{"email", "send", "gmail", "message", "contact"}},
	{CategoryMultimedia, []string{"image", "photo", "picture", "audio", "voice", "read pdf", "read docx", "transcribe", "analyze image", "ocr"}},
	{CategoryWeather, []string{"weather", "forecast", "temperature", "climate", "how hot is it"}},
	{CategoryTaskSpecific, []string{"report", "summarize", "build"}},
	{CategoryClipboard, []string{"clipboard", "copy", "paste"}},
	{CategoryExecution, []string{"command", "execute", "shell", "terminal", "run", "script", "code", "tool"}},
}

// AllCategories lists every static category in table order.
func AllCategories() []string {
	out := make([]string, len(intentTable))
	for i, c := range intentTable {
		out[i] = c.category
	}
	return out
}

// ClassifyIntent maps a goal to the tool categories it probably needs by
// substring keyword match. It fails open: with no match every category is
// returned. It is only used to prune the catalogue shown to the model.
func ClassifyIntent(goal string) []string {
	g := strings.ToLower(goal)
	var out []string
	for _, c := range intentTable {
		for _, kw := range c.keywords {
			if strings.Contains(g, kw) {
				out = append(out, c.category)
				break
			}
		}
	}
	if len(out) == 0 {
		return AllCategories()
	}
	return out
}
