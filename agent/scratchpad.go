package agent

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"jarvis/tools"
)

// ToolOutcome is one executed call of a plan.
type ToolOutcome struct {
	ToolName string
	Args     map[string]any
	Result   tools.Result
	Duration time.Duration
}

// Output renders the outcome the way the model sees it.
func (o ToolOutcome) Output() string {
	body, err := json.MarshalIndent(o.Result, "", "  ")
	if err != nil {
		body = []byte(o.Result.Text())
	}
	return fmt.Sprintf("--- Output from %s ---\n%s", o.ToolName, body)
}

// Turn is one iteration of the planning loop as recorded in the scratchpad.
type Turn struct {
	Index int
	// Raw is the model's response text, empty when the call failed.
	Raw      string
	Plan     *Plan
	Final    string
	Results  []ToolOutcome
	Feedback string
	// SystemError marks a turn lost to a provider failure.
	SystemError bool
}

func (t Turn) String() string {
	var b strings.Builder
	if t.SystemError {
		b.WriteString("\nSYSTEM_ERROR:\n")
		b.WriteString(t.Feedback)
		return b.String()
	}
	raw := t.Raw
	if strings.TrimSpace(raw) == "" {
		raw = "(EMPTY)"
	}
	b.WriteString("\nAI_RESPONSE:\n")
	b.WriteString(raw)
	if len(t.Results) > 0 {
		b.WriteString("\nTOOL_RESULTS:\n")
		for i, r := range t.Results {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(r.Output())
		}
	}
	if t.Feedback != "" {
		b.WriteByte('\n')
		b.WriteString(t.Feedback)
	}
	return b.String()
}

// Scratchpad is the ordered, append-only record of an episode's turns.
// It lives only as long as one Think call.
type Scratchpad struct {
	turns []Turn
}

func (s *Scratchpad) Add(t Turn) { s.turns = append(s.turns, t) }

func (s *Scratchpad) Len() int { return len(s.turns) }

// Turns returns a copy of the recorded turns.
func (s *Scratchpad) Turns() []Turn {
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

func (s *Scratchpad) String() string {
	var b strings.Builder
	for _, t := range s.turns {
		b.WriteString(t.String())
	}
	return b.String()
}
