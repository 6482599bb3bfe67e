// Package memory is the agent's long-term memory: summaries of completed
// tasks retrievable by free-text similarity, plus user preferences.
package memory

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultQueryResults is how many memories are pulled into a prompt.
const DefaultQueryResults = 3

// Record is one remembered task. Records are never updated in place.
type Record struct {
	ID          string    `json:"id"`
	TaskSummary string    `json:"task_summary"`
	ToolsUsed   []string  `json:"tools_used"`
	FinalResult string    `json:"final_result"`
	CreatedAt   time.Time `json:"created_at"`
}

// Document is the text stored and matched for a record.
func (r Record) Document() string {
	return fmt.Sprintf("Task Summary: %s\nTools Used: %s\nFinal Result: %s",
		r.TaskSummary, strings.Join(r.ToolsUsed, ", "), r.FinalResult)
}

// Store persists memories and preferences.
type Store interface {
	Add(ctx context.Context, summary string, toolsUsed []string, finalResult string) (Record, error)
	// Query returns up to n memory documents most relevant to text.
	Query(ctx context.Context, text string, n int) ([]string, error)
	// SavePreference upserts a preference by key.
	SavePreference(ctx context.Context, key, value string) error
	Preferences(ctx context.Context) (map[string]string, error)
	Close() error
}

// DedupTools removes duplicates while keeping first-use order.
func DedupTools(tools []string) []string {
	seen := make(map[string]struct{}, len(tools))
	out := make([]string, 0, len(tools))
	for _, t := range tools {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
