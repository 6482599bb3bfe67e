// Package translog is the append-only JSON lines record of every tool
// execution, whether planned by the agent or called directly. It feeds
// historical confidence and pattern analysis.
package translog

import "time"

// Confidence is the snapshot of the gating signals at execution time.
type Confidence struct {
	ModelScore      float64  `json:"model_score"`
	VerifierScore   float64  `json:"verifier_score,omitempty"`
	HistoricalScore float64  `json:"historical_score,omitempty"`
	AdjustedScore   float64  `json:"adjusted_score"`
	Decision        string   `json:"decision,omitempty"`
	Rationales      []string `json:"rationales,omitempty"`
}

// Record is one line of the transaction log.
type Record struct {
	Timestamp     time.Time      `json:"timestamp"`
	EpisodeID     string         `json:"episode_id,omitempty"`
	Source        string         `json:"source,omitempty"`
	ToolName      string         `json:"tool_name"`
	Parameters    map[string]any `json:"parameters"`
	Confidence    *Confidence    `json:"confidence,omitempty"`
	Success       bool           `json:"success"`
	Result        string         `json:"result"`
	ErrorFeedback string         `json:"error_feedback,omitempty"`
}
