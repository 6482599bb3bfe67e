// tool_loop_detector.go
//
// Detects a model that keeps calling the same tool with the same arguments
// and getting the same result back, so the loop can tell it to change course
// before the turn budget runs out.
//
// Exported:
//   - ToolLoopDetector
//   - NewToolLoopDetector
//   - DefaultLoopDetectionThreshold

package agent

import (
	"encoding/json"
)

const (
	// DefaultLoopDetectionThreshold is the number of identical consecutive calls that counts as a loop.
	DefaultLoopDetectionThreshold = 3
	// maxResponseLengthForComparison bounds how much of a result is compared.
	maxResponseLengthForComparison = 500
)

type toolCallRecord struct {
	toolName string
	args     string
	response string
}

// ToolLoopDetector tracks the most recent executed calls of one episode.
type ToolLoopDetector struct {
	threshold   int
	recentCalls []toolCallRecord
}

func NewToolLoopDetector(threshold int) *ToolLoopDetector {
	if threshold <= 0 {
		threshold = DefaultLoopDetectionThreshold
	}
	return &ToolLoopDetector{
		threshold:   threshold,
		recentCalls: make([]toolCallRecord, 0, threshold),
	}
}

// Observe records an executed call and reports whether the last threshold
// calls were identical. History is kept after a detection so a continuing
// loop is reported again on the next call.
func (d *ToolLoopDetector) Observe(o ToolOutcome) bool {
	args, err := json.Marshal(o.Args)
	if err != nil {
		args = nil
	}
	response := o.Result.Text()
	if len(response) > maxResponseLengthForComparison {
		response = response[:maxResponseLengthForComparison]
	}
	d.recentCalls = append(d.recentCalls, toolCallRecord{toolName: o.ToolName, args: string(args), response: response})
	if len(d.recentCalls) > d.threshold {
		d.recentCalls = d.recentCalls[1:]
	}
	if len(d.recentCalls) < d.threshold {
		return false
	}
	first := d.recentCalls[0]
	for _, r := range d.recentCalls[1:] {
		if r != first {
			return false
		}
	}
	return true
}
