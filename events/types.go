package events

import (
	"time"
)

// EventType names one kind of agent event.
type EventType string

// Episode events
const (
	EpisodeStart EventType = "episode_start"
	EpisodeEnd   EventType = "episode_end"
	EpisodeAbort EventType = "episode_abort"
)

// Turn events
const (
	TurnStart         EventType = "turn_start"
	PlanProposed      EventType = "plan_proposed"
	PlanRejected      EventType = "plan_rejected"
	DecisionMade      EventType = "decision_made"
	ConfirmationAsked EventType = "confirmation_asked"
	FinalAnswer       EventType = "final_answer"
)

// LLM events
const (
	LLMGenerationStart EventType = "llm_generation_start"
	LLMGenerationEnd   EventType = "llm_generation_end"
	LLMGenerationError EventType = "llm_generation_error"
	ThrottlingDetected EventType = "throttling_detected"
)

// Tool events
const (
	ToolCallStart EventType = "tool_call_start"
	ToolCallEnd   EventType = "tool_call_end"
	ToolCallError EventType = "tool_call_error"
)

// Memory events
const (
	MemoryStored EventType = "memory_stored"
)

// Event is one emitted event with its place in the episode tree.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	SpanID    string    `json:"span_id,omitempty"`
	ParentID  string    `json:"parent_id,omitempty"`
	Data      EventData `json:"data"`

	HierarchyLevel int    `json:"hierarchy_level"` // 0=episode, 1=turn level
	EpisodeID      string `json:"episode_id,omitempty"`
	Component      string `json:"component,omitempty"` // agent, llm, tool, memory
	Goal           string `json:"goal,omitempty"`
}

// EventData is implemented by every payload type.
type EventData interface {
	GetEventType() EventType
}

// GetComponentFromEventType maps an event type to the component that emits it.
func GetComponentFromEventType(eventType EventType) string {
	switch eventType {
	case LLMGenerationStart, LLMGenerationEnd, LLMGenerationError, ThrottlingDetected:
		return "llm"
	case ToolCallStart, ToolCallEnd, ToolCallError:
		return "tool"
	case MemoryStored:
		return "memory"
	default:
		return "agent"
	}
}

// IsEndEvent reports whether eventType terminates an episode.
func IsEndEvent(eventType EventType) bool {
	return eventType == EpisodeEnd || eventType == EpisodeAbort
}
