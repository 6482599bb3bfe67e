package events

import "time"

// EpisodeStartEvent opens an episode.
type EpisodeStartEvent struct {
	Goal       string   `json:"goal"`
	Categories []string `json:"categories"`
	ToolCount  int      `json:"tool_count"`
}

func (e *EpisodeStartEvent) GetEventType() EventType { return EpisodeStart }

// EpisodeEndEvent closes an episode that produced a final answer.
type EpisodeEndEvent struct {
	Answer    string        `json:"answer"`
	Turns     int           `json:"turns"`
	ToolsUsed []string      `json:"tools_used,omitempty"`
	Duration  time.Duration `json:"duration"`
}

func (e *EpisodeEndEvent) GetEventType() EventType { return EpisodeEnd }

// EpisodeAbortEvent closes an episode without an answer.
type EpisodeAbortEvent struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
	Turns   int    `json:"turns"`
	Error   string `json:"error,omitempty"`
}

func (e *EpisodeAbortEvent) GetEventType() EventType { return EpisodeAbort }

type TurnStartEvent struct {
	Turn     int `json:"turn"`
	MaxTurns int `json:"max_turns"`
}

func (e *TurnStartEvent) GetEventType() EventType { return TurnStart }

// PlanCall is a tool call as shown to observers.
type PlanCall struct {
	ToolName string         `json:"tool_name"`
	Args     map[string]any `json:"args"`
}

type PlanProposedEvent struct {
	Turn       int        `json:"turn"`
	Thought    string     `json:"thought"`
	Rationale  string     `json:"rationale"`
	Confidence float64    `json:"confidence"`
	Calls      []PlanCall `json:"calls"`
}

func (e *PlanProposedEvent) GetEventType() EventType { return PlanProposed }

// PlanRejectedEvent is emitted when the model output could not be used.
type PlanRejectedEvent struct {
	Turn              int    `json:"turn"`
	Reason            string `json:"reason"`
	ConsecutiveErrors int    `json:"consecutive_errors"`
}

func (e *PlanRejectedEvent) GetEventType() EventType { return PlanRejected }

type DecisionEvent struct {
	Turn        int      `json:"turn"`
	Decision    string   `json:"decision"`
	Confidence  float64  `json:"confidence"`
	Destructive bool     `json:"destructive"`
	Rationales  []string `json:"rationales,omitempty"`
}

func (e *DecisionEvent) GetEventType() EventType { return DecisionMade }

type ConfirmationEvent struct {
	Turn    int    `json:"turn"`
	Title   string `json:"title"`
	Plan    string `json:"plan"`
	Outcome string `json:"outcome"`
}

func (e *ConfirmationEvent) GetEventType() EventType { return ConfirmationAsked }

type FinalAnswerEvent struct {
	Turn   int    `json:"turn"`
	Answer string `json:"answer"`
}

func (e *FinalAnswerEvent) GetEventType() EventType { return FinalAnswer }

type LLMGenerationStartEvent struct {
	Turn        int    `json:"turn"`
	Model       string `json:"model"`
	PromptChars int    `json:"prompt_chars"`
}

func (e *LLMGenerationStartEvent) GetEventType() EventType { return LLMGenerationStart }

type LLMGenerationEndEvent struct {
	Turn          int           `json:"turn"`
	ResponseChars int           `json:"response_chars"`
	Duration      time.Duration `json:"duration"`
}

func (e *LLMGenerationEndEvent) GetEventType() EventType { return LLMGenerationEnd }

type LLMGenerationErrorEvent struct {
	Turn  int    `json:"turn"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

func (e *LLMGenerationErrorEvent) GetEventType() EventType { return LLMGenerationError }

// ThrottlingEvent reports a provider rate limit and the wait before retrying.
type ThrottlingEvent struct {
	Turn    int           `json:"turn"`
	Attempt int           `json:"attempt"`
	Wait    time.Duration `json:"wait"`
}

func (e *ThrottlingEvent) GetEventType() EventType { return ThrottlingDetected }

type ToolCallStartEvent struct {
	Turn     int            `json:"turn"`
	ToolName string         `json:"tool_name"`
	Args     map[string]any `json:"args"`
}

func (e *ToolCallStartEvent) GetEventType() EventType { return ToolCallStart }

type ToolCallEndEvent struct {
	Turn     int           `json:"turn"`
	ToolName string        `json:"tool_name"`
	Result   string        `json:"result"`
	Duration time.Duration `json:"duration"`
}

func (e *ToolCallEndEvent) GetEventType() EventType { return ToolCallEnd }

type ToolCallErrorEvent struct {
	Turn      int           `json:"turn"`
	ToolName  string        `json:"tool_name"`
	ErrorCode string        `json:"error_code"`
	Error     string        `json:"error"`
	Duration  time.Duration `json:"duration"`
}

func (e *ToolCallErrorEvent) GetEventType() EventType { return ToolCallError }

type MemoryStoredEvent struct {
	MemoryID string   `json:"memory_id"`
	Summary  string   `json:"summary"`
	Tools    []string `json:"tools"`
}

func (e *MemoryStoredEvent) GetEventType() EventType { return MemoryStored }
