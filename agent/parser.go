package agent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// FinalAnswerMarker ends an episode; everything after it is the answer.
const FinalAnswerMarker = "Final Answer:"

const (
	defaultThought         = "No thought provided."
	defaultRationale       = "No rationale provided."
	defaultModelConfidence = 5
)

// ToolCall is one step of a plan.
type ToolCall struct {
	ToolName string         `json:"tool_name"`
	Args     map[string]any `json:"args"`
}

// Plan is the parsed model proposal for one turn. Confidence is the raw
// 0-10 self-assessment.
type Plan struct {
	Thought    string     `json:"thought"`
	Confidence float64    `json:"confidence"`
	Rationale  string     `json:"rationale"`
	ToolCalls  []ToolCall `json:"tool_calls"`
}

// ToolNames lists the plan's tools in order.
func (p *Plan) ToolNames() []string {
	names := make([]string, len(p.ToolCalls))
	for i, c := range p.ToolCalls {
		names[i] = c.ToolName
	}
	return names
}

var (
	ErrNoJSONBlock        = errors.New("no JSON block found in the response")
	ErrMultipleJSONBlocks = errors.New("more than one JSON block found in the response")
	ErrNotAnObject        = errors.New("the parsed JSON content is not an object")
)

// fencedBlock matches a ```json fence, or a bare ``` fence.
var fencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?[ \t]*\r?\n?(.*?)```")

// ParseFinal reports whether text carries a final answer and returns it.
func ParseFinal(text string) (string, bool) {
	_, after, found := strings.Cut(text, FinalAnswerMarker)
	if !found {
		return "", false
	}
	return strings.TrimSpace(after), true
}

// ExtractJSONBlock returns the body of the single fenced JSON block in text.
func ExtractJSONBlock(text string) (string, error) {
	blocks := fencedBlock.FindAllStringSubmatch(text, -1)
	switch len(blocks) {
	case 0:
		return "", ErrNoJSONBlock
	case 1:
		return strings.TrimSpace(blocks[0][1]), nil
	default:
		return "", ErrMultipleJSONBlocks
	}
}

// ParsePlan extracts the single fenced JSON plan from text. A plan with an
// empty tool_calls list is returned without error; the caller decides what
// to do with it.
func ParsePlan(text string) (*Plan, error) {
	block, err := ExtractJSONBlock(text)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(block)))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if list, ok := doc.([]any); ok {
		if len(list) == 0 {
			return nil, ErrNotAnObject
		}
		doc = list[0]
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, ErrNotAnObject
	}

	plan := &Plan{
		Thought:    stringField(obj, "thought", defaultThought),
		Rationale:  stringField(obj, "rationale", defaultRationale),
		Confidence: defaultModelConfidence,
	}
	if raw, ok := obj["confidence"]; ok && raw != nil {
		conf, err := number(raw)
		if err != nil {
			return nil, fmt.Errorf("confidence: %w", err)
		}
		if math.IsNaN(conf) || conf < 0 || conf > 10 {
			return nil, fmt.Errorf("confidence %v is outside 0-10", conf)
		}
		plan.Confidence = conf
	}

	calls, err := toolCalls(obj["tool_calls"])
	if err != nil {
		return nil, err
	}
	plan.ToolCalls = calls
	return plan, nil
}

func toolCalls(raw any) ([]ToolCall, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, errors.New("tool_calls must be a list")
	}
	calls := make([]ToolCall, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("tool_calls[%d] is not an object", i)
		}
		name, _ := obj["tool_name"].(string)
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("tool_calls[%d] has no tool_name", i)
		}
		args := map[string]any{}
		switch a := obj["args"].(type) {
		case nil:
		case map[string]any:
			args = normalizeNumbers(a).(map[string]any)
		default:
			return nil, fmt.Errorf("tool_calls[%d].args must be an object", i)
		}
		calls = append(calls, ToolCall{ToolName: name, Args: args})
	}
	return calls, nil
}

func stringField(obj map[string]any, key, def string) string {
	if s, ok := obj[key].(string); ok && s != "" {
		return s
	}
	return def
}

func number(v any) (float64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Float64()
	case string:
		var f float64
		if _, err := fmt.Sscan(strings.TrimSpace(n), &f); err != nil {
			return 0, fmt.Errorf("%q is not a number", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}
}

// normalizeNumbers turns json.Number values back into float64 so tool
// arguments look as if decoded without UseNumber.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, item := range t {
			t[k] = normalizeNumbers(item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = normalizeNumbers(item)
		}
		return t
	default:
		return v
	}
}
