package tools

import (
	"encoding/json"
	"fmt"
)

// Status of a tool execution.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Well-known error codes. Callable failures use the error's own code or
// type name instead.
const (
	CodeValidation   = "validation_error"
	CodeToolNotFound = "tool_not_found"
	CodePanic        = "panic"
	CodeTimeout      = "timeout"
)

const (
	MsgInvalidArguments = "Tool arguments are invalid."
	msgUnexpectedPrefix = "An unexpected error occurred during tool execution: "
)

// Result is the uniform envelope every tool call produces.
type Result struct {
	Status    Status `json:"status"`
	Data      any    `json:"data,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// OK builds a success result.
func OK(data any) Result {
	return Result{Status: StatusOK, Data: data}
}

// Failure builds an error result.
func Failure(code, message string, details any) Result {
	return Result{Status: StatusError, ErrorCode: code, Message: message, Details: details}
}

func (r Result) IsOK() bool { return r.Status == StatusOK }

// Text renders the result for the scratchpad and transports.
func (r Result) Text() string {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"status":%q,"message":"unrenderable result: %v"}`, r.Status, err)
	}
	return string(b)
}

// ErrorText is a short human readable error summary.
func (r Result) ErrorText() string {
	if r.IsOK() {
		return ""
	}
	if r.Details != nil {
		if b, err := json.Marshal(r.Details); err == nil {
			return fmt.Sprintf("%s (%s): %s", r.Message, r.ErrorCode, b)
		}
	}
	return fmt.Sprintf("%s (%s)", r.Message, r.ErrorCode)
}

// Summary is the short view of a result kept in the transaction log: the
// data on success, the message on failure.
func (r Result) Summary() string {
	if !r.IsOK() {
		return r.Message
	}
	switch d := r.Data.(type) {
	case nil:
		return ""
	case string:
		return d
	default:
		b, err := json.Marshal(d)
		if err != nil {
			return fmt.Sprint(d)
		}
		return string(b)
	}
}
