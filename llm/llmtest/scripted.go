// Package llmtest provides scripted language models for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"jarvis/llm"
)

// Step is one scripted reply: either text or an error.
type Step struct {
	Text string
	Err  error
}

// Reply is a convenience constructor for a text step.
func Reply(text string) Step { return Step{Text: text} }

// Fail is a convenience constructor for an error step.
func Fail(err error) Step { return Step{Err: err} }

// ErrExhausted is returned once the script has run out of steps.
var ErrExhausted = errors.New("llmtest: script exhausted")

// Scripted replays steps in order and records every prompt it receives.
// Once the script is exhausted it returns Fallback if set, else ErrExhausted.
type Scripted struct {
	mu       sync.Mutex
	steps    []Step
	prompts  []string
	Fallback *Step
}

func New(steps ...Step) *Scripted {
	return &Scripted{steps: steps}
}

func (s *Scripted) Name() string { return "scripted/test" }

func (s *Scripted) Generate(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if len(s.steps) == 0 {
		if s.Fallback != nil {
			return s.Fallback.Text, s.Fallback.Err
		}
		return "", ErrExhausted
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	return step.Text, step.Err
}

// Chat renders the last user message as the prompt.
func (s *Scripted) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	prompt := ""
	if len(messages) > 0 {
		prompt = messages[len(messages)-1].Content
	}
	return s.Generate(ctx, prompt)
}

// Prompts returns every prompt received so far.
func (s *Scripted) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.prompts))
	copy(out, s.prompts)
	return out
}

// Calls is the number of prompts received.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

var _ llm.Model = (*Scripted)(nil)
