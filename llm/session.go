package llm

import (
	"context"
	"sync"
)

// Session is a stateful conversation over a stateless ChatModel. History is
// appended only after a successful reply so a failed send can be retried.
type Session struct {
	mu      sync.Mutex
	model   ChatModel
	system  string
	history []Message
}

// NewSession starts a conversation with an optional system prompt.
func NewSession(model ChatModel, system string) *Session {
	return &Session{model: model, system: system}
}

// Send appends msg, asks the model and records the reply.
func (s *Session) Send(ctx context.Context, msg string) (string, error) {
	s.mu.Lock()
	msgs := make([]Message, 0, len(s.history)+2)
	if s.system != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: s.system})
	}
	msgs = append(msgs, s.history...)
	s.mu.Unlock()

	msgs = append(msgs, Message{Role: RoleUser, Content: msg})
	reply, err := s.model.Chat(ctx, msgs)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.history = append(s.history, Message{Role: RoleUser, Content: msg}, Message{Role: RoleAssistant, Content: reply})
	s.mu.Unlock()
	return reply, nil
}

// History returns a copy of the conversation so far.
func (s *Session) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

// Reset clears the conversation but keeps the system prompt.
func (s *Session) Reset() {
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()
}
