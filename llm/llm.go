// llm.go
//
// Provider-neutral language model contract. The planning loop only needs a
// stateless text-in/text-out call; chat front-ends use ChatModel through a
// Session that keeps history on the client side.
//
// Exported:
//   - Client, ChatModel, Model, Message, Role
//   - Provider, ProviderGemini, ProviderOpenAI, ProviderAnthropic
package llm

import (
	"context"
	"errors"
	"strings"
)

// Client is the single call the planning loop makes per turn.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ChatModel answers a full conversation. Implementations are stateless.
type ChatModel interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Model is implemented by every provider adapter in this package.
type Model interface {
	Client
	ChatModel
	// Name identifies provider and model, e.g. "gemini/gemini-2.5-flash".
	Name() string
}

// Role of a chat message author.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Provider names a hosted model vendor.
type Provider string

const (
	ProviderGemini    Provider = "gemini"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// ErrEmptyResponse is returned when a provider answers with no text at all.
var ErrEmptyResponse = errors.New("model returned an empty response")

// splitSystem separates system messages from the conversation, since every
// vendor transports the system prompt out of band.
func splitSystem(messages []Message) (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}
