package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicModel calls the Messages API.
type AnthropicModel struct {
	client      anthropic.Client
	model       string
	temperature float64
	maxTokens   int64
}

func NewAnthropic(cfg Config) (*AnthropicModel, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: api key is required (ANTHROPIC_API_KEY)")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return &AnthropicModel{
		client:      anthropic.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
	}, nil
}

func (m *AnthropicModel) Name() string { return string(ProviderAnthropic) + "/" + m.model }

func (m *AnthropicModel) Generate(ctx context.Context, prompt string) (string, error) {
	return m.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}})
}

func (m *AnthropicModel) Chat(ctx context.Context, messages []Message) (string, error) {
	system, rest := splitSystem(messages)
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(m.model),
		MaxTokens:   m.maxTokens,
		Temperature: anthropic.Float(m.temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	for _, msg := range rest {
		block := anthropic.NewTextBlock(msg.Content)
		if msg.Role == RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return "", classifyAnthropic(err)
	}
	if resp.StopReason == "refusal" {
		return "", &Error{Kind: KindSafetyBlocked, Provider: ProviderAnthropic, Err: errors.New("model refused the request")}
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}

func classifyAnthropic(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return wrap(ProviderAnthropic, KindOther, 0, err)
	}
	kind := kindForStatus(apiErr.StatusCode)
	// 529 overloaded is transient like a 5xx
	if apiErr.StatusCode == 529 {
		kind = KindServerError
	}
	return &Error{
		Kind:       kind,
		Provider:   ProviderAnthropic,
		RetryAfter: retryHintFromHeader(apiErr.Response),
		Err:        fmt.Errorf("status %d: %s", apiErr.StatusCode, apiErr.RawJSON()),
	}
}
