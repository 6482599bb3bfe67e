package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIModel calls the Chat Completions API.
type OpenAIModel struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
}

func NewOpenAI(cfg Config) (*OpenAIModel, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key is required (OPENAI_API_KEY)")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIModel{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

func (m *OpenAIModel) Name() string { return string(ProviderOpenAI) + "/" + m.model }

func (m *OpenAIModel) Generate(ctx context.Context, prompt string) (string, error) {
	return m.Chat(ctx, []Message{{Role: RoleUser, Content: prompt}})
}

func (m *OpenAIModel) Chat(ctx context.Context, messages []Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(m.model),
		Temperature: openai.Float(m.temperature),
	}
	if m.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(m.maxTokens))
	}
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(msg.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(msg.Content))
		}
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifyOpenAI(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	choice := resp.Choices[0]
	if choice.FinishReason == "content_filter" {
		return "", &Error{Kind: KindSafetyBlocked, Provider: ProviderOpenAI, Err: errors.New("response blocked by content filter")}
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return choice.Message.Content, nil
}

func classifyOpenAI(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return wrap(ProviderOpenAI, KindOther, 0, err)
	}
	kind := kindForStatus(apiErr.StatusCode)
	if apiErr.Code == "content_filter" || apiErr.Code == "content_policy_violation" {
		kind = KindSafetyBlocked
	}
	return &Error{
		Kind:       kind,
		Provider:   ProviderOpenAI,
		RetryAfter: retryHintFromHeader(apiErr.Response),
		Err:        fmt.Errorf("status %d: %s", apiErr.StatusCode, apiErr.Message),
	}
}
