package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiModel calls the Gemini API through google.golang.org/genai.
type GeminiModel struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

// NewGemini creates a Gemini adapter. Safety filters block only high risk
// content so that ordinary shell or file tasks are not refused.
func NewGemini(ctx context.Context, cfg Config) (*GeminiModel, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key is required (GEMINI_API_KEY)")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	gc := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(cfg.Temperature)),
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
		},
	}
	if cfg.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(cfg.MaxTokens)
	}
	return &GeminiModel{client: client, model: cfg.Model, config: gc}, nil
}

func (m *GeminiModel) Name() string { return string(ProviderGemini) + "/" + m.model }

func (m *GeminiModel) Generate(ctx context.Context, prompt string) (string, error) {
	return m.generate(ctx, []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}, m.config)
}

func (m *GeminiModel) Chat(ctx context.Context, messages []Message) (string, error) {
	system, rest := splitSystem(messages)
	contents := make([]*genai.Content, 0, len(rest))
	for _, msg := range rest {
		role := genai.Role(genai.RoleUser)
		if msg.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	cfg := m.config
	if system != "" {
		copied := *m.config
		copied.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
		cfg = &copied
	}
	return m.generate(ctx, contents, cfg)
}

func (m *GeminiModel) generate(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	resp, err := m.client.Models.GenerateContent(ctx, m.model, contents, cfg)
	if err != nil {
		return "", classifyGemini(err)
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" && fb.BlockReason != genai.BlockedReasonUnspecified {
		return "", &Error{Kind: KindSafetyBlocked, Provider: ProviderGemini, Err: fmt.Errorf("prompt blocked: %s", fb.BlockReason)}
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return "", &Error{Kind: KindSafetyBlocked, Provider: ProviderGemini, Err: errors.New("response blocked by safety filters")}
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func classifyGemini(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return wrap(ProviderGemini, KindOther, 0, err)
	}
	kind := kindForStatus(apiErr.Code)
	if apiErr.Status == "RESOURCE_EXHAUSTED" {
		kind = KindRateLimited
	}
	var retry time.Duration
	if kind == KindRateLimited {
		retry = geminiRetryDelay(apiErr)
	}
	return &Error{Kind: kind, Provider: ProviderGemini, RetryAfter: retry, Err: err}
}

// geminiRetryDelay reads the RetryInfo detail ("retryDelay": "17s") or the
// legacy textual form embedded in the message.
func geminiRetryDelay(apiErr genai.APIError) time.Duration {
	for _, d := range apiErr.Details {
		t, _ := d["@type"].(string)
		if !strings.HasSuffix(t, "RetryInfo") {
			continue
		}
		if s, ok := d["retryDelay"].(string); ok {
			if dur, err := time.ParseDuration(s); err == nil {
				return dur + time.Second
			}
		}
	}
	return retryHintFromText(apiErr.Message)
}
