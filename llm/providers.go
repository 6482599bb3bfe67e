package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	loggerv2 "jarvis/logger/v2"
)

// Config holds what InitializeLLM needs to build a provider adapter.
type Config struct {
	Provider    Provider
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	// RequestsPerMinute > 0 wraps the model in a client side limiter.
	RequestsPerMinute int
	Logger            loggerv2.Logger
}

// DefaultModels is used when Config.Model is empty.
var DefaultModels = map[Provider]string{
	ProviderGemini:    "gemini-2.5-flash",
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderAnthropic: "claude-sonnet-4-5",
}

// InitializeLLM creates the provider adapter described by cfg.
func InitializeLLM(ctx context.Context, cfg Config) (Model, error) {
	if cfg.Logger == nil {
		cfg.Logger = loggerv2.NewNoop()
	}
	cfg.Provider = Provider(strings.ToLower(string(cfg.Provider)))
	if cfg.Provider == "" {
		cfg.Provider = ProviderGemini
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModels[cfg.Provider]
	}

	start := time.Now()
	var (
		model Model
		err   error
	)
	switch cfg.Provider {
	case ProviderGemini:
		model, err = NewGemini(ctx, cfg)
	case ProviderOpenAI:
		model, err = NewOpenAI(cfg)
	case ProviderAnthropic:
		model, err = NewAnthropic(cfg)
	default:
		err = fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
	if err != nil {
		cfg.Logger.Error("LLM initialization failed", err, loggerv2.String("provider", string(cfg.Provider)))
		return nil, err
	}

	if cfg.RequestsPerMinute > 0 {
		model = NewRateLimited(model, cfg.RequestsPerMinute)
	}
	cfg.Logger.Info("LLM initialized",
		loggerv2.String("model", model.Name()),
		loggerv2.Float64("temperature", cfg.Temperature),
		loggerv2.Duration("took", time.Since(start)))
	return model, nil
}
