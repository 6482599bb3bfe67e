package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarvis/llm"
	"jarvis/llm/llmtest"
)

func TestSessionKeepsHistoryOnlyOnSuccess(t *testing.T) {
	model := llmtest.New(
		llmtest.Reply("hello there"),
		llmtest.Fail(errors.New("boom")),
		llmtest.Reply("second answer"),
	)
	s := llm.NewSession(model, "you are jarvis")
	ctx := context.Background()

	reply, err := s.Send(ctx, "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello there", reply)

	_, err = s.Send(ctx, "this fails")
	require.Error(t, err)
	assert.Len(t, s.History(), 2)

	_, err = s.Send(ctx, "again")
	require.NoError(t, err)
	history := s.History()
	require.Len(t, history, 4)
	assert.Equal(t, llm.RoleAssistant, history[3].Role)
	assert.Equal(t, "second answer", history[3].Content)

	s.Reset()
	assert.Empty(t, s.History())
}

func TestRateLimitedPassesThrough(t *testing.T) {
	model := llmtest.New(llmtest.Reply("ok"))
	limited := llm.NewRateLimited(model, 600)
	out, err := limited.Generate(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, "scripted/test", limited.Name())
}

func TestInitializeLLMRejectsUnknownProvider(t *testing.T) {
	_, err := llm.InitializeLLM(context.Background(), llm.Config{Provider: "bard"})
	require.Error(t, err)

	_, err = llm.InitializeLLM(context.Background(), llm.Config{Provider: llm.ProviderOpenAI})
	require.Error(t, err, "missing api key must fail")
}
