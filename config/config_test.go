package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 15, cfg.Agent.MaxTurns)
	assert.Equal(t, 2, cfg.Agent.MaxConsecutiveErrors)
	assert.InDelta(t, 0.75, cfg.Agent.GoThreshold, 1e-9)
	assert.InDelta(t, 0.40, cfg.Agent.AskThreshold, 1e-9)
	assert.Equal(t, 120*time.Second, cfg.Agent.ConfirmationTimeout)
	assert.Equal(t, 50, cfg.Agent.HistoryRecords)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	require.NoError(t, cfg.Validate())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jarvis.yaml")
	yaml := `
data_dir: ` + dir + `
llm:
  provider: OpenAI
  model: gpt-4o-mini
agent:
  max_turns: 7
  confirmation_timeout: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("JARVIS_AGENT_GO_THRESHOLD", "0.9")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("WEATHER_API_KEY", "w-key")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 7, cfg.Agent.MaxTurns)
	assert.Equal(t, 30*time.Second, cfg.Agent.ConfirmationTimeout)
	assert.InDelta(t, 0.9, cfg.Agent.GoThreshold, 1e-9)
	assert.Equal(t, "w-key", cfg.Tools.WeatherAPIKey)
	assert.Equal(t, filepath.Join(dir, "logs", "transaction_log.jsonl"), cfg.TransactionLogPath())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidateThresholdOrder(t *testing.T) {
	cfg := Default()
	cfg.Agent.AskThreshold = 0.8
	cfg.Agent.GoThreshold = 0.5
	require.Error(t, cfg.Validate())
}

func TestValidateWeights(t *testing.T) {
	tests := []struct {
		name     string
		verifier float64
		history  float64
		ok       bool
	}{
		{"model only", 0, 0, true},
		{"blended", 0.3, 0.2, true},
		{"no model share", 0.5, 0.5, true},
		{"sum above one", 0.8, 0.8, false},
		{"negative verifier", -0.1, 0.2, false},
		{"negative history", 0.2, -0.5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Agent.VerifierWeight = tt.verifier
			cfg.Agent.HistoryWeight = tt.history
			if tt.ok {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}
