// config.go
//
// Runtime configuration for jarvis. Values come from (lowest to highest
// precedence) built-in defaults, an optional jarvis.yaml file, a .env file and
// JARVIS_* environment variables. Well-known provider keys such as
// GEMINI_API_KEY are honoured without the prefix.
//
// Exported:
//   - Config, LLMConfig, AgentConfig, ServerConfig, WatcherConfig, ToolsConfig
//   - Load, Default
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the root configuration object.
type Config struct {
	DataDir string        `mapstructure:"data_dir"`
	Log     LogConfig     `mapstructure:"log"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Agent   AgentConfig   `mapstructure:"agent"`
	Tools   ToolsConfig   `mapstructure:"tools"`
	Server  ServerConfig  `mapstructure:"server"`
	Watcher WatcherConfig `mapstructure:"watcher"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// LLMConfig selects the provider and the generation parameters.
type LLMConfig struct {
	Provider          string  `mapstructure:"provider"`
	Model             string  `mapstructure:"model"`
	APIKey            string  `mapstructure:"api_key"`
	Temperature       float64 `mapstructure:"temperature"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	RequestsPerMinute int     `mapstructure:"requests_per_minute"`
}

// AgentConfig holds the planning loop budgets and gating thresholds.
type AgentConfig struct {
	MaxTurns             int           `mapstructure:"max_turns"`
	MaxConsecutiveErrors int           `mapstructure:"max_consecutive_errors"`
	MaxRateLimitRetries  int           `mapstructure:"max_rate_limit_retries"`
	GoThreshold          float64       `mapstructure:"go_threshold"`
	AskThreshold         float64       `mapstructure:"ask_threshold"`
	VerifierWeight       float64       `mapstructure:"verifier_weight"`
	HistoryWeight        float64       `mapstructure:"history_weight"`
	HistoryRecords       int           `mapstructure:"history_records"`
	ConfirmationTimeout  time.Duration `mapstructure:"confirmation_timeout"`
	MemoryResults        int           `mapstructure:"memory_results"`
}

type ToolsConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	ScriptTimeout   time.Duration `mapstructure:"script_timeout"`
	WeatherAPIKey   string        `mapstructure:"weather_api_key"`
	SearchAPIKey    string        `mapstructure:"search_api_key"`
	SearchEngineID  string        `mapstructure:"search_engine_id"`
	MaxScrapeLength int           `mapstructure:"max_scrape_length"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// WatcherConfig configures the background monitors started by `jarvis serve`.
type WatcherConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	DownloadsDir     string        `mapstructure:"downloads_dir"`
	AnalyzerInterval time.Duration `mapstructure:"analyzer_interval"`
	HealthInterval   time.Duration `mapstructure:"health_interval"`
}

// TransactionLogPath is where tool executions are recorded.
func (c *Config) TransactionLogPath() string {
	return filepath.Join(c.DataDir, "logs", "transaction_log.jsonl")
}

// MemoryDir is the root directory of the long-term memory indexes.
func (c *Config) MemoryDir() string {
	return filepath.Join(c.DataDir, "memory")
}

// Validate checks invariants that viper cannot express.
func (c *Config) Validate() error {
	a := c.Agent
	if a.MaxTurns <= 0 {
		return errors.New("agent.max_turns must be positive")
	}
	if a.MaxConsecutiveErrors <= 0 {
		return errors.New("agent.max_consecutive_errors must be positive")
	}
	if a.AskThreshold < 0 || a.GoThreshold > 1 || a.AskThreshold > a.GoThreshold {
		return fmt.Errorf("thresholds must satisfy 0 <= ask (%.2f) <= go (%.2f) <= 1", a.AskThreshold, a.GoThreshold)
	}
	if a.VerifierWeight < 0 || a.HistoryWeight < 0 || a.VerifierWeight+a.HistoryWeight > 1 {
		return fmt.Errorf("weights must satisfy verifier (%.2f), history (%.2f) >= 0 and verifier + history <= 1",
			a.VerifierWeight, a.HistoryWeight)
	}
	if a.ConfirmationTimeout <= 0 {
		return errors.New("agent.confirmation_timeout must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()

	v.SetDefault("data_dir", filepath.Join(home, ".jarvis"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")

	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "gemini-2.5-flash")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.requests_per_minute", 0)

	v.SetDefault("agent.max_turns", 15)
	v.SetDefault("agent.max_consecutive_errors", 2)
	v.SetDefault("agent.max_rate_limit_retries", 5)
	v.SetDefault("agent.go_threshold", 0.75)
	v.SetDefault("agent.ask_threshold", 0.40)
	v.SetDefault("agent.verifier_weight", 0.0)
	v.SetDefault("agent.history_weight", 0.0)
	v.SetDefault("agent.history_records", 50)
	v.SetDefault("agent.confirmation_timeout", 120*time.Second)
	v.SetDefault("agent.memory_results", 3)

	v.SetDefault("tools.timeout", 60*time.Second)
	v.SetDefault("tools.script_timeout", 120*time.Second)
	v.SetDefault("tools.max_scrape_length", 4000)

	v.SetDefault("server.addr", "127.0.0.1:8765")

	v.SetDefault("watcher.enabled", true)
	v.SetDefault("watcher.downloads_dir", filepath.Join(home, "Downloads"))
	v.SetDefault("watcher.analyzer_interval", 15*time.Minute)
	v.SetDefault("watcher.health_interval", 5*time.Minute)
}

// legacyEnv maps unprefixed environment variables onto config keys.
var legacyEnv = map[string][]string{
	"llm.model":              {"DEFAULT_AI_MODEL"},
	"llm.temperature":        {"AI_TEMPERATURE"},
	"llm.max_tokens":         {"MAX_RESPONSE_TOKENS"},
	"tools.weather_api_key":  {"WEATHER_API_KEY"},
	"tools.search_api_key":   {"GOOGLE_CSE_API_KEY"},
	"tools.search_engine_id": {"GOOGLE_CSE_ENGINE_ID"},
}

// providerKeyEnv lists the API key variables per provider.
var providerKeyEnv = map[string]string{
	"gemini":    "GEMINI_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

// Default returns the built-in configuration without reading files or env.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

// Load reads configuration. configFile may be empty, in which case
// ./jarvis.yaml and $HOME/.jarvis/jarvis.yaml are tried.
func Load(configFile string) (*Config, error) {
	// A missing .env file is normal outside development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("jarvis")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".jarvis"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix("JARVIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		args := append([]string{key, "JARVIS_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.LLM.Provider = strings.ToLower(cfg.LLM.Provider)
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv(providerKeyEnv[cfg.LLM.Provider])
	}
	cfg.DataDir = expandHome(cfg.DataDir)
	cfg.Watcher.DownloadsDir = expandHome(cfg.Watcher.DownloadsDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
