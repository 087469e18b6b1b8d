// Package config loads the research settings from an optional YAML file and
// the environment, and builds the logger handed to every component.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/siga-research/siga/internal/providers"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the root configuration record. It is not modified after Load returns.
type Config struct {
	OpenAI    ProviderSettings `mapstructure:"openai"`
	Google    ProviderSettings `mapstructure:"google"`
	Ollama    ProviderSettings `mapstructure:"ollama"`
	Anthropic ProviderSettings `mapstructure:"anthropic"`
	Research  ResearchConfig   `mapstructure:"research"`
	Storage   StorageConfig    `mapstructure:"storage"`
	Log       LogConfig        `mapstructure:"log"`
}

// ProviderSettings holds credentials and defaults for one backend
type ProviderSettings struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	PreferredModel string `mapstructure:"preferred_model"`
}

type ResearchConfig struct {
	TimeoutSeconds       int    `mapstructure:"timeout_seconds"`
	DefaultPromptVersion string `mapstructure:"default_prompt_version"`
	PromptsFile          string `mapstructure:"prompts_file"`
	OutputDir            string `mapstructure:"output_dir"`
	RequestsPerMinute    int    `mapstructure:"requests_per_minute"`
	MaxOutputTokens      int    `mapstructure:"max_output_tokens"`
}

type StorageConfig struct {
	LedgerPath string `mapstructure:"ledger_path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// env maps config keys to the flat environment variable names
var env = map[string]string{
	"openai.api_key":                  "OPENAI_API_KEY",
	"openai.base_url":                 "OPENAI_BASE_URL",
	"openai.preferred_model":          "OPENAI_PREFERRED_MODEL",
	"google.api_key":                  "GOOGLE_API_KEY",
	"google.base_url":                 "GOOGLE_BASE_URL",
	"google.preferred_model":          "GOOGLE_PREFERRED_MODEL",
	"ollama.base_url":                 "OLLAMA_BASE_URL",
	"ollama.preferred_model":          "OLLAMA_PREFERRED_MODEL",
	"anthropic.api_key":               "ANTHROPIC_API_KEY",
	"anthropic.base_url":              "ANTHROPIC_BASE_URL",
	"anthropic.preferred_model":       "ANTHROPIC_PREFERRED_MODEL",
	"research.timeout_seconds":        "COMPANY_RESEARCH_TIMEOUT_SECONDS",
	"research.default_prompt_version": "DEFAULT_PROMPT_VERSION",
	"research.prompts_file":           "PROMPTS_FILE",
	"research.output_dir":             "OUTPUT_DIR",
	"research.requests_per_minute":    "REQUESTS_PER_MINUTE",
	"research.max_output_tokens":      "MAX_OUTPUT_TOKENS",
	"storage.ledger_path":             "LEDGER_PATH",
	"log.level":                       "LOG_LEVEL",
	"log.format":                      "LOG_FORMAT",
}

// Load reads configuration from an optional YAML file and the environment.
// Environment variables override file values, which override defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("openai.preferred_model", "gpt-4o")
	v.SetDefault("google.preferred_model", "gemini-pro")
	v.SetDefault("ollama.base_url", "http://localhost:11434")
	v.SetDefault("ollama.preferred_model", "llama2")
	v.SetDefault("anthropic.preferred_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("research.timeout_seconds", 60)
	v.SetDefault("research.default_prompt_version", "subsidiary_research_v1")
	v.SetDefault("research.prompts_file", "config/prompts.json")
	v.SetDefault("research.output_dir", "output")
	v.SetDefault("research.requests_per_minute", 0)
	v.SetDefault("research.max_output_tokens", 1500)
	v.SetDefault("storage.ledger_path", "output/siga.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("siga")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configPath != "" {
			return nil, eris.Wrap(err, "config: read config file")
		}
	}

	for key, name := range env {
		if err := v.BindEnv(key, name); err != nil {
			return nil, eris.Wrapf(err, "config: bind %s", name)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that are fatal for every command
func (c *Config) Validate() error {
	if c.Research.TimeoutSeconds <= 0 {
		return eris.Errorf("config: COMPANY_RESEARCH_TIMEOUT_SECONDS must be a positive integer, got %d", c.Research.TimeoutSeconds)
	}
	if c.Research.RequestsPerMinute < 0 {
		return eris.Errorf("config: REQUESTS_PER_MINUTE must not be negative, got %d", c.Research.RequestsPerMinute)
	}
	if c.Research.MaxOutputTokens <= 0 {
		return eris.Errorf("config: MAX_OUTPUT_TOKENS must be positive, got %d", c.Research.MaxOutputTokens)
	}
	return nil
}

// Timeout returns the per-company deadline
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Research.TimeoutSeconds) * time.Second
}

// WithTimeout returns a copy of the config whose per-company deadline is seconds.
// Adapters built from the copy size their HTTP client timeout to match.
func (c *Config) WithTimeout(seconds int) *Config {
	out := *c
	out.Research.TimeoutSeconds = seconds
	return &out
}

// Settings returns the stored settings for a provider id
func (c *Config) Settings(id string) (ProviderSettings, bool) {
	switch id {
	case "openai":
		return c.OpenAI, true
	case "google_ai", "gemini":
		return c.Google, true
	case "ollama":
		return c.Ollama, true
	case "anthropic":
		return c.Anthropic, true
	}
	return ProviderSettings{}, false
}

// ProviderConfig projects the settings an adapter needs
func (c *Config) ProviderConfig(id string) (providers.Config, bool) {
	s, ok := c.Settings(id)
	if !ok {
		return providers.Config{}, false
	}
	return providers.Config{
		APIKey:          s.APIKey,
		BaseURL:         s.BaseURL,
		PreferredModel:  s.PreferredModel,
		MaxOutputTokens: c.Research.MaxOutputTokens,
		RequestTimeout:  c.Timeout(),
	}, true
}

// NewLogger builds a zap logger for the configured level and format
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(normalizeLevel(cfg.Level))
	if err != nil {
		return nil, eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "config: build logger")
	}
	return logger, nil
}

func normalizeLevel(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	switch level {
	case "":
		return "info"
	case "trace":
		return "debug"
	case "warning":
		return "warn"
	case "critical":
		return "error"
	}
	return level
}
