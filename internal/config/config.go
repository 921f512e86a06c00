// Package config loads the fieldhand configuration from YAML with
// environment-variable expansion.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure for fieldhand.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	LLM       LLMConfig       `yaml:"llm"`
	Tools     ToolsConfig     `yaml:"tools"`
	Progress  ProgressConfig  `yaml:"progress"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Host        string `yaml:"host"`
	HTTPPort    int    `yaml:"http_port"`
	MetricsPort int    `yaml:"metrics_port"`
}

type DatabaseConfig struct {
	// Path is the SQLite database file. Empty means in-memory sessions
	// only.
	Path string `yaml:"path"`
}

type LLMConfig struct {
	// Primary is the provider tried first; Fallback is used when the
	// primary fails with an error that warrants switching.
	Primary   string                       `yaml:"primary"`
	Fallback  string                       `yaml:"fallback"`
	Providers map[string]LLMProviderConfig `yaml:"providers"`

	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float64 `yaml:"temperature"`
	SystemPrompt string  `yaml:"system_prompt"`
}

type LLMProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
	BaseURL      string `yaml:"base_url"`
}

type ToolsConfig struct {
	// MaxConcurrency bounds parallel tool executions within a round.
	MaxConcurrency int `yaml:"max_concurrency"`

	// MaxToolRounds bounds tool-enabled rounds per user turn.
	MaxToolRounds int `yaml:"max_tool_rounds"`
}

type ProgressConfig struct {
	// HeartbeatInterval is how often keepalives are written to open
	// progress channels.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

type RateLimitConfig struct {
	// Max calls per tool per window. Zero disables admission control.
	Max    int           `yaml:"max"`
	Window time.Duration `yaml:"window"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the config file at path, expanding ${VAR}
// references from the environment and applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9090
	}
	if cfg.LLM.Primary == "" {
		cfg.LLM.Primary = "anthropic"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 4096
	}
	if cfg.Tools.MaxConcurrency == 0 {
		cfg.Tools.MaxConcurrency = 5
	}
	if cfg.Tools.MaxToolRounds == 0 {
		cfg.Tools.MaxToolRounds = 2
	}
	if cfg.Progress.HeartbeatInterval == 0 {
		cfg.Progress.HeartbeatInterval = 25 * time.Second
	}
	if cfg.RateLimit.Max == 0 {
		cfg.RateLimit.Max = 30
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = time.Minute
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}
