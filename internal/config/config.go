package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Providers lists the supported model backends.
var Providers = []string{"lmstudio", "openai", "anthropic", "groq", "ollama", "dummy"}

var defaultModels = map[string]string{
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-3-5-sonnet-latest",
	"groq":      "llama-3.3-70b-versatile",
	"ollama":    "llama3",
	"dummy":     "dummy",
}

// Config is the immutable runtime configuration handed to every component.
// Values come from defaults, then an optional YAML file, then the
// environment (a .env file is loaded into the environment first).
type Config struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`

	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	GroqAPIKey      string `yaml:"groq_api_key"`
	OllamaBaseURL   string `yaml:"ollama_base_url"`
	LMStudioBaseURL string `yaml:"lmstudio_base_url"`
	OpenAIBaseURL   string `yaml:"openai_base_url"`

	Workspace     string `yaml:"workspace"`
	SafeMode      bool   `yaml:"safe_mode"`
	MaxFileSizeMB int    `yaml:"max_file_size_mb"`
	DangerExtra   string `yaml:"danger_patterns"`

	ExecTimeoutSeconds int `yaml:"exec_timeout_seconds"`
	ExecMaxOutputLines int `yaml:"exec_max_output_lines"`
	ExecMaxOutputBytes int `yaml:"exec_max_output_bytes"`
	AITimeoutSeconds   int `yaml:"ai_timeout_seconds"`
	MaxIterations      int `yaml:"max_iterations"`
	MaxWallTimeSeconds int `yaml:"max_wall_time_seconds"`
	HistoryLimit       int `yaml:"history_limit"`

	Protocol             string `yaml:"protocol"`
	JSONStringAware      bool   `yaml:"json_string_aware"`
	JSONRequireReasoning bool   `yaml:"json_require_reasoning"`

	DBPath      string `yaml:"db_path"`
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
	DummyScript string `yaml:"dummy_script"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Provider:           "lmstudio",
		OllamaBaseURL:      "http://localhost:11434",
		LMStudioBaseURL:    "http://localhost:1234/v1",
		Workspace:          "./workspace",
		SafeMode:           true,
		MaxFileSizeMB:      10,
		ExecTimeoutSeconds: 30,
		ExecMaxOutputLines: 2000,
		ExecMaxOutputBytes: 51200,
		AITimeoutSeconds:   120,
		MaxIterations:      20,
		Protocol:           "tagged",
		LogLevel:           "info",
		DummyScript:        "ok",
	}
}

// Load builds the configuration from .env, AGENT_CONFIG_FILE and the
// environment, then finalizes it.
func Load() (Config, error) {
	cfg, err := Resolve()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Finalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Resolve layers defaults, the YAML file and the environment without
// validating, so callers can apply command-line overrides first.
func Resolve() (Config, error) {
	// A missing .env is normal; existing variables are never overridden.
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("AGENT_CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// Finalize fills the provider's default model and validates.
func (c *Config) Finalize() error {
	if c.Model == "" {
		c.Model = defaultModels[c.Provider]
	}
	return c.Validate()
}

// LoadFile overlays the YAML file at path. Keys absent from the file keep
// their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment variables on the current values.
func (c *Config) ApplyEnv() {
	c.Provider = strings.ToLower(envOrDefault("AGENT_PROVIDER", c.Provider))
	c.Model = envOrDefault("AGENT_MODEL", c.Model)
	c.Temperature = envFloatOrDefault("AGENT_TEMPERATURE", c.Temperature)

	c.OpenAIAPIKey = envOrDefault("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.AnthropicAPIKey = envOrDefault("ANTHROPIC_API_KEY", c.AnthropicAPIKey)
	c.GroqAPIKey = envOrDefault("GROQ_API_KEY", c.GroqAPIKey)
	c.OllamaBaseURL = envOrDefault("OLLAMA_BASE_URL", c.OllamaBaseURL)
	c.LMStudioBaseURL = envOrDefault("LMSTUDIO_BASE_URL", c.LMStudioBaseURL)
	c.OpenAIBaseURL = envOrDefault("OPENAI_BASE_URL", c.OpenAIBaseURL)

	c.Workspace = envOrDefault("AGENT_WORKSPACE", c.Workspace)
	c.SafeMode = envBoolOrDefault("AGENT_SAFE_MODE", c.SafeMode)
	c.MaxFileSizeMB = envIntOrDefault("AGENT_MAX_FILE_SIZE_MB", c.MaxFileSizeMB)
	c.DangerExtra = envOrDefault("AGENT_DANGER_PATTERNS", c.DangerExtra)

	c.ExecTimeoutSeconds = envIntOrDefault("AGENT_EXEC_TIMEOUT_SECONDS", c.ExecTimeoutSeconds)
	c.ExecMaxOutputLines = envIntOrDefault("AGENT_EXEC_MAX_OUTPUT_LINES", c.ExecMaxOutputLines)
	c.ExecMaxOutputBytes = envIntOrDefault("AGENT_EXEC_MAX_OUTPUT_BYTES", c.ExecMaxOutputBytes)
	c.AITimeoutSeconds = envIntOrDefault("AGENT_AI_TIMEOUT_SECONDS", c.AITimeoutSeconds)
	c.MaxIterations = envIntOrDefault("AGENT_MAX_ITERATIONS", c.MaxIterations)
	c.MaxWallTimeSeconds = envIntOrDefault("AGENT_MAX_WALL_TIME_SECONDS", c.MaxWallTimeSeconds)
	c.HistoryLimit = envIntOrDefault("AGENT_HISTORY_LIMIT", c.HistoryLimit)

	c.Protocol = strings.ToLower(envOrDefault("AGENT_PROTOCOL", c.Protocol))
	c.JSONStringAware = envBoolOrDefault("AGENT_JSON_STRING_AWARE", c.JSONStringAware)
	c.JSONRequireReasoning = envBoolOrDefault("AGENT_JSON_REQUIRE_REASONING", c.JSONRequireReasoning)

	c.DBPath = envOrDefault("AGENT_DB_PATH", c.DBPath)
	c.LogLevel = envOrDefault("AGENT_LOG_LEVEL", c.LogLevel)
	c.LogFile = envOrDefault("AGENT_LOG_FILE", c.LogFile)
	c.DummyScript = envOrDefault("AGENT_DUMMY_SCRIPT", c.DummyScript)
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	known := false
	for _, p := range Providers {
		if c.Provider == p {
			known = true
			break
		}
	}
	if !known {
		errs = append(errs, fmt.Errorf("AGENT_PROVIDER must be one of %s, got %q", strings.Join(Providers, ", "), c.Provider))
	}
	switch c.Provider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			errs = append(errs, fmt.Errorf("OPENAI_API_KEY is required when AGENT_PROVIDER=openai"))
		}
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			errs = append(errs, fmt.Errorf("ANTHROPIC_API_KEY is required when AGENT_PROVIDER=anthropic"))
		}
	case "groq":
		if c.GroqAPIKey == "" {
			errs = append(errs, fmt.Errorf("GROQ_API_KEY is required when AGENT_PROVIDER=groq"))
		}
	}

	if strings.TrimSpace(c.Workspace) == "" {
		errs = append(errs, fmt.Errorf("AGENT_WORKSPACE must not be empty"))
	}
	if c.Protocol != "tagged" && c.Protocol != "json" {
		errs = append(errs, fmt.Errorf("AGENT_PROTOCOL must be tagged or json, got %q", c.Protocol))
	}
	for _, v := range []struct {
		name  string
		value int
	}{
		{"AGENT_MAX_FILE_SIZE_MB", c.MaxFileSizeMB},
		{"AGENT_EXEC_TIMEOUT_SECONDS", c.ExecTimeoutSeconds},
		{"AGENT_EXEC_MAX_OUTPUT_LINES", c.ExecMaxOutputLines},
		{"AGENT_EXEC_MAX_OUTPUT_BYTES", c.ExecMaxOutputBytes},
		{"AGENT_AI_TIMEOUT_SECONDS", c.AITimeoutSeconds},
		{"AGENT_MAX_ITERATIONS", c.MaxIterations},
	} {
		if v.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0, got %d", v.name, v.value))
		}
	}
	if c.MaxWallTimeSeconds < 0 {
		errs = append(errs, fmt.Errorf("AGENT_MAX_WALL_TIME_SECONDS must be >= 0, got %d", c.MaxWallTimeSeconds))
	}
	if c.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("AGENT_HISTORY_LIMIT must be >= 0, got %d", c.HistoryLimit))
	}
	return errors.Join(errs...)
}

func (c Config) ExecTimeout() time.Duration {
	return time.Duration(c.ExecTimeoutSeconds) * time.Second
}

func (c Config) AITimeout() time.Duration {
	return time.Duration(c.AITimeoutSeconds) * time.Second
}

func (c Config) MaxWallTime() time.Duration {
	return time.Duration(c.MaxWallTimeSeconds) * time.Second
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloatOrDefault(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBoolOrDefault(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v == "1" || strings.EqualFold(v, "true")
}
