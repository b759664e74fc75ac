// Package config loads service configuration from environment variables with
// an optional YAML file overlay.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LLM provider identifiers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderBedrock   = "bedrock"
)

// Config holds all configuration values.
type Config struct {
	// HTTP server
	Port      string `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"`

	// SurrealDB connection
	SurrealDBURL       string `yaml:"surrealdb_url"`
	SurrealDBNamespace string `yaml:"surrealdb_namespace"`
	SurrealDBDatabase  string `yaml:"surrealdb_database"`
	SurrealDBUser      string `yaml:"surrealdb_user"`
	SurrealDBPass      string `yaml:"surrealdb_pass"`
	SurrealDBAuthLevel string `yaml:"surrealdb_auth_level"`

	// Model gateway
	LLMProvider     string `yaml:"llm_provider"`
	LLMModel        string `yaml:"llm_model"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OllamaHost      string `yaml:"ollama_host"`

	// ModelTimeout bounds a single model call. Callers surface a deadline as a
	// retryable internal error rather than hang.
	ModelTimeout time.Duration `yaml:"model_timeout"`

	// Quiz
	AnswerKeyPath string `yaml:"answer_key_path"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
}

// Load reads configuration from the environment. If ATOMIC_CONFIG points at a
// YAML file, its values are applied first and environment variables override.
func Load() (Config, error) {
	cfg := Config{
		Port:               "8585",
		SurrealDBURL:       "ws://localhost:8000/rpc",
		SurrealDBNamespace: "atomic",
		SurrealDBDatabase:  "chat",
		SurrealDBUser:      "root",
		SurrealDBPass:      "root",
		SurrealDBAuthLevel: "root",
		LLMProvider:        ProviderOpenAI,
		LLMModel:           "gpt-4o",
		OllamaHost:         "http://localhost:11434",
		ModelTimeout:       2 * time.Minute,
		AnswerKeyPath:      "answer_key.csv",
		LogFile:            "/tmp/atomic.log",
		LogLevel:           slog.LevelInfo,
	}

	if path := os.Getenv("ATOMIC_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(&cfg)
	cfg.LogLevel = parseLogLevel(getEnv("ATOMIC_LOG_LEVEL", "INFO"))

	if timeout := os.Getenv("ATOMIC_MODEL_TIMEOUT_SECONDS"); timeout != "" {
		secs, err := strconv.Atoi(timeout)
		if err != nil || secs <= 0 {
			return Config{}, fmt.Errorf("invalid ATOMIC_MODEL_TIMEOUT_SECONDS: %q", timeout)
		}
		cfg.ModelTimeout = time.Duration(secs) * time.Second
	}

	return cfg, nil
}

// ValidateServer checks the settings the API server cannot run without. An
// empty JWT secret would verify tokens signed with the empty key, so startup
// refuses it instead of serving with authentication disabled.
func (c Config) ValidateServer() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required (set ATOMIC_JWT_SECRET)")
	}
	return nil
}

func applyEnv(cfg *Config) {
	setEnv(&cfg.Port, "ATOMIC_PORT")
	setEnv(&cfg.JWTSecret, "ATOMIC_JWT_SECRET")
	setEnv(&cfg.SurrealDBURL, "SURREALDB_URL")
	setEnv(&cfg.SurrealDBNamespace, "SURREALDB_NAMESPACE")
	setEnv(&cfg.SurrealDBDatabase, "SURREALDB_DATABASE")
	setEnv(&cfg.SurrealDBUser, "SURREALDB_USER")
	setEnv(&cfg.SurrealDBPass, "SURREALDB_PASS")
	setEnv(&cfg.SurrealDBAuthLevel, "SURREALDB_AUTH_LEVEL")
	setEnv(&cfg.LLMProvider, "ATOMIC_LLM_PROVIDER")
	setEnv(&cfg.LLMModel, "ATOMIC_LLM_MODEL")
	setEnv(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	setEnv(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	setEnv(&cfg.OllamaHost, "OLLAMA_HOST")
	setEnv(&cfg.AnswerKeyPath, "ATOMIC_ANSWER_KEY")
	setEnv(&cfg.LogFile, "ATOMIC_LOG_FILE")
}

func setEnv(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
