// Package config loads dbscribe configuration from the environment and
// an optional YAML file.
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

// Provider identifies an LLM or embedding backend.
type Provider string

const (
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderBedrock   Provider = "bedrock"
)

// Config holds all configuration values.
type Config struct {
	// SQL Server connection
	SQLServer   string `yaml:"sql_server"`
	SQLDatabase string `yaml:"sql_database"`
	SQLUser     string `yaml:"sql_user"`
	SQLPassword string `yaml:"sql_password"`
	SQLTrusted  bool   `yaml:"sql_trusted"`

	// LLM analysis
	LLMProvider     Provider `yaml:"llm_provider"`
	LLMModel        string   `yaml:"llm_model"`
	OllamaHost      string   `yaml:"ollama_host"`
	OpenAIAPIKey    string   `yaml:"openai_api_key"`
	AnthropicAPIKey string   `yaml:"anthropic_api_key"`
	BedrockRegion   string   `yaml:"bedrock_region"`

	// Token pricing (USD per 1K tokens) for cost estimation
	InputCostPer1K  float64 `yaml:"input_cost_per_1k"`
	OutputCostPer1K float64 `yaml:"output_cost_per_1k"`

	// Embedding
	EmbedProvider  Provider `yaml:"embed_provider"`
	EmbedModel     string   `yaml:"embed_model"`
	EmbedDimension int      `yaml:"embed_dimension"`

	// Document index
	IndexPath string `yaml:"index_path"`
	DataDir   string `yaml:"data_dir"`

	// HTTP server
	Port string `yaml:"port"`

	// Per-step timeout for batch I/O (metadata queries, LLM calls, upserts)
	StepTimeout time.Duration `yaml:"-"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		SQLServer:   getEnv("DBSCRIBE_SQL_SERVER", "localhost"),
		SQLDatabase: getEnv("DBSCRIBE_SQL_DATABASE", ""),
		SQLUser:     getEnv("DBSCRIBE_SQL_USER", ""),
		SQLPassword: getEnv("DBSCRIBE_SQL_PASSWORD", ""),
		SQLTrusted:  getEnv("DBSCRIBE_SQL_TRUSTED", "false") == "true",

		LLMProvider:     Provider(getEnv("DBSCRIBE_LLM_PROVIDER", string(ProviderOllama))),
		LLMModel:        getEnv("DBSCRIBE_LLM_MODEL", "llama3.2"),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		BedrockRegion:   getEnv("AWS_REGION", "us-east-1"),

		InputCostPer1K:  getEnvFloat("DBSCRIBE_INPUT_COST_PER_1K", 0.003),
		OutputCostPer1K: getEnvFloat("DBSCRIBE_OUTPUT_COST_PER_1K", 0.015),

		EmbedProvider:  Provider(getEnv("DBSCRIBE_EMBED_PROVIDER", string(ProviderOllama))),
		EmbedModel:     getEnv("DBSCRIBE_EMBED_MODEL", "all-minilm:l6-v2"),
		EmbedDimension: getEnvInt("DBSCRIBE_EMBED_DIMENSION", 384),

		IndexPath: getEnv("DBSCRIBE_INDEX_PATH", "dbscribe-index.db"),
		DataDir:   getEnv("DBSCRIBE_DATA_DIR", "."),

		Port: getEnv("DBSCRIBE_PORT", "8490"),

		StepTimeout: getEnvDuration("DBSCRIBE_STEP_TIMEOUT", 2*time.Minute),

		LogFile:  getEnv("DBSCRIBE_LOG_FILE", ""),
		LogLevel: ParseLogLevel(getEnv("DBSCRIBE_LOG_LEVEL", "INFO")),
	}
}

// LoadFile loads environment configuration, then overlays non-zero values
// from a YAML file.
func LoadFile(path string) (Config, error) {
	cfg := Load()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}

	// Durations are written as strings ("30s", "2m") in YAML.
	var extra struct {
		StepTimeout string `yaml:"step_timeout"`
		LogLevel    string `yaml:"log_level"`
	}
	if err := yaml.Unmarshal(data, &extra); err == nil {
		if extra.StepTimeout != "" {
			d, err := time.ParseDuration(extra.StepTimeout)
			if err != nil {
				return cfg, fmt.Errorf("parse step_timeout: %w", err)
			}
			overlay.StepTimeout = d
		}
		if extra.LogLevel != "" {
			overlay.LogLevel = ParseLogLevel(extra.LogLevel)
			cfg.LogLevel = overlay.LogLevel
		}
	}

	cfg.merge(overlay)
	return cfg, nil
}

func (c *Config) merge(other Config) {
	if other.SQLServer != "" {
		c.SQLServer = other.SQLServer
	}
	if other.SQLDatabase != "" {
		c.SQLDatabase = other.SQLDatabase
	}
	if other.SQLUser != "" {
		c.SQLUser = other.SQLUser
	}
	if other.SQLPassword != "" {
		c.SQLPassword = other.SQLPassword
	}
	if other.SQLTrusted {
		c.SQLTrusted = true
	}
	if other.LLMProvider != "" {
		c.LLMProvider = other.LLMProvider
	}
	if other.LLMModel != "" {
		c.LLMModel = other.LLMModel
	}
	if other.OllamaHost != "" {
		c.OllamaHost = other.OllamaHost
	}
	if other.OpenAIAPIKey != "" {
		c.OpenAIAPIKey = other.OpenAIAPIKey
	}
	if other.AnthropicAPIKey != "" {
		c.AnthropicAPIKey = other.AnthropicAPIKey
	}
	if other.BedrockRegion != "" {
		c.BedrockRegion = other.BedrockRegion
	}
	if other.InputCostPer1K != 0 {
		c.InputCostPer1K = other.InputCostPer1K
	}
	if other.OutputCostPer1K != 0 {
		c.OutputCostPer1K = other.OutputCostPer1K
	}
	if other.EmbedProvider != "" {
		c.EmbedProvider = other.EmbedProvider
	}
	if other.EmbedModel != "" {
		c.EmbedModel = other.EmbedModel
	}
	if other.EmbedDimension != 0 {
		c.EmbedDimension = other.EmbedDimension
	}
	if other.IndexPath != "" {
		c.IndexPath = other.IndexPath
	}
	if other.DataDir != "" {
		c.DataDir = other.DataDir
	}
	if other.Port != "" {
		c.Port = other.Port
	}
	if other.StepTimeout != 0 {
		c.StepTimeout = other.StepTimeout
	}
	if other.LogFile != "" {
		c.LogFile = other.LogFile
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// ParseLogLevel converts a level name to a slog.Level, defaulting to INFO.
func ParseLogLevel(s string) slog.Level {
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
