package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the triage service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	AI       AIConfig       `yaml:"ai"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Router   RouterConfig   `yaml:"router"`
	KB       KBConfig       `yaml:"knowledge_base"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host                string   `yaml:"host"`
	Port                int      `yaml:"port"`
	ReadTimeoutSeconds  int      `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int      `yaml:"write_timeout_seconds"`
	AllowedOrigins      []string `yaml:"allowed_origins"`
}

// ReadTimeout returns the read timeout as a duration.
func (s ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the write timeout as a duration.
func (s ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSeconds) * time.Second
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_minutes"`
}

// MaxLifetime returns the connection max lifetime as a duration.
func (d DatabaseConfig) MaxLifetime() time.Duration {
	return time.Duration(d.ConnMaxLifetime) * time.Minute
}

// RedisConfig holds Redis connection settings. Redis is optional: the
// classifier cache and distributed locks fall back when Addr is empty.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled reports whether Redis is configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

// AIConfig holds AI provider settings.
type AIConfig struct {
	// Provider selects the chat backend: "openai" (any OpenAI-compatible
	// endpoint) or "bedrock". Empty disables AI; everything falls back
	// to rules.
	Provider string        `yaml:"provider"`
	OpenAI   OpenAIConfig  `yaml:"openai"`
	Bedrock  BedrockConfig `yaml:"bedrock"`

	TimeoutSeconds int `yaml:"timeout_seconds"`
	MaxRetries     int `yaml:"max_retries"`

	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
}

// Timeout returns the per-call AI timeout as a duration.
func (a AIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// CacheTTL returns the classification cache TTL as a duration.
func (a AIConfig) CacheTTL() time.Duration {
	return time.Duration(a.CacheTTLSeconds) * time.Second
}

// Enabled reports whether an AI provider is configured.
func (a AIConfig) Enabled() bool { return a.Provider != "" }

// OpenAIConfig holds settings for OpenAI-compatible chat/embedding APIs.
type OpenAIConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	EmbeddingModel string `yaml:"embedding_model"`
}

// BedrockConfig holds AWS Bedrock settings.
type BedrockConfig struct {
	Region  string `yaml:"region"`
	ModelID string `yaml:"model_id"`
}

// PipelineConfig holds enrichment pipeline settings.
type PipelineConfig struct {
	Workers             int  `yaml:"workers"`
	PollIntervalSeconds int  `yaml:"poll_interval_seconds"`
	TimeoutSeconds      int  `yaml:"timeout_seconds"`
	MaxAttempts         int  `yaml:"max_attempts"`
	SyncProcessing      bool `yaml:"sync_processing"` // process on create instead of enqueueing

	// Truncation bounds for text handed to the analysis steps.
	ClassifyMaxChars  int `yaml:"classify_max_chars"`
	SentimentMaxChars int `yaml:"sentiment_max_chars"`

	SLAScanIntervalMinutes int `yaml:"sla_scan_interval_minutes"`
}

// PollInterval returns the job poll interval as a duration.
func (p PipelineConfig) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalSeconds) * time.Second
}

// Timeout returns the per-run pipeline deadline as a duration.
func (p PipelineConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// SLAScanInterval returns how often the SLA scanner runs.
func (p PipelineConfig) SLAScanInterval() time.Duration {
	return time.Duration(p.SLAScanIntervalMinutes) * time.Minute
}

// RouterConfig holds routing and assignment settings.
type RouterConfig struct {
	AssignMaxRetries int `yaml:"assign_max_retries"`
}

// KBConfig holds knowledge base retrieval settings.
type KBConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	MaxSuggestions      int     `yaml:"max_suggestions"`
	EmbeddingDimensions int     `yaml:"embedding_dimensions"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Load reads configuration from the given YAML file, then applies
// environment variable overrides and defaults. A missing file is not an
// error; env-only deployments are supported.
func Load(path string) (*Config, error) {
	// Best effort .env load for local development
	_ = godotenv.Load()

	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TRIAGE_DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" && c.Database.URL == "" {
		c.Database.URL = v
	}
	if v := os.Getenv("TRIAGE_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("TRIAGE_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.AI.OpenAI.APIKey = v
		if c.AI.Provider == "" {
			c.AI.Provider = "openai"
		}
	}
	if v := os.Getenv("TRIAGE_AI_PROVIDER"); v != "" {
		c.AI.Provider = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" && c.AI.Bedrock.Region == "" {
		c.AI.Bedrock.Region = v
	}
	if v := os.Getenv("TRIAGE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil && port > 0 {
			c.Server.Port = port
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeoutSeconds == 0 {
		c.Server.ReadTimeoutSeconds = 30
	}
	if c.Server.WriteTimeoutSeconds == 0 {
		c.Server.WriteTimeoutSeconds = 60
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = 30
	}
	if c.AI.OpenAI.BaseURL == "" {
		c.AI.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if c.AI.OpenAI.Model == "" {
		c.AI.OpenAI.Model = "gpt-4o-mini"
	}
	if c.AI.OpenAI.EmbeddingModel == "" {
		c.AI.OpenAI.EmbeddingModel = "text-embedding-3-small"
	}
	if c.AI.Bedrock.ModelID == "" {
		c.AI.Bedrock.ModelID = "anthropic.claude-3-sonnet-20240229-v1:0"
	}
	if c.AI.Bedrock.Region == "" {
		c.AI.Bedrock.Region = "us-east-1"
	}
	if c.AI.TimeoutSeconds == 0 {
		c.AI.TimeoutSeconds = 30
	}
	if c.AI.MaxRetries == 0 {
		c.AI.MaxRetries = 3
	}
	if c.AI.CacheTTLSeconds == 0 {
		c.AI.CacheTTLSeconds = 3600
	}
	if c.Pipeline.Workers == 0 {
		c.Pipeline.Workers = 4
	}
	if c.Pipeline.PollIntervalSeconds == 0 {
		c.Pipeline.PollIntervalSeconds = 2
	}
	if c.Pipeline.TimeoutSeconds == 0 {
		c.Pipeline.TimeoutSeconds = 300
	}
	if c.Pipeline.MaxAttempts == 0 {
		c.Pipeline.MaxAttempts = 3
	}
	if c.Pipeline.ClassifyMaxChars == 0 {
		c.Pipeline.ClassifyMaxChars = 5000
	}
	if c.Pipeline.SentimentMaxChars == 0 {
		c.Pipeline.SentimentMaxChars = 2000
	}
	if c.Pipeline.SLAScanIntervalMinutes == 0 {
		c.Pipeline.SLAScanIntervalMinutes = 5
	}
	if c.Router.AssignMaxRetries == 0 {
		c.Router.AssignMaxRetries = 3
	}
	if c.KB.SimilarityThreshold == 0 {
		c.KB.SimilarityThreshold = 0.5
	}
	if c.KB.MaxSuggestions == 0 {
		c.KB.MaxSuggestions = 3
	}
	if c.KB.EmbeddingDimensions == 0 {
		c.KB.EmbeddingDimensions = 1536
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.RedactPII == nil {
		t := true
		c.Logging.RedactPII = &t
	}
}
