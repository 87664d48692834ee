// Package config holds typed runtime configuration for fedqa.
//
// Configuration is environment-driven: FromEnv reads well-known variables,
// applies defaults, and the result is validated before use. A .env file in
// the working directory is honored via LoadDotEnv.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Environment variable names recognized by FromEnv.
const (
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvOpenAIBaseURL   = "OPENAI_BASE_URL"
	EnvChatModel       = "FEDQA_CHAT_MODEL"
	EnvEmbedderModel   = "FEDQA_EMBEDDER_MODEL"
	EnvQdrantHost      = "QDRANT_HOST"
	EnvQdrantPort      = "QDRANT_PORT"
	EnvQdrantAPIKey    = "QDRANT_API_KEY"
	EnvCollection      = "FEDQA_COLLECTION"
	EnvServerPort      = "FEDQA_PORT"
	EnvTracingEnabled  = "FEDQA_TRACING_ENABLED"
	EnvTracingEndpoint = "FEDQA_TRACING_ENDPOINT"
	EnvPhoenixBaseURL  = "PHOENIX_BASE_URL"
	EnvPhoenixAPIKey   = "PHOENIX_API_KEY"
	EnvPhoenixProject  = "PHOENIX_PROJECT"
)

// LLMConfig configures an OpenAI-compatible chat completion provider.
type LLMConfig struct {
	Model       string
	APIKey      string
	Host        string
	Temperature *float64
	MaxTokens   int
	Timeout     int // seconds
	MaxRetries  int
	RetryDelay  int // seconds
}

// EmbedderConfig configures the embedding provider used by the retriever
// and the ingest command.
type EmbedderConfig struct {
	Model      string
	APIKey     string
	Host       string
	Dimensions int
	Timeout    int
	MaxRetries int
}

// VectorStoreConfig configures the Qdrant connection.
type VectorStoreConfig struct {
	Host       string
	Port       int
	APIKey     string
	EnableTLS  *bool
	Collection string
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host string
	Port int
}

// TracingConfig configures the OTLP span exporter toward Phoenix.
type TracingConfig struct {
	Enabled      bool
	ExporterType string // "otlp" or "stdout"
	Endpoint     string
	SamplingRate float64
	ServiceName  string
	ProjectName  string
}

// TraceStoreConfig configures the Phoenix REST client used by the
// evaluation pipeline.
type TraceStoreConfig struct {
	BaseURL string
	APIKey  string
	Project string
	Timeout int
}

// EvalConfig configures the offline evaluation pipeline.
type EvalConfig struct {
	MaxQueries  int
	Concurrency int
}

// Config is the root configuration for all fedqa commands.
type Config struct {
	LLM         LLMConfig
	Guardrail   LLMConfig
	Embedder    EmbedderConfig
	VectorStore VectorStoreConfig
	Server      ServerConfig
	Tracing     TracingConfig
	TraceStore  TraceStoreConfig
	Eval        EvalConfig
}

// FromEnv builds a Config from environment variables with defaults applied.
func FromEnv() *Config {
	apiKey := os.Getenv(EnvOpenAIAPIKey)
	host := getEnv(EnvOpenAIBaseURL, "https://api.openai.com/v1")
	model := getEnv(EnvChatModel, "gpt-4.1")

	return &Config{
		LLM: LLMConfig{
			Model:      model,
			APIKey:     apiKey,
			Host:       host,
			MaxTokens:  1000,
			Timeout:    60,
			MaxRetries: 3,
			RetryDelay: 2,
		},
		// The guardrail classifier runs deterministic and short.
		Guardrail: LLMConfig{
			Model:       model,
			APIKey:      apiKey,
			Host:        host,
			Temperature: FloatPtr(0.0),
			MaxTokens:   100,
			Timeout:     30,
			MaxRetries:  3,
			RetryDelay:  2,
		},
		Embedder: EmbedderConfig{
			Model:      getEnv(EnvEmbedderModel, "text-embedding-3-small"),
			APIKey:     apiKey,
			Host:       host,
			Dimensions: 384,
			Timeout:    60,
			MaxRetries: 3,
		},
		VectorStore: VectorStoreConfig{
			Host:       getEnv(EnvQdrantHost, "localhost"),
			Port:       getEnvInt(EnvQdrantPort, 6334),
			APIKey:     os.Getenv(EnvQdrantAPIKey),
			EnableTLS:  BoolPtr(false),
			Collection: getEnv(EnvCollection, "fed_speeches"),
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: getEnvInt(EnvServerPort, 8000),
		},
		Tracing: TracingConfig{
			Enabled:      getEnvBool(EnvTracingEnabled, true),
			ExporterType: "otlp",
			Endpoint:     getEnv(EnvTracingEndpoint, "localhost:4317"),
			SamplingRate: 1.0,
			ServiceName:  "fedqa",
			ProjectName:  getEnv(EnvPhoenixProject, "fast_api_agent"),
		},
		TraceStore: TraceStoreConfig{
			BaseURL: getEnv(EnvPhoenixBaseURL, "http://localhost:6006"),
			APIKey:  os.Getenv(EnvPhoenixAPIKey),
			Project: getEnv(EnvPhoenixProject, "fast_api_agent"),
			Timeout: 30,
		},
		Eval: EvalConfig{
			MaxQueries:  20,
			Concurrency: 4,
		},
	}
}

// Validate checks the configuration for values that would fail at runtime.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("missing OpenAI API key: set %s", EnvOpenAIAPIKey)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("chat model must not be empty")
	}
	if c.VectorStore.Host == "" {
		return fmt.Errorf("vector store host must not be empty")
	}
	if c.VectorStore.Port <= 0 || c.VectorStore.Port > 65535 {
		return fmt.Errorf("invalid vector store port: %d", c.VectorStore.Port)
	}
	if c.VectorStore.Collection == "" {
		return fmt.Errorf("collection name must not be empty")
	}
	if c.Embedder.Dimensions <= 0 {
		return fmt.Errorf("embedder dimensions must be positive, got %d", c.Embedder.Dimensions)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return fmt.Errorf("sampling rate must be in [0, 1], got %f", c.Tracing.SamplingRate)
	}
	if c.Eval.MaxQueries <= 0 {
		return fmt.Errorf("eval max queries must be positive, got %d", c.Eval.MaxQueries)
	}
	if c.Eval.Concurrency <= 0 {
		return fmt.Errorf("eval concurrency must be positive, got %d", c.Eval.Concurrency)
	}
	return nil
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool { return &b }

// FloatPtr returns a pointer to f.
func FloatPtr(f float64) *float64 { return &f }

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
