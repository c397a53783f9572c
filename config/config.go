// Package config loads the engine configuration from defaults, an optional
// YAML file, and environment variables, in that order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hoplite-ai/hoplite/assistant"
	"github.com/hoplite-ai/hoplite/consensus"
	"github.com/hoplite-ai/hoplite/embedding"
	"github.com/hoplite-ai/hoplite/index"
	"github.com/hoplite-ai/hoplite/llm"
	"github.com/hoplite-ai/hoplite/planner"
	"github.com/hoplite-ai/hoplite/retrieval"
	"github.com/hoplite-ai/hoplite/verify"
)

// Config is the complete engine configuration.
type Config struct {
	Server    ServerConfig           `yaml:"server" env:"SERVER"`
	Log       LogConfig              `yaml:"log" env:"LOG"`
	LLM       llm.OllamaConfig       `yaml:"llm" env:"LLM"`
	Embedding embedding.OllamaConfig `yaml:"embedding" env:"EMBEDDING"`
	RateLimit RateLimitConfig        `yaml:"rate_limit" env:"RATE_LIMIT"`
	Index     index.Config           `yaml:"index" env:"INDEX"`
	Retrieval retrieval.Config       `yaml:"retrieval" env:"RETRIEVAL"`
	Rerank    retrieval.RerankConfig `yaml:"rerank" env:"RERANK"`
	Planner   planner.Config         `yaml:"planner" env:"PLANNER"`
	Consensus consensus.Config       `yaml:"consensus" env:"CONSENSUS"`
	Verify    verify.Config          `yaml:"verify" env:"VERIFY"`
	Engine    assistant.Config       `yaml:"engine" env:"ENGINE"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level        string   `yaml:"level" env:"LEVEL"`   // debug, info, warn, error
	Format       string   `yaml:"format" env:"FORMAT"` // json, console
	OutputPaths  []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
}

// RateLimitConfig throttles outbound LLM calls.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" env:"RPS"`
	Burst int     `yaml:"burst" env:"BURST"`
}

// DefaultConfig returns the full default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Log: LogConfig{
			Level:        "info",
			Format:       "json",
			OutputPaths:  []string{"stdout"},
			EnableCaller: true,
		},
		LLM:       llm.DefaultOllamaConfig(),
		Embedding: embedding.DefaultOllamaConfig(),
		RateLimit: RateLimitConfig{RPS: 10, Burst: 20},
		Index:     index.DefaultConfig(),
		Retrieval: retrieval.DefaultConfig(),
		Rerank:    retrieval.DefaultRerankConfig(),
		Planner:   planner.DefaultConfig(),
		Consensus: consensus.DefaultConfig(),
		Verify:    verify.DefaultConfig(),
		Engine:    assistant.DefaultConfig(),
	}
}

// Validate checks cross-field consistency that the per-package constructors
// cannot see.
func (c *Config) Validate() error {
	var errs []string

	if c.Index.Dimension <= 0 {
		errs = append(errs, "index dimension must be positive")
	}
	if c.Embedding.Dimensions != 0 && c.Embedding.Dimensions != c.Index.Dimension {
		errs = append(errs, fmt.Sprintf(
			"embedding dimensions (%d) must match index dimension (%d)",
			c.Embedding.Dimensions, c.Index.Dimension))
	}
	if c.Planner.MaxHops <= 0 {
		errs = append(errs, "planner max_hops must be positive")
	}
	if c.Consensus.SampleCount <= 0 {
		errs = append(errs, "consensus sample_count must be positive")
	}
	if c.Consensus.BaseTemperature < 0 || c.Consensus.BaseTemperature > 2 {
		errs = append(errs, "consensus base_temperature must be between 0 and 2")
	}
	if c.Verify.SimilarityThreshold < 0 || c.Verify.SimilarityThreshold > 1 {
		errs = append(errs, "verify similarity_threshold must be between 0 and 1")
	}
	if c.RateLimit.RPS < 0 {
		errs = append(errs, "rate_limit rps must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
