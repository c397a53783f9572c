package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hoplite-ai/hoplite/types"
)

// OllamaConfig configures the Ollama embedding provider.
type OllamaConfig struct {
	BaseURL    string        `yaml:"base_url" json:"base_url"`
	Model      string        `yaml:"model" json:"model"`
	Dimensions int           `yaml:"dimensions" json:"dimensions"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
}

// DefaultOllamaConfig returns the default Ollama embedding configuration.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		BaseURL:    "http://localhost:11434",
		Model:      "nomic-embed-text",
		Dimensions: 768,
		Timeout:    30 * time.Second,
	}
}

// OllamaProvider generates embeddings through a local Ollama server.
type OllamaProvider struct {
	cfg    OllamaConfig
	client *http.Client
	logger *zap.Logger
}

// NewOllamaProvider creates an Ollama embedding provider.
func NewOllamaProvider(cfg OllamaConfig, logger *zap.Logger) *OllamaProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 768
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OllamaProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("component", "ollama_embedding")),
	}
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed generates the embedding for a single text.
func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: p.cfg.Model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, types.NewError(types.KindProvider, "ollama embedding request failed").
			WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewError(types.KindProvider, "read ollama embedding response").WithCause(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, types.Errorf(types.KindProvider, "ollama embedding status %d: %s",
			resp.StatusCode, truncate(string(respBody), 200)).
			WithRetryable(resp.StatusCode >= 500)
	}

	var out ollamaEmbedResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, types.NewError(types.KindProvider, "decode ollama embedding response").WithCause(err)
	}
	if len(out.Embedding) == 0 {
		return nil, types.NewError(types.KindProvider, "ollama returned empty embedding")
	}
	if p.cfg.Dimensions > 0 && len(out.Embedding) != p.cfg.Dimensions {
		return nil, types.Errorf(types.KindProvider, "ollama embedding dimension %d, expected %d",
			len(out.Embedding), p.cfg.Dimensions)
	}

	return out.Embedding, nil
}

// EmbedBatch generates embeddings for multiple texts. The Ollama embeddings
// endpoint is single-input, so the batch is issued sequentially.
func (p *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vec, err := p.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed batch item %d: %w", i, err)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// Dimensions returns the configured output dimension.
func (p *OllamaProvider) Dimensions() int { return p.cfg.Dimensions }

// Name returns the provider name.
func (p *OllamaProvider) Name() string { return "ollama-embedding" }

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
