// Package embedding turns text into vectors for knowledge base lookups.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Ananth-NQI/defi-assistant-backend/internal/config"
)

// ErrEmptyText is returned for blank input.
var ErrEmptyText = errors.New("embedding: text is empty")

// Embedder generates embeddings for a single text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	Name() string
	Ping(ctx context.Context) error
}

// New builds the embedder selected by configuration.
func New(ctx context.Context, cfg config.EmbeddingConfig, llm config.LLMConfig) (Embedder, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIEmbedder(llm.OpenAIKey, llm.OpenAIBaseURL, cfg.Model, cfg.Dimension), nil
	case config.ProviderGemini:
		return NewGeminiEmbedder(ctx, llm.GoogleKey, cfg.Model, cfg.Dimension)
	case config.ProviderOllama:
		base, err := url.Parse(llm.OllamaHost)
		if err != nil {
			return nil, fmt.Errorf("parse OLLAMA_HOST: %w", err)
		}
		return NewOllamaEmbedder(base, &http.Client{Timeout: llm.Timeout}, cfg.Model, cfg.Dimension), nil
	case config.ProviderMock:
		return NewHashEmbedder(cfg.Dimension), nil
	}
	return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
}

func checkText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	return nil
}
