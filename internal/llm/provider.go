package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Ananth-NQI/defi-assistant-backend/internal/config"
)

// Task identifies which step of the pipeline a completion serves. Each task
// can be routed to a different model.
type Task string

const (
	TaskIntent    Task = "intent"
	TaskQuery     Task = "query"
	TaskAction    Task = "action"
	TaskQuestion  Task = "question"
	TaskSubIntent Task = "sub_intent"
)

// ErrUnavailable is returned when neither the task model nor the fallback
// model produced a completion.
var ErrUnavailable = errors.New("language model unavailable")

// Request is a single prompt/response completion.
type Request struct {
	Task        Task
	Model       string
	System      string
	Prompt      string
	Input       string // raw user text the prompt was built from
	Temperature float32
	MaxTokens   int
	JSON        bool
}

// Provider is a hosted or local language model backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
	Ping(ctx context.Context) error
}

// NewProvider builds the provider selected by configuration.
func NewProvider(ctx context.Context, cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIProvider(cfg.OpenAIKey, cfg.OpenAIBaseURL), nil
	case config.ProviderGemini:
		return NewGeminiProvider(ctx, cfg.GoogleKey)
	case config.ProviderOllama:
		base, err := url.Parse(cfg.OllamaHost)
		if err != nil {
			return nil, fmt.Errorf("parse OLLAMA_HOST: %w", err)
		}
		return NewOllamaProvider(base, &http.Client{Timeout: cfg.Timeout}), nil
	case config.ProviderMock:
		return NewMockProvider(), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
}
