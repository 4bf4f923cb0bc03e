package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/defi-assistant-backend/internal/config"
)

// ModelSet maps pipeline tasks onto model names.
type ModelSet struct {
	Intent    string `json:"intent"`
	Query     string `json:"query"`
	Action    string `json:"action"`
	Question  string `json:"question"`
	SubIntent string `json:"sub_intent"`
	Fallback  string `json:"fallback"`
}

func (m ModelSet) forTask(t Task) string {
	switch t {
	case TaskIntent:
		return m.Intent
	case TaskQuery:
		return m.Query
	case TaskAction:
		return m.Action
	case TaskQuestion:
		return m.Question
	case TaskSubIntent:
		return m.SubIntent
	}
	return m.Fallback
}

// DefaultModels returns the per-task defaults of a provider.
func DefaultModels(provider string) ModelSet {
	switch provider {
	case config.ProviderGemini:
		return ModelSet{
			Intent: "gemini-2.0-flash", Query: "gemini-2.5-flash", Action: "gemini-2.0-flash",
			Question: "gemini-2.0-flash", SubIntent: "gemini-2.0-flash-lite", Fallback: "gemini-2.0-flash-lite",
		}
	case config.ProviderOllama:
		return ModelSet{
			Intent: "llama3.2", Query: "llama3.2", Action: "llama3.2",
			Question: "llama3.2", SubIntent: "llama3.2:1b", Fallback: "llama3.2:1b",
		}
	case config.ProviderMock:
		return ModelSet{
			Intent: "mock-model", Query: "mock-model", Action: "mock-model",
			Question: "mock-model", SubIntent: "mock-model", Fallback: "mock-model",
		}
	}
	return ModelSet{
		Intent: "gpt-4o-mini", Query: "gpt-4o-mini", Action: "gpt-4o-mini",
		Question: "gpt-4o-mini", SubIntent: "gpt-4o-mini", Fallback: "gpt-3.5-turbo",
	}
}

// ModelsFromConfig applies configured overrides on top of the defaults.
func ModelsFromConfig(cfg config.LLMConfig) ModelSet {
	m := DefaultModels(cfg.Provider)
	if cfg.IntentModel != "" {
		m.Intent = cfg.IntentModel
		m.SubIntent = cfg.IntentModel
	}
	if cfg.QueryModel != "" {
		m.Query = cfg.QueryModel
		m.Question = cfg.QueryModel
	}
	if cfg.ActionModel != "" {
		m.Action = cfg.ActionModel
	}
	if cfg.FallbackModel != "" {
		m.Fallback = cfg.FallbackModel
	}
	return m
}

type routerSettings struct {
	temperature float32
	maxTokens   int
	timeout     time.Duration
}

type RouterOption func(*routerSettings)

func WithTemperature(t float32) RouterOption {
	return func(s *routerSettings) { s.temperature = t }
}

func WithMaxTokens(n int) RouterOption {
	return func(s *routerSettings) { s.maxTokens = n }
}

func WithTimeout(d time.Duration) RouterOption {
	return func(s *routerSettings) { s.timeout = d }
}

// Router sends each task to its model and retries once on the fallback model.
type Router struct {
	provider Provider
	models   ModelSet
	settings routerSettings
	log      *zap.Logger
}

func NewRouter(provider Provider, models ModelSet, log *zap.Logger, opts ...RouterOption) *Router {
	s := routerSettings{maxTokens: 1024, timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(&s)
	}
	return &Router{provider: provider, models: models, settings: s, log: log.Named("llm")}
}

// Complete runs req for task, filling in model and sampling settings.
func (r *Router) Complete(ctx context.Context, task Task, req Request) (string, error) {
	req.Task = task
	if req.MaxTokens == 0 {
		req.MaxTokens = r.settings.maxTokens
	}
	req.Temperature = r.settings.temperature

	primary := r.models.forTask(task)
	out, err := r.try(ctx, primary, req)
	if err == nil {
		return out, nil
	}
	r.log.Warn("model call failed",
		zap.String("task", string(task)),
		zap.String("model", primary),
		zap.Error(err))

	fallback := r.models.Fallback
	if fallback == "" || fallback == primary {
		return "", fmt.Errorf("%w: %s: %v", ErrUnavailable, primary, err)
	}
	out, ferr := r.try(ctx, fallback, req)
	if ferr != nil {
		r.log.Error("fallback model failed",
			zap.String("task", string(task)),
			zap.String("model", fallback),
			zap.Error(ferr))
		return "", fmt.Errorf("%w: %s: %v", ErrUnavailable, fallback, ferr)
	}
	r.log.Info("fallback model answered", zap.String("task", string(task)), zap.String("model", fallback))
	return out, nil
}

func (r *Router) try(ctx context.Context, model string, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.settings.timeout)
	defer cancel()

	req.Model = model
	start := time.Now()
	out, err := r.provider.Complete(ctx, req)
	r.log.Debug("completion",
		zap.String("task", string(req.Task)),
		zap.String("model", model),
		zap.Duration("latency", time.Since(start)),
		zap.Bool("ok", err == nil))
	return out, err
}

// Info describes the active model system.
type Info struct {
	System   string   `json:"system"`
	Provider string   `json:"provider"`
	Models   ModelSet `json:"models"`
}

var systemNames = map[string]string{
	config.ProviderOpenAI: "OpenAI",
	config.ProviderGemini: "Gemini",
	config.ProviderOllama: "Ollama",
	config.ProviderMock:   "Mock AI",
}

func (r *Router) Info() Info {
	return Info{
		System:   systemNames[r.provider.Name()],
		Provider: r.provider.Name(),
		Models:   r.models,
	}
}

// Check pings the provider.
func (r *Router) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.settings.timeout)
	defer cancel()
	return r.provider.Ping(ctx)
}
