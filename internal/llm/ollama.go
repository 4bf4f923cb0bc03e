package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"github.com/Ananth-NQI/defi-assistant-backend/internal/config"
)

// OllamaProvider runs completions on a local Ollama server.
type OllamaProvider struct {
	client *api.Client
}

func NewOllamaProvider(base *url.URL, hc *http.Client) *OllamaProvider {
	return &OllamaProvider{client: api.NewClient(base, hc)}
}

func (p *OllamaProvider) Name() string { return config.ProviderOllama }

func (p *OllamaProvider) Complete(ctx context.Context, req Request) (string, error) {
	var msgs []api.Message
	if req.System != "" {
		msgs = append(msgs, api.Message{Role: "system", Content: req.System})
	}
	msgs = append(msgs, api.Message{Role: "user", Content: req.Prompt})

	stream := false
	chat := &api.ChatRequest{
		Model:    req.Model,
		Messages: msgs,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": req.Temperature,
			"num_predict": req.MaxTokens,
		},
	}
	if req.JSON {
		chat.Format = json.RawMessage(`"json"`)
	}

	var out string
	err := p.client.Chat(ctx, chat, func(resp api.ChatResponse) error {
		out += resp.Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	if out == "" {
		return "", errors.New("ollama: empty completion")
	}
	return out, nil
}

func (p *OllamaProvider) Ping(ctx context.Context) error {
	return p.client.Heartbeat(ctx)
}
