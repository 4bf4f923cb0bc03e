package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
)

const defaultOllamaModel = "all-minilm"

// OllamaEmbedder uses a local Ollama server. all-minilm produces 384
// dimensional vectors which matches the default index.
type OllamaEmbedder struct {
	client    *api.Client
	model     string
	dimension int
}

func NewOllamaEmbedder(base *url.URL, hc *http.Client, model string, dimension int) *OllamaEmbedder {
	if model == "" {
		model = defaultOllamaModel
	}
	return &OllamaEmbedder{client: api.NewClient(base, hc), model: model, dimension: dimension}
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := checkText(text); err != nil {
		return nil, err
	}
	resp, err := e.client.Embeddings(ctx, &api.EmbeddingRequest{
		Model:     e.model,
		Prompt:    text,
		KeepAlive: &api.Duration{Duration: 5 * time.Minute},
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	out := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		out[i] = float32(v)
	}
	return out, nil
}

func (e *OllamaEmbedder) Dimension() int { return e.dimension }

func (e *OllamaEmbedder) Name() string { return "ollama:" + e.model }

func (e *OllamaEmbedder) Ping(ctx context.Context) error {
	return e.client.Heartbeat(ctx)
}
