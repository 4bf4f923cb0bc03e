package embedding

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-embedding-001"

// GeminiEmbedder generates retrieval query embeddings with the Gemini API.
type GeminiEmbedder struct {
	client    *genai.Client
	model     string
	dimension int
}

func NewGeminiEmbedder(ctx context.Context, apiKey, model string, dimension int) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, errors.New("gemini embed: api key is required")
	}
	if model == "" {
		model = defaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("gemini embed: create client: %w", err)
	}
	return &GeminiEmbedder{client: client, model: model, dimension: dimension}, nil
}

func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := checkText(text); err != nil {
		return nil, err
	}
	cfg := &genai.EmbedContentConfig{TaskType: "RETRIEVAL_QUERY"}
	if e.dimension > 0 {
		cfg.OutputDimensionality = genai.Ptr(int32(e.dimension))
	}
	result, err := e.client.Models.EmbedContent(ctx, e.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, errors.New("gemini embed: no embeddings returned")
	}
	return result.Embeddings[0].Values, nil
}

func (e *GeminiEmbedder) Dimension() int { return e.dimension }

func (e *GeminiEmbedder) Name() string { return "genai:" + e.model }

func (e *GeminiEmbedder) Ping(ctx context.Context) error {
	_, err := e.client.Models.Get(ctx, e.model, nil)
	return err
}
