package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/defi-assistant-backend/internal/embedding"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/llm"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/models"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/vectordb"
)

// KnowledgeConfig holds retrieval thresholds.
type KnowledgeConfig struct {
	TopK            int
	DirectThreshold float64
	RefineThreshold float64
}

// KnowledgeService answers informational questions from the vector index,
// refining or replacing weak hits with the query model.
type KnowledgeService struct {
	emb   embedding.Embedder
	store vectordb.Store
	llm   Completer
	cfg   KnowledgeConfig
	log   *zap.Logger
}

func NewKnowledgeService(emb embedding.Embedder, store vectordb.Store, c Completer, cfg KnowledgeConfig, log *zap.Logger) *KnowledgeService {
	if cfg.TopK == 0 {
		cfg.TopK = 3
	}
	return &KnowledgeService{emb: emb, store: store, llm: c, cfg: cfg, log: log.Named("knowledge")}
}

// Answer runs the retrieval chain. note is earlier conversation context that
// is shown to the model but not embedded.
func (k *KnowledgeService) Answer(ctx context.Context, query, note string) (models.KnowledgeAnswer, error) {
	matches := k.search(ctx, query)
	prompted := query
	if note != "" {
		prompted = note + "\n\nCurrent question: " + query
	}

	if len(matches) == 0 {
		answer, err := k.complete(ctx, fallbackPrompt(prompted), query)
		if err != nil {
			return models.KnowledgeAnswer{}, err
		}
		return models.KnowledgeAnswer{
			Source:     models.SourceLLMFallback,
			Answer:     answer,
			TopMatches: []models.VectorMatch{},
			Sources:    []string{},
		}, nil
	}

	top := matches[0].Score
	result := models.KnowledgeAnswer{
		Confidence: top,
		TopMatches: toVectorMatches(matches),
		Sources:    matchSources(matches),
	}

	if top >= k.cfg.DirectThreshold {
		if text := matchText(matches[0]); text != "" {
			result.Source = models.SourceVectorDB
			result.Answer = text
			return result, nil
		}
	}

	var err error
	if top >= k.cfg.RefineThreshold {
		result.Source = models.SourceVectorMini
		var texts []string
		for _, m := range matches {
			if t := matchText(m); t != "" {
				texts = append(texts, t)
			}
		}
		result.Answer, err = k.complete(ctx, refinePrompt(prompted, strings.Join(texts, "\n\n---\n")), query)
	} else {
		result.Source = models.SourceLLMFallback
		result.Answer, err = k.complete(ctx, fallbackPrompt(prompted), query)
	}
	if err != nil {
		return models.KnowledgeAnswer{}, err
	}
	return result, nil
}

// search degrades to no matches when embedding or the index fails.
func (k *KnowledgeService) search(ctx context.Context, query string) []vectordb.Match {
	vec, err := k.emb.Embed(ctx, query)
	if err != nil {
		k.log.Warn("embedding failed, answering without retrieval", zap.Error(err))
		return nil
	}
	matches, err := k.store.Query(ctx, vec, k.cfg.TopK)
	if err != nil {
		k.log.Warn("vector query failed, answering without retrieval", zap.Error(err))
		return nil
	}
	return matches
}

func (k *KnowledgeService) complete(ctx context.Context, prompt, input string) (string, error) {
	out, err := k.llm.Complete(ctx, llm.TaskQuery, llm.Request{System: assistantSystem, Prompt: prompt, Input: input})
	if err != nil {
		return "", fmt.Errorf("answer query: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func matchText(m vectordb.Match) string {
	for _, key := range []string{"response", "text"} {
		if s, ok := m.Metadata[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func toVectorMatches(matches []vectordb.Match) []models.VectorMatch {
	out := make([]models.VectorMatch, len(matches))
	for i, m := range matches {
		meta := m.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		out[i] = models.VectorMatch{ID: m.ID, Score: m.Score, Metadata: meta}
	}
	return out
}

func matchSources(matches []vectordb.Match) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, m := range matches {
		if s, ok := m.Metadata["source"].(string); ok && s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
