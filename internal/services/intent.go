package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/defi-assistant-backend/internal/llm"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/models"
)

// Completer runs a prompt for a pipeline task. *llm.Router implements it.
type Completer interface {
	Complete(ctx context.Context, task llm.Task, req llm.Request) (string, error)
}

// IntentResult is the outcome of classification.
type IntentResult struct {
	Intent     models.IntentType
	Confidence float64
}

const (
	confidenceExact     = 0.9
	confidenceContained = 0.7
	confidenceHeuristic = 0.5
)

type IntentClassifier struct {
	llm Completer
	log *zap.Logger
}

func NewIntentClassifier(c Completer, log *zap.Logger) *IntentClassifier {
	return &IntentClassifier{llm: c, log: log.Named("intent")}
}

// Classify asks the intent model for a label. Keyword rules take over when
// the model fails or answers with something unrecognisable.
func (c *IntentClassifier) Classify(ctx context.Context, query string) IntentResult {
	out, err := c.llm.Complete(ctx, llm.TaskIntent, llm.Request{
		Prompt:    intentPrompt(query),
		Input:     query,
		MaxTokens: 10,
	})
	if err != nil {
		c.log.Warn("intent model failed, using keywords", zap.Error(err))
		return IntentResult{Intent: llm.KeywordIntent(query), Confidence: confidenceHeuristic}
	}
	if res, ok := parseIntent(out); ok {
		return res
	}
	c.log.Debug("unrecognised intent label", zap.String("output", out))
	return IntentResult{Intent: llm.KeywordIntent(query), Confidence: confidenceHeuristic}
}

func parseIntent(out string) (IntentResult, bool) {
	label := strings.ToLower(strings.Trim(strings.TrimSpace(out), `"'.`))
	if in := models.IntentType(label); in.Valid() {
		return IntentResult{Intent: in, Confidence: confidenceExact}, true
	}

	best, at := models.IntentType(""), -1
	for _, in := range models.Intents {
		if i := strings.Index(label, string(in)); i >= 0 && (at < 0 || i < at) {
			best, at = in, i
		}
	}
	if at < 0 {
		return IntentResult{}, false
	}
	return IntentResult{Intent: best, Confidence: confidenceContained}, true
}
