package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Ananth-NQI/defi-assistant-backend/internal/config"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/models"
)

// MockProvider answers deterministically without any network access. It backs
// demo mode and tests.
type MockProvider struct{}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Name() string { return config.ProviderMock }

func (p *MockProvider) Ping(context.Context) error { return nil }

func (p *MockProvider) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	input := req.Input
	if input == "" {
		input = req.Prompt
	}
	switch req.Task {
	case TaskIntent:
		return string(KeywordIntent(input)), nil
	case TaskAction:
		return mockExtract(input), nil
	case TaskQuery:
		return fmt.Sprintf("This is a mock response about: %s. DeFi involves decentralized financial services built on blockchain technology.", input), nil
	}
	// Callers fall back to their own heuristics on unrecognised output.
	return "unknown", nil
}

var (
	mockActionWords = regexp.MustCompile(`\b(swap|trade|exchange|deposit|withdraw|borrow|lend|supply|unstake|stake|claim)\b`)
	mockNumber      = regexp.MustCompile(`(\d+(?:\.\d+)?)(\s*%)?`)
	mockWord        = regexp.MustCompile(`[A-Za-z0-9]+`)
)

var mockActionAliases = map[string]models.DeFiAction{
	"trade":    models.ActionSwap,
	"exchange": models.ActionSwap,
	"supply":   models.ActionLend,
	"claim":    models.ActionClaimRewards,
}

// KeywordIntent classifies text with keyword rules: action verbs win, then
// question markers, otherwise the text needs clarification.
func KeywordIntent(text string) models.IntentType {
	lower := strings.ToLower(text)
	switch {
	case mockActionWords.MatchString(lower):
		return models.IntentActionRequest
	case strings.Contains(lower, "?"), strings.Contains(lower, "what"), strings.Contains(lower, "how"):
		return models.IntentGeneralQuery
	}
	return models.IntentClarification
}

func mockExtract(text string) string {
	lower := strings.ToLower(text)
	out := map[string]any{}

	if m := mockActionWords.FindString(lower); m != "" {
		if a, ok := mockActionAliases[m]; ok {
			out["action"] = string(a)
		} else {
			out["action"] = m
		}
	}
	for _, m := range mockNumber.FindAllStringSubmatch(text, -1) {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if m[2] != "" {
			if _, ok := out["slippage"]; !ok {
				out["slippage"] = v
			}
			continue
		}
		if _, ok := out["amount"]; !ok {
			out["amount"] = v
		}
	}
	var tokens []string
	for _, w := range mockWord.FindAllString(text, -1) {
		// "aave" names both a protocol and its token; the protocol reading wins
		if p, ok := mockProtocol(w); ok {
			if _, set := out["protocol"]; !set {
				out["protocol"] = p
			}
			continue
		}
		if models.IsKnownToken(w) {
			tokens = append(tokens, strings.ToUpper(w))
		}
	}
	if len(tokens) > 0 {
		out["token_in"] = tokens[0]
	}
	if len(tokens) > 1 {
		out["token_out"] = tokens[1]
	}

	b, _ := json.Marshal(out)
	return string(b)
}

func mockProtocol(word string) (string, bool) {
	lower := strings.ToLower(word)
	for _, p := range models.KnownProtocols {
		if p != lower {
			continue
		}
		if p == "1inch" {
			return p, true
		}
		return strings.ToUpper(p), true
	}
	return "", false
}
