package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/defi-assistant-backend/internal/llm"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/models"
)

var fallbackQuestions = map[string]models.Question{
	models.FieldAction: {
		Question:    "What DeFi action would you like to perform?",
		Type:        "action_selection",
		Field:       models.FieldAction,
		Suggestions: []string{"Swap tokens", "Deposit/Lend", "Stake tokens", "Borrow"},
		HelpText:    "Choose the type of DeFi transaction you want to make",
	},
	models.FieldAmount: {
		Question:    "How much would you like to transact?",
		Type:        "amount_input",
		Field:       models.FieldAmount,
		Suggestions: []string{"100", "0.5", "1000"},
		HelpText:    "Enter the amount you want to use in the transaction",
	},
	models.FieldTokenIn: {
		Question:    "Which token would you like to use?",
		Type:        "token_selection",
		Field:       models.FieldTokenIn,
		Suggestions: []string{"USDC", "ETH", "WBTC", "DAI"},
		HelpText:    "Select the token you want to spend or deposit",
	},
	models.FieldTokenOut: {
		Question:    "Which token would you like to receive?",
		Type:        "token_selection",
		Field:       models.FieldTokenOut,
		Suggestions: []string{"ETH", "USDC", "WBTC", "DAI"},
		HelpText:    "Select the token you want to receive",
	},
	models.FieldProtocol: {
		Question:    "Which DeFi protocol would you prefer?",
		Type:        "protocol_selection",
		Field:       models.FieldProtocol,
		Suggestions: []string{"Uniswap", "Aave", "Compound", "Curve"},
		HelpText:    "Choose the DeFi protocol to execute your transaction",
	},
}

// FallbackQuestion returns the canned question for a missing field.
func FallbackQuestion(field string) models.Question {
	if q, ok := fallbackQuestions[field]; ok {
		q.Suggestions = append([]string(nil), q.Suggestions...)
		return q
	}
	return models.Question{
		Question:    "Please provide the " + field + " for your transaction.",
		Type:        "text_input",
		Field:       field,
		Suggestions: []string{},
		HelpText:    "This information is required to complete your transaction",
	}
}

// QuestionGenerator asks for the next missing transaction parameter.
type QuestionGenerator struct {
	llm Completer
	log *zap.Logger
}

func NewQuestionGenerator(c Completer, log *zap.Logger) *QuestionGenerator {
	return &QuestionGenerator{llm: c, log: log.Named("questions")}
}

func (g *QuestionGenerator) NextQuestion(ctx context.Context, d models.ActionDetails, history []string) models.Question {
	missing := d.CompletionStatus().MissingRequired
	if len(missing) == 0 {
		return models.Question{
			Question:    "All required information collected! Ready to proceed?",
			Type:        "confirmation",
			Suggestions: []string{"Yes, proceed", "Let me review", "Make changes"},
		}
	}

	out, err := g.llm.Complete(ctx, llm.TaskQuestion, llm.Request{
		Prompt: questionPrompt(d.Summary(), missing, history),
		Input:  missing[0],
		JSON:   true,
	})
	if err != nil {
		g.log.Warn("question model failed", zap.Error(err))
		return FallbackQuestion(missing[0])
	}
	fields, err := decodeJSONObject(out)
	if err != nil {
		return FallbackQuestion(missing[0])
	}
	text, ok := stringField(fields, "question")
	if !ok {
		return FallbackQuestion(missing[0])
	}

	q := FallbackQuestion(missing[0])
	q.Question = text
	if f, ok := stringField(fields, "field"); ok && contains(missing, strings.ToLower(f)) {
		q = withField(q, strings.ToLower(f))
	}
	if raw, ok := fields["suggestions"].([]any); ok {
		sugg := make([]string, 0, len(raw))
		for _, s := range raw {
			if str, ok := s.(string); ok && strings.TrimSpace(str) != "" {
				sugg = append(sugg, str)
			}
		}
		if len(sugg) > 0 {
			q.Suggestions = sugg
		}
	}
	return q
}

func withField(q models.Question, field string) models.Question {
	fb := FallbackQuestion(field)
	fb.Question = q.Question
	return fb
}

// ClarificationQuestions returns canned questions for up to three missing fields.
func (g *QuestionGenerator) ClarificationQuestions(d models.ActionDetails) []models.Question {
	missing := d.CompletionStatus().MissingRequired
	if len(missing) > 3 {
		missing = missing[:3]
	}
	out := make([]models.Question, 0, len(missing))
	for _, f := range missing {
		out = append(out, FallbackQuestion(f))
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
