package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Ananth-NQI/defi-assistant-backend/internal/llm"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/models"
)

func TestIntentClassification(t *testing.T) {
	tests := []struct {
		name       string
		output     string
		err        error
		query      string
		want       models.IntentType
		confidence float64
	}{
		{"exact label", "general_query", nil, "what is aave", models.IntentGeneralQuery, 0.9},
		{"label inside text", "The intent is: action_request.", nil, "swap eth", models.IntentActionRequest, 0.7},
		{"quoted label", `"clarification"`, nil, "hmm", models.IntentClarification, 0.9},
		{"garbage falls back to keywords", "no idea", nil, "stake 10 ETH", models.IntentActionRequest, 0.5},
		{"provider error falls back", "", errors.New("down"), "how does lending work?", models.IntentGeneralQuery, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newScriptedLLM()
			l.outputs[llm.TaskIntent] = tt.output
			if tt.err != nil {
				l.errs[llm.TaskIntent] = tt.err
			}
			res := NewIntentClassifier(l, zaptest.NewLogger(t)).Classify(context.Background(), tt.query)
			assert.Equal(t, tt.want, res.Intent)
			assert.Equal(t, tt.confidence, res.Confidence)
		})
	}
}

func TestActionExtraction(t *testing.T) {
	ctx := context.Background()
	l := newScriptedLLM()
	ex := NewActionExtractor(l, zaptest.NewLogger(t))

	l.outputs[llm.TaskAction] = "```json\n{\"action\": \"swap\", \"amount\": \"1,000\", \"token_in\": \"usdc\", \"token_out\": null, \"protocol\": null, \"slippage\": \"0.5%\"}\n```"
	d := ex.Extract(ctx, "swap 1000 usdc on uniswap", models.ActionDetails{})
	require.NotNil(t, d.Action)
	assert.Equal(t, models.ActionSwap, *d.Action)
	assert.Equal(t, 1000.0, *d.Amount)
	assert.Equal(t, "USDC", *d.TokenIn)
	assert.Nil(t, d.TokenOut)
	assert.Equal(t, 0.5, *d.Slippage)
	require.NotNil(t, d.Protocol)
	assert.Equal(t, "UNISWAP", *d.Protocol)

	l.outputs[llm.TaskAction] = `Sure! Here you go: {"action": "teleport", "amount": 3} hope that helps`
	d = ex.Extract(ctx, "teleport 3 tokens via 1inch", models.ActionDetails{})
	assert.Nil(t, d.Action)
	assert.Equal(t, 3.0, *d.Amount)
	assert.Equal(t, "1inch", *d.Protocol)

	l.errs[llm.TaskAction] = errors.New("timeout")
	d = ex.Extract(ctx, "deposit into Aave", models.ActionDetails{})
	assert.Nil(t, d.Action)
	assert.Equal(t, "AAVE", *d.Protocol)
}

func TestAnalyzerReadiness(t *testing.T) {
	a := NewTransactionAnalyzer(zaptest.NewLogger(t))

	empty := a.Analyze(models.ActionDetails{})
	assert.Equal(t, models.NeedsMoreInfo, empty.ReadinessLevel)
	assert.False(t, empty.TransactionReady)
	assert.Equal(t, "ask_questions", empty.UserGuidance.Action)

	swap := models.ActionSwap
	partial := a.Analyze(models.ActionDetails{Action: &swap, Amount: models.Ptr(100.0)})
	assert.Equal(t, models.PartiallyComplete, partial.ReadinessLevel)
	assert.Equal(t, 50, partial.CompletionPercentage)
	assert.Equal(t, 3, partial.FrontendActions.CurrentStep)

	almost := a.Analyze(models.ActionDetails{Action: &swap, Amount: models.Ptr(100.0), TokenIn: models.Ptr("USDC")})
	assert.Equal(t, models.AlmostReady, almost.ReadinessLevel)
	assert.Equal(t, "ask_question", almost.UserGuidance.Action)
	assert.Equal(t, []string{models.FieldTokenOut}, almost.FrontendActions.HighlightMissingFields)

	ready := a.Analyze(models.ActionDetails{Action: &swap, Amount: models.Ptr(100.0), TokenIn: models.Ptr("USDC"), TokenOut: models.Ptr("ETH")})
	assert.Equal(t, models.ReadyForConfirmation, ready.ReadinessLevel)
	assert.True(t, ready.TransactionReady)
	assert.True(t, ready.FrontendActions.ShowConfirmationModal)
}

func TestAnalyzerValidation(t *testing.T) {
	a := NewTransactionAnalyzer(zaptest.NewLogger(t))
	swap := models.ActionSwap

	zero := a.Analyze(models.ActionDetails{Action: &swap, Amount: models.Ptr(0.0), TokenIn: models.Ptr("ETH"), TokenOut: models.Ptr("USDC")})
	assert.Contains(t, zero.ValidationErrors, msgAmountNotPositive)
	assert.False(t, zero.TransactionReady)

	same := a.Analyze(models.ActionDetails{Action: &swap, Amount: models.Ptr(1.0), TokenIn: models.Ptr("ETH"), TokenOut: models.Ptr("eth")})
	assert.Contains(t, same.ValidationErrors, msgSameToken)
	assert.False(t, same.TransactionReady)

	large := a.Analyze(models.ActionDetails{Action: &swap, Amount: models.Ptr(2_000_000.0), TokenIn: models.Ptr("USDC"), TokenOut: models.Ptr("ETH")})
	assert.Equal(t, []string{msgAmountLarge}, large.ValidationErrors)
	assert.True(t, large.TransactionReady, "large amounts only warn")

	slip := a.Analyze(models.ActionDetails{Slippage: models.Ptr(0.05)})
	assert.Contains(t, slip.ValidationErrors, msgSlippageLow)
	slip = a.Analyze(models.ActionDetails{Slippage: models.Ptr(60.0)})
	assert.Contains(t, slip.ValidationErrors, msgSlippageHigh)
}

func TestConfirmationSummary(t *testing.T) {
	a := NewTransactionAnalyzer(zaptest.NewLogger(t))
	_, err := a.ConfirmationSummary(models.ActionDetails{})
	assert.ErrorIs(t, err, ErrNotReady)

	deposit := models.ActionDeposit
	s, err := a.ConfirmationSummary(models.ActionDetails{
		Action: &deposit, Amount: models.Ptr(500.0), TokenIn: models.Ptr("DAI"), Protocol: models.Ptr("AAVE"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Deposit 500 DAI on AAVE", s.TransactionSummary.Description)
	assert.Equal(t, "Default (0.5%)", s.TransactionDetails.SlippageTolerance)
	assert.Equal(t, "Default (1200s)", s.TransactionDetails.Deadline)
	assert.Equal(t, "Market rate", s.TransactionDetails.GasPrice)
	assert.NotEmpty(t, s.RiskAssessment.RiskLevel)
	assert.NotEmpty(t, s.NextSteps)
}

func TestNextQuestion(t *testing.T) {
	ctx := context.Background()
	l := newScriptedLLM()
	g := NewQuestionGenerator(l, zaptest.NewLogger(t))
	swap := models.ActionSwap

	ready := g.NextQuestion(ctx, models.ActionDetails{Action: &swap, Amount: models.Ptr(1.0), TokenIn: models.Ptr("ETH"), TokenOut: models.Ptr("USDC")}, nil)
	assert.Equal(t, "confirmation", ready.Type)
	assert.Empty(t, l.callsFor(llm.TaskQuestion))

	l.outputs[llm.TaskQuestion] = `{"question": "How much ETH do you want to swap?", "field": "amount", "suggestions": ["0.1", "1"]}`
	q := g.NextQuestion(ctx, models.ActionDetails{Action: &swap}, []string{"swap eth"})
	assert.Equal(t, "How much ETH do you want to swap?", q.Question)
	assert.Equal(t, models.FieldAmount, q.Field)
	assert.Equal(t, "amount_input", q.Type)
	assert.Equal(t, []string{"0.1", "1"}, q.Suggestions)

	l.outputs[llm.TaskQuestion] = "not json"
	q = g.NextQuestion(ctx, models.ActionDetails{}, nil)
	assert.Equal(t, FallbackQuestion(models.FieldAction), q)

	assert.Len(t, g.ClarificationQuestions(models.ActionDetails{}), 3)
	assert.Equal(t, "text_input", FallbackQuestion("deadline").Type)
}
