package services

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/defi-assistant-backend/internal/models"
)

// ErrNotReady is returned when a confirmation summary is requested for
// details that still miss required fields.
var ErrNotReady = errors.New("transaction not ready for confirmation")

const (
	msgAmountNotPositive = "Amount must be greater than zero"
	msgAmountLarge       = "Amount seems unusually large - please verify"
	msgSameToken         = "Cannot swap a token for itself"
	msgSlippageLow       = "Slippage tolerance too low - transaction may fail"
	msgSlippageHigh      = "Slippage tolerance too high - risk of significant loss"
)

// TransactionAnalyzer decides how close accumulated details are to a
// confirmable transaction.
type TransactionAnalyzer struct {
	log *zap.Logger
}

func NewTransactionAnalyzer(log *zap.Logger) *TransactionAnalyzer {
	return &TransactionAnalyzer{log: log.Named("analyzer")}
}

func (a *TransactionAnalyzer) Analyze(d models.ActionDetails) models.ReadinessAnalysis {
	status := d.CompletionStatus()
	level := readinessLevel(status)
	errs := validateDetails(d)

	analysis := models.ReadinessAnalysis{
		CompletionStatus: status,
		ReadinessLevel:   level,
		UserGuidance:     userGuidance(status),
		FrontendActions:  frontendActions(level, status),
		ValidationErrors: errs,
		TransactionReady: status.IsReadyForExecution && !hasBlocking(errs),
	}
	a.log.Debug("transaction readiness",
		zap.String("level", level),
		zap.Int("percent", status.CompletionPercentage),
		zap.Strings("validation_errors", errs))
	return analysis
}

func readinessLevel(s models.CompletionStatus) string {
	switch {
	case s.IsReadyForExecution:
		return models.ReadyForConfirmation
	case s.CompletionPercentage >= 70:
		return models.AlmostReady
	case s.CompletionPercentage >= 40:
		return models.PartiallyComplete
	}
	return models.NeedsMoreInfo
}

func userGuidance(s models.CompletionStatus) models.UserGuidance {
	if s.IsReadyForExecution {
		return models.UserGuidance{
			Message:    "All required information collected! Ready to proceed.",
			Action:     "show_confirmation",
			ButtonText: "Review & Confirm Transaction",
		}
	}
	switch n := len(s.MissingRequired); {
	case n == 1:
		return models.UserGuidance{
			Message:    "Just need one more detail: " + s.NextQuestions[0],
			Action:     "ask_question",
			ButtonText: "Continue",
		}
	case n <= 3:
		return models.UserGuidance{
			Message:    fmt.Sprintf("Need %d more details to proceed.", n),
			Action:     "ask_questions",
			ButtonText: "Continue Setup",
		}
	}
	return models.UserGuidance{
		Message:    "Let's gather the transaction details step by step.",
		Action:     "start_wizard",
		ButtonText: "Start Transaction Setup",
	}
}

func frontendActions(level string, s models.CompletionStatus) models.FrontendActions {
	pct := s.CompletionPercentage
	switch level {
	case models.ReadyForConfirmation:
		return models.FrontendActions{
			ShowConfirmationModal:   true,
			EnableExecuteButton:     true,
			HighlightCompleteFields: true,
			ShowRiskWarnings:        true,
			ShowGasEstimate:         true,
		}
	case models.AlmostReady:
		return models.FrontendActions{
			ShowProgressBar:        true,
			ProgressPercentage:     &pct,
			HighlightMissingFields: s.MissingRequired,
			ShowNextQuestion:       true,
		}
	case models.PartiallyComplete:
		return models.FrontendActions{
			ShowProgressBar:    true,
			ProgressPercentage: &pct,
			ShowWizardSteps:    true,
			CurrentStep:        wizardStep(s.MissingRequired),
		}
	}
	return models.FrontendActions{
		ShowProgressBar:    true,
		ProgressPercentage: &pct,
		ShowGettingStarted: true,
		SuggestedActions:   []string{"What would you like to do?", "Choose a DeFi action"},
	}
}

func wizardStep(missing []string) int {
	in := func(f string) bool {
		for _, m := range missing {
			if m == f {
				return true
			}
		}
		return false
	}
	switch {
	case in(models.FieldAction):
		return 1
	case in(models.FieldAmount):
		return 2
	case in(models.FieldTokenIn), in(models.FieldTokenOut):
		return 3
	case in(models.FieldProtocol):
		return 4
	}
	return 5
}

func validateDetails(d models.ActionDetails) []string {
	errs := []string{}
	if d.Amount != nil {
		switch {
		case *d.Amount <= 0:
			errs = append(errs, msgAmountNotPositive)
		case *d.Amount > 1_000_000:
			errs = append(errs, msgAmountLarge)
		}
	}
	if d.Action != nil && *d.Action == models.ActionSwap &&
		d.TokenIn != nil && d.TokenOut != nil && strings.EqualFold(*d.TokenIn, *d.TokenOut) {
		errs = append(errs, msgSameToken)
	}
	if d.Slippage != nil {
		switch {
		case *d.Slippage < 0.1:
			errs = append(errs, msgSlippageLow)
		case *d.Slippage > 50:
			errs = append(errs, msgSlippageHigh)
		}
	}
	return errs
}

// hasBlocking reports whether any validation error prevents execution. The
// large amount message is advisory.
func hasBlocking(errs []string) bool {
	for _, e := range errs {
		if e != msgAmountLarge {
			return true
		}
	}
	return false
}

// ConfirmationSummary builds the review screen for ready details.
func (a *TransactionAnalyzer) ConfirmationSummary(d models.ActionDetails) (*models.ConfirmationSummary, error) {
	status := d.CompletionStatus()
	if !status.IsReadyForExecution {
		return nil, ErrNotReady
	}

	details := models.TransactionDetails{
		SlippageTolerance: "Default (0.5%)",
		Deadline:          "Default (1200s)",
		GasPrice:          "Market rate",
	}
	if d.Slippage != nil {
		details.SlippageTolerance = models.FormatAmount(*d.Slippage) + "%"
	}
	if d.Deadline != nil {
		details.Deadline = fmt.Sprintf("%d seconds", *d.Deadline)
	}
	if d.GasPrice != nil && *d.GasPrice != "" {
		details.GasPrice = *d.GasPrice
	}

	return &models.ConfirmationSummary{
		TransactionSummary: models.TransactionSummary{
			Action:       string(*d.Action),
			Description:  status.ConfirmationMessage,
			Amount:       d.Amount,
			Tokens:       models.TokenRoute{From: d.TokenIn, To: d.TokenOut},
			Protocol:     d.Protocol,
			EstimatedGas: status.EstimatedGas,
		},
		TransactionDetails: details,
		RiskAssessment: models.RiskAssessment{
			Warnings:        status.RiskWarnings,
			RiskLevel:       riskLevel(d),
			Recommendations: riskRecommendations(d),
		},
		NextSteps: []string{
			"Review all transaction details carefully",
			"Ensure you have sufficient balance and gas",
			"Confirm the transaction in your wallet",
			"Wait for blockchain confirmation",
		},
	}, nil
}

func riskLevel(d models.ActionDetails) string {
	score := 0
	if d.Amount != nil {
		switch {
		case *d.Amount > 10000:
			score += 2
		case *d.Amount > 1000:
			score++
		}
	}
	if d.Slippage != nil {
		switch {
		case *d.Slippage > 5:
			score += 2
		case *d.Slippage > 2:
			score++
		}
	}
	if d.Action != nil && (*d.Action == models.ActionBorrow || *d.Action == models.ActionLend) {
		score++
	}
	switch {
	case score >= 4:
		return "HIGH"
	case score >= 2:
		return "MEDIUM"
	}
	return "LOW"
}

func riskRecommendations(d models.ActionDetails) []string {
	var recs []string
	if d.Action != nil {
		switch *d.Action {
		case models.ActionSwap:
			recs = append(recs, "Consider the current market volatility", "Check token liquidity before large swaps")
		case models.ActionLend, models.ActionBorrow:
			recs = append(recs, "Understand the liquidation risks", "Monitor your health factor regularly")
		}
	}
	return append(recs, "Always verify contract addresses", "Start with smaller amounts for new protocols")
}
