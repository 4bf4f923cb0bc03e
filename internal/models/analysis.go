package models

// Readiness levels reported to clients.
const (
	ReadyForConfirmation = "READY_FOR_CONFIRMATION"
	AlmostReady          = "ALMOST_READY"
	PartiallyComplete    = "PARTIALLY_COMPLETE"
	NeedsMoreInfo        = "NEEDS_MORE_INFO"
)

// UserGuidance tells the client what to show next.
type UserGuidance struct {
	Message    string `json:"message"`
	Action     string `json:"action"`
	ButtonText string `json:"button_text"`
}

// FrontendActions describes UI state for the current readiness level.
type FrontendActions struct {
	ShowConfirmationModal   bool     `json:"show_confirmation_modal"`
	EnableExecuteButton     bool     `json:"enable_execute_button"`
	ShowProgressBar         bool     `json:"show_progress_bar"`
	ProgressPercentage      *int     `json:"progress_percentage,omitempty"`
	HighlightCompleteFields bool     `json:"highlight_complete_fields,omitempty"`
	ShowRiskWarnings        bool     `json:"show_risk_warnings,omitempty"`
	ShowGasEstimate         bool     `json:"show_gas_estimate,omitempty"`
	HighlightMissingFields  []string `json:"highlight_missing_fields,omitempty"`
	ShowNextQuestion        bool     `json:"show_next_question,omitempty"`
	ShowWizardSteps         bool     `json:"show_wizard_steps,omitempty"`
	CurrentStep             int      `json:"current_step,omitempty"`
	ShowGettingStarted      bool     `json:"show_getting_started,omitempty"`
	SuggestedActions        []string `json:"suggested_actions,omitempty"`
}

// ReadinessAnalysis is the full readiness report for accumulated details.
type ReadinessAnalysis struct {
	CompletionStatus
	ReadinessLevel   string          `json:"readiness_level"`
	UserGuidance     UserGuidance    `json:"user_guidance"`
	FrontendActions  FrontendActions `json:"frontend_actions"`
	ValidationErrors []string        `json:"validation_errors"`
	TransactionReady bool            `json:"transaction_ready"`
}

// Question asks the user for one missing parameter.
type Question struct {
	Question    string   `json:"question"`
	Type        string   `json:"type"`
	Field       string   `json:"field"`
	Suggestions []string `json:"suggestions"`
	HelpText    string   `json:"help_text,omitempty"`
}

// ConfirmationSummary is shown to the user before signing.
type ConfirmationSummary struct {
	TransactionSummary TransactionSummary `json:"transaction_summary"`
	TransactionDetails TransactionDetails `json:"transaction_details"`
	RiskAssessment     RiskAssessment     `json:"risk_assessment"`
	NextSteps          []string           `json:"next_steps"`
}

type TransactionSummary struct {
	Action       string     `json:"action"`
	Description  string     `json:"description"`
	Amount       *float64   `json:"amount"`
	Tokens       TokenRoute `json:"tokens"`
	Protocol     *string    `json:"protocol"`
	EstimatedGas string     `json:"estimated_gas"`
}

type TokenRoute struct {
	From *string `json:"from"`
	To   *string `json:"to"`
}

type TransactionDetails struct {
	SlippageTolerance string `json:"slippage_tolerance"`
	Deadline          string `json:"deadline"`
	GasPrice          string `json:"gas_price"`
}

type RiskAssessment struct {
	Warnings        []string `json:"warnings"`
	RiskLevel       string   `json:"risk_level"`
	Recommendations []string `json:"recommendations"`
}
