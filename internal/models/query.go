package models

import "time"

// MaxQueryLength bounds the accepted query text.
const MaxQueryLength = 1000

type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

// IntentRequest is the body of the stateless classification endpoint.
type IntentRequest struct {
	UserQuery string `json:"user_query"`
}

type IntentResponse struct {
	UserQuery string     `json:"user_query"`
	Intent    IntentType `json:"intent"`
	Response  string     `json:"response"`
}

type StartSessionRequest struct {
	UserID   string         `json:"user_id,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type StartSessionResponse struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Status    string    `json:"status"`
}

// VectorMatch is a knowledge base hit returned to clients.
type VectorMatch struct {
	ID       string         `json:"id,omitempty"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// KnowledgeAnswer is the outcome of the retrieval chain.
type KnowledgeAnswer struct {
	Source     string        `json:"source"`
	Confidence float64       `json:"confidence"`
	Answer     string        `json:"answer"`
	TopMatches []VectorMatch `json:"top_matches"`
	Sources    []string      `json:"sources"`
}

// Answer sources.
const (
	SourceVectorDB    = "vector_db"
	SourceVectorMini  = "vector_db + mini_llm"
	SourceLLMFallback = "llm_fallback"
)

// GeneralQueryResponse answers an informational question.
type GeneralQueryResponse struct {
	Intent           IntentType    `json:"intent"`
	SessionID        string        `json:"session_id"`
	IntentConfidence float64       `json:"intent_confidence"`
	Answer           string        `json:"answer"`
	Source           string        `json:"source"`
	Confidence       float64       `json:"confidence"`
	Sources          []string      `json:"sources"`
	TopMatches       []VectorMatch `json:"top_matches"`
}

// ActionRequestResponse reports accumulated transaction parameters.
type ActionRequestResponse struct {
	Intent               IntentType           `json:"intent"`
	SessionID            string               `json:"session_id"`
	IntentConfidence     float64              `json:"intent_confidence"`
	ActionDetails        ActionDetails        `json:"action_details"`
	MissingParameters    []string             `json:"missing_parameters"`
	ReadinessPercentage  int                  `json:"readiness_percentage"`
	ReadinessLevel       string               `json:"readiness_level"`
	TransactionReady     bool                 `json:"transaction_ready"`
	NextStep             string               `json:"next_step"`
	ConfirmationRequired bool                 `json:"confirmation_required"`
	NextQuestion         *Question            `json:"next_question,omitempty"`
	SuggestedQuestions   []string             `json:"suggested_questions"`
	ValidationErrors     []string             `json:"validation_errors"`
	RiskWarnings         []string             `json:"risk_warnings"`
	UserGuidance         UserGuidance         `json:"user_guidance"`
	FrontendActions      FrontendActions      `json:"frontend_actions"`
	EstimatedGas         string               `json:"estimated_gas"`
	Confirmation         *ConfirmationSummary `json:"confirmation,omitempty"`
	Notice               string               `json:"notice,omitempty"`
}

// Next steps reported on action responses.
const (
	NextStepCollectDetails = "collect_missing_details"
	NextStepFixValidation  = "fix_validation_errors"
	NextStepConfirm        = "confirm_transaction"
)

// ClarificationResponse asks the user to be more specific.
type ClarificationResponse struct {
	Intent                IntentType `json:"intent"`
	SessionID             string     `json:"session_id"`
	IntentConfidence      float64    `json:"intent_confidence"`
	ClarificationQuestion string     `json:"clarification_question"`
	Answer                string     `json:"answer"`
	Source                string     `json:"source"`
	Confidence            float64    `json:"confidence"`
	SuggestedQueries      []string   `json:"suggested_queries"`
}

// WalletActionResponse is returned when a query is routed to wallet actions.
type WalletActionResponse struct {
	Intent    IntentType `json:"intent"`
	SessionID string     `json:"session_id"`
	SubIntent string     `json:"sub_intent"`
	Result    string     `json:"result"`
	Pending   bool       `json:"pending_confirmation"`
}

// QueryResult holds exactly one of the response shapes.
type QueryResult struct {
	General       *GeneralQueryResponse
	Action        *ActionRequestResponse
	Clarification *ClarificationResponse
	Wallet        *WalletActionResponse
}

// Body returns the populated response for JSON encoding.
func (r QueryResult) Body() any {
	switch {
	case r.General != nil:
		return r.General
	case r.Action != nil:
		return r.Action
	case r.Clarification != nil:
		return r.Clarification
	case r.Wallet != nil:
		return r.Wallet
	}
	return nil
}

// Intent returns the intent of the populated response.
func (r QueryResult) Intent() IntentType {
	switch {
	case r.General != nil:
		return r.General.Intent
	case r.Action != nil:
		return r.Action.Intent
	case r.Clarification != nil:
		return r.Clarification.Intent
	case r.Wallet != nil:
		return r.Wallet.Intent
	}
	return ""
}

// SessionView is the response of GET /query/session/:id.
type SessionView struct {
	SessionData
	Readiness ReadinessAnalysis `json:"readiness"`
}

// ActionChainRequest is the body of POST /actions/.
type ActionChainRequest struct {
	UserID string `json:"user_id"`
	Query  string `json:"query"`
}

type ActionChainResponse struct {
	UserID    string `json:"user_id"`
	SubIntent string `json:"sub_intent"`
	Result    string `json:"result"`
	Pending   bool   `json:"pending_confirmation"`
}
