package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/defi-assistant-backend/internal/models"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/storage"
)

const (
	channelKeyPrefix     = "channel_session:"
	whatsAppClientPrefix = "whatsapp:"
)

var resetPattern = regexp.MustCompile(`\b(cancel|start over|reset|never mind|nevermind)\b`)

const resetNotice = "🔄 Transaction details cleared."

var suggestedQueries = []string{
	"What is DeFi and how does it work?",
	"Swap 100 USDC for ETH on Uniswap",
	"Deposit 500 DAI into Aave",
	"What is my wallet balance?",
}

// ClientInfo identifies the caller of a query.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// AssistantConfig controls history handling.
type AssistantConfig struct {
	HistoryLimit   int
	FollowUpWindow time.Duration
}

// Assistant routes a user query through classification, parameter collection,
// retrieval and wallet actions, keeping conversation state in the session.
type Assistant struct {
	sessions  *SessionManager
	store     storage.Store
	intents   *IntentClassifier
	extractor *ActionExtractor
	analyzer  *TransactionAnalyzer
	questions *QuestionGenerator
	knowledge *KnowledgeService
	actions   *ActionEngine
	wallets   *WalletService
	notifier  Notifier
	cfg       AssistantConfig
	log       *zap.Logger
	now       func() time.Time
}

// AssistantDeps groups the services an Assistant coordinates.
type AssistantDeps struct {
	Sessions  *SessionManager
	Store     storage.Store
	Intents   *IntentClassifier
	Extractor *ActionExtractor
	Analyzer  *TransactionAnalyzer
	Questions *QuestionGenerator
	Knowledge *KnowledgeService
	Actions   *ActionEngine
	Wallets   *WalletService
	Notifier  Notifier
}

func NewAssistant(deps AssistantDeps, cfg AssistantConfig, log *zap.Logger) *Assistant {
	if deps.Notifier == nil {
		deps.Notifier = NoopNotifier{}
	}
	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = 10
	}
	return &Assistant{
		sessions:  deps.Sessions,
		store:     deps.Store,
		intents:   deps.Intents,
		extractor: deps.Extractor,
		analyzer:  deps.Analyzer,
		questions: deps.Questions,
		knowledge: deps.Knowledge,
		actions:   deps.Actions,
		wallets:   deps.Wallets,
		notifier:  deps.Notifier,
		cfg:       cfg,
		log:       log.Named("assistant"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ValidateQuery trims q and checks its length.
func ValidateQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", models.NewValidationError("Query cannot be empty", map[string]string{"field": "query"})
	}
	if utf8.RuneCountInString(q) > models.MaxQueryLength {
		return "", models.NewValidationError(
			fmt.Sprintf("Query too long (max %d characters)", models.MaxQueryLength),
			map[string]string{"field": "query"})
	}
	return q, nil
}

// Classify labels a single query and answers it from the knowledge base
// without opening a session.
func (a *Assistant) Classify(ctx context.Context, query string) (models.IntentResponse, error) {
	q, err := ValidateQuery(query)
	if err != nil {
		return models.IntentResponse{}, err
	}
	intent := a.intents.Classify(ctx, q)
	ans, err := a.knowledge.Answer(ctx, q, "")
	if err != nil {
		return models.IntentResponse{}, err
	}
	return models.IntentResponse{UserQuery: q, Intent: intent.Intent, Response: ans.Answer}, nil
}

// Query answers one message. Without a session id a new session is opened;
// an unknown id is an error.
func (a *Assistant) Query(ctx context.Context, req models.QueryRequest, client ClientInfo) (models.QueryResult, error) {
	q, err := ValidateQuery(req.Query)
	if err != nil {
		return models.QueryResult{}, err
	}

	session, created, err := a.sessions.GetOrCreate(ctx, req.SessionID, client.IP, client.UserAgent)
	if errors.Is(err, ErrSessionNotFound) {
		return models.QueryResult{}, models.NewSessionNotFoundError(req.SessionID)
	}
	if err != nil {
		return models.QueryResult{}, err
	}
	if created {
		a.log.Debug("session opened for query", zap.String("ip", client.IP))
	}

	var (
		result models.QueryResult
		turn   models.ConversationTurn
	)
	if a.actions.HasPending(session.UserID) || IsWalletQuery(q) {
		result, turn, err = a.walletAction(ctx, session, q)
	} else {
		intent := a.intents.Classify(ctx, q)
		switch {
		case a.cancelling(session, q):
			// a bare "cancel" reads as clarification but must clear the collected details
			intent.Intent = models.IntentActionRequest
		case intent.Intent == models.IntentClarification && a.collecting(session):
			// short answers such as "100 USDC" continue the open transaction
			intent.Intent = models.IntentActionRequest
		}
		a.log.Info("query classified",
			zap.String("intent", string(intent.Intent)),
			zap.Float64("confidence", intent.Confidence))

		switch intent.Intent {
		case models.IntentActionRequest:
			result, turn = a.actionRequest(ctx, session, q, intent)
		case models.IntentGeneralQuery:
			result, turn, err = a.generalQuery(ctx, session, q, intent)
		default:
			result, turn = a.clarification(ctx, session, q, intent)
		}
	}
	if err != nil {
		return models.QueryResult{}, err
	}

	turn.Query = q
	turn.Timestamp = a.now()
	session.AddTurn(turn, a.cfg.HistoryLimit)
	if err := a.sessions.Update(ctx, session); err != nil {
		a.log.Error("session update failed", zap.Error(err))
		return models.QueryResult{}, err
	}
	return result, nil
}

func (a *Assistant) walletAction(ctx context.Context, session *models.SessionData, q string) (models.QueryResult, models.ConversationTurn, error) {
	resp, err := a.actions.Run(ctx, session.UserID, q)
	if err != nil {
		return models.QueryResult{}, models.ConversationTurn{}, err
	}
	result := models.QueryResult{Wallet: &models.WalletActionResponse{
		Intent:    models.IntentActionRequest,
		SessionID: session.SessionID,
		SubIntent: resp.SubIntent,
		Result:    resp.Result,
		Pending:   resp.Pending,
	}}
	return result, models.ConversationTurn{
		Response: resp.Result,
		Intent:   models.IntentActionRequest,
		Source:   "wallet:" + resp.SubIntent,
	}, nil
}

func (a *Assistant) actionRequest(ctx context.Context, session *models.SessionData, q string, intent IntentResult) (models.QueryResult, models.ConversationTurn) {
	current := session.ActionDetails
	extracted := a.extractor.Extract(ctx, q, current)

	switchedAction := extracted.Action != nil && current.Action != nil && *extracted.Action != *current.Action
	cleared := false
	if resetPattern.MatchString(strings.ToLower(q)) || switchedAction {
		a.log.Debug("resetting collected details", zap.Bool("switched_action", switchedAction))
		cleared = !current.IsEmpty()
		current = models.ActionDetails{}
		session.ReadyNotified = false
	}
	details := current.Merge(extracted)
	session.ActionDetails = details

	analysis := a.analyzer.Analyze(details)
	question := a.questions.NextQuestion(ctx, details, session.RecentQueries(3))

	suggestions := []string{}
	for _, cq := range a.questions.ClarificationQuestions(details) {
		suggestions = append(suggestions, cq.Question)
	}

	resp := &models.ActionRequestResponse{
		Intent:               models.IntentActionRequest,
		SessionID:            session.SessionID,
		IntentConfidence:     intent.Confidence,
		ActionDetails:        details,
		MissingParameters:    analysis.MissingRequired,
		ReadinessPercentage:  analysis.CompletionPercentage,
		ReadinessLevel:       analysis.ReadinessLevel,
		TransactionReady:     analysis.TransactionReady,
		ConfirmationRequired: analysis.TransactionReady,
		NextQuestion:         &question,
		SuggestedQuestions:   suggestions,
		ValidationErrors:     analysis.ValidationErrors,
		RiskWarnings:         analysis.RiskWarnings,
		UserGuidance:         analysis.UserGuidance,
		FrontendActions:      analysis.FrontendActions,
		EstimatedGas:         analysis.EstimatedGas,
	}
	if cleared {
		resp.Notice = resetNotice
	}

	reply := question.Question
	switch {
	case len(analysis.MissingRequired) > 0:
		resp.NextStep = models.NextStepCollectDetails
	case !analysis.TransactionReady:
		resp.NextStep = models.NextStepFixValidation
		reply = strings.Join(analysis.ValidationErrors, "; ")
	default:
		resp.NextStep = models.NextStepConfirm
		if summary, err := a.analyzer.ConfirmationSummary(details); err == nil {
			resp.Confirmation = summary
		}
		reply = "Ready to confirm: " + details.Describe()
		a.notifyReady(ctx, session, details)
	}
	if cleared {
		reply = resetNotice + " " + reply
	}

	return models.QueryResult{Action: resp}, models.ConversationTurn{
		Response:   reply,
		Intent:     models.IntentActionRequest,
		Confidence: models.Ptr(intent.Confidence),
	}
}

// collecting reports whether the session holds a transaction that still
// needs parameters.
// cancelling reports whether q asks to drop a transaction that has details.
func (a *Assistant) cancelling(session *models.SessionData, q string) bool {
	return !session.ActionDetails.IsEmpty() && resetPattern.MatchString(strings.ToLower(q))
}

func (a *Assistant) collecting(session *models.SessionData) bool {
	d := session.ActionDetails
	return !d.IsEmpty() && len(d.CompletionStatus().MissingRequired) > 0
}

// notifyReady messages the user's phone the first time a transaction becomes
// confirmable.
func (a *Assistant) notifyReady(ctx context.Context, session *models.SessionData, d models.ActionDetails) {
	if session.ReadyNotified || !a.notifier.Enabled() {
		return
	}
	phone := a.wallets.NotifyPhone(ctx, session.UserID)
	if phone == "" {
		return
	}
	if err := a.notifier.Notify(ctx, phone, "Your transaction is ready for confirmation: "+d.Describe()); err != nil {
		a.log.Warn("ready notification failed", zap.Error(err))
		return
	}
	session.ReadyNotified = true
}

func (a *Assistant) generalQuery(ctx context.Context, session *models.SessionData, q string, intent IntentResult) (models.QueryResult, models.ConversationTurn, error) {
	note := session.SmartContext(q, a.now(), a.cfg.FollowUpWindow)
	ans, err := a.knowledge.Answer(ctx, q, note)
	if err != nil {
		return models.QueryResult{}, models.ConversationTurn{}, models.NewUnavailableError("AI service temporarily unavailable", err)
	}
	resp := &models.GeneralQueryResponse{
		Intent:           models.IntentGeneralQuery,
		SessionID:        session.SessionID,
		IntentConfidence: intent.Confidence,
		Answer:           ans.Answer,
		Source:           ans.Source,
		Confidence:       ans.Confidence,
		Sources:          ans.Sources,
		TopMatches:       ans.TopMatches,
	}
	return models.QueryResult{General: resp}, models.ConversationTurn{
		Response:   ans.Answer,
		Intent:     models.IntentGeneralQuery,
		Confidence: models.Ptr(ans.Confidence),
		Source:     ans.Source,
	}, nil
}

// clarification still tries to answer; a failing model leaves only the
// clarifying question.
func (a *Assistant) clarification(ctx context.Context, session *models.SessionData, q string, intent IntentResult) (models.QueryResult, models.ConversationTurn) {
	question := "Could you tell me a bit more? Ask a DeFi question or describe the transaction you want to make."
	if !session.ActionDetails.IsEmpty() {
		if qs := a.questions.ClarificationQuestions(session.ActionDetails); len(qs) > 0 {
			question = qs[0].Question
		}
	}

	resp := &models.ClarificationResponse{
		Intent:                models.IntentClarification,
		SessionID:             session.SessionID,
		IntentConfidence:      intent.Confidence,
		ClarificationQuestion: question,
		Source:                models.SourceLLMFallback,
		SuggestedQueries:      suggestedQueries,
	}
	note := session.SmartContext(q, a.now(), a.cfg.FollowUpWindow)
	if ans, err := a.knowledge.Answer(ctx, q, note); err != nil {
		a.log.Warn("clarification answer failed", zap.Error(err))
	} else {
		resp.Answer = ans.Answer
		resp.Source = ans.Source
		resp.Confidence = ans.Confidence
	}

	reply := question
	if resp.Answer != "" {
		reply = resp.Answer + "\n\n" + question
	}
	return models.QueryResult{Clarification: resp}, models.ConversationTurn{
		Response:   reply,
		Intent:     models.IntentClarification,
		Confidence: models.Ptr(resp.Confidence),
		Source:     resp.Source,
	}
}

// Chat answers a message from a messaging channel. The sender is both the
// session owner and the wallet user id, and keeps one session per address.
func (a *Assistant) Chat(ctx context.Context, sender, text string) (string, error) {
	key := channelKeyPrefix + sender
	// each sender gets its own tracking bucket so the per-IP cap never
	// evicts another sender's session
	client := ClientInfo{IP: whatsAppClientPrefix + sender}
	sessionID := ""
	if raw, err := a.store.Get(ctx, key); err == nil {
		sessionID = string(raw)
		if _, err := a.sessions.Get(ctx, sessionID); err != nil {
			sessionID = ""
		}
	}
	if sessionID == "" {
		s, err := a.sessions.Create(ctx, client.IP, "", sender, map[string]any{"channel": "whatsapp"})
		if err != nil {
			return "", err
		}
		sessionID = s.SessionID
		if err := a.store.Set(ctx, key, []byte(sessionID), a.sessions.cfg.TTL); err != nil {
			return "", err
		}
	}

	result, err := a.Query(ctx, models.QueryRequest{Query: text, SessionID: sessionID}, client)
	if err != nil {
		return "", err
	}
	return RenderText(result), nil
}

// RenderText flattens a query result into a chat message.
func RenderText(r models.QueryResult) string {
	switch {
	case r.General != nil:
		return r.General.Answer
	case r.Wallet != nil:
		return r.Wallet.Result
	case r.Clarification != nil:
		if r.Clarification.Answer == "" {
			return r.Clarification.ClarificationQuestion
		}
		return r.Clarification.Answer + "\n\n" + r.Clarification.ClarificationQuestion
	case r.Action != nil:
		act := r.Action
		if act.TransactionReady {
			return fmt.Sprintf("✅ Ready to confirm: %s\nEstimated gas: %s", act.ActionDetails.Describe(), act.EstimatedGas)
		}
		var b strings.Builder
		if act.Notice != "" {
			b.WriteString(act.Notice + "\n")
		}
		for _, e := range act.ValidationErrors {
			b.WriteString("⚠️ " + e + "\n")
		}
		if act.NextQuestion != nil {
			b.WriteString(act.NextQuestion.Question)
			if len(act.NextQuestion.Suggestions) > 0 {
				b.WriteString("\nOptions: " + strings.Join(act.NextQuestion.Suggestions, ", "))
			}
		}
		return strings.TrimSpace(b.String())
	}
	return ""
}
