package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/Ananth-NQI/defi-assistant-backend/internal/config"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/embedding"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/handlers"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/llm"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/middleware"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/services"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/storage"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/vectordb"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/wallet"
)

const testAddress = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"

type sentMessage struct{ phone, body string }

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (n *recordingNotifier) Notify(_ context.Context, phone, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{phone, body})
	return nil
}

func (n *recordingNotifier) Enabled() bool { return true }

func (n *recordingNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.sent...)
}

// unreachableStore is a cache whose Ping always fails.
type unreachableStore struct{ *storage.MemoryStore }

func (unreachableStore) Name() string               { return "redis" }
func (unreachableStore) Ping(context.Context) error { return errors.New("connection refused") }

type testEnv struct {
	app      *fiber.App
	notifier *recordingNotifier
}

func testConfig() *config.Config {
	return &config.Config{
		DemoMode: true,
		Server:   config.ServerConfig{Env: "test", RateLimit: 100, RateWindow: time.Minute},
		Session: config.SessionConfig{
			TTL:            time.Hour,
			MaxPerIP:       10,
			HistoryLimit:   10,
			FollowUpWindow: 2 * time.Minute,
		},
		LLM:    config.LLMConfig{Provider: config.ProviderMock},
		Vector: config.VectorConfig{TopK: 3, DirectThreshold: 0.98, RefineThreshold: 0.9},
		Wallet: config.WalletConfig{Network: "base-sepolia", EncryptionKey: "0123456789abcdef0123456789abcdef"},
	}
}

func newTestEnv(t *testing.T, cfg *config.Config, cache storage.Store) *testEnv {
	t.Helper()
	log := zaptest.NewLogger(t)
	ctx := context.Background()

	router := llm.NewRouter(llm.NewMockProvider(), llm.DefaultModels(config.ProviderMock), log)
	emb := embedding.NewHashEmbedder(384)
	vectors := vectordb.NewMemoryStore()
	_, err := vectordb.Load(ctx, vectors, emb, vectordb.DemoDocuments, 50)
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	factory := wallet.NewFactoryWithClient(nil, cfg.Wallet.Network, log)
	wallets := services.NewWalletService(storage.NewMemoryWalletRepository(), factory, cfg.Wallet.Network, cfg.Wallet.EncryptionKey, log)
	sessions := services.NewSessionManager(cache, cfg.Session, log)
	analyzer := services.NewTransactionAnalyzer(log)
	actions := services.NewActionEngine(router, wallets, wallet.MockOracle{}, notifier, log)
	assistant := services.NewAssistant(services.AssistantDeps{
		Sessions:  sessions,
		Store:     cache,
		Intents:   services.NewIntentClassifier(router, log),
		Extractor: services.NewActionExtractor(router, log),
		Analyzer:  analyzer,
		Questions: services.NewQuestionGenerator(router, log),
		Knowledge: services.NewKnowledgeService(emb, vectors, router, services.KnowledgeConfig{
			TopK:            cfg.Vector.TopK,
			DirectThreshold: cfg.Vector.DirectThreshold,
			RefineThreshold: cfg.Vector.RefineThreshold,
		}, log),
		Actions:  actions,
		Wallets:  wallets,
		Notifier: notifier,
	}, services.AssistantConfig{HistoryLimit: cfg.Session.HistoryLimit, FollowUpWindow: cfg.Session.FollowUpWindow}, log)

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(log)})
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(log))

	SetupRoutes(app, cfg, Handlers{
		Query: handlers.NewQueryHandler(assistant, sessions, analyzer, log),
		Health: handlers.NewHealthHandler("1.0.0", handlers.HealthDeps{
			Config:   cfg,
			Cache:    cache,
			Sessions: sessions,
			Embedder: emb,
			Vectors:  vectors,
			Models:   router,
			Wallets:  wallets,
		}, log),
		Wallet:   handlers.NewWalletHandler(wallets),
		Actions:  handlers.NewActionHandler(actions),
		WhatsApp: handlers.NewWhatsAppHandler(assistant, notifier, log),
	}, zap.NewNop())

	return &testEnv{app: app, notifier: notifier}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func errorBody(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got %v", body)
	return e
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, testConfig(), storage.NewMemoryStore())

	resp, body := env.do(t, fiber.MethodGet, "/health/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "1.0.0", body["version"])

	resp, body = env.do(t, fiber.MethodGet, "/health/detailed", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "DEMO", body["mode"])
	svc := body["services"].(map[string]any)
	for _, name := range []string{"redis", "embedding_model", "pinecone", "llm", "database"} {
		assert.Contains(t, svc, name)
	}

	resp, body = env.do(t, fiber.MethodGet, "/health/models", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["available"])
	assert.Equal(t, "Mock AI", body["model_system"].(map[string]any)["system"])

	resp, body = env.do(t, fiber.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", body["status"])

	resp, _ = env.do(t, fiber.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, body = env.do(t, fiber.MethodGet, "/health/mode", nil)
	assert.Equal(t, "DEMO", body["mode"])
}

func TestHealthDegraded(t *testing.T) {
	env := newTestEnv(t, testConfig(), unreachableStore{storage.NewMemoryStore()})

	resp, body := env.do(t, fiber.MethodGet, "/health/detailed", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "degraded", body["status"])
	redis := body["services"].(map[string]any)["redis"].(map[string]any)
	assert.Equal(t, "unhealthy", redis["status"])
	assert.Equal(t, "connection refused", redis["error"])

	resp, body = env.do(t, fiber.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "not_ready", body["status"])

	resp, _ = env.do(t, fiber.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, testConfig(), storage.NewMemoryStore())

	resp, body := env.do(t, fiber.MethodPost, "/query/start-session", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := body["session_id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "active", body["status"])

	resp, body = env.do(t, fiber.MethodPost, "/query/", map[string]string{
		"query":      "swap 1 ETH for USDC",
		"session_id": id,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "action_request", body["intent"])
	assert.Equal(t, id, body["session_id"])
	details := body["action_details"].(map[string]any)
	assert.Equal(t, "swap", details["action"])

	resp, body = env.do(t, fiber.MethodGet, "/query/session/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["conversation_history"], 1)
	assert.Contains(t, body, "readiness")

	_, body = env.do(t, fiber.MethodGet, "/query/stats", nil)
	assert.EqualValues(t, 1, body["active_sessions"])

	resp, body = env.do(t, fiber.MethodDelete, "/query/session/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "deleted", body["status"])

	resp, body = env.do(t, fiber.MethodGet, "/query/session/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "SESSION_NOT_FOUND", errorBody(t, body)["code"])
}

func TestQueryErrors(t *testing.T) {
	env := newTestEnv(t, testConfig(), storage.NewMemoryStore())

	resp, body := env.do(t, fiber.MethodPost, "/query/", `{"query":`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	e := errorBody(t, body)
	assert.Equal(t, "INVALID_REQUEST_BODY", e["code"])
	assert.Equal(t, resp.Header.Get(fiber.HeaderXRequestID), e["request_id"])
	assert.NotEmpty(t, e["timestamp"])

	resp, body = env.do(t, fiber.MethodPost, "/query/", map[string]string{"query": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", errorBody(t, body)["code"])

	resp, body = env.do(t, fiber.MethodPost, "/query/", map[string]string{"query": "what is defi?", "session_id": "missing"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "SESSION_NOT_FOUND", errorBody(t, body)["code"])

	resp, body = env.do(t, fiber.MethodDelete, "/query/session/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "SESSION_NOT_FOUND", errorBody(t, body)["code"])

	resp, body = env.do(t, fiber.MethodGet, "/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", errorBody(t, body)["code"])
}

func TestGeneralQueryOpensSession(t *testing.T) {
	env := newTestEnv(t, testConfig(), storage.NewMemoryStore())

	resp, body := env.do(t, fiber.MethodPost, "/query/", map[string]string{"query": "What is DeFi?"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "general_query", body["intent"])
	assert.NotEmpty(t, body["session_id"])
	assert.NotEmpty(t, body["answer"])
	assert.Contains(t, body, "top_matches")
}

func TestIntentEndpoint(t *testing.T) {
	env := newTestEnv(t, testConfig(), storage.NewMemoryStore())

	resp, body := env.do(t, fiber.MethodPost, "/intent/", map[string]string{"user_query": "swap 100 USDC for ETH"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "swap 100 USDC for ETH", body["user_query"])
	assert.Equal(t, "action_request", body["intent"])
	assert.NotEmpty(t, body["response"])
	assert.NotContains(t, body, "session_id")

	resp, body = env.do(t, fiber.MethodPost, "/intent", map[string]string{"user_query": "how does staking work"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "general_query", body["intent"])

	resp, body = env.do(t, fiber.MethodPost, "/intent/", map[string]string{"user_query": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", errorBody(t, body)["code"])
}

func TestWalletEndpoints(t *testing.T) {
	env := newTestEnv(t, testConfig(), storage.NewMemoryStore())
	walletData := strings.Repeat("k", 64)

	resp, body := env.do(t, fiber.MethodPost, "/wallet/connect-wallet", map[string]string{
		"user_id": "u1", "wallet_address": "0x123", "wallet_data": walletData,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid wallet address format", errorBody(t, body)["message"])

	resp, body = env.do(t, fiber.MethodPost, "/wallet/connect-wallet", map[string]string{
		"user_id": "u1", "wallet_address": testAddress, "wallet_data": walletData,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	resp, body = env.do(t, fiber.MethodPost, "/wallet/wallet-status", map[string]string{"user_id": "u1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["connected"])
	assert.Equal(t, testAddress, body["wallet_address"])

	resp, body = env.do(t, fiber.MethodPost, "/actions/", map[string]string{"user_id": "u1", "query": "what is my balance"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "check_balance", body["sub_intent"])
	assert.Contains(t, body["result"], "ETH (Address:")

	resp, body = env.do(t, fiber.MethodPost, "/wallet/disconnect-wallet", map[string]string{"user_id": "u1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Wallet disconnected successfully", body["message"])

	_, body = env.do(t, fiber.MethodPost, "/wallet/wallet-status", map[string]string{"user_id": "u1"})
	assert.Equal(t, false, body["connected"])
	assert.Nil(t, body["wallet_address"])

	resp, body = env.do(t, fiber.MethodPost, "/wallet/wallet-status", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", errorBody(t, body)["code"])
}

func TestActionsRequireUser(t *testing.T) {
	env := newTestEnv(t, testConfig(), storage.NewMemoryStore())

	resp, body := env.do(t, fiber.MethodPost, "/actions/", map[string]string{"query": "what is my balance"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", errorBody(t, body)["code"])

	resp, body = env.do(t, fiber.MethodPost, "/actions/", map[string]string{"user_id": "nobody", "query": "what is my balance"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["result"], "No wallet connected")
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RateLimit = 2
	env := newTestEnv(t, cfg, storage.NewMemoryStore())

	for i := 0; i < 2; i++ {
		resp, _ := env.do(t, fiber.MethodGet, "/query/stats", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, body := env.do(t, fiber.MethodGet, "/query/stats", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "RATE_LIMITED", errorBody(t, body)["code"])

	resp, _ = env.do(t, fiber.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWhatsAppWebhook(t *testing.T) {
	env := newTestEnv(t, testConfig(), storage.NewMemoryStore())

	form := url.Values{"From": {"whatsapp:+15551234567"}, "Body": {"What is DeFi?"}, "MessageSid": {"SM1"}}
	req := httptest.NewRequest(fiber.MethodPost, "/webhook/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	sent := env.notifier.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "+15551234567", sent[0].phone)
	assert.NotEmpty(t, sent[0].body)

	status := url.Values{"MessageSid": {"SM2"}, "MessageStatus": {"delivered"}}
	req = httptest.NewRequest(fiber.MethodPost, "/webhook/whatsapp", strings.NewReader(status.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	resp, err = env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, env.notifier.messages(), 1)
}

func TestWhatsAppWebhookRequiresSignature(t *testing.T) {
	cfg := testConfig()
	cfg.Twilio = config.TwilioConfig{AuthToken: "secret", ValidateHooks: true}
	env := newTestEnv(t, cfg, storage.NewMemoryStore())

	form := url.Values{"From": {"whatsapp:+15551234567"}, "Body": {"hi"}}
	req := httptest.NewRequest(fiber.MethodPost, "/webhook/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, env.notifier.messages())
}

func TestWhatsAppTestEndpoint(t *testing.T) {
	env := newTestEnv(t, testConfig(), storage.NewMemoryStore())

	resp, body := env.do(t, fiber.MethodPost, "/test/whatsapp", map[string]string{"from": "+15550000000", "message": "What is DeFi?"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["response"])

	cfg := testConfig()
	cfg.Server.Env = "production"
	prod := newTestEnv(t, cfg, storage.NewMemoryStore())
	resp, _ = prod.do(t, fiber.MethodPost, "/test/whatsapp", map[string]string{"from": "+1", "message": "hi"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
