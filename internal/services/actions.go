package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/defi-assistant-backend/internal/llm"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/models"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/wallet"
)

// Wallet action sub-intents.
const (
	SubCheckBalance   = "check_balance"
	SubGetAddress     = "get_address"
	SubSendTokens     = "send_tokens"
	SubPayService     = "pay_service"
	SubConfirmPayment = "confirm_payment"
	SubGetPrice       = "get_price"
	SubWrapETH        = "wrap_eth"
	SubSearchAPY      = "search_apy"
)

var subIntents = []string{
	SubCheckBalance, SubGetAddress, SubSendTokens, SubPayService,
	SubConfirmPayment, SubGetPrice, SubWrapETH, SubSearchAPY,
}

func subIntentLabels() []string { return subIntents }

// PaymentTTL is how long an x402 payment waits for confirmation.
const PaymentTTL = 300 * time.Second

const maxPaymentAmount = 1_000_000

// PaymentService is an x402 payable service.
type PaymentService struct {
	ID      string
	Name    string
	Address string
}

var paymentServices = map[string]PaymentService{
	"api_access":   {ID: "api_access", Name: "Premium API Access", Address: "0x742d35Cc6634C0532925a3b8D4C9db96590c6C87"},
	"data_feed":    {ID: "data_feed", Name: "Real-time Data Feed", Address: "0x8ba1f109551bD432803012645E136c22C501e5b5"},
	"oracle_query": {ID: "oracle_query", Name: "Oracle Query Service", Address: "0x1a5F9352Af8Af974bFC03399e3767DF6370d82e4"},
}

var serviceCorrections = map[string]string{
	"api":    "api_access",
	"data":   "data_feed",
	"feed":   "data_feed",
	"oracle": "oracle_query",
}

var paymentTokens = []string{"ETH", "USDC", "USDT", "DAI"}

// APYPool is an entry of the yield catalogue.
type APYPool struct {
	Name string
	APY  float64
	Link string
}

var apyCatalogue = []APYPool{
	{Name: "Aave USDC (Base)", APY: 4.85, Link: "https://app.aave.com"},
	{Name: "Compound USDC (Base)", APY: 5.12, Link: "https://app.compound.finance"},
	{Name: "Aerodrome WETH-USDC", APY: 18.4, Link: "https://aerodrome.finance"},
	{Name: "Uniswap V3 ETH-USDC 0.05%", APY: 12.7, Link: "https://app.uniswap.org"},
	{Name: "Curve 3pool", APY: 3.2, Link: "https://curve.fi"},
	{Name: "Lido stETH", APY: 3.6, Link: "https://lido.fi"},
	{Name: "Yearn USDC Vault", APY: 6.9, Link: "https://yearn.fi"},
	{Name: "Moonwell USDC", APY: 7.45, Link: "https://moonwell.fi"},
}

type pendingPayment struct {
	wallet.Payment
	Name      string
	ExpiresAt time.Time
}

var (
	hexAddress   = regexp.MustCompile(`0x[a-fA-F0-9]{40}`)
	numberRe     = regexp.MustCompile(`\d+(?:\.\d+)?`)
	wordRe       = regexp.MustCompile(`[A-Za-z][A-Za-z0-9]*`)
	priceOfRe    = regexp.MustCompile(`(?i)\bprice\s+(?:of|for)\s+([a-z][a-z0-9]*)`)
	walletQuery  = regexp.MustCompile(`\b(balance|my address|wallet address|price of|price for|wrap|unwrap|apy|x402|pay|confirm payment)\b`)
	transferVerb = regexp.MustCompile(`\b(send|transfer)\b`)
)

var x402Mention = regexp.MustCompile(`(?i)\bx402\b`)

var (
	paymentConfirm  = regexp.MustCompile(`\bconfirm\b`)
	paymentCancel   = regexp.MustCompile(`\bcancel\b`)
	paymentNegation = regexp.MustCompile(`\b(no|not|never|dont|don't|do not|won't)\b`)
)

var serviceMention = regexp.MustCompile(`\b(api_access|data_feed|oracle_query|api|feed|data|oracle)\b`)

var priceSymbols = []string{"ETH", "BTC", "USDC", "USDT", "DAI", "LINK", "WBTC", "AAVE", "UNI", "COMP"}

// IsWalletQuery reports whether text asks for a wallet operation rather than
// a DeFi protocol transaction or an explanation.
func IsWalletQuery(text string) bool {
	lower := strings.ToLower(text)
	if walletQuery.MatchString(lower) {
		return true
	}
	return transferVerb.MatchString(lower) && hexAddress.MatchString(text)
}

// ActionEngine executes wallet operations: balances, transfers, prices, yield
// lookups and confirmed x402 service payments.
type ActionEngine struct {
	llm      Completer
	wallets  *WalletService
	oracle   wallet.PriceOracle
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	pending map[string]pendingPayment
}

func NewActionEngine(c Completer, wallets *WalletService, oracle wallet.PriceOracle, notifier Notifier, log *zap.Logger) *ActionEngine {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &ActionEngine{
		llm:      c,
		wallets:  wallets,
		oracle:   oracle,
		notifier: notifier,
		log:      log.Named("actions"),
		now:      time.Now,
		pending:  make(map[string]pendingPayment),
	}
}

// Run classifies and executes a wallet request for userID. A user with a
// pending payment always lands in the payment flow.
func (e *ActionEngine) Run(ctx context.Context, userID, query string) (models.ActionChainResponse, error) {
	userID, query = strings.TrimSpace(userID), strings.TrimSpace(query)
	if userID == "" {
		return models.ActionChainResponse{}, models.NewValidationError("user_id is required", nil)
	}
	if query == "" {
		return models.ActionChainResponse{}, models.NewValidationError("Query cannot be empty", nil)
	}

	sub := SubConfirmPayment
	if !e.HasPending(userID) {
		sub = e.classify(ctx, query)
	}
	e.log.Debug("wallet action", zap.String("user", userID), zap.String("sub_intent", sub))

	resp := models.ActionChainResponse{UserID: userID, SubIntent: sub}
	switch sub {
	case SubCheckBalance:
		resp.Result = e.balance(ctx, userID)
	case SubGetAddress:
		resp.Result = e.address(ctx, userID)
	case SubSendTokens:
		resp.Result = e.send(ctx, userID, query)
	case SubPayService, SubConfirmPayment:
		resp.Result = e.payment(ctx, userID, query, sub)
	case SubGetPrice:
		resp.Result = e.price(ctx, query)
	case SubWrapETH:
		resp.Result = "⚠️ Wrapping/unwrapping ETH will be available soon."
	case SubSearchAPY:
		resp.Result = searchAPY(query)
	}
	resp.Pending = e.HasPending(userID)
	return resp, nil
}

func (e *ActionEngine) classify(ctx context.Context, query string) string {
	out, err := e.llm.Complete(ctx, llm.TaskSubIntent, llm.Request{
		Prompt:    subIntentPrompt(query),
		Input:     query,
		MaxTokens: 10,
	})
	if err != nil {
		e.log.Warn("sub-intent model failed, using keywords", zap.Error(err))
		return keywordSubIntent(query)
	}
	label := strings.ToLower(strings.Trim(strings.TrimSpace(out), `"'.`))
	if contains(subIntents, label) {
		return label
	}
	for _, s := range subIntents {
		if strings.Contains(label, s) {
			return s
		}
	}
	return keywordSubIntent(query)
}

var subIntentKeywords = []struct {
	sub string
	re  *regexp.Regexp
}{
	{SubConfirmPayment, regexp.MustCompile(`\bconfirm\b`)},
	{SubPayService, regexp.MustCompile(`\b(pay|x402|subscribe|api access|data feed|oracle)\b`)},
	{SubSendTokens, regexp.MustCompile(`\b(send|transfer)\b`)},
	{SubGetPrice, regexp.MustCompile(`\b(price|worth|cost)\b`)},
	{SubWrapETH, regexp.MustCompile(`\b(wrap|unwrap|weth)\b`)},
	{SubSearchAPY, regexp.MustCompile(`\b(apy|yield|pools?)\b`)},
	{SubGetAddress, regexp.MustCompile(`\baddress\b`)},
}

// keywordSubIntent is the classification used without a model. Balance is
// the default.
func keywordSubIntent(query string) string {
	lower := strings.ToLower(query)
	for _, k := range subIntentKeywords {
		if k.re.MatchString(lower) {
			return k.sub
		}
	}
	return SubCheckBalance
}

func (e *ActionEngine) balance(ctx context.Context, userID string) string {
	p, msg := e.open(ctx, userID)
	if p == nil {
		return msg
	}
	raw, err := p.Balance(ctx, "ETH")
	if err != nil {
		e.log.Warn("balance fetch failed", zap.String("user", userID), zap.Error(err))
		return fmt.Sprintf("Wallet connected: %s (balance check failed)", p.Address())
	}
	return fmt.Sprintf("%.6f ETH (Address: %s)", wallet.FromUnits(raw, "ETH"), p.Address())
}

func (e *ActionEngine) address(ctx context.Context, userID string) string {
	p, msg := e.open(ctx, userID)
	if p == nil {
		return msg
	}
	return p.Address()
}

func (e *ActionEngine) open(ctx context.Context, userID string) (wallet.Provider, string) {
	p, _, err := e.wallets.Open(ctx, userID)
	if errors.Is(err, ErrNoWallet) {
		return nil, "❌ No wallet connected. Connect a wallet to use wallet actions."
	}
	if err != nil {
		e.log.Error("wallet open failed", zap.String("user", userID), zap.Error(err))
		return nil, "❌ Unable to initialize wallet"
	}
	return p, ""
}

type transfer struct {
	Amount    float64
	Token     string
	Recipient string
}

func (e *ActionEngine) send(ctx context.Context, userID, query string) string {
	t := e.extractTransfer(ctx, query)
	switch {
	case t.Amount <= 0:
		return "❌ Please specify a positive amount to send."
	case t.Token == "":
		return "❌ Please specify which token to send."
	case !common.IsHexAddress(t.Recipient) || len(t.Recipient) != 42:
		return "❌ Please provide a valid recipient address (0x followed by 40 hex characters)."
	}

	p, conn, err := e.wallets.Open(ctx, userID)
	if errors.Is(err, ErrNoWallet) {
		return "❌ No wallet connected. Connect a wallet to use wallet actions."
	}
	if err != nil {
		return "❌ Unable to initialize wallet"
	}

	hash, err := p.SendTransaction(ctx, t.Recipient, t.Token, t.Amount)
	switch {
	case errors.Is(err, wallet.ErrReadOnly):
		return "❌ This wallet is read-only. Transfers need a wallet connected with its private key."
	case errors.Is(err, wallet.ErrUnsupportedAsset):
		return fmt.Sprintf("❌ Unsupported token '%s'.", t.Token)
	case err != nil:
		e.log.Error("transfer failed", zap.String("user", userID), zap.Error(err))
		return "❌ Could not process transfer request."
	}

	amount := strconv.FormatFloat(t.Amount, 'f', -1, 64)
	e.notify(ctx, conn, fmt.Sprintf("Sent %s %s to %s. Tx: %s", amount, t.Token, t.Recipient, hash))
	return fmt.Sprintf("✅ Sent %s %s to %s. Tx: %s", amount, t.Token, t.Recipient, hash)
}

func (e *ActionEngine) extractTransfer(ctx context.Context, query string) transfer {
	var t transfer
	if fields := e.extractJSON(ctx, transferPrompt(query), query); fields != nil {
		if v, ok := numberField(fields, "amount"); ok {
			t.Amount = v
		}
		if s, ok := stringField(fields, "token"); ok {
			t.Token = strings.ToUpper(s)
		} else if s, ok := stringField(fields, "token_in"); ok {
			t.Token = strings.ToUpper(s)
		}
		if s, ok := stringField(fields, "recipient"); ok {
			t.Recipient = s
		}
	}
	if t.Recipient == "" {
		t.Recipient = hexAddress.FindString(query)
	}
	stripped := hexAddress.ReplaceAllString(query, " ")
	if t.Amount == 0 {
		t.Amount = firstNumber(stripped)
	}
	if t.Token == "" {
		t.Token = firstSymbol(stripped, paymentTokens)
	}
	return t
}

// payment runs the x402 flow: a request is held until the user confirms or
// cancels it, or PaymentTTL passes.
func (e *ActionEngine) payment(ctx context.Context, userID, query, sub string) string {
	lower := strings.ToLower(query)
	// a negated reply such as "don't confirm" only repeats the reminder
	negated := paymentNegation.MatchString(lower)

	e.mu.Lock()
	p, ok := e.pending[userID]
	if ok {
		now := e.now()
		switch {
		case now.After(p.ExpiresAt):
			delete(e.pending, userID)
			e.mu.Unlock()
			return "⏰ Your previous payment request has expired. Please make a new request."
		case !negated && paymentConfirm.MatchString(lower):
			delete(e.pending, userID)
			e.mu.Unlock()
			return e.executePayment(ctx, userID, p)
		case !negated && paymentCancel.MatchString(lower):
			delete(e.pending, userID)
			e.mu.Unlock()
			return "❌ Payment cancelled."
		}
		e.mu.Unlock()
		remaining := int(p.ExpiresAt.Sub(now).Seconds())
		return fmt.Sprintf("🤔 You have a pending payment (expires in %ds). Reply 'confirm payment' or 'cancel'.", remaining)
	}
	e.mu.Unlock()

	if sub == SubConfirmPayment {
		return "❌ There is no pending payment to confirm."
	}

	service, amount, token := e.extractPayment(ctx, query)
	if service == "" {
		return "❌ Service type not specified. Please specify which service you want to pay for."
	}
	if amount == nil {
		return "❌ Payment amount not specified. Please specify how much you want to pay."
	}
	if *amount <= 0 {
		return "❌ Payment amount must be greater than zero."
	}
	if *amount > maxPaymentAmount {
		return "❌ Payment amount too large. Please specify a reasonable amount."
	}
	if c, ok := serviceCorrections[service]; ok {
		service = c
	}
	info, ok := paymentServices[service]
	if !ok {
		return fmt.Sprintf("⚠️ Service '%s' not found. Available services: api_access, data_feed, oracle_query", service)
	}
	if !contains(paymentTokens, token) {
		return fmt.Sprintf("❌ Unsupported token '%s'. Supported tokens: %s", token, strings.Join(paymentTokens, ", "))
	}

	p = pendingPayment{
		Payment:   wallet.Payment{ServiceID: info.ID, Amount: *amount, Token: token, To: info.Address},
		Name:      info.Name,
		ExpiresAt: e.now().Add(PaymentTTL),
	}
	e.mu.Lock()
	e.pending[userID] = p
	e.mu.Unlock()

	e.log.Info("payment awaiting confirmation", zap.String("user", userID), zap.String("service", info.ID))
	return fmt.Sprintf("🔍 Confirm %s %s for %s → %s",
		strconv.FormatFloat(*amount, 'f', -1, 64), token, info.Name, info.Address)
}

const paymentFailed = "❌ Payment failed. Please try again later."

func (e *ActionEngine) executePayment(ctx context.Context, userID string, p pendingPayment) string {
	provider, conn, err := e.wallets.Open(ctx, userID)
	if errors.Is(err, ErrNoWallet) {
		return "❌ Payment failed: no wallet connected."
	}
	if err != nil {
		e.log.Error("wallet open failed", zap.String("user", userID), zap.Error(err))
		return paymentFailed
	}
	hash, err := provider.Pay(ctx, p.Payment)
	if err != nil {
		e.log.Error("payment failed", zap.String("user", userID), zap.Error(err))
		return paymentFailed
	}
	e.log.Info("payment executed", zap.String("user", userID), zap.String("tx", hash))
	e.notify(ctx, conn, fmt.Sprintf("x402 payment of %s %s for %s executed. Tx: %s",
		strconv.FormatFloat(p.Amount, 'f', -1, 64), p.Token, p.Name, hash))
	return "✅ x402 Payment executed. Tx: " + hash
}

// extractPayment returns the raw service id, the amount when one was given
// and the token symbol (ETH when absent).
func (e *ActionEngine) extractPayment(ctx context.Context, query string) (string, *float64, string) {
	var (
		service string
		amount  *float64
		token   string
	)
	if fields := e.extractJSON(ctx, paymentPrompt(query), query); fields != nil {
		if s, ok := stringField(fields, "service"); ok && s != "generic_service" {
			service = strings.ToLower(s)
		}
		if v, ok := numberField(fields, "amount"); ok {
			amount = &v
		}
		if s, ok := stringField(fields, "token"); ok {
			token = strings.ToUpper(s)
		}
	}

	lower := strings.ToLower(query)
	if service == "" {
		if m := serviceMention.FindStringSubmatch(lower); m != nil {
			service = m[1]
		}
	}
	if amount == nil {
		if m := numberRe.FindString(x402Mention.ReplaceAllString(hexAddress.ReplaceAllString(query, " "), " ")); m != "" {
			v, _ := strconv.ParseFloat(m, 64)
			amount = &v
		}
	}
	if token == "" {
		token = firstSymbol(query, paymentTokens)
	}
	if token == "" {
		token = "ETH"
	}
	return service, amount, token
}

func (e *ActionEngine) price(ctx context.Context, query string) string {
	symbol := ""
	if fields := e.extractJSON(ctx, pricePrompt(query), query); fields != nil {
		if s, ok := stringField(fields, "symbol"); ok {
			symbol = strings.ToUpper(s)
		}
	}
	if symbol == "" {
		symbol = firstSymbol(query, priceSymbols)
	}
	if symbol == "" {
		if m := priceOfRe.FindStringSubmatch(query); m != nil {
			symbol = strings.ToUpper(m[1])
		}
	}
	if symbol == "" {
		return "❌ Could not fetch token price."
	}
	p, err := e.oracle.Price(ctx, symbol)
	if err != nil {
		e.log.Warn("price lookup failed", zap.String("symbol", symbol), zap.Error(err))
		return "❌ Could not fetch token price."
	}
	return fmt.Sprintf("💲 Current price of %s: $%.4f", symbol, p)
}

// searchAPY lists the highest yielding pools. A number in the query sets how
// many, between 1 and 10, default 3.
func searchAPY(query string) string {
	n := 3
	if v := firstNumber(query); v >= 1 {
		n = int(v)
	}
	if n > 10 {
		n = 10
	}
	pools := append([]APYPool(nil), apyCatalogue...)
	sort.Slice(pools, func(i, j int) bool { return pools[i].APY > pools[j].APY })
	if n > len(pools) {
		n = len(pools)
	}
	lines := make([]string, 0, n)
	for _, p := range pools[:n] {
		lines = append(lines, fmt.Sprintf("- %s: %s%% (%s)", p.Name, strconv.FormatFloat(p.APY, 'f', -1, 64), p.Link))
	}
	return "🏆 Top APY Pools:\n" + strings.Join(lines, "\n")
}

// extractJSON returns nil when the model fails or answers without an object.
func (e *ActionEngine) extractJSON(ctx context.Context, prompt, query string) map[string]any {
	out, err := e.llm.Complete(ctx, llm.TaskAction, llm.Request{Prompt: prompt, Input: query, JSON: true})
	if err != nil {
		e.log.Warn("extraction model failed", zap.Error(err))
		return nil
	}
	fields, err := decodeJSONObject(out)
	if err != nil {
		return nil
	}
	return fields
}

func (e *ActionEngine) notify(ctx context.Context, conn *models.WalletConnection, body string) {
	if conn == nil || conn.NotifyPhone == "" {
		return
	}
	if err := e.notifier.Notify(ctx, conn.NotifyPhone, body); err != nil {
		e.log.Warn("notification failed", zap.String("user", conn.UserID), zap.Error(err))
	}
}

// HasPending reports whether userID has an unexpired payment awaiting
// confirmation.
func (e *ActionEngine) HasPending(userID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.pending[userID]
	return ok && !e.now().After(p.ExpiresAt)
}

// SweepExpired drops payments past their deadline and returns how many.
func (e *ActionEngine) SweepExpired() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	n := 0
	for user, p := range e.pending {
		if now.After(p.ExpiresAt) {
			delete(e.pending, user)
			n++
		}
	}
	return n
}

func firstNumber(text string) float64 {
	m := numberRe.FindString(text)
	if m == "" {
		return 0
	}
	v, _ := strconv.ParseFloat(m, 64)
	return v
}

func firstSymbol(text string, symbols []string) string {
	for _, w := range wordRe.FindAllString(text, -1) {
		if up := strings.ToUpper(w); contains(symbols, up) {
			return up
		}
	}
	return ""
}
