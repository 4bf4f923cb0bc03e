package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Ananth-NQI/defi-assistant-backend/internal/llm"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/models"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/storage"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/wallet"
)

const recipientAddr = "0x742d35Cc6634C0532925a3b8D4C9db96590c6C87"

type actionFixture struct {
	engine   *ActionEngine
	llm      *scriptedLLM
	wallets  *WalletService
	repo     *storage.MemoryWalletRepository
	notifier *recordingNotifier
	clock    *fakeClock
}

func newActionFixture(t *testing.T) *actionFixture {
	t.Helper()
	wallets, repo := newTestWallets(t)
	l := newScriptedLLM()
	n := &recordingNotifier{}
	clock := &fakeClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	e := NewActionEngine(l, wallets, wallet.MockOracle{}, n, zaptest.NewLogger(t))
	e.now = clock.Now
	return &actionFixture{engine: e, llm: l, wallets: wallets, repo: repo, notifier: n, clock: clock}
}

func (f *actionFixture) run(t *testing.T, user, query string) string {
	t.Helper()
	resp, err := f.engine.Run(context.Background(), user, query)
	require.NoError(t, err)
	return resp.Result
}

func TestKeywordSubIntent(t *testing.T) {
	tests := map[string]string{
		"what's my balance":              SubCheckBalance,
		"hello":                          SubCheckBalance,
		"show my wallet address":         SubGetAddress,
		"send 1 ETH to " + recipientAddr: SubSendTokens,
		"pay 5 USDC for api access":      SubPayService,
		"confirm payment":                SubConfirmPayment,
		"what is the price of LINK":      SubGetPrice,
		"wrap 1 eth":                     SubWrapETH,
		"find the best apy pools":        SubSearchAPY,
	}
	for query, want := range tests {
		assert.Equal(t, want, keywordSubIntent(query), query)
	}
}

func TestSubIntentFromModel(t *testing.T) {
	f := newActionFixture(t)
	f.llm.outputs[llm.TaskSubIntent] = "Label: get_price"
	resp, err := f.engine.Run(context.Background(), "u1", "how much is one of those")
	require.NoError(t, err)
	assert.Equal(t, SubGetPrice, resp.SubIntent)
}

func TestRunValidation(t *testing.T) {
	f := newActionFixture(t)
	_, err := f.engine.Run(context.Background(), "", "balance")
	assert.Error(t, err)
	_, err = f.engine.Run(context.Background(), "u1", "   ")
	assert.Error(t, err)
}

func TestBalanceAndAddress(t *testing.T) {
	f := newActionFixture(t)
	assert.Contains(t, f.run(t, "u1", "check my balance"), "No wallet connected")

	connectTestWallet(t, f.wallets, "u1", "")
	assert.Equal(t, "0.100000 ETH (Address: "+testAddress+")", f.run(t, "u1", "check my balance"))
	assert.Equal(t, testAddress, f.run(t, "u1", "what is my address"))
}

func TestPriceWrapAndAPY(t *testing.T) {
	f := newActionFixture(t)
	assert.Equal(t, "💲 Current price of ETH: $3500.5000", f.run(t, "u1", "price of eth"))
	assert.Equal(t, "💲 Current price of LINK: $25.7500", f.run(t, "u1", "what's the price of LINK?"))

	f.llm.outputs[llm.TaskAction] = `{"symbol": "pepe"}`
	assert.Equal(t, "💲 Current price of PEPE: $100.0000", f.run(t, "u1", "price of pepe"))
	delete(f.llm.outputs, llm.TaskAction)

	assert.Equal(t, "⚠️ Wrapping/unwrapping ETH will be available soon.", f.run(t, "u1", "wrap my eth"))

	apy := f.run(t, "u1", "show top 2 apy pools")
	assert.Equal(t, "🏆 Top APY Pools:\n- Aerodrome WETH-USDC: 18.4% (https://aerodrome.finance)\n- Uniswap V3 ETH-USDC 0.05%: 12.7% (https://app.uniswap.org)", apy)
}

func TestSendTokens(t *testing.T) {
	f := newActionFixture(t)
	connectTestWallet(t, f.wallets, "u1", "+15550001")

	out := f.run(t, "u1", "send 0.5 ETH to "+recipientAddr)
	assert.Equal(t, "✅ Sent 0.5 ETH to "+recipientAddr+". Tx: "+wallet.MockETHHash, out)

	out = f.run(t, "u1", "send 10 USDC to "+recipientAddr)
	assert.Contains(t, out, wallet.MockTokenHash)

	msgs := f.notifier.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "+15550001", msgs[0].phone)

	assert.Contains(t, f.run(t, "u1", "send 5 ETH to bob"), "valid recipient address")
	assert.Contains(t, f.run(t, "u1", "send ETH to "+recipientAddr), "positive amount")
}

func TestPaymentConfirmFlow(t *testing.T) {
	f := newActionFixture(t)
	connectTestWallet(t, f.wallets, "u1", "")

	out := f.run(t, "u1", "pay 5 USDC for api access")
	assert.Equal(t, "🔍 Confirm 5 USDC for Premium API Access → 0x742d35Cc6634C0532925a3b8D4C9db96590c6C87", out)
	assert.True(t, f.engine.HasPending("u1"))

	f.clock.Advance(100 * time.Second)
	resp, err := f.engine.Run(context.Background(), "u1", "what?")
	require.NoError(t, err)
	assert.Equal(t, SubConfirmPayment, resp.SubIntent)
	assert.True(t, resp.Pending)
	assert.Equal(t, "🤔 You have a pending payment (expires in 200s). Reply 'confirm payment' or 'cancel'.", resp.Result)

	assert.Equal(t, "✅ x402 Payment executed. Tx: "+wallet.MockPaymentHash, f.run(t, "u1", "confirm payment"))
	assert.False(t, f.engine.HasPending("u1"))
	assert.Equal(t, "❌ There is no pending payment to confirm.", f.run(t, "u1", "confirm payment"))
}

func TestPaymentCancelAndExpiry(t *testing.T) {
	f := newActionFixture(t)

	f.run(t, "u1", "pay 1 ETH for the oracle")
	assert.Equal(t, "❌ Payment cancelled.", f.run(t, "u1", "cancel"))
	assert.False(t, f.engine.HasPending("u1"))

	f.run(t, "u1", "pay 2 DAI for data feed")
	f.clock.Advance(PaymentTTL + time.Second)
	assert.False(t, f.engine.HasPending("u1"))
	assert.Equal(t, "⏰ Your previous payment request has expired. Please make a new request.", f.run(t, "u1", "confirm payment"))

	f.run(t, "u2", "pay 2 DAI for data feed")
	f.clock.Advance(PaymentTTL + time.Second)
	assert.Equal(t, 1, f.engine.SweepExpired())
	assert.Equal(t, 0, f.engine.SweepExpired())
}

func TestPaymentNegatedReplies(t *testing.T) {
	f := newActionFixture(t)
	connectTestWallet(t, f.wallets, "u1", "")

	f.run(t, "u1", "pay 5 USDC for api access")
	for _, reply := range []string{"don't confirm", "do not confirm payment", "no, don't cancel yet", "reconfirming later"} {
		assert.Contains(t, f.run(t, "u1", reply), "You have a pending payment", reply)
		assert.True(t, f.engine.HasPending("u1"), reply)
	}
	assert.Equal(t, "✅ x402 Payment executed. Tx: "+wallet.MockPaymentHash, f.run(t, "u1", "yes, confirm"))
}

func TestPaymentFailureHidesCause(t *testing.T) {
	f := newActionFixture(t)
	require.NoError(t, f.repo.SaveWallet(context.Background(), &models.WalletConnection{
		UserID: "u1", WalletAddress: recipientAddr, EncryptedSecret: "garbage",
	}))

	f.run(t, "u1", "pay 5 USDC for api access")
	out := f.run(t, "u1", "confirm payment")
	assert.Equal(t, paymentFailed, out)
	assert.NotContains(t, out, "decrypt")
}

func TestPaymentValidation(t *testing.T) {
	f := newActionFixture(t)
	tests := map[string]string{
		"pay 5 USDC for something":   "❌ Service type not specified. Please specify which service you want to pay for.",
		"pay for api access":         "❌ Payment amount not specified. Please specify how much you want to pay.",
		"pay 0 USDC for api access":  "❌ Payment amount must be greater than zero.",
		"pay 2000000 ETH for oracle": "❌ Payment amount too large. Please specify a reasonable amount.",
	}
	for query, want := range tests {
		assert.Equal(t, want, f.run(t, "u1", query), query)
		assert.False(t, f.engine.HasPending("u1"))
	}

	f.llm.outputs[llm.TaskAction] = `{"service": "weather", "amount": 1, "token": "ETH"}`
	assert.Equal(t, "⚠️ Service 'weather' not found. Available services: api_access, data_feed, oracle_query", f.run(t, "u1", "pay 1 ETH for weather"))

	f.llm.outputs[llm.TaskAction] = `{"service": "api", "amount": 1, "token": "BTC"}`
	assert.Equal(t, "❌ Unsupported token 'BTC'. Supported tokens: ETH, USDC, USDT, DAI", f.run(t, "u1", "pay 1 BTC for api"))
}

func TestIsWalletQuery(t *testing.T) {
	assert.True(t, IsWalletQuery("What's my balance?"))
	assert.True(t, IsWalletQuery("send 1 ETH to "+recipientAddr))
	assert.True(t, IsWalletQuery("pay 1 USDC for api access"))
	assert.False(t, IsWalletQuery("send me info about Aave"))
	assert.False(t, IsWalletQuery("swap 100 USDC for ETH"))
	assert.False(t, IsWalletQuery("what is DeFi?"))
}
