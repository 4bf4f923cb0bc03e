package wallet

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeChain struct {
	balance  *big.Int
	token    *big.Int
	calls    []ethereum.CallMsg
	sent     []*types.Transaction
	chainID  *big.Int
	gasPrice *big.Int
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		balance:  big.NewInt(2_500_000_000_000_000_000),
		token:    big.NewInt(42_000_000),
		chainID:  big.NewInt(84532),
		gasPrice: big.NewInt(1_000_000_000),
	}
}

func (f *fakeChain) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return f.balance, nil
}

func (f *fakeChain) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls = append(f.calls, call)
	return common.LeftPadBytes(f.token.Bytes(), 32), nil
}

func (f *fakeChain) PendingNonceAt(context.Context, common.Address) (uint64, error) { return 7, nil }

func (f *fakeChain) SuggestGasPrice(context.Context) (*big.Int, error) { return f.gasPrice, nil }

func (f *fakeChain) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) { return 60000, nil }

func (f *fakeChain) ChainID(context.Context) (*big.Int, error) { return f.chainID, nil }

func (f *fakeChain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.sent = append(f.sent, tx)
	return nil
}

const recipient = "0x742d35Cc6634C0532925a3b8D4C9db96590c6C87"

func TestUnitConversion(t *testing.T) {
	assert.Equal(t, "1500000", ToUnits(1.5, "usdc").String())
	assert.Equal(t, "100000000000000000", ToUnits(0.1, "ETH").String())
	assert.Equal(t, "70000000000000000", ToUnits(0.07, "ETH").String())
	assert.Equal(t, "123456789", ToUnits(123.456789, "USDC").String())
	assert.Equal(t, "1", ToUnits(0.0000019, "USDC").String())
	assert.InDelta(t, 0.1, FromUnits(big.NewInt(100_000_000_000_000_000), "ETH"), 1e-12)
	assert.InDelta(t, 1000.0, FromUnits(big.NewInt(1_000_000_000), "USDC"), 1e-9)
	assert.Zero(t, FromUnits(nil, "ETH"))
}

func TestMockProvider(t *testing.T) {
	ctx := context.Background()
	m := NewMockProvider(recipient)

	eth, err := m.Balance(ctx, "ETH")
	require.NoError(t, err)
	assert.InDelta(t, 0.1, FromUnits(eth, "ETH"), 1e-12)

	usdc, _ := m.Balance(ctx, "USDC")
	assert.InDelta(t, 1000.0, FromUnits(usdc, "USDC"), 1e-9)

	link, _ := m.Balance(ctx, "LINK")
	assert.InDelta(t, 500.0, FromUnits(link, "LINK"), 1e-9)

	hash, _ := m.SendTransaction(ctx, recipient, "ETH", 1)
	assert.Equal(t, MockETHHash, hash)
	hash, _ = m.SendTransaction(ctx, recipient, "USDC", 1)
	assert.Equal(t, MockTokenHash, hash)
	hash, _ = m.Pay(ctx, Payment{ServiceID: "api_access", Amount: 1, Token: "USDC", To: recipient})
	assert.Equal(t, MockPaymentHash, hash)
	assert.Len(t, hash, 66)
}

func TestMockOracle(t *testing.T) {
	var o MockOracle
	p, _ := o.Price(context.Background(), "eth")
	assert.Equal(t, 3500.50, p)
	p, _ = o.Price(context.Background(), "DOGE")
	assert.Equal(t, 100.0, p)
}

func TestChainProviderReadOnly(t *testing.T) {
	ctx := context.Background()
	chain := newFakeChain()
	p := NewChainProvider(chain, "base-sepolia", recipient, "not a key", zaptest.NewLogger(t))

	assert.Equal(t, common.HexToAddress(recipient).Hex(), p.Address())

	bal, err := p.Balance(ctx, "ETH")
	require.NoError(t, err)
	assert.Equal(t, chain.balance, bal)

	tok, err := p.Balance(ctx, "USDC")
	require.NoError(t, err)
	assert.Equal(t, int64(42_000_000), tok.Int64())
	require.Len(t, chain.calls, 1)
	assert.Equal(t, TokenContracts["base-sepolia"]["USDC"], *chain.calls[0].To)

	_, err = p.Balance(ctx, "DAI")
	assert.ErrorIs(t, err, ErrUnsupportedAsset)

	_, err = p.SendTransaction(ctx, recipient, "ETH", 0.01)
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestChainProviderSignsTransfers(t *testing.T) {
	ctx := context.Background()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(key.PublicKey)
	secret := common.Bytes2Hex(crypto.FromECDSA(key))

	chain := newFakeChain()
	p := NewChainProvider(chain, "base-sepolia", from.Hex(), secret, zaptest.NewLogger(t))

	hash, err := p.SendTransaction(ctx, recipient, "ETH", 0.5)
	require.NoError(t, err)
	require.Len(t, chain.sent, 1)
	tx := chain.sent[0]
	assert.Equal(t, tx.Hash().Hex(), hash)
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(21000), tx.Gas())
	assert.Equal(t, ToUnits(0.5, "ETH"), tx.Value())

	sender, err := types.Sender(types.LatestSignerForChainID(chain.chainID), tx)
	require.NoError(t, err)
	assert.Equal(t, from, sender)

	_, err = p.Pay(ctx, Payment{ServiceID: "data_feed", Amount: 2, Token: "USDC", To: recipient})
	require.NoError(t, err)
	require.Len(t, chain.sent, 2)
	token := chain.sent[1]
	assert.Equal(t, TokenContracts["base-sepolia"]["USDC"], *token.To())
	assert.Zero(t, token.Value().Sign())
	assert.Equal(t, uint64(60000), token.Gas())

	_, err = p.SendTransaction(ctx, "nowhere", "ETH", 1)
	assert.Error(t, err)
}

func TestChainProviderKeyForAnotherAddress(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	secret := "0x" + common.Bytes2Hex(crypto.FromECDSA(key))

	chain := newFakeChain()
	p := NewChainProvider(chain, "base-sepolia", recipient, secret, zaptest.NewLogger(t))
	assert.Equal(t, common.HexToAddress(recipient).Hex(), p.Address())

	_, err = p.SendTransaction(context.Background(), recipient, "ETH", 0.1)
	assert.ErrorIs(t, err, ErrReadOnly)
	assert.Empty(t, chain.sent)

	addr, ok := KeyAddress(secret)
	require.True(t, ok)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey).Hex(), addr)
	_, ok = KeyAddress("not a key")
	assert.False(t, ok)
}

func TestFactory(t *testing.T) {
	f := NewFactoryWithClient(nil, "base-sepolia", zaptest.NewLogger(t))
	assert.True(t, f.Mock())
	_, ok := f.Open(recipient, "").(*MockProvider)
	assert.True(t, ok)

	f = NewFactoryWithClient(newFakeChain(), "base-sepolia", zaptest.NewLogger(t))
	assert.False(t, f.Mock())
	_, ok = f.Open(recipient, "").(*ChainProvider)
	assert.True(t, ok)
}
