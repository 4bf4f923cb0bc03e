package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

const erc20ABI = `[
{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"}
]`

var erc20 = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		panic(err)
	}
	return parsed
}()

// TokenContracts maps networks to ERC-20 contract addresses.
var TokenContracts = map[string]map[string]common.Address{
	"base-sepolia": {
		"USDC": common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e"),
	},
	"base-mainnet": {
		"USDC": common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
	},
}

// ChainClient is the part of ethclient.Client the provider uses.
type ChainClient interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

var _ ChainClient = (*ethclient.Client)(nil)

// ChainProvider reads balances over JSON-RPC and signs transfers when the
// stored wallet secret is a raw hex private key.
type ChainProvider struct {
	client  ChainClient
	network string
	address common.Address
	key     *ecdsa.PrivateKey
	log     *zap.Logger
}

// NewChainProvider builds a provider for address. A secret that does not
// parse as a private key, or whose key belongs to another address, leaves the
// wallet read-only.
func NewChainProvider(client ChainClient, network, address, secret string, log *zap.Logger) *ChainProvider {
	p := &ChainProvider{client: client, network: network, address: common.HexToAddress(address), log: log}
	key, err := parseKey(secret)
	if err != nil {
		return p
	}
	if derived := crypto.PubkeyToAddress(key.PublicKey); derived != p.address {
		log.Warn("wallet key does not match connected address, signing disabled",
			zap.String("connected", p.address.Hex()),
			zap.String("derived", derived.Hex()))
		return p
	}
	p.key = key
	return p
}

// KeyAddress returns the address owned by secret when it is a hex private key.
func KeyAddress(secret string) (string, bool) {
	key, err := parseKey(secret)
	if err != nil {
		return "", false
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), true
}

func parseKey(secret string) (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(secret), "0x"))
}

func (p *ChainProvider) Address() string { return p.address.Hex() }

func (p *ChainProvider) Balance(ctx context.Context, asset string) (*big.Int, error) {
	if asset == "" || strings.EqualFold(asset, "ETH") {
		return p.client.BalanceAt(ctx, p.address, nil)
	}
	token, err := p.contract(asset)
	if err != nil {
		return nil, err
	}
	data, err := erc20.Pack("balanceOf", p.address)
	if err != nil {
		return nil, err
	}
	out, err := p.client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("balanceOf: %w", err)
	}
	values, err := erc20.Unpack("balanceOf", out)
	if err != nil || len(values) == 0 {
		return nil, fmt.Errorf("decode balanceOf: %v", err)
	}
	bal, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("decode balanceOf: unexpected %T", values[0])
	}
	return bal, nil
}

func (p *ChainProvider) SendTransaction(ctx context.Context, to, asset string, amount float64) (string, error) {
	if p.key == nil {
		return "", ErrReadOnly
	}
	if !common.IsHexAddress(to) {
		return "", fmt.Errorf("invalid recipient %q", to)
	}
	recipient := common.HexToAddress(to)
	value := ToUnits(amount, asset)

	if asset == "" || strings.EqualFold(asset, "ETH") {
		return p.send(ctx, recipient, value, nil)
	}
	token, err := p.contract(asset)
	if err != nil {
		return "", err
	}
	data, err := erc20.Pack("transfer", recipient, value)
	if err != nil {
		return "", err
	}
	return p.send(ctx, token, big.NewInt(0), data)
}

func (p *ChainProvider) Pay(ctx context.Context, pay Payment) (string, error) {
	return p.SendTransaction(ctx, pay.To, pay.Token, pay.Amount)
}

func (p *ChainProvider) send(ctx context.Context, to common.Address, value *big.Int, data []byte) (string, error) {
	nonce, err := p.client.PendingNonceAt(ctx, p.address)
	if err != nil {
		return "", fmt.Errorf("nonce: %w", err)
	}
	gasPrice, err := p.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("gas price: %w", err)
	}
	gas := uint64(21000)
	if len(data) > 0 {
		if gas, err = p.client.EstimateGas(ctx, ethereum.CallMsg{From: p.address, To: &to, Data: data}); err != nil {
			return "", fmt.Errorf("estimate gas: %w", err)
		}
	}
	chainID, err := p.client.ChainID(ctx)
	if err != nil {
		return "", fmt.Errorf("chain id: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), p.key)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	if err := p.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send: %w", err)
	}
	p.log.Info("transaction sent", zap.String("hash", signed.Hash().Hex()), zap.String("to", to.Hex()))
	return signed.Hash().Hex(), nil
}

func (p *ChainProvider) contract(asset string) (common.Address, error) {
	addr, ok := TokenContracts[p.network][strings.ToUpper(asset)]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s on %s", ErrUnsupportedAsset, asset, p.network)
	}
	return addr, nil
}
