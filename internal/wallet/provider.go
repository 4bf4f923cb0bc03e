// Package wallet executes reads and transfers against a user's connected
// wallet, either on chain or against a deterministic mock.
package wallet

import (
	"context"
	"errors"
	"math"
	"math/big"
	"strconv"
	"strings"
)

var (
	// ErrReadOnly is returned when a wallet cannot sign transactions.
	ErrReadOnly = errors.New("wallet is read-only")
	// ErrUnsupportedAsset is returned for tokens without a known contract.
	ErrUnsupportedAsset = errors.New("unsupported asset")
)

// Payment is an x402 service payment.
type Payment struct {
	ServiceID string
	Amount    float64
	Token     string
	To        string
}

// Provider is a connected wallet.
type Provider interface {
	Address() string
	// Balance returns the raw balance in the asset's smallest unit.
	Balance(ctx context.Context, asset string) (*big.Int, error)
	SendTransaction(ctx context.Context, to, asset string, amount float64) (string, error)
	Pay(ctx context.Context, p Payment) (string, error)
}

// Decimals returns the token precision used for unit conversion.
func Decimals(asset string) int {
	switch strings.ToUpper(asset) {
	case "USDC", "USDT":
		return 6
	}
	return 18
}

// ToUnits converts a human amount into the smallest unit of asset. The amount
// is scaled from its shortest decimal form so 0.07 ETH is exactly 7e16 wei;
// digits beyond the token precision are truncated.
func ToUnits(amount float64, asset string) *big.Int {
	r, ok := new(big.Rat).SetString(strconv.FormatFloat(amount, 'f', -1, 64))
	if !ok {
		return new(big.Int)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(Decimals(asset))), nil)
	r.Mul(r, new(big.Rat).SetInt(scale))
	return new(big.Int).Quo(r.Num(), r.Denom())
}

// FromUnits converts a raw balance into a human amount.
func FromUnits(raw *big.Int, asset string) float64 {
	if raw == nil {
		return 0
	}
	f := new(big.Float).SetInt(raw)
	f.Quo(f, new(big.Float).SetFloat64(math.Pow10(Decimals(asset))))
	out, _ := f.Float64()
	return out
}
