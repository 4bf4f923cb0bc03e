package wallet

import (
	"context"
	"math/big"
	"strings"
)

// Fixed hashes returned by MockProvider.
var (
	MockETHHash     = "0x" + strings.Repeat("a", 64)
	MockTokenHash   = "0x" + strings.Repeat("b", 64)
	MockPaymentHash = "0x" + strings.Repeat("c", 64)
)

// MockProvider holds 0.1 ETH, 1000 USDC and 500 of any other token.
type MockProvider struct {
	address string
}

func NewMockProvider(address string) *MockProvider {
	return &MockProvider{address: address}
}

func (m *MockProvider) Address() string { return m.address }

func (m *MockProvider) Balance(_ context.Context, asset string) (*big.Int, error) {
	switch strings.ToUpper(asset) {
	case "", "ETH":
		return big.NewInt(100_000_000_000_000_000), nil
	case "USDC":
		return big.NewInt(1_000_000_000), nil
	}
	v, _ := new(big.Int).SetString("500000000000000000000", 10)
	return v, nil
}

func (m *MockProvider) SendTransaction(_ context.Context, _, asset string, _ float64) (string, error) {
	if asset == "" || strings.EqualFold(asset, "ETH") {
		return MockETHHash, nil
	}
	return MockTokenHash, nil
}

func (m *MockProvider) Pay(context.Context, Payment) (string, error) {
	return MockPaymentHash, nil
}
