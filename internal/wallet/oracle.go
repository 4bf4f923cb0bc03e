package wallet

import (
	"context"
	"strings"
)

// PriceOracle quotes USD prices by token symbol.
type PriceOracle interface {
	Price(ctx context.Context, symbol string) (float64, error)
}

var mockPrices = map[string]float64{
	"ETH":  3500.50,
	"BTC":  65000.25,
	"USDC": 1.00,
	"USDT": 0.999,
	"LINK": 25.75,
}

// MockOracle returns fixed prices, 100 for unknown symbols.
type MockOracle struct{}

func (MockOracle) Price(_ context.Context, symbol string) (float64, error) {
	if p, ok := mockPrices[strings.ToUpper(symbol)]; ok {
		return p, nil
	}
	return 100, nil
}
