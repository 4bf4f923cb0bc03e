package wallet

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// Factory turns a stored wallet connection into a Provider.
type Factory struct {
	client  ChainClient
	network string
	log     *zap.Logger
}

// NewFactory dials rpcURL. An empty URL yields a factory of mock wallets.
func NewFactory(ctx context.Context, rpcURL, network string, log *zap.Logger) (*Factory, error) {
	f := &Factory{network: network, log: log.Named("wallet")}
	if rpcURL == "" {
		f.log.Info("no RPC endpoint configured, using mock wallets")
		return f, nil
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", network, err)
	}
	f.client = client
	return f, nil
}

// NewFactoryWithClient is used when the chain client is built elsewhere.
func NewFactoryWithClient(client ChainClient, network string, log *zap.Logger) *Factory {
	return &Factory{client: client, network: network, log: log.Named("wallet")}
}

// Mock reports whether providers are simulated.
func (f *Factory) Mock() bool { return f.client == nil }

// Open returns the provider for a wallet. secret is the decrypted wallet data.
func (f *Factory) Open(address, secret string) Provider {
	if f.client == nil {
		return NewMockProvider(address)
	}
	return NewChainProvider(f.client, f.network, address, secret, f.log)
}

func (f *Factory) Close() {
	if c, ok := f.client.(*ethclient.Client); ok {
		c.Close()
	}
}
