package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Ananth-NQI/defi-assistant-backend/internal/models"
)

// ErrNotFound is returned when a key or record does not exist.
var ErrNotFound = errors.New("not found")

// Store is the key/value cache holding chat sessions and other short lived
// state. Values are opaque bytes; every write carries its own TTL.
type Store interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Keys lists keys matching a glob pattern such as "chat_session:*".
	Keys(ctx context.Context, pattern string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// WalletRepository persists wallet connections.
type WalletRepository interface {
	SaveWallet(ctx context.Context, wallet *models.WalletConnection) error
	GetWallet(ctx context.Context, userID string) (*models.WalletConnection, error)
	DeleteWallet(ctx context.Context, userID string) error
	Ping(ctx context.Context) error
}
