package storage

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/Ananth-NQI/defi-assistant-backend/internal/models"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore keeps everything in process memory. Used in demo mode and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// SetClock overrides the time source.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.entries[key]
	if !exists || entry.expired(m.now()) {
		return nil, ErrNotFound
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.entries[key] = entry
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func (m *MemoryStore) Keys(_ context.Context, pattern string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	var keys []string
	for k, entry := range m.entries {
		if entry.expired(now) {
			continue
		}
		ok, err := path.Match(pattern, k)
		if err != nil {
			return nil, err
		}
		if ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

// Sweep drops expired entries and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for k, entry := range m.entries {
		if entry.expired(now) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed
}

// MemoryWalletRepository holds wallet connections in memory.
type MemoryWalletRepository struct {
	mu      sync.RWMutex
	wallets map[string]*models.WalletConnection
}

func NewMemoryWalletRepository() *MemoryWalletRepository {
	return &MemoryWalletRepository{wallets: make(map[string]*models.WalletConnection)}
}

func (r *MemoryWalletRepository) SaveWallet(_ context.Context, wallet *models.WalletConnection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := r.wallets[wallet.UserID]; ok {
		wallet.ID = existing.ID
		wallet.CreatedAt = existing.CreatedAt
	} else if wallet.CreatedAt.IsZero() {
		wallet.CreatedAt = now
	}
	wallet.UpdatedAt = now

	stored := *wallet
	r.wallets[wallet.UserID] = &stored
	return nil
}

func (r *MemoryWalletRepository) GetWallet(_ context.Context, userID string) (*models.WalletConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.wallets[userID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *w
	return &out, nil
}

func (r *MemoryWalletRepository) DeleteWallet(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.wallets[userID]; !ok {
		return ErrNotFound
	}
	delete(r.wallets, userID)
	return nil
}

func (r *MemoryWalletRepository) Ping(context.Context) error { return nil }
