package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/defi-assistant-backend/internal/config"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/logging"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/models"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/storage"
	"github.com/Ananth-NQI/defi-assistant-backend/internal/utils"
)

// ErrSessionNotFound is returned for unknown, expired or unreadable sessions.
var ErrSessionNotFound = errors.New("session not found")

const (
	sessionKeyPrefix = "chat_session:"
	ipKeyPrefix      = "ip_sessions:"
)

func sessionKey(id string) string { return sessionKeyPrefix + id }
func ipKey(ip string) string      { return ipKeyPrefix + ip }

// ipSession is one entry of the per-IP tracking list.
type ipSession struct {
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// SessionManager creates, loads and expires chat sessions held in the cache
// store, and caps how many sessions a single client IP may hold.
type SessionManager struct {
	store storage.Store
	cfg   config.SessionConfig
	log   *zap.Logger
	now   func() time.Time

	// serialises read-modify-write of IP tracking lists
	mu sync.Mutex
}

func NewSessionManager(store storage.Store, cfg config.SessionConfig, log *zap.Logger) *SessionManager {
	return &SessionManager{
		store: store,
		cfg:   cfg,
		log:   log.Named("sessions"),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create opens a new session for a client. When the client IP already holds
// the maximum number of sessions, expired ones are dropped first and then the
// oldest is evicted.
func (sm *SessionManager) Create(ctx context.Context, ip, userAgent, userID string, metadata map[string]any) (*models.SessionData, error) {
	now := sm.now()
	id, err := utils.GenerateSessionID(now)
	if err != nil {
		return nil, err
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	list, err := sm.loadIPList(ctx, ip)
	if err != nil {
		return nil, err
	}
	if len(list) >= sm.cfg.MaxPerIP {
		list = sm.dropExpired(ctx, list, now)
		for len(list) >= sm.cfg.MaxPerIP {
			oldest := list[0]
			list = list[1:]
			sm.log.Warn("session limit reached, evicting oldest",
				zap.String("ip", ip),
				zap.String("session", logging.Truncate(oldest.SessionID, 20)))
			if err := sm.store.Delete(ctx, sessionKey(oldest.SessionID)); err != nil {
				return nil, fmt.Errorf("evict session: %w", err)
			}
		}
	}

	if userID == "" {
		userID = id
	}
	session := &models.SessionData{
		SessionID:           id,
		UserID:              userID,
		CreatedAt:           now,
		LastUpdated:         now,
		ExpiresAt:           now.Add(sm.cfg.TTL),
		ConversationHistory: []models.ConversationTurn{},
		Client: models.SessionClient{
			IPAddress:    ip,
			UserAgent:    userAgent,
			LastActivity: now,
		},
		Metadata: metadata,
	}
	if err := sm.save(ctx, session); err != nil {
		return nil, err
	}

	list = append(list, ipSession{SessionID: id, CreatedAt: now, LastActivity: now})
	if err := sm.saveIPList(ctx, ip, list); err != nil {
		return nil, err
	}

	sm.log.Info("session created", zap.String("ip", ip), zap.String("session", logging.Truncate(id, 20)))
	return session, nil
}

// Get loads a session. Sessions idle for longer than the TTL and entries that
// cannot be decoded are deleted and reported as ErrSessionNotFound.
func (sm *SessionManager) Get(ctx context.Context, id string) (*models.SessionData, error) {
	if id == "" {
		return nil, ErrSessionNotFound
	}
	raw, err := sm.store.Get(ctx, sessionKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var session models.SessionData
	if err := json.Unmarshal(raw, &session); err != nil {
		sm.log.Error("corrupt session data", zap.String("session", logging.Truncate(id, 20)), zap.Error(err))
		_ = sm.Delete(ctx, id)
		return nil, ErrSessionNotFound
	}
	if sm.now().Sub(session.LastUpdated) > sm.cfg.TTL {
		sm.log.Info("session expired", zap.String("session", logging.Truncate(id, 20)))
		_ = sm.Delete(ctx, id)
		return nil, ErrSessionNotFound
	}
	session.SessionID = id
	return &session, nil
}

// GetOrCreate loads id when given, otherwise opens a fresh session. The bool
// reports whether a session was created.
func (sm *SessionManager) GetOrCreate(ctx context.Context, id, ip, userAgent string) (*models.SessionData, bool, error) {
	if id != "" {
		s, err := sm.Get(ctx, id)
		return s, false, err
	}
	s, err := sm.Create(ctx, ip, userAgent, "", nil)
	return s, err == nil, err
}

// Update stores the session and refreshes its TTL and IP activity.
func (sm *SessionManager) Update(ctx context.Context, session *models.SessionData) error {
	now := sm.now()
	session.LastUpdated = now
	session.ExpiresAt = now.Add(sm.cfg.TTL)
	session.Client.LastActivity = now
	if err := sm.save(ctx, session); err != nil {
		return err
	}

	ip := session.Client.IPAddress
	if ip == "" {
		return nil
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	list, err := sm.loadIPList(ctx, ip)
	if err != nil || len(list) == 0 {
		return err
	}
	for i := range list {
		if list[i].SessionID == session.SessionID {
			list[i].LastActivity = now
			break
		}
	}
	return sm.saveIPList(ctx, ip, list)
}

// Delete removes a session and its IP tracking entry. Deleting an unknown
// session returns ErrSessionNotFound.
func (sm *SessionManager) Delete(ctx context.Context, id string) error {
	raw, err := sm.store.Get(ctx, sessionKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	var session models.SessionData
	if json.Unmarshal(raw, &session) == nil && session.Client.IPAddress != "" {
		if err := sm.untrack(ctx, session.Client.IPAddress, id); err != nil {
			sm.log.Warn("failed to update ip tracking", zap.Error(err))
		}
	}
	if err := sm.store.Delete(ctx, sessionKey(id)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	sm.log.Info("session deleted", zap.String("session", logging.Truncate(id, 20)))
	return nil
}

// Stats counts live session and IP tracking keys.
func (sm *SessionManager) Stats(ctx context.Context) (models.SessionStats, error) {
	sessions, err := sm.store.Keys(ctx, sessionKeyPrefix+"*")
	if err != nil {
		return models.SessionStats{}, err
	}
	ips, err := sm.store.Keys(ctx, ipKeyPrefix+"*")
	if err != nil {
		return models.SessionStats{}, err
	}
	return models.SessionStats{
		ActiveSessions:   len(sessions),
		ActiveIPs:        len(ips),
		SessionTTL:       sm.cfg.TTL.Seconds(),
		MaxSessionsPerIP: sm.cfg.MaxPerIP,
	}, nil
}

// PruneIPTracking removes tracking entries whose session no longer exists and
// returns how many were dropped.
func (sm *SessionManager) PruneIPTracking(ctx context.Context) (int, error) {
	keys, err := sm.store.Keys(ctx, ipKeyPrefix+"*")
	if err != nil {
		return 0, err
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	pruned := 0
	for _, key := range keys {
		ip := key[len(ipKeyPrefix):]
		list, err := sm.loadIPList(ctx, ip)
		if err != nil {
			return pruned, err
		}
		kept := list[:0]
		for _, entry := range list {
			if _, err := sm.store.Get(ctx, sessionKey(entry.SessionID)); errors.Is(err, storage.ErrNotFound) {
				pruned++
				continue
			}
			kept = append(kept, entry)
		}
		if err := sm.saveIPList(ctx, ip, kept); err != nil {
			return pruned, err
		}
	}
	return pruned, nil
}

func (sm *SessionManager) save(ctx context.Context, session *models.SessionData) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := sm.store.Set(ctx, sessionKey(session.SessionID), raw, sm.cfg.TTL); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (sm *SessionManager) loadIPList(ctx context.Context, ip string) ([]ipSession, error) {
	raw, err := sm.store.Get(ctx, ipKey(ip))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load ip sessions: %w", err)
	}
	var list []ipSession
	if err := json.Unmarshal(raw, &list); err != nil {
		sm.log.Warn("discarding unreadable ip tracking", zap.String("ip", ip), zap.Error(err))
		return nil, nil
	}
	return list, nil
}

func (sm *SessionManager) saveIPList(ctx context.Context, ip string, list []ipSession) error {
	if len(list) == 0 {
		return sm.store.Delete(ctx, ipKey(ip))
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return sm.store.Set(ctx, ipKey(ip), raw, sm.cfg.TTL)
}

func (sm *SessionManager) dropExpired(ctx context.Context, list []ipSession, now time.Time) []ipSession {
	active := make([]ipSession, 0, len(list))
	for _, entry := range list {
		if now.Sub(entry.LastActivity) < sm.cfg.TTL {
			active = append(active, entry)
			continue
		}
		_ = sm.store.Delete(ctx, sessionKey(entry.SessionID))
	}
	return active
}

func (sm *SessionManager) untrack(ctx context.Context, ip, id string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	list, err := sm.loadIPList(ctx, ip)
	if err != nil {
		return err
	}
	kept := list[:0]
	for _, entry := range list {
		if entry.SessionID != id {
			kept = append(kept, entry)
		}
	}
	return sm.saveIPList(ctx, ip, kept)
}
