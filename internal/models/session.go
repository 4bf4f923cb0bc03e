package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ConversationTurn is a single query/response exchange.
type ConversationTurn struct {
	Query      string     `json:"query"`
	Response   string     `json:"response"`
	Intent     IntentType `json:"intent"`
	Timestamp  time.Time  `json:"timestamp"`
	Confidence *float64   `json:"confidence,omitempty"`
	Source     string     `json:"source,omitempty"`
}

// SessionClient records where a session was opened from.
type SessionClient struct {
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent,omitempty"`
	LastActivity time.Time `json:"last_activity"`
}

// SessionData is the cached state of one chat session.
type SessionData struct {
	SessionID           string             `json:"session_id"`
	UserID              string             `json:"user_id"`
	LastQuery           string             `json:"last_query,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
	LastUpdated         time.Time          `json:"last_updated"`
	ExpiresAt           time.Time          `json:"expires_at"`
	ConversationHistory []ConversationTurn `json:"conversation_history"`
	ActionDetails       ActionDetails      `json:"action_details"`
	ReadyNotified       bool               `json:"ready_notified,omitempty"`
	Client              SessionClient      `json:"client"`
	Metadata            map[string]any     `json:"metadata,omitempty"`
}

// AddTurn appends a turn and keeps at most limit turns.
func (s *SessionData) AddTurn(turn ConversationTurn, limit int) {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}
	s.ConversationHistory = append(s.ConversationHistory, turn)
	s.LastQuery = turn.Query
	s.LastUpdated = turn.Timestamp
	if limit > 0 && len(s.ConversationHistory) > limit {
		s.ConversationHistory = s.ConversationHistory[len(s.ConversationHistory)-limit:]
	}
}

var followUpPattern = regexp.MustCompile(`\b(what about|how about|and|also|but|however|what if|can you|tell me more|explain|clarify|elaborate|that|this|it|they|those|these)\b`)

// IsFollowUp reports whether query reads like it depends on earlier turns.
func IsFollowUp(query string) bool {
	return followUpPattern.MatchString(strings.ToLower(query))
}

const smartContextRunes = 100

// SmartContext returns a short reminder of the previous exchange when the
// current query is a follow-up and that exchange happened within window.
func (s *SessionData) SmartContext(query string, now time.Time, window time.Duration) string {
	if len(s.ConversationHistory) == 0 || !IsFollowUp(query) {
		return ""
	}
	last := s.ConversationHistory[len(s.ConversationHistory)-1]
	if now.Sub(last.Timestamp) >= window {
		return ""
	}
	resp := last.Response
	if r := []rune(resp); len(r) > smartContextRunes {
		resp = string(r[:smartContextRunes])
	}
	return fmt.Sprintf("Previous: User asked '%s' and I answered '%s...'", last.Query, resp)
}

// RecentQueries returns up to n of the latest user queries, oldest first.
func (s *SessionData) RecentQueries(n int) []string {
	start := len(s.ConversationHistory) - n
	if start < 0 {
		start = 0
	}
	out := make([]string, 0, len(s.ConversationHistory)-start)
	for _, t := range s.ConversationHistory[start:] {
		out = append(out, t.Query)
	}
	return out
}
