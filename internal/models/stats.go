package models

import "time"

// SessionStats is the monitoring view of the session store.
type SessionStats struct {
	ActiveSessions   int     `json:"active_sessions"`
	ActiveIPs        int     `json:"active_ips"`
	SessionTTL       float64 `json:"session_ttl"`
	MaxSessionsPerIP int     `json:"max_sessions_per_ip"`
}

// ServiceHealth is the status of one dependency on /health/detailed.
type ServiceHealth struct {
	Status string  `json:"status"`
	Error  *string `json:"error"`
}

type DetailedHealth struct {
	Status         string                   `json:"status"`
	Timestamp      time.Time                `json:"timestamp"`
	Mode           string                   `json:"mode"`
	Services       map[string]ServiceHealth `json:"services"`
	Sessions       *SessionStats            `json:"sessions,omitempty"`
	ResponseTimeMS float64                  `json:"response_time_ms"`
}
