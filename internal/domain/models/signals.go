package models

import "time"

// SessionState is the orchestrator's position in its loop.
type SessionState string

const (
	StateStopped    SessionState = "STOPPED"
	StateRunning    SessionState = "RUNNING"
	StateScanning   SessionState = "SCANNING"
	StateGenerating SessionState = "GENERATING"
	StateFiltering  SessionState = "FILTERING"
	StateGating     SessionState = "GATING"
	StateNotifying  SessionState = "NOTIFYING"
	StateSleeping   SessionState = "SLEEPING"
)

type BreakerState string

const (
	BreakerClosed   BreakerState = "CLOSED"
	BreakerOpen     BreakerState = "OPEN"
	BreakerHalfOpen BreakerState = "HALF_OPEN"
)

// SessionStatus is a read-only snapshot of the session published after every
// state change. Callers must not mutate ActiveSignals.
type SessionStatus struct {
	Running             bool            `json:"running"`
	State               SessionState    `json:"state"`
	Sentiment           Sentiment       `json:"sentiment"`
	Iteration           int64           `json:"iteration"`
	LastIterationAt     time.Time       `json:"last_iteration_at"`
	LastError           string          `json:"last_error,omitempty"`
	Breaker             BreakerState    `json:"breaker"`
	ConsecutiveFailures int             `json:"consecutive_failures"`
	LastOverview        *MarketOverview `json:"last_overview,omitempty"`
	ActiveSignals       []TradingSignal `json:"-"`
	ActiveSignalCount   int             `json:"active_signal_count"`
	AutoTrading         bool            `json:"auto_trading"`
}

const (
	GroupMajorPairs = "major_pairs"
	GroupAltcoins   = "altcoins"
)

// SymbolEntry is one instrument of the configured catalog. Nil Priority means unset.
type SymbolEntry struct {
	Symbol   string
	Group    string
	Enabled  bool
	Priority *int
}
