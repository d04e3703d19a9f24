// Package engine exposes the sim core behind one interface. The API layer
// interacts with the engine only through Service; all timers live in the
// engine's single run loop.
package engine

import (
	"context"
	"time"

	"tradesim-core/internal/advisor"
	"tradesim-core/internal/candles"
	"tradesim-core/internal/ledger"
	"tradesim-core/internal/monitor"
	"tradesim-core/internal/settlement"
	"tradesim-core/pkg/instruments"
)

// Service defines the operations the API layer may invoke.
type Service interface {
	// Trading
	OpenPosition(ctx context.Context, instrumentID string, dir ledger.Direction, stake float64) (ledger.Position, error)
	Positions(instrumentID string) []ledger.Position
	History(limit int) []settlement.Record

	// Player
	Player() PlayerStatus
	SetProMode(ctx context.Context, enabled bool) error
	MarkTutorialSeen(ctx context.Context) error

	// Signals
	Signals() []advisor.Signal
	FollowSignal(ctx context.Context, id string) (ledger.Position, error)
	IgnoreSignal(ctx context.Context, id string) error

	// Instruments
	Instruments() []instruments.Instrument
	Candles(instrumentID string, limit int) ([]candles.Candle, error)
	OpenInstrument(ctx context.Context, id string) error
	CloseInstrument(ctx context.Context, id string) error
	ActivateInstrument(ctx context.Context, id string) error
	Tabs() []Tab

	// System
	GetSystemStatus() SystemStatus
	Metrics() monitor.MetricsSnapshot
}

// PlayerStatus is the aggregate player view.
type PlayerStatus struct {
	SessionID    string  `json:"session_id"`
	Balance      float64 `json:"balance"`
	WinCount     int     `json:"win_count"`
	Rank         string  `json:"rank"`
	NextRank     string  `json:"next_rank,omitempty"`
	WinsToNext   int     `json:"wins_to_next,omitempty"`
	Progress     float64 `json:"progress"`
	ProMode      bool    `json:"pro_mode"`
	TutorialSeen bool    `json:"tutorial_seen"`
}

// Tab is one open instrument tab.
type Tab struct {
	InstrumentID string `json:"instrument_id"`
	TradeCount   int    `json:"trade_count"`
	Active       bool   `json:"active"`
}

// SystemStatus describes the running engine.
type SystemStatus struct {
	Version          string    `json:"version"`
	StartedAt        time.Time `json:"started_at"`
	ActiveInstrument string    `json:"active_instrument"`
	OpenInstruments  []string  `json:"open_instruments"`
	SyntheticFeed    bool      `json:"synthetic_feed"`
	Language         string    `json:"language"`
}
