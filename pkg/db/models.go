package db

import "time"

// Session is the persisted player state, one row per device-bound identity.
type Session struct {
	ID           string    `json:"id"`
	Balance      float64   `json:"balance"`
	WinCount     int       `json:"win_count"`
	ProMode      bool      `json:"pro_mode"`
	TutorialSeen bool      `json:"tutorial_seen"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HistoryRecord is one settled trade row.
type HistoryRecord struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id"`
	PositionID   string    `json:"position_id"`
	InstrumentID string    `json:"instrument_id"`
	Direction    string    `json:"direction"`
	EntryPrice   float64   `json:"entry_price"`
	ClosePrice   float64   `json:"close_price"`
	Stake        float64   `json:"stake"`
	Payout       float64   `json:"payout"`
	IsWin        bool      `json:"is_win"`
	CreatedAt    time.Time `json:"created_at"`
}
