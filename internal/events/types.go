package events

import "time"

// Event enumerates high-level topics inside the sim core.
type Event string

const (
	EventPriceTick     Event = "price_tick"
	EventTradeOpened   Event = "trade.opened"
	EventTradeSettled  Event = "trade.settled"
	EventRankUp        Event = "rank.up"
	EventSignalCreated Event = "signal.created"
	EventSignalUpdated Event = "signal.updated"
	EventInstrument    Event = "instrument.changed"
)

// PriceUpdate is published on every price sample applied to the candle store.
type PriceUpdate struct {
	InstrumentID string  `json:"instrument_id"`
	Price        float64 `json:"price"`
	Time         int64   `json:"time"`
	Synthetic    bool    `json:"synthetic"`
}

// TradeOpened is published when a position enters the ledger.
type TradeOpened struct {
	PositionID   string  `json:"position_id"`
	InstrumentID string  `json:"instrument_id"`
	Direction    string  `json:"direction"`
	EntryPrice   float64 `json:"entry_price"`
	Stake        float64 `json:"stake"`
}

// TradeSettled carries the outcome of a resolved position. The presentation
// layer shows Payout as a transient toast; DisplayMs tells it for how long.
type TradeSettled struct {
	PositionID   string  `json:"position_id"`
	InstrumentID string  `json:"instrument_id"`
	Direction    string  `json:"direction"`
	EntryPrice   float64 `json:"entry_price"`
	ClosePrice   float64 `json:"close_price"`
	Stake        float64 `json:"stake"`
	Payout       float64 `json:"payout"`
	IsWin        bool    `json:"is_win"`
	DisplayMs    int     `json:"display_ms"`
}

// RankUp is published once per newly attained tier.
type RankUp struct {
	Rank       string    `json:"rank"`
	NextRank   string    `json:"next_rank,omitempty"`
	WinsToNext int       `json:"wins_to_next,omitempty"`
	WinCount   int       `json:"win_count"`
	AttainedAt time.Time `json:"attained_at"`
}

// InstrumentChanged is published when the active instrument or the set of
// open tabs changes.
type InstrumentChanged struct {
	ActiveInstrument string   `json:"active_instrument"`
	OpenInstruments  []string `json:"open_instruments"`
}
