package settlement

import (
	"log"
	"sync"
	"time"

	"tradesim-core/internal/balance"
	"tradesim-core/internal/candles"
	"tradesim-core/internal/events"
	"tradesim-core/internal/ledger"
	"tradesim-core/internal/rank"
	"tradesim-core/pkg/i18n"

	"github.com/google/uuid"
)

const (
	// PayoutFactor is the profit multiple on a winning stake.
	PayoutFactor = 0.9
	// ToastDisplayMs tells the presentation layer how long to show a result.
	ToastDisplayMs = 2000
)

// Record is one settled trade, newest first in the history list.
type Record struct {
	ID           string    `json:"id"`
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

// Settler resolves expired positions: compares the latest close against the
// entry, credits winners, counts wins and appends history. Equality at expiry
// is a loss. A position whose instrument has no price is dropped without
// refund, by design of the escrow model.
type Settler struct {
	mu      sync.Mutex
	store   *candles.Store
	wallet  *balance.Wallet
	ranks   *rank.Tracker
	bus     *events.Bus
	persist func(Record) error
	history []Record
}

// NewSettler wires the settler to its collaborators.
func NewSettler(store *candles.Store, wallet *balance.Wallet, ranks *rank.Tracker, bus *events.Bus) *Settler {
	return &Settler{store: store, wallet: wallet, ranks: ranks, bus: bus}
}

// OnRecord installs a hook invoked for every settled trade, used to persist
// history rows.
func (s *Settler) OnRecord(fn func(Record) error) {
	s.mu.Lock()
	s.persist = fn
	s.mu.Unlock()
}

// RestoreHistory seeds the in-memory history from storage (newest first).
func (s *Settler) RestoreHistory(recs []Record) {
	s.mu.Lock()
	s.history = append([]Record(nil), recs...)
	s.mu.Unlock()
}

// Settle resolves a batch of expired positions against one consistent price
// snapshot.
func (s *Settler) Settle(batch []ledger.Position) {
	if len(batch) == 0 {
		return
	}
	prices := s.store.Snapshot()

	for _, p := range batch {
		close, ok := prices[p.InstrumentID]
		if !ok {
			log.Printf(i18n.M().SettlementNoPrice, p.ID, p.InstrumentID)
			continue
		}
		s.settleOne(p, close)
	}
}

func (s *Settler) settleOne(p ledger.Position, close float64) {
	isWin := p.Direction.Wins(p.EntryPrice, close)

	payout := 0.0
	if isWin {
		payout = p.Stake + p.Stake*PayoutFactor
		s.wallet.Credit(payout)
		s.ranks.RecordWin()
		log.Printf(i18n.M().TradeSettledWin, p.ID, payout, close, p.EntryPrice)
	} else {
		log.Printf(i18n.M().TradeSettledLoss, p.ID, p.Stake, close, p.EntryPrice)
	}

	rec := Record{
		ID:           uuid.NewString(),
		PositionID:   p.ID,
		InstrumentID: p.InstrumentID,
		Direction:    string(p.Direction),
		EntryPrice:   p.EntryPrice,
		ClosePrice:   close,
		Stake:        p.Stake,
		Payout:       payout,
		IsWin:        isWin,
		CreatedAt:    time.Now(),
	}

	s.mu.Lock()
	s.history = append([]Record{rec}, s.history...)
	persist := s.persist
	s.mu.Unlock()

	if persist != nil {
		if err := persist(rec); err != nil {
			log.Printf(i18n.M().HistoryWriteFailed, err)
		}
	}

	if s.bus != nil {
		s.bus.Publish(events.EventTradeSettled, events.TradeSettled{
			PositionID:   p.ID,
			InstrumentID: p.InstrumentID,
			Direction:    string(p.Direction),
			EntryPrice:   p.EntryPrice,
			ClosePrice:   close,
			Stake:        p.Stake,
			Payout:       payout,
			IsWin:        isWin,
			DisplayMs:    ToastDisplayMs,
		})
	}
}

// History returns settled trades, newest first.
func (s *Settler) History() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.history...)
}
