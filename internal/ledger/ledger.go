package ledger

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"tradesim-core/internal/balance"
	"tradesim-core/internal/candles"
	"tradesim-core/internal/events"
	"tradesim-core/pkg/i18n"

	"github.com/google/uuid"
)

// Direction of a binary position.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// Wins reports whether this direction profits at price compared to entry.
// Equality never wins.
func (d Direction) Wins(entry, price float64) bool {
	if d == DirectionBuy {
		return price > entry
	}
	return price < entry
}

// LiveState classifies an open position against the current price. It is
// recomputed on every countdown tick and is presentation state only; the
// settlement outcome is decided at expiry.
type LiveState string

const (
	LiveStateUnset  LiveState = "unset"
	LiveStateProfit LiveState = "profit"
	LiveStateLoss   LiveState = "loss"
)

// ExpirySeconds is the fixed horizon of every position.
const ExpirySeconds = 30

var (
	// ErrNoPrice rejects an open when the instrument has no series yet.
	ErrNoPrice = errors.New("no price available")
	// ErrInvalidOrder rejects malformed direction or non-positive stake.
	ErrInvalidOrder = errors.New("invalid order")
)

// Position is one open binary bet.
type Position struct {
	ID           string    `json:"id"`
	InstrumentID string    `json:"instrument_id"`
	Direction    Direction `json:"direction"`
	EntryPrice   float64   `json:"entry_price"`
	Stake        float64   `json:"stake"`
	SignalID     string    `json:"signal_id,omitempty"`
	LiveState    LiveState `json:"live_state"`
	OpenedAt     time.Time `json:"opened_at"`
	SecondsLeft  int       `json:"seconds_left"`
}

// Ledger owns the open positions. Stakes are escrowed in the wallet at open;
// the engine tick drives the countdown and hands expired positions to
// settlement.
type Ledger struct {
	mu     sync.Mutex
	wallet *balance.Wallet
	store  *candles.Store
	bus    *events.Bus
	open   []*Position
}

// NewLedger wires the ledger to the wallet, the candle store and the bus.
func NewLedger(wallet *balance.Wallet, store *candles.Store, bus *events.Bus) *Ledger {
	return &Ledger{wallet: wallet, store: store, bus: bus}
}

// Open validates, escrows the stake and admits a position at the latest price.
// signalID is empty for manual trades.
func (l *Ledger) Open(instrumentID string, dir Direction, stake float64, signalID string) (Position, error) {
	if dir != DirectionBuy && dir != DirectionSell {
		return Position{}, fmt.Errorf("%w: direction %q", ErrInvalidOrder, dir)
	}
	if stake <= 0 {
		return Position{}, fmt.Errorf("%w: stake %.2f", ErrInvalidOrder, stake)
	}

	price, ok := l.store.LatestPrice(instrumentID)
	if !ok {
		log.Printf(i18n.M().TradeRejected, instrumentID, ErrNoPrice)
		return Position{}, ErrNoPrice
	}

	if err := l.wallet.Debit(stake); err != nil {
		log.Printf(i18n.M().TradeRejected, instrumentID, err)
		return Position{}, err
	}

	p := &Position{
		ID:           uuid.NewString(),
		InstrumentID: instrumentID,
		Direction:    dir,
		EntryPrice:   price,
		Stake:        stake,
		SignalID:     signalID,
		LiveState:    LiveStateUnset,
		OpenedAt:     time.Now(),
		SecondsLeft:  ExpirySeconds,
	}

	l.mu.Lock()
	l.open = append(l.open, p)
	l.mu.Unlock()

	log.Printf(i18n.M().TradeOpened, instrumentID, dir, stake, price)
	if l.bus != nil {
		l.bus.Publish(events.EventTradeOpened, events.TradeOpened{
			PositionID:   p.ID,
			InstrumentID: p.InstrumentID,
			Direction:    string(p.Direction),
			EntryPrice:   p.EntryPrice,
			Stake:        p.Stake,
		})
	}
	return *p, nil
}

// Tick decrements every countdown by one second, reclassifies each position
// against one consistent price snapshot and removes positions that reached
// zero, returning them for settlement in admission order.
func (l *Ledger) Tick() []Position {
	prices := l.store.Snapshot()

	l.mu.Lock()
	defer l.mu.Unlock()

	var expired []Position
	remaining := l.open[:0]
	for _, p := range l.open {
		p.SecondsLeft--
		if price, ok := prices[p.InstrumentID]; ok {
			if p.Direction.Wins(p.EntryPrice, price) {
				p.LiveState = LiveStateProfit
			} else {
				p.LiveState = LiveStateLoss
			}
		}
		if p.SecondsLeft <= 0 {
			expired = append(expired, *p)
			continue
		}
		remaining = append(remaining, p)
	}
	l.open = remaining
	return expired
}

// Snapshot returns open positions, optionally filtered to one instrument.
func (l *Ledger) Snapshot(instrumentID string) []Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Position, 0, len(l.open))
	for _, p := range l.open {
		if instrumentID != "" && p.InstrumentID != instrumentID {
			continue
		}
		out = append(out, *p)
	}
	return out
}

// HasOpen reports whether the instrument has any open position.
func (l *Ledger) HasOpen(instrumentID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.open {
		if p.InstrumentID == instrumentID {
			return true
		}
	}
	return false
}

// CountFor returns the number of open positions on an instrument.
func (l *Ledger) CountFor(instrumentID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, p := range l.open {
		if p.InstrumentID == instrumentID {
			n++
		}
	}
	return n
}
