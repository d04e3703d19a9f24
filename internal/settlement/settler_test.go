package settlement

import (
	"errors"
	"testing"
	"time"

	"tradesim-core/internal/balance"
	"tradesim-core/internal/candles"
	"tradesim-core/internal/events"
	"tradesim-core/internal/ledger"
	"tradesim-core/internal/rank"
)

type fixture struct {
	settler *Settler
	wallet  *balance.Wallet
	store   *candles.Store
	ranks   *rank.Tracker
	bus     *events.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bus := events.NewBus()
	f := &fixture{
		wallet: balance.NewWallet(1000),
		store:  candles.NewStore(),
		ranks:  rank.NewTracker(bus),
		bus:    bus,
	}
	f.settler = NewSettler(f.store, f.wallet, f.ranks, bus)
	return f
}

func (f *fixture) price(instrumentID string, p float64) {
	f.store.Apply(instrumentID, p, time.Now(), 5*time.Second)
}

func position(instrumentID string, dir ledger.Direction, entry, stake float64) ledger.Position {
	return ledger.Position{
		ID:           "pos-" + instrumentID + "-" + string(dir),
		InstrumentID: instrumentID,
		Direction:    dir,
		EntryPrice:   entry,
		Stake:        stake,
	}
}

func TestWinCreditsStakePlusProfit(t *testing.T) {
	f := newFixture(t)
	f.price("EUR/USD", 1.0900)

	f.settler.Settle([]ledger.Position{position("EUR/USD", ledger.DirectionBuy, 1.0850, 100)})

	// Stake was escrowed at open, so a win credits stake + 90 profit.
	if got := f.wallet.Balance(); got != 1190 {
		t.Fatalf("balance = %v, want 1190", got)
	}
	if got := f.ranks.WinCount(); got != 1 {
		t.Fatalf("win count = %d, want 1", got)
	}
	hist := f.settler.History()
	if len(hist) != 1 || !hist[0].IsWin || hist[0].Payout != 190 {
		t.Fatalf("history: %+v", hist)
	}
}

func TestLossCreditsNothing(t *testing.T) {
	f := newFixture(t)
	f.price("EUR/USD", 1.0800)

	f.settler.Settle([]ledger.Position{position("EUR/USD", ledger.DirectionBuy, 1.0850, 100)})

	if got := f.wallet.Balance(); got != 1000 {
		t.Fatalf("balance = %v, want 1000 (escrow kept)", got)
	}
	if got := f.ranks.WinCount(); got != 0 {
		t.Fatalf("win count = %d, want 0", got)
	}
	hist := f.settler.History()
	if len(hist) != 1 || hist[0].IsWin || hist[0].Payout != 0 {
		t.Fatalf("history: %+v", hist)
	}
}

func TestTieIsALoss(t *testing.T) {
	f := newFixture(t)
	f.price("EUR/USD", 1.0850)

	f.settler.Settle([]ledger.Position{
		position("EUR/USD", ledger.DirectionBuy, 1.0850, 50),
		position("EUR/USD", ledger.DirectionSell, 1.0850, 50),
	})

	if got := f.wallet.Balance(); got != 1000 {
		t.Fatalf("balance = %v, want 1000", got)
	}
	for _, rec := range f.settler.History() {
		if rec.IsWin {
			t.Fatalf("tie settled as win: %+v", rec)
		}
	}
}

func TestSellDirectionWins(t *testing.T) {
	f := newFixture(t)
	f.price("BTC-USD", 64000)

	f.settler.Settle([]ledger.Position{position("BTC-USD", ledger.DirectionSell, 65000, 10)})

	if got := f.wallet.Balance(); got != 1019 {
		t.Fatalf("balance = %v, want 1019", got)
	}
}

func TestNoPriceDropsWithoutRefund(t *testing.T) {
	f := newFixture(t)

	f.settler.Settle([]ledger.Position{position("EUR/USD", ledger.DirectionBuy, 1.0850, 100)})

	if got := f.wallet.Balance(); got != 1000 {
		t.Fatalf("balance = %v, want 1000 (no refund)", got)
	}
	if got := len(f.settler.History()); got != 0 {
		t.Fatalf("dropped settlement wrote history: %d records", got)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	f := newFixture(t)
	f.price("EUR/USD", 1.0900)

	f.settler.Settle([]ledger.Position{position("EUR/USD", ledger.DirectionBuy, 1.0850, 10)})
	f.settler.Settle([]ledger.Position{position("EUR/USD", ledger.DirectionSell, 1.0850, 20)})

	hist := f.settler.History()
	if len(hist) != 2 {
		t.Fatalf("history length = %d, want 2", len(hist))
	}
	if hist[0].Stake != 20 || hist[1].Stake != 10 {
		t.Fatal("history is not newest first")
	}
}

func TestSettledEventCarriesToast(t *testing.T) {
	f := newFixture(t)
	f.price("EUR/USD", 1.0900)

	ch, unsub := f.bus.Subscribe(events.EventTradeSettled, 1)
	defer unsub()

	f.settler.Settle([]ledger.Position{position("EUR/USD", ledger.DirectionBuy, 1.0850, 100)})

	select {
	case msg := <-ch:
		ev := msg.(events.TradeSettled)
		if !ev.IsWin || ev.Payout != 190 || ev.DisplayMs != ToastDisplayMs {
			t.Fatalf("settled event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no settled event")
	}
}

func TestPersistHookFailureKeepsHistory(t *testing.T) {
	f := newFixture(t)
	f.price("EUR/USD", 1.0900)

	f.settler.OnRecord(func(Record) error { return errors.New("disk full") })
	f.settler.Settle([]ledger.Position{position("EUR/USD", ledger.DirectionBuy, 1.0850, 10)})

	if got := len(f.settler.History()); got != 1 {
		t.Fatalf("history length = %d, want 1", got)
	}
}
