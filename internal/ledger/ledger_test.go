package ledger

import (
	"errors"
	"testing"
	"time"

	"tradesim-core/internal/balance"
	"tradesim-core/internal/candles"
	"tradesim-core/internal/events"
)

func newTestLedger(t *testing.T, funds float64) (*Ledger, *balance.Wallet, *candles.Store) {
	t.Helper()
	w := balance.NewWallet(funds)
	s := candles.NewStore()
	l := NewLedger(w, s, events.NewBus())
	return l, w, s
}

func prime(s *candles.Store, instrumentID string, price float64) {
	s.Apply(instrumentID, price, time.Now(), 5*time.Second)
}

func TestOpenEscrowsStake(t *testing.T) {
	l, w, s := newTestLedger(t, 1000)
	prime(s, "EUR/USD", 1.0850)

	p, err := l.Open("EUR/USD", DirectionBuy, 100, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if p.ID == "" || p.EntryPrice != 1.0850 || p.SecondsLeft != ExpirySeconds {
		t.Fatalf("unexpected position: %+v", p)
	}
	if got := w.Balance(); got != 900 {
		t.Fatalf("balance = %v, want 900 (stake escrowed)", got)
	}
	if !l.HasOpen("EUR/USD") || l.CountFor("EUR/USD") != 1 {
		t.Fatal("position not tracked as open")
	}
}

func TestOpenRejections(t *testing.T) {
	l, w, s := newTestLedger(t, 50)
	prime(s, "EUR/USD", 1.0850)

	if _, err := l.Open("EUR/USD", Direction("sideways"), 10, ""); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("bad direction: err = %v", err)
	}
	if _, err := l.Open("EUR/USD", DirectionBuy, 0, ""); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("zero stake: err = %v", err)
	}
	if _, err := l.Open("BTC-USD", DirectionBuy, 10, ""); !errors.Is(err, ErrNoPrice) {
		t.Fatalf("no price: err = %v", err)
	}
	if _, err := l.Open("EUR/USD", DirectionBuy, 60, ""); !errors.Is(err, balance.ErrInsufficientBalance) {
		t.Fatalf("insufficient: err = %v", err)
	}
	if got := w.Balance(); got != 50 {
		t.Fatalf("rejected opens mutated balance: %v", got)
	}
	if l.HasOpen("EUR/USD") {
		t.Fatal("rejected open entered the ledger")
	}
}

func TestTickCountdownAndExpiry(t *testing.T) {
	l, _, s := newTestLedger(t, 1000)
	prime(s, "EUR/USD", 1.0850)

	if _, err := l.Open("EUR/USD", DirectionBuy, 10, ""); err != nil {
		t.Fatalf("Open: %v", err)
	}

	for i := 0; i < ExpirySeconds-1; i++ {
		if expired := l.Tick(); len(expired) != 0 {
			t.Fatalf("position expired early at tick %d", i+1)
		}
	}
	snap := l.Snapshot("EUR/USD")
	if len(snap) != 1 || snap[0].SecondsLeft != 1 {
		t.Fatalf("snapshot before final tick: %+v", snap)
	}

	expired := l.Tick()
	if len(expired) != 1 {
		t.Fatalf("expired = %d positions, want 1", len(expired))
	}
	if l.HasOpen("EUR/USD") {
		t.Fatal("expired position still open")
	}
}

func TestTickReclassifiesLiveState(t *testing.T) {
	l, _, s := newTestLedger(t, 1000)
	start := time.Now()
	s.Apply("EUR/USD", 1.0850, start, 5*time.Second)

	buy, _ := l.Open("EUR/USD", DirectionBuy, 10, "")
	sell, _ := l.Open("EUR/USD", DirectionSell, 10, "")
	if buy.LiveState != LiveStateUnset || sell.LiveState != LiveStateUnset {
		t.Fatalf("states at open: %v / %v, want unset", buy.LiveState, sell.LiveState)
	}

	s.Apply("EUR/USD", 1.0900, start.Add(time.Second), 5*time.Second)
	l.Tick()
	snap := l.Snapshot("EUR/USD")
	if snap[0].LiveState != LiveStateProfit || snap[1].LiveState != LiveStateLoss {
		t.Fatalf("states after rise: %v / %v", snap[0].LiveState, snap[1].LiveState)
	}

	s.Apply("EUR/USD", 1.0800, start.Add(2*time.Second), 5*time.Second)
	l.Tick()
	snap = l.Snapshot("EUR/USD")
	if snap[0].LiveState != LiveStateLoss || snap[1].LiveState != LiveStateProfit {
		t.Fatalf("states after fall: %v / %v", snap[0].LiveState, snap[1].LiveState)
	}

	// Back at the entry price: equality never classifies as profit.
	s.Apply("EUR/USD", 1.0850, start.Add(3*time.Second), 5*time.Second)
	l.Tick()
	for _, p := range l.Snapshot("EUR/USD") {
		if p.LiveState != LiveStateLoss {
			t.Fatalf("equality classified as %v for %s", p.LiveState, p.Direction)
		}
	}
}

func TestTickExpiresBatchInAdmissionOrder(t *testing.T) {
	l, _, s := newTestLedger(t, 1000)
	prime(s, "EUR/USD", 1.0850)

	first, _ := l.Open("EUR/USD", DirectionBuy, 10, "")
	second, _ := l.Open("EUR/USD", DirectionSell, 20, "")

	var expired []Position
	for i := 0; i < ExpirySeconds; i++ {
		expired = append(expired, l.Tick()...)
	}
	if len(expired) != 2 {
		t.Fatalf("expired = %d positions, want 2", len(expired))
	}
	if expired[0].ID != first.ID || expired[1].ID != second.ID {
		t.Fatal("expiry order does not match admission order")
	}
}

func TestSnapshotFilter(t *testing.T) {
	l, _, s := newTestLedger(t, 1000)
	prime(s, "EUR/USD", 1.0850)
	prime(s, "BTC-USD", 65000)

	l.Open("EUR/USD", DirectionBuy, 10, "")
	l.Open("BTC-USD", DirectionSell, 10, "")

	if got := len(l.Snapshot("")); got != 2 {
		t.Fatalf("unfiltered snapshot = %d, want 2", got)
	}
	snap := l.Snapshot("BTC-USD")
	if len(snap) != 1 || snap[0].InstrumentID != "BTC-USD" {
		t.Fatalf("filtered snapshot: %+v", snap)
	}
}
