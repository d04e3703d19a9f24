package candles

import (
	"testing"
	"time"
)

func TestInitializeEmptySeedKeepsPriorState(t *testing.T) {
	s := NewStore()
	s.Initialize("EUR/USD", []Candle{{Time: 1000, Open: 1, High: 1, Low: 1, Close: 1}})
	s.Initialize("EUR/USD", nil)

	if got := s.Len("EUR/USD"); got != 1 {
		t.Fatalf("Len=%d, expected prior series to survive empty seed", got)
	}
}

func TestApplyMutatesWithinTimeframe(t *testing.T) {
	s := NewStore()
	start := time.UnixMilli(10_000)
	s.Apply("EUR/USD", 1.0850, start, 5*time.Second)
	s.Apply("EUR/USD", 1.0860, start.Add(2*time.Second), 5*time.Second)
	s.Apply("EUR/USD", 1.0840, start.Add(4*time.Second), 5*time.Second)

	if got := s.Len("EUR/USD"); got != 1 {
		t.Fatalf("Len=%d, expected sub-timeframe samples to mutate in place", got)
	}
	series := s.Series("EUR/USD", 0)
	last := series[0]
	if last.High != 1.0860 {
		t.Fatalf("High=%v, expected 1.0860", last.High)
	}
	if last.Low != 1.0840 {
		t.Fatalf("Low=%v, expected 1.0840", last.Low)
	}
	if last.Close != 1.0840 {
		t.Fatalf("Close=%v, expected 1.0840", last.Close)
	}
}

func TestApplyAppendsAfterTimeframe(t *testing.T) {
	s := NewStore()
	start := time.UnixMilli(10_000)
	s.Apply("EUR/USD", 1.0850, start, 5*time.Second)
	s.Apply("EUR/USD", 1.0870, start.Add(5*time.Second), 5*time.Second)

	if got := s.Len("EUR/USD"); got != 2 {
		t.Fatalf("Len=%d, expected a new bucket after the timeframe elapsed", got)
	}
	series := s.Series("EUR/USD", 0)
	if series[1].Open != series[0].Close {
		t.Fatalf("new open=%v, expected prior close %v", series[1].Open, series[0].Close)
	}
	if series[1].High < series[1].Open || series[1].High < series[1].Close {
		t.Fatalf("high %v below open/close", series[1].High)
	}
	if series[1].Low > series[1].Open || series[1].Low > series[1].Close {
		t.Fatalf("low %v above open/close", series[1].Low)
	}
}

func TestEvictionPreservesOrderAndCap(t *testing.T) {
	s := NewStoreWithCap(5)
	start := time.UnixMilli(0)
	for i := 0; i < 12; i++ {
		s.Apply("BTC-USD", 65000+float64(i), start.Add(time.Duration(i)*5*time.Second), 5*time.Second)
	}

	if got := s.Len("BTC-USD"); got != 5 {
		t.Fatalf("Len=%d, expected cap 5", got)
	}
	series := s.Series("BTC-USD", 0)
	for i := 1; i < len(series); i++ {
		if series[i].Time <= series[i-1].Time {
			t.Fatalf("timestamps not strictly increasing at %d: %d <= %d", i, series[i].Time, series[i-1].Time)
		}
	}
	if series[len(series)-1].Close != 65011 {
		t.Fatalf("latest close=%v, expected newest sample to survive eviction", series[len(series)-1].Close)
	}
}

func TestInitializeTruncatesToCap(t *testing.T) {
	s := NewStoreWithCap(3)
	seed := make([]Candle, 10)
	for i := range seed {
		seed[i] = Candle{Time: int64(i * 1000), Open: 1, High: 1, Low: 1, Close: float64(i)}
	}
	s.Initialize("EUR/USD", seed)

	if got := s.Len("EUR/USD"); got != 3 {
		t.Fatalf("Len=%d, expected 3", got)
	}
	if price, ok := s.LatestPrice("EUR/USD"); !ok || price != 9 {
		t.Fatalf("LatestPrice=%v ok=%v, expected most recent seed candle", price, ok)
	}
}

func TestLatestPriceUnavailable(t *testing.T) {
	s := NewStore()
	if _, ok := s.LatestPrice("GBP/USD"); ok {
		t.Fatal("expected no price for unseeded instrument")
	}
}

func TestSnapshotOnePricePerInstrument(t *testing.T) {
	s := NewStore()
	now := time.UnixMilli(50_000)
	s.Apply("EUR/USD", 1.08, now, 5*time.Second)
	s.Apply("BTC-USD", 65000, now, 5*time.Second)

	snap := s.Snapshot()
	if len(snap) != 2 || snap["EUR/USD"] != 1.08 || snap["BTC-USD"] != 65000 {
		t.Fatalf("Snapshot=%v, expected both latest closes", snap)
	}
}
