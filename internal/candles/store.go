// Package candles owns the authoritative per-instrument OHLC history. Series
// are append-only with a sliding-window cap; sub-timeframe samples mutate the
// in-progress candle instead of appending, which is what makes the live bar
// move between bucket boundaries.
package candles

import (
	"fmt"
	"sync"
	"time"
)

// MaxSeriesLen caps every series; the oldest candles are evicted first.
const MaxSeriesLen = 500

// Candle is one OHLC bar. JSON field names match the chart wire shape.
type Candle struct {
	Time  int64   `json:"x"` // bucket start, ms epoch
	Open  float64 `json:"o"`
	High  float64 `json:"h"`
	Low   float64 `json:"l"`
	Close float64 `json:"c"`
}

// Timeframes supported by the chart toolbar.
var Timeframes = map[string]time.Duration{
	"5s":  5 * time.Second,
	"30s": 30 * time.Second,
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
}

// ParseTimeframe resolves a toolbar label into a bucket duration.
func ParseTimeframe(label string) (time.Duration, error) {
	if d, ok := Timeframes[label]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("unknown timeframe %q", label)
}

// Store holds one capped series per instrument.
type Store struct {
	mu     sync.RWMutex
	series map[string][]Candle
	cap    int
}

// NewStore creates a store with the default cap.
func NewStore() *Store {
	return &Store{series: make(map[string][]Candle), cap: MaxSeriesLen}
}

// NewStoreWithCap creates a store with a custom cap (tests).
func NewStoreWithCap(cap int) *Store {
	if cap <= 0 {
		cap = MaxSeriesLen
	}
	return &Store{series: make(map[string][]Candle), cap: cap}
}

// Initialize replaces the series wholesale, e.g. after a full market-data
// refresh. An empty seed keeps the prior state so the caller can fall back to
// synthetic generation.
func (s *Store) Initialize(instrumentID string, seed []Candle) {
	if len(seed) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]Candle, len(seed))
	copy(cp, seed)
	if len(cp) > s.cap {
		cp = cp[len(cp)-s.cap:]
	}
	s.series[instrumentID] = cp
}

// Apply folds a price sample into the series. Samples younger than the
// timeframe widen the in-progress candle; older samples start a new bucket
// with open = previous close. A sample against an empty series starts the
// first candle with all four fields at the sample price.
func (s *Store) Apply(instrumentID string, price float64, at time.Time, timeframe time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := at.UnixMilli()
	series := s.series[instrumentID]
	if len(series) == 0 {
		s.series[instrumentID] = []Candle{{Time: ts, Open: price, High: price, Low: price, Close: price}}
		return
	}

	last := &series[len(series)-1]
	if ts-last.Time >= timeframe.Milliseconds() {
		next := Candle{Time: ts, Open: last.Close, High: price, Low: price, Close: price}
		if next.Open > next.High {
			next.High = next.Open
		}
		if next.Open < next.Low {
			next.Low = next.Open
		}
		series = append(series, next)
		if len(series) > s.cap {
			series = series[len(series)-s.cap:]
		}
		s.series[instrumentID] = series
		return
	}

	if price > last.High {
		last.High = price
	}
	if price < last.Low {
		last.Low = price
	}
	last.Close = price
}

// LatestPrice returns the close of the last candle, or false when no series
// exists yet.
func (s *Store) LatestPrice(instrumentID string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	series := s.series[instrumentID]
	if len(series) == 0 {
		return 0, false
	}
	return series[len(series)-1].Close, true
}

// Series returns up to n most recent candles (all of them when n <= 0).
func (s *Store) Series(instrumentID string, n int) []Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	series := s.series[instrumentID]
	if n <= 0 || n > len(series) {
		n = len(series)
	}
	out := make([]Candle, n)
	copy(out, series[len(series)-n:])
	return out
}

// Len reports the current series length.
func (s *Store) Len(instrumentID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.series[instrumentID])
}

// Drop removes an instrument's series entirely.
func (s *Store) Drop(instrumentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.series, instrumentID)
}

// Snapshot returns the latest close for every instrument that has one. The
// ledger uses it so all positions see the same prices within one tick.
func (s *Store) Snapshot() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64, len(s.series))
	for id, series := range s.series {
		if len(series) > 0 {
			out[id] = series[len(series)-1].Close
		}
	}
	return out
}
