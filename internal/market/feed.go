package market

import (
	"context"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"tradesim-core/internal/candles"
	"tradesim-core/internal/events"
	"tradesim-core/pkg/i18n"
	"tradesim-core/pkg/instruments"
	"tradesim-core/pkg/marketdata"
)

const (
	seedLen        = 200
	seedVolatility = 0.0005
	tickVolatility = 0.00015
	biasShift      = 0.05
)

// Feed keeps one price series alive per open instrument. The active
// instrument is refreshed from the market-data client; every other open
// instrument (and any fetch failure) advances on a synthetic random walk.
type Feed struct {
	Store     *candles.Store
	Bus       *events.Bus
	Client    *marketdata.Client
	Catalog   *instruments.Catalog
	Timeframe time.Duration

	mu      sync.Mutex
	bias    map[string]float64
	fetches map[string]fetchHandle
	rng     *rand.Rand
}

type fetchHandle struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewFeed builds a feed over store and bus. client may be nil, which forces
// synthetic mode for every instrument.
func NewFeed(store *candles.Store, bus *events.Bus, client *marketdata.Client, catalog *instruments.Catalog, timeframe time.Duration) *Feed {
	if timeframe <= 0 {
		timeframe = 5 * time.Second
	}
	return &Feed{
		Store:     store,
		Bus:       bus,
		Client:    client,
		Catalog:   catalog,
		Timeframe: timeframe,
		bias:      make(map[string]float64),
		fetches:   make(map[string]fetchHandle),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Open registers an instrument tab: derives its fetch context from parent and
// seeds its series (market data first, synthetic fallback).
func (f *Feed) Open(parent context.Context, instrumentID string) error {
	inst, ok := f.Catalog.Get(instrumentID)
	if !ok {
		return instruments.ErrUnknownInstrument
	}

	f.mu.Lock()
	if _, exists := f.fetches[instrumentID]; exists {
		f.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(parent)
	f.fetches[instrumentID] = fetchHandle{ctx: ctx, cancel: cancel}
	f.mu.Unlock()

	f.seed(ctx, inst)
	log.Printf(i18n.M().FeedStarted, instrumentID)
	return nil
}

// Close cancels the instrument's fetch context and drops its bias. The candle
// series stays in the store so background positions can still settle.
func (f *Feed) Close(instrumentID string) {
	f.mu.Lock()
	h, ok := f.fetches[instrumentID]
	if ok {
		delete(f.fetches, instrumentID)
	}
	delete(f.bias, instrumentID)
	f.mu.Unlock()

	if ok {
		h.cancel()
		log.Printf(i18n.M().FeedStopped, instrumentID)
	}
}

// IsOpen reports whether the instrument has a live fetch context.
func (f *Feed) IsOpen(instrumentID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.fetches[instrumentID]
	return ok
}

// Refresh advances every open instrument one sample: the active one from the
// market-data client when available, the rest synthetically.
func (f *Feed) Refresh(openIDs []string, activeID string, at time.Time) {
	for _, id := range openIDs {
		if id == activeID && f.Client != nil {
			f.refreshFromMarket(id, at)
			continue
		}
		f.Step(id, at)
	}
}

func (f *Feed) refreshFromMarket(instrumentID string, at time.Time) {
	inst, ok := f.Catalog.Get(instrumentID)
	if !ok {
		return
	}
	f.mu.Lock()
	h, live := f.fetches[instrumentID]
	f.mu.Unlock()
	if !live {
		return
	}

	go func() {
		c, err := f.Client.Latest(h.ctx, inst)
		if err != nil {
			if h.ctx.Err() != nil {
				return
			}
			log.Printf(i18n.M().MarketFetchFailed, instrumentID, err)
			f.Step(instrumentID, at)
			return
		}
		f.apply(instrumentID, c.Close, time.UnixMilli(c.Time), false)
	}()
}

// Step advances an instrument one synthetic tick: uniform movement in
// [-0.5,0.5) shifted by any armed bias, scaled by price and tick volatility.
func (f *Feed) Step(instrumentID string, at time.Time) {
	f.mu.Lock()
	bias := f.bias[instrumentID]
	move := f.rng.Float64() - 0.5 + bias
	f.mu.Unlock()

	price, ok := f.Store.LatestPrice(instrumentID)
	if !ok {
		inst, found := f.Catalog.Get(instrumentID)
		if !found {
			return
		}
		price = inst.BasePrice
	}
	next := price + move*price*tickVolatility
	f.apply(instrumentID, next, at, true)
}

func (f *Feed) apply(instrumentID string, price float64, at time.Time, synthetic bool) {
	f.Store.Apply(instrumentID, price, at, f.Timeframe)
	if f.Bus != nil {
		f.Bus.Publish(events.EventPriceTick, events.PriceUpdate{
			InstrumentID: instrumentID,
			Price:        price,
			Time:         at.UnixMilli(),
			Synthetic:    synthetic,
		})
	}
}

// ArmBias shifts the synthetic walk of an instrument toward the given
// direction while a followed signal has positions open on it.
func (f *Feed) ArmBias(instrumentID string, buy bool) {
	shift := biasShift
	dir := "buy"
	if !buy {
		shift = -biasShift
		dir = "sell"
	}
	f.mu.Lock()
	f.bias[instrumentID] = shift
	f.mu.Unlock()
	log.Printf(i18n.M().BiasArmed, instrumentID, dir)
}

// ClearBias removes any armed bias for the instrument.
func (f *Feed) ClearBias(instrumentID string) {
	f.mu.Lock()
	_, had := f.bias[instrumentID]
	delete(f.bias, instrumentID)
	f.mu.Unlock()
	if had {
		log.Printf(i18n.M().BiasCleared, instrumentID)
	}
}

func (f *Feed) seed(ctx context.Context, inst instruments.Instrument) {
	if f.Store.Len(inst.ID) > 0 {
		return
	}
	if f.Client != nil {
		hist, err := f.Client.Aggregates(ctx, inst)
		if err == nil {
			f.Store.Initialize(inst.ID, hist)
			log.Printf(i18n.M().SeriesSeeded, inst.ID, len(hist))
			return
		}
		if ctx.Err() != nil {
			return
		}
		log.Printf(i18n.M().MarketFetchFailed, inst.ID, err)
	}
	f.Store.Initialize(inst.ID, f.syntheticSeed(inst))
	log.Printf(i18n.M().SyntheticSeed, inst.ID, seedLen)
}

// syntheticSeed random-walks seedLen candles back-to-front from the
// instrument's base price, timestamps bucket-aligned to the timeframe.
func (f *Feed) syntheticSeed(inst instruments.Instrument) []candles.Candle {
	tf := f.Timeframe.Milliseconds()
	start := time.Now().Add(-time.Duration(seedLen) * f.Timeframe).UnixMilli()
	start -= start % tf

	f.mu.Lock()
	defer f.mu.Unlock()

	price := inst.BasePrice
	out := make([]candles.Candle, 0, seedLen)
	for i := 0; i < seedLen; i++ {
		open := price
		close := price + (f.rng.Float64()-0.5)*price*seedVolatility
		high := math.Max(open, close) + f.rng.Float64()*price*seedVolatility/2
		low := math.Min(open, close) - f.rng.Float64()*price*seedVolatility/2
		out = append(out, candles.Candle{
			Time:  start + int64(i)*tf,
			Open:  open,
			High:  high,
			Low:   low,
			Close: close,
		})
		price = close
	}
	return out
}
