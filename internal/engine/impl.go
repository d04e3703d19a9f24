package engine

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"tradesim-core/internal/advisor"
	"tradesim-core/internal/balance"
	"tradesim-core/internal/candles"
	"tradesim-core/internal/events"
	"tradesim-core/internal/ledger"
	"tradesim-core/internal/market"
	"tradesim-core/internal/monitor"
	"tradesim-core/internal/rank"
	"tradesim-core/internal/settlement"
	"tradesim-core/pkg/db"
	"tradesim-core/pkg/i18n"
	"tradesim-core/pkg/instruments"
)

var _ Service = (*Impl)(nil)

const (
	tradeTickInterval  = time.Second
	priceTickInterval  = 5 * time.Second
	signalTickInterval = 30 * time.Second
)

// Impl implements Service by composing the sim components. One goroutine
// owns all three tickers; user actions synchronize through component mutexes.
type Impl struct {
	store   *candles.Store
	feed    *market.Feed
	wallet  *balance.Wallet
	book    *ledger.Ledger
	settler *settlement.Settler
	ranks   *rank.Tracker
	advisor *advisor.Advisor
	bus     *events.Bus
	catalog *instruments.Catalog
	metrics *monitor.SystemMetrics
	queries *db.Queries

	sessionID string
	meta      SystemStatus

	mu           sync.Mutex
	activeID     string
	openIDs      []string
	tradeCounts  map[string]int
	biased       map[string]bool
	tutorialSeen bool
	proMode      bool

	runCtx context.Context
}

// Config holds the collaborators for creating an engine implementation.
type Config struct {
	Store   *candles.Store
	Feed    *market.Feed
	Wallet  *balance.Wallet
	Book    *ledger.Ledger
	Settler *settlement.Settler
	Ranks   *rank.Tracker
	Advisor *advisor.Advisor
	Bus     *events.Bus
	Catalog *instruments.Catalog
	Metrics *monitor.SystemMetrics
	Queries *db.Queries

	SessionID string
	Meta      SystemStatus
}

// NewImpl creates the engine and wires the persistence hooks.
func NewImpl(cfg Config) *Impl {
	e := &Impl{
		store:       cfg.Store,
		feed:        cfg.Feed,
		wallet:      cfg.Wallet,
		book:        cfg.Book,
		settler:     cfg.Settler,
		ranks:       cfg.Ranks,
		advisor:     cfg.Advisor,
		bus:         cfg.Bus,
		catalog:     cfg.Catalog,
		metrics:     cfg.Metrics,
		queries:     cfg.Queries,
		sessionID:   cfg.SessionID,
		meta:        cfg.Meta,
		tradeCounts: make(map[string]int),
		biased:      make(map[string]bool),
		runCtx:      context.Background(),
	}

	if e.queries != nil {
		e.wallet.OnChange(func(b float64) {
			t := monitor.NewTimer(e.metrics.DBLatency)
			defer t.Stop()
			if err := e.queries.UpdateBalance(context.Background(), e.sessionID, b); err != nil {
				log.Printf(i18n.M().BalancePersistError, err)
				e.metrics.IncrementErrors()
			}
		})
		e.settler.OnRecord(func(rec settlement.Record) error {
			t := monitor.NewTimer(e.metrics.DBLatency)
			defer t.Stop()
			ctx := context.Background()
			if rec.IsWin {
				if err := e.queries.UpdateWinCount(ctx, e.sessionID, e.ranks.WinCount()); err != nil {
					return err
				}
			}
			return e.queries.InsertHistory(ctx, db.HistoryRecord{
				ID:           rec.ID,
				SessionID:    e.sessionID,
				PositionID:   rec.PositionID,
				InstrumentID: rec.InstrumentID,
				Direction:    rec.Direction,
				EntryPrice:   rec.EntryPrice,
				ClosePrice:   rec.ClosePrice,
				Stake:        rec.Stake,
				Payout:       rec.Payout,
				IsWin:        rec.IsWin,
				CreatedAt:    rec.CreatedAt,
			})
		})
	}
	return e
}

// Restore loads persisted session state into the live components. Call before
// Start.
func (e *Impl) Restore(s db.Session, history []db.HistoryRecord) {
	e.wallet.SetInitial(s.Balance)
	e.ranks.Restore(s.WinCount)
	e.advisor.SetProMode(s.ProMode)

	e.mu.Lock()
	e.proMode = s.ProMode
	e.tutorialSeen = s.TutorialSeen
	e.mu.Unlock()

	recs := make([]settlement.Record, 0, len(history))
	for _, h := range history {
		recs = append(recs, settlement.Record{
			ID:           h.ID,
			PositionID:   h.PositionID,
			InstrumentID: h.InstrumentID,
			Direction:    h.Direction,
			EntryPrice:   h.EntryPrice,
			ClosePrice:   h.ClosePrice,
			Stake:        h.Stake,
			Payout:       h.Payout,
			IsWin:        h.IsWin,
			CreatedAt:    h.CreatedAt,
		})
	}
	e.settler.RestoreHistory(recs)
	log.Printf(i18n.M().SessionLoaded, e.sessionID, s.Balance, s.WinCount)
}

// Start opens the initial instrument tabs and launches the run loop.
func (e *Impl) Start(ctx context.Context, openInstruments []string, active string) {
	e.runCtx = ctx
	for _, id := range openInstruments {
		if err := e.OpenInstrument(ctx, id); err != nil {
			log.Printf(i18n.M().InstrumentUnknown, id)
		}
	}
	if active != "" {
		if err := e.ActivateInstrument(ctx, active); err != nil {
			log.Printf(i18n.M().InstrumentUnknown, active)
		}
	}
	go e.run(ctx)
}

func (e *Impl) run(ctx context.Context) {
	tradeTick := time.NewTicker(tradeTickInterval)
	priceTick := time.NewTicker(priceTickInterval)
	signalTick := time.NewTicker(signalTickInterval)
	defer tradeTick.Stop()
	defer priceTick.Stop()
	defer signalTick.Stop()

	log.Println(i18n.M().EngineStarted)
	for {
		select {
		case <-ctx.Done():
			log.Println(i18n.M().EngineStopped)
			return
		case <-tradeTick.C:
			e.onTradeTick(time.Now())
		case <-priceTick.C:
			e.onPriceTick(time.Now())
		case <-signalTick.C:
			e.onSignalTick(time.Now())
		}
	}
}

// onTradeTick runs the countdown pass, then settles the expired batch against
// one price snapshot, then releases biases with no surviving positions.
func (e *Impl) onTradeTick(now time.Time) {
	t := monitor.NewTimer(e.metrics.TradeTickLatency)
	defer t.Stop()
	e.metrics.IncrementTicks()

	expired := e.book.Tick()
	if len(expired) > 0 {
		st := monitor.NewTimer(e.metrics.SettlementLatency)
		e.settler.Settle(expired)
		st.Stop()
		e.metrics.IncrementTradesSettled(len(expired))
	}

	e.advisor.ExpireTick(now)

	e.mu.Lock()
	var clear []string
	for id := range e.biased {
		if !e.book.HasOpen(id) {
			clear = append(clear, id)
			delete(e.biased, id)
		}
	}
	e.mu.Unlock()
	for _, id := range clear {
		e.feed.ClearBias(id)
	}
}

func (e *Impl) onPriceTick(now time.Time) {
	t := monitor.NewTimer(e.metrics.PriceTickLatency)
	defer t.Stop()

	e.mu.Lock()
	open := append([]string(nil), e.openIDs...)
	active := e.activeID
	e.mu.Unlock()

	e.feed.Refresh(open, active, now)
}

func (e *Impl) onSignalTick(now time.Time) {
	e.mu.Lock()
	active := e.activeID
	e.mu.Unlock()

	if _, ok := e.advisor.MaybeGenerate(active, now); ok {
		e.metrics.IncrementSignals()
	}
}

// --- Trading ---

func (e *Impl) OpenPosition(ctx context.Context, instrumentID string, dir ledger.Direction, stake float64) (ledger.Position, error) {
	if _, ok := e.catalog.Get(instrumentID); !ok {
		return ledger.Position{}, instruments.ErrUnknownInstrument
	}
	pos, err := e.book.Open(instrumentID, dir, stake, "")
	if err != nil {
		e.metrics.IncrementErrors()
		return ledger.Position{}, err
	}
	e.metrics.IncrementTradesOpened()
	e.mu.Lock()
	e.tradeCounts[instrumentID]++
	e.mu.Unlock()
	return pos, nil
}

func (e *Impl) Positions(instrumentID string) []ledger.Position {
	return e.book.Snapshot(instrumentID)
}

func (e *Impl) History(limit int) []settlement.Record {
	hist := e.settler.History()
	if limit > 0 && len(hist) > limit {
		hist = hist[:limit]
	}
	return hist
}

// --- Player ---

func (e *Impl) Player() PlayerStatus {
	rs := e.ranks.Status()
	e.mu.Lock()
	pro := e.proMode
	seen := e.tutorialSeen
	e.mu.Unlock()

	return PlayerStatus{
		SessionID:    e.sessionID,
		Balance:      e.wallet.Balance(),
		WinCount:     rs.WinCount,
		Rank:         rs.Rank,
		NextRank:     rs.NextRank,
		WinsToNext:   rs.WinsToNext,
		Progress:     rs.Progress,
		ProMode:      pro,
		TutorialSeen: seen,
	}
}

func (e *Impl) SetProMode(ctx context.Context, enabled bool) error {
	e.advisor.SetProMode(enabled)
	e.mu.Lock()
	e.proMode = enabled
	e.mu.Unlock()

	if e.queries != nil {
		if err := e.queries.SetProMode(ctx, e.sessionID, enabled); err != nil {
			e.metrics.IncrementErrors()
			return err
		}
	}
	return nil
}

func (e *Impl) MarkTutorialSeen(ctx context.Context) error {
	e.mu.Lock()
	e.tutorialSeen = true
	e.mu.Unlock()

	if e.queries != nil {
		if err := e.queries.SetTutorialSeen(ctx, e.sessionID); err != nil {
			e.metrics.IncrementErrors()
			return err
		}
	}
	return nil
}

// --- Signals ---

func (e *Impl) Signals() []advisor.Signal {
	return e.advisor.Recent()
}

func (e *Impl) FollowSignal(ctx context.Context, id string) (ledger.Position, error) {
	e.mu.Lock()
	active := e.activeID
	e.mu.Unlock()

	pos, sig, err := e.advisor.Follow(id, active, time.Now())
	if err != nil {
		e.metrics.IncrementErrors()
		return ledger.Position{}, err
	}

	e.metrics.IncrementTradesOpened()
	e.feed.ArmBias(sig.InstrumentID, sig.Direction == ledger.DirectionBuy)
	e.mu.Lock()
	e.biased[sig.InstrumentID] = true
	e.tradeCounts[sig.InstrumentID]++
	e.mu.Unlock()
	return pos, nil
}

func (e *Impl) IgnoreSignal(ctx context.Context, id string) error {
	if _, err := e.advisor.Ignore(id, time.Now()); err != nil {
		e.metrics.IncrementErrors()
		return err
	}
	return nil
}

// --- Instruments ---

func (e *Impl) Instruments() []instruments.Instrument {
	return e.catalog.All()
}

func (e *Impl) Candles(instrumentID string, limit int) ([]candles.Candle, error) {
	if _, ok := e.catalog.Get(instrumentID); !ok {
		return nil, instruments.ErrUnknownInstrument
	}
	if limit <= 0 {
		limit = candles.MaxSeriesLen
	}
	return e.store.Series(instrumentID, limit), nil
}

func (e *Impl) OpenInstrument(ctx context.Context, id string) error {
	if err := e.feed.Open(e.runCtx, id); err != nil {
		return err
	}

	e.mu.Lock()
	found := false
	for _, open := range e.openIDs {
		if open == id {
			found = true
			break
		}
	}
	if !found {
		e.openIDs = append(e.openIDs, id)
	}
	if e.activeID == "" {
		e.activeID = id
	}
	e.mu.Unlock()

	log.Printf(i18n.M().InstrumentOpened, id)
	e.publishInstrumentState()
	return nil
}

// CloseInstrument removes a tab. Open positions on it keep ticking and settle
// in background; only the fetch context dies.
func (e *Impl) CloseInstrument(ctx context.Context, id string) error {
	e.mu.Lock()
	idx := -1
	for i, open := range e.openIDs {
		if open == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		e.mu.Unlock()
		return instruments.ErrUnknownInstrument
	}
	e.openIDs = append(e.openIDs[:idx], e.openIDs[idx+1:]...)
	if e.activeID == id {
		e.activeID = ""
		if len(e.openIDs) > 0 {
			e.activeID = e.openIDs[0]
		}
	}
	delete(e.biased, id)
	e.mu.Unlock()

	e.feed.Close(id)
	log.Printf(i18n.M().InstrumentClosed, id)
	e.publishInstrumentState()
	return nil
}

// ActivateInstrument switches focus, opening the tab first if needed.
func (e *Impl) ActivateInstrument(ctx context.Context, id string) error {
	if !e.feed.IsOpen(id) {
		if err := e.OpenInstrument(ctx, id); err != nil {
			return err
		}
	}

	e.mu.Lock()
	e.activeID = id
	e.mu.Unlock()

	log.Printf(i18n.M().InstrumentActive, id)
	e.publishInstrumentState()
	return nil
}

func (e *Impl) Tabs() []Tab {
	e.mu.Lock()
	defer e.mu.Unlock()

	tabs := make([]Tab, 0, len(e.openIDs))
	for _, id := range e.openIDs {
		tabs = append(tabs, Tab{
			InstrumentID: id,
			TradeCount:   e.tradeCounts[id],
			Active:       id == e.activeID,
		})
	}
	return tabs
}

func (e *Impl) publishInstrumentState() {
	if e.bus == nil {
		return
	}
	e.mu.Lock()
	state := events.InstrumentChanged{
		ActiveInstrument: e.activeID,
		OpenInstruments:  append([]string(nil), e.openIDs...),
	}
	e.mu.Unlock()
	e.bus.Publish(events.EventInstrument, state)
}

// --- System ---

func (e *Impl) GetSystemStatus() SystemStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	status := e.meta
	status.ActiveInstrument = e.activeID
	status.OpenInstruments = append([]string(nil), e.openIDs...)
	sort.Strings(status.OpenInstruments)
	return status
}

func (e *Impl) Metrics() monitor.MetricsSnapshot {
	return e.metrics.GetSnapshot()
}
