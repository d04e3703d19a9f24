package advisor

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"tradesim-core/internal/balance"
	"tradesim-core/internal/events"
	"tradesim-core/internal/ledger"
	"tradesim-core/pkg/i18n"

	"github.com/google/uuid"
)

// State of a signal. Active signals can be followed or ignored until TTL.
type State string

const (
	StateActive   State = "active"
	StateFollowed State = "followed"
	StateIgnored  State = "ignored"
	StateExpired  State = "expired"
)

const (
	// TTL is how long a signal stays actionable.
	TTL = 15 * time.Second
	// RecentCap bounds the recent-signals list.
	RecentCap = 5

	minStakePct    = 10
	maxStakePct    = 20
	proMinStakePct = 20
	proMaxStakePct = 40
)

// ErrInvalidSignalAction rejects follow/ignore on missing, already decided or
// expired signals, and follow on a non-active instrument.
var ErrInvalidSignalAction = errors.New("invalid signal action")

// Signal is one generated trade suggestion.
type Signal struct {
	ID           string           `json:"id"`
	InstrumentID string           `json:"instrument_id"`
	Direction    ledger.Direction `json:"direction"`
	StakePct     int              `json:"stake_pct"`
	StakeAmount  float64          `json:"stake_amount"`
	State        State            `json:"state"`
	CreatedAt    time.Time        `json:"created_at"`
	ExpiresAt    time.Time        `json:"expires_at"`
}

// Advisor generates and arbitrates trade signals. Following routes through
// the same ledger path as a manual trade.
type Advisor struct {
	mu      sync.Mutex
	bus     *events.Bus
	book    *ledger.Ledger
	wallet  *balance.Wallet
	rng     *rand.Rand
	proMode bool
	recent  []*Signal
}

// NewAdvisor wires the advisor to the ledger, wallet and bus.
func NewAdvisor(book *ledger.Ledger, wallet *balance.Wallet, bus *events.Bus) *Advisor {
	return &Advisor{
		bus:    bus,
		book:   book,
		wallet: wallet,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetProMode widens the stake range for newly generated signals.
func (a *Advisor) SetProMode(enabled bool) {
	a.mu.Lock()
	a.proMode = enabled
	a.mu.Unlock()
}

// ProMode reports the current mode.
func (a *Advisor) ProMode() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.proMode
}

// MaybeGenerate emits a signal for the active instrument unless the guard
// blocks it: an open position on that instrument or a still-active signal.
func (a *Advisor) MaybeGenerate(activeInstrumentID string, now time.Time) (Signal, bool) {
	if activeInstrumentID == "" || a.book.HasOpen(activeInstrumentID) {
		return Signal{}, false
	}

	a.mu.Lock()
	if a.activeLocked(now) != nil {
		a.mu.Unlock()
		return Signal{}, false
	}

	lo, hi := minStakePct, maxStakePct
	if a.proMode {
		lo, hi = proMinStakePct, proMaxStakePct
	}
	pct := lo + a.rng.Intn(hi-lo+1)
	dir := ledger.DirectionBuy
	if a.rng.Float64() < 0.5 {
		dir = ledger.DirectionSell
	}

	s := &Signal{
		ID:           uuid.NewString(),
		InstrumentID: activeInstrumentID,
		Direction:    dir,
		StakePct:     pct,
		StakeAmount:  a.wallet.Balance() * float64(pct) / 100,
		State:        StateActive,
		CreatedAt:    now,
		ExpiresAt:    now.Add(TTL),
	}
	a.recent = append([]*Signal{s}, a.recent...)
	if len(a.recent) > RecentCap {
		a.recent = a.recent[:RecentCap]
	}
	a.mu.Unlock()

	log.Printf(i18n.M().SignalCreated, s.InstrumentID, s.Direction, float64(pct), s.StakeAmount)
	if a.bus != nil {
		a.bus.Publish(events.EventSignalCreated, *s)
	}
	return *s, true
}

// ExpireTick transitions active signals past their TTL to expired.
func (a *Advisor) ExpireTick(now time.Time) {
	a.mu.Lock()
	var expired []Signal
	for _, s := range a.recent {
		if s.State == StateActive && now.After(s.ExpiresAt) {
			s.State = StateExpired
			expired = append(expired, *s)
		}
	}
	a.mu.Unlock()

	for _, s := range expired {
		log.Printf(i18n.M().SignalExpired, s.ID)
		if a.bus != nil {
			a.bus.Publish(events.EventSignalUpdated, s)
		}
	}
}

// Follow opens a position per the signal's suggestion. Only active signals on
// the active instrument can be followed.
func (a *Advisor) Follow(id, activeInstrumentID string, now time.Time) (ledger.Position, Signal, error) {
	a.mu.Lock()
	s := a.findLocked(id)
	if s == nil || s.State != StateActive || now.After(s.ExpiresAt) {
		a.mu.Unlock()
		err := fmt.Errorf("%w: signal %s not actionable", ErrInvalidSignalAction, id)
		log.Printf(i18n.M().SignalRejected, err)
		return ledger.Position{}, Signal{}, err
	}
	if s.InstrumentID != activeInstrumentID {
		a.mu.Unlock()
		err := fmt.Errorf("%w: signal %s is for %s, active instrument is %s",
			ErrInvalidSignalAction, id, s.InstrumentID, activeInstrumentID)
		log.Printf(i18n.M().SignalRejected, err)
		return ledger.Position{}, Signal{}, err
	}
	sig := *s
	a.mu.Unlock()

	pos, err := a.book.Open(sig.InstrumentID, sig.Direction, sig.StakeAmount, sig.ID)
	if err != nil {
		log.Printf(i18n.M().SignalRejected, err)
		return ledger.Position{}, Signal{}, err
	}

	a.mu.Lock()
	s.State = StateFollowed
	sig = *s
	a.mu.Unlock()

	log.Printf(i18n.M().SignalFollowed, sig.ID)
	if a.bus != nil {
		a.bus.Publish(events.EventSignalUpdated, sig)
	}
	return pos, sig, nil
}

// Ignore marks an active signal as ignored.
func (a *Advisor) Ignore(id string, now time.Time) (Signal, error) {
	a.mu.Lock()
	s := a.findLocked(id)
	if s == nil || s.State != StateActive || now.After(s.ExpiresAt) {
		a.mu.Unlock()
		err := fmt.Errorf("%w: signal %s not actionable", ErrInvalidSignalAction, id)
		log.Printf(i18n.M().SignalRejected, err)
		return Signal{}, err
	}
	s.State = StateIgnored
	sig := *s
	a.mu.Unlock()

	log.Printf(i18n.M().SignalIgnored, sig.ID)
	if a.bus != nil {
		a.bus.Publish(events.EventSignalUpdated, sig)
	}
	return sig, nil
}

// Recent returns the bounded signal list, newest first.
func (a *Advisor) Recent() []Signal {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Signal, 0, len(a.recent))
	for _, s := range a.recent {
		out = append(out, *s)
	}
	return out
}

func (a *Advisor) findLocked(id string) *Signal {
	for _, s := range a.recent {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (a *Advisor) activeLocked(now time.Time) *Signal {
	for _, s := range a.recent {
		if s.State == StateActive && !now.After(s.ExpiresAt) {
			return s
		}
	}
	return nil
}
