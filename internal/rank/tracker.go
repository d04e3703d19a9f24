package rank

import (
	"log"
	"sync"
	"time"

	"tradesim-core/internal/events"
	"tradesim-core/pkg/i18n"
)

// Tier is one rank threshold.
type Tier struct {
	Name string `json:"name"`
	Wins int    `json:"wins"`
}

// Tiers in ascending order. A player below the first threshold is unranked.
var Tiers = []Tier{
	{Name: "Bronze", Wins: 5},
	{Name: "Silver", Wins: 10},
	{Name: "Gold", Wins: 20},
}

// RankFor returns the highest tier name at or below wins, or "" if unranked.
func RankFor(wins int) string {
	name := ""
	for _, t := range Tiers {
		if wins >= t.Wins {
			name = t.Name
		}
	}
	return name
}

// NextFor returns the first tier above wins.
func NextFor(wins int) (Tier, bool) {
	for _, t := range Tiers {
		if wins < t.Wins {
			return t, true
		}
	}
	return Tier{}, false
}

// Progress reports advancement between the current tier's threshold and the
// next one, clamped to [0,1]. At or above the top tier it is 1.
func Progress(wins int) float64 {
	next, ok := NextFor(wins)
	if !ok {
		return 1
	}
	prev := 0
	for _, t := range Tiers {
		if wins >= t.Wins {
			prev = t.Wins
		}
	}
	p := float64(wins-prev) / float64(next.Wins-prev)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Status is the player-facing rank view.
type Status struct {
	WinCount   int     `json:"win_count"`
	Rank       string  `json:"rank"`
	NextRank   string  `json:"next_rank,omitempty"`
	WinsToNext int     `json:"wins_to_next,omitempty"`
	Progress   float64 `json:"progress"`
}

// Tracker counts wins and detects tier crossings. A promotion event fires
// exactly once per crossing, for the highest newly attained tier.
type Tracker struct {
	mu   sync.Mutex
	bus  *events.Bus
	wins int
}

// NewTracker creates a tracker publishing promotions on bus.
func NewTracker(bus *events.Bus) *Tracker {
	return &Tracker{bus: bus}
}

// Restore sets the win count from a persisted session without firing events.
func (t *Tracker) Restore(wins int) {
	t.mu.Lock()
	t.wins = wins
	t.mu.Unlock()
}

// WinCount returns the current win count.
func (t *Tracker) WinCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.wins
}

// RecordWin increments the win count and publishes a promotion if a tier
// boundary was crossed. It returns the new win count.
func (t *Tracker) RecordWin() int {
	t.mu.Lock()
	before := RankFor(t.wins)
	t.wins++
	wins := t.wins
	after := RankFor(wins)
	t.mu.Unlock()

	if after != before {
		up := events.RankUp{
			Rank:       after,
			WinCount:   wins,
			AttainedAt: time.Now(),
		}
		if next, ok := NextFor(wins); ok {
			up.NextRank = next.Name
			up.WinsToNext = next.Wins - wins
		}
		log.Printf(i18n.M().RankPromoted, after, wins)
		if t.bus != nil {
			t.bus.Publish(events.EventRankUp, up)
		}
	}
	return wins
}

// Status returns the current rank view.
func (t *Tracker) Status() Status {
	wins := t.WinCount()
	s := Status{
		WinCount: wins,
		Rank:     RankFor(wins),
		Progress: Progress(wins),
	}
	if next, ok := NextFor(wins); ok {
		s.NextRank = next.Name
		s.WinsToNext = next.Wins - wins
	}
	return s
}
