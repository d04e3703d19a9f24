// Package db persists the player session and settled-trade history.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	ErrSessionIDRequired = errors.New("session_id is required")
	ErrNotFound          = errors.New("record not found")
)

// Queries provides session-scoped database access.
type Queries struct {
	db *sql.DB
}

// GetSession loads a session row, or ErrNotFound.
func (q *Queries) GetSession(ctx context.Context, sessionID string) (Session, error) {
	if sessionID == "" {
		return Session{}, ErrSessionIDRequired
	}

	var s Session
	err := q.db.QueryRowContext(ctx, `
		SELECT id, balance, win_count, pro_mode, tutorial_seen, created_at, updated_at
		FROM sessions
		WHERE id = ?
	`, sessionID).Scan(&s.ID, &s.Balance, &s.WinCount, &s.ProMode, &s.TutorialSeen, &s.CreatedAt, &s.UpdatedAt)

	if err == sql.ErrNoRows {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("query session: %w", err)
	}
	return s, nil
}

// UpsertSession creates the session row or refreshes its mutable fields.
func (q *Queries) UpsertSession(ctx context.Context, s Session) error {
	if s.ID == "" {
		return ErrSessionIDRequired
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO sessions (id, balance, win_count, pro_mode, tutorial_seen, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			balance = excluded.balance,
			win_count = excluded.win_count,
			pro_mode = excluded.pro_mode,
			tutorial_seen = excluded.tutorial_seen,
			updated_at = CURRENT_TIMESTAMP
	`, s.ID, s.Balance, s.WinCount, s.ProMode, s.TutorialSeen)

	return err
}

// UpdateBalance writes the session balance.
func (q *Queries) UpdateBalance(ctx context.Context, sessionID string, balance float64) error {
	if sessionID == "" {
		return ErrSessionIDRequired
	}
	_, err := q.db.ExecContext(ctx, `
		UPDATE sessions SET balance = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, balance, sessionID)
	return err
}

// UpdateWinCount writes the session win count.
func (q *Queries) UpdateWinCount(ctx context.Context, sessionID string, winCount int) error {
	if sessionID == "" {
		return ErrSessionIDRequired
	}
	_, err := q.db.ExecContext(ctx, `
		UPDATE sessions SET win_count = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, winCount, sessionID)
	return err
}

// SetProMode persists the pro mode toggle.
func (q *Queries) SetProMode(ctx context.Context, sessionID string, enabled bool) error {
	if sessionID == "" {
		return ErrSessionIDRequired
	}
	_, err := q.db.ExecContext(ctx, `
		UPDATE sessions SET pro_mode = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, enabled, sessionID)
	return err
}

// SetTutorialSeen persists the tutorial flag.
func (q *Queries) SetTutorialSeen(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrSessionIDRequired
	}
	_, err := q.db.ExecContext(ctx, `
		UPDATE sessions SET tutorial_seen = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, sessionID)
	return err
}

// InsertHistory appends a settled trade row.
func (q *Queries) InsertHistory(ctx context.Context, r HistoryRecord) error {
	if r.SessionID == "" {
		return ErrSessionIDRequired
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO trade_history
			(id, session_id, position_id, instrument_id, direction,
			 entry_price, close_price, stake, payout, is_win, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP))
	`, r.ID, r.SessionID, r.PositionID, r.InstrumentID, r.Direction,
		r.EntryPrice, r.ClosePrice, r.Stake, r.Payout, r.IsWin, r.CreatedAt)

	return err
}

// GetHistory returns a session's settled trades, newest first.
func (q *Queries) GetHistory(ctx context.Context, sessionID string, limit int) ([]HistoryRecord, error) {
	if sessionID == "" {
		return nil, ErrSessionIDRequired
	}

	rows, err := q.db.QueryContext(ctx, `
		SELECT id, session_id, position_id, instrument_id, direction,
		       entry_price, close_price, stake, payout, is_win, created_at
		FROM trade_history
		WHERE session_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var recs []HistoryRecord
	for rows.Next() {
		var r HistoryRecord
		if err := rows.Scan(&r.ID, &r.SessionID, &r.PositionID, &r.InstrumentID, &r.Direction,
			&r.EntryPrice, &r.ClosePrice, &r.Stake, &r.Payout, &r.IsWin, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
