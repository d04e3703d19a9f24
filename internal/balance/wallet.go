package balance

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"tradesim-core/pkg/i18n"
)

// ErrInsufficientBalance rejects a debit larger than the current balance.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Wallet holds the session's simulated funds. The stake is escrowed on open
// (Debit); only winning settlements credit anything back. All mutations are
// increments under one lock.
type Wallet struct {
	mu       sync.Mutex
	balance  float64
	onChange func(balance float64)
}

// NewWallet creates a wallet with the given starting balance.
func NewWallet(initial float64) *Wallet {
	return &Wallet{balance: initial}
}

// OnChange installs a hook invoked after every mutation with the new balance.
// Used to persist the session row.
func (w *Wallet) OnChange(fn func(balance float64)) {
	w.mu.Lock()
	w.onChange = fn
	w.mu.Unlock()
}

// SetInitial overwrites the balance, for session restore at startup.
func (w *Wallet) SetInitial(amount float64) {
	w.mu.Lock()
	w.balance = amount
	w.mu.Unlock()
	log.Printf(i18n.M().BalanceInitialized, amount)
}

// Balance returns the current balance.
func (w *Wallet) Balance() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balance
}

// Debit escrows amount, failing if the balance cannot cover it.
func (w *Wallet) Debit(amount float64) error {
	w.mu.Lock()
	if amount > w.balance {
		have := w.balance
		w.mu.Unlock()
		log.Printf(i18n.M().InsufficientBalance, amount, have)
		return fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientBalance, amount, have)
	}
	w.balance -= amount
	after := w.balance
	hook := w.onChange
	w.mu.Unlock()

	log.Printf(i18n.M().BalanceDebited, amount, after)
	if hook != nil {
		hook(after)
	}
	return nil
}

// Credit adds amount to the balance.
func (w *Wallet) Credit(amount float64) {
	w.mu.Lock()
	w.balance += amount
	after := w.balance
	hook := w.onChange
	w.mu.Unlock()

	log.Printf(i18n.M().BalanceCredited, amount, after)
	if hook != nil {
		hook(after)
	}
}
