package balance

import (
	"errors"
	"sync"
	"testing"
)

func TestDebitAndCredit(t *testing.T) {
	w := NewWallet(1000)

	if err := w.Debit(100); err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if got := w.Balance(); got != 900 {
		t.Fatalf("balance after debit = %v, want 900", got)
	}

	w.Credit(190)
	if got := w.Balance(); got != 1090 {
		t.Fatalf("balance after credit = %v, want 1090", got)
	}
}

func TestDebitInsufficient(t *testing.T) {
	w := NewWallet(50)

	err := w.Debit(50.01)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	if got := w.Balance(); got != 50 {
		t.Fatalf("failed debit mutated balance: %v", got)
	}

	// Exact balance is spendable.
	if err := w.Debit(50); err != nil {
		t.Fatalf("Debit full balance: %v", err)
	}
	if got := w.Balance(); got != 0 {
		t.Fatalf("balance = %v, want 0", got)
	}
}

func TestOnChangeHook(t *testing.T) {
	w := NewWallet(1000)

	var got []float64
	w.OnChange(func(b float64) { got = append(got, b) })

	if err := w.Debit(10); err != nil {
		t.Fatalf("Debit: %v", err)
	}
	w.Credit(19)
	if err := w.Debit(5000); err == nil {
		t.Fatal("expected insufficient balance")
	}

	want := []float64{990, 1009}
	if len(got) != len(want) {
		t.Fatalf("hook calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("hook calls = %v, want %v", got, want)
		}
	}
}

func TestConcurrentIncrements(t *testing.T) {
	w := NewWallet(0)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Credit(1)
		}()
	}
	wg.Wait()

	if got := w.Balance(); got != 100 {
		t.Fatalf("balance = %v, want 100", got)
	}
}
