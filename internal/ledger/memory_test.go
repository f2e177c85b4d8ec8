package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestEscrowMovesFundsToCustody(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()
	l.Deposit("alice", dec("100"))

	if err := l.Escrow(ctx, "alice", dec("30")); err != nil {
		t.Fatalf("Escrow: %v", err)
	}
	if got := l.Balance("alice"); !got.Equal(dec("70")) {
		t.Fatalf("balance = %s, want 70", got)
	}
	if got := l.Custody(); !got.Equal(dec("30")) {
		t.Fatalf("custody = %s, want 30", got)
	}
}

func TestEscrowInsufficientFunds(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()
	l.Deposit("alice", dec("10"))

	err := l.Escrow(ctx, "alice", dec("11"))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}
	if got := l.Balance("alice"); !got.Equal(dec("10")) {
		t.Fatalf("balance moved on failed escrow: %s", got)
	}
}

func TestEscrowRejectsNonPositive(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()
	l.Deposit("alice", dec("10"))

	for _, amount := range []string{"0", "-5"} {
		if err := l.Escrow(ctx, "alice", dec(amount)); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("Escrow(%s): got %v, want ErrInvalidAmount", amount, err)
		}
	}
}

func TestPayoutBatchAtomic(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()
	l.Deposit("alice", dec("100"))
	if err := l.Escrow(ctx, "alice", dec("100")); err != nil {
		t.Fatalf("Escrow: %v", err)
	}

	// Batch total 120 exceeds custody 100: no leg may apply.
	err := l.PayoutBatch(ctx, []Transfer{
		{To: "bob", Amount: dec("60")},
		{To: "carol", Amount: dec("60")},
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("got %v, want ErrInsufficientFunds", err)
	}
	if got := l.Balance("bob"); !got.IsZero() {
		t.Fatalf("partial batch applied: bob = %s", got)
	}
	if got := l.Custody(); !got.Equal(dec("100")) {
		t.Fatalf("custody = %s, want 100", got)
	}
	if l.PayoutCount() != 0 {
		t.Fatalf("payout legs counted for a failed batch: %d", l.PayoutCount())
	}

	// A covered batch applies every leg.
	err = l.PayoutBatch(ctx, []Transfer{
		{To: "bob", Amount: dec("60")},
		{To: "carol", Amount: dec("40")},
	})
	if err != nil {
		t.Fatalf("PayoutBatch: %v", err)
	}
	if got := l.Balance("bob"); !got.Equal(dec("60")) {
		t.Fatalf("bob = %s, want 60", got)
	}
	if got := l.Balance("carol"); !got.Equal(dec("40")) {
		t.Fatalf("carol = %s, want 40", got)
	}
	if got := l.Custody(); !got.IsZero() {
		t.Fatalf("custody = %s, want 0", got)
	}
	if l.PayoutCount() != 2 {
		t.Fatalf("payout legs = %d, want 2", l.PayoutCount())
	}
}

func TestPayoutBatchRejectsNonPositiveLeg(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()
	l.Deposit("alice", dec("50"))
	if err := l.Escrow(ctx, "alice", dec("50")); err != nil {
		t.Fatalf("Escrow: %v", err)
	}

	err := l.PayoutBatch(ctx, []Transfer{
		{To: "bob", Amount: dec("10")},
		{To: "carol", Amount: dec("0")},
	})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("got %v, want ErrInvalidAmount", err)
	}
	if got := l.Balance("bob"); !got.IsZero() {
		t.Fatalf("leg applied from invalid batch: bob = %s", got)
	}
}

func TestPayoutSingle(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()
	l.Deposit("alice", dec("25"))
	if err := l.Escrow(ctx, "alice", dec("25")); err != nil {
		t.Fatalf("Escrow: %v", err)
	}
	if err := l.Payout(ctx, "bob", dec("25")); err != nil {
		t.Fatalf("Payout: %v", err)
	}
	if got := l.Balance("bob"); !got.Equal(dec("25")) {
		t.Fatalf("bob = %s, want 25", got)
	}
}
