package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Memory implements Ledger with in-memory balances. Used for development and
// testing; a production deployment adapts this interface to the real
// value-transfer system.
type Memory struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	custody  decimal.Decimal
	payouts  int
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{balances: make(map[string]decimal.Decimal)}
}

// Deposit credits an account balance. Test/dev seeding only.
func (l *Memory) Deposit(account string, amount decimal.Decimal) {
	l.mu.Lock()
	l.balances[account] = l.balances[account].Add(amount)
	l.mu.Unlock()
}

// Balance returns an account's free (non-escrowed) balance.
func (l *Memory) Balance(account string) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account]
}

// Custody returns the total currently held in escrow.
func (l *Memory) Custody() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.custody
}

// PayoutCount returns how many payout legs have been applied. Tests use it
// to assert that settlement is exactly-once.
func (l *Memory) PayoutCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.payouts
}

func (l *Memory) Escrow(_ context.Context, from string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.balances[from].LessThan(amount) {
		return fmt.Errorf("%w: account %s has %s, needs %s",
			ErrInsufficientFunds, from, l.balances[from], amount)
	}
	l.balances[from] = l.balances[from].Sub(amount)
	l.custody = l.custody.Add(amount)
	return nil
}

func (l *Memory) Payout(ctx context.Context, to string, amount decimal.Decimal) error {
	return l.PayoutBatch(ctx, []Transfer{{To: to, Amount: amount}})
}

// PayoutBatch applies all transfers atomically: the custody balance is
// checked against the batch total before any leg is applied, so a failing
// batch leaves every balance untouched.
func (l *Memory) PayoutBatch(_ context.Context, transfers []Transfer) error {
	total := decimal.Zero
	for _, t := range transfers {
		if !t.Amount.IsPositive() {
			return fmt.Errorf("%w: %s to %s", ErrInvalidAmount, t.Amount, t.To)
		}
		total = total.Add(t.Amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.custody.LessThan(total) {
		return fmt.Errorf("%w: custody %s cannot cover batch %s",
			ErrInsufficientFunds, l.custody, total)
	}
	for _, t := range transfers {
		l.balances[t.To] = l.balances[t.To].Add(t.Amount)
		l.custody = l.custody.Sub(t.Amount)
		l.payouts++
	}
	return nil
}
