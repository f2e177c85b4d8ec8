// Package ledger defines the value-transfer port the settlement engine
// settles against. The ledger holds funds under the engine's custody;
// escrow and payout are atomic and never partially applied.
package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientFunds is returned when an account cannot cover an
	// escrow, or the custody balance cannot cover a payout batch.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrInvalidAmount is returned for zero or negative transfer amounts.
	ErrInvalidAmount = errors.New("ledger: amount must be positive")
)

// Transfer is one payout leg in a batch.
type Transfer struct {
	To     string
	Amount decimal.Decimal
}

// Ledger is the external custody interface. Escrow moves funds from an
// account into engine custody; Payout moves custody funds back out.
// PayoutBatch applies every transfer or none of them.
type Ledger interface {
	Escrow(ctx context.Context, from string, amount decimal.Decimal) error
	Payout(ctx context.Context, to string, amount decimal.Decimal) error
	PayoutBatch(ctx context.Context, transfers []Transfer) error
}
