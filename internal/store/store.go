// Package store defines the persistence interface for the settlement engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/prizepool/settlement-engine/internal/model"
)

var (
	// ErrMarketNotFound is returned when no market exists with the given id.
	ErrMarketNotFound = errors.New("store: market not found")

	// ErrBetNotFound is returned when an account has no bet on a market.
	ErrBetNotFound = errors.New("store: bet not found")

	// ErrDuplicateBet is returned when an account already bet on a market.
	ErrDuplicateBet = errors.New("store: account already bet on market")

	// ErrDisputeNotFound is returned when a market has no dispute.
	ErrDisputeNotFound = errors.New("store: dispute not found")

	// ErrDisputeExists is returned when a market already has a dispute;
	// a market can only ever carry one.
	ErrDisputeExists = errors.New("store: dispute already exists")
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer. It owns the market set, the
// per-market bet collections, disputes, and the per-account stat registry.
type Store interface {
	// --- Market operations ---

	// CreateMarket persists a new market and assigns its monotonic id.
	CreateMarket(ctx context.Context, m *model.Market) error

	// GetMarket retrieves a market by id.
	GetMarket(ctx context.Context, id int64) (*model.Market, error)

	// ListMarkets returns all markets, newest first.
	ListMarkets(ctx context.Context) ([]model.Market, error)

	// UpdateMarket persists pool, phase, winning option, and resolution time.
	UpdateMarket(ctx context.Context, m *model.Market) error

	// MarkSettled flips the settled flag. Returns false when the market was
	// already settled — the check-and-set the payout path relies on.
	MarkSettled(ctx context.Context, id int64) (bool, error)

	// --- Bets ---

	// InsertBet appends a bet. Fails with ErrDuplicateBet if the account
	// already bet on the market. Insertion order is preserved.
	InsertBet(ctx context.Context, b *model.Bet) error

	// GetBet returns an account's bet on a market.
	GetBet(ctx context.Context, marketID int64, account string) (*model.Bet, error)

	// ListBets returns a market's bets in insertion order.
	ListBets(ctx context.Context, marketID int64) ([]model.Bet, error)

	// --- Disputes ---

	// CreateDispute records a dispute. Fails with ErrDisputeExists if the
	// market has ever had one.
	CreateDispute(ctx context.Context, d *model.Dispute) error

	// GetDispute returns a market's dispute, if any.
	GetDispute(ctx context.Context, marketID int64) (*model.Dispute, error)

	// MarkDisputeResolved flags a dispute as adjudicated.
	MarkDisputeResolved(ctx context.Context, marketID int64) error

	// --- Account registry ---

	// AddStake accumulates an account's total staked amount.
	AddStake(ctx context.Context, account string, amount decimal.Decimal) error

	// AddWinnings accumulates an account's total winnings.
	AddWinnings(ctx context.Context, account string, amount decimal.Decimal) error

	// GetAccountStats returns an account's aggregates (zeroes if unseen).
	GetAccountStats(ctx context.Context, account string) (*model.AccountStats, error)
}
