package settle

import "errors"

// The engine's error taxonomy. Every rejected operation returns exactly one
// of these (possibly wrapped with context) and leaves the system in the
// state it was in before the call.
var (
	// ErrInvalidSchedule is returned when the betting window or resolution
	// time violates the minimum lead or ordering constraints.
	ErrInvalidSchedule = errors.New("settle: invalid schedule")

	// ErrInvalidOptions is returned for fewer than two options or
	// duplicate labels.
	ErrInvalidOptions = errors.New("settle: invalid options")

	// ErrInvalidFee is returned for a zero or negative entry fee.
	ErrInvalidFee = errors.New("settle: invalid entry fee")

	// ErrMarketClosed is returned when an operation needs the market in a
	// different time window than the clock allows.
	ErrMarketClosed = errors.New("settle: market closed")

	// ErrInvalidOption is returned for an option index out of range.
	ErrInvalidOption = errors.New("settle: invalid option")

	// ErrWrongAmount is returned when a bet amount differs from the entry fee.
	ErrWrongAmount = errors.New("settle: amount must equal entry fee")

	// ErrDuplicateBet is returned on a second bet by the same account.
	ErrDuplicateBet = errors.New("settle: account already bet on market")

	// ErrUnauthorized is returned when the caller lacks authority for the
	// operation (resolve by non-creator, dispute by the creator).
	ErrUnauthorized = errors.New("settle: unauthorized")

	// ErrAlreadyResolved is returned on a second resolution attempt.
	ErrAlreadyResolved = errors.New("settle: market already resolved")

	// ErrDisputeWindowClosed is returned when the dispute window has elapsed.
	ErrDisputeWindowClosed = errors.New("settle: dispute window closed")

	// ErrDisputeExists is returned when the market already carries a dispute.
	ErrDisputeExists = errors.New("settle: dispute already exists")

	// ErrInsufficientStake is returned for a dispute stake below the
	// minimum bond.
	ErrInsufficientStake = errors.New("settle: stake below minimum dispute bond")

	// ErrNoChange is returned when a dispute proposes the already-winning
	// option.
	ErrNoChange = errors.New("settle: dispute proposes current winning option")

	// ErrLedger wraps any escrow/payout failure. The whole operation aborts
	// atomically; no partial state is persisted.
	ErrLedger = errors.New("settle: ledger failure")

	// ErrNotFound is returned for unknown markets, bets, or disputes.
	ErrNotFound = errors.New("settle: not found")
)
