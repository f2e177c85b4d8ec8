// Package model defines the core domain types shared across the settlement
// engine. All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Market phases. Transitions are owned exclusively by the settlement engine:
// open → closed → resolved → {settled | disputed} → settled.
const (
	PhaseOpen     = "open"
	PhaseClosed   = "closed"
	PhaseResolved = "resolved"
	PhaseDisputed = "disputed"
	PhaseSettled  = "settled"
)

// NoWinningOption is the WinningOption value before any resolution.
const NoWinningOption = -1

// Market is one question with an ordered option list, a betting window, and
// a prize pool. Pool = initial seed + accepted entry fees, adjusted by
// dispute forfeitures/bonuses, and is disbursed exactly once at settlement.
type Market struct {
	ID             int64           `json:"id" db:"id"`
	Creator        string          `json:"creator" db:"creator"`
	Question       string          `json:"question" db:"question"`
	Options        []string        `json:"options" db:"options"`
	EntryFee       decimal.Decimal `json:"entry_fee" db:"entry_fee"`
	InitialPool    decimal.Decimal `json:"initial_pool" db:"initial_pool"`
	Pool           decimal.Decimal `json:"pool" db:"pool"`
	OpenUntil      time.Time       `json:"open_until" db:"open_until"`
	ResolvableFrom time.Time       `json:"resolvable_from" db:"resolvable_from"`
	Phase          string          `json:"phase" db:"phase"`
	WinningOption  int             `json:"winning_option" db:"winning_option"`
	ResolvedAt     time.Time       `json:"resolved_at,omitempty" db:"resolved_at"`
	Settled        bool            `json:"settled" db:"settled"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// EffectivePhase derives the phase visible at `now` without mutating the
// stored phase. An open market past its close time reads as closed; the
// stored field is only written back by the next mutating call.
func (m *Market) EffectivePhase(now time.Time) string {
	if m.Phase == PhaseOpen && !now.Before(m.OpenUntil) {
		return PhaseClosed
	}
	return m.Phase
}

// ValidOption reports whether idx indexes into the option list.
func (m *Market) ValidOption(idx int) bool {
	return idx >= 0 && idx < len(m.Options)
}

// Bet is one account's single stake on one option in one market.
// Amount always equals the market's entry fee.
type Bet struct {
	ID       string          `json:"id" db:"id"`
	MarketID int64           `json:"market_id" db:"market_id"`
	Account  string          `json:"account" db:"account"`
	Option   int             `json:"option" db:"option"`
	Amount   decimal.Decimal `json:"amount" db:"amount"`
	PlacedAt time.Time       `json:"placed_at" db:"placed_at"`
}

// Dispute is a challenger's staked counter-claim against a creator's
// resolution. At most one exists per market, ever.
type Dispute struct {
	ID             string          `json:"id" db:"id"`
	MarketID       int64           `json:"market_id" db:"market_id"`
	Challenger     string          `json:"challenger" db:"challenger"`
	ProposedOption int             `json:"proposed_option" db:"proposed_option"`
	Stake          decimal.Decimal `json:"stake" db:"stake"`
	Deadline       time.Time       `json:"deadline" db:"deadline"`
	Resolved       bool            `json:"resolved" db:"resolved"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// AccountStats are per-account aggregates across all markets, never reset.
type AccountStats struct {
	Account       string          `json:"account" db:"account"`
	TotalStaked   decimal.Decimal `json:"total_staked" db:"total_staked"`
	TotalWinnings decimal.Decimal `json:"total_winnings" db:"total_winnings"`
}
