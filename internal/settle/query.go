package settle

import (
	"context"
	"errors"
	"time"

	"github.com/prizepool/settlement-engine/internal/model"
	"github.com/prizepool/settlement-engine/internal/store"
)

// Read-only projections. None of these trigger phase transitions: phase is
// derived from stored timestamps and the clock for display, and only written
// back by the next mutating call.

// GetMarket returns a market with its time-derived effective phase.
func (s *Service) GetMarket(ctx context.Context, id int64) (*model.Market, error) {
	m, err := s.loadMarket(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Phase = m.EffectivePhase(s.clock.Now())
	return m, nil
}

// ListMarkets returns all markets, newest first, with derived phases.
func (s *Service) ListMarkets(ctx context.Context) ([]model.Market, error) {
	markets, err := s.store.ListMarkets(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	for i := range markets {
		markets[i].Phase = markets[i].EffectivePhase(now)
	}
	return markets, nil
}

// GetBet returns one account's bet on a market.
func (s *Service) GetBet(ctx context.Context, marketID int64, account string) (*model.Bet, error) {
	if _, err := s.loadMarket(ctx, marketID); err != nil {
		return nil, err
	}
	b, err := s.store.GetBet(ctx, marketID, account)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return b, nil
}

// OptionStats are live per-option tallies for one market.
type OptionStats struct {
	MarketID          int64    `json:"market_id"`
	Options           []string `json:"options"`
	Counts            []int    `json:"counts"`
	Percentages       []int64  `json:"percentages"`
	TotalParticipants int      `json:"total_participants"`
}

// GetOptionStats computes per-option bet counts and percentages.
// Percentages are rounded toward zero, so they sum to at most 100.
func (s *Service) GetOptionStats(ctx context.Context, marketID int64) (*OptionStats, error) {
	m, err := s.loadMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	bets, err := s.store.ListBets(ctx, marketID)
	if err != nil {
		return nil, err
	}

	stats := &OptionStats{
		MarketID:          marketID,
		Options:           m.Options,
		Counts:            make([]int, len(m.Options)),
		Percentages:       make([]int64, len(m.Options)),
		TotalParticipants: len(bets),
	}
	for _, b := range bets {
		stats.Counts[b.Option]++
	}
	if len(bets) > 0 {
		for i, c := range stats.Counts {
			stats.Percentages[i] = int64(c) * 100 / int64(len(bets))
		}
	}
	return stats, nil
}

// GetUserStats returns an account's lifetime aggregates.
func (s *Service) GetUserStats(ctx context.Context, account string) (*model.AccountStats, error) {
	return s.store.GetAccountStats(ctx, account)
}

// DisputeInfo is the dispute projection for one market.
type DisputeInfo struct {
	MarketID         int64     `json:"market_id"`
	HasActiveDispute bool      `json:"has_active_dispute"`
	Challenger       string    `json:"challenger,omitempty"`
	ProposedOption   int       `json:"proposed_option,omitempty"`
	Stake            string    `json:"stake,omitempty"`
	Deadline         time.Time `json:"deadline,omitempty"`
	Resolved         bool      `json:"resolved"`
}

// GetDisputeInfo reports whether a market has a dispute and its terms.
// A market with no dispute yields HasActiveDispute=false, not an error.
func (s *Service) GetDisputeInfo(ctx context.Context, marketID int64) (*DisputeInfo, error) {
	if _, err := s.loadMarket(ctx, marketID); err != nil {
		return nil, err
	}

	info := &DisputeInfo{MarketID: marketID}
	d, err := s.store.GetDispute(ctx, marketID)
	if err != nil {
		if errors.Is(err, store.ErrDisputeNotFound) {
			return info, nil
		}
		return nil, err
	}
	info.HasActiveDispute = !d.Resolved
	info.Challenger = d.Challenger
	info.ProposedOption = d.ProposedOption
	info.Stake = d.Stake.String()
	info.Deadline = d.Deadline
	info.Resolved = d.Resolved
	return info, nil
}

// ArePrizesDistributed exposes the settled flag as a read-only fact.
func (s *Service) ArePrizesDistributed(ctx context.Context, marketID int64) (bool, error) {
	m, err := s.loadMarket(ctx, marketID)
	if err != nil {
		return false, err
	}
	return m.Settled, nil
}
