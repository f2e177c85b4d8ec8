package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/prizepool/settlement-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing and
// development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	markets  map[int64]*model.Market
	bets     map[int64][]model.Bet
	disputes map[int64]*model.Dispute
	stats    map[string]*model.AccountStats
}

// NewMemoryStore creates a new in-memory store. Market ids start at 1.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:   1,
		markets:  make(map[int64]*model.Market),
		bets:     make(map[int64][]model.Bet),
		disputes: make(map[int64]*model.Dispute),
		stats:    make(map[string]*model.AccountStats),
	}
}

func (s *MemoryStore) CreateMarket(_ context.Context, m *model.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = s.nextID
	s.nextID++

	// Store a copy to avoid external mutation.
	cp := *m
	cp.Options = append([]string(nil), m.Options...)
	s.markets[m.ID] = &cp
	return nil
}

func (s *MemoryStore) GetMarket(_ context.Context, id int64) (*model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.markets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrMarketNotFound, id)
	}
	cp := *m
	cp.Options = append([]string(nil), m.Options...)
	return &cp, nil
}

func (s *MemoryStore) ListMarkets(_ context.Context) ([]model.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	markets := make([]model.Market, 0, len(s.markets))
	// Newest first: ids are monotonic.
	for id := s.nextID - 1; id >= 1; id-- {
		if m, ok := s.markets[id]; ok {
			cp := *m
			cp.Options = append([]string(nil), m.Options...)
			markets = append(markets, cp)
		}
	}
	return markets, nil
}

func (s *MemoryStore) UpdateMarket(_ context.Context, m *model.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.markets[m.ID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrMarketNotFound, m.ID)
	}
	existing.Pool = m.Pool
	existing.Phase = m.Phase
	existing.WinningOption = m.WinningOption
	existing.ResolvedAt = m.ResolvedAt
	return nil
}

func (s *MemoryStore) MarkSettled(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markets[id]
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrMarketNotFound, id)
	}
	if m.Settled {
		return false, nil
	}
	m.Settled = true
	m.Phase = model.PhaseSettled
	return true, nil
}

func (s *MemoryStore) InsertBet(_ context.Context, b *model.Bet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.markets[b.MarketID]; !ok {
		return fmt.Errorf("%w: %d", ErrMarketNotFound, b.MarketID)
	}
	for _, existing := range s.bets[b.MarketID] {
		if existing.Account == b.Account {
			return fmt.Errorf("%w: %s on market %d", ErrDuplicateBet, b.Account, b.MarketID)
		}
	}
	s.bets[b.MarketID] = append(s.bets[b.MarketID], *b)
	return nil
}

func (s *MemoryStore) GetBet(_ context.Context, marketID int64, account string) (*model.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.bets[marketID] {
		if b.Account == account {
			cp := b
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: %s on market %d", ErrBetNotFound, account, marketID)
}

func (s *MemoryStore) ListBets(_ context.Context, marketID int64) ([]model.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]model.Bet(nil), s.bets[marketID]...), nil
}

func (s *MemoryStore) CreateDispute(_ context.Context, d *model.Dispute) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.disputes[d.MarketID]; ok {
		return fmt.Errorf("%w: market %d", ErrDisputeExists, d.MarketID)
	}
	cp := *d
	s.disputes[d.MarketID] = &cp
	return nil
}

func (s *MemoryStore) GetDispute(_ context.Context, marketID int64) (*model.Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.disputes[marketID]
	if !ok {
		return nil, fmt.Errorf("%w: market %d", ErrDisputeNotFound, marketID)
	}
	cp := *d
	return &cp, nil
}

func (s *MemoryStore) MarkDisputeResolved(_ context.Context, marketID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.disputes[marketID]
	if !ok {
		return fmt.Errorf("%w: market %d", ErrDisputeNotFound, marketID)
	}
	d.Resolved = true
	return nil
}

func (s *MemoryStore) AddStake(_ context.Context, account string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.statsLocked(account)
	st.TotalStaked = st.TotalStaked.Add(amount)
	return nil
}

func (s *MemoryStore) AddWinnings(_ context.Context, account string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.statsLocked(account)
	st.TotalWinnings = st.TotalWinnings.Add(amount)
	return nil
}

func (s *MemoryStore) GetAccountStats(_ context.Context, account string) (*model.AccountStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.stats[account]; ok {
		cp := *st
		return &cp, nil
	}
	return &model.AccountStats{
		Account:       account,
		TotalStaked:   decimal.Zero,
		TotalWinnings: decimal.Zero,
	}, nil
}

func (s *MemoryStore) statsLocked(account string) *model.AccountStats {
	st, ok := s.stats[account]
	if !ok {
		st = &model.AccountStats{
			Account:       account,
			TotalStaked:   decimal.Zero,
			TotalWinnings: decimal.Zero,
		}
		s.stats[account] = st
	}
	return st
}
