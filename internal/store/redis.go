package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/prizepool/settlement-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for the hot read paths: market lookups and account stats. Writes go
// to the primary store and invalidate the cache.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write paths (write to primary, invalidate cache) ---

func (s *CachedStore) CreateMarket(ctx context.Context, m *model.Market) error {
	if err := s.primary.CreateMarket(ctx, m); err != nil {
		return err
	}
	s.cacheMarket(ctx, m)
	return nil
}

func (s *CachedStore) UpdateMarket(ctx context.Context, m *model.Market) error {
	if err := s.primary.UpdateMarket(ctx, m); err != nil {
		return err
	}
	// Invalidate; next read re-populates.
	s.rdb.Del(ctx, marketKey(m.ID))
	return nil
}

func (s *CachedStore) MarkSettled(ctx context.Context, id int64) (bool, error) {
	ok, err := s.primary.MarkSettled(ctx, id)
	if err == nil {
		s.rdb.Del(ctx, marketKey(id))
	}
	return ok, err
}

func (s *CachedStore) InsertBet(ctx context.Context, b *model.Bet) error {
	return s.primary.InsertBet(ctx, b)
}

func (s *CachedStore) CreateDispute(ctx context.Context, d *model.Dispute) error {
	return s.primary.CreateDispute(ctx, d)
}

func (s *CachedStore) MarkDisputeResolved(ctx context.Context, marketID int64) error {
	return s.primary.MarkDisputeResolved(ctx, marketID)
}

func (s *CachedStore) AddStake(ctx context.Context, account string, amount decimal.Decimal) error {
	if err := s.primary.AddStake(ctx, account, amount); err != nil {
		return err
	}
	s.rdb.Del(ctx, statsKey(account))
	return nil
}

func (s *CachedStore) AddWinnings(ctx context.Context, account string, amount decimal.Decimal) error {
	if err := s.primary.AddWinnings(ctx, account, amount); err != nil {
		return err
	}
	s.rdb.Del(ctx, statsKey(account))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetMarket(ctx context.Context, id int64) (*model.Market, error) {
	data, err := s.rdb.Get(ctx, marketKey(id)).Bytes()
	if err == nil {
		var m model.Market
		if json.Unmarshal(data, &m) == nil {
			return &m, nil
		}
	}

	m, err := s.primary.GetMarket(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheMarket(ctx, m)
	return m, nil
}

func (s *CachedStore) GetAccountStats(ctx context.Context, account string) (*model.AccountStats, error) {
	data, err := s.rdb.Get(ctx, statsKey(account)).Bytes()
	if err == nil {
		var st model.AccountStats
		if json.Unmarshal(data, &st) == nil {
			return &st, nil
		}
	}

	st, err := s.primary.GetAccountStats(ctx, account)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(st); err == nil {
		s.rdb.Set(ctx, statsKey(account), data, s.ttl)
	}
	return st, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListMarkets(ctx context.Context) ([]model.Market, error) {
	return s.primary.ListMarkets(ctx)
}

func (s *CachedStore) GetBet(ctx context.Context, marketID int64, account string) (*model.Bet, error) {
	return s.primary.GetBet(ctx, marketID, account)
}

func (s *CachedStore) ListBets(ctx context.Context, marketID int64) ([]model.Bet, error) {
	return s.primary.ListBets(ctx, marketID)
}

func (s *CachedStore) GetDispute(ctx context.Context, marketID int64) (*model.Dispute, error) {
	return s.primary.GetDispute(ctx, marketID)
}

// --- Cache helpers ---

func (s *CachedStore) cacheMarket(ctx context.Context, m *model.Market) {
	if data, err := json.Marshal(m); err == nil {
		s.rdb.Set(ctx, marketKey(m.ID), data, s.ttl)
	}
}

func marketKey(id int64) string     { return fmt.Sprintf("market:%d", id) }
func statsKey(account string) string { return fmt.Sprintf("stats:%s", account) }
