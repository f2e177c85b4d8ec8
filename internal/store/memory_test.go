package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/prizepool/settlement-engine/internal/model"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newMarket(creator string) *model.Market {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &model.Market{
		Creator:        creator,
		Question:       "Will it rain tomorrow?",
		Options:        []string{"YES", "NO"},
		EntryFee:       dec("10"),
		InitialPool:    dec("50"),
		Pool:           dec("50"),
		OpenUntil:      now.Add(2 * time.Hour),
		ResolvableFrom: now.Add(3 * time.Hour),
		Phase:          model.PhaseOpen,
		WinningOption:  model.NoWinningOption,
		CreatedAt:      now,
	}
}

func TestCreateMarketAssignsMonotonicIDs(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		m := newMarket("alice")
		if err := st.CreateMarket(ctx, m); err != nil {
			t.Fatalf("CreateMarket: %v", err)
		}
		if m.ID != want {
			t.Fatalf("id = %d, want %d", m.ID, want)
		}
	}

	markets, err := st.ListMarkets(ctx)
	if err != nil {
		t.Fatalf("ListMarkets: %v", err)
	}
	if len(markets) != 3 || markets[0].ID != 3 || markets[2].ID != 1 {
		t.Fatalf("list order = %v", markets)
	}
}

func TestGetMarketReturnsCopy(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	m := newMarket("alice")
	if err := st.CreateMarket(ctx, m); err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}

	got, err := st.GetMarket(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMarket: %v", err)
	}
	got.Phase = model.PhaseSettled
	got.Options[0] = "MAYBE"

	fresh, _ := st.GetMarket(ctx, m.ID)
	if fresh.Phase != model.PhaseOpen || fresh.Options[0] != "YES" {
		t.Fatalf("stored market mutated through a returned copy: %+v", fresh)
	}
}

func TestGetMarketNotFound(t *testing.T) {
	st := NewMemoryStore()
	if _, err := st.GetMarket(context.Background(), 42); !errors.Is(err, ErrMarketNotFound) {
		t.Fatalf("got %v, want ErrMarketNotFound", err)
	}
}

func TestUpdateMarket(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	m := newMarket("alice")
	if err := st.CreateMarket(ctx, m); err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}

	m.Phase = model.PhaseResolved
	m.WinningOption = 1
	m.Pool = dec("80")
	m.ResolvedAt = m.CreatedAt.Add(4 * time.Hour)
	if err := st.UpdateMarket(ctx, m); err != nil {
		t.Fatalf("UpdateMarket: %v", err)
	}

	got, _ := st.GetMarket(ctx, m.ID)
	if got.Phase != model.PhaseResolved || got.WinningOption != 1 || !got.Pool.Equal(dec("80")) {
		t.Fatalf("after update: %+v", got)
	}
	if got.ResolvedAt.IsZero() {
		t.Fatal("resolved_at not persisted")
	}
}

func TestMarkSettledCompareAndSet(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	m := newMarket("alice")
	if err := st.CreateMarket(ctx, m); err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}

	ok, err := st.MarkSettled(ctx, m.ID)
	if err != nil || !ok {
		t.Fatalf("first MarkSettled: ok=%v err=%v", ok, err)
	}
	ok, err = st.MarkSettled(ctx, m.ID)
	if err != nil || ok {
		t.Fatalf("second MarkSettled: ok=%v err=%v, want false", ok, err)
	}
	if _, err := st.MarkSettled(ctx, 99); !errors.Is(err, ErrMarketNotFound) {
		t.Fatalf("missing market: got %v", err)
	}
}

func TestBetsInsertionOrderAndDuplicates(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	m := newMarket("alice")
	if err := st.CreateMarket(ctx, m); err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}

	accounts := []string{"bob", "carol", "dave"}
	for i, acct := range accounts {
		b := &model.Bet{
			ID:       acct + "-bet",
			MarketID: m.ID,
			Account:  acct,
			Option:   i % 2,
			Amount:   dec("10"),
			PlacedAt: m.CreatedAt.Add(time.Duration(i) * time.Minute),
		}
		if err := st.InsertBet(ctx, b); err != nil {
			t.Fatalf("InsertBet(%s): %v", acct, err)
		}
	}

	err := st.InsertBet(ctx, &model.Bet{ID: "dup", MarketID: m.ID, Account: "bob", Option: 1, Amount: dec("10")})
	if !errors.Is(err, ErrDuplicateBet) {
		t.Fatalf("duplicate: got %v, want ErrDuplicateBet", err)
	}

	bets, err := st.ListBets(ctx, m.ID)
	if err != nil {
		t.Fatalf("ListBets: %v", err)
	}
	if len(bets) != 3 {
		t.Fatalf("bets = %d, want 3", len(bets))
	}
	for i, acct := range accounts {
		if bets[i].Account != acct {
			t.Fatalf("position %d = %s, want %s", i, bets[i].Account, acct)
		}
	}

	b, err := st.GetBet(ctx, m.ID, "carol")
	if err != nil {
		t.Fatalf("GetBet: %v", err)
	}
	if b.Account != "carol" || b.Option != 1 {
		t.Fatalf("bet = %+v", b)
	}
	if _, err := st.GetBet(ctx, m.ID, "nobody"); !errors.Is(err, ErrBetNotFound) {
		t.Fatalf("missing bet: got %v", err)
	}
}

func TestDisputeLifecycle(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	m := newMarket("alice")
	if err := st.CreateMarket(ctx, m); err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}

	if _, err := st.GetDispute(ctx, m.ID); !errors.Is(err, ErrDisputeNotFound) {
		t.Fatalf("fresh market: got %v, want ErrDisputeNotFound", err)
	}

	d := &model.Dispute{
		ID:             "d1",
		MarketID:       m.ID,
		Challenger:     "eve",
		ProposedOption: 1,
		Stake:          dec("30"),
		Deadline:       m.CreatedAt.Add(28 * time.Hour),
		CreatedAt:      m.CreatedAt.Add(4 * time.Hour),
	}
	if err := st.CreateDispute(ctx, d); err != nil {
		t.Fatalf("CreateDispute: %v", err)
	}
	err := st.CreateDispute(ctx, &model.Dispute{ID: "d2", MarketID: m.ID, Challenger: "mallory", Stake: dec("10")})
	if !errors.Is(err, ErrDisputeExists) {
		t.Fatalf("second dispute: got %v, want ErrDisputeExists", err)
	}

	got, err := st.GetDispute(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetDispute: %v", err)
	}
	if got.Challenger != "eve" || got.Resolved {
		t.Fatalf("dispute = %+v", got)
	}

	if err := st.MarkDisputeResolved(ctx, m.ID); err != nil {
		t.Fatalf("MarkDisputeResolved: %v", err)
	}
	got, _ = st.GetDispute(ctx, m.ID)
	if !got.Resolved {
		t.Fatal("dispute not marked resolved")
	}
}

func TestAccountStatsAccumulate(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	stats, err := st.GetAccountStats(ctx, "ghost")
	if err != nil {
		t.Fatalf("GetAccountStats: %v", err)
	}
	if !stats.TotalStaked.IsZero() || !stats.TotalWinnings.IsZero() {
		t.Fatalf("unseen account stats = %+v", stats)
	}

	if err := st.AddStake(ctx, "bob", dec("10")); err != nil {
		t.Fatalf("AddStake: %v", err)
	}
	if err := st.AddStake(ctx, "bob", dec("10")); err != nil {
		t.Fatalf("AddStake: %v", err)
	}
	if err := st.AddWinnings(ctx, "bob", dec("65")); err != nil {
		t.Fatalf("AddWinnings: %v", err)
	}

	stats, _ = st.GetAccountStats(ctx, "bob")
	if !stats.TotalStaked.Equal(dec("20")) || !stats.TotalWinnings.Equal(dec("65")) {
		t.Fatalf("stats = staked %s winnings %s", stats.TotalStaked, stats.TotalWinnings)
	}
}
