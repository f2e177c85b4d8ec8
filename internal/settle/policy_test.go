package settle

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/prizepool/settlement-engine/internal/model"
)

func TestStakeWeightedPolicy(t *testing.T) {
	bets := []model.Bet{
		{Account: "a", Option: 0, Amount: dec("10")},
		{Account: "b", Option: 0, Amount: dec("10")},
		{Account: "c", Option: 1, Amount: dec("10")},
	}
	m := &model.Market{WinningOption: 0}

	cases := []struct {
		name  string
		stake string
		want  bool
	}{
		{"stake below backing", "15", false},
		{"stake equals backing", "20", false},
		{"stake above backing", "20.00000001", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := &model.Dispute{Stake: dec(tc.stake), ProposedOption: 1}
			if got := (StakeWeightedPolicy{}).Adjudicate(m, bets, d); got != tc.want {
				t.Fatalf("Adjudicate = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestOptionBacking(t *testing.T) {
	bets := []model.Bet{
		{Option: 0, Amount: dec("10")},
		{Option: 1, Amount: dec("10")},
		{Option: 0, Amount: dec("10")},
	}
	if got := OptionBacking(bets, 0); !got.Equal(dec("20")) {
		t.Fatalf("backing(0) = %s, want 20", got)
	}
	if got := OptionBacking(bets, 2); !got.IsZero() {
		t.Fatalf("backing(2) = %s, want 0", got)
	}
	if got := OptionBacking(nil, 0); !got.IsZero() {
		t.Fatalf("backing(empty) = %s, want 0", got)
	}
}

// alwaysOverturn upholds every dispute regardless of stakes.
type alwaysOverturn struct{}

func (alwaysOverturn) Adjudicate(*model.Market, []model.Bet, *model.Dispute) bool { return true }

// A custom policy replaces the stock weighting without touching the
// settlement flow.
func TestCustomPolicyPluggable(t *testing.T) {
	f := newEngineFixture(t)
	f.svc = NewService(f.store, f.ledger, f.clock, alwaysOverturn{}, DefaultParams(), nil)
	ctx := context.Background()

	m := f.openMarket(t, "alice", "10", "100")
	f.bet(t, m, "bob", 0)

	f.clock.Advance(3*time.Hour + time.Minute)
	if err := f.svc.Resolve(ctx, "alice", m.ID, 0); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	// A tiny stake that the stock policy would reject.
	f.ledger.Deposit("eve", dec("10"))
	d, err := f.svc.CreateDispute(ctx, "eve", m.ID, 1, decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("CreateDispute: %v", err)
	}

	f.clock.Set(d.Deadline.Add(time.Minute))
	if err := f.svc.Finalize(ctx, m.ID); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	got, _ := f.svc.GetMarket(ctx, m.ID)
	if got.WinningOption != 1 {
		t.Fatalf("custom policy ignored: winner=%d", got.WinningOption)
	}
}
