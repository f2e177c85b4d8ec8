package settle

import (
	"github.com/shopspring/decimal"

	"github.com/prizepool/settlement-engine/internal/model"
)

// AdjudicationPolicy decides a dispute once its deadline passes. It is a
// pure function of the market, its bets, and the dispute; the engine applies
// whatever outcome it returns. Pluggable so the weighting rule can be swapped
// without touching the state machine.
type AdjudicationPolicy interface {
	// Adjudicate returns true when the challenger's proposed option
	// overturns the original resolution.
	Adjudicate(m *model.Market, bets []model.Bet, d *model.Dispute) bool
}

// StakeWeightedPolicy compares the total bet amount backing the creator's
// winning option against the challenger's stake. Strictly greater backing
// wins; a tie keeps the original resolution, since the burden of proof is
// on the challenger.
type StakeWeightedPolicy struct{}

func (StakeWeightedPolicy) Adjudicate(m *model.Market, bets []model.Bet, d *model.Dispute) bool {
	backing := OptionBacking(bets, m.WinningOption)
	return d.Stake.GreaterThan(backing)
}

// OptionBacking sums the bet amounts on one option.
func OptionBacking(bets []model.Bet, option int) decimal.Decimal {
	total := decimal.Zero
	for _, b := range bets {
		if b.Option == option {
			total = total.Add(b.Amount)
		}
	}
	return total
}
