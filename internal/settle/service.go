// Package settle implements the market settlement engine: the lifecycle
// state machine for prize-pool prediction markets, the escrow accounting
// against the ledger, and the dispute/redistribution algorithm.
//
// All monetary values use shopspring/decimal — never float64 for money.
package settle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prizepool/settlement-engine/internal/clock"
	"github.com/prizepool/settlement-engine/internal/ledger"
	"github.com/prizepool/settlement-engine/internal/metrics"
	"github.com/prizepool/settlement-engine/internal/model"
	"github.com/prizepool/settlement-engine/internal/store"
)

// payoutScale is the decimal precision payout shares are truncated to. The
// division remainder goes to the first winner in bet order so the pool is
// always disbursed exactly.
const payoutScale = 8

// Params are the tunable settlement constants. They are configuration, not
// algorithm: adjudication weighting reads them but never hard-codes them.
type Params struct {
	// MinLead is the minimum gap between market creation and both the
	// close time and the resolution time.
	MinLead time.Duration

	// DisputeWindow bounds both how long after resolution a dispute may be
	// opened and how long an open dispute waits before adjudication.
	DisputeWindow time.Duration

	// MinDisputeBond is the smallest stake a challenger may post.
	MinDisputeBond decimal.Decimal

	// DisputeBonusRate sizes the bonus (as a fraction of the stake, drawn
	// from the pool) paid to a challenger whose dispute succeeds.
	DisputeBonusRate decimal.Decimal
}

// DefaultParams returns the stock settlement constants.
func DefaultParams() Params {
	return Params{
		MinLead:          time.Hour,
		DisputeWindow:    24 * time.Hour,
		MinDisputeBond:   decimal.NewFromInt(10),
		DisputeBonusRate: decimal.NewFromFloat(0.5),
	}
}

// Service is the settlement engine. A single mutex serializes all mutating
// operations (single-instance); for horizontal scaling, replace with
// per-market locking or database-level optimistic concurrency. Time-based
// transitions are evaluated lazily on each call — there is no background
// timer, so Finalize only runs when a caller invokes it.
type Service struct {
	store  store.Store
	ledger ledger.Ledger
	clock  clock.Clock
	policy AdjudicationPolicy
	params Params
	mu     sync.Mutex
	wsHub  *WSHub // optional hub for lifecycle event broadcasts
}

// NewService creates a settlement engine. Pass nil for policy to use the
// stock StakeWeightedPolicy, and nil for hub if event broadcasting is not
// needed.
func NewService(st store.Store, led ledger.Ledger, clk clock.Clock, policy AdjudicationPolicy, params Params, hub *WSHub) *Service {
	if policy == nil {
		policy = StakeWeightedPolicy{}
	}
	return &Service{
		store:  st,
		ledger: led,
		clock:  clk,
		policy: policy,
		params: params,
		wsHub:  hub,
	}
}

// --- Mutations ---

// CreateMarket opens a new market in the Open phase and escrows the
// creator's initial pool seed.
func (s *Service) CreateMarket(ctx context.Context, creator, question string, options []string,
	entryFee, initialPool decimal.Decimal, openUntil, resolvableFrom time.Time) (*model.Market, error) {

	if len(options) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 options, got %d", ErrInvalidOptions, len(options))
	}
	seen := make(map[string]bool, len(options))
	for _, opt := range options {
		if seen[opt] {
			return nil, fmt.Errorf("%w: duplicate label %q", ErrInvalidOptions, opt)
		}
		seen[opt] = true
	}
	if !entryFee.IsPositive() {
		return nil, fmt.Errorf("%w: entry fee %s", ErrInvalidFee, entryFee)
	}
	if initialPool.IsNegative() {
		return nil, fmt.Errorf("%w: initial pool %s", ErrInvalidFee, initialPool)
	}

	now := s.clock.Now()
	if openUntil.Before(now.Add(s.params.MinLead)) {
		return nil, fmt.Errorf("%w: close time must be at least %s away", ErrInvalidSchedule, s.params.MinLead)
	}
	if resolvableFrom.Before(openUntil) {
		return nil, fmt.Errorf("%w: resolution time before close time", ErrInvalidSchedule)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if initialPool.IsPositive() {
		if err := s.ledger.Escrow(ctx, creator, initialPool); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLedger, err)
		}
	}

	m := &model.Market{
		Creator:        creator,
		Question:       question,
		Options:        append([]string(nil), options...),
		EntryFee:       entryFee,
		InitialPool:    initialPool,
		Pool:           initialPool,
		OpenUntil:      openUntil,
		ResolvableFrom: resolvableFrom,
		Phase:          model.PhaseOpen,
		WinningOption:  model.NoWinningOption,
		CreatedAt:      now,
	}

	if err := s.store.CreateMarket(ctx, m); err != nil {
		// Return the seed rather than stranding it in custody.
		if initialPool.IsPositive() {
			if rerr := s.ledger.Payout(ctx, creator, initialPool); rerr != nil {
				slog.Error("escrow compensation failed", "creator", creator, "amount", initialPool.String(), "err", rerr)
			}
		}
		return nil, err
	}

	metrics.MarketsCreated.Inc()
	slog.Info("market created",
		"id", m.ID,
		"creator", creator,
		"options", len(options),
		"entry_fee", entryFee.String(),
		"initial_pool", initialPool.String(),
	)
	s.broadcast(WSMessage{Type: "market_created", MarketID: m.ID, Account: creator, Pool: m.Pool.String(), Phase: m.Phase})
	return m, nil
}

// PlaceBet escrows the entry fee and records an account's single bet on a
// market. The market auto-transitions Open→Closed the first time any
// mutating operation observes the close time has passed.
func (s *Service) PlaceBet(ctx context.Context, account string, marketID int64, option int, amount decimal.Decimal) (*model.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := s.syncPhase(ctx, m, now); err != nil {
		return nil, err
	}
	if m.Phase != model.PhaseOpen {
		return nil, fmt.Errorf("%w: market %d", ErrMarketClosed, marketID)
	}
	if !m.ValidOption(option) {
		return nil, fmt.Errorf("%w: index %d of %d options", ErrInvalidOption, option, len(m.Options))
	}
	if !amount.Equal(m.EntryFee) {
		return nil, fmt.Errorf("%w: got %s, entry fee is %s", ErrWrongAmount, amount, m.EntryFee)
	}
	if _, err := s.store.GetBet(ctx, marketID, account); err == nil {
		return nil, fmt.Errorf("%w: %s on market %d", ErrDuplicateBet, account, marketID)
	}

	if err := s.ledger.Escrow(ctx, account, amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedger, err)
	}

	bet := &model.Bet{
		ID:       uuid.New().String(),
		MarketID: marketID,
		Account:  account,
		Option:   option,
		Amount:   amount,
		PlacedAt: now,
	}
	if err := s.store.InsertBet(ctx, bet); err != nil {
		if rerr := s.ledger.Payout(ctx, account, amount); rerr != nil {
			slog.Error("escrow compensation failed", "account", account, "amount", amount.String(), "err", rerr)
		}
		return nil, mapStoreErr(err)
	}

	m.Pool = m.Pool.Add(amount)
	if err := s.store.UpdateMarket(ctx, m); err != nil {
		return nil, err
	}
	if err := s.store.AddStake(ctx, account, amount); err != nil {
		return nil, err
	}

	metrics.BetsPlaced.Inc()
	slog.Info("bet placed",
		"market", marketID,
		"account", account,
		"option", option,
		"amount", amount.String(),
		"pool", m.Pool.String(),
	)
	s.broadcast(WSMessage{Type: "bet_placed", MarketID: marketID, Account: account, Option: option, Pool: m.Pool.String(), Phase: m.Phase})
	return bet, nil
}

// Resolve stages the creator's resolution and opens the dispute window.
// Distribution is deferred until Finalize observes the window closed, so a
// valid dispute never has to claw funds back.
func (s *Service) Resolve(ctx context.Context, caller string, marketID int64, winningOption int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadMarket(ctx, marketID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	if err := s.syncPhase(ctx, m, now); err != nil {
		return err
	}

	switch m.Phase {
	case model.PhaseResolved, model.PhaseDisputed, model.PhaseSettled:
		return fmt.Errorf("%w: market %d", ErrAlreadyResolved, marketID)
	case model.PhaseOpen:
		return fmt.Errorf("%w: market %d still open for betting", ErrMarketClosed, marketID)
	}
	if now.Before(m.ResolvableFrom) {
		return fmt.Errorf("%w: market %d not resolvable until %s", ErrMarketClosed, marketID, m.ResolvableFrom)
	}
	if caller != m.Creator {
		return fmt.Errorf("%w: only creator %s may resolve", ErrUnauthorized, m.Creator)
	}
	if !m.ValidOption(winningOption) {
		return fmt.Errorf("%w: index %d of %d options", ErrInvalidOption, winningOption, len(m.Options))
	}

	m.Phase = model.PhaseResolved
	m.WinningOption = winningOption
	m.ResolvedAt = now
	if err := s.store.UpdateMarket(ctx, m); err != nil {
		return err
	}

	metrics.MarketsResolved.Inc()
	slog.Info("market resolved",
		"market", marketID,
		"winning_option", winningOption,
		"dispute_window_until", now.Add(s.params.DisputeWindow),
	)
	s.broadcast(WSMessage{Type: "market_resolved", MarketID: marketID, Option: winningOption, Pool: m.Pool.String(), Phase: m.Phase})
	return nil
}

// CreateDispute posts a staked counter-claim against the creator's
// resolution, within the dispute window.
func (s *Service) CreateDispute(ctx context.Context, challenger string, marketID int64, proposedOption int, stake decimal.Decimal) (*model.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	switch m.Phase {
	case model.PhaseDisputed:
		return nil, fmt.Errorf("%w: market %d", ErrDisputeExists, marketID)
	case model.PhaseSettled:
		return nil, fmt.Errorf("%w: market %d settled", ErrDisputeWindowClosed, marketID)
	case model.PhaseResolved:
		// fall through
	default:
		return nil, fmt.Errorf("%w: market %d not resolved", ErrMarketClosed, marketID)
	}
	if !now.Before(m.ResolvedAt.Add(s.params.DisputeWindow)) {
		return nil, fmt.Errorf("%w: market %d", ErrDisputeWindowClosed, marketID)
	}
	if challenger == m.Creator {
		return nil, fmt.Errorf("%w: creator cannot dispute own resolution", ErrUnauthorized)
	}
	if !m.ValidOption(proposedOption) {
		return nil, fmt.Errorf("%w: index %d of %d options", ErrInvalidOption, proposedOption, len(m.Options))
	}
	if proposedOption == m.WinningOption {
		return nil, fmt.Errorf("%w: option %d already won", ErrNoChange, proposedOption)
	}
	if stake.LessThan(s.params.MinDisputeBond) {
		return nil, fmt.Errorf("%w: got %s, minimum bond is %s", ErrInsufficientStake, stake, s.params.MinDisputeBond)
	}

	if err := s.ledger.Escrow(ctx, challenger, stake); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedger, err)
	}

	d := &model.Dispute{
		ID:             uuid.New().String(),
		MarketID:       marketID,
		Challenger:     challenger,
		ProposedOption: proposedOption,
		Stake:          stake,
		Deadline:       now.Add(s.params.DisputeWindow),
		CreatedAt:      now,
	}
	if err := s.store.CreateDispute(ctx, d); err != nil {
		if rerr := s.ledger.Payout(ctx, challenger, stake); rerr != nil {
			slog.Error("escrow compensation failed", "account", challenger, "amount", stake.String(), "err", rerr)
		}
		return nil, mapStoreErr(err)
	}

	m.Phase = model.PhaseDisputed
	if err := s.store.UpdateMarket(ctx, m); err != nil {
		return nil, err
	}

	metrics.DisputesOpened.Inc()
	slog.Info("dispute opened",
		"market", marketID,
		"challenger", challenger,
		"proposed_option", proposedOption,
		"stake", stake.String(),
		"deadline", d.Deadline,
	)
	s.broadcast(WSMessage{Type: "dispute_opened", MarketID: marketID, Account: challenger, Option: proposedOption, Pool: m.Pool.String(), Phase: m.Phase})
	return d, nil
}

// Finalize distributes the pool once the relevant deadline has passed.
// Idempotent: a settled market is a safe no-op, and a market whose deadlines
// have not elapsed is left untouched.
func (s *Service) Finalize(ctx context.Context, marketID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadMarket(ctx, marketID)
	if err != nil {
		return err
	}
	if m.Settled {
		return nil
	}

	now := s.clock.Now()
	if err := s.syncPhase(ctx, m, now); err != nil {
		return err
	}

	switch m.Phase {
	case model.PhaseResolved:
		if now.Before(m.ResolvedAt.Add(s.params.DisputeWindow)) {
			return nil
		}
		return s.settle(ctx, m, nil)

	case model.PhaseDisputed:
		d, err := s.store.GetDispute(ctx, marketID)
		if err != nil {
			return mapStoreErr(err)
		}
		if now.Before(d.Deadline) {
			return nil
		}
		return s.adjudicateAndSettle(ctx, m, d)

	default:
		return nil
	}
}

// adjudicateAndSettle resolves a dispute past its deadline and settles the
// market under the adjudicated option.
func (s *Service) adjudicateAndSettle(ctx context.Context, m *model.Market, d *model.Dispute) error {
	bets, err := s.store.ListBets(ctx, m.ID)
	if err != nil {
		return err
	}

	var extra []payout
	if s.policy.Adjudicate(m, bets, d) {
		// Challenger wins: resolution overturned, stake returned in full
		// plus a bonus drawn from the pool.
		m.WinningOption = d.ProposedOption
		bonus := d.Stake.Mul(s.params.DisputeBonusRate).Truncate(payoutScale)
		if bonus.GreaterThan(m.Pool) {
			bonus = m.Pool
		}
		m.Pool = m.Pool.Sub(bonus)
		extra = append(extra, payout{
			account:  d.Challenger,
			amount:   d.Stake.Add(bonus),
			winnings: bonus,
		})
		metrics.DisputesUpheld.Inc()
		slog.Info("dispute upheld",
			"market", m.ID,
			"new_winning_option", d.ProposedOption,
			"bonus", bonus.String(),
		)
	} else {
		// Original resolution stands; the stake is forfeited into the pool.
		m.Pool = m.Pool.Add(d.Stake)
		metrics.DisputesRejected.Inc()
		slog.Info("dispute rejected",
			"market", m.ID,
			"winning_option", m.WinningOption,
			"forfeited", d.Stake.String(),
		)
	}

	return s.settleWith(ctx, m, bets, extra, d)
}

// payout is one pending transfer plus the portion counted as winnings.
type payout struct {
	account  string
	amount   decimal.Decimal
	winnings decimal.Decimal
}

func (s *Service) settle(ctx context.Context, m *model.Market, extra []payout) error {
	bets, err := s.store.ListBets(ctx, m.ID)
	if err != nil {
		return err
	}
	return s.settleWith(ctx, m, bets, extra, nil)
}

// settleWith disburses the pool as a single all-or-nothing batch. The settled
// flag is checked-and-set directly after the batch lands, before any other
// store write, so a retry after a partial failure finds the flag set and
// never replays the batch. With winners the pool is split equally (all stakes
// equal the entry fee); with none, every bettor is refunded and the residual
// pool returns to the creator so no funds strand.
func (s *Service) settleWith(ctx context.Context, m *model.Market, bets []model.Bet, extra []payout, d *model.Dispute) error {
	var winners []model.Bet
	for _, b := range bets {
		if b.Option == m.WinningOption {
			winners = append(winners, b)
		}
	}

	payouts := extra
	if len(winners) == 0 {
		refunded := decimal.Zero
		for _, b := range bets {
			payouts = append(payouts, payout{account: b.Account, amount: b.Amount})
			refunded = refunded.Add(b.Amount)
		}
		if residual := m.Pool.Sub(refunded); residual.IsPositive() {
			payouts = append(payouts, payout{account: m.Creator, amount: residual})
		}
	} else {
		n := decimal.NewFromInt(int64(len(winners)))
		share := m.Pool.Div(n).Truncate(payoutScale)
		remainder := m.Pool.Sub(share.Mul(n))
		for i, w := range winners {
			amount := share
			if i == 0 {
				amount = amount.Add(remainder)
			}
			payouts = append(payouts, payout{account: w.Account, amount: amount, winnings: amount})
		}
	}

	transfers := make([]ledger.Transfer, 0, len(payouts))
	for _, p := range payouts {
		if p.amount.IsPositive() {
			transfers = append(transfers, ledger.Transfer{To: p.account, Amount: p.amount})
		}
	}
	if len(transfers) > 0 {
		if err := s.ledger.PayoutBatch(ctx, transfers); err != nil {
			return fmt.Errorf("%w: %v", ErrLedger, err)
		}
	}

	// Flip the settled flag before touching anything else. Payouts can only
	// be replayed while the flag is unset, so nothing fallible may sit
	// between the batch and this check-and-set.
	ok, err := s.store.MarkSettled(ctx, m.ID)
	if err != nil {
		return err
	}
	if !ok {
		slog.Error("settled flag already set after payout", "market", m.ID)
	}
	m.Settled = true

	if d != nil {
		if err := s.store.MarkDisputeResolved(ctx, m.ID); err != nil {
			return err
		}
	}

	for _, p := range payouts {
		if p.winnings.IsPositive() {
			if err := s.store.AddWinnings(ctx, p.account, p.winnings); err != nil {
				return err
			}
		}
	}

	disbursed := m.Pool
	m.Pool = decimal.Zero
	m.Phase = model.PhaseSettled
	if err := s.store.UpdateMarket(ctx, m); err != nil {
		return err
	}

	metrics.MarketsSettled.Inc()
	metrics.PayoutLegs.Add(float64(len(transfers)))
	slog.Info("market settled",
		"market", m.ID,
		"winning_option", m.WinningOption,
		"winners", len(winners),
		"disbursed", disbursed.String(),
		"transfers", len(transfers),
	)
	s.broadcast(WSMessage{Type: "market_settled", MarketID: m.ID, Option: m.WinningOption, Pool: "0", Phase: m.Phase})
	return nil
}

// --- Internal helpers ---

func (s *Service) loadMarket(ctx context.Context, id int64) (*model.Market, error) {
	m, err := s.store.GetMarket(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return m, nil
}

// syncPhase persists the lazy Open→Closed transition when the close time has
// passed. Only mutating operations call this; queries derive the phase
// without writing it back.
func (s *Service) syncPhase(ctx context.Context, m *model.Market, now time.Time) error {
	if m.Phase == model.PhaseOpen && !now.Before(m.OpenUntil) {
		m.Phase = model.PhaseClosed
		if err := s.store.UpdateMarket(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) broadcast(msg WSMessage) {
	if s.wsHub != nil {
		s.wsHub.Broadcast(msg)
	}
}

func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, store.ErrMarketNotFound),
		errors.Is(err, store.ErrBetNotFound),
		errors.Is(err, store.ErrDisputeNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, store.ErrDuplicateBet):
		return fmt.Errorf("%w: %v", ErrDuplicateBet, err)
	case errors.Is(err, store.ErrDisputeExists):
		return fmt.Errorf("%w: %v", ErrDisputeExists, err)
	}
	return err
}
