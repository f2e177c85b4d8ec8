package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/prizepool/settlement-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS markets (
    id              BIGSERIAL PRIMARY KEY,
    creator         TEXT NOT NULL,
    question        TEXT NOT NULL,
    options         TEXT[] NOT NULL,
    entry_fee       NUMERIC NOT NULL,
    initial_pool    NUMERIC NOT NULL,
    pool            NUMERIC NOT NULL,
    open_until      TIMESTAMPTZ NOT NULL,
    resolvable_from TIMESTAMPTZ NOT NULL,
    phase           TEXT NOT NULL,
    winning_option  INT NOT NULL DEFAULT -1,
    resolved_at     TIMESTAMPTZ,
    settled         BOOLEAN NOT NULL DEFAULT FALSE,
    created_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS bets (
    id        TEXT PRIMARY KEY,
    seq       BIGSERIAL,
    market_id BIGINT NOT NULL REFERENCES markets(id),
    account   TEXT NOT NULL,
    option    INT NOT NULL,
    amount    NUMERIC NOT NULL,
    placed_at TIMESTAMPTZ NOT NULL,
    UNIQUE (market_id, account)
);
CREATE INDEX IF NOT EXISTS idx_bets_market ON bets(market_id, seq);

CREATE TABLE IF NOT EXISTS disputes (
    id              TEXT PRIMARY KEY,
    market_id       BIGINT NOT NULL UNIQUE REFERENCES markets(id),
    challenger      TEXT NOT NULL,
    proposed_option INT NOT NULL,
    stake           NUMERIC NOT NULL,
    deadline        TIMESTAMPTZ NOT NULL,
    resolved        BOOLEAN NOT NULL DEFAULT FALSE,
    created_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS account_stats (
    account        TEXT PRIMARY KEY,
    total_staked   NUMERIC NOT NULL DEFAULT 0,
    total_winnings NUMERIC NOT NULL DEFAULT 0
);
`

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies the schema. Idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	return err
}

const marketColumns = `id, creator, question, options,
        entry_fee::TEXT, initial_pool::TEXT, pool::TEXT,
        open_until, resolvable_from, phase, winning_option,
        resolved_at, settled, created_at`

func (s *PostgresStore) CreateMarket(ctx context.Context, m *model.Market) error {
	return s.pool.QueryRow(ctx,
		`INSERT INTO markets (creator, question, options, entry_fee, initial_pool, pool,
		                      open_until, resolvable_from, phase, winning_option, settled, created_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6::NUMERIC, $7, $8, $9, $10, $11, $12)
		 RETURNING id`,
		m.Creator, m.Question, m.Options,
		m.EntryFee.String(), m.InitialPool.String(), m.Pool.String(),
		m.OpenUntil, m.ResolvableFrom, m.Phase, m.WinningOption, m.Settled, m.CreatedAt,
	).Scan(&m.ID)
}

func (s *PostgresStore) GetMarket(ctx context.Context, id int64) (*model.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketColumns+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		return nil, fmt.Errorf("%w: %d", ErrMarketNotFound, id)
	}
	return m, nil
}

func (s *PostgresStore) ListMarkets(ctx context.Context) ([]model.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketColumns+` FROM markets ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var markets []model.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, *m)
	}
	return markets, rows.Err()
}

func (s *PostgresStore) UpdateMarket(ctx context.Context, m *model.Market) error {
	var resolvedAt *time.Time
	if !m.ResolvedAt.IsZero() {
		resolvedAt = &m.ResolvedAt
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE markets
		 SET pool = $2::NUMERIC, phase = $3, winning_option = $4, resolved_at = $5
		 WHERE id = $1`,
		m.ID, m.Pool.String(), m.Phase, m.WinningOption, resolvedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", ErrMarketNotFound, m.ID)
	}
	return nil
}

func (s *PostgresStore) MarkSettled(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE markets SET settled = TRUE, phase = $2
		 WHERE id = $1 AND settled = FALSE`,
		id, model.PhaseSettled,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) InsertBet(ctx context.Context, b *model.Bet) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO bets (id, market_id, account, option, amount, placed_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6)`,
		b.ID, b.MarketID, b.Account, b.Option, b.Amount.String(), b.PlacedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s on market %d", ErrDuplicateBet, b.Account, b.MarketID)
	}
	return err
}

func (s *PostgresStore) GetBet(ctx context.Context, marketID int64, account string) (*model.Bet, error) {
	var b model.Bet
	var amount string
	err := s.pool.QueryRow(ctx,
		`SELECT id, market_id, account, option, amount::TEXT, placed_at
		 FROM bets WHERE market_id = $1 AND account = $2`, marketID, account).
		Scan(&b.ID, &b.MarketID, &b.Account, &b.Option, &amount, &b.PlacedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %s on market %d", ErrBetNotFound, account, marketID)
	}
	b.Amount, _ = decimal.NewFromString(amount)
	return &b, nil
}

func (s *PostgresStore) ListBets(ctx context.Context, marketID int64) ([]model.Bet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, market_id, account, option, amount::TEXT, placed_at
		 FROM bets WHERE market_id = $1 ORDER BY seq`, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bets []model.Bet
	for rows.Next() {
		var b model.Bet
		var amount string
		if err := rows.Scan(&b.ID, &b.MarketID, &b.Account, &b.Option, &amount, &b.PlacedAt); err != nil {
			return nil, err
		}
		b.Amount, _ = decimal.NewFromString(amount)
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

func (s *PostgresStore) CreateDispute(ctx context.Context, d *model.Dispute) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO disputes (id, market_id, challenger, proposed_option, stake, deadline, resolved, created_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6, $7, $8)`,
		d.ID, d.MarketID, d.Challenger, d.ProposedOption,
		d.Stake.String(), d.Deadline, d.Resolved, d.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: market %d", ErrDisputeExists, d.MarketID)
	}
	return err
}

func (s *PostgresStore) GetDispute(ctx context.Context, marketID int64) (*model.Dispute, error) {
	var d model.Dispute
	var stake string
	err := s.pool.QueryRow(ctx,
		`SELECT id, market_id, challenger, proposed_option, stake::TEXT, deadline, resolved, created_at
		 FROM disputes WHERE market_id = $1`, marketID).
		Scan(&d.ID, &d.MarketID, &d.Challenger, &d.ProposedOption, &stake,
			&d.Deadline, &d.Resolved, &d.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: market %d", ErrDisputeNotFound, marketID)
	}
	d.Stake, _ = decimal.NewFromString(stake)
	return &d, nil
}

func (s *PostgresStore) MarkDisputeResolved(ctx context.Context, marketID int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE disputes SET resolved = TRUE WHERE market_id = $1`, marketID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: market %d", ErrDisputeNotFound, marketID)
	}
	return nil
}

func (s *PostgresStore) AddStake(ctx context.Context, account string, amount decimal.Decimal) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO account_stats (account, total_staked, total_winnings)
		 VALUES ($1, $2::NUMERIC, 0)
		 ON CONFLICT (account) DO UPDATE SET total_staked = account_stats.total_staked + EXCLUDED.total_staked`,
		account, amount.String(),
	)
	return err
}

func (s *PostgresStore) AddWinnings(ctx context.Context, account string, amount decimal.Decimal) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO account_stats (account, total_staked, total_winnings)
		 VALUES ($1, 0, $2::NUMERIC)
		 ON CONFLICT (account) DO UPDATE SET total_winnings = account_stats.total_winnings + EXCLUDED.total_winnings`,
		account, amount.String(),
	)
	return err
}

func (s *PostgresStore) GetAccountStats(ctx context.Context, account string) (*model.AccountStats, error) {
	st := &model.AccountStats{
		Account:       account,
		TotalStaked:   decimal.Zero,
		TotalWinnings: decimal.Zero,
	}
	var staked, winnings string
	err := s.pool.QueryRow(ctx,
		`SELECT total_staked::TEXT, total_winnings::TEXT
		 FROM account_stats WHERE account = $1`, account).
		Scan(&staked, &winnings)
	if err != nil {
		// Unseen accounts read as zeroes.
		return st, nil
	}
	st.TotalStaked, _ = decimal.NewFromString(staked)
	st.TotalWinnings, _ = decimal.NewFromString(winnings)
	return st, nil
}

// scanMarket reads one market row.
type pgxRow interface {
	Scan(dest ...interface{}) error
}

func scanMarket(row pgxRow) (*model.Market, error) {
	var m model.Market
	var entryFee, initialPool, pool string
	var resolvedAt *time.Time

	if err := row.Scan(&m.ID, &m.Creator, &m.Question, &m.Options,
		&entryFee, &initialPool, &pool,
		&m.OpenUntil, &m.ResolvableFrom, &m.Phase, &m.WinningOption,
		&resolvedAt, &m.Settled, &m.CreatedAt); err != nil {
		return nil, err
	}

	m.EntryFee, _ = decimal.NewFromString(entryFee)
	m.InitialPool, _ = decimal.NewFromString(initialPool)
	m.Pool, _ = decimal.NewFromString(pool)
	if resolvedAt != nil {
		m.ResolvedAt = *resolvedAt
	}
	return &m, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
