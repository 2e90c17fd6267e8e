package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/starikovprod-pixel/ai-vfx-backend/internal/domain"
)

// BalanceRepositoryPG is the credit ledger backed by PostgreSQL.
type BalanceRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewBalanceRepository creates a new balance repository backed by PostgreSQL.
func NewBalanceRepository(pool *pgxpool.Pool) *BalanceRepositoryPG {
	return &BalanceRepositoryPG{pool: pool}
}

// EnsureAccount lazily creates a zero-balance row. Safe to call
// unconditionally before Reserve.
func (r *BalanceRepositoryPG) EnsureAccount(ctx context.Context, userID string) error {
	query := `
INSERT INTO user_balances (user_id, credits)
VALUES ($1, 0)
ON CONFLICT (user_id) DO NOTHING;
`
	_, err := r.pool.Exec(ctx, query, userID)
	return err
}

// Reserve debits cost from the user's balance as one conditional
// decrement. The WHERE clause carries the whole concurrency guarantee:
// two overlapping reservations against the last cost worth of balance
// cannot both match, and the credits >= cost guard keeps the balance
// non-negative without any read-then-write window.
func (r *BalanceRepositoryPG) Reserve(ctx context.Context, userID string, cost int64) (int64, error) {
	query := `
UPDATE user_balances
SET credits = credits - $2
WHERE user_id = $1 AND credits >= $2
RETURNING credits;
`
	var remaining int64
	if err := r.pool.QueryRow(ctx, query, userID, cost).Scan(&remaining); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrInsufficientCredits
		}
		return 0, err
	}
	return remaining, nil
}

// Refund is the compensating inverse of Reserve, issued when a provider
// submission or job insert fails after a committed reservation.
func (r *BalanceRepositoryPG) Refund(ctx context.Context, userID string, cost int64) (int64, error) {
	query := `
UPDATE user_balances
SET credits = credits + $2
WHERE user_id = $1
RETURNING credits;
`
	var remaining int64
	if err := r.pool.QueryRow(ctx, query, userID, cost).Scan(&remaining); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, err
	}
	return remaining, nil
}

// Credits reads the current balance, reporting zero for users without an
// account row yet.
func (r *BalanceRepositoryPG) Credits(ctx context.Context, userID string) (int64, error) {
	var credits int64
	err := r.pool.QueryRow(ctx, `SELECT credits FROM user_balances WHERE user_id = $1;`, userID).Scan(&credits)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return credits, nil
}
