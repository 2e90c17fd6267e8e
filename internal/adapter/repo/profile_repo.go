package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/starikovprod-pixel/ai-vfx-backend/internal/domain"
)

// ProfileRepositoryPG stores per-user profile rows.
type ProfileRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewProfileRepository creates a new profile repository backed by PostgreSQL.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepositoryPG {
	return &ProfileRepositoryPG{pool: pool}
}

// Ensure lazily creates the profile row for a user.
func (r *ProfileRepositoryPG) Ensure(ctx context.Context, userID string) error {
	query := `
INSERT INTO user_profiles (user_id)
VALUES ($1)
ON CONFLICT (user_id) DO NOTHING;
`
	_, err := r.pool.Exec(ctx, query, userID)
	return err
}

// Get fetches the profile for a user.
func (r *ProfileRepositoryPG) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	row := r.pool.QueryRow(ctx, `SELECT user_id, has_password FROM user_profiles WHERE user_id = $1;`, userID)
	var p domain.Profile
	if err := row.Scan(&p.UserID, &p.HasPassword); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// MarkPasswordSet records that the user has configured a password. The
// flag only ever moves from false to true.
func (r *ProfileRepositoryPG) MarkPasswordSet(ctx context.Context, userID string) error {
	query := `
UPDATE user_profiles
SET has_password = true, updated_at = NOW()
WHERE user_id = $1;
`
	_, err := r.pool.Exec(ctx, query, userID)
	return err
}
