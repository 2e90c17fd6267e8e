package repo

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/starikovprod-pixel/ai-vfx-backend/internal/domain"
)

// uniqueViolation is the PostgreSQL error code raised when the
// (provider, external_id) key already exists.
const uniqueViolation = "23505"

// jobColumns is the canonical select list shared by every job query.
const jobColumns = `id, external_id, owner_id, provider, model_ref, prompt_text, parameters, status, COALESCE(output_url, ''), COALESCE(error_text, ''), created_at, last_observed_at`

// JobRepositoryPG is the durable job store backed by PostgreSQL.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// Create inserts a new job record. A conflicting (provider, external_id)
// pair is an orchestrator bug, not a retry: external ids are freshly
// minted by the provider at submit time, so the insert fails loudly with
// domain.ErrDuplicateExternalID instead of overwriting.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	query := `
INSERT INTO jobs (id, external_id, owner_id, provider, model_ref, prompt_text, parameters, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.ExternalID,
		job.OwnerID,
		job.Provider,
		job.ModelRef,
		job.PromptText,
		job.ParametersJSON(),
		job.Status,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrDuplicateExternalID
		}
		return err
	}
	return nil
}

// MergeStatus folds one provider observation into the stored record with
// a single UPDATE: status moves forward only and freezes once terminal,
// output_url keeps the existing value when the observation has none, and
// error_text always takes the latest observation. Repeated or out-of-order
// applications are therefore commutative and idempotent. Returns
// domain.ErrNotFound when no record matches; a miss is never auto-created.
func (r *JobRepositoryPG) MergeStatus(ctx context.Context, provider domain.Provider, externalID string, observed domain.Observation) (*domain.Job, error) {
	query := `
UPDATE jobs
SET status = CASE
        WHEN status IN ('succeeded', 'failed') THEN status
        WHEN (CASE $3::text WHEN 'queued' THEN 1 WHEN 'succeeded' THEN 3 WHEN 'failed' THEN 3 ELSE 2 END)
          >= (CASE status   WHEN 'queued' THEN 1 WHEN 'succeeded' THEN 3 WHEN 'failed' THEN 3 ELSE 2 END)
        THEN $3::text
        ELSE status
    END,
    output_url = COALESCE($4, output_url),
    error_text = $5,
    last_observed_at = NOW()
WHERE provider = $1 AND external_id = $2
RETURNING ` + jobColumns + `;
`
	row := r.pool.QueryRow(ctx, query,
		provider,
		externalID,
		observed.Status,
		nullableString(observed.OutputURL),
		observed.ErrorText,
	)
	return scanJob(row)
}

// FindOwned fetches a job scoped to its owner. Absence of the row or a
// mismatched owner both report domain.ErrNotFound so existence of other
// users' external ids is never leaked.
func (r *JobRepositoryPG) FindOwned(ctx context.Context, ownerID, externalID string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE owner_id = $1 AND external_id = $2;`
	row := r.pool.QueryRow(ctx, query, ownerID, externalID)
	return scanJob(row)
}

// ListRecentByOwner returns the owner's newest jobs for profile views.
func (r *JobRepositoryPG) ListRecentByOwner(ctx context.Context, ownerID string, limit int) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2;`
	rows, err := r.pool.Query(ctx, query, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var params []byte
	if err := row.Scan(
		&job.ID,
		&job.ExternalID,
		&job.OwnerID,
		&job.Provider,
		&job.ModelRef,
		&job.PromptText,
		&params,
		&job.Status,
		&job.OutputURL,
		&job.ErrorText,
		&job.CreatedAt,
		&job.LastObservedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &job.Parameters); err != nil {
			job.Parameters = nil
		}
	}
	return &job, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
