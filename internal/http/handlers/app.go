package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/starikovprod-pixel/ai-vfx-backend/internal/domain"
	"github.com/starikovprod-pixel/ai-vfx-backend/internal/generation"
	"github.com/starikovprod-pixel/ai-vfx-backend/internal/infra"
	"github.com/starikovprod-pixel/ai-vfx-backend/internal/middleware"
)

// GenerationService is the orchestration surface the handlers call.
type GenerationService interface {
	Submit(ctx context.Context, userID string, in generation.SubmitInput) (*generation.SubmitResult, error)
	Reconcile(ctx context.Context, userID, externalID string) (*generation.ReconcileResult, error)
}

// BalanceReader exposes the credit balance for profile views.
type BalanceReader interface {
	Credits(ctx context.Context, userID string) (int64, error)
}

// JobLister exposes recent jobs for profile views.
type JobLister interface {
	ListRecentByOwner(ctx context.Context, ownerID string, limit int) ([]domain.Job, error)
}

// ProfileStore persists per-user profile rows.
type ProfileStore interface {
	Ensure(ctx context.Context, userID string) error
	Get(ctx context.Context, userID string) (*domain.Profile, error)
	MarkPasswordSet(ctx context.Context, userID string) error
}

// App bundles handler dependencies.
type App struct {
	Service        GenerationService
	Balances       BalanceReader
	Jobs           JobLister
	Profiles       ProfileStore
	StorageBaseURL string
	InputsBucket   string
	Logger         infra.Logger
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, details string) {
	a.json(w, code, errorResponse{Error: kind, Details: details})
}

// fail maps a domain error onto the stable error taxonomy. Unrecognized
// errors are reported as internal without leaking their text.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnknownPreset):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid credential")
	case errors.Is(err, domain.ErrInsufficientCredits):
		a.error(w, http.StatusPaymentRequired, "payment_required", "insufficient credits")
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "unknown job")
	case errors.Is(err, domain.ErrProviderRejected), errors.Is(err, domain.ErrProviderUnreachable):
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("upstream failure")
		a.error(w, http.StatusBadGateway, "upstream_failed", err.Error())
	default:
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("internal failure")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (a *App) currentUser(r *http.Request) *domain.User {
	return middleware.UserFromContext(r.Context())
}
