// Package generation composes the credit ledger, provider adapters and
// job store into the two end-to-end operations of the service: submitting
// a new generation job and reconciling provider-reported state into the
// stored record.
package generation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/starikovprod-pixel/ai-vfx-backend/internal/domain"
	"github.com/starikovprod-pixel/ai-vfx-backend/internal/infra"
	"github.com/starikovprod-pixel/ai-vfx-backend/internal/presets"
	"github.com/starikovprod-pixel/ai-vfx-backend/internal/providers"
)

// JobStore is the durable job persistence surface the service needs.
type JobStore interface {
	Create(ctx context.Context, job *domain.Job) error
	MergeStatus(ctx context.Context, provider domain.Provider, externalID string, observed domain.Observation) (*domain.Job, error)
	FindOwned(ctx context.Context, ownerID, externalID string) (*domain.Job, error)
}

// CreditLedger reserves and refunds user credits.
type CreditLedger interface {
	EnsureAccount(ctx context.Context, userID string) error
	Reserve(ctx context.Context, userID string, cost int64) (int64, error)
	Refund(ctx context.Context, userID string, cost int64) (int64, error)
}

// PresetResolver maps a preset reference to its provider/model tuple.
type PresetResolver func(id string) (*domain.Preset, error)

// Service implements job submission and reconciliation.
type Service struct {
	jobs            JobStore
	ledger          CreditLedger
	registry        providers.Registry
	resolvePreset   PresetResolver
	creditsEnforced bool
	logger          infra.Logger
}

// Options wires the service's collaborators.
type Options struct {
	Jobs            JobStore
	Ledger          CreditLedger
	Registry        providers.Registry
	ResolvePreset   PresetResolver
	CreditsEnforced bool
	Logger          infra.Logger
}

// NewService constructs the generation service.
func NewService(opts Options) *Service {
	resolve := opts.ResolvePreset
	if resolve == nil {
		resolve = presets.Resolve
	}
	return &Service{
		jobs:            opts.Jobs,
		ledger:          opts.Ledger,
		registry:        opts.Registry,
		resolvePreset:   resolve,
		creditsEnforced: opts.CreditsEnforced,
		logger:          opts.Logger,
	}
}

// SubmitInput is one submission request after transport decoding.
type SubmitInput struct {
	PresetID       string
	Scene          string
	Overrides      map[string]any
	SourceMediaURL string
}

// SubmitResult is returned to the caller on a successful submission.
type SubmitResult struct {
	ExternalID       string
	Status           domain.JobStatus
	RemainingCredits int64
}

// Submit runs the submission saga: resolve the preset, reserve credits,
// submit to the provider, persist the job. The reservation commits before
// the provider call so external cost is never incurred for a request the
// user cannot pay for; every failure after that commit issues a
// compensating refund, since the provider call cannot join the local
// transaction. A job record is only created once the provider has
// accepted, so a rejected submission never leaves an orphaned record.
func (s *Service) Submit(ctx context.Context, userID string, in SubmitInput) (*SubmitResult, error) {
	preset, err := s.resolvePreset(in.PresetID)
	if err != nil {
		return nil, err
	}
	adapter, ok := s.registry.Adapter(preset.Provider)
	if !ok {
		return nil, fmt.Errorf("provider %s is not configured: %w", preset.Provider, domain.ErrProviderUnreachable)
	}

	remaining := domain.UnmeteredCredits
	reserved := false
	if s.creditsEnforced {
		if err := s.ledger.EnsureAccount(ctx, userID); err != nil {
			return nil, fmt.Errorf("ensure account: %w", err)
		}
		remaining, err = s.ledger.Reserve(ctx, userID, preset.Cost)
		if err != nil {
			return nil, err
		}
		reserved = true
	}

	params := presets.MergeParameters(preset, in.Overrides)
	prompt := presets.RenderPrompt(preset, in.Scene)

	accepted, err := adapter.Submit(ctx, providers.SubmitSpec{
		ModelRef:       preset.ModelRef,
		Prompt:         prompt,
		Parameters:     params,
		SourceMediaURL: in.SourceMediaURL,
	})
	if err != nil {
		s.compensate(ctx, userID, preset.Cost, reserved, "provider submit failed")
		return nil, err
	}

	job := &domain.Job{
		ID:         uuid.NewString(),
		ExternalID: accepted.ExternalID,
		OwnerID:    userID,
		Provider:   preset.Provider,
		ModelRef:   preset.ModelRef,
		PromptText: prompt,
		Parameters: params,
		Status:     accepted.Status,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		s.compensate(ctx, userID, preset.Cost, reserved, "job create failed")
		return nil, fmt.Errorf("create job: %w", err)
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("preset_id", preset.ID).
		Str("provider", string(preset.Provider)).
		Str("external_id", accepted.ExternalID).
		Msg("generation: job submitted")

	return &SubmitResult{
		ExternalID:       accepted.ExternalID,
		Status:           accepted.Status,
		RemainingCredits: remaining,
	}, nil
}

// compensate credits back a committed reservation after a later step failed.
func (s *Service) compensate(ctx context.Context, userID string, cost int64, reserved bool, reason string) {
	if !reserved {
		return
	}
	if _, err := s.ledger.Refund(ctx, userID, cost); err != nil {
		// The refund itself failing is the one unrecoverable spot in the
		// saga; log loudly so the ledger can be repaired by hand.
		s.logger.Error().Err(err).
			Str("user_id", userID).
			Int64("cost", cost).
			Str("reason", reason).
			Msg("generation: compensating refund failed")
		return
	}
	s.logger.Warn().
		Str("user_id", userID).
		Int64("cost", cost).
		Str("reason", reason).
		Msg("generation: reservation refunded")
}

// ReconcileResult couples the merged durable record with the raw provider
// payload; the record is the source of truth, the payload is diagnostics.
type ReconcileResult struct {
	Job *domain.Job
	Raw json.RawMessage
}

// Reconcile polls the provider for one owned job and merges the observed
// state into the store. A fetch failure is surfaced to the caller and
// mutates nothing: state is never downgraded or erased on a failed poll.
func (s *Service) Reconcile(ctx context.Context, userID, externalID string) (*ReconcileResult, error) {
	job, err := s.jobs.FindOwned(ctx, userID, externalID)
	if err != nil {
		return nil, err
	}

	adapter, ok := s.registry.Adapter(job.Provider)
	if !ok {
		return nil, fmt.Errorf("provider %s is not configured: %w", job.Provider, domain.ErrProviderUnreachable)
	}

	observed, err := adapter.Fetch(ctx, providers.FetchSpec{
		ExternalID: job.ExternalID,
		ModelRef:   job.ModelRef,
	})
	if err != nil {
		return nil, err
	}

	merged, err := s.jobs.MergeStatus(ctx, job.Provider, job.ExternalID, domain.Observation{
		Status:    observed.Status,
		OutputURL: observed.OutputURL,
		ErrorText: observed.ErrorText,
	})
	if err != nil {
		return nil, fmt.Errorf("merge status: %w", err)
	}

	s.logger.Debug().
		Str("external_id", externalID).
		Str("observed_status", string(observed.Status)).
		Str("stored_status", string(merged.Status)).
		Msg("generation: job reconciled")

	return &ReconcileResult{Job: merged, Raw: observed.Raw}, nil
}
