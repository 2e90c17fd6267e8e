// Package providers normalizes heterogeneous inference back-ends behind a
// single submit/fetch contract. Each provider client owns the translation
// of generation parameters into its wire format and the extraction of an
// output URL from its response shape; nothing outside this package probes
// provider payloads.
package providers

import (
	"context"
	"encoding/json"

	"github.com/starikovprod-pixel/ai-vfx-backend/internal/domain"
)

// SubmitSpec carries everything a provider needs to accept a job.
type SubmitSpec struct {
	ModelRef string
	Prompt   string
	// Parameters are semantic generation options (duration, aspect_ratio,
	// generate_audio, ...); each client maps them to its own field names.
	Parameters map[string]any
	// SourceMediaURL is the primary input asset: a fetchable URL or an
	// inline data URI, already resolved by the caller.
	SourceMediaURL string
}

// ExternalJob is the provider's accept response.
type ExternalJob struct {
	ExternalID string
	Status     domain.JobStatus
}

// FetchSpec identifies a previously accepted job. ModelRef comes from the
// stored job record; some back-ends route status lookups through the
// model endpoint rather than a global id namespace.
type FetchSpec struct {
	ExternalID string
	ModelRef   string
}

// ExternalStatus is one observation of a submitted job.
type ExternalStatus struct {
	Status    domain.JobStatus
	OutputURL string
	ErrorText string
	// Raw is the untouched provider payload, kept for diagnostics only.
	Raw json.RawMessage
}

// Adapter is the uniform surface over one inference back-end.
type Adapter interface {
	Submit(ctx context.Context, spec SubmitSpec) (*ExternalJob, error)
	Fetch(ctx context.Context, spec FetchSpec) (*ExternalStatus, error)
}

// Registry dispatches on the provider tag of a job or preset.
type Registry map[domain.Provider]Adapter

// Adapter returns the client registered for p.
func (r Registry) Adapter(p domain.Provider) (Adapter, bool) {
	a, ok := r[p]
	return a, ok
}
