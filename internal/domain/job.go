package domain

import (
	"encoding/json"
	"time"
)

// Provider enumerates the external inference back-ends a job can run on.
type Provider string

const (
	// ProviderReplicate is the polling-based prediction API.
	ProviderReplicate Provider = "replicate"
	// ProviderFal is the synchronous-submit request API.
	ProviderFal Provider = "fal"
)

// Valid reports whether p is a known provider tag.
func (p Provider) Valid() bool {
	return p == ProviderReplicate || p == ProviderFal
}

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusSucceeded  JobStatus = "succeeded"
	JobStatusFailed     JobStatus = "failed"
)

// Rank places statuses on the total order queued < processing < terminal.
// Both terminal states share the maximal rank; an unknown status ranks as
// processing so a garbled provider report never blocks the state machine.
func (s JobStatus) Rank() int {
	switch s {
	case JobStatusQueued:
		return 1
	case JobStatusSucceeded, JobStatusFailed:
		return 3
	default:
		return 2
	}
}

// Terminal reports whether no further transition may be applied.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// Merge returns the status to store after observing next. Transitions are
// forward-only: a terminal status is frozen and a lower-ranked observation
// is ignored, so repeated or out-of-order application is idempotent.
func (s JobStatus) Merge(next JobStatus) JobStatus {
	if s.Terminal() {
		return s
	}
	if next.Rank() >= s.Rank() {
		return next
	}
	return s
}

// Job is the canonical record of one generation request.
type Job struct {
	ID             string
	ExternalID     string
	OwnerID        string
	Provider       Provider
	ModelRef       string
	PromptText     string
	Parameters     map[string]any
	Status         JobStatus
	OutputURL      string
	ErrorText      string
	CreatedAt      time.Time
	LastObservedAt time.Time
}

// ParametersJSON marshals the parameter map for JSONB storage, treating a
// nil map as an empty object.
func (j *Job) ParametersJSON() []byte {
	if len(j.Parameters) == 0 {
		return []byte("{}")
	}
	b, err := json.Marshal(j.Parameters)
	if err != nil {
		return []byte("{}")
	}
	return b
}

// Observation is one provider-reported view of a job, merged into the
// stored record by the job store.
type Observation struct {
	Status    JobStatus
	OutputURL string
	ErrorText string
}
