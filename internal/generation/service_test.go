package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/starikovprod-pixel/ai-vfx-backend/internal/domain"
	"github.com/starikovprod-pixel/ai-vfx-backend/internal/providers"
)

type memJobs struct {
	mu   sync.Mutex
	rows map[string]*domain.Job
}

func newMemJobs() *memJobs {
	return &memJobs{rows: make(map[string]*domain.Job)}
}

func jobKey(p domain.Provider, externalID string) string {
	return string(p) + "/" + externalID
}

func (m *memJobs) Create(ctx context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := jobKey(job.Provider, job.ExternalID)
	if _, exists := m.rows[key]; exists {
		return domain.ErrDuplicateExternalID
	}
	cp := *job
	m.rows[key] = &cp
	return nil
}

func (m *memJobs) MergeStatus(ctx context.Context, provider domain.Provider, externalID string, observed domain.Observation) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.rows[jobKey(provider, externalID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	job.Status = job.Status.Merge(observed.Status)
	if observed.OutputURL != "" {
		job.OutputURL = observed.OutputURL
	}
	job.ErrorText = observed.ErrorText
	cp := *job
	return &cp, nil
}

func (m *memJobs) FindOwned(ctx context.Context, ownerID, externalID string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, job := range m.rows {
		if job.ExternalID == externalID && job.OwnerID == ownerID {
			cp := *job
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// memLedger implements the same conditional-decrement contract as the
// SQL ledger: the check and the subtraction are one critical section.
type memLedger struct {
	mu       sync.Mutex
	balances map[string]int64
	refunds  int
}

func newMemLedger() *memLedger {
	return &memLedger{balances: make(map[string]int64)}
}

func (m *memLedger) EnsureAccount(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.balances[userID]; !ok {
		m.balances[userID] = 0
	}
	return nil
}

func (m *memLedger) Reserve(ctx context.Context, userID string, cost int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[userID] < cost {
		return 0, domain.ErrInsufficientCredits
	}
	m.balances[userID] -= cost
	return m.balances[userID], nil
}

func (m *memLedger) Refund(ctx context.Context, userID string, cost int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] += cost
	m.refunds++
	return m.balances[userID], nil
}

func (m *memLedger) balance(userID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID]
}

type scriptedAdapter struct {
	mu        sync.Mutex
	submitErr error
	fetchErr  error
	nextID    int
	observed  providers.ExternalStatus
}

func (a *scriptedAdapter) Submit(ctx context.Context, spec providers.SubmitSpec) (*providers.ExternalJob, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.submitErr != nil {
		return nil, a.submitErr
	}
	a.nextID++
	return &providers.ExternalJob{
		ExternalID: fmt.Sprintf("ext-%d", a.nextID),
		Status:     domain.JobStatusQueued,
	}, nil
}

func (a *scriptedAdapter) Fetch(ctx context.Context, spec providers.FetchSpec) (*providers.ExternalStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fetchErr != nil {
		return nil, a.fetchErr
	}
	st := a.observed
	return &st, nil
}

func (a *scriptedAdapter) observe(st providers.ExternalStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observed = st
}

func testService(jobs JobStore, ledger CreditLedger, adapter providers.Adapter, enforced bool) *Service {
	return NewService(Options{
		Jobs:   jobs,
		Ledger: ledger,
		Registry: providers.Registry{
			domain.ProviderReplicate: adapter,
			domain.ProviderFal:       adapter,
		},
		CreditsEnforced: enforced,
		Logger:          zerolog.New(io.Discard),
	})
}

func TestSubmitCreatesJobAndDebits(t *testing.T) {
	jobs := newMemJobs()
	ledger := newMemLedger()
	ledger.balances["u1"] = 3
	adapter := &scriptedAdapter{}
	svc := testService(jobs, ledger, adapter, true)

	res, err := svc.Submit(context.Background(), "u1", SubmitInput{PresetID: "vfx_plate_locked", Scene: "a cat"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Status != domain.JobStatusQueued {
		t.Fatalf("status = %s", res.Status)
	}
	if res.RemainingCredits != 2 {
		t.Fatalf("remaining = %d, want 2", res.RemainingCredits)
	}
	job, err := jobs.FindOwned(context.Background(), "u1", res.ExternalID)
	if err != nil {
		t.Fatalf("find owned: %v", err)
	}
	if job.Status != domain.JobStatusQueued || job.OutputURL != "" {
		t.Fatalf("job = %+v", job)
	}
	if job.PromptText != "cinematic realistic a cat, locked camera, stable composition, film-like contrast" {
		t.Fatalf("prompt = %q", job.PromptText)
	}
}

func TestSubmitUnknownPreset(t *testing.T) {
	svc := testService(newMemJobs(), newMemLedger(), &scriptedAdapter{}, false)
	_, err := svc.Submit(context.Background(), "u1", SubmitInput{PresetID: "nope"})
	if !errors.Is(err, domain.ErrUnknownPreset) {
		t.Fatalf("err = %v, want ErrUnknownPreset", err)
	}
}

func TestSubmitInsufficientCreditsSkipsProvider(t *testing.T) {
	jobs := newMemJobs()
	ledger := newMemLedger()
	adapter := &scriptedAdapter{}
	svc := testService(jobs, ledger, adapter, true)

	_, err := svc.Submit(context.Background(), "broke", SubmitInput{PresetID: "vfx_plate_locked"})
	if !errors.Is(err, domain.ErrInsufficientCredits) {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}
	if adapter.nextID != 0 {
		t.Fatalf("provider was called despite failed reservation")
	}
}

func TestSubmitRefundsOnProviderRejection(t *testing.T) {
	for _, provErr := range []error{domain.ErrProviderRejected, domain.ErrProviderUnreachable} {
		jobs := newMemJobs()
		ledger := newMemLedger()
		ledger.balances["u1"] = 5
		adapter := &scriptedAdapter{submitErr: fmt.Errorf("boom: %w", provErr)}
		svc := testService(jobs, ledger, adapter, true)

		_, err := svc.Submit(context.Background(), "u1", SubmitInput{PresetID: "vfx_plate_locked"})
		if !errors.Is(err, provErr) {
			t.Fatalf("err = %v, want %v", err, provErr)
		}
		if got := ledger.balance("u1"); got != 5 {
			t.Fatalf("balance after refund = %d, want 5", got)
		}
		if len(jobs.rows) != 0 {
			t.Fatalf("job record created for rejected submission")
		}
	}
}

func TestSubmitRefundsOnStoreFailure(t *testing.T) {
	jobs := newMemJobs()
	// Pre-seed the key the adapter will mint so Create fails loudly.
	jobs.rows[jobKey(domain.ProviderReplicate, "ext-1")] = &domain.Job{ExternalID: "ext-1", Provider: domain.ProviderReplicate}
	ledger := newMemLedger()
	ledger.balances["u1"] = 5
	svc := testService(jobs, ledger, &scriptedAdapter{}, true)

	_, err := svc.Submit(context.Background(), "u1", SubmitInput{PresetID: "vfx_plate_locked"})
	if !errors.Is(err, domain.ErrDuplicateExternalID) {
		t.Fatalf("err = %v, want ErrDuplicateExternalID", err)
	}
	if got := ledger.balance("u1"); got != 5 {
		t.Fatalf("balance after refund = %d, want 5", got)
	}
}

func TestSubmitUnmeteredSkipsLedger(t *testing.T) {
	jobs := newMemJobs()
	ledger := newMemLedger()
	adapter := &scriptedAdapter{submitErr: fmt.Errorf("down: %w", domain.ErrProviderUnreachable)}
	svc := testService(jobs, ledger, adapter, false)

	_, err := svc.Submit(context.Background(), "u1", SubmitInput{PresetID: "vfx_plate_locked"})
	if !errors.Is(err, domain.ErrProviderUnreachable) {
		t.Fatalf("err = %v", err)
	}
	if ledger.refunds != 0 {
		t.Fatalf("refund issued while unmetered")
	}

	adapter.submitErr = nil
	res, err := svc.Submit(context.Background(), "u1", SubmitInput{PresetID: "vfx_plate_locked"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.RemainingCredits != domain.UnmeteredCredits {
		t.Fatalf("remaining = %d, want unmetered sentinel", res.RemainingCredits)
	}
}

func TestConcurrentReservations(t *testing.T) {
	const balance, cost, extra = 7, 2, 4
	jobs := newMemJobs()
	ledger := newMemLedger()
	ledger.balances["u1"] = balance
	svc := testService(jobs, ledger, &scriptedAdapter{}, true)

	attempts := balance/cost + extra
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Submit(context.Background(), "u1", SubmitInput{PresetID: "vfx_video_restyle"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, insufficient int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrInsufficientCredits):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != balance/cost {
		t.Fatalf("successes = %d, want %d", ok, balance/cost)
	}
	if insufficient != attempts-balance/cost {
		t.Fatalf("insufficient = %d, want %d", insufficient, attempts-balance/cost)
	}
	if got := ledger.balance("u1"); got != balance%cost {
		t.Fatalf("final balance = %d, want %d", got, balance%cost)
	}
}

func TestReconcileOwnershipIsolation(t *testing.T) {
	jobs := newMemJobs()
	adapter := &scriptedAdapter{}
	svc := testService(jobs, newMemLedger(), adapter, false)

	res, err := svc.Submit(context.Background(), "alice", SubmitInput{PresetID: "vfx_plate_locked"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := svc.Reconcile(context.Background(), "bob", res.ExternalID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestReconcileFetchFailureMutatesNothing(t *testing.T) {
	jobs := newMemJobs()
	adapter := &scriptedAdapter{}
	svc := testService(jobs, newMemLedger(), adapter, false)

	res, err := svc.Submit(context.Background(), "u1", SubmitInput{PresetID: "vfx_plate_locked"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	adapter.fetchErr = fmt.Errorf("timeout: %w", domain.ErrProviderUnreachable)
	if _, err := svc.Reconcile(context.Background(), "u1", res.ExternalID); !errors.Is(err, domain.ErrProviderUnreachable) {
		t.Fatalf("err = %v, want ErrProviderUnreachable", err)
	}

	job, err := jobs.FindOwned(context.Background(), "u1", res.ExternalID)
	if err != nil {
		t.Fatalf("find owned: %v", err)
	}
	if job.Status != domain.JobStatusQueued || job.OutputURL != "" {
		t.Fatalf("job mutated on failed poll: %+v", job)
	}
}

func TestReconcileLifecycleScenario(t *testing.T) {
	jobs := newMemJobs()
	adapter := &scriptedAdapter{}
	svc := testService(jobs, newMemLedger(), adapter, false)

	res, err := svc.Submit(context.Background(), "u1", SubmitInput{
		PresetID:  "vfx_plate_locked",
		Scene:     "a cat",
		Overrides: map[string]any{"duration": 5},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	job, err := jobs.FindOwned(context.Background(), "u1", res.ExternalID)
	if err != nil {
		t.Fatalf("find owned: %v", err)
	}
	if job.Status != domain.JobStatusQueued || job.OutputURL != "" {
		t.Fatalf("initial record = %+v", job)
	}

	adapter.observe(providers.ExternalStatus{
		Status:    domain.JobStatusSucceeded,
		OutputURL: "https://x/video.mp4",
		Raw:       json.RawMessage(`{"status":"succeeded","output":["https://x/video.mp4"]}`),
	})
	got, err := svc.Reconcile(context.Background(), "u1", res.ExternalID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if got.Job.Status != domain.JobStatusSucceeded || got.Job.OutputURL != "https://x/video.mp4" {
		t.Fatalf("after success = %+v", got.Job)
	}
	if len(got.Raw) == 0 {
		t.Fatalf("raw payload missing")
	}

	// A stale in-progress poll must not downgrade the terminal record or
	// erase the observed output.
	adapter.observe(providers.ExternalStatus{Status: domain.JobStatusProcessing})
	got, err = svc.Reconcile(context.Background(), "u1", res.ExternalID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if got.Job.Status != domain.JobStatusSucceeded || got.Job.OutputURL != "https://x/video.mp4" {
		t.Fatalf("stale poll changed record: %+v", got.Job)
	}
}
